package objstore

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// S3 stores snapshots in an S3 bucket. A custom endpoint supports
// S3-compatible object stores.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an S3-backed store using the default credential chain.
// endpoint may be empty for AWS proper.
func NewS3(ctx context.Context, bucket, endpoint string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "objstore: load aws config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: bucket}, nil
}

func (s *S3) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return eris.Wrapf(err, "objstore: put %s", key)
}
