package adapter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"io"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/govatlas/catalog-cli/internal/model"
	"github.com/govatlas/catalog-cli/internal/normalize"
)

// RSS parses <item> elements from a feed. Items without a title are
// dropped. Item identity favors GUID, then link, then a title|link seed,
// hashed to a deterministic id.
type RSS struct{}

type rssFeed struct {
	Items []rssItem `xml:"channel>item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	GUID        string   `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

func (a *RSS) Execute(_ context.Context, sourceURL string, body []byte, opts Options) ([]model.Candidate, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.Strict = false
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "rss: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var feed rssFeed
	if err := decoder.Decode(&feed); err != nil {
		return nil, eris.Wrapf(err, "rss: decode feed from %s", sourceURL)
	}

	items := feed.Items
	if len(items) > opts.limit() {
		items = items[:opts.limit()]
	}

	candidates := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		link := strings.TrimSpace(item.Link)

		c := model.Candidate{
			CountryCode:      opts.Country,
			AuthorityLevel:   opts.Authority,
			JurisdictionCode: opts.Jurisdiction,
			SourceRowID:      opts.SourceRowID,
			Title:            title,
			Summary:          strings.TrimSpace(item.Description),
			URL:              link,
			Status:           model.ProgramUnknown,
			SourceKey:        itemID(item, title, link),
		}

		if pub := strings.TrimSpace(item.PubDate); pub != "" {
			if t, err := dateparse.ParseAny(pub); err == nil {
				c.StartDate = t.UTC().Format("2006-01-02")
			}
		}

		for _, cat := range item.Categories {
			if cat = strings.TrimSpace(cat); cat != "" {
				c.Tags = append(c.Tags, normalize.Slugify(cat))
			}
		}

		candidates = append(candidates, c)
	}
	return candidates, nil
}

// itemID hashes the best available identity seed to a stable hex id.
func itemID(item rssItem, title, link string) string {
	seed := strings.TrimSpace(item.GUID)
	if seed == "" {
		seed = link
	}
	if seed == "" {
		seed = title + "|" + link
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}
