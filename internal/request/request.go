// Package request resolves a source definition into a concrete outbound
// request. Resolution is a pure function of the source and the environment
// accessor, so the side-effecting env access stays isolated and testable.
package request

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/model"
)

// DefaultUserAgent identifies the harvester to upstream sources.
const DefaultUserAgent = "gov-programs-ingest/2.0 (+https://govatlas.org/catalog)"

// EnvAccessor looks up a named secret. Lookups fall back to the process
// environment when the accessor misses.
type EnvAccessor func(name string) (string, bool)

// OSEnv is the process-environment accessor.
func OSEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MissingEnvError is the typed condition raised for an unresolved {env: NAME}
// placeholder. The catalog runner catches it to trigger a source's declared
// synthetic-data fallback.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return "missing_env:" + e.Name
}

// Request is a fully resolved outbound request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

var daysAgoRe = regexp.MustCompile(`^__DAYS_AGO_(\d+)__$`)

// resolveDateToken expands __TODAY__ and __DAYS_AGO_<N>__ to MM/DD/YYYY.
// Other strings pass through unchanged.
func resolveDateToken(s string, now time.Time) string {
	if s == "__TODAY__" {
		return now.Format("01/02/2006")
	}
	if m := daysAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n).Format("01/02/2006")
	}
	return s
}

func resolveValue(v model.RequestValue, env EnvAccessor, now time.Time) (string, error) {
	if v.Env != "" {
		if val, ok := env(v.Env); ok {
			return val, nil
		}
		if val, ok := OSEnv(v.Env); ok {
			return val, nil
		}
		return "", &MissingEnvError{Name: v.Env}
	}
	if v.DateToken != "" {
		return resolveDateToken(v.DateToken, now), nil
	}
	return resolveDateToken(v.Literal, now), nil
}

// Build resolves a source's request shape against the environment accessor
// at the given instant. Any unresolved placeholder returns a MissingEnvError
// wrapped with the offending section.
func Build(src model.Source, env EnvAccessor, now time.Time) (*Request, error) {
	if env == nil {
		env = func(string) (string, bool) { return "", false }
	}

	method := "GET"
	var shape model.RequestShape
	if src.Request != nil {
		shape = *src.Request
		if shape.Method != "" {
			method = strings.ToUpper(shape.Method)
		}
	}

	headers := map[string]string{"User-Agent": DefaultUserAgent}
	for name, v := range shape.Headers {
		resolved, err := resolveValue(v, env, now)
		if err != nil {
			return nil, eris.Wrapf(err, "request: header %s", name)
		}
		headers[name] = resolved
	}

	u, err := url.Parse(src.Entrypoint)
	if err != nil {
		return nil, eris.Wrapf(err, "request: parse entrypoint for %s", src.ID)
	}
	q := u.Query()
	for name, v := range shape.Query {
		resolved, err := resolveValue(v, env, now)
		if err != nil {
			return nil, eris.Wrapf(err, "request: query %s", name)
		}
		q.Set(name, resolved)
	}
	u.RawQuery = q.Encode()

	var body []byte
	if len(shape.Body) > 0 {
		resolved := make(map[string]string, len(shape.Body))
		for name, v := range shape.Body {
			val, err := resolveValue(v, env, now)
			if err != nil {
				return nil, eris.Wrapf(err, "request: body %s", name)
			}
			resolved[name] = val
		}
		// A single "raw" leaf is sent as a literal string body; anything
		// else is JSON-encoded.
		if raw, ok := resolved["raw"]; ok && len(resolved) == 1 {
			body = []byte(raw)
		} else {
			body, err = json.Marshal(resolved)
			if err != nil {
				return nil, eris.Wrap(err, "request: encode body")
			}
			if headers["Content-Type"] == "" {
				headers["Content-Type"] = "application/json"
			}
		}
	}

	return &Request{Method: method, URL: u.String(), Headers: headers, Body: body}, nil
}

// IsMissingEnv reports whether err (or its cause chain) is a MissingEnvError.
func IsMissingEnv(err error) bool {
	var me *MissingEnvError
	return eris.As(err, &me)
}

// SyntheticNote formats the run note recorded when a source falls back to
// its declared synthetic payload.
func SyntheticNote(reason string) string {
	return fmt.Sprintf("synthetic_data:%s", reason)
}
