// Package adapter turns raw response bytes into candidate program records.
// The parser set is closed: JSON-API, RSS, and HTML-table, dispatched by the
// source's declared parser name for compile-time exhaustiveness.
package adapter

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/model"
)

// DefaultRowLimit caps how many rows one parse pass emits.
const DefaultRowLimit = 200

// Options carries source metadata every adapter stamps onto its candidates.
type Options struct {
	Country      string
	Authority    model.AuthorityLevel
	Jurisdiction string
	SourceRowID  int64
	Path         string // dot-path to the target array (JSON-API only)
	MapFn        string // named mapper (JSON-API only)
	Limit        int    // 0 means DefaultRowLimit
}

func (o Options) limit() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return DefaultRowLimit
}

// Adapter parses one payload into candidate records. body is the raw
// response; sourceURL is kept for mappers that derive record URLs from it.
type Adapter interface {
	Execute(ctx context.Context, sourceURL string, body []byte, opts Options) ([]model.Candidate, error)
}

// UnsupportedParserError is the fatal configuration condition for a source
// declaring a parser outside the closed set.
type UnsupportedParserError struct {
	Name model.ParserName
}

func (e *UnsupportedParserError) Error() string {
	return "unsupported_parser:" + string(e.Name)
}

// ForParser returns the adapter for a declared parser name.
func ForParser(name model.ParserName) (Adapter, error) {
	switch name {
	case model.ParserJSONAPI:
		return &JSONAPI{}, nil
	case model.ParserRSS:
		return &RSS{}, nil
	case model.ParserHTMLTable:
		return &HTMLTable{}, nil
	default:
		return nil, eris.Wrap(&UnsupportedParserError{Name: name}, "adapter")
	}
}
