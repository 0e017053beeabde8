// Package enrich derives industry codes for normalized programs by
// matching synonym tokens against program text.
package enrich

import (
	"context"
	_ "embed"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/govatlas/catalog-cli/internal/kvcache"
	"github.com/govatlas/catalog-cli/internal/model"
)

//go:embed data/naics.sample.json
var sampleLookup []byte

const (
	// MaxCodes caps the number of industry codes a program may carry
	// after enrichment.
	MaxCodes = 6

	lookupKey = "naics:synonyms:v1"
	cacheTTL  = 5 * time.Minute
)

// Entry maps an industry code to the lowercase synonym tokens that
// imply it.
type Entry struct {
	Code     string   `json:"code"`
	Synonyms []string `json:"synonyms"`
}

// Enricher tags programs with industry codes using a synonym lookup
// table. The table is read from a KV cache when available and falls
// back to a bundled sample otherwise.
type Enricher struct {
	kv kvcache.KV

	mu       sync.Mutex
	entries  []Entry
	loadedAt time.Time
	fromKV   bool
}

// New creates an Enricher backed by the given cache. A nil cache is
// allowed and always uses the bundled lookup table.
func New(kv kvcache.KV) *Enricher {
	return &Enricher{kv: kv}
}

// Enrich fills in industry codes for p by scanning its title, summary,
// criteria values, and tags for synonym tokens. Existing codes are kept
// and the total is capped at MaxCodes. Lookup failures degrade to the
// bundled table rather than failing the program.
func (e *Enricher) Enrich(ctx context.Context, p *model.NormalizedProgram) {
	entries := e.loadLookup(ctx)
	if len(entries) == 0 {
		return
	}

	parts := []string{p.Title, p.Summary}
	for _, c := range p.Criteria {
		parts = append(parts, c.Value)
	}
	parts = append(parts, p.Tags...)
	tokens := tokenize(strings.Join(parts, " "))

	codes := make([]string, 0, MaxCodes)
	seen := make(map[string]bool)
	for _, code := range p.IndustryCodes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}

	for _, entry := range entries {
		if len(codes) >= MaxCodes {
			break
		}
		if seen[entry.Code] {
			continue
		}
		for _, syn := range entry.Synonyms {
			if tokens[syn] {
				seen[entry.Code] = true
				codes = append(codes, entry.Code)
				break
			}
		}
	}
	if len(codes) > MaxCodes {
		codes = codes[:MaxCodes]
	}
	p.IndustryCodes = codes
}

func (e *Enricher) loadLookup(ctx context.Context) []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := !e.loadedAt.IsZero() && time.Since(e.loadedAt) < cacheTTL
	if fresh && (e.kv == nil || e.fromKV) {
		return e.entries
	}

	var entries []Entry
	fromKV := false
	if e.kv != nil {
		raw, found, err := e.kv.Get(ctx, lookupKey)
		if err != nil {
			zap.L().Warn("industry lookup cache read failed", zap.Error(err))
		} else if found {
			parsed, err := parseLookup(raw)
			if err != nil {
				zap.L().Warn("industry lookup cache malformed", zap.Error(err))
			} else {
				entries = parsed
				fromKV = true
			}
		}
	}

	if len(entries) == 0 {
		parsed, err := parseLookup(sampleLookup)
		if err != nil {
			zap.L().Warn("bundled industry lookup malformed", zap.Error(err))
			parsed = nil
		}
		entries = parsed
		fromKV = false
	}

	e.entries = entries
	e.loadedAt = time.Now()
	e.fromKV = fromKV
	return e.entries
}

// parseLookup accepts either an array of entries or a map from code to
// synonym list. Synonyms are lowercased and tokens of three or more
// characters are kept.
func parseLookup(raw []byte) ([]Entry, error) {
	var list []Entry
	if err := json.Unmarshal(raw, &list); err != nil {
		var byCode map[string][]string
		if mapErr := json.Unmarshal(raw, &byCode); mapErr != nil {
			return nil, err
		}
		for code, synonyms := range byCode {
			list = append(list, Entry{Code: code, Synonyms: synonyms})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	}

	out := make([]Entry, 0, len(list))
	for _, entry := range list {
		if entry.Code == "" {
			continue
		}
		synonyms := make([]string, 0, len(entry.Synonyms))
		for _, syn := range entry.Synonyms {
			syn = strings.ToLower(strings.TrimSpace(syn))
			if len(syn) > 2 {
				synonyms = append(synonyms, syn)
			}
		}
		if len(synonyms) == 0 {
			continue
		}
		out = append(out, Entry{Code: entry.Code, Synonyms: synonyms})
	}
	return out, nil
}

func tokenize(text string) map[string]bool {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
