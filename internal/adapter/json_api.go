package adapter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/model"
)

// JSONAPI parses generic JSON API payloads. An optional dot-path locates the
// target array inside nested response envelopes; a named mapper (resolved
// from the registry in mappers.go) shapes each row.
type JSONAPI struct{}

func (a *JSONAPI) Execute(_ context.Context, sourceURL string, body []byte, opts Options) ([]model.Candidate, error) {
	var payload any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, eris.Wrapf(err, "json_api: decode payload from %s", sourceURL)
		}
	}

	rows := locateArray(payload, opts.Path)
	if len(rows) > opts.limit() {
		rows = rows[:opts.limit()]
	}

	mapper := genericRowMapper
	if opts.MapFn != "" {
		m, ok := Mappers[opts.MapFn]
		if !ok {
			return nil, eris.Errorf("json_api: unknown mapper %q", opts.MapFn)
		}
		mapper = m
	}

	candidates := make([]model.Candidate, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		c := mapper(obj)
		c.CountryCode = opts.Country
		c.AuthorityLevel = opts.Authority
		c.JurisdictionCode = opts.Jurisdiction
		c.SourceRowID = opts.SourceRowID
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// locateArray walks the dot-path to the target array. A non-array at the
// destination resolves to an empty list. With no path, a top-level array is
// used directly, otherwise the items/results/data envelope keys are probed.
func locateArray(payload any, path string) []any {
	if path != "" {
		node := payload
		for _, seg := range strings.Split(path, ".") {
			obj, ok := node.(map[string]any)
			if !ok {
				return nil
			}
			node = obj[seg]
		}
		arr, _ := node.([]any)
		return arr
	}

	if arr, ok := payload.([]any); ok {
		return arr
	}
	if obj, ok := payload.(map[string]any); ok {
		for _, key := range []string{"items", "results", "data"} {
			if arr, ok := obj[key].([]any); ok {
				return arr
			}
		}
	}
	return nil
}

// genericRowMapper shapes an unmapped row with conventional field fallbacks.
func genericRowMapper(row map[string]any) model.Candidate {
	c := model.Candidate{
		Title:   firstString(row, "title", "name"),
		Summary: firstString(row, "summary", "description"),
		URL:     firstString(row, "url", "website"),
	}
	if c.Title == "" {
		c.Title = "Untitled program"
	}
	if s := normalizeStatus(firstString(row, "status")); s != "" {
		c.Status = s
	}
	if b := normalizeBenefitType(firstString(row, "benefit_type", "benefitType")); b != "" {
		c.BenefitType = b
	}
	c.IndustryCodes = stringList(firstValue(row, "industry_codes", "industries", "naics"))
	c.Tags = stringList(firstValue(row, "tags", "labels", "categories"))
	c.StartDate = firstString(row, "start_date", "startDate")
	c.EndDate = firstString(row, "end_date", "endDate")
	return c
}

func firstValue(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(row map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := row[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// stringList coerces an array or comma-separated string into trimmed,
// non-empty strings.
func stringList(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(vv, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

func normalizeStatus(s string) model.ProgramStatus {
	st := model.ProgramStatus(strings.ToLower(s))
	if model.ValidProgramStatus(st) {
		return st
	}
	return ""
}

func normalizeBenefitType(s string) model.BenefitType {
	bt := model.BenefitType(strings.ToLower(s))
	if model.ValidBenefitType(bt) {
		return bt
	}
	return ""
}
