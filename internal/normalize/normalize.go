// Package normalize validates parsed candidates and assigns each a stable
// content-derived identity used for cross-source deduplication.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/model"
)

// DegradedUID switches uid derivation to a 32-bit FNV-1a hash. Lower
// collision resistance; only for environments without the primary digest.
var DegradedUID = false

// ValidationError lists the fields of a candidate that failed schema checks.
// Fatal for the single record, never for the run.
type ValidationError struct {
	Title  string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Title, strings.Join(e.Fields, ", "))
}

// UID derives the deterministic program identity from the deduplication
// tuple. Two calls with identical (authority, jurisdiction, title) yield the
// same uid regardless of title casing or which source produced the record.
func UID(authority model.AuthorityLevel, jurisdiction, title string) string {
	input := strings.ToLower(string(authority) + "|" + jurisdiction + "|" + title)
	if DegradedUID {
		h := fnv.New32a()
		h.Write([]byte(input))
		return fmt.Sprintf("p-%x", h.Sum32())
	}
	sum := sha256.Sum256([]byte(input))
	return "p-" + hex.EncodeToString(sum[:16])
}

// Normalize validates a candidate against the canonical schema and assigns
// its uid. Missing status defaults to unknown before validation.
func Normalize(c model.Candidate) (*model.NormalizedProgram, error) {
	if c.Status == "" {
		c.Status = model.ProgramUnknown
	}

	var bad []string
	if strings.TrimSpace(c.Title) == "" {
		bad = append(bad, "title")
	}
	if c.CountryCode == "" {
		bad = append(bad, "country_code")
	}
	if !model.ValidAuthorityLevel(c.AuthorityLevel) {
		bad = append(bad, "authority_level")
	}
	if c.JurisdictionCode == "" {
		bad = append(bad, "jurisdiction_code")
	}
	if !model.ValidProgramStatus(c.Status) {
		bad = append(bad, "status")
	}
	if c.BenefitType != "" && !model.ValidBenefitType(c.BenefitType) {
		bad = append(bad, "benefit_type")
	}
	for _, b := range c.Benefits {
		if !model.ValidBenefitType(b.Type) {
			bad = append(bad, "benefits.type")
			break
		}
	}
	if len(bad) > 0 {
		return nil, eris.Wrap(&ValidationError{Title: c.Title, Fields: bad}, "normalize")
	}

	return &model.NormalizedProgram{
		UID:              UID(c.AuthorityLevel, c.JurisdictionCode, c.Title),
		CountryCode:      c.CountryCode,
		AuthorityLevel:   c.AuthorityLevel,
		JurisdictionCode: c.JurisdictionCode,
		Title:            strings.TrimSpace(c.Title),
		Summary:          c.Summary,
		BenefitType:      c.BenefitType,
		Status:           c.Status,
		IndustryCodes:    dedupeCodes(c.IndustryCodes),
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		URL:              c.URL,
		Benefits:         c.Benefits,
		Criteria:         c.Criteria,
		Tags:             c.Tags,
		SourceRowID:      c.SourceRowID,
	}, nil
}

// dedupeCodes sorts and deduplicates industry codes; order is insignificant
// so a canonical order keeps set comparison trivial downstream.
func dedupeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Slugify lowercases a label and collapses non-alphanumeric runs to single
// hyphens, trimming leading and trailing hyphens. Empty input slugs to "-".
func Slugify(label string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(label) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			prevHyphen = false
			continue
		}
		if !prevHyphen {
			b.WriteByte('-')
			prevHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "-"
	}
	return slug
}
