// Package diff computes field-level diffs between a stored program and a
// fresh candidate sharing the same uid. Identity fields (country, authority,
// jurisdiction, title) are never compared: they are immutable post-insert.
package diff

import (
	"github.com/govatlas/catalog-cli/internal/model"
)

// criticalPaths are the fields whose changes affect eligibility or timing
// semantics. Changes anywhere else are non-critical.
var criticalPaths = map[string]bool{
	"status":       true,
	"benefit_type": true,
	"start_date":   true,
	"end_date":     true,
	"url":          true,
}

// IsCritical reports whether a changed field path counts as critical.
func IsCritical(path string) bool {
	return criticalPaths[path]
}

// Program compares the mutable fields of the stored record against the
// incoming one. A nil result means no changes.
func Program(stored, incoming *model.NormalizedProgram) *model.ProgramDiff {
	var changed []string

	if stored.Summary != incoming.Summary {
		changed = append(changed, "summary")
	}
	if stored.BenefitType != incoming.BenefitType {
		changed = append(changed, "benefit_type")
	}
	if stored.Status != incoming.Status {
		changed = append(changed, "status")
	}
	if !sameCodeSet(stored.IndustryCodes, incoming.IndustryCodes) {
		changed = append(changed, "industry_codes")
	}
	if stored.StartDate != incoming.StartDate {
		changed = append(changed, "start_date")
	}
	if stored.EndDate != incoming.EndDate {
		changed = append(changed, "end_date")
	}
	if stored.URL != incoming.URL {
		changed = append(changed, "url")
	}

	if len(changed) == 0 {
		return nil
	}

	d := &model.ProgramDiff{
		ChangedPaths: changed,
		TotalChanges: len(changed),
	}
	for _, path := range changed {
		if IsCritical(path) {
			d.CriticalPaths = append(d.CriticalPaths, path)
			d.CriticalChanges++
		}
	}
	return d
}

// sameCodeSet compares industry code lists by set contents, not order.
func sameCodeSet(a, b []string) bool {
	setA := make(map[string]bool, len(a))
	for _, c := range a {
		setA[c] = true
	}
	setB := make(map[string]bool, len(b))
	for _, c := range b {
		setB[c] = true
	}
	if len(setA) != len(setB) {
		return false
	}
	for c := range setA {
		if !setB[c] {
			return false
		}
	}
	return true
}
