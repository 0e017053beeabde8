package adapter

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/govatlas/catalog-cli/internal/model"
)

// MapperFunc shapes one upstream row into a candidate. Source identity
// fields are stamped by the adapter afterwards.
type MapperFunc func(row map[string]any) model.Candidate

// Mappers is the named mapper registry referenced by source definitions.
var Mappers = map[string]MapperFunc{
	"mapGrantsGov":     mapGrantsGov,
	"mapSamAssistance": mapSamAssistance,
	"mapCkanGC":        mapCkanGC,
	"mapCkanProvON":    mapCkanProvON,
}

// dateSafe normalizes an upstream date string to YYYY-MM-DD, or empty when
// unparseable.
func dateSafe(v any) string {
	s, _ := v.(string)
	if s == "" {
		return ""
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	return ""
}

// classifyGrantStatus derives a status from open/close dates: closed when
// the close date passed, open while it has not, scheduled for a future open
// date, unknown otherwise.
func classifyGrantStatus(openDate, closeDate string, now time.Time) model.ProgramStatus {
	if closeDate != "" {
		if close, err := time.Parse("2006-01-02", closeDate); err == nil {
			if close.Before(now) {
				return model.ProgramClosed
			}
			return model.ProgramOpen
		}
	}
	if openDate != "" {
		if open, err := time.Parse("2006-01-02", openDate); err == nil && open.After(now) {
			return model.ProgramScheduled
		}
	}
	return model.ProgramUnknown
}

func mapGrantsGov(row map[string]any) model.Candidate {
	if opp, ok := row["opportunity"].(map[string]any); ok {
		row = opp
	}
	title := firstString(row, "title", "OpportunityTitle", "synopsisTitle")
	if title == "" {
		title = "Untitled Grant"
	}
	open := dateSafe(firstValue(row, "openDate", "PostDate", "postDate"))
	close := dateSafe(firstValue(row, "closeDate", "CloseDate"))

	url := firstString(row, "url")
	if url == "" {
		if num := firstString(row, "opportunityNumber", "OpportunityNumber", "oppNum", "id"); num != "" {
			url = "https://www.grants.gov/search-results-detail/" + num
		}
	}

	c := model.Candidate{
		Title:       title,
		Summary:     firstString(row, "description", "Synopsis", "synopsisDesc", "synopsis"),
		URL:         url,
		StartDate:   open,
		EndDate:     close,
		BenefitType: model.BenefitGrant,
		Status:      classifyGrantStatus(open, close, time.Now().UTC()),
		Tags:        stringList(firstValue(row, "category", "Category", "categories")),
	}
	for _, cat := range stringList(firstValue(row, "eligibilityCategory", "eligibility")) {
		c.Criteria = append(c.Criteria, model.Criterion{Kind: "eligibility", Operator: "matches", Value: cat})
	}
	return c
}

func mapSamAssistance(row map[string]any) model.Candidate {
	desc := row
	if d, ok := row["matchedObjectDescriptor"].(map[string]any); ok {
		desc = d
	}
	title := firstString(desc, "title", "assistanceListingTitle")
	if title == "" {
		title = firstString(row, "title")
	}
	if title == "" {
		title = "SAM Assistance Listing"
	}

	url := firstString(desc, "uri", "landingPage", "link")
	if url == "" {
		url = firstString(row, "uri", "landingPage")
	}
	if url == "" {
		if num := firstString(desc, "assistanceListingNumber", "listingNumber"); num != "" {
			url = "https://sam.gov/fal/" + num
		}
	}

	summary := firstString(desc, "summary", "assistanceListingDescription", "description")
	if summary == "" {
		summary = firstString(row, "summary", "description")
	}

	c := model.Candidate{
		Title:       title,
		Summary:     summary,
		URL:         url,
		Status:      model.ProgramOpen,
		BenefitType: model.BenefitGrant,
		Tags:        stringList(firstValue(desc, "businessCategories")),
	}
	applicants := stringList(firstValue(desc, "applicantTypes", "applicantType"))
	if len(applicants) == 0 {
		applicants = stringList(firstValue(row, "applicantTypes"))
	}
	for _, a := range applicants {
		c.Criteria = append(c.Criteria, model.Criterion{Kind: "applicant_type", Operator: "eq", Value: a})
	}
	return c
}

// pickCkanURL prefers an HTML-format resource URL, then any resource URL.
func pickCkanURL(v any) string {
	resources, ok := v.([]any)
	if !ok {
		return ""
	}
	var fallback string
	for _, r := range resources {
		res, ok := r.(map[string]any)
		if !ok {
			continue
		}
		u, _ := res["url"].(string)
		if u == "" {
			continue
		}
		format, _ := res["format"].(string)
		if strings.Contains(strings.ToLower(format), "htm") {
			return u
		}
		if fallback == "" {
			fallback = u
		}
	}
	return fallback
}

func mapCkan(row map[string]any, defaultTitle string) model.Candidate {
	pkg := row
	if p, ok := row["package"].(map[string]any); ok {
		pkg = p
	}
	title := firstString(pkg, "title")
	if title == "" {
		title = defaultTitle
	}

	c := model.Candidate{
		Title:       title,
		Summary:     firstString(pkg, "notes", "description"),
		URL:         pickCkanURL(pkg["resources"]),
		Status:      model.ProgramOpen,
		BenefitType: model.BenefitGrant,
	}
	if tags, ok := pkg["tags"].([]any); ok {
		for _, t := range tags {
			switch tv := t.(type) {
			case string:
				c.Tags = append(c.Tags, tv)
			case map[string]any:
				if name, _ := tv["name"].(string); name != "" {
					c.Tags = append(c.Tags, name)
				}
			}
		}
	}
	return c
}

func mapCkanGC(row map[string]any) model.Candidate {
	return mapCkan(row, "Government of Canada Program")
}

func mapCkanProvON(row map[string]any) model.Candidate {
	return mapCkan(row, "Ontario Program")
}
