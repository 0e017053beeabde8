// Package registry holds the catalog of upstream program sources. The
// builtin set ships with the binary; deployments may overlay extra
// sources from a YAML file.
package registry

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/govatlas/catalog-cli/internal/model"
)

// Builtin returns the sources compiled into the binary.
func Builtin() []model.Source {
	return []model.Source{
		{
			ID:           "us-fed-grants-gov",
			Authority:    model.AuthorityFederal,
			Country:      "US",
			Jurisdiction: "US-FED",
			Kind:         model.TransportJSON,
			Entrypoint:   "https://www.grants.gov/grantsws/rest/opportunities/search?filter=active&sortBy=closeDate",
			Parser:       model.ParserJSONAPI,
			Path:         "opportunities",
			MapFn:        "mapGrantsGov",
			Rate:         model.RateBudget{RPS: 2, Burst: 5},
			Schedule:     model.ScheduleEvery4h,
			License:      "https://www.grants.gov/help/html/help/Register/SAM.gov-Data-Usage-Agreement.htm",
			TOSURL:       "https://www.grants.gov/web/grants/policy/policy-guidance/sam-gov-data-usage-agreement.html",
		},
		{
			ID:           "us-fed-sam-assistance",
			Authority:    model.AuthorityFederal,
			Country:      "US",
			Jurisdiction: "US-FED",
			Kind:         model.TransportJSON,
			Entrypoint:   "https://sam.gov/api/prod/sgs/v1/search?index=assistancelisting&q=*&sort=-modifiedDate",
			Parser:       model.ParserJSONAPI,
			Path:         "searchResult.searchResultItems",
			MapFn:        "mapSamAssistance",
			Rate:         model.RateBudget{RPS: 1, Burst: 3},
			Schedule:     model.ScheduleDaily,
			License:      "https://open.gsa.gov/api/sam/#terms",
			TOSURL:       "https://sam.gov/content/privacy-policy",
		},
		{
			ID:           "ca-fed-open-gov",
			Authority:    model.AuthorityFederal,
			Country:      "CA",
			Jurisdiction: "CA-FED",
			Kind:         model.TransportJSON,
			Entrypoint:   "https://open.canada.ca/data/en/api/3/action/package_search?q=assistance%20program&rows=100",
			Parser:       model.ParserJSONAPI,
			Path:         "result.results",
			MapFn:        "mapCkanGC",
			Rate:         model.RateBudget{RPS: 1, Burst: 2},
			Schedule:     model.ScheduleDaily,
			License:      "https://open.canada.ca/en/open-government-licence-canada",
		},
		{
			ID:           "ca-on-grants",
			Authority:    model.AuthorityProvince,
			Country:      "CA",
			Jurisdiction: "CA-ON",
			Kind:         model.TransportJSON,
			Entrypoint:   "https://data.ontario.ca/en/api/3/action/package_search?q=grant&rows=100",
			Parser:       model.ParserJSONAPI,
			Path:         "result.results",
			MapFn:        "mapCkanProvON",
			Rate:         model.RateBudget{RPS: 1, Burst: 2},
			Schedule:     model.ScheduleDaily,
			License:      "https://www.ontario.ca/page/open-government-licence-ontario",
		},
		{
			ID:           "us-wa-commerce-rss",
			Authority:    model.AuthorityState,
			Country:      "US",
			Jurisdiction: "US-WA",
			Kind:         model.TransportRSS,
			Entrypoint:   "https://www.commerce.wa.gov/news/feed/",
			Parser:       model.ParserRSS,
			Rate:         model.RateBudget{RPS: 1, Burst: 2},
			Schedule:     model.ScheduleDaily,
			License:      "WA Open Data Commons",
		},
		{
			ID:           "ca-on-programs-html",
			Authority:    model.AuthorityProvince,
			Country:      "CA",
			Jurisdiction: "CA-ON",
			Kind:         model.TransportHTML,
			Entrypoint:   "https://www.ontario.ca/page/business-grants",
			Parser:       model.ParserHTMLTable,
			Rate:         model.RateBudget{RPS: 1, Burst: 2},
			Schedule:     model.ScheduleDaily,
			License:      "https://www.ontario.ca/page/open-government-licence-ontario",
		},
	}
}

// LoadFile reads a YAML array of sources from path.
func LoadFile(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read sources file")
	}

	var sources []model.Source
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal sources file")
	}

	for i := range sources {
		if err := validate(&sources[i]); err != nil {
			return nil, eris.Wrapf(err, "registry: source %d", i)
		}
	}
	return sources, nil
}

// Merge overlays extra sources on top of base. An overlay entry with an
// existing ID replaces the base entry; new IDs append in order.
func Merge(base, overlay []model.Source) []model.Source {
	merged := make([]model.Source, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, src := range merged {
		index[src.ID] = i
	}
	for _, src := range overlay {
		if i, ok := index[src.ID]; ok {
			merged[i] = src
			continue
		}
		index[src.ID] = len(merged)
		merged = append(merged, src)
	}
	return merged
}

// Select filters sources down to the requested IDs, preserving registry
// order. Unknown IDs are reported as an error so typos fail loudly.
func Select(sources []model.Source, ids []string) ([]model.Source, error) {
	if len(ids) == 0 {
		return sources, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var selected []model.Source
	for _, src := range sources {
		if wanted[src.ID] {
			selected = append(selected, src)
			delete(wanted, src.ID)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for id := range wanted {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		return nil, eris.Errorf("registry: unknown source ids: %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

func validate(src *model.Source) error {
	if src.ID == "" {
		return eris.New("missing id")
	}
	if !model.ValidAuthorityLevel(src.Authority) {
		return eris.Errorf("source %s: invalid authority %q", src.ID, src.Authority)
	}
	switch src.Kind {
	case model.TransportJSON, model.TransportRSS, model.TransportHTML:
	default:
		return eris.Errorf("source %s: invalid kind %q", src.ID, src.Kind)
	}
	switch src.Parser {
	case model.ParserJSONAPI, model.ParserRSS, model.ParserHTMLTable:
	default:
		return eris.Errorf("source %s: invalid parser %q", src.ID, src.Parser)
	}
	if src.Entrypoint == "" {
		return eris.Errorf("source %s: missing entrypoint", src.ID)
	}
	if src.Rate.RPS <= 0 || src.Rate.Burst <= 0 {
		return eris.Errorf("source %s: invalid rate budget", src.ID)
	}
	switch src.Schedule {
	case model.ScheduleEvery4h, model.ScheduleDaily:
	default:
		return eris.Errorf("source %s: invalid schedule %q", src.ID, src.Schedule)
	}
	return nil
}
