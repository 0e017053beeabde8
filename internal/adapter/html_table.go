package adapter

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/model"
)

// HTMLTable parses the first table of a page. <thead><th> cell text
// (lowercased, trimmed) becomes the column keys; each <tbody><tr> becomes a
// key→text map, with a "<key>_url" entry when a cell contains an anchor.
type HTMLTable struct{}

func (a *HTMLTable) Execute(_ context.Context, sourceURL string, body []byte, opts Options) ([]model.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "html_table: parse document from %s", sourceURL)
	}

	table := doc.Find("table").First()
	var keys []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		keys = append(keys, strings.ToLower(strings.TrimSpace(th.Text())))
	})
	if len(keys) == 0 {
		return nil, nil
	}

	var candidates []model.Candidate
	table.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if len(candidates) >= opts.limit() {
			return false
		}

		row := make(map[string]string, len(keys))
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if i >= len(keys) {
				return
			}
			key := keys[i]
			row[key] = strings.TrimSpace(td.Text())
			if href, ok := td.Find("a").First().Attr("href"); ok {
				row[key+"_url"] = strings.TrimSpace(href)
			}
		})

		candidates = append(candidates, rowCandidate(row, opts))
		return true
	})
	return candidates, nil
}

func rowCandidate(row map[string]string, opts Options) model.Candidate {
	title := row["title"]
	if title == "" {
		title = row["program"]
	}
	if title == "" {
		title = "Untitled Program"
	}

	c := model.Candidate{
		CountryCode:      opts.Country,
		AuthorityLevel:   opts.Authority,
		JurisdictionCode: opts.Jurisdiction,
		SourceRowID:      opts.SourceRowID,
		Title:            title,
		Summary:          row["summary"],
		StartDate:        row["start"],
		EndDate:          row["end"],
		Status:           tableStatus(row["status"]),
	}

	for _, key := range []string{"title", "program", "url", "link"} {
		if u := row[key+"_url"]; u != "" {
			c.URL = u
			break
		}
	}

	tagCell := row["tags"]
	if tagCell == "" {
		tagCell = row["tag"]
	}
	for _, t := range strings.Split(tagCell, ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.Tags = append(c.Tags, t)
		}
	}
	return c
}

// tableStatus validates a status cell against the closed status set,
// defaulting to unknown.
func tableStatus(s string) model.ProgramStatus {
	switch st := model.ProgramStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case model.ProgramOpen, model.ProgramScheduled, model.ProgramClosed:
		return st
	default:
		return model.ProgramUnknown
	}
}
