package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govatlas/catalog-cli/internal/model"
)

func TestForParser_ClosedSet(t *testing.T) {
	for _, name := range []model.ParserName{model.ParserJSONAPI, model.ParserRSS, model.ParserHTMLTable} {
		a, err := ForParser(name)
		require.NoError(t, err)
		require.NotNil(t, a)
	}

	_, err := ForParser("csv_magic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported_parser:csv_magic")
}

func TestJSONAPI_TopLevelArray(t *testing.T) {
	body := []byte(`[{"title":"Solar Rebate","summary":"Panels","url":"https://x.test/a"}]`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{
		Country:      "US",
		Authority:    model.AuthorityState,
		Jurisdiction: "US-WA",
		SourceRowID:  7,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "Solar Rebate", c.Title)
	assert.Equal(t, "Panels", c.Summary)
	assert.Equal(t, "https://x.test/a", c.URL)
	assert.Equal(t, "US", c.CountryCode)
	assert.Equal(t, model.AuthorityState, c.AuthorityLevel)
	assert.Equal(t, "US-WA", c.JurisdictionCode)
	assert.Equal(t, int64(7), c.SourceRowID)
}

func TestJSONAPI_EnvelopeProbing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"items", `{"items":[{"title":"A"}]}`},
		{"results", `{"results":[{"title":"A"}]}`},
		{"data", `{"data":[{"title":"A"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", []byte(tc.body), Options{})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "A", got[0].Title)
		})
	}
}

func TestJSONAPI_DotPath(t *testing.T) {
	body := []byte(`{"result":{"programs":[{"title":"Nested"}]}}`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{Path: "result.programs"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Nested", got[0].Title)
}

func TestJSONAPI_PathToNonArrayIsEmpty(t *testing.T) {
	body := []byte(`{"result":{"programs":{"oops":true}}}`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{Path: "result.programs"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJSONAPI_MalformedPayload(t *testing.T) {
	_, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", []byte(`{"items":[`), Options{})
	require.Error(t, err)
}

func TestJSONAPI_GenericMapperDefaults(t *testing.T) {
	body := []byte(`[{"name":"Named","status":"OPEN","benefit_type":"Grant","tags":"small business, rural","start_date":"2026-01-01"},{}]`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Named", got[0].Title)
	assert.Equal(t, model.ProgramOpen, got[0].Status)
	assert.Equal(t, model.BenefitGrant, got[0].BenefitType)
	assert.Equal(t, []string{"small business", "rural"}, got[0].Tags)
	assert.Equal(t, "2026-01-01", got[0].StartDate)

	assert.Equal(t, "Untitled program", got[1].Title)
	assert.Empty(t, got[1].Status)
}

func TestJSONAPI_InvalidStatusDropped(t *testing.T) {
	body := []byte(`[{"title":"T","status":"pending review"}]`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Status)
}

func TestJSONAPI_RowLimit(t *testing.T) {
	body := []byte(`[{"title":"1"},{"title":"2"},{"title":"3"}]`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestJSONAPI_NonObjectRowsSkipped(t *testing.T) {
	body := []byte(`[{"title":"Kept"},"stray",42]`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kept", got[0].Title)
}

func TestJSONAPI_UnknownMapper(t *testing.T) {
	_, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", []byte(`[]`), Options{MapFn: "mapNope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mapper "mapNope"`)
}

func TestJSONAPI_NamedMapperDispatch(t *testing.T) {
	body := []byte(`{"data":[{"opportunity":{"title":"Rural Broadband","opportunityNumber":"RB-1","closeDate":"2099-12-31"}}]}`)

	got, err := (&JSONAPI{}).Execute(context.Background(), "https://x.test", body, Options{MapFn: "mapGrantsGov"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "Rural Broadband", c.Title)
	assert.Equal(t, "https://www.grants.gov/search-results-detail/RB-1", c.URL)
	assert.Equal(t, model.BenefitGrant, c.BenefitType)
	assert.Equal(t, model.ProgramOpen, c.Status)
	assert.Equal(t, "2099-12-31", c.EndDate)
}
