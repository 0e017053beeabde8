package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govatlas/catalog-cli/internal/model"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Commerce Programs</title>
    <item>
      <title>  Small Business Flex Fund  </title>
      <link>https://commerce.example/flex-fund</link>
      <description>Low-interest loans for small businesses.</description>
      <guid>flex-fund-2026</guid>
      <pubDate>Mon, 02 Mar 2026 10:30:00 GMT</pubDate>
      <category>Small Business</category>
      <category>Loans &amp; Capital</category>
    </item>
    <item>
      <link>https://commerce.example/no-title</link>
      <description>Dropped: no title.</description>
    </item>
    <item>
      <title>Broadband Equity Grant</title>
    </item>
  </channel>
</rss>`

func TestRSS_ParsesItems(t *testing.T) {
	got, err := (&RSS{}).Execute(context.Background(), "https://commerce.example/feed", []byte(sampleFeed), Options{
		Country:      "US",
		Authority:    model.AuthorityState,
		Jurisdiction: "US-WA",
		SourceRowID:  3,
	})
	require.NoError(t, err)
	require.Len(t, got, 2, "titleless items are dropped")

	c := got[0]
	assert.Equal(t, "Small Business Flex Fund", c.Title)
	assert.Equal(t, "https://commerce.example/flex-fund", c.URL)
	assert.Equal(t, "Low-interest loans for small businesses.", c.Summary)
	assert.Equal(t, model.ProgramUnknown, c.Status)
	assert.Equal(t, "2026-03-02", c.StartDate)
	assert.Equal(t, []string{"small-business", "loans-capital"}, c.Tags)
	assert.Equal(t, "US", c.CountryCode)
	assert.Equal(t, int64(3), c.SourceRowID)
}

func TestRSS_ItemIdentitySeeds(t *testing.T) {
	hash := func(seed string) string {
		sum := sha256.Sum256([]byte(seed))
		return hex.EncodeToString(sum[:])
	}

	got, err := (&RSS{}).Execute(context.Background(), "https://commerce.example/feed", []byte(sampleFeed), Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, hash("flex-fund-2026"), got[0].SourceKey, "guid wins over link")
	assert.Equal(t, hash("Broadband Equity Grant|"), got[1].SourceKey, "title|link fallback without guid or link")
}

func TestRSS_LinkSeedWhenNoGUID(t *testing.T) {
	feed := `<rss><channel><item><title>T</title><link>https://a.example/p</link></item></channel></rss>`
	sum := sha256.Sum256([]byte("https://a.example/p"))

	got, err := (&RSS{}).Execute(context.Background(), "https://a.example", []byte(feed), Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, hex.EncodeToString(sum[:]), got[0].SourceKey)
}

func TestRSS_UnparseablePubDateSkipped(t *testing.T) {
	feed := `<rss><channel><item><title>T</title><pubDate>whenever</pubDate></item></channel></rss>`

	got, err := (&RSS{}).Execute(context.Background(), "https://a.example", []byte(feed), Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].StartDate)
}

func TestRSS_RowLimit(t *testing.T) {
	feed := `<rss><channel>` +
		`<item><title>1</title></item>` +
		`<item><title>2</title></item>` +
		`<item><title>3</title></item>` +
		`</channel></rss>`

	got, err := (&RSS{}).Execute(context.Background(), "https://a.example", []byte(feed), Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRSS_MalformedFeed(t *testing.T) {
	_, err := (&RSS{}).Execute(context.Background(), "https://a.example", []byte(`{"not":"xml"}`), Options{})
	require.Error(t, err)
}
