package request

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govatlas/catalog-cli/internal/model"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func staticEnv(values map[string]string) EnvAccessor {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestBuild_Defaults(t *testing.T) {
	src := model.Source{
		ID:         "test",
		Entrypoint: "https://api.example.gov/programs?rows=100",
	}

	req, err := Build(src, nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "https://api.example.gov/programs?rows=100", req.URL)
	assert.Equal(t, DefaultUserAgent, req.Headers["User-Agent"])
	assert.Nil(t, req.Body)
}

func TestBuild_ResolvesEnvAndDates(t *testing.T) {
	src := model.Source{
		ID:         "test",
		Entrypoint: "https://api.example.gov/search",
		Request: &model.RequestShape{
			Method: "post",
			Headers: map[string]model.RequestValue{
				"X-Api-Key": {Env: "EXAMPLE_API_KEY"},
			},
			Query: map[string]model.RequestValue{
				"from": {DateToken: "__DAYS_AGO_7__"},
				"to":   {DateToken: "__TODAY__"},
			},
			Body: map[string]model.RequestValue{
				"q":     {Literal: "grant"},
				"since": {DateToken: "__TODAY__"},
			},
		},
	}

	req, err := Build(src, staticEnv(map[string]string{"EXAMPLE_API_KEY": "sekrit"}), testNow)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "sekrit", req.Headers["X-Api-Key"])
	assert.Contains(t, req.URL, "from=03%2F08%2F2026")
	assert.Contains(t, req.URL, "to=03%2F15%2F2026")
	assert.Equal(t, "application/json", req.Headers["Content-Type"])

	var body map[string]string
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "grant", body["q"])
	assert.Equal(t, "03/15/2026", body["since"])
}

func TestBuild_RawBodyPassthrough(t *testing.T) {
	src := model.Source{
		ID:         "test",
		Entrypoint: "https://api.example.gov/search",
		Request: &model.RequestShape{
			Body: map[string]model.RequestValue{
				"raw": {Literal: "plain payload"},
			},
		},
	}

	req, err := Build(src, nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain payload"), req.Body)
	assert.Empty(t, req.Headers["Content-Type"])
}

func TestBuild_MissingEnv(t *testing.T) {
	src := model.Source{
		ID:         "test",
		Entrypoint: "https://api.example.gov/search",
		Request: &model.RequestShape{
			Headers: map[string]model.RequestValue{
				"X-Api-Key": {Env: "DEFINITELY_NOT_SET_ANYWHERE_1234"},
			},
		},
	}

	_, err := Build(src, nil, testNow)
	require.Error(t, err)
	assert.True(t, IsMissingEnv(err))

	var me *MissingEnvError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "DEFINITELY_NOT_SET_ANYWHERE_1234", me.Name)
	assert.Equal(t, "missing_env:DEFINITELY_NOT_SET_ANYWHERE_1234", me.Error())
}

func TestResolveDateToken_Passthrough(t *testing.T) {
	assert.Equal(t, "hello", resolveDateToken("hello", testNow))
	assert.Equal(t, "__DAYS_AGO_X__", resolveDateToken("__DAYS_AGO_X__", testNow))
	assert.Equal(t, "03/15/2026", resolveDateToken("__TODAY__", testNow))
	assert.Equal(t, "02/13/2026", resolveDateToken("__DAYS_AGO_30__", testNow))
}

func TestSyntheticNote(t *testing.T) {
	assert.Equal(t, "synthetic_data:missing_env:SAM_API_KEY", SyntheticNote("missing_env:SAM_API_KEY"))
}
