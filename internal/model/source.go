package model

// TransportKind is the wire format a source serves.
type TransportKind string

const (
	TransportJSON TransportKind = "json"
	TransportRSS  TransportKind = "rss"
	TransportHTML TransportKind = "html"
)

// ParserName identifies which adapter handles a source's payload.
type ParserName string

const (
	ParserJSONAPI   ParserName = "json_api_generic"
	ParserRSS       ParserName = "rss_generic"
	ParserHTMLTable ParserName = "html_table_generic"
)

// Schedule is how often a source is due for ingestion.
type Schedule string

const (
	ScheduleEvery4h Schedule = "4h"
	ScheduleDaily   Schedule = "daily"
)

// RateBudget is the per-host token bucket budget for a source.
type RateBudget struct {
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst" json:"burst"`
}

// RequestValue is one leaf of a request shape. Exactly one field is set:
// a literal string, an environment variable reference, or a dynamic date
// token (__TODAY__ / __DAYS_AGO_<N>__) resolved at build time.
type RequestValue struct {
	Literal   string `yaml:"literal,omitempty" json:"literal,omitempty"`
	Env       string `yaml:"env,omitempty" json:"env,omitempty"`
	DateToken string `yaml:"date,omitempty" json:"date,omitempty"`
}

// RequestShape describes an outbound request template for a source.
type RequestShape struct {
	Method  string                  `yaml:"method,omitempty" json:"method,omitempty"`
	Headers map[string]RequestValue `yaml:"headers,omitempty" json:"headers,omitempty"`
	Query   map[string]RequestValue `yaml:"query,omitempty" json:"query,omitempty"`
	Body    map[string]RequestValue `yaml:"body,omitempty" json:"body,omitempty"`
}

// SyntheticFallback is a source-declared static payload substituted when
// live credentials are unavailable, keeping pipelines exercised in
// constrained environments.
type SyntheticFallback struct {
	Reason  string `yaml:"reason" json:"reason"`
	Payload string `yaml:"payload" json:"payload"`
}

// Source is one configured upstream feed of program listings. Sources are
// static configuration: immutable after deploy except through redeploy of
// the registry.
type Source struct {
	ID           string             `yaml:"id" json:"id"`
	Authority    AuthorityLevel     `yaml:"authority" json:"authority"`
	Country      string             `yaml:"country" json:"country"`
	Jurisdiction string             `yaml:"jurisdiction" json:"jurisdiction"`
	Kind         TransportKind      `yaml:"kind" json:"kind"`
	Entrypoint   string             `yaml:"entrypoint" json:"entrypoint"`
	Parser       ParserName         `yaml:"parser" json:"parser"`
	Path         string             `yaml:"path,omitempty" json:"path,omitempty"`
	MapFn        string             `yaml:"map_fn,omitempty" json:"map_fn,omitempty"`
	Rate         RateBudget         `yaml:"rate" json:"rate"`
	Schedule     Schedule           `yaml:"schedule" json:"schedule"`
	License      string             `yaml:"license,omitempty" json:"license,omitempty"`
	TOSURL       string             `yaml:"tos_url,omitempty" json:"tos_url,omitempty"`
	Request      *RequestShape      `yaml:"request,omitempty" json:"request,omitempty"`
	Synthetic    *SyntheticFallback `yaml:"synthetic,omitempty" json:"synthetic,omitempty"`
}
