package model

// ProgramStatus describes whether a program is currently accepting applicants.
type ProgramStatus string

const (
	ProgramOpen      ProgramStatus = "open"
	ProgramScheduled ProgramStatus = "scheduled"
	ProgramClosed    ProgramStatus = "closed"
	ProgramUnknown   ProgramStatus = "unknown"
)

// ValidProgramStatus reports whether s is one of the canonical statuses.
func ValidProgramStatus(s ProgramStatus) bool {
	switch s {
	case ProgramOpen, ProgramScheduled, ProgramClosed, ProgramUnknown:
		return true
	}
	return false
}

// BenefitType classifies the kind of benefit a program offers.
type BenefitType string

const (
	BenefitGrant     BenefitType = "grant"
	BenefitRebate    BenefitType = "rebate"
	BenefitTaxCredit BenefitType = "tax_credit"
	BenefitLoan      BenefitType = "loan"
	BenefitGuarantee BenefitType = "guarantee"
	BenefitVoucher   BenefitType = "voucher"
	BenefitOther     BenefitType = "other"
)

// ValidBenefitType reports whether t is one of the canonical benefit types.
func ValidBenefitType(t BenefitType) bool {
	switch t {
	case BenefitGrant, BenefitRebate, BenefitTaxCredit, BenefitLoan,
		BenefitGuarantee, BenefitVoucher, BenefitOther:
		return true
	}
	return false
}

// AuthorityLevel is the tier of government operating a source or program.
type AuthorityLevel string

const (
	AuthorityFederal   AuthorityLevel = "federal"
	AuthorityState     AuthorityLevel = "state"
	AuthorityProvince  AuthorityLevel = "prov"
	AuthorityTerritory AuthorityLevel = "territory"
)

// ValidAuthorityLevel reports whether a is one of the canonical tiers.
func ValidAuthorityLevel(a AuthorityLevel) bool {
	switch a {
	case AuthorityFederal, AuthorityState, AuthorityProvince, AuthorityTerritory:
		return true
	}
	return false
}

// Benefit describes one monetary benefit attached to a program.
type Benefit struct {
	Type           BenefitType `json:"type"`
	MinAmountCents *int64      `json:"min_amount_cents,omitempty"`
	MaxAmountCents *int64      `json:"max_amount_cents,omitempty"`
	CurrencyCode   string      `json:"currency_code,omitempty"`
	Notes          string      `json:"notes,omitempty"`
}

// Criterion is one eligibility rule as a kind/operator/value triple.
type Criterion struct {
	Kind     string `json:"kind"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Candidate is a raw parsed record produced by an adapter, before schema
// validation and identity assignment.
type Candidate struct {
	CountryCode      string         `json:"country_code"`
	AuthorityLevel   AuthorityLevel `json:"authority_level"`
	JurisdictionCode string         `json:"jurisdiction_code"`
	Title            string         `json:"title"`
	Summary          string         `json:"summary,omitempty"`
	BenefitType      BenefitType    `json:"benefit_type,omitempty"`
	Status           ProgramStatus  `json:"status,omitempty"`
	IndustryCodes    []string       `json:"industry_codes,omitempty"`
	StartDate        string         `json:"start_date,omitempty"`
	EndDate          string         `json:"end_date,omitempty"`
	URL              string         `json:"url,omitempty"`
	Benefits         []Benefit      `json:"benefits,omitempty"`
	Criteria         []Criterion    `json:"criteria,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	SourceRowID      int64          `json:"source_id,omitempty"`
	SourceKey        string         `json:"source_key,omitempty"` // per-feed deterministic item id, not persisted
}

// NormalizedProgram is the canonical program record with a stable uid.
// Identity fields (country, authority, jurisdiction, title) are never
// altered after insert; the remaining fields are mutable across runs.
type NormalizedProgram struct {
	UID              string         `json:"uid"`
	CountryCode      string         `json:"country_code"`
	AuthorityLevel   AuthorityLevel `json:"authority_level"`
	JurisdictionCode string         `json:"jurisdiction_code"`
	Title            string         `json:"title"`
	Summary          string         `json:"summary,omitempty"`
	BenefitType      BenefitType    `json:"benefit_type,omitempty"`
	Status           ProgramStatus  `json:"status"`
	IndustryCodes    []string       `json:"industry_codes,omitempty"`
	StartDate        string         `json:"start_date,omitempty"`
	EndDate          string         `json:"end_date,omitempty"`
	URL              string         `json:"url,omitempty"`
	Benefits         []Benefit      `json:"benefits,omitempty"`
	Criteria         []Criterion    `json:"criteria,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	SourceRowID      int64          `json:"source_id,omitempty"`
}
