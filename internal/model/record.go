package model

import (
	"strings"
	"time"
)

// RecordKind tags which payload a Record carries
type RecordKind string

const (
	KindCommitment RecordKind = "commitment" // CorporateCommitment payload
	KindFunding    RecordKind = "funding"    // FundingEvent payload
)

// CommitmentType classifies a corporate sustainability pledge
type CommitmentType string

const (
	CommitmentNetZero             CommitmentType = "net-zero"
	CommitmentCarbonNegative      CommitmentType = "carbon-negative"
	CommitmentScopeReduction      CommitmentType = "scope-reduction"
	CommitmentRegistryPartnership CommitmentType = "registry-partnership"
	CommitmentOther               CommitmentType = "other"
)

// ParseCommitmentType maps a free-form label onto a CommitmentType
func ParseCommitmentType(s string) (CommitmentType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "net-zero", "net zero", "netzero", "carbon-neutral", "carbon neutral":
		return CommitmentNetZero, true
	case "carbon-negative", "carbon negative":
		return CommitmentCarbonNegative, true
	case "scope-reduction", "scope-reductions", "scope reduction", "emissions reduction":
		return CommitmentScopeReduction, true
	case "registry-partnership", "registry partnership", "registry":
		return CommitmentRegistryPartnership, true
	case "other":
		return CommitmentOther, true
	}
	return "", false
}

// RoundStage is the financing stage of a funding event
type RoundStage string

const (
	StageUnknown     RoundStage = ""
	StagePreSeed     RoundStage = "Pre-Seed"
	StageSeed        RoundStage = "Seed"
	StageSeriesA     RoundStage = "Series A"
	StageSeriesB     RoundStage = "Series B"
	StageSeriesC     RoundStage = "Series C"
	StageSeriesDPlus RoundStage = "Series D+"
	StageGrowth      RoundStage = "Growth"
	StageAcquisition RoundStage = "Acquisition"
)

// ParseRoundStage maps a free-form round label onto a RoundStage.
// Series D and later collapse into Series D+.
func ParseRoundStage(s string) (RoundStage, bool) {
	label := strings.ToLower(strings.Join(strings.Fields(s), " "))
	label = strings.ReplaceAll(label, "-", " ")

	switch label {
	case "pre seed", "preseed":
		return StagePreSeed, true
	case "seed":
		return StageSeed, true
	case "series a":
		return StageSeriesA, true
	case "series b":
		return StageSeriesB, true
	case "series c":
		return StageSeriesC, true
	case "series d", "series d+", "series e", "series f", "series g", "series h":
		return StageSeriesDPlus, true
	case "growth", "growth equity", "late stage":
		return StageGrowth, true
	case "acquisition", "acquired", "acquires", "merger":
		return StageAcquisition, true
	}
	return StageUnknown, false
}

// Record is the canonical intelligence record: a shared header plus exactly
// one kind-specific payload
type Record struct {
	ID                 string     `json:"id"`
	Kind               RecordKind `json:"kind"`
	Company            string     `json:"company"`                 // Display form, original casing
	AnnouncementDate   time.Time  `json:"announcement_date"`       // Calendar date at UTC midnight
	DateInferred       bool       `json:"date_inferred,omitempty"` // Date taken from observed_at, not the text
	SourceURL          string     `json:"source_url"`
	SourceName         string     `json:"source_name,omitempty"`
	SecondarySourceURL string     `json:"secondary_source_url,omitempty"` // Earlier source kept on conflict
	ObservedAt         time.Time  `json:"observed_at"`
	Details            string     `json:"details,omitempty"` // Source text fragments, accumulated on merge

	Commitment *CorporateCommitment `json:"commitment,omitempty"`
	Funding    *FundingEvent        `json:"funding,omitempty"`
}

// CorporateCommitment is a corporate sustainability pledge
type CorporateCommitment struct {
	CommitmentType     CommitmentType `json:"commitment_type"`
	TargetYear         *int           `json:"target_year,omitempty"`
	VolumeTonsCO2e     *float64       `json:"volume_tons_co2e,omitempty"`
	DovuOpportunity    string         `json:"dovu_opportunity,omitempty"`
	DovuRelevanceScore int            `json:"dovu_relevance_score"`
}

// FundingEvent is a capital raise or acquisition in the climate-tech space
type FundingEvent struct {
	RoundStage                  RoundStage `json:"round_stage,omitempty"`
	AmountUSD                   float64    `json:"amount_usd"`
	Investors                   []string   `json:"investors,omitempty"` // Set semantics, kept sorted
	Sector                      string     `json:"sector,omitempty"`
	BusinessModel               string     `json:"business_model,omitempty"`
	DovuRelevanceScore          int        `json:"dovu_relevance_score"`
	CompetitiveThreatScore      int        `json:"competitive_threat_score"`
	PartnershipOpportunityScore int        `json:"partnership_opportunity_score"`
}

// Clone returns a deep copy so stores can hand out snapshots
func (r Record) Clone() Record {
	out := r
	if r.Commitment != nil {
		c := *r.Commitment
		if c.TargetYear != nil {
			y := *c.TargetYear
			c.TargetYear = &y
		}
		if c.VolumeTonsCO2e != nil {
			v := *c.VolumeTonsCO2e
			c.VolumeTonsCO2e = &v
		}
		out.Commitment = &c
	}
	if r.Funding != nil {
		f := *r.Funding
		f.Investors = append([]string(nil), r.Funding.Investors...)
		out.Funding = &f
	}
	return out
}

// Relevance returns the DOVU relevance score regardless of kind
func (r Record) Relevance() int {
	switch {
	case r.Commitment != nil:
		return r.Commitment.DovuRelevanceScore
	case r.Funding != nil:
		return r.Funding.DovuRelevanceScore
	}
	return 0
}

// Threat returns the competitive threat score (0 for commitments)
func (r Record) Threat() int {
	if r.Funding != nil {
		return r.Funding.CompetitiveThreatScore
	}
	return 0
}

// Opportunity returns the partnership opportunity score (0 for commitments)
func (r Record) Opportunity() int {
	if r.Funding != nil {
		return r.Funding.PartnershipOpportunityScore
	}
	return 0
}

// Day truncates t to its UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v
func FloatPtr(v float64) *float64 { return &v }
