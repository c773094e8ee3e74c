package score

import (
	"math"
	"testing"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(model.DefaultRubric())
	require.NoError(t, err)
	return s
}

func microsoftCommitment() model.Record {
	return model.Record{
		ID:               "c1",
		Kind:             model.KindCommitment,
		Company:          "Microsoft",
		AnnouncementDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Details:          "Microsoft commits to being carbon negative by 2030.",
		Commitment: &model.CorporateCommitment{
			CommitmentType: model.CommitmentCarbonNegative,
			TargetYear:     model.IntPtr(2030),
		},
	}
}

func persefoniFunding() model.Record {
	return model.Record{
		ID:               "f1",
		Kind:             model.KindFunding,
		Company:          "Persefoni",
		AnnouncementDate: time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		Details:          "Persefoni raises $101M Series B led by Lightspeed.",
		Funding: &model.FundingEvent{
			RoundStage: model.StageSeriesB,
			AmountUSD:  101_000_000,
			Investors:  []string{"Lightspeed"},
			Sector:     "carbon-accounting",
		},
	}
}

func TestScorer_Commitment(t *testing.T) {
	s := newTestScorer(t)

	out, err := s.Score(microsoftCommitment(), Inputs{})
	require.NoError(t, err)

	// type 50 + urgency 20
	assert.Equal(t, 70, out.Commitment.DovuRelevanceScore)
	assert.Equal(t, "Comprehensive Decarbonization Platform - end-to-end carbon management", out.Commitment.DovuOpportunity)
}

func TestScorer_CommitmentUrgencyTiers(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		year *int
		want int
	}{
		{model.IntPtr(2030), 70},
		{model.IntPtr(2035), 60},
		{model.IntPtr(2040), 60},
		{model.IntPtr(2050), 50},
		{nil, 50},
	}

	for _, tt := range tests {
		rec := microsoftCommitment()
		rec.Commitment.TargetYear = tt.year
		out, err := s.Score(rec, Inputs{})
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.Commitment.DovuRelevanceScore)
	}
}

func TestScorer_DovuOpportunityLabels(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		details string
		ctype   model.CommitmentType
		prefix  string
	}{
		{"cutting scope 3 emissions across its supply chain", model.CommitmentNetZero, "Supply Chain Carbon Management"},
		{"buying carbon credits from the voluntary market", model.CommitmentOther, "Carbon Credit Procurement"},
		{"pledges net zero", model.CommitmentNetZero, "Comprehensive Decarbonization Platform"},
		{"will publish an emissions inventory", model.CommitmentScopeReduction, "Carbon Measurement & Reporting"},
	}

	for _, tt := range tests {
		rec := microsoftCommitment()
		rec.Details = tt.details
		rec.Commitment.CommitmentType = tt.ctype
		out, err := s.Score(rec, Inputs{})
		require.NoError(t, err)
		assert.Contains(t, out.Commitment.DovuOpportunity, tt.prefix, tt.details)
	}
}

func TestScorer_Funding(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()

	out, err := s.Score(rec, Inputs{Now: rec.AnnouncementDate.AddDate(0, 0, 3)})
	require.NoError(t, err)

	// sector 40 + stage 20 + top-tier investor 10
	assert.Equal(t, 70, out.Funding.DovuRelevanceScore)
	// overlap 40 + capital 40*log10(1+101e6)/log10(1+1e9)
	assert.Equal(t, 76, out.Funding.CompetitiveThreatScore)
	// complementary 20 + stage openness 20
	assert.Equal(t, 40, out.Funding.PartnershipOpportunityScore)

	// Input record is untouched
	assert.Zero(t, rec.Funding.DovuRelevanceScore)
}

func TestScorer_BoundsAcrossAmounts(t *testing.T) {
	s := newTestScorer(t)

	for _, amount := range []float64{0, 1, 1e6, 1e10} {
		rec := persefoniFunding()
		rec.Funding.AmountUSD = amount
		rec.Details = "carbon credit platform, tokenized carbon on blockchain for enterprise supply chain"
		out, err := s.Score(rec, Inputs{PriorRaisedUSD: amount})
		require.NoError(t, err)

		for _, v := range []int{out.Funding.DovuRelevanceScore, out.Funding.CompetitiveThreatScore, out.Funding.PartnershipOpportunityScore} {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 100)
		}
	}
}

func TestScorer_UnknownSectorUsesMidpoint(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()
	rec.Funding.Sector = ""

	b, err := s.Explain(rec, Inputs{})
	require.NoError(t, err)

	sig := findSignal(t, b, model.SignalSectorMatch)
	assert.Equal(t, 20.0, sig.Points)
	assert.Equal(t, model.SeverityWarning, sig.Severity)
}

func TestScorer_NoInvestorsNoBonus(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()
	rec.Funding.Investors = nil

	b, err := s.Explain(rec, Inputs{})
	require.NoError(t, err)

	sig := findSignal(t, b, model.SignalInvestorTier)
	assert.Zero(t, sig.Points)
	assert.Equal(t, 60, b.Relevance)
}

func TestScorer_InvestorMatchIsCaseInsensitive(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()
	rec.Funding.Investors = []string{"LIGHTSPEED VENTURE PARTNERS"}

	b, err := s.Explain(rec, Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, findSignal(t, b, model.SignalInvestorTier).Points)
}

func TestScorer_InvestorFragmentsAreNotTopTier(t *testing.T) {
	s := newTestScorer(t)

	for _, inv := range []string{"Energy", "Capital", "Ventures", "Light", "Khosla", "Lightspeedy Fund"} {
		rec := persefoniFunding()
		rec.Funding.Investors = []string{inv}

		b, err := s.Explain(rec, Inputs{})
		require.NoError(t, err)
		assert.Zero(t, findSignal(t, b, model.SignalInvestorTier).Points, inv)
	}
}

func TestScorer_InvestorMatchIgnoresLegalSuffix(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()
	rec.Funding.Investors = []string{"Khosla Ventures LLC"}

	b, err := s.Explain(rec, Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, findSignal(t, b, model.SignalInvestorTier).Points)
}

func TestScorer_ThreatDecay(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()

	fresh, err := s.Explain(rec, Inputs{Now: rec.AnnouncementDate.AddDate(0, 0, 30)})
	require.NoError(t, err)
	atHorizon, err := s.Explain(rec, Inputs{Now: rec.AnnouncementDate.AddDate(0, 0, 365)})
	require.NoError(t, err)
	oneHalfLife, err := s.Explain(rec, Inputs{Now: rec.AnnouncementDate.AddDate(0, 0, 365+180)})
	require.NoError(t, err)
	stale, err := s.Explain(rec, Inputs{Now: rec.AnnouncementDate.AddDate(5, 0, 0)})
	require.NoError(t, err)

	assert.Equal(t, fresh.Threat, atHorizon.Threat)
	assert.Equal(t, 38, oneHalfLife.Threat)
	assert.Less(t, stale.Threat, oneHalfLife.Threat)

	// Decay only touches threat
	assert.Equal(t, fresh.Relevance, stale.Relevance)
	assert.Equal(t, fresh.Opportunity, stale.Opportunity)

	sig := findSignal(t, stale, model.SignalRecency)
	assert.Less(t, sig.Points, 0.0)
	assert.Equal(t, model.SeverityWarning, sig.Severity)
}

func TestScorer_PriorCapitalRaisesThreat(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()
	rec.Funding.AmountUSD = 5_000_000

	alone, err := s.Explain(rec, Inputs{})
	require.NoError(t, err)
	backed, err := s.Explain(rec, Inputs{PriorRaisedUSD: 500_000_000})
	require.NoError(t, err)

	assert.Greater(t, backed.Threat, alone.Threat)
}

func TestScorer_SignalsCarryFormula(t *testing.T) {
	s := newTestScorer(t)

	b, err := s.Explain(persefoniFunding(), Inputs{})
	require.NoError(t, err)
	require.NotEmpty(t, b.Signals)

	var sum float64
	for _, sig := range b.Signals {
		assert.Contains(t, sig.Data, "formula", sig.Type)
		assert.NotEmpty(t, sig.Description)
		if sig.Score == model.ScoreRelevance {
			sum += sig.Points
		}
	}
	assert.Equal(t, b.Relevance, int(math.Round(sum)))
}

func TestScorer_Deterministic(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()
	in := Inputs{Now: rec.AnnouncementDate.AddDate(1, 6, 0), PriorRaisedUSD: 20_000_000}

	first, err := s.Explain(rec, in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Explain(rec, in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScorer_PayloadMismatch(t *testing.T) {
	s := newTestScorer(t)
	rec := persefoniFunding()
	rec.Kind = model.KindCommitment

	_, err := s.Score(rec, Inputs{})
	assert.ErrorIs(t, err, model.ErrPayloadMismatch)
}

func TestScorer_CustomRubric(t *testing.T) {
	r := model.DefaultRubric()
	r.Funding.SectorWeights = map[string]float64{"Carbon-Accounting": 90}
	r.Funding.Description = nil
	r.Funding.StageWeights = map[string]float64{}
	r.Funding.InvestorBonus = 0

	s, err := New(r)
	require.NoError(t, err)

	out, err := s.Score(persefoniFunding(), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 90, out.Funding.DovuRelevanceScore)

	// The default scorer is unaffected
	def := newTestScorer(t)
	out, err = def.Score(persefoniFunding(), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 70, out.Funding.DovuRelevanceScore)
}

func TestValidateRubric(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Rubric)
		field  string
	}{
		{"negative scalar", func(r *model.Rubric) { r.Threat.CapitalWeight = -1 }, "threat.capital_weight"},
		{"negative table entry", func(r *model.Rubric) { r.Funding.SectorWeights["mrv"] = -5 }, "funding.sector_weights.mrv"},
		{"negative description", func(r *model.Rubric) { r.Funding.Description[1].Weight = -2 }, "funding.description[1].weight"},
		{"zero half life", func(r *model.Rubric) { r.Threat.HalfLifeDays = 0 }, "threat.half_life_days"},
		{"negative horizon", func(r *model.Rubric) { r.Threat.HorizonDays = -1 }, "threat.horizon_days"},
		{"zero saturation", func(r *model.Rubric) { r.Threat.CapitalSaturationUSD = 0 }, "threat.capital_saturation_usd"},
		{"urgent after near", func(r *model.Rubric) { r.Commitment.UrgentYear = 2050 }, "commitment.urgent_year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := model.DefaultRubric()
			tt.mutate(&r)

			_, err := New(r)
			var se *ScoringError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.field, se.Field)
		})
	}

	assert.NoError(t, ValidateRubric(model.DefaultRubric()))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-12))
	assert.Equal(t, 100, clampScore(140))
	assert.Equal(t, 76, clampScore(75.6))
	assert.Equal(t, 0, clampScore(math.NaN()))
}

func findSignal(t *testing.T, b Breakdown, typ model.SignalType) model.Signal {
	t.Helper()
	for _, sig := range b.Signals {
		if sig.Type == typ {
			return sig
		}
	}
	t.Fatalf("signal %s not found", typ)
	return model.Signal{}
}
