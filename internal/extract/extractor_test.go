package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(DefaultRules(), WithKnownSectors(model.DefaultConfig().Extraction.KnownSectors))
	require.NoError(t, err)
	return e
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtract_CommitmentScenario(t *testing.T) {
	e := newTestExtractor(t)

	rec, err := e.Extract(Snippet{
		Text:       "Microsoft reaffirms carbon-negative by 2030, removing 16 million tons CO2e",
		SourceURL:  "https://example.com/msft",
		SourceName: "example",
		ObservedAt: time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, model.KindCommitment, rec.Kind)
	assert.Equal(t, "Microsoft", rec.Company)
	assert.Equal(t, day(2024, 1, 10), rec.AnnouncementDate)
	require.NotNil(t, rec.Commitment)
	assert.Equal(t, model.CommitmentCarbonNegative, rec.Commitment.CommitmentType)
	require.NotNil(t, rec.Commitment.TargetYear)
	assert.Equal(t, 2030, *rec.Commitment.TargetYear)
	require.NotNil(t, rec.Commitment.VolumeTonsCO2e)
	assert.InDelta(t, 16_000_000, *rec.Commitment.VolumeTonsCO2e, 0.5)
	assert.Nil(t, rec.Funding)
	assert.Equal(t, model.ComputeID(rec), rec.ID)
}

func TestExtract_FundingScenario(t *testing.T) {
	e := newTestExtractor(t)

	rec, err := e.Extract(Snippet{
		Text:       "Persefoni raises $101M Series B led by Lightspeed",
		SourceURL:  "https://example.com/persefoni",
		ObservedAt: day(2021, 11, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, model.KindFunding, rec.Kind)
	assert.Equal(t, "Persefoni", rec.Company)
	assert.Equal(t, day(2021, 11, 1), rec.AnnouncementDate)
	require.NotNil(t, rec.Funding)
	assert.Equal(t, model.StageSeriesB, rec.Funding.RoundStage)
	assert.InDelta(t, 101_000_000, rec.Funding.AmountUSD, 0.5)
	assert.Contains(t, rec.Funding.Investors, "Lightspeed")
	assert.Equal(t, "carbon-accounting", rec.Funding.Sector)
}

func TestExtract_DescriptorPrefixSharesIdentity(t *testing.T) {
	e := newTestExtractor(t)
	obs := day(2021, 11, 1)

	plain, err := e.Extract(Snippet{Text: "Persefoni raises $101M Series B led by Lightspeed", ObservedAt: obs})
	require.NoError(t, err)
	described, err := e.Extract(Snippet{Text: "Boston-based Persefoni raises $101M Series B led by Lightspeed", ObservedAt: obs})
	require.NoError(t, err)

	assert.Equal(t, "Persefoni", described.Company)
	assert.Equal(t, "carbon-accounting", described.Funding.Sector)
	assert.Equal(t, plain.ID, described.ID)
}

func TestExtract_RuleVariants(t *testing.T) {
	e := newTestExtractor(t)
	observed := day(2024, 5, 1)

	tests := []struct {
		name      string
		text      string
		company   string
		stage     model.RoundStage
		amount    float64
		investors []string
		sector    string
	}{
		{
			name:      "investor leads round",
			text:      "Lowercarbon Capital leads $25M Series A in Sylvera",
			company:   "Sylvera",
			stage:     model.StageSeriesA,
			amount:    25_000_000,
			investors: []string{"Lowercarbon Capital"},
			sector:    "mrv",
		},
		{
			name:      "acquisition adds acquirer",
			text:      "Northern Trust acquires Carbon Ledger for $40 million to expand its registry tokenization platform",
			company:   "Carbon Ledger",
			stage:     model.StageAcquisition,
			amount:    40_000_000,
			investors: []string{"Northern Trust"},
			sector:    "tokenization",
		},
		{
			name:      "appositive and participation list",
			text:      "Sylvera, the carbon ratings provider, secures $57 million Series B led by Insight Partners, with participation from Index Ventures and Salesforce Ventures.",
			company:   "Sylvera",
			stage:     model.StageSeriesB,
			amount:    57_000_000,
			investors: []string{"Index Ventures", "Insight Partners", "Salesforce Ventures"},
			sector:    "mrv",
		},
		{
			name:    "leading filler word",
			text:    "Today Persefoni raises $5M in seed funding",
			company: "Persefoni",
			stage:   model.StageSeed,
			amount:  5_000_000,
			sector:  "carbon-accounting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := e.Extract(Snippet{Text: tt.text, ObservedAt: observed})
			require.NoError(t, err)
			require.NotNil(t, rec.Funding)

			assert.Equal(t, tt.company, rec.Company)
			assert.Equal(t, tt.stage, rec.Funding.RoundStage)
			assert.InDelta(t, tt.amount, rec.Funding.AmountUSD, 0.5)
			assert.Equal(t, tt.investors, rec.Funding.Investors)
			assert.Equal(t, tt.sector, rec.Funding.Sector)
		})
	}
}

func TestExtract_RegistryPartnership(t *testing.T) {
	e := newTestExtractor(t)

	rec, err := e.Extract(Snippet{
		Text:       "Acme Group partners with Verra registry to retire 500,000 tonnes of credits by 2030",
		ObservedAt: day(2024, 3, 1),
	})
	require.NoError(t, err)
	require.NotNil(t, rec.Commitment)

	assert.Equal(t, "Acme Group", rec.Company)
	assert.Equal(t, model.CommitmentRegistryPartnership, rec.Commitment.CommitmentType)
	require.NotNil(t, rec.Commitment.VolumeTonsCO2e)
	assert.InDelta(t, 500_000, *rec.Commitment.VolumeTonsCO2e, 0.5)
}

func TestExtract_Errors(t *testing.T) {
	e := newTestExtractor(t)
	observed := day(2024, 3, 1)

	tests := []struct {
		name    string
		snippet Snippet
		want    error
		field   string
	}{
		{
			name:    "no rule matches",
			snippet: Snippet{Text: "The weather was nice today.", ObservedAt: observed},
			want:    ErrNoPatternMatch,
		},
		{
			name:    "empty text",
			snippet: Snippet{Text: "   ", ObservedAt: observed},
			want:    ErrNoPatternMatch,
		},
		{
			name:    "commitment without year or volume",
			snippet: Snippet{Text: "Acme Corp pledges to cut emissions", ObservedAt: observed},
			want:    ErrMissingRequiredField,
			field:   "target_year|volume_tons_co2e",
		},
		{
			name:    "funding without amount",
			snippet: Snippet{Text: "Acme acquires Beta", ObservedAt: observed},
			want:    ErrMissingRequiredField,
			field:   "amount_usd",
		},
		{
			name:    "amount too large to hold",
			snippet: Snippet{Text: "Acme raises $" + strings.Repeat("9", 320) + " Series A", ObservedAt: observed},
			want:    ErrMissingRequiredField,
			field:   "amount_usd",
		},
		{
			name:    "no date and no observed time",
			snippet: Snippet{Text: "Acme Corp commits to net zero by 2040"},
			want:    ErrMissingRequiredField,
			field:   FieldDate,
		},
		{
			name:    "unparseable date and no observed time",
			snippet: Snippet{Text: "Acme Corp commits to net zero by 2040, announced 2024-02-31"},
			want:    ErrInvalidDate,
			field:   FieldDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(tt.snippet)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var extErr *ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, tt.field, extErr.Field)
		})
	}
}

func TestExtract_DateHandling(t *testing.T) {
	e := newTestExtractor(t)

	t.Run("date in text wins over observed", func(t *testing.T) {
		rec, err := e.Extract(Snippet{
			Text:       "Acme Corp pledges net-zero by 2040 in an announcement on March 3, 2024.",
			ObservedAt: day(2024, 6, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, day(2024, 3, 3), rec.AnnouncementDate)
		assert.False(t, rec.DateInferred)
	})

	t.Run("no date infers observed day", func(t *testing.T) {
		rec, err := e.Extract(Snippet{
			Text:       "Acme Corp pledges net-zero by 2040",
			ObservedAt: time.Date(2024, 6, 1, 17, 45, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, day(2024, 6, 1), rec.AnnouncementDate)
		assert.True(t, rec.DateInferred)
	})

	t.Run("bad date falls back to observed", func(t *testing.T) {
		rec, err := e.Extract(Snippet{
			Text:       "Acme Corp commits to net zero by 2040, announced 2024-02-31",
			ObservedAt: day(2024, 6, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, day(2024, 6, 1), rec.AnnouncementDate)
		assert.True(t, rec.DateInferred)
	})
}

func TestExtract_HTMLInput(t *testing.T) {
	e := newTestExtractor(t)

	rec, err := e.Extract(Snippet{
		Text:       `<html><head><title>x</title></head><body><script>var x = 1;</script><p>Microsoft reaffirms</p><p>carbon-negative by 2030</p></body></html>`,
		ObservedAt: day(2024, 1, 10),
	})
	require.NoError(t, err)

	assert.Equal(t, "Microsoft", rec.Company)
	assert.Equal(t, "Microsoft reaffirms carbon-negative by 2030", rec.Details)
}

func TestExtract_Deterministic(t *testing.T) {
	e := newTestExtractor(t)
	s := Snippet{
		Text:       "Sylvera, the carbon ratings provider, secures $57 million Series B led by Insight Partners, with participation from Index Ventures and Salesforce Ventures.",
		SourceURL:  "https://example.com/a",
		ObservedAt: day(2022, 4, 20),
	}

	first, err := e.Extract(s)
	require.NoError(t, err)
	second, err := e.Extract(s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtract_DetailsCapped(t *testing.T) {
	e, err := New(DefaultRules(), WithMaxDetails(20))
	require.NoError(t, err)

	rec, err := e.Extract(Snippet{
		Text:       "Microsoft reaffirms carbon-negative by 2030, removing 16 million tons CO2e",
		ObservedAt: day(2024, 1, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "Microsoft reaffirms...", rec.Details)
}

func TestNew_InvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"bad pattern", Rule{Name: "bad", Kind: model.KindFunding, Pattern: `(?P<company>[`}},
		{"unknown kind", Rule{Name: "kind", Kind: "grant", Pattern: `(?P<company>\w+)`}},
		{"unknown group", Rule{Name: "group", Kind: model.KindFunding, Pattern: `(?P<ceo>\w+)`}},
		{"required group missing", Rule{Name: "req", Kind: model.KindFunding, Pattern: `(?P<company>\w+)`, Required: []string{FieldAmount}}},
		{"unknown default", Rule{Name: "def", Kind: model.KindFunding, Pattern: `(?P<company>\w+)`, Defaults: map[string]string{"ceo": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]Rule{tt.rule})
			assert.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := `rules:
  - name: grant-award
    kind: funding
    triggers: [grant]
    pattern: '(?P<company>[A-Z]\w+) wins (?P<amount>\$\d+[MK]?) grant'
    required: [company, amount]
    defaults:
      sector: removal
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "grant-award", rules[0].Name)

	e, err := NewFromConfig(model.ExtractionConfig{RulesFile: path})
	require.NoError(t, err)

	rec, err := e.Extract(Snippet{Text: "Heirloom wins $3M grant from the DOE", ObservedAt: day(2024, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, "Heirloom", rec.Company)
	assert.Equal(t, "removal", rec.Funding.Sector)
	assert.InDelta(t, 3_000_000, rec.Funding.AmountUSD, 0.5)
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("rules: []\n"), 0644))
	_, err = LoadRules(empty)
	assert.Error(t, err)
}
