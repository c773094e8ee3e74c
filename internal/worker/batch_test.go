package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/carbonintel/internal/extract"
	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExtractor echoes the snippet text into the company field
type mockExtractor struct{}

func (mockExtractor) Extract(s extract.Snippet) (model.Record, error) {
	time.Sleep(time.Millisecond) // Simulate work
	if strings.HasPrefix(s.Text, "bad") {
		return model.Record{}, extract.ErrNoPatternMatch
	}
	return model.Record{Kind: model.KindFunding, Company: s.Text, Funding: &model.FundingEvent{}}, nil
}

// mockScorer gives every record a relevance equal to its amount
type mockScorer struct{}

func (mockScorer) Score(rec model.Record, in score.Inputs) (model.Record, error) {
	if rec.Funding == nil {
		return model.Record{}, errors.New("no payload")
	}
	out := rec.Clone()
	out.Funding.DovuRelevanceScore = int(rec.Funding.AmountUSD + in.PriorRaisedUSD)
	return out, nil
}

func TestBatchProcessor_ExtractSnippets(t *testing.T) {
	processor := NewBatchProcessor(3)

	snippets := []extract.Snippet{{Text: "Persefoni"}, {Text: "bad input"}, {Text: "Sylvera"}, {Text: "Pachama"}}
	results := processor.ExtractSnippets(context.Background(), mockExtractor{}, snippets)

	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, snippets[i], res.Snippet)
	}
	assert.Equal(t, "Persefoni", results[0].Record.Company)
	assert.ErrorIs(t, results[1].GetError(), extract.ErrNoPatternMatch)
	assert.Equal(t, "Pachama", results[3].Record.Company)
}

func TestBatchProcessor_ExtractSnippets_Empty(t *testing.T) {
	results := NewBatchProcessor(2).ExtractSnippets(context.Background(), mockExtractor{}, nil)
	assert.Empty(t, results)
}

func TestBatchProcessor_ExtractSnippets_RealExtractor(t *testing.T) {
	ex, err := extract.New(extract.DefaultRules())
	require.NoError(t, err)

	obs := time.Date(2021, 11, 1, 10, 0, 0, 0, time.UTC)
	snippets := make([]extract.Snippet, 20)
	for i := range snippets {
		snippets[i] = extract.Snippet{Text: "Persefoni raises $101M Series B led by Lightspeed", ObservedAt: obs}
	}

	results := NewBatchProcessor(4).ExtractSnippets(context.Background(), ex, snippets)
	require.Len(t, results, 20)
	for _, res := range results {
		require.NoError(t, res.GetError())
		assert.Equal(t, results[0].Record, res.Record)
	}
}

func TestBatchProcessor_ScoreRecords(t *testing.T) {
	records := []model.Record{
		{ID: "a", Funding: &model.FundingEvent{AmountUSD: 10}},
		{ID: "b"},
		{ID: "c", Funding: &model.FundingEvent{AmountUSD: 30}},
	}

	results := NewBatchProcessor(2).ScoreRecords(context.Background(), mockScorer{}, records, func(r model.Record) score.Inputs {
		return score.Inputs{PriorRaisedUSD: 5}
	})

	require.Len(t, results, 3)
	assert.Equal(t, 15, results[0].Record.Funding.DovuRelevanceScore)
	assert.Zero(t, results[0].Before.Funding.DovuRelevanceScore)
	assert.Error(t, results[1].GetError())
	assert.Equal(t, "c", results[2].Before.ID)
	assert.Equal(t, 35, results[2].Record.Funding.DovuRelevanceScore)
}

func TestExtractJob_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &ExtractJob{Index: 7, Snippet: extract.Snippet{Text: "Persefoni"}, Extractor: mockExtractor{}}
	res := job.Execute(ctx).(*ExtractResult)
	assert.ErrorIs(t, res.GetError(), context.Canceled)
	assert.Equal(t, 7, res.Position())
}

// panickyExtractor blows up on snippets starting with "boom"
type panickyExtractor struct{ mockExtractor }

func (p panickyExtractor) Extract(s extract.Snippet) (model.Record, error) {
	if strings.HasPrefix(s.Text, "boom") {
		panic("unexpected input")
	}
	return p.mockExtractor.Extract(s)
}

func TestBatchProcessor_ExtractSnippets_PanicFailsOneSnippet(t *testing.T) {
	snippets := []extract.Snippet{{Text: "Persefoni"}, {Text: "boom"}, {Text: "Sylvera"}}
	results := NewBatchProcessor(2).ExtractSnippets(context.Background(), panickyExtractor{}, snippets)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].GetError())
	assert.ErrorContains(t, results[1].GetError(), "unexpected input")
	assert.Equal(t, "Sylvera", results[2].Record.Company)
}
