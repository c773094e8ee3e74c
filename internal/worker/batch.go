package worker

import (
	"context"
	"fmt"

	"github.com/ppiankov/carbonintel/internal/extract"
	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/score"
)

// Extractor turns one snippet into a candidate record
type Extractor interface {
	Extract(s extract.Snippet) (model.Record, error)
}

// Scorer annotates one record with its scores
type Scorer interface {
	Score(rec model.Record, in score.Inputs) (model.Record, error)
}

// ExtractJob represents the extraction of one snippet
type ExtractJob struct {
	Index     int
	Snippet   extract.Snippet
	Extractor Extractor
}

// Execute executes the extraction job. A panicking extractor fails only
// this snippet.
func (j *ExtractJob) Execute(ctx context.Context) (result Result) {
	if err := ctx.Err(); err != nil {
		return &ExtractResult{Index: j.Index, Snippet: j.Snippet, Error: err}
	}
	defer func() {
		if r := recover(); r != nil {
			result = &ExtractResult{Index: j.Index, Snippet: j.Snippet, Error: fmt.Errorf("extract panicked: %v", r)}
		}
	}()
	rec, err := j.Extractor.Extract(j.Snippet)
	return &ExtractResult{
		Index:   j.Index,
		Snippet: j.Snippet,
		Record:  rec,
		Error:   err,
	}
}

// ExtractResult represents the result of an extraction job
type ExtractResult struct {
	Index   int
	Snippet extract.Snippet
	Record  model.Record
	Error   error
}

// GetError returns the extraction error
func (r *ExtractResult) GetError() error {
	return r.Error
}

// Position returns the snippet's position in the batch
func (r *ExtractResult) Position() int {
	return r.Index
}

// ScoreJob represents scoring one stored record
type ScoreJob struct {
	Index  int
	Record model.Record
	Inputs score.Inputs
	Scorer Scorer
}

// Execute executes the scoring job
func (j *ScoreJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &ScoreResult{Index: j.Index, Before: j.Record, Error: err}
	}
	rec, err := j.Scorer.Score(j.Record, j.Inputs)
	return &ScoreResult{
		Index:  j.Index,
		Before: j.Record,
		Record: rec,
		Error:  err,
	}
}

// ScoreResult represents the result of a scoring job
type ScoreResult struct {
	Index  int
	Before model.Record
	Record model.Record
	Error  error
}

// GetError returns the scoring error
func (r *ScoreResult) GetError() error {
	return r.Error
}

// Position returns the record's position in the batch
func (r *ScoreResult) Position() int {
	return r.Index
}

// BatchProcessor runs extraction and scoring batches on a worker pool
type BatchProcessor struct {
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(concurrency int) *BatchProcessor {
	return &BatchProcessor{concurrency: concurrency}
}

// ExtractSnippets extracts every snippet concurrently; results keep the
// input order
func (b *BatchProcessor) ExtractSnippets(ctx context.Context, ex Extractor, snippets []extract.Snippet) []*ExtractResult {
	if len(snippets) == 0 {
		return []*ExtractResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, s := range snippets {
		pool.Submit(&ExtractJob{Index: i, Snippet: s, Extractor: ex})
	}

	results := pool.Wait()

	out := make([]*ExtractResult, len(results))
	for i, result := range results {
		out[i] = result.(*ExtractResult)
	}
	return out
}

// ScoreRecords scores every record concurrently with the inputs returned
// by inputs; results keep the input order
func (b *BatchProcessor) ScoreRecords(ctx context.Context, sc Scorer, records []model.Record, inputs func(model.Record) score.Inputs) []*ScoreResult {
	if len(records) == 0 {
		return []*ScoreResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, rec := range records {
		pool.Submit(&ScoreJob{Index: i, Record: rec, Inputs: inputs(rec), Scorer: sc})
	}

	results := pool.Wait()

	out := make([]*ScoreResult, len(results))
	for i, result := range results {
		out[i] = result.(*ScoreResult)
	}
	return out
}
