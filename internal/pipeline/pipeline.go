package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/carbonintel/internal/extract"
	"github.com/ppiankov/carbonintel/internal/identity"
	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/score"
	"github.com/ppiankov/carbonintel/internal/store"
	"github.com/ppiankov/carbonintel/internal/worker"
	"go.uber.org/zap"
)

// Pipeline orchestrates extraction, resolution, scoring and persistence
type Pipeline struct {
	extractor *extract.Extractor
	resolver  *identity.Resolver
	scorer    *score.Scorer
	store     store.Store
	batch     *worker.BatchProcessor
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock replaces time.Now; tests pin it
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithMetrics records run metrics on m
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline builds a pipeline over s from cfg. An invalid rubric or rule
// set fails here, before anything is ingested.
func NewPipeline(cfg *model.Config, s store.Store, opts ...Option) (*Pipeline, error) {
	scorer, err := score.New(cfg.Rubric)
	if err != nil {
		return nil, err
	}
	extractor, err := extract.NewFromConfig(cfg.Extraction)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		extractor: extractor,
		scorer:    scorer,
		store:     s,
		batch:     worker.NewBatchProcessor(cfg.Concurrency.Workers),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	p.logger = p.logger.Named("pipeline")

	p.resolver = identity.New(s,
		identity.WithMaxDetails(cfg.Extraction.MaxDetails),
		identity.WithLogger(p.logger.Named("identity")),
	)
	return p, nil
}

// Metrics returns the pipeline's collectors
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// Scorer returns the scorer bound to the configured rubric
func (p *Pipeline) Scorer() *score.Scorer {
	return p.scorer
}

// Ingest extracts every snippet in parallel, then resolves, scores and
// persists the candidates one at a time in input order. Per-item failures
// land in the report; only store failures abort the run.
func (p *Pipeline) Ingest(ctx context.Context, snippets []extract.Snippet) (*RunReport, error) {
	start := time.Now()
	now := p.now()
	report := &RunReport{StartedAt: now, Snippets: len(snippets)}
	defer func() {
		report.Duration = time.Since(start)
		p.metrics.RunDuration.WithLabelValues("ingest").Observe(report.Duration.Seconds())
	}()

	results := p.batch.ExtractSnippets(ctx, p.extractor, snippets)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, res := range results {
		if err := res.GetError(); err != nil {
			reason := extract.Reason(err)
			report.fail(res.Index, res.Snippet.SourceURL, "extract", reason, err)
			p.metrics.ExtractionFailures.WithLabelValues(reason).Inc()
			p.metrics.Outcomes.WithLabelValues("unknown", "failed").Inc()
			p.logger.Debug("extraction failed",
				zap.Int("index", res.Index),
				zap.String("source_url", res.Snippet.SourceURL),
				zap.Error(err),
			)
			continue
		}

		cand := res.Record
		resolution, err := p.resolver.Apply(ctx, cand, now, func(rec model.Record) (model.Record, error) {
			in, err := p.inputs(ctx, rec, now)
			if err != nil {
				return model.Record{}, err
			}
			return p.scorer.Score(rec, in)
		})
		if err != nil {
			return report, fmt.Errorf("ingest snippet %d: %w", res.Index, err)
		}

		outcome := report.count(resolution)
		if resolution.Action == identity.ActionReject {
			report.fail(res.Index, res.Snippet.SourceURL, "resolve", "rejected", resolution.Err)
		}
		p.metrics.Outcomes.WithLabelValues(string(cand.Kind), outcome).Inc()
	}

	p.updateStoreSize(ctx)
	p.logger.Info("ingest finished",
		zap.Int("snippets", report.Snippets),
		zap.Int("inserted", report.Inserted),
		zap.Int("merged", report.Merged),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("rejected", report.Rejected),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Rescore recomputes every stored record's scores against the current
// rubric and clock, writing back only records whose scores moved
func (p *Pipeline) Rescore(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	now := p.now()
	report := &RunReport{StartedAt: now}
	defer func() {
		report.Duration = time.Since(start)
		p.metrics.RunDuration.WithLabelValues("rescore").Observe(report.Duration.Seconds())
	}()

	records, err := p.store.Scan(ctx, store.All)
	if err != nil {
		return report, fmt.Errorf("rescore scan: %w", err)
	}

	results := p.batch.ScoreRecords(ctx, p.scorer, records, func(rec model.Record) score.Inputs {
		return score.Inputs{Now: now, PriorRaisedUSD: priorRaised(records, rec)}
	})

	for _, res := range results {
		if err := res.GetError(); err != nil {
			report.fail(res.Index, res.Before.SourceURL, "score", "score_error", err)
			continue
		}
		if sameScores(res.Before, res.Record) {
			report.Unchanged++
			continue
		}
		if err := p.store.Put(ctx, res.Record); err != nil {
			return report, fmt.Errorf("rescore %s: %w", res.Record.ID, err)
		}
		report.Rescored++
	}

	p.updateStoreSize(ctx)
	p.logger.Info("rescore finished",
		zap.Int("records", len(records)),
		zap.Int("rescored", report.Rescored),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Explain returns the stored record and its current score breakdown
func (p *Pipeline) Explain(ctx context.Context, id string) (model.Record, score.Breakdown, error) {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return model.Record{}, score.Breakdown{}, fmt.Errorf("explain %s: %w", id, err)
	}
	now := p.now()
	in, err := p.inputs(ctx, rec, now)
	if err != nil {
		return model.Record{}, score.Breakdown{}, err
	}
	b, err := p.scorer.Explain(rec, in)
	return rec, b, err
}

// inputs gathers the scoring context for rec from the store
func (p *Pipeline) inputs(ctx context.Context, rec model.Record, now time.Time) (score.Inputs, error) {
	in := score.Inputs{Now: now}
	if rec.Kind != model.KindFunding {
		return in, nil
	}

	history, err := store.Find(ctx, p.store, store.Filter{Kind: model.KindFunding, Company: rec.Company}, nil)
	if err != nil {
		return in, fmt.Errorf("scan funding history: %w", err)
	}
	in.PriorRaisedUSD = priorRaised(history, rec)
	return in, nil
}

// priorRaised sums the company's earlier raises, excluding rec itself and
// acquisitions
func priorRaised(records []model.Record, rec model.Record) float64 {
	if rec.Kind != model.KindFunding {
		return 0
	}
	company := model.NormalizeCompany(rec.Company)

	var total float64
	for _, r := range records {
		if r.ID == rec.ID || r.Kind != model.KindFunding || r.Funding == nil {
			continue
		}
		if r.Funding.RoundStage == model.StageAcquisition || model.NormalizeCompany(r.Company) != company {
			continue
		}
		if r.AnnouncementDate.Before(rec.AnnouncementDate) {
			total += r.Funding.AmountUSD
		}
	}
	return total
}

func sameScores(a, b model.Record) bool {
	if a.Relevance() != b.Relevance() || a.Threat() != b.Threat() || a.Opportunity() != b.Opportunity() {
		return false
	}
	if a.Commitment != nil && b.Commitment != nil {
		return a.Commitment.DovuOpportunity == b.Commitment.DovuOpportunity
	}
	return true
}

func (p *Pipeline) updateStoreSize(ctx context.Context) {
	n := 0
	if _, err := p.store.Scan(ctx, func(model.Record) bool { n++; return false }); err != nil {
		p.logger.Warn("count stored records", zap.Error(err))
		return
	}
	p.metrics.StoredRecords.Set(float64(n))
}
