// Package query serves time-windowed views and aggregates over the store
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/store"
	"go.uber.org/zap"
)

// ErrOutOfRangeWindow marks a requested window that had to be clamped.
// Services only log it at debug level and answer with the clamped window.
var ErrOutOfRangeWindow = errors.New("window out of range")

// Request selects records for Query and Summarize
type Request struct {
	WindowDays     int       // Clamped to the configured bounds; 0 means the default
	Now            time.Time // Evaluation clock; zero means time.Now()
	Kind           model.RecordKind
	CommitmentType model.CommitmentType
	Sector         string
	MinRelevance   int
	MinThreat      int
	MinOpportunity int
	Limit          int // 0 means unlimited
}

// Service answers queries against a store
type Service struct {
	store  store.Store
	cfg    model.QueryConfig
	logger *zap.Logger
}

// New creates a query service
func New(s store.Store, cfg model.QueryConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, cfg: cfg, logger: logger.Named("query")}
}

// Clamp bounds days to [cfg.MinDays, cfg.MaxDays], substituting the default
// for 0. The error only reports that clamping happened.
func Clamp(cfg model.QueryConfig, days int) (int, error) {
	if days == 0 {
		days = cfg.DefaultDays
	}
	switch {
	case days < cfg.MinDays:
		return cfg.MinDays, fmt.Errorf("%w: %d < %d", ErrOutOfRangeWindow, days, cfg.MinDays)
	case cfg.MaxDays > 0 && days > cfg.MaxDays:
		return cfg.MaxDays, fmt.Errorf("%w: %d > %d", ErrOutOfRangeWindow, days, cfg.MaxDays)
	}
	return days, nil
}

// window resolves the request clock and day bounds
func (s *Service) window(req Request) (days int, now, cutoff time.Time) {
	days, err := Clamp(s.cfg, req.WindowDays)
	if err != nil {
		s.logger.Debug("window clamped", zap.Int("requested", req.WindowDays), zap.Int("days", days), zap.Error(err))
	}
	now = req.Now
	if now.IsZero() {
		now = time.Now()
	}
	return days, now, model.Day(now).AddDate(0, 0, -days)
}

// Query returns the records inside the window matching the request filters,
// newest first with ties broken by id
func (s *Service) Query(ctx context.Context, req Request) ([]model.Record, error) {
	_, _, cutoff := s.window(req)

	records, err := s.collect(ctx, req, cutoff)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}
	return records, nil
}

func (s *Service) collect(ctx context.Context, req Request, cutoff time.Time) ([]model.Record, error) {
	filter := store.Filter{Kind: req.Kind, Since: cutoff}
	records, err := store.Find(ctx, s.store, filter, func(r model.Record) bool {
		return !r.AnnouncementDate.Before(cutoff) && req.matches(r)
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	SortNewestFirst(records)
	return records, nil
}

func (req Request) matches(r model.Record) bool {
	if req.Kind != "" && r.Kind != req.Kind {
		return false
	}
	if req.CommitmentType != "" && (r.Commitment == nil || r.Commitment.CommitmentType != req.CommitmentType) {
		return false
	}
	if req.Sector != "" && (r.Funding == nil || !strings.EqualFold(r.Funding.Sector, req.Sector)) {
		return false
	}
	return r.Relevance() >= req.MinRelevance &&
		(req.MinThreat == 0 || r.Threat() >= req.MinThreat) &&
		(req.MinOpportunity == 0 || r.Opportunity() >= req.MinOpportunity)
}

// SortNewestFirst orders by descending announcement date, then ascending id
func SortNewestFirst(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := records[i].AnnouncementDate, records[j].AnnouncementDate
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return records[i].ID < records[j].ID
	})
}
