// Package identity decides whether a candidate record is new, a richer
// version of a stored record, or invalid
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/store"
	"go.uber.org/zap"
)

var (
	ErrFutureDateAfterMerge  = errors.New("merged announcement date is in the future")
	ErrCorruptExistingRecord = errors.New("stored record is corrupt")
)

// Action is the outcome of resolving a candidate
type Action string

const (
	ActionInsert Action = "insert"
	ActionMerge  Action = "merge"
	ActionReject Action = "reject"
)

// Resolution describes what should happen to a candidate
type Resolution struct {
	Action     Action
	ExistingID string       // Stored record the candidate matched, for merges
	Record     model.Record // Record to persist; empty on reject
	Reason     string       // Why the candidate was rejected
	Err        error        // Rejection cause, wraps a sentinel
	Changed    []string     // Fields a merge changed; empty means no new information
	Similar    bool         // Matched on the secondary similarity key
}

// Unchanged reports a merge that added nothing
func (r Resolution) Unchanged() bool {
	return r.Action == ActionMerge && len(r.Changed) == 0
}

// Annotate post-processes a resolved record before it is persisted
type Annotate func(model.Record) (model.Record, error)

// Resolver deduplicates candidates against a store
type Resolver struct {
	store      store.Store
	maxDetails int
	logger     *zap.Logger
	locks      *keyedMutex
}

// Option configures a Resolver
type Option func(*Resolver)

// WithMaxDetails caps the accumulated details text
func WithMaxDetails(n int) Option {
	return func(r *Resolver) { r.maxDetails = n }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a resolver over s
func New(s store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:      s,
		maxDetails: 2000,
		logger:     zap.NewNop(),
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve decides Insert, Merge or Reject for cand. The returned error is
// reserved for store failures; invalid candidates come back as Reject.
func (r *Resolver) Resolve(ctx context.Context, cand model.Record, now time.Time) (Resolution, error) {
	cand = cand.Clone()
	if cand.ID == "" {
		cand.ID = model.ComputeID(cand)
	}

	existing, similar, err := r.lookup(ctx, cand)
	if errors.Is(err, store.ErrCorrupt) {
		return reject(fmt.Errorf("%w: %s: %w", ErrCorruptExistingRecord, cand.ID, err)), nil
	}
	if errors.Is(err, store.ErrNotFound) {
		if err := cand.Validate(now); err != nil {
			return reject(err), nil
		}
		return Resolution{Action: ActionInsert, Record: cand}, nil
	}
	if err != nil {
		return Resolution{}, err
	}

	if err := checkExisting(existing); err != nil {
		return reject(fmt.Errorf("%w: %s: %v", ErrCorruptExistingRecord, existing.ID, err)), nil
	}
	if existing.Kind != cand.Kind {
		return reject(fmt.Errorf("%w: candidate kind %s, stored %s", model.ErrPayloadMismatch, cand.Kind, existing.Kind)), nil
	}

	merged, changed := merge(existing, cand, r.maxDetails)
	if err := merged.Validate(now); err != nil {
		if errors.Is(err, model.ErrFutureDate) {
			err = fmt.Errorf("%w: %v", ErrFutureDateAfterMerge, err)
		}
		return reject(err), nil
	}

	r.logger.Debug("candidate merged",
		zap.String("id", existing.ID),
		zap.String("candidate_id", cand.ID),
		zap.Bool("similar", similar),
		zap.Strings("changed", changed),
	)

	return Resolution{
		Action:     ActionMerge,
		ExistingID: existing.ID,
		Record:     merged,
		Changed:    changed,
		Similar:    similar,
	}, nil
}

// Apply resolves cand and persists the outcome while holding the lock for
// its (kind, company) key. annotate, when set, runs on the record before
// it is written.
func (r *Resolver) Apply(ctx context.Context, cand model.Record, now time.Time, annotate Annotate) (Resolution, error) {
	unlock := r.locks.Lock(lockKey(cand))
	defer unlock()

	res, err := r.Resolve(ctx, cand, now)
	if err != nil || res.Action == ActionReject {
		return res, err
	}

	if annotate != nil {
		rec, err := annotate(res.Record)
		if err != nil {
			return reject(err), nil
		}
		res.Record = rec
	}

	if err := r.store.Put(ctx, res.Record); err != nil {
		return Resolution{}, fmt.Errorf("persist %s: %w", res.Record.ID, err)
	}
	return res, nil
}

// lookup finds the stored record for cand by id, then by similarity key
func (r *Resolver) lookup(ctx context.Context, cand model.Record) (model.Record, bool, error) {
	rec, err := r.store.Get(ctx, cand.ID)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Record{}, false, fmt.Errorf("get %s: %w", cand.ID, err)
	}

	key := model.SimilarityKey(cand)
	filter := store.Filter{Kind: cand.Kind, Company: cand.Company, On: cand.AnnouncementDate}
	matches, err := store.Find(ctx, r.store, filter, func(rec model.Record) bool {
		return model.SimilarityKey(rec) == key
	})
	if err != nil {
		return model.Record{}, false, fmt.Errorf("scan similar %s: %w", key, err)
	}
	if len(matches) == 0 {
		return model.Record{}, false, store.ErrNotFound
	}

	// Scan orders by id, so the oldest-keyed match is stable
	return matches[0], true, nil
}

// checkExisting applies the structural checks a stored record must pass
func checkExisting(rec model.Record) error {
	if rec.ID == "" {
		return errors.New("empty id")
	}
	if model.NormalizeCompany(rec.Company) == "" {
		return model.ErrMissingCompany
	}
	if rec.AnnouncementDate.IsZero() {
		return model.ErrMissingDate
	}
	switch rec.Kind {
	case model.KindCommitment:
		if rec.Commitment == nil || rec.Funding != nil {
			return model.ErrPayloadMismatch
		}
	case model.KindFunding:
		if rec.Funding == nil || rec.Commitment != nil {
			return model.ErrPayloadMismatch
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", model.ErrPayloadMismatch, rec.Kind)
	}
	return nil
}

func lockKey(rec model.Record) string {
	return string(rec.Kind) + "|" + model.NormalizeCompany(rec.Company)
}

func reject(err error) Resolution {
	return Resolution{Action: ActionReject, Reason: err.Error(), Err: err}
}
