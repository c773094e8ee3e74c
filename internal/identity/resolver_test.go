package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan10 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	now   = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
)

func microsoft() model.Record {
	rec := model.Record{
		Kind:             model.KindCommitment,
		Company:          "Microsoft",
		AnnouncementDate: jan10,
		SourceURL:        "https://news.example/url1",
		SourceName:       "newswire",
		ObservedAt:       jan10,
		Details:          "Microsoft reaffirms carbon-negative by 2030, removing 16 million tons CO2e",
		Commitment: &model.CorporateCommitment{
			CommitmentType: model.CommitmentCarbonNegative,
			TargetYear:     model.IntPtr(2030),
			VolumeTonsCO2e: model.FloatPtr(16e6),
		},
	}
	rec.ID = model.ComputeID(rec)
	return rec
}

func persefoni() model.Record {
	rec := model.Record{
		Kind:             model.KindFunding,
		Company:          "Persefoni",
		AnnouncementDate: time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		SourceURL:        "https://news.example/persefoni",
		ObservedAt:       time.Date(2021, 11, 1, 9, 0, 0, 0, time.UTC),
		Details:          "Persefoni raises $101M Series B led by Lightspeed",
		Funding: &model.FundingEvent{
			RoundStage: model.StageSeriesB,
			AmountUSD:  101_000_000,
			Investors:  []string{"Lightspeed"},
		},
	}
	rec.ID = model.ComputeID(rec)
	return rec
}

func TestResolve_InsertWhenAbsent(t *testing.T) {
	r := New(store.NewMemoryStore())

	res, err := r.Resolve(context.Background(), microsoft(), now)
	require.NoError(t, err)
	assert.Equal(t, ActionInsert, res.Action)
	assert.Equal(t, microsoft().ID, res.Record.ID)
}

func TestResolve_ComputesMissingID(t *testing.T) {
	r := New(store.NewMemoryStore())
	cand := microsoft()
	cand.ID = ""

	res, err := r.Resolve(context.Background(), cand, now)
	require.NoError(t, err)
	assert.Equal(t, microsoft().ID, res.Record.ID)
}

func TestResolve_RejectsInvalidCandidate(t *testing.T) {
	r := New(store.NewMemoryStore())
	cand := microsoft()
	cand.AnnouncementDate = now.AddDate(0, 0, 5)

	res, err := r.Resolve(context.Background(), cand, now)
	require.NoError(t, err)
	assert.Equal(t, ActionReject, res.Action)
	assert.ErrorIs(t, res.Err, model.ErrFutureDate)
	assert.NotEmpty(t, res.Reason)
}

func TestApply_IdempotentIngestion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := New(s)

	first, err := r.Apply(ctx, microsoft(), now, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionInsert, first.Action)

	second, err := r.Apply(ctx, microsoft(), now, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, second.Action)
	assert.True(t, second.Unchanged())
	assert.Equal(t, 1, s.Len())

	stored, err := s.Get(ctx, microsoft().ID)
	require.NoError(t, err)
	assert.Equal(t, microsoft().Details, stored.Details)
}

func TestApply_NearDuplicateEnriches(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := New(s)

	_, err := r.Apply(ctx, microsoft(), now, nil)
	require.NoError(t, err)

	later := microsoft()
	later.SourceURL = "https://news.example/url2"
	later.ObservedAt = jan10.AddDate(0, 0, 2)
	later.Details = "Microsoft, backed by its Climate Innovation Fund, reaffirms carbon-negative by 2030"
	later.Commitment.VolumeTonsCO2e = nil

	res, err := r.Apply(ctx, later, now, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, res.Action)
	assert.Contains(t, res.Changed, "details")
	assert.Equal(t, 1, s.Len())

	stored, err := s.Get(ctx, microsoft().ID)
	require.NoError(t, err)
	assert.Equal(t, 2030, *stored.Commitment.TargetYear)
	assert.Equal(t, 16e6, *stored.Commitment.VolumeTonsCO2e)
	assert.Equal(t, microsoft().Details+" | "+later.Details, stored.Details)
	assert.Equal(t, later.ObservedAt, stored.ObservedAt)

	// No field conflicted, so the original source stays primary
	assert.Equal(t, "https://news.example/url1", stored.SourceURL)
	assert.Equal(t, "https://news.example/url2", stored.SecondarySourceURL)
}

func TestResolve_ProgressiveEnrichment(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	sparse := persefoni()
	sparse.Funding.Sector = ""
	sparse.Funding.Investors = nil
	require.NoError(t, s.Put(ctx, sparse))

	cand := persefoni()
	cand.Funding.Sector = "carbon-accounting"
	cand.Funding.Investors = []string{"Prelude Ventures", "lightspeed"}
	cand.ObservedAt = sparse.ObservedAt.Add(-time.Hour) // older source still enriches

	res, err := New(s).Resolve(ctx, cand, now)
	require.NoError(t, err)
	require.Equal(t, ActionMerge, res.Action)
	assert.ElementsMatch(t, []string{"sector", "investors"}, res.Changed)

	got := res.Record
	assert.Equal(t, "carbon-accounting", got.Funding.Sector)
	assert.Equal(t, []string{"lightspeed", "Prelude Ventures"}, got.Funding.Investors)
	assert.Equal(t, sparse.Funding.RoundStage, got.Funding.RoundStage)
	assert.Equal(t, sparse.Funding.AmountUSD, got.Funding.AmountUSD)
	assert.Equal(t, sparse.ObservedAt, got.ObservedAt)
}

func TestResolve_ConflictLaterObservationWins(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	existing := persefoni()
	existing.Funding.Sector = "mrv"
	require.NoError(t, s.Put(ctx, existing))

	cand := persefoni()
	cand.Funding.Sector = "carbon-accounting"
	cand.SourceURL = "https://filings.example/persefoni"
	cand.SourceName = "filings"
	cand.ObservedAt = existing.ObservedAt.Add(24 * time.Hour)

	res, err := New(s).Resolve(ctx, cand, now)
	require.NoError(t, err)
	got := res.Record
	assert.Equal(t, "carbon-accounting", got.Funding.Sector)
	assert.Equal(t, "https://filings.example/persefoni", got.SourceURL)
	assert.Equal(t, "filings", got.SourceName)
	assert.Equal(t, existing.SourceURL, got.SecondarySourceURL)
	assert.Equal(t, cand.ObservedAt, got.ObservedAt)
}

func TestResolve_ConflictEqualObservationKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	existing := persefoni()
	existing.Funding.Sector = "mrv"
	require.NoError(t, s.Put(ctx, existing))

	cand := persefoni()
	cand.Funding.Sector = "carbon-accounting"
	cand.SourceURL = "https://filings.example/persefoni"

	res, err := New(s).Resolve(ctx, cand, now)
	require.NoError(t, err)
	got := res.Record
	assert.Equal(t, "mrv", got.Funding.Sector)
	assert.Equal(t, existing.SourceURL, got.SourceURL)
	assert.Equal(t, "https://filings.example/persefoni", got.SecondarySourceURL)
}

func TestResolve_InferredDateNeverDisplacesKnownDate(t *testing.T) {
	ctx := context.Background()
	jan25 := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		storedInfer   bool
		candInfer     bool
		wantDate      time.Time
		wantInferred  bool
		wantSourceURL string
	}{
		{"stated kept over later inferred", false, true, jan10, false, "https://news.example/url1"},
		{"earlier inferred kept over later inferred", true, true, jan10, true, "https://news.example/url1"},
		{"later stated replaces inferred", true, false, jan25, false, "https://news.example/url1"},
		{"later stated conflict wins", false, false, jan25, false, "https://news.example/url2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			stored := microsoft()
			stored.DateInferred = tt.storedInfer
			require.NoError(t, s.Put(ctx, stored))

			cand := microsoft()
			cand.AnnouncementDate = jan25
			cand.DateInferred = tt.candInfer
			cand.ObservedAt = jan25
			cand.SourceURL = "https://news.example/url2"

			res, err := New(s).Resolve(ctx, cand, now)
			require.NoError(t, err)
			require.Equal(t, ActionMerge, res.Action)
			assert.Equal(t, tt.wantDate, res.Record.AnnouncementDate)
			assert.Equal(t, tt.wantInferred, res.Record.DateInferred)
			assert.Equal(t, tt.wantSourceURL, res.Record.SourceURL)
		})
	}
}

func TestResolve_StatedSameDayClearsInferredFlag(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	stored := microsoft()
	stored.DateInferred = true
	require.NoError(t, s.Put(ctx, stored))

	res, err := New(s).Resolve(ctx, microsoft(), now)
	require.NoError(t, err)
	assert.False(t, res.Record.DateInferred)
	assert.Contains(t, res.Changed, "date_inferred")
}

func TestResolve_SimilarityKeyCatchesBucketDrift(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	existing := persefoni()
	require.NoError(t, s.Put(ctx, existing))

	// Same company, kind and date, but the stage drift changes the id
	cand := persefoni()
	cand.Funding.RoundStage = model.StageUnknown
	cand.ID = model.ComputeID(cand)
	require.NotEqual(t, existing.ID, cand.ID)

	res, err := New(s).Resolve(ctx, cand, now)
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, res.Action)
	assert.True(t, res.Similar)
	assert.Equal(t, existing.ID, res.ExistingID)
	assert.Equal(t, existing.ID, res.Record.ID)
	assert.Equal(t, model.StageSeriesB, res.Record.Funding.RoundStage)
}

func TestResolve_FutureDateAfterMerge(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, microsoft()))

	cand := microsoft()
	cand.AnnouncementDate = now.AddDate(0, 1, 0)
	cand.ObservedAt = now

	res, err := New(s).Resolve(ctx, cand, now)
	require.NoError(t, err)
	assert.Equal(t, ActionReject, res.Action)
	assert.ErrorIs(t, res.Err, ErrFutureDateAfterMerge)
}

func TestResolve_CorruptExistingRecord(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	corrupt := microsoft()
	corrupt.Commitment = nil
	require.NoError(t, s.Put(ctx, corrupt))

	res, err := New(s).Resolve(ctx, microsoft(), now)
	require.NoError(t, err)
	assert.Equal(t, ActionReject, res.Action)
	assert.ErrorIs(t, res.Err, ErrCorruptExistingRecord)
}

// undecodableStore reports every stored record as corrupt
type undecodableStore struct{ *store.MemoryStore }

func (undecodableStore) Get(ctx context.Context, id string) (model.Record, error) {
	return model.Record{}, fmt.Errorf("%w: decode %s.json: invalid character", store.ErrCorrupt, id)
}

func TestResolve_UndecodableRecordRejectsCandidate(t *testing.T) {
	res, err := New(undecodableStore{store.NewMemoryStore()}).Resolve(context.Background(), microsoft(), now)
	require.NoError(t, err)
	assert.Equal(t, ActionReject, res.Action)
	assert.ErrorIs(t, res.Err, ErrCorruptExistingRecord)
	assert.ErrorIs(t, res.Err, store.ErrCorrupt)
}

type failingStore struct{ store.Store }

func (failingStore) Get(ctx context.Context, id string) (model.Record, error) {
	return model.Record{}, errors.New("disk on fire")
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	_, err := New(failingStore{store.NewMemoryStore()}).Resolve(context.Background(), microsoft(), now)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestApply_Annotate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := New(s)

	res, err := r.Apply(ctx, microsoft(), now, func(rec model.Record) (model.Record, error) {
		rec.Commitment.DovuRelevanceScore = 70
		return rec, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 70, res.Record.Commitment.DovuRelevanceScore)

	stored, err := s.Get(ctx, microsoft().ID)
	require.NoError(t, err)
	assert.Equal(t, 70, stored.Commitment.DovuRelevanceScore)

	res, err = r.Apply(ctx, persefoni(), now, func(rec model.Record) (model.Record, error) {
		return model.Record{}, errors.New("bad rubric")
	})
	require.NoError(t, err)
	assert.Equal(t, ActionReject, res.Action)
	assert.Equal(t, 1, s.Len())
}

func TestApply_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := New(s)

	investors := []string{"Lightspeed", "Prelude Ventures", "Khosla Ventures", "Congruent Ventures", "Clean Energy Ventures"}
	var wg sync.WaitGroup
	for _, inv := range investors {
		wg.Add(1)
		go func(inv string) {
			defer wg.Done()
			cand := persefoni()
			cand.Funding.Investors = []string{inv}
			_, err := r.Apply(ctx, cand, now, nil)
			assert.NoError(t, err)
		}(inv)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	stored, err := s.Get(ctx, persefoni().ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, investors, stored.Funding.Investors)
	assert.Zero(t, r.locks.size())
}
