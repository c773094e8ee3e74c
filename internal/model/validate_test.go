package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validFunding() Record {
	return Record{
		Kind:             KindFunding,
		Company:          "Persefoni",
		AnnouncementDate: time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		Funding:          &FundingEvent{AmountUSD: 101_000_000, DovuRelevanceScore: 70},
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2021, 11, 1, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*Record)
		want   error
	}{
		{"valid", func(r *Record) {}, nil},
		{"missing company", func(r *Record) { r.Company = " , " }, ErrMissingCompany},
		{"missing date", func(r *Record) { r.AnnouncementDate = time.Time{} }, ErrMissingDate},
		{"future date", func(r *Record) { r.AnnouncementDate = r.AnnouncementDate.AddDate(0, 0, 1) }, ErrFutureDate},
		{"payload mismatch", func(r *Record) { r.Kind = KindCommitment }, ErrPayloadMismatch},
		{"negative amount", func(r *Record) { r.Funding.AmountUSD = -1 }, ErrNegativeMetric},
		{"score too high", func(r *Record) { r.Funding.CompetitiveThreatScore = 101 }, ErrScoreOutOfRange},
		{"unknown kind", func(r *Record) { r.Kind = "grant" }, ErrPayloadMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validFunding()
			tt.mutate(&rec)

			err := rec.Validate(now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_Commitment(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rec := Record{
		Kind:             KindCommitment,
		Company:          "Microsoft",
		AnnouncementDate: now,
		Commitment:       &CorporateCommitment{CommitmentType: CommitmentNetZero, VolumeTonsCO2e: FloatPtr(-5)},
	}
	assert.ErrorIs(t, rec.Validate(now), ErrNegativeMetric)

	rec.Commitment.VolumeTonsCO2e = FloatPtr(5)
	assert.NoError(t, rec.Validate(now))
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	in := time.Date(2024, 1, 10, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), Day(in))
}
