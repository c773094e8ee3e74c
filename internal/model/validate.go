package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingCompany  = errors.New("missing company")
	ErrMissingDate     = errors.New("missing announcement date")
	ErrFutureDate      = errors.New("announcement date is in the future")
	ErrPayloadMismatch = errors.New("payload does not match record kind")
	ErrNegativeMetric  = errors.New("negative metric")
	ErrScoreOutOfRange = errors.New("score out of range")
)

// Validate checks the record-level invariants against the ingestion clock.
// A record whose announcement date falls after the calendar day of now is
// invalid.
func (r Record) Validate(now time.Time) error {
	if NormalizeCompany(r.Company) == "" {
		return ErrMissingCompany
	}
	if r.AnnouncementDate.IsZero() {
		return ErrMissingDate
	}
	if r.AnnouncementDate.After(Day(now)) {
		return fmt.Errorf("%w: %s", ErrFutureDate, r.AnnouncementDate.Format("2006-01-02"))
	}

	switch r.Kind {
	case KindCommitment:
		if r.Commitment == nil || r.Funding != nil {
			return ErrPayloadMismatch
		}
		if v := r.Commitment.VolumeTonsCO2e; v != nil && *v < 0 {
			return fmt.Errorf("%w: volume_tons_co2e", ErrNegativeMetric)
		}
		return checkScores(r.Commitment.DovuRelevanceScore)
	case KindFunding:
		if r.Funding == nil || r.Commitment != nil {
			return ErrPayloadMismatch
		}
		if r.Funding.AmountUSD < 0 {
			return fmt.Errorf("%w: amount_usd", ErrNegativeMetric)
		}
		return checkScores(
			r.Funding.DovuRelevanceScore,
			r.Funding.CompetitiveThreatScore,
			r.Funding.PartnershipOpportunityScore,
		)
	}
	return fmt.Errorf("%w: unknown kind %q", ErrPayloadMismatch, r.Kind)
}

func checkScores(scores ...int) error {
	for _, s := range scores {
		if s < 0 || s > 100 {
			return fmt.Errorf("%w: %d", ErrScoreOutOfRange, s)
		}
	}
	return nil
}
