package store

import (
	"context"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
)

// Filter narrows a scan by the fields a store can index. Zero fields match
// everything.
type Filter struct {
	Kind    model.RecordKind
	Company string    // compared after NormalizeCompany
	Since   time.Time // announcement date on or after this day
	On      time.Time // announcement date on this calendar day
}

// Match reports whether r passes f
func (f Filter) Match(r model.Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Company != "" && model.NormalizeCompany(r.Company) != model.NormalizeCompany(f.Company) {
		return false
	}
	day := model.Day(r.AnnouncementDate)
	if !f.Since.IsZero() && day.Before(model.Day(f.Since)) {
		return false
	}
	if !f.On.IsZero() && !day.Equal(model.Day(f.On)) {
		return false
	}
	return true
}

// Filterer is implemented by stores that evaluate a Filter themselves
// rather than decoding every record
type Filterer interface {
	ScanFilter(ctx context.Context, f Filter, pred func(model.Record) bool) ([]model.Record, error)
}

// Find returns the records of s that pass both f and pred, ordered by id
func Find(ctx context.Context, s Store, f Filter, pred func(model.Record) bool) ([]model.Record, error) {
	if pred == nil {
		pred = All
	}
	if fs, ok := s.(Filterer); ok {
		return fs.ScanFilter(ctx, f, pred)
	}
	return s.Scan(ctx, func(r model.Record) bool {
		return f.Match(r) && pred(r)
	})
}
