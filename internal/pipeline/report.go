package pipeline

import (
	"time"

	"github.com/ppiankov/carbonintel/internal/identity"
)

// ItemError describes one snippet or record the run could not use
type ItemError struct {
	Index     int    `json:"index"`
	SourceURL string `json:"source_url,omitempty"`
	Stage     string `json:"stage"`  // extract, resolve, score
	Reason    string `json:"reason"` // Machine-readable cause
	Message   string `json:"message"`
}

// RunReport summarizes one ingestion or rescore run
type RunReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Snippets  int           `json:"snippets,omitempty"`
	Inserted  int           `json:"inserted"`
	Merged    int           `json:"merged"`
	Unchanged int           `json:"unchanged"`
	Rejected  int           `json:"rejected"`
	Failed    int           `json:"failed"`
	Rescored  int           `json:"rescored,omitempty"`
	Errors    []ItemError   `json:"errors,omitempty"`
}

func (r *RunReport) fail(index int, sourceURL, stage, reason string, err error) {
	if stage != "resolve" {
		r.Failed++
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.Errors = append(r.Errors, ItemError{
		Index:     index,
		SourceURL: sourceURL,
		Stage:     stage,
		Reason:    reason,
		Message:   msg,
	})
}

// count tallies a resolution and returns its outcome label
func (r *RunReport) count(res identity.Resolution) string {
	switch {
	case res.Action == identity.ActionInsert:
		r.Inserted++
		return "inserted"
	case res.Unchanged():
		r.Unchanged++
		return "unchanged"
	case res.Action == identity.ActionMerge:
		r.Merged++
		return "merged"
	}
	r.Rejected++
	return "rejected"
}
