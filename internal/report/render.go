package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/pipeline"
	"github.com/ppiankov/carbonintel/internal/query"
	"github.com/ppiankov/carbonintel/internal/score"
)

// Format selects how results are rendered
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTable    Format = "table"
)

// ParseFormat accepts json, markdown (or md) and table
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "table", "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json, markdown or table)", s)
}

// Renderer writes query results in one format
type Renderer struct {
	w      io.Writer
	format Format
}

// NewRenderer creates a renderer writing to w
func NewRenderer(w io.Writer, format Format) *Renderer {
	return &Renderer{w: w, format: format}
}

// Records renders a record list
func (r *Renderer) Records(records []model.Record) error {
	switch r.format {
	case FormatJSON:
		if records == nil {
			records = []model.Record{}
		}
		return r.json(records)
	case FormatMarkdown:
		var b strings.Builder
		writeRecordsMarkdown(&b, records)
		return r.write(b.String())
	}
	return r.recordsTable(records)
}

// Summary renders a dashboard summary
func (r *Renderer) Summary(s *query.Summary) error {
	switch r.format {
	case FormatJSON:
		return r.json(s)
	case FormatMarkdown:
		return r.write(summaryMarkdown(s))
	}

	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Window:\t%s .. %s (%d days)\n", s.From.Format("2006-01-02"), s.To.Format("2006-01-02"), s.Days)
	fmt.Fprintf(w, "Records:\t%d (%d commitments, %d funding)\n", s.Counts.Total, s.Counts.Commitments, s.Counts.Funding)
	fmt.Fprintf(w, "Funding:\t%s\n", query.FormatUSD(s.TotalFundingUSD))
	fmt.Fprintf(w, "High relevance/threat/opportunity:\t%d / %d / %d\n", s.HighRelevance, s.HighThreat, s.HighOpportunity)
	fmt.Fprintf(w, "Last %d days:\t%d records, %s funding\n", s.Recent.Days, s.Recent.Counts.Total, query.FormatUSD(s.Recent.TotalFundingUSD))
	fmt.Fprintf(w, "Alerts:\t%d of %d\n", len(s.Alerts), s.TotalAlerts)
	if err := w.Flush(); err != nil {
		return err
	}

	for _, sec := range topSections(s) {
		if len(sec.records) == 0 {
			continue
		}
		if err := r.write("\n" + sec.title + "\n"); err != nil {
			return err
		}
		if err := r.recordsTable(sec.records); err != nil {
			return err
		}
	}
	return nil
}

// Alerts renders an alert list; total is the count before the cap
func (r *Renderer) Alerts(alerts []query.Alert, total int) error {
	switch r.format {
	case FormatJSON:
		if alerts == nil {
			alerts = []query.Alert{}
		}
		return r.json(struct {
			Alerts []query.Alert `json:"alerts"`
			Total  int           `json:"total"`
		}{alerts, total})
	case FormatMarkdown:
		var b strings.Builder
		writeAlertsMarkdown(&b, alerts, total)
		return r.write(b.String())
	}

	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPRIORITY\tTYPE\tSCORE\tTITLE\tACTION")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			a.Date.Format("2006-01-02"),
			a.Priority,
			a.Type,
			a.Score,
			truncate(a.Title, 48),
			a.Action,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if total > len(alerts) {
		return r.write(fmt.Sprintf("(%d more not shown)\n", total-len(alerts)))
	}
	return nil
}

// Breakdown renders a record with the signals behind its scores
func (r *Renderer) Breakdown(rec model.Record, b score.Breakdown) error {
	switch r.format {
	case FormatJSON:
		return r.json(struct {
			Record    model.Record    `json:"record"`
			Breakdown score.Breakdown `json:"breakdown"`
		}{rec, b})
	case FormatMarkdown:
		return r.write(breakdownMarkdown(rec, b))
	}

	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", rec.ID)
	fmt.Fprintf(w, "Company:\t%s (%s)\n", rec.Company, rec.Kind)
	fmt.Fprintf(w, "Date:\t%s\n", dateLabel(rec))
	fmt.Fprintf(w, "Source:\t%s\n", rec.SourceURL)
	if rec.SecondarySourceURL != "" {
		fmt.Fprintf(w, "Secondary source:\t%s\n", rec.SecondarySourceURL)
	}
	fmt.Fprintf(w, "Scores:\t%s\n", scoreLine(b))
	if b.DovuOpportunity != "" {
		fmt.Fprintf(w, "Opportunity:\t%s\n", b.DovuOpportunity)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SCORE\tSIGNAL\tPOINTS\tSEVERITY\tDESCRIPTION")
	for _, sig := range b.Signals {
		fmt.Fprintf(w, "%s\t%s\t%+.1f\t%s\t%s\n", sig.Score, sig.Type, sig.Points, sig.Severity, sig.Description)
	}
	return w.Flush()
}

// Run renders an ingestion or rescore report
func (r *Renderer) Run(rep *pipeline.RunReport) error {
	if r.format == FormatJSON {
		return r.json(rep)
	}

	var b strings.Builder
	if r.format == FormatMarkdown {
		b.WriteString("## Run\n\n")
		b.WriteString("| inserted | merged | unchanged | rejected | failed | rescored |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n", rep.Inserted, rep.Merged, rep.Unchanged, rep.Rejected, rep.Failed, rep.Rescored)
		if len(rep.Errors) > 0 {
			b.WriteString("\n### Errors\n\n")
			for _, e := range rep.Errors {
				fmt.Fprintf(&b, "- #%d `%s/%s` %s\n", e.Index, e.Stage, e.Reason, escapeMarkdown(e.Message))
			}
		}
		return r.write(b.String())
	}

	fmt.Fprintf(&b, "inserted=%d merged=%d unchanged=%d rejected=%d failed=%d", rep.Inserted, rep.Merged, rep.Unchanged, rep.Rejected, rep.Failed)
	if rep.Rescored > 0 {
		fmt.Fprintf(&b, " rescored=%d", rep.Rescored)
	}
	fmt.Fprintf(&b, " duration=%s\n", rep.Duration.Round(time.Millisecond))
	for _, e := range rep.Errors {
		fmt.Fprintf(&b, "  #%d %s %s: %s\n", e.Index, e.Stage, e.Reason, e.Message)
	}
	return r.write(b.String())
}

func (r *Renderer) recordsTable(records []model.Record) error {
	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tKIND\tCOMPANY\tDETAIL\tREL\tTHREAT\tOPP\tID")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.AnnouncementDate.Format("2006-01-02"),
			rec.Kind,
			truncate(rec.Company, 30),
			detail(rec),
			rec.Relevance(),
			fundingScore(rec, rec.Threat()),
			fundingScore(rec, rec.Opportunity()),
			truncate(rec.ID, 12),
		)
	}
	return w.Flush()
}

func (r *Renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func (r *Renderer) write(s string) error {
	_, err := io.WriteString(r.w, s)
	return err
}

// detail is the one-line payload summary shown in tables
// dateLabel formats the announcement date, marking one inferred from the
// observation time
func dateLabel(rec model.Record) string {
	d := rec.AnnouncementDate.Format("2006-01-02")
	if rec.DateInferred {
		d += " (observed)"
	}
	return d
}

func detail(rec model.Record) string {
	switch {
	case rec.Commitment != nil:
		s := string(rec.Commitment.CommitmentType)
		if rec.Commitment.TargetYear != nil {
			s += fmt.Sprintf(" by %d", *rec.Commitment.TargetYear)
		}
		return s
	case rec.Funding != nil:
		stage := string(rec.Funding.RoundStage)
		if stage == "" {
			stage = "round"
		}
		return stage + " " + query.FormatUSD(rec.Funding.AmountUSD)
	}
	return ""
}

func fundingScore(rec model.Record, v int) string {
	if rec.Kind != model.KindFunding {
		return "-"
	}
	return fmt.Sprintf("%d", v)
}

func scoreLine(b score.Breakdown) string {
	if b.Threat == 0 && b.Opportunity == 0 && b.DovuOpportunity != "" {
		return fmt.Sprintf("relevance %d", b.Relevance)
	}
	return fmt.Sprintf("relevance %d, threat %d, opportunity %d", b.Relevance, b.Threat, b.Opportunity)
}

type section struct {
	title   string
	records []model.Record
}

func topSections(s *query.Summary) []section {
	return []section{
		{"Top relevance", s.TopRelevance},
		{"Top competitive threats", s.TopThreat},
		{"Top partnership opportunities", s.TopOpportunity},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
