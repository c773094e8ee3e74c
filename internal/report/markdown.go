package report

import (
	"fmt"
	"strings"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/query"
	"github.com/ppiankov/carbonintel/internal/score"
)

var markdownEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "`", "'")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func writeRecordsMarkdown(b *strings.Builder, records []model.Record) {
	if len(records) == 0 {
		b.WriteString("_No records._\n")
		return
	}
	b.WriteString("| Date | Kind | Company | Detail | Relevance | Threat | Opportunity | Source |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, rec := range records {
		source := "-"
		if rec.SourceURL != "" {
			source = fmt.Sprintf("[%s](%s)", escapeMarkdown(orDefault(rec.SourceName, "link")), rec.SourceURL)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %d | %s | %s | %s |\n",
			rec.AnnouncementDate.Format("2006-01-02"),
			rec.Kind,
			escapeMarkdown(rec.Company),
			escapeMarkdown(detail(rec)),
			rec.Relevance(),
			fundingScore(rec, rec.Threat()),
			fundingScore(rec, rec.Opportunity()),
			source,
		)
	}
}

func writeAlertsMarkdown(b *strings.Builder, alerts []query.Alert, total int) {
	if len(alerts) == 0 {
		b.WriteString("_No alerts._\n")
		return
	}
	for _, a := range alerts {
		fmt.Fprintf(b, "- **[%s] %s** (%s, score %d): %s. _%s_\n",
			strings.ToUpper(string(a.Priority)),
			escapeMarkdown(a.Title),
			a.Date.Format("2006-01-02"),
			a.Score,
			escapeMarkdown(a.Description),
			a.Action,
		)
	}
	if total > len(alerts) {
		fmt.Fprintf(b, "\n_%d more alerts not shown._\n", total-len(alerts))
	}
}

func summaryMarkdown(s *query.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Carbon intelligence: %s to %s\n\n", s.From.Format("2006-01-02"), s.To.Format("2006-01-02"))
	b.WriteString("| | Window | Recent |\n")
	b.WriteString("|---|---|---|\n")
	fmt.Fprintf(&b, "| Days | %d | %d |\n", s.Days, s.Recent.Days)
	fmt.Fprintf(&b, "| Commitments | %d | %d |\n", s.Counts.Commitments, s.Recent.Counts.Commitments)
	fmt.Fprintf(&b, "| Funding events | %d | %d |\n", s.Counts.Funding, s.Recent.Counts.Funding)
	fmt.Fprintf(&b, "| Total funding | %s | %s |\n", query.FormatUSD(s.TotalFundingUSD), query.FormatUSD(s.Recent.TotalFundingUSD))
	fmt.Fprintf(&b, "| High relevance | %d | %d |\n", s.HighRelevance, s.Recent.HighRelevance)
	fmt.Fprintf(&b, "| High threat | %d | %d |\n", s.HighThreat, s.Recent.HighThreat)
	fmt.Fprintf(&b, "| High opportunity | %d | %d |\n", s.HighOpportunity, s.Recent.HighOpportunity)

	b.WriteString("\n## Alerts\n\n")
	writeAlertsMarkdown(&b, s.Alerts, s.TotalAlerts)

	for _, sec := range topSections(s) {
		fmt.Fprintf(&b, "\n## %s\n\n", sec.title)
		writeRecordsMarkdown(&b, sec.records)
	}
	return b.String()
}

func breakdownMarkdown(rec model.Record, bd score.Breakdown) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(rec.Company))
	fmt.Fprintf(&b, "- **ID:** `%s`\n", rec.ID)
	fmt.Fprintf(&b, "- **Kind:** %s (%s)\n", rec.Kind, escapeMarkdown(detail(rec)))
	fmt.Fprintf(&b, "- **Date:** %s\n", dateLabel(rec))
	if rec.SourceURL != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", rec.SourceURL)
	}
	if rec.SecondarySourceURL != "" {
		fmt.Fprintf(&b, "- **Secondary source:** %s\n", rec.SecondarySourceURL)
	}
	fmt.Fprintf(&b, "- **Scores:** %s\n", scoreLine(bd))
	if bd.DovuOpportunity != "" {
		fmt.Fprintf(&b, "- **Opportunity:** %s\n", bd.DovuOpportunity)
	}

	b.WriteString("\n## Signals\n\n")
	if len(bd.Signals) == 0 {
		b.WriteString("_No signals._\n")
		return b.String()
	}
	b.WriteString("| Score | Signal | Points | Severity | Description |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, sig := range bd.Signals {
		fmt.Fprintf(&b, "| %s | %s | %+.1f | %s | %s |\n", sig.Score, sig.Type, sig.Points, sig.Severity, escapeMarkdown(sig.Description))
	}
	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
