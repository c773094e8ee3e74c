package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
)

// Counts tallies records by kind
type Counts struct {
	Commitments int `json:"commitments"`
	Funding     int `json:"funding"`
	Total       int `json:"total"`
}

// Aggregate is a set of totals over a span of days
type Aggregate struct {
	Days            int     `json:"days"`
	Counts          Counts  `json:"counts"`
	TotalFundingUSD float64 `json:"total_funding_usd"`
	HighRelevance   int     `json:"high_relevance"`
	HighThreat      int     `json:"high_threat"`
	HighOpportunity int     `json:"high_opportunity"`
}

// Summary is the dashboard view of one window
type Summary struct {
	Aggregate
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Recent         Aggregate      `json:"recent"`
	TopRelevance   []model.Record `json:"top_relevance"`
	TopThreat      []model.Record `json:"top_threat"`
	TopOpportunity []model.Record `json:"top_opportunity"`
	Alerts         []Alert        `json:"alerts"`
	TotalAlerts    int            `json:"total_alerts"`
}

// AlertPriority ranks alerts for triage
type AlertPriority string

const (
	PriorityUrgent AlertPriority = "urgent"
	PriorityHigh   AlertPriority = "high"
	PriorityMedium AlertPriority = "medium"
)

// Alert flags a record worth acting on
type Alert struct {
	Type        string        `json:"type"` // commitment, threat, partnership
	Priority    AlertPriority `json:"priority"`
	RecordID    string        `json:"record_id"`
	Company     string        `json:"company"`
	Score       int           `json:"score"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Action      string        `json:"action"`
	Date        time.Time     `json:"date"`
}

// Summarize aggregates the records inside the request window. Nothing
// outside the window is read into any total.
func (s *Service) Summarize(ctx context.Context, req Request) (*Summary, error) {
	days, now, cutoff := s.window(req)

	records, err := s.collect(ctx, req, cutoff)
	if err != nil {
		return nil, err
	}

	recentDays := s.cfg.RecentDays
	if recentDays <= 0 || recentDays > days {
		recentDays = days
	}
	recentCutoff := model.Day(now).AddDate(0, 0, -recentDays)

	threshold := s.cfg.HighScoreThreshold
	sum := &Summary{
		Aggregate: Aggregate{Days: days},
		From:      cutoff,
		To:        model.Day(now),
		Recent:    Aggregate{Days: recentDays},
	}

	var recent []model.Record
	for _, r := range records {
		sum.Aggregate.add(r, threshold)
		if !r.AnnouncementDate.Before(recentCutoff) {
			sum.Recent.add(r, threshold)
			recent = append(recent, r)
		}
	}

	topN := s.cfg.TopN
	if req.Limit > 0 {
		topN = req.Limit
	}
	sum.TopRelevance = top(records, topN, model.Record.Relevance, "")
	sum.TopThreat = top(records, topN, model.Record.Threat, model.KindFunding)
	sum.TopOpportunity = top(records, topN, model.Record.Opportunity, model.KindFunding)

	alerts := buildAlerts(records, recent, threshold)
	sum.TotalAlerts = len(alerts)
	if s.cfg.AlertLimit > 0 && len(alerts) > s.cfg.AlertLimit {
		alerts = alerts[:s.cfg.AlertLimit]
	}
	sum.Alerts = alerts

	return sum, nil
}

// Alerts returns the prioritized alert list for the request window
func (s *Service) Alerts(ctx context.Context, req Request) ([]Alert, int, error) {
	sum, err := s.Summarize(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	return sum.Alerts, sum.TotalAlerts, nil
}

func (a *Aggregate) add(r model.Record, threshold int) {
	a.Counts.Total++
	switch r.Kind {
	case model.KindCommitment:
		a.Counts.Commitments++
	case model.KindFunding:
		a.Counts.Funding++
		a.TotalFundingUSD += r.Funding.AmountUSD
		if r.Threat() > threshold {
			a.HighThreat++
		}
		if r.Opportunity() > threshold {
			a.HighOpportunity++
		}
	}
	if r.Relevance() > threshold {
		a.HighRelevance++
	}
}

// top returns the n records with the highest score, newest first on ties.
// Records is already newest first, so a stable sort keeps that order.
func top(records []model.Record, n int, score func(model.Record) int, kind model.RecordKind) []model.Record {
	var pool []model.Record
	for _, r := range records {
		if kind == "" || r.Kind == kind {
			pool = append(pool, r)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return score(pool[i]) > score(pool[j]) })
	if n > 0 && len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

// buildAlerts flags high-relevance commitments from the recent span and
// funding events with a high threat or opportunity from the whole window
func buildAlerts(window, recent []model.Record, threshold int) []Alert {
	var alerts []Alert

	for _, r := range recent {
		if r.Kind != model.KindCommitment || r.Relevance() <= threshold {
			continue
		}
		alerts = append(alerts, Alert{
			Type:        "commitment",
			Priority:    PriorityHigh,
			RecordID:    r.ID,
			Company:     r.Company,
			Score:       r.Relevance(),
			Title:       "High-Value Commitment: " + r.Company,
			Description: fmt.Sprintf("%s target, relevance score %d", r.Commitment.CommitmentType, r.Relevance()),
			Action:      r.Commitment.DovuOpportunity,
			Date:        r.AnnouncementDate,
		})
	}

	for _, r := range window {
		if r.Kind != model.KindFunding {
			continue
		}
		if r.Threat() > threshold {
			alerts = append(alerts, Alert{
				Type:        "threat",
				Priority:    PriorityUrgent,
				RecordID:    r.ID,
				Company:     r.Company,
				Score:       r.Threat(),
				Title:       "Competitive Threat: " + r.Company,
				Description: fmt.Sprintf("%s %s - threat score %d", stageLabel(r.Funding.RoundStage), FormatUSD(r.Funding.AmountUSD), r.Threat()),
				Action:      "Monitor product development and market positioning",
				Date:        r.AnnouncementDate,
			})
		}
		if r.Opportunity() > threshold {
			alerts = append(alerts, Alert{
				Type:        "partnership",
				Priority:    PriorityMedium,
				RecordID:    r.ID,
				Company:     r.Company,
				Score:       r.Opportunity(),
				Title:       "Partnership Opportunity: " + r.Company,
				Description: fmt.Sprintf("%s - partnership score %d", orUnknown(r.Funding.BusinessModel), r.Opportunity()),
				Action:      "Evaluate integration and partnership potential",
				Date:        r.AnnouncementDate,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Date.After(alerts[j].Date) })
	return alerts
}

func stageLabel(s model.RoundStage) string {
	if s == model.StageUnknown {
		return "Funding"
	}
	return string(s)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// FormatUSD renders an amount with a K/M/B suffix
func FormatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.0fK", v/1e3)
	case v > 0:
		return fmt.Sprintf("$%.0f", v)
	}
	return "undisclosed"
}
