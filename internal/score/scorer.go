package score

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
)

// Inputs is the context a score depends on beyond the record itself
type Inputs struct {
	Now            time.Time // Clock for recency decay; zero disables decay
	PriorRaisedUSD float64   // Capital the company raised before this event
}

// Breakdown is the transparent result of scoring one record
type Breakdown struct {
	RecordID        string         `json:"record_id"`
	Relevance       int            `json:"dovu_relevance_score"`
	Threat          int            `json:"competitive_threat_score,omitempty"`
	Opportunity     int            `json:"partnership_opportunity_score,omitempty"`
	DovuOpportunity string         `json:"dovu_opportunity,omitempty"`
	Signals         []model.Signal `json:"signals"`
}

// Scorer computes relevance, threat and opportunity scores from a rubric.
// It is pure and safe for concurrent use.
type Scorer struct {
	rubric *compiledRubric
}

// New validates the rubric and returns a Scorer bound to it
func New(rubric model.Rubric) (*Scorer, error) {
	if err := ValidateRubric(rubric); err != nil {
		return nil, err
	}
	return &Scorer{rubric: compileRubric(rubric)}, nil
}

// Rubric returns the rubric the scorer was built with
func (s *Scorer) Rubric() model.Rubric {
	return s.rubric.Rubric
}

// Score returns a copy of rec with every score field populated
func (s *Scorer) Score(rec model.Record, in Inputs) (model.Record, error) {
	b, err := s.Explain(rec, in)
	if err != nil {
		return model.Record{}, err
	}

	out := rec.Clone()
	switch out.Kind {
	case model.KindCommitment:
		out.Commitment.DovuRelevanceScore = b.Relevance
		out.Commitment.DovuOpportunity = b.DovuOpportunity
	case model.KindFunding:
		out.Funding.DovuRelevanceScore = b.Relevance
		out.Funding.CompetitiveThreatScore = b.Threat
		out.Funding.PartnershipOpportunityScore = b.Opportunity
	}
	return out, nil
}

// Explain computes the scores together with every contributing signal
func (s *Scorer) Explain(rec model.Record, in Inputs) (Breakdown, error) {
	t := &tally{totals: make(map[string]float64)}
	b := Breakdown{RecordID: rec.ID}

	switch {
	case rec.Kind == model.KindCommitment && rec.Commitment != nil:
		s.commitmentRelevance(t, rec)
		b.DovuOpportunity = s.dovuOpportunity(rec)
	case rec.Kind == model.KindFunding && rec.Funding != nil:
		s.fundingRelevance(t, rec)
		s.competitiveThreat(t, rec, in)
		s.partnershipOpportunity(t, rec)
	default:
		return Breakdown{}, fmt.Errorf("score record %s: %w", rec.ID, model.ErrPayloadMismatch)
	}

	b.Relevance = clampScore(t.totals[model.ScoreRelevance])
	b.Threat = clampScore(t.totals[model.ScoreThreat])
	b.Opportunity = clampScore(t.totals[model.ScoreOpportunity])
	b.Signals = t.signals
	return b, nil
}

type tally struct {
	signals []model.Signal
	totals  map[string]float64
}

func (t *tally) add(sig model.Signal) {
	if sig.Severity == "" {
		sig.Severity = model.SeverityInfo
	}
	t.signals = append(t.signals, sig)
	t.totals[sig.Score] += sig.Points
}

// keyword adds a flat-weight keyword signal
func (t *tally) keyword(score string, typ model.SignalType, ks keywordSet, weight float64, text, label string) {
	hits := ks.hits(text)
	points := 0.0
	if len(hits) > 0 {
		points = weight
	}
	t.add(model.Signal{
		Type:        typ,
		Score:       score,
		Points:      points,
		Description: fmt.Sprintf("%s: %d keyword(s) matched", label, len(hits)),
		Data: map[string]interface{}{
			"matched": hits,
			"weight":  weight,
			"formula": "weight if any keyword matched else 0",
		},
	})
}

// gradient adds a per-hit keyword signal capped at max
func (t *tally) gradient(score string, typ model.SignalType, ks keywordSet, g model.GradientSignal, text, label string) {
	hits := ks.hits(text)
	points := math.Min(float64(len(hits))*g.PerHit, g.Max)
	t.add(model.Signal{
		Type:        typ,
		Score:       score,
		Points:      points,
		Description: fmt.Sprintf("%s: %d keyword(s) matched", label, len(hits)),
		Data: map[string]interface{}{
			"matched": hits,
			"per_hit": g.PerHit,
			"max":     g.Max,
			"formula": "min(hits * per_hit, max)",
		},
	})
}

// table adds a lookup signal; an unknown key scores the neutral midpoint
func (t *tally) table(score string, typ model.SignalType, weights map[string]float64, key, label string) {
	key = strings.ToLower(key)
	sig := model.Signal{Type: typ, Score: score}

	if key == "" {
		sig.Points = maxWeight(weights) / 2
		sig.Severity = model.SeverityWarning
		sig.Description = fmt.Sprintf("%s unknown, neutral midpoint applied", label)
		sig.Data = map[string]interface{}{"formula": "max(weights) / 2", "max": maxWeight(weights)}
	} else {
		sig.Points = weights[key]
		sig.Description = fmt.Sprintf("%s %q", label, key)
		sig.Data = map[string]interface{}{"formula": "weights[key]", "key": key}
	}
	t.add(sig)
}

func (s *Scorer) commitmentRelevance(t *tally, rec model.Record) {
	r := s.rubric
	c := r.Commitment
	text := rec.Details + " " + rec.Company

	t.keyword(model.ScoreRelevance, model.SignalRevenueTier, r.revenue, c.RevenueTier.Weight, text, "Revenue tier")
	t.gradient(model.ScoreRelevance, model.SignalSupplyChain, r.supplyChain, c.SupplyChain, text, "Supply chain complexity")
	t.keyword(model.ScoreRelevance, model.SignalCarbonPurchase, r.purchase, c.CarbonPurchase.Weight, text, "Prior carbon purchase")
	t.keyword(model.ScoreRelevance, model.SignalMultiGeography, r.geography, c.MultiGeography.Weight, text, "Multi-geography")
	t.gradient(model.ScoreRelevance, model.SignalDigitalTransformation, r.digital, c.DigitalTransformation, text, "Digital transformation")

	ctype := string(rec.Commitment.CommitmentType)
	weight, ok := r.typeWeights[ctype]
	if !ok {
		weight = r.typeWeights[string(model.CommitmentOther)]
	}
	t.add(model.Signal{
		Type:        model.SignalCommitmentType,
		Score:       model.ScoreRelevance,
		Points:      weight,
		Description: fmt.Sprintf("Commitment type %q", ctype),
		Data:        map[string]interface{}{"formula": "type_weights[type]", "type": ctype},
	})

	urgency := model.Signal{
		Type:        model.SignalTargetUrgency,
		Score:       model.ScoreRelevance,
		Description: "No target year",
		Data: map[string]interface{}{
			"urgent_year": c.UrgentYear,
			"near_year":   c.NearYear,
			"formula":     "urgent_weight if year <= urgent_year, near_weight if year <= near_year, else 0",
		},
	}
	if y := rec.Commitment.TargetYear; y != nil {
		urgency.Data["target_year"] = *y
		urgency.Description = fmt.Sprintf("Target year %d", *y)
		switch {
		case *y <= c.UrgentYear:
			urgency.Points = c.UrgentWeight
		case *y <= c.NearYear:
			urgency.Points = c.NearWeight
		}
	}
	t.add(urgency)
}

func (s *Scorer) fundingRelevance(t *tally, rec model.Record) {
	r := s.rubric
	f := rec.Funding
	text := rec.Details

	t.table(model.ScoreRelevance, model.SignalSectorMatch, r.sectorWeights, f.Sector, "Sector")

	for i, ks := range r.description {
		t.keyword(model.ScoreRelevance, model.SignalDescription, ks, r.Funding.Description[i].Weight, text,
			"Announcement keywords "+strings.Join(ks.words, "/"))
	}

	t.table(model.ScoreRelevance, model.SignalStage, r.stageWeights, string(f.RoundStage), "Round stage")

	tier := model.Signal{
		Type:        model.SignalInvestorTier,
		Score:       model.ScoreRelevance,
		Description: "No recognized top-tier climate investor",
		Data:        map[string]interface{}{"formula": "investor_bonus if any investor is top-tier", "bonus": r.Funding.InvestorBonus},
	}
	if len(f.Investors) == 0 {
		tier.Description = "No investors known, bonus not applied"
	}
	if matched := s.topTierInvestors(f.Investors); len(matched) > 0 {
		tier.Points = r.Funding.InvestorBonus
		tier.Description = fmt.Sprintf("Top-tier investors: %s", strings.Join(matched, ", "))
		tier.Data["matched"] = matched
	}
	t.add(tier)
}

// topTierInvestors returns the investors whose normalized name contains a
// whole top-tier name, so "Lightspeed Venture Partners" matches "Lightspeed"
// but a bare "Energy" matches nothing
func (s *Scorer) topTierInvestors(investors []string) []string {
	var matched []string
	for _, inv := range investors {
		padded := " " + model.NormalizeCompany(inv) + " "
		if padded == "  " {
			continue
		}
		for _, top := range s.rubric.topTier {
			if strings.Contains(padded, " "+top+" ") {
				matched = append(matched, inv)
				break
			}
		}
	}
	return matched
}

func (s *Scorer) competitiveThreat(t *tally, rec model.Record, in Inputs) {
	r := s.rubric
	th := r.Threat
	f := rec.Funding

	before := t.totals[model.ScoreThreat]
	t.table(model.ScoreThreat, model.SignalSectorOverlap, r.overlap, f.Sector, "Sector overlap")
	t.keyword(model.ScoreThreat, model.SignalSectorOverlap, r.overlapKw, th.Overlap.Weight, rec.Details, "Overlap keywords")

	total := math.Max(0, in.PriorRaisedUSD) + math.Max(0, f.AmountUSD)
	ratio := math.Min(1, math.Log10(1+total)/math.Log10(1+th.CapitalSaturationUSD))
	severity := model.SeverityInfo
	if ratio >= 0.9 {
		severity = model.SeverityWarning
	}
	t.add(model.Signal{
		Type:        model.SignalCapitalRaised,
		Score:       model.ScoreThreat,
		Points:      th.CapitalWeight * ratio,
		Severity:    severity,
		Description: fmt.Sprintf("Capital raised to date: $%.0f", total),
		Data: map[string]interface{}{
			"prior_raised_usd": in.PriorRaisedUSD,
			"amount_usd":       f.AmountUSD,
			"saturation_usd":   th.CapitalSaturationUSD,
			"formula":          "capital_weight * min(1, log10(1+total) / log10(1+saturation))",
		},
	})

	subtotal := t.totals[model.ScoreThreat] - before
	factor, ageDays := s.decay(rec, in.Now)
	recency := model.Signal{
		Type:        model.SignalRecency,
		Score:       model.ScoreThreat,
		Points:      -(1 - factor) * subtotal,
		Description: fmt.Sprintf("Event age %d days, decay factor %.2f", ageDays, factor),
		Data: map[string]interface{}{
			"age_days":       ageDays,
			"horizon_days":   th.HorizonDays,
			"half_life_days": th.HalfLifeDays,
			"factor":         factor,
			"formula":        "1 if age <= horizon else 0.5 ^ ((age - horizon) / half_life)",
		},
	}
	if factor < 0.5 {
		recency.Severity = model.SeverityWarning
	}
	t.add(recency)
}

// decay returns the recency multiplier for the event at now
func (s *Scorer) decay(rec model.Record, now time.Time) (float64, int) {
	if now.IsZero() || rec.AnnouncementDate.IsZero() {
		return 1, 0
	}
	age := int(model.Day(now).Sub(model.Day(rec.AnnouncementDate)).Hours() / 24)
	th := s.rubric.Threat
	if age <= th.HorizonDays {
		return 1, age
	}
	return math.Pow(0.5, float64(age-th.HorizonDays)/float64(th.HalfLifeDays)), age
}

func (s *Scorer) partnershipOpportunity(t *tally, rec model.Record) {
	r := s.rubric
	o := r.Opportunity
	f := rec.Funding

	t.table(model.ScoreOpportunity, model.SignalComplementarySector, r.complementary, f.Sector, "Complementary sector")
	t.table(model.ScoreOpportunity, model.SignalStageOpenness, r.openness, string(f.RoundStage), "Stage openness")
	t.gradient(model.ScoreOpportunity, model.SignalIntegration, r.integration, o.Integration, rec.Details, "Integration")
	t.keyword(model.ScoreOpportunity, model.SignalIntegration, r.reach, o.Reach.Weight, rec.Details, "Geographic reach")
	t.keyword(model.ScoreOpportunity, model.SignalIntegration, r.enterprise, o.Enterprise.Weight, rec.Details, "Enterprise focus")
}

var (
	supplyChainOpportunity = newKeywordSet([]string{"supply chain", "scope 3", "value chain"})
	procurementOpportunity = newKeywordSet([]string{"offset", "carbon credit", "voluntary market"})
)

// dovuOpportunity maps a commitment to the product line it opens up
func (s *Scorer) dovuOpportunity(rec model.Record) string {
	switch {
	case len(supplyChainOpportunity.hits(rec.Details)) > 0:
		return "Supply Chain Carbon Management - tokenization and tracking"
	case len(procurementOpportunity.hits(rec.Details)) > 0:
		return "Carbon Credit Procurement - registry integration and verification"
	case rec.Commitment.CommitmentType == model.CommitmentNetZero || rec.Commitment.CommitmentType == model.CommitmentCarbonNegative:
		return "Comprehensive Decarbonization Platform - end-to-end carbon management"
	}
	return "Carbon Measurement & Reporting - data aggregation and compliance"
}

// clampScore rounds v and clips it to [0,100]
func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
