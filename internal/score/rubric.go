package score

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/carbonintel/internal/model"
)

// ScoringError reports a malformed rubric. It is only raised at startup.
type ScoringError struct {
	Field  string
	Reason string
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("invalid rubric: %s: %s", e.Field, e.Reason)
}

// ValidateRubric rejects negative weights and non-positive decay or
// scaling parameters
func ValidateRubric(r model.Rubric) error {
	type weightCheck struct {
		field string
		value float64
	}

	c := r.Commitment
	checks := []weightCheck{
		{"commitment.revenue_tier.weight", c.RevenueTier.Weight},
		{"commitment.supply_chain.per_hit", c.SupplyChain.PerHit},
		{"commitment.supply_chain.max", c.SupplyChain.Max},
		{"commitment.carbon_purchase.weight", c.CarbonPurchase.Weight},
		{"commitment.multi_geography.weight", c.MultiGeography.Weight},
		{"commitment.digital_transformation.per_hit", c.DigitalTransformation.PerHit},
		{"commitment.digital_transformation.max", c.DigitalTransformation.Max},
		{"commitment.urgent_weight", c.UrgentWeight},
		{"commitment.near_weight", c.NearWeight},
		{"funding.investor_bonus", r.Funding.InvestorBonus},
		{"threat.overlap_keywords.weight", r.Threat.Overlap.Weight},
		{"threat.capital_weight", r.Threat.CapitalWeight},
		{"opportunity.integration.per_hit", r.Opportunity.Integration.PerHit},
		{"opportunity.integration.max", r.Opportunity.Integration.Max},
		{"opportunity.reach.weight", r.Opportunity.Reach.Weight},
		{"opportunity.enterprise.weight", r.Opportunity.Enterprise.Weight},
	}
	for i, kw := range r.Funding.Description {
		checks = append(checks, weightCheck{fmt.Sprintf("funding.description[%d].weight", i), kw.Weight})
	}
	for _, ch := range checks {
		if ch.value < 0 {
			return &ScoringError{Field: ch.field, Reason: fmt.Sprintf("negative weight %v", ch.value)}
		}
	}

	tables := map[string]map[string]float64{
		"commitment.type_weights":    c.TypeWeights,
		"funding.sector_weights":     r.Funding.SectorWeights,
		"funding.stage_weights":      r.Funding.StageWeights,
		"threat.sector_overlap":      r.Threat.SectorOverlap,
		"opportunity.complementary":  r.Opportunity.Complementary,
		"opportunity.stage_openness": r.Opportunity.StageOpenness,
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		keys := make([]string, 0, len(tables[name]))
		for k := range tables[name] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := tables[name][k]; v < 0 {
				return &ScoringError{Field: name + "." + k, Reason: fmt.Sprintf("negative weight %v", v)}
			}
		}
	}

	if r.Threat.HorizonDays < 0 {
		return &ScoringError{Field: "threat.horizon_days", Reason: "must not be negative"}
	}
	if r.Threat.HalfLifeDays <= 0 {
		return &ScoringError{Field: "threat.half_life_days", Reason: "must be positive"}
	}
	if r.Threat.CapitalSaturationUSD <= 0 {
		return &ScoringError{Field: "threat.capital_saturation_usd", Reason: "must be positive"}
	}
	if c.NearYear != 0 && c.UrgentYear > c.NearYear {
		return &ScoringError{Field: "commitment.urgent_year", Reason: "must not be after near_year"}
	}

	return nil
}

// keywordSet matches keywords at a word start, case-insensitively
type keywordSet struct {
	words []string
	res   []*regexp.Regexp
}

func newKeywordSet(words []string) keywordSet {
	var ks keywordSet
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		ks.words = append(ks.words, w)
		ks.res = append(ks.res, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)))
	}
	return ks
}

// hits returns the distinct keywords present in text
func (k keywordSet) hits(text string) []string {
	var found []string
	for i, re := range k.res {
		if re.MatchString(text) {
			found = append(found, k.words[i])
		}
	}
	return found
}

// lowerKeys copies a weight table with lower-cased keys; config loaders
// may fold key case
func lowerKeys(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func maxWeight(table map[string]float64) float64 {
	var max float64
	for _, v := range table {
		if v > max {
			max = v
		}
	}
	return max
}

type compiledRubric struct {
	model.Rubric

	revenue     keywordSet
	supplyChain keywordSet
	purchase    keywordSet
	geography   keywordSet
	digital     keywordSet
	description []keywordSet
	overlapKw   keywordSet
	integration keywordSet
	reach       keywordSet
	enterprise  keywordSet

	typeWeights   map[string]float64
	sectorWeights map[string]float64
	stageWeights  map[string]float64
	overlap       map[string]float64
	complementary map[string]float64
	openness      map[string]float64
	topTier       []string
}

func compileRubric(r model.Rubric) *compiledRubric {
	cr := &compiledRubric{
		Rubric:        r,
		revenue:       newKeywordSet(r.Commitment.RevenueTier.Keywords),
		supplyChain:   newKeywordSet(r.Commitment.SupplyChain.Keywords),
		purchase:      newKeywordSet(r.Commitment.CarbonPurchase.Keywords),
		geography:     newKeywordSet(r.Commitment.MultiGeography.Keywords),
		digital:       newKeywordSet(r.Commitment.DigitalTransformation.Keywords),
		overlapKw:     newKeywordSet(r.Threat.Overlap.Keywords),
		integration:   newKeywordSet(r.Opportunity.Integration.Keywords),
		reach:         newKeywordSet(r.Opportunity.Reach.Keywords),
		enterprise:    newKeywordSet(r.Opportunity.Enterprise.Keywords),
		typeWeights:   lowerKeys(r.Commitment.TypeWeights),
		sectorWeights: lowerKeys(r.Funding.SectorWeights),
		stageWeights:  lowerKeys(r.Funding.StageWeights),
		overlap:       lowerKeys(r.Threat.SectorOverlap),
		complementary: lowerKeys(r.Opportunity.Complementary),
		openness:      lowerKeys(r.Opportunity.StageOpenness),
	}
	for _, d := range r.Funding.Description {
		cr.description = append(cr.description, newKeywordSet(d.Keywords))
	}
	for _, inv := range r.Funding.TopTierInvestors {
		if inv = model.NormalizeCompany(inv); inv != "" {
			cr.topTier = append(cr.topTier, inv)
		}
	}
	return cr
}
