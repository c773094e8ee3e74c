package extract

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ppiankov/carbonintel/internal/model"
	"gopkg.in/yaml.v3"
)

// Field names a rule may capture or default. Named groups in a rule
// pattern must use one of these.
const (
	FieldCompany   = "company"
	FieldAmount    = "amount"
	FieldStage     = "stage"
	FieldInvestors = "investors"
	FieldAcquirer  = "acquirer"
	FieldYear      = "year"
	FieldVolume    = "volume"
	FieldDate      = "date"
	FieldSector    = "sector"
	FieldType      = "type"
)

var knownFields = map[string]bool{
	FieldCompany: true, FieldAmount: true, FieldStage: true, FieldInvestors: true, FieldAcquirer: true,
	FieldYear: true, FieldVolume: true, FieldDate: true, FieldSector: true, FieldType: true,
}

// Rule is one declarative extraction rule. Rules are tried in order; the
// first whose trigger and required groups all match wins.
type Rule struct {
	Name     string            `yaml:"name"`
	Kind     model.RecordKind  `yaml:"kind"`
	Triggers []string          `yaml:"triggers"` // Case-insensitive; any one must be present
	Pattern  string            `yaml:"pattern"`  // Regexp with named groups
	Required []string          `yaml:"required"` // Groups that must be non-empty
	Defaults map[string]string `yaml:"defaults"` // Field values used when not captured
}

// RuleSet is the on-disk rules file layout
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule struct {
	Rule
	re       *regexp.Regexp
	triggers []string
}

// Pattern fragments shared by the built-in rules
const (
	companyExpr = `[A-Z][\w&.'’-]*(?:\s+(?:&\s+)?[A-Z0-9][\w&.'’-]*){0,4}`
	amountExpr  = `(?:US\$|USD\s?|\$)\s?\d[\d,]*(?:\.\d+)?(?:\s?(?i:million|billion|thousand|mn|bn|m|b|k)\b)?`
	stageExpr   = `(?i:pre-?seed|seed|series\s+[a-h]\b|growth)`
)

var commitmentTriggers = []string{
	"net-zero", "net zero", "carbon-negative", "carbon negative", "carbon neutral", "carbon-neutral",
	"climate positive", "emission", "scope 1", "scope 2", "scope 3", "decarboni", "carbon removal",
	"co2", "tons", "tonnes",
}

// DefaultRules returns the built-in rule set: funding rules first, then
// commitment rules from most to least specific
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "funding-raise",
			Kind:     model.KindFunding,
			Triggers: []string{"raise", "secure", "close", "land", "bag", "nab", "collect", "picks up"},
			Pattern: `(?P<company>` + companyExpr + `)(?:,\s[^,]{1,80},)?\s+` +
				`(?i:has\s+raised|raises|raised|secures|secured|closes|closed|lands|landed|bags|nabs|collects|picks\s+up)\s+` +
				`(?:(?i:a|an|its|new)\s+)*(?:` + stageExpr + `\s+(?i:funding\s+)?(?i:round\s+)?(?i:of\s+)?)?` +
				`(?P<amount>` + amountExpr + `)`,
			Required: []string{FieldCompany, FieldAmount},
		},
		{
			Name:     "investor-leads",
			Kind:     model.KindFunding,
			Triggers: []string{"leads", "led "},
			Pattern: `(?P<investors>` + companyExpr + `)\s+(?i:leads|led)\s+(?:(?i:a|an)\s+)?` +
				`(?P<amount>` + amountExpr + `)\s+(?:(?P<stage>` + stageExpr + `)\s+)?` +
				`(?i:funding\s+)?(?i:round\s+)?(?i:investment\s+)?(?i:in|into|for)\s+` +
				`(?P<company>` + companyExpr + `)`,
			Required: []string{FieldInvestors, FieldAmount, FieldCompany},
		},
		{
			Name:     "acquisition",
			Kind:     model.KindFunding,
			Triggers: []string{"acquir", "buys", "bought"},
			Pattern: `(?P<acquirer>` + companyExpr + `)\s+` +
				`(?i:has\s+acquired|acquires|acquired|to\s+acquire|buys|bought|completes\s+acquisition\s+of)\s+` +
				`(?P<company>` + companyExpr + `)` +
				`(?:[^.]{0,60}?(?i:for|valued\s+at)\s+(?P<amount>` + amountExpr + `))?`,
			Required: []string{FieldAcquirer, FieldCompany},
			Defaults: map[string]string{FieldStage: string(model.StageAcquisition)},
		},
		{
			Name:     "registry-partnership",
			Kind:     model.KindCommitment,
			Triggers: []string{"registry", "verra", "gold standard", "puro", "isometric"},
			Pattern: `(?P<company>` + companyExpr + `)\s+` +
				`(?i:partners\s+with|joins|signs\s+with|teams\s+up\s+with|selects|lists\s+(?:its\s+)?(?:credits\s+)?on|registers\s+with|onboards\s+(?:to|with))\s+` +
				`(?i:[\w\s.&-]{0,40}?(?:registry|verra|gold\s+standard|puro|isometric))`,
			Required: []string{FieldCompany},
			Defaults: map[string]string{FieldType: string(model.CommitmentRegistryPartnership)},
		},
		{
			Name:     "commitment-verb",
			Kind:     model.KindCommitment,
			Triggers: commitmentTriggers,
			Pattern: `(?P<company>` + companyExpr + `)\s+` +
				`(?i:reaffirms|reaffirmed|announces|announced|commits|committed|pledges|pledged|sets|targets|aims|vows|unveils|reiterates|expands)\b`,
			Required: []string{FieldCompany},
		},
		{
			Name:     "commitment-legal-name",
			Kind:     model.KindCommitment,
			Triggers: commitmentTriggers,
			Pattern:  `(?P<company>[A-Z][\w&'’-]*(?:\s+[A-Z][\w&'’-]*){0,4}\s+(?:Inc|Corp|Corporation|Ltd|LLC|PLC|plc|Group|Company)\b\.?)`,
			Required: []string{FieldCompany},
		},
	}
}

// LoadRules reads a YAML rule set from path
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(set.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}

	return set.Rules, nil
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))

	for i, rule := range rules {
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", i)
		}
		if rule.Kind != model.KindCommitment && rule.Kind != model.KindFunding {
			return nil, fmt.Errorf("rule %s: unknown kind %q", rule.Name, rule.Kind)
		}

		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: compile pattern: %w", rule.Name, err)
		}

		for _, name := range re.SubexpNames() {
			if name != "" && !knownFields[name] {
				return nil, fmt.Errorf("rule %s: unknown capture group %q", rule.Name, name)
			}
		}
		for _, name := range rule.Required {
			if re.SubexpIndex(name) < 0 {
				return nil, fmt.Errorf("rule %s: required group %q not in pattern", rule.Name, name)
			}
		}
		for name := range rule.Defaults {
			if !knownFields[name] {
				return nil, fmt.Errorf("rule %s: unknown default field %q", rule.Name, name)
			}
		}

		triggers := make([]string, 0, len(rule.Triggers))
		for _, t := range rule.Triggers {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				triggers = append(triggers, t)
			}
		}

		compiled = append(compiled, compiledRule{Rule: rule, re: re, triggers: triggers})
	}

	return compiled, nil
}

// triggered reports whether any trigger occurs in lower. A rule without
// triggers is always tried.
func (r compiledRule) triggered(lower string) bool {
	if len(r.triggers) == 0 {
		return true
	}
	for _, t := range r.triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// apply runs the pattern and returns the captured fields with defaults
// folded in. ok is false unless every required group is non-empty.
func (r compiledRule) apply(text string) (map[string]string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	fields := make(map[string]string)
	for i, name := range r.re.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}
		if v := strings.TrimSpace(m[i]); v != "" {
			fields[name] = v
		}
	}

	for _, name := range r.Required {
		if fields[name] == "" {
			return nil, false
		}
	}

	for name, v := range r.Defaults {
		if fields[name] == "" {
			fields[name] = v
		}
	}

	return fields, true
}
