package extract

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
)

// Snippet is one raw item handed over by a collector
type Snippet struct {
	Text       string    `json:"text"`
	SourceURL  string    `json:"source_url"`
	SourceName string    `json:"source_name"`
	ObservedAt time.Time `json:"observed_at"`
}

// Extractor turns snippets into candidate records using ordered rules and
// fallback heuristics. It holds no mutable state and is safe for
// concurrent use.
type Extractor struct {
	rules        []compiledRule
	knownSectors map[string]string
	maxDetails   int
}

// Option configures an Extractor
type Option func(*Extractor)

// WithKnownSectors maps company names to sector tags ahead of keyword
// classification
func WithKnownSectors(known map[string]string) Option {
	return func(e *Extractor) {
		for company, sector := range known {
			e.knownSectors[model.NormalizeCompany(company)] = strings.ToLower(sector)
		}
	}
}

// WithMaxDetails caps the stored details text
func WithMaxDetails(n int) Option {
	return func(e *Extractor) { e.maxDetails = n }
}

// New compiles rules into an Extractor. An invalid rule is an error.
func New(rules []Rule, opts ...Option) (*Extractor, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		rules:        compiled,
		knownSectors: make(map[string]string),
		maxDetails:   2000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewFromConfig builds an Extractor from configuration, loading the rules
// file when one is set
func NewFromConfig(cfg model.ExtractionConfig) (*Extractor, error) {
	rules := DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return New(rules, WithKnownSectors(cfg.KnownSectors), WithMaxDetails(cfg.MaxDetails))
}

// Extract converts one snippet into a candidate record. Scores are left at
// zero; the id is computed from the extracted identity fields.
func (e *Extractor) Extract(s Snippet) (model.Record, error) {
	text := normalizeText(s.Text)
	if text == "" {
		return model.Record{}, &ExtractionError{Err: ErrNoPatternMatch}
	}
	lower := strings.ToLower(text)

	rule, fields, ok := e.match(text, lower)
	if !ok {
		return model.Record{}, &ExtractionError{Err: ErrNoPatternMatch}
	}

	company := cleanCompany(fields[FieldCompany])
	if model.NormalizeCompany(company) == "" {
		return model.Record{}, missingField(rule.Name, FieldCompany)
	}

	date, inferred, err := resolveDate(rule.Name, fields[FieldDate], text, s.ObservedAt)
	if err != nil {
		return model.Record{}, err
	}

	rec := model.Record{
		Kind:             rule.Kind,
		Company:          company,
		AnnouncementDate: date,
		DateInferred:     inferred,
		SourceURL:        strings.TrimSpace(s.SourceURL),
		SourceName:       strings.TrimSpace(s.SourceName),
		Details:          truncate(text, e.maxDetails),
	}
	if !s.ObservedAt.IsZero() {
		rec.ObservedAt = s.ObservedAt.UTC()
	}

	switch rule.Kind {
	case model.KindCommitment:
		c, err := buildCommitment(rule.Name, fields, text)
		if err != nil {
			return model.Record{}, err
		}
		rec.Commitment = c
	case model.KindFunding:
		f, err := e.buildFunding(rule.Name, fields, company, text, lower)
		if err != nil {
			return model.Record{}, err
		}
		rec.Funding = f
	}

	rec.ID = model.ComputeID(rec)
	return rec, nil
}

// match returns the first rule whose trigger and required groups match
func (e *Extractor) match(text, lower string) (compiledRule, map[string]string, bool) {
	for _, rule := range e.rules {
		if !rule.triggered(lower) {
			continue
		}
		if fields, ok := rule.apply(text); ok {
			return rule, fields, true
		}
	}
	return compiledRule{}, nil, false
}

// resolveDate prefers a captured date, then any date in the text, then the
// observed_at calendar day. A date that is present but unparseable falls
// back to observed_at; with no fallback it is ErrInvalidDate. inferred
// reports the observed_at fallback.
func resolveDate(rule, captured, text string, observed time.Time) (date time.Time, inferred bool, err error) {
	candidates := []string{captured, text}
	sawBad := false

	for _, c := range candidates {
		if c == "" {
			continue
		}
		d, found, ok := parseDate(c)
		if ok {
			return d, false, nil
		}
		if found {
			sawBad = true
			break
		}
	}

	if !observed.IsZero() {
		return model.Day(observed), true, nil
	}
	if sawBad {
		return time.Time{}, false, &ExtractionError{Rule: rule, Field: FieldDate, Err: ErrInvalidDate}
	}
	return time.Time{}, false, missingField(rule, FieldDate)
}

func buildCommitment(rule string, fields map[string]string, text string) (*model.CorporateCommitment, error) {
	c := &model.CorporateCommitment{}

	if t, ok := model.ParseCommitmentType(fields[FieldType]); ok {
		c.CommitmentType = t
	} else {
		c.CommitmentType = classifyCommitment(text)
	}

	if y, ok := parseYear(fields[FieldYear]); ok {
		c.TargetYear = model.IntPtr(y)
	} else if y, ok := parseTargetYear(text); ok {
		c.TargetYear = model.IntPtr(y)
	}

	v, ok := parseVolume(fields[FieldVolume])
	if !ok {
		v, ok = parseVolume(text)
	}
	if ok {
		c.VolumeTonsCO2e = model.FloatPtr(v)
	}

	if c.TargetYear == nil && c.VolumeTonsCO2e == nil {
		return nil, missingField(rule, "target_year|volume_tons_co2e")
	}
	return c, nil
}

func (e *Extractor) buildFunding(rule string, fields map[string]string, company, text, lower string) (*model.FundingEvent, error) {
	f := &model.FundingEvent{}

	amount, ok := parseAmount(fields[FieldAmount])
	if !ok {
		amount, ok = scanAmount(text)
	}
	if !ok {
		return nil, missingField(rule, "amount_usd")
	}
	f.AmountUSD = amount

	if stage, ok := model.ParseRoundStage(fields[FieldStage]); ok {
		f.RoundStage = stage
	} else {
		f.RoundStage = scanStage(text)
	}

	var investors []string
	if v := fields[FieldAcquirer]; v != "" {
		investors = append(investors, cleanCompany(v))
	}
	if v := fields[FieldInvestors]; v != "" {
		investors = append(investors, splitNames(v)...)
	}
	investors = append(investors, scanInvestors(text)...)
	f.Investors = normalizeInvestors(investors)

	if v := fields[FieldSector]; v != "" {
		f.Sector = strings.ToLower(v)
	} else {
		f.Sector = classifySector(company, lower, e.knownSectors)
	}
	f.BusinessModel = classifyBusinessModel(lower)

	return f, nil
}

// normalizeInvestors de-duplicates case-insensitively and sorts, so the
// set has one canonical order
func normalizeInvestors(names []string) []string {
	unique := dedupeNames(names)
	if len(unique) == 0 {
		return nil
	}
	sort.Slice(unique, func(i, j int) bool {
		return strings.ToLower(unique[i]) < strings.ToLower(unique[j])
	})
	return unique
}

// String describes the rule set, mainly for debug logging
func (e *Extractor) String() string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name)
	}
	return fmt.Sprintf("extractor(%s)", strings.Join(names, ","))
}
