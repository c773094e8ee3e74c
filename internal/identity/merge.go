package identity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/carbonintel/internal/model"
)

const detailsSeparator = " | "

// merger folds a candidate into an existing record field by field
type merger struct {
	out       model.Record
	cand      model.Record
	later     bool // candidate observed strictly later than existing
	changed   []string
	conflicts []string
}

// resolve reports whether the candidate value should replace the existing one
func (m *merger) resolve(field string, existingUnknown, candUnknown, equal bool) bool {
	switch {
	case candUnknown || equal:
		return false
	case existingUnknown:
		m.changed = append(m.changed, field)
		return true
	case m.later:
		m.changed = append(m.changed, field)
		m.conflicts = append(m.conflicts, field)
		return true
	}
	m.conflicts = append(m.conflicts, field)
	return false
}

// merge returns existing enriched with cand and the list of fields it
// changed. Conflicting populated fields take the candidate value only when
// cand was observed strictly later; provenance of the displaced source is
// kept in SecondarySourceURL.
func merge(existing, cand model.Record, maxDetails int) (model.Record, []string) {
	m := &merger{
		out:   existing.Clone(),
		cand:  cand,
		later: cand.ObservedAt.After(existing.ObservedAt),
	}

	if m.resolve("company", strings.TrimSpace(m.out.Company) == "", strings.TrimSpace(cand.Company) == "",
		model.NormalizeCompany(m.out.Company) == model.NormalizeCompany(cand.Company)) {
		m.out.Company = cand.Company
	}
	m.mergeDate()

	switch m.out.Kind {
	case model.KindCommitment:
		m.mergeCommitment()
	case model.KindFunding:
		m.mergeFunding()
	}

	m.mergeProvenance()

	if details := appendDetails(m.out.Details, cand.Details, maxDetails); details != m.out.Details {
		m.out.Details = details
		m.changed = append(m.changed, "details")
	}

	return m.out, m.changed
}

// mergeDate lets a date stated in the text replace one inferred from
// observed_at. An inferred candidate date never displaces a known date.
func (m *merger) mergeDate() {
	e, c := m.out, m.cand
	existingUnknown := e.AnnouncementDate.IsZero() || (e.DateInferred && !c.DateInferred)
	candUnknown := c.AnnouncementDate.IsZero() || (c.DateInferred && !e.AnnouncementDate.IsZero())
	equal := model.Day(e.AnnouncementDate).Equal(model.Day(c.AnnouncementDate))

	if m.resolve("announcement_date", existingUnknown, candUnknown, equal) {
		m.out.AnnouncementDate = c.AnnouncementDate
		m.out.DateInferred = c.DateInferred
		return
	}
	if equal && e.DateInferred && !c.DateInferred && !c.AnnouncementDate.IsZero() {
		m.out.DateInferred = false
		m.changed = append(m.changed, "date_inferred")
	}
}

func (m *merger) mergeCommitment() {
	if m.cand.Commitment == nil {
		return
	}
	e, c := m.out.Commitment, m.cand.Commitment

	unknownType := func(t model.CommitmentType) bool { return t == "" || t == model.CommitmentOther }
	if m.resolve("commitment_type", unknownType(e.CommitmentType), unknownType(c.CommitmentType), e.CommitmentType == c.CommitmentType) {
		e.CommitmentType = c.CommitmentType
	}
	if m.resolve("target_year", e.TargetYear == nil, c.TargetYear == nil, e.TargetYear != nil && c.TargetYear != nil && *e.TargetYear == *c.TargetYear) {
		e.TargetYear = model.IntPtr(*c.TargetYear)
	}
	if m.resolve("volume_tons_co2e", e.VolumeTonsCO2e == nil, c.VolumeTonsCO2e == nil, e.VolumeTonsCO2e != nil && c.VolumeTonsCO2e != nil && *e.VolumeTonsCO2e == *c.VolumeTonsCO2e) {
		e.VolumeTonsCO2e = model.FloatPtr(*c.VolumeTonsCO2e)
	}
}

func (m *merger) mergeFunding() {
	if m.cand.Funding == nil {
		return
	}
	e, c := m.out.Funding, m.cand.Funding

	if m.resolve("round_stage", e.RoundStage == model.StageUnknown, c.RoundStage == model.StageUnknown, e.RoundStage == c.RoundStage) {
		e.RoundStage = c.RoundStage
	}
	if m.resolve("amount_usd", e.AmountUSD == 0, c.AmountUSD == 0, e.AmountUSD == c.AmountUSD) {
		e.AmountUSD = c.AmountUSD
	}
	if m.resolve("sector", e.Sector == "", c.Sector == "", strings.EqualFold(e.Sector, c.Sector)) {
		e.Sector = c.Sector
	}
	if m.resolve("business_model", e.BusinessModel == "", c.BusinessModel == "", strings.EqualFold(e.BusinessModel, c.BusinessModel)) {
		e.BusinessModel = c.BusinessModel
	}

	if union := unionNames(e.Investors, c.Investors); len(union) != len(e.Investors) {
		e.Investors = union
		m.changed = append(m.changed, "investors")
	}
}

// mergeProvenance keeps the later observation as primary source and the
// other as secondary whenever both sources were involved
func (m *merger) mergeProvenance() {
	cand := m.cand
	if cand.SourceURL == "" || cand.SourceURL == m.out.SourceURL {
		if m.later {
			m.out.ObservedAt = cand.ObservedAt
		}
		return
	}

	switch {
	case m.out.SourceURL == "":
		m.out.SourceURL = cand.SourceURL
		m.out.SourceName = cand.SourceName
		m.changed = append(m.changed, "source_url")
	case m.later && len(m.conflicts) > 0:
		m.out.SecondarySourceURL = m.out.SourceURL
		m.out.SourceURL = cand.SourceURL
		m.out.SourceName = cand.SourceName
		m.changed = append(m.changed, "source_url")
	case m.out.SecondarySourceURL == "":
		m.out.SecondarySourceURL = cand.SourceURL
		m.changed = append(m.changed, "secondary_source_url")
	}

	if m.later {
		m.out.ObservedAt = cand.ObservedAt
	}
}

// appendDetails adds fragment unless already present, keeping the
// accumulated text within max runes
func appendDetails(existing, fragment string, max int) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return existing
	}
	if existing == "" {
		return capRunes(fragment, max)
	}
	for _, part := range strings.Split(existing, detailsSeparator) {
		if part == fragment {
			return existing
		}
	}
	if max > 0 && utf8.RuneCountInString(existing) >= max {
		return existing
	}
	return capRunes(existing+detailsSeparator+fragment, max)
}

func capRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// unionNames merges name lists, dropping case-insensitive duplicates and
// keeping the first spelling seen, sorted
func unionNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}
