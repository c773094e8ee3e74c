package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/shopspring/decimal"
)

const monthExpr = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

var (
	numberRe     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	amountScanRe = regexp.MustCompile(amountExpr)
	stageScanRe  = regexp.MustCompile(`(?i)\b(pre-?seed|seed|series\s+[a-h]|growth(?:\s+equity)?)\b`)
	yearRe       = regexp.MustCompile(`(?i)\bby\s+(20\d{2})\b|\btarget\w*\b[^.]{0,40}?\b(20\d{2})\b|\b(20\d{2})\s+(?:target|goal)`)
	volumeRe     = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(million|billion|thousand|mn|bn|m|k)?\s*(?:metric\s+)?(tons?|tonnes?|tco2e?|mtco2e?|mt|gt|kt)\b`)
	investorsRe  = regexp.MustCompile(`(?i)\b(?:led\s+by|co-led\s+by|with\s+participation\s+from|backed\s+by|from\s+investors(?:\s+including)?)\s+`)
	listSplitRe  = regexp.MustCompile(`(?i)\s*(?:,|;|\s&\s|\band\b|\bas\s+well\s+as\b|\bwith\s+participation\s+from\b|\bco-led\s+by\b|\balongside\b|\bincluding\b)\s*`)

	isoDateRe  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	mdyDateRe  = regexp.MustCompile(`(?i)\b(` + monthExpr + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	dmyDateRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthExpr + `)\.?,?\s+(\d{4})\b`)
	monthNames = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
		"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
		"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// maxQuantity bounds parsed amounts and tonnages; anything larger is
// treated as unparseable
var maxQuantity = decimal.NewFromInt(1e13)

var unitMultipliers = map[string]int64{
	"k": 1e3, "thousand": 1e3, "kt": 1e3,
	"m": 1e6, "mn": 1e6, "million": 1e6, "mt": 1e6, "mtco2": 1e6, "mtco2e": 1e6,
	"b": 1e9, "bn": 1e9, "billion": 1e9, "gt": 1e9,
}

// parseAmount converts a currency string such as "$101M" or
// "US$ 2.5 billion" to dollars. A bare number is taken as dollars.
func parseAmount(s string) (float64, bool) {
	num := numberRe.FindString(s)
	if num == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(num, ",", ""))
	if err != nil {
		return 0, false
	}

	rest := strings.ToLower(strings.TrimSpace(s[strings.Index(s, num)+len(num):]))
	if mult, ok := unitMultipliers[rest]; ok {
		d = d.Mul(decimal.NewFromInt(mult))
	}

	return boundedFloat(d)
}

// scanAmount finds the first currency amount anywhere in text
func scanAmount(text string) (float64, bool) {
	m := amountScanRe.FindString(text)
	if m == "" {
		return 0, false
	}
	return parseAmount(m)
}

// parseVolume finds the first CO2e tonnage in text
func parseVolume(text string) (float64, bool) {
	m := volumeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}

	if mult, ok := unitMultipliers[strings.ToLower(m[2])]; ok {
		d = d.Mul(decimal.NewFromInt(mult))
	} else if mult, ok := unitMultipliers[strings.ToLower(m[3])]; ok {
		d = d.Mul(decimal.NewFromInt(mult))
	}

	return boundedFloat(d)
}

// boundedFloat converts d, rejecting negative values and values above
// maxQuantity
func boundedFloat(d decimal.Decimal) (float64, bool) {
	if d.IsNegative() || d.GreaterThan(maxQuantity) {
		return 0, false
	}
	v, _ := d.Float64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// parseTargetYear finds a target year ("by 2030", "2040 target")
func parseTargetYear(text string) (int, bool) {
	m := yearRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		if y, err := strconv.Atoi(g); err == nil && y >= 2000 && y <= 2100 {
			return y, true
		}
	}
	return 0, false
}

// parseYear accepts a captured year group
func parseYear(s string) (int, bool) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 2000 || y > 2100 {
		return 0, false
	}
	return y, true
}

// parseDate parses a single date expression. found reports whether s
// looked like a date at all, so callers can tell a bad date from none.
func parseDate(s string) (date time.Time, found bool, ok bool) {
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		date, ok = makeDate(y, time.Month(mo), d)
		return date, true, ok
	}
	if m := mdyDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[3])
		d, _ := strconv.Atoi(m[2])
		date, ok = makeDate(y, monthNames[strings.ToLower(m[1])[:3]], d)
		return date, true, ok
	}
	if m := dmyDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[3])
		d, _ := strconv.Atoi(m[1])
		date, ok = makeDate(y, monthNames[strings.ToLower(m[2])[:3]], d)
		return date, true, ok
	}
	return time.Time{}, false, false
}

// makeDate rejects dates that time.Date would silently normalize
func makeDate(y int, m time.Month, d int) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// scanStage finds the first round stage named in text
func scanStage(text string) model.RoundStage {
	m := stageScanRe.FindStringSubmatch(text)
	if m == nil {
		return model.StageUnknown
	}
	stage, _ := model.ParseRoundStage(m[1])
	return stage
}

// scanInvestors collects investor names following "led by", "backed by"
// and similar phrases, up to the end of the sentence
func scanInvestors(text string) []string {
	loc := investorsRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	return splitNames(sentenceTail(text[loc[1]:]))
}

// sentenceTail cuts s at the first sentence terminator
func sentenceTail(s string) string {
	for i, r := range s {
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(s) || s[i+1] == ' ') {
			// Keep abbreviations such as "Inc." inside the list
			if j := strings.LastIndexByte(s[:i], ' '); j >= 0 && legalAbbrev[strings.ToLower(s[j+1:i])] {
				continue
			}
			return s[:i]
		}
	}
	return s
}

var legalAbbrev = map[string]bool{"inc": true, "corp": true, "ltd": true, "co": true, "llc": true, "plc": true}

// splitNames splits a list of names and keeps the capitalized run at the
// start of each part
func splitNames(list string) []string {
	var names []string
	for _, part := range listSplitRe.Split(list, -1) {
		if name := properNounRun(part); name != "" {
			names = append(names, name)
		}
	}
	return dedupeNames(names)
}

// properNounRun returns the leading run of capitalized words in s
func properNounRun(s string) string {
	var run []string
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, "\"“”()")
		if w == "" {
			break
		}
		first := w[0]
		if (first >= 'A' && first <= 'Z') || (first >= '0' && first <= '9') {
			run = append(run, w)
			continue
		}
		break
	}
	name := strings.Join(run, " ")
	if strings.EqualFold(name, "existing investors") || strings.EqualFold(name, "others") {
		return ""
	}
	return strings.TrimRight(name, ",;:")
}

var (
	carbonNegativeRe = regexp.MustCompile(`(?i)carbon[- ]?negative|climate[- ]?positive`)
	netZeroRe        = regexp.MustCompile(`(?i)net[- ]?zero|carbon[- ]?neutral`)
	registryRe       = regexp.MustCompile(`(?i)\bregistry\b|\bverra\b|gold standard|puro\.earth|isometric`)
	scopeRe          = regexp.MustCompile(`(?i)scope\s*[123]|emissions?\s+reductions?|(?:reduce|cut)\s+(?:its\s+)?emissions`)
)

// classifyCommitment picks the commitment type from the text, most
// ambitious first
func classifyCommitment(text string) model.CommitmentType {
	switch {
	case carbonNegativeRe.MatchString(text):
		return model.CommitmentCarbonNegative
	case netZeroRe.MatchString(text):
		return model.CommitmentNetZero
	case registryRe.MatchString(text):
		return model.CommitmentRegistryPartnership
	case scopeRe.MatchString(text):
		return model.CommitmentScopeReduction
	}
	return model.CommitmentOther
}

// sectorKeywords is checked in order; first hit wins
var sectorKeywords = []struct {
	sector   string
	keywords []string
}{
	{"tokenization", []string{"tokeniz", "blockchain", "web3", "digital asset", "on-chain"}},
	{"registry", []string{"registry", "registries"}},
	{"mrv", []string{"mrv", "monitoring, reporting", "measurement, reporting", "verification", "satellite"}},
	{"carbon-accounting", []string{"carbon accounting", "emissions accounting", "carbon management software", "carbon footprint", "emissions data"}},
	{"marketplace", []string{"marketplace", "carbon exchange", "trading platform"}},
	{"removal", []string{"direct air capture", "carbon removal", "biochar", "enhanced weathering", "carbon capture"}},
	{"nature-based", []string{"reforestation", "afforestation", "nature-based", "forest", "mangrove"}},
	{"climate-tech", []string{"climate tech", "climate-tech", "climatetech"}},
}

// classifySector looks the company up in the known table, then falls back
// to keywords. Empty means unknown.
func classifySector(company, lower string, known map[string]string) string {
	if s, ok := known[model.NormalizeCompany(company)]; ok {
		return s
	}
	for _, entry := range sectorKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.sector
			}
		}
	}
	return ""
}

// classifyBusinessModel labels how the company makes money
func classifyBusinessModel(lower string) string {
	switch {
	case strings.Contains(lower, "marketplace") || strings.Contains(lower, "trading"):
		return "marketplace"
	case strings.Contains(lower, "saas") || strings.Contains(lower, "platform") || strings.Contains(lower, "software"):
		return "software-platform"
	case strings.Contains(lower, "consulting") || strings.Contains(lower, "advisory"):
		return "services"
	case strings.Contains(lower, "hardware") || strings.Contains(lower, "device"):
		return "hardware"
	}
	return "other"
}
