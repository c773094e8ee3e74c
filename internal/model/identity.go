package model

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// recordNamespace scopes the deterministic v5 record identifiers
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/carbonintel/records"))

// legalSuffixes are stripped from the tail of a company name before matching
var legalSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"corp":         true,
	"corporation":  true,
	"co":           true,
	"company":      true,
	"plc":          true,
	"group":        true,
	"ltd":          true,
	"limited":      true,
	"llc":          true,
}

// NormalizeCompany produces the matching form of a company name:
// lower-case, punctuation removed, trailing legal suffixes stripped.
// It is used only for identity; display keeps the original casing.
func NormalizeCompany(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r != '.' && r != '\'' {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	for len(fields) > 1 && legalSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// AmountBucket rounds an amount to two significant digits so that minor
// reporting differences ($101M vs $100M) share one identity
func AmountBucket(amount float64) string {
	if amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return "0"
	}
	magnitude := int32(math.Floor(math.Log10(amount)))
	return decimal.NewFromFloat(amount).Round(1 - magnitude).String()
}

// IdentityKey returns the natural key the record id is derived from
func IdentityKey(r Record) string {
	company := NormalizeCompany(r.Company)

	switch r.Kind {
	case KindCommitment:
		year := 0
		var ctype CommitmentType
		if r.Commitment != nil {
			ctype = r.Commitment.CommitmentType
			if r.Commitment.TargetYear != nil {
				year = *r.Commitment.TargetYear
			}
		}
		return strings.Join([]string{string(KindCommitment), company, string(ctype), strconv.Itoa(year)}, "|")
	case KindFunding:
		var stage RoundStage
		var amount float64
		if r.Funding != nil {
			stage = r.Funding.RoundStage
			amount = r.Funding.AmountUSD
		}
		month := ""
		if !r.AnnouncementDate.IsZero() {
			month = r.AnnouncementDate.UTC().Format("2006-01")
		}
		return strings.Join([]string{string(KindFunding), company, string(stage), AmountBucket(amount), month}, "|")
	}
	return string(r.Kind) + "|" + company
}

// ComputeID returns the deterministic identifier for a record
func ComputeID(r Record) string {
	return uuid.NewSHA1(recordNamespace, []byte(IdentityKey(r))).String()
}

// SimilarityKey is the secondary near-duplicate key: kind, normalized
// company and announcement date
func SimilarityKey(r Record) string {
	date := ""
	if !r.AnnouncementDate.IsZero() {
		date = r.AnnouncementDate.UTC().Format("2006-01-02")
	}
	return string(r.Kind) + "|" + NormalizeCompany(r.Company) + "|" + date
}
