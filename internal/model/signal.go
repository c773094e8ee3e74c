package model

// Signal is one scoring contribution with its transparent inputs
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Score       string                 `json:"score"`          // Which score the points went to
	Points      float64                `json:"points"`         // Contribution before clamping
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Formula and inputs
}

// SignalType classifies a scoring signal
type SignalType string

const (
	SignalRevenueTier           SignalType = "revenue_tier"           // Company size indicators
	SignalSupplyChain           SignalType = "supply_chain"           // Supply-chain complexity hits
	SignalCarbonPurchase        SignalType = "carbon_purchase"        // Prior carbon credit purchases
	SignalMultiGeography        SignalType = "multi_geography"        // Operates across regions
	SignalDigitalTransformation SignalType = "digital_transformation" // Digital/data programme hits
	SignalCommitmentType        SignalType = "commitment_type"        // Ambition of the pledge
	SignalTargetUrgency         SignalType = "target_urgency"         // How soon the target falls due
	SignalSectorMatch           SignalType = "sector_match"           // Sector fit to the platform thesis
	SignalDescription           SignalType = "description_keywords"   // Keyword fit in the announcement
	SignalStage                 SignalType = "round_stage"            // Stage weight
	SignalInvestorTier          SignalType = "investor_tier"          // Recognized climate investors
	SignalSectorOverlap         SignalType = "sector_overlap"         // Overlap with own value proposition
	SignalCapitalRaised         SignalType = "capital_raised"         // Log-scaled capital to date
	SignalRecency               SignalType = "recency"                // Decay beyond the horizon
	SignalComplementarySector   SignalType = "complementary_sector"   // Sector complements the platform
	SignalStageOpenness         SignalType = "stage_openness"         // Openness to integration by stage
	SignalIntegration           SignalType = "integration_keywords"   // Integration-friendly keywords
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Score names used in Signal.Score
const (
	ScoreRelevance   = "relevance"
	ScoreThreat      = "threat"
	ScoreOpportunity = "opportunity"
)
