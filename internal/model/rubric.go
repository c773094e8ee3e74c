package model

// Rubric holds every weight table the scoring engine reads. It is plain
// configuration: loaded at startup and passed to the scorer explicitly.
type Rubric struct {
	Commitment  CommitmentRubric  `yaml:"commitment" mapstructure:"commitment"`
	Funding     FundingRubric     `yaml:"funding" mapstructure:"funding"`
	Threat      ThreatRubric      `yaml:"threat" mapstructure:"threat"`
	Opportunity OpportunityRubric `yaml:"opportunity" mapstructure:"opportunity"`
}

// KeywordSignal awards Weight points when any keyword is present
type KeywordSignal struct {
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
	Weight   float64  `yaml:"weight" mapstructure:"weight"`
}

// GradientSignal awards PerHit points per distinct keyword present, up to Max
type GradientSignal struct {
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
	PerHit   float64  `yaml:"per_hit" mapstructure:"per_hit"`
	Max      float64  `yaml:"max" mapstructure:"max"`
}

// CommitmentRubric scores DOVU relevance of corporate commitments
type CommitmentRubric struct {
	RevenueTier           KeywordSignal      `yaml:"revenue_tier" mapstructure:"revenue_tier"`
	SupplyChain           GradientSignal     `yaml:"supply_chain" mapstructure:"supply_chain"`
	CarbonPurchase        KeywordSignal      `yaml:"carbon_purchase" mapstructure:"carbon_purchase"`
	MultiGeography        KeywordSignal      `yaml:"multi_geography" mapstructure:"multi_geography"`
	DigitalTransformation GradientSignal     `yaml:"digital_transformation" mapstructure:"digital_transformation"`
	TypeWeights           map[string]float64 `yaml:"type_weights" mapstructure:"type_weights"`
	UrgentYear            int                `yaml:"urgent_year" mapstructure:"urgent_year"`
	UrgentWeight          float64            `yaml:"urgent_weight" mapstructure:"urgent_weight"`
	NearYear              int                `yaml:"near_year" mapstructure:"near_year"`
	NearWeight            float64            `yaml:"near_weight" mapstructure:"near_weight"`
}

// FundingRubric scores DOVU relevance of funding events
type FundingRubric struct {
	SectorWeights    map[string]float64 `yaml:"sector_weights" mapstructure:"sector_weights"`
	Description      []KeywordSignal    `yaml:"description" mapstructure:"description"`
	StageWeights     map[string]float64 `yaml:"stage_weights" mapstructure:"stage_weights"`
	TopTierInvestors []string           `yaml:"top_tier_investors" mapstructure:"top_tier_investors"`
	InvestorBonus    float64            `yaml:"investor_bonus" mapstructure:"investor_bonus"`
}

// ThreatRubric scores competitive threat of funding events
type ThreatRubric struct {
	SectorOverlap        map[string]float64 `yaml:"sector_overlap" mapstructure:"sector_overlap"`
	Overlap              KeywordSignal      `yaml:"overlap_keywords" mapstructure:"overlap_keywords"`
	CapitalWeight        float64            `yaml:"capital_weight" mapstructure:"capital_weight"`
	CapitalSaturationUSD float64            `yaml:"capital_saturation_usd" mapstructure:"capital_saturation_usd"`
	HorizonDays          int                `yaml:"horizon_days" mapstructure:"horizon_days"`
	HalfLifeDays         int                `yaml:"half_life_days" mapstructure:"half_life_days"`
}

// OpportunityRubric scores partnership opportunity of funding events
type OpportunityRubric struct {
	Complementary map[string]float64 `yaml:"complementary" mapstructure:"complementary"`
	StageOpenness map[string]float64 `yaml:"stage_openness" mapstructure:"stage_openness"`
	Integration   GradientSignal     `yaml:"integration" mapstructure:"integration"`
	Reach         KeywordSignal      `yaml:"reach" mapstructure:"reach"`
	Enterprise    KeywordSignal      `yaml:"enterprise" mapstructure:"enterprise"`
}

// DefaultRubric returns the built-in weight tables
func DefaultRubric() Rubric {
	return Rubric{
		Commitment: CommitmentRubric{
			RevenueTier: KeywordSignal{
				Keywords: []string{"fortune 500", "fortune 100", "s&p 500", "ftse 100", "multinational", "billion in revenue", "billion revenue"},
				Weight:   30,
			},
			SupplyChain: GradientSignal{
				Keywords: []string{"supply chain", "value chain", "scope 3", "suppliers", "procurement", "logistics"},
				PerHit:   5,
				Max:      15,
			},
			CarbonPurchase: KeywordSignal{
				Keywords: []string{"carbon credit", "carbon removal credit", "offset", "voluntary market", "offtake", "removal contract"},
				Weight:   15,
			},
			MultiGeography: KeywordSignal{
				Keywords: []string{"global", "worldwide", "international", "countries", "regions"},
				Weight:   10,
			},
			DigitalTransformation: GradientSignal{
				Keywords: []string{"digital", "data platform", "blockchain", "tokeniz", "cloud", "traceability", "artificial intelligence"},
				PerHit:   5,
				Max:      10,
			},
			TypeWeights: map[string]float64{
				string(CommitmentCarbonNegative):      50,
				string(CommitmentNetZero):             40,
				string(CommitmentRegistryPartnership): 35,
				string(CommitmentScopeReduction):      20,
				string(CommitmentOther):               10,
			},
			UrgentYear:   2030,
			UrgentWeight: 20,
			NearYear:     2040,
			NearWeight:   10,
		},
		Funding: FundingRubric{
			SectorWeights: map[string]float64{
				"carbon-accounting": 40,
				"registry":          40,
				"tokenization":      40,
				"mrv":               35,
			},
			Description: []KeywordSignal{
				{Keywords: []string{"carbon credit", "carbon trading", "carbon platform", "carbon market"}, Weight: 20},
				{Keywords: []string{"supply chain", "scope 3", "value chain"}, Weight: 15},
				{Keywords: []string{"tokeniz", "blockchain", "digital asset"}, Weight: 10},
				{Keywords: []string{"enterprise", "b2b", "saas"}, Weight: 5},
			},
			StageWeights: stageTable(30, 30, 25, 20, 10, 5, 5, 0),
			TopTierInvestors: []string{
				"Breakthrough Energy Ventures", "Lowercarbon Capital", "Congruent Ventures",
				"Energy Impact Partners", "Prelude Ventures", "Khosla Ventures", "Lightspeed",
				"Microsoft Climate Innovation Fund", "Amazon Climate Pledge Fund", "Clean Energy Ventures",
			},
			InvestorBonus: 10,
		},
		Threat: ThreatRubric{
			SectorOverlap: map[string]float64{
				"registry":          50,
				"tokenization":      50,
				"marketplace":       45,
				"carbon-accounting": 40,
				"mrv":               30,
			},
			Overlap: KeywordSignal{
				Keywords: []string{"carbon credit platform", "tokenized carbon", "carbon tokenization", "digital registry", "carbon marketplace"},
				Weight:   15,
			},
			CapitalWeight:        40,
			CapitalSaturationUSD: 1e9,
			HorizonDays:          365,
			HalfLifeDays:         180,
		},
		Opportunity: OpportunityRubric{
			Complementary: map[string]float64{
				"mrv":               40,
				"nature-based":      35,
				"removal":           35,
				"data":              30,
				"carbon-accounting": 20,
				"climate-tech":      20,
				"registry":          10,
				"tokenization":      5,
			},
			StageOpenness: stageTable(30, 30, 30, 20, 10, 5, 5, 0),
			Integration: GradientSignal{
				Keywords: []string{"api", "integration", "partnership", "monitoring", "verification", "measurement", "registry", "data"},
				PerHit:   5,
				Max:      20,
			},
			Reach: KeywordSignal{
				Keywords: []string{"global", "international", "expansion"},
				Weight:   10,
			},
			Enterprise: KeywordSignal{
				Keywords: []string{"enterprise", "corporate", "b2b"},
				Weight:   10,
			},
		},
	}
}

func stageTable(preSeed, seed, a, b, c, d, growth, acquisition float64) map[string]float64 {
	return map[string]float64{
		string(StagePreSeed):     preSeed,
		string(StageSeed):        seed,
		string(StageSeriesA):     a,
		string(StageSeriesB):     b,
		string(StageSeriesC):     c,
		string(StageSeriesDPlus): d,
		string(StageGrowth):      growth,
		string(StageAcquisition): acquisition,
	}
}
