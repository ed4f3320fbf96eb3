package models

import "time"

type Supplier struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Capabilities    []string  `json:"capabilities"`
	Certifications  []string  `json:"certifications"`
	Industries      []string  `json:"industries"`
	Regions         []string  `json:"regions"`
	Technologies    []string  `json:"technologies"`
	SizeClass       string    `json:"size_class"`
	TeamSize        int       `json:"team_size"`
	YearsExperience int       `json:"years_experience"`
	Credibility     float64   `json:"credibility"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Opportunity struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title"`
	Organization           string    `json:"organization"`
	Description            string    `json:"description"`
	Source                 string    `json:"source"`
	ExternalID             string    `json:"external_id"`
	SolicitationNumber     string    `json:"solicitation_number"`
	RequiredCapabilities   []string  `json:"required_capabilities"`
	RequiredCertifications []string  `json:"required_certifications"`
	Industries             []string  `json:"industries"`
	Regions                []string  `json:"regions"`
	RequiredExperience     int       `json:"required_experience"`
	ContractValue          float64   `json:"contract_value"`
	PostedDate             string    `json:"posted_date"`
	Deadline               string    `json:"deadline"`
	ContactEmail           string    `json:"contact_email"`
	SourceURL              string    `json:"source_url"`
	NAICSCode              string    `json:"naics_code"`
	HasEnhancedData        bool      `json:"has_enhanced_data"`
	HasParsedData          bool      `json:"has_parsed_data"`
	HasAnalysisData        bool      `json:"has_analysis_data"`
	DataQualityPct         float64   `json:"data_quality_pct"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type ConstraintFailure struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

type JudgeEvaluation struct {
	JudgeName       string   `json:"judge_name"`
	Score           int      `json:"score"`
	Verdict         string   `json:"verdict"`
	Confidence      float64  `json:"confidence"`
	Evidence        []string `json:"evidence"`
	Recommendations []string `json:"recommendations"`
}

type ScoringResult struct {
	ID                   string              `json:"id"`
	SupplierID           string              `json:"supplier_id"`
	OpportunityID        string              `json:"opportunity_id"`
	OverallScore         int                 `json:"overall_score"`
	Verdict              string              `json:"verdict"`
	JudgeEvaluations     []JudgeEvaluation   `json:"judge_evaluations"`
	ConstraintFailures   []ConstraintFailure `json:"constraint_failures"`
	Recommendations      []string            `json:"recommendations"`
	Enhanced             bool                `json:"enhanced"`
	BasicScore           int                 `json:"basic_score,omitempty"`
	RelationshipInsights []string            `json:"relationship_insights,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
}

type PartnershipBreakdown struct {
	SharedCapabilities     []string `json:"shared_capabilities"`
	UniqueToA              []string `json:"unique_to_a"`
	UniqueToB              []string `json:"unique_to_b"`
	CombinedRegions        []string `json:"combined_regions"`
	CombinedCertifications []string `json:"combined_certifications"`
}

type PartnershipScore struct {
	CompanyAID      string               `json:"company_a_id"`
	CompanyBID      string               `json:"company_b_id"`
	CompanyBName    string               `json:"company_b_name,omitempty"`
	Overall         int                  `json:"overall"`
	Complementarity int                  `json:"complementarity"`
	Coverage        int                  `json:"coverage"`
	Geographic      int                  `json:"geographic"`
	SizeFit         int                  `json:"size_fit"`
	Certification   int                  `json:"certification"`
	Relationship    int                  `json:"relationship"`
	Breakdown       PartnershipBreakdown `json:"breakdown"`
	CreatedAt       time.Time            `json:"created_at"`
}

type ABTestRun struct {
	ID              string    `json:"id"`
	TestID          string    `json:"test_id"`
	Algorithm       string    `json:"algorithm"`
	Variant         string    `json:"variant"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
	Score           int       `json:"score"`
	Errored         bool      `json:"errored"`
	ResultSnapshot  string    `json:"result_snapshot"`
	CreatedAt       time.Time `json:"created_at"`
}

type RecordFailure struct {
	RecordID string `json:"record_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

type IngestReport struct {
	ID             string          `json:"id"`
	Fetched        int             `json:"fetched"`
	Stored         int             `json:"stored"`
	Updated        int             `json:"updated"`
	Skipped        int             `json:"skipped"`
	DuplicateCount int             `json:"duplicate_count"`
	Failures       []RecordFailure `json:"failures"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}
