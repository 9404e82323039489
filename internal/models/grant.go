package models

import (
	"time"
)

// Grant is one extracted grant program, grouped by section. Optional scalars
// are pointers; null single-value enums are the empty string.
type Grant struct {
	GrantID            string `json:"grantID"`
	ProgramName        string `json:"programName"`
	ProgramDescription string `json:"programDescription"`
	FunderName         string `json:"funderName"`
	FunderType         string `json:"funderType"`
	ProgramURL         string `json:"programURL"`
	SourceType         string `json:"sourceType"`
	SourceURL          string `json:"sourceURL"`
	ProgramStatus      string `json:"programStatus"`
	Currency           string `json:"currency"`

	Eligibility      Eligibility      `json:"eligibility"`
	FundingStructure FundingStructure `json:"fundingStructure"`
	Deadlines        Deadlines        `json:"deadlines"`
	Documentation    Documentation    `json:"documentation"`
	Compliance       Compliance       `json:"compliance"`
	Contact          Contact          `json:"contact"`
	ProgramCategory  ProgramCategory  `json:"programCategory"`
}

type Eligibility struct {
	EligibleSectors               []string `json:"eligibleSectors"`
	EligibleGeographies           []string `json:"eligibleGeographies"`
	BusinessStage                 string   `json:"businessStage"`
	OrganizationType              []string `json:"organizationType"`
	RevenueRange                  string   `json:"revenueRange"`
	EmployeeRange                 string   `json:"employeeRange"`
	EligibleActivities            []string `json:"eligibleActivities"`
	IneligibleActivities          []string `json:"ineligibleActivities"`
	EquityFocus                   []string `json:"equityFocus"`
	GrantPurpose                  []string `json:"grantPurpose"`
	EligibilityNotes              string   `json:"eligibilityNotes"`
	AdditionalEligibilityCriteria string   `json:"additionalEligibilityCriteria"`
}

// FundingStructure amounts are whole currency units.
type FundingStructure struct {
	FundingType               string   `json:"fundingType"`
	AmountMin                 *float64 `json:"amountMin"`
	AmountMax                 *float64 `json:"amountMax"`
	FixedAmount               *float64 `json:"fixedAmount"`
	RatePercentage            *float64 `json:"ratePercentage"`
	MatchRequired             bool     `json:"matchRequired"`
	MatchPercentage           *float64 `json:"matchPercentage"`
	NonRepayable              bool     `json:"nonRepayable"`
	RepaymentTerms            string   `json:"repaymentTerms"`
	AdvancePayment            bool     `json:"advancePayment"`
	ReimbursementFrequency    string   `json:"reimbursementFrequency"`
	EligibleExpenseCategories []string `json:"eligibleExpenseCategories"`
}

// Deadlines holds UTC timestamps. A nil ApplicationCloseDate with
// RollingDeadline set means applications are accepted continuously.
type Deadlines struct {
	ApplicationOpenDate  *time.Time `json:"applicationOpenDate"`
	ApplicationCloseDate *time.Time `json:"applicationCloseDate"`
	RollingDeadline      bool       `json:"rollingDeadlineFlag"`
	LOIDeadline          *time.Time `json:"loidDeadline"`
	DecisionDate         *time.Time `json:"decisionDate"`
	AwardStartDate       *time.Time `json:"awardStartDate"`
	AwardEndDate         *time.Time `json:"awardEndDate"`
	RenewalDeadline      *time.Time `json:"renewalDeadline"`
	ReportingFrequency   string     `json:"reportingFrequency"`
	KeyMilestones        string     `json:"keyMilestones"`
}

type Documentation struct {
	BusinessPlanRequired           bool     `json:"businessPlanRequired"`
	FinancialStatementsRequired    bool     `json:"financialStatementsRequired"`
	TaxReturnsRequired             bool     `json:"taxReturnsRequired"`
	IncorporationDocumentsRequired bool     `json:"incorporationDocumentsRequired"`
	LettersOfSupportRequired       bool     `json:"lettersOfSupportRequired"`
	ResearchProposalRequired       bool     `json:"researchProposalRequired"`
	ImpactAssessmentRequired       bool     `json:"impactAssessmentRequired"`
	AdditionalDocuments            []string `json:"additionalDocuments"`
}

type Compliance struct {
	ReportingRequirements     string `json:"reportingRequirements"`
	AuditRequirement          string `json:"auditRequirement"`
	SiteVisitRequirement      string `json:"siteVisitRequirement"`
	DataCollectionRequirement string `json:"dataCollectionRequirement"`
	IPRightsClauses           string `json:"ipRightsClauses"`
	PublicityRequirement      string `json:"publicityRequirement"`
	ComplianceScoring         string `json:"complianceScoring"`
}

type Contact struct {
	PrimaryContactName   string `json:"primaryContactName"`
	PrimaryContactEmail  string `json:"primaryContactEmail"`
	PrimaryContactPhone  string `json:"primaryContactPhone"`
	ProgramManagerName   string `json:"programManagerName"`
	ApplicationPortalURL string `json:"applicationPortalURL"`
}

type ProgramCategory struct {
	Sector      string `json:"sector"`
	Theme       string `json:"theme"`
	Pillar      string `json:"pillar"`
	Stage       string `json:"stage"`
	EDIPriority bool   `json:"ediPriority"`
}

// InvalidRecord is an extraction attempt that could not become a Grant.
type InvalidRecord struct {
	SourceURL   string `json:"sourceURL"`
	Error       string `json:"error"`
	DataPreview string `json:"dataPreview"`
}
