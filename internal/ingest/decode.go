package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The wire types below mirror models.Grant but tolerate what the model
// actually sends: numeric strings, string booleans and single strings where a
// list is expected.

// FlexNumber accepts a JSON number or a string such as "$5,000" or "50K".
// A string range keeps both ends.
type FlexNumber struct {
	Set      bool
	Min, Max float64
}

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	*n = FlexNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		minAmount, maxAmount, ok := parseAmountRobust(s)
		if !ok {
			// "varies", "TBD" and friends carry no amount.
			return nil
		}
		if strings.HasPrefix(strings.TrimSpace(s), "-") {
			minAmount, maxAmount = -maxAmount, -minAmount
		}
		*n = FlexNumber{Set: true, Min: minAmount, Max: maxAmount}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("expected number, got %s", preview(string(data), 40))
	}
	*n = FlexNumber{Set: true, Min: f, Max: f}
	return nil
}

// low returns the lower end, or nil when unset.
func (n FlexNumber) low() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Min
	return &v
}

// high returns the upper end, or nil when unset.
func (n FlexNumber) high() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Max
	return &v
}

// FlexBool accepts a JSON boolean or a yes/no style string.
type FlexBool struct {
	Set   bool
	Value bool
}

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	*b = FlexBool{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = FlexBool{Set: true, Value: t}
	case float64:
		*b = FlexBool{Set: true, Value: t != 0}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "required", "oui":
			*b = FlexBool{Set: true, Value: true}
		case "false", "no", "n", "0", "not required", "non":
			*b = FlexBool{Set: true, Value: false}
		case "", "null", "n/a", "unknown":
		default:
			return fmt.Errorf("expected boolean, got %q", preview(t, 40))
		}
	default:
		return fmt.Errorf("expected boolean, got %s", preview(string(data), 40))
	}
	return nil
}

// or returns the value, or def when unset.
func (b FlexBool) or(def bool) bool {
	if !b.Set {
		return def
	}
	return b.Value
}

// FlexString accepts a string, number or boolean. Arrays are joined with
// "; ".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	*s = ""
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
	case string:
		*s = FlexString(t)
	case float64:
		*s = FlexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*s = FlexString(strconv.FormatBool(t))
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if p != nil {
				parts = append(parts, fmt.Sprint(p))
			}
		}
		*s = FlexString(strings.Join(parts, "; "))
	default:
		return fmt.Errorf("expected string, got %s", preview(string(data), 40))
	}
	return nil
}

// FlexStrings accepts an array or a single string. A single string is split
// into entries on line breaks and bullets.
type FlexStrings []string

func (l *FlexStrings) UnmarshalJSON(data []byte) error {
	*l = nil
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
	case string:
		*l = splitAndCleanList(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch e := item.(type) {
			case nil:
			case string:
				out = append(out, e)
			case float64:
				out = append(out, strconv.FormatFloat(e, 'f', -1, 64))
			case bool:
				out = append(out, strconv.FormatBool(e))
			default:
				return fmt.Errorf("expected list of strings, got element %T", item)
			}
		}
		*l = out
	default:
		return fmt.Errorf("expected list, got %s", preview(string(data), 40))
	}
	return nil
}

type wireGrant struct {
	GrantID            FlexString `json:"grantID"`
	ProgramName        FlexString `json:"programName"`
	ProgramDescription FlexString `json:"programDescription"`
	FunderName         FlexString `json:"funderName"`
	FunderType         FlexString `json:"funderType"`
	ProgramURL         FlexString `json:"programURL"`
	SourceType         FlexString `json:"sourceType"`
	ProgramStatus      FlexString `json:"programStatus"`
	Currency           FlexString `json:"currency"`

	Eligibility      wireEligibility      `json:"eligibility"`
	FundingStructure wireFundingStructure `json:"fundingStructure"`
	Deadlines        wireDeadlines        `json:"deadlines"`
	Documentation    wireDocumentation    `json:"documentation"`
	Compliance       wireCompliance       `json:"compliance"`
	Contact          wireContact          `json:"contact"`
	ProgramCategory  wireProgramCategory  `json:"programCategory"`
}

type wireEligibility struct {
	EligibleSectors               FlexStrings `json:"eligibleSectors"`
	EligibleGeographies           FlexStrings `json:"eligibleGeographies"`
	BusinessStage                 FlexString  `json:"businessStage"`
	OrganizationType              FlexStrings `json:"organizationType"`
	RevenueRange                  FlexString  `json:"revenueRange"`
	EmployeeRange                 FlexString  `json:"employeeRange"`
	EligibleActivities            FlexStrings `json:"eligibleActivities"`
	IneligibleActivities          FlexStrings `json:"ineligibleActivities"`
	EquityFocus                   FlexStrings `json:"equityFocus"`
	GrantPurpose                  FlexStrings `json:"grantPurpose"`
	EligibilityNotes              FlexString  `json:"eligibilityNotes"`
	AdditionalEligibilityCriteria FlexString  `json:"additionalEligibilityCriteria"`
}

type wireFundingStructure struct {
	FundingType               FlexString  `json:"fundingType"`
	AmountMin                 FlexNumber  `json:"amountMin"`
	AmountMax                 FlexNumber  `json:"amountMax"`
	FixedAmount               FlexNumber  `json:"fixedAmount"`
	RatePercentage            FlexNumber  `json:"ratePercentage"`
	MatchRequired             FlexBool    `json:"matchRequired"`
	MatchPercentage           FlexNumber  `json:"matchPercentage"`
	NonRepayable              FlexBool    `json:"nonRepayable"`
	RepaymentTerms            FlexString  `json:"repaymentTerms"`
	AdvancePayment            FlexBool    `json:"advancePayment"`
	ReimbursementFrequency    FlexString  `json:"reimbursementFrequency"`
	EligibleExpenseCategories FlexStrings `json:"eligibleExpenseCategories"`
	Currency                  FlexString  `json:"currency"`
}

type wireDeadlines struct {
	ApplicationOpenDate  FlexString `json:"applicationOpenDate"`
	ApplicationCloseDate FlexString `json:"applicationCloseDate"`
	RollingDeadlineFlag  FlexBool   `json:"rollingDeadlineFlag"`
	LOIDeadline          FlexString `json:"loidDeadline"`
	DecisionDate         FlexString `json:"decisionDate"`
	AwardStartDate       FlexString `json:"awardStartDate"`
	AwardEndDate         FlexString `json:"awardEndDate"`
	RenewalDeadline      FlexString `json:"renewalDeadline"`
	ReportingFrequency   FlexString `json:"reportingFrequency"`
	KeyMilestones        FlexString `json:"keyMilestones"`
}

type wireDocumentation struct {
	BusinessPlanRequired           FlexBool    `json:"businessPlanRequired"`
	FinancialStatementsRequired    FlexBool    `json:"financialStatementsRequired"`
	TaxReturnsRequired             FlexBool    `json:"taxReturnsRequired"`
	IncorporationDocumentsRequired FlexBool    `json:"incorporationDocumentsRequired"`
	LettersOfSupportRequired       FlexBool    `json:"lettersOfSupportRequired"`
	ResearchProposalRequired       FlexBool    `json:"researchProposalRequired"`
	ImpactAssessmentRequired       FlexBool    `json:"impactAssessmentRequired"`
	AdditionalDocuments            FlexStrings `json:"additionalDocuments"`
}

type wireCompliance struct {
	ReportingRequirements     FlexString `json:"reportingRequirements"`
	AuditRequirement          FlexString `json:"auditRequirement"`
	SiteVisitRequirement      FlexString `json:"siteVisitRequirement"`
	DataCollectionRequirement FlexString `json:"dataCollectionRequirement"`
	IPRightsClauses           FlexString `json:"ipRightsClauses"`
	PublicityRequirement      FlexString `json:"publicityRequirement"`
	ComplianceScoring         FlexString `json:"complianceScoring"`
}

type wireContact struct {
	PrimaryContactName   FlexString `json:"primaryContactName"`
	PrimaryContactEmail  FlexString `json:"primaryContactEmail"`
	PrimaryContactPhone  FlexString `json:"primaryContactPhone"`
	ProgramManagerName   FlexString `json:"programManagerName"`
	ApplicationPortalURL FlexString `json:"applicationPortalURL"`
}

type wireProgramCategory struct {
	Sector      FlexString `json:"sector"`
	Theme       FlexString `json:"theme"`
	Pillar      FlexString `json:"pillar"`
	Stage       FlexString `json:"stage"`
	EDIPriority FlexBool   `json:"ediPriority"`
}

// decodeItem decodes one array element. Section values that are not objects
// are reported as errors rather than silently dropped.
func decodeItem(raw json.RawMessage) (wireGrant, error) {
	var w wireGrant
	if err := json.Unmarshal(raw, &w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return wireGrant{}, fmt.Errorf("field %s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return wireGrant{}, err
	}
	return w, nil
}
