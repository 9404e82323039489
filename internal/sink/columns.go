// Package sink writes pipeline output as append-only CSV files.
package sink

import (
	"strconv"
	"strings"
	"time"

	"github.com/david/grant-extractor/internal/models"
)

// GrantColumns is the fixed column order of the accepted and review sinks.
var GrantColumns = []string{
	"grantID", "programName", "programDescription", "funderName", "funderType",
	"programURL", "sourceType", "sourceURL", "programStatus", "currency",

	"eligibleSectors", "eligibleGeographies", "businessStage", "organizationType",
	"revenueRange", "employeeRange", "eligibleActivities", "ineligibleActivities",
	"equityFocus", "grantPurpose", "eligibilityNotes", "additionalEligibilityCriteria",

	"fundingType", "amountMin", "amountMax", "fixedAmount", "ratePercentage",
	"matchRequired", "matchPercentage", "nonRepayable", "repaymentTerms",
	"advancePayment", "reimbursementFrequency", "eligibleExpenseCategories",

	"applicationOpenDate", "applicationCloseDate", "rollingDeadlineFlag", "loidDeadline",
	"decisionDate", "awardStartDate", "awardEndDate", "renewalDeadline",
	"reportingFrequency", "keyMilestones",

	"businessPlanRequired", "financialStatementsRequired", "taxReturnsRequired",
	"incorporationDocumentsRequired", "lettersOfSupportRequired",
	"researchProposalRequired", "impactAssessmentRequired", "additionalDocuments",

	"reportingRequirements", "auditRequirement", "siteVisitRequirement",
	"dataCollectionRequirement", "ipRightsClauses", "publicityRequirement",
	"complianceScoring",

	"primaryContactName", "primaryContactEmail", "primaryContactPhone",
	"programManagerName", "applicationPortalURL",

	"sector", "theme", "pillar", "stage", "ediPriority",
}

// InvalidColumns is the column order of the invalid-records sink.
var InvalidColumns = []string{"sourceURL", "error", "dataPreview"}

const listSep = "; "

// FlattenGrant renders g as one row in GrantColumns order.
func FlattenGrant(g models.Grant) []string {
	e, f, d := g.Eligibility, g.FundingStructure, g.Deadlines
	doc, c, ct, pc := g.Documentation, g.Compliance, g.Contact, g.ProgramCategory

	return []string{
		g.GrantID, g.ProgramName, g.ProgramDescription, g.FunderName, g.FunderType,
		g.ProgramURL, g.SourceType, g.SourceURL, g.ProgramStatus, g.Currency,

		list(e.EligibleSectors), list(e.EligibleGeographies), e.BusinessStage, list(e.OrganizationType),
		e.RevenueRange, e.EmployeeRange, list(e.EligibleActivities), list(e.IneligibleActivities),
		list(e.EquityFocus), list(e.GrantPurpose), e.EligibilityNotes, e.AdditionalEligibilityCriteria,

		f.FundingType, num(f.AmountMin), num(f.AmountMax), num(f.FixedAmount), num(f.RatePercentage),
		boolean(f.MatchRequired), num(f.MatchPercentage), boolean(f.NonRepayable), f.RepaymentTerms,
		boolean(f.AdvancePayment), f.ReimbursementFrequency, list(f.EligibleExpenseCategories),

		date(d.ApplicationOpenDate), date(d.ApplicationCloseDate), boolean(d.RollingDeadline), date(d.LOIDeadline),
		date(d.DecisionDate), date(d.AwardStartDate), date(d.AwardEndDate), date(d.RenewalDeadline),
		d.ReportingFrequency, d.KeyMilestones,

		boolean(doc.BusinessPlanRequired), boolean(doc.FinancialStatementsRequired), boolean(doc.TaxReturnsRequired),
		boolean(doc.IncorporationDocumentsRequired), boolean(doc.LettersOfSupportRequired),
		boolean(doc.ResearchProposalRequired), boolean(doc.ImpactAssessmentRequired), list(doc.AdditionalDocuments),

		c.ReportingRequirements, c.AuditRequirement, c.SiteVisitRequirement,
		c.DataCollectionRequirement, c.IPRightsClauses, c.PublicityRequirement,
		c.ComplianceScoring,

		ct.PrimaryContactName, ct.PrimaryContactEmail, ct.PrimaryContactPhone,
		ct.ProgramManagerName, ct.ApplicationPortalURL,

		pc.Sector, pc.Theme, pc.Pillar, pc.Stage, boolean(pc.EDIPriority),
	}
}

// FlattenInvalid renders r in InvalidColumns order.
func FlattenInvalid(r models.InvalidRecord) []string {
	return []string{r.SourceURL, r.Error, r.DataPreview}
}

func list(v []string) string { return strings.Join(v, listSep) }

func boolean(b bool) string { return strconv.FormatBool(b) }

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
