package ai

import (
	"fmt"
	"strings"

	"github.com/david/grant-extractor/internal/taxonomy"
)

// schemaTemplate is the record shape the model is asked to fill. Enum lists
// are filled in from the taxonomy closed sets so the two never drift apart.
const schemaTemplate = `[
  {
    "grantID": "Unique identifier (e.g., GRANT-2024-001)",
    "programName": "Official title of the grant program",
    "programDescription": "Full detailed description including purpose, eligibility, and funding details",
    "funderName": "Organization offering the grant",
    "funderType": "One of: %s",
    "programURL": "URL to official grant program page",
    "sourceType": "MANUAL_ENTRY",
    "programStatus": "One of: %s",
    "currency": "ISO 4217 code (CAD, USD, etc.)",
    "eligibility": {
      "eligibleSectors": ["Array from: %s"],
      "eligibleGeographies": ["Array of ISO-2 country codes or region names"],
      "businessStage": "One of: %s (or null)",
      "organizationType": ["Array from: %s"],
      "revenueRange": "One of: %s (or null)",
      "employeeRange": "One of: %s (or null)",
      "eligibleActivities": ["Array of eligible activities"],
      "ineligibleActivities": ["Array of ineligible activities"],
      "equityFocus": ["Array from: %s"],
      "grantPurpose": ["Array from: %s"],
      "eligibilityNotes": "Additional eligibility notes",
      "additionalEligibilityCriteria": "Additional criteria"
    },
    "fundingStructure": {
      "fundingType": "One of: %s",
      "amountMin": 5000.00,
      "amountMax": 100000.00,
      "fixedAmount": null,
      "ratePercentage": null,
      "matchRequired": false,
      "matchPercentage": null,
      "nonRepayable": true,
      "repaymentTerms": null,
      "advancePayment": false,
      "reimbursementFrequency": "Quarterly, Monthly, etc. (or null)",
      "eligibleExpenseCategories": ["Array of eligible expense types"]
    },
    "deadlines": {
      "applicationOpenDate": "2024-01-01T00:00:00Z",
      "applicationCloseDate": "2024-12-31T23:59:59Z (or null for rolling)",
      "rollingDeadlineFlag": false,
      "loidDeadline": null,
      "decisionDate": null,
      "awardStartDate": null,
      "awardEndDate": null,
      "renewalDeadline": null,
      "reportingFrequency": "Quarterly, Annually, etc. (or null)",
      "keyMilestones": "Description of key milestones"
    },
    "documentation": {
      "businessPlanRequired": false,
      "financialStatementsRequired": false,
      "taxReturnsRequired": false,
      "incorporationDocumentsRequired": false,
      "lettersOfSupportRequired": false,
      "researchProposalRequired": false,
      "impactAssessmentRequired": false,
      "additionalDocuments": ["Array of additional document types"]
    },
    "compliance": {
      "reportingRequirements": "Description",
      "auditRequirement": "Description",
      "siteVisitRequirement": "Description",
      "dataCollectionRequirement": "Description",
      "ipRightsClauses": "Description",
      "publicityRequirement": "Description",
      "complianceScoring": "Description"
    },
    "contact": {
      "primaryContactName": "Contact person name",
      "primaryContactEmail": "email@example.com",
      "primaryContactPhone": "+1-123-456-7890",
      "programManagerName": "Manager name",
      "applicationPortalURL": "https://portal.example.com"
    },
    "programCategory": {
      "sector": "Primary sector",
      "theme": "Grant theme",
      "pillar": "Strategic pillar",
      "stage": "Business stage focus",
      "ediPriority": false
    }
  }
]`

const promptTemplate = `You are an expert grant data extraction assistant. Extract grant information from: %s

**ABSOLUTE REQUIREMENTS:**
1. Output ONLY the JSON array - nothing else
2. NO markdown code blocks (no backticks)
3. NO explanatory text before or after the JSON
4. NO citation tags like [cite:...] anywhere
5. NO comments or notes
6. All text must be on single lines - no line breaks inside string values
7. Properly escape all quotes and special characters

Your response must start with [ and end with ]

SCHEMA:
%s

**IMPORTANT FORMATTING RULES:**
- Keep ALL text on single continuous lines
- Replace any newlines in text with spaces
- Ensure all commas are present between properties
- Use exact enum values from schema
- Amounts are plain numbers in whole currency units (no symbols, no cents conversion)
- For arrays, use [] if empty
- For null values, use null not empty string

Extract ALL grants found at the URL and return as a JSON array.`

// BuildPrompt returns the extraction prompt for one source URL. The output
// depends only on the URL.
func BuildPrompt(url string) string {
	schema := fmt.Sprintf(schemaTemplate,
		join(taxonomy.FunderTypes),
		join(taxonomy.ProgramStatuses),
		join(taxonomy.Sectors),
		join(taxonomy.BusinessStages),
		join(taxonomy.OrganizationTypes),
		join(taxonomy.RevenueRanges),
		join(taxonomy.EmployeeRanges),
		join(taxonomy.EquityFocus),
		join(taxonomy.GrantPurposes),
		join(taxonomy.FundingTypes),
	)
	return fmt.Sprintf(promptTemplate, url, schema)
}

func join(s taxonomy.Set) string {
	return strings.Join(s.Values(), ", ")
}
