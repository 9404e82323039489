package taxonomy

// Domain selects the synonym table used for a field.
type Domain string

const (
	DomainSector        Domain = "sector"
	DomainPurpose       Domain = "purpose"
	DomainEquity        Domain = "equity"
	DomainOrgType       Domain = "organization_type"
	DomainFunderType    Domain = "funder_type"
	DomainFundingType   Domain = "funding_type"
	DomainBusinessStage Domain = "business_stage"
	DomainStatus        Domain = "program_status"
	DomainRevenue       Domain = "revenue_range"
	DomainEmployee      Domain = "employee_range"
)

// setFor is the closed set each domain's synonyms must map into.
func setFor(d Domain) (Set, bool) {
	switch d {
	case DomainSector:
		return Sectors, true
	case DomainPurpose:
		return GrantPurposes, true
	case DomainEquity:
		return EquityFocus, true
	case DomainOrgType:
		return OrganizationTypes, true
	case DomainFunderType:
		return FunderTypes, true
	case DomainFundingType:
		return FundingTypes, true
	case DomainBusinessStage:
		return BusinessStages, true
	case DomainStatus:
		return ProgramStatuses, true
	case DomainRevenue:
		return RevenueRanges, true
	case DomainEmployee:
		return EmployeeRanges, true
	}
	return Set{}, false
}

// Seed tables. Keys are upper-case; the normalizer upper-cases input before lookup.
var sectorSynonyms = map[string]string{
	"HEALTHCARE":                 "HEALTH",
	"HEALTHCARE TECHNOLOGY":      "HEALTH",
	"DIGITAL HEALTH":             "HEALTH",
	"MEDICAL DEVICES":            "HEALTH",
	"DIAGNOSTICS":                "HEALTH",
	"THERAPEUTICS":               "HEALTH",
	"HEALTH TECHNOLOGY":          "HEALTH",
	"MEDICAL TECHNOLOGY":         "HEALTH",
	"HEALTHTECH":                 "HEALTH",
	"MEDTECH":                    "HEALTH",
	"VIRTUAL CARE":               "HEALTH",
	"PRECISION HEALTH":           "HEALTH",
	"PUBLIC HEALTH":              "HEALTH",
	"BIOTECH":                    "HEALTH",
	"BIOTECHNOLOGY":              "HEALTH",
	"PHARMA":                     "HEALTH",
	"PHARMACEUTICAL":             "HEALTH",
	"LIFE SCIENCES":              "HEALTH",
	"ARTIFICIAL INTELLIGENCE":    "TECHNOLOGY",
	"AI":                         "TECHNOLOGY",
	"MACHINE LEARNING":           "TECHNOLOGY",
	"DATA ANALYTICS":             "TECHNOLOGY",
	"ROBOTICS":                   "TECHNOLOGY",
	"AUTOMATION":                 "TECHNOLOGY",
	"SOFTWARE":                   "TECHNOLOGY",
	"IT":                         "TECHNOLOGY",
	"ICT":                        "TECHNOLOGY",
	"INFORMATION TECHNOLOGY":     "TECHNOLOGY",
	"DIGITAL ECONOMY":            "TECHNOLOGY",
	"DEEP TECH":                  "TECHNOLOGY",
	"INNOVATION":                 "TECHNOLOGY",
	"SCIENCE":                    "TECHNOLOGY",
	"ENGINEERING":                "TECHNOLOGY",
	"CLIMATE TECH":               "ENERGY",
	"CLEANTECH":                  "ENERGY",
	"CLEAN TECHNOLOGY":           "ENERGY",
	"CLEAN ENERGY":               "ENERGY",
	"RENEWABLE ENERGY":           "ENERGY",
	"AGTECH":                     "AGRICULTURE",
	"AGRI-FOOD":                  "AGRICULTURE",
	"AGRIFOOD":                   "AGRICULTURE",
	"FOOD AND BEVERAGE":          "AGRICULTURE",
	"FISHERIES":                  "AGRICULTURE",
	"FINTECH":                    "FINANCE",
	"FINANCIAL SERVICES":         "FINANCE",
	"EDTECH":                     "EDUCATION",
	"HUMANITIES":                 "EDUCATION",
	"ARTS":                       "CREATIVE",
	"CULTURE":                    "CREATIVE",
	"ARTS AND CULTURE":           "CREATIVE",
	"PERFORMING ARTS":            "CREATIVE",
	"VISUAL ARTS":                "CREATIVE",
	"MEDIA ARTS":                 "CREATIVE",
	"DESIGN":                     "CREATIVE",
	"CREATIVE INDUSTRIES":        "CREATIVE",
	"TOURISM":                    "HOSPITALITY",
	"ADVANCED MATERIALS":         "MANUFACTURING",
	"ADVANCED MANUFACTURING":     "MANUFACTURING",
	"SOCIAL SCIENCES":            "SOCIAL_SERVICES",
	"CLIMATE":                    "ENVIRONMENT",
	"SUSTAINABILITY":             "ENVIRONMENT",
	"GENERAL BUSINESS":           "OPEN_TO_ALL",
	"ALL SECTORS":                "OPEN_TO_ALL",
	"ANY":                        "OPEN_TO_ALL",
	"EXPORT-ORIENTED BUSINESSES": "OPEN_TO_ALL",
}

var purposeSynonyms = map[string]string{
	"INNOVATION":                "RESEARCH",
	"RESEARCH AND DEVELOPMENT":  "RESEARCH",
	"R&D":                       "RESEARCH",
	"RESEARCH & DEVELOPMENT":    "RESEARCH",
	"VALIDATION":                "RESEARCH",
	"CLINICAL TRIALS":           "RESEARCH",
	"PROOF OF CONCEPT":          "RESEARCH",
	"PILOT PROJECTS":            "RESEARCH",
	"COMMERCIALIZATION":         "PRODUCT_DEVELOPMENT",
	"COMMERCIALISATION":         "PRODUCT_DEVELOPMENT",
	"PROTOTYPING":               "PRODUCT_DEVELOPMENT",
	"BUSINESS GROWTH":           "OPERATIONAL",
	"OPERATING SUPPORT":         "OPERATIONAL",
	"PROGRAM DELIVERY":          "OPERATIONAL",
	"BUSINESS DEVELOPMENT":      "OPERATIONAL",
	"PRODUCTIVITY IMPROVEMENT":  "OPERATIONAL",
	"ECONOMIC DEVELOPMENT":      "OPERATIONAL",
	"SCALING UP":                "PROGRAM_EXPANSION",
	"SCALE UP":                  "PROGRAM_EXPANSION",
	"SCALE-UP":                  "PROGRAM_EXPANSION",
	"EXPANSION":                 "PROGRAM_EXPANSION",
	"MARKET EXPANSION":          "MARKETING",
	"MARKET ENTRY & EXPANSION":  "MARKETING",
	"EXPORT DEVELOPMENT":        "MARKETING",
	"MARKET ACCESS":             "MARKETING",
	"HEALTH SYSTEM IMPROVEMENT": "CAPACITY_BUILDING",
	"PROFESSIONAL DEVELOPMENT":  "TRAINING",
	"SKILLS DEVELOPMENT":        "TRAINING",
	"WORKFORCE DEVELOPMENT":     "TRAINING",
	"TECHNOLOGY ADOPTION":       "TECHNOLOGY",
	"TECH ADOPTION":             "TECHNOLOGY",
	"DIGITAL ADOPTION":          "TECHNOLOGY",
	"DIGITAL TRANSFORMATION":    "TECHNOLOGY",
	"ARTS AND CULTURE":          "COMMUNITY_ENGAGEMENT",
	"COMMUNITY DEVELOPMENT":     "COMMUNITY_ENGAGEMENT",
	"JOB CREATION":              "HIRING",
	"WAGE SUBSIDY":              "HIRING",
	"CAPITAL INVESTMENT":        "CAPITAL",
	"EQUIPMENT PURCHASE":        "EQUIPMENT",
}

var equitySynonyms = map[string]string{
	"BLACK-LED":                 "BIPOC_LED",
	"BLACK LED":                 "BIPOC_LED",
	"BLACK":                     "BIPOC_LED",
	"BIPOC":                     "BIPOC_LED",
	"RACIALIZED COMMUNITIES":    "BIPOC_LED",
	"RACIALIZED GROUPS":         "BIPOC_LED",
	"VISIBLE MINORITY":          "BIPOC_LED",
	"MINORITY":                  "MINORITY_LED",
	"MINORITY-LED":              "MINORITY_LED",
	"INDIGENOUS PEOPLE":         "INDIGENOUS",
	"INDIGENOUS PEOPLES":        "INDIGENOUS",
	"FIRST NATIONS":             "INDIGENOUS",
	"METIS":                     "INDIGENOUS",
	"INUIT":                     "INDIGENOUS",
	"WOMEN-LED":                 "WOMEN_LED",
	"WOMEN":                     "WOMEN_LED",
	"WOMEN ENTREPRENEURS":       "WOMEN_LED",
	"LGBTQ":                     "LGBTQ_PLUS",
	"LGBTQ+":                    "LGBTQ_PLUS",
	"LGBTQ2S+":                  "LGBTQ_PLUS",
	"LGBTQ2S":                   "LGBTQ_PLUS",
	"2SLGBTQI+":                 "LGBTQ_PLUS",
	"DISABILITY":                "DISABLED",
	"PEOPLE WITH DISABILITIES":  "DISABLED",
	"PERSONS WITH DISABILITIES": "DISABLED",
	"SENIORS":                   "SENIOR",
	"YOUNG ENTREPRENEURS":       "YOUTH",
	"NEWCOMERS":                 "IMMIGRANT",
	"IMMIGRANTS":                "IMMIGRANT",
	"REFUGEES":                  "REFUGEE",
	"VETERANS":                  "VETERAN",
	"LOW-INCOME":                "LOW_INCOME",
	"UNDERREPRESENTED":          "UNDERSERVED",
	"UNDERREPRESENTED GROUPS":   "UNDERSERVED",
}

var orgTypeSynonyms = map[string]string{
	"NONPROFIT":            "NON_PROFIT",
	"NOT-FOR-PROFIT":       "NON_PROFIT",
	"NOT FOR PROFIT":       "NON_PROFIT",
	"CHARITY":              "NON_PROFIT",
	"REGISTERED CHARITY":   "NON_PROFIT",
	"SMALL BUSINESS":       "FOR_PROFIT",
	"SME":                  "FOR_PROFIT",
	"SMES":                 "FOR_PROFIT",
	"STARTUP":              "FOR_PROFIT",
	"STARTUPS":             "FOR_PROFIT",
	"BUSINESS":             "FOR_PROFIT",
	"CORPORATION":          "FOR_PROFIT",
	"UNIVERSITY":           "RESEARCH_INSTITUTION",
	"COLLEGE":              "RESEARCH_INSTITUTION",
	"ACADEMIC INSTITUTION": "RESEARCH_INSTITUTION",
	"MUNICIPALITY":         "PUBLIC_ENTITY",
	"GOVERNMENT":           "PUBLIC_ENTITY",
	"FIRST NATION":         "PUBLIC_ENTITY",
	"INDIVIDUALS":          "INDIVIDUAL",
	"ARTIST":               "INDIVIDUAL",
	"ANY":                  "OPEN_TO_ALL",
}

var funderTypeSynonyms = map[string]string{
	"FEDERAL":     "FEDERAL_GRANT",
	"GOVERNMENT":  "FEDERAL_GRANT",
	"PROVINCIAL":  "PROVINCIAL_TERRITORIAL_GRANT",
	"TERRITORIAL": "PROVINCIAL_TERRITORIAL_GRANT",
	"STATE":       "PROVINCIAL_TERRITORIAL_GRANT",
	"MUNICIPAL":   "MUNICIPAL_GRANT",
	"CITY":        "MUNICIPAL_GRANT",
	"FOUNDATION":  "FOUNDATION_GRANT",
	"CORPORATE":   "CORPORATE_GRANT",
	"UNIVERSITY":  "UNIVERSITY_COLLEGE_GRANT",
	"ACCELERATOR": "ACCELERATOR_INCUBATOR_GRANT",
	"INCUBATOR":   "ACCELERATOR_INCUBATOR_GRANT",
	"COMMUNITY":   "COMMUNITY_ASSOCIATION_GRANT",
}

var fundingTypeSynonyms = map[string]string{
	"CONTRIBUTION":           "GRANT",
	"NON-REPAYABLE":          "GRANT",
	"SUBSIDY":                "GRANT",
	"BURSARY":                "GRANT",
	"SCHOLARSHIP":            "GRANT",
	"INTEREST-FREE LOAN":     "LOAN",
	"REPAYABLE CONTRIBUTION": "LOAN",
	"INVESTMENT":             "EQUITY",
	"TAX INCENTIVE":          "TAX_CREDIT",
	"AWARD":                  "PRIZE",
	"COMPETITION":            "PRIZE",
	"MENTORSHIP":             "IN_KIND",
	"SERVICES":               "IN_KIND",
}

var businessStageSynonyms = map[string]string{
	"PRE-SEED":  "IDEA",
	"IDEATION":  "IDEA",
	"STARTUP":   "EARLY_STAGE",
	"SEED":      "EARLY_STAGE",
	"EARLY":     "EARLY_STAGE",
	"SCALE-UP":  "GROWTH",
	"SCALEUP":   "GROWTH",
	"EXPANSION": "GROWTH",
	"MATURE":    "ESTABLISHED",
}

var statusSynonyms = map[string]string{
	"OPEN":                   "ACTIVE",
	"ONGOING":                "ACTIVE",
	"ACCEPTING APPLICATIONS": "ACTIVE",
	"EXPIRED":                "CLOSED",
	"ENDED":                  "CLOSED",
	"COMING SOON":            "UPCOMING",
	"FORTHCOMING":            "UPCOMING",
	"PAUSED":                 "SUSPENDED",
	"ON HOLD":                "SUSPENDED",
}

func seedTables() map[Domain]map[string]string {
	return map[Domain]map[string]string{
		DomainSector:        sectorSynonyms,
		DomainPurpose:       purposeSynonyms,
		DomainEquity:        equitySynonyms,
		DomainOrgType:       orgTypeSynonyms,
		DomainFunderType:    funderTypeSynonyms,
		DomainFundingType:   fundingTypeSynonyms,
		DomainBusinessStage: businessStageSynonyms,
		DomainStatus:        statusSynonyms,
	}
}
