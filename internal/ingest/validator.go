package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/artifact"
	"github.com/david/grant-extractor/internal/metrics"
	"github.com/david/grant-extractor/internal/models"
	"github.com/david/grant-extractor/internal/taxonomy"
)

const (
	previewRunes    = 200
	errorContext    = 200
	defaultSource   = "MANUAL_ENTRY"
	stageUnparsable = "unparsable"
)

// Batch is everything one model response produced.
type Batch struct {
	Valid   []models.Grant
	Invalid []models.InvalidRecord
	// Stage names the repair strategy that made the payload parse, "direct"
	// when none was needed, or "unparsable".
	Stage string
}

// Validator turns sanitized model text into typed grants. One Validator
// keeps grant ids unique for the lifetime of a run; call Reset between runs.
type Validator struct {
	normalizer      *taxonomy.Normalizer
	artifacts       *artifact.Store
	logger          *zap.Logger
	defaultCurrency string

	now   func() time.Time
	newID func() string

	mu  sync.Mutex
	ids map[string]struct{}
}

func NewValidator(normalizer *taxonomy.Normalizer, artifacts *artifact.Store, logger *zap.Logger, defaultCurrency string) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = taxonomy.NewNormalizer(logger)
	}
	if defaultCurrency == "" {
		defaultCurrency = "CAD"
	}
	v := &Validator{
		normalizer:      normalizer,
		artifacts:       artifacts,
		logger:          logger,
		defaultCurrency: defaultCurrency,
		now:             time.Now,
		ids:             make(map[string]struct{}),
	}
	v.newID = v.synthesizeID
	return v
}

// Reset forgets the grant ids issued so far.
func (v *Validator) Reset() {
	v.mu.Lock()
	v.ids = make(map[string]struct{})
	v.mu.Unlock()
}

// ParseAndValidate returns the grants that survived validation and the items
// that did not.
func (v *Validator) ParseAndValidate(text, sourceURL string) ([]models.Grant, []models.InvalidRecord) {
	b := v.Parse(text, sourceURL)
	return b.Valid, b.Invalid
}

// Parse is ParseAndValidate plus the repair stage that was needed.
func (v *Validator) Parse(text, sourceURL string) Batch {
	if strings.TrimSpace(text) == "" {
		v.logger.Warn("no content returned", zap.String("source", sourceURL))
		return Batch{Stage: stageUnparsable}
	}

	res, err := repairJSON(text)
	if err != nil {
		v.logger.Error("json parsing failed after all repairs",
			zap.String("source", sourceURL), zap.Error(err), zap.String("preview", preview(text, 500)))
		v.saveErrorArtifact(text, sourceURL, err)
		metrics.ObserveRepair(stageUnparsable)
		return Batch{Stage: stageUnparsable}
	}
	if res.stage != stageDirect {
		v.logger.Info("json repaired", zap.String("source", sourceURL), zap.String("stage", res.stage))
		metrics.ObserveRepair(res.stage)
	}

	items, ok := splitItems(res.value)
	if !ok {
		v.logger.Warn("unexpected json structure", zap.String("source", sourceURL))
		return Batch{Stage: res.stage}
	}

	batch := Batch{Stage: res.stage}
	for _, item := range items {
		g, err := v.validateItem(item, sourceURL)
		if err != nil {
			v.logger.Warn("validation failed",
				zap.String("source", sourceURL), zap.Error(err))
			batch.Invalid = append(batch.Invalid, models.InvalidRecord{
				SourceURL:   sourceURL,
				Error:       err.Error(),
				DataPreview: preview(string(item), previewRunes),
			})
			continue
		}
		batch.Valid = append(batch.Valid, g)
	}
	return batch
}

// splitItems treats an object as a one-element array. Any other top-level
// shape is rejected.
func splitItems(raw json.RawMessage) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}
	switch trimmed[0] {
	case '{':
		return []json.RawMessage{trimmed}, true
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false
		}
		return items, true
	default:
		return nil, false
	}
}

func (v *Validator) validateItem(item json.RawMessage, sourceURL string) (models.Grant, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.Grant{}, errors.New("record is not an object")
	}

	w, err := decodeItem(trimmed)
	if err != nil {
		return models.Grant{}, fmt.Errorf("failed to decode record: %w", err)
	}
	if cleanText(string(w.ProgramName)) == "" {
		return models.Grant{}, errors.New("programName is required")
	}

	g, err := v.buildGrant(w, sourceURL)
	if err != nil {
		return models.Grant{}, err
	}
	g.GrantID = v.claimID(cleanText(string(w.GrantID)))
	return g, nil
}

func (v *Validator) buildGrant(w wireGrant, sourceURL string) (models.Grant, error) {
	n := v.normalizer

	g := models.Grant{
		ProgramName:        cleanText(string(w.ProgramName)),
		ProgramDescription: cleanText(string(w.ProgramDescription)),
		FunderName:         cleanText(string(w.FunderName)),
		FunderType:         n.NormalizeOne(string(w.FunderType), taxonomy.FunderTypes, taxonomy.DomainFunderType),
		ProgramURL:         strings.TrimSpace(string(w.ProgramURL)),
		SourceType:         strings.ToUpper(cleanText(string(w.SourceType))),
		SourceURL:          sourceURL,
	}
	if g.SourceType == "" {
		g.SourceType = defaultSource
	}

	currency, err := v.currency(w)
	if err != nil {
		return models.Grant{}, err
	}
	g.Currency = currency

	g.Eligibility = v.eligibility(w.Eligibility)

	funding, err := v.funding(w.FundingStructure)
	if err != nil {
		return models.Grant{}, err
	}
	g.FundingStructure = funding

	g.Deadlines = v.deadlines(w.Deadlines, sourceURL)

	d := w.Documentation
	g.Documentation = models.Documentation{
		BusinessPlanRequired:           d.BusinessPlanRequired.or(false),
		FinancialStatementsRequired:    d.FinancialStatementsRequired.or(false),
		TaxReturnsRequired:             d.TaxReturnsRequired.or(false),
		IncorporationDocumentsRequired: d.IncorporationDocumentsRequired.or(false),
		LettersOfSupportRequired:       d.LettersOfSupportRequired.or(false),
		ResearchProposalRequired:       d.ResearchProposalRequired.or(false),
		ImpactAssessmentRequired:       d.ImpactAssessmentRequired.or(false),
		AdditionalDocuments:            cleanList(d.AdditionalDocuments),
	}

	c := w.Compliance
	g.Compliance = models.Compliance{
		ReportingRequirements:     cleanText(string(c.ReportingRequirements)),
		AuditRequirement:          cleanText(string(c.AuditRequirement)),
		SiteVisitRequirement:      cleanText(string(c.SiteVisitRequirement)),
		DataCollectionRequirement: cleanText(string(c.DataCollectionRequirement)),
		IPRightsClauses:           cleanText(string(c.IPRightsClauses)),
		PublicityRequirement:      cleanText(string(c.PublicityRequirement)),
		ComplianceScoring:         cleanText(string(c.ComplianceScoring)),
	}

	ct := w.Contact
	g.Contact = models.Contact{
		PrimaryContactName:   cleanText(string(ct.PrimaryContactName)),
		PrimaryContactEmail:  strings.ToLower(cleanText(string(ct.PrimaryContactEmail))),
		PrimaryContactPhone:  cleanText(string(ct.PrimaryContactPhone)),
		ProgramManagerName:   cleanText(string(ct.ProgramManagerName)),
		ApplicationPortalURL: strings.TrimSpace(string(ct.ApplicationPortalURL)),
	}

	pc := w.ProgramCategory
	g.ProgramCategory = models.ProgramCategory{
		Sector:      cleanText(string(pc.Sector)),
		Theme:       cleanText(string(pc.Theme)),
		Pillar:      cleanText(string(pc.Pillar)),
		Stage:       cleanText(string(pc.Stage)),
		EDIPriority: pc.EDIPriority.or(false),
	}

	g.ProgramStatus = n.NormalizeOne(string(w.ProgramStatus), taxonomy.ProgramStatuses, taxonomy.DomainStatus)
	if g.ProgramStatus == "" {
		decision := InferStatus(g, v.now())
		g.ProgramStatus = decision.Status
		v.logger.Debug("program status inferred",
			zap.String("source", sourceURL), zap.String("status", decision.Status), zap.String("reason", decision.Reason))
	}

	return g, nil
}

func (v *Validator) currency(w wireGrant) (string, error) {
	raw := strings.TrimSpace(string(w.Currency))
	if raw == "" {
		raw = strings.TrimSpace(string(w.FundingStructure.Currency))
	}
	if raw == "" {
		return v.defaultCurrency, nil
	}
	code := normalizeCurrency(raw)
	if code == "" {
		return "", fmt.Errorf("currency %q is not a three-letter code", raw)
	}
	return code, nil
}

func (v *Validator) eligibility(e wireEligibility) models.Eligibility {
	n := v.normalizer
	return models.Eligibility{
		EligibleSectors:               n.Normalize(splitEnumTokens(e.EligibleSectors), taxonomy.Sectors, taxonomy.DomainSector),
		EligibleGeographies:           cleanList(e.EligibleGeographies),
		BusinessStage:                 n.NormalizeOne(string(e.BusinessStage), taxonomy.BusinessStages, taxonomy.DomainBusinessStage),
		OrganizationType:              n.Normalize(splitEnumTokens(e.OrganizationType), taxonomy.OrganizationTypes, taxonomy.DomainOrgType),
		RevenueRange:                  n.NormalizeOne(string(e.RevenueRange), taxonomy.RevenueRanges, taxonomy.DomainRevenue),
		EmployeeRange:                 n.NormalizeOne(string(e.EmployeeRange), taxonomy.EmployeeRanges, taxonomy.DomainEmployee),
		EligibleActivities:            cleanList(e.EligibleActivities),
		IneligibleActivities:          cleanList(e.IneligibleActivities),
		EquityFocus:                   n.Normalize(splitEnumTokens(e.EquityFocus), taxonomy.EquityFocus, taxonomy.DomainEquity),
		GrantPurpose:                  n.Normalize(splitEnumTokens(e.GrantPurpose), taxonomy.GrantPurposes, taxonomy.DomainPurpose),
		EligibilityNotes:              cleanText(string(e.EligibilityNotes)),
		AdditionalEligibilityCriteria: cleanText(string(e.AdditionalEligibilityCriteria)),
	}
}

func (v *Validator) funding(f wireFundingStructure) (models.FundingStructure, error) {
	out := models.FundingStructure{
		FundingType:               v.normalizer.NormalizeOne(string(f.FundingType), taxonomy.FundingTypes, taxonomy.DomainFundingType),
		AmountMin:                 f.AmountMin.low(),
		AmountMax:                 f.AmountMax.high(),
		FixedAmount:               f.FixedAmount.high(),
		RatePercentage:            f.RatePercentage.high(),
		MatchRequired:             f.MatchRequired.or(false),
		MatchPercentage:           f.MatchPercentage.high(),
		NonRepayable:              f.NonRepayable.or(true),
		RepaymentTerms:            cleanText(string(f.RepaymentTerms)),
		AdvancePayment:            f.AdvancePayment.or(false),
		ReimbursementFrequency:    cleanText(string(f.ReimbursementFrequency)),
		EligibleExpenseCategories: cleanList(f.EligibleExpenseCategories),
	}

	for name, amount := range map[string]*float64{
		"amountMin":   out.AmountMin,
		"amountMax":   out.AmountMax,
		"fixedAmount": out.FixedAmount,
	} {
		if amount != nil && *amount < 0 {
			return models.FundingStructure{}, fmt.Errorf("%s must be non-negative, got %v", name, *amount)
		}
	}
	if out.AmountMin != nil && out.AmountMax != nil && *out.AmountMin > *out.AmountMax {
		return models.FundingStructure{}, fmt.Errorf("amountMin %v exceeds amountMax %v", *out.AmountMin, *out.AmountMax)
	}
	for name, pct := range map[string]*float64{
		"ratePercentage":  out.RatePercentage,
		"matchPercentage": out.MatchPercentage,
	} {
		if pct != nil && (*pct < 0 || *pct > 100) {
			return models.FundingStructure{}, fmt.Errorf("%s must be between 0 and 100, got %v", name, *pct)
		}
	}

	return out, nil
}

func (v *Validator) deadlines(d wireDeadlines, sourceURL string) models.Deadlines {
	rolling := d.RollingDeadlineFlag.or(false)

	parse := func(field string, raw FlexString) *time.Time {
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return nil
		}
		if isRollingPhrase(s) {
			rolling = true
			return nil
		}
		t, err := parseDateRobust(s)
		if err != nil {
			v.logger.Warn("dropping unparseable date",
				zap.String("source", sourceURL), zap.String("field", field), zap.String("value", s))
			return nil
		}
		return &t
	}

	out := models.Deadlines{
		ApplicationOpenDate:  parse("applicationOpenDate", d.ApplicationOpenDate),
		ApplicationCloseDate: parse("applicationCloseDate", d.ApplicationCloseDate),
		LOIDeadline:          parse("loidDeadline", d.LOIDeadline),
		DecisionDate:         parse("decisionDate", d.DecisionDate),
		AwardStartDate:       parse("awardStartDate", d.AwardStartDate),
		AwardEndDate:         parse("awardEndDate", d.AwardEndDate),
		RenewalDeadline:      parse("renewalDeadline", d.RenewalDeadline),
		ReportingFrequency:   cleanText(string(d.ReportingFrequency)),
		KeyMilestones:        cleanText(string(d.KeyMilestones)),
	}
	out.RollingDeadline = rolling
	return out
}

// claimID returns id when it is non-empty and unused in this run, otherwise
// a freshly synthesized one.
func (v *Validator) claimID(id string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	if id != "" {
		if _, taken := v.ids[id]; !taken {
			v.ids[id] = struct{}{}
			return id
		}
		v.logger.Warn("duplicate grant id, synthesizing a new one", zap.String("grant_id", id))
	}
	for {
		id = v.newID()
		if _, taken := v.ids[id]; !taken {
			v.ids[id] = struct{}{}
			return id
		}
	}
}

// synthesizeID builds GRANT-<year>-<unix>_<random>, taking the random part
// from the tail of a UUIDv7.
func (v *Validator) synthesizeID() string {
	now := v.now()
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	s := u.String()
	return fmt.Sprintf("GRANT-%d-%d_%s", now.Year(), now.Unix(), s[len(s)-12:])
}

// splitEnumTokens breaks "TECHNOLOGY, HEALTH" style entries apart.
func splitEnumTokens(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, tok := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == '|' }) {
			if tok = strings.TrimSpace(tok); tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

func (v *Validator) saveErrorArtifact(text, sourceURL string, err error) {
	if v.artifacts == nil {
		return
	}

	var offset int64
	var pe *parseError
	if errors.As(err, &pe) {
		offset = pe.offset
	}
	from := max(0, int(offset)-errorContext)
	to := min(len(text), int(offset)+errorContext)

	rule := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", sourceURL)
	fmt.Fprintf(&b, "Error: %v\n", err)
	fmt.Fprintf(&b, "Error position: %d\n\n", offset)
	fmt.Fprintf(&b, "%s\nCONTEXT AROUND ERROR:\n%s\n", rule, rule)
	b.WriteString(strings.ToValidUTF8(text[from:to], ""))
	fmt.Fprintf(&b, "\n\n%s\nFULL RAW JSON:\n%s\n", rule, rule)
	b.WriteString(text)

	base := fmt.Sprintf("json_error_%d", v.now().Unix())
	path, werr := v.artifacts.WriteUnique(base, ".txt", []byte(b.String()))
	if werr != nil {
		v.logger.Error("failed to save json error artifact", zap.String("source", sourceURL), zap.Error(werr))
		return
	}
	v.logger.Error("json error details saved", zap.String("source", sourceURL), zap.String("path", path))
}
