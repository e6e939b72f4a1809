package services

import (
	"claims-service/internal/models"
	"claims-service/internal/repository"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Sub-score weights, fixed policy.
const (
	weightPrescriptionDiagnosis = 0.35
	weightPrescriptionBill      = 0.30
	weightDiagnosisTreatment    = 0.20
	weightBillingPolicy         = 0.15
)

// Decision thresholds shared with the settlement calculator.
const (
	autoApproveValidationScore = 0.8
	rejectValidationScore      = 0.5
)

// quantityTolerance allows dispensed quantities to differ slightly from the
// prescribed amount (pack rounding).
const quantityTolerance = 0.10

// billTotalTolerance bounds the allowed gap between the claimed amount and
// the billed total read off the document.
const billTotalTolerance = 0.02

var acceptableLanguages = map[string]bool{
	"en": true,
	"si": true,
	"ta": true,
}

// ValidationService computes the weighted multi-factor validation score and
// the 15-point policy compliance checklist for a claim.
type ValidationService struct {
	claimRepo  *repository.ClaimRepository
	policyRepo *repository.PolicyRepository
	resultRepo *repository.ResultRepository
	auditRepo  *repository.AuditRepository
}

func NewValidationService(
	claimRepo *repository.ClaimRepository,
	policyRepo *repository.PolicyRepository,
	resultRepo *repository.ResultRepository,
	auditRepo *repository.AuditRepository,
) *ValidationService {
	return &ValidationService{
		claimRepo:  claimRepo,
		policyRepo: policyRepo,
		resultRepo: resultRepo,
		auditRepo:  auditRepo,
	}
}

// Run validates the claim against its policy, member, and accepted
// extractions, and replaces the claim's validation result. A missing policy
// or member is a hard failure, never silently defaulted.
func (s *ValidationService) Run(ctx context.Context, claim *models.Claim, extractions []models.ExtractionResult, missingDocs []string, degradedIntake bool) (*models.ValidationResult, error) {
	policy, err := s.policyRepo.GetByID(ctx, claim.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("policy required for validation: %w", err)
	}

	member, err := s.policyRepo.GetMemberByID(ctx, claim.MemberID)
	if err != nil {
		return nil, fmt.Errorf("member required for validation: %w", err)
	}

	previousTotal, err := s.claimRepo.GetPreviousApprovedTotal(ctx, claim.PolicyID, claim.ClaimType, claim.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous approved claims: %w", err)
	}

	result := EvaluateClaim(claim, policy, member, extractions, previousTotal, missingDocs)
	result.Degraded = result.Degraded || degradedIntake

	if err := s.resultRepo.UpsertValidation(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist validation result: %w", err)
	}

	notes := fmt.Sprintf("overall=%.3f recommendation=%s checks_failed=%d",
		result.OverallScore, result.Recommendation, failedCheckCount(result.Checklist))
	s.appendAudit(ctx, claim.ID, "validation_completed", notes)

	slog.Info("Claim validated",
		"claim_id", claim.ID,
		"overall_score", result.OverallScore,
		"recommendation", result.Recommendation,
		"missing_documents", len(result.MissingDocuments),
		"exclusion_hits", len(result.ExclusionHits))

	return result, nil
}

func (s *ValidationService) appendAudit(ctx context.Context, claimID uuid.UUID, action, notes string) {
	entry := &models.ClaimAuditEntry{
		ClaimID: claimID,
		Action:  action,
		Notes:   &notes,
		Actor:   "pipeline",
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		slog.Warn("Failed to append audit entry", "claim_id", claimID, "action", action, "error", err)
	}
}

// EvaluateClaim is the pure scoring core. Given identical inputs it produces
// identical scores, which keeps validation re-runs idempotent.
func EvaluateClaim(
	claim *models.Claim,
	policy *models.Policy,
	member *models.Member,
	extractions []models.ExtractionResult,
	previousApprovedTotal float64,
	missingDocs []string,
) *models.ValidationResult {
	prescription := findByType(extractions, models.DocPrescription)
	bill := findByType(extractions, models.DocMedicalBill)
	channelling := findByType(extractions, models.DocChannellingBill)

	missing := append([]string{}, missingDocs...)
	if prescription == nil {
		missing = append(missing, string(models.DocPrescription))
	}
	if bill == nil {
		missing = append(missing, string(models.DocMedicalBill))
	}

	var checklist models.ComplianceChecklist
	var exclusionHits, mismatches models.StringList

	addCheck := func(name string, passed bool, hard bool, detail string) {
		checklist = append(checklist, models.ComplianceCheck{
			Name:   name,
			Passed: passed,
			Hard:   hard,
			Detail: detail,
		})
	}

	// 1. bill_date_visible
	billDateVisible := bill != nil && bill.Entities.BillDate != nil && *bill.Entities.BillDate != ""
	addCheck("bill_date_visible", billDateVisible, false, "")

	// 2. submission_within_warranty_period
	daysBetween := int(claim.SubmissionDate.Sub(claim.TreatmentDate).Hours() / 24)
	withinWarranty := daysBetween <= policy.WarrantyPeriodDays && daysBetween >= 0
	addCheck("submission_within_warranty_period", withinWarranty, true,
		fmt.Sprintf("%d days, limit %d", daysBetween, policy.WarrantyPeriodDays))

	// 3. patient_name_matches_member
	nameOK := patientNameMatches(member.FullName, prescription, bill)
	addCheck("patient_name_matches_member", nameOK, true, "")
	if !nameOK {
		mismatches = append(mismatches, "patient name does not match member record")
	}

	// 4. amount_within_policy_limit
	limit, covered := policy.LimitFor(claim.ClaimType)
	withinLimit := covered && claim.ClaimedAmount <= limit
	addCheck("amount_within_policy_limit", withinLimit, false,
		fmt.Sprintf("claimed %.2f, limit %.2f", claim.ClaimedAmount, limit))

	// 5. prescription_matches_bill (brand-name substitution allowed)
	matchScore, itemMismatches := prescriptionBillMatch(prescription, bill)
	addCheck("prescription_matches_bill", matchScore >= 1.0, false,
		fmt.Sprintf("matched fraction %.2f", matchScore))
	mismatches = append(mismatches, itemMismatches...)

	// 6. ailment_covered
	ailmentOK := ailmentCovered(claim.Diagnosis, policy.CoveredAilments)
	addCheck("ailment_covered", ailmentOK, true, "")

	// 7. no_vitamin_items
	vitaminHits := medicineFlagHits(prescription, bill, func(m models.MedicineItem) bool { return m.IsVitamin })
	addCheck("no_vitamin_items", len(vitaminHits) == 0, true, strings.Join(vitaminHits, ", "))
	for _, hit := range vitaminHits {
		exclusionHits = append(exclusionHits, "vitamin: "+hit)
	}

	// 8. no_cosmetic_items
	cosmeticHits := medicineFlagHits(prescription, bill, func(m models.MedicineItem) bool { return m.IsCosmetic })
	addCheck("no_cosmetic_items", len(cosmeticHits) == 0, true, strings.Join(cosmeticHits, ", "))
	for _, hit := range cosmeticHits {
		exclusionHits = append(exclusionHits, "cosmetic: "+hit)
	}

	// 9. no_excluded_items
	policyHits := policyExclusionHits(policy.Exclusions, bill)
	addCheck("no_excluded_items", len(policyHits) == 0, true, strings.Join(policyHits, ", "))
	for _, hit := range policyHits {
		exclusionHits = append(exclusionHits, "policy exclusion: "+hit)
	}

	// 10. channelling_bill_legitimate
	channellingOK := channellingLegitimate(channelling)
	addCheck("channelling_bill_legitimate", channellingOK, false, "")

	// 11. amount_not_abnormal
	amountOK := claimedAmountConsistent(claim.ClaimedAmount, bill)
	addCheck("amount_not_abnormal", amountOK, false, "")
	if !amountOK {
		mismatches = append(mismatches, "claimed amount inconsistent with billed total")
	}

	// 12. language_acceptable
	langOK := languagesAcceptable(extractions)
	addCheck("language_acceptable", langOK, false, "")

	// 13. document_format_acceptable
	formatOK := formatsAcceptable(extractions)
	addCheck("document_format_acceptable", formatOK, false, "")

	// 14. category_rules_satisfied
	categoryOK, categoryDetail := categoryRulesSatisfied(claim, bill)
	addCheck("category_rules_satisfied", categoryOK, false, categoryDetail)

	// 15. prescription_supports_diagnosis
	supportsOK := prescriptionSupportsDiagnosis(prescription)
	addCheck("prescription_supports_diagnosis", supportsOK, false, "")

	subA := groupScore(checklist, "prescription_supports_diagnosis", "no_vitamin_items", "no_cosmetic_items")
	subB := groupScore(checklist, "prescription_matches_bill", "bill_date_visible")
	subC := groupScore(checklist, "ailment_covered", "channelling_bill_legitimate", "category_rules_satisfied")
	subD := groupScore(checklist,
		"submission_within_warranty_period", "patient_name_matches_member",
		"amount_within_policy_limit", "no_excluded_items", "amount_not_abnormal",
		"language_acceptable", "document_format_acceptable")

	overall := weightPrescriptionDiagnosis*subA +
		weightPrescriptionBill*subB +
		weightDiagnosisTreatment*subC +
		weightBillingPolicy*subD

	remaining := limit - previousApprovedTotal
	maxPayable := math.Min(remaining, claim.ClaimedAmount)
	if maxPayable < 0 {
		maxPayable = 0
	}
	estimatedCoPayment := maxPayable * policy.CoPaymentPercentage / 100

	hardFailed := anyHardCheckFailed(checklist)
	var recommendation models.WorkflowAction
	switch {
	case overall >= autoApproveValidationScore && !hardFailed:
		recommendation = models.ActionAutoApprove
	case overall < rejectValidationScore:
		recommendation = models.ActionReject
	default:
		recommendation = models.ActionManualReview
	}

	manualFlagged := false
	for _, e := range extractions {
		if e.ManualVerificationFlag {
			manualFlagged = true
			break
		}
	}

	return &models.ValidationResult{
		ID:                    uuid.New(),
		ClaimID:               claim.ID,
		PrescriptionDiagnosis: subA,
		PrescriptionBill:      subB,
		DiagnosisTreatment:    subC,
		BillingPolicy:         subD,
		OverallScore:          overall,
		Checklist:             checklist,
		MissingDocuments:      models.StringList(missing),
		ExclusionHits:         exclusionHits,
		Mismatches:            mismatches,
		PreviousApprovedTotal: previousApprovedTotal,
		RemainingCoverage:     remaining,
		MaxPayable:            maxPayable,
		EstimatedCoPayment:    estimatedCoPayment,
		Recommendation:        recommendation,
		Degraded:              manualFlagged,
	}
}

func findByType(extractions []models.ExtractionResult, docType models.DocumentType) *models.ExtractionResult {
	for i := range extractions {
		if extractions[i].DocumentType == docType {
			return &extractions[i]
		}
	}
	return nil
}

func groupScore(checklist models.ComplianceChecklist, names ...string) float64 {
	inGroup := make(map[string]bool, len(names))
	for _, n := range names {
		inGroup[n] = true
	}

	total, passed := 0, 0
	for _, check := range checklist {
		if inGroup[check.Name] {
			total++
			if check.Passed {
				passed++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return float64(passed) / float64(total)
}

func anyHardCheckFailed(checklist models.ComplianceChecklist) bool {
	for _, check := range checklist {
		if check.Hard && !check.Passed {
			return true
		}
	}
	return false
}

func failedCheckCount(checklist models.ComplianceChecklist) int {
	count := 0
	for _, check := range checklist {
		if !check.Passed {
			count++
		}
	}
	return count
}

// patientNameMatches compares the member's registered name against the
// patient names read off the documents. Token overlap handles initials and
// ordering differences.
func patientNameMatches(memberName string, docs ...*models.ExtractionResult) bool {
	for _, doc := range docs {
		if doc == nil || doc.Entities.Patient.Name == "" {
			continue
		}
		if nameTokensMatch(memberName, doc.Entities.Patient.Name) {
			return true
		}
	}
	// No document carried a matching patient name; an invisible name fails
	// the check rather than passing silently.
	return false
}

func nameTokensMatch(a, b string) bool {
	tokensA := strings.Fields(strings.ToLower(a))
	tokensB := strings.Fields(strings.ToLower(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}

	shared := 0
	for _, ta := range tokensA {
		ta = strings.TrimSuffix(ta, ".")
		for _, tb := range tokensB {
			tb = strings.TrimSuffix(tb, ".")
			if ta == tb || (len(tb) == 1 && strings.HasPrefix(ta, tb)) || (len(ta) == 1 && strings.HasPrefix(tb, ta)) {
				shared++
				break
			}
		}
	}

	need := 2
	if len(tokensA) == 1 || len(tokensB) == 1 {
		need = 1
	}
	return shared >= need
}

// prescriptionBillMatch returns the fraction of prescribed medicines that
// appear on the bill with a consistent quantity. A billed item matches by
// brand name or generic name, so brand substitution does not penalize the
// claim.
func prescriptionBillMatch(prescription, bill *models.ExtractionResult) (float64, models.StringList) {
	if prescription == nil || bill == nil {
		return 0, nil
	}
	prescribed := prescription.Entities.Medicines
	billed := bill.Entities.Medicines
	if len(prescribed) == 0 {
		return 1, nil
	}

	var mismatches models.StringList
	matched := 0
	for _, p := range prescribed {
		found := false
		for _, b := range billed {
			if !medicineNamesMatch(p, b) {
				continue
			}
			found = true
			if !quantitiesConsistent(p.Quantity, b.Quantity) {
				mismatches = append(mismatches,
					fmt.Sprintf("quantity mismatch for %s: prescribed %.1f, billed %.1f", p.Name, p.Quantity, b.Quantity))
			} else {
				matched++
			}
			break
		}
		if !found {
			mismatches = append(mismatches, fmt.Sprintf("prescribed %s not found on bill", p.Name))
		}
	}

	return float64(matched) / float64(len(prescribed)), mismatches
}

func medicineNamesMatch(a, b models.MedicineItem) bool {
	names := func(m models.MedicineItem) []string {
		out := []string{strings.ToLower(strings.TrimSpace(m.Name))}
		if m.GenericName != nil {
			out = append(out, strings.ToLower(strings.TrimSpace(*m.GenericName)))
		}
		return out
	}
	for _, na := range names(a) {
		if na == "" {
			continue
		}
		for _, nb := range names(b) {
			if nb == "" {
				continue
			}
			if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
				return true
			}
		}
	}
	return false
}

func quantitiesConsistent(prescribed, billed float64) bool {
	if prescribed <= 0 {
		return true
	}
	return math.Abs(billed-prescribed)/prescribed <= quantityTolerance
}

func ailmentCovered(diagnosis *string, covered models.StringList) bool {
	// An empty covered list means the policy does not restrict ailments.
	if len(covered) == 0 {
		return true
	}
	if diagnosis == nil || *diagnosis == "" {
		return false
	}
	d := strings.ToLower(*diagnosis)
	for _, ailment := range covered {
		if strings.Contains(d, strings.ToLower(ailment)) {
			return true
		}
	}
	return false
}

func medicineFlagHits(prescription, bill *models.ExtractionResult, flagged func(models.MedicineItem) bool) []string {
	seen := make(map[string]bool)
	var hits []string
	for _, doc := range []*models.ExtractionResult{prescription, bill} {
		if doc == nil {
			continue
		}
		for _, m := range doc.Entities.Medicines {
			key := strings.ToLower(m.Name)
			if flagged(m) && !seen[key] {
				seen[key] = true
				hits = append(hits, m.Name)
			}
		}
	}
	return hits
}

func policyExclusionHits(exclusions models.StringList, bill *models.ExtractionResult) []string {
	if bill == nil || len(exclusions) == 0 {
		return nil
	}
	var hits []string
	for _, exclusion := range exclusions {
		needle := strings.ToLower(exclusion)
		for _, item := range bill.Entities.Billing {
			if strings.Contains(strings.ToLower(item.Description), needle) {
				hits = append(hits, item.Description)
			}
		}
		for _, m := range bill.Entities.Medicines {
			if strings.Contains(strings.ToLower(m.Name), needle) {
				hits = append(hits, m.Name)
			}
		}
	}
	return hits
}

// channellingLegitimate verifies a channelling bill names the doctor and
// carries a positive consultation fee. Claims without a channelling bill
// pass; the check only screens the document when one exists.
func channellingLegitimate(channelling *models.ExtractionResult) bool {
	if channelling == nil {
		return true
	}
	if channelling.Entities.Doctor.Name == "" {
		return false
	}
	for _, item := range channelling.Entities.Billing {
		if item.Category == "consultation" && item.Amount > 0 {
			return true
		}
	}
	return false
}

func claimedAmountConsistent(claimedAmount float64, bill *models.ExtractionResult) bool {
	if bill == nil || bill.Entities.BillTotal == nil || *bill.Entities.BillTotal <= 0 {
		return false
	}
	if claimedAmount <= 0 {
		return false
	}
	return math.Abs(claimedAmount-*bill.Entities.BillTotal)/claimedAmount <= billTotalTolerance
}

func languagesAcceptable(extractions []models.ExtractionResult) bool {
	if len(extractions) == 0 {
		return false
	}
	for _, e := range extractions {
		if !acceptableLanguages[strings.ToLower(e.Language)] {
			return false
		}
	}
	return true
}

func formatsAcceptable(extractions []models.ExtractionResult) bool {
	if len(extractions) == 0 {
		return false
	}
	for _, e := range extractions {
		if e.Confidence < rejectConfidence {
			return false
		}
		if e.Handwritten && e.Confidence < 70 {
			return false
		}
	}
	return true
}

// categoryRulesSatisfied applies the claim-type specific sub-rules: dental
// claims must not carry cosmetic dentistry items, spectacles claims must
// actually bill optical items, and skin-related OPD claims are screened for
// cosmetic products.
func categoryRulesSatisfied(claim *models.Claim, bill *models.ExtractionResult) (bool, string) {
	switch claim.ClaimType {
	case models.ClaimTypeDental:
		if bill == nil {
			return false, "dental claim has no bill"
		}
		for _, item := range bill.Entities.Billing {
			desc := strings.ToLower(item.Description)
			if strings.Contains(desc, "whitening") || strings.Contains(desc, "cosmetic") {
				return false, fmt.Sprintf("cosmetic dentistry item: %s", item.Description)
			}
		}
		return true, ""
	case models.ClaimTypeSpectacles:
		if bill == nil {
			return false, "spectacles claim has no bill"
		}
		for _, item := range bill.Entities.Billing {
			desc := strings.ToLower(item.Description)
			if strings.Contains(desc, "lens") || strings.Contains(desc, "frame") || strings.Contains(desc, "spectacle") {
				return true, ""
			}
		}
		return false, "no optical items on spectacles bill"
	default:
		if claim.Diagnosis != nil {
			d := strings.ToLower(*claim.Diagnosis)
			if strings.Contains(d, "skin") || strings.Contains(d, "acne") || strings.Contains(d, "derma") {
				if bill != nil {
					for _, m := range bill.Entities.Medicines {
						if m.IsCosmetic {
							return false, fmt.Sprintf("cosmetic product on skin-related claim: %s", m.Name)
						}
					}
				}
			}
		}
		return true, ""
	}
}

func prescriptionSupportsDiagnosis(prescription *models.ExtractionResult) bool {
	if prescription == nil || len(prescription.Entities.Medicines) == 0 {
		return false
	}
	covered := 0
	for _, m := range prescription.Entities.Medicines {
		if m.IsCovered {
			covered++
		}
	}
	return float64(covered)/float64(len(prescription.Entities.Medicines)) >= 0.5
}
