package services

import (
	"testing"
	"time"

	"claims-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// cleanClaimFixture builds an OPD claim whose documents satisfy every
// compliance check.
func cleanClaimFixture() (*models.Claim, *models.Policy, *models.Member, []models.ExtractionResult) {
	treatment := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	claim := &models.Claim{
		ID:             uuid.New(),
		ClaimNumber:    "CLM-2026-000120",
		MemberID:       "member-001",
		PolicyID:       uuid.New(),
		ClaimType:      models.ClaimTypeOPD,
		ClaimedAmount:  5000,
		Diagnosis:      strPtr("acute bronchitis"),
		TreatmentDate:  treatment,
		SubmissionDate: treatment.AddDate(0, 0, 2),
	}

	policy := &models.Policy{
		ID:                  claim.PolicyID,
		PolicyNumber:        "POL-889",
		CoverageLimits:      models.CoverageLimits{models.ClaimTypeOPD: 20000},
		CoPaymentPercentage: 10,
		Deductible:          0,
		WarrantyPeriodDays:  30,
	}

	member := &models.Member{
		ID:       claim.MemberID,
		PolicyID: claim.PolicyID,
		FullName: "Nimal Perera",
	}

	medicines := []models.MedicineItem{
		{Name: "Amoxil", GenericName: strPtr("amoxicillin"), Quantity: 21, IsCovered: true},
		{Name: "Piriton", Quantity: 10, IsCovered: true},
	}

	prescription := models.ExtractionResult{
		ID:              uuid.New(),
		ClaimDocumentID: uuid.New(),
		DocumentType:    models.DocPrescription,
		Confidence:      95,
		Language:        "en",
		Status:          models.DocumentAccepted,
		Entities: models.ExtractedEntities{
			Patient:   models.PatientEntity{Name: "Nimal Perera"},
			Doctor:    models.DoctorEntity{Name: "Dr. S. Fernando"},
			Medicines: medicines,
		},
	}

	bill := models.ExtractionResult{
		ID:              uuid.New(),
		ClaimDocumentID: uuid.New(),
		DocumentType:    models.DocMedicalBill,
		Confidence:      92,
		Language:        "en",
		Status:          models.DocumentAccepted,
		Entities: models.ExtractedEntities{
			Patient:   models.PatientEntity{Name: "Nimal Perera"},
			Medicines: append([]models.MedicineItem(nil), medicines...),
			Billing: []models.BillingItem{
				{Description: "Amoxil 500mg", Quantity: 21, UnitPrice: 150, Amount: 3150, Category: "medicine"},
				{Description: "Piriton 4mg", Quantity: 10, UnitPrice: 185, Amount: 1850, Category: "medicine"},
			},
			BillDate:  strPtr("2026-01-05"),
			BillTotal: floatPtr(5000),
		},
	}

	return claim, policy, member, []models.ExtractionResult{prescription, bill}
}

func TestEvaluateClaim_CleanClaimAutoApproves(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	assert.Len(t, result.Checklist, 15)
	for _, check := range result.Checklist {
		assert.True(t, check.Passed, "check %s failed: %s", check.Name, check.Detail)
	}
	assert.InDelta(t, 1.0, result.OverallScore, 0.001)
	assert.Equal(t, models.ActionAutoApprove, result.Recommendation)
	assert.Empty(t, result.MissingDocuments)
	assert.Empty(t, result.ExclusionHits)
	assert.Empty(t, result.Mismatches)
	assert.InDelta(t, 20000.0, result.RemainingCoverage, 0.001)
	assert.InDelta(t, 5000.0, result.MaxPayable, 0.001)
	assert.InDelta(t, 500.0, result.EstimatedCoPayment, 0.001)
}

func TestEvaluateClaim_IsIdempotent(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()

	first := EvaluateClaim(claim, policy, member, extractions, 0, nil)
	second := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.Equal(t, first.Checklist, second.Checklist)
	assert.Equal(t, first.Recommendation, second.Recommendation)
	assert.Equal(t, first.MaxPayable, second.MaxPayable)
}

func TestEvaluateClaim_NameMismatchBlocksAutoApproval(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()
	member.FullName = "Kamal Silva"

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	// The score stays high but the hard check veto applies.
	assert.Greater(t, result.OverallScore, autoApproveValidationScore)
	assert.Equal(t, models.ActionManualReview, result.Recommendation)
	assert.Contains(t, result.Mismatches, "patient name does not match member record")
}

func TestEvaluateClaim_ExclusionHitsRecorded(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()
	policy.Exclusions = models.StringList{"supplement"}
	extractions[1].Entities.Billing = append(extractions[1].Entities.Billing,
		models.BillingItem{Description: "Multivitamin supplement", Quantity: 1, UnitPrice: 900, Amount: 900, Category: "other"})

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	assert.NotEmpty(t, result.ExclusionHits)
	assert.NotEqual(t, models.ActionAutoApprove, result.Recommendation)
}

func TestEvaluateClaim_VitaminItemsAreHardFailure(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()
	extractions[0].Entities.Medicines = append(extractions[0].Entities.Medicines,
		models.MedicineItem{Name: "Vitamin C 1000mg", Quantity: 30, IsVitamin: true})

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	assert.NotEqual(t, models.ActionAutoApprove, result.Recommendation)
	assert.Contains(t, result.ExclusionHits, "vitamin: Vitamin C 1000mg")
}

func TestEvaluateClaim_MissingDocumentsReported(t *testing.T) {
	claim, policy, member, _ := cleanClaimFixture()

	result := EvaluateClaim(claim, policy, member, nil, 0, nil)

	assert.Contains(t, result.MissingDocuments, string(models.DocPrescription))
	assert.Contains(t, result.MissingDocuments, string(models.DocMedicalBill))
	assert.NotEqual(t, models.ActionAutoApprove, result.Recommendation)
}

func TestEvaluateClaim_SeverelyDeficientClaimRejected(t *testing.T) {
	claim, policy, member, _ := cleanClaimFixture()
	claim.ClaimType = models.ClaimTypeDental
	claim.Diagnosis = nil
	policy.CoverageLimits = models.CoverageLimits{models.ClaimTypeDental: 10000}
	policy.CoveredAilments = models.StringList{"diabetes"}

	result := EvaluateClaim(claim, policy, member, nil, 0, nil)

	assert.Less(t, result.OverallScore, rejectValidationScore)
	assert.Equal(t, models.ActionReject, result.Recommendation)
}

func TestEvaluateClaim_CoverageArithmetic(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()

	// 18000 already approved against a 20000 limit leaves 2000 payable.
	result := EvaluateClaim(claim, policy, member, extractions, 18000, nil)

	assert.InDelta(t, 2000.0, result.RemainingCoverage, 0.001)
	assert.InDelta(t, 2000.0, result.MaxPayable, 0.001)
	assert.InDelta(t, 200.0, result.EstimatedCoPayment, 0.001)
}

func TestEvaluateClaim_ExhaustedCoverageClampsToZero(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()

	result := EvaluateClaim(claim, policy, member, extractions, 25000, nil)

	assert.InDelta(t, -5000.0, result.RemainingCoverage, 0.001)
	assert.InDelta(t, 0.0, result.MaxPayable, 0.001)
	assert.InDelta(t, 0.0, result.EstimatedCoPayment, 0.001)
}

func TestEvaluateClaim_BrandSubstitutionAllowed(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()
	// The bill carries the generic name instead of the prescribed brand.
	extractions[1].Entities.Medicines[0].Name = "Amoxicillin"
	extractions[1].Entities.Medicines[0].GenericName = nil

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	for _, check := range result.Checklist {
		if check.Name == "prescription_matches_bill" {
			assert.True(t, check.Passed, check.Detail)
		}
	}
	assert.Empty(t, result.Mismatches)
}

func TestEvaluateClaim_QuantityMismatchRecorded(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()
	// Billed double the prescribed quantity, well past the tolerance.
	extractions[1].Entities.Medicines[0].Quantity = 42

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	assert.Equal(t, 21.0, extractions[0].Entities.Medicines[0].Quantity)
	assert.NotEmpty(t, result.Mismatches)
	for _, check := range result.Checklist {
		if check.Name == "prescription_matches_bill" {
			assert.False(t, check.Passed)
		}
	}
	assert.Less(t, result.PrescriptionBill, 1.0)
}

func TestEvaluateClaim_LateSubmissionIsHardFailure(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()
	claim.SubmissionDate = claim.TreatmentDate.AddDate(0, 0, policy.WarrantyPeriodDays+5)

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)

	assert.NotEqual(t, models.ActionAutoApprove, result.Recommendation)
}

func TestEvaluateClaim_SpectaclesRequireOpticalItems(t *testing.T) {
	claim, policy, member, extractions := cleanClaimFixture()
	claim.ClaimType = models.ClaimTypeSpectacles
	policy.CoverageLimits = models.CoverageLimits{models.ClaimTypeSpectacles: 15000}

	result := EvaluateClaim(claim, policy, member, extractions, 0, nil)
	categoryPassed := true
	for _, check := range result.Checklist {
		if check.Name == "category_rules_satisfied" {
			categoryPassed = check.Passed
		}
	}
	assert.False(t, categoryPassed)

	extractions[1].Entities.Billing = append(extractions[1].Entities.Billing,
		models.BillingItem{Description: "Single vision lens pair", Quantity: 1, UnitPrice: 4000, Amount: 4000, Category: "other"})
	result = EvaluateClaim(claim, policy, member, extractions, 0, nil)
	for _, check := range result.Checklist {
		if check.Name == "category_rules_satisfied" {
			assert.True(t, check.Passed, check.Detail)
		}
	}
}

func TestNameTokensMatch(t *testing.T) {
	assert.True(t, nameTokensMatch("Nimal Perera", "Perera Nimal"))
	assert.True(t, nameTokensMatch("Nimal Perera", "N. Perera"))
	assert.False(t, nameTokensMatch("Nimal Perera", "Kamal Silva"))
	assert.False(t, nameTokensMatch("", "Nimal Perera"))
}
