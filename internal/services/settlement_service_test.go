package services

import (
	"testing"

	"claims-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func settlementFixture(claimed, previousApproved, limit, coPayPct, deductible float64) (*models.Claim, *models.Policy, *models.ValidationResult, *models.FraudResult) {
	claim := &models.Claim{
		ID:            uuid.New(),
		PolicyID:      uuid.New(),
		ClaimType:     models.ClaimTypeOPD,
		ClaimedAmount: claimed,
	}
	policy := &models.Policy{
		ID:                  claim.PolicyID,
		CoverageLimits:      models.CoverageLimits{models.ClaimTypeOPD: limit},
		CoPaymentPercentage: coPayPct,
		Deductible:          deductible,
	}
	validation := &models.ValidationResult{
		ClaimID:               claim.ID,
		OverallScore:          0.85,
		PreviousApprovedTotal: previousApproved,
	}
	fraud := &models.FraudResult{
		ClaimID:      claim.ID,
		AnomalyScore: 0.95,
		FraudScore:   0.1,
	}
	return claim, policy, validation, fraud
}

func TestComputeSettlement_CleanClaimAutoApproved(t *testing.T) {
	// 5000 claimed against a 20000 limit, 10% co-payment, no deductible.
	claim, policy, validation, fraud := settlementFixture(5000, 0, 20000, 10, 0)

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.Equal(t, models.ActionAutoApprove, result.Decision)
	assert.InDelta(t, 20000.0, result.RemainingCoverage, 0.001)
	assert.InDelta(t, 5000.0, result.MaxPayable, 0.001)
	assert.InDelta(t, 500.0, result.CoPayment, 0.001)
	assert.InDelta(t, 4500.0, result.InsurerPayment, 0.001)
}

func TestComputeSettlement_HighFraudRejectedWithZeroPayment(t *testing.T) {
	claim, policy, validation, fraud := settlementFixture(5000, 0, 20000, 10, 0)
	fraud.FraudScore = 0.8
	fraud.AnomalyScore = 0.2

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.Equal(t, models.ActionReject, result.Decision)
	assert.InDelta(t, 0.0, result.InsurerPayment, 0.001)
	assert.InDelta(t, 0.0, result.MaxPayable, 0.001)
}

func TestComputeSettlement_RejectionPrecedesApproval(t *testing.T) {
	// High validation cannot rescue a claim past the fraud threshold.
	claim, policy, validation, fraud := settlementFixture(5000, 0, 20000, 10, 0)
	validation.OverallScore = 0.9
	fraud.FraudScore = 0.75
	fraud.AnomalyScore = 0.95

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.Equal(t, models.ActionReject, result.Decision)
	assert.InDelta(t, 0.0, result.InsurerPayment, 0.001)
}

func TestComputeSettlement_NearExhaustedCoverageCapsPayable(t *testing.T) {
	// 18000 already approved on a 20000 limit leaves 2000.
	claim, policy, validation, fraud := settlementFixture(5000, 18000, 20000, 0, 0)

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.InDelta(t, 2000.0, result.RemainingCoverage, 0.001)
	assert.InDelta(t, 2000.0, result.MaxPayable, 0.001)
}

func TestComputeSettlement_ExhaustedCoverageClampsToZero(t *testing.T) {
	claim, policy, validation, fraud := settlementFixture(5000, 25000, 20000, 10, 0)

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.InDelta(t, 0.0, result.MaxPayable, 0.001)
	assert.InDelta(t, 0.0, result.InsurerPayment, 0.001)
}

func TestComputeSettlement_DeductibleReducesPayment(t *testing.T) {
	claim, policy, validation, fraud := settlementFixture(5000, 0, 20000, 10, 1000)

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	// 5000 payable, 500 co-payment, 1000 deductible.
	assert.InDelta(t, 3500.0, result.InsurerPayment, 0.001)
}

func TestComputeSettlement_DeductibleNeverDrivesPaymentNegative(t *testing.T) {
	claim, policy, validation, fraud := settlementFixture(500, 0, 20000, 10, 1000)

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.InDelta(t, 0.0, result.InsurerPayment, 0.001)
}

func TestComputeSettlement_AccountingInvariant(t *testing.T) {
	cases := []struct {
		claimed, previous, limit, coPayPct, deductible float64
	}{
		{5000, 0, 20000, 10, 0},
		{5000, 18000, 20000, 10, 500},
		{12000, 3000, 15000, 20, 1000},
		{800, 0, 10000, 0, 0},
	}

	for _, tc := range cases {
		claim, policy, validation, fraud := settlementFixture(tc.claimed, tc.previous, tc.limit, tc.coPayPct, tc.deductible)
		result := ComputeSettlement(claim, policy, nil, validation, fraud)

		assert.GreaterOrEqual(t, result.MaxPayable, 0.0)
		assert.LessOrEqual(t, result.MaxPayable, tc.claimed+0.001)
		assert.GreaterOrEqual(t, result.InsurerPayment, 0.0)
		assert.LessOrEqual(t, result.InsurerPayment+result.CoPayment, result.MaxPayable+0.001)
	}
}

func TestComputeSettlement_BorderlineGoesToManualReview(t *testing.T) {
	claim, policy, validation, fraud := settlementFixture(5000, 0, 20000, 10, 0)
	validation.OverallScore = 0.7 // above reject, below auto-approve
	fraud.FraudScore = 0.5        // medium band

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.Equal(t, models.ActionManualReview, result.Decision)
	assert.InDelta(t, 0.0, result.InsurerPayment, 0.001)
	// The computed cap survives for the reviewer.
	assert.InDelta(t, 5000.0, result.MaxPayable, 0.001)
}

func TestComputeSettlement_DegradedInputsNeverAutoApprove(t *testing.T) {
	claim, policy, validation, fraud := settlementFixture(5000, 0, 20000, 10, 0)
	fraud.Degraded = true

	result := ComputeSettlement(claim, policy, nil, validation, fraud)

	assert.Equal(t, models.ActionManualReview, result.Decision)
}

func TestResolveDecision_Precedence(t *testing.T) {
	mk := func(validationScore, fraudScore, anomalyScore float64) (*models.ValidationResult, *models.FraudResult) {
		return &models.ValidationResult{OverallScore: validationScore},
			&models.FraudResult{FraudScore: fraudScore, AnomalyScore: anomalyScore}
	}

	v, f := mk(0.85, 0.1, 0.95)
	assert.Equal(t, models.ActionAutoApprove, resolveDecision(v, f))

	v, f = mk(0.45, 0.1, 0.95)
	assert.Equal(t, models.ActionReject, resolveDecision(v, f))

	v, f = mk(0.9, 0.75, 0.95)
	assert.Equal(t, models.ActionReject, resolveDecision(v, f))

	// Fails the anomaly bar for auto-approval but nothing rejects it.
	v, f = mk(0.85, 0.1, 0.5)
	assert.Equal(t, models.ActionManualReview, resolveDecision(v, f))

	// Fraud in the grey zone blocks auto-approval.
	v, f = mk(0.85, 0.35, 0.95)
	assert.Equal(t, models.ActionManualReview, resolveDecision(v, f))
}

func TestFallbackRationale_CoversEveryDecision(t *testing.T) {
	claim, policy, validation, fraud := settlementFixture(5000, 0, 20000, 10, 0)

	approved := ComputeSettlement(claim, policy, nil, validation, fraud)
	assert.NotEmpty(t, fallbackRationale(approved, validation, fraud))

	fraud.FraudScore = 0.8
	rejected := ComputeSettlement(claim, policy, nil, validation, fraud)
	assert.NotEmpty(t, fallbackRationale(rejected, validation, fraud))

	fraud.FraudScore = 0.5
	reviewed := ComputeSettlement(claim, policy, nil, validation, fraud)
	assert.NotEmpty(t, fallbackRationale(reviewed, validation, fraud))
}
