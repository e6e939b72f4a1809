package services

import (
	"testing"
	"time"

	"claims-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func fraudClaimFixture() *models.Claim {
	return &models.Claim{
		ID:             uuid.New(),
		PolicyID:       uuid.New(),
		ClaimType:      models.ClaimTypeOPD,
		ClaimedAmount:  5000,
		Diagnosis:      strPtr("acute bronchitis"),
		ProviderName:   strPtr("City Medical Centre"),
		SubmissionDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMeanStdDev(t *testing.T) {
	mean, stdDev := meanStdDev([]float64{4000, 5000, 6000})
	assert.InDelta(t, 5000.0, mean, 0.001)
	assert.InDelta(t, 1000.0, stdDev, 0.001)

	mean, stdDev = meanStdDev(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, stdDev)

	mean, stdDev = meanStdDev([]float64{7500})
	assert.Equal(t, 7500.0, mean)
	assert.Equal(t, 0.0, stdDev)
}

func TestAnomalySignal_TypicalAmountIsNormal(t *testing.T) {
	baseline := baselineStats{Mean: 5000, StdDev: 1000, SampleSize: 200}

	normalcy, deviationPct, zScore := anomalySignal(5000, baseline)
	assert.InDelta(t, 1.0, normalcy, 0.001)
	assert.InDelta(t, 0.0, deviationPct, 0.001)
	assert.InDelta(t, 0.0, zScore, 0.001)
}

func TestAnomalySignal_ThreeSigmaOutlierHasZeroNormalcy(t *testing.T) {
	baseline := baselineStats{Mean: 5000, StdDev: 1000, SampleSize: 200}

	normalcy, deviationPct, zScore := anomalySignal(8000, baseline)
	assert.InDelta(t, 0.0, normalcy, 0.001)
	assert.InDelta(t, 60.0, deviationPct, 0.001)
	assert.InDelta(t, 3.0, zScore, 0.001)

	// Beyond three sigma the normalcy stays clamped at zero.
	normalcy, _, _ = anomalySignal(20000, baseline)
	assert.Equal(t, 0.0, normalcy)
}

func TestAnomalySignal_InsufficientHistoryIsUnremarkable(t *testing.T) {
	normalcy, deviationPct, zScore := anomalySignal(5000, baselineStats{SampleSize: 1, Mean: 4000})
	assert.Equal(t, 1.0, normalcy)
	assert.Equal(t, 0.0, deviationPct)
	assert.Equal(t, 0.0, zScore)
}

func TestDuplicateSignal_IdenticalClaimMatches(t *testing.T) {
	claim := fraudClaimFixture()
	history := []models.Claim{{
		ID:            uuid.New(),
		PolicyID:      claim.PolicyID,
		ClaimedAmount: 5000,
		Diagnosis:     strPtr("acute bronchitis"),
		ProviderName:  strPtr("City Medical Centre"),
	}}

	match, similarity := duplicateSignal(claim, history)
	assert.True(t, match)
	assert.InDelta(t, 1.0, similarity, 0.001)
}

func TestDuplicateSignal_DifferentClaimDoesNotMatch(t *testing.T) {
	claim := fraudClaimFixture()
	history := []models.Claim{{
		ID:            uuid.New(),
		PolicyID:      claim.PolicyID,
		ClaimedAmount: 900,
		Diagnosis:     strPtr("sprained ankle"),
		ProviderName:  strPtr("Lakeside Clinic"),
	}}

	match, similarity := duplicateSignal(claim, history)
	assert.False(t, match)
	assert.Less(t, similarity, duplicateSimilarityThreshold)
}

func TestDuplicateSignal_EmptyHistory(t *testing.T) {
	match, similarity := duplicateSignal(fraudClaimFixture(), nil)
	assert.False(t, match)
	assert.Equal(t, 0.0, similarity)
}

func TestFraudBand(t *testing.T) {
	level, flag := fraudBand(0.85)
	assert.Equal(t, models.RiskLevelHigh, level)
	assert.Equal(t, models.FraudFlagged, flag)

	level, flag = fraudBand(0.7)
	assert.Equal(t, models.RiskLevelHigh, level)
	assert.Equal(t, models.FraudFlagged, flag)

	level, flag = fraudBand(0.55)
	assert.Equal(t, models.RiskLevelMedium, level)
	assert.Equal(t, models.FraudSuspicious, flag)

	level, flag = fraudBand(0.4)
	assert.Equal(t, models.RiskLevelMedium, level)
	assert.Equal(t, models.FraudSuspicious, flag)

	level, flag = fraudBand(0.1)
	assert.Equal(t, models.RiskLevelLow, level)
	assert.Equal(t, models.FraudClean, flag)
}

func TestCombineFraudScore_StaysInUnitRange(t *testing.T) {
	assert.Equal(t, 0.0, combineFraudScore(false, 0, 0, 0, 0))

	// Every signal saturated: the weighted sum still clamps to [0,1].
	score := combineFraudScore(true, 1.0, 10, 50, 20)
	assert.LessOrEqual(t, score, 1.0)
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestScoreFraudSignals_CleanClaim(t *testing.T) {
	claim := fraudClaimFixture()
	baseline := baselineStats{Mean: 5000, StdDev: 1000, SampleSize: 200}

	result := ScoreFraudSignals(claim, nil, 0, baseline, nil, nil)

	assert.InDelta(t, 1.0, result.AnomalyScore, 0.001)
	assert.Less(t, result.FraudScore, fraudMediumThreshold)
	assert.Equal(t, models.RiskLevelLow, result.RiskLevel)
	assert.Equal(t, models.FraudClean, result.Flag)
	assert.Equal(t, models.ActionAutoApprove, result.Recommendation)
	assert.False(t, result.DuplicateMatch)
	assert.Empty(t, result.Alerts)
}

func TestScoreFraudSignals_DuplicateRaisesSuspicion(t *testing.T) {
	claim := fraudClaimFixture()
	baseline := baselineStats{Mean: 5000, StdDev: 1000, SampleSize: 200}
	history := []models.Claim{{
		ID:            uuid.New(),
		PolicyID:      claim.PolicyID,
		ClaimedAmount: 5000,
		Diagnosis:     strPtr("acute bronchitis"),
		ProviderName:  strPtr("City Medical Centre"),
	}}

	result := ScoreFraudSignals(claim, history, 0, baseline, nil, nil)

	assert.True(t, result.DuplicateMatch)
	assert.GreaterOrEqual(t, result.FraudScore, 0.35-0.001)
	assert.NotEmpty(t, result.Alerts)
	assert.NotEqual(t, models.ActionAutoApprove, result.Recommendation)
}

func TestScoreFraudSignals_ScoresClamped(t *testing.T) {
	claim := fraudClaimFixture()
	claim.ClaimedAmount = 100000
	baseline := baselineStats{Mean: 5000, StdDev: 500, SampleSize: 200}
	history := []models.Claim{{
		ID:            uuid.New(),
		PolicyID:      claim.PolicyID,
		ClaimedAmount: 100000,
		Diagnosis:     strPtr("acute bronchitis"),
		ProviderName:  strPtr("City Medical Centre"),
	}}

	result := ScoreFraudSignals(claim, history, 40, baseline, nil, nil)

	assert.GreaterOrEqual(t, result.AnomalyScore, 0.0)
	assert.LessOrEqual(t, result.AnomalyScore, 1.0)
	assert.GreaterOrEqual(t, result.FraudScore, 0.0)
	assert.LessOrEqual(t, result.FraudScore, 1.0)
	assert.Equal(t, models.RiskLevelHigh, result.RiskLevel)
	assert.Equal(t, models.FraudFlagged, result.Flag)
}

func TestContentAlerts_FlagsNonCoveredProducts(t *testing.T) {
	extractions := []models.ExtractionResult{{
		DocumentType: models.DocMedicalBill,
		Entities: models.ExtractedEntities{
			Medicines: []models.MedicineItem{
				{Name: "Vitamin C 1000mg", IsVitamin: true},
			},
			Billing: []models.BillingItem{
				{Description: "Consultation", Amount: 12000, Category: "consultation"},
			},
		},
	}}

	alerts := contentAlerts(extractions, nil)
	assert.Len(t, alerts, 2)
}

func TestConservativeFraudResult(t *testing.T) {
	claimID := uuid.New()
	result := conservativeFraudResult(claimID, "baseline statistics unavailable")

	assert.Equal(t, claimID, result.ClaimID)
	assert.True(t, result.Degraded)
	assert.Equal(t, models.RiskLevelMedium, result.RiskLevel)
	assert.Equal(t, models.ActionManualReview, result.Recommendation)
	assert.Contains(t, result.Alerts, "baseline statistics unavailable")
}
