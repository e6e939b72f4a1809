package services

import (
	redisdb "claims-service/internal/database/redis"
	"claims-service/internal/models"
	"claims-service/internal/repository"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	policyLookbackDays   = 90
	providerLookbackDays = 30
	baselineSampleSize   = 200
	baselineCacheTTL     = time.Hour

	// duplicateSimilarityThreshold mirrors the historical adjudication
	// heuristic: two claims at or above this similarity are treated as the
	// same event billed twice.
	duplicateSimilarityThreshold = 0.90

	// anomalySigmaCutoff: amounts beyond this many standard deviations are a
	// strong anomaly signal (normalcy 0).
	anomalySigmaCutoff = 3.0

	// highProviderFrequency is the 30-day same-provider claim count at which
	// the provider signal saturates.
	highProviderFrequency = 10

	// inflatedConsultationFee flags consultation line items priced far above
	// the usual channelling range.
	inflatedConsultationFee = 7500
)

// Fraud score bands.
const (
	fraudHighThreshold   = 0.7
	fraudMediumThreshold = 0.4
)

// FraudService scores a claim for anomaly and fraud signals against
// historical claim populations. Baseline statistics are cached in Redis so
// repeated runs do not rescan the claim table.
type FraudService struct {
	claimRepo  *repository.ClaimRepository
	resultRepo *repository.ResultRepository
	auditRepo  *repository.AuditRepository
	redis      *redisdb.Client
}

func NewFraudService(
	claimRepo *repository.ClaimRepository,
	resultRepo *repository.ResultRepository,
	auditRepo *repository.AuditRepository,
	redis *redisdb.Client,
) *FraudService {
	return &FraudService{
		claimRepo:  claimRepo,
		resultRepo: resultRepo,
		auditRepo:  auditRepo,
		redis:      redis,
	}
}

// baselineStats is the cached statistical baseline for a claim category.
type baselineStats struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	SampleSize int     `json:"sample_size"`
}

// Run produces the claim's fraud result. Signal-gathering failures degrade to
// a conservative manual-review outcome instead of failing the pipeline; only
// a persistence failure is surfaced as an error.
func (s *FraudService) Run(ctx context.Context, claim *models.Claim, extractions []models.ExtractionResult, validation *models.ValidationResult) (*models.FraudResult, error) {
	result := s.assess(ctx, claim, extractions, validation)

	if err := s.resultRepo.UpsertFraud(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist fraud result: %w", err)
	}

	notes := fmt.Sprintf("fraud=%.3f anomaly=%.3f risk=%s", result.FraudScore, result.AnomalyScore, result.RiskLevel)
	entry := &models.ClaimAuditEntry{
		ClaimID: claim.ID,
		Action:  "fraud_check_completed",
		Notes:   &notes,
		Actor:   "pipeline",
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		slog.Warn("Failed to append audit entry", "claim_id", claim.ID, "error", err)
	}

	slog.Info("Fraud check completed",
		"claim_id", claim.ID,
		"fraud_score", result.FraudScore,
		"anomaly_score", result.AnomalyScore,
		"risk_level", result.RiskLevel,
		"duplicate_match", result.DuplicateMatch,
		"degraded", result.Degraded)

	return result, nil
}

func (s *FraudService) assess(ctx context.Context, claim *models.Claim, extractions []models.ExtractionResult, validation *models.ValidationResult) *models.FraudResult {
	now := claim.SubmissionDate

	history, err := s.claimRepo.GetSamePolicyClaimsSince(ctx, claim.PolicyID, claim.ID,
		now.AddDate(0, 0, -policyLookbackDays))
	if err != nil {
		slog.Error("Failed to load same-policy history, degrading to manual review", "claim_id", claim.ID, "error", err)
		return conservativeFraudResult(claim.ID, "same-policy claim history unavailable")
	}

	providerCount := 0
	if claim.ProviderName != nil && *claim.ProviderName != "" {
		providerCount, err = s.claimRepo.CountProviderClaimsSince(ctx, *claim.ProviderName, claim.ID,
			now.AddDate(0, 0, -providerLookbackDays))
		if err != nil {
			slog.Error("Failed to count provider claims, degrading to manual review", "claim_id", claim.ID, "error", err)
			return conservativeFraudResult(claim.ID, "provider claim frequency unavailable")
		}
	}

	baseline, err := s.loadBaseline(ctx, claim.ClaimType)
	if err != nil {
		slog.Error("Failed to load baseline statistics, degrading to manual review", "claim_id", claim.ID, "error", err)
		return conservativeFraudResult(claim.ID, "baseline statistics unavailable")
	}

	return ScoreFraudSignals(claim, history, providerCount, baseline, extractions, validation)
}

// loadBaseline returns the claim-category baseline, from Redis when fresh.
func (s *FraudService) loadBaseline(ctx context.Context, claimType models.ClaimType) (baselineStats, error) {
	cacheKey := fmt.Sprintf("fraud:baseline:%s", claimType)

	if s.redis != nil {
		cached, err := s.redis.GetClient().Get(ctx, cacheKey).Result()
		if err == nil {
			var stats baselineStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return stats, nil
			}
		}
	}

	amounts, err := s.claimRepo.GetBaselineAmounts(ctx, claimType, baselineSampleSize)
	if err != nil {
		return baselineStats{}, err
	}

	mean, stdDev := meanStdDev(amounts)
	stats := baselineStats{Mean: mean, StdDev: stdDev, SampleSize: len(amounts)}

	if s.redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.redis.GetClient().Set(ctx, cacheKey, payload, baselineCacheTTL).Err(); err != nil {
				slog.Warn("Failed to cache baseline statistics", "claim_type", claimType, "error", err)
			}
		}
	}

	return stats, nil
}

// ScoreFraudSignals is the pure scoring core.
func ScoreFraudSignals(
	claim *models.Claim,
	history []models.Claim,
	providerCount int,
	baseline baselineStats,
	extractions []models.ExtractionResult,
	validation *models.ValidationResult,
) *models.FraudResult {
	dupMatch, dupSimilarity := duplicateSignal(claim, history)
	anomalyScore, deviationPct, zScore := anomalySignal(claim.ClaimedAmount, baseline)
	alerts := contentAlerts(extractions, validation)
	contentFlagCount := len(alerts)

	if dupMatch {
		alerts = append(alerts, fmt.Sprintf("possible duplicate of an earlier claim (similarity %.2f)", dupSimilarity))
	}
	if zScore >= anomalySigmaCutoff {
		alerts = append(alerts, fmt.Sprintf("claimed amount deviates %.1f%% from the category baseline", deviationPct))
	}
	if providerCount >= highProviderFrequency {
		alerts = append(alerts, fmt.Sprintf("provider billed %d claims in the last %d days", providerCount, providerLookbackDays))
	}

	fraudScore := combineFraudScore(dupMatch, dupSimilarity, zScore, providerCount, contentFlagCount)

	riskLevel, flag := fraudBand(fraudScore)

	var recommendation models.WorkflowAction
	switch riskLevel {
	case models.RiskLevelHigh:
		if validation != nil && validation.OverallScore < rejectValidationScore {
			recommendation = models.ActionReject
		} else {
			recommendation = models.ActionEscalate
		}
	case models.RiskLevelMedium:
		recommendation = models.ActionManualReview
	default:
		recommendation = models.ActionAutoApprove
	}

	return &models.FraudResult{
		ID:                     uuid.New(),
		ClaimID:                claim.ID,
		AnomalyScore:           clampUnit(anomalyScore),
		FraudScore:             clampUnit(fraudScore),
		DuplicateMatch:         dupMatch,
		DuplicateSimilarity:    clampUnit(dupSimilarity),
		AmountDeviationPercent: deviationPct,
		ProviderClaimFrequency: providerCount,
		RiskLevel:              riskLevel,
		Flag:                   flag,
		Alerts:                 models.StringList(alerts),
		Recommendation:         recommendation,
	}
}

func conservativeFraudResult(claimID uuid.UUID, reason string) *models.FraudResult {
	return &models.FraudResult{
		ID:             uuid.New(),
		ClaimID:        claimID,
		AnomalyScore:   0.5,
		FraudScore:     0.5,
		RiskLevel:      models.RiskLevelMedium,
		Flag:           FraudFlagForLevel(models.RiskLevelMedium),
		Alerts:         models.StringList{reason},
		Recommendation: models.ActionManualReview,
		Degraded:       true,
	}
}

// duplicateSignal compares the claim against the policy's trailing claims on
// billed amount, diagnosis, and provider. The strongest match wins.
func duplicateSignal(claim *models.Claim, history []models.Claim) (bool, float64) {
	best := 0.0
	for _, prev := range history {
		similarity := 0.0

		if claim.ClaimedAmount > 0 && prev.ClaimedAmount > 0 {
			larger := math.Max(claim.ClaimedAmount, prev.ClaimedAmount)
			similarity += 0.4 * (1 - math.Abs(claim.ClaimedAmount-prev.ClaimedAmount)/larger)
		}
		if claim.Diagnosis != nil && prev.Diagnosis != nil && *claim.Diagnosis != "" &&
			equalFold(*claim.Diagnosis, *prev.Diagnosis) {
			similarity += 0.3
		}
		if claim.ProviderName != nil && prev.ProviderName != nil && *claim.ProviderName != "" &&
			equalFold(*claim.ProviderName, *prev.ProviderName) {
			similarity += 0.3
		}

		if similarity > best {
			best = similarity
		}
	}
	return best >= duplicateSimilarityThreshold, best
}

// anomalySignal returns normalcy confidence in [0,1], the percentage
// deviation from the baseline mean, and the z-score.
func anomalySignal(amount float64, baseline baselineStats) (float64, float64, float64) {
	if baseline.SampleSize < 2 || baseline.Mean <= 0 {
		// Too little history to judge; treat as unremarkable.
		return 1, 0, 0
	}

	deviationPct := (amount - baseline.Mean) / baseline.Mean * 100

	zScore := 0.0
	if baseline.StdDev > 0 {
		zScore = math.Abs(amount-baseline.Mean) / baseline.StdDev
	}

	normalcy := 1 - zScore/anomalySigmaCutoff
	return clampUnit(normalcy), deviationPct, zScore
}

// contentAlerts flags content-level fraud signals: excluded products billed
// as medicine, prescription-bill mismatches, inflated consultation fees.
func contentAlerts(extractions []models.ExtractionResult, validation *models.ValidationResult) []string {
	var alerts []string

	for _, e := range extractions {
		for _, m := range e.Entities.Medicines {
			if m.IsVitamin || m.IsCosmetic {
				alerts = append(alerts, fmt.Sprintf("non-covered product billed as medicine: %s", m.Name))
			}
		}
		for _, item := range e.Entities.Billing {
			if item.Category == "consultation" && item.Amount > inflatedConsultationFee {
				alerts = append(alerts, fmt.Sprintf("consultation fee %.2f above expected range", item.Amount))
			}
		}
	}

	if validation != nil && len(validation.Mismatches) > 0 {
		alerts = append(alerts, fmt.Sprintf("%d prescription-bill mismatches reported by validation", len(validation.Mismatches)))
	}

	return alerts
}

// combineFraudScore folds the individual signals into one suspicion score.
func combineFraudScore(dupMatch bool, dupSimilarity, zScore float64, providerCount, contentFlagCount int) float64 {
	score := 0.0

	if dupMatch {
		score += 0.45 * dupSimilarity
	}
	score += 0.25 * math.Min(zScore/anomalySigmaCutoff, 1)
	score += 0.15 * math.Min(float64(providerCount)/highProviderFrequency, 1)
	score += 0.15 * math.Min(float64(contentFlagCount)/3, 1)

	return clampUnit(score)
}

func fraudBand(fraudScore float64) (models.RiskLevel, models.FraudFlag) {
	switch {
	case fraudScore >= fraudHighThreshold:
		return models.RiskLevelHigh, models.FraudFlagged
	case fraudScore >= fraudMediumThreshold:
		return models.RiskLevelMedium, models.FraudSuspicious
	default:
		return models.RiskLevelLow, models.FraudClean
	}
}

// FraudFlagForLevel maps a risk level to its outward flag.
func FraudFlagForLevel(level models.RiskLevel) models.FraudFlag {
	switch level {
	case models.RiskLevelHigh:
		return models.FraudFlagged
	case models.RiskLevelMedium:
		return models.FraudSuspicious
	default:
		return models.FraudClean
	}
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}

	sqDiff := 0.0
	for _, v := range values {
		sqDiff += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sqDiff / float64(len(values)-1))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
