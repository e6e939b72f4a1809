package services

import (
	"claims-service/internal/ai/gemini"
	"claims-service/internal/models"
	"claims-service/internal/repository"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Decision thresholds. Rejection conditions are tested before approval so a
// claim that is both suspicious and well-documented still gets rejected.
const (
	autoApproveAnomalyScore = 0.9
	autoApproveFraudScore   = 0.3
	rejectFraudScore        = 0.7
)

// SettlementService computes the payable amount and the final workflow
// decision, applies the decision to the claim row, and produces a narrative
// rationale for reviewers.
type SettlementService struct {
	claimRepo  *repository.ClaimRepository
	resultRepo *repository.ResultRepository
	auditRepo  *repository.AuditRepository
	selector   *gemini.GeminiClientSelector
}

func NewSettlementService(
	claimRepo *repository.ClaimRepository,
	resultRepo *repository.ResultRepository,
	auditRepo *repository.AuditRepository,
	selector *gemini.GeminiClientSelector,
) *SettlementService {
	return &SettlementService{
		claimRepo:  claimRepo,
		resultRepo: resultRepo,
		auditRepo:  auditRepo,
		selector:   selector,
	}
}

// Run computes the settlement for a claim and applies its side effects: the
// claim's outward status and approved amount are written in the same pass.
func (s *SettlementService) Run(ctx context.Context, claim *models.Claim, policy *models.Policy, extractions []models.ExtractionResult, validation *models.ValidationResult, fraud *models.FraudResult) (*models.SettlementResult, error) {
	result := ComputeSettlement(claim, policy, extractions, validation, fraud)

	result.Rationale = s.buildRationale(ctx, result, validation, fraud)

	if err := s.resultRepo.UpsertSettlement(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist settlement result: %w", err)
	}

	if err := s.applyDecision(ctx, claim, result); err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("decision=%s insurer_payment=%.2f", result.Decision, result.InsurerPayment)
	entry := &models.ClaimAuditEntry{
		ClaimID: claim.ID,
		Action:  "settlement_completed",
		Notes:   &notes,
		Actor:   "pipeline",
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		slog.Warn("Failed to append audit entry", "claim_id", claim.ID, "error", err)
	}

	slog.Info("Settlement completed",
		"claim_id", claim.ID,
		"decision", result.Decision,
		"billed_total", result.BilledTotal,
		"max_payable", result.MaxPayable,
		"insurer_payment", result.InsurerPayment)

	return result, nil
}

// ComputeSettlement is the pure arithmetic and decision core. The amount
// chain is evaluated in a fixed order so intermediate values are reproducible:
// remaining coverage, then the payable cap, then member cost sharing.
func ComputeSettlement(claim *models.Claim, policy *models.Policy, extractions []models.ExtractionResult, validation *models.ValidationResult, fraud *models.FraudResult) *models.SettlementResult {
	billedTotal := claim.ClaimedAmount

	policyLimit, _ := policy.LimitFor(claim.ClaimType)
	remaining := policyLimit - validation.PreviousApprovedTotal

	maxPayable := math.Min(remaining, billedTotal)
	if maxPayable < 0 {
		maxPayable = 0
	}

	coPayment := maxPayable * policy.CoPaymentPercentage / 100
	insurerPayment := math.Max(0, maxPayable-coPayment-policy.Deductible)

	nonCovered := nonCoveredTotal(extractions, policy)
	covered := math.Max(0, billedTotal-nonCovered)

	decision := resolveDecision(validation, fraud)
	if decision != models.ActionAutoApprove {
		insurerPayment = 0
	}
	if decision == models.ActionReject {
		maxPayable = 0
		coPayment = 0
	}

	return &models.SettlementResult{
		ID:                uuid.New(),
		ClaimID:           claim.ID,
		BilledTotal:       billedTotal,
		CoveredAmount:     covered,
		NonCoveredAmount:  nonCovered,
		PolicyLimit:       policyLimit,
		RemainingCoverage: remaining,
		MaxPayable:        maxPayable,
		CoPayment:         coPayment,
		Deductible:        policy.Deductible,
		InsurerPayment:    insurerPayment,
		Decision:          decision,
	}
}

// resolveDecision applies first-match precedence: rejection conditions win
// over approval conditions, everything else goes to a human.
func resolveDecision(validation *models.ValidationResult, fraud *models.FraudResult) models.WorkflowAction {
	if fraud.FraudScore >= rejectFraudScore || validation.OverallScore < rejectValidationScore {
		return models.ActionReject
	}
	if fraud.AnomalyScore >= autoApproveAnomalyScore &&
		fraud.FraudScore < autoApproveFraudScore &&
		validation.OverallScore >= autoApproveValidationScore &&
		!validation.Degraded && !fraud.Degraded {
		return models.ActionAutoApprove
	}
	return models.ActionManualReview
}

// applyDecision writes the outward claim status and approved amount.
func (s *SettlementService) applyDecision(ctx context.Context, claim *models.Claim, result *models.SettlementResult) error {
	var status models.ClaimStatus
	var approved float64

	switch result.Decision {
	case models.ActionAutoApprove:
		status = models.ClaimApproved
		approved = result.InsurerPayment
	case models.ActionReject:
		status = models.ClaimRejected
		approved = 0
	default:
		status = models.ClaimManualReview
		approved = 0
	}

	if err := s.claimRepo.UpdateDecision(ctx, claim.ID, status, approved); err != nil {
		return fmt.Errorf("failed to apply settlement decision to claim %s: %w", claim.ID, err)
	}

	claim.Status = status
	claim.ApprovedAmount = &approved
	return nil
}

// buildRationale asks Gemini for a reviewer-facing summary and falls back to
// a deterministic template on any failure. Rationale generation never blocks
// the numeric decision.
func (s *SettlementService) buildRationale(ctx context.Context, result *models.SettlementResult, validation *models.ValidationResult, fraud *models.FraudResult) string {
	fallback := fallbackRationale(result, validation, fraud)

	if s.selector == nil || s.selector.GetClientCount() == 0 {
		return fallback
	}

	prompt := gemini.BuildRationalePrompt(string(result.Decision),
		result.BilledTotal, result.PolicyLimit, result.RemainingCoverage,
		result.MaxPayable, result.CoPayment, result.Deductible, result.InsurerPayment,
		validation.OverallScore, fraud.FraudScore, fraud.AnomalyScore)

	payload, err := gemini.SendTextWithRetry(ctx, prompt, s.selector)
	if err != nil {
		slog.Warn("Rationale generation failed, using deterministic summary", "claim_id", result.ClaimID, "error", err)
		return fallback
	}

	rationale, ok := payload["rationale"].(string)
	if !ok || strings.TrimSpace(rationale) == "" {
		return fallback
	}
	return strings.TrimSpace(rationale)
}

func fallbackRationale(result *models.SettlementResult, validation *models.ValidationResult, fraud *models.FraudResult) string {
	switch result.Decision {
	case models.ActionAutoApprove:
		return fmt.Sprintf(
			"Approved automatically. Billed %.2f against a remaining coverage of %.2f; payable after %.2f co-payment and %.2f deductible is %.2f. Validation score %.2f, fraud score %.2f, anomaly confidence %.2f.",
			result.BilledTotal, result.RemainingCoverage, result.CoPayment, result.Deductible,
			result.InsurerPayment, validation.OverallScore, fraud.FraudScore, fraud.AnomalyScore)
	case models.ActionReject:
		return fmt.Sprintf(
			"Rejected. Validation score %.2f, fraud score %.2f. %s",
			validation.OverallScore, fraud.FraudScore, rejectReason(validation, fraud))
	default:
		return fmt.Sprintf(
			"Referred for manual review. Validation score %.2f, fraud score %.2f, anomaly confidence %.2f; computed payable %.2f pending reviewer confirmation.",
			validation.OverallScore, fraud.FraudScore, fraud.AnomalyScore, result.MaxPayable)
	}
}

func rejectReason(validation *models.ValidationResult, fraud *models.FraudResult) string {
	if fraud.FraudScore >= rejectFraudScore {
		return "Fraud indicators exceed the rejection threshold."
	}
	return "Policy compliance fell below the minimum acceptable score."
}

// nonCoveredTotal sums billing lines attributable to excluded products. A
// billing line counts when its description matches a vitamin or cosmetic
// medicine or a policy exclusion term.
func nonCoveredTotal(extractions []models.ExtractionResult, policy *models.Policy) float64 {
	var excludedNames []string
	for _, e := range extractions {
		for _, m := range e.Entities.Medicines {
			if m.IsVitamin || m.IsCosmetic || !m.IsCovered {
				excludedNames = append(excludedNames, strings.ToLower(m.Name))
			}
		}
	}
	for _, term := range policy.Exclusions {
		excludedNames = append(excludedNames, strings.ToLower(term))
	}

	total := 0.0
	for _, e := range extractions {
		for _, item := range e.Entities.Billing {
			desc := strings.ToLower(item.Description)
			for _, name := range excludedNames {
				if name != "" && strings.Contains(desc, name) {
					total += item.Amount
					break
				}
			}
		}
	}
	return total
}
