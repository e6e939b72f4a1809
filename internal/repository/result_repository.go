package repository

import (
	"claims-service/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ResultRepository persists the per-stage claim results. Each result table
// has a UNIQUE constraint on claim_id; writes replace on conflict so at most
// one live result exists per claim per stage.
type ResultRepository struct {
	db *sqlx.DB
}

func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// UpsertValidation replaces the claim's validation result.
func (r *ResultRepository) UpsertValidation(ctx context.Context, result *models.ValidationResult) error {
	query := `
		INSERT INTO validation_result (
			id, claim_id, prescription_diagnosis_score, prescription_bill_score,
			diagnosis_treatment_score, billing_policy_score, overall_score, checklist,
			missing_documents, exclusion_hits, mismatches, previous_approved_total,
			remaining_coverage, max_payable, estimated_co_payment, recommendation,
			degraded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		ON CONFLICT (claim_id) DO UPDATE SET
			prescription_diagnosis_score = EXCLUDED.prescription_diagnosis_score,
			prescription_bill_score = EXCLUDED.prescription_bill_score,
			diagnosis_treatment_score = EXCLUDED.diagnosis_treatment_score,
			billing_policy_score = EXCLUDED.billing_policy_score,
			overall_score = EXCLUDED.overall_score,
			checklist = EXCLUDED.checklist,
			missing_documents = EXCLUDED.missing_documents,
			exclusion_hits = EXCLUDED.exclusion_hits,
			mismatches = EXCLUDED.mismatches,
			previous_approved_total = EXCLUDED.previous_approved_total,
			remaining_coverage = EXCLUDED.remaining_coverage,
			max_payable = EXCLUDED.max_payable,
			estimated_co_payment = EXCLUDED.estimated_co_payment,
			recommendation = EXCLUDED.recommendation,
			degraded = EXCLUDED.degraded,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.ClaimID, result.PrescriptionDiagnosis, result.PrescriptionBill,
		result.DiagnosisTreatment, result.BillingPolicy, result.OverallScore, result.Checklist,
		result.MissingDocuments, result.ExclusionHits, result.Mismatches, result.PreviousApprovedTotal,
		result.RemainingCoverage, result.MaxPayable, result.EstimatedCoPayment, result.Recommendation,
		result.Degraded)
	if err != nil {
		return fmt.Errorf("failed to upsert validation result: %w", err)
	}

	return nil
}

// GetValidationByClaimID retrieves the live validation result, nil if absent.
func (r *ResultRepository) GetValidationByClaimID(ctx context.Context, claimID uuid.UUID) (*models.ValidationResult, error) {
	var result models.ValidationResult
	query := `
		SELECT id, claim_id, prescription_diagnosis_score, prescription_bill_score,
		       diagnosis_treatment_score, billing_policy_score, overall_score, checklist,
		       missing_documents, exclusion_hits, mismatches, previous_approved_total,
		       remaining_coverage, max_payable, estimated_co_payment, recommendation,
		       degraded, created_at, updated_at
		FROM validation_result
		WHERE claim_id = $1
	`

	err := r.db.GetContext(ctx, &result, query, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get validation result: %w", err)
	}

	return &result, nil
}

// UpsertFraud replaces the claim's fraud result.
func (r *ResultRepository) UpsertFraud(ctx context.Context, result *models.FraudResult) error {
	query := `
		INSERT INTO fraud_result (
			id, claim_id, anomaly_score, fraud_score, duplicate_match, duplicate_similarity,
			amount_deviation_percent, provider_claim_frequency, risk_level, flag, alerts,
			recommendation, degraded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (claim_id) DO UPDATE SET
			anomaly_score = EXCLUDED.anomaly_score,
			fraud_score = EXCLUDED.fraud_score,
			duplicate_match = EXCLUDED.duplicate_match,
			duplicate_similarity = EXCLUDED.duplicate_similarity,
			amount_deviation_percent = EXCLUDED.amount_deviation_percent,
			provider_claim_frequency = EXCLUDED.provider_claim_frequency,
			risk_level = EXCLUDED.risk_level,
			flag = EXCLUDED.flag,
			alerts = EXCLUDED.alerts,
			recommendation = EXCLUDED.recommendation,
			degraded = EXCLUDED.degraded,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.ClaimID, result.AnomalyScore, result.FraudScore, result.DuplicateMatch,
		result.DuplicateSimilarity, result.AmountDeviationPercent, result.ProviderClaimFrequency,
		result.RiskLevel, result.Flag, result.Alerts, result.Recommendation, result.Degraded)
	if err != nil {
		return fmt.Errorf("failed to upsert fraud result: %w", err)
	}

	return nil
}

// GetFraudByClaimID retrieves the live fraud result, nil if absent.
func (r *ResultRepository) GetFraudByClaimID(ctx context.Context, claimID uuid.UUID) (*models.FraudResult, error) {
	var result models.FraudResult
	query := `
		SELECT id, claim_id, anomaly_score, fraud_score, duplicate_match, duplicate_similarity,
		       amount_deviation_percent, provider_claim_frequency, risk_level, flag, alerts,
		       recommendation, degraded, created_at, updated_at
		FROM fraud_result
		WHERE claim_id = $1
	`

	err := r.db.GetContext(ctx, &result, query, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get fraud result: %w", err)
	}

	return &result, nil
}

// UpsertSettlement replaces the claim's settlement result.
func (r *ResultRepository) UpsertSettlement(ctx context.Context, result *models.SettlementResult) error {
	query := `
		INSERT INTO settlement_result (
			id, claim_id, billed_total, covered_amount, non_covered_amount, policy_limit,
			remaining_coverage, max_payable, co_payment, deductible, insurer_payment,
			decision, rationale, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (claim_id) DO UPDATE SET
			billed_total = EXCLUDED.billed_total,
			covered_amount = EXCLUDED.covered_amount,
			non_covered_amount = EXCLUDED.non_covered_amount,
			policy_limit = EXCLUDED.policy_limit,
			remaining_coverage = EXCLUDED.remaining_coverage,
			max_payable = EXCLUDED.max_payable,
			co_payment = EXCLUDED.co_payment,
			deductible = EXCLUDED.deductible,
			insurer_payment = EXCLUDED.insurer_payment,
			decision = EXCLUDED.decision,
			rationale = EXCLUDED.rationale,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.ClaimID, result.BilledTotal, result.CoveredAmount, result.NonCoveredAmount,
		result.PolicyLimit, result.RemainingCoverage, result.MaxPayable, result.CoPayment,
		result.Deductible, result.InsurerPayment, result.Decision, result.Rationale)
	if err != nil {
		return fmt.Errorf("failed to upsert settlement result: %w", err)
	}

	return nil
}

// GetSettlementByClaimID retrieves the live settlement result, nil if absent.
func (r *ResultRepository) GetSettlementByClaimID(ctx context.Context, claimID uuid.UUID) (*models.SettlementResult, error) {
	var result models.SettlementResult
	query := `
		SELECT id, claim_id, billed_total, covered_amount, non_covered_amount, policy_limit,
		       remaining_coverage, max_payable, co_payment, deductible, insurer_payment,
		       decision, rationale, created_at, updated_at
		FROM settlement_result
		WHERE claim_id = $1
	`

	err := r.db.GetContext(ctx, &result, query, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement result: %w", err)
	}

	return &result, nil
}
