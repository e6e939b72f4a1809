package repository

import (
	"claims-service/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ClaimRepository struct {
	db *sqlx.DB
}

func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

const claimColumns = `id, claim_number, member_id, policy_id, claim_type, claimed_amount,
	       approved_amount, diagnosis, provider_name, treatment_date, submission_date,
	       processing_status, status, created_at, updated_at`

// GetByID retrieves a claim by its ID
func (r *ClaimRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	var claim models.Claim
	query := `
		SELECT ` + claimColumns + `
		FROM claim
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &claim, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("claim %s not found", id)
		}
		return nil, fmt.Errorf("failed to get claim by id: %w", err)
	}

	return &claim, nil
}

// Exists checks if a claim exists by ID
func (r *ClaimRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM claim WHERE id = $1)`

	err := r.db.GetContext(ctx, &exists, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to check claim existence: %w", err)
	}

	return exists, nil
}

// UpdateProcessingStatus writes the claim's pipeline position. The orchestrator
// is the only caller; the write is a single UPDATE keyed by claim id.
func (r *ClaimRepository) UpdateProcessingStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error {
	query := `UPDATE claim SET processing_status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update processing status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim not found")
	}

	return nil
}

// UpdateDecision writes the outward status and approved amount in one
// statement so a decision is never half applied.
func (r *ClaimRepository) UpdateDecision(ctx context.Context, id uuid.UUID, status models.ClaimStatus, approvedAmount float64) error {
	query := `UPDATE claim SET status = $2, approved_amount = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, approvedAmount)
	if err != nil {
		return fmt.Errorf("failed to update claim decision: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim not found")
	}

	return nil
}

// GetPreviousApprovedTotal sums approved amounts of the policy's other claims
// in the same category.
func (r *ClaimRepository) GetPreviousApprovedTotal(ctx context.Context, policyID uuid.UUID, claimType models.ClaimType, excludeClaimID uuid.UUID) (float64, error) {
	var total float64
	query := `
		SELECT COALESCE(SUM(approved_amount), 0)
		FROM claim
		WHERE policy_id = $1
		  AND claim_type = $2
		  AND id != $3
		  AND status = 'approved'
	`

	err := r.db.GetContext(ctx, &total, query, policyID, claimType, excludeClaimID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum previous approved claims: %w", err)
	}

	return total, nil
}

// GetSamePolicyClaimsSince retrieves the policy's other claims submitted after
// the cutoff, for duplicate detection.
func (r *ClaimRepository) GetSamePolicyClaimsSince(ctx context.Context, policyID uuid.UUID, excludeClaimID uuid.UUID, since time.Time) ([]models.Claim, error) {
	var claims []models.Claim
	query := `
		SELECT ` + claimColumns + `
		FROM claim
		WHERE policy_id = $1
		  AND id != $2
		  AND submission_date >= $3
		ORDER BY submission_date DESC
	`

	err := r.db.SelectContext(ctx, &claims, query, policyID, excludeClaimID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get same-policy claims: %w", err)
	}

	return claims, nil
}

// CountProviderClaimsSince counts claims against the same provider submitted
// after the cutoff.
func (r *ClaimRepository) CountProviderClaimsSince(ctx context.Context, providerName string, excludeClaimID uuid.UUID, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM claim
		WHERE provider_name = $1
		  AND id != $2
		  AND submission_date >= $3
	`

	err := r.db.GetContext(ctx, &count, query, providerName, excludeClaimID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count provider claims: %w", err)
	}

	return count, nil
}

// GetBaselineAmounts samples recent claimed amounts for a category, newest
// first, as the statistical baseline population.
func (r *ClaimRepository) GetBaselineAmounts(ctx context.Context, claimType models.ClaimType, sampleSize int) ([]float64, error) {
	var amounts []float64
	query := `
		SELECT claimed_amount
		FROM claim
		WHERE claim_type = $1
		ORDER BY submission_date DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &amounts, query, claimType, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sample baseline amounts: %w", err)
	}

	return amounts, nil
}
