package repository

import (
	"claims-service/internal/models"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PolicyRepository reads policy and member records. The pipeline never writes
// them.
type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetByID retrieves a policy by its ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	query := `
		SELECT id, policy_number, coverage_limits, co_payment_percentage, deductible,
		       warranty_period_days, exclusions, covered_ailments, created_at
		FROM policy
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &policy, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get policy by id: %w", err)
	}

	return &policy, nil
}

// GetMemberByID retrieves a member by its ID
func (r *PolicyRepository) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	query := `
		SELECT id, policy_id, full_name, nic, created_at
		FROM member
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &member, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member by id: %w", err)
	}

	return &member, nil
}
