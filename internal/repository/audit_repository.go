package repository

import (
	"claims-service/internal/models"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditRepository appends to the claim audit trail. Entries are never updated
// or deleted.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.ClaimAuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO claim_audit_log (id, claim_id, action, previous_status, new_status, notes, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.ClaimID, entry.Action, entry.PreviousStatus, entry.NewStatus,
		entry.Notes, entry.Actor)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// GetByClaimID retrieves the claim's audit trail, oldest first.
func (r *AuditRepository) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]models.ClaimAuditEntry, error) {
	var entries []models.ClaimAuditEntry
	query := `
		SELECT id, claim_id, action, previous_status, new_status, notes, actor, created_at
		FROM claim_audit_log
		WHERE claim_id = $1
		ORDER BY created_at ASC
	`

	err := r.db.SelectContext(ctx, &entries, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}

	return entries, nil
}
