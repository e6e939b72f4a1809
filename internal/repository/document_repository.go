package repository

import (
	"claims-service/internal/models"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetByID retrieves a document by its ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ClaimDocument, error) {
	var doc models.ClaimDocument
	query := `
		SELECT id, claim_id, object_key, file_type, created_at
		FROM claim_document
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &doc, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document by id: %w", err)
	}

	return &doc, nil
}

// GetByClaimID retrieves all documents uploaded against a claim
func (r *DocumentRepository) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]models.ClaimDocument, error) {
	var docs []models.ClaimDocument
	query := `
		SELECT id, claim_id, object_key, file_type, created_at
		FROM claim_document
		WHERE claim_id = $1
		ORDER BY created_at ASC
	`

	err := r.db.SelectContext(ctx, &docs, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents by claim id: %w", err)
	}

	return docs, nil
}
