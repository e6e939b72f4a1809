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

type ExtractionRepository struct {
	db *sqlx.DB
}

func NewExtractionRepository(db *sqlx.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

// Upsert writes the extraction result for a document, replacing any earlier
// attempt. At most one live row exists per document.
func (r *ExtractionRepository) Upsert(ctx context.Context, result *models.ExtractionResult) error {
	query := `
		INSERT INTO extraction_result (
			id, claim_document_id, document_type, confidence, language, handwritten,
			entities, status, reupload_attempts, manual_verification_required,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (claim_document_id) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			confidence = EXCLUDED.confidence,
			language = EXCLUDED.language,
			handwritten = EXCLUDED.handwritten,
			entities = EXCLUDED.entities,
			status = EXCLUDED.status,
			reupload_attempts = EXCLUDED.reupload_attempts,
			manual_verification_required = EXCLUDED.manual_verification_required,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.ClaimDocumentID, result.DocumentType, result.Confidence,
		result.Language, result.Handwritten, result.Entities, result.Status,
		result.ReuploadAttempts, result.ManualVerificationFlag)
	if err != nil {
		return fmt.Errorf("failed to upsert extraction result: %w", err)
	}

	return nil
}

// GetByDocumentID retrieves the live extraction result for a document, nil if
// the document has not been extracted yet.
func (r *ExtractionRepository) GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*models.ExtractionResult, error) {
	var result models.ExtractionResult
	query := `
		SELECT id, claim_document_id, document_type, confidence, language, handwritten,
		       entities, status, reupload_attempts, manual_verification_required,
		       created_at, updated_at
		FROM extraction_result
		WHERE claim_document_id = $1
	`

	err := r.db.GetContext(ctx, &result, query, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extraction result: %w", err)
	}

	return &result, nil
}

// GetByClaimID retrieves all live extraction results for a claim's documents.
func (r *ExtractionRepository) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]models.ExtractionResult, error) {
	var results []models.ExtractionResult
	query := `
		SELECT er.id, er.claim_document_id, er.document_type, er.confidence, er.language,
		       er.handwritten, er.entities, er.status, er.reupload_attempts,
		       er.manual_verification_required, er.created_at, er.updated_at
		FROM extraction_result er
		JOIN claim_document cd ON cd.id = er.claim_document_id
		WHERE cd.claim_id = $1
		ORDER BY er.created_at ASC
	`

	err := r.db.SelectContext(ctx, &results, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction results by claim id: %w", err)
	}

	return results, nil
}

// GetAcceptedByClaimID retrieves only the accepted extraction results for a
// claim. Rejected documents are excluded from validation input.
func (r *ExtractionRepository) GetAcceptedByClaimID(ctx context.Context, claimID uuid.UUID) ([]models.ExtractionResult, error) {
	var results []models.ExtractionResult
	query := `
		SELECT er.id, er.claim_document_id, er.document_type, er.confidence, er.language,
		       er.handwritten, er.entities, er.status, er.reupload_attempts,
		       er.manual_verification_required, er.created_at, er.updated_at
		FROM extraction_result er
		JOIN claim_document cd ON cd.id = er.claim_document_id
		WHERE cd.claim_id = $1
		  AND er.status = 'accepted'
		ORDER BY er.created_at ASC
	`

	err := r.db.SelectContext(ctx, &results, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get accepted extraction results: %w", err)
	}

	return results, nil
}
