package services

import (
	"claims-service/internal/models"
	"claims-service/internal/repository"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Intake confidence thresholds, fixed policy.
const (
	acceptConfidence    = 90
	rejectConfidence    = 50
	maxReuploadAttempts = 3
)

// resolveDocumentState applies the intake transition rule to one extraction
// attempt. attempts is the stored reupload counter before this attempt;
// newAttempts is what must be persisted.
//
// A medium-confidence document whose counter reaches maxReuploadAttempts is
// force-accepted with the manual verification flag set - the one path by
// which a medium-confidence document becomes terminal-accepted. Retries never
// loop indefinitely.
func resolveDocumentState(confidence float64, attempts int) (status models.DocumentStatus, newAttempts int, manualFlag bool) {
	if confidence >= acceptConfidence {
		return models.DocumentAccepted, attempts, false
	}
	if confidence < rejectConfidence {
		return models.DocumentRejected, attempts, false
	}

	newAttempts = attempts + 1
	if newAttempts >= maxReuploadAttempts {
		return models.DocumentAccepted, newAttempts, true
	}
	return models.DocumentReuploadNeeded, newAttempts, false
}

// IntakeSummary describes the claim-level outcome of the document intake
// stage.
type IntakeSummary struct {
	Total              int
	Accepted           int
	Rejected           int
	Pending            int
	PendingDocuments   []uuid.UUID
	MissingDocuments   []string
	ManualVerification bool
	Degraded           bool
}

// AllResolved reports whether every document reached a terminal state.
func (s *IntakeSummary) AllResolved() bool {
	return s.Pending == 0
}

// IntakeService runs the per-document acceptance state machine. Extraction
// calls are independent and run concurrently; each document's result row is
// upserted, never appended.
type IntakeService struct {
	docRepo        *repository.DocumentRepository
	extractionRepo *repository.ExtractionRepository
	extractor      DocumentExtractor
}

func NewIntakeService(
	docRepo *repository.DocumentRepository,
	extractionRepo *repository.ExtractionRepository,
	extractor DocumentExtractor,
) *IntakeService {
	return &IntakeService{
		docRepo:        docRepo,
		extractionRepo: extractionRepo,
		extractor:      extractor,
	}
}

// ProcessDocuments advances every non-terminal document of the claim through
// one extraction attempt and summarizes the batch state. Re-running for a
// claim whose documents are all terminal is a no-op.
func (s *IntakeService) ProcessDocuments(ctx context.Context, claim *models.Claim) (*IntakeSummary, error) {
	docs, err := s.docRepo.GetByClaimID(ctx, claim.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim documents: %w", err)
	}

	summary := &IntakeSummary{Total: len(docs)}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var processErrs []error

	for _, doc := range docs {
		existing, err := s.extractionRepo.GetByDocumentID(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load extraction result: %w", err)
		}

		// Terminal documents keep their state across re-runs.
		if existing != nil && (existing.Status == models.DocumentAccepted || existing.Status == models.DocumentRejected) {
			mu.Lock()
			s.tally(summary, existing, doc)
			mu.Unlock()
			continue
		}

		attempts := 0
		resultID := uuid.New()
		if existing != nil {
			attempts = existing.ReuploadAttempts
			resultID = existing.ID
		}

		wg.Add(1)
		go func(doc models.ClaimDocument, attempts int, resultID uuid.UUID) {
			defer wg.Done()

			outcome, err := s.extractor.Extract(ctx, doc, claim.ClaimType)
			if err != nil {
				mu.Lock()
				processErrs = append(processErrs, fmt.Errorf("extract document %s: %w", doc.ID, err))
				mu.Unlock()
				return
			}

			status, newAttempts, manualFlag := resolveDocumentState(outcome.Confidence, attempts)
			if outcome.Degraded {
				// Degraded fallbacks are never hard-rejected; a human decides.
				status = models.DocumentAccepted
				manualFlag = true
			}

			result := &models.ExtractionResult{
				ID:                     resultID,
				ClaimDocumentID:        doc.ID,
				DocumentType:           outcome.DocumentType,
				Confidence:             outcome.Confidence,
				Language:               outcome.Language,
				Handwritten:            outcome.Handwritten,
				Entities:               outcome.Entities,
				Status:                 status,
				ReuploadAttempts:       newAttempts,
				ManualVerificationFlag: manualFlag,
			}

			if err := s.extractionRepo.Upsert(ctx, result); err != nil {
				mu.Lock()
				processErrs = append(processErrs, fmt.Errorf("persist extraction for document %s: %w", doc.ID, err))
				mu.Unlock()
				return
			}

			slog.Info("Document intake resolved",
				"claim_id", claim.ID,
				"document_id", doc.ID,
				"status", status,
				"confidence", outcome.Confidence,
				"reupload_attempts", newAttempts,
				"manual_verification", manualFlag,
				"outcome", describeOutcome(outcome))

			mu.Lock()
			if outcome.Degraded {
				summary.Degraded = true
			}
			s.tally(summary, result, doc)
			mu.Unlock()
		}(doc, attempts, resultID)
	}

	wg.Wait()

	if len(processErrs) > 0 {
		return nil, fmt.Errorf("document intake failed: %v", processErrs)
	}

	return summary, nil
}

// tally folds one document's resolved state into the batch summary.
// Caller holds the mutex.
func (s *IntakeService) tally(summary *IntakeSummary, result *models.ExtractionResult, doc models.ClaimDocument) {
	switch result.Status {
	case models.DocumentAccepted:
		summary.Accepted++
		if result.ManualVerificationFlag {
			summary.ManualVerification = true
		}
	case models.DocumentRejected:
		summary.Rejected++
		// A rejected document does not block the claim, but validation must
		// know the deficiency.
		summary.MissingDocuments = append(summary.MissingDocuments,
			fmt.Sprintf("%s (%s)", result.DocumentType, doc.ID))
	default:
		summary.Pending++
		summary.PendingDocuments = append(summary.PendingDocuments, doc.ID)
	}
}
