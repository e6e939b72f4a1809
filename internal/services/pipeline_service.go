package services

import (
	redisdb "claims-service/internal/database/redis"
	"claims-service/internal/models"
	"claims-service/internal/repository"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const pipelineLockTTL = 5 * time.Minute

// ErrPipelineBusy is returned when another run already holds the claim's lock.
var ErrPipelineBusy = errors.New("a pipeline run for this claim is already in progress")

// DecisionPublisher receives terminal claim decisions for downstream
// notification. Publishing is best-effort; the pipeline never fails on it.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, claimID uuid.UUID, decision models.WorkflowAction, amount float64) error
}

// PipelineOutcome is the result of one pipeline run. Exactly one of Summary
// and Reupload is set: Reupload means the intake gate stopped the run
// because documents still need replacing, which is a normal outcome.
type PipelineOutcome struct {
	Summary  *models.PipelineRunResponse
	Reupload *models.ReuploadRequiredResponse
}

// PipelineService sequences intake, validation, fraud check, and settlement
// for one claim. It is the only writer of the claim's processing_status; a
// per-claim Redis lock keeps concurrent triggers from interleaving. Runs are
// stateless and re-runnable: each stage replaces its previous result.
type PipelineService struct {
	claimRepo      *repository.ClaimRepository
	policyRepo     *repository.PolicyRepository
	extractionRepo *repository.ExtractionRepository
	resultRepo     *repository.ResultRepository
	auditRepo      *repository.AuditRepository
	redis          *redisdb.Client
	intake         *IntakeService
	validation     *ValidationService
	fraud          *FraudService
	settlement     *SettlementService
	publisher      DecisionPublisher
}

func NewPipelineService(
	claimRepo *repository.ClaimRepository,
	policyRepo *repository.PolicyRepository,
	extractionRepo *repository.ExtractionRepository,
	resultRepo *repository.ResultRepository,
	auditRepo *repository.AuditRepository,
	redis *redisdb.Client,
	intake *IntakeService,
	validation *ValidationService,
	fraud *FraudService,
	settlement *SettlementService,
	publisher DecisionPublisher,
) *PipelineService {
	return &PipelineService{
		claimRepo:      claimRepo,
		policyRepo:     policyRepo,
		extractionRepo: extractionRepo,
		resultRepo:     resultRepo,
		auditRepo:      auditRepo,
		redis:          redis,
		intake:         intake,
		validation:     validation,
		fraud:          fraud,
		settlement:     settlement,
		publisher:      publisher,
	}
}

// Run executes the full pipeline for a claim. The correlation id ties log
// lines and error responses from one run together.
func (s *PipelineService) Run(ctx context.Context, claimID uuid.UUID) (*PipelineOutcome, error) {
	correlationID := uuid.New().String()
	logger := slog.With("claim_id", claimID, "correlation_id", correlationID)

	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("claim %s not found [%s]: %w", claimID, correlationID, err)
	}

	lockKey := fmt.Sprintf("pipeline:lock:%s", claimID)
	acquired, err := s.redis.AcquireLock(ctx, lockKey, pipelineLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pipeline lock [%s]: %w", correlationID, err)
	}
	if !acquired {
		return nil, ErrPipelineBusy
	}
	defer func() {
		if err := s.redis.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
			logger.Warn("Failed to release pipeline lock", "error", err)
		}
	}()

	logger.Info("Pipeline run started", "claim_type", claim.ClaimType, "claimed_amount", claim.ClaimedAmount)

	// Stage 1: document intake and extraction.
	s.advance(ctx, claim, models.ProcessingExtraction, logger)

	intakeSummary, err := s.intake.ProcessDocuments(ctx, claim)
	if err != nil {
		return nil, fmt.Errorf("document intake failed [%s]: %w", correlationID, err)
	}

	if !intakeSummary.AllResolved() {
		// The intake gate is the only legitimate halt: the member must
		// replace low-confidence documents before adjudication continues.
		s.advance(ctx, claim, models.ProcessingReuploadRequired, logger)
		logger.Info("Pipeline halted for document reupload", "pending_documents", len(intakeSummary.PendingDocuments))
		return &PipelineOutcome{
			Reupload: &models.ReuploadRequiredResponse{
				ClaimID:          claim.ID,
				ProcessingStatus: string(models.ProcessingReuploadRequired),
				Documents:        intakeSummary.PendingDocuments,
			},
		}, nil
	}

	extractions, err := s.extractionRepo.GetAcceptedByClaimID(ctx, claim.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accepted extractions [%s]: %w", correlationID, err)
	}

	// Stage 2: policy compliance validation.
	s.advance(ctx, claim, models.ProcessingValidation, logger)

	validationResult, err := s.validation.Run(ctx, claim, extractions, intakeSummary.MissingDocuments, intakeSummary.Degraded)
	if err != nil {
		return nil, fmt.Errorf("validation failed [%s]: %w", correlationID, err)
	}

	// Stage 3: fraud assessment. Degrades internally, never halts the run.
	s.advance(ctx, claim, models.ProcessingFraudCheck, logger)

	fraudResult, err := s.fraud.Run(ctx, claim, extractions, validationResult)
	if err != nil {
		return nil, fmt.Errorf("fraud check failed [%s]: %w", correlationID, err)
	}

	// Stage 4: settlement and decision.
	s.advance(ctx, claim, models.ProcessingSettlement, logger)

	policy, err := s.policyRepo.GetByID(ctx, claim.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("policy required for settlement [%s]: %w", correlationID, err)
	}

	settlementResult, err := s.settlement.Run(ctx, claim, policy, extractions, validationResult, fraudResult)
	if err != nil {
		return nil, fmt.Errorf("settlement failed [%s]: %w", correlationID, err)
	}

	s.advance(ctx, claim, models.ProcessingCompleted, logger)

	s.publishDecision(ctx, claim, settlementResult, logger)

	logger.Info("Pipeline run completed",
		"decision", settlementResult.Decision,
		"insurer_payment", settlementResult.InsurerPayment,
		"validation_score", validationResult.OverallScore,
		"fraud_score", fraudResult.FraudScore)

	return &PipelineOutcome{
		Summary: &models.PipelineRunResponse{
			ClaimID:            claim.ID,
			Decision:           settlementResult.Decision,
			Status:             claim.Status,
			InsurerPayment:     settlementResult.InsurerPayment,
			ValidationScore:    validationResult.OverallScore,
			FraudScore:         fraudResult.FraudScore,
			AnomalyScore:       fraudResult.AnomalyScore,
			DocumentsProcessed: intakeSummary.Total,
			DocumentsRejected:  intakeSummary.Rejected,
		},
	}, nil
}

// advance moves the claim's processing status forward. Transitions are
// monotonic: a re-run that is already past the target stage keeps its
// current status.
func (s *PipelineService) advance(ctx context.Context, claim *models.Claim, target models.ProcessingStatus, logger *slog.Logger) {
	current := claim.ProcessingStatus

	// reupload_required shares extraction's rank; entering the gate from
	// extraction is the one sideways move allowed.
	sideways := target == models.ProcessingReuploadRequired && current == models.ProcessingExtraction
	if !sideways && models.StageRank(target) <= models.StageRank(current) {
		return
	}

	if err := s.claimRepo.UpdateProcessingStatus(ctx, claim.ID, target); err != nil {
		logger.Error("Failed to update processing status", "target", target, "error", err)
		return
	}

	prev := string(current)
	next := string(target)
	entry := &models.ClaimAuditEntry{
		ClaimID:        claim.ID,
		Action:         "processing_status_changed",
		PreviousStatus: &prev,
		NewStatus:      &next,
		Actor:          "pipeline",
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		logger.Warn("Failed to append audit entry", "error", err)
	}

	claim.ProcessingStatus = target
}

// publishDecision emits the terminal decision event, best-effort.
func (s *PipelineService) publishDecision(ctx context.Context, claim *models.Claim, result *models.SettlementResult, logger *slog.Logger) {
	if s.publisher == nil {
		return
	}
	amount := 0.0
	if claim.ApprovedAmount != nil {
		amount = *claim.ApprovedAmount
	}
	if err := s.publisher.PublishDecision(ctx, claim.ID, result.Decision, amount); err != nil {
		logger.Warn("Failed to publish decision event", "decision", result.Decision, "error", err)
	}
}

// Results returns the claim and its latest per-stage results.
func (s *PipelineService) Results(ctx context.Context, claimID uuid.UUID) (*models.ClaimResultsResponse, error) {
	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("claim %s not found: %w", claimID, err)
	}

	validation, err := s.resultRepo.GetValidationByClaimID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load validation result: %w", err)
	}
	fraud, err := s.resultRepo.GetFraudByClaimID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fraud result: %w", err)
	}
	settlement, err := s.resultRepo.GetSettlementByClaimID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement result: %w", err)
	}

	return &models.ClaimResultsResponse{
		Claim:      claim,
		Validation: validation,
		Fraud:      fraud,
		Settlement: settlement,
	}, nil
}
