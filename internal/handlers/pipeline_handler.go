package handlers

import (
	"claims-service/internal/models"
	"claims-service/internal/repository"
	"claims-service/internal/services"
	"claims-service/internal/utils"
	"claims-service/internal/worker"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const asyncRunTimeout = 10 * time.Minute

// PipelineHandler exposes the adjudication pipeline over HTTP.
type PipelineHandler struct {
	pipelineService *services.PipelineService
	claimRepo       *repository.ClaimRepository
	auditRepo       *repository.AuditRepository
	pool            *worker.WorkingPool
}

func NewPipelineHandler(pipelineService *services.PipelineService, claimRepo *repository.ClaimRepository, auditRepo *repository.AuditRepository, pool *worker.WorkingPool) *PipelineHandler {
	return &PipelineHandler{
		pipelineService: pipelineService,
		claimRepo:       claimRepo,
		auditRepo:       auditRepo,
		pool:            pool,
	}
}

func (h *PipelineHandler) Register(app *fiber.App) {
	protectedGr := app.Group("claims/protected/api/v1")

	pipelineGroup := protectedGr.Group("/pipeline")
	pipelineGroup.Post("/run/:id", h.RunPipeline)            // POST /pipeline/run/:id
	pipelineGroup.Post("/run-async/:id", h.RunPipelineAsync) // POST /pipeline/run-async/:id
	pipelineGroup.Get("/results/:id", h.GetResults)          // GET /pipeline/results/:id

	claimGroup := protectedGr.Group("/claims")
	claimGroup.Get("/detail/:id", h.GetClaim)     // GET /claims/detail/:id
	claimGroup.Get("/audit/:id", h.GetClaimAudit) // GET /claims/audit/:id
}

// authError carries the HTTP status and response body for a failed access
// check so each handler can return it uniformly.
type authError struct {
	status  int
	code    string
	message string
}

// RunPipeline triggers a synchronous adjudication run for a claim.
func (h *PipelineHandler) RunPipeline(c fiber.Ctx) error {
	claim, authErr := h.authorizeClaim(c)
	if authErr != nil {
		return c.Status(authErr.status).JSON(utils.CreateErrorResponse(authErr.code, authErr.message))
	}

	outcome, err := h.pipelineService.Run(c.Context(), claim.ID)
	if err != nil {
		if errors.Is(err, services.ErrPipelineBusy) {
			return c.Status(http.StatusConflict).JSON(
				utils.CreateErrorResponse("PIPELINE_BUSY", "A pipeline run for this claim is already in progress"))
		}
		correlationID := extractCorrelationID(err)
		slog.Error("Pipeline run failed", "claim_id", claim.ID, "correlation_id", correlationID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateFatalErrorResponse("PIPELINE_FAILED", "Claim processing failed", correlationID))
	}

	if outcome.Reupload != nil {
		// Not an error: the member must replace low-confidence documents.
		return c.Status(http.StatusOK).JSON(map[string]any{
			"success": false,
			"code":    "REUPLOAD_REQUIRED",
			"message": "Some documents need to be reuploaded before processing can continue",
			"data":    outcome.Reupload,
		})
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(outcome.Summary))
}

// RunPipelineAsync submits the run to the worker pool and returns 202.
func (h *PipelineHandler) RunPipelineAsync(c fiber.Ctx) error {
	claim, authErr := h.authorizeClaim(c)
	if authErr != nil {
		return c.Status(authErr.status).JSON(utils.CreateErrorResponse(authErr.code, authErr.message))
	}

	claimID := claim.ID
	submitted := h.pool.TrySubmit(func(ctx context.Context) error {
		jobCtx, cancel := context.WithTimeout(ctx, asyncRunTimeout)
		defer cancel()
		_, err := h.pipelineService.Run(jobCtx, claimID)
		return err
	})
	if !submitted {
		return c.Status(http.StatusServiceUnavailable).JSON(
			utils.CreateErrorResponse("QUEUE_FULL", "Processing queue is full, try again later"))
	}

	return c.Status(http.StatusAccepted).JSON(utils.CreateSuccessResponse(map[string]any{
		"claim_id": claimID,
		"status":   "queued",
	}))
}

// GetResults returns the latest per-stage results for a claim.
func (h *PipelineHandler) GetResults(c fiber.Ctx) error {
	claim, authErr := h.authorizeClaim(c)
	if authErr != nil {
		return c.Status(authErr.status).JSON(utils.CreateErrorResponse(authErr.code, authErr.message))
	}

	results, err := h.pipelineService.Results(c.Context(), claim.ID)
	if err != nil {
		slog.Error("Failed to load claim results", "claim_id", claim.ID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("RETRIEVAL_FAILED", "Failed to retrieve claim results"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(results))
}

// GetClaim returns the claim row itself.
func (h *PipelineHandler) GetClaim(c fiber.Ctx) error {
	claim, authErr := h.authorizeClaim(c)
	if authErr != nil {
		return c.Status(authErr.status).JSON(utils.CreateErrorResponse(authErr.code, authErr.message))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(claim))
}

// GetClaimAudit returns the append-only audit trail for a claim.
func (h *PipelineHandler) GetClaimAudit(c fiber.Ctx) error {
	claim, authErr := h.authorizeClaim(c)
	if authErr != nil {
		return c.Status(authErr.status).JSON(utils.CreateErrorResponse(authErr.code, authErr.message))
	}

	entries, err := h.auditRepo.GetByClaimID(c.Context(), claim.ID)
	if err != nil {
		slog.Error("Failed to load audit trail", "claim_id", claim.ID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("RETRIEVAL_FAILED", "Failed to retrieve audit trail"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]any{
		"claim_id": claim.ID,
		"entries":  entries,
		"count":    len(entries),
	}))
}

// authorizeClaim loads the claim named in the path and enforces the access
// precondition: X-User-ID is required, and non-admin callers may only act on
// claims belonging to their own member identity. Checked before any pipeline
// stage executes.
func (h *PipelineHandler) authorizeClaim(c fiber.Ctx) (*models.Claim, *authError) {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return nil, &authError{http.StatusUnauthorized, "UNAUTHORIZED", "User ID is required"}
	}

	claimID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, &authError{http.StatusBadRequest, "INVALID_UUID", "Invalid claim ID format"}
	}

	claim, err := h.claimRepo.GetByID(c.Context(), claimID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, &authError{http.StatusNotFound, "NOT_FOUND", "Claim not found"}
		}
		slog.Error("Failed to load claim", "claim_id", claimID, "error", err)
		return nil, &authError{http.StatusInternalServerError, "RETRIEVAL_FAILED", "Failed to retrieve claim"}
	}

	role := c.Get("X-User-Role")
	if role != "admin" && claim.MemberID != userID {
		return nil, &authError{http.StatusForbidden, "FORBIDDEN", "You do not have permission to act on this claim"}
	}

	return claim, nil
}

func extractCorrelationID(err error) string {
	msg := err.Error()
	start := strings.LastIndex(msg, "[")
	end := strings.LastIndex(msg, "]")
	if start >= 0 && end > start {
		return msg[start+1 : end]
	}
	return ""
}
