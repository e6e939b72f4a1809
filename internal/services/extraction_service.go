package services

import (
	"bytes"
	"claims-service/internal/ai/gemini"
	"claims-service/internal/database/minio"
	"claims-service/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ExtractionOutcome is what the extraction capability returns for one
// document. Degraded marks the conservative fallback taken when the
// capability was unreachable or returned garbage.
type ExtractionOutcome struct {
	DocumentType models.DocumentType
	Confidence   float64
	Language     string
	Handwritten  bool
	Entities     models.ExtractedEntities
	Degraded     bool
}

// DocumentExtractor classifies a claim document and extracts its entities.
// Implementations must not propagate capability failures as errors; they
// return a low-confidence fallback outcome instead so the pipeline keeps
// moving deterministically.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc models.ClaimDocument, claimType models.ClaimType) (*ExtractionOutcome, error)
}

// fallbackConfidence is deliberately below the rejection threshold's upper
// band so a degraded extraction always lands in manual-review territory.
const fallbackConfidence = 40

// GeminiExtractor satisfies DocumentExtractor with a Gemini call over the
// document bytes stored in MinIO.
type GeminiExtractor struct {
	minioClient *minio.MinioClient
	selector    *gemini.GeminiClientSelector
}

func NewGeminiExtractor(minioClient *minio.MinioClient, selector *gemini.GeminiClientSelector) *GeminiExtractor {
	return &GeminiExtractor{
		minioClient: minioClient,
		selector:    selector,
	}
}

// extractionPayload mirrors the JSON schema the extraction prompt demands.
type extractionPayload struct {
	DocumentType string                   `json:"document_type"`
	Confidence   float64                  `json:"confidence"`
	Language     string                   `json:"language"`
	Handwritten  bool                     `json:"handwritten"`
	Entities     models.ExtractedEntities `json:"entities"`
}

func (e *GeminiExtractor) Extract(ctx context.Context, doc models.ClaimDocument, claimType models.ClaimType) (*ExtractionOutcome, error) {
	data, err := e.minioClient.GetFileBytes(ctx, minio.Storage.ClaimDocuments, doc.ObjectKey)
	if err != nil {
		slog.Error("Failed to download document for extraction",
			"document_id", doc.ID,
			"object_key", doc.ObjectKey,
			"error", err)
		return fallbackOutcome(), nil
	}

	mimeType := gemini.DetectMIMEType(data)

	// Corrupt PDFs would burn an AI call and come back as noise; check
	// readability up front.
	if mimeType == "application/pdf" {
		pageCount, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil || pageCount == 0 {
			slog.Warn("Document failed PDF readability check",
				"document_id", doc.ID,
				"pages", pageCount,
				"error", err)
			return fallbackOutcome(), nil
		}
	}

	prompt := gemini.BuildExtractionPrompt(string(claimType))

	aiResp, err := gemini.SendDocumentWithRetry(ctx, prompt, data, mimeType, e.selector)
	if err != nil {
		slog.Error("Document extraction request failed on all clients",
			"document_id", doc.ID,
			"error", err)
		return fallbackOutcome(), nil
	}

	respBytes, err := json.Marshal(aiResp)
	if err != nil {
		return fallbackOutcome(), nil
	}

	var payload extractionPayload
	if err := json.Unmarshal(respBytes, &payload); err != nil {
		slog.Error("Failed to unmarshal extraction response",
			"document_id", doc.ID,
			"error", err,
			"raw_response", string(respBytes))
		return fallbackOutcome(), nil
	}

	outcome := &ExtractionOutcome{
		DocumentType: normalizeDocumentType(payload.DocumentType),
		Confidence:   clampConfidence(payload.Confidence),
		Language:     payload.Language,
		Handwritten:  payload.Handwritten,
		Entities:     payload.Entities,
	}
	if outcome.Language == "" {
		outcome.Language = "und"
	}

	slog.Info("Document extracted",
		"document_id", doc.ID,
		"document_type", outcome.DocumentType,
		"confidence", outcome.Confidence,
		"language", outcome.Language,
		"handwritten", outcome.Handwritten)

	return outcome, nil
}

func fallbackOutcome() *ExtractionOutcome {
	return &ExtractionOutcome{
		DocumentType: models.DocOther,
		Confidence:   fallbackConfidence,
		Language:     "und",
		Degraded:     true,
	}
}

func normalizeDocumentType(raw string) models.DocumentType {
	switch models.DocumentType(strings.ToLower(strings.TrimSpace(raw))) {
	case models.DocPrescription:
		return models.DocPrescription
	case models.DocMedicalBill:
		return models.DocMedicalBill
	case models.DocLabReport:
		return models.DocLabReport
	case models.DocChannellingBill:
		return models.DocChannellingBill
	default:
		return models.DocOther
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// describeOutcome is used for audit notes.
func describeOutcome(o *ExtractionOutcome) string {
	return fmt.Sprintf("type=%s confidence=%.0f degraded=%t", o.DocumentType, o.Confidence, o.Degraded)
}
