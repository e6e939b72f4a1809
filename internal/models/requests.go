package models

import "github.com/google/uuid"

// PipelineRunResponse summarizes a completed pipeline run for the caller.
type PipelineRunResponse struct {
	ClaimID            uuid.UUID      `json:"claim_id"`
	Decision           WorkflowAction `json:"decision"`
	Status             ClaimStatus    `json:"status"`
	InsurerPayment     float64        `json:"insurer_payment"`
	ValidationScore    float64        `json:"validation_score"`
	FraudScore         float64        `json:"fraud_score"`
	AnomalyScore       float64        `json:"anomaly_score"`
	DocumentsProcessed int            `json:"documents_processed"`
	DocumentsRejected  int            `json:"documents_rejected"`
}

// ReuploadRequiredResponse names the documents that still need reuploading.
// This is a normal pipeline outcome, not an error.
type ReuploadRequiredResponse struct {
	ClaimID          uuid.UUID   `json:"claim_id"`
	ProcessingStatus string      `json:"processing_status"`
	Documents        []uuid.UUID `json:"documents_requiring_reupload"`
}

// ClaimResultsResponse bundles the latest per-stage results for a claim.
type ClaimResultsResponse struct {
	Claim      *Claim            `json:"claim"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Fraud      *FraudResult      `json:"fraud,omitempty"`
	Settlement *SettlementResult `json:"settlement,omitempty"`
}
