package models

import (
	"time"

	"github.com/google/uuid"
)

type Claim struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	ClaimNumber      string           `json:"claim_number" db:"claim_number"`
	MemberID         string           `json:"member_id" db:"member_id"`
	PolicyID         uuid.UUID        `json:"policy_id" db:"policy_id"`
	ClaimType        ClaimType        `json:"claim_type" db:"claim_type"`
	ClaimedAmount    float64          `json:"claimed_amount" db:"claimed_amount"`
	ApprovedAmount   *float64         `json:"approved_amount,omitempty" db:"approved_amount"`
	Diagnosis        *string          `json:"diagnosis,omitempty" db:"diagnosis"`
	ProviderName     *string          `json:"provider_name,omitempty" db:"provider_name"`
	TreatmentDate    time.Time        `json:"treatment_date" db:"treatment_date"`
	SubmissionDate   time.Time        `json:"submission_date" db:"submission_date"`
	ProcessingStatus ProcessingStatus `json:"processing_status" db:"processing_status"`
	Status           ClaimStatus      `json:"status" db:"status"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// ClaimDocument is immutable once uploaded; the pipeline only reads it and
// writes derived extraction results against it.
type ClaimDocument struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ClaimID   uuid.UUID `json:"claim_id" db:"claim_id"`
	ObjectKey string    `json:"object_key" db:"object_key"`
	FileType  string    `json:"file_type" db:"file_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ClaimAuditEntry is an append-only audit trail record written on every stage
// transition and terminal decision.
type ClaimAuditEntry struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ClaimID        uuid.UUID `json:"claim_id" db:"claim_id"`
	Action         string    `json:"action" db:"action"`
	PreviousStatus *string   `json:"previous_status,omitempty" db:"previous_status"`
	NewStatus      *string   `json:"new_status,omitempty" db:"new_status"`
	Notes          *string   `json:"notes,omitempty" db:"notes"`
	Actor          string    `json:"actor" db:"actor"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
