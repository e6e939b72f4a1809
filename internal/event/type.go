package event

import "time"

// ClaimDecisionEvent is consumed by the notification service to inform the
// member of the adjudication outcome.
type ClaimDecisionEvent struct {
	ClaimID        string    `json:"claim_id"`
	Decision       string    `json:"decision"`
	ApprovedAmount float64   `json:"approved_amount"`
	DecidedAt      time.Time `json:"decided_at"`
}

const ClaimDecisionQueue string = "claim_decision_events"
