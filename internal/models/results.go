package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ComplianceCheck is one item of the 15-point policy compliance checklist.
// Hard checks can veto auto-approval regardless of the overall score.
type ComplianceCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Hard   bool   `json:"hard"`
	Detail string `json:"detail,omitempty"`
}

type ComplianceChecklist []ComplianceCheck

func (c ComplianceChecklist) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]ComplianceCheck{})
	}
	return json.Marshal(c)
}

func (c *ComplianceChecklist) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("ComplianceChecklist: Scan failed, expected []byte but got %T", value)
	}
	return json.Unmarshal(b, c)
}

// ValidationResult is the latest validation run for a claim. Re-running
// validation replaces it (upsert on claim_id).
type ValidationResult struct {
	ID                     uuid.UUID           `json:"id" db:"id"`
	ClaimID                uuid.UUID           `json:"claim_id" db:"claim_id"`
	PrescriptionDiagnosis  float64             `json:"prescription_diagnosis_score" db:"prescription_diagnosis_score"`
	PrescriptionBill       float64             `json:"prescription_bill_score" db:"prescription_bill_score"`
	DiagnosisTreatment     float64             `json:"diagnosis_treatment_score" db:"diagnosis_treatment_score"`
	BillingPolicy          float64             `json:"billing_policy_score" db:"billing_policy_score"`
	OverallScore           float64             `json:"overall_score" db:"overall_score"`
	Checklist              ComplianceChecklist `json:"checklist" db:"checklist"`
	MissingDocuments       StringList          `json:"missing_documents" db:"missing_documents"`
	ExclusionHits          StringList          `json:"exclusion_hits" db:"exclusion_hits"`
	Mismatches             StringList          `json:"mismatches" db:"mismatches"`
	PreviousApprovedTotal  float64             `json:"previous_approved_total" db:"previous_approved_total"`
	RemainingCoverage      float64             `json:"remaining_coverage" db:"remaining_coverage"`
	MaxPayable             float64             `json:"max_payable" db:"max_payable"`
	EstimatedCoPayment     float64             `json:"estimated_co_payment" db:"estimated_co_payment"`
	Recommendation         WorkflowAction      `json:"recommendation" db:"recommendation"`
	Degraded               bool                `json:"degraded" db:"degraded"`
	CreatedAt              time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at" db:"updated_at"`
}

// FraudResult is the latest fraud assessment for a claim (upsert on claim_id).
// AnomalyScore is normalcy confidence: 1.0 is statistically unremarkable,
// 0.0 is a three-sigma-or-worse outlier. FraudScore is suspicion: higher is
// worse. Both are clamped to [0,1] before persisting.
type FraudResult struct {
	ID                     uuid.UUID      `json:"id" db:"id"`
	ClaimID                uuid.UUID      `json:"claim_id" db:"claim_id"`
	AnomalyScore           float64        `json:"anomaly_score" db:"anomaly_score"`
	FraudScore             float64        `json:"fraud_score" db:"fraud_score"`
	DuplicateMatch         bool           `json:"duplicate_match" db:"duplicate_match"`
	DuplicateSimilarity    float64        `json:"duplicate_similarity" db:"duplicate_similarity"`
	AmountDeviationPercent float64        `json:"amount_deviation_percent" db:"amount_deviation_percent"`
	ProviderClaimFrequency int            `json:"provider_claim_frequency" db:"provider_claim_frequency"`
	RiskLevel              RiskLevel      `json:"risk_level" db:"risk_level"`
	Flag                   FraudFlag      `json:"flag" db:"flag"`
	Alerts                 StringList     `json:"alerts" db:"alerts"`
	Recommendation         WorkflowAction `json:"recommendation" db:"recommendation"`
	Degraded               bool           `json:"degraded" db:"degraded"`
	CreatedAt              time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at" db:"updated_at"`
}

// SettlementResult is the latest settlement computation for a claim
// (upsert on claim_id).
type SettlementResult struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	ClaimID           uuid.UUID      `json:"claim_id" db:"claim_id"`
	BilledTotal       float64        `json:"billed_total" db:"billed_total"`
	CoveredAmount     float64        `json:"covered_amount" db:"covered_amount"`
	NonCoveredAmount  float64        `json:"non_covered_amount" db:"non_covered_amount"`
	PolicyLimit       float64        `json:"policy_limit" db:"policy_limit"`
	RemainingCoverage float64        `json:"remaining_coverage" db:"remaining_coverage"`
	MaxPayable        float64        `json:"max_payable" db:"max_payable"`
	CoPayment         float64        `json:"co_payment" db:"co_payment"`
	Deductible        float64        `json:"deductible" db:"deductible"`
	InsurerPayment    float64        `json:"insurer_payment" db:"insurer_payment"`
	Decision          WorkflowAction `json:"decision" db:"decision"`
	Rationale         string         `json:"rationale" db:"rationale"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}
