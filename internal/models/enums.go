package models

type ClaimType string

const (
	ClaimTypeOPD        ClaimType = "opd"
	ClaimTypeDental     ClaimType = "dental"
	ClaimTypeSpectacles ClaimType = "spectacles"
)

// ClaimStatus is the outward decision visible to the member
type ClaimStatus string

const (
	ClaimPending      ClaimStatus = "pending"
	ClaimApproved     ClaimStatus = "approved"
	ClaimRejected     ClaimStatus = "rejected"
	ClaimManualReview ClaimStatus = "manual_review"
)

// ProcessingStatus tracks the claim's position in the adjudication pipeline.
// It only ever advances: intake -> extraction -> validation -> fraud_check ->
// settlement -> completed, with reupload_required as the one gating detour.
type ProcessingStatus string

const (
	ProcessingIntake           ProcessingStatus = "intake"
	ProcessingExtraction       ProcessingStatus = "extraction"
	ProcessingReuploadRequired ProcessingStatus = "reupload_required"
	ProcessingValidation       ProcessingStatus = "validation"
	ProcessingFraudCheck       ProcessingStatus = "fraud_check"
	ProcessingSettlement       ProcessingStatus = "settlement"
	ProcessingCompleted        ProcessingStatus = "completed"
)

// stageOrder gives each pipeline stage a rank so advancement can be checked
// monotonically. reupload_required shares extraction's rank because the claim
// re-enters intake from there.
var stageOrder = map[ProcessingStatus]int{
	ProcessingIntake:           0,
	ProcessingExtraction:       1,
	ProcessingReuploadRequired: 1,
	ProcessingValidation:       2,
	ProcessingFraudCheck:       3,
	ProcessingSettlement:       4,
	ProcessingCompleted:        5,
}

// StageRank returns the pipeline rank of a processing status, -1 if unknown.
func StageRank(s ProcessingStatus) int {
	if r, ok := stageOrder[s]; ok {
		return r
	}
	return -1
}

type DocumentStatus string

const (
	DocumentUploading       DocumentStatus = "uploading"
	DocumentProcessing      DocumentStatus = "processing"
	DocumentAccepted        DocumentStatus = "accepted"
	DocumentReuploadNeeded  DocumentStatus = "reupload_required"
	DocumentRejected        DocumentStatus = "rejected"
)

type DocumentType string

const (
	DocPrescription    DocumentType = "prescription"
	DocMedicalBill     DocumentType = "medical_bill"
	DocLabReport       DocumentType = "lab_report"
	DocChannellingBill DocumentType = "channelling_bill"
	DocOther           DocumentType = "other"
)

type WorkflowAction string

const (
	ActionAutoApprove  WorkflowAction = "auto_approve"
	ActionManualReview WorkflowAction = "manual_review"
	ActionEscalate     WorkflowAction = "escalate"
	ActionReject       WorkflowAction = "reject"
)

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

type FraudFlag string

const (
	FraudClean      FraudFlag = "clean"
	FraudSuspicious FraudFlag = "suspicious"
	FraudFlagged    FraudFlag = "flagged"
)
