package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExtractedEntities is the structured entity tree read off a claim document.
// Stored as JSONB against the extraction result.
type ExtractedEntities struct {
	Patient   PatientEntity  `json:"patient"`
	Doctor    DoctorEntity   `json:"doctor"`
	Clinic    ClinicEntity   `json:"clinic"`
	Medicines []MedicineItem `json:"medicines,omitempty"`
	Billing   []BillingItem  `json:"billing,omitempty"`
	BillDate  *string        `json:"bill_date,omitempty"`
	BillTotal *float64       `json:"bill_total,omitempty"`
}

type PatientEntity struct {
	Name string `json:"name"`
	Age  *int   `json:"age,omitempty"`
}

type DoctorEntity struct {
	Name               string  `json:"name"`
	RegistrationNumber *string `json:"registration_number,omitempty"`
	Specialty          *string `json:"specialty,omitempty"`
}

type ClinicEntity struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
}

type MedicineItem struct {
	Name        string  `json:"name"`
	GenericName *string `json:"generic_name,omitempty"`
	Quantity    float64 `json:"quantity"`
	IsVitamin   bool    `json:"is_vitamin"`
	IsCosmetic  bool    `json:"is_cosmetic"`
	IsCovered   bool    `json:"is_covered"`
}

type BillingItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"` // consultation | medicine | lab | other
}

func (e ExtractedEntities) Value() (driver.Value, error) {
	return json.Marshal(e)
}

func (e *ExtractedEntities) Scan(value any) error {
	if value == nil {
		*e = ExtractedEntities{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("ExtractedEntities: Scan failed, expected []byte but got %T", value)
	}
	return json.Unmarshal(b, e)
}

// ExtractionResult holds the latest extraction attempt for a document.
// At most one live row exists per document; retries update it in place.
type ExtractionResult struct {
	ID                     uuid.UUID         `json:"id" db:"id"`
	ClaimDocumentID        uuid.UUID         `json:"claim_document_id" db:"claim_document_id"`
	DocumentType           DocumentType      `json:"document_type" db:"document_type"`
	Confidence             float64           `json:"confidence" db:"confidence"`
	Language               string            `json:"language" db:"language"`
	Handwritten            bool              `json:"handwritten" db:"handwritten"`
	Entities               ExtractedEntities `json:"entities" db:"entities"`
	Status                 DocumentStatus    `json:"status" db:"status"`
	ReuploadAttempts       int               `json:"reupload_attempts" db:"reupload_attempts"`
	ManualVerificationFlag bool              `json:"manual_verification_required" db:"manual_verification_required"`
	CreatedAt              time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at" db:"updated_at"`
}
