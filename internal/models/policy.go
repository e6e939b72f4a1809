package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StringList stores a JSONB array of strings (exclusion lists, covered
// ailments).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("StringList: Scan failed, expected []byte but got %T", value)
	}
	return json.Unmarshal(b, l)
}

// CoverageLimits maps a claim category to its annual coverage limit.
type CoverageLimits map[ClaimType]float64

func (c CoverageLimits) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *CoverageLimits) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("CoverageLimits: Scan failed, expected []byte but got %T", value)
	}
	return json.Unmarshal(b, c)
}

// Policy is read-only to the pipeline. A missing policy is a validation
// failure, never silently defaulted.
type Policy struct {
	ID                  uuid.UUID      `json:"id" db:"id"`
	PolicyNumber        string         `json:"policy_number" db:"policy_number"`
	CoverageLimits      CoverageLimits `json:"coverage_limits" db:"coverage_limits"`
	CoPaymentPercentage float64        `json:"co_payment_percentage" db:"co_payment_percentage"`
	Deductible          float64        `json:"deductible" db:"deductible"`
	WarrantyPeriodDays  int            `json:"warranty_period_days" db:"warranty_period_days"`
	Exclusions          StringList     `json:"exclusions" db:"exclusions"`
	CoveredAilments     StringList     `json:"covered_ailments" db:"covered_ailments"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

// LimitFor returns the coverage limit for a claim category and whether the
// category is covered at all.
func (p *Policy) LimitFor(ct ClaimType) (float64, bool) {
	limit, ok := p.CoverageLimits[ct]
	return limit, ok
}

// Member is read-only to the pipeline.
type Member struct {
	ID        string    `json:"id" db:"id"`
	PolicyID  uuid.UUID `json:"policy_id" db:"policy_id"`
	FullName  string    `json:"full_name" db:"full_name"`
	NIC       *string   `json:"nic,omitempty" db:"nic"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
