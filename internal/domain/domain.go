package domain

import "errors"

// DateLayout is the at-rest format for all contract and period dates.
const DateLayout = "2006-01-02"

// Reporting frequencies.
const (
	FrequencyMonthly   = "MONTHLY"
	FrequencyQuarterly = "QUARTERLY"
	FrequencyYearly    = "YEARLY"
)

// Contract lifecycle statuses.
const (
	StatusDraft      = "DRAFT"
	StatusActive     = "ACTIVE"
	StatusExpired    = "EXPIRED"
	StatusTerminated = "TERMINATED"
)

// Threshold types.
const (
	ThresholdMin = "MIN"
	ThresholdMax = "MAX"
)

// Party types.
const (
	PartyBuyer  = "BUYER"
	PartySeller = "SELLER"
)

var (
	// ErrMissingEffectiveDate is returned when period generation is requested
	// for a contract without an effective date.
	ErrMissingEffectiveDate = errors.New("contract has no effective date")
	// ErrPeriodsExist is returned when period generation is requested for a
	// contract that already has reporting periods.
	ErrPeriodsExist = errors.New("contract already has reporting periods")
	// ErrUnknownFrequency is returned for a reporting frequency outside
	// MONTHLY, QUARTERLY, YEARLY.
	ErrUnknownFrequency = errors.New("unknown reporting frequency")
)

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ContractTemplate struct {
	ID              string `json:"id"`
	TenantID        string `json:"tenant_id"`
	Name            string `json:"name"`
	PublicationDate string `json:"publication_date" format:"date"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type" enum:"BUYER,SELLER"`
}

type Contract struct {
	ID                 string   `json:"id"`
	TenantID           string   `json:"tenant_id"`
	TemplateID         *string  `json:"template_id,omitempty"`
	Name               string   `json:"name"`
	PartyIDs           []string `json:"party_ids,omitempty"`
	SignatureDate      *string  `json:"signature_date,omitempty" format:"date"`
	EffectiveDate      *string  `json:"effective_date,omitempty" format:"date"`
	ExpirationDate     *string  `json:"expiration_date,omitempty" format:"date"`
	ReportingFrequency string   `json:"reporting_frequency" enum:"MONTHLY,QUARTERLY,YEARLY"`
	Status             string   `json:"status" enum:"DRAFT,ACTIVE,EXPIRED,TERMINATED"`
	CreatedAt          string   `json:"created_at" format:"date-time"`
	UpdatedAt          string   `json:"updated_at" format:"date-time"`
}

// ReportingPeriod is immutable once created; only the period generator writes it.
type ReportingPeriod struct {
	ID         string `json:"id"`
	ContractID string `json:"contract_id"`
	StartDate  string `json:"start_date" format:"date"`
	EndDate    string `json:"end_date" format:"date"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type ServiceLevelIndicator struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// ServiceLevelAgreement is a tree node. Nodes without a bound SLI are
// organizational; they carry no threshold and produce no report items.
type ServiceLevelAgreement struct {
	ID             string   `json:"id"`
	ContractID     string   `json:"contract_id"`
	ParentID       *string  `json:"parent_id,omitempty"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	SLIID          *string  `json:"sli_id,omitempty"`
	ThresholdType  *string  `json:"threshold_type,omitempty" enum:"MIN,MAX"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
}

type Measurement struct {
	ID                string  `json:"id"`
	ReportingPeriodID string  `json:"reporting_period_id"`
	SLIID             string  `json:"sli_id"`
	ReportedValue     float64 `json:"reported_value"`
	CalculatedValue   float64 `json:"calculated_value"`
	IsDisputed        bool    `json:"is_disputed"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
}

type ComplianceReport struct {
	ID                string `json:"id"`
	ReportingPeriodID string `json:"reporting_period_id"`
	GeneratedAt       string `json:"generated_at" format:"date-time"`
	UpdatedAt         string `json:"updated_at" format:"date-time"`
}

type ComplianceReportItem struct {
	ID            string `json:"id"`
	ReportID      string `json:"report_id"`
	SLAID         string `json:"sla_id"`
	MeasurementID string `json:"measurement_id"`
	IsCompliant   bool   `json:"is_compliant"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TenantID   string `json:"tenant_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// ValidFrequency reports whether f is a recognized reporting frequency.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// ValidStatus reports whether s is a recognized contract status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusActive, StatusExpired, StatusTerminated:
		return true
	}
	return false
}

// ValidThresholdType reports whether t is MIN or MAX.
func ValidThresholdType(t string) bool {
	return t == ThresholdMin || t == ThresholdMax
}
