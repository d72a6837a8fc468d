package server

import (
	"encoding/json"

	"slatrack/internal/compliance"
	"slatrack/internal/domain"
)

// Request payloads

type CreateTenantRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type CreateTemplateRequest struct {
	Name            string `json:"name"`
	PublicationDate string `json:"publication_date" format:"date"`
}

type CreatePartyRequest struct {
	Name string `json:"name"`
	Type string `json:"type" enum:"BUYER,SELLER"`
}

type CreateContractRequest struct {
	ID             *string  `json:"id,omitempty"`
	TenantID       string   `json:"tenant_id"`
	TemplateID     *string  `json:"template_id,omitempty"`
	Name           string   `json:"name"`
	PartyIDs       []string `json:"party_ids,omitempty"`
	SignatureDate  *string  `json:"signature_date,omitempty" format:"date"`
	EffectiveDate  *string  `json:"effective_date,omitempty" format:"date"`
	ExpirationDate *string  `json:"expiration_date,omitempty" format:"date"`
	Frequency      *string  `json:"reporting_frequency,omitempty" enum:"MONTHLY,QUARTERLY,YEARLY"`
	Status         *string  `json:"status,omitempty" enum:"DRAFT,ACTIVE,EXPIRED,TERMINATED"`
}

type UpdateContractRequest struct {
	Name           *string `json:"name,omitempty"`
	SignatureDate  *string `json:"signature_date,omitempty" format:"date"`
	EffectiveDate  *string `json:"effective_date,omitempty" format:"date"`
	ExpirationDate *string `json:"expiration_date,omitempty" format:"date"`
	Frequency      *string `json:"reporting_frequency,omitempty" enum:"MONTHLY,QUARTERLY,YEARLY"`
	Status         *string `json:"status,omitempty" enum:"DRAFT,ACTIVE,EXPIRED,TERMINATED"`
}

type CreateSLIRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

type CreateSLARequest struct {
	ID             *string  `json:"id,omitempty"`
	ParentID       *string  `json:"parent_id,omitempty"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	SLIID          *string  `json:"sli_id,omitempty"`
	ThresholdType  *string  `json:"threshold_type,omitempty" enum:"MIN,MAX"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`
}

type RecordMeasurementRequest struct {
	SLIID           string   `json:"sli_id"`
	ReportedValue   float64  `json:"reported_value"`
	CalculatedValue *float64 `json:"calculated_value,omitempty"`
	IsDisputed      bool     `json:"is_disputed,omitempty"`
}

// Response payloads

type ReportResponse struct {
	Report domain.ComplianceReport       `json:"report"`
	Items  []domain.ComplianceReportItem `json:"items"`
}

type TreeNodeResponse struct {
	SLA      domain.ServiceLevelAgreement `json:"sla"`
	Item     *domain.ComplianceReportItem `json:"item,omitempty"`
	Children []TreeNodeResponse           `json:"children"`
}

type RegenerateResponse struct {
	ContractID string `json:"contract_id"`
	Reports    int    `json:"reports"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	Type       string          `json:"type"`
	TenantID   string          `json:"tenant_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

func treeResponse(nodes []*compliance.TreeNode) []TreeNodeResponse {
	res := make([]TreeNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		res = append(res, TreeNodeResponse{
			SLA:      n.SLA,
			Item:     n.Item,
			Children: treeResponse(n.Children),
		})
	}
	return res
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage([]byte("{}"))
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage([]byte(evt.Payload))
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		TenantID:   evt.TenantID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

func mapEvents(events []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(events))
	for _, evt := range events {
		res = append(res, eventResponse(evt))
	}
	return res
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
