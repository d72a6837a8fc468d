package slatracksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Slatrack HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Contract represents the API contract model (partial).
type Contract struct {
	ID                 string   `json:"id"`
	TenantID           string   `json:"tenant_id"`
	Name               string   `json:"name"`
	PartyIDs           []string `json:"party_ids,omitempty"`
	EffectiveDate      *string  `json:"effective_date,omitempty"`
	ExpirationDate     *string  `json:"expiration_date,omitempty"`
	ReportingFrequency string   `json:"reporting_frequency"`
	Status             string   `json:"status"`
}

// ReportingPeriod is one tile of a contract's reporting calendar.
type ReportingPeriod struct {
	ID         string `json:"id"`
	ContractID string `json:"contract_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// SLA is one node of a contract's SLA tree.
type SLA struct {
	ID             string   `json:"id"`
	ContractID     string   `json:"contract_id"`
	ParentID       *string  `json:"parent_id,omitempty"`
	Name           string   `json:"name"`
	SLIID          *string  `json:"sli_id,omitempty"`
	ThresholdType  *string  `json:"threshold_type,omitempty"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`
}

// Measurement is an observed indicator value for a period.
type Measurement struct {
	ID              string  `json:"id"`
	PeriodID        string  `json:"period_id"`
	SLIID           string  `json:"sli_id"`
	ReportedValue   float64 `json:"reported_value"`
	CalculatedValue float64 `json:"calculated_value"`
	IsDisputed      bool    `json:"is_disputed"`
}

// Report bundles a compliance report with its items.
type Report struct {
	Report struct {
		ID          string `json:"id"`
		PeriodID    string `json:"period_id"`
		GeneratedAt string `json:"generated_at"`
	} `json:"report"`
	Items []ReportItem `json:"items"`
}

// ReportItem is a per-SLA verdict inside a report.
type ReportItem struct {
	ID            string `json:"id"`
	ReportID      string `json:"report_id"`
	SLAID         string `json:"sla_id"`
	MeasurementID string `json:"measurement_id"`
	IsCompliant   bool   `json:"is_compliant"`
}

// ComplianceSummary is a contract's latest compliance figure.
type ComplianceSummary struct {
	ContractID string   `json:"contract_id"`
	PeriodID   string   `json:"period_id,omitempty"`
	PeriodEnd  string   `json:"period_end,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	TenantID   string          `json:"tenant_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateContract creates a contract for the given tenant.
func (c *Client) CreateContract(ctx context.Context, tenantID, name, frequency, effectiveDate, status string) (Contract, error) {
	body := map[string]any{
		"tenant_id": tenantID,
		"name":      name,
	}
	if frequency != "" {
		body["reporting_frequency"] = frequency
	}
	if effectiveDate != "" {
		body["effective_date"] = effectiveDate
	}
	if status != "" {
		body["status"] = status
	}
	var resp Contract
	err := c.do(ctx, http.MethodPost, "v0/contracts", body, &resp)
	return resp, err
}

// GetContract fetches a contract by id.
func (c *Client) GetContract(ctx context.Context, id string) (Contract, error) {
	var resp Contract
	err := c.do(ctx, http.MethodGet, c.contractPath(id, ""), nil, &resp)
	return resp, err
}

// ActivateContract activates a contract; first activation generates its periods.
func (c *Client) ActivateContract(ctx context.Context, id string) (Contract, error) {
	var resp Contract
	err := c.do(ctx, http.MethodPost, c.contractPath(id, "activate"), nil, &resp)
	return resp, err
}

// Periods lists a contract's reporting periods.
func (c *Client) Periods(ctx context.Context, contractID string) ([]ReportingPeriod, error) {
	var resp []ReportingPeriod
	err := c.do(ctx, http.MethodGet, c.contractPath(contractID, "periods"), nil, &resp)
	return resp, err
}

// GeneratePeriods generates a contract's reporting periods explicitly.
func (c *Client) GeneratePeriods(ctx context.Context, contractID string) ([]ReportingPeriod, error) {
	var resp []ReportingPeriod
	err := c.do(ctx, http.MethodPost, c.contractPath(contractID, "periods/generate"), nil, &resp)
	return resp, err
}

// CreateSLA creates an SLA node under a contract.
func (c *Client) CreateSLA(ctx context.Context, contractID, parentID, name, sliID, thresholdType string, thresholdValue *float64) (SLA, error) {
	body := map[string]any{"name": name}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	if sliID != "" {
		body["sli_id"] = sliID
	}
	if thresholdType != "" {
		body["threshold_type"] = thresholdType
	}
	if thresholdValue != nil {
		body["threshold_value"] = *thresholdValue
	}
	var resp SLA
	err := c.do(ctx, http.MethodPost, c.contractPath(contractID, "slas"), body, &resp)
	return resp, err
}

// RecordMeasurement upserts a measurement for (period, indicator).
func (c *Client) RecordMeasurement(ctx context.Context, periodID, sliID string, reported float64, calculated *float64) (Measurement, error) {
	body := map[string]any{
		"sli_id":         sliID,
		"reported_value": reported,
	}
	if calculated != nil {
		body["calculated_value"] = *calculated
	}
	var resp Measurement
	endpoint := fmt.Sprintf("v0/periods/%s/measurements", url.PathEscape(periodID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GenerateReport builds (or rebuilds) the compliance report for a period.
func (c *Client) GenerateReport(ctx context.Context, periodID string) (Report, error) {
	var resp Report
	endpoint := fmt.Sprintf("v0/periods/%s/report", url.PathEscape(periodID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// GetReport fetches the compliance report of a period.
func (c *Client) GetReport(ctx context.Context, periodID string) (Report, error) {
	var resp Report
	endpoint := fmt.Sprintf("v0/periods/%s/report", url.PathEscape(periodID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Compliance returns a contract's latest compliance summary.
func (c *Client) Compliance(ctx context.Context, contractID string) (ComplianceSummary, error) {
	var resp ComplianceSummary
	err := c.do(ctx, http.MethodGet, c.contractPath(contractID, "compliance"), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) contractPath(id, p string) string {
	endpoint := fmt.Sprintf("v0/contracts/%s", url.PathEscape(id))
	if p != "" {
		endpoint += "/" + strings.TrimLeft(p, "/")
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
