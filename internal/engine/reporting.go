package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slatrack/internal/compliance"
	"slatrack/internal/domain"
	"slatrack/internal/events"
	"slatrack/internal/repo"
)

// CreateSLI registers a shared indicator definition.
func (e Engine) CreateSLI(ctx context.Context, name, description, unit, actorID string) (domain.ServiceLevelIndicator, error) {
	if name == "" {
		return domain.ServiceLevelIndicator{}, errors.New("name is required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	s := domain.ServiceLevelIndicator{
		ID:          newID("sli", name, now),
		Name:        name,
		Description: description,
		Unit:        unit,
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceLevelIndicator{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSLITx(ctx, tx, s); err != nil {
		return domain.ServiceLevelIndicator{}, fmt.Errorf("insert sli: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "sli.create", "", "sli", s.ID, actorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.ServiceLevelIndicator{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ServiceLevelIndicator{}, err
	}
	return s, nil
}

// SLACreateOptions are parameters for creating an SLA node. A node either
// binds an SLI together with a threshold type and value, or none of the three
// (an organizational node).
type SLACreateOptions struct {
	ID             string
	ContractID     string
	ParentID       string
	Name           string
	Description    string
	SLIID          string
	ThresholdType  string
	ThresholdValue *float64
	ActorID        string
}

func (e Engine) CreateSLA(ctx context.Context, opts SLACreateOptions) (domain.ServiceLevelAgreement, error) {
	if opts.Name == "" {
		return domain.ServiceLevelAgreement{}, errors.New("name is required")
	}
	if opts.ContractID == "" {
		return domain.ServiceLevelAgreement{}, errors.New("contract is required")
	}
	bound := opts.SLIID != ""
	if bound {
		if !domain.ValidThresholdType(opts.ThresholdType) {
			return domain.ServiceLevelAgreement{}, fmt.Errorf("invalid threshold type %q", opts.ThresholdType)
		}
		if opts.ThresholdValue == nil {
			return domain.ServiceLevelAgreement{}, errors.New("threshold value is required for indicator-bearing nodes")
		}
		if _, err := e.Repo.GetSLI(ctx, opts.SLIID); err != nil {
			return domain.ServiceLevelAgreement{}, err
		}
	} else if opts.ThresholdType != "" || opts.ThresholdValue != nil {
		return domain.ServiceLevelAgreement{}, errors.New("threshold requires a bound sli")
	}
	if _, err := e.Repo.GetContract(ctx, opts.ContractID); err != nil {
		return domain.ServiceLevelAgreement{}, err
	}
	if opts.ParentID != "" {
		parent, err := e.Repo.GetSLA(ctx, opts.ParentID)
		if err != nil {
			return domain.ServiceLevelAgreement{}, err
		}
		if parent.ContractID != opts.ContractID {
			return domain.ServiceLevelAgreement{}, errors.New("parent in different contract")
		}
		if err := e.ensureNoCycle(ctx, opts.ParentID, opts.ID); err != nil {
			return domain.ServiceLevelAgreement{}, err
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID("sla", opts.ContractID, opts.Name, now)
	}
	s := domain.ServiceLevelAgreement{
		ID:          id,
		ContractID:  opts.ContractID,
		ParentID:    optional(opts.ParentID),
		Name:        opts.Name,
		Description: opts.Description,
		SLIID:       optional(opts.SLIID),
		CreatedAt:   now,
	}
	if bound {
		s.ThresholdType = optional(opts.ThresholdType)
		s.ThresholdValue = opts.ThresholdValue
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceLevelAgreement{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSLATx(ctx, tx, s); err != nil {
		return domain.ServiceLevelAgreement{}, fmt.Errorf("insert sla: %w", err)
	}
	c, err := e.Repo.GetContractTx(ctx, tx, opts.ContractID)
	if err != nil {
		return domain.ServiceLevelAgreement{}, err
	}
	if err := e.Events.Append(ctx, tx, "sla.create", c.TenantID, "sla", s.ID, opts.ActorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.ServiceLevelAgreement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ServiceLevelAgreement{}, err
	}
	return s, nil
}

// ensureNoCycle walks the parent chain from parentID; reaching nodeID or an
// already-seen node means the chain loops.
func (e Engine) ensureNoCycle(ctx context.Context, parentID, nodeID string) error {
	seen := map[string]bool{}
	current := parentID
	for current != "" {
		if current == nodeID || seen[current] {
			return errors.New("sla hierarchy cycle detected")
		}
		seen[current] = true
		node, err := e.Repo.GetSLA(ctx, current)
		if err != nil {
			return err
		}
		if node.ParentID == nil {
			return nil
		}
		current = *node.ParentID
	}
	return nil
}

// MeasurementOptions are parameters for recording a measurement.
type MeasurementOptions struct {
	PeriodID        string
	SLIID           string
	ReportedValue   float64
	CalculatedValue *float64
	IsDisputed      bool
	ActorID         string
}

// RecordMeasurement upserts the measurement for (period, sli). When no
// calculated value is supplied the reported value is used as-is. The dispute
// flag is stored for audit purposes and never consulted by evaluation.
func (e Engine) RecordMeasurement(ctx context.Context, opts MeasurementOptions) (domain.Measurement, error) {
	period, err := e.Repo.GetPeriod(ctx, opts.PeriodID)
	if err != nil {
		return domain.Measurement{}, err
	}
	if _, err := e.Repo.GetSLI(ctx, opts.SLIID); err != nil {
		return domain.Measurement{}, err
	}
	calculated := opts.ReportedValue
	if opts.CalculatedValue != nil {
		calculated = *opts.CalculatedValue
	}
	now := e.now().UTC().Format(time.RFC3339)
	m := domain.Measurement{
		ID:                newID("measurement", opts.PeriodID, opts.SLIID),
		ReportingPeriodID: opts.PeriodID,
		SLIID:             opts.SLIID,
		ReportedValue:     opts.ReportedValue,
		CalculatedValue:   calculated,
		IsDisputed:        opts.IsDisputed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	contract, err := e.Repo.GetContract(ctx, period.ContractID)
	if err != nil {
		return domain.Measurement{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Measurement{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertMeasurementTx(ctx, tx, m); err != nil {
		return domain.Measurement{}, fmt.Errorf("upsert measurement: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "measurement.record", contract.TenantID, "measurement", m.ID, opts.ActorID, events.EventPayload{
		"period_id": opts.PeriodID,
		"sli_id":    opts.SLIID,
	}); err != nil {
		return domain.Measurement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Measurement{}, err
	}
	return e.Repo.GetMeasurement(ctx, opts.PeriodID, opts.SLIID)
}

// GenerateReport produces the compliance report for one period. The report
// shell is created when absent; all prior items are deleted and the fresh set
// inserted in the same transaction, so regeneration replaces atomically.
// Item ids derive from (report, sla), making repeated runs over unchanged
// inputs byte-identical.
func (e Engine) GenerateReport(ctx context.Context, periodID, actorID string) (domain.ComplianceReport, []domain.ComplianceReportItem, error) {
	period, err := e.Repo.GetPeriod(ctx, periodID)
	if err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	defer tx.Rollback()

	contract, err := e.Repo.GetContractTx(ctx, tx, period.ContractID)
	if err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	report, err := e.Repo.GetReportByPeriodTx(ctx, tx, periodID)
	if errors.Is(err, repo.ErrNotFound) {
		report = domain.ComplianceReport{
			ID:                newID("report", periodID),
			ReportingPeriodID: periodID,
			GeneratedAt:       now,
			UpdatedAt:         now,
		}
		if err := e.Repo.InsertReportTx(ctx, tx, report); err != nil {
			return domain.ComplianceReport{}, nil, fmt.Errorf("insert report: %w", err)
		}
	} else if err != nil {
		return domain.ComplianceReport{}, nil, err
	} else {
		if err := e.Repo.TouchReportTx(ctx, tx, report.ID, now); err != nil {
			return domain.ComplianceReport{}, nil, err
		}
		report.GeneratedAt = now
		report.UpdatedAt = now
	}

	slas, err := e.Repo.ListSLAsTx(ctx, tx, period.ContractID)
	if err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	measurements, err := e.Repo.ListMeasurementsTx(ctx, tx, periodID)
	if err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	verdicts := compliance.Evaluate(slas, measurements)

	if err := e.Repo.DeleteReportItemsTx(ctx, tx, report.ID); err != nil {
		return domain.ComplianceReport{}, nil, fmt.Errorf("delete report items: %w", err)
	}
	items := make([]domain.ComplianceReportItem, 0, len(verdicts))
	for _, v := range verdicts {
		item := domain.ComplianceReportItem{
			ID:            newID("report-item", report.ID, v.SLA.ID),
			ReportID:      report.ID,
			SLAID:         v.SLA.ID,
			MeasurementID: v.Measurement.ID,
			IsCompliant:   v.IsCompliant,
		}
		if err := e.Repo.InsertReportItemTx(ctx, tx, item); err != nil {
			return domain.ComplianceReport{}, nil, fmt.Errorf("insert report item: %w", err)
		}
		items = append(items, item)
	}
	if err := e.Events.Append(ctx, tx, "report.generate", contract.TenantID, "report", report.ID, actorID, events.EventPayload{
		"period_id": periodID,
		"items":     len(items),
	}); err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	return report, items, nil
}

// GetOrGenerateReport returns the period's report, generating it first when
// absent.
func (e Engine) GetOrGenerateReport(ctx context.Context, periodID, actorID string) (domain.ComplianceReport, []domain.ComplianceReportItem, error) {
	report, err := e.Repo.GetReportByPeriod(ctx, periodID)
	if errors.Is(err, repo.ErrNotFound) {
		return e.GenerateReport(ctx, periodID, actorID)
	}
	if err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	items, err := e.Repo.ListReportItems(ctx, report.ID)
	if err != nil {
		return domain.ComplianceReport{}, nil, err
	}
	return report, items, nil
}

// RegenerateContractReports re-runs evaluation for every period of the
// contract that already has a report, discarding prior items. Returns the
// number of reports regenerated.
func (e Engine) RegenerateContractReports(ctx context.Context, contractID, actorID string) (int, error) {
	periods, err := e.Repo.ListPeriods(ctx, contractID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range periods {
		if _, err := e.Repo.GetReportByPeriod(ctx, p.ID); errors.Is(err, repo.ErrNotFound) {
			continue
		} else if err != nil {
			return count, err
		}
		if _, _, err := e.GenerateReport(ctx, p.ID, actorID); err != nil {
			return count, fmt.Errorf("regenerate period %s: %w", p.ID, err)
		}
		count++
	}
	return count, nil
}

// ReportTree assembles the period's SLA hierarchy with verdicts attached,
// for presentation.
func (e Engine) ReportTree(ctx context.Context, periodID string) ([]*compliance.TreeNode, error) {
	period, err := e.Repo.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	slas, err := e.Repo.ListSLAs(ctx, period.ContractID)
	if err != nil {
		return nil, err
	}
	var items []domain.ComplianceReportItem
	report, err := e.Repo.GetReportByPeriod(ctx, periodID)
	if err == nil {
		items, err = e.Repo.ListReportItems(ctx, report.ID)
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return compliance.BuildTree(slas, items), nil
}

// ContractComplianceSummary is the latest-period view used by list screens.
type ContractComplianceSummary struct {
	ContractID  string   `json:"contract_id"`
	PeriodID    string   `json:"period_id,omitempty"`
	PeriodEnd   string   `json:"period_end,omitempty"`
	GeneratedAt string   `json:"generated_at,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty"`
}

// ContractCompliance derives the compliance percentage of the contract's most
// recent reported period. A contract without any report, or a report without
// items, yields a nil percentage: no data, not 0%.
func (e Engine) ContractCompliance(ctx context.Context, contractID string) (ContractComplianceSummary, error) {
	summary := ContractComplianceSummary{ContractID: contractID}
	period, err := e.Repo.LatestReportedPeriod(ctx, contractID)
	if errors.Is(err, repo.ErrNotFound) {
		return summary, nil
	}
	if err != nil {
		return summary, err
	}
	report, err := e.Repo.GetReportByPeriod(ctx, period.ID)
	if err != nil {
		return summary, err
	}
	items, err := e.Repo.ListReportItems(ctx, report.ID)
	if err != nil {
		return summary, err
	}
	summary.PeriodID = period.ID
	summary.PeriodEnd = period.EndDate
	summary.GeneratedAt = report.GeneratedAt
	if pct, ok := compliance.Percentage(items); ok {
		summary.Percentage = &pct
	}
	return summary, nil
}
