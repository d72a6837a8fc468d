package repo

import (
	"context"
	"database/sql"

	"slatrack/internal/domain"
)

// --- service level indicators ---

func (r Repo) InsertSLI(ctx context.Context, s domain.ServiceLevelIndicator) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO slis(id,name,description,unit,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.Name, nullable(s.Description), nullable(s.Unit), s.CreatedAt)
	return err
}

func (r Repo) InsertSLITx(ctx context.Context, tx *sql.Tx, s domain.ServiceLevelIndicator) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO slis(id,name,description,unit,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.Name, nullable(s.Description), nullable(s.Unit), s.CreatedAt)
	return err
}

func (r Repo) GetSLI(ctx context.Context, id string) (domain.ServiceLevelIndicator, error) {
	var s domain.ServiceLevelIndicator
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),COALESCE(unit,''),created_at FROM slis WHERE id=?`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.Unit, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListSLIs(ctx context.Context) ([]domain.ServiceLevelIndicator, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(description,''),COALESCE(unit,''),created_at FROM slis ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceLevelIndicator
	for rows.Next() {
		var s domain.ServiceLevelIndicator
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Unit, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// --- service level agreements ---

const slaColumns = `id,contract_id,parent_id,name,COALESCE(description,''),sli_id,threshold_type,threshold_value,created_at`

func scanSLA(scan func(...any) error) (domain.ServiceLevelAgreement, error) {
	var s domain.ServiceLevelAgreement
	var parentID, sliID, thresholdType sql.NullString
	var thresholdValue sql.NullFloat64
	err := scan(&s.ID, &s.ContractID, &parentID, &s.Name, &s.Description, &sliID, &thresholdType, &thresholdValue, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.ParentID = ptrFromNull(parentID)
	s.SLIID = ptrFromNull(sliID)
	s.ThresholdType = ptrFromNull(thresholdType)
	if thresholdValue.Valid {
		v := thresholdValue.Float64
		s.ThresholdValue = &v
	}
	return s, nil
}

func (r Repo) InsertSLATx(ctx context.Context, tx *sql.Tx, s domain.ServiceLevelAgreement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO slas(id,contract_id,parent_id,name,description,sli_id,threshold_type,threshold_value,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ContractID, nullablePtr(s.ParentID), s.Name, nullable(s.Description), nullablePtr(s.SLIID), nullablePtr(s.ThresholdType), nullableFloat(s.ThresholdValue), s.CreatedAt)
	return err
}

func (r Repo) GetSLA(ctx context.Context, id string) (domain.ServiceLevelAgreement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+slaColumns+` FROM slas WHERE id=?`, id)
	return scanSLA(row.Scan)
}

// ListSLAs returns the contract's SLA nodes in creation order; evaluation and
// tree assembly both rely on this ordering being stable.
func (r Repo) ListSLAs(ctx context.Context, contractID string) ([]domain.ServiceLevelAgreement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+slaColumns+` FROM slas WHERE contract_id=? ORDER BY created_at ASC, id ASC`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceLevelAgreement
	for rows.Next() {
		s, err := scanSLA(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) ListSLAsTx(ctx context.Context, tx *sql.Tx, contractID string) ([]domain.ServiceLevelAgreement, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+slaColumns+` FROM slas WHERE contract_id=? ORDER BY created_at ASC, id ASC`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceLevelAgreement
	for rows.Next() {
		s, err := scanSLA(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// --- measurements ---

const measurementColumns = `id,reporting_period_id,sli_id,reported_value,calculated_value,is_disputed,created_at,updated_at`

func (r Repo) UpsertMeasurementTx(ctx context.Context, tx *sql.Tx, m domain.Measurement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO measurements(`+measurementColumns+`) VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(reporting_period_id,sli_id) DO UPDATE SET reported_value=excluded.reported_value, calculated_value=excluded.calculated_value, is_disputed=excluded.is_disputed, updated_at=excluded.updated_at`,
		m.ID, m.ReportingPeriodID, m.SLIID, m.ReportedValue, m.CalculatedValue, m.IsDisputed, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMeasurement(ctx context.Context, periodID, sliID string) (domain.Measurement, error) {
	var m domain.Measurement
	err := r.DB.QueryRowContext(ctx, `SELECT `+measurementColumns+` FROM measurements WHERE reporting_period_id=? AND sli_id=?`, periodID, sliID).
		Scan(&m.ID, &m.ReportingPeriodID, &m.SLIID, &m.ReportedValue, &m.CalculatedValue, &m.IsDisputed, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListMeasurements(ctx context.Context, periodID string) ([]domain.Measurement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+measurementColumns+` FROM measurements WHERE reporting_period_id=? ORDER BY created_at ASC, id ASC`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeasurements(rows)
}

func (r Repo) ListMeasurementsTx(ctx context.Context, tx *sql.Tx, periodID string) ([]domain.Measurement, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+measurementColumns+` FROM measurements WHERE reporting_period_id=? ORDER BY created_at ASC, id ASC`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeasurements(rows)
}

func collectMeasurements(rows *sql.Rows) ([]domain.Measurement, error) {
	var res []domain.Measurement
	for rows.Next() {
		var m domain.Measurement
		if err := rows.Scan(&m.ID, &m.ReportingPeriodID, &m.SLIID, &m.ReportedValue, &m.CalculatedValue, &m.IsDisputed, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// --- compliance reports ---

func (r Repo) GetReportByPeriod(ctx context.Context, periodID string) (domain.ComplianceReport, error) {
	var rep domain.ComplianceReport
	err := r.DB.QueryRowContext(ctx, `SELECT id,reporting_period_id,generated_at,updated_at FROM compliance_reports WHERE reporting_period_id=?`, periodID).
		Scan(&rep.ID, &rep.ReportingPeriodID, &rep.GeneratedAt, &rep.UpdatedAt)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	return rep, err
}

func (r Repo) GetReportByPeriodTx(ctx context.Context, tx *sql.Tx, periodID string) (domain.ComplianceReport, error) {
	var rep domain.ComplianceReport
	err := tx.QueryRowContext(ctx, `SELECT id,reporting_period_id,generated_at,updated_at FROM compliance_reports WHERE reporting_period_id=?`, periodID).
		Scan(&rep.ID, &rep.ReportingPeriodID, &rep.GeneratedAt, &rep.UpdatedAt)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	return rep, err
}

func (r Repo) InsertReportTx(ctx context.Context, tx *sql.Tx, rep domain.ComplianceReport) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO compliance_reports(id,reporting_period_id,generated_at,updated_at) VALUES (?,?,?,?)`,
		rep.ID, rep.ReportingPeriodID, rep.GeneratedAt, rep.UpdatedAt)
	return err
}

func (r Repo) TouchReportTx(ctx context.Context, tx *sql.Tx, reportID, ts string) error {
	res, err := tx.ExecContext(ctx, `UPDATE compliance_reports SET generated_at=?, updated_at=? WHERE id=?`, ts, ts, reportID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteReportItemsTx(ctx context.Context, tx *sql.Tx, reportID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM compliance_report_items WHERE report_id=?`, reportID)
	return err
}

func (r Repo) InsertReportItemTx(ctx context.Context, tx *sql.Tx, item domain.ComplianceReportItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO compliance_report_items(id,report_id,sla_id,measurement_id,is_compliant) VALUES (?,?,?,?,?)`,
		item.ID, item.ReportID, item.SLAID, item.MeasurementID, item.IsCompliant)
	return err
}

func (r Repo) ListReportItems(ctx context.Context, reportID string) ([]domain.ComplianceReportItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,report_id,sla_id,measurement_id,is_compliant FROM compliance_report_items WHERE report_id=? ORDER BY id ASC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ComplianceReportItem
	for rows.Next() {
		var item domain.ComplianceReportItem
		if err := rows.Scan(&item.ID, &item.ReportID, &item.SLAID, &item.MeasurementID, &item.IsCompliant); err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

// LatestReportedPeriod returns the contract's most recent period that has a
// compliance report, by period end date.
func (r Repo) LatestReportedPeriod(ctx context.Context, contractID string) (domain.ReportingPeriod, error) {
	var p domain.ReportingPeriod
	err := r.DB.QueryRowContext(ctx, `SELECT p.id,p.contract_id,p.start_date,p.end_date,p.created_at
FROM reporting_periods p JOIN compliance_reports cr ON cr.reporting_period_id = p.id
WHERE p.contract_id=? ORDER BY p.end_date DESC LIMIT 1`, contractID).
		Scan(&p.ID, &p.ContractID, &p.StartDate, &p.EndDate, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}
