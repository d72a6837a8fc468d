package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"slatrack/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// --- tenants ---

func (r Repo) InsertTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tenants(id,name,created_at) VALUES (?,?,?)`,
		t.ID, t.Name, t.CreatedAt)
	return err
}

func (r Repo) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM tenants WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM tenants ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// SingleTenant returns the only tenant, erroring when zero or several exist.
func (r Repo) SingleTenant(ctx context.Context) (domain.Tenant, error) {
	tenants, err := r.ListTenants(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	if len(tenants) == 0 {
		return domain.Tenant{}, ErrNotFound
	}
	if len(tenants) > 1 {
		return domain.Tenant{}, fmt.Errorf("multiple tenants exist; specify --tenant")
	}
	return tenants[0], nil
}

// --- contract templates ---

func (r Repo) InsertTemplate(ctx context.Context, t domain.ContractTemplate) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO contract_templates(id,tenant_id,name,publication_date,created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.TenantID, t.Name, t.PublicationDate, t.CreatedAt)
	return err
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.ContractTemplate, error) {
	var t domain.ContractTemplate
	err := r.DB.QueryRowContext(ctx, `SELECT id,tenant_id,name,publication_date,created_at FROM contract_templates WHERE id=?`, id).
		Scan(&t.ID, &t.TenantID, &t.Name, &t.PublicationDate, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTemplates(ctx context.Context, tenantID string) ([]domain.ContractTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,tenant_id,name,publication_date,created_at FROM contract_templates WHERE tenant_id=? ORDER BY created_at ASC, id ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ContractTemplate
	for rows.Next() {
		var t domain.ContractTemplate
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.PublicationDate, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// --- parties ---

func (r Repo) InsertParty(ctx context.Context, p domain.Party) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO parties(id,name,type) VALUES (?,?,?)`, p.ID, p.Name, p.Type)
	return err
}

func (r Repo) GetParty(ctx context.Context, id string) (domain.Party, error) {
	var p domain.Party
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,type FROM parties WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Type)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListParties(ctx context.Context) ([]domain.Party, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,type FROM parties ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Party
	for rows.Next() {
		var p domain.Party
		if err := rows.Scan(&p.ID, &p.Name, &p.Type); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) AddContractPartyTx(ctx context.Context, tx *sql.Tx, contractID, partyID string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO contract_parties(contract_id,party_id) VALUES (?,?)`, contractID, partyID)
	return err
}

func (r Repo) ListContractPartyIDs(ctx context.Context, contractID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT party_id FROM contract_parties WHERE contract_id=? ORDER BY party_id ASC`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// --- contracts ---

const contractColumns = `id,tenant_id,template_id,name,signature_date,effective_date,expiration_date,reporting_frequency,status,created_at,updated_at`

func scanContract(scan func(...any) error) (domain.Contract, error) {
	var c domain.Contract
	var templateID, signature, effective, expiration sql.NullString
	err := scan(&c.ID, &c.TenantID, &templateID, &c.Name, &signature, &effective, &expiration, &c.ReportingFrequency, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.TemplateID = ptrFromNull(templateID)
	c.SignatureDate = ptrFromNull(signature)
	c.EffectiveDate = ptrFromNull(effective)
	c.ExpirationDate = ptrFromNull(expiration)
	return c, nil
}

func (r Repo) InsertContractTx(ctx context.Context, tx *sql.Tx, c domain.Contract) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO contracts(`+contractColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.TenantID, nullablePtr(c.TemplateID), c.Name, nullablePtr(c.SignatureDate), nullablePtr(c.EffectiveDate), nullablePtr(c.ExpirationDate),
		c.ReportingFrequency, c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=?`, id)
	c, err := scanContract(row.Scan)
	if err != nil {
		return c, err
	}
	c.PartyIDs, err = r.ListContractPartyIDs(ctx, id)
	return c, err
}

func (r Repo) GetContractTx(ctx context.Context, tx *sql.Tx, id string) (domain.Contract, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=?`, id)
	return scanContract(row.Scan)
}

func (r Repo) ListContracts(ctx context.Context, tenantID string) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts ORDER BY created_at ASC, id ASC`
	args := []any{}
	if tenantID != "" {
		query = `SELECT ` + contractColumns + ` FROM contracts WHERE tenant_id=? ORDER BY created_at ASC, id ASC`
		args = append(args, tenantID)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ContractUpdate carries the mutable contract fields; nil means unchanged.
type ContractUpdate struct {
	Name           *string
	SignatureDate  *string
	EffectiveDate  *string
	ExpirationDate *string
	Frequency      *string
	Status         *string
}

func (r Repo) UpdateContractTx(ctx context.Context, tx *sql.Tx, id string, u ContractUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.SignatureDate != nil {
		fields = append(fields, "signature_date=?")
		args = append(args, nullable(*u.SignatureDate))
	}
	if u.EffectiveDate != nil {
		fields = append(fields, "effective_date=?")
		args = append(args, nullable(*u.EffectiveDate))
	}
	if u.ExpirationDate != nil {
		fields = append(fields, "expiration_date=?")
		args = append(args, nullable(*u.ExpirationDate))
	}
	if u.Frequency != nil {
		fields = append(fields, "reporting_frequency=?")
		args = append(args, *u.Frequency)
	}
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE contracts SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountContractsByStatus(ctx context.Context, tenantID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM contracts WHERE tenant_id=? GROUP BY status`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- reporting periods ---

func (r Repo) InsertPeriodTx(ctx context.Context, tx *sql.Tx, p domain.ReportingPeriod) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reporting_periods(id,contract_id,start_date,end_date,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.ContractID, p.StartDate, p.EndDate, p.CreatedAt)
	return err
}

func (r Repo) GetPeriod(ctx context.Context, id string) (domain.ReportingPeriod, error) {
	var p domain.ReportingPeriod
	err := r.DB.QueryRowContext(ctx, `SELECT id,contract_id,start_date,end_date,created_at FROM reporting_periods WHERE id=?`, id).
		Scan(&p.ID, &p.ContractID, &p.StartDate, &p.EndDate, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListPeriods(ctx context.Context, contractID string) ([]domain.ReportingPeriod, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,contract_id,start_date,end_date,created_at FROM reporting_periods WHERE contract_id=? ORDER BY start_date ASC`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReportingPeriod
	for rows.Next() {
		var p domain.ReportingPeriod
		if err := rows.Scan(&p.ID, &p.ContractID, &p.StartDate, &p.EndDate, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) CountPeriodsTx(ctx context.Context, tx *sql.Tx, contractID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reporting_periods WHERE contract_id=?`, contractID).Scan(&n)
	return n, err
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, tenantID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,COALESCE(tenant_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var (
		conds []string
		args  []any
	)
	if tenantID != "" {
		conds = append(conds, "tenant_id=?")
		args = append(args, tenantID)
	}
	if evtType != "" {
		conds = append(conds, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		conds = append(conds, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		conds = append(conds, "entity_id=?")
		args = append(args, entityID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.TenantID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64, tenantID string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,COALESCE(tenant_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>?`
	args := []any{afterID}
	if tenantID != "" {
		query += " AND tenant_id=?"
		args = append(args, tenantID)
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.TenantID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context, tenantID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if tenantID != "" {
		query += " WHERE tenant_id=?"
		args = append(args, tenantID)
	}
	var id int64
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}
