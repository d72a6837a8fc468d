package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slatrack/internal/config"
	"slatrack/internal/domain"
	"slatrack/internal/events"
	"slatrack/internal/repo"
	"slatrack/internal/schedule"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) horizonDays() int {
	if e.Config != nil && e.Config.Reporting.HorizonDays > 0 {
		return e.Config.Reporting.HorizonDays
	}
	return schedule.DefaultHorizonDays
}

func newID(parts ...string) string {
	key := ""
	for _, p := range parts {
		key += p + "|"
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// CreateTenant registers a tenant.
func (e Engine) CreateTenant(ctx context.Context, id, name, actorID string) (domain.Tenant, error) {
	if name == "" {
		return domain.Tenant{}, errors.New("name is required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = newID("tenant", name, now)
	}
	t := domain.Tenant{ID: id, Name: name, CreatedAt: now}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tenant{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO tenants(id,name,created_at) VALUES (?,?,?)`, t.ID, t.Name, t.CreatedAt); err != nil {
		return domain.Tenant{}, fmt.Errorf("insert tenant: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "tenant.create", t.ID, "tenant", t.ID, actorID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.Tenant{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}

// CreateTemplate registers a contract template for a tenant.
func (e Engine) CreateTemplate(ctx context.Context, tenantID, name, publicationDate, actorID string) (domain.ContractTemplate, error) {
	if name == "" {
		return domain.ContractTemplate{}, errors.New("name is required")
	}
	if _, err := parseDate(publicationDate); err != nil {
		return domain.ContractTemplate{}, fmt.Errorf("invalid publication_date: %w", err)
	}
	if _, err := e.Repo.GetTenant(ctx, tenantID); err != nil {
		return domain.ContractTemplate{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.ContractTemplate{
		ID:              newID("template", tenantID, name, now),
		TenantID:        tenantID,
		Name:            name,
		PublicationDate: publicationDate,
		CreatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ContractTemplate{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO contract_templates(id,tenant_id,name,publication_date,created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.TenantID, t.Name, t.PublicationDate, t.CreatedAt); err != nil {
		return domain.ContractTemplate{}, fmt.Errorf("insert template: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "template.create", tenantID, "template", t.ID, actorID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.ContractTemplate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ContractTemplate{}, err
	}
	return t, nil
}

// CreateParty registers a contract party.
func (e Engine) CreateParty(ctx context.Context, name, partyType, actorID string) (domain.Party, error) {
	if name == "" {
		return domain.Party{}, errors.New("name is required")
	}
	if partyType != domain.PartyBuyer && partyType != domain.PartySeller {
		return domain.Party{}, fmt.Errorf("invalid party type %q", partyType)
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Party{ID: newID("party", name, partyType, now), Name: name, Type: partyType}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Party{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO parties(id,name,type) VALUES (?,?,?)`, p.ID, p.Name, p.Type); err != nil {
		return domain.Party{}, fmt.Errorf("insert party: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "party.create", "", "party", p.ID, actorID, events.EventPayload{"name": p.Name, "type": p.Type}); err != nil {
		return domain.Party{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Party{}, err
	}
	return p, nil
}

// ContractCreateOptions are parameters for creating a contract.
type ContractCreateOptions struct {
	ID             string
	TenantID       string
	TemplateID     string
	Name           string
	PartyIDs       []string
	SignatureDate  string
	EffectiveDate  string
	ExpirationDate string
	Frequency      string
	Status         string
	ActorID        string
}

// CreateContract inserts a contract. A contract created as ACTIVE with an
// effective date gets its reporting periods generated in the same transaction;
// any other combination defers generation to ActivateContract or an explicit
// GenerateReportingPeriods call.
func (e Engine) CreateContract(ctx context.Context, opts ContractCreateOptions) (domain.Contract, error) {
	if opts.Name == "" {
		return domain.Contract{}, errors.New("name is required")
	}
	if opts.TenantID == "" {
		return domain.Contract{}, errors.New("tenant is required")
	}
	if opts.Frequency == "" {
		opts.Frequency = domain.FrequencyMonthly
	}
	if !domain.ValidFrequency(opts.Frequency) {
		return domain.Contract{}, fmt.Errorf("%w: %q", domain.ErrUnknownFrequency, opts.Frequency)
	}
	if opts.Status == "" {
		opts.Status = domain.StatusDraft
	}
	if !domain.ValidStatus(opts.Status) {
		return domain.Contract{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if _, err := e.Repo.GetTenant(ctx, opts.TenantID); err != nil {
		return domain.Contract{}, err
	}
	if opts.TemplateID != "" {
		tpl, err := e.Repo.GetTemplate(ctx, opts.TemplateID)
		if err != nil {
			return domain.Contract{}, err
		}
		if tpl.TenantID != opts.TenantID {
			return domain.Contract{}, fmt.Errorf("template %s not in tenant %s", opts.TemplateID, opts.TenantID)
		}
	}
	for _, field := range []struct{ name, value string }{
		{"signature_date", opts.SignatureDate},
		{"effective_date", opts.EffectiveDate},
		{"expiration_date", opts.ExpirationDate},
	} {
		if field.value == "" {
			continue
		}
		if _, err := parseDate(field.value); err != nil {
			return domain.Contract{}, fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}
	for _, partyID := range opts.PartyIDs {
		if _, err := e.Repo.GetParty(ctx, partyID); err != nil {
			return domain.Contract{}, fmt.Errorf("party %s: %w", partyID, err)
		}
	}

	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID("contract", opts.TenantID, opts.Name, now)
	}
	c := domain.Contract{
		ID:                 id,
		TenantID:           opts.TenantID,
		TemplateID:         optional(opts.TemplateID),
		Name:               opts.Name,
		PartyIDs:           opts.PartyIDs,
		SignatureDate:      optional(opts.SignatureDate),
		EffectiveDate:      optional(opts.EffectiveDate),
		ExpirationDate:     optional(opts.ExpirationDate),
		ReportingFrequency: opts.Frequency,
		Status:             opts.Status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Contract{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertContractTx(ctx, tx, c); err != nil {
		return domain.Contract{}, fmt.Errorf("insert contract: %w", err)
	}
	for _, partyID := range opts.PartyIDs {
		if err := e.Repo.AddContractPartyTx(ctx, tx, c.ID, partyID); err != nil {
			return domain.Contract{}, fmt.Errorf("attach party: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "contract.create", c.TenantID, "contract", c.ID, opts.ActorID, events.EventPayload{"name": c.Name, "status": c.Status}); err != nil {
		return domain.Contract{}, err
	}
	if c.Status == domain.StatusActive && c.EffectiveDate != nil {
		if _, err := e.generatePeriodsTx(ctx, tx, c, opts.ActorID); err != nil {
			return domain.Contract{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

// ContractUpdateOptions are parameters for updating a contract. Period
// generation is never triggered here, even when dates or status change.
type ContractUpdateOptions struct {
	ID             string
	Name           *string
	SignatureDate  *string
	EffectiveDate  *string
	ExpirationDate *string
	Frequency      *string
	Status         *string
	ActorID        string
}

func (e Engine) UpdateContract(ctx context.Context, opts ContractUpdateOptions) (domain.Contract, error) {
	if opts.Frequency != nil && !domain.ValidFrequency(*opts.Frequency) {
		return domain.Contract{}, fmt.Errorf("%w: %q", domain.ErrUnknownFrequency, *opts.Frequency)
	}
	if opts.Status != nil && !domain.ValidStatus(*opts.Status) {
		return domain.Contract{}, fmt.Errorf("invalid status %q", *opts.Status)
	}
	for _, d := range []*string{opts.SignatureDate, opts.EffectiveDate, opts.ExpirationDate} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := parseDate(*d); err != nil {
			return domain.Contract{}, fmt.Errorf("invalid date: %w", err)
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Contract{}, err
	}
	defer tx.Rollback()
	update := repo.ContractUpdate{
		Name:           opts.Name,
		SignatureDate:  opts.SignatureDate,
		EffectiveDate:  opts.EffectiveDate,
		ExpirationDate: opts.ExpirationDate,
		Frequency:      opts.Frequency,
		Status:         opts.Status,
	}
	if err := e.Repo.UpdateContractTx(ctx, tx, opts.ID, update, now); err != nil {
		return domain.Contract{}, err
	}
	c, err := e.Repo.GetContractTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Contract{}, err
	}
	if err := e.Events.Append(ctx, tx, "contract.update", c.TenantID, "contract", c.ID, opts.ActorID, events.EventPayload{"status": c.Status}); err != nil {
		return domain.Contract{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

// ActivateContract transitions a contract to ACTIVE. On the first activation
// of a contract that has an effective date and no reporting periods yet, the
// periods are generated in the same transaction.
func (e Engine) ActivateContract(ctx context.Context, contractID, actorID string) (domain.Contract, error) {
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Contract{}, err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetContractTx(ctx, tx, contractID)
	if err != nil {
		return domain.Contract{}, err
	}
	if c.Status != domain.StatusActive {
		status := domain.StatusActive
		if err := e.Repo.UpdateContractTx(ctx, tx, contractID, repo.ContractUpdate{Status: &status}, now); err != nil {
			return domain.Contract{}, err
		}
		c.Status = domain.StatusActive
		c.UpdatedAt = now
	}
	if err := e.Events.Append(ctx, tx, "contract.activate", c.TenantID, "contract", c.ID, actorID, nil); err != nil {
		return domain.Contract{}, err
	}
	if c.EffectiveDate != nil {
		n, err := e.Repo.CountPeriodsTx(ctx, tx, contractID)
		if err != nil {
			return domain.Contract{}, err
		}
		if n == 0 {
			if _, err := e.generatePeriodsTx(ctx, tx, c, actorID); err != nil {
				return domain.Contract{}, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

// GenerateReportingPeriods is the explicit generation entry point. It fails
// with ErrMissingEffectiveDate when the contract has no effective date and
// with ErrPeriodsExist when periods were generated before; the zero-periods
// guard is checked inside the transaction so concurrent invocations cannot
// both pass it.
func (e Engine) GenerateReportingPeriods(ctx context.Context, contractID, actorID string) ([]domain.ReportingPeriod, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetContractTx(ctx, tx, contractID)
	if err != nil {
		return nil, err
	}
	if c.EffectiveDate == nil {
		return nil, domain.ErrMissingEffectiveDate
	}
	n, err := e.Repo.CountPeriodsTx(ctx, tx, contractID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, domain.ErrPeriodsExist
	}
	periods, err := e.generatePeriodsTx(ctx, tx, c, actorID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return periods, nil
}

func (e Engine) generatePeriodsTx(ctx context.Context, tx *sql.Tx, c domain.Contract, actorID string) ([]domain.ReportingPeriod, error) {
	if c.EffectiveDate == nil {
		return nil, domain.ErrMissingEffectiveDate
	}
	effective, err := parseDate(*c.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("invalid effective_date: %w", err)
	}
	var expiration *time.Time
	if c.ExpirationDate != nil {
		t, err := parseDate(*c.ExpirationDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration_date: %w", err)
		}
		expiration = &t
	}
	spans, err := schedule.Generate(effective, expiration, c.ReportingFrequency, e.now().UTC(), e.horizonDays())
	if err != nil {
		return nil, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	periods := make([]domain.ReportingPeriod, 0, len(spans))
	for _, span := range spans {
		p := domain.ReportingPeriod{
			ID:         newID("period", c.ID, span.Start.Format(domain.DateLayout)),
			ContractID: c.ID,
			StartDate:  span.Start.Format(domain.DateLayout),
			EndDate:    span.End.Format(domain.DateLayout),
			CreatedAt:  now,
		}
		if err := e.Repo.InsertPeriodTx(ctx, tx, p); err != nil {
			return nil, fmt.Errorf("insert period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := e.Events.Append(ctx, tx, "periods.generate", c.TenantID, "contract", c.ID, actorID, events.EventPayload{"count": len(periods)}); err != nil {
		return nil, err
	}
	return periods, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(domain.DateLayout, s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
