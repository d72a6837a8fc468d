package engine_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"slatrack/internal/config"
	"slatrack/internal/db"
	"slatrack/internal/domain"
	"slatrack/internal/engine"
	"slatrack/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Tenant domain.Tenant
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	tenant, err := eng.CreateTenant(ctx, "tenant-1", "Acme", "tester")
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Tenant: tenant}
}

func (env testEnv) mustContract(t *testing.T, opts engine.ContractCreateOptions) domain.Contract {
	t.Helper()
	if opts.TenantID == "" {
		opts.TenantID = env.Tenant.ID
	}
	if opts.ActorID == "" {
		opts.ActorID = "tester"
	}
	c, err := env.Engine.CreateContract(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return c
}

func floatPtr(v float64) *float64 { return &v }

func TestActiveContractGeneratesPeriodsAtCreate(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustContract(t, engine.ContractCreateOptions{
		Name:           "Hosting",
		EffectiveDate:  "2023-01-01",
		ExpirationDate: "2023-03-31",
		Frequency:      domain.FrequencyMonthly,
		Status:         domain.StatusActive,
	})
	periods, err := env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(periods))
	}
	want := [][2]string{
		{"2023-01-01", "2023-01-31"},
		{"2023-02-01", "2023-02-28"},
		{"2023-03-01", "2023-03-31"},
	}
	for i, p := range periods {
		if p.StartDate != want[i][0] || p.EndDate != want[i][1] {
			t.Fatalf("period %d: got %s..%s want %s..%s", i, p.StartDate, p.EndDate, want[i][0], want[i][1])
		}
	}
}

func TestActivationGeneratesPeriodsOnce(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustContract(t, engine.ContractCreateOptions{
		Name:           "Support",
		EffectiveDate:  "2023-01-01",
		ExpirationDate: "2023-03-31",
		Frequency:      domain.FrequencyMonthly,
		Status:         domain.StatusDraft,
	})
	periods, _ := env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	if len(periods) != 0 {
		t.Fatalf("draft contract should have no periods, got %d", len(periods))
	}
	if _, err := env.Engine.ActivateContract(env.Ctx, c.ID, "tester"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	periods, _ = env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods after activation, got %d", len(periods))
	}
	// second activation is a no-op for periods
	if _, err := env.Engine.ActivateContract(env.Ctx, c.ID, "tester"); err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	again, _ := env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	if !reflect.DeepEqual(periods, again) {
		t.Fatalf("re-activation changed periods")
	}
}

func TestGeneratePeriodsGuards(t *testing.T) {
	env := newTestEnv(t)
	noDate := env.mustContract(t, engine.ContractCreateOptions{Name: "No dates"})
	if _, err := env.Engine.GenerateReportingPeriods(env.Ctx, noDate.ID, "tester"); !errors.Is(err, domain.ErrMissingEffectiveDate) {
		t.Fatalf("expected ErrMissingEffectiveDate, got %v", err)
	}

	c := env.mustContract(t, engine.ContractCreateOptions{
		Name:           "Dated",
		EffectiveDate:  "2023-01-01",
		ExpirationDate: "2023-03-31",
	})
	if _, err := env.Engine.GenerateReportingPeriods(env.Ctx, c.ID, "tester"); err != nil {
		t.Fatalf("first generation: %v", err)
	}
	if _, err := env.Engine.GenerateReportingPeriods(env.Ctx, c.ID, "tester"); !errors.Is(err, domain.ErrPeriodsExist) {
		t.Fatalf("expected ErrPeriodsExist, got %v", err)
	}
}

func TestSLAHierarchyValidation(t *testing.T) {
	env := newTestEnv(t)
	a := env.mustContract(t, engine.ContractCreateOptions{Name: "A"})
	b := env.mustContract(t, engine.ContractCreateOptions{Name: "B"})
	root, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{ContractID: a.ID, Name: "Mitigation", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	// parent must be in the same contract
	if _, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{ContractID: b.ID, ParentID: root.ID, Name: "child", ActorID: "tester"}); err == nil {
		t.Fatalf("expected cross-contract parent rejection")
	}
	// threshold fields travel together with an sli
	if _, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{ContractID: a.ID, Name: "bad", ThresholdType: domain.ThresholdMax, ThresholdValue: floatPtr(1), ActorID: "tester"}); err == nil {
		t.Fatalf("expected threshold-without-sli rejection")
	}
	sli, err := env.Engine.CreateSLI(env.Ctx, "Time to Fix", "", "hours", "tester")
	if err != nil {
		t.Fatalf("create sli: %v", err)
	}
	if _, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{ContractID: a.ID, Name: "bad", SLIID: sli.ID, ThresholdType: domain.ThresholdMax, ActorID: "tester"}); err == nil {
		t.Fatalf("expected missing threshold value rejection")
	}
	// preset id equal to an ancestor closes a loop
	child, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{ContractID: a.ID, ParentID: root.ID, Name: "child", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if _, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{ID: root.ID, ContractID: a.ID, ParentID: child.ID, Name: "loop", ActorID: "tester"}); err == nil {
		t.Fatalf("expected cycle rejection")
	}
}

func TestMeasurementUpsert(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustContract(t, engine.ContractCreateOptions{
		Name: "Hosting", EffectiveDate: "2023-01-01", ExpirationDate: "2023-03-31", Status: domain.StatusActive,
	})
	periods, _ := env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	sli, err := env.Engine.CreateSLI(env.Ctx, "Uptime", "", "%", "tester")
	if err != nil {
		t.Fatalf("create sli: %v", err)
	}
	first, err := env.Engine.RecordMeasurement(env.Ctx, engine.MeasurementOptions{
		PeriodID: periods[0].ID, SLIID: sli.ID, ReportedValue: 99.5, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.CalculatedValue != 99.5 {
		t.Fatalf("calculated should default to reported, got %v", first.CalculatedValue)
	}
	second, err := env.Engine.RecordMeasurement(env.Ctx, engine.MeasurementOptions{
		PeriodID: periods[0].ID, SLIID: sli.ID, ReportedValue: 98.0, CalculatedValue: floatPtr(97.5), ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a second row")
	}
	if second.ReportedValue != 98.0 || second.CalculatedValue != 97.5 {
		t.Fatalf("upsert did not replace values: %+v", second)
	}
	all, _ := env.Engine.Repo.ListMeasurements(env.Ctx, periods[0].ID)
	if len(all) != 1 {
		t.Fatalf("expected a single measurement, got %d", len(all))
	}
}

func TestReportRegenerationIsStable(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustContract(t, engine.ContractCreateOptions{
		Name: "Hosting", EffectiveDate: "2023-01-01", ExpirationDate: "2023-03-31", Status: domain.StatusActive,
	})
	periods, _ := env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	sli, _ := env.Engine.CreateSLI(env.Ctx, "Time to Fix", "", "hours", "tester")
	if _, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{
		ContractID: c.ID, Name: "P1 Remediation", SLIID: sli.ID,
		ThresholdType: domain.ThresholdMax, ThresholdValue: floatPtr(1.0), ActorID: "tester",
	}); err != nil {
		t.Fatalf("create sla: %v", err)
	}
	if _, err := env.Engine.RecordMeasurement(env.Ctx, engine.MeasurementOptions{
		PeriodID: periods[0].ID, SLIID: sli.ID, ReportedValue: 0.5, ActorID: "tester",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	report1, items1, err := env.Engine.GenerateReport(env.Ctx, periods[0].ID, "tester")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(items1) != 1 || !items1[0].IsCompliant {
		t.Fatalf("expected one compliant item, got %+v", items1)
	}
	report2, items2, err := env.Engine.GenerateReport(env.Ctx, periods[0].ID, "tester")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if report2.ID != report1.ID {
		t.Fatalf("regeneration replaced the report row")
	}
	if !reflect.DeepEqual(items1, items2) {
		t.Fatalf("regeneration changed items:\n%+v\n%+v", items1, items2)
	}
}

func TestQuarterOfMonthlyCompliance(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustContract(t, engine.ContractCreateOptions{
		Name: "Hosting", EffectiveDate: "2023-01-01", ExpirationDate: "2023-03-31", Status: domain.StatusActive,
	})
	periods, _ := env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(periods))
	}
	sli, _ := env.Engine.CreateSLI(env.Ctx, "Priority 1 Time to Fix", "", "hours", "tester")
	root, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{ContractID: c.ID, Name: "Mitigation", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	leaf, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{
		ContractID: c.ID, ParentID: root.ID, Name: "Priority 1 Remediation",
		SLIID: sli.ID, ThresholdType: domain.ThresholdMax, ThresholdValue: floatPtr(1.0), ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}
	// January within threshold, February breached, March unmeasured.
	for _, rec := range []struct {
		period string
		value  float64
	}{
		{periods[0].ID, 0.5},
		{periods[1].ID, 2.0},
	} {
		if _, err := env.Engine.RecordMeasurement(env.Ctx, engine.MeasurementOptions{
			PeriodID: rec.period, SLIID: sli.ID, ReportedValue: rec.value, ActorID: "tester",
		}); err != nil {
			t.Fatalf("record %s: %v", rec.period, err)
		}
	}
	_, jan, err := env.Engine.GenerateReport(env.Ctx, periods[0].ID, "tester")
	if err != nil {
		t.Fatalf("january: %v", err)
	}
	if len(jan) != 1 || !jan[0].IsCompliant || jan[0].SLAID != leaf.ID {
		t.Fatalf("january items: %+v", jan)
	}
	_, feb, err := env.Engine.GenerateReport(env.Ctx, periods[1].ID, "tester")
	if err != nil {
		t.Fatalf("february: %v", err)
	}
	if len(feb) != 1 || feb[0].IsCompliant {
		t.Fatalf("february items: %+v", feb)
	}
	summary, err := env.Engine.ContractCompliance(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("compliance: %v", err)
	}
	if summary.PeriodID != periods[1].ID || summary.Percentage == nil || *summary.Percentage != 0 {
		t.Fatalf("summary after february: %+v", summary)
	}
	// March has no measurements: its report holds no items, so the latest
	// period reads as no data rather than 0%.
	_, mar, err := env.Engine.GenerateReport(env.Ctx, periods[2].ID, "tester")
	if err != nil {
		t.Fatalf("march: %v", err)
	}
	if len(mar) != 0 {
		t.Fatalf("march items: %+v", mar)
	}
	summary, err = env.Engine.ContractCompliance(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("compliance: %v", err)
	}
	if summary.PeriodID != periods[2].ID || summary.Percentage != nil {
		t.Fatalf("summary after march: %+v", summary)
	}

	tree, err := env.Engine.ReportTree(env.Ctx, periods[0].ID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree) != 1 || tree[0].SLA.ID != root.ID || tree[0].Item != nil {
		t.Fatalf("tree root: %+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Item == nil || !tree[0].Children[0].Item.IsCompliant {
		t.Fatalf("tree leaf: %+v", tree[0].Children)
	}
}

func TestRegenerateContractReports(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustContract(t, engine.ContractCreateOptions{
		Name: "Hosting", EffectiveDate: "2023-01-01", ExpirationDate: "2023-03-31", Status: domain.StatusActive,
	})
	periods, _ := env.Engine.Repo.ListPeriods(env.Ctx, c.ID)
	sli, _ := env.Engine.CreateSLI(env.Ctx, "Uptime", "", "%", "tester")
	if _, err := env.Engine.CreateSLA(env.Ctx, engine.SLACreateOptions{
		ContractID: c.ID, Name: "Availability", SLIID: sli.ID,
		ThresholdType: domain.ThresholdMin, ThresholdValue: floatPtr(99.0), ActorID: "tester",
	}); err != nil {
		t.Fatalf("create sla: %v", err)
	}
	if _, err := env.Engine.RecordMeasurement(env.Ctx, engine.MeasurementOptions{
		PeriodID: periods[0].ID, SLIID: sli.ID, ReportedValue: 98.0, ActorID: "tester",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := env.Engine.GenerateReport(env.Ctx, periods[0].ID, "tester"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	// correction arrives, batch regeneration picks it up
	if _, err := env.Engine.RecordMeasurement(env.Ctx, engine.MeasurementOptions{
		PeriodID: periods[0].ID, SLIID: sli.ID, ReportedValue: 99.5, ActorID: "tester",
	}); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	n, err := env.Engine.RegenerateContractReports(env.Ctx, c.ID, "tester")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 regenerated report, got %d", n)
	}
	report, items, err := env.Engine.GetOrGenerateReport(env.Ctx, periods[0].ID, "tester")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if report.ReportingPeriodID != periods[0].ID || len(items) != 1 || !items[0].IsCompliant {
		t.Fatalf("regenerated items: %+v", items)
	}
}

func TestContractComplianceWithoutReports(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustContract(t, engine.ContractCreateOptions{Name: "Bare"})
	summary, err := env.Engine.ContractCompliance(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("compliance: %v", err)
	}
	if summary.PeriodID != "" || summary.Percentage != nil {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}
