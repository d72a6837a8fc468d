// Package seed installs a small demo dataset: one tenant, two templates, a
// pair of signed contracts with a mitigation SLA tree, and plausible
// measurements for every generated period.
package seed

import (
	"context"
	"fmt"
	"math/rand"

	"slatrack/internal/domain"
	"slatrack/internal/engine"
)

const actor = "seed"

type slaSpec struct {
	name      string
	sliName   string
	threshold float64
}

var remediationSpecs = []slaSpec{
	{"Priority 1 Remediation", "Priority 1 Time to Fix", 1.0},
	{"Priority 2 Remediation", "Priority 2 Time to Fix", 24.0},
	{"Priority 3 Remediation", "Priority 3 Time to Fix", 7.0 * 24.0},
}

var extraSLINames = []string{
	"Priority 4 Time to Fix",
	"Priority 5 Time to Fix",
}

// Result summarizes what Demo installed.
type Result struct {
	TenantID    string
	ContractIDs []string
	Periods     int
	Reports     int
}

// Demo populates the workspace. It is not idempotent; run it against a fresh
// database.
func Demo(ctx context.Context, eng engine.Engine) (Result, error) {
	var res Result
	rng := rand.New(rand.NewSource(42))

	tenant, err := eng.CreateTenant(ctx, "demo", "Demo Tenant", actor)
	if err != nil {
		return res, fmt.Errorf("tenant: %w", err)
	}
	res.TenantID = tenant.ID

	tpl2023, err := eng.CreateTemplate(ctx, tenant.ID, "Standard Terms 2023", "2023-01-01", actor)
	if err != nil {
		return res, fmt.Errorf("template: %w", err)
	}
	if _, err := eng.CreateTemplate(ctx, tenant.ID, "Standard Terms 2025", "2025-01-01", actor); err != nil {
		return res, fmt.Errorf("template: %w", err)
	}

	buyer, err := eng.CreateParty(ctx, "Globex Industries", domain.PartyBuyer, actor)
	if err != nil {
		return res, fmt.Errorf("party: %w", err)
	}
	seller, err := eng.CreateParty(ctx, "Initech Managed Services", domain.PartySeller, actor)
	if err != nil {
		return res, fmt.Errorf("party: %w", err)
	}

	slis := map[string]domain.ServiceLevelIndicator{}
	for _, spec := range remediationSpecs {
		s, err := eng.CreateSLI(ctx, spec.sliName, "Hours until resolution", "hours", actor)
		if err != nil {
			return res, fmt.Errorf("sli %s: %w", spec.sliName, err)
		}
		slis[spec.sliName] = s
	}
	for _, name := range extraSLINames {
		if _, err := eng.CreateSLI(ctx, name, "Hours until resolution", "hours", actor); err != nil {
			return res, fmt.Errorf("sli %s: %w", name, err)
		}
	}

	contracts := []engine.ContractCreateOptions{
		{
			TenantID:       tenant.ID,
			TemplateID:     tpl2023.ID,
			Name:           "Globex Hosting Agreement",
			PartyIDs:       []string{buyer.ID, seller.ID},
			SignatureDate:  "2022-12-15",
			EffectiveDate:  "2023-01-01",
			ExpirationDate: "2023-12-31",
			Frequency:      domain.FrequencyMonthly,
			Status:         domain.StatusActive,
			ActorID:        actor,
		},
		{
			TenantID:       tenant.ID,
			TemplateID:     tpl2023.ID,
			Name:           "Globex Support Agreement",
			PartyIDs:       []string{buyer.ID, seller.ID},
			SignatureDate:  "2022-12-15",
			EffectiveDate:  "2023-01-01",
			ExpirationDate: "2024-12-31",
			Frequency:      domain.FrequencyQuarterly,
			Status:         domain.StatusActive,
			ActorID:        actor,
		},
	}

	for _, opts := range contracts {
		c, err := eng.CreateContract(ctx, opts)
		if err != nil {
			return res, fmt.Errorf("contract %s: %w", opts.Name, err)
		}
		res.ContractIDs = append(res.ContractIDs, c.ID)

		root, err := eng.CreateSLA(ctx, engine.SLACreateOptions{
			ContractID: c.ID,
			Name:       "Mitigation",
			ActorID:    actor,
		})
		if err != nil {
			return res, fmt.Errorf("sla root: %w", err)
		}
		thresholdType := domain.ThresholdMax
		for _, spec := range remediationSpecs {
			spec := spec
			if _, err := eng.CreateSLA(ctx, engine.SLACreateOptions{
				ContractID:     c.ID,
				ParentID:       root.ID,
				Name:           spec.name,
				SLIID:          slis[spec.sliName].ID,
				ThresholdType:  thresholdType,
				ThresholdValue: &spec.threshold,
				ActorID:        actor,
			}); err != nil {
				return res, fmt.Errorf("sla %s: %w", spec.name, err)
			}
		}

		periods, err := eng.Repo.ListPeriods(ctx, c.ID)
		if err != nil {
			return res, err
		}
		res.Periods += len(periods)
		for _, p := range periods {
			for _, spec := range remediationSpecs {
				// Hover around half the threshold with a little noise so most
				// periods comply and the occasional one breaches.
				value := spec.threshold * (0.5 + rng.Float64()*0.7)
				if _, err := eng.RecordMeasurement(ctx, engine.MeasurementOptions{
					PeriodID:      p.ID,
					SLIID:         slis[spec.sliName].ID,
					ReportedValue: value,
					ActorID:       actor,
				}); err != nil {
					return res, fmt.Errorf("measurement: %w", err)
				}
			}
			if _, _, err := eng.GenerateReport(ctx, p.ID, actor); err != nil {
				return res, fmt.Errorf("report: %w", err)
			}
			res.Reports++
		}
	}
	return res, nil
}
