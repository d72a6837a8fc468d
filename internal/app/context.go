package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slatrack/internal/domain"
	"slatrack/internal/repo"
)

// ResolveTenant picks the active tenant, creating it on the fly when it does
// not exist yet. It prefers an explicit override, then a single-tenant DB.
func ResolveTenant(ctx context.Context, tenantOverride string, r repo.Repo) (domain.Tenant, error) {
	if tenantOverride == "" {
		t, err := r.SingleTenant(ctx)
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("tenant not specified; use --tenant")
		}
		return t, nil
	}
	t, err := r.GetTenant(ctx, tenantOverride)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Tenant{}, err
	}
	t = domain.Tenant{
		ID:        tenantOverride,
		Name:      tenantOverride,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.InsertTenant(ctx, t); err != nil {
		return domain.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}
