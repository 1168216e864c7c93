package cache

import (
	"context"
	"time"

	"tiendita/backend/internal/domain"
)

// DashboardCache holds per-tenant dashboard aggregates for a short TTL so
// a busy storefront does not recompute them on every poll.
type DashboardCache interface {
	Get(ctx context.Context, tenantID string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, tenantID string, value *domain.DashboardStats, ttl time.Duration) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}
