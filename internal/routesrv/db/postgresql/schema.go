package postgresql

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/db/dberror"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL REFERENCES tenants(id),
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS environments (
		id BIGSERIAL PRIMARY KEY,
		service_id BIGINT NOT NULL REFERENCES services(id),
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (service_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS endpoints (
		id BIGSERIAL PRIMARY KEY,
		environment_id BIGINT NOT NULL REFERENCES environments(id),
		version TEXT NOT NULL,
		url TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (environment_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tenants_name ON tenants(name)`,
	`CREATE INDEX IF NOT EXISTS idx_services_tenant_id ON services(tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_environments_service_id ON environments(service_id)`,
	`CREATE INDEX IF NOT EXISTS idx_endpoints_env_active ON endpoints(environment_id, is_active)`,
}

// EnsureSchema creates the record store tables and indices if they are
// missing. Safe to call on every startup.
func (rs *RouteStore) EnsureSchema(ctx context.Context) apperrors.Error {
	for _, stmt := range schemaStatements {
		if _, err := rs.pool.DB().ExecContext(ctx, stmt); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to apply schema statement")
			return dberror.ErrDatabase.Err(err)
		}
	}
	return nil
}
