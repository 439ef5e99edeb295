// Package postgresql implements the authoritative record store on PostgreSQL.
// All mutations run inside a single transaction; concurrent writers are
// serialized by the unique constraints, not by locks in this code.
package postgresql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/db/dberror"
	"github.com/routeplane/routeplane/internal/routesrv/db/dbmanager"
	"github.com/routeplane/routeplane/internal/routesrv/db/models"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

const sqlResolveActiveURL = `
SELECT e.url
FROM tenants t
JOIN services s ON s.tenant_id = t.id
JOIN environments env ON env.service_id = s.id
JOIN endpoints e ON e.environment_id = env.id
WHERE t.name = $1
  AND s.name = $2
  AND env.name = $3
  AND e.version = $4
  AND e.is_active = true
LIMIT 1`

const sqlFindEnvironment = `
SELECT env.id
FROM tenants t
JOIN services s ON s.tenant_id = t.id
JOIN environments env ON env.service_id = s.id
WHERE t.name = $1
  AND s.name = $2
  AND env.name = $3
LIMIT 1`

const sqlSelectEndpointForUpdate = `
SELECT id, url, is_active
FROM endpoints
WHERE environment_id = $1 AND version = $2
FOR UPDATE`

const sqlSelectEndpointState = `
SELECT e.url, e.is_active
FROM tenants t
JOIN services s ON s.tenant_id = t.id
JOIN environments env ON env.service_id = s.id
JOIN endpoints e ON e.environment_id = env.id
WHERE t.name = $1
  AND s.name = $2
  AND env.name = $3
  AND e.version = $4
LIMIT 1`

// RouteStore is the PostgreSQL-backed record store.
type RouteStore struct {
	pool *dbmanager.Pool
}

// NewRouteStore wraps the pool.
func NewRouteStore(pool *dbmanager.Pool) *RouteStore {
	return &RouteStore{pool: pool}
}

// ResolveActiveURL returns the URL of the active endpoint for id, or
// ErrNotFound when no visible active endpoint exists.
func (rs *RouteStore) ResolveActiveURL(ctx context.Context, id routecommon.RouteID) (string, apperrors.Error) {
	qctx, cancel := rs.pool.QueryContext(ctx)
	defer cancel()

	var url string
	err := rs.pool.DB().QueryRowContext(qctx, sqlResolveActiveURL, id.Tenant, id.Service, id.Env, id.Version).Scan(&url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", dberror.ErrNotFound.Msg("route not found: " + id.String())
		}
		return "", classify(ctx, err, "failed to resolve route")
	}
	return url, nil
}

// CreateRoute registers a route and activates it. Creating parent tenant,
// service and environment rows is idempotent. Repeating a create with the
// same URL on an active endpoint is a no-op, even when the repeat loses a
// concurrent insert race; any other existing endpoint state is a conflict.
func (rs *RouteStore) CreateRoute(ctx context.Context, id routecommon.RouteID, url string) (*models.MutationResult, apperrors.Error) {
	qctx, cancel := rs.pool.QueryContext(ctx)
	defer cancel()

	tx, err := rs.pool.DB().BeginTx(qctx, nil)
	if err != nil {
		return nil, classify(ctx, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	envID, aerr := rs.environmentID(qctx, tx, id)
	if aerr != nil {
		return nil, aerr
	}

	var endpointID int64
	var prevURL string
	var prevActive bool
	err = tx.QueryRowContext(qctx, sqlSelectEndpointForUpdate, envID, id.Version).Scan(&endpointID, &prevURL, &prevActive)
	switch {
	case err == nil:
		result, aerr := existingEndpointOutcome(id, prevURL, prevActive, url)
		if aerr != nil {
			return nil, aerr
		}
		// idempotent repeat, nothing to insert or publish
		if err := tx.Commit(); err != nil {
			return nil, classify(ctx, err, "failed to commit transaction")
		}
		return result, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return nil, classify(ctx, err, "failed to read endpoint")
	}

	_, err = tx.ExecContext(qctx,
		`INSERT INTO endpoints (environment_id, version, url, is_active) VALUES ($1, $2, $3, true)`,
		envID, id.Version, url)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// lost the insert race; the winner's row is invisible to this
			// aborted transaction, so judge the create from a fresh read
			return rs.createAfterRace(qctx, ctx, id, url)
		}
		return nil, classify(ctx, err, "failed to insert endpoint")
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(ctx, err, "failed to commit transaction")
	}

	log.Ctx(ctx).Info().Str("route", id.String()).Str("url", url).Msg("route created")
	return &models.MutationResult{
		URL:      url,
		Previous: models.EndpointState{Existed: false},
		Changed:  true,
	}, nil
}

// createAfterRace resolves a create that lost the unique-index race. The
// insert reports 23505 only after the conflicting transaction has committed,
// so a plain read sees the winner's row.
func (rs *RouteStore) createAfterRace(qctx, ctx context.Context, id routecommon.RouteID, url string) (*models.MutationResult, apperrors.Error) {
	var prevURL string
	var prevActive bool
	err := rs.pool.DB().QueryRowContext(qctx, sqlSelectEndpointState, id.Tenant, id.Service, id.Env, id.Version).Scan(&prevURL, &prevActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrConflict.Msg("route already exists with a different definition: " + id.String())
		}
		return nil, classify(ctx, err, "failed to read endpoint after create race")
	}
	return existingEndpointOutcome(id, prevURL, prevActive, url)
}

// existingEndpointOutcome decides a create against an endpoint that already
// exists: the identical URL on an active endpoint is an idempotent success,
// anything else is a conflict.
func existingEndpointOutcome(id routecommon.RouteID, prevURL string, prevActive bool, url string) (*models.MutationResult, apperrors.Error) {
	if prevURL == url && prevActive {
		return &models.MutationResult{
			URL:      url,
			Previous: models.EndpointState{URL: prevURL, IsActive: prevActive, Existed: true},
			Changed:  false,
		}, nil
	}
	return nil, dberror.ErrConflict.Msg("route already exists with a different definition: " + id.String())
}

// ActivateRoute sets is_active on the endpoint. Idempotent on already-active
// routes.
func (rs *RouteStore) ActivateRoute(ctx context.Context, id routecommon.RouteID) (*models.MutationResult, apperrors.Error) {
	return rs.setActive(ctx, id, true)
}

// DeactivateRoute clears is_active on the endpoint. Idempotent on
// already-inactive routes.
func (rs *RouteStore) DeactivateRoute(ctx context.Context, id routecommon.RouteID) (*models.MutationResult, apperrors.Error) {
	return rs.setActive(ctx, id, false)
}

func (rs *RouteStore) setActive(ctx context.Context, id routecommon.RouteID, active bool) (*models.MutationResult, apperrors.Error) {
	qctx, cancel := rs.pool.QueryContext(ctx)
	defer cancel()

	tx, err := rs.pool.DB().BeginTx(qctx, nil)
	if err != nil {
		return nil, classify(ctx, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var envID int64
	err = tx.QueryRowContext(qctx, sqlFindEnvironment, id.Tenant, id.Service, id.Env).Scan(&envID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("route not found: " + id.String())
		}
		return nil, classify(ctx, err, "failed to find environment")
	}

	var endpointID int64
	var prevURL string
	var prevActive bool
	err = tx.QueryRowContext(qctx, sqlSelectEndpointForUpdate, envID, id.Version).Scan(&endpointID, &prevURL, &prevActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("route not found: " + id.String())
		}
		return nil, classify(ctx, err, "failed to read endpoint")
	}

	result := &models.MutationResult{
		URL:      prevURL,
		Previous: models.EndpointState{URL: prevURL, IsActive: prevActive, Existed: true},
		Changed:  prevActive != active,
	}

	if result.Changed {
		_, err = tx.ExecContext(qctx,
			`UPDATE endpoints SET is_active = $1, updated_at = now() WHERE id = $2`,
			active, endpointID)
		if err != nil {
			return nil, classify(ctx, err, "failed to update endpoint")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(ctx, err, "failed to commit transaction")
	}

	log.Ctx(ctx).Info().Str("route", id.String()).Bool("is_active", active).Bool("changed", result.Changed).Msg("route state updated")
	return result, nil
}

// environmentID walks tenant, service and environment with get-or-insert at
// each level. ON CONFLICT DO NOTHING plus a fallback SELECT keeps concurrent
// writers idempotent.
func (rs *RouteStore) environmentID(ctx context.Context, tx *sql.Tx, id routecommon.RouteID) (int64, apperrors.Error) {
	tenantID, aerr := getOrInsert(ctx, tx,
		`INSERT INTO tenants (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`,
		`SELECT id FROM tenants WHERE name = $1`,
		id.Tenant)
	if aerr != nil {
		return 0, aerr
	}

	serviceID, aerr := getOrInsert(ctx, tx,
		`INSERT INTO services (tenant_id, name) VALUES ($1, $2) ON CONFLICT (tenant_id, name) DO NOTHING RETURNING id`,
		`SELECT id FROM services WHERE tenant_id = $1 AND name = $2`,
		tenantID, id.Service)
	if aerr != nil {
		return 0, aerr
	}

	return getOrInsert(ctx, tx,
		`INSERT INTO environments (service_id, name) VALUES ($1, $2) ON CONFLICT (service_id, name) DO NOTHING RETURNING id`,
		`SELECT id FROM environments WHERE service_id = $1 AND name = $2`,
		serviceID, id.Env)
}

func getOrInsert(ctx context.Context, tx *sql.Tx, insertSQL, selectSQL string, args ...any) (int64, apperrors.Error) {
	var rowID int64
	err := tx.QueryRowContext(ctx, insertSQL, args...).Scan(&rowID)
	if err == nil {
		return rowID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, classify(ctx, err, "failed to insert row")
	}
	// the row already exists, the insert returned nothing
	err = tx.QueryRowContext(ctx, selectSQL, args...).Scan(&rowID)
	if err != nil {
		return 0, classify(ctx, err, "failed to select existing row")
	}
	return rowID, nil
}

// classify maps a driver error into the taxonomy exactly once. Timeouts and
// connection errors are transient; everything else is a database error.
func classify(ctx context.Context, err error, msg string) apperrors.Error {
	log.Ctx(ctx).Error().Err(err).Msg(msg)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return resilience.ErrTransient.MsgErr(msg, err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return resilience.ErrTransient.MsgErr(msg, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrTransient.MsgErr(msg, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection exceptions, 57 is operator intervention
		// (shutdown); both clear up on their own
		if len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57") {
			return resilience.ErrTransient.MsgErr(msg, err)
		}
	}
	return dberror.ErrDatabase.MsgErr(msg, err)
}
