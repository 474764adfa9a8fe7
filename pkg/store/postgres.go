package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const installationsSchema = `
CREATE TABLE IF NOT EXISTS installations (
	tenant_id         TEXT PRIMARY KEY,
	team_name         TEXT NOT NULL DEFAULT '',
	bot_token         TEXT NOT NULL,
	bot_user_id       TEXT NOT NULL DEFAULT '',
	scopes            TEXT NOT NULL DEFAULT '',
	installer_user_id TEXT NOT NULL DEFAULT '',
	installed_at      TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`

// Postgres is the production Store backed by a pgx connection pool.
// The tenant_id primary key plus INSERT .. ON CONFLICT gives the
// single-record invariant and serializes concurrent reinstalls of the
// same tenant at the row level.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	if _, err := pool.Exec(ctx, installationsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring installations schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Upsert(ctx context.Context, in Installation) error {
	rec := in.sanitized(time.Now().UTC())

	query := `
		INSERT INTO installations
			(tenant_id, team_name, bot_token, bot_user_id, scopes, installer_user_id, installed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
			team_name         = EXCLUDED.team_name,
			bot_token         = EXCLUDED.bot_token,
			bot_user_id       = EXCLUDED.bot_user_id,
			scopes            = EXCLUDED.scopes,
			installer_user_id = EXCLUDED.installer_user_id,
			updated_at        = EXCLUDED.updated_at`

	_, err := p.pool.Exec(ctx, query,
		rec.TenantID, rec.TeamName, rec.BotToken, rec.BotUserID,
		rec.Scopes, rec.InstallerUserID, rec.InstalledAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting installation for tenant %s: %w", rec.TenantID, err)
	}
	return nil
}

func (p *Postgres) Lookup(ctx context.Context, tenantID string) (*Installation, error) {
	query := `
		SELECT tenant_id, team_name, bot_token, bot_user_id, scopes, installer_user_id, installed_at, updated_at
		FROM installations WHERE tenant_id = $1`

	var in Installation
	err := p.pool.QueryRow(ctx, query, tenantID).Scan(
		&in.TenantID, &in.TeamName, &in.BotToken, &in.BotUserID,
		&in.Scopes, &in.InstallerUserID, &in.InstalledAt, &in.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up installation for tenant %s: %w", tenantID, err)
	}
	return &in, nil
}

func (p *Postgres) List(ctx context.Context) ([]Installation, error) {
	query := `
		SELECT tenant_id, team_name, bot_token, bot_user_id, scopes, installer_user_id, installed_at, updated_at
		FROM installations ORDER BY tenant_id`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing installations: %w", err)
	}
	defer rows.Close()

	var result []Installation
	for rows.Next() {
		var in Installation
		if err := rows.Scan(
			&in.TenantID, &in.TeamName, &in.BotToken, &in.BotUserID,
			&in.Scopes, &in.InstallerUserID, &in.InstalledAt, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning installation row: %w", err)
		}
		result = append(result, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing installations: %w", err)
	}
	return result, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
