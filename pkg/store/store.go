// Package store persists per-tenant installation records. Exactly one
// record exists per tenant at all times: installs and reinstalls are
// upserts, never duplicates. The installer's personal user token is
// stripped before anything is written; it is never persisted.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Lookup when no installation exists for the
// tenant. Callers distinguish it from connectivity failures, which are
// returned as-is.
var ErrNotFound = errors.New("installation not found")

// Installation is one workspace's authorization record.
type Installation struct {
	TenantID        string    `json:"tenant_id"`
	TeamName        string    `json:"team_name"`
	BotToken        string    `json:"bot_token"`
	BotUserID       string    `json:"bot_user_id"`
	Scopes          string    `json:"scopes"`
	InstallerUserID string    `json:"installer_user_id"`
	InstalledAt     time.Time `json:"installed_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// InstallerToken is the installing user's personal token as returned
	// by the OAuth exchange. It is cleared by every Store implementation
	// before the record is persisted.
	InstallerToken string `json:"-"`
}

// sanitized returns a copy safe to persist: the installer token removed
// and timestamps filled in.
func (in Installation) sanitized(now time.Time) Installation {
	in.InstallerToken = ""
	if in.InstalledAt.IsZero() {
		in.InstalledAt = now
	}
	in.UpdatedAt = now
	return in
}

// Store is the credential store contract. Implementations must enforce
// the single-record-per-tenant invariant themselves; callers never
// check-then-insert.
type Store interface {
	// Upsert replaces any existing record for the tenant.
	Upsert(ctx context.Context, in Installation) error
	// Lookup returns the record for the tenant or ErrNotFound.
	Lookup(ctx context.Context, tenantID string) (*Installation, error)
	// List returns all installations, for reminder fan-out.
	List(ctx context.Context) ([]Installation, error)
	// Close releases underlying resources.
	Close()
}
