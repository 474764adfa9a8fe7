// Package auth resolves tenant identifiers to usable bot credentials.
// It sits between the inbound transport and the pipeline: every
// authorized action starts with a Resolve call.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/crestline/triagebot/pkg/store"
)

// AuthorizationError means the tenant has no installation record. It is
// distinct from store connectivity failures, which Resolve wraps and
// returns unchanged in kind.
type AuthorizationError struct {
	TenantID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("no matching authorization for tenant %s", e.TenantID)
}

// Credential is the subset of an installation the pipeline needs to act
// on a tenant's behalf.
type Credential struct {
	TenantID        string
	TeamName        string
	BotToken        string
	BotUserID       string
	InstallerUserID string
}

// Resolver looks up credentials in the store. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	store store.Store
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the tenant's bot credential. A missing installation
// yields *AuthorizationError; any other store failure is wrapped so the
// caller can tell "no install" from "store unavailable".
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*Credential, error) {
	rec, err := r.store.Lookup(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &AuthorizationError{TenantID: tenantID}
	}
	if err != nil {
		return nil, fmt.Errorf("credential lookup for tenant %s: %w", tenantID, err)
	}
	return &Credential{
		TenantID:        rec.TenantID,
		TeamName:        rec.TeamName,
		BotToken:        rec.BotToken,
		BotUserID:       rec.BotUserID,
		InstallerUserID: rec.InstallerUserID,
	}, nil
}
