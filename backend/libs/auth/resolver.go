package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnauthorized covers missing, malformed, invalid or expired credentials.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden is returned when a non-privileged caller asks for another tenant.
	ErrForbidden = errors.New("auth: forbidden")
)

// Session is the outcome of a handshake: who called, and which tenant the
// request or connection is scoped to for its whole lifetime.
type Session struct {
	Identity
	EffectiveTenantID uuid.UUID
}

// Impersonating reports whether the effective tenant differs from the caller's own.
func (s Session) Impersonating() bool {
	return s.EffectiveTenantID != s.TenantID
}

// Resolver turns bearer credentials into identities.
type Resolver struct {
	tokens *TokenService
}

// NewResolver returns resolver backed by token service.
func NewResolver(tokens *TokenService) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve validates the credential.
func (r *Resolver) Resolve(credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, fmt.Errorf("%w: missing credential", ErrUnauthorized)
	}
	identity, err := r.tokens.ValidateToken(credential)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return identity, nil
}

// BeginSession resolves the credential and fixes the effective tenant.
// A privileged caller with a valid impersonation directive is scoped to the
// directive's tenant. A non-privileged caller naming a tenant other than its
// own is rejected.
func (r *Resolver) BeginSession(credential, impersonate string) (Session, error) {
	identity, err := r.Resolve(credential)
	if err != nil {
		return Session{}, err
	}

	session := Session{Identity: identity, EffectiveTenantID: identity.TenantID}

	impersonate = strings.TrimSpace(impersonate)
	if impersonate == "" {
		return session, nil
	}

	target, err := uuid.Parse(impersonate)
	if err != nil {
		return Session{}, fmt.Errorf("%w: invalid tenant directive", ErrForbidden)
	}
	if target == identity.TenantID {
		return session, nil
	}
	if !identity.Privileged() {
		return Session{}, fmt.Errorf("%w: tenant mismatch", ErrForbidden)
	}

	session.EffectiveTenantID = target
	return session, nil
}
