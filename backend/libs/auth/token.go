package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin is the privileged role allowed to impersonate other tenants.
const RoleAdmin = "admin"

// Claims represents JWT payload shared by the services.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller.
type Identity struct {
	CallerID uuid.UUID
	TenantID uuid.UUID
	Role     string
}

// Privileged reports whether the caller may act on behalf of other tenants.
func (i Identity) Privileged() bool {
	return i.Role == RoleAdmin
}

// TokenService signs and validates HS256 tokens.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewTokenService returns configured token service.
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn, now: time.Now}
}

// GenerateToken issues a token for the identity. Used by tooling and tests;
// issuing tokens to end users belongs to the auth service.
func (t *TokenService) GenerateToken(identity Identity) (string, error) {
	if identity.CallerID == uuid.Nil {
		return "", errors.New("token: caller id is required")
	}

	now := t.now().UTC()
	claims := Claims{
		TenantID: identity.TenantID.String(),
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.CallerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken verifies signature and expiry and decodes the identity.
func (t *TokenService) ValidateToken(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(t.now))
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("token: invalid claims")
	}

	callerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("token: subject: %w", err)
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return Identity{}, fmt.Errorf("token: tenant_id: %w", err)
	}

	return Identity{CallerID: callerID, TenantID: tenantID, Role: claims.Role}, nil
}
