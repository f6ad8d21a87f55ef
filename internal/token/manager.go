// Package token issues and verifies the signed access and refresh tokens used
// by the auth flows. Access and refresh tokens are signed with distinct
// secrets so a leaked secret compromises only one class of token, and
// verification pins the signing algorithm, issuer, and audience.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned when a token's signature checks out but its
	// expiry has passed. Callers use it to prompt a refresh instead of a
	// forced re-login.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure: wrong
	// algorithm, wrong secret, wrong issuer or audience, malformed input.
	ErrTokenInvalid = errors.New("invalid token")
)

// Config defines signing parameters for a Manager. Both secrets are required
// and must differ.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the claim set carried by both token classes.
type Claims struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	ProviderID string `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: both secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token: issuer and audience are required")
	}
	return &Manager{config: cfg}, nil
}

// IssueAccess signs a short-lived access token for the given identity.
func (m *Manager) IssueAccess(userID, email, role, providerID string) (string, error) {
	return m.issueWithTTL(userID, email, role, providerID, m.config.AccessSecret, m.config.AccessTTL)
}

// IssueRefresh signs a refresh token with the refresh secret and the longer
// refresh TTL. The caller is responsible for recording it as the user's
// single canonical refresh token.
func (m *Manager) IssueRefresh(userID, email, role, providerID string) (string, error) {
	return m.issueWithTTL(userID, email, role, providerID, m.config.RefreshSecret, m.config.RefreshTTL)
}

// VerifyAccess parses and validates an access token.
func (m *Manager) VerifyAccess(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, m.config.AccessSecret)
}

// VerifyRefresh parses and validates a refresh token. Matching the token
// against the cached canonical one is the orchestrator's job.
func (m *Manager) VerifyRefresh(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, m.config.RefreshSecret)
}

// IssueVerification signs a one-time-use token (password reset, email
// verification) with the access secret and the given TTL. Single-use
// enforcement lives in the session cache, not in the token itself.
func (m *Manager) IssueVerification(userID, email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.config.AccessTTL
	}
	return m.issueWithTTL(userID, email, "", "", m.config.AccessSecret, ttl)
}

// VerifyVerification parses and validates a token produced by
// IssueVerification.
func (m *Manager) VerifyVerification(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, m.config.AccessSecret)
}

func (m *Manager) issueWithTTL(userID, email, role, providerID string, secret []byte, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("token: missing user id")
	}

	now := time.Now()
	claims := Claims{
		Email:      email,
		Role:       role,
		ProviderID: providerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) verify(tokenStr string, secret []byte) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
