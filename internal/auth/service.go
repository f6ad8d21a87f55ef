// Package auth orchestrates the account lifecycle: registration, login,
// token refresh and rotation, logout, password reset, email and phone
// verification, and social sign-in. It composes the token manager, session
// cache, rate limiter, password hasher, credential store, and notification
// queue, all injected at construction.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fixrx/auth-service/internal/cache"
	"github.com/fixrx/auth-service/internal/domain"
	"github.com/fixrx/auth-service/internal/password"
	"github.com/fixrx/auth-service/internal/queue"
	"github.com/fixrx/auth-service/internal/rate"
	"github.com/fixrx/auth-service/internal/repository"
	"github.com/fixrx/auth-service/internal/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenPair is the access + refresh token bundle issued by every successful
// authentication.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Config carries flow-level tuning for the Service.
type Config struct {
	RefreshTTL    time.Duration
	ResetTokenTTL time.Duration
	VerifyTTL     time.Duration
	PhoneCodeTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = time.Hour
	}
	if c.VerifyTTL <= 0 {
		c.VerifyTTL = 24 * time.Hour
	}
	if c.PhoneCodeTTL <= 0 {
		c.PhoneCodeTTL = 10 * time.Minute
	}
	return c
}

// Service implements the auth flows. All dependencies are explicit; nothing
// here is a process-wide singleton.
type Service struct {
	users    repository.UserRepository
	tokens   *token.Manager
	store    cache.Store
	limiter  *rate.Limiter
	hasher   *password.Hasher
	provider IdentityProvider
	mail     *queue.Producer
	config   Config
	log      *zap.Logger
}

// NewService wires a Service. provider and mail may be nil: provider-backed
// logins then fail closed and notification publishing becomes a no-op.
func NewService(
	users repository.UserRepository,
	tokens *token.Manager,
	store cache.Store,
	limiter *rate.Limiter,
	hasher *password.Hasher,
	provider IdentityProvider,
	mail *queue.Producer,
	cfg Config,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		store:    store,
		limiter:  limiter,
		hasher:   hasher,
		provider: provider,
		mail:     mail,
		config:   cfg.withDefaults(),
		log:      log,
	}
}

// RegisterInput is the local-registration request.
type RegisterInput struct {
	Email     string
	Phone     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
	IP        string
}

// AuthResult is returned by every flow that ends authenticated.
type AuthResult struct {
	User   *domain.User `json:"user"`
	Tokens TokenPair    `json:"tokens"`
}

// Register creates a local account in PENDING_VERIFICATION, issues a token
// pair, records the refresh token as canonical, and enqueues the welcome /
// verification email.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, validation("email is required")
	}

	role := input.Role
	if role == "" {
		role = domain.RoleConsumer
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		if _, err := s.users.FindByPhone(ctx, phone); err == nil {
			return nil, ErrPhoneTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if err := password.Validate(input.Password); err != nil {
		return nil, validation(err.Error())
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         role,
		Status:       domain.StatusPendingVerification,
	}
	if phone != "" {
		user.Phone = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	tokens, err := s.issueAndStorePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.sendVerificationMail(ctx, user)

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// LoginInput is a login attempt. Password authenticates local accounts;
// IDToken authenticates provider-linked accounts.
type LoginInput struct {
	Email    string
	Password string
	IDToken  string
	IP       string
}

// Login authenticates a user and rotates their refresh token. Every failure
// mode except suspension collapses into the generic invalid-credentials
// error, and every attempt counts against the (IP, email) rate window.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)

	if err := s.limiter.Allow(ctx, input.IP, email); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	verifier, err := s.verifierFor(user, input)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := verifier.verify(ctx, user, input); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Status == domain.StatusSuspended {
		return nil, ErrAccountSuspended
	}

	if err := s.limiter.Reset(ctx, input.IP, email); err != nil {
		s.log.Warn("rate counter reset failed", zap.Error(err))
	}

	tokens, err := s.issueAndStorePair(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("last-login update failed", zap.String("user", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a rotated pair. The presented token
// must be cryptographically valid and byte-equal to the cached canonical
// token for that user; anything stale or replayed is rejected even if its
// signature checks out.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefresh
	}

	cached, err := s.store.Get(ctx, cache.RefreshKey(claims.Subject))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return TokenPair{}, ErrInvalidRefresh
		}
		return TokenPair{}, err
	}
	if cached != refreshToken {
		return TokenPair{}, ErrInvalidRefresh
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidRefresh
		}
		return TokenPair{}, err
	}
	if !user.Status.CanAuthenticate() {
		return TokenPair{}, ErrAccountSuspended
	}

	return s.issueAndStorePair(ctx, user)
}

// Logout drops the user's canonical refresh token. Logging out twice is not
// an error.
func (s *Service) Logout(ctx context.Context, userID string) error {
	_, err := s.store.Del(ctx, cache.RefreshKey(userID))
	return err
}

// VerifyAccess validates a bearer access token for the HTTP middleware.
func (s *Service) VerifyAccess(tokenStr string) (*token.Claims, error) {
	return s.tokens.VerifyAccess(tokenStr)
}

// Profile loads the credential record behind an authenticated request.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// issueAndStorePair signs a fresh access+refresh pair and records the
// refresh token as the user's only valid one. Storage is last-write-wins:
// concurrent issuance races leave exactly one canonical token, and the loser
// fails closed on its next refresh.
func (s *Service) issueAndStorePair(ctx context.Context, user *domain.User) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Email, string(user.Role), user.ProviderSubject())
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID, user.Email, string(user.Role), user.ProviderSubject())
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.store.Set(ctx, cache.RefreshKey(user.ID), refresh, s.config.RefreshTTL); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sendVerificationMail(ctx context.Context, user *domain.User) {
	verifyToken, err := s.tokens.IssueVerification(user.ID, user.Email, s.config.VerifyTTL)
	if err != nil {
		s.log.Error("verification token issue failed", zap.String("user", user.ID), zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, cache.EmailVerifyKey(user.ID), verifyToken, s.config.VerifyTTL); err != nil {
		s.log.Warn("verification token cache failed", zap.String("user", user.ID), zap.Error(err))
	}
	s.mail.Publish(ctx, queue.MailEvent{
		Type:   queue.EventUserRegistered,
		UserID: user.ID,
		Email:  user.Email,
		Token:  verifyToken,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
