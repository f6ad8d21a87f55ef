package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/fixrx/auth-service/internal/domain"
	"github.com/fixrx/auth-service/internal/repository"
	"github.com/google/uuid"
)

// SocialInput is a provider callback: an externally-verified profile plus,
// on the second phase of signup, the role the user picked.
type SocialInput struct {
	Provider  string
	Subject   string
	Email     string
	FirstName string
	LastName  string
	Role      domain.Role
	IP        string
}

// Outcome is the tagged result of a social login: either the caller is
// authenticated, or signup is parked until a role is chosen. Exactly one
// variant is returned; callers must handle both.
type Outcome interface{ isOutcome() }

// Authenticated is the terminal social-login outcome.
type Authenticated struct {
	Result *AuthResult
}

func (Authenticated) isOutcome() {}

// NeedsRoleSelection is the first half of two-phase signup: the provider
// profile is echoed back for the client to resubmit with a role. Nothing has
// been persisted.
type NeedsRoleSelection struct {
	Draft ProfileDraft
}

func (NeedsRoleSelection) isOutcome() {}

// ProfileDraft is the unpersisted provider profile carried across the
// role-selection round trip.
type ProfileDraft struct {
	Provider  string `json:"provider"`
	Subject   string `json:"providerId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// SocialLogin resolves a provider callback. Existing provider-linked
// accounts log straight in; a local account with the same email gets the
// provider linked (upgrade, not a second account); unknown identities go
// through two-phase signup, persisting only once a role is supplied.
func (s *Service) SocialLogin(ctx context.Context, input SocialInput) (Outcome, error) {
	if input.Provider == "" || input.Subject == "" || input.Email == "" {
		return nil, ErrMissingProvider
	}
	email := normalizeEmail(input.Email)

	user, err := s.users.FindByProviderID(ctx, input.Subject)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if user == nil {
		user, err = s.users.FindByEmail(ctx, email)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			user = nil
		} else if !user.HasExternalIdentity() {
			// Local account with a matching email: link the provider
			// identity to it instead of creating a duplicate.
			subject := input.Subject
			user.ProviderID = &subject
			if err := s.users.Save(ctx, user); err != nil {
				return nil, err
			}
		}
	}

	if user == nil {
		if input.Role == "" {
			return NeedsRoleSelection{Draft: ProfileDraft{
				Provider:  input.Provider,
				Subject:   input.Subject,
				Email:     email,
				FirstName: strings.TrimSpace(input.FirstName),
				LastName:  strings.TrimSpace(input.LastName),
			}}, nil
		}
		if !input.Role.Valid() {
			return nil, ErrInvalidRole
		}

		subject := input.Subject
		user = &domain.User{
			ID:            uuid.NewString(),
			Email:         email,
			ProviderID:    &subject,
			FirstName:     strings.TrimSpace(input.FirstName),
			LastName:      strings.TrimSpace(input.LastName),
			Role:          input.Role,
			Status:        domain.StatusPendingVerification,
			EmailVerified: true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	if user.Status == domain.StatusSuspended {
		return nil, ErrAccountSuspended
	}

	tokens, err := s.issueAndStorePair(ctx, user)
	if err != nil {
		return nil, err
	}

	return Authenticated{Result: &AuthResult{User: user, Tokens: tokens}}, nil
}
