package auth

import (
	"context"
	"errors"

	"github.com/fixrx/auth-service/internal/domain"
	"github.com/fixrx/auth-service/internal/password"
)

// ExternalProfile is the identity asserted by an external provider after it
// has validated a client-supplied credential (an OAuth id token).
type ExternalProfile struct {
	Provider  string
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// IdentityProvider validates provider credentials. It is an external
// collaborator; tests substitute a fake.
type IdentityProvider interface {
	VerifyIDToken(ctx context.Context, idToken string) (*ExternalProfile, error)
}

// credentialVerifier checks a login attempt against one credential class.
// Dispatch happens once, on the account's capabilities, instead of
// re-deciding local-vs-provider at every call site.
type credentialVerifier interface {
	verify(ctx context.Context, user *domain.User, input LoginInput) error
}

type localPasswordVerifier struct {
	hasher *password.Hasher
}

func (v *localPasswordVerifier) verify(_ context.Context, user *domain.User, input LoginInput) error {
	if input.Password == "" {
		return ErrInvalidCredentials
	}
	ok, err := v.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	return nil
}

type providerVerifier struct {
	provider IdentityProvider
}

func (v *providerVerifier) verify(ctx context.Context, user *domain.User, input LoginInput) error {
	if v.provider == nil || input.IDToken == "" {
		return ErrInvalidCredentials
	}
	profile, err := v.provider.VerifyIDToken(ctx, input.IDToken)
	if err != nil || profile == nil {
		return ErrInvalidCredentials
	}
	if profile.Subject != user.ProviderSubject() {
		return ErrInvalidCredentials
	}
	return nil
}

var errNoVerifier = errors.New("account has no usable credential")

// verifierFor picks the credential path for a login attempt. Accounts with a
// local hash take the password path; provider-only accounts delegate to the
// identity provider.
func (s *Service) verifierFor(user *domain.User, input LoginInput) (credentialVerifier, error) {
	switch {
	case user.HasLocalPassword() && input.Password != "":
		return &localPasswordVerifier{hasher: s.hasher}, nil
	case user.HasExternalIdentity():
		return &providerVerifier{provider: s.provider}, nil
	case user.HasLocalPassword():
		return &localPasswordVerifier{hasher: s.hasher}, nil
	default:
		return nil, errNoVerifier
	}
}
