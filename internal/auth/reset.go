package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"github.com/fixrx/auth-service/internal/cache"
	"github.com/fixrx/auth-service/internal/password"
	"github.com/fixrx/auth-service/internal/queue"
	"github.com/fixrx/auth-service/internal/repository"
	"go.uber.org/zap"
)

// ForgotPassword issues a reset token for the account behind email and
// enqueues the reset mail. It reports success whether or not the account
// exists, so the response never confirms registration. Suspension is not
// checked here: a suspended account may still start a reset.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	resetToken, err := s.tokens.IssueVerification(user.ID, user.Email, s.config.ResetTokenTTL)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, cache.ResetKey(user.ID), resetToken, s.config.ResetTokenTTL); err != nil {
		return err
	}

	s.mail.Publish(ctx, queue.MailEvent{
		Type:   queue.EventPasswordResetRequested,
		UserID: user.ID,
		Email:  user.Email,
		Token:  resetToken,
	})

	return nil
}

// ResetPassword consumes a reset token and installs a new password. The
// token must be validly signed and equal to the cached entry for its user;
// the entry is deleted on success, so each token works exactly once. The
// user's refresh token is revoked as well, forcing re-login everywhere.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.tokens.VerifyVerification(resetToken)
	if err != nil {
		return ErrInvalidResetToken
	}

	cached, err := s.store.Get(ctx, cache.ResetKey(claims.Subject))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrInvalidResetToken
		}
		return err
	}
	if cached != resetToken {
		return ErrInvalidResetToken
	}

	if err := password.Validate(newPassword); err != nil {
		return validation(err.Error())
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}

	if _, err := s.store.Del(ctx, cache.ResetKey(user.ID), cache.RefreshKey(user.ID)); err != nil {
		s.log.Warn("reset cleanup failed", zap.String("user", user.ID), zap.Error(err))
	}

	return nil
}

// VerifyEmail consumes an email-verification token: the user's email is
// marked verified and a pending account becomes ACTIVE. Single-use via the
// cached entry.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) error {
	claims, err := s.tokens.VerifyVerification(verifyToken)
	if err != nil {
		return ErrInvalidVerifyToken
	}

	cached, err := s.store.Get(ctx, cache.EmailVerifyKey(claims.Subject))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrInvalidVerifyToken
		}
		return err
	}
	if cached != verifyToken {
		return ErrInvalidVerifyToken
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidVerifyToken
		}
		return err
	}

	user.MarkEmailVerified()
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}

	if _, err := s.store.Del(ctx, cache.EmailVerifyKey(user.ID)); err != nil {
		s.log.Warn("verification token cleanup failed", zap.String("user", user.ID), zap.Error(err))
	}

	return nil
}

// RequestPhoneCode generates a 6-digit code for phone and caches it for the
// configured window. Sending the SMS is an external collaborator's job; the
// code is returned only to that dispatch path, never to the requester.
func (s *Service) RequestPhoneCode(ctx context.Context, phone string) error {
	if phone == "" {
		return validation("phone is required")
	}
	if _, err := s.users.FindByPhone(ctx, phone); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Uniform success, same as forgot-password.
			return nil
		}
		return err
	}

	code, err := randomDigits(6)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, cache.PhoneCodeKey(phone), code, s.config.PhoneCodeTTL); err != nil {
		return err
	}

	s.log.Info("phone verification code issued", zap.String("phone", phone))
	return nil
}

// VerifyPhone compares the submitted code with the cached one. A match marks
// the phone verified and deletes the code; a mismatch leaves the code in
// place so the user can retry within the TTL.
func (s *Service) VerifyPhone(ctx context.Context, phone, code string) error {
	cached, err := s.store.Get(ctx, cache.PhoneCodeKey(phone))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrInvalidPhoneCode
		}
		return err
	}

	if subtle.ConstantTimeCompare([]byte(cached), []byte(code)) != 1 {
		return ErrInvalidPhoneCode
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidPhoneCode
		}
		return err
	}

	user.PhoneVerified = true
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}

	if _, err := s.store.Del(ctx, cache.PhoneCodeKey(phone)); err != nil {
		s.log.Warn("phone code cleanup failed", zap.String("user", user.ID), zap.Error(err))
	}

	return nil
}

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	digits := make([]byte, n)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}
