package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fixrx/auth-service/internal/cache"
	"github.com/fixrx/auth-service/internal/domain"
)

func (e *testEnv) resetTokenFor(t *testing.T, userID string) string {
	t.Helper()

	tok, err := e.store.Get(context.Background(), cache.ResetKey(userID))
	if err != nil {
		t.Fatalf("reset token not cached: %v", err)
	}
	return tok
}

func TestPasswordResetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com")

	if err := env.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	resetToken := env.resetTokenFor(t, res.User.ID)

	if err := env.svc.ResetPassword(ctx, resetToken, "Fresh-Horse7!"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// Old password is gone, new one works.
	if _, err := env.svc.Login(ctx, LoginInput{
		Email:    "alice@example.com",
		Password: "Correct-Horse9",
		IP:       "1.2.3.4",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := env.svc.Login(ctx, LoginInput{
		Email:    "alice@example.com",
		Password: "Fresh-Horse7!",
		IP:       "5.6.7.8",
	}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestResetTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com")
	env.svc.ForgotPassword(ctx, "alice@example.com")
	resetToken := env.resetTokenFor(t, res.User.ID)

	if err := env.svc.ResetPassword(ctx, resetToken, "Fresh-Horse7!"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if err := env.svc.ResetPassword(ctx, resetToken, "Another-Horse5!"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("consumed token accepted again: %v", err)
	}
}

func TestResetPasswordRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com")
	env.svc.ForgotPassword(ctx, "alice@example.com")

	if err := env.svc.ResetPassword(ctx, env.resetTokenFor(t, res.User.ID), "Fresh-Horse7!"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// Sessions issued before the reset no longer refresh.
	if _, err := env.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("pre-reset refresh token accepted: %v", err)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	// Uniform success: the response never confirms whether the email is
	// registered.
	if err := env.svc.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("ForgotPassword for unknown email failed: %v", err)
	}
}

func TestForgotPasswordSuspendedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com")
	user, _ := env.repo.FindByID(ctx, res.User.ID)
	user.Status = domain.StatusSuspended
	env.repo.Save(ctx, user)

	// Suspension blocks login, not password recovery.
	if err := env.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword for suspended account failed: %v", err)
	}
	env.resetTokenFor(t, res.User.ID)
}

func TestResetPasswordWeakPasswordKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com")
	env.svc.ForgotPassword(ctx, "alice@example.com")
	resetToken := env.resetTokenFor(t, res.User.ID)

	err := env.svc.ResetPassword(ctx, resetToken, "weak")
	var flowErr *Error
	if !errors.As(err, &flowErr) || flowErr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	// The rejected attempt must not consume the token.
	if err := env.svc.ResetPassword(ctx, resetToken, "Fresh-Horse7!"); err != nil {
		t.Fatalf("token consumed by a rejected attempt: %v", err)
	}
}

func TestResetTokenExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com")
	env.svc.ForgotPassword(ctx, "alice@example.com")
	resetToken := env.resetTokenFor(t, res.User.ID)

	env.redis.FastForward(2 * time.Hour)

	if err := env.svc.ResetPassword(ctx, resetToken, "Fresh-Horse7!"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestVerifyEmailActivatesAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.register(t, "alice@example.com")

	verifyToken, err := env.store.Get(ctx, cache.EmailVerifyKey(res.User.ID))
	if err != nil {
		t.Fatalf("verification token not cached at registration: %v", err)
	}

	if err := env.svc.VerifyEmail(ctx, verifyToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	user, _ := env.repo.FindByID(ctx, res.User.ID)
	if !user.EmailVerified {
		t.Fatal("EmailVerified not set")
	}
	if user.Status != domain.StatusActive {
		t.Fatalf("status = %q, want ACTIVE", user.Status)
	}

	if err := env.svc.VerifyEmail(ctx, verifyToken); !errors.Is(err, ErrInvalidVerifyToken) {
		t.Fatalf("consumed verification token accepted again: %v", err)
	}
}

func TestPhoneVerificationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	phone := "+15550001111"
	if _, err := env.svc.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Phone:    phone,
		Password: "Correct-Horse9",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := env.svc.RequestPhoneCode(ctx, phone); err != nil {
		t.Fatalf("RequestPhoneCode failed: %v", err)
	}
	code, err := env.store.Get(ctx, cache.PhoneCodeKey(phone))
	if err != nil {
		t.Fatalf("code not cached: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code = %q, want 6 digits", code)
	}

	// A wrong guess is rejected and must not burn the real code.
	if err := env.svc.VerifyPhone(ctx, phone, "000000"); code == "000000" || !errors.Is(err, ErrInvalidPhoneCode) {
		t.Fatalf("wrong code: %v", err)
	}
	if _, err := env.store.Get(ctx, cache.PhoneCodeKey(phone)); err != nil {
		t.Fatalf("wrong guess consumed the code: %v", err)
	}

	if err := env.svc.VerifyPhone(ctx, phone, code); err != nil {
		t.Fatalf("VerifyPhone failed: %v", err)
	}

	user, _ := env.repo.FindByPhone(ctx, phone)
	if !user.PhoneVerified {
		t.Fatal("PhoneVerified not set")
	}

	// The matched code is gone.
	if err := env.svc.VerifyPhone(ctx, phone, code); !errors.Is(err, ErrInvalidPhoneCode) {
		t.Fatalf("consumed code accepted again: %v", err)
	}
}

func TestRequestPhoneCodeUnknownPhone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Uniform success, no code cached.
	if err := env.svc.RequestPhoneCode(ctx, "+15559999999"); err != nil {
		t.Fatalf("RequestPhoneCode for unknown phone failed: %v", err)
	}
	if _, err := env.store.Get(ctx, cache.PhoneCodeKey("+15559999999")); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("code cached for unknown phone: %v", err)
	}
}

func TestPhoneCodeExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	phone := "+15550001111"
	if _, err := env.svc.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Phone:    phone,
		Password: "Correct-Horse9",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	env.svc.RequestPhoneCode(ctx, phone)
	code, _ := env.store.Get(ctx, cache.PhoneCodeKey(phone))

	env.redis.FastForward(11 * time.Minute)

	if err := env.svc.VerifyPhone(ctx, phone, code); !errors.Is(err, ErrInvalidPhoneCode) {
		t.Fatalf("expired code accepted: %v", err)
	}
}
