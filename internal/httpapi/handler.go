// Package httpapi exposes the auth flows over REST. Responses use the
// {success, message, data} envelope throughout.
package httpapi

import (
	"github.com/fixrx/auth-service/internal/auth"
	"github.com/fixrx/auth-service/internal/domain"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler holds the HTTP handlers for the auth endpoints.
type Handler struct {
	svc *auth.Service
	log *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *auth.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// SetupRoutes registers every auth endpoint on app.
func (h *Handler) SetupRoutes(app *fiber.App) {
	app.Get("/health", h.Health)

	api := app.Group("/api/auth")

	api.Post("/register", h.Register)
	api.Post("/login", h.Login)
	api.Post("/refresh", h.Refresh)
	api.Post("/forgot-password", h.ForgotPassword)
	api.Post("/reset-password", h.ResetPassword)
	api.Post("/verify-email", h.VerifyEmail)
	api.Post("/verify-phone/request", h.RequestPhoneCode)
	api.Post("/verify-phone", h.VerifyPhone)
	api.Post("/social", h.SocialLogin)

	protected := api.Use(RequireAuth(h.svc))
	protected.Post("/logout", h.Logout)
	protected.Delete("/logout", h.Logout)
	protected.Get("/me", h.Me)
}

// Health is the liveness probe.
func (h *Handler) Health(c *fiber.Ctx) error {
	return okMessage(c, "healthy")
}

type registerRequest struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.svc.Register(c.Context(), auth.RegisterInput{
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.Role(req.Role),
		IP:        c.IP(),
	})
	if err != nil {
		return failFrom(c, h.log, err)
	}

	return ok(c, fiber.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IDToken  string `json:"idToken"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.svc.Login(c.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IDToken:  req.IDToken,
		IP:       c.IP(),
	})
	if err != nil {
		return failFrom(c, h.log, err)
	}

	return ok(c, fiber.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/auth/refresh.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return fail(c, fiber.StatusBadRequest, "refresh token is required")
	}

	tokens, err := h.svc.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return failFrom(c, h.log, err)
	}

	return ok(c, fiber.StatusOK, fiber.Map{"tokens": tokens})
}

// Logout handles POST and DELETE /api/auth/logout.
func (h *Handler) Logout(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	if claims == nil {
		return fail(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.svc.Logout(c.Context(), claims.Subject); err != nil {
		return failFrom(c, h.log, err)
	}

	return okMessage(c, "logged out")
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	if claims == nil {
		return fail(c, fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.svc.Profile(c.Context(), claims.Subject)
	if err != nil {
		return failFrom(c, h.log, err)
	}

	return ok(c, fiber.StatusOK, fiber.Map{"user": user})
}

type emailRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is the
// same whether or not the email is registered.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return fail(c, fiber.StatusBadRequest, "email is required")
	}

	if err := h.svc.ForgotPassword(c.Context(), req.Email); err != nil {
		return failFrom(c, h.log, err)
	}

	return okMessage(c, "if the email is registered, a reset link has been sent")
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return fail(c, fiber.StatusBadRequest, "reset token is required")
	}

	if err := h.svc.ResetPassword(c.Context(), req.Token, req.Password); err != nil {
		return failFrom(c, h.log, err)
	}

	return okMessage(c, "password updated")
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return fail(c, fiber.StatusBadRequest, "verification token is required")
	}

	if err := h.svc.VerifyEmail(c.Context(), req.Token); err != nil {
		return failFrom(c, h.log, err)
	}

	return okMessage(c, "email verified")
}

type phoneRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// RequestPhoneCode handles POST /api/auth/verify-phone/request.
func (h *Handler) RequestPhoneCode(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil || req.Phone == "" {
		return fail(c, fiber.StatusBadRequest, "phone is required")
	}

	if err := h.svc.RequestPhoneCode(c.Context(), req.Phone); err != nil {
		return failFrom(c, h.log, err)
	}

	return okMessage(c, "verification code sent")
}

// VerifyPhone handles POST /api/auth/verify-phone.
func (h *Handler) VerifyPhone(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil || req.Phone == "" || req.Code == "" {
		return fail(c, fiber.StatusBadRequest, "phone and code are required")
	}

	if err := h.svc.VerifyPhone(c.Context(), req.Phone, req.Code); err != nil {
		return failFrom(c, h.log, err)
	}

	return okMessage(c, "phone verified")
}

type socialRequest struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
}

// SocialLogin handles POST /api/auth/social. When the identity is unknown
// and no role was supplied the response carries the profile draft back for
// role selection instead of tokens.
func (h *Handler) SocialLogin(c *fiber.Ctx) error {
	var req socialRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := h.svc.SocialLogin(c.Context(), auth.SocialInput{
		Provider:  req.Provider,
		Subject:   req.ProviderID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.Role(req.Role),
		IP:        c.IP(),
	})
	if err != nil {
		return failFrom(c, h.log, err)
	}

	switch v := outcome.(type) {
	case auth.Authenticated:
		return ok(c, fiber.StatusOK, v.Result)
	case auth.NeedsRoleSelection:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success":            true,
			"needsRoleSelection": true,
			"tempUserData":       v.Draft,
		})
	default:
		h.log.Error("unknown social login outcome")
		return fail(c, fiber.StatusInternalServerError, "internal server error")
	}
}
