package auth

// Kind classifies a flow failure for transport mapping: validation 400,
// authentication 401, authorization 403, not-found 404, conflict 409.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

// Error is a flow failure whose message is safe to show to the caller.
// Anything not wrapped in an Error is internal and reduces to a generic 500
// at the transport layer.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Failures surfaced by the auth flows. Credential failures share one generic
// message so responses never reveal whether an email or phone is registered.
var (
	ErrInvalidCredentials = &Error{KindAuthentication, "invalid email or password"}
	ErrAccountSuspended   = &Error{KindAuthentication, "account is suspended"}
	ErrInvalidRefresh     = &Error{KindAuthentication, "invalid refresh token"}
	ErrUnauthorized       = &Error{KindAuthentication, "unauthorized"}

	ErrEmailTaken = &Error{KindConflict, "an account with this email already exists"}
	ErrPhoneTaken = &Error{KindConflict, "an account with this phone number already exists"}

	ErrInvalidResetToken  = &Error{KindValidation, "invalid or expired reset token"}
	ErrInvalidVerifyToken = &Error{KindValidation, "invalid or expired verification token"}
	ErrInvalidPhoneCode   = &Error{KindValidation, "invalid verification code"}
	ErrMissingProvider    = &Error{KindValidation, "missing identity provider fields"}
	ErrInvalidRole        = &Error{KindValidation, "invalid role"}
)

func validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}
