// Package domain holds the credential record and the account-status state
// machine shared by the repository and the auth flows.
package domain

import (
	"errors"
	"time"
)

// Role fixes a user's authorization class at creation time.
type Role string

const (
	RoleConsumer Role = "CONSUMER"
	RoleVendor   Role = "VENDOR"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleConsumer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Status is the account lifecycle state: PENDING_VERIFICATION on local
// registration, ACTIVE after email verification, SUSPENDED by administrative
// action.
type Status string

const (
	StatusPendingVerification Status = "PENDING_VERIFICATION"
	StatusActive              Status = "ACTIVE"
	StatusSuspended           Status = "SUSPENDED"
)

// CanAuthenticate reports whether login and refresh are permitted in this
// state. PENDING_VERIFICATION accounts may authenticate; SUSPENDED may not.
func (s Status) CanAuthenticate() bool {
	return s == StatusActive || s == StatusPendingVerification
}

// ErrNoCredential is returned when a user record would carry neither a
// password hash nor an external identity provider id.
var ErrNoCredential = errors.New("user must have a password or a linked identity provider")

// User is the persisted credential record. Exactly one record exists per
// email; Phone and ProviderID are optional but unique when present.
type User struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	Phone         *string    `gorm:"uniqueIndex" json:"phone,omitempty"`
	PasswordHash  string     `gorm:"column:password_hash" json:"-"`
	ProviderID    *string    `gorm:"uniqueIndex" json:"-"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          Role       `gorm:"not null" json:"role"`
	Status        Status     `gorm:"not null;default:PENDING_VERIFICATION" json:"status"`
	EmailVerified bool       `gorm:"not null;default:false" json:"emailVerified"`
	PhoneVerified bool       `gorm:"not null;default:false" json:"phoneVerified"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// HasLocalPassword reports whether the account can be verified against a
// locally stored hash.
func (u *User) HasLocalPassword() bool { return u.PasswordHash != "" }

// HasExternalIdentity reports whether the account is linked to an external
// identity provider.
func (u *User) HasExternalIdentity() bool {
	return u.ProviderID != nil && *u.ProviderID != ""
}

// ProviderSubject returns the linked provider id, or "" when none is linked.
func (u *User) ProviderSubject() string {
	if u.ProviderID == nil {
		return ""
	}
	return *u.ProviderID
}

// ValidateCredentialInvariant enforces the rule that a record carries a
// password hash, a provider id, or both, never neither.
func (u *User) ValidateCredentialInvariant() error {
	if !u.HasLocalPassword() && !u.HasExternalIdentity() {
		return ErrNoCredential
	}
	return nil
}

// MarkEmailVerified applies the email-verification transition: the flag is
// set and a pending account becomes ACTIVE. Suspended accounts keep their
// status; verification does not lift a suspension.
func (u *User) MarkEmailVerified() {
	u.EmailVerified = true
	if u.Status == StatusPendingVerification {
		u.Status = StatusActive
	}
}
