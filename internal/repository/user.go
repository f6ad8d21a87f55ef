// Package repository is the GORM-backed credential store.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fixrx/auth-service/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("user not found")

// UserRepository is the credential-store contract consumed by the auth flows.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindByProviderID(ctx context.Context, providerID string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository wraps db in a UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	if err := user.ValidateCredentialInvariant(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.findOne(ctx, "phone = ?", phone)
}

func (r *userRepository) FindByProviderID(ctx context.Context, providerID string) (*domain.User, error) {
	return r.findOne(ctx, "provider_id = ?", providerID)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}
