package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/risk-alert-api/internal/models"
)

// UserRepository provides access to student and mentor accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
	UpsertByEmail(ctx context.Context, email string, defaults models.User) (models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}

	return users, nil
}

// UpsertByEmail returns the user with the given email, creating it from defaults on first sight.
// Existing users are returned untouched.
func (r *userRepository) UpsertByEmail(ctx context.Context, email string, defaults models.User) (models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := r.db.WithContext(ctx).
		Where(models.User{Email: normalized}).
		Attrs(models.User{Name: defaults.Name, Role: defaults.Role}).
		FirstOrCreate(&user).Error
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}
