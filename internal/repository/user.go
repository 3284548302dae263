package repository

import (
	"context"
	"errors"

	"mutaengine_back_end/internal/models"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByUsernameOrEmail cherche d'abord par username puis par email
	FindByUsernameOrEmail(ctx context.Context, identity string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{db: db}
}

func (r *userRepoImpl) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepoImpl) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepoImpl) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepoImpl) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepoImpl) FindByUsernameOrEmail(ctx context.Context, identity string) (*models.User, error) {
	user, err := r.first(ctx, "username = ?", identity)
	if errors.Is(err, ErrUserNotFound) {
		return r.first(ctx, "email = ?", identity)
	}
	return user, err
}

func (r *userRepoImpl) count(ctx context.Context, query string, arg any) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where(query, arg).Count(&count).Error
	return count > 0, err
}

func (r *userRepoImpl) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.count(ctx, "username = ?", username)
}

func (r *userRepoImpl) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.count(ctx, "email = ?", email)
}

func (r *userRepoImpl) UpdatePassword(ctx context.Context, id, hash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
