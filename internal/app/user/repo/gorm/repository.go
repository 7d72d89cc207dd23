package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/crealith/authcore/internal/app/user"
	"github.com/crealith/authcore/internal/infrastructure/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *gormRepo {
	return &gormRepo{db: db}
}

func (r *gormRepo) CreateUser(ctx context.Context, req user.CreateUserReq, id uuid.UUID, passwordHash string) error {
	model := &userModel{
		ID:           id,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         string(req.Role),
	}

	err := r.db.WithContext(ctx).Create(model).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == db.DuplicateCode {
			err = user.ErrUserWithEmailAlreadyExists()
		}
		return fmt.Errorf("gormRepo.CreateUser: %w", err)
	}

	return nil
}

func (r *gormRepo) GetUser(ctx context.Context, id uuid.UUID) (user.User, string, error) {
	model := userModel{}

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = user.ErrUserNotFound()
		}
		return user.User{}, "", fmt.Errorf("gormRepo.GetUser: %w", err)
	}

	return model.toDTO(), model.PasswordHash, nil
}

func (r *gormRepo) GetUserByEmail(ctx context.Context, email string) (user.User, string, error) {
	model := userModel{}

	err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = user.ErrUserNotFound()
		}
		return user.User{}, "", fmt.Errorf("gormRepo.GetUserByEmail: %w", err)
	}

	return model.toDTO(), model.PasswordHash, nil
}

func (r *gormRepo) ChangePassword(ctx context.Context, id uuid.UUID, newPasswordHash string) error {
	result := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("id = ?", id).
		Update("password_hash", newPasswordHash)
	if result.Error != nil {
		return fmt.Errorf("gormRepo.ChangePassword: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.ChangePassword: %w", user.ErrUserNotFound())
	}

	return nil
}
