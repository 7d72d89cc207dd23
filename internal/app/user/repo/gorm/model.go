package gorm

import (
	"time"

	"github.com/crealith/authcore/internal/app/user"
	"github.com/crealith/authcore/internal/infrastructure/db"
	"github.com/google/uuid"
)

type userModel struct {
	db.Base
	ID           uuid.UUID `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex"`
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
}

func (userModel) TableName() string { return "users" }

func (u *userModel) toDTO() user.User {
	var deletedAt *time.Time
	if u.DeletedAt.Valid {
		deletedAt = &u.DeletedAt.Time
	}

	return user.User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      user.Role(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		DeletedAt: deletedAt,
	}
}
