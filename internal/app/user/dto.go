package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a client may pick this role at
// registration time. Admin accounts are provisioned out of band.
func (r Role) SelfAssignable() bool {
	switch r {
	case RoleBuyer, RoleSeller:
		return true
	}
	return false
}

// User is the sanitized record; the password hash travels separately and
// never leaves the service layer.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type CreateUserReq struct {
	Email     string
	FirstName string
	LastName  string
	Role      Role
	Password  []byte `json:"-"`
}
