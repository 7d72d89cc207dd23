package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/crealith/authcore/internal/infrastructure/apperr"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	CreateUser(ctx context.Context, req CreateUserReq, id uuid.UUID, passwordHash string) error
	GetUser(ctx context.Context, id uuid.UUID) (User, string, error)
	GetUserByEmail(ctx context.Context, email string) (User, string, error)
	ChangePassword(ctx context.Context, id uuid.UUID, newPasswordHash string) error
}

type IDGenerator interface {
	New() (uuid.UUID, error)
}

type PasswordHasher interface {
	HashPassword(password []byte, cost int) ([]byte, error)
}

type Config struct {
	PasswordHashCost int `mapstructure:"password_hash_cost" json:"password_hash_cost"`

	MaxNameLength     int `mapstructure:"max_name_length" json:"max_name_length"`
	MaxEmailLength    int `mapstructure:"max_email_length" json:"max_email_length"`
	MinPasswordLength int `mapstructure:"min_password_length" json:"min_password_length"`
	MaxPasswordLength int `mapstructure:"max_password_length" json:"max_password_length"`
}

type core struct {
	repo           Repository
	idGenerator    IDGenerator
	passwordHasher PasswordHasher
	cfg            Config
}

func NewCore(repo Repository, idGenerator IDGenerator, passwordHasher PasswordHasher, cfg Config) (*core, error) {
	if cfg.PasswordHashCost < bcrypt.MinCost || cfg.PasswordHashCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("user.NewCore: Config.PasswordHashCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.MaxNameLength <= 0 || cfg.MaxEmailLength <= 0 || cfg.MinPasswordLength <= 0 ||
		cfg.MaxPasswordLength < cfg.MinPasswordLength {
		return nil, fmt.Errorf("user.NewCore: invalid validation config")
	}
	if idGenerator == nil || passwordHasher == nil || repo == nil {
		return nil, fmt.Errorf("user.NewCore: nil dependency")
	}

	return &core{repo: repo, cfg: cfg, idGenerator: idGenerator, passwordHasher: passwordHasher}, nil
}

func (c *core) CreateUser(ctx context.Context, req CreateUserReq) (User, error) {
	req.FirstName = normalizeName(req.FirstName)
	req.LastName = normalizeName(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = RoleBuyer
	}

	if err := c.validateCreate(req); err != nil {
		return User{}, fmt.Errorf("user.core.CreateUser: %w", err)
	}

	passwordHash, err := c.passwordHasher.HashPassword(req.Password, c.cfg.PasswordHashCost)
	if err != nil {
		return User{}, fmt.Errorf("user.core.CreateUser: %w", err)
	}

	id, err := c.idGenerator.New()
	if err != nil {
		return User{}, fmt.Errorf("user.core.CreateUser: %w", err)
	}
	if err = c.repo.CreateUser(ctx, req, id, string(passwordHash)); err != nil {
		return User{}, fmt.Errorf("user.core.CreateUser: %w", err)
	}

	created, _, err := c.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("user.core.CreateUser: %w", err)
	}

	return created, nil
}

func (c *core) GetUser(ctx context.Context, id uuid.UUID) (User, string, error) {
	if id == uuid.Nil {
		return User{}, "", fmt.Errorf("user.core.GetUser: %w", apperr.ErrNilUUID(FieldUserID))
	}

	usr, passwordHash, err := c.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, "", fmt.Errorf("user.core.GetUser: %w", err)
	}

	return usr, passwordHash, nil
}

func (c *core) GetUserByEmail(ctx context.Context, email string) (User, string, error) {
	email = NormalizeEmail(email)
	if err := c.validateEmail(email); err != nil {
		return User{}, "", fmt.Errorf("user.core.GetUserByEmail: %w", err)
	}

	usr, passwordHash, err := c.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, "", fmt.Errorf("user.core.GetUserByEmail: %w", err)
	}

	return usr, passwordHash, nil
}

func (c *core) ChangePassword(ctx context.Context, id uuid.UUID, newPassword []byte) error {
	if id == uuid.Nil {
		return fmt.Errorf("user.core.ChangePassword: %w", apperr.ErrNilUUID(FieldUserID))
	}
	if err := c.validatePassword(newPassword); err != nil {
		return fmt.Errorf("user.core.ChangePassword: %w", err)
	}

	passwordHash, err := c.passwordHasher.HashPassword(newPassword, c.cfg.PasswordHashCost)
	if err != nil {
		return fmt.Errorf("user.core.ChangePassword: %w", err)
	}

	if err = c.repo.ChangePassword(ctx, id, string(passwordHash)); err != nil {
		return fmt.Errorf("user.core.ChangePassword: %w", err)
	}

	return nil
}

// --- validation ---

func (c *core) validateCreate(req CreateUserReq) error {
	if req.FirstName == "" {
		return ErrNameEmpty(FieldFirstName)
	}
	if utf8.RuneCountInString(req.FirstName) > c.cfg.MaxNameLength {
		return ErrNameTooLong(FieldFirstName, c.cfg.MaxNameLength)
	}
	if req.LastName == "" {
		return ErrNameEmpty(FieldLastName)
	}
	if utf8.RuneCountInString(req.LastName) > c.cfg.MaxNameLength {
		return ErrNameTooLong(FieldLastName, c.cfg.MaxNameLength)
	}
	if !req.Role.Valid() {
		return ErrInvalidRole()
	}
	if err := c.validateEmail(req.Email); err != nil {
		return err
	}

	return c.validatePassword(req.Password)
}

func (c *core) validateEmail(address string) error {
	if utf8.RuneCountInString(address) > c.cfg.MaxEmailLength {
		return ErrEmailTooLong(c.cfg.MaxEmailLength)
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return ErrInvalidEmail()
	}

	return nil
}

func (c *core) validatePassword(password []byte) error {
	n := utf8.RuneCount(password)
	if n < c.cfg.MinPasswordLength {
		return ErrPasswordTooShort(c.cfg.MinPasswordLength)
	}
	if n > c.cfg.MaxPasswordLength {
		return ErrPasswordTooLong(c.cfg.MaxPasswordLength)
	}

	return nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func NormalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
