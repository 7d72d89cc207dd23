package user

import (
	"fmt"

	"github.com/crealith/authcore/internal/infrastructure/apperr"
)

const (
	CodeValidationFailed apperr.Code = "user/validation_failed"
	CodeNotFound         apperr.Code = "user/not_found"
	CodeEmailDuplicate   apperr.Code = "user/email_duplicate"
	CodeSamePassword     apperr.Code = "user/same_password"
)

const (
	FieldEmail     apperr.Field = "email"
	FieldFirstName apperr.Field = "first_name"
	FieldLastName  apperr.Field = "last_name"
	FieldPassword  apperr.Field = "password"
	FieldRole      apperr.Field = "role"
	FieldUserID    apperr.Field = "user_id"
	FieldUser      apperr.Field = "user"
)

// Validation errors

func ErrInvalidEmail() error {
	return apperr.New("Invalid email", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldEmail, Rule: apperr.RuleInvalidFormat,
		})
}

func ErrNameEmpty(field apperr.Field) error {
	return apperr.New("Name cannot be empty", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: field, Rule: apperr.RuleRequired,
		})
}

func ErrNameTooLong(field apperr.Field, max int) error {
	return apperr.New("Name is too long", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: field, Rule: apperr.RuleTooLong, Params: map[string]any{"max": max},
		})
}

func ErrEmailTooLong(max int) error {
	return apperr.New("Email is too long", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldEmail, Rule: apperr.RuleTooLong, Params: map[string]any{"max": max},
		})
}

func ErrInvalidRole() error {
	return apperr.New("Invalid role", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldRole, Rule: apperr.RuleInvalidFormat,
		})
}

func ErrRoleNotSelfAssignable() error {
	return apperr.New("Role cannot be chosen at registration", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldRole, Rule: apperr.RuleForbidden,
		})
}

func ErrPasswordTooShort(min int) error {
	return apperr.New("password is too short", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldPassword, Rule: apperr.RuleTooShort, Params: map[string]any{"min": min},
		}).WithUserMessage(fmt.Sprintf("Password must be at least %d characters", min))
}

func ErrPasswordTooLong(max int) error {
	return apperr.New("password is too long", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldPassword, Rule: apperr.RuleTooLong, Params: map[string]any{"max": max},
		}).WithUserMessage(fmt.Sprintf("Password must be at most %d characters", max))
}

// Business logic errors

func ErrUserNotFound() error {
	return apperr.New("User not found", CodeNotFound, apperr.ClassNotFound, apperr.LogLevelWarn)
}

func ErrUserWithEmailAlreadyExists() error {
	return apperr.New("User with this email already exists", CodeEmailDuplicate, apperr.ClassConflict, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldEmail, Rule: apperr.RuleDuplicate,
		})
}

func ErrSamePassword() error {
	return apperr.New("New password must differ from the current one", CodeSamePassword, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field: FieldPassword, Rule: apperr.RuleMismatch,
		})
}
