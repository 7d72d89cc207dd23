package apperr

type Rule string

const (
	RuleRequired      Rule = "required"
	RuleTooLong       Rule = "too_long"
	RuleTooShort      Rule = "too_short"
	RuleInvalidFormat Rule = "invalid_format"
	RuleDuplicate     Rule = "duplicate"
	RuleMismatch      Rule = "mismatch"
	RuleForbidden     Rule = "forbidden"
	RuleInvalidState  Rule = "invalid_state"
	RuleNotFound      Rule = "not_found"
	RuleExpired       Rule = "expired"
)
