package identity

import (
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// PasswordRequirement identifies one unmet password policy rule.
type PasswordRequirement string

const (
	PasswordTooShort         PasswordRequirement = "too_short"
	PasswordMissingUppercase PasswordRequirement = "missing_uppercase"
	PasswordMissingLowercase PasswordRequirement = "missing_lowercase"
	PasswordMissingDigit     PasswordRequirement = "missing_digit"
)

// MinPasswordLength is the policy minimum.
const MinPasswordLength = 8

// ValidateEmail checks the value has a standard email shape. Pure, no I/O;
// safe to call on every keystroke.
func ValidateEmail(value string) error {
	return validation.Validate(value, validation.Required, is.Email)
}

// ValidatePassword evaluates every policy rule and reports ALL unmet
// requirements at once, so a caller can render a live checklist rather than
// fixing one rule at a time. An empty slice means the password is accepted.
func ValidatePassword(value string) []PasswordRequirement {
	var unmet []PasswordRequirement

	if len(value) < MinPasswordLength {
		unmet = append(unmet, PasswordTooShort)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		unmet = append(unmet, PasswordMissingUppercase)
	}
	if !hasLower {
		unmet = append(unmet, PasswordMissingLowercase)
	}
	if !hasDigit {
		unmet = append(unmet, PasswordMissingDigit)
	}

	return unmet
}

// ValidateConfirmation checks the confirmation matches the original secret.
func ValidateConfirmation(value, original string) error {
	return validation.Validate(value, validation.Required, validation.By(ValidateStringEquals(original)))
}

// ValidateStringEquals builds an ozzo rule asserting equality with str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return goerrors.New("must be a string", goerrors.CategoryBadInput)
		}
		if s != str {
			return goerrors.New("values do not match", goerrors.CategoryValidation)
		}
		return nil
	}
}

// PasswordPolicyRule adapts ValidatePassword into an ozzo rule for use in
// request payload validation.
func PasswordPolicyRule() validation.RuleFunc {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return goerrors.New("must be a string", goerrors.CategoryBadInput)
		}
		if unmet := ValidatePassword(s); len(unmet) > 0 {
			return goerrors.New("password does not meet requirements", goerrors.CategoryValidation).
				WithMetadata(map[string]any{"unmet": unmet})
		}
		return nil
	}
}
