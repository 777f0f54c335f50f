package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeChallengeNotFound  = "CHALLENGE_NOT_FOUND"
	TextCodeChallengeExpired   = "CHALLENGE_EXPIRED"
	TextCodeChallengeMismatch  = "CHALLENGE_MISMATCH"
	TextCodeDeliveryFailed     = "CHALLENGE_DELIVERY_FAILED"
	TextCodeAccountInactive    = "ACCOUNT_INACTIVE"
)

// ErrIdentityNotFound is the error we return for not found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword is surfaced for any credential failure. It is
// deliberately non-specific: callers must not reveal whether the email or the
// password was wrong.
var ErrMismatchedHashAndPassword = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when the cooldown window is active.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrAccountInactive blocks authentication for suspended or disabled accounts.
var ErrAccountInactive = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for structurally valid but lapsed tokens.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for malformed, unknown, or tampered tokens.
var ErrTokenMalformed = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrChallengeNotFound means no live challenge exists for the email. A
// consumed challenge also reports not found on any later verify. The email
// is caller-supplied input, so this surfaces as a bad request rather than a
// missing resource.
var ErrChallengeNotFound = goerrors.New("no verification code pending for this email", goerrors.CategoryValidation).
	WithTextCode(TextCodeChallengeNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrChallengeExpired means the code lapsed; the caller should request a new one.
var ErrChallengeExpired = goerrors.New("verification code expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeChallengeExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrChallengeMismatch means the submitted code differs from the issued one.
var ErrChallengeMismatch = goerrors.New("verification code does not match", goerrors.CategoryValidation).
	WithTextCode(TextCodeChallengeMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrDeliveryFailed means the email collaborator errored. The challenge is
// still considered issued; the caller may retry delivery via resend.
var ErrDeliveryFailed = goerrors.New("could not deliver verification code", goerrors.CategoryOperation).
	WithTextCode(TextCodeDeliveryFailed).
	WithCode(goerrors.CodeInternal)

// ErrEmailTaken is returned when registration collides with an existing account.
var ErrEmailTaken = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString guards hashing of empty secrets.
var ErrNoEmptyString = goerrors.New("value should not be an empty string", goerrors.CategoryBadInput)

// ErrUnableToFindSession is the error when the request carries no session
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession means we could not decode claims from the token
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsCredentialError reports whether err should be presented as the generic
// invalid email or password message.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeInvalidCredentials
	}
	return false
}

// ChallengeTextCode extracts the challenge text code from err, or "" when err
// is not a challenge error. The UI uses it to pick between resend and retry
// prompts.
func ChallengeTextCode(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	switch richErr.TextCode {
	case TextCodeChallengeNotFound, TextCodeChallengeExpired, TextCodeChallengeMismatch, TextCodeDeliveryFailed:
		return richErr.TextCode
	}
	return ""
}
