package identity

// TokenValidator validates raw bearer tokens and extracts claims without
// tying callers to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// RotatingTokenValidator accepts tokens signed with any of a set of keys,
// so sessions minted under a previous signing key survive a key rotation.
// Validators run in order; a malformed result means "try the next key",
// anything else (expired, inactive) is final.
type RotatingTokenValidator struct {
	validators []TokenValidator
}

// NewRotatingTokenValidator filters nil validators and returns a composite
// validator. The first validator should wrap the current signing key.
func NewRotatingTokenValidator(validators ...TokenValidator) *RotatingTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &RotatingTokenValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (m *RotatingTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if IsMalformedError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
