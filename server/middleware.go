package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"

	identity "github.com/fixcampus/go-identity"
)

// ProtectedConfig tunes the bearer token middleware.
type ProtectedConfig struct {
	Validator identity.TokenValidator
	// ContextKey is where validated claims land in fiber locals.
	ContextKey string
	AuthScheme string
	// RequiredRole demands an exact role match.
	RequiredRole string
	// MinimumRole demands at least this role in the hierarchy.
	MinimumRole string
	ErrorHandler func(*fiber.Ctx, error) error
}

// Protected returns a middleware that rejects requests without a valid
// bearer token. Validated claims are stored in locals under ContextKey and
// propagated to the request context for downstream code.
func Protected(cfg ProtectedConfig) fiber.Handler {
	if cfg.Validator == nil {
		panic("IDENTITY: protected route middleware requires a token validator")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = respondError
	}

	return func(c *fiber.Ctx) error {
		raw, err := tokenFromHeader(c.Get(fiber.HeaderAuthorization), cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.Validator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := checkRoles(claims, cfg); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)
		c.SetUserContext(identity.WithClaimsContext(c.UserContext(), claims))

		return c.Next()
	}
}

// ClaimsFromCtx returns the claims stashed by Protected, or nil when the
// route is unprotected.
func ClaimsFromCtx(c *fiber.Ctx, contextKey string) identity.AuthClaims {
	claims, _ := c.Locals(contextKey).(identity.AuthClaims)
	return claims
}

func checkRoles(claims identity.AuthClaims, cfg ProtectedConfig) error {
	if cfg.RequiredRole != "" && !claims.HasRole(cfg.RequiredRole) {
		return errors.New("access denied: missing required role", errors.CategoryAuthz).
			WithCode(fiber.StatusForbidden).
			WithMetadata(map[string]any{"required_role": cfg.RequiredRole})
	}

	if cfg.MinimumRole != "" && !claims.IsAtLeast(cfg.MinimumRole) {
		return errors.New("access denied: insufficient role", errors.CategoryAuthz).
			WithCode(fiber.StatusForbidden).
			WithMetadata(map[string]any{"minimum_role": cfg.MinimumRole})
	}

	return nil
}

func tokenFromHeader(header, authScheme string) (string, error) {
	l := len(authScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], authScheme) {
		return strings.TrimSpace(header[l:]), nil
	}
	return "", errors.New("missing or malformed bearer token", errors.CategoryAuth).
		WithTextCode(identity.TextCodeTokenMalformed).
		WithCode(errors.CodeUnauthorized)
}
