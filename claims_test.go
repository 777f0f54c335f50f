package identity_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	identity "github.com/fixcampus/go-identity"
)

func TestJWTClaimsUserIDFallsBackToSubject(t *testing.T) {
	claims := &identity.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
	}
	assert.Equal(t, "sub-1", claims.UserID())

	claims.UID = "uid-1"
	assert.Equal(t, "uid-1", claims.UserID())
}

func TestJWTClaimsRoleHelpers(t *testing.T) {
	claims := &identity.JWTClaims{UserRole: identity.RoleFaculty, Dept: "Physics"}

	assert.Equal(t, identity.RoleFaculty, claims.Role())
	assert.Equal(t, "Physics", claims.Department())
	assert.True(t, claims.HasRole(identity.RoleFaculty))
	assert.False(t, claims.HasRole(identity.RoleStudent))
	assert.True(t, claims.IsAtLeast(identity.RoleStudent))
	assert.False(t, claims.IsAtLeast(identity.RoleAuthority))
}

func TestJWTClaimsTimesZeroWhenUnset(t *testing.T) {
	claims := &identity.JWTClaims{}
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())

	now := time.Now()
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Hour))
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)

	assert.WithinDuration(t, now.Add(time.Hour), claims.Expires(), time.Second)
	assert.WithinDuration(t, now, claims.IssuedAt(), time.Second)
}
