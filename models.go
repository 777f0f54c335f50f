package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus captures the lifecycle state of an account.
type UserStatus = string

const (
	// UserStatusPending is set at registration, before email ownership is proven.
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is the normal state after OTP verification.
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended blocks login until reinstated.
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusDisabled is a terminal administrative state.
	UserStatusDisabled UserStatus = "disabled"
)

// User is the principal record attached to a session.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           Role       `bun:"user_role,notnull" json:"role,omitempty"`
	Name           string     `bun:"name,notnull" json:"name,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Department     string     `bun:"department" json:"department,omitempty"`
	Categories     []string   `bun:"categories,array" json:"categories,omitempty"`
	Avatar         string     `bun:"avatar" json:"avatar,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Status         UserStatus `bun:"status,notnull,default:'pending'" json:"status,omitempty"`
	EmailValidated bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// EnsureStatus backfills the zero value for records created before the
// status column existed.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// CanAuthenticate reports whether the account may establish a session.
func (u *User) CanAuthenticate() bool {
	u.EnsureStatus()
	return u.Status == UserStatusActive || u.Status == UserStatusPending
}

// Challenge is the ephemeral OTP record gating registration. It is keyed by
// the registration email: issuing a new challenge replaces the prior one, so
// at most one live challenge exists per address.
type Challenge struct {
	bun.BaseModel `bun:"table:otp_challenges,alias:otp"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email     string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Name      string     `bun:"name" json:"name,omitempty"`
	Code      string     `bun:"code,notnull" json:"-"`
	Attempts  int        `bun:"attempts" json:"attempts,omitempty"`
	Consumed  bool       `bun:"consumed" json:"consumed,omitempty"`
	IssuedAt  time.Time  `bun:"issued_at,notnull" json:"issued_at,omitempty"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Live reports whether the challenge can still be verified at the given time.
func (c *Challenge) Live(now time.Time) bool {
	return c != nil && !c.Consumed && now.Before(c.ExpiresAt)
}

// Expired reports whether the challenge lapsed at the given time.
func (c *Challenge) Expired(now time.Time) bool {
	return c != nil && now.After(c.ExpiresAt)
}
