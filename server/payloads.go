package server

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"

	identity "github.com/fixcampus/go-identity"
)

// LoginPayload is the credential pair for password login.
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 100)),
	)
}

// SendOTPPayload starts a registration by requesting a verification code.
// Profile fields are validated up front so the user learns about problems
// before checking their inbox; nothing is persisted until the code checks out.
type SendOTPPayload struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	Role            string `form:"role" json:"role"`
	Department      string `form:"department" json:"department"`
}

// Validate will validate the payload
func (r SendOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(identity.PasswordPolicyRule())),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(identity.ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.Role, validation.Required, validation.By(validRole)),
		validation.Field(&r.Department, validation.Length(0, 200)),
	)
}

// VerifyOTPPayload completes a registration: the code proves email
// ownership, the rest recreates the account details from the send step.
type VerifyOTPPayload struct {
	Email      string   `form:"email" json:"email"`
	Code       string   `form:"code" json:"code"`
	Name       string   `form:"name" json:"name"`
	Password   string   `form:"password" json:"password"`
	Role       string   `form:"role" json:"role"`
	Department string   `form:"department" json:"department"`
	Categories []string `form:"categories" json:"categories"`
}

// Validate will validate the payload
func (r VerifyOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Password, validation.Required, validation.By(identity.PasswordPolicyRule())),
		validation.Field(&r.Role, validation.Required, validation.By(validRole)),
	)
}

// ResendOTPPayload re-issues the pending code for an address.
type ResendOTPPayload struct {
	Email string `form:"email" json:"email"`
	Name  string `form:"name" json:"name"`
}

// Validate will validate the payload
func (r ResendOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ProfilePayload carries the editable profile fields. Pointer fields
// distinguish "leave alone" from "set to empty".
type ProfilePayload struct {
	Name       *string   `form:"name" json:"name"`
	Department *string   `form:"department" json:"department"`
	Categories *[]string `form:"categories" json:"categories"`
	Avatar     *string   `form:"avatar" json:"avatar"`
}

// Validate will validate the payload
func (r ProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.By(optionalNonEmpty)),
		validation.Field(&r.Avatar, validation.By(optionalLength(2048))),
	)
}

// Patch converts the payload into a repository profile patch.
func (r ProfilePayload) Patch() identity.ProfilePatch {
	return identity.ProfilePatch{
		Name:       r.Name,
		Department: r.Department,
		Categories: r.Categories,
		Avatar:     r.Avatar,
	}
}

// StatusPayload is an administrative account status change. The reason is
// recorded in the audit trail, not on the account.
type StatusPayload struct {
	Status string `form:"status" json:"status"`
	Reason string `form:"reason" json:"reason"`
}

// Validate will validate the payload
func (r StatusPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			identity.UserStatusActive,
			identity.UserStatusSuspended,
			identity.UserStatusDisabled,
		)),
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

func validRole(value any) error {
	s, _ := value.(string)
	if _, ok := identity.ParseRole(s); !ok {
		return goerrors.New("must be one of student, faculty, authority", goerrors.CategoryValidation)
	}
	return nil
}

func optionalNonEmpty(value any) error {
	s, ok := value.(*string)
	if !ok || s == nil {
		return nil
	}
	if *s == "" {
		return goerrors.New("cannot be blank", goerrors.CategoryValidation)
	}
	return nil
}

func optionalLength(max int) validation.RuleFunc {
	return func(value any) error {
		s, ok := value.(*string)
		if !ok || s == nil {
			return nil
		}
		if len(*s) > max {
			return goerrors.New(fmt.Sprintf("the length must be no more than %d", max), goerrors.CategoryValidation)
		}
		return nil
	}
}
