package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"

	identity "github.com/fixcampus/go-identity"
)

// LoginPost authenticates a credential pair and returns a bearer token with
// the principal's profile.
func (s *Server) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("login parse payload: %s", err)
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "Failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryValidation, "Invalid login payload").
			WithCode(errors.CodeBadRequest))
	}

	token, err := s.auth.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		s.logger.Error("login error: %s", err)
		return respondError(c, err)
	}

	user, err := s.users.GetByIdentifier(c.UserContext(), identity.NormalizeEmail(payload.Email))
	if err != nil {
		s.logger.Error("login load principal: %s", err)
		return respondError(c, err)
	}

	if s.cfg.Debug {
		fmt.Println(print.MaybePrettyJSON(user))
	}

	return respond(c, fiber.StatusOK, "Login successful", fiber.Map{
		"token": token,
		"user":  user,
	})
}

// RegisterPost is the retired direct registration endpoint. Accounts are
// created through the send-otp / verify-otp pair; this handler only tells
// old clients where to go.
func (s *Server) RegisterPost(c *fiber.Ctx) error {
	return c.Status(fiber.StatusGone).JSON(envelope{
		Success:  false,
		Message:  "Direct registration is no longer supported, verify your email via /auth/send-otp",
		TextCode: "REGISTRATION_REQUIRES_OTP",
	})
}

// SendOTPPost validates the registration details and issues a verification
// code. Nothing is persisted; the account is created when the code is
// verified.
func (s *Server) SendOTPPost(c *fiber.Ctx) error {
	payload := new(SendOTPPayload)

	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("send otp parse payload: %s", err)
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "Failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryValidation, "Invalid registration payload").
			WithCode(errors.CodeBadRequest))
	}

	email := identity.NormalizeEmail(payload.Email)

	if err := s.ensureEmailAvailable(c, email); err != nil {
		return respondError(c, err)
	}

	challenge, err := s.otps.Issue(c.UserContext(), email, payload.Name)
	if err != nil {
		s.logger.Error("issue challenge: %s", err)
		return respondError(c, err)
	}

	return respond(c, fiber.StatusAccepted, "Verification code sent", fiber.Map{
		"email":      challenge.Email,
		"expires_at": challenge.ExpiresAt,
	})
}

// VerifyOTPPost checks the code and, on success, creates the account and
// logs the new principal in.
func (s *Server) VerifyOTPPost(c *fiber.Ctx) error {
	payload := new(VerifyOTPPayload)

	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("verify otp parse payload: %s", err)
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "Failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryValidation, "Invalid verification payload").
			WithCode(errors.CodeBadRequest))
	}

	// check availability before consuming the challenge so an email-taken
	// race does not burn a still-valid code
	if err := s.ensureEmailAvailable(c, identity.NormalizeEmail(payload.Email)); err != nil {
		return respondError(c, err)
	}

	if _, err := s.otps.Verify(c.UserContext(), payload.Email, payload.Code); err != nil {
		s.logger.Error("verify challenge: %s", err)
		return respondError(c, err)
	}

	user, err := s.reg.RegisterUser(c.UserContext(), identity.RegisterUserMessage{
		Name:       payload.Name,
		Email:      payload.Email,
		Password:   payload.Password,
		Role:       payload.Role,
		Department: payload.Department,
		Categories: payload.Categories,
	})
	if err != nil {
		s.logger.Error("register user: %s", err)
		return respondError(c, err)
	}

	token, err := s.auth.IssueToken(identity.NewIdentityFromUser(user))
	if err != nil {
		s.logger.Error("issue token after registration: %s", err)
		return respondError(c, err)
	}

	return respond(c, fiber.StatusCreated, "Account created", fiber.Map{
		"token": token,
		"user":  user,
	})
}

// ResendOTPPost invalidates the pending code and sends a fresh one.
func (s *Server) ResendOTPPost(c *fiber.Ctx) error {
	payload := new(ResendOTPPayload)

	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("resend otp parse payload: %s", err)
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "Failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryValidation, "Invalid resend payload").
			WithCode(errors.CodeBadRequest))
	}

	challenge, err := s.otps.Resend(c.UserContext(), payload.Email, payload.Name)
	if err != nil {
		s.logger.Error("resend challenge: %s", err)
		return respondError(c, err)
	}

	return respond(c, fiber.StatusAccepted, "Verification code sent", fiber.Map{
		"email":      challenge.Email,
		"expires_at": challenge.ExpiresAt,
	})
}

// MeGet returns the authenticated principal.
func (s *Server) MeGet(c *fiber.Ctx) error {
	user, err := s.principalFromCtx(c)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusOK, "", fiber.Map{"user": user})
}

// ProfilePut applies a partial update to the authenticated principal's
// profile. Email, role, and status are not editable here.
func (s *Server) ProfilePut(c *fiber.Ctx) error {
	payload := new(ProfilePayload)

	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("profile parse payload: %s", err)
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "Failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryValidation, "Invalid profile payload").
			WithCode(errors.CodeBadRequest))
	}

	patch := payload.Patch()
	if patch.Empty() {
		return respondError(c, errors.New("no profile fields to update", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest))
	}

	claims := ClaimsFromCtx(c, s.cfg.ContextKey)
	if claims == nil {
		return respondError(c, identity.ErrUnableToFindSession)
	}

	uid, err := uuid.Parse(claims.UserID())
	if err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryAuth, "Invalid principal id").
			WithCode(errors.CodeUnauthorized))
	}

	user, err := s.users.UpdateProfile(c.UserContext(), uid, patch)
	if err != nil {
		s.logger.Error("update profile: %s", err)
		return respondError(c, err)
	}

	if s.cfg.Debug {
		fmt.Println(print.MaybePrettyJSON(user))
	}

	return respond(c, fiber.StatusOK, "Profile updated", fiber.Map{"user": user})
}

// UserStatusPut applies an administrative status change to any account.
// Transitions go through the lifecycle so illegal moves are rejected and
// every change lands in the audit trail with the acting admin.
func (s *Server) UserStatusPut(c *fiber.Ctx) error {
	payload := new(StatusPayload)

	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("status parse payload: %s", err)
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "Failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryValidation, "Invalid status payload").
			WithCode(errors.CodeBadRequest))
	}

	claims := ClaimsFromCtx(c, s.cfg.ContextKey)
	if claims == nil {
		return respondError(c, identity.ErrUnableToFindSession)
	}

	user, err := s.users.GetByIdentifier(c.UserContext(), c.Params("id"))
	if err != nil {
		s.logger.Error("status load user: %s", err)
		return respondError(c, err)
	}

	actor := identity.ActorRef{ID: claims.UserID(), Type: "user"}

	updated, err := s.lifecycle.Transition(c.UserContext(), actor, user, payload.Status, payload.Reason)
	if err != nil {
		s.logger.Error("status transition: %s", err)
		return respondError(c, err)
	}

	return respond(c, fiber.StatusOK, "Account status updated", fiber.Map{"user": updated})
}

func (s *Server) principalFromCtx(c *fiber.Ctx) (*identity.User, error) {
	claims := ClaimsFromCtx(c, s.cfg.ContextKey)
	if claims == nil {
		return nil, identity.ErrUnableToFindSession
	}

	user, err := s.users.GetByIdentifier(c.UserContext(), claims.UserID())
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Server) ensureEmailAvailable(c *fiber.Ctx, email string) error {
	_, err := s.users.GetByIdentifier(c.UserContext(), email)
	if err == nil {
		return identity.ErrEmailTaken
	}

	if repository.IsRecordNotFound(err) {
		return nil
	}

	return err
}
