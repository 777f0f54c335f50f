// Package server exposes the identity core as a JSON API. Handlers stay
// thin: they bind and validate payloads, call into the root package, and
// translate rich errors into HTTP responses.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	identity "github.com/fixcampus/go-identity"
)

// Config holds the HTTP surface options.
type Config struct {
	Addr        string
	Debug       bool
	ContextKey  string
	ReadTimeout time.Duration
}

// Deps are the identity collaborators the handlers call into.
type Deps struct {
	Auth       *identity.Auther
	Challenges *identity.ChallengeManager
	Registrar  identity.AccountRegistrerer
	Users      identity.Users
	Logger     identity.Logger
	// Validator overrides the token validator used for protected routes.
	// Defaults to the authenticator's token service; pass a
	// RotatingTokenValidator when old signing keys must stay valid.
	Validator identity.TokenValidator
	// Lifecycle handles administrative status changes. Defaults to a
	// lifecycle backed by Users with no activity sink.
	Lifecycle *identity.UserLifecycle
}

type Server struct {
	app       *fiber.App
	cfg       Config
	auth      *identity.Auther
	otps      *identity.ChallengeManager
	reg       identity.AccountRegistrerer
	users     identity.Users
	validator identity.TokenValidator
	lifecycle *identity.UserLifecycle
	logger    identity.Logger
}

// New wires the route table. Token validation for protected routes goes
// through the authenticator's token service.
func New(deps Deps, cfg Config) *Server {
	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = identity.DefaultLogger()
	}

	validator := deps.Validator
	if validator == nil {
		validator = deps.Auth.TokenService()
	}

	lifecycle := deps.Lifecycle
	if lifecycle == nil {
		lifecycle = identity.NewUserLifecycle(deps.Users, identity.WithLifecycleLogger(logger))
	}

	s := &Server{
		cfg:       cfg,
		auth:      deps.Auth,
		otps:      deps.Challenges,
		reg:       deps.Registrar,
		users:     deps.Users,
		validator: validator,
		lifecycle: lifecycle,
		logger:    logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "identity-server",
		ReadTimeout:  cfg.ReadTimeout,
		ErrorHandler: s.errorHandler,
	})

	s.registerRoutes()

	return s
}

// App exposes the underlying fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	auth := s.app.Group("/auth")

	auth.Post("/login", s.LoginPost)
	auth.Post("/send-otp", s.SendOTPPost)
	auth.Post("/verify-otp", s.VerifyOTPPost)
	auth.Post("/resend-otp", s.ResendOTPPost)

	// pre-OTP direct registration is retired, see RegisterPost
	auth.Post("/register", s.RegisterPost)

	protected := Protected(ProtectedConfig{
		Validator:  s.validator,
		ContextKey: s.cfg.ContextKey,
	})

	auth.Get("/me", protected, s.MeGet)
	auth.Put("/profile", protected, s.ProfilePut)

	admin := Protected(ProtectedConfig{
		Validator:   s.validator,
		ContextKey:  s.cfg.ContextKey,
		MinimumRole: identity.RoleAuthority,
	})

	auth.Put("/users/:id/status", admin, s.UserStatusPut)
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("identity server listening on %s", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler catches errors returned from handlers that were not already
// written as payload responses.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}
