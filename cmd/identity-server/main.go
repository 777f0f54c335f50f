package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	identity "github.com/fixcampus/go-identity"
	"github.com/fixcampus/go-identity/config"
	"github.com/fixcampus/go-identity/mailer"
	"github.com/fixcampus/go-identity/server"
)

func main() {
	configPath := flag.String("conf", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrusFallbackFatal("failed to load configuration: %s", err)
	}

	logger := newLogger(cfg.Server.Debug)

	if err := run(cfg, logger); err != nil {
		logger.Error("identity server exited: %s", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger identity.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Data.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := identity.NewRepositoryManager(db)
	repo.MustValidate()

	provider := identity.NewUserProvider(repo.Users()).WithLogger(logger)

	activity := identity.ActivitySinkFunc(func(ctx context.Context, event identity.ActivityEvent) error {
		logger.Info("activity %s user=%s", event.EventType, event.UserID)
		return nil
	})

	auther := identity.NewAuthenticator(provider, cfg.Auth).
		WithLogger(logger).
		WithActivitySink(activity)

	sender, err := mailer.NewSender(mailer.Config{
		Provider: cfg.Mailer.Provider,
		Mailgun: &mailer.MailgunConfig{
			Key:    cfg.Mailer.MailgunKey,
			Domain: cfg.Mailer.MailgunDomain,
			From:   cfg.Mailer.From,
		},
		SMTP: &mailer.SMTPConfig{
			Host:     cfg.Mailer.SMTPHost,
			Port:     cfg.Mailer.SMTPPort,
			Username: cfg.Mailer.SMTPUsername,
			Password: cfg.Mailer.SMTPPassword,
			From:     cfg.Mailer.From,
		},
	})
	if err != nil {
		return err
	}

	challenges := identity.NewChallengeManager(
		challengeStore(cfg, repo, logger),
		mailer.NewCodeSender(sender),
		identity.WithChallengeLogger(logger),
		identity.WithChallengeActivitySink(activity),
	)

	lifecycle := identity.NewUserLifecycle(
		repo.Users(),
		identity.WithLifecycleLogger(logger),
		identity.WithLifecycleActivitySink(activity),
	)

	srv := server.New(server.Deps{
		Auth:       auther,
		Challenges: challenges,
		Registrar:  identity.NewRegistrar(repo),
		Users:      repo.Users(),
		Validator:  tokenValidator(cfg, auther, logger),
		Lifecycle:  lifecycle,
		Logger:     logger,
	}, server.Config{
		Addr:        cfg.Server.Addr,
		Debug:       cfg.Server.Debug,
		ContextKey:  cfg.Auth.GetContextKey(),
		ReadTimeout: cfg.Server.ReadTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// tokenValidator wraps the token service with validators for any rotated-out
// signing keys, so existing sessions survive a key rotation.
func tokenValidator(cfg *config.Config, auther *identity.Auther, logger identity.Logger) identity.TokenValidator {
	if len(cfg.Auth.PreviousSigningKeys) == 0 {
		return auther.TokenService()
	}

	logger.Info("accepting tokens from %d previous signing keys", len(cfg.Auth.PreviousSigningKeys))

	validators := []identity.TokenValidator{auther.TokenService()}
	for _, key := range cfg.Auth.PreviousSigningKeys {
		validators = append(validators, identity.NewTokenService(
			[]byte(key),
			cfg.Auth.TokenExpiration,
			cfg.Auth.Issuer,
			cfg.Auth.Audience,
			logger,
		))
	}

	return identity.NewRotatingTokenValidator(validators...)
}

// challengeStore picks redis when configured, the in-memory store
// otherwise. The database-backed store is available for multi-node setups
// without redis.
func challengeStore(cfg *config.Config, repo identity.RepositoryManager, logger identity.Logger) identity.ChallengeStore {
	if cfg.Redis.Addr != "" {
		logger.Info("using redis challenge store at %s", cfg.Redis.Addr)
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return identity.NewRedisChallengeStore(client)
	}

	logger.Info("using database challenge store")
	return repo.Challenges()
}

func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// runMigrations applies the embedded schema files in lexical order. They
// are written to be idempotent, so re-running on boot is safe.
func runMigrations(ctx context.Context, db *bun.DB) error {
	migrations, err := fs.Sub(identity.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := fs.ReadFile(migrations, name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return err
		}
	}

	return nil
}

func logrusFallbackFatal(format string, args ...any) {
	logger := newLogger(false)
	logger.Error(format, args...)
	os.Exit(1)
}
