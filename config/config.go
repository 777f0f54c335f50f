// Package config loads the identity server configuration from a YAML file
// plus environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration tree.
type Config struct {
	AppName string
	Server  *Server
	Auth    *Auth
	Data    *Data
	Mailer  *Mailer
	Redis   *Redis
	Viper   *viper.Viper
}

// Server holds the HTTP listener options.
type Server struct {
	Addr        string
	Debug       bool
	ReadTimeout time.Duration
}

// Auth holds signing and token options. It satisfies the identity config
// interface consumed by the authenticator and token service.
type Auth struct {
	SigningKey      string
	ContextKey      string
	TokenExpiration int
	Issuer          string
	Audience        []string
	// PreviousSigningKeys keeps tokens minted under rotated-out keys valid
	// until they expire naturally.
	PreviousSigningKeys []string
}

func (a *Auth) GetSigningKey() string   { return a.SigningKey }
func (a *Auth) GetContextKey() string   { return a.ContextKey }
func (a *Auth) GetTokenExpiration() int { return a.TokenExpiration }
func (a *Auth) GetIssuer() string       { return a.Issuer }
func (a *Auth) GetAudience() []string   { return a.Audience }

// Data holds database options.
type Data struct {
	DSN string
}

// Mailer selects the outbound email provider.
type Mailer struct {
	Provider      string
	MailgunKey    string
	MailgunDomain string
	From          string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
}

// Redis holds the optional challenge store backend. When Addr is empty the
// server falls back to the in-memory store.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the configuration file at path. An empty path searches the
// working directory and ./config for a config.yaml. Environment variables
// prefixed with IDENTITY_ override file values, e.g. IDENTITY_AUTH_SIGNING_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("IDENTITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// no file is fine, env and defaults carry the day
	}

	cfg := &Config{
		AppName: v.GetString("app_name"),
		Server: &Server{
			Addr:        v.GetString("server.addr"),
			Debug:       v.GetBool("server.debug"),
			ReadTimeout: v.GetDuration("server.read_timeout"),
		},
		Auth: &Auth{
			SigningKey:          v.GetString("auth.signing_key"),
			ContextKey:          v.GetString("auth.context_key"),
			TokenExpiration:     v.GetInt("auth.token_expiration_hours"),
			Issuer:              v.GetString("auth.issuer"),
			Audience:            v.GetStringSlice("auth.audience"),
			PreviousSigningKeys: v.GetStringSlice("auth.previous_signing_keys"),
		},
		Data: &Data{
			DSN: v.GetString("data.dsn"),
		},
		Mailer: &Mailer{
			Provider:      v.GetString("mailer.provider"),
			MailgunKey:    v.GetString("mailer.mailgun.key"),
			MailgunDomain: v.GetString("mailer.mailgun.domain"),
			From:          v.GetString("mailer.from"),
			SMTPHost:      v.GetString("mailer.smtp.host"),
			SMTPPort:      v.GetString("mailer.smtp.port"),
			SMTPUsername:  v.GetString("mailer.smtp.username"),
			SMTPPassword:  v.GetString("mailer.smtp.password"),
		},
		Redis: &Redis{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Viper: v,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "identity-server")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("auth.context_key", "user")
	v.SetDefault("auth.token_expiration_hours", 168)
	v.SetDefault("auth.issuer", "fixcampus-identity")
	v.SetDefault("auth.audience", []string{"fixcampus"})
	v.SetDefault("data.dsn", "file:identity.db?cache=shared")
	v.SetDefault("mailer.provider", "log")
}

// Validate checks the invariants the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth == nil || c.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}

	if len(c.Auth.SigningKey) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 bytes")
	}

	if c.Auth.TokenExpiration <= 0 {
		return fmt.Errorf("auth.token_expiration_hours must be positive")
	}

	return nil
}
