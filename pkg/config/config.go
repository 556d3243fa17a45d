// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	// Path to a YAML site profile overriding author, institution and URL.
	SiteProfile string `env:"SITE_PROFILE"`

	Server  Server  `envPrefix:"SERVER_"`
	Auth    Auth    `envPrefix:"AUTH_"`
	Backend Backend `envPrefix:"BACKEND_"`
	Font    Font    `envPrefix:"FONT_"`
	Content Content `envPrefix:"CONTENT_"`
	Upload  Upload  `envPrefix:"UPLOAD_"`
	Log     Log     `envPrefix:"LOG_"`
}

type Server struct {
	// HTTP listen address, e.g. ":8080"
	Address         string        `env:"ADDRESS" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// Value for Access-Control-Allow-Origin; empty disables CORS.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

type Auth struct {
	Secret        string `env:"SECRET"`
	Issuer        string `env:"ISSUER" envDefault:"scholarsite"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	// bcrypt hash; takes precedence over AdminPassword.
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
}

type Backend struct {
	// Base URL of the site API, e.g. "http://localhost:8000/api". Empty
	// disables dynamic OG titles and the upload proxy.
	URL     string        `env:"URL"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

type Font struct {
	// TTF/OTF paths. Korean titles need a Hangul font here; the embedded Go
	// fonts cover Latin only.
	Regular string `env:"REGULAR"`
	Bold    string `env:"BOLD"`
}

type Content struct {
	Python      string `env:"PYTHON" envDefault:"python3"`
	ScriptDir   string `env:"SCRIPT_DIR" envDefault:"scripts"`
	StatusDir   string `env:"STATUS_DIR" envDefault:"data/status"`
	RequireAuth bool   `env:"REQUIRE_AUTH" envDefault:"false"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"1"`
	Retention   int    `env:"RETENTION" envDefault:"100"`

	// Extra KEY=VALUE pairs for the scripts, separated by ";".
	Env []string `env:"ENV" envSeparator:";"`
}

type Upload struct {
	MaxBytes    int64 `env:"MAX_BYTES" envDefault:"10485760"`
	MaxWidth    int   `env:"MAX_WIDTH" envDefault:"1920"`
	JPEGQuality int   `env:"JPEG_QUALITY" envDefault:"85"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"true"`
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (Config, error) {
	// Load .env if available; ignore error if file does not exist
	_ = godotenv.Load()
	return parse(env.Options{})
}

// FromMap parses cfg from vars only, ignoring the process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.AdminEmail != "" && c.Auth.Secret == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required when AUTH_ADMIN_EMAIL is set"))
	}
	if c.Content.RequireAuth && c.Auth.Secret == "" {
		errs = append(errs, errors.New("CONTENT_REQUIRE_AUTH needs AUTH_SECRET"))
	}
	if c.Content.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("CONTENT_CONCURRENCY must be >= 1, got %d", c.Content.Concurrency))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Upload.MaxBytes))
	}
	if q := c.Upload.JPEGQuality; q < 1 || q > 100 {
		errs = append(errs, fmt.Errorf("UPLOAD_JPEG_QUALITY must be 1..100, got %d", q))
	}
	return errors.Join(errs...)
}

// AdminEnabled reports whether login is configured.
func (c Config) AdminEnabled() bool {
	return c.Auth.Secret != "" && c.Auth.AdminEmail != ""
}

// Example is a sample .env written by `scholarsite init`.
func Example() string {
	return `# HTTP
SERVER_ADDRESS=:8080

# Admin login
AUTH_SECRET=change-me
AUTH_ADMIN_EMAIL=admin@example.edu
AUTH_ADMIN_PASSWORD=change-me

# Site API used for book/news titles and uploads
BACKEND_URL=http://localhost:8000/api

# Hangul-capable fonts for OG images
FONT_REGULAR=fonts/NotoSansKR-Regular.ttf
FONT_BOLD=fonts/NotoSansKR-Bold.ttf

# Unfold Story pipeline
CONTENT_SCRIPT_DIR=scripts
CONTENT_STATUS_DIR=data/status
CONTENT_REQUIRE_AUTH=false

SITE_PROFILE=site.yaml
LOG_LEVEL=info
LOG_PRETTY=true
`
}
