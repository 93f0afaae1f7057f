// Package config loads runtime settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. A .env file in the working directory is loaded
// into the environment first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration.
type Config struct {
	Port        string   `yaml:"port"`
	DatabaseURL string   `yaml:"database_url"`
	CachePath   string   `yaml:"cache_path"`
	DefaultUser string   `yaml:"default_user"`
	Offline     bool     `yaml:"offline"`
	CORSOrigins []string `yaml:"cors_origins"`

	Auth    AuthConfig    `yaml:"auth"`
	QR      QRConfig      `yaml:"qr"`
	Storage StorageConfig `yaml:"storage"`
	DATEV   DATEVConfig   `yaml:"datev"`
}

// AuthConfig configures session tokens. Auth is disabled when Secret is
// empty; requests then act as DefaultUser.
type AuthConfig struct {
	Secret string        `yaml:"jwt_secret"`
	Issuer string        `yaml:"jwt_issuer"`
	TTL    time.Duration `yaml:"jwt_ttl"`
}

// Enabled reports whether bearer tokens are required.
func (a AuthConfig) Enabled() bool { return a.Secret != "" }

type QRConfig struct {
	Primary  string        `yaml:"primary"`
	Fallback string        `yaml:"fallback"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StorageConfig points at S3-compatible storage for receipt images.
// Uploads are disabled when Bucket is empty.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type DATEVConfig struct {
	Account       string `yaml:"account"`
	ContraAccount string `yaml:"contra_account"`
	TaxKey        string `yaml:"tax_key"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:        "8080",
		CachePath:   "billbook.db",
		DefaultUser: "local",
		CORSOrigins: []string{"*"},
		Auth: AuthConfig{
			Issuer: "billbook",
			TTL:    60 * time.Minute,
		},
		QR: QRConfig{
			Primary:  "https://api.qrserver.com/v1/create-qr-code/?size=240x240&ecc=M&data=",
			Fallback: "https://quickchart.io/qr?size=240&ecLevel=M&text=",
			Timeout:  5 * time.Second,
		},
		Storage: StorageConfig{Region: "eu-central-1"},
		DATEV: DATEVConfig{
			Account:       "10000",
			ContraAccount: "8400",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation.
func Read(path string) (Config, error) {
	loadDotEnv()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CachePath) == "" {
		errs = append(errs, errors.New("cache_path is required"))
	}
	if strings.TrimSpace(c.DefaultUser) == "" {
		errs = append(errs, errors.New("default_user is required"))
	}
	if !c.Offline && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required unless offline mode is set"))
	}
	if c.Auth.Enabled() && c.Auth.TTL <= 0 {
		errs = append(errs, errors.New("jwt_ttl must be positive"))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("port %q is not a number", c.Port))
	}
	return errors.Join(errs...)
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	setString(&cfg.Port, getenv("PORT"))
	setString(&cfg.DatabaseURL, getenv("DATABASE_URL"))
	setString(&cfg.CachePath, getenv("BILLBOOK_CACHE_PATH"))
	setString(&cfg.DefaultUser, getenv("BILLBOOK_DEFAULT_USER"))
	if v := strings.TrimSpace(getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORSOrigins = parseCSV(v)
	}
	if v := strings.TrimSpace(getenv("BILLBOOK_OFFLINE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BILLBOOK_OFFLINE: %w", err)
		}
		cfg.Offline = b
	}

	setString(&cfg.Auth.Secret, getenv("JWT_SECRET"))
	setString(&cfg.Auth.Issuer, getenv("JWT_ISSUER"))
	if v := strings.TrimSpace(getenv("JWT_TTL_MINUTES")); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			cfg.Auth.TTL = time.Duration(minutes) * time.Minute
		}
	}

	setString(&cfg.QR.Primary, getenv("BILLBOOK_QR_PRIMARY"))
	setString(&cfg.QR.Fallback, getenv("BILLBOOK_QR_FALLBACK"))

	setString(&cfg.Storage.Endpoint, getenv("S3_ENDPOINT"))
	setString(&cfg.Storage.Region, getenv("S3_REGION"))
	setString(&cfg.Storage.Bucket, getenv("S3_BUCKET"))
	setString(&cfg.Storage.PublicURL, getenv("S3_PUBLIC_URL"))
	setString(&cfg.Storage.AccessKey, getenv("S3_ACCESS_KEY"))
	setString(&cfg.Storage.SecretKey, getenv("S3_SECRET_KEY"))

	setString(&cfg.DATEV.Account, getenv("DATEV_ACCOUNT"))
	setString(&cfg.DATEV.ContraAccount, getenv("DATEV_CONTRA_ACCOUNT"))
	setString(&cfg.DATEV.TaxKey, getenv("DATEV_TAX_KEY"))
	return nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func loadDotEnv() {
	// A missing .env is normal; the environment is used as is.
	_ = godotenv.Load()
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
