// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	accounts "github.com/goliatone/go-accounts"
)

type Config struct {
	HTTPAddr string

	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/accounts.db"

	SigningKey string
	Issuer     string
	TokenTTL   time.Duration

	// TokenLookup is passed to the HTTP layer; empty means its default.
	TokenLookup string

	BcryptCost int

	// Account policy
	Domain           string
	MaxAdminAccounts int
}

// FromEnv reads ACCOUNTS_* variables. Unknown or malformed values fall back
// to defaults.
func FromEnv() Config {
	env := strings.ToLower(getenvDefault("ACCOUNTS_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr:         getenvDefault("ACCOUNTS_HTTP_ADDR", ":8080"),
		Env:              env,
		DBPath:           getenvDefault("ACCOUNTS_DB_PATH", "./data/accounts.db"),
		SigningKey:       getenvDefault("ACCOUNTS_SIGNING_KEY", "dev-signing-key"),
		Issuer:           getenvDefault("ACCOUNTS_ISSUER", "go-accounts"),
		TokenTTL:         time.Duration(getenvInt("ACCOUNTS_TOKEN_TTL_HOURS", 24)) * time.Hour,
		TokenLookup:      strings.TrimSpace(os.Getenv("ACCOUNTS_TOKEN_LOOKUP")),
		BcryptCost:       getenvInt("ACCOUNTS_BCRYPT_COST", 12),
		Domain:           getenvDefault("ACCOUNTS_DOMAIN", "@pcu.edu.ph"),
		MaxAdminAccounts: getenvInt("ACCOUNTS_MAX_ADMINS", 1),
	}
}

// Accounts builds the account policy for the core package.
func (c Config) Accounts() accounts.Config {
	cfg := accounts.DefaultConfig()
	cfg.Domain = c.Domain
	if c.MaxAdminAccounts > 0 {
		cfg.MaxAdminAccounts = c.MaxAdminAccounts
	}
	return cfg
}

// IsProd reports a production environment.
func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
