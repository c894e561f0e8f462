// Package config loads the server settings from the environment.
package config

import (
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
)

// Environment keys
const (
	EnvAPIKey   = "KAGI_API_KEY"
	EnvBaseURL  = "KAGI_API_BASE_URL"
	EnvLogLevel = "KAGI_LOG_LEVEL"
	EnvEnvFile  = "KAGI_ENV_FILE"
)

// Defaults
const (
	DefaultBaseURL = "https://kagi.com/api/v0"
	DefaultEnvFile = ".env"
)

// LookupFunc looks up a single environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Config holds the server settings.
type Config struct {
	APIKey   string
	BaseURL  string
	LogLevel logging.LogLevel
	EnvFile  string
}

// Load reads the settings through lookup. Values from the env file fill in
// keys the environment leaves unset. A missing default env file is ignored;
// one named explicitly must exist.
func Load(lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envFile, explicit := lookup(EnvEnvFile)
	if !explicit || envFile == "" {
		envFile = DefaultEnvFile
	}

	fileVars, err := godotenv.Read(envFile)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, domain.NewConfigurationError(EnvEnvFile, "cannot read env file "+envFile+": "+err.Error())
		}
		fileVars = map[string]string{}
	}

	get := func(key string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileVars[key])
	}

	cfg := &Config{
		APIKey:  get(EnvAPIKey),
		BaseURL: get(EnvBaseURL),
		EnvFile: envFile,
	}

	if cfg.APIKey == "" {
		return nil, domain.NewConfigurationError(EnvAPIKey, EnvAPIKey+" environment variable is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.NewConfigurationError(EnvBaseURL, EnvBaseURL+" must be an absolute URL")
	}

	level, err := logging.ParseLevel(get(EnvLogLevel))
	if err != nil {
		return nil, domain.NewConfigurationError(EnvLogLevel, err.Error())
	}
	cfg.LogLevel = level

	return cfg, nil
}
