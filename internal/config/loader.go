package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError describes why Load failed.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmPointerSuffix marks an env var whose value is an SSM parameter path.
// DATABASE_URL_SSM_PARAM=/prod/courier/database_url resolves into
// DATABASE_URL.
const ssmPointerSuffix = "_SSM_PARAM"

const localEnv = "local"

const ssmResolveTimeout = 30 * time.Second

// env abstracts process environment access so Load can be tested without
// touching global state.
type env struct {
	lookup  func(key string) (string, bool)
	set     func(key, value string) error
	environ func() []string
}

func osEnv() env {
	return env{lookup: os.LookupEnv, set: os.Setenv, environ: os.Environ}
}

// Load reads .env, resolves SSM pointers (outside local), populates Config
// from the environment and validates it. secrets may be nil when APP_ENV is
// local.
func Load(secrets SecretProvider) (*Config, error) {
	return load(secrets, osEnv())
}

func load(secrets SecretProvider, e env) (*Config, error) {
	time.Local = time.UTC

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if appEnv, _ := e.lookup("APP_ENV"); appEnv != localEnv {
		if err := resolvePointers(secrets, e); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment", Err: err}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	return &cfg, nil
}

// pointers returns target env var -> SSM path for every *_SSM_PARAM entry
// whose target is not already set.
func pointers(e env) map[string]string {
	out := make(map[string]string)
	for _, kv := range e.environ() {
		key, path, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasSuffix(key, ssmPointerSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmPointerSuffix)
		if _, set := e.lookup(target); set {
			continue
		}
		out[target] = path
	}
	return out
}

func resolvePointers(secrets SecretProvider, e env) error {
	wanted := pointers(e)
	if len(wanted) == 0 {
		return nil
	}

	targets := make([]string, 0, len(wanted))
	for t := range wanted {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	if secrets == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "a SecretProvider is required outside local (unresolved: " + strings.Join(targets, ", ") + ")",
		}
	}

	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		paths = append(paths, wanted[t])
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	values, err := secrets.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{Type: ErrSSMResolution, Message: fmt.Sprintf("failed to resolve %d parameters", len(paths)), Err: err}
	}

	var missing []string
	for _, t := range targets {
		v, ok := values[wanted[t]]
		if !ok {
			missing = append(missing, t)
			continue
		}
		if err := e.set(t, v); err != nil {
			return &ConfigError{Type: ErrSSMResolution, Message: "failed to export " + t, Err: err}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Type: ErrMissingEnv, Message: "parameters not found for: " + strings.Join(missing, ", ")}
	}
	return nil
}
