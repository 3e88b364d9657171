package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"initium/internal/render"
)

// LoadPlan reads specPath, runs it through the template preprocessor, then
// decodes the result into a validated, defaulted Plan. The format is
// chosen by file extension: ".json" selects JSON, ".toml" selects TOML,
// anything else selects YAML.
func LoadPlan(specPath string) (*Plan, error) {
	raw, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("seed: read spec file %q: %w", specPath, err)
	}

	rendered, err := render.Render(string(raw), envMap())
	if err != nil {
		return nil, fmt.Errorf("seed: render spec file %q: %w", specPath, err)
	}

	plan, err := decodePlan(specPath, rendered)
	if err != nil {
		return nil, fmt.Errorf("seed: parse spec file %q: %w", specPath, err)
	}

	ApplyDefaults(plan)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func decodePlan(specPath, rendered string) (*Plan, error) {
	plan := &Plan{}
	switch strings.ToLower(filepath.Ext(specPath)) {
	case ".json":
		if err := json.Unmarshal([]byte(rendered), plan); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal([]byte(rendered), plan); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal([]byte(rendered), plan); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// envMap snapshots the process environment as a string map for the
// template preprocessor's "env" context.
func envMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// ResolveDSN implements DatabaseConfig's resolution order: url_env (if
// non-empty, the named variable must exist) -> url (if non-empty) -> the
// DATABASE_URL environment variable.
func ResolveDSN(cfg DatabaseConfig) (string, error) {
	if cfg.URLEnv != "" {
		val, ok := os.LookupEnv(cfg.URLEnv)
		if !ok {
			return "", fmt.Errorf("seed: url_env variable %q is not set", cfg.URLEnv)
		}
		return val, nil
	}
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	val, ok := os.LookupEnv("DATABASE_URL")
	if !ok || val == "" {
		return "", fmt.Errorf("seed: no database URL configured: set database.url, database.url_env, or DATABASE_URL")
	}
	return val, nil
}
