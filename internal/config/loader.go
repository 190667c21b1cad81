package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	homedir "github.com/mitchellh/go-homedir"
)

const (
	envPrefix      = "WATCHLOG_"
	envConfigPath  = "WATCHLOG_CONFIG"
	defaultRCName  = ".watchlog.yaml"
	listSeparator  = ","
	corsOriginsKey = "cors_origins"
)

// LoadOption adjusts how Load finds its inputs.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
}

// WithFile loads path instead of the WATCHLOG_CONFIG or home directory file.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML): WithFile, else WATCHLOG_CONFIG, else ~/.watchlog.yaml if present
//  3. env (prefix WATCHLOG_)
func Load(_ context.Context, opts ...LoadOption) (*Config, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	base := New()
	k := koanf.New(".")

	path, required, err := configPath(o.path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
			}
		}
	}

	// Environment variables: WATCHLOG_BACKEND_URL -> backend_url (flat keys).
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		if key == corsOriginsKey {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configPath resolves which file to read and whether its absence is an error.
func configPath(explicit string) (string, bool, error) {
	if explicit != "" {
		p, err := homedir.Expand(explicit)
		if err != nil {
			return "", false, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
		return p, true, nil
	}
	if p := os.Getenv(envConfigPath); p != "" {
		return p, true, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", false, nil
	}
	return filepath.Join(home, defaultRCName), false, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
