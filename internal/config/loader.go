package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment naming.
const (
	EnvPrefix     = "MARKSENSE_"
	EnvConfigFile = "MARKSENSE_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if MARKSENSE_CONFIG is set
//  3. env (prefix MARKSENSE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// MARKSENSE_STORE_BACKEND -> store_backend (flat keys). List and map
	// values are comma separated: "Maths,Science" and "Maths:50,Art:20".
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		switch key {
		case "config":
			return "", nil
		case "subjects":
			return key, splitList(value)
		case "subject_max_marks":
			m, err := splitMap(value)
			if err != nil {
				return key, value
			}
			return key, m
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// Loaded lists and maps replace the defaults instead of merging into them.
	if k.Exists("subjects") {
		cfg.Subjects = nil
	}
	if k.Exists("subject_max_marks") {
		cfg.SubjectMaxMarks = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if cfg.SubjectMaxMarks == nil {
		cfg.SubjectMaxMarks = map[string]float64{}
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitMap(v string) (map[string]any, error) {
	out := map[string]any{}
	for _, pair := range splitList(v) {
		name, raw, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("expected subject:max, got %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", name, err)
		}
		out[strings.TrimSpace(name)] = f
	}
	return out, nil
}
