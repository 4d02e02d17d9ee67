package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFileType is returned when the file extension is not recognized.
var ErrUnknownFileType = errors.New("config file doesn't have a known file suffix")

// LoadFile reads settings from a file. The format follows the extension:
//   - .env files are KEY=VALUE lines, parsed by godotenv
//   - .yml/.yaml files need a top-level "env" map of strings
//
// Example YAML file:
//
//	env:
//	  VALIDATOR_URL: https://validator.example.com/v1/validate
//	  VALIDATOR_DEBOUNCE: 1500ms
func LoadFile(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(info.Name())

	switch {
	case strings.HasSuffix(name, ".env"):
		return godotenv.Read(path)
	case strings.HasSuffix(name, ".yml"), strings.HasSuffix(name, ".yaml"):
		return loadYAMLFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFileType, info.Name())
	}
}

// WithFile loads path and attaches its values to the context.
func WithFile(ctx context.Context, path string) (context.Context, error) {
	vals, err := LoadFile(path)
	if err != nil {
		return ctx, fmt.Errorf("loading config file %s: %w", path, err)
	}

	return WithValues(ctx, vals), nil
}

type yamlFile struct {
	Env map[string]string `yaml:"env"`
}

func loadYAMLFile(path string) (map[string]string, error) {
	bts, err := os.ReadFile(path) // #nosec G304 -- path is the intended file to load
	if err != nil {
		return nil, err
	}

	out := &yamlFile{}

	if err := yaml.Unmarshal(bts, out); err != nil {
		return nil, err
	}

	return out.Env, nil
}
