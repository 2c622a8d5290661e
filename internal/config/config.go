package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const FileName = ".bugit.yaml"

const (
	EnvInstance       = "APPORT_LAUNCHPAD_INSTANCE"
	EnvCredentialsDir = "BUGIT_CREDENTIALS_DIR"
)

const DefaultConsumer = "bugit"

type Config struct {
	Path           string   `yaml:"-"`
	Instance       string   `yaml:"instance"`
	CredentialsDir string   `yaml:"credentials_dir"`
	Consumer       string   `yaml:"consumer"`
	Project        string   `yaml:"project"`
	CIDs           []string `yaml:"cids"`
}

// Load discovers the config file above startDir, fills defaults and applies
// environment overrides. A missing file is not an error.
func Load(startDir string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg, err := Discover(startDir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}

	if v := strings.TrimSpace(getenv(EnvInstance)); v != "" {
		cfg.Instance = v
	}
	if v := strings.TrimSpace(getenv(EnvCredentialsDir)); v != "" {
		cfg.CredentialsDir = v
	}

	if cfg.Instance == "" {
		cfg.Instance = string(Production)
	}
	if _, err := LookupEnvironment(cfg.Instance); err != nil {
		return nil, err
	}
	if cfg.Consumer == "" {
		cfg.Consumer = DefaultConsumer
	}
	if cfg.CredentialsDir == "" {
		dir, err := DefaultCredentialsDir()
		if err != nil {
			return nil, err
		}
		cfg.CredentialsDir = dir
	}
	cfg.CredentialsDir, err = expandHome(cfg.CredentialsDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Environment() Environment {
	env, err := LookupEnvironment(c.Instance)
	if err != nil {
		return environments[Production]
	}
	return env
}

func Discover(startDir string) (*Config, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, FileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			cfg, err := parseFile(candidate)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func DefaultCredentialsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".launchpadlib"), nil
}

func parseFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	cfg.Path = path

	cfg.Instance = strings.ToLower(strings.TrimSpace(cfg.Instance))
	if cfg.Instance != "" {
		if _, err := LookupEnvironment(cfg.Instance); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", path, err)
		}
	}
	if dir := strings.TrimSpace(cfg.CredentialsDir); dir != "" && !filepath.IsAbs(dir) && !strings.HasPrefix(dir, "~") {
		cfg.CredentialsDir = filepath.Clean(filepath.Join(filepath.Dir(path), dir))
	}
	cids := make([]string, 0, len(cfg.CIDs))
	for _, c := range cfg.CIDs {
		if c = strings.TrimSpace(c); c != "" {
			cids = append(cids, c)
		}
	}
	cfg.CIDs = cids
	return cfg, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
