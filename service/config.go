package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/scy/cred/secret"
	"gopkg.in/yaml.v3"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/checkpoint"
	"github.com/viant/omnicm/contents"
)

// Config defines the document store, its backend and the host servers.
type Config struct {
	Contents ContentsConfig `yaml:"contents"`
	Backend  backend.Config `yaml:"backend"`
	Retry    RetryConfig    `yaml:"retry"`
	Server   ServerConfig   `yaml:"server"`
}

// ContentsConfig defines the logical tree exposed to hosts.
type ContentsConfig struct {
	Root           string   `yaml:"root"`
	AllowHidden    bool     `yaml:"allowHidden"`
	CheckpointDir  string   `yaml:"checkpointDir"`
	MaxCheckpoints int      `yaml:"maxCheckpoints"`
	ListCacheTTLMs int      `yaml:"listCacheTTLMs"`
	Hide           []string `yaml:"hide"`
	HideFile       string   `yaml:"hideFile"`
	MaxListedSize  int64    `yaml:"maxListedSize"`
}

// RetryConfig bounds retries of transient backend failures. Unset MaxRetries means the default.
type RetryConfig struct {
	MaxRetries    *int `yaml:"maxRetries"`
	MinIntervalMs int  `yaml:"minIntervalMs"`
	MaxIntervalMs int  `yaml:"maxIntervalMs"`
}

// ServerConfig defines host adapter listen addresses.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	MCPAddr string `yaml:"mcpAddr"`
}

const (
	// DefaultAddr is the REST contents API address.
	DefaultAddr = "127.0.0.1:8888"
	// DefaultMCPAddr is the MCP streamable HTTP address.
	DefaultMCPAddr = "127.0.0.1:6061"
)

// LoadConfig reads a YAML config, expanding ~ paths and backend secrets.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	path, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.expand(ctx); err != nil {
		return nil, err
	}
	cfg.Init()
	return &cfg, cfg.Validate()
}

func (c *Config) expand(ctx context.Context) error {
	var err error
	for _, p := range []*string{&c.Contents.HideFile, &c.Backend.KerbTicket, &c.Backend.Krb5Conf} {
		if *p, err = expandUserPath(*p); err != nil {
			return err
		}
	}
	if c.Backend.Driver == "afs" {
		if c.Contents.Root, err = expandUserPath(c.Contents.Root); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.Backend.Secret) == "" {
		return nil
	}
	for _, p := range []*string{&c.Backend.User, &c.Backend.Password, &c.Backend.KerbTicket} {
		if *p, err = ExpandWithSecret(ctx, *p, c.Backend.Secret); err != nil {
			return err
		}
	}
	return nil
}

// Init fills defaults.
func (c *Config) Init() {
	c.Backend.Init()
	if c.Contents.CheckpointDir == "" {
		c.Contents.CheckpointDir = checkpoint.DefaultDir
	}
	if c.Contents.MaxCheckpoints <= 0 {
		c.Contents.MaxCheckpoints = checkpoint.DefaultMax
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.MCPAddr == "" {
		c.Server.MCPAddr = DefaultMCPAddr
	}
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Contents.Root) == "" {
		return fmt.Errorf("config: contents.root is required")
	}
	if c.Contents.ListCacheTTLMs < 0 {
		return fmt.Errorf("config: contents.listCacheTTLMs must not be negative")
	}
	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.maxRetries must not be negative")
	}
	return nil
}

// RetryPolicy returns the store retry policy.
func (c *Config) RetryPolicy() contents.RetryPolicy {
	policy := contents.DefaultRetryPolicy()
	if c.Retry.MaxRetries != nil {
		policy.MaxRetries = *c.Retry.MaxRetries
	}
	if c.Retry.MinIntervalMs > 0 {
		policy.MinInterval = time.Duration(c.Retry.MinIntervalMs) * time.Millisecond
	}
	if c.Retry.MaxIntervalMs > 0 {
		policy.MaxInterval = time.Duration(c.Retry.MaxIntervalMs) * time.Millisecond
	}
	if policy.MaxInterval < policy.MinInterval {
		policy.MaxInterval = policy.MinInterval
	}
	return policy
}

func expandUserPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed[0] != '~' {
		return path, nil
	}
	if trimmed != "~" && !strings.HasPrefix(trimmed, "~/") {
		return "", fmt.Errorf("config: unsupported ~user path: %s", path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if trimmed == "~" {
		return home, nil
	}
	return filepath.Join(home, trimmed[2:]), nil
}

// ExpandWithSecret loads a secret and expands ${...} placeholders in value.
func ExpandWithSecret(ctx context.Context, value, secretRef string) (string, error) {
	secretRef = strings.TrimSpace(secretRef)
	if secretRef == "" || !strings.Contains(value, "$") {
		return value, nil
	}
	svc := secret.New()
	sec, err := svc.Lookup(ctx, secret.Resource(secretRef))
	if err != nil {
		return "", fmt.Errorf("config: secret %s: %w", secretRef, err)
	}
	return sec.Expand(value), nil
}
