// Package config provides layered configuration loading and the single
// resolution point for environment-derived service URLs.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultEnvName is the production environment identifier used when the
// session has never received one from a login callback.
const DefaultEnvName = "widgetstore-2get4jkof622d914"

const (
	prodBaseURL = "https://cn.widgetstore.net"
	devBaseURL  = "http://localhost:2306"

	// cloudHost is the serverless platform hosting the service's functions.
	cloudHost       = "ap-shanghai.app.tcloudbase.com"
	apiTenantSuffix = "-1304418908"
	tcbAPIBase      = "https://tcb-api.tencentcloudapi.com"
)

// Config holds the resolved configuration.
type Config struct {
	// Environment settings
	EnvName string `json:"env_name"`
	DevMode bool   `json:"dev_mode"`

	// URL overrides; when empty the URL is derived from EnvName/DevMode.
	BaseURLOverride    string `json:"base_url,omitempty"`
	APIURLOverride     string `json:"api_url,omitempty"`
	RefreshURLOverride string `json:"refresh_url,omitempty"`
	TCBURLOverride     string `json:"tcb_url,omitempty"`

	// Local state
	DataDir string `json:"data_dir"`

	// Output settings
	Format string `json:"format"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceSession Source = "session"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	EnvName string
	DataDir string
	Format  string
	DevMode *bool // nil when the flag was not set
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		EnvName: DefaultEnvName,
		DataDir: GlobalConfigDir(),
		Format:  "auto",
		Sources: make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > global file > defaults. Session-persisted values
// (env name, dev mode) are overlaid by the caller between the file and env
// layers, since they live in the settings blob rather than a config file.
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, globalConfigPath())
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	if v, ok := fileCfg["env_name"].(string); ok && v != "" {
		cfg.EnvName = v
		cfg.Sources["env_name"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["dev_mode"].(bool); ok {
		cfg.DevMode = v
		cfg.Sources["dev_mode"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["base_url"].(string); ok && v != "" {
		cfg.BaseURLOverride = v
		cfg.Sources["base_url"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["api_url"].(string); ok && v != "" {
		cfg.APIURLOverride = v
		cfg.Sources["api_url"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["refresh_url"].(string); ok && v != "" {
		cfg.RefreshURLOverride = v
		cfg.Sources["refresh_url"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["tcb_url"].(string); ok && v != "" {
		cfg.TCBURLOverride = v
		cfg.Sources["tcb_url"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["data_dir"].(string); ok && v != "" {
		cfg.DataDir = v
		cfg.Sources["data_dir"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(SourceGlobal)
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("WSQ_ENV_NAME"); v != "" {
		cfg.EnvName = v
		cfg.Sources["env_name"] = string(SourceEnv)
	}
	if v := os.Getenv("WSQ_DEV"); v != "" {
		cfg.DevMode = strings.ToLower(v) == "true" || v == "1"
		cfg.Sources["dev_mode"] = string(SourceEnv)
	}
	if v := os.Getenv("WSQ_BASE_URL"); v != "" {
		cfg.BaseURLOverride = v
		cfg.Sources["base_url"] = string(SourceEnv)
	}
	if v := os.Getenv("WSQ_API_URL"); v != "" {
		cfg.APIURLOverride = v
		cfg.Sources["api_url"] = string(SourceEnv)
	}
	if v := os.Getenv("WSQ_REFRESH_URL"); v != "" {
		cfg.RefreshURLOverride = v
		cfg.Sources["refresh_url"] = string(SourceEnv)
	}
	if v := os.Getenv("WSQ_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.Sources["data_dir"] = string(SourceEnv)
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.EnvName != "" {
		cfg.EnvName = o.EnvName
		cfg.Sources["env_name"] = string(SourceFlag)
	}
	if o.DevMode != nil {
		cfg.DevMode = *o.DevMode
		cfg.Sources["dev_mode"] = string(SourceFlag)
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
		cfg.Sources["data_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// Env returns the effective environment name.
func (c *Config) Env() string {
	if c.EnvName != "" {
		return c.EnvName
	}
	return DefaultEnvName
}

// BaseURL returns the web origin used for the browser login handoff.
// The dev-mode flag switches it to the local development host.
func (c *Config) BaseURL() string {
	if c.BaseURLOverride != "" {
		return strings.TrimSuffix(c.BaseURLOverride, "/")
	}
	if c.DevMode {
		return devBaseURL
	}
	return prodBaseURL
}

// LoginURL builds the external authorization URL carrying the state nonce.
// The provider uses hash routing, so the state rides in the fragment query.
func (c *Config) LoginURL(state string) string {
	return fmt.Sprintf("%s/#/auth/obsidian?state=%s", c.BaseURL(), url.QueryEscape(state))
}

// APIURL returns the versioned API root for the resolved environment.
func (c *Config) APIURL() string {
	if c.APIURLOverride != "" {
		return strings.TrimSuffix(c.APIURLOverride, "/")
	}
	return fmt.Sprintf("https://%s%s.%s/api/v2", c.Env(), apiTenantSuffix, cloudHost)
}

// RefreshURL returns the token-refresh endpoint for the resolved environment.
func (c *Config) RefreshURL() string {
	if c.RefreshURLOverride != "" {
		return strings.TrimSuffix(c.RefreshURLOverride, "/")
	}
	return fmt.Sprintf("https://%s.%s/refresh", c.Env(), cloudHost)
}

// TCBWebURL returns the serverless platform's document endpoint, used when
// copying a public widget into the user's space.
func (c *Config) TCBWebURL() string {
	if c.TCBURLOverride != "" {
		return strings.TrimSuffix(c.TCBURLOverride, "/")
	}
	return tcbAPIBase + "/web"
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "wsq")
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}
