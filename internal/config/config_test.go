package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultEnvName, cfg.EnvName)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "auto", cfg.Format)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestBaseURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://cn.widgetstore.net", cfg.BaseURL())

	cfg.DevMode = true
	assert.Equal(t, "http://localhost:2306", cfg.BaseURL())

	cfg.BaseURLOverride = "http://127.0.0.1:9999/"
	assert.Equal(t, "http://127.0.0.1:9999", cfg.BaseURL(), "override wins and trailing slash is trimmed")
}

func TestLoginURL(t *testing.T) {
	cfg := Default()

	got := cfg.LoginURL("abc123")
	assert.Equal(t, "https://cn.widgetstore.net/#/auth/obsidian?state=abc123", got)

	cfg.DevMode = true
	assert.Equal(t, "http://localhost:2306/#/auth/obsidian?state=abc123", cfg.LoginURL("abc123"))
}

func TestAPIURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"https://"+DefaultEnvName+"-1304418908.ap-shanghai.app.tcloudbase.com/api/v2",
		cfg.APIURL())

	cfg.EnvName = "custom-env"
	assert.Contains(t, cfg.APIURL(), "custom-env-1304418908")

	cfg.APIURLOverride = "http://127.0.0.1:8080"
	assert.Equal(t, "http://127.0.0.1:8080", cfg.APIURL())
}

func TestRefreshURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"https://"+DefaultEnvName+".ap-shanghai.app.tcloudbase.com/refresh",
		cfg.RefreshURL())
}

func TestTCBWebURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://tcb-api.tencentcloudapi.com/web", cfg.TCBWebURL())
}

func TestEnvFallsBackToDefault(t *testing.T) {
	cfg := Default()
	cfg.EnvName = ""
	assert.Equal(t, DefaultEnvName, cfg.Env())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WSQ_ENV_NAME", "env-from-env")
	t.Setenv("WSQ_DEV", "true")
	t.Setenv("WSQ_API_URL", "http://127.0.0.1:8080")
	t.Setenv("WSQ_DATA_DIR", "/tmp/wsq-test")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, "env-from-env", cfg.EnvName)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.APIURLOverride)
	assert.Equal(t, "/tmp/wsq-test", cfg.DataDir)
	assert.Equal(t, string(SourceEnv), cfg.Sources["env_name"])
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"env_name": "env-from-file",
		"dev_mode": true,
		"format": "json"
	}`), 0600))

	cfg := Default()
	loadFromFile(cfg, path)

	assert.Equal(t, "env-from-file", cfg.EnvName)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, string(SourceGlobal), cfg.Sources["env_name"])
}

func TestLoadFromFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	cfg := Default()
	loadFromFile(cfg, path)

	assert.Equal(t, DefaultEnvName, cfg.EnvName, "malformed file is skipped")
}

func TestApplyOverrides(t *testing.T) {
	dev := true
	cfg := Default()

	ApplyOverrides(cfg, FlagOverrides{
		EnvName: "env-from-flag",
		DataDir: "/tmp/flag-dir",
		DevMode: &dev,
	})

	assert.Equal(t, "env-from-flag", cfg.EnvName)
	assert.Equal(t, "/tmp/flag-dir", cfg.DataDir)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, string(SourceFlag), cfg.Sources["dev_mode"])
}

func TestFlagOverridesBeatEnv(t *testing.T) {
	t.Setenv("WSQ_ENV_NAME", "env-from-env")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir()) // keep the real global config out

	cfg, err := Load(FlagOverrides{EnvName: "env-from-flag"})
	require.NoError(t, err)

	assert.Equal(t, "env-from-flag", cfg.EnvName)
	assert.Equal(t, string(SourceFlag), cfg.Sources["env_name"])
}

func TestGlobalConfigDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "wsq"), GlobalConfigDir())
}
