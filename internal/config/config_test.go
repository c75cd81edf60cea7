package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbotov/clashapi/pkg/clash"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLASH_EMAIL", "EMAIL", "CLASH_PASSWORD", "PASSWORD", "CLASH_MAX_KEYS",
		"CLASH_HTTP_TIMEOUT", "CLASH_KEY_SCOPE", "CLASH_STATIC_IP", "CLASH_CONFIG",
		"CLASH_REDIS_DB", "CLASH_PORTAL_URL", "CLASH_KEY_NAME", "CLASH_TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, clash.DefaultPortalURL, cfg.Portal.URL)
	assert.Equal(t, clash.DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, clash.ScopeClash, cfg.Portal.KeyScope)
	assert.Equal(t, 10, cfg.Portal.MaxKeys)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.Credentials)
	assert.True(t, errors.Is(cfg.Validate(), ErrMissingCredentials))
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMAIL", "legacy@example.com")
	t.Setenv("PASSWORD", "pw")
	t.Setenv("CLASH_MAX_KEYS", "3")
	t.Setenv("CLASH_HTTP_TIMEOUT", "5")
	t.Setenv("CLASH_KEY_SCOPE", "none")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []Credential{{Email: "legacy@example.com", Password: "pw"}}, cfg.Credentials)
	assert.Equal(t, 3, cfg.Portal.MaxKeys)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "", cfg.PortalConfig(nil).KeyScope)
}

func TestFromEnv_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLASH_MAX_KEYS", "many")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestApplyFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLASH_EMAIL", "env@example.com")
	t.Setenv("CLASH_PASSWORD", "env-pw")

	path := filepath.Join(t.TempDir(), "clash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
credentials:
  - email: file@example.com
    password: file-pw
portal:
  key_name: bot
  max_keys: 4
ip:
  static: 198.51.100.9
http_timeout: 12s
`), 0o600))

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyFile(path))

	creds := cfg.ClashCredentials()
	require.Equal(t, 2, creds.Len())
	first, _ := creds.First()
	assert.Equal(t, "env@example.com", first.Email())

	assert.Equal(t, "bot", cfg.Portal.KeyName)
	assert.Equal(t, 4, cfg.PortalConfig(nil).MaxKeys)
	assert.Equal(t, 12*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, clash.StaticIP("198.51.100.9"), cfg.IPResolver())
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "clash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials:\n  - email: a@example.com\n"), 0o600))
	t.Setenv("CLASH_CONFIG", path)

	_, err := Load()
	assert.Error(t, err, "a credential without a password is rejected")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.env")
	good := filepath.Join(dir, "good.env")
	require.NoError(t, os.WriteFile(good, []byte("CLASH_DOTENV_TEST=from-dotenv\n"), 0o600))

	// registers the restore, then leaves the variable unset for godotenv
	t.Setenv("CLASH_DOTENV_TEST", "")
	require.NoError(t, os.Unsetenv("CLASH_DOTENV_TEST"))

	require.NoError(t, loadDotEnv([]string{missing, good}))
	assert.Equal(t, "from-dotenv", os.Getenv("CLASH_DOTENV_TEST"))
}

func TestLoadDotEnv_Malformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOT-VALID=1\n"), 0o600))

	err := loadDotEnv([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestFromEnv_TrustedProxies(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLASH_TRUSTED_PROXIES", " 10.0.0.1, ,192.0.2.7 ")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "192.0.2.7"}, cfg.Server.TrustedProxies)
}
