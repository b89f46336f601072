package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountsJSON(t *testing.T) {
	accs := parseAccounts(`[{"username":"a@b.com","password":"p1"},{"username":"c@d.com","password":"p2"}]`)
	require.Len(t, accs, 2)
	assert.Equal(t, "a@b.com", accs[0].Username)
	assert.Equal(t, "c@d.com", accs[1].Username)
}

func TestParseAccountsLines(t *testing.T) {
	accs := parseAccounts("a----p\nb----p2")
	require.Len(t, accs, 2)
	assert.Equal(t, credential{Username: "a", Password: "p"}, accs[0])
	assert.Equal(t, credential{Username: "b", Password: "p2"}, accs[1])
}

func TestParseAccountsSkipsGarbage(t *testing.T) {
	accs := parseAccounts("  a----p  \n\nnot a pair\n----missinguser\nc----\nd----p4")
	require.Len(t, accs, 2)
	assert.Equal(t, "a", accs[0].Username)
	assert.Equal(t, "d", accs[1].Username)
}

func TestParseAccountsJSONDropsIncompleteEntries(t *testing.T) {
	accs := parseAccounts(`[{"username":"a@b.com"},{"username":"c@d.com","password":"p2"}]`)
	require.Len(t, accs, 1)
	assert.Equal(t, "c@d.com", accs[0].Username)
}

func TestResolveAccountsPrecedence(t *testing.T) {
	cfg := defaultConfig()
	cfg.Accounts = []credential{{Username: "from-config", Password: "p"}}

	t.Run("accounts env wins", func(t *testing.T) {
		t.Setenv("RAINYUN_ACCOUNTS", "x----p1\ny----p2")
		t.Setenv("RAINYUN_USERNAME", "single")
		t.Setenv("RAINYUN_PASSWORD", "p")
		accs := resolveAccounts(cfg)
		require.Len(t, accs, 2)
		assert.Equal(t, "x", accs[0].Username)
	})

	t.Run("single pair next", func(t *testing.T) {
		t.Setenv("RAINYUN_ACCOUNTS", "")
		t.Setenv("RAINYUN_USERNAME", "single")
		t.Setenv("RAINYUN_PASSWORD", "p")
		accs := resolveAccounts(cfg)
		require.Len(t, accs, 1)
		assert.Equal(t, "single", accs[0].Username)
	})

	t.Run("config file last", func(t *testing.T) {
		t.Setenv("RAINYUN_ACCOUNTS", "")
		t.Setenv("RAINYUN_USERNAME", "")
		t.Setenv("RAINYUN_PASSWORD", "")
		accs := resolveAccounts(cfg)
		require.Len(t, accs, 1)
		assert.Equal(t, "from-config", accs[0].Username)
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv("RAINYUN_ACCOUNTS", "")
		t.Setenv("RAINYUN_USERNAME", "")
		t.Setenv("RAINYUN_PASSWORD", "")
		assert.Empty(t, resolveAccounts(defaultConfig()))
	})
}

func TestMaskedUsername(t *testing.T) {
	assert.Equal(t, "a@b***com", credential{Username: "a@b.com"}.masked())
	assert.Equal(t, "use***ple", credential{Username: "user@example"}.masked())
	assert.Equal(t, "***", credential{Username: "short"}.masked())
	assert.Equal(t, "***", credential{Username: ""}.masked())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.OCR.Enabled)
	assert.Equal(t, defaultCooldown, cfg.cooldown())
}

func TestLoadConfigNormalizesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"base_url": "https://portal.example.com/ ",
		"cooldown_seconds": -5,
		"ocr": {"enabled": true, "model": "  "}
	}`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com", cfg.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.cooldown())
	assert.Equal(t, defaultOCRModel, cfg.OCR.Model)
	assert.Equal(t, defaultUA, cfg.UserAgent)
}

func TestConfigURLs(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "https://app.rainyun.com/account/signin", cfg.loginURL())
	assert.Equal(t, "https://app.rainyun.com/account/overview", cfg.accountURL())
}
