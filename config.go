package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	defaultBaseURL  = "https://app.rainyun.com"
	defaultUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	defaultOCRModel = "gpt-4o-mini"
	defaultCooldown = 10 * time.Second
)

// ocrConfig holds captcha OCR configuration. The endpoint must speak the
// OpenAI chat-completions protocol and accept image content.
type ocrConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
}

// appConfig holds the application configuration.
type appConfig struct {
	BaseURL         string       `json:"base_url"`
	UserAgent       string       `json:"user_agent"`
	Headless        bool         `json:"headless"`
	CooldownSeconds int          `json:"cooldown_seconds"`
	Accounts        []credential `json:"accounts,omitempty"`
	OCR             ocrConfig    `json:"ocr,omitempty"`
}

func defaultConfig() appConfig {
	return appConfig{
		BaseURL:         defaultBaseURL,
		UserAgent:       defaultUA,
		Headless:        true,
		CooldownSeconds: int(defaultCooldown / time.Second),
		OCR: ocrConfig{
			Enabled: true,
			Model:   defaultOCRModel,
		},
	}
}

func (c appConfig) loginURL() string   { return c.BaseURL + "/account/signin" }
func (c appConfig) accountURL() string { return c.BaseURL + "/account/overview" }

func (c appConfig) cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// loadConfig loads configuration from the specified path. A missing file is
// fine: every setting has a default.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return appConfig{}, fmt.Errorf("stat config: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanfjson.Parser()); err != nil {
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return appConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUA
	}
	if cfg.CooldownSeconds < 0 {
		cfg.CooldownSeconds = 0
	}
	if strings.TrimSpace(cfg.OCR.Model) == "" {
		cfg.OCR.Model = defaultOCRModel
	}
	return cfg, nil
}

// credential is one account's login pair, immutable once parsed. The password
// never appears in output; usernames are shown masked.
type credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// masked renders the username for display, keeping a short prefix and suffix.
func (c credential) masked() string {
	if len(c.Username) > 6 {
		return c.Username[:3] + "***" + c.Username[len(c.Username)-3:]
	}
	return "***"
}

// resolveAccounts returns the ordered account list: RAINYUN_ACCOUNTS first
// (JSON array or `username----password` lines), then the single
// RAINYUN_USERNAME / RAINYUN_PASSWORD pair, then whatever the config file
// carries.
func resolveAccounts(cfg appConfig) []credential {
	if raw := strings.TrimSpace(os.Getenv("RAINYUN_ACCOUNTS")); raw != "" {
		if accs := parseAccounts(raw); len(accs) > 0 {
			return accs
		}
	}

	user := strings.TrimSpace(os.Getenv("RAINYUN_USERNAME"))
	pass := os.Getenv("RAINYUN_PASSWORD")
	if user != "" && pass != "" {
		return []credential{{Username: user, Password: pass}}
	}

	return validAccounts(cfg.Accounts)
}

// parseAccounts accepts either a JSON array of {username,password} objects or
// plain `username----password` lines, preserving input order.
func parseAccounts(raw string) []credential {
	var accs []credential
	if err := json.Unmarshal([]byte(raw), &accs); err == nil {
		return validAccounts(accs)
	}

	accs = accs[:0]
	for _, line := range strings.Split(raw, "\n") {
		user, pass, ok := strings.Cut(strings.TrimSpace(line), "----")
		if !ok {
			continue
		}
		accs = append(accs, credential{
			Username: strings.TrimSpace(user),
			Password: strings.TrimSpace(pass),
		})
	}
	return validAccounts(accs)
}

func validAccounts(accs []credential) []credential {
	out := make([]credential, 0, len(accs))
	for _, a := range accs {
		if a.Username == "" || a.Password == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
