package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/models"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Environment != "production" {
		t.Errorf("Environment = %q", config.Environment)
	}
	if !config.Browser.Headless {
		t.Error("Headless should default to true")
	}
	if config.Browser.NavigationTimeout != 20*time.Second {
		t.Errorf("NavigationTimeout = %v", config.Browser.NavigationTimeout)
	}
	if config.Checkin.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", config.Checkin.MaxAttempts)
	}
	if config.Checkin.AccountDelay != 2*time.Second {
		t.Errorf("AccountDelay = %v", config.Checkin.AccountDelay)
	}
	if config.Sessions.TTLHours != 24 {
		t.Errorf("TTLHours = %d", config.Sessions.TTLHours)
	}
	if config.Storage.Enabled {
		t.Error("Storage should default to disabled")
	}
}

func TestLoadFromFilesMerge(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	if err := os.WriteFile(base, []byte(`
environment = "development"

[sessions]
cache_dir = "/tmp/sessions"
ttl_hours = 12
`), 0644); err != nil {
		t.Fatal(err)
	}

	override := filepath.Join(dir, "override.toml")
	if err := os.WriteFile(override, []byte(`
[sessions]
ttl_hours = 48
`), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFiles(base, override)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}
	if config.Environment != "development" {
		t.Errorf("Environment = %q", config.Environment)
	}
	if config.Sessions.CacheDir != "/tmp/sessions" {
		t.Errorf("CacheDir = %q, first file should survive the merge", config.Sessions.CacheDir)
	}
	if config.Sessions.TTLHours != 48 {
		t.Errorf("TTLHours = %d, second file should win", config.Sessions.TTLHours)
	}
	if config.Checkin.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, defaults should survive", config.Checkin.MaxAttempts)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	if _, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHECKIN_ENV", "staging")
	t.Setenv("CHECKIN_LOG_LEVEL", "debug")
	t.Setenv("CHECKIN_BROWSER_HEADLESS", "false")
	t.Setenv("CHECKIN_ACCOUNT_DELAY", "500ms")
	t.Setenv("CHECKIN_SESSION_TTL_HOURS", "6")
	t.Setenv("CHECKIN_HISTORY_PATH", "/tmp/history")
	t.Setenv("PUSHPLUS_TOKEN", "pp-token")
	t.Setenv("EMAIL_USER", "a@example.com")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}
	if config.Environment != "staging" {
		t.Errorf("Environment = %q", config.Environment)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Level = %q", config.Logging.Level)
	}
	if config.Browser.Headless {
		t.Error("Headless should be overridden to false")
	}
	if config.Checkin.AccountDelay != 500*time.Millisecond {
		t.Errorf("AccountDelay = %v", config.Checkin.AccountDelay)
	}
	if config.Sessions.TTLHours != 6 {
		t.Errorf("TTLHours = %d", config.Sessions.TTLHours)
	}
	if !config.Storage.Enabled || config.Storage.Path != "/tmp/history" {
		t.Errorf("history path env should enable storage: %+v", config.Storage)
	}
	if config.Notify.PushPlusToken != "pp-token" {
		t.Errorf("PushPlusToken = %q", config.Notify.PushPlusToken)
	}
	if config.Notify.EmailUser != "a@example.com" {
		t.Errorf("EmailUser = %q", config.Notify.EmailUser)
	}
}

func TestLoadAccountsFromEnvironment(t *testing.T) {
	t.Setenv("ANYROUTER_ACCOUNTS", `[{"name": "alice", "cookies": {"session": "abc"}, "api_user": "42"}]`)
	t.Setenv("AGENTROUTER_ACCOUNTS", `[{"name": "bob", "github": {"username": "bob", "password": "secret"}}]`)

	accounts := LoadAccounts(NewDefaultConfig(), arbor.NewLogger())
	if len(accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(accounts))
	}
	if accounts[0].Name != "alice" || accounts[0].Provider != "anyrouter" {
		t.Errorf("first account = %s/%s", accounts[0].Name, accounts[0].Provider)
	}
	if accounts[1].Name != "bob" || accounts[1].Provider != "agentrouter" {
		t.Errorf("second account = %s/%s", accounts[1].Name, accounts[1].Provider)
	}
	if accounts[1].AuthConfigs[0].Method != models.AuthMethodGitHub {
		t.Errorf("method = %s", accounts[1].AuthConfigs[0].Method)
	}
}

func TestLoadAccountsBadSourceSkipped(t *testing.T) {
	t.Setenv("ANYROUTER_ACCOUNTS", `{not json`)
	t.Setenv("AGENTROUTER_ACCOUNTS", `[{"name": "bob", "cookies": {"s": "1"}}]`)

	accounts := LoadAccounts(NewDefaultConfig(), arbor.NewLogger())
	if len(accounts) != 1 {
		t.Fatalf("len(accounts) = %d, want 1 (bad source skipped)", len(accounts))
	}
	if accounts[0].Name != "bob" {
		t.Errorf("account = %s", accounts[0].Name)
	}
}

func TestLoadAccountsFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	if err := os.WriteFile(path, []byte(`
accounts:
  - name: carol
    provider: anyrouter
    auth_configs:
      - method: cookies
        cookies:
          session: xyz
`), 0644); err != nil {
		t.Fatal(err)
	}

	config := NewDefaultConfig()
	config.AccountsFile = path

	accounts := LoadAccounts(config, arbor.NewLogger())
	if len(accounts) != 1 {
		t.Fatalf("len(accounts) = %d, want 1", len(accounts))
	}
	if accounts[0].Name != "carol" {
		t.Errorf("account = %s", accounts[0].Name)
	}
	if accounts[0].AuthConfigs[0].Cookies["session"] != "xyz" {
		t.Errorf("cookies = %+v", accounts[0].AuthConfigs[0].Cookies)
	}
}

func TestValidateAccounts(t *testing.T) {
	logger := arbor.NewLogger()
	providers := models.DefaultProviders()

	accounts := []models.AccountConfig{
		{
			Name:     "good",
			Provider: "anyrouter",
			AuthConfigs: []models.AuthConfig{
				{Method: models.AuthMethodCookies, Cookies: map[string]string{"s": "1"}},
			},
		},
		{
			// Missing name fails structural validation.
			Provider: "anyrouter",
			AuthConfigs: []models.AuthConfig{
				{Method: models.AuthMethodCookies, Cookies: map[string]string{"s": "1"}},
			},
		},
		{
			Name:     "unknown-provider",
			Provider: "mysterouter",
			AuthConfigs: []models.AuthConfig{
				{Method: models.AuthMethodCookies, Cookies: map[string]string{"s": "1"}},
			},
		},
		{
			Name:     "bad-auth",
			Provider: "anyrouter",
			AuthConfigs: []models.AuthConfig{
				{Method: models.AuthMethodGitHub, Username: "x"},
			},
		},
	}

	valid := ValidateAccounts(accounts, providers, logger)
	if len(valid) != 1 {
		t.Fatalf("len(valid) = %d, want 1", len(valid))
	}
	if valid[0].Name != "good" {
		t.Errorf("surviving account = %s", valid[0].Name)
	}
}

func TestLoadProvidersCustomMerge(t *testing.T) {
	t.Setenv("PROVIDERS", `{"myrouter": {"base_url": "https://my.example", "checkin_url": "https://my.example/api/user/sign_in", "user_info_url": "https://my.example/api/user/self"}}`)

	providers := LoadProviders(arbor.NewLogger())
	if _, ok := providers["anyrouter"]; !ok {
		t.Error("built-in anyrouter should survive custom merge")
	}
	custom, ok := providers["myrouter"]
	if !ok {
		t.Fatal("custom provider missing")
	}
	if custom.Name != "myrouter" {
		t.Errorf("Name = %q, should default from map key", custom.Name)
	}
	if custom.APIUserHeader != "new-api-user" {
		t.Errorf("APIUserHeader = %q, should get the default", custom.APIUserHeader)
	}
}
