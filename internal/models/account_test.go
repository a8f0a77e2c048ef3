package models

import (
	"testing"
)

func TestParseAccounts(t *testing.T) {
	data := []byte(`[
		{
			"name": "alice",
			"cookies": {"session": "abc123"},
			"api_user": "42",
			"github": {"username": "alice-gh", "password": "secret", "totp_secret": "JBSWY3DP"}
		},
		{
			"provider": "agentrouter",
			"linux.do": {"email": "bob@example.com", "password": "hunter2"}
		}
	]`)

	accounts, err := ParseAccounts(data, "anyrouter")
	if err != nil {
		t.Fatalf("ParseAccounts failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	first := accounts[0]
	if first.Name != "alice" {
		t.Errorf("expected name alice, got %q", first.Name)
	}
	if first.Provider != "anyrouter" {
		t.Errorf("expected default provider anyrouter, got %q", first.Provider)
	}
	if len(first.AuthConfigs) != 2 {
		t.Fatalf("expected 2 auth configs, got %d", len(first.AuthConfigs))
	}
	if first.AuthConfigs[0].Method != AuthMethodCookies {
		t.Errorf("expected cookies first, got %s", first.AuthConfigs[0].Method)
	}
	if first.AuthConfigs[0].APIUser != "42" {
		t.Errorf("expected api_user 42, got %q", first.AuthConfigs[0].APIUser)
	}
	if first.AuthConfigs[1].Method != AuthMethodGitHub {
		t.Errorf("expected github second, got %s", first.AuthConfigs[1].Method)
	}
	if first.AuthConfigs[1].TOTPSecret != "JBSWY3DP" {
		t.Errorf("totp secret not carried through")
	}

	second := accounts[1]
	if second.Name != "account-2" {
		t.Errorf("expected fallback name account-2, got %q", second.Name)
	}
	if second.Provider != "agentrouter" {
		t.Errorf("explicit provider lost, got %q", second.Provider)
	}
	if len(second.AuthConfigs) != 1 || second.AuthConfigs[0].Method != AuthMethodLinuxDo {
		t.Fatalf("expected single linux.do auth config")
	}
	if second.AuthConfigs[0].Username != "bob@example.com" {
		t.Errorf("email fallback for username not applied, got %q", second.AuthConfigs[0].Username)
	}
}

func TestParseAccountsInvalidJSON(t *testing.T) {
	if _, err := ParseAccounts([]byte("{not json"), "anyrouter"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestAuthConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  AuthConfig
		wantErr bool
	}{
		{"cookies ok", AuthConfig{Method: AuthMethodCookies, Cookies: map[string]string{"session": "x"}}, false},
		{"cookies empty map", AuthConfig{Method: AuthMethodCookies}, true},
		{"cookies missing api_user ok", AuthConfig{Method: AuthMethodCookies, Cookies: map[string]string{"session": "x"}}, false},
		{"email ok", AuthConfig{Method: AuthMethodEmail, Username: "a", Password: "b"}, false},
		{"email missing password", AuthConfig{Method: AuthMethodEmail, Username: "a"}, true},
		{"github missing username", AuthConfig{Method: AuthMethodGitHub, Password: "b"}, true},
		{"linux.do ok", AuthConfig{Method: AuthMethodLinuxDo, Username: "a", Password: "b"}, false},
		{"unknown method", AuthConfig{Method: "oidc", Username: "a", Password: "b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccountValidateRequiresAuthConfig(t *testing.T) {
	account := AccountConfig{Name: "x", Provider: "anyrouter"}
	if err := account.Validate(); err == nil {
		t.Fatal("expected error for account without auth configs")
	}
}

func TestBalanceKey(t *testing.T) {
	account := AccountConfig{Name: "alice", Provider: "anyrouter"}
	if got := account.BalanceKey(AuthMethodGitHub); got != "alice_github" {
		t.Errorf("BalanceKey = %q, want alice_github", got)
	}
	if got := account.BalanceKey(AuthMethodLinuxDo); got != "alice_linux.do" {
		t.Errorf("BalanceKey = %q, want alice_linux.do", got)
	}
}

func TestSessionEntryExpired(t *testing.T) {
	entry := SessionEntry{}
	entry.ExpiresAt = entry.CreatedAt.Add(1)
	if !entry.Expired(entry.ExpiresAt.Add(1)) {
		t.Error("entry past expiry should be expired")
	}
	if entry.Expired(entry.ExpiresAt.Add(-1)) {
		t.Error("entry before expiry should not be expired")
	}
}
