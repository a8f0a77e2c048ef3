package auth

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/models"
)

func TestNewAuthenticatorForEachMethod(t *testing.T) {
	provider := models.DefaultProviders()["anyrouter"]
	deps := Deps{Logger: arbor.NewLogger()}

	tests := []struct {
		method  models.AuthMethod
		wantErr bool
	}{
		{models.AuthMethodCookies, false},
		{models.AuthMethodEmail, false},
		{models.AuthMethodGitHub, false},
		{models.AuthMethodLinuxDo, false},
		{models.AuthMethod("webauthn"), true},
		{models.AuthMethod(""), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			authenticator, err := New(&models.AuthConfig{Method: tt.method}, provider, deps)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for method %q", tt.method)
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := authenticator.Method(); got != tt.method {
				t.Errorf("Method() = %s, want %s", got, tt.method)
			}
		})
	}
}

func TestCookiesAuthenticatorEmptyMapFailsFast(t *testing.T) {
	provider := models.DefaultProviders()["anyrouter"]
	// No browser session in deps: the empty-map check must run before any
	// browser or network activity.
	deps := Deps{Logger: arbor.NewLogger()}

	authenticator, err := New(&models.AuthConfig{Method: models.AuthMethodCookies}, provider, deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := authenticator.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if result.Authenticated {
		t.Fatal("empty cookie map should not authenticate")
	}
	if result.Reason != "No cookies provided" {
		t.Errorf("Reason = %q", result.Reason)
	}
}

func TestHasSessionCookie(t *testing.T) {
	tests := []struct {
		name    string
		cookies map[string]string
		want    bool
	}{
		{"session cookie", map[string]string{"session": "abc"}, true},
		{"token cookie", map[string]string{"token": "abc"}, true},
		{"jwt cookie", map[string]string{"jwt": "abc"}, true},
		{"only waf cookies", map[string]string{"acw_tc": "x", "cdn_sec_tc": "y"}, false},
		{"empty", map[string]string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasSessionCookie(tt.cookies); got != tt.want {
				t.Errorf("hasSessionCookie(%v) = %v, want %v", tt.cookies, got, tt.want)
			}
		})
	}
}
