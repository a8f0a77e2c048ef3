package auth

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
)

// keyCookieNames identify an authenticated session in a cookie snapshot.
// The consoles vary in which one they issue, so any match counts.
var keyCookieNames = []string{
	"session",
	"sessionid",
	"token",
	"auth",
	"jwt",
	"user_id",
	"csrf_token",
}

func hasSessionCookie(cookies map[string]string) bool {
	for _, name := range keyCookieNames {
		if _, ok := cookies[name]; ok {
			return true
		}
	}
	return false
}

// Deps carries everything an authenticator needs beyond its credentials.
// The browser session is owned by the orchestrator; authenticators only
// drive it.
type Deps struct {
	Session    *browser.Session
	Browser    common.BrowserConfig
	WAFCookies map[string]string
	Cache      interfaces.SessionStore
	// AccountName keys the session cache entry for OAuth logins.
	AccountName    string
	CacheTTLHours  int
	RequestTimeout time.Duration
	Logger         arbor.ILogger
}

// New returns the authenticator for the configured method. The match is
// exhaustive: an unknown method fails here, before any browser work.
func New(authConfig *models.AuthConfig, provider *models.ProviderConfig, deps Deps) (interfaces.Authenticator, error) {
	switch authConfig.Method {
	case models.AuthMethodCookies:
		return &CookiesAuthenticator{auth: authConfig, provider: provider, deps: deps}, nil
	case models.AuthMethodEmail:
		return &EmailAuthenticator{auth: authConfig, provider: provider, deps: deps}, nil
	case models.AuthMethodGitHub:
		return &GitHubAuthenticator{auth: authConfig, provider: provider, deps: deps}, nil
	case models.AuthMethodLinuxDo:
		return &LinuxDoAuthenticator{auth: authConfig, provider: provider, deps: deps}, nil
	default:
		return nil, fmt.Errorf("unknown auth method %q", authConfig.Method)
	}
}
