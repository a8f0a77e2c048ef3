package models

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// ProviderConfig is the static descriptor for one target site. Loaded once
// at startup; two providers are built in and more can be added via the
// PROVIDERS environment variable.
type ProviderConfig struct {
	Name         string `json:"name" toml:"name"`
	BaseURL      string `json:"base_url" toml:"base_url"`
	LoginURL     string `json:"login_url" toml:"login_url"`
	CheckinURL   string `json:"checkin_url" toml:"checkin_url"`
	UserInfoURL  string `json:"user_info_url" toml:"user_info_url"`
	StatusURL    string `json:"status_url" toml:"status_url"`
	AuthStateURL string `json:"auth_state_url" toml:"auth_state_url"`
	// APIUserHeader is the header name carrying the resolved user id on
	// check-in and user-info requests.
	APIUserHeader string `json:"api_user_header" toml:"api_user_header"`
	// WAFWarmup marks providers that require WAF cookies before the API
	// accepts requests. WAFWarmupURLs are tried in order; for providers
	// where warmup is optional the orchestrator downgrades a miss to a
	// warning.
	WAFWarmup     bool     `json:"waf_warmup" toml:"waf_warmup"`
	WAFWarmupURLs []string `json:"waf_warmup_urls" toml:"waf_warmup_urls"`
}

// GetStatusURL returns the OAuth status endpoint, defaulting from BaseURL.
func (p *ProviderConfig) GetStatusURL() string {
	if p.StatusURL != "" {
		return p.StatusURL
	}
	return p.BaseURL + "/api/status"
}

// GetAuthStateURL returns the OAuth state endpoint, defaulting from BaseURL.
func (p *ProviderConfig) GetAuthStateURL() string {
	if p.AuthStateURL != "" {
		return p.AuthStateURL
	}
	return p.BaseURL + "/api/oauth/auth-state"
}

// Domain returns the host of the base URL, used when injecting cookies.
func (p *ProviderConfig) Domain() string {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// DefaultProviders returns the built-in provider registry.
func DefaultProviders() map[string]*ProviderConfig {
	return map[string]*ProviderConfig{
		"anyrouter": {
			Name:          "AnyRouter",
			BaseURL:       "https://anyrouter.top",
			LoginURL:      "https://anyrouter.top/login",
			CheckinURL:    "https://anyrouter.top/api/user/sign_in",
			UserInfoURL:   "https://anyrouter.top/api/user/self",
			StatusURL:     "https://anyrouter.top/api/status",
			AuthStateURL:  "https://anyrouter.top/api/oauth/auth-state",
			APIUserHeader: "new-api-user",
			WAFWarmup:     true,
			WAFWarmupURLs: []string{"https://anyrouter.top/login"},
		},
		"agentrouter": {
			Name:          "AgentRouter",
			BaseURL:       "https://agentrouter.org",
			LoginURL:      "https://agentrouter.org/login",
			CheckinURL:    "https://agentrouter.org/api/user/sign_in",
			UserInfoURL:   "https://agentrouter.org/api/user/self",
			StatusURL:     "https://agentrouter.org/api/status",
			AuthStateURL:  "https://agentrouter.org/api/oauth/auth-state",
			APIUserHeader: "new-api-user",
			// AgentRouter works without WAF cookies; warmup is attempted
			// against both URLs but a miss is not fatal.
			WAFWarmup:     false,
			WAFWarmupURLs: []string{"https://agentrouter.org", "https://agentrouter.org/console"},
		},
	}
}

// ParseProviders decodes the PROVIDERS env JSON (name -> descriptor) and
// merges it over the built-in registry. Custom providers default the API
// user header when omitted.
func ParseProviders(data []byte) (map[string]*ProviderConfig, error) {
	providers := DefaultProviders()
	if len(data) == 0 {
		return providers, nil
	}

	var custom map[string]*ProviderConfig
	if err := json.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("failed to parse custom providers: %w", err)
	}
	for name, p := range custom {
		if p.Name == "" {
			p.Name = name
		}
		if p.APIUserHeader == "" {
			p.APIUserHeader = "new-api-user"
		}
		providers[name] = p
	}
	return providers, nil
}
