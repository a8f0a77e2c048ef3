package models

import (
	"encoding/json"
	"fmt"
)

// AuthMethod identifies one of the supported authentication mechanisms.
// The set is closed; NewAuthenticator in services/auth matches it
// exhaustively so an unknown method fails at construction time.
type AuthMethod string

const (
	AuthMethodCookies AuthMethod = "cookies"
	AuthMethodEmail   AuthMethod = "email"
	AuthMethodGitHub  AuthMethod = "github"
	AuthMethodLinuxDo AuthMethod = "linux.do"
)

// Valid reports whether the method is one of the supported variants.
func (m AuthMethod) Valid() bool {
	switch m {
	case AuthMethodCookies, AuthMethodEmail, AuthMethodGitHub, AuthMethodLinuxDo:
		return true
	}
	return false
}

func (m AuthMethod) String() string {
	return string(m)
}

// AuthConfig holds the credentials for a single authentication method.
// Exactly the fields the method requires must be set; Validate enforces
// that before any network or browser activity happens.
type AuthConfig struct {
	Method   AuthMethod        `json:"method" yaml:"method"`
	Cookies  map[string]string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	APIUser  string            `json:"api_user,omitempty" yaml:"api_user,omitempty"`
	Username string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	// TOTPSecret enables automated GitHub two-factor codes. One-time codes
	// and recovery codes come from the environment instead.
	TOTPSecret    string   `json:"totp_secret,omitempty" yaml:"totp_secret,omitempty"`
	RecoveryCodes []string `json:"recovery_codes,omitempty" yaml:"recovery_codes,omitempty"`
}

// Validate checks that the fields required by the method are present.
// A missing api_user for the cookies method is not an error: it can be
// resolved from the user-info endpoint after authentication.
func (a *AuthConfig) Validate() error {
	if !a.Method.Valid() {
		return fmt.Errorf("unknown auth method %q", a.Method)
	}
	switch a.Method {
	case AuthMethodCookies:
		if len(a.Cookies) == 0 {
			return fmt.Errorf("cookies auth requires a non-empty cookie map")
		}
	case AuthMethodEmail, AuthMethodGitHub, AuthMethodLinuxDo:
		if a.Username == "" || a.Password == "" {
			return fmt.Errorf("%s auth requires username and password", a.Method)
		}
	}
	return nil
}

// AccountConfig describes one account on one provider together with its
// ordered list of authentication methods. Parsed once at startup and
// immutable for the run.
type AccountConfig struct {
	Name        string       `json:"name" yaml:"name" validate:"required"`
	Provider    string       `json:"provider" yaml:"provider" validate:"required"`
	AuthConfigs []AuthConfig `json:"auth_configs" yaml:"auth_configs" validate:"min=1"`
}

// Validate rejects accounts whose auth configurations are incomplete.
func (a *AccountConfig) Validate() error {
	if len(a.AuthConfigs) == 0 {
		return fmt.Errorf("account %q: no authentication method configured", a.Name)
	}
	for i := range a.AuthConfigs {
		if err := a.AuthConfigs[i].Validate(); err != nil {
			return fmt.Errorf("account %q: %w", a.Name, err)
		}
	}
	return nil
}

// BalanceKey is the persistence key shared by the balance tracker and the
// run report for one (account, method) combination.
func (a *AccountConfig) BalanceKey(method AuthMethod) string {
	return fmt.Sprintf("%s_%s", a.Name, method)
}

// accountEnvelope mirrors the flat JSON the original deployments use:
// auth methods appear as top-level keys rather than a list.
type accountEnvelope struct {
	Name     string            `json:"name"`
	Provider string            `json:"provider"`
	Cookies  map[string]string `json:"cookies"`
	APIUser  string            `json:"api_user"`
	Email    *credentialPair   `json:"email"`
	GitHub   *credentialPair   `json:"github"`
	LinuxDo  *credentialPair   `json:"linux.do"`
}

type credentialPair struct {
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	TOTPSecret    string   `json:"totp_secret"`
	RecoveryCodes []string `json:"recovery_codes"`
}

// loginName returns the username, falling back to the email address when
// only that was configured. All three credential methods accept either.
func (c *credentialPair) loginName() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Email
}

// ParseAccounts decodes a JSON array of account envelopes. defaultProvider
// is applied to entries that do not name one; index-based fallback names
// keep cache and balance keys stable for unnamed accounts.
func ParseAccounts(data []byte, defaultProvider string) ([]AccountConfig, error) {
	var envelopes []accountEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to parse accounts JSON: %w", err)
	}

	accounts := make([]AccountConfig, 0, len(envelopes))
	for i, env := range envelopes {
		account := AccountConfig{
			Name:     env.Name,
			Provider: env.Provider,
		}
		if account.Name == "" {
			account.Name = fmt.Sprintf("account-%d", i+1)
		}
		if account.Provider == "" {
			account.Provider = defaultProvider
		}

		if len(env.Cookies) > 0 {
			account.AuthConfigs = append(account.AuthConfigs, AuthConfig{
				Method:  AuthMethodCookies,
				Cookies: env.Cookies,
				APIUser: env.APIUser,
			})
		}
		if env.Email != nil {
			account.AuthConfigs = append(account.AuthConfigs, AuthConfig{
				Method:   AuthMethodEmail,
				Username: env.Email.loginName(),
				Password: env.Email.Password,
			})
		}
		if env.GitHub != nil {
			account.AuthConfigs = append(account.AuthConfigs, AuthConfig{
				Method:        AuthMethodGitHub,
				Username:      env.GitHub.loginName(),
				Password:      env.GitHub.Password,
				TOTPSecret:    env.GitHub.TOTPSecret,
				RecoveryCodes: env.GitHub.RecoveryCodes,
			})
		}
		if env.LinuxDo != nil {
			account.AuthConfigs = append(account.AuthConfigs, AuthConfig{
				Method:   AuthMethodLinuxDo,
				Username: env.LinuxDo.loginName(),
				Password: env.LinuxDo.Password,
			})
		}

		accounts = append(accounts, account)
	}

	return accounts, nil
}
