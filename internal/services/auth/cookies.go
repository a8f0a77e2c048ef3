package auth

import (
	"context"
	"strings"

	"github.com/ternarybob/checkin/internal/models"
)

// CookiesAuthenticator validates user-supplied cookies by visiting the
// user-info endpoint and checking for a login redirect. An empty cookie
// map fails immediately, before any network activity.
type CookiesAuthenticator struct {
	auth     *models.AuthConfig
	provider *models.ProviderConfig
	deps     Deps
}

func (a *CookiesAuthenticator) Method() models.AuthMethod {
	return models.AuthMethodCookies
}

func (a *CookiesAuthenticator) Authenticate(ctx context.Context) (*models.AuthResult, error) {
	if len(a.auth.Cookies) == 0 {
		return models.AuthFailed("No cookies provided"), nil
	}

	session := a.deps.Session
	logger := a.deps.Logger

	cookies := make(map[string]string, len(a.auth.Cookies)+len(a.deps.WAFCookies))
	for name, value := range a.deps.WAFCookies {
		cookies[name] = value
	}
	for name, value := range a.auth.Cookies {
		cookies[name] = value
	}
	if err := session.SetCookies(a.provider.Domain(), cookies); err != nil {
		return nil, err
	}

	if err := session.Navigate(a.provider.UserInfoURL); err != nil {
		return nil, err
	}
	if err := session.WaitForClearance(); err != nil {
		return nil, err
	}

	location, err := session.Location()
	if err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToLower(location), "login") {
		logger.Warn().
			Str("location", location).
			Msg("Redirected to login page, cookies rejected")
		return models.AuthFailed("Cookies expired or invalid"), nil
	}

	finalCookies, err := session.Cookies()
	if err != nil {
		return nil, err
	}

	result := models.Authenticated(finalCookies, "", "")
	result.UserID, result.Username = ResolveIdentity(session, a.provider, logger)
	if a.auth.APIUser != "" {
		result.UserID = a.auth.APIUser
	}
	return result, nil
}
