package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ternarybob/checkin/internal/models"
	"github.com/ternarybob/checkin/internal/services/checkin"
)

// fetchOAuthParams retrieves the provider-registered OAuth client ids and
// the CSRF state. A direct HTTP call (seeded with WAF cookies) is tried
// first; if the WAF blocks it, the same endpoints are fetched from inside
// the page, where the browser's clearance applies.
func fetchOAuthParams(ctx context.Context, deps Deps, provider *models.ProviderConfig) (*checkin.OAuthParams, error) {
	client, err := checkin.NewClient(provider, deps.WAFCookies, "", deps.Browser.UserAgent, deps.RequestTimeout, nil, deps.Logger)
	if err != nil {
		return nil, err
	}
	params, err := client.OAuthStatus(ctx)
	if err == nil {
		return params, nil
	}
	deps.Logger.Debug().Err(err).Msg("Direct OAuth parameter fetch failed, retrying inside browser")
	return fetchOAuthParamsInBrowser(deps, provider)
}

func fetchOAuthParamsInBrowser(deps Deps, provider *models.ProviderConfig) (*checkin.OAuthParams, error) {
	fetchJSON := func(url string) (json.RawMessage, error) {
		script := fmt.Sprintf(
			`fetch(%q, {credentials: "include"}).then(r => r.json()).then(d => JSON.stringify(d)).catch(() => "")`,
			url,
		)
		var raw string
		if err := deps.Session.EvaluateAsync(script, &raw); err != nil {
			return nil, err
		}
		if raw == "" {
			return nil, fmt.Errorf("in-page fetch of %s returned nothing", url)
		}
		var envelope struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return nil, fmt.Errorf("in-page fetch of %s returned unexpected payload: %w", url, err)
		}
		if !envelope.Success {
			return nil, fmt.Errorf("in-page fetch of %s reported failure", url)
		}
		return envelope.Data, nil
	}

	statusData, err := fetchJSON(provider.GetStatusURL())
	if err != nil {
		return nil, err
	}
	var status struct {
		GitHubClientID  string `json:"github_client_id"`
		LinuxDoClientID string `json:"linuxdo_client_id"`
	}
	if err := json.Unmarshal(statusData, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status payload: %w", err)
	}

	stateData, err := fetchJSON(provider.GetAuthStateURL())
	if err != nil {
		return nil, err
	}
	var state string
	if err := json.Unmarshal(stateData, &state); err != nil {
		return nil, fmt.Errorf("failed to decode auth-state payload: %w", err)
	}

	return &checkin.OAuthParams{
		GitHubClientID:  status.GitHubClientID,
		LinuxDoClientID: status.LinuxDoClientID,
		State:           state,
	}, nil
}

// githubEndpoint and linuxDoEndpoint describe the authorize URLs the
// consoles hand control to. Only AuthURL matters: the code exchange
// happens server-side on the provider's callback.
var (
	githubEndpoint = oauth2.Endpoint{
		AuthURL: "https://github.com/login/oauth/authorize",
	}
	linuxDoEndpoint = oauth2.Endpoint{
		AuthURL: "https://connect.linux.do/oauth2/authorize",
	}
)

// authorizeURL builds the upstream authorize URL for a console-initiated
// OAuth dance.
func authorizeURL(endpoint oauth2.Endpoint, clientID, redirectURL, state string, scopes []string) string {
	config := oauth2.Config{
		ClientID:    clientID,
		Endpoint:    endpoint,
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
	return config.AuthCodeURL(state)
}

// awaitLocationChange polls until the page leaves the given location or
// maxWait elapses, returning the location it ended up on.
func awaitLocationChange(location func() (string, error), sleep func(time.Duration) error, from string, maxWait time.Duration) (string, error) {
	deadline := time.Now().Add(maxWait)
	for {
		current, err := location()
		if err != nil {
			return "", err
		}
		if current != from {
			return current, nil
		}
		if time.Now().After(deadline) {
			return current, fmt.Errorf("page stayed on %s for %s", from, maxWait)
		}
		if err := sleep(500 * time.Millisecond); err != nil {
			return "", err
		}
	}
}

// waitForRedirect blocks until a click has actually navigated the page
// away from fromLocation. Clicking the OAuth button starts a redirect
// chain; reading the location before it settles would still see the
// console's own login page.
func waitForRedirect(deps Deps, fromLocation string) error {
	_, err := awaitLocationChange(deps.Session.Location, deps.Session.Sleep, fromLocation, deps.Browser.NavigationTimeout)
	return err
}

// waitForCallback polls the page location until control returns to the
// provider's domain, meaning the OAuth callback completed.
func waitForCallback(deps Deps, provider *models.ProviderConfig) error {
	deadline := time.Now().Add(deps.Browser.CallbackMaxWait)
	domain := provider.Domain()
	for {
		location, err := deps.Session.Location()
		if err != nil {
			return err
		}
		if strings.Contains(location, domain) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("OAuth callback did not return to %s within %s (stuck at %s)", domain, deps.Browser.CallbackMaxWait, location)
		}
		if err := deps.Session.Sleep(time.Second); err != nil {
			return err
		}
	}
}

// waitForSessionCookie polls the jar after the callback until one of the
// known session cookies shows up. The consoles set it asynchronously
// after the redirect, so a short poll is needed.
func waitForSessionCookie(deps Deps, maxWait time.Duration) (map[string]string, error) {
	deadline := time.Now().Add(maxWait)
	for {
		cookies, err := deps.Session.Cookies()
		if err != nil {
			return nil, err
		}
		if hasSessionCookie(cookies) {
			return cookies, nil
		}
		if time.Now().After(deadline) {
			// Return what we have; validation happens at check-in time.
			deps.Logger.Warn().
				Str("max_wait", maxWait.String()).
				Msg("No recognized session cookie after OAuth callback")
			return cookies, nil
		}
		if err := deps.Session.Sleep(time.Second); err != nil {
			return nil, err
		}
	}
}

// cacheSession stores an OAuth login so the next run skips the browser
// dance entirely while the entry is fresh.
func cacheSession(deps Deps, provider *models.ProviderConfig, result *models.AuthResult) {
	if deps.Cache == nil || !result.Authenticated {
		return
	}
	entry := &models.SessionEntry{
		AccountName: deps.AccountName,
		Provider:    provider.Name,
		Cookies:     result.Cookies,
		UserID:      result.UserID,
		Username:    result.Username,
	}
	if err := deps.Cache.Save(entry, deps.CacheTTLHours); err != nil {
		deps.Logger.Warn().Err(err).Msg("Failed to cache session")
	}
}
