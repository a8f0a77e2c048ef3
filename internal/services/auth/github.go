package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/models"
)

// GitHubAuthenticator performs the console's GitHub OAuth dance: click
// the GitHub button (or build the authorize URL directly), sign in on
// github.com including two-factor handling, approve the authorization,
// and wait for the callback to land back on the console.
type GitHubAuthenticator struct {
	auth     *models.AuthConfig
	provider *models.ProviderConfig
	deps     Deps
}

func (a *GitHubAuthenticator) Method() models.AuthMethod {
	return models.AuthMethodGitHub
}

func (a *GitHubAuthenticator) Authenticate(ctx context.Context) (*models.AuthResult, error) {
	session := a.deps.Session
	logger := a.deps.Logger

	if len(a.deps.WAFCookies) > 0 {
		if err := session.SetCookies(a.provider.Domain(), a.deps.WAFCookies); err != nil {
			return nil, err
		}
	}

	if err := session.Navigate(a.provider.LoginURL); err != nil {
		return nil, err
	}
	if err := session.WaitForClearance(); err != nil {
		return nil, err
	}
	dismissPopup(session)

	if err := a.openAuthorizePage(ctx); err != nil {
		logger.Warn().Err(err).Msg("GitHub authorize page could not be reached")
		return models.AuthFailed(fmt.Sprintf("GitHub login button not found: %v", err)), nil
	}

	location, err := session.Location()
	if err != nil {
		return nil, err
	}
	if strings.Contains(location, "github.com") {
		if result := a.loginOnGitHub(); result != nil {
			return result, nil
		}
	}

	if err := waitForCallback(a.deps, a.provider); err != nil {
		return models.AuthFailed(fmt.Sprintf("GitHub auth failed: %v", err)), nil
	}
	cookies, err := waitForSessionCookie(a.deps, 15*time.Second)
	if err != nil {
		return nil, err
	}

	result := models.Authenticated(cookies, "", "")
	result.UserID, result.Username = ResolveIdentity(session, a.provider, logger)
	cacheSession(a.deps, a.provider, result)
	return result, nil
}

// openAuthorizePage clicks the console's GitHub button; when no button
// matches, it falls back to building the authorize URL from the OAuth
// parameter endpoints and navigating there directly.
func (a *GitHubAuthenticator) openAuthorizePage(ctx context.Context) error {
	session := a.deps.Session

	selector, err := session.WaitFirstMatch(
		a.deps.Browser.SelectorTimeout,
		browser.XPath(`//button[contains(., "GitHub")]`),
		browser.XPath(`//a[contains(., "GitHub")]`),
		browser.Css(`button[data-provider="github"]`),
	)
	if err == nil {
		before, locErr := session.Location()
		if locErr != nil {
			return locErr
		}
		if clickErr := session.Click(selector); clickErr == nil {
			if redirectErr := waitForRedirect(a.deps, before); redirectErr == nil {
				return nil
			}
			a.deps.Logger.Debug().Msg("GitHub button click did not navigate, building authorize URL directly")
		}
	}

	params, paramErr := fetchOAuthParams(ctx, a.deps, a.provider)
	if paramErr != nil {
		return fmt.Errorf("no button matched and OAuth parameter retrieval failed: %w", paramErr)
	}
	if params.GitHubClientID == "" {
		return fmt.Errorf("provider did not advertise a GitHub client id")
	}

	url := authorizeURL(
		githubEndpoint,
		params.GitHubClientID,
		a.provider.BaseURL+"/oauth/github",
		params.State,
		[]string{"user:email"},
	)
	return session.Navigate(url)
}

// loginOnGitHub fills the github.com sign-in form. A non-nil return is a
// terminal failure; nil means the flow should continue to the callback
// wait.
func (a *GitHubAuthenticator) loginOnGitHub() *models.AuthResult {
	session := a.deps.Session
	logger := a.deps.Logger

	if err := session.SendKeys(browser.Css(`input[name="login"]`), a.auth.Username); err != nil {
		return models.AuthFailed(fmt.Sprintf("GitHub auth failed: %v", err))
	}
	if err := session.SendKeys(browser.Css(`input[name="password"]`), a.auth.Password); err != nil {
		return models.AuthFailed(fmt.Sprintf("GitHub auth failed: %v", err))
	}
	if err := session.Click(browser.Css(`input[type="submit"]`)); err != nil {
		return models.AuthFailed(fmt.Sprintf("GitHub auth failed: %v", err))
	}
	_ = session.Sleep(2 * time.Second)

	location, err := session.Location()
	if err != nil {
		return models.AuthFailed(fmt.Sprintf("GitHub auth failed: %v", err))
	}

	if strings.Contains(location, "two-factor") || strings.Contains(strings.ToLower(location), "2fa") {
		if result := a.passTwoFactor(); result != nil {
			return result
		}
	}

	// The authorize button only appears on first-time grants.
	if selector, err := session.FirstMatch(
		browser.Css(`button[name="authorize"]`),
		browser.XPath(`//button[contains(., "Authorize")]`),
	); err == nil {
		if err := session.Click(selector); err != nil {
			logger.Debug().Err(err).Msg("Authorize button present but click failed")
		}
	}

	return nil
}

// dismissPopup closes the announcement modal some console deployments
// show on the login page.
func dismissPopup(session *browser.Session) {
	selector, err := session.FirstMatch(
		browser.Css(`.semi-modal-close`),
		browser.XPath(`//button[contains(., "关闭")]`),
		browser.XPath(`//button[contains(., "Close")]`),
	)
	if err != nil {
		return
	}
	_ = session.Click(selector)
}
