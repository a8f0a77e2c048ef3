package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/models"
)

// LinuxDoAuthenticator drives the Linux.do OAuth dance. Linux.do runs a
// Discourse instance, so the login form element ids are stable.
type LinuxDoAuthenticator struct {
	auth     *models.AuthConfig
	provider *models.ProviderConfig
	deps     Deps
}

func (a *LinuxDoAuthenticator) Method() models.AuthMethod {
	return models.AuthMethodLinuxDo
}

func (a *LinuxDoAuthenticator) Authenticate(ctx context.Context) (*models.AuthResult, error) {
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
		logger.Warn().Err(err).Msg("Linux.do authorize page could not be reached")
		return models.AuthFailed(fmt.Sprintf("LinuxDO login button not found: %v", err)), nil
	}

	location, err := session.Location()
	if err != nil {
		return nil, err
	}
	if strings.Contains(location, "linux.do") {
		if result := a.loginOnLinuxDo(); result != nil {
			return result, nil
		}
	}

	if err := waitForCallback(a.deps, a.provider); err != nil {
		return models.AuthFailed(fmt.Sprintf("Linux.do auth failed: %v", err)), nil
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

func (a *LinuxDoAuthenticator) openAuthorizePage(ctx context.Context) error {
	session := a.deps.Session

	selector, err := session.WaitFirstMatch(
		a.deps.Browser.SelectorTimeout,
		browser.XPath(`//button[contains(., "LinuxDO")]`),
		browser.XPath(`//a[contains(., "LinuxDO")]`),
		browser.XPath(`//button[contains(., "Linux.do")]`),
		browser.Css(`button[data-provider="linuxdo"]`),
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
			a.deps.Logger.Debug().Msg("Linux.do button click did not navigate, building authorize URL directly")
		}
	}

	params, paramErr := fetchOAuthParams(ctx, a.deps, a.provider)
	if paramErr != nil {
		return fmt.Errorf("no button matched and OAuth parameter retrieval failed: %w", paramErr)
	}
	if params.LinuxDoClientID == "" {
		return fmt.Errorf("provider did not advertise a Linux.do client id")
	}

	url := authorizeURL(
		linuxDoEndpoint,
		params.LinuxDoClientID,
		a.provider.BaseURL+"/oauth/linuxdo",
		params.State,
		nil,
	)
	return session.Navigate(url)
}

// loginOnLinuxDo fills the Discourse sign-in form. A non-nil return is a
// terminal failure; nil continues to the callback wait.
func (a *LinuxDoAuthenticator) loginOnLinuxDo() *models.AuthResult {
	session := a.deps.Session

	if err := session.SendKeys(browser.Css(`input#login-account-name`), a.auth.Username); err != nil {
		return models.AuthFailed(fmt.Sprintf("Linux.do auth failed: %v", err))
	}
	if err := session.SendKeys(browser.Css(`input#login-account-password`), a.auth.Password); err != nil {
		return models.AuthFailed(fmt.Sprintf("Linux.do auth failed: %v", err))
	}
	if err := session.Click(browser.Css(`button#login-button`)); err != nil {
		return models.AuthFailed(fmt.Sprintf("Linux.do auth failed: %v", err))
	}
	_ = session.Sleep(2 * time.Second)

	// An approval screen appears on the first grant.
	if approve, err := session.FirstMatch(
		browser.XPath(`//button[contains(., "允许")]`),
		browser.XPath(`//button[contains(., "Approve")]`),
		browser.XPath(`//button[contains(., "Authorize")]`),
	); err == nil {
		_ = session.Click(approve)
	}
	return nil
}
