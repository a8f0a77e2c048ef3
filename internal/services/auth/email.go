package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/models"
)

// EmailAuthenticator signs in with username/password on the console's own
// login form. The form markup varies across deployments, so every lookup
// runs through an ordered candidate list.
type EmailAuthenticator struct {
	auth     *models.AuthConfig
	provider *models.ProviderConfig
	deps     Deps
}

func (a *EmailAuthenticator) Method() models.AuthMethod {
	return models.AuthMethodEmail
}

func (a *EmailAuthenticator) Authenticate(ctx context.Context) (*models.AuthResult, error) {
	session := a.deps.Session

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

	// Some deployments default to the OAuth buttons and hide the form
	// behind an email tab.
	if tab, err := session.FirstMatch(
		browser.XPath(`//div[contains(., "邮箱")][@role="tab"]`),
		browser.XPath(`//button[contains(., "邮箱")]`),
		browser.XPath(`//div[contains(@class, "tab")][contains(., "Email")]`),
	); err == nil {
		_ = session.Click(tab)
	}

	usernameInput, err := session.FirstMatch(
		browser.Css(`input[name="username"]`),
		browser.Css(`input[type="email"]`),
		browser.Css(`input#username`),
		browser.Css(`input[placeholder*="邮箱"]`),
		browser.Css(`input[placeholder*="用户名"]`),
	)
	if err != nil {
		return models.AuthFailed("Email login form not found"), nil
	}
	if err := session.SendKeys(usernameInput, a.auth.Username); err != nil {
		return models.AuthFailed(fmt.Sprintf("Email auth failed: %v", err)), nil
	}

	passwordInput, err := session.FirstMatch(
		browser.Css(`input[name="password"]`),
		browser.Css(`input[type="password"]`),
		browser.Css(`input#password`),
	)
	if err != nil {
		return models.AuthFailed("Password input not found"), nil
	}
	if err := session.SendKeys(passwordInput, a.auth.Password); err != nil {
		return models.AuthFailed(fmt.Sprintf("Email auth failed: %v", err)), nil
	}

	submit, err := session.FirstMatch(
		browser.Css(`button[type="submit"]`),
		browser.XPath(`//button[contains(., "登录")]`),
		browser.XPath(`//button[contains(., "Login")]`),
		browser.XPath(`//button[contains(., "Sign in")]`),
	)
	if err != nil {
		return models.AuthFailed("Login button not found"), nil
	}
	if err := session.Click(submit); err != nil {
		return models.AuthFailed(fmt.Sprintf("Email auth failed: %v", err)), nil
	}
	_ = session.Sleep(3 * time.Second)

	return a.evaluateOutcome()
}

// evaluateOutcome applies the success heuristics in order: left the login
// page, a session cookie appeared, or an error/captcha marker is visible.
func (a *EmailAuthenticator) evaluateOutcome() (*models.AuthResult, error) {
	session := a.deps.Session
	logger := a.deps.Logger

	location, err := session.Location()
	if err != nil {
		return nil, err
	}
	cookies, err := session.Cookies()
	if err != nil {
		return nil, err
	}

	leftLoginPage := !strings.Contains(strings.ToLower(location), "login")
	if leftLoginPage || hasSessionCookie(cookies) {
		result := models.Authenticated(cookies, "", "")
		result.UserID, result.Username = ResolveIdentity(session, a.provider, logger)
		return result, nil
	}

	html, err := session.OuterHTML()
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(html)
	switch {
	case strings.Contains(html, "验证码") || strings.Contains(lower, "captcha"):
		return models.AuthFailed("Email login blocked, may need captcha"), nil
	case strings.Contains(html, "密码错误") || strings.Contains(lower, "invalid") || strings.Contains(lower, "incorrect"):
		return models.AuthFailed("Email login rejected: wrong credentials"), nil
	default:
		return models.AuthFailed("Email login did not reach the console"), nil
	}
}
