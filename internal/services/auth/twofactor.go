package auth

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/models"
)

// passTwoFactor works through GitHub's two-factor page. Code sources in
// order: a one-time code from the GITHUB_OTP environment variable, a
// TOTP code derived from the configured secret, then recovery codes.
// A non-nil return is a terminal failure.
func (a *GitHubAuthenticator) passTwoFactor() *models.AuthResult {
	logger := a.deps.Logger

	if code := os.Getenv("GITHUB_OTP"); code != "" {
		logger.Info().Msg("Submitting one-time code from environment")
		if a.submitTwoFactorCode(code) {
			return nil
		}
	}

	if a.auth.TOTPSecret != "" {
		code, err := totp.GenerateCode(a.auth.TOTPSecret, time.Now())
		if err != nil {
			logger.Warn().Err(err).Msg("TOTP code generation failed")
		} else {
			logger.Info().Msg("Submitting TOTP code")
			if a.submitTwoFactorCode(code) {
				return nil
			}
		}
	}

	if len(a.auth.RecoveryCodes) > 0 {
		if a.submitRecoveryCode() {
			return nil
		}
	}

	return models.AuthFailed("GitHub two-factor verification failed: no working code source")
}

// submitTwoFactorCode types the code and reports whether the page moved
// past the two-factor step.
func (a *GitHubAuthenticator) submitTwoFactorCode(code string) bool {
	session := a.deps.Session

	selector, err := session.FirstMatch(
		browser.Css(`input[name="app_otp"]`),
		browser.Css(`input[name="otp"]`),
		browser.Css(`input[autocomplete="one-time-code"]`),
	)
	if err != nil {
		a.deps.Logger.Debug().Err(err).Msg("Two-factor input not found")
		return false
	}
	if err := session.SendKeys(selector, code); err != nil {
		return false
	}
	// GitHub auto-submits the OTP field; the explicit button is a
	// fallback for older page variants.
	if submit, err := session.FirstMatch(
		browser.Css(`button[type="submit"]`),
		browser.XPath(`//button[contains(., "Verify")]`),
	); err == nil {
		_ = session.Click(submit)
	}
	_ = session.Sleep(3 * time.Second)

	return a.leftTwoFactorPage()
}

func (a *GitHubAuthenticator) submitRecoveryCode() bool {
	session := a.deps.Session
	logger := a.deps.Logger

	// Switch to the recovery-code form if a link for it exists.
	if link, err := session.FirstMatch(
		browser.XPath(`//a[contains(., "recovery code")]`),
		browser.Css(`a[href*="recovery"]`),
	); err == nil {
		_ = session.Click(link)
		_ = session.Sleep(time.Second)
	}

	for _, code := range a.auth.RecoveryCodes {
		selector, err := session.FirstMatch(
			browser.Css(`input[name="recovery_code"]`),
			browser.Css(`input[autocomplete="one-time-code"]`),
		)
		if err != nil {
			logger.Debug().Err(err).Msg("Recovery code input not found")
			return false
		}
		if err := session.SendKeys(selector, code); err != nil {
			continue
		}
		if submit, err := session.FirstMatch(
			browser.Css(`button[type="submit"]`),
			browser.XPath(`//button[contains(., "Verify")]`),
		); err == nil {
			_ = session.Click(submit)
		}
		_ = session.Sleep(3 * time.Second)

		if a.leftTwoFactorPage() {
			logger.Info().Msg("Recovery code accepted")
			return true
		}
		logger.Warn().Msg(fmt.Sprintf("Recovery code rejected, %d sources remain", len(a.auth.RecoveryCodes)-1))
	}
	return false
}

func (a *GitHubAuthenticator) leftTwoFactorPage() bool {
	location, err := a.deps.Session.Location()
	if err != nil {
		return false
	}
	return !containsAny(location, "two-factor", "2fa", "sessions/two-factor")
}

func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
