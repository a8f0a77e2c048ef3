package checkin

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/models"
)

// CollectWAFCookies drives the browser through the provider's warmup URLs
// until the WAF clearance cookies appear. For providers where warmup is
// required the caller treats an empty result as fatal for the attempt;
// elsewhere it is only a warning.
func CollectWAFCookies(session *browser.Session, provider *models.ProviderConfig, logger arbor.ILogger) (map[string]string, error) {
	urls := provider.WAFWarmupURLs
	if len(urls) == 0 {
		urls = []string{provider.LoginURL}
	}

	for _, url := range urls {
		if err := session.Navigate(url); err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("WAF warmup navigation failed")
			continue
		}
		if err := session.WaitForClearance(); err != nil {
			return nil, fmt.Errorf("challenge wait failed during warmup: %w", err)
		}

		// Scope the snapshot to the warmup URL so cookies from other
		// origins never leak into the clearance set.
		cookies, err := session.CookiesForURL(url)
		if err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("Failed to read cookies during warmup")
			continue
		}

		collected := filterWAFCookies(cookies)
		if len(collected) > 0 {
			logger.Info().
				Str("provider", provider.Name).
				Str("url", url).
				Int("waf_cookies", len(collected)).
				Msg("WAF cookies collected")
			return collected, nil
		}
		logger.Debug().Str("url", url).Msg("No WAF cookies after warmup visit")
	}

	return nil, nil
}

func filterWAFCookies(cookies map[string]string) map[string]string {
	collected := make(map[string]string)
	for _, name := range browser.WAFCookieNames {
		if value, ok := cookies[name]; ok {
			collected[name] = value
		}
	}
	return collected
}
