package browser

import (
	"strings"
	"time"
)

// challengeMarkers are the title fragments Cloudflare uses on its
// interstitial pages, checked case-insensitively.
var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"cloudflare",
}

// WAFCookieNames are the clearance cookies issued after a passed
// challenge; their presence is what makes a warmed-up cookie set worth
// forwarding to the HTTP client.
var WAFCookieNames = []string{"acw_tc", "cdn_sec_tc", "acw_sc__v2"}

// OnChallengePage reports whether the current page is a Cloudflare
// interstitial.
func (s *Session) OnChallengePage() (bool, error) {
	title, err := s.Title()
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(title)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true, nil
		}
	}
	return false, nil
}

// WaitForClearance polls the page title until the challenge interstitial
// disappears. Managed challenges usually resolve without interaction; on
// timeout the caller proceeds anyway, since heuristics downstream handle
// a still-blocked page better than giving up here would.
func (s *Session) WaitForClearance() error {
	deadline := time.Now().Add(s.config.ChallengeMaxWait)

	for {
		blocked, err := s.OnChallengePage()
		if err != nil {
			return err
		}
		if !blocked {
			return nil
		}
		if time.Now().After(deadline) {
			s.logger.Warn().
				Str("max_wait", s.config.ChallengeMaxWait.String()).
				Msg("Challenge page did not clear in time, proceeding anyway")
			return nil
		}
		s.logger.Debug().Msg("Challenge page detected, waiting for clearance")
		if err := s.Sleep(2 * time.Second); err != nil {
			return err
		}
	}
}
