package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// SetCookies injects cookies for the given domain before navigation so the
// first request already carries the session.
func (s *Session) SetCookies(domain string, cookies map[string]string) error {
	if len(cookies) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.SelectorTimeout)
	defer cancel()

	expires := cdp.TimeSinceEpoch(time.Now().Add(24 * time.Hour))
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for name, value := range cookies {
				if err := network.SetCookie(name, value).
					WithDomain(domain).
					WithPath("/").
					WithSecure(true).
					WithHTTPOnly(false).
					WithExpires(&expires).
					Do(ctx); err != nil {
					return fmt.Errorf("failed to set cookie %s: %w", name, err)
				}
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	s.logger.Debug().
		Int("cookies_injected", len(cookies)).
		Str("domain", domain).
		Msg("Cookies injected into browser")
	return nil
}

// Cookies snapshots every cookie the browser currently holds, across all
// partitions, as a name/value map. The WAF clearance cookies live here
// after a successful challenge pass.
func (s *Session) Cookies() (map[string]string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.SelectorTimeout)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			raw = cookies
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	cookies := make(map[string]string, len(raw))
	for _, c := range raw {
		cookies[c.Name] = c.Value
	}
	return cookies, nil
}

// CookiesForURL returns the cookies visible to one URL.
func (s *Session) CookiesForURL(url string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.SelectorTimeout)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().WithURLs([]string{url}).Do(ctx)
			if err != nil {
				return err
			}
			raw = cookies
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies for %s: %w", url, err)
	}

	cookies := make(map[string]string, len(raw))
	for _, c := range raw {
		cookies[c.Name] = c.Value
	}
	return cookies, nil
}
