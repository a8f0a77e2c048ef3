package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// Selector is one element locator. XPath candidates start with "//" and
// use chromedp's search matcher; everything else is treated as CSS.
type Selector struct {
	Value string
}

// By returns the chromedp query option matching the selector flavor.
func (s Selector) By() chromedp.QueryOption {
	if strings.HasPrefix(s.Value, "//") || strings.HasPrefix(s.Value, "(//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Css builds a CSS selector.
func Css(value string) Selector { return Selector{Value: value} }

// XPath builds an XPath selector.
func XPath(value string) Selector { return Selector{Value: value} }

// FirstMatch probes the ordered candidate list and returns the first
// selector that currently matches a node. Console markups differ between
// providers and deployments, so lookups always carry fallbacks.
func (s *Session) FirstMatch(candidates ...Selector) (Selector, error) {
	for _, candidate := range candidates {
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		var nodes []*cdp.Node
		err := chromedp.Run(ctx, chromedp.Nodes(candidate.Value, &nodes, candidate.By(), chromedp.AtLeast(0)))
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str("selector", candidate.Value).Msg("Selector probe failed")
			continue
		}
		if len(nodes) > 0 {
			return candidate, nil
		}
	}
	return Selector{}, fmt.Errorf("no selector matched out of %d candidates", len(candidates))
}

// WaitFirstMatch repeatedly probes the candidates until one matches or the
// deadline passes.
func (s *Session) WaitFirstMatch(maxWait time.Duration, candidates ...Selector) (Selector, error) {
	deadline := time.Now().Add(maxWait)
	for {
		if match, err := s.FirstMatch(candidates...); err == nil {
			return match, nil
		}
		if time.Now().After(deadline) {
			return Selector{}, fmt.Errorf("no selector matched within %s", maxWait)
		}
		if err := s.Sleep(500 * time.Millisecond); err != nil {
			return Selector{}, err
		}
	}
}
