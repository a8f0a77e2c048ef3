package browser

import (
	"reflect"
	"testing"

	"github.com/chromedp/chromedp"
)

func TestSelectorBy(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		isXPath  bool
	}{
		{"css class", Css(".semi-modal-close"), false},
		{"css attribute", Css(`button[data-provider="github"]`), false},
		{"xpath", XPath(`//button[contains(., "GitHub")]`), true},
		{"parenthesized xpath", XPath(`(//a[@href="/login"])[1]`), true},
		{"id selector", Css("#login-button"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// QueryOptions are functions; compare by pointer identity against
			// the two chromedp matchers.
			want := chromedp.ByQuery
			if tt.isXPath {
				want = chromedp.BySearch
			}
			got := tt.selector.By()
			if reflect.ValueOf(got).Pointer() != reflect.ValueOf(want).Pointer() {
				t.Errorf("By() matcher mismatch for %q", tt.selector.Value)
			}
		})
	}
}
