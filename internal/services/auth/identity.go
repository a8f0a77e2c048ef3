package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/models"
)

// consoleUser is the shape the consoles keep in localStorage under "user"
// and return from the user-info endpoint.
type consoleUser struct {
	ID       json.Number `json:"id"`
	Username string      `json:"username"`
}

// ResolveIdentity tries to learn the numeric user id (needed for the
// api-user header) and username from an authenticated page. Sources are
// tried in order: localStorage, a browser-side fetch of the user-info
// endpoint, then DOM scraping. Failure returns empty strings; identity is
// opportunistic and never fails the authentication.
func ResolveIdentity(session *browser.Session, provider *models.ProviderConfig, logger arbor.ILogger) (userID, username string) {
	if id, name, ok := identityFromLocalStorage(session); ok {
		return id, name
	}
	if id, name, ok := identityFromUserInfoFetch(session, provider); ok {
		return id, name
	}
	if id, name, ok := identityFromDOM(session); ok {
		return id, name
	}
	logger.Debug().Msg("Could not resolve user identity from page")
	return "", ""
}

func identityFromLocalStorage(session *browser.Session) (string, string, bool) {
	var raw string
	if err := session.Evaluate(`localStorage.getItem("user") || ""`, &raw); err != nil || raw == "" {
		return "", "", false
	}
	var user consoleUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return "", "", false
	}
	if user.ID.String() == "" || user.ID.String() == "0" {
		return "", "", false
	}
	return user.ID.String(), user.Username, true
}

// identityFromUserInfoFetch runs fetch() inside the page so the request
// carries the browser's cookies and passes the WAF the same way the
// console's own traffic does.
func identityFromUserInfoFetch(session *browser.Session, provider *models.ProviderConfig) (string, string, bool) {
	script := fmt.Sprintf(
		`fetch(%q, {credentials: "include"}).then(r => r.json()).then(d => JSON.stringify(d)).catch(() => "")`,
		provider.UserInfoURL,
	)
	var raw string
	if err := session.EvaluateAsync(script, &raw); err != nil || raw == "" {
		return "", "", false
	}

	var envelope struct {
		Success bool        `json:"success"`
		Data    consoleUser `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil || !envelope.Success {
		return "", "", false
	}
	if envelope.Data.ID.String() == "" || envelope.Data.ID.String() == "0" {
		return "", "", false
	}
	return envelope.Data.ID.String(), envelope.Data.Username, true
}

// identityFromDOM falls back to scraping the rendered console markup.
func identityFromDOM(session *browser.Session) (string, string, bool) {
	html, err := session.OuterHTML()
	if err != nil {
		return "", "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", false
	}

	var userID, username string
	doc.Find("[data-user-id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if id, ok := s.Attr("data-user-id"); ok && id != "" {
			userID = id
			return false
		}
		return true
	})
	doc.Find(".avatar, .user-avatar, img[alt]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if alt, ok := s.Attr("alt"); ok && alt != "" {
			username = alt
			return false
		}
		return true
	})

	if userID == "" {
		return "", "", false
	}
	return userID, username, true
}
