package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/models"
	"github.com/ternarybob/checkin/internal/services/balance"
)

// Client performs the authenticated API calls against one provider for
// one account: check-in, user info, and the OAuth parameter endpoints.
// The cookie jar is seeded from the authenticator's result and never
// shared across accounts.
type Client struct {
	httpClient *http.Client
	provider   *models.ProviderConfig
	apiUser    string
	userAgent  string
	retry      *RetryPolicy
	logger     arbor.ILogger
}

// NewClient builds a client whose jar holds the given cookies for the
// provider's domain.
func NewClient(provider *models.ProviderConfig, cookies map[string]string, apiUser, userAgent string, timeout time.Duration, retry *RetryPolicy, logger arbor.ILogger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	baseURL, err := url.Parse(provider.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider base URL %q: %w", provider.BaseURL, err)
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	jar.SetCookies(baseURL, httpCookies)

	if retry == nil {
		retry = NewRetryPolicy()
	}

	return &Client{
		httpClient: &http.Client{Jar: jar, Timeout: timeout},
		provider:   provider,
		apiUser:    apiUser,
		userAgent:  userAgent,
		retry:      retry,
		logger:     logger,
	}, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", c.provider.BaseURL+"/console")
	req.Header.Set("Origin", c.provider.BaseURL)
	if c.apiUser != "" {
		req.Header.Set(c.provider.APIUserHeader, c.apiUser)
	}
}

// apiEnvelope is the common response wrapper both consoles use. Code is a
// pointer because code=0 signals success only when the field is present.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Ret     int             `json:"ret"`
	Code    *int            `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (e *apiEnvelope) indicatesSuccess() bool {
	return e.Success || e.Ret == 1 || (e.Code != nil && *e.Code == 0)
}

func (e *apiEnvelope) errorMessage() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Message != "" {
		return e.Message
	}
	return "未知错误"
}

// CheckIn performs the daily check-in call. On HTTP 404 the provider has
// no check-in endpoint, so a single user-info keep-alive call stands in;
// its success counts as a successful run for the account.
func (c *Client) CheckIn(ctx context.Context) (string, error) {
	var message string
	var outErr error

	_, err := c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		message, outErr = "", nil

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.CheckinURL, bytes.NewReader(nil))
		if err != nil {
			return 0, fmt.Errorf("failed to build check-in request: %w", err)
		}
		c.applyHeaders(req)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("check-in request failed: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		switch resp.StatusCode {
		case http.StatusOK:
			message, outErr = c.parseCheckInBody(body)
			return resp.StatusCode, nil
		case http.StatusUnauthorized:
			outErr = ErrAuthExpired
			return resp.StatusCode, nil
		case http.StatusForbidden:
			outErr = ErrForbidden
			return resp.StatusCode, nil
		case http.StatusNotFound:
			outErr = ErrNoCheckinEndpoint
			return resp.StatusCode, nil
		default:
			return resp.StatusCode, fmt.Errorf("check-in failed: HTTP %d", resp.StatusCode)
		}
	})
	if err != nil {
		return "", err
	}
	if errors.Is(outErr, ErrNoCheckinEndpoint) {
		return c.keepAlive(ctx)
	}
	return message, outErr
}

// parseCheckInBody interprets a 200 response. A body that is not JSON but
// mentions success still counts, matching what the consoles actually
// return on some deployments.
func (c *Client) parseCheckInBody(body []byte) (string, error) {
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		if strings.Contains(strings.ToLower(string(body)), "success") {
			return "签到成功", nil
		}
		return "", newResponseFormatError(c.provider.CheckinURL, body, err)
	}
	if envelope.indicatesSuccess() {
		return "签到成功", nil
	}
	return "", fmt.Errorf("签到失败: %s", envelope.errorMessage())
}

// keepAlive calls the user-info endpoint exactly once in place of a
// missing check-in endpoint.
func (c *Client) keepAlive(ctx context.Context) (string, error) {
	c.logger.Info().
		Str("provider", c.provider.Name).
		Msg("No check-in endpoint, falling back to user-info keep-alive")

	if _, err := c.UserInfo(ctx); err != nil {
		return "", fmt.Errorf("保活失败: %w", err)
	}
	return "保活成功（无签到接口）", nil
}

// UserInfoResult is the decoded user-info payload with normalized
// dollar balances.
type UserInfoResult struct {
	Balance  models.UserBalance
	UserID   string
	Username string
}

type userInfoData struct {
	ID        json.Number `json:"id"`
	Username  string      `json:"username"`
	Quota     float64     `json:"quota"`
	UsedQuota float64     `json:"used_quota"`
}

// UserInfo fetches the account's balance and identity.
func (c *Client) UserInfo(ctx context.Context) (*UserInfoResult, error) {
	var result *UserInfoResult
	var outErr error

	_, err := c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		result, outErr = nil, nil

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.provider.UserInfoURL, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to build user-info request: %w", err)
		}
		c.applyHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("user-info request failed: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		switch resp.StatusCode {
		case http.StatusOK:
			result, outErr = c.parseUserInfoBody(body)
			return resp.StatusCode, nil
		case http.StatusUnauthorized:
			outErr = ErrAuthExpired
			return resp.StatusCode, nil
		case http.StatusForbidden:
			outErr = ErrForbidden
			return resp.StatusCode, nil
		default:
			return resp.StatusCode, fmt.Errorf("user-info failed: HTTP %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, outErr
}

func (c *Client) parseUserInfoBody(body []byte) (*UserInfoResult, error) {
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, newResponseFormatError(c.provider.UserInfoURL, body, err)
	}
	if !envelope.indicatesSuccess() {
		return nil, fmt.Errorf("user-info returned failure: %s", envelope.errorMessage())
	}

	var data userInfoData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, newResponseFormatError(c.provider.UserInfoURL, body, err)
	}

	return &UserInfoResult{
		Balance: models.UserBalance{
			Quota: balance.NormalizeQuota(data.Quota),
			Used:  balance.NormalizeQuota(data.UsedQuota),
		},
		UserID:   data.ID.String(),
		Username: data.Username,
	}, nil
}

// OAuthParams holds what the authenticators need to build an authorize
// URL: the provider-registered client id and the CSRF state.
type OAuthParams struct {
	GitHubClientID  string
	LinuxDoClientID string
	State           string
}

type statusData struct {
	GitHubClientID  string `json:"github_client_id"`
	LinuxDoClientID string `json:"linuxdo_client_id"`
}

// OAuthStatus fetches the OAuth client ids from the status endpoint and
// the CSRF state from the auth-state endpoint.
func (c *Client) OAuthStatus(ctx context.Context) (*OAuthParams, error) {
	params := &OAuthParams{}

	statusBody, err := c.getJSON(ctx, c.provider.GetStatusURL())
	if err != nil {
		return nil, err
	}
	var status statusData
	if err := json.Unmarshal(statusBody.Data, &status); err != nil {
		return nil, newResponseFormatError(c.provider.GetStatusURL(), statusBody.Data, err)
	}
	params.GitHubClientID = status.GitHubClientID
	params.LinuxDoClientID = status.LinuxDoClientID

	stateBody, err := c.getJSON(ctx, c.provider.GetAuthStateURL())
	if err != nil {
		return nil, err
	}
	var state string
	if err := json.Unmarshal(stateBody.Data, &state); err != nil {
		return nil, newResponseFormatError(c.provider.GetAuthStateURL(), stateBody.Data, err)
	}
	params.State = state

	return params, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string) (*apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed: HTTP %d", endpoint, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, newResponseFormatError(endpoint, body, err)
	}
	if !envelope.indicatesSuccess() {
		return nil, fmt.Errorf("%s returned failure: %s", endpoint, envelope.errorMessage())
	}
	return &envelope, nil
}
