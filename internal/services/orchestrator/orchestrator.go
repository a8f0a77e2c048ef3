package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/checkin/internal/browser"
	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
	"github.com/ternarybob/checkin/internal/services/auth"
	"github.com/ternarybob/checkin/internal/services/balance"
	"github.com/ternarybob/checkin/internal/services/checkin"
)

// Orchestrator walks every account's auth methods strictly sequentially,
// pacing attempts so the consoles' rate limiting stays quiet. Each
// attempt gets a fresh browser profile; no state crosses attempts except
// the session cache for OAuth logins.
type Orchestrator struct {
	config    *common.Config
	providers map[string]*models.ProviderConfig
	accounts  []models.AccountConfig
	cache     interfaces.SessionStore
	tracker   *balance.Tracker
	history   interfaces.HistoryStorage
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// New wires the run pipeline. history may be nil.
func New(
	config *common.Config,
	providers map[string]*models.ProviderConfig,
	accounts []models.AccountConfig,
	cache interfaces.SessionStore,
	tracker *balance.Tracker,
	history interfaces.HistoryStorage,
	logger arbor.ILogger,
) *Orchestrator {
	delay := config.Checkin.AccountDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Orchestrator{
		config:    config,
		providers: providers,
		accounts:  accounts,
		cache:     cache,
		tracker:   tracker,
		history:   history,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		logger:    logger,
	}
}

// Run processes all accounts and returns the aggregated report. The
// report's BalanceHash is filled; persistence of the hash and the
// notification decision belong to the caller.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := o.logger.WithCorrelationId(report.ID)

	if len(o.accounts) == 0 {
		return nil, fmt.Errorf("no valid accounts configured")
	}

	for i := range o.accounts {
		account := &o.accounts[i]
		provider, ok := o.providers[account.Provider]
		if !ok {
			// Validation already filtered these; a miss here is a bug.
			logger.Error().Str("account", account.Name).Str("provider", account.Provider).Msg("Provider missing at run time")
			continue
		}

		logger.Info().
			Str("account", account.Name).
			Str("provider", provider.Name).
			Int("auth_methods", len(account.AuthConfigs)).
			Msg("Processing account")

		for j := range account.AuthConfigs {
			authConfig := &account.AuthConfigs[j]

			if err := o.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			outcome := o.runAttempt(ctx, account, authConfig, provider, logger)
			report.Outcomes = append(report.Outcomes, *outcome)

			logger.Info().
				Str("account", account.Name).
				Str("method", authConfig.Method.String()).
				Bool("success", outcome.Success).
				Str("message", outcome.Message).
				Msg("Attempt finished")
		}
	}

	report.BalanceHash = balance.ComputeHash(report.Outcomes)
	finishReport(report)

	if o.history != nil {
		if err := o.history.StoreRun(ctx, report); err != nil {
			logger.Warn().Err(err).Msg("Failed to archive run report")
		}
	}

	return report, nil
}

func finishReport(report *models.RunReport) {
	report.FinishedAt = time.Now()
	report.TotalCount = len(report.Outcomes)
	report.SuccessCount = 0
	for _, outcome := range report.Outcomes {
		if outcome.Success {
			report.SuccessCount++
		}
	}
}

func (o *Orchestrator) newOutcome(account *models.AccountConfig, method models.AuthMethod, provider *models.ProviderConfig) *models.CheckInOutcome {
	return &models.CheckInOutcome{
		Account:   account.Name,
		Provider:  provider.Name,
		Method:    method,
		Timestamp: time.Now(),
	}
}

// runAttempt drives one (account, method) combination end to end.
func (o *Orchestrator) runAttempt(ctx context.Context, account *models.AccountConfig, authConfig *models.AuthConfig, provider *models.ProviderConfig, logger arbor.ILogger) *models.CheckInOutcome {
	outcome := o.newOutcome(account, authConfig.Method, provider)

	// A fresh cached OAuth session skips the browser dance entirely.
	if isOAuthMethod(authConfig.Method) {
		if done := o.tryCachedSession(ctx, account, authConfig, provider, outcome, logger); done {
			return outcome
		}
	}

	result, err := o.authenticate(ctx, account, authConfig, provider, logger)
	if err != nil {
		outcome.Message = fmt.Sprintf("认证异常: %s", truncate(err.Error(), 80))
		return outcome
	}
	if !result.Authenticated {
		outcome.Message = fmt.Sprintf("认证失败: %s", result.Reason)
		return outcome
	}

	apiUser := authConfig.APIUser
	if apiUser == "" {
		apiUser = result.UserID
	}
	if apiUser == "" {
		outcome.Message = "API User ID 未配置"
		return outcome
	}

	_ = o.performCheckIn(ctx, account, authConfig, provider, result.Cookies, apiUser, outcome, logger)
	return outcome
}

// tryCachedSession attempts the check-in with cookies from the session
// cache. Returns true only when the cached cookies produced a successful
// check-in; any failure falls through to a fresh login, and a rejected
// session additionally deletes the cache entry.
func (o *Orchestrator) tryCachedSession(ctx context.Context, account *models.AccountConfig, authConfig *models.AuthConfig, provider *models.ProviderConfig, outcome *models.CheckInOutcome, logger arbor.ILogger) bool {
	if o.cache == nil {
		return false
	}
	entry, err := o.cache.Load(account.Name, provider.Name)
	if err != nil || entry == nil {
		return false
	}

	logger.Info().
		Str("account", account.Name).
		Str("provider", provider.Name).
		Msg("Using cached session")

	apiUser := authConfig.APIUser
	if apiUser == "" {
		apiUser = entry.UserID
	}
	if apiUser == "" {
		return false
	}

	attempt := o.newOutcome(account, authConfig.Method, provider)
	err = o.performCheckIn(ctx, account, authConfig, provider, entry.Cookies, apiUser, attempt, logger)
	if err != nil {
		if errors.Is(err, checkin.ErrAuthExpired) {
			_ = o.cache.Delete(account.Name, provider.Name)
		}
		logger.Info().
			Str("account", account.Name).
			Err(err).
			Msg("Cached session failed, falling back to fresh login")
		return false
	}

	*outcome = *attempt
	return true
}

// authenticate launches an isolated browser, runs the WAF warmup when the
// provider calls for it, and executes the authenticator.
func (o *Orchestrator) authenticate(ctx context.Context, account *models.AccountConfig, authConfig *models.AuthConfig, provider *models.ProviderConfig, logger arbor.ILogger) (*models.AuthResult, error) {
	browserSession, err := browser.NewSession(ctx, o.config.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer browserSession.Close()

	wafCookies, err := checkin.CollectWAFCookies(browserSession, provider, logger)
	if err != nil {
		return nil, err
	}
	if len(wafCookies) == 0 {
		if provider.WAFWarmup {
			return nil, fmt.Errorf("无法获取 WAF cookies")
		}
		logger.Warn().Str("provider", provider.Name).Msg("No WAF cookies collected, continuing without them")
	}

	authenticator, err := auth.New(authConfig, provider, auth.Deps{
		Session:        browserSession,
		Browser:        o.config.Browser,
		WAFCookies:     wafCookies,
		Cache:          o.cache,
		AccountName:    account.Name,
		CacheTTLHours:  o.config.Sessions.TTLHours,
		RequestTimeout: o.config.Checkin.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	return authenticator.Authenticate(ctx)
}

// performCheckIn runs the HTTP leg: check-in call, balance fetch, delta
// computation, record persistence. The returned error carries the
// check-in sentinel errors so callers can branch on errors.Is; the
// outcome message is already rendered either way.
func (o *Orchestrator) performCheckIn(ctx context.Context, account *models.AccountConfig, authConfig *models.AuthConfig, provider *models.ProviderConfig, cookies map[string]string, apiUser string, outcome *models.CheckInOutcome, logger arbor.ILogger) error {
	retry := &checkin.RetryPolicy{
		MaxAttempts:          o.config.Checkin.MaxAttempts,
		InitialBackoff:       o.config.Checkin.InitialBackoff,
		MaxBackoff:           30 * time.Second,
		BackoffMultiplier:    o.config.Checkin.BackoffMultiplier,
		RetryableStatusCodes: checkin.NewRetryPolicy().RetryableStatusCodes,
	}

	client, err := checkin.NewClient(provider, cookies, apiUser, o.config.Browser.UserAgent, o.config.Checkin.RequestTimeout, retry, logger)
	if err != nil {
		outcome.Message = fmt.Sprintf("请求异常: %s", truncate(err.Error(), 80))
		return err
	}

	message, err := client.CheckIn(ctx)
	if err != nil {
		switch {
		case errors.Is(err, checkin.ErrAuthExpired):
			outcome.Message = "签到失败: 认证已过期"
		case errors.Is(err, checkin.ErrForbidden):
			outcome.Message = "签到失败: 访问被拒绝 (403)"
		default:
			outcome.Message = truncate(err.Error(), 120)
		}
		return err
	}

	outcome.Success = true
	outcome.Message = message

	info, err := client.UserInfo(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("account", account.Name).Msg("Balance fetch failed after check-in")
		return nil
	}
	outcome.Balance = &info.Balance

	key := account.BalanceKey(authConfig.Method)
	delta := o.tracker.ComputeDelta(key, info.Balance)
	outcome.Delta = &delta

	if err := o.tracker.Save(key, models.BalanceRecord{
		Quota:     info.Balance.Quota,
		Used:      info.Balance.Used,
		Timestamp: time.Now(),
	}); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to persist balance record")
	}
	return nil
}

func isOAuthMethod(method models.AuthMethod) bool {
	return method == models.AuthMethodGitHub || method == models.AuthMethodLinuxDo
}

// truncate shortens s to at most max runes. Messages from the consoles
// are Chinese, so byte slicing would split a character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
