package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/checkin/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"`
	Logging     LoggingConfig  `toml:"logging"`
	Browser     BrowserConfig  `toml:"browser"`
	Checkin     CheckinConfig  `toml:"checkin"`
	Sessions    SessionsConfig `toml:"sessions"`
	Balance     BalanceConfig  `toml:"balance"`
	Storage     StorageConfig  `toml:"storage"`
	Notify      NotifyConfig   `toml:"notify"`
	// AccountsFile optionally points at a YAML account list; env-sourced
	// JSON account variables are merged on top of it.
	AccountsFile string `toml:"accounts_file"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// BrowserConfig controls the headless Chrome sessions.
type BrowserConfig struct {
	Headless          bool          `toml:"headless"`
	UserAgent         string        `toml:"user_agent"`
	NavigationTimeout time.Duration `toml:"navigation_timeout"`
	SelectorTimeout   time.Duration `toml:"selector_timeout"`
	ChallengeMaxWait  time.Duration `toml:"challenge_max_wait"` // Cloudflare interstitial wait ceiling
	CallbackMaxWait   time.Duration `toml:"callback_max_wait"`  // OAuth callback redirect wait ceiling
	WindowWidth       int           `toml:"window_width"`
	WindowHeight      int           `toml:"window_height"`
}

// CheckinConfig controls the check-in HTTP calls and pacing.
type CheckinConfig struct {
	RequestTimeout    time.Duration `toml:"request_timeout"`
	MaxAttempts       int           `toml:"max_attempts"`
	InitialBackoff    time.Duration `toml:"initial_backoff"`
	BackoffMultiplier float64       `toml:"backoff_multiplier"`
	// AccountDelay is the minimum gap between account/method attempts.
	// Sequential pacing keeps the target's rate-limit defenses quiet.
	AccountDelay time.Duration `toml:"account_delay"`
}

type SessionsConfig struct {
	CacheDir string `toml:"cache_dir"`
	TTLHours int    `toml:"ttl_hours"`
}

type BalanceConfig struct {
	DataFile string `toml:"data_file"`
	HashFile string `toml:"hash_file"`
}

// StorageConfig configures the optional badger-backed run-history archive.
type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// NotifyConfig carries the push-channel credentials. Empty fields disable
// the corresponding channel; every value can also come from the
// environment variables the original deployment used (EMAIL_USER etc.).
type NotifyConfig struct {
	EmailUser       string `toml:"email_user"`
	EmailPass       string `toml:"email_pass"`
	EmailTo         string `toml:"email_to"`
	SMTPServer      string `toml:"smtp_server"`
	PushPlusToken   string `toml:"pushplus_token"`
	ServerPushKey   string `toml:"serverpush_key"`
	DingTalkWebhook string `toml:"dingtalk_webhook"`
	FeishuWebhook   string `toml:"feishu_webhook"`
	WeComWebhook    string `toml:"wecom_webhook"`
}

// NewDefaultConfig returns the configuration defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "production",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			NavigationTimeout: 20 * time.Second,
			SelectorTimeout:   5 * time.Second,
			ChallengeMaxWait:  60 * time.Second,
			CallbackMaxWait:   20 * time.Second,
			WindowWidth:       1920,
			WindowHeight:      1080,
		},
		Checkin: CheckinConfig{
			RequestTimeout:    30 * time.Second,
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			BackoffMultiplier: 2.0,
			AccountDelay:      2 * time.Second,
		},
		Sessions: SessionsConfig{
			CacheDir: ".cache/sessions",
			TTLHours: 24,
		},
		Balance: BalanceConfig{
			DataFile: "balance_data.json",
			HashFile: "balance_hash.txt",
		},
		Storage: StorageConfig{
			Enabled: false,
			Path:    "./data/history",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 ->
// file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CHECKIN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("CHECKIN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CHECKIN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if headless := os.Getenv("CHECKIN_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if userAgent := os.Getenv("CHECKIN_BROWSER_USER_AGENT"); userAgent != "" {
		config.Browser.UserAgent = userAgent
	}
	if delay := os.Getenv("CHECKIN_ACCOUNT_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Checkin.AccountDelay = d
		}
	}
	if cacheDir := os.Getenv("CHECKIN_SESSION_CACHE_DIR"); cacheDir != "" {
		config.Sessions.CacheDir = cacheDir
	}
	if ttl := os.Getenv("CHECKIN_SESSION_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			config.Sessions.TTLHours = hours
		}
	}
	if historyPath := os.Getenv("CHECKIN_HISTORY_PATH"); historyPath != "" {
		config.Storage.Path = historyPath
		config.Storage.Enabled = true
	}
	if accountsFile := os.Getenv("CHECKIN_ACCOUNTS_FILE"); accountsFile != "" {
		config.AccountsFile = accountsFile
	}

	// Notification channels keep the original environment names so
	// existing deployments work unchanged.
	if v := os.Getenv("EMAIL_USER"); v != "" {
		config.Notify.EmailUser = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		config.Notify.EmailPass = v
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		config.Notify.EmailTo = v
	}
	if v := os.Getenv("CUSTOM_SMTP_SERVER"); v != "" {
		config.Notify.SMTPServer = v
	}
	if v := os.Getenv("PUSHPLUS_TOKEN"); v != "" {
		config.Notify.PushPlusToken = v
	}
	if v := os.Getenv("SERVERPUSHKEY"); v != "" {
		config.Notify.ServerPushKey = v
	}
	if v := os.Getenv("DINGDING_WEBHOOK"); v != "" {
		config.Notify.DingTalkWebhook = v
	}
	if v := os.Getenv("FEISHU_WEBHOOK"); v != "" {
		config.Notify.FeishuWebhook = v
	}
	if v := os.Getenv("WEIXIN_WEBHOOK"); v != "" {
		config.Notify.WeComWebhook = v
	}
}

// accountsFile is the YAML shape of the optional accounts file.
type accountsFile struct {
	Accounts []models.AccountConfig `yaml:"accounts"`
}

// LoadAccounts gathers accounts from the optional YAML file and the
// environment JSON variables (ANYROUTER_ACCOUNTS, AGENTROUTER_ACCOUNTS,
// ACCOUNTS). A parse failure in one source is logged and skipped; the
// other sources still load.
func LoadAccounts(config *Config, logger arbor.ILogger) []models.AccountConfig {
	var accounts []models.AccountConfig

	if config.AccountsFile != "" {
		data, err := os.ReadFile(config.AccountsFile)
		if err != nil {
			logger.Warn().Err(err).Str("path", config.AccountsFile).Msg("Failed to read accounts file")
		} else {
			var file accountsFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				logger.Warn().Err(err).Str("path", config.AccountsFile).Msg("Failed to parse accounts file")
			} else {
				accounts = append(accounts, file.Accounts...)
			}
		}
	}

	envSources := []struct {
		name     string
		provider string
	}{
		{"ANYROUTER_ACCOUNTS", "anyrouter"},
		{"AGENTROUTER_ACCOUNTS", "agentrouter"},
		{"ACCOUNTS", "anyrouter"},
	}
	for _, src := range envSources {
		raw := os.Getenv(src.name)
		if raw == "" {
			continue
		}
		parsed, err := models.ParseAccounts([]byte(raw), src.provider)
		if err != nil {
			logger.Error().Err(err).Str("source", src.name).Msg("Failed to load accounts from environment")
			continue
		}
		accounts = append(accounts, parsed...)
	}

	return accounts
}

// LoadProviders builds the provider registry: built-ins merged with the
// PROVIDERS environment variable.
func LoadProviders(logger arbor.ILogger) map[string]*models.ProviderConfig {
	providers, err := models.ParseProviders([]byte(os.Getenv("PROVIDERS")))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load custom providers, using built-ins")
		return models.DefaultProviders()
	}
	return providers
}

// ValidateAccounts filters the account list down to usable entries,
// logging the reason for every rejection. Validation happens before any
// network or browser activity.
func ValidateAccounts(accounts []models.AccountConfig, providers map[string]*models.ProviderConfig, logger arbor.ILogger) []models.AccountConfig {
	validate := validator.New()

	valid := make([]models.AccountConfig, 0, len(accounts))
	for i := range accounts {
		account := accounts[i]
		if err := validate.Struct(&account); err != nil {
			logger.Error().Err(err).Str("account", account.Name).Msg("Account rejected: invalid structure")
			continue
		}
		if err := account.Validate(); err != nil {
			logger.Error().Err(err).Str("account", account.Name).Msg("Account rejected: invalid auth configuration")
			continue
		}
		if _, ok := providers[account.Provider]; !ok {
			logger.Error().Str("account", account.Name).Str("provider", account.Provider).Msg("Account rejected: unknown provider")
			continue
		}
		for j := range account.AuthConfigs {
			auth := &account.AuthConfigs[j]
			if auth.Method == models.AuthMethodCookies && auth.APIUser == "" {
				logger.Info().Str("account", account.Name).Msg("api_user not configured, will resolve from user info after authentication")
			}
		}
		valid = append(valid, account)
	}
	return valid
}
