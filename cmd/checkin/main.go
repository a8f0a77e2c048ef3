package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
	"github.com/ternarybob/checkin/internal/services/balance"
	"github.com/ternarybob/checkin/internal/services/notify"
	"github.com/ternarybob/checkin/internal/services/orchestrator"
	"github.com/ternarybob/checkin/internal/services/report"
	"github.com/ternarybob/checkin/internal/services/session"
	"github.com/ternarybob/checkin/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles     configPaths
	showVersion     = flag.Bool("version", false, "Print version information")
	showVersionV    = flag.Bool("v", false, "Print version information (shorthand)")
	schedule        = flag.String("schedule", "", "Cron expression; run as a daemon instead of once")
	cleanupSessions = flag.Bool("cleanup-sessions", false, "Remove expired cached sessions and exit")
	clearSessions   = flag.Bool("clear-sessions", false, "Remove all cached sessions and exit")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	// A .version file next to the binary overrides the ldflags version.
	common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Checkin version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// .env keeps local runs aligned with the CI secret names.
	_ = godotenv.Load()

	if len(configFiles) == 0 {
		if _, err := os.Stat("checkin.toml"); err == nil {
			configFiles = append(configFiles, "checkin.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	if logPath := common.GetLogFilePath(logger); logPath != "" {
		logger.Info().Str("log_file", logPath).Msg("Logging to file")
	}

	cache, err := session.NewCache(config.Sessions.CacheDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize session cache")
		os.Exit(1)
	}

	if *cleanupSessions {
		removed, err := cache.CleanupExpired()
		if err != nil {
			logger.Fatal().Err(err).Msg("Session cleanup failed")
			os.Exit(1)
		}
		logger.Info().Int("removed", removed).Msg("Expired sessions removed")
		return
	}
	if *clearSessions {
		removed, err := cache.ClearAll()
		if err != nil {
			logger.Fatal().Err(err).Msg("Session clear failed")
			os.Exit(1)
		}
		logger.Info().Int("removed", removed).Msg("All cached sessions removed")
		return
	}

	if *schedule != "" {
		runScheduled(config, cache, logger, *schedule)
		return
	}

	os.Exit(runOnce(context.Background(), config, cache, logger))
}

// runOnce executes one full check-in pass. Exit code 0 means at least
// one (account, method) combination succeeded.
func runOnce(ctx context.Context, config *common.Config, cache *session.Cache, logger arbor.ILogger) int {
	providers := common.LoadProviders(logger)
	accounts := common.LoadAccounts(config, logger)
	if len(accounts) == 0 {
		logger.Error().Msg("No accounts configured")
		return 1
	}

	valid := common.ValidateAccounts(accounts, providers, logger)
	if len(valid) == 0 {
		logger.Error().Msg("No valid accounts after validation")
		return 1
	}
	logger.Info().Int("accounts", len(valid)).Msg("Accounts validated")

	tracker := balance.NewTracker(config.Balance.DataFile, logger)

	var history interfaces.HistoryStorage
	if config.Storage.Enabled {
		db, err := badger.NewBadgerDB(config.Storage.Path, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("History archive unavailable, continuing without it")
		} else {
			defer db.Close()
			history = badger.NewHistoryStorage(db, logger)
		}
	}

	runner := orchestrator.New(config, providers, valid, cache, tracker, history, logger)
	runReport, err := runner.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Run failed")
		return 1
	}

	notifyRun(ctx, config, runReport, logger)

	logger.Info().
		Int("success", runReport.SuccessCount).
		Int("total", runReport.TotalCount).
		Msg("Run complete")

	if runReport.AnySuccess() {
		return 0
	}
	return 1
}

// notifyRun applies the suppression rule and pushes the summary.
func notifyRun(ctx context.Context, config *common.Config, runReport *models.RunReport, logger arbor.ILogger) {
	previousHash := balance.LoadPreviousHash(config.Balance.HashFile)
	if runReport.BalanceHash != "" {
		if err := balance.SaveHash(config.Balance.HashFile, runReport.BalanceHash); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist balance hash")
		}
	}

	if !report.NeedNotify(runReport, previousHash) {
		logger.Info().Msg("All accounts succeeded and balances unchanged, skipping notification")
		return
	}

	var notifier interfaces.Notifier = notify.NewService(config.Notify, logger)
	notifier.Push(ctx, report.Title, report.Body(runReport))
}

// runScheduled runs the check-in on a cron schedule until interrupted.
func runScheduled(config *common.Config, cache *session.Cache, logger arbor.ILogger, expression string) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(expression, func() {
		logger.Info().Str("schedule", expression).Msg("Scheduled run starting")
		runOnce(context.Background(), config, cache, logger)
	})
	if err != nil {
		logger.Fatal().Err(err).Str("schedule", expression).Msg("Invalid cron expression")
		os.Exit(1)
	}

	scheduler.Start()
	logger.Info().Str("schedule", expression).Msg("Scheduler started, waiting for runs")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down scheduler")
	<-scheduler.Stop().Done()
}
