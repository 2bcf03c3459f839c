package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cediplan/internal/browser"
	"cediplan/internal/budget"
	"cediplan/internal/config"
	"cediplan/internal/llm"
	"cediplan/internal/report"
	"cediplan/internal/run"
	"cediplan/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	outputDir  string
	headful    bool
	timeout    time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cediplan",
	Short: "cediplan - Ghana net-income budget planner",
	Long: `cediplan drives the Ghana tax calculator web page to find the net
(take-home) income for a set of salary scenarios, turns each net income into a
categorized monthly budget, and writes one PDF report per scenario.

Budgets come from an LLM generator when an API key is configured; without one,
or when the generator misbehaves, a deterministic rule-based allocation is
used instead.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runBatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the number of recorded runs",
	RunE:  showHistory,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cediplan.yaml", "Configuration file path")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides config)")
	rootCmd.Flags().BoolVar(&headful, "headful", false, "Run the browser with a visible window")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Batch timeout")

	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if headful {
		cfg.Headless = false
	}

	var strategy *budget.LLMStrategy
	if cfg.APIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			logger.Warn("LLM client unavailable, budgets will be rule-based", zap.Error(err))
		} else {
			strategy = budget.NewLLMStrategy(client, logger)
		}
	} else {
		logger.Info("no API key configured, budgets will be rule-based")
	}

	var recorder run.Recorder
	if cfg.HistoryDB != "" {
		history, err := store.Open(cfg.HistoryDB)
		if err != nil {
			logger.Warn("run history unavailable", zap.Error(err))
		} else {
			defer func() { _ = history.Close() }()
			recorder = history
		}
	}

	session := browser.NewSession(browser.Config{
		Headless:            cfg.Headless,
		NavigationTimeoutMs: browser.DefaultConfig().NavigationTimeoutMs,
	}, logger)

	runner := run.New(cfg,
		session,
		budget.NewProducer(strategy, logger),
		report.NewPDFRenderer(logger),
		recorder,
		logger,
	)

	logger.Info("starting batch",
		zap.String("url", cfg.CalculatorURL),
		zap.Int("scenarios", len(cfg.Scenarios)),
		zap.String("output", cfg.OutputDir))
	return runner.Run(ctx)
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return fmt.Errorf("no history database configured")
	}
	history, err := store.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	count, err := history.RunCount()
	if err != nil {
		return err
	}
	fmt.Printf("%d recorded run(s) in %s\n", count, cfg.HistoryDB)
	return nil
}
