package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/mockinterview/pkg/app"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/logging"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "cmd/mockinterview/config.yaml", "path to the YAML config")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	questionsFile := flag.String("questions", "", "override interview.questions_file")
	transport := flag.String("transport", "", "override transport.provider (web, console)")
	flag.Parse()

	if err := run(*configPath, *envFile, *questionsFile, *transport); err != nil {
		fmt.Fprintf(os.Stderr, "mockinterview: %v (reason=%s)\n", err, errorsx.Reason(err))
		os.Exit(1)
	}
}

func run(configPath, envFile, questionsFile, transport string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if questionsFile != "" {
		cfg.Interview.QuestionsFile = questionsFile
	}
	if transport != "" {
		cfg.Transport = app.VendorConfig{Provider: transport}
	}

	logger, closeLog := logging.InitLogger(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile.Path,
		MaxSizeMB:  cfg.LogFile.MaxSizeMB,
		MaxBackups: cfg.LogFile.MaxBackups,
		MaxAgeDays: cfg.LogFile.MaxAgeDays,
		Compress:   cfg.LogFile.Compress,
	})
	defer func() { _ = closeLog() }()

	providers := app.NewProviderRegistry()
	app.RegisterDefaults(providers)

	engine, err := app.NewEngine(app.EngineOptions{
		Config:    cfg,
		Providers: providers,
		Logger:    logger,
		Banner:    os.Stdout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		logger.Error("mockinterview_failed", "error", err, "reason_code", string(errorsx.Reason(err)))
		return err
	}
	return nil
}
