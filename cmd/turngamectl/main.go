package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/wfunc/turngame/internal/config"
	"github.com/wfunc/turngame/internal/logger"
	"github.com/wfunc/turngame/internal/repository"
	"github.com/wfunc/turngame/internal/rules"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	root := newRootCommand(os.Stdout, openEnv)
	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openEnv connects the stores and rules services described by the config file.
func openEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// Commands print JSON on stdout; keep logs quiet unless asked otherwise.
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	cfg.Log.Output = "stdout"
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, err
	}

	repos, err := repository.Open(ctx, cfg, log.Named("repository"))
	if err != nil {
		return nil, err
	}

	return &env{
		repos: repos,
		rules: rules.NewRegistry(cfg.Rules.BaseURL, &http.Client{Timeout: cfg.Rules.Timeout}, log.Named("rules"), nil),
		log:   log,
	}, nil
}

func (e *env) Close() {
	if err := e.repos.Close(); err != nil {
		e.log.Warn("failed to close stores", zap.Error(err))
	}
	_ = e.log.Sync()
}
