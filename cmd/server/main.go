package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/wfunc/turngame/internal/api"
	"github.com/wfunc/turngame/internal/config"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/logger"
	"github.com/wfunc/turngame/internal/monitor"
	"github.com/wfunc/turngame/internal/repository"
	"github.com/wfunc/turngame/internal/service"
	"go.uber.org/zap"
)

// Build information, set with -ldflags.
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	serviceName        = "turngame"
	serviceDescription = "Coordinator for turn-based multiplayer games"
)

// Server holds the running components.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	repos   *repository.Manager
	metrics *monitor.Metrics
	http    *http.Server
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		envFile     = flag.String("env", ".env", "dotenv file loaded before the environment is read")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Printf("failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// NewServer creates the server instance.
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.With(zap.String("service", serviceName)),
	}
}

// Start connects the stores, builds the services and starts listening.
func (s *Server) Start() error {
	s.logger.Info("starting "+serviceName,
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
		zap.String("route_prefix", s.cfg.Server.RoutePrefix),
	)
	gin.SetMode(s.cfg.Server.Mode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repos, err := repository.Open(ctx, s.cfg, s.logger.Named("repository"))
	if err != nil {
		return errors.Wrap(err, errors.ErrStorageUnavailable, "open stores")
	}
	s.repos = repos

	if s.cfg.Monitor.Enabled {
		s.metrics = monitor.NewMetrics(s.cfg.Monitor.Namespace)
	}

	services, err := service.NewServices(s.cfg, repos, s.logger, s.metrics)
	if err != nil {
		return err
	}

	about := api.NewAboutInfo(serviceName, Version, serviceDescription)
	router := api.NewRouter(&s.cfg.Server, services, repos, about, s.metrics, s.logger.Named("http"))

	s.http = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("config changed, reloading")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("server started", zap.String("http", s.cfg.Server.Addr()))
	return nil
}

// WaitForShutdown blocks until SIGINT, SIGTERM or SIGQUIT.
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigCh
	s.logger.Info("received signal", zap.String("signal", sig.String()))
}

// Shutdown drains in-flight requests, then closes the stores.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown timed out", zap.Error(err))
			shutdownErr = errors.Wrap(err, errors.ErrTimeout, "http shutdown")
		}
	}

	if s.repos != nil {
		if err := s.repos.Close(); err != nil {
			s.logger.Error("failed to close stores", zap.Error(err))
		}
	}

	return shutdownErr
}

// reloadConfig applies the settings that can change without a restart.
func (s *Server) reloadConfig(newCfg *config.Config) {
	logger.SetLevel(newCfg.Log.Level)
	gin.SetMode(newCfg.Server.Mode)
	s.logger.Info("config reloaded", zap.String("log_level", newCfg.Log.Level))
}

func printVersion() {
	fmt.Printf("%s %s\n", serviceName, Version)
	fmt.Printf("build time: %s\n", BuildTime)
	fmt.Printf("git commit: %s\n", GitCommit)
	fmt.Printf("go version: %s\n", runtime.Version())
	fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
