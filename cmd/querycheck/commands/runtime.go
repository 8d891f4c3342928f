// Package commands implements the querycheck subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/Sumatoshi-tech/querycheck/pkg/config"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammarstore"
	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
	"github.com/Sumatoshi-tech/querycheck/pkg/version"
)

// DefaultEnvFile is loaded before configuration when it exists.
const DefaultEnvFile = ".env"

const (
	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
)

// GlobalOptions are the persistent flags shared by every subcommand.
type GlobalOptions struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool
	Quiet      bool
}

// session is the process state a subcommand runs with.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	metrics   *http.Server
}

// setup loads the env file and configuration, then starts observability in
// the given mode. Logs are written to logOut, or stderr when it is nil.
func setup(global *GlobalOptions, mode observability.AppMode, logOut io.Writer) (*session, error) {
	if logOut == nil {
		logOut = os.Stderr
	}

	envErr := loadEnvFile(global.EnvFile)
	if envErr != nil {
		return nil, envErr
	}

	cfg, err := config.LoadConfig(global.ConfigPath)
	if err != nil {
		return nil, err
	}

	obsCfg, err := observabilityConfig(cfg, global, mode)
	if err != nil {
		return nil, err
	}

	providers, err := observability.InitWithWriter(obsCfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{cfg: cfg, providers: providers, logger: providers.Logger}

	if providers.MetricsHandler != nil {
		s.metrics = observability.NewMetricsServer(obsCfg.PrometheusAddr, providers.Tracer, providers.MetricsHandler)

		go s.serveMetrics()
	}

	return s, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load env file %s: %w", path, err)
}

func observabilityConfig(cfg *config.Config, global *GlobalOptions, mode observability.AppMode) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.PrometheusAddr = cfg.Telemetry.PrometheusAddr
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv(envOTLPEndpoint)
		obsCfg.OTLPInsecure = obsCfg.OTLPInsecure || os.Getenv(envOTLPInsecure) == "true"
	}

	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return obsCfg, err
	}

	switch {
	case global.Verbose:
		level = slog.LevelDebug
	case global.Quiet:
		level = slog.LevelError
	}

	obsCfg.LogLevel = level

	return obsCfg, nil
}

func (s *session) serveMetrics() {
	s.logger.Info("serving metrics", "addr", s.metrics.Addr)

	err := s.metrics.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("metrics server failed", "error", err)
	}
}

// close stops the metrics server and flushes telemetry.
func (s *session) close() {
	ctx := context.Background()

	if s.metrics != nil {
		shutdownErr := s.metrics.Shutdown(ctx)
		if shutdownErr != nil {
			s.logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}

	shutdownErr := s.providers.Shutdown(ctx)
	if shutdownErr != nil {
		s.logger.Warn("observability shutdown failed", "error", shutdownErr)
	}
}

// openStore creates a grammar store and returns it with its release func.
func (s *session) openStore(cfg config.GrammarConfig) (*grammarstore.Store, func(), error) {
	store, err := grammarstore.New(cfg, grammarstore.WithLogger(s.logger))
	if err != nil {
		return nil, nil, err
	}

	release := func() {
		closeErr := store.Close()
		if closeErr != nil {
			s.logger.Warn("grammar store close failed", "error", closeErr)
		}
	}

	return store, release, nil
}
