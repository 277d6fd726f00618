package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rwachain/crypto"
	"rwachain/native/lending"
	"rwachain/observability/logging"
	"rwachain/observability/metrics"
)

func main() {
	configFile := flag.String("config", "./lending.toml", "Path to the module configuration file")
	listenAddr := flag.String("listen", ":9464", "Metrics listen address")
	moduleAddr := flag.String("module", "", "Bech32 address of the base-currency vault")
	vaultAddr := flag.String("vault", "", "Bech32 address of the collateral vault")
	authorityAddr := flag.String("authority", "", "Bech32 address allowed to mutate configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("RWA_ENV"))
	logger := logging.Setup("rwalendd", env)

	cfg, err := lending.LoadConfig(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configFile), slog.Any("error", err))
		os.Exit(1)
	}

	module, err := requiredAddress("module", *moduleAddr)
	if err != nil {
		logger.Error("invalid flag", slog.Any("error", err))
		os.Exit(1)
	}
	vault, err := requiredAddress("vault", *vaultAddr)
	if err != nil {
		logger.Error("invalid flag", slog.Any("error", err))
		os.Exit(1)
	}

	engine := lending.NewEngine(module, vault)
	engine.SetState(lending.NewMemoryState())
	engine.SetLogger(logger)
	engine.SetValuationOracle(lending.NewManualValuationOracle(cfg.MaxNAVAge()))
	engine.SetRiskTermsOracle(lending.NewManualTermsOracle())

	if *authorityAddr != "" {
		authority, err := crypto.DecodeAddress(*authorityAddr)
		if err != nil {
			logger.Error("invalid flag", slog.Any("error", fmt.Errorf("authority: %w", err)))
			os.Exit(1)
		}
		engine.SetAuthority(authority)
	}

	protocol, err := cfg.ProtocolConfig()
	if err != nil {
		logger.Error("invalid protocol config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := engine.InitialiseProtocol(protocol); err != nil {
		logger.Error("failed to initialise protocol", slog.Any("error", err))
		os.Exit(1)
	}

	// Register the lending collectors before the first scrape.
	metrics.Lending()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: *listenAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("metrics listener started", slog.String("addr", *listenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
	logger.Info("rwalendd stopped")
}

func requiredAddress(name, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s: address is required", name)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}
