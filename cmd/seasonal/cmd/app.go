package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/seasonal_trader/internal/alert"
	"github.com/eddiefleurent/seasonal_trader/internal/broker"
	"github.com/eddiefleurent/seasonal_trader/internal/config"
	"github.com/eddiefleurent/seasonal_trader/internal/execution"
	"github.com/eddiefleurent/seasonal_trader/internal/metrics"
	"github.com/eddiefleurent/seasonal_trader/internal/retry"
	"github.com/eddiefleurent/seasonal_trader/internal/schedule"
	"github.com/eddiefleurent/seasonal_trader/internal/storage"

	_ "time/tzdata"
)

// app is everything a command needs, built from one config file.
type app struct {
	cfg          *config.Config
	logger       *logrus.Logger
	store        storage.Interface
	gateway      broker.Gateway
	metrics      *metrics.Recorder
	materializer *schedule.Materializer
	engine       *execution.Engine
}

// loadApp reads the config and wires storage, gateway and both passes.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.WindowLocation()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	rec := metrics.New()
	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		gateway:      gateway,
		metrics:      rec,
		materializer: schedule.NewMaterializer(store, loc, logger.WithField("component", "materializer"), rec),
		engine: execution.NewEngine(store, gateway, notifier, engineConfig(cfg),
			logger.WithField("component", "engine"), rec),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close storage")
	}
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel())
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.Environment.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func openStore(cfg *config.Config) (storage.Interface, error) {
	if cfg.Storage.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	store, err := storage.NewStorage(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// newGateway builds the configured broker session, wrapped in a circuit breaker
// when enabled.
func newGateway(cfg *config.Config, logger logrus.FieldLogger) (broker.Gateway, error) {
	var gw broker.Gateway
	switch cfg.Gateway.Provider {
	case "paper":
		gw = broker.NewPaperGateway(cfg.Paper.Balance, paperInstruments(cfg.Paper.Instruments), time.Now)
	default:
		return nil, fmt.Errorf("unsupported gateway provider %q", cfg.Gateway.Provider)
	}

	cb := cfg.Gateway.CircuitBreaker
	if !cb.Enabled {
		return gw, nil
	}
	return broker.NewCircuitBreakerGatewayWithSettings(gw, broker.CircuitBreakerSettings{
		MaxRequests:  cb.MaxRequests,
		Interval:     cb.Interval.Std(),
		Timeout:      cb.Timeout.Std(),
		MinRequests:  cb.MinRequests,
		FailureRatio: cb.FailureRatio,
	}, logger.WithField("component", "gateway")), nil
}

func paperInstruments(in []config.PaperInstrument) []broker.PaperInstrument {
	out := make([]broker.PaperInstrument, 0, len(in))
	for _, inst := range in {
		out = append(out, broker.PaperInstrument{
			Symbol:       inst.Symbol,
			Exchange:     inst.Exchange,
			Currency:     inst.Currency,
			Multiplier:   inst.Multiplier,
			MinTick:      inst.MinTick,
			Price:        inst.Price,
			TimeZoneID:   inst.TimeZone,
			SessionOpen:  inst.SessionOpen,
			SessionClose: inst.SessionClose,
		})
	}
	return out
}

// newNotifier returns the remote alert channels. The engine logs every alert
// itself, so an empty set is valid.
func newNotifier(cfg *config.Config, logger logrus.FieldLogger) (alert.Notifier, error) {
	notifiers := alert.Multi{}
	tg := cfg.Alerts.Telegram
	if tg.Enabled {
		t, err := alert.NewTelegramNotifier(tg.Token, tg.ChatID, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram notifier: %w", err)
		}
		notifiers = append(notifiers, t)
	}
	return notifiers, nil
}

func engineConfig(cfg *config.Config) execution.Config {
	e := cfg.Execution
	return execution.Config{
		ContractRetry: retry.Policy{
			Attempts:    e.ContractAttempts,
			Delay:       e.ContractDelay.Std(),
			CallTimeout: e.ContractTimeout.Std(),
		},
		DataRetry: retry.Policy{
			Attempts:    e.ContractAttempts,
			Delay:       e.ContractDelay.Std(),
			CallTimeout: e.HistoricalTimeout.Std(),
		},
		OrderRetry: retry.Policy{
			Attempts:    e.OrderAttempts,
			Delay:       e.OrderDelay.Std(),
			CallTimeout: e.OrderTimeout.Std(),
		},
		SettleDelay: e.SettleDelay.Std(),
		BarDuration: e.BarDuration,
		BarSize:     e.BarSize,
	}
}
