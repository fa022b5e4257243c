package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/checkout"
	appconfig "github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/config"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/events"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/lang"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/metrics"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/redirect"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/secrets"
	postgres "github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/storage/postgres"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/telemetry"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/transport"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/validation"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/worker"
)

func newLogger(cfg appconfig.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.LogLevel == "debug" {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	// stdout belongs to the console view
	zcfg.OutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.ServiceName)), nil
}

func newTracerProvider(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger) (trace.TracerProvider, error) {
	tp, err := telemetry.InitTracer(context.Background(), cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("error shutting down tracer provider", zap.Error(err))
			}
			return nil
		},
	})
	return tp, nil
}

func newMetrics() (*prometheus.Registry, *metrics.Recorder) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.New(reg)
}

func newTransport(cfg appconfig.Config, logger *zap.Logger, rec *metrics.Recorder) *transport.Client {
	return transport.New(cfg.Payment.Transport, logger, transport.WithMetrics(rec))
}

func newPool(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger) *worker.Pool {
	pool := worker.New(cfg.Payment.Workers, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool
}

func newCatalog(cfg appconfig.Config) (*lang.Catalog, error) {
	if cfg.Payment.MessagesFile == "" {
		return lang.Default(), nil
	}
	return lang.LoadFile(cfg.Payment.MessagesFile)
}

func newRules(cfg appconfig.Config) (*validation.Rules, error) {
	if cfg.Payment.RulesFile == "" {
		return validation.Default(), nil
	}
	return validation.LoadFile(cfg.Payment.RulesFile)
}

func newView(cfg appconfig.Config) *consoleView {
	return newConsoleView(os.Stdout, callbackURL(cfg.Redirect.ListenAddr))
}

func newMachine(
	t *transport.Client,
	view *consoleView,
	rules *validation.Rules,
	catalog *lang.Catalog,
	pool *worker.Pool,
	tp trace.TracerProvider,
	rec *metrics.Recorder,
	logger *zap.Logger,
) *checkout.Machine {
	return checkout.New(t, view,
		checkout.WithLogger(logger),
		checkout.WithValidator(rules),
		checkout.WithCatalog(catalog),
		checkout.WithPool(pool),
		checkout.WithTracerProvider(tp),
		checkout.WithMetrics(rec),
	)
}

// newKafkaProducer constructs a shared Kafka producer and binds its lifecycle to Fx.
// It returns nil when publishing is disabled.
func newKafkaProducer(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger) *events.Producer {
	if !cfg.Kafka.Enabled {
		return nil
	}
	prod := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ResultsTopic, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

// newSQLDB opens the result journal. The client keeps running without it;
// a nil *sql.DB means results are not journaled.
func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger) (*sql.DB, error) {
	if !cfg.Database.Enabled {
		return nil, nil
	}
	logger.Info("connecting to PostgreSQL",
		zap.String("database", cfg.Database.Database),
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
	)
	db, err := postgres.OpenDatabase(context.Background(), cfg.Database.DatabaseConfig)
	if err != nil {
		logger.Warn("failed to connect to database, results will not be journaled", zap.Error(err))
		return nil, nil
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.EnsureSchema(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func newRepository(db *sql.DB, logger *zap.Logger) *postgres.Repository {
	if db == nil {
		return nil
	}
	return postgres.NewRepository(db, logger)
}

func registerMetricsServer(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger, reg *prometheus.Registry) {
	if cfg.Metrics.Addr == "" {
		return
	}
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(reg))
	registerHTTPServer(lc, logger.Named("metrics"), &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	})
}

func registerRedirectServer(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger, m *checkout.Machine) {
	registerHTTPServer(lc, logger.Named("redirect"), &http.Server{
		Addr:              cfg.Redirect.ListenAddr,
		Handler:           redirect.NewRouter(m, logger),
		ReadHeaderTimeout: 5 * time.Second,
	})
}

func registerHTTPServer(lc fx.Lifecycle, logger *zap.Logger, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

// resultSink forwards the one result of the session.
type resultSink struct {
	listURL   string
	recipient string
	prod      *events.Producer
	repo      *postgres.Repository
	log       *zap.Logger
}

// deliver publishes the result when Kafka is on, the result worker then
// journals it. Without Kafka the result is journaled here.
func (s resultSink) deliver(ctx context.Context, r model.Result) error {
	ev := events.NewResultEvent(s.listURL, r)
	ev.Email = s.recipient
	switch {
	case s.prod != nil:
		return s.prod.PublishResult(ctx, ev)
	case s.repo != nil:
		_, err := s.repo.InsertResult(ctx, postgres.RecordFromEvent(uuid.New(), time.Now(), ev))
		return err
	default:
		s.log.Debug("result not forwarded, no sink configured")
		return nil
	}
}

func registerSession(
	lc fx.Lifecycle,
	cfg appconfig.Config,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
	m *checkout.Machine,
	view *consoleView,
	prod *events.Producer,
	repo *postgres.Repository,
) {
	sink := resultSink{
		listURL:   cfg.Payment.ListURL,
		recipient: cfg.Email.Recipient,
		prod:      prod,
		repo:      repo,
		log:       logger,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if cfg.Payment.ListURL == "" {
				return errors.New("PAYMENT_LIST_URL is required")
			}
			if err := m.Start(cfg.Payment.ListURL); err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			go runConsole(os.Stdin, view, m, logger)
			go func() {
				defer close(done)
				r, ok := awaitResult(ctx, m)
				if ok {
					view.PresentResult(r)
					if err := sink.deliver(ctx, r); err != nil {
						logger.Error("failed to forward result", zap.Error(err))
					}
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			m.Stop()
			cancel()
			<-done
			return nil
		},
	})
}

// awaitResult waits for the machine to finish. ok is false when it stopped
// without a result.
func awaitResult(ctx context.Context, m *checkout.Machine) (model.Result, bool) {
	select {
	case r := <-m.Result():
		return r, true
	case <-m.Done():
		select {
		case r := <-m.Result():
			return r, true
		default:
			return model.Result{}, false
		}
	case <-ctx.Done():
		return model.Result{}, false
	}
}

func callbackURL(addr string) string {
	if addr == "" {
		return ""
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + redirect.Path
}

func main() {
	_ = godotenv.Load()

	if err := secrets.BootstrapFromOpenBao(context.Background(), nil); err != nil {
		fmt.Fprintf(os.Stderr, "openbao bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Provide(
			appconfig.Load,
			newLogger,
			newTracerProvider,
			newMetrics,
			newTransport,
			newPool,
			newCatalog,
			newRules,
			newView,
			newMachine,
			newKafkaProducer,
			newSQLDB,
			newRepository,
		),
		fx.Invoke(
			func(logger *zap.Logger, cfg appconfig.Config) {
				logger.Info("starting payment session", zap.String("list", cfg.Payment.ListURL))
			},
			registerMetricsServer,
			registerRedirectServer,
			registerSession,
		),
	)

	app.Run()
}
