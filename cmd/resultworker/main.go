package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	appconfig "github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/config"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/email"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/events"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/secrets"
	postgres "github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/storage/postgres"
)

// messageReader is the part of *kafka.Reader the worker uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// handler journals and announces delivered results.
type handler struct {
	repo      *postgres.Repository // nil when the journal is off
	sender    email.Sender
	recipient string
	log       *zap.Logger
}

// recordID derives a stable ID from the message position so that a
// redelivered message maps onto the row it already wrote.
func recordID(msg kafka.Message) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("kafka://%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)))
}

func (h *handler) handle(ctx context.Context, msg kafka.Message) error {
	env, ev, ok, err := events.DecodeResult(msg.Value)
	if err != nil {
		h.log.Warn("bad message skipped", zap.Error(err), zap.Int64("offset", msg.Offset))
		return nil
	}
	if !ok {
		return nil
	}

	fresh := true
	if h.repo != nil {
		fresh, err = h.repo.InsertResult(ctx, postgres.RecordFromEvent(recordID(msg), env.OccurredAt, ev))
		if err != nil {
			return err
		}
	}
	if !fresh {
		return nil
	}

	to := ev.Email
	if to == "" {
		to = h.recipient
	}
	if to == "" || h.sender == nil {
		return nil
	}
	subject, body, err := email.RenderResultEmail(ev)
	if err != nil {
		h.log.Warn("no notification for result", zap.Error(err))
		return nil
	}
	if err := h.sender.Send(to, subject, body); err != nil {
		// a failed mail is not worth blocking the partition
		h.log.Error("send failed", zap.Error(err), zap.String("to", to))
		return nil
	}
	h.log.Info("result notification sent", zap.String("to", to), zap.String("code", string(ev.Code)))
	return nil
}

// consume processes messages until ctx ends. Offsets are committed after a
// message was handled.
func consume(ctx context.Context, r messageReader, h *handler) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		if err := h.handle(ctx, msg); err != nil {
			return fmt.Errorf("handle offset %d: %w", msg.Offset, err)
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func newLogger(cfg appconfig.Config) (*zap.Logger, error) {
	if cfg.LogLevel == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func pickSender(cfg appconfig.Config, logger *zap.Logger) email.Sender {
	// Use SMTP if configured; else fallback to log
	if os.Getenv("SMTP_HOST") != "" || os.Getenv("SMTP_PORT") != "" {
		return email.NewSMTPSender(cfg.Email.SMTP)
	}
	return email.LogSender{Log: logger}
}

func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger) (*sql.DB, error) {
	if !cfg.Database.Enabled {
		logger.Info("result journal disabled")
		return nil, nil
	}
	db, err := postgres.OpenDatabase(context.Background(), cfg.Database.DatabaseConfig)
	if err != nil {
		return nil, err
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

func newHandler(cfg appconfig.Config, db *sql.DB, logger *zap.Logger) *handler {
	h := &handler{
		sender:    pickSender(cfg, logger),
		recipient: cfg.Email.Recipient,
		log:       logger.Named("result-worker"),
	}
	if db != nil {
		h.repo = postgres.NewRepository(db, logger)
	}
	return h
}

func registerConsumer(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger, shutdowner fx.Shutdowner, h *handler) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.ResultsTopic,
		GroupID:  cfg.Kafka.ResultsGroup,
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("consuming",
				zap.String("topic", cfg.Kafka.ResultsTopic),
				zap.String("group", cfg.Kafka.ResultsGroup),
			)
			go func() {
				defer close(done)
				if err := consume(ctx, reader, h); err != nil {
					logger.Error("results consumer stopped with error", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			_ = reader.Close()
			<-done
			return nil
		},
	})
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
			newSQLDB,
			newHandler,
		),
		fx.Invoke(registerConsumer),
	)

	app.Run()
}
