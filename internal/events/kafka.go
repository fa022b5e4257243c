package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

// Event types published by the client.
const (
	TypeResultDelivered = "PaymentResultDelivered"
	ResultVersion       = "v1"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	w     MessageWriter
	topic string
	log   *zap.Logger
	now   func() time.Time
}

// NewProducer writes to topic on the given brokers.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{}, // partition by session so results of one list stay ordered
		AllowAutoTopicCreation: true,
	}, topic, logger)
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w MessageWriter, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{w: w, topic: topic, log: logger.Named("events"), now: time.Now}
}

func (p *Producer) Close() error { return p.w.Close() }

// Envelope is the standard event schema the client publishes.
type Envelope struct {
	EventType    string          `json:"eventType"`
	EventVersion string          `json:"eventVersion"`
	OccurredAt   time.Time       `json:"occurredAt"`
	AggregateID  string          `json:"aggregateId"` // the list URL
	Data         json.RawMessage `json:"data"`
}

// ResultEvent is the payload of a delivered result.
type ResultEvent struct {
	ListURL     string             `json:"listUrl"`
	Code        model.ResultCode   `json:"code"`
	ResultInfo  string             `json:"resultInfo,omitempty"`
	Interaction *model.Interaction `json:"interaction,omitempty"`
	Error       string             `json:"error,omitempty"`
	Email       string             `json:"email,omitempty"`
}

// NewResultEvent flattens a result for publishing.
func NewResultEvent(listURL string, r model.Result) ResultEvent {
	ev := ResultEvent{
		ListURL:     listURL,
		Code:        r.Code,
		ResultInfo:  r.ResultInfo,
		Interaction: r.Interaction,
		Error:       r.Error,
	}
	if ev.Interaction == nil && r.OperationResult != nil {
		ev.Interaction = r.OperationResult.Interaction
	}
	return ev
}

// PublishResult writes one result, keyed by its list URL.
func (p *Producer) PublishResult(ctx context.Context, ev ResultEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode result event: %w", err)
	}
	val, err := json.Marshal(Envelope{
		EventType:    TypeResultDelivered,
		EventVersion: ResultVersion,
		OccurredAt:   p.now().UTC(),
		AggregateID:  ev.ListURL,
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(ev.ListURL),
		Value: val,
	}); err != nil {
		return fmt.Errorf("publish result to %s: %w", p.topic, err)
	}
	p.log.Info("result published", zap.String("topic", p.topic), zap.String("code", string(ev.Code)))
	return nil
}

// DecodeResult parses a message written by PublishResult. ok is false for
// envelopes of other event types.
func DecodeResult(value []byte) (Envelope, ResultEvent, bool, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, ResultEvent{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != TypeResultDelivered {
		return env, ResultEvent{}, false, nil
	}
	var ev ResultEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return env, ResultEvent{}, false, fmt.Errorf("decode result event: %w", err)
	}
	return env, ev, true, nil
}
