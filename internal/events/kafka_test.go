package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestPublishResultRoundTrip(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "payment-results.v1", nil)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)) }

	in := model.NewInteraction(model.InteractionProceed, model.ReasonOK)
	ev := NewResultEvent("https://x/lists/1", model.Result{
		Code:            model.ResultOK,
		ResultInfo:      "charged",
		OperationResult: &model.OperationResult{Interaction: &in},
	})
	require.NoError(t, p.PublishResult(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "payment-results.v1", msg.Topic)
	assert.Equal(t, "https://x/lists/1", string(msg.Key))

	env, got, ok, err := DecodeResult(msg.Value)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ResultVersion, env.EventVersion)
	assert.True(t, env.OccurredAt.Equal(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Equal(t, ev, got)
	assert.Equal(t, &in, got.Interaction)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishResultWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewProducerWithWriter(&captureWriter{err: boom}, "t", nil)
	err := p.PublishResult(context.Background(), ResultEvent{Code: model.ResultError})
	assert.ErrorIs(t, err, boom)
}

func TestDecodeResultOtherTypes(t *testing.T) {
	_, _, ok, err := DecodeResult([]byte(`{"eventType":"OrderCreated","data":{}}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = DecodeResult([]byte(`not json`))
	assert.Error(t, err)

	_, _, _, err = DecodeResult([]byte(`{"eventType":"PaymentResultDelivered","data":"nope"}`))
	assert.Error(t, err)
}
