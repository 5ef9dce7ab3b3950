package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-management/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_PublishAndConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	amqpURI, cleanup := brokerURI(ctx, t)
	defer cleanup()

	conn, err := Connect(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := SetupChannel(conn, MailExchange, GetMailQueues())
	require.NoError(t, err)
	defer ch.Close()
	_, err = ch.QueuePurge("mail.feedback", false)
	require.NoError(t, err)

	publisher := NewPublisher(ch, MailExchange)
	want := models.Feedback{Email: "jane@example.com", Name: "Jane", Text: "Hello"}
	require.NoError(t, publisher.Publish(ctx, RoutingFeedback, want))

	got := make(chan models.Feedback, 1)
	consumerCh, err := conn.Channel()
	require.NoError(t, err)
	defer consumerCh.Close()

	err = ConsumerMessage(ctx, newNoopLogger(), consumerCh, "mail.feedback", 2, func(_ context.Context, body []byte) error {
		var fb models.Feedback
		if err := json.Unmarshal(body, &fb); err != nil {
			return err
		}
		got <- fb
		return nil
	})
	require.NoError(t, err)

	select {
	case fb := <-got:
		assert.Equal(t, want, fb)
	case <-time.After(10 * time.Second):
		t.Fatal("message was not consumed")
	}
}

func TestConsumerMessage_RequeueOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	amqpURI, cleanup := brokerURI(ctx, t)
	defer cleanup()

	conn, err := Connect(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	queue := "requeue-test"
	_, err = ch.QueueDeclare(queue, false, true, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, PublishMessage(ch, "", queue, map[string]string{"k": "v"}))

	var calls atomic.Int32
	done := make(chan struct{})
	err = ConsumerMessage(ctx, newNoopLogger(), ch, queue, 1, func(context.Context, []byte) error {
		if calls.Add(1) == 2 {
			close(done)
		}
		return errors.New("smtp down")
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("message was not redelivered")
	}
	// после повторной неудачи сообщение отбрасывается
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPublisher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPublisher(nil, MailExchange)
	err := p.Publish(ctx, RoutingFeedback, models.Feedback{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
