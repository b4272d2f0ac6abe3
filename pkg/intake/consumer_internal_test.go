package intake

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

type ackRecorder struct {
	mu      sync.Mutex
	acked   []uint64
	rejects []uint64
	requeue []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeue = append(a.requeue, tag)
	} else {
		a.rejects = append(a.rejects, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestConsumer_Settles(t *testing.T) {
	t.Parallel()

	handler := func(_ context.Context, body []byte) error {
		switch string(body) {
		case "ok":
			return nil
		case "invalid":
			return errors.Join(ErrInvalidMessage, errors.New("bad json"))
		case "panic":
			panic("boom")
		default:
			return errors.New("database down")
		}
	}
	c := &Consumer{handler: handler, logger: slog.Default()}
	acks := &ackRecorder{}

	deliveries := make(chan amqp091.Delivery, 4)
	for i, body := range []string{"ok", "invalid", "transient", "panic"} {
		deliveries <- amqp091.Delivery{Acknowledger: acks, DeliveryTag: uint64(i + 1), Body: []byte(body)}
	}
	close(deliveries)

	err := c.consume(context.Background(), deliveries)
	assert.ErrorIs(t, err, ErrDeliveriesClosed)

	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.rejects)
	assert.Equal(t, []uint64{3, 4}, acks.requeue)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	t.Parallel()

	c := &Consumer{handler: func(context.Context, []byte) error { return nil }, logger: slog.Default()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.consume(ctx, make(chan amqp091.Delivery))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDial_NilHandler(t *testing.T) {
	t.Parallel()

	_, err := Dial(Config{URL: "amqp://localhost"}, nil, nil)
	assert.ErrorIs(t, err, ErrHandlerNil)
}
