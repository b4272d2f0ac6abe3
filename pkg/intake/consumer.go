package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/metrics"
)

// MessageHandler processes one message body.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer reads notification events from a durable queue bound to a topic
// exchange. Every delivery is acked, rejected or requeued exactly once.
type Consumer struct {
	cfg     Config
	handler MessageHandler
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *slog.Logger
}

// Dial connects to the broker and declares the exchange, queue and binding.
func Dial(cfg Config, handler MessageHandler, log *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, ErrHandlerNil
	}
	if log == nil {
		log = slog.Default()
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrFailedToConnect, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Join(ErrFailedToConnect, err)
	}

	if err := declare(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Join(ErrFailedToDeclare, err)
	}

	log.Info("intake consumer initialized",
		slog.String("exchange", cfg.Exchange),
		slog.String("queue", cfg.Queue),
		slog.String("routing_key", cfg.RoutingKey))

	return &Consumer{cfg: cfg, handler: handler, conn: conn, channel: ch, logger: log}, nil
}

func declare(ch *amqp091.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange %q: %w", cfg.Exchange, err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue %q: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %q: %w", cfg.RoutingKey, err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("qos: %w", err)
		}
	}
	return nil
}

// Run adapts the consume loop for errgroup. It returns nil on ctx
// cancellation and an error when the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context) func() error {
	return func() error {
		deliveries, err := c.channel.ConsumeWithContext(ctx, c.cfg.Queue, c.cfg.Consumer, false, false, false, false, nil)
		if err != nil {
			return errors.Join(ErrFailedToConsume, err)
		}
		c.logger.InfoContext(ctx, "intake consumer started", slog.String("queue", c.cfg.Queue))
		err = c.consume(ctx, deliveries)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

// Close closes the channel and the connection.
func (c *Consumer) Close() error {
	return errors.Join(c.channel.Close(), c.conn.Close())
}

func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp091.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.settle(ctx, d)
		}
	}
}

// settle runs the handler and acknowledges d according to the outcome.
func (c *Consumer) settle(ctx context.Context, d amqp091.Delivery) {
	log := c.logger.With(slog.String("message_id", d.MessageId), slog.Uint64("delivery_tag", d.DeliveryTag))

	err := c.handle(ctx, d.Body)
	switch {
	case err == nil:
		metrics.IncIntake("accepted")
		if ackErr := d.Ack(false); ackErr != nil {
			log.ErrorContext(ctx, "failed to ack message", logger.Error(ackErr))
		}
	case errors.Is(err, ErrInvalidMessage):
		metrics.IncIntake("rejected")
		log.WarnContext(ctx, "rejecting invalid message", logger.Error(err))
		if nackErr := d.Reject(false); nackErr != nil {
			log.ErrorContext(ctx, "failed to reject message", logger.Error(nackErr))
		}
	default:
		metrics.IncIntake("requeued")
		log.ErrorContext(ctx, "failed to handle message, requeueing", logger.Error(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.ErrorContext(ctx, "failed to nack message", logger.Error(nackErr))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in intake handler: %v", r)
		}
	}()
	return c.handler(ctx, body)
}
