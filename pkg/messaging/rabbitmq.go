package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/config"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ holds the broker connection and the one channel that publishers
// and consumers of a process share.
type RabbitMQ struct {
	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	cfg *config.RabbitMQConfig
	log *logger.Logger
}

// New dials the broker. The broker is optional, so callers check
// cfg.Enabled() first.
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("rabbitmq url not configured")
	}
	r := &RabbitMQ{cfg: cfg, log: log.WithComponent("rabbitmq")}
	if err := r.dial(); err != nil {
		return nil, err
	}
	return r, nil
}

// dial replaces the connection and channel. Callers hold mu or own r exclusively.
func (r *RabbitMQ) dial() error {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.conn, r.channel = conn, ch
	r.log.Info().Int("prefetch", r.cfg.PrefetchCount).Msg("connected to RabbitMQ")
	return nil
}

func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close shuts the connection for good; Reconnect fails afterwards.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.log.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	r.log.Info().Msg("RabbitMQ connection closed")
	return nil
}

func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange.
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// DeadLetterQueue names the queue holding the rejected deliveries of queue.
func DeadLetterQueue(queue string) string {
	return queue + ".dead"
}

// queueArgs routes rejected deliveries to ExchangeDeadLetter under the queue's
// own name, so each service's dead letters land in that service's DLQ only.
func queueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": queue,
	}
}

// DeclareQueue declares a durable work queue together with its dead-letter
// queue, bound on ExchangeDeadLetter by the work queue's name.
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	ch := r.Channel()

	if err := ch.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}
	dead := DeadLetterQueue(name)
	if _, err := ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare %s: %w", dead, err)
	}
	if err := ch.QueueBind(dead, name, ExchangeDeadLetter, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to bind %s: %w", dead, err)
	}

	return ch.QueueDeclare(name, true, false, false, false, queueArgs(name))
}

// BindQueue binds a queue to an exchange with a routing key pattern.
func (r *RabbitMQ) BindQueue(queue, exchange, routingKey string) error {
	return r.Channel().QueueBind(queue, routingKey, exchange, false, nil)
}

// Reconnect redials up to cfg.MaxRetries times, waiting cfg.ReconnectDelay
// between attempts.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connection is permanently closed")
	}
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log.Info().Int("attempt", attempt).Msg("reconnecting to RabbitMQ")
		err := r.dial()
		if err == nil {
			return nil
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}
	return fmt.Errorf("failed to reconnect after %d attempts", r.cfg.MaxRetries)
}
