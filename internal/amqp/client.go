// Package amqp connects the API process to the background worker over
// RabbitMQ. Publishes are guarded by a small circuit breaker so a dead
// broker degrades submissions to log warnings instead of piling up
// five-second timeouts.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"lofawell/internal/engine"
)

const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 60 * time.Second
)

type Client struct {
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string

	// Breaker fields are touched from concurrent publishes; all access
	// goes through sync/atomic. lastFailure holds unix nanoseconds.
	failureCount int64
	state        int32
	lastFailure  int64
}

var (
	_ engine.SyncPublisher = (*Client)(nil)
	_ engine.Notifier      = (*Client)(nil)
)

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishApplicationSync implements engine.SyncPublisher.
func (c *Client) PublishApplicationSync(ctx context.Context, appID string) error {
	msg := NewApplicationSyncMessage(appID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published application sync message",
		"app_id", appID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// NotifyDecision implements engine.Notifier.
func (c *Client) NotifyDecision(ctx context.Context, event engine.Notification) error {
	msg := &DecisionMessage{
		Kind:      KindDecision,
		AppID:     event.AppID,
		To:        event.To,
		Subject:   event.Subject,
		Body:      event.Body,
		Decision:  event.Decision,
		Timestamp: time.Now(),
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published decision message",
		"app_id", event.AppID,
		"decision", event.Decision)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		since := time.Unix(0, atomic.LoadInt64(&c.lastFailure))
		return fmt.Errorf("circuit breaker is open, broker unavailable since %s",
			since.Format(time.RFC3339))
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// Handlers dispatches consumed messages by kind. A nil handler nacks
// the delivery without requeue.
type Handlers struct {
	Sync     func(ctx context.Context, msg *ApplicationSyncMessage) error
	Decision func(ctx context.Context, msg *DecisionMessage) error
}

// Consume blocks handling deliveries until ctx is cancelled or the
// delivery channel closes. Handler errors nack with requeue; malformed
// payloads are dropped.
func (c *Client) Consume(ctx context.Context, handlers Handlers) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			decoded, err := DecodeMessage(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to decode message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := c.dispatch(ctx, handlers, decoded); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message", "error", err)
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, handlers Handlers, decoded any) error {
	switch msg := decoded.(type) {
	case *ApplicationSyncMessage:
		if handlers.Sync == nil {
			return fmt.Errorf("no sync handler configured")
		}
		return handlers.Sync(ctx, msg)
	case *DecisionMessage:
		if handlers.Decision == nil {
			return fmt.Errorf("no decision handler configured")
		}
		return handlers.Decision(ctx, msg)
	default:
		return fmt.Errorf("unhandled message type %T", decoded)
	}
}

// ConsumeWithReconnect wraps Consume with a redial loop. Connection
// errors trigger a reconnect after an exponential backoff; any other
// error is returned to the caller.
func (c *Client) ConsumeWithReconnect(ctx context.Context, handlers Handlers) error {
	attempt := 0
	for {
		err := c.Consume(ctx, handlers)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) && err.Error() != "message channel closed" {
			return err
		}

		backoff := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "Consumer lost broker connection, reconnecting",
			"error", err,
			"backoff", backoff,
			"attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		c.Close()
		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "Reconnect failed", "error", err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		if time.Since(time.Unix(0, atomic.LoadInt64(&c.lastFailure))) > openTimeout {
			atomic.StoreInt32(&c.state, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordFailure() {
	atomic.StoreInt64(&c.lastFailure, time.Now().UnixNano())
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func exponentialBackoff(attempt int) time.Duration {
	backoff := time.Second << uint(attempt)
	if backoff > 30*time.Second || backoff <= 0 {
		return 30 * time.Second
	}
	return backoff
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
