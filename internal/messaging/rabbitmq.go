package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// dial connects to the broker and opens a channel with every task queue
// declared. A positive prefetch caps the unacknowledged deliveries on the
// channel.
func dial(url string, prefetch int) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= MaxConnectRetry; attempt++ {
		if conn, err = amqp.Dial(url); err == nil {
			break
		}
		slog.Warn("error connecting to rabbitmq", "attempt", attempt, "max_attempts", MaxConnectRetry, "error", err)
		if attempt < MaxConnectRetry {
			time.Sleep(RetryDelay)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to rabbitmq after %d attempts: %w", MaxConnectRetry, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("error opening rabbitmq channel: %w", err)
	}

	if prefetch > 0 {
		if err := channel.Qos(prefetch, 0, false); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("error setting rabbitmq prefetch: %w", err)
		}
	}

	for _, queue := range queues {
		if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("error declaring queue %s: %w", queue, err)
		}
	}

	slog.Info("connected to rabbitmq", "queues", queues)
	return conn, channel, nil
}

type RabbitMQPublisher struct {
	url string

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closeOnce sync.Once
}

func NewRabbitMQPublisher(url string) (*RabbitMQPublisher, error) {
	conn, channel, err := dial(url, 0)
	if err != nil {
		return nil, err
	}
	p := &RabbitMQPublisher{url: url, conn: conn, channel: channel}
	go p.watch(channel)
	return p, nil
}

// watch redials whenever the broker closes the channel. Publishes fail fast
// while no channel is open.
func (p *RabbitMQPublisher) watch(channel *amqp.Channel) {
	closed := channel.NotifyClose(make(chan *amqp.Error, 1))
	for {
		amqpErr, ok := <-closed
		if !ok {
			slog.Info("rabbitmq publisher channel closed")
			return
		}
		slog.Warn("rabbitmq publisher lost its channel, reconnecting", "error", amqpErr)

		p.mu.Lock()
		p.conn, p.channel = nil, nil
		for {
			conn, channel, err := dial(p.url, 0)
			if err == nil {
				p.conn, p.channel = conn, channel
				closed = channel.NotifyClose(make(chan *amqp.Error, 1))
				break
			}
			time.Sleep(RetryDelay * 10)
		}
		p.mu.Unlock()
		slog.Info("rabbitmq publisher reconnected")
	}
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding %s payload: %w", queue, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("rabbitmq channel is not open")
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := p.channel.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		slog.Error("error publishing task", "queue", queue, "error", err)
		return fmt.Errorf("error publishing to %s: %w", queue, err)
	}
	return nil
}

func (p *RabbitMQPublisher) PublishPredictionTask(ctx context.Context, payload PredictionTaskPayload) error {
	return p.publish(ctx, PredictionQueue, payload)
}

func (p *RabbitMQPublisher) PublishCleanupTask(ctx context.Context, payload CleanupTaskPayload) error {
	return p.publish(ctx, CleanupQueue, payload)
}

func (p *RabbitMQPublisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.RLock()
		conn := p.conn
		p.mu.RUnlock()
		if conn == nil {
			return
		}
		if err := conn.Close(); err != nil {
			slog.Error("error closing rabbitmq publisher", "error", err)
		}
	})
}

type RabbitMQTask struct {
	d amqp.Delivery
}

func (t *RabbitMQTask) Type() string {
	return t.d.RoutingKey
}

func (t *RabbitMQTask) Payload() []byte {
	return t.d.Body
}

func (t *RabbitMQTask) Ack() error {
	return t.d.Ack(false)
}

// Nack does not requeue, predictions are never retried.
func (t *RabbitMQTask) Nack() error {
	return t.d.Nack(false, false)
}

func (t *RabbitMQTask) Reject() error {
	return t.d.Reject(false)
}

type RabbitMQReceiver struct {
	url   string
	tasks chan Task

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRabbitMQReceiver(url string) (*RabbitMQReceiver, error) {
	r := &RabbitMQReceiver{
		url:   url,
		tasks: make(chan Task),
		stop:  make(chan struct{}),
	}

	conn, channel, err := r.subscribe()
	if err != nil {
		return nil, err
	}
	go r.supervise(conn, channel)

	return r, nil
}

// subscribe starts a consumer on every task queue. A prefetch of one keeps a
// worker on a single prediction at a time.
func (r *RabbitMQReceiver) subscribe() (*amqp.Connection, *amqp.Channel, error) {
	conn, channel, err := dial(r.url, 1)
	if err != nil {
		return nil, nil, err
	}

	for _, queue := range queues {
		deliveries, err := channel.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("error consuming from %s: %w", queue, err)
		}
		go r.forward(deliveries)
	}

	return conn, channel, nil
}

func (r *RabbitMQReceiver) forward(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		select {
		case r.tasks <- &RabbitMQTask{d: d}:
		case <-r.stop:
			return
		}
	}
}

func (r *RabbitMQReceiver) supervise(conn *amqp.Connection, channel *amqp.Channel) {
	for {
		closed := channel.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-r.stop:
			slog.Info("stopping rabbitmq receiver")
			if err := conn.Close(); err != nil {
				slog.Error("error closing rabbitmq receiver", "error", err)
			}
			return
		case amqpErr, ok := <-closed:
			if !ok {
				slog.Info("rabbitmq receiver channel closed")
				return
			}
			slog.Warn("rabbitmq receiver lost its channel, resubscribing", "error", amqpErr)
		}

		for {
			nextConn, nextChannel, err := r.subscribe()
			if err == nil {
				conn, channel = nextConn, nextChannel
				break
			}
			select {
			case <-r.stop:
				return
			case <-time.After(RetryDelay * 10):
			}
		}
		slog.Info("rabbitmq receiver resubscribed")
	}
}

func (r *RabbitMQReceiver) Tasks() <-chan Task {
	return r.tasks
}

func (r *RabbitMQReceiver) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}
