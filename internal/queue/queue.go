package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openbuilders/synapse-batch/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

type QueueName string

const (
	// QueueTransactions carries single transaction jobs waiting to be batched.
	QueueTransactions QueueName = "synapse_transaction"
	// QueueResults carries per-transaction results back to the main service.
	QueueResults QueueName = "main-service"
)

type WorkerFunc func(context.Context, *amqp.Connection) error

type Config struct {
	URL               string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
}

type Queue struct {
	config  *Config
	conn    *amqp.Connection
	workers []WorkerFunc
	mu      sync.Mutex
	log     *slog.Logger
}

func New(config *Config) *Queue {
	return &Queue{
		config: config,
		log:    slog.With("component", "queue"),
	}
}

func (q *Queue) Start(ctx context.Context) error {
	q.log.Info("Starting the queue manager.")
	defer q.log.Info("Stopping the queue manager.")

	return q.reconnectLoop(ctx)
}

// RegisterWorker stores a worker that will be invoked every time a connection
// is (re)created. Workers must be registered before Start.
func (q *Queue) RegisterWorker(w WorkerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.workers = append(q.workers, w)
}

func (q *Queue) reconnectLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.log.Debug("closing reconnect loop...")
			q.close()
			return ctx.Err()
		default:
		}

		q.log.Info("connecting to Rabbit MQ...")
		cancel, err := q.connect(ctx)
		if err != nil {
			q.log.Error("connection to Rabbit MQ failed", "error", err)
			if !sleep(ctx, q.config.ReconnectInterval) {
				return ctx.Err()
			}
			continue
		}

		q.log.Info("connected to Rabbit MQ")

		connErrors := make(chan *amqp.Error, 1)
		q.connection().NotifyClose(connErrors)

		select {
		case <-ctx.Done():
			cancel()
			q.close()
			return ctx.Err()
		case err := <-connErrors:
			q.log.Error("rabbit mq connection closed", "error", err)
		}

		// stop the workers bound to the dead connection
		cancel()

		if !sleep(ctx, q.config.ReconnectInterval) {
			return ctx.Err()
		}
	}
}

func (q *Queue) connect(ctx context.Context) (context.CancelFunc, error) {
	conn, err := amqp.DialConfig(q.config.URL, amqp.Config{
		Dial: amqp.DefaultDial(q.config.ConnectTimeout),
	})
	if err != nil {
		return nil, err
	}

	workerCtx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.conn = conn
	workers := append([]WorkerFunc{}, q.workers...)
	q.mu.Unlock()

	for _, w := range workers {
		go q.runWorker(workerCtx, w, conn)
	}

	return cancel, nil
}

// runWorker keeps the worker running on the connection until ctx is done,
// restarting it ReconnectInterval after it exits.
func (q *Queue) runWorker(ctx context.Context, w WorkerFunc,
	conn *amqp.Connection) {

	for {
		err := w(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		q.log.Error("queue worker exited, restarting", "error", err)
		metrics.QueueWorkerRestarts.Inc()

		if !sleep(ctx, q.config.ReconnectInterval) {
			return
		}
	}
}

func (q *Queue) connection() *amqp.Connection {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.conn
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		_ = q.conn.Close()
	}
	q.conn = nil
}

// Publish sends the message to the named queue through the default exchange.
func (q *Queue) Publish(queueName QueueName, message []byte) error {
	conn := q.connection()
	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("connection is not open yet")
	}

	ch, err := EnsureQueueExists(conn, queueName)
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.Publish(
		"",                // exchange, empty means default (direct to queue)
		string(queueName), // routing key = queue name
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
		},
	)
	if err != nil {
		q.log.Error("Failed to publish", "queue", queueName, "error", err)
		return err
	}

	return nil
}

// EnsureQueueExists opens a channel and declares a durable queue on it. The
// caller owns the returned channel.
func EnsureQueueExists(conn *amqp.Connection, queueName QueueName) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("couldn't open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		string(queueName),
		true,  // durable
		false, // auto delete
		false, // exclusive
		false, // no wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("couldn't declare queue %s: %w", queueName, err)
	}

	return ch, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
