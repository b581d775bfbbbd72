package batcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/synapse-batch/internal/metrics"
	"github.com/openbuilders/synapse-batch/internal/queue"
	"github.com/openbuilders/synapse-batch/internal/types"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	// BatchSize is the maximum number of transactions sent in one batch.
	BatchSize     int
	BatchInterval time.Duration
	// ParallelBatches is the capacity of the Batches channel.
	ParallelBatches int
	CacheTimeout    time.Duration
}

type Deduplicator interface {
	Seen(ctx context.Context, nodeID, jobID string) (bool, error)
	Forget(ctx context.Context, nodeID, jobID string) error
}

// Batcher consumes transaction jobs from the queue and groups them per
// originating node into batches.
type Batcher struct {
	Batches chan types.Batch
	config  *Config
	dedup   Deduplicator
	// jobs is unbuffered: a job is acknowledged only once Run holds it.
	jobs chan types.TransactionJob
	log  *slog.Logger
}

func New(config *Config, dedup Deduplicator) *Batcher {
	return &Batcher{
		Batches: make(chan types.Batch, config.ParallelBatches),
		config:  config,
		dedup:   dedup,
		jobs:    make(chan types.TransactionJob),
		log:     slog.With("component", "batcher"),
	}
}

// Run groups incoming jobs and flushes a node's batch once it reaches the
// batch size, and every batch on each interval tick. Pending batches are
// flushed before Run returns.
func (b *Batcher) Run(ctx context.Context) error {
	b.log.Info("Starting batcher")

	groups := newCollector(b.config.BatchSize)

	ticker := time.NewTicker(b.config.BatchInterval)
	defer ticker.Stop()

	defer close(b.Batches)

	for {
		select {
		case <-ctx.Done():
			b.log.Info("Stopping batcher...")
			for _, batch := range groups.drain() {
				b.Batches <- batch
			}
			return ctx.Err()

		case job := <-b.jobs:
			if batch, full := groups.add(job); full {
				b.log.Debug(
					"Reached the max batch size, processing right away",
					"node", batch.Node.ID,
					"max", b.config.BatchSize,
				)
				b.Batches <- batch
			}

		case <-ticker.C:
			for _, batch := range groups.drain() {
				b.Batches <- batch
			}
		}
	}
}

// Consume is a queue.WorkerFunc reading transaction jobs from the
// connection. It returns when the context is cancelled or the deliveries
// channel is closed.
func (b *Batcher) Consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := queue.EnsureQueueExists(conn, queue.QueueTransactions)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(b.config.BatchSize, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	messages, err := ch.Consume(
		string(queue.QueueTransactions), // queue
		"batcher",                       // consumer
		false,                           // autoAck
		false,                           // exclusive
		false,                           // noLocal
		false,                           // no wait
		nil,                             // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("queue is closed")
			}

			if err := b.handleMessage(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// handleMessage hands a job over to the Run loop and acknowledges it once
// Run holds it. Undecodable messages are dropped, duplicates are
// acknowledged without being batched again, jobs Run didn't take before
// shutdown are requeued.
func (b *Batcher) handleMessage(ctx context.Context, msg amqp.Delivery) error {
	job, err := b.decodeJob(msg.Body)
	if err != nil {
		b.log.Error("job unmarshalling error", "body", string(msg.Body),
			"error", err)
		metrics.JobsReceived.WithLabelValues("invalid").Inc()
		return msg.Nack(false, false)
	}

	if b.dedup != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, b.config.CacheTimeout)
		seen, err := b.dedup.Seen(cacheCtx, job.Node.ID, job.ID)
		cancel()

		if err != nil {
			// better to risk a duplicate than to stall the queue
			b.log.Error("dedup check failed", "job", job.ID, "error", err)
		} else if seen {
			b.log.Info("duplicate job, skipping", "job", job.ID)
			metrics.JobsReceived.WithLabelValues("duplicate").Inc()
			return msg.Ack(false)
		}
	}

	select {
	case <-ctx.Done():
		b.release(ctx, msg, job)
		return ctx.Err()
	case b.jobs <- job:
	}

	metrics.JobsReceived.WithLabelValues("accepted").Inc()

	return msg.Ack(false)
}

// release returns a job Run never took back to the queue and clears its
// dedup mark, so the redelivery is batched.
func (b *Batcher) release(ctx context.Context, msg amqp.Delivery,
	job types.TransactionJob) {

	if b.dedup != nil {
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx),
			b.config.CacheTimeout)
		if err := b.dedup.Forget(cacheCtx, job.Node.ID, job.ID); err != nil {
			b.log.Error("couldn't clear dedup mark", "job", job.ID, "error", err)
		}
		cancel()
	}

	if err := msg.Nack(false, true); err != nil {
		b.log.Debug("requeue failed, the broker redelivers on channel close",
			"job", job.ID, "error", err)
	}
}

func (b *Batcher) decodeJob(body []byte) (types.TransactionJob, error) {
	var job types.TransactionJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, err
	}

	if job.ID == "" || job.Node.ID == "" {
		return job, fmt.Errorf("job id and node id are required")
	}

	return job, nil
}

// collector keeps per-node groups in arrival order.
type collector struct {
	size   int
	groups map[string]*types.Batch
	order  []string
}

func newCollector(size int) *collector {
	return &collector{
		size:   size,
		groups: make(map[string]*types.Batch),
	}
}

// add appends the job to its node's group and returns the group as a batch
// once it's full.
func (c *collector) add(job types.TransactionJob) (types.Batch, bool) {
	g, ok := c.groups[job.Node.ID]
	if !ok {
		g = &types.Batch{UUID: uuid.New(), Node: job.Node}
		c.groups[job.Node.ID] = g
		c.order = append(c.order, job.Node.ID)
	}

	g.JobIDs = append(g.JobIDs, job.ID)
	g.Specs = append(g.Specs, job.Transaction)

	if len(g.Specs) < c.size {
		return types.Batch{}, false
	}

	c.remove(job.Node.ID)
	return *g, true
}

// drain returns every non-empty group and resets the collector.
func (c *collector) drain() []types.Batch {
	batches := make([]types.Batch, 0, len(c.order))
	for _, id := range c.order {
		batches = append(batches, *c.groups[id])
	}

	c.groups = make(map[string]*types.Batch)
	c.order = c.order[:0]

	return batches
}

func (c *collector) remove(nodeID string) {
	delete(c.groups, nodeID)
	for i, id := range c.order {
		if id == nodeID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
