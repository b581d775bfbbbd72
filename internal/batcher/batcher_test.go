package batcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/openbuilders/synapse-batch/internal/types"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked  []uint64
	nacked []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return nil
}

type fakeDedup struct {
	seen      map[string]bool
	forgotten []string
	err       error
}

func (f *fakeDedup) Seen(ctx context.Context, nodeID, jobID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	key := nodeID + "/" + jobID
	if f.seen[key] {
		return true, nil
	}
	f.seen[key] = true
	return false, nil
}

func (f *fakeDedup) Forget(ctx context.Context, nodeID, jobID string) error {
	delete(f.seen, nodeID+"/"+jobID)
	f.forgotten = append(f.forgotten, jobID)
	return nil
}

// takeJobs receives jobs handed over by the batcher until the returned
// function is called.
func takeJobs(b *Batcher) func() []types.TransactionJob {
	stop := make(chan struct{})
	done := make(chan []types.TransactionJob)

	go func() {
		var jobs []types.TransactionJob
		for {
			select {
			case j := <-b.jobs:
				jobs = append(jobs, j)
			case <-stop:
				done <- jobs
				return
			}
		}
	}()

	return func() []types.TransactionJob {
		close(stop)
		return <-done
	}
}

func job(id, nodeID string) types.TransactionJob {
	return types.TransactionJob{
		ID:   id,
		Node: types.Node{ID: nodeID, UserID: "user", Type: types.NodeDepositUS},
		Transaction: types.TransactionSpec{
			ToType:   "ACH-US",
			ToID:     "to-" + id,
			Amount:   decimal.NewNullDecimal(decimal.NewFromInt(1)),
			Currency: "USD",
			IP:       "127.0.0.1",
		},
	}
}

func testConfig(size int, interval time.Duration) *Config {
	return &Config{
		BatchSize:       size,
		BatchInterval:   interval,
		ParallelBatches: 4,
		CacheTimeout:    time.Second,
	}
}

func TestCollector_FlushesFullGroup(t *testing.T) {
	c := newCollector(2)

	_, full := c.add(job("1", "a"))
	assert.False(t, full)
	_, full = c.add(job("2", "b"))
	assert.False(t, full)

	batch, full := c.add(job("3", "a"))
	require.True(t, full)
	assert.Equal(t, "a", batch.Node.ID)
	assert.Equal(t, []string{"1", "3"}, batch.JobIDs)
	assert.Equal(t, "to-1", batch.Specs[0].ToID)
	assert.Equal(t, "to-3", batch.Specs[1].ToID)

	rest := c.drain()
	require.Len(t, rest, 1)
	assert.Equal(t, "b", rest[0].Node.ID)
	assert.Empty(t, c.drain())
}

func TestCollector_DrainKeepsArrivalOrder(t *testing.T) {
	c := newCollector(10)
	for i, node := range []string{"c", "a", "b", "a"} {
		c.add(job(string(rune('0'+i)), node))
	}

	batches := c.drain()
	require.Len(t, batches, 3)
	assert.Equal(t, "c", batches[0].Node.ID)
	assert.Equal(t, "a", batches[1].Node.ID)
	assert.Equal(t, "b", batches[2].Node.ID)
	assert.Len(t, batches[1].Specs, 2)
	assert.NotEqual(t, batches[0].UUID, batches[1].UUID)
}

func TestBatcher_HandleMessage(t *testing.T) {
	b := New(testConfig(10, time.Hour), &fakeDedup{seen: map[string]bool{}})
	ack := &fakeAcknowledger{}
	taken := takeJobs(b)

	body, err := json.Marshal(job("1", "a"))
	require.NoError(t, err)

	delivery := func(tag uint64, body []byte) amqp.Delivery {
		return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
	}

	require.NoError(t, b.handleMessage(context.Background(), delivery(1, body)))
	require.NoError(t, b.handleMessage(context.Background(), delivery(2, body)))
	require.NoError(t, b.handleMessage(context.Background(), delivery(3, []byte("{"))))
	require.NoError(t, b.handleMessage(context.Background(), delivery(4, []byte(`{"id": "x"}`))))

	assert.Equal(t, []uint64{1, 2}, ack.acked)
	assert.Equal(t, []uint64{3, 4}, ack.nacked)

	got := taken()
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestBatcher_HandleMessageDedupFailureStillBatches(t *testing.T) {
	b := New(testConfig(10, time.Hour), &fakeDedup{err: errors.New("redis down")})
	ack := &fakeAcknowledger{}
	taken := takeJobs(b)

	body, err := json.Marshal(job("1", "a"))
	require.NoError(t, err)

	err = b.handleMessage(context.Background(),
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body})
	require.NoError(t, err)
	assert.Len(t, taken(), 1)
	assert.Equal(t, []uint64{1}, ack.acked)
}

func TestBatcher_HandleMessageNotTakenIsRequeued(t *testing.T) {
	dedup := &fakeDedup{seen: map[string]bool{}}
	b := New(testConfig(10, time.Hour), dedup)
	ack := &fakeAcknowledger{}

	body, err := json.Marshal(job("1", "a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = b.handleMessage(ctx,
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: body})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, ack.acked)
	assert.Equal(t, []uint64{7}, ack.nacked)
	assert.Equal(t, []string{"1"}, dedup.forgotten)

	seen, err := dedup.Seen(context.Background(), "a", "1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestBatcher_AckedJobSurvivesShutdown(t *testing.T) {
	for i := 0; i < 20; i++ {
		b := New(testConfig(10, time.Hour), &fakeDedup{seen: map[string]bool{}})
		ack := &fakeAcknowledger{}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- b.Run(ctx) }()

		body, err := json.Marshal(job("1", "a"))
		require.NoError(t, err)

		require.NoError(t, b.handleMessage(context.Background(),
			amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}))
		require.Equal(t, []uint64{1}, ack.acked)

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)

		var batches []types.Batch
		for batch := range b.Batches {
			batches = append(batches, batch)
		}

		require.Len(t, batches, 1)
		assert.Equal(t, []string{"1"}, batches[0].JobIDs)
	}
}

func TestBatcher_RunFlushesBySizeAndInterval(t *testing.T) {
	b := New(testConfig(2, 50*time.Millisecond), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.jobs <- job("1", "a")
	b.jobs <- job("2", "a")
	b.jobs <- job("3", "b")

	first := <-b.Batches
	assert.Equal(t, "a", first.Node.ID)
	assert.Len(t, first.Specs, 2)

	second := <-b.Batches
	assert.Equal(t, "b", second.Node.ID)
	assert.Equal(t, []string{"3"}, second.JobIDs)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	_, open := <-b.Batches
	assert.False(t, open)
}
