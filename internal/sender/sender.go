package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openbuilders/synapse-batch/internal/metrics"
	"github.com/openbuilders/synapse-batch/internal/repository/postgres"
	"github.com/openbuilders/synapse-batch/internal/types"
)

type Config struct {
	NumWorkers int
	APITimeout time.Duration
	DBTimeout  time.Duration
}

type Creator interface {
	Create(ctx context.Context, node *types.Node,
		specs []types.TransactionSpec) (*types.BatchResult, error)
}

type Repository interface {
	PersistBatchResult(context.Context, types.Batch, *types.BatchResult) error
	PersistBatchFailure(context.Context, types.Batch, error) error
}

type Notifier interface {
	Notify(types.Batch, *types.BatchResult, error) error
}

// Sender submits batches produced by the batcher to the payments API,
// stores the outcome and notifies about every transaction in it.
type Sender struct {
	config   *Config
	batches  <-chan types.Batch
	creator  Creator
	repo     Repository
	notifier Notifier
	log      *slog.Logger
}

func New(config *Config, batches <-chan types.Batch, creator Creator,
	repo Repository, notifier Notifier) *Sender {
	return &Sender{
		config:   config,
		batches:  batches,
		creator:  creator,
		repo:     repo,
		notifier: notifier,
		log:      slog.With("component", "sender"),
	}
}

// Run processes batches until the batches channel is closed. Batches still
// in the channel on shutdown are sent out, so Run doesn't stop on ctx.
func (s *Sender) Run(ctx context.Context) error {
	s.log.Info("Starting sender", "workers", s.config.NumWorkers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.NumWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}

	wg.Wait()
	s.log.Info("Sender stopped")

	return nil
}

func (s *Sender) worker(ctx context.Context, id int) {
	log := s.log.With("worker", id)

	for batch := range s.batches {
		log.Info("Received a new batch", "uuid", batch.UUID,
			"node", batch.Node.ID, "size", len(batch.Specs))
		s.process(context.WithoutCancel(ctx), batch)
	}

	log.Debug("Batches channel is closed")
}

func (s *Sender) process(ctx context.Context, batch types.Batch) {
	metrics.BatchSize.Observe(float64(len(batch.Specs)))

	apiCtx, cancel := context.WithTimeout(ctx, s.config.APITimeout)
	node := batch.Node
	result, err := s.creator.Create(apiCtx, &node, batch.Specs)
	cancel()

	dbCtx, cancel := context.WithTimeout(ctx, s.config.DBTimeout)
	defer cancel()

	if err != nil {
		s.log.Error("Batch failed", "uuid", batch.UUID, "error", err)
		metrics.BatchesProcessed.WithLabelValues(string(types.StatusError)).Inc()

		if err := s.repo.PersistBatchFailure(dbCtx, batch, err); err != nil {
			s.log.Error("couldn't persist failed batch", "uuid", batch.UUID,
				"error", err)
		}

		s.notify(batch, nil, err)
		return
	}

	status := types.StatusSuccess
	if !result.Success {
		status = types.StatusError
	}
	metrics.BatchesProcessed.WithLabelValues(string(status)).Inc()

	err = s.repo.PersistBatchResult(dbCtx, batch, result)
	switch {
	case errors.Is(err, postgres.ErrDuplicateKeyValue):
		s.log.Info("batch already persisted, skipping", "uuid", batch.UUID)
	case err != nil:
		s.log.Error("couldn't persist batch result", "uuid", batch.UUID,
			"error", err)
	}

	s.notify(batch, result, nil)
}

func (s *Sender) notify(batch types.Batch, result *types.BatchResult, cause error) {
	if err := s.notifier.Notify(batch, result, cause); err != nil {
		s.log.Error("couldn't notify about batch", "uuid", batch.UUID,
			"error", err)
	}
}
