package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/openbuilders/synapse-batch/internal/batchtrans"
	"github.com/openbuilders/synapse-batch/internal/payload"
	"github.com/openbuilders/synapse-batch/internal/queue"
	"github.com/openbuilders/synapse-batch/internal/types"

	"github.com/google/uuid"
)

const maxBodySize = 1 << 20

// BatchRequest is the body of POST /batch.
type BatchRequest struct {
	Node         types.Node         `json:"node"`
	Transactions []BatchTransaction `json:"transactions"`
}

type BatchTransaction struct {
	// ID identifies the transaction in result notifications, generated when
	// empty.
	ID string `json:"id"`
	types.TransactionSpec
}

type BatchAccepted struct {
	JobIDs []string `json:"job_ids"`
}

// BatchHandler validates a batch request and enqueues each of its
// transactions as a separate job. Nothing is enqueued unless every
// transaction is valid.
func (s *Server) BatchHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	s.log.Info("Accepted a new batch request")

	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.log.Error("Unable to read request body", "error", err)
		return nil, err
	}
	defer r.Body.Close()

	var req BatchRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return nil, &APIError{
			Code:        InvalidRequest,
			Description: fmt.Sprintf("request unmarshalling error: %v", err),
		}
	}

	if len(req.Transactions) == 0 {
		return nil, &APIError{Code: InvalidRequest, Description: "no transactions"}
	}

	if err := batchtrans.CheckNode(&req.Node); err != nil {
		return nil, err
	}

	specs := make([]types.TransactionSpec, len(req.Transactions))
	for i, tx := range req.Transactions {
		specs[i] = tx.TransactionSpec
	}

	if _, err := payload.BuildBatch(specs); err != nil {
		return nil, err
	}

	jobs := make([][]byte, len(req.Transactions))
	ids := make([]string, len(req.Transactions))
	for i, tx := range req.Transactions {
		ids[i] = tx.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}

		jobs[i], err = json.Marshal(types.TransactionJob{
			ID:          ids[i],
			Node:        req.Node,
			Transaction: tx.TransactionSpec,
		})
		if err != nil {
			return nil, fmt.Errorf("job marshalling error: %w", err)
		}
	}

	for i, job := range jobs {
		if err := s.publisher.Publish(queue.QueueTransactions, job); err != nil {
			s.log.Error(
				"couldn't enqueue job",
				"job", ids[i],
				"error", err,
			)

			return nil, &APIError{Code: EnqueueingError}
		}
	}

	s.log.Debug("Enqueued jobs", "node", req.Node.ID, "jobs", ids)

	return BatchAccepted{JobIDs: ids}, nil
}
