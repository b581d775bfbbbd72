package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openbuilders/synapse-batch/internal/queue"
	"github.com/openbuilders/synapse-batch/internal/types"

	"github.com/google/uuid"
)

const (
	PatternPaymentStatus = "payment-status"
)

type Publisher interface {
	Publish(queue.QueueName, []byte) error
}

type Notifier struct {
	publisher Publisher
	log       *slog.Logger
}

type BatchResultData struct {
	TransactionID string            `json:"transaction_id"`
	SynapseID     string            `json:"synapse_id,omitempty"`
	BatchUUID     uuid.UUID         `json:"batch_uuid"`
	Status        types.BatchStatus `json:"status"`
	APIStatus     string            `json:"api_status,omitempty"`
	Error         string            `json:"error,omitempty"`
}

type BatchResultNotification struct {
	Pattern string          `json:"pattern"`
	Data    BatchResultData `json:"data"`
}

func New(publisher Publisher) *Notifier {
	return &Notifier{
		publisher: publisher,
		log:       slog.With("component", "notifier"),
	}
}

// Notify publishes one notification per job of the batch. Records are
// matched to jobs by position, the API returns them in request order.
func (n *Notifier) Notify(batch types.Batch, result *types.BatchResult,
	cause error) error {

	for i, jobID := range batch.JobIDs {
		data := BatchResultData{
			TransactionID: jobID,
			BatchUUID:     batch.UUID,
		}

		switch {
		case cause != nil:
			data.Status = types.StatusError
			data.Error = cause.Error()
		case i < len(result.Trans):
			data.SynapseID = result.Trans[i].ID
			data.APIStatus = result.Trans[i].RecentStatus.Status

			// same status the batch is stored with
			data.Status = types.StatusSuccess
			if !result.Success {
				data.Status = types.StatusError
				data.Error = fmt.Sprintf(
					"batch not successful (error_code %s, http_code %s)",
					result.ErrorCode, result.HTTPCode)
			}
		default:
			data.Status = types.StatusError
			data.Error = fmt.Sprintf("no transaction returned (error_code %s)",
				result.ErrorCode)
		}

		payload := BatchResultNotification{
			Pattern: PatternPaymentStatus,
			Data:    data,
		}

		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}

		n.log.Debug("Sending notification", "payload", string(jsonData))

		err = n.publisher.Publish(queue.QueueResults, jsonData)
		if err != nil {
			n.log.Error(
				"couldn't enqueue message",
				"message", string(jsonData),
				"error", err,
			)
			return err
		}
	}

	return nil
}
