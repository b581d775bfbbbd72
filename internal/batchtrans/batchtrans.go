package batchtrans

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openbuilders/synapse-batch/internal/errors"
	"github.com/openbuilders/synapse-batch/internal/payload"
	"github.com/openbuilders/synapse-batch/internal/response"
	"github.com/openbuilders/synapse-batch/internal/types"
)

// Transport sends a batch document to the API on behalf of a node and
// returns the raw response document.
type Transport interface {
	CreateBatch(ctx context.Context, userID, nodeID string, payload any) ([]byte, error)
}

type Service struct {
	transport Transport
	log       *slog.Logger
}

func New(transport Transport) *Service {
	return &Service{
		transport: transport,
		log:       slog.With("component", "batch-transactions"),
	}
}

// Create builds a batch from the specs, sends it from the node and parses
// the result. Nothing is sent if the node is not eligible or any spec is
// invalid.
func (s *Service) Create(ctx context.Context, node *types.Node,
	specs []types.TransactionSpec) (*types.BatchResult, error) {

	if err := CheckNode(node); err != nil {
		return nil, err
	}

	batch, err := payload.BuildBatch(specs)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, node, batch, len(specs))
}

// CreateFromPayload sends an already built batch document from the node.
func (s *Service) CreateFromPayload(ctx context.Context, node *types.Node,
	batch any) (*types.BatchResult, error) {

	if err := CheckNode(node); err != nil {
		return nil, err
	}

	return s.submit(ctx, node, batch, -1)
}

func (s *Service) submit(ctx context.Context, node *types.Node, batch any,
	size int) (*types.BatchResult, error) {

	s.log.Debug("Submitting batch", "node", node.ID, "size", size)

	document, err := s.transport.CreateBatch(ctx, node.UserID, node.ID, batch)
	if err != nil {
		return nil, fmt.Errorf("create batch for node %s: %w", node.ID, err)
	}

	result, err := response.ParseBatch(node, document)
	if err != nil {
		s.log.Error("Unexpected batch response", "node", node.ID,
			"body", string(document), "error", err)
		return nil, err
	}

	s.log.Info("Batch created", "node", node.ID, "success", result.Success,
		"trans_count", result.TransCount)

	return result, nil
}

// CheckNode rejects nodes that can't originate a batch: missing or unknown
// nodes and unverified ones.
func CheckNode(node *types.Node) error {
	switch {
	case node == nil:
		return errors.InvalidNodeType("node is required")
	case node.Unverified:
		return errors.InvalidNodeType(
			"cannot create a batch transaction with an unverified node")
	case !node.Type.Known():
		return errors.InvalidNodeType(fmt.Sprintf("unknown node type %q", node.Type))
	case node.ID == "" || node.UserID == "":
		return errors.InvalidNodeType("node must have an id and a user id")
	}

	return nil
}
