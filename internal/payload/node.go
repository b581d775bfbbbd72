package payload

import (
	"github.com/openbuilders/synapse-batch/internal/errors"
	"github.com/openbuilders/synapse-batch/internal/types"
)

// NodePayload is the request document for creating a node.
type NodePayload struct {
	Type types.NodeType `json:"type"`
	Info NodeInfo       `json:"info"`
}

type NodeInfo struct {
	Nickname   string `json:"nickname"`
	Document   string `json:"document_id,omitempty"`
	BankCode   string `json:"bank_code,omitempty"`
	SupplierID string `json:"supp_id,omitempty"`
}

// NodeOptions are the optional info fields of a node-create request.
type NodeOptions struct {
	DocumentID string
	BankCode   string
	SuppID     string
}

// BuildICDepositUSNode builds the create request of an IC-DEPOSIT-US node.
func BuildICDepositUSNode(nickname string, opts NodeOptions) (*NodePayload, error) {
	if nickname == "" {
		return nil, errors.MissingField("info.nickname")
	}

	return &NodePayload{
		Type: types.NodeICDepositUS,
		Info: NodeInfo{
			Nickname:   nickname,
			Document:   opts.DocumentID,
			BankCode:   opts.BankCode,
			SupplierID: opts.SuppID,
		},
	}, nil
}
