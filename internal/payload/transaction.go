package payload

import (
	"encoding/json"
	"fmt"

	"github.com/openbuilders/synapse-batch/internal/errors"
	"github.com/openbuilders/synapse-batch/internal/types"
)

// TransactionPayload is the request document of a single transaction.
type TransactionPayload struct {
	To     Destination       `json:"to"`
	Amount Money             `json:"amount"`
	Extra  Extra             `json:"extra"`
	Fees   []json.RawMessage `json:"fees,omitempty"`
}

type Destination struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Money struct {
	Amount   types.Amount `json:"amount"`
	Currency string       `json:"currency"`
}

type Extra struct {
	IP        string      `json:"ip"`
	Asset     string      `json:"asset,omitempty"`
	SameDay   bool        `json:"same_day,omitempty"`
	SuppID    string      `json:"supp_id,omitempty"`
	Note      string      `json:"note,omitempty"`
	ProcessOn *int        `json:"process_on,omitempty"`
	GroupID   string      `json:"group_id,omitempty"`
	Other     *OtherExtra `json:"other,omitempty"`
}

type OtherExtra struct {
	Attachments []string `json:"attachments,omitempty"`
}

// BatchPayload is the request document of a batch transaction.
type BatchPayload struct {
	Transactions []*TransactionPayload `json:"transactions"`
}

// BuildTransaction maps a transaction spec to its request document. Optional
// fields are set only when present in the TransactionSpec.
func BuildTransaction(spec types.TransactionSpec) (*TransactionPayload, error) {
	if err := checkRequired(spec); err != nil {
		return nil, err
	}

	fees, err := buildFees(spec.Options)
	if err != nil {
		return nil, err
	}

	p := &TransactionPayload{
		To: Destination{
			Type: spec.ToType,
			ID:   spec.ToID,
		},
		Amount: Money{
			Amount:   types.Amount{Decimal: spec.Amount.Decimal},
			Currency: spec.Currency,
		},
		Extra: Extra{
			IP:        spec.IP,
			Asset:     spec.Asset,
			SameDay:   spec.SameDay,
			SuppID:    spec.SuppID,
			Note:      spec.Note,
			ProcessOn: spec.ProcessIn,
			GroupID:   spec.GroupID,
		},
		Fees: fees,
	}

	if len(spec.Attachments) > 0 {
		p.Extra.Other = &OtherExtra{Attachments: spec.Attachments}
	}

	return p, nil
}

// BuildBatch builds one request document per spec, keeping their order. A
// single invalid spec fails the whole batch.
func BuildBatch(specs []types.TransactionSpec) (*BatchPayload, error) {
	batch := &BatchPayload{
		Transactions: make([]*TransactionPayload, 0, len(specs)),
	}

	for i, spec := range specs {
		p, err := BuildTransaction(spec)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		batch.Transactions = append(batch.Transactions, p)
	}

	return batch, nil
}

func checkRequired(spec types.TransactionSpec) error {
	switch {
	case spec.ToType == "":
		return errors.MissingField("to.type")
	case spec.ToID == "":
		return errors.MissingField("to.id")
	case !spec.Amount.Valid:
		return errors.MissingField("amount.amount")
	case spec.Currency == "":
		return errors.MissingField("amount.currency")
	case spec.IP == "":
		return errors.MissingField("extra.ip")
	}

	return nil
}

// buildFees resolves the fee list. A non-nil Fees list is used as is, even
// when empty. Otherwise the legacy fee fields produce at most one entry.
// Returns an empty list when there is nothing to send.
func buildFees(opts types.Options) ([]json.RawMessage, error) {
	// TODO: confirm against the live API whether sending both fee formats
	// should be rejected instead of silently preferring the explicit list.
	if opts.Fees != nil {
		return opts.Fees, nil
	}

	fee := types.Fee{Note: opts.FeeNote}
	if opts.FeeAmount.Valid {
		fee.Fee = types.NewAmount(opts.FeeAmount.Decimal)
	}
	if opts.FeeToID != "" {
		fee.To = &types.FeeRecipient{ID: opts.FeeToID}
	}
	if fee.Fee == nil && fee.Note == "" && fee.To == nil {
		return nil, nil
	}

	entry, err := json.Marshal(fee)
	if err != nil {
		return nil, fmt.Errorf("marshal legacy fee: %w", err)
	}

	return []json.RawMessage{entry}, nil
}
