package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TransactionSpec holds the parameters of one transaction request.
type TransactionSpec struct {
	ToType   string              `json:"to_type"`
	ToID     string              `json:"to_id"`
	Amount   decimal.NullDecimal `json:"amount"`
	Currency string              `json:"currency"`
	IP       string              `json:"ip"`

	Options
}

// Options enumerates every optional transaction field. Zero values are
// treated as absent and never reach the request document.
type Options struct {
	Asset   string `json:"asset,omitempty"`
	SameDay bool   `json:"same_day,omitempty"`
	SuppID  string `json:"supp_id,omitempty"`
	Note    string `json:"note,omitempty"`
	// ProcessIn is the number of days after which the transaction is
	// processed. Zero is a valid value, so nil means absent.
	ProcessIn   *int     `json:"process_in,omitempty"`
	GroupID     string   `json:"group_id,omitempty"`
	Attachments []string `json:"attachments,omitempty"`

	// Legacy fee fields, combined into a single fee entry.
	FeeAmount decimal.NullDecimal `json:"fee_amount"`
	FeeNote   string              `json:"fee_note,omitempty"`
	FeeToID   string              `json:"fee_to_id,omitempty"`

	// Fees replaces the legacy fee entry whenever it is non-nil, an empty
	// list included. Entries are sent to the API as given.
	Fees []json.RawMessage `json:"fees"`
}

// Fee is a fee entry of a transaction, both in requests and responses.
type Fee struct {
	Fee  *Amount       `json:"fee,omitempty"`
	Note string        `json:"note,omitempty"`
	To   *FeeRecipient `json:"to,omitempty"`
}

type FeeRecipient struct {
	ID string `json:"id"`
}

// Amount is a decimal encoded as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) *Amount {
	return &Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}
