package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	StatusNew     BatchStatus = "new"
	StatusPending BatchStatus = "pending"
	StatusSuccess BatchStatus = "success"
	StatusError   BatchStatus = "error"
)

// BatchResult is the outcome of a batch transaction request as reported by
// the API.
type BatchResult struct {
	Node       *Node
	ErrorCode  string
	HTTPCode   string
	Success    bool
	PageCount  int
	TransCount int
	Trans      []TransactionRecord
}

// TransactionRecord is a single transaction returned by the API.
type TransactionRecord struct {
	ID           string
	Node         *Node
	Amount       decimal.Decimal
	Currency     string
	ClientID     string
	ClientName   string
	From         Endpoint
	To           Endpoint
	Extra        TransactionExtra
	Fees         []Fee
	RecentStatus TransactionStatus
	Timeline     []TransactionStatus
	// Raw keeps the document the record was parsed from.
	Raw json.RawMessage
}

type Endpoint struct {
	ID       string
	Type     string
	Nickname string
	UserID   string
}

type TransactionExtra struct {
	IP        string
	Asset     string
	Note      string
	SuppID    string
	GroupID   string
	SameDay   bool
	CreatedOn time.Time
	ProcessOn time.Time
}

type TransactionStatus struct {
	Status   string
	StatusID string
	Note     string
	Date     time.Time
}

// TransactionJob is a single transaction waiting in the queue to be grouped
// into a batch for its node.
type TransactionJob struct {
	ID          string          `json:"id"`
	Node        Node            `json:"node"`
	Transaction TransactionSpec `json:"transaction"`
}

// Batch is a group of queued transactions originating from the same node.
type Batch struct {
	UUID   uuid.UUID
	Node   Node
	JobIDs []string
	Specs  []TransactionSpec
}
