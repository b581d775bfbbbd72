package response

import (
	"encoding/json"
	"time"

	"github.com/openbuilders/synapse-batch/internal/errors"
	"github.com/openbuilders/synapse-batch/internal/types"

	"github.com/shopspring/decimal"
)

type transactionDocument struct {
	ID     string `json:"_id"`
	Amount struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"amount"`
	Client struct {
		ID   flexString `json:"id"`
		Name string     `json:"name"`
	} `json:"client"`
	Extra struct {
		IP        string     `json:"ip"`
		Asset     string     `json:"asset"`
		Note      string     `json:"note"`
		SuppID    flexString `json:"supp_id"`
		GroupID   flexString `json:"group_id"`
		SameDay   bool       `json:"same_day"`
		CreatedOn int64      `json:"created_on"`
		ProcessOn int64      `json:"process_on"`
	} `json:"extra"`
	Fees         []types.Fee      `json:"fees"`
	From         endpointDocument `json:"from"`
	To           endpointDocument `json:"to"`
	RecentStatus statusDocument   `json:"recent_status"`
	Timeline     []statusDocument `json:"timeline"`
}

type endpointDocument struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
	User     struct {
		ID string `json:"_id"`
	} `json:"user"`
}

type statusDocument struct {
	Status   string     `json:"status"`
	StatusID flexString `json:"status_id"`
	Note     string     `json:"note"`
	Date     int64      `json:"date"`
}

// ParseTransaction maps a single transaction document to a record.
func ParseTransaction(node *types.Node, document json.RawMessage) (*types.TransactionRecord, error) {
	var doc transactionDocument
	if err := decodeObject(document, &doc); err != nil {
		return nil, errors.MalformedResponse("decode transaction document", err)
	}

	record := &types.TransactionRecord{
		ID:         doc.ID,
		Node:       node,
		Amount:     doc.Amount.Amount,
		Currency:   doc.Amount.Currency,
		ClientID:   string(doc.Client.ID),
		ClientName: doc.Client.Name,
		From:       doc.From.toEndpoint(),
		To:         doc.To.toEndpoint(),
		Extra: types.TransactionExtra{
			IP:        doc.Extra.IP,
			Asset:     doc.Extra.Asset,
			Note:      doc.Extra.Note,
			SuppID:    string(doc.Extra.SuppID),
			GroupID:   string(doc.Extra.GroupID),
			SameDay:   doc.Extra.SameDay,
			CreatedOn: fromMillis(doc.Extra.CreatedOn),
			ProcessOn: fromMillis(doc.Extra.ProcessOn),
		},
		Fees:         doc.Fees,
		RecentStatus: doc.RecentStatus.toStatus(),
		Raw:          append(json.RawMessage(nil), document...),
	}

	if len(doc.Timeline) > 0 {
		record.Timeline = make([]types.TransactionStatus, len(doc.Timeline))
		for i, s := range doc.Timeline {
			record.Timeline[i] = s.toStatus()
		}
	}

	return record, nil
}

func (e endpointDocument) toEndpoint() types.Endpoint {
	return types.Endpoint{
		ID:       e.ID,
		Type:     e.Type,
		Nickname: e.Nickname,
		UserID:   e.User.ID,
	}
}

func (s statusDocument) toStatus() types.TransactionStatus {
	return types.TransactionStatus{
		Status:   s.Status,
		StatusID: string(s.StatusID),
		Note:     s.Note,
		Date:     fromMillis(s.Date),
	}
}

// fromMillis converts the API's millisecond timestamps, zero stays zero.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}
