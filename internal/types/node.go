package types

type NodeType string

const (
	NodeACHUS         NodeType = "ACH-US"
	NodeCardUS        NodeType = "CARD-US"
	NodeCheckUS       NodeType = "CHECK-US"
	NodeCryptoUS      NodeType = "CRYPTO-US"
	NodeDepositUS     NodeType = "DEPOSIT-US"
	NodeICDepositUS   NodeType = "IC-DEPOSIT-US"
	NodeIOUUS         NodeType = "IOU"
	NodeSubaccountUS  NodeType = "SUBACCOUNT-US"
	NodeSynapseUS     NodeType = "SYNAPSE-US"
	NodeTriumphSubUS  NodeType = "TRIUMPH-SUBACCOUNT-US"
	NodeWireINT       NodeType = "WIRE-INT"
	NodeWireUS        NodeType = "WIRE-US"
	NodeInterchangeUS NodeType = "INTERCHANGE-US"
)

var knownNodeTypes = map[NodeType]struct{}{
	NodeACHUS:         {},
	NodeCardUS:        {},
	NodeCheckUS:       {},
	NodeCryptoUS:      {},
	NodeDepositUS:     {},
	NodeICDepositUS:   {},
	NodeIOUUS:         {},
	NodeSubaccountUS:  {},
	NodeSynapseUS:     {},
	NodeTriumphSubUS:  {},
	NodeWireINT:       {},
	NodeWireUS:        {},
	NodeInterchangeUS: {},
}

func (t NodeType) Known() bool {
	_, ok := knownNodeTypes[t]
	return ok
}

// Node is an account-like endpoint owned by a user that sends or receives
// funds.
type Node struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Type     NodeType `json:"type"`
	Nickname string   `json:"nickname,omitempty"`
	// Unverified marks an ACH node that still awaits MFA or micro-deposit
	// verification. Such nodes can't originate transactions.
	Unverified bool `json:"unverified,omitempty"`
}
