package message

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Message is one cross-chain message as delivered by the routing host.
// Byte fields travel as 0x-prefixed hex in JSON.
type Message struct {
	TransactionID string        `json:"tx_id"`
	Sender        string        `json:"sender"`
	ChainID       uint64        `json:"chain_id,omitempty"`
	FeatureID     uint32        `json:"feature_id"`
	FeatureData   hexutil.Bytes `json:"feature_data,omitempty"`
	Reply         hexutil.Bytes `json:"feature_reply,omitempty"`
	RouteTag      *uint32       `json:"route_tag,omitempty"` // set only when Reply is
	ReceivedAt    time.Time     `json:"-"`
}

// HasReply reports whether a feature attached a reply.
func (m *Message) HasReply() bool {
	return m.RouteTag != nil && len(m.Reply) > 0
}

// WithReply returns a copy of m carrying reply routed to featureID.
// m itself is left untouched.
func (m *Message) WithReply(featureID uint32, reply []byte) *Message {
	out := *m
	out.FeatureData = append(hexutil.Bytes(nil), m.FeatureData...)
	out.Reply = append(hexutil.Bytes(nil), reply...)
	tag := featureID
	out.RouteTag = &tag
	return &out
}
