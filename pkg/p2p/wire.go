package p2p

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(SubintentWire{})
	gob.Register(StatusWire{})
	gob.Register(SnapshotWire{})
}

// SubintentWire carries an accepted signed partial transaction. Receivers
// decode and validate it again; nothing in it is trusted.
type SubintentWire struct {
	Transaction string // hex encoded signed partial transaction
	ReceivedAt  int64  // unix seconds at the first node that accepted it
}

// StatusWire announces that an order left the open set. Cancellations carry
// the account's signature over the cancel digest.
type StatusWire struct {
	Hash      [32]byte
	Status    string
	Signature []byte
}

// SnapshotWire answers a sync request with the sender's open orders.
type SnapshotWire struct {
	Orders []SubintentWire
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
