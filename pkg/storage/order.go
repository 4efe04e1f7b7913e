package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/subintent"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusExpired   OrderStatus = "expired"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderRecord is an accepted signed subintent and the order recovered from it.
type OrderRecord struct {
	ID        uuid.UUID                      `json:"id"`
	Hash      intent.Hash                    `json:"hash"`
	Account   ledger.ComponentAddress        `json:"account"`
	Order     subintent.LimitOrderDefinition `json:"order"`
	Instamint *subintent.InstamintDefinition `json:"instamint,omitempty"`
	Status    OrderStatus                    `json:"status"`
	// Origin is "api" or the peer id the order was gossiped from.
	Origin     string    `json:"origin"`
	ReceivedAt time.Time `json:"received_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	// Transaction is the signed partial transaction as submitted, hex encoded.
	Transaction string `json:"transaction"`
}

func (r *OrderRecord) IsOpen() bool { return r.Status == StatusOpen }

// OrderStore persists order records keyed by subintent hash.
// Load methods return nil, nil when nothing is stored.
type OrderStore interface {
	SaveOrder(rec *OrderRecord) error
	LoadOrder(h intent.Hash) (*OrderRecord, error)
	LoadAccountOrders(account ledger.ComponentAddress) ([]*OrderRecord, error)
	LoadOpenOrders() ([]*OrderRecord, error)
	SetStatus(h intent.Hash, status OrderStatus) error
	Close() error
}
