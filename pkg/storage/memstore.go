package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
)

type InMemoryOrderStore struct {
	mu     sync.Mutex
	orders map[intent.Hash]OrderRecord
}

func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{orders: make(map[intent.Hash]OrderRecord)}
}

func (s *InMemoryOrderStore) SaveOrder(rec *OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[rec.Hash] = *rec
	return nil
}

func (s *InMemoryOrderStore) LoadOrder(h intent.Hash) (*OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.orders[h]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryOrderStore) LoadAccountOrders(account ledger.ComponentAddress) ([]*OrderRecord, error) {
	return s.filter(func(r *OrderRecord) bool { return r.Account == account }), nil
}

func (s *InMemoryOrderStore) LoadOpenOrders() ([]*OrderRecord, error) {
	return s.filter((*OrderRecord).IsOpen), nil
}

func (s *InMemoryOrderStore) SetStatus(h intent.Hash, status OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.orders[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, h)
	}
	rec.Status = status
	s.orders[h] = rec
	return nil
}

func (s *InMemoryOrderStore) Close() error { return nil }

// filter returns matching records in hash order, like a pebble scan would.
func (s *InMemoryOrderStore) filter(keep func(*OrderRecord) bool) []*OrderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*OrderRecord
	for _, rec := range s.orders {
		rec := rec
		if keep(&rec) {
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hash.String() < out[j].Hash.String()
	})
	return out
}

var _ OrderStore = (*InMemoryOrderStore)(nil)
