package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveOrder writes the record and its account index in one batch
func (s *PebbleStore) SaveOrder(rec *OrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(orderKey(rec.Hash), data, nil); err != nil {
		return fmt.Errorf("failed to stage order: %w", err)
	}
	if err := b.Set(accountOrderKey(rec.Account, rec.Hash), rec.Hash[:], nil); err != nil {
		return fmt.Errorf("failed to stage account index: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// LoadOrder loads an order by subintent hash
// Returns nil if the order doesn't exist
func (s *PebbleStore) LoadOrder(h intent.Hash) (*OrderRecord, error) {
	data, closer, err := s.db.Get(orderKey(h))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()

	var rec OrderRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &rec, nil
}

// LoadAccountOrders loads every order of an account, open or not
func (s *PebbleStore) LoadAccountOrders(account ledger.ComponentAddress) ([]*OrderRecord, error) {
	prefix := accountPrefix(account)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var orders []*OrderRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var h intent.Hash
		copy(h[:], iter.Value())
		rec, err := s.LoadOrder(h)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			orders = append(orders, rec)
		}
	}
	return orders, nil
}

// LoadOpenOrders loads all open orders, used to refill the pool on restart
func (s *PebbleStore) LoadOpenOrders() ([]*OrderRecord, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var orders []*OrderRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec OrderRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid entries
		}
		if rec.IsOpen() {
			orders = append(orders, &rec)
		}
	}
	return orders, nil
}

func (s *PebbleStore) SetStatus(h intent.Hash, status OrderStatus) error {
	rec, err := s.LoadOrder(h)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, h)
	}
	rec.Status = status
	return s.SaveOrder(rec)
}

var _ OrderStore = (*PebbleStore)(nil)
