package pool

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/storage"
)

var (
	ErrDuplicate = errors.New("order already pooled")
	ErrFull      = errors.New("pool is full")
)

// Pair identifies one side of a market: orders selling Sell for Buy.
type Pair struct {
	Sell ledger.ResourceAddress
	Buy  ledger.ResourceAddress
}

func PairOf(rec *storage.OrderRecord) Pair {
	return Pair{Sell: rec.Order.Trade.Sell.Resource, Buy: rec.Order.Trade.Buy.Resource}
}

type orderTree = btree.BTreeG[*storage.OrderRecord]

// Pool holds the live orders of a node.
// Orders are indexed by hash, by expiry (soonest first) and per pair by
// limit price (cheapest ask first). Records are shared with every reader and
// must not be mutated once added.
type Pool struct {
	mu     sync.Mutex
	max    int
	byHash map[intent.Hash]*storage.OrderRecord
	expiry *orderTree
	books  map[Pair]*orderTree
}

// New creates a pool holding at most max orders; max <= 0 means unbounded.
func New(max int) *Pool {
	return &Pool{
		max:    max,
		byHash: make(map[intent.Hash]*storage.OrderRecord),
		expiry: btree.NewBTreeG(expiresBefore),
		books:  make(map[Pair]*orderTree),
	}
}

func expiresBefore(a, b *storage.OrderRecord) bool {
	if !a.ExpiresAt.Equal(b.ExpiresAt) {
		return a.ExpiresAt.Before(b.ExpiresAt)
	}
	return bytes.Compare(a.Hash[:], b.Hash[:]) < 0
}

// cheaperThan orders asks by buy/sell ratio, compared by cross
// multiplication so zero amounts never divide.
func cheaperThan(a, b *storage.OrderRecord) bool {
	lhs := a.Order.Trade.Buy.Amount.Mul(b.Order.Trade.Sell.Amount)
	rhs := b.Order.Trade.Buy.Amount.Mul(a.Order.Trade.Sell.Amount)
	if c := lhs.Cmp(rhs); c != 0 {
		return c < 0
	}
	return expiresBefore(a, b)
}

// Add pools an open order.
func (p *Pool) Add(rec *storage.OrderRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byHash[rec.Hash]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.Hash)
	}
	if p.max > 0 && len(p.byHash) >= p.max {
		return fmt.Errorf("%w (%d orders)", ErrFull, p.max)
	}

	p.byHash[rec.Hash] = rec
	p.expiry.Set(rec)
	pair := PairOf(rec)
	book, ok := p.books[pair]
	if !ok {
		book = btree.NewBTreeG(cheaperThan)
		p.books[pair] = book
	}
	book.Set(rec)
	return nil
}

// Remove drops an order, returning it if it was pooled.
func (p *Pool) Remove(h intent.Hash) (*storage.OrderRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.byHash[h]
	if !ok {
		return nil, false
	}
	p.removeLocked(rec)
	return rec, true
}

func (p *Pool) removeLocked(rec *storage.OrderRecord) {
	delete(p.byHash, rec.Hash)
	p.expiry.Delete(rec)
	pair := PairOf(rec)
	if book, ok := p.books[pair]; ok {
		book.Delete(rec)
		if book.Len() == 0 {
			delete(p.books, pair)
		}
	}
}

func (p *Pool) Get(h intent.Hash) (*storage.OrderRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.byHash[h]
	return rec, ok
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// PopExpired removes and returns every order whose expiry is at or before now,
// soonest first.
func (p *Pool) PopExpired(now time.Time) []*storage.OrderRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*storage.OrderRecord
	for {
		rec, ok := p.expiry.Min()
		if !ok || rec.ExpiresAt.After(now) {
			return out
		}
		p.removeLocked(rec)
		out = append(out, rec)
	}
}

// Book returns the pooled orders selling pair.Sell for pair.Buy, cheapest first.
func (p *Pool) Book(pair Pair) []*storage.OrderRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	book, ok := p.books[pair]
	if !ok {
		return nil
	}
	out := make([]*storage.OrderRecord, 0, book.Len())
	book.Scan(func(rec *storage.OrderRecord) bool {
		out = append(out, rec)
		return true
	})
	return out
}

// Snapshot returns all pooled orders, soonest expiry first.
func (p *Pool) Snapshot() []*storage.OrderRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*storage.OrderRecord, 0, p.expiry.Len())
	p.expiry.Scan(func(rec *storage.OrderRecord) bool {
		out = append(out, rec)
		return true
	})
	return out
}

// Pairs lists the markets with at least one pooled order.
func (p *Pool) Pairs() []Pair {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Pair, 0, len(p.books))
	for pair := range p.books {
		out = append(out, pair)
	}
	return out
}
