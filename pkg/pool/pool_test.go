package pool

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/storage"
	"github.com/uhyunpark/anthic/pkg/subintent"
)

var (
	resA = ledger.ResourceAddress{NodeID: ledger.NewNodeID(ledger.EntityGlobalFungibleResourceManager, []byte("a"))}
	resB = ledger.ResourceAddress{NodeID: ledger.NewNodeID(ledger.EntityGlobalFungibleResourceManager, []byte("b"))}
	t0   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func order(seed byte, sell, buy ledger.ResourceAddress, sellAmt, buyAmt string, expiresIn time.Duration) *storage.OrderRecord {
	var h intent.Hash
	h[0] = seed
	return &storage.OrderRecord{
		Hash: h,
		Order: subintent.LimitOrderDefinition{
			Trade: subintent.LimitOrder{
				Sell: subintent.ResourceAmount{Resource: sell, Amount: decimal.RequireFromString(sellAmt)},
				Buy:  subintent.ResourceAmount{Resource: buy, Amount: decimal.RequireFromString(buyAmt)},
			},
		},
		Status:    storage.StatusOpen,
		ExpiresAt: t0.Add(expiresIn),
	}
}

func hashes(recs []*storage.OrderRecord) []byte {
	out := make([]byte, len(recs))
	for i, r := range recs {
		out[i] = r.Hash[0]
	}
	return out
}

func TestPool_AddGetRemove(t *testing.T) {
	p := New(0)
	a := order(1, resA, resB, "100", "1", time.Minute)
	require.NoError(t, p.Add(a))
	assert.ErrorIs(t, p.Add(a), ErrDuplicate)
	assert.Equal(t, 1, p.Len())

	got, ok := p.Get(a.Hash)
	require.True(t, ok)
	assert.Same(t, a, got)

	removed, ok := p.Remove(a.Hash)
	require.True(t, ok)
	assert.Same(t, a, removed)
	_, ok = p.Remove(a.Hash)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
	assert.Empty(t, p.Pairs())
}

func TestPool_Capacity(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Add(order(1, resA, resB, "1", "1", time.Minute)))
	assert.ErrorIs(t, p.Add(order(2, resA, resB, "1", "1", time.Minute)), ErrFull)
}

func TestPool_PopExpired(t *testing.T) {
	p := New(0)
	require.NoError(t, p.Add(order(3, resA, resB, "1", "1", 3*time.Minute)))
	require.NoError(t, p.Add(order(1, resA, resB, "1", "1", time.Minute)))
	require.NoError(t, p.Add(order(2, resB, resA, "1", "1", 2*time.Minute)))

	assert.Empty(t, p.PopExpired(t0))
	assert.Equal(t, []byte{1, 2}, hashes(p.PopExpired(t0.Add(2*time.Minute))))
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, []byte{3}, hashes(p.Snapshot()))
}

func TestPool_BookOrdersByPrice(t *testing.T) {
	p := New(0)
	// Asking 0.0011, 0.001 and 0.0012 B per A.
	require.NoError(t, p.Add(order(1, resA, resB, "100", "0.11", time.Minute)))
	require.NoError(t, p.Add(order(2, resA, resB, "95.85", "0.09585", 2*time.Minute)))
	require.NoError(t, p.Add(order(3, resA, resB, "50", "0.06", time.Minute)))
	// Same price as 2 but expires sooner.
	require.NoError(t, p.Add(order(4, resA, resB, "10", "0.01", time.Minute)))
	require.NoError(t, p.Add(order(5, resB, resA, "1", "1000", time.Minute)))

	assert.Equal(t, []byte{4, 2, 1, 3}, hashes(p.Book(Pair{Sell: resA, Buy: resB})))
	assert.Equal(t, []byte{5}, hashes(p.Book(Pair{Sell: resB, Buy: resA})))
	assert.Len(t, p.Pairs(), 2)

	p.Remove(intent.Hash{5})
	assert.Nil(t, p.Book(Pair{Sell: resB, Buy: resA}))
}
