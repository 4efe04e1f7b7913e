package matcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/anthic/pkg/client"
	"github.com/uhyunpark/anthic/pkg/crypto"
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/p2p"
	"github.com/uhyunpark/anthic/pkg/storage"
	"github.com/uhyunpark/anthic/pkg/subintent"
	"github.com/uhyunpark/anthic/pkg/util"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeNet struct {
	mu         sync.Mutex
	handlers   p2p.Handlers
	subintents []p2p.SubintentWire
	statuses   []p2p.StatusWire
}

func (n *fakeNet) SetHandlers(h p2p.Handlers) { n.handlers = h }

func (n *fakeNet) PublishSubintent(_ context.Context, w p2p.SubintentWire) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subintents = append(n.subintents, w)
	return nil
}

func (n *fakeNet) PublishStatus(_ context.Context, w p2p.StatusWire) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, w)
	return nil
}

type fakeFeed struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (f *fakeFeed) PublishOrder(ev OrderEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeFeed) types() []EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	app   *App
	venue model.VenueFile
	store *storage.InMemoryOrderStore
	net   *fakeNet
	feed  *fakeFeed
	clock *util.ManualClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		venue: model.DevnetVenue(),
		store: storage.NewInMemoryOrderStore(),
		net:   &fakeNet{},
		feed:  &fakeFeed{},
		clock: util.NewManualClock(t0),
	}
	app, err := New(context.Background(), Config{NetworkID: h.venue.NetworkID}, Deps{
		Directory: client.NewStaticDirectory(h.venue, ""),
		Store:     h.store,
		Net:       h.net,
		Feed:      h.feed,
		Clock:     h.clock,
	})
	require.NoError(t, err)
	h.app = app
	return h
}

type orderOpts struct {
	network   uint8
	expiry    time.Duration
	feeScale  string
	signer    *crypto.Signer
	instamint bool
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// signedOrder sells 100 xUSDC for 0.001 xwBTC from owner's account.
func (h *harness) signedOrder(t *testing.T, owner *crypto.Signer, o orderOpts) string {
	t.Helper()
	cfg := h.venue.AnthicConfig()
	sell := subintent.TokenAmount{Symbol: "xUSDC", Amount: dec("100")}
	buy := subintent.TokenAmount{Symbol: "xwBTC", Amount: dec("0.001")}
	quote, err := subintent.QuoteFees(cfg, model.AddressInfo{}, sell, subintent.Taker)
	require.NoError(t, err)
	if o.feeScale != "" {
		quote.Venue = quote.Venue.Mul(dec(o.feeScale))
	}

	b := subintent.NewBuilder(cfg)
	if o.instamint {
		im, ok := h.venue.InstamintConfig()
		require.True(t, ok)
		toMint := subintent.TokenAmount{Symbol: sell.Symbol, Amount: sell.Amount.Add(quote.Total())}
		b.InstamintIntoAccount(im, owner.Account(), "#7#", toMint)
	}
	m, err := b.AddLimitOrder(owner.Account(), sell, buy, quote.Settlement, quote.Venue).Build()
	require.NoError(t, err)

	if o.network == 0 {
		o.network = h.venue.NetworkID
	}
	if o.expiry == 0 {
		o.expiry = time.Minute
	}
	sub, err := intent.Compose(intent.ComposeOptions{
		NetworkID:    o.network,
		CurrentEpoch: h.venue.CurrentEpoch,
		Expiry:       o.expiry,
	}, h.clock, m)
	require.NoError(t, err)

	signer := owner
	if o.signer != nil {
		signer = o.signer
	}
	tx, err := intent.Sign(sub, signer)
	require.NoError(t, err)
	out, err := tx.EncodeHex()
	require.NoError(t, err)
	return out
}

func newSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.GenerateKey()
	require.NoError(t, err)
	return s
}

func signCancel(t *testing.T, s *crypto.Signer, h intent.Hash) []byte {
	t.Helper()
	d := intent.CancelDigest(h)
	sig, err := s.Sign(d[:])
	require.NoError(t, err)
	return sig
}

func TestSubmitAccepts(t *testing.T) {
	h := newHarness(t)
	owner := newSigner(t)
	ctx := context.Background()

	rec, err := h.app.Submit(ctx, h.signedOrder(t, owner, orderOpts{}), OriginAPI)
	require.NoError(t, err)

	assert.Equal(t, owner.Account(), rec.Account)
	assert.Equal(t, storage.StatusOpen, rec.Status)
	assert.Equal(t, OriginAPI, rec.Origin)
	assert.Nil(t, rec.Instamint)
	assert.Equal(t, t0.Add(time.Minute), rec.ExpiresAt)
	assert.True(t, rec.Order.Trade.Sell.Amount.Equal(dec("100")))
	assert.True(t, rec.Order.Fee.VenueAmount.Equal(dec("0.1")))

	got, ok := h.app.Pool().Get(rec.Hash)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)

	stored, err := h.app.Order(rec.Hash)
	require.NoError(t, err)
	assert.Equal(t, rec.Transaction, stored.Transaction)

	assert.Equal(t, []EventType{EventAccepted}, h.feed.types())
	require.Len(t, h.net.subintents, 1)
	assert.Equal(t, rec.Transaction, h.net.subintents[0].Transaction)
}

func TestSubmitRejects(t *testing.T) {
	h := newHarness(t)
	owner := newSigner(t)
	ctx := context.Background()

	cases := []struct {
		name string
		hex  string
		want error
	}{
		{"garbage", "0xzz", ErrMalformed},
		{"wrong network", h.signedOrder(t, owner, orderOpts{network: 1}), ErrWrongNetwork},
		{"low fee", h.signedOrder(t, owner, orderOpts{feeScale: "0.5"}), subintent.ErrInsufficientFee},
		{"foreign signer", h.signedOrder(t, owner, orderOpts{signer: newSigner(t)}), ErrNotSigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.app.Submit(ctx, tc.hex, OriginAPI)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
	assert.Zero(t, h.app.Pool().Len())
	assert.Empty(t, h.feed.types())
}

func TestSubmitRejectsExpired(t *testing.T) {
	h := newHarness(t)
	hex := h.signedOrder(t, newSigner(t), orderOpts{expiry: 20 * time.Second})
	h.clock.Advance(time.Minute)
	_, err := h.app.Submit(context.Background(), hex, OriginAPI)
	assert.ErrorIs(t, err, intent.ErrExpired)
}

func TestSubmitDuplicate(t *testing.T) {
	h := newHarness(t)
	hex := h.signedOrder(t, newSigner(t), orderOpts{})
	ctx := context.Background()

	_, err := h.app.Submit(ctx, hex, OriginAPI)
	require.NoError(t, err)
	_, err = h.app.Submit(ctx, hex, OriginAPI)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, h.app.Pool().Len())
}

func TestSubmitInstamint(t *testing.T) {
	h := newHarness(t)
	owner := newSigner(t)
	require.True(t, h.app.InstamintEnabled())

	rec, err := h.app.Submit(context.Background(), h.signedOrder(t, owner, orderOpts{instamint: true}), OriginAPI)
	require.NoError(t, err)
	require.NotNil(t, rec.Instamint)
	assert.Equal(t, owner.Account(), rec.Instamint.Account)
	assert.Equal(t, ledger.NonFungibleLocalID("#7#"), rec.Instamint.BadgeLocalID)
	assert.True(t, rec.Instamint.Minted.Amount.Equal(dec("100.2")))
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	owner := newSigner(t)
	ctx := context.Background()
	rec, err := h.app.Submit(ctx, h.signedOrder(t, owner, orderOpts{}), OriginAPI)
	require.NoError(t, err)

	_, err = h.app.Cancel(ctx, rec.Hash, signCancel(t, newSigner(t), rec.Hash))
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, 1, h.app.Pool().Len())

	sig := signCancel(t, owner, rec.Hash)
	cancelled, err := h.app.Cancel(ctx, rec.Hash, sig)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCancelled, cancelled.Status)
	assert.Zero(t, h.app.Pool().Len())

	stored, err := h.app.Order(rec.Hash)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCancelled, stored.Status)

	require.Len(t, h.net.statuses, 1)
	assert.Equal(t, "cancelled", h.net.statuses[0].Status)
	assert.Equal(t, sig, h.net.statuses[0].Signature)

	_, err = h.app.Cancel(ctx, rec.Hash, sig)
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = h.app.Cancel(ctx, intent.Hash{9}, sig)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.Equal(t, []EventType{EventAccepted, EventCancelled}, h.feed.types())
}

func TestSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	short, err := h.app.Submit(ctx, h.signedOrder(t, newSigner(t), orderOpts{expiry: 30 * time.Second}), OriginAPI)
	require.NoError(t, err)
	long, err := h.app.Submit(ctx, h.signedOrder(t, newSigner(t), orderOpts{expiry: 2 * time.Minute}), OriginAPI)
	require.NoError(t, err)

	assert.Empty(t, h.app.Sweep(h.clock.Now()))
	before := h.app.Pool().Snapshot()
	require.Len(t, before, 2)

	expired := h.app.Sweep(h.clock.Advance(30 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, short.Hash, expired[0].Hash)
	assert.Equal(t, storage.StatusExpired, expired[0].Status)
	// Records handed out before the sweep are left untouched.
	for _, rec := range before {
		assert.Equal(t, storage.StatusOpen, rec.Status)
	}

	stored, err := h.app.Order(short.Hash)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusExpired, stored.Status)

	_, ok := h.app.Pool().Get(long.Hash)
	assert.True(t, ok)
}

func TestGossipRoundTrip(t *testing.T) {
	origin := newHarness(t)
	peer := newHarness(t)
	owner := newSigner(t)
	ctx := context.Background()

	rec, err := origin.app.Submit(ctx, origin.signedOrder(t, owner, orderOpts{}), OriginAPI)
	require.NoError(t, err)
	require.Len(t, origin.net.subintents, 1)
	w := origin.net.subintents[0]

	got, err := peer.app.HandleGossip(ctx, "peer-a", w)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.Equal(t, "peer-a", got.Origin)
	assert.Empty(t, peer.net.subintents, "gossiped orders are not re-published")

	again, err := peer.app.HandleGossip(ctx, "peer-b", w)
	assert.NoError(t, err)
	assert.Nil(t, again)

	assert.Len(t, peer.app.snapshot(), 1)
}

func TestGossipRejectsTamperedOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.app.HandleGossip(context.Background(), "peer-a", p2p.SubintentWire{Transaction: "0x00"})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, h.app.Pool().Len())
}

func TestHandleStatus(t *testing.T) {
	h := newHarness(t)
	owner := newSigner(t)
	ctx := context.Background()
	rec, err := h.app.Submit(ctx, h.signedOrder(t, owner, orderOpts{}), OriginAPI)
	require.NoError(t, err)

	// Peers cannot expire an order early.
	h.app.HandleStatus(ctx, "peer-a", p2p.StatusWire{Hash: rec.Hash, Status: "expired"})
	assert.Equal(t, 1, h.app.Pool().Len())

	h.app.HandleStatus(ctx, "peer-a", p2p.StatusWire{Hash: rec.Hash, Status: "cancelled", Signature: signCancel(t, newSigner(t), rec.Hash)})
	assert.Equal(t, 1, h.app.Pool().Len())

	h.app.HandleStatus(ctx, "peer-a", p2p.StatusWire{Hash: rec.Hash, Status: "cancelled", Signature: signCancel(t, owner, rec.Hash)})
	assert.Zero(t, h.app.Pool().Len())
	assert.Empty(t, h.net.statuses, "peer cancellations are not re-published")
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	live, err := h.app.Submit(ctx, h.signedOrder(t, newSigner(t), orderOpts{expiry: 5 * time.Minute}), OriginAPI)
	require.NoError(t, err)
	stale, err := h.app.Submit(ctx, h.signedOrder(t, newSigner(t), orderOpts{expiry: 20 * time.Second}), OriginAPI)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	restarted, err := New(ctx, Config{NetworkID: h.venue.NetworkID}, Deps{
		Directory: client.NewStaticDirectory(h.venue, ""),
		Store:     h.store,
		Clock:     h.clock,
	})
	require.NoError(t, err)

	n, err := restarted.Restore()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := restarted.Pool().Get(live.Hash)
	assert.True(t, ok)

	stored, err := restarted.Order(stale.Hash)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusExpired, stored.Status)
}

func TestRunDrainsGossip(t *testing.T) {
	origin := newHarness(t)
	peer := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- peer.app.Run(ctx) }()

	_, err := origin.app.Submit(ctx, origin.signedOrder(t, newSigner(t), orderOpts{}), OriginAPI)
	require.NoError(t, err)
	peer.net.handlers.OnSubintent(ctx, "peer-a", origin.net.subintents[0])

	require.Eventually(t, func() bool { return peer.app.Pool().Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
