package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	tomb "gopkg.in/tomb.v2"

	"github.com/uhyunpark/anthic/pkg/crypto"
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/p2p"
	"github.com/uhyunpark/anthic/pkg/storage"
)

var ErrUnknownStatus = errors.New("unknown order status")

func wireFromRecord(rec *storage.OrderRecord) p2p.SubintentWire {
	return p2p.SubintentWire{Transaction: rec.Transaction, ReceivedAt: rec.ReceivedAt.Unix()}
}

func statusWire(rec *storage.OrderRecord, signature []byte) p2p.StatusWire {
	return p2p.StatusWire{Hash: rec.Hash, Status: string(rec.Status), Signature: signature}
}

// enqueueGossip hands a gossiped order to the worker pool. The pubsub loop
// must not block, so a full queue drops the message.
func (a *App) enqueueGossip(_ context.Context, from string, w p2p.SubintentWire) {
	select {
	case a.gossip <- inbound{from: from, w: w}:
	default:
		a.log.Warnw("gossip_queue_full", "from", from, "queue", cap(a.gossip))
	}
}

func (a *App) gossipWorker(t *tomb.Tomb, ctx context.Context, id int) error {
	a.log.Debugw("gossip_worker_started", "worker", id)
	for {
		select {
		case <-t.Dying():
			return nil
		case in := <-a.gossip:
			if _, err := a.HandleGossip(ctx, in.from, in.w); err != nil {
				a.log.Debugw("gossip_order_dropped", "worker", id, "from", in.from, "err", err)
			}
		}
	}
}

// HandleGossip runs a peer's order through the same checks as an API
// submission. Orders already known are not an error.
func (a *App) HandleGossip(ctx context.Context, from string, w p2p.SubintentWire) (*storage.OrderRecord, error) {
	receivedAt := a.clock.Now()
	if w.ReceivedAt > 0 && w.ReceivedAt < receivedAt.Unix() {
		receivedAt = time.Unix(w.ReceivedAt, 0)
	}
	rec, err := a.submit(ctx, w.Transaction, from, receivedAt)
	if errors.Is(err, ErrDuplicate) {
		return nil, nil
	}
	return rec, err
}

// HandleStatus applies a peer's status change to a local open order.
// Expiry is only taken from the local clock; cancellation must carry the
// order account's signature.
func (a *App) HandleStatus(ctx context.Context, from string, w p2p.StatusWire) {
	h := intent.Hash(w.Hash)
	if err := a.applyStatus(h, w); err != nil {
		a.log.Debugw("status_ignored", "from", from, "hash", h.String(), "status", w.Status, "err", err)
	}
}

func (a *App) applyStatus(h intent.Hash, w p2p.StatusWire) error {
	rec, ok := a.pool.Get(h)
	if !ok {
		return storage.ErrOrderNotFound
	}
	switch storage.OrderStatus(w.Status) {
	case storage.StatusExpired:
		if rec.ExpiresAt.After(a.clock.Now()) {
			return fmt.Errorf("order expires at %s", rec.ExpiresAt.Format(time.RFC3339))
		}
		a.Sweep(a.clock.Now())
		return nil
	case storage.StatusCancelled:
		digest := intent.CancelDigest(h)
		signer, err := crypto.RecoverAccount(digest[:], w.Signature)
		if err != nil {
			return err
		}
		if signer != rec.Account {
			return ErrNotOwner
		}
		_, err = a.cancel(h, w.Signature)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, w.Status)
	}
}

// snapshot serves peers syncing on join, soonest expiry first.
func (a *App) snapshot() []p2p.SubintentWire {
	open := a.pool.Snapshot()
	out := make([]p2p.SubintentWire, 0, len(open))
	for _, rec := range open {
		out = append(out, wireFromRecord(rec))
	}
	return out
}
