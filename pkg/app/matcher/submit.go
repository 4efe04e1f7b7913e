package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uhyunpark/anthic/pkg/crypto"
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/storage"
	"github.com/uhyunpark/anthic/pkg/subintent"
)

var (
	ErrMalformed    = errors.New("malformed signed partial transaction")
	ErrDuplicate    = errors.New("subintent already known")
	ErrWrongNetwork = errors.New("subintent is for another network")
	ErrNoExpiry     = errors.New("subintent has no expiry")
	ErrWrongGate    = errors.New("subintent does not verify the venue access rule")
	ErrNotSigned    = errors.New("order account did not sign the subintent")
	ErrNotOpen      = errors.New("order is not open")
	ErrNotOwner     = errors.New("cancel not signed by the order account")
)

// Submit accepts a hex encoded signed partial transaction from origin
// (OriginAPI or a peer id) and returns the stored record.
//
// The order is checked in this sequence: decode, signatures, duplicate,
// header validity, instruction validation, venue gate, signer, fees. The
// first failure rejects the whole submission.
func (a *App) Submit(ctx context.Context, signedHex, origin string) (*storage.OrderRecord, error) {
	return a.submit(ctx, signedHex, origin, a.clock.Now())
}

func (a *App) submit(ctx context.Context, signedHex, origin string, receivedAt time.Time) (*storage.OrderRecord, error) {
	rec, err := a.admit(ctx, signedHex, origin, receivedAt)
	if err != nil {
		a.reject(signedHex, origin, err)
		return nil, err
	}
	a.accept(ctx, rec)
	return rec, nil
}

func (a *App) admit(ctx context.Context, signedHex, origin string, receivedAt time.Time) (*storage.OrderRecord, error) {
	tx, err := intent.DecodeHex(signedHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	h, signers, err := tx.Verify()
	if err != nil {
		return nil, err
	}

	a.submitMu.Lock()
	defer a.submitMu.Unlock()

	if known, err := a.known(h); err != nil {
		return nil, err
	} else if known {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, h)
	}

	hdr := tx.Subintent.Header
	if hdr.NetworkID != a.cfg.NetworkID {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongNetwork, hdr.NetworkID, a.cfg.NetworkID)
	}
	if hdr.MaxProposerTimestampExclusive == nil {
		return nil, ErrNoExpiry
	}
	epoch, err := a.dir.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current epoch: %w", err)
	}
	if err := hdr.CheckValidity(a.clock.Now(), epoch); err != nil {
		return nil, err
	}

	mint, def, err := subintent.RecoverOrder(tx.Subintent, a.instamint)
	if err != nil {
		return nil, err
	}
	if !def.Meta.AccessRule.Equal(a.venue.VerifyParentAccessRule) {
		return nil, ErrWrongGate
	}
	signed := false
	for _, s := range signers {
		if s == def.Meta.Account {
			signed = true
			break
		}
	}
	if !signed {
		return nil, fmt.Errorf("%w: %s", ErrNotSigned, def.Meta.Account)
	}

	info, err := a.dir.LoadAddressInfo(ctx, def.Meta.Account)
	if err != nil {
		return nil, fmt.Errorf("load address info: %w", err)
	}
	if err := subintent.CheckFees(a.venue, info, def, a.cfg.FeeRole); err != nil {
		return nil, err
	}

	encoded, err := tx.EncodeHex()
	if err != nil {
		return nil, err
	}
	rec := &storage.OrderRecord{
		ID:          uuid.New(),
		Hash:        h,
		Account:     def.Meta.Account,
		Order:       def,
		Instamint:   mint,
		Status:      storage.StatusOpen,
		Origin:      origin,
		ReceivedAt:  receivedAt.UTC(),
		ExpiresAt:   hdr.ExpiresAt().UTC(),
		Transaction: encoded,
	}
	if err := a.store.SaveOrder(rec); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	if err := a.pool.Add(rec); err != nil {
		// The store keeps the record; mark it so a restart does not re-pool it.
		if serr := a.store.SetStatus(h, storage.StatusCancelled); serr != nil {
			a.log.Errorw("pool_rollback_failed", "hash", h.String(), "err", serr)
		}
		return nil, err
	}
	return rec, nil
}

func (a *App) known(h intent.Hash) (bool, error) {
	if _, ok := a.pool.Get(h); ok {
		return true, nil
	}
	rec, err := a.store.LoadOrder(h)
	if err != nil {
		return false, fmt.Errorf("load order: %w", err)
	}
	return rec != nil, nil
}

func (a *App) accept(ctx context.Context, rec *storage.OrderRecord) {
	order := rec.Order
	a.log.Infow("order_accepted",
		"hash", rec.Hash.String(),
		"id", rec.ID.String(),
		"account", rec.Account.String(),
		"sell", order.Trade.Sell.String(),
		"buy", order.Trade.Buy.String(),
		"venue_fee", order.Fee.VenueAmount.String(),
		"settlement_fee", order.Fee.SettlementAmount.String(),
		"instamint", rec.Instamint != nil,
		"origin", rec.Origin,
		"expires_at", rec.ExpiresAt.Format(time.RFC3339),
	)
	a.wal.Append(fmt.Sprintf("%s accepted %s origin=%s", rec.ReceivedAt.Format(time.RFC3339), rec.Hash, rec.Origin))
	a.publish(EventAccepted, rec)

	if rec.Origin != OriginAPI {
		return
	}
	w := wireFromRecord(rec)
	if err := a.net.PublishSubintent(ctx, w); err != nil {
		a.log.Warnw("gossip_publish_failed", "hash", rec.Hash.String(), "err", err)
	}
}

func (a *App) reject(signedHex, origin string, err error) {
	fields := []any{"origin", origin, "err", err}
	var rej *subintent.RejectionError
	if errors.As(err, &rej) {
		fields = append(fields, "kind", rej.Kind.String(), "state", rej.State.String(), "index", rej.Index)
	}
	if errors.Is(err, ErrDuplicate) {
		a.log.Debugw("order_duplicate", fields...)
	} else {
		a.log.Infow("order_rejected", fields...)
	}
	a.wal.Append(fmt.Sprintf("%s rejected origin=%s bytes=%d err=%q", a.clock.Now().UTC().Format(time.RFC3339), origin, len(signedHex), err.Error()))
}

// Cancel withdraws an open order. signature must be the order account's
// signature over intent.CancelDigest(h).
func (a *App) Cancel(ctx context.Context, h intent.Hash, signature []byte) (*storage.OrderRecord, error) {
	rec, err := a.cancel(h, signature)
	if err != nil {
		return nil, err
	}
	w := statusWire(rec, signature)
	if err := a.net.PublishStatus(ctx, w); err != nil {
		a.log.Warnw("gossip_publish_failed", "hash", h.String(), "err", err)
	}
	return rec, nil
}

func (a *App) cancel(h intent.Hash, signature []byte) (*storage.OrderRecord, error) {
	rec, err := a.Order(h)
	if err != nil {
		return nil, err
	}
	if !rec.IsOpen() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotOpen, h, rec.Status)
	}
	digest := intent.CancelDigest(h)
	signer, err := crypto.RecoverAccount(digest[:], signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOwner, err)
	}
	if signer != rec.Account {
		return nil, fmt.Errorf("%w: signed by %s", ErrNotOwner, signer)
	}

	a.pool.Remove(h)
	if err := a.store.SetStatus(h, storage.StatusCancelled); err != nil {
		return nil, fmt.Errorf("store cancel: %w", err)
	}
	rec.Status = storage.StatusCancelled
	a.log.Infow("order_cancelled", "hash", h.String(), "account", rec.Account.String())
	a.wal.Append(fmt.Sprintf("%s cancelled %s", a.clock.Now().UTC().Format(time.RFC3339), h))
	a.publish(EventCancelled, rec)
	return rec, nil
}

// Sweep expires every pooled order whose expiry is at or before now.
func (a *App) Sweep(now time.Time) []*storage.OrderRecord {
	popped := a.pool.PopExpired(now)
	expired := make([]*storage.OrderRecord, 0, len(popped))
	for _, pooled := range popped {
		// Pooled records may still be held by readers of an earlier snapshot.
		rec := *pooled
		rec.Status = storage.StatusExpired
		expired = append(expired, &rec)
		if err := a.store.SetStatus(rec.Hash, storage.StatusExpired); err != nil {
			a.log.Errorw("expire_store_failed", "hash", rec.Hash.String(), "err", err)
		}
		a.wal.Append(fmt.Sprintf("%s expired %s", now.UTC().Format(time.RFC3339), rec.Hash))
		a.publish(EventExpired, &rec)
	}
	if len(expired) > 0 {
		a.log.Infow("orders_expired", "count", len(expired), "open", a.pool.Len())
	}
	return expired
}
