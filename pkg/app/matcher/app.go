package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	tomb "gopkg.in/tomb.v2"

	"github.com/uhyunpark/anthic/pkg/client"
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/p2p"
	"github.com/uhyunpark/anthic/pkg/pool"
	"github.com/uhyunpark/anthic/pkg/storage"
	"github.com/uhyunpark/anthic/pkg/subintent"
	"github.com/uhyunpark/anthic/pkg/util"
)

const (
	OriginAPI = "api"

	defaultSweepInterval = time.Second
	defaultGossipWorkers = 4
	gossipQueueSize      = 256
)

// EventType names what happened to an order.
type EventType string

const (
	EventAccepted  EventType = "accepted"
	EventExpired   EventType = "expired"
	EventCancelled EventType = "cancelled"
)

// OrderEvent is published to the live feed.
type OrderEvent struct {
	Type   EventType
	Record *storage.OrderRecord
}

// Feed receives order events, e.g. the websocket hub.
type Feed interface {
	PublishOrder(ev OrderEvent)
}

type nopFeed struct{}

func (nopFeed) PublishOrder(OrderEvent) {}

type Config struct {
	NetworkID     uint8
	SweepInterval time.Duration
	// MaxPoolSize bounds the live pool; zero is unbounded.
	MaxPoolSize int
	// FeeRole is the fee schedule resting orders must pay.
	FeeRole       subintent.FeeRole
	GossipWorkers int
}

type Deps struct {
	Directory client.Directory
	Store     storage.OrderStore
	WAL       storage.WAL
	Net       p2p.Network
	Feed      Feed
	Clock     util.Clock
	Logger    *zap.SugaredLogger
}

// App accepts signed limit-order subintents, keeps the open ones in an
// expiry-ordered pool and shares them with peers.
type App struct {
	cfg   Config
	dir   client.Directory
	store storage.OrderStore
	wal   storage.WAL
	net   p2p.Network
	clock util.Clock
	log   *zap.SugaredLogger
	pool  *pool.Pool

	muFeed sync.RWMutex
	feed   Feed

	venue     model.AnthicConfig
	instamint *model.InstamintConfig

	// submitMu serialises the duplicate check with the store write.
	submitMu sync.Mutex

	gossip chan inbound
}

type inbound struct {
	from string
	w    p2p.SubintentWire
}

// New loads the venue configuration from the directory and wires the app.
// A venue without instamint support is not an error.
func New(ctx context.Context, cfg Config, deps Deps) (*App, error) {
	if deps.Directory == nil || deps.Store == nil {
		return nil, errors.New("matcher: directory and store are required")
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.GossipWorkers <= 0 {
		cfg.GossipWorkers = defaultGossipWorkers
	}

	a := &App{
		cfg:    cfg,
		dir:    deps.Directory,
		store:  deps.Store,
		wal:    deps.WAL,
		net:    deps.Net,
		clock:  deps.Clock,
		log:    deps.Logger,
		feed:   deps.Feed,
		pool:   pool.New(cfg.MaxPoolSize),
		gossip: make(chan inbound, gossipQueueSize),
	}
	if a.wal == nil {
		a.wal = storage.NewNopWAL()
	}
	if a.net == nil {
		a.net = p2p.NopNet{}
	}
	if a.feed == nil {
		a.feed = nopFeed{}
	}
	if a.clock == nil {
		a.clock = util.RealClock{}
	}
	if a.log == nil {
		a.log = zap.NewNop().Sugar()
	}

	venue, err := a.dir.LoadAnthicConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("matcher: load venue config: %w", err)
	}
	a.venue = venue

	im, err := a.dir.LoadInstamintConfig(ctx)
	switch {
	case err == nil:
		a.instamint = &im
	case errors.Is(err, client.ErrNoInstamint):
		a.log.Infow("instamint_disabled")
	default:
		a.log.Warnw("instamint_config_unavailable", "err", err)
	}

	a.net.SetHandlers(p2p.Handlers{
		OnSubintent: a.enqueueGossip,
		OnStatus:    a.HandleStatus,
		Snapshot:    a.snapshot,
	})
	return a, nil
}

// SetFeed replaces the live feed; the API server registers itself here.
func (a *App) SetFeed(f Feed) {
	a.muFeed.Lock()
	defer a.muFeed.Unlock()
	if f == nil {
		f = nopFeed{}
	}
	a.feed = f
}

func (a *App) publish(t EventType, rec *storage.OrderRecord) {
	a.muFeed.RLock()
	f := a.feed
	a.muFeed.RUnlock()
	f.PublishOrder(OrderEvent{Type: t, Record: rec})
}

func (a *App) Venue() model.AnthicConfig { return a.venue }

func (a *App) InstamintEnabled() bool { return a.instamint != nil }

func (a *App) Pool() *pool.Pool { return a.pool }

func (a *App) Directory() client.Directory { return a.dir }

// Order looks up a stored order, open or not.
func (a *App) Order(h intent.Hash) (*storage.OrderRecord, error) {
	rec, err := a.store.LoadOrder(h)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrOrderNotFound, h)
	}
	return rec, nil
}

// AccountOrders returns every stored order of an account.
func (a *App) AccountOrders(account ledger.ComponentAddress) ([]*storage.OrderRecord, error) {
	return a.store.LoadAccountOrders(account)
}

// Restore refills the pool from the store. Orders that expired while the
// node was down are marked expired instead.
func (a *App) Restore() (int, error) {
	open, err := a.store.LoadOpenOrders()
	if err != nil {
		return 0, fmt.Errorf("matcher: load open orders: %w", err)
	}
	now := a.clock.Now()
	restored := 0
	for _, rec := range open {
		if !rec.ExpiresAt.After(now) {
			if err := a.store.SetStatus(rec.Hash, storage.StatusExpired); err != nil {
				a.log.Warnw("restore_expire_failed", "hash", rec.Hash.String(), "err", err)
			}
			continue
		}
		if err := a.pool.Add(rec); err != nil {
			a.log.Warnw("restore_pool_failed", "hash", rec.Hash.String(), "err", err)
			continue
		}
		restored++
	}
	a.log.Infow("orders_restored", "open", restored, "expired", len(open)-restored)
	return restored, nil
}

// Run sweeps expired orders and drains the gossip queue until ctx is done.
func (a *App) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	for i := 0; i < a.cfg.GossipWorkers; i++ {
		id := i
		t.Go(func() error { return a.gossipWorker(t, ctx, id) })
	}
	t.Go(func() error { return a.sweepLoop(t) })

	a.log.Infow("matcher_running", "workers", a.cfg.GossipWorkers, "sweep_interval", a.cfg.SweepInterval.String())
	<-t.Dying()
	err := t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) sweepLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case <-a.clock.After(a.cfg.SweepInterval):
			a.Sweep(a.clock.Now())
		}
	}
}
