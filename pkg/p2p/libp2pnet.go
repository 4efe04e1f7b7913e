package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

const (
	topicSubintents = "anthic-subintents"
	topicStatus     = "anthic-order-status"
	protocolSync    = protocol.ID("/anthic/sync/1.0.0")
)

// Handlers receive inbound gossip. Any of them may be nil.
type Handlers struct {
	OnSubintent func(ctx context.Context, from string, w SubintentWire)
	OnStatus    func(ctx context.Context, from string, w StatusWire)
	// Snapshot serves sync requests from peers that just joined.
	Snapshot func() []SubintentWire
}

// Network is the gossip surface the matcher depends on.
type Network interface {
	SetHandlers(h Handlers)
	PublishSubintent(ctx context.Context, w SubintentWire) error
	PublishStatus(ctx context.Context, w StatusWire) error
}

type Libp2pNet struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	tSubintents, tStatus     *pubsub.Topic
	subSubintents, subStatus *pubsub.Subscription

	muH      sync.RWMutex
	handlers Handlers
}

type Libp2pConfig struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewLibp2pNet(ctx context.Context, cfg Libp2pConfig) (*Libp2pNet, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	net := &Libp2pNet{h: h, ps: ps, log: cfg.Logger}
	if net.log == nil {
		net.log = zap.NewNop().Sugar()
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil {
			net.log.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if err := net.joinTopics(); err != nil {
		h.Close()
		return nil, err
	}

	h.SetStreamHandler(protocolSync, net.handleSyncStream)

	go net.handleSubintents(ctx)
	go net.handleStatus(ctx)

	net.log.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	return net, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (n *Libp2pNet) joinTopics() error {
	var err error
	if n.tSubintents, err = n.ps.Join(topicSubintents); err != nil {
		return err
	}
	if n.tStatus, err = n.ps.Join(topicStatus); err != nil {
		return err
	}

	if n.subSubintents, err = n.tSubintents.Subscribe(); err != nil {
		return err
	}
	if n.subStatus, err = n.tStatus.Subscribe(); err != nil {
		return err
	}
	return nil
}

func (n *Libp2pNet) SetHandlers(h Handlers) { n.muH.Lock(); n.handlers = h; n.muH.Unlock() }

func (n *Libp2pNet) currentHandlers() Handlers {
	n.muH.RLock()
	defer n.muH.RUnlock()
	return n.handlers
}

func (n *Libp2pNet) Host() host.Host { return n.h }

// Addrs returns dialable multiaddrs including the peer id.
func (n *Libp2pNet) Addrs() []string {
	out := make([]string, 0, len(n.h.Addrs()))
	for _, a := range n.h.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, n.h.ID()))
	}
	return out
}

func (n *Libp2pNet) Close() error {
	n.subSubintents.Cancel()
	n.subStatus.Cancel()
	return n.h.Close()
}

func (n *Libp2pNet) PublishSubintent(ctx context.Context, w SubintentWire) error {
	data, err := gobEncode(w)
	if err != nil {
		return err
	}
	return n.tSubintents.Publish(ctx, data)
}

func (n *Libp2pNet) PublishStatus(ctx context.Context, w StatusWire) error {
	data, err := gobEncode(w)
	if err != nil {
		return err
	}
	return n.tStatus.Publish(ctx, data)
}

// RequestSnapshot asks one connected peer for its open orders.
func (n *Libp2pNet) RequestSnapshot(ctx context.Context, p peer.ID) ([]SubintentWire, error) {
	stream, err := n.h.NewStream(ctx, p, protocolSync)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, err
	}
	var snap SnapshotWire
	if err := gobDecode(data, &snap); err != nil {
		return nil, err
	}
	return snap.Orders, nil
}

// SyncFromPeers pulls snapshots from every connected peer and hands each
// order to the subintent handler.
func (n *Libp2pNet) SyncFromPeers(ctx context.Context) error {
	h := n.currentHandlers()
	if h.OnSubintent == nil {
		return errors.New("no subintent handler set")
	}
	for _, p := range n.h.Network().Peers() {
		orders, err := n.RequestSnapshot(ctx, p)
		if err != nil {
			n.log.Warnw("snapshot_request_failed", "peer", p.String(), "err", err)
			continue
		}
		for _, w := range orders {
			h.OnSubintent(ctx, p.String(), w)
		}
		n.log.Infow("snapshot_synced", "peer", p.String(), "orders", len(orders))
	}
	return nil
}

// inbound

func (n *Libp2pNet) handleSubintents(ctx context.Context) {
	for {
		msg, err := n.subSubintents.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue
		}
		var w SubintentWire
		if err := gobDecode(msg.Data, &w); err != nil {
			n.log.Debugw("gossip_decode_failed", "topic", topicSubintents, "err", err)
			continue
		}
		if h := n.currentHandlers(); h.OnSubintent != nil {
			h.OnSubintent(ctx, msg.ReceivedFrom.String(), w)
		}
	}
}

func (n *Libp2pNet) handleStatus(ctx context.Context) {
	for {
		msg, err := n.subStatus.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue
		}
		var w StatusWire
		if err := gobDecode(msg.Data, &w); err != nil {
			n.log.Debugw("gossip_decode_failed", "topic", topicStatus, "err", err)
			continue
		}
		if h := n.currentHandlers(); h.OnStatus != nil {
			h.OnStatus(ctx, msg.ReceivedFrom.String(), w)
		}
	}
}

// handleSyncStream writes the open-order snapshot and closes the stream.
func (n *Libp2pNet) handleSyncStream(s network.Stream) {
	defer s.Close()

	var snap SnapshotWire
	if h := n.currentHandlers(); h.Snapshot != nil {
		snap.Orders = h.Snapshot()
	}
	data, err := gobEncode(snap)
	if err != nil {
		n.log.Warnw("snapshot_encode_failed", "err", err)
		return
	}
	if _, err := s.Write(data); err != nil {
		n.log.Debugw("snapshot_write_failed", "peer", s.Conn().RemotePeer().String(), "err", err)
	}
}

// NopNet is used when gossip is disabled.
type NopNet struct{}

func (NopNet) SetHandlers(Handlers)                                  {}
func (NopNet) PublishSubintent(context.Context, SubintentWire) error { return nil }
func (NopNet) PublishStatus(context.Context, StatusWire) error       { return nil }

var (
	_ Network = (*Libp2pNet)(nil)
	_ Network = NopNet{}
)
