package p2p

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireGob(t *testing.T) {
	in := SnapshotWire{Orders: []SubintentWire{{Transaction: "0xabcd", ReceivedAt: 1700000000}}}
	data, err := gobEncode(in)
	require.NoError(t, err)
	var out SnapshotWire
	require.NoError(t, gobDecode(data, &out))
	assert.Equal(t, in, out)

	st := StatusWire{Hash: [32]byte{1, 2, 3}, Status: "expired"}
	data, err = gobEncode(st)
	require.NoError(t, err)
	var gotStatus StatusWire
	require.NoError(t, gobDecode(data, &gotStatus))
	assert.Equal(t, st, gotStatus)
}

func TestSnapshotSync(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	a, err := NewLibp2pNet(ctx, Libp2pConfig{ListenAddr: "/ip4/127.0.0.1/tcp/0"})
	require.NoError(t, err)
	defer a.Close()
	a.SetHandlers(Handlers{Snapshot: func() []SubintentWire {
		return []SubintentWire{{Transaction: "0x01", ReceivedAt: 1}, {Transaction: "0x02", ReceivedAt: 2}}
	}})

	b, err := NewLibp2pNet(ctx, Libp2pConfig{ListenAddr: "/ip4/127.0.0.1/tcp/0", Bootstrap: a.Addrs()})
	require.NoError(t, err)
	defer b.Close()

	var mu sync.Mutex
	var got []string
	b.SetHandlers(Handlers{OnSubintent: func(_ context.Context, from string, w SubintentWire) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, a.Host().ID().String(), from)
		got = append(got, w.Transaction)
	}})

	require.NoError(t, b.SyncFromPeers(ctx))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0x01", "0x02"}, got)
}

func TestSyncRequiresHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n, err := NewLibp2pNet(ctx, Libp2pConfig{ListenAddr: "/ip4/127.0.0.1/tcp/0"})
	require.NoError(t, err)
	defer n.Close()
	assert.Error(t, n.SyncFromPeers(ctx))
}
