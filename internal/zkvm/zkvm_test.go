package zkvm

import (
	"context"
	"testing"
	"time"

	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaZeroingInvariant(t *testing.T) {
	a := NewArena(1024)
	require.NoError(t, a.Reserve(512))
	// dirty some bytes directly to simulate live use
	a.bytes[0] = 0xFF
	a.bytes[500] = 0x42

	a.Zero()
	assert.True(t, a.IsZeroed())
	assert.Equal(t, 0, a.Used())
}

func TestSnapshotRoundTrip(t *testing.T) {
	key, err := NewInstanceKey()
	require.NoError(t, err)

	snap, err := Seal(key, []byte("state"))
	require.NoError(t, err)
	require.NoError(t, Verify(key, snap))

	snap.Tag[0] ^= 0xFF
	assert.ErrorIs(t, Verify(key, snap), ErrIntegrityMismatch)
}

func TestInstanceExecuteAndClose(t *testing.T) {
	inst, err := New(Config{
		MaxMemoryBytes: 1 << 20,
		Timeout:        time.Second,
		Capabilities:   NewCapabilitySet(CapabilityNetworkFetch, CapabilityTimer),
		SecurityCtx:    security.New(settingsstore.Default()),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Run(ctx)

	inst.Inbound() <- Command{Kind: "execute", Script: "1+1"}
	ev := <-inst.Outbound()
	assert.Equal(t, "result", ev.Kind)
	assert.EqualValues(t, 2, ev.Result.Value)

	inst.Close()
	assert.True(t, inst.Arena.IsZeroed())
}

func TestStorageDeniedForPrivateTab(t *testing.T) {
	inst, err := New(Config{
		MaxMemoryBytes: 1 << 20,
		Timeout:        time.Second,
		Capabilities:   NewCapabilitySet(CapabilityStorage),
		SecurityCtx:    security.New(settingsstore.Default()),
		IsPrivate:      true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Run(ctx)
	defer inst.Close()

	inst.Inbound() <- Command{Kind: "storage-write"}
	ev := <-inst.Outbound()
	assert.Equal(t, "error", ev.Kind)
}
