package tabmanager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/geeknik/citadel-browser/internal/zkvm"
)

func testZkvmConfig(secCtx *security.Context, private bool) zkvm.Config {
	return zkvm.Config{
		MaxMemoryBytes: 1 << 20,
		Timeout:        time.Second,
		Capabilities:   zkvm.NewCapabilitySet(zkvm.CapabilityNetworkFetch, zkvm.CapabilityTimer),
		SecurityCtx:    secCtx,
		IsPrivate:      private,
	}
}

func succeedingNavigate(title string) NavigateFunc {
	return func(ctx context.Context, inst *zkvm.Instance, secCtx *security.Context, url string, publish func(Event)) (string, error) {
		publish(Event{Kind: EventProgressChanged, Progress: 100})
		return title, nil
	}
}

func failingNavigate(err error) NavigateFunc {
	return func(ctx context.Context, inst *zkvm.Instance, secCtx *security.Context, url string, publish func(Event)) (string, error) {
		return "", err
	}
}

func TestOpenAndNavigateReachesReady(t *testing.T) {
	base := security.New(settingsstore.Default())
	mgr := New(base, testZkvmConfig, succeedingNavigate("Example"))

	id, err := mgr.Open(Normal, "", "https://example.test")
	require.NoError(t, err)

	state, err := mgr.CurrentState(id)
	require.NoError(t, err)
	assert.Equal(t, Ready, state)

	tab, ok := mgr.Tab(id)
	require.True(t, ok)
	assert.Equal(t, "Example", tab.Title())
	assert.Len(t, tab.History(), 1)
}

func TestNavigateFailureReachesError(t *testing.T) {
	base := security.New(settingsstore.Default())
	mgr := New(base, testZkvmConfig, failingNavigate(fmt.Errorf("boom")))

	id, err := mgr.Open(Normal, "", "https://example.test")
	assert.Error(t, err)

	state, err := mgr.CurrentState(id)
	require.NoError(t, err)
	assert.Equal(t, Error, state)
}

func TestPrivateTabRecordsNoHistory(t *testing.T) {
	base := security.New(settingsstore.Default())
	mgr := New(base, testZkvmConfig, succeedingNavigate("Private Page"))

	id, err := mgr.Open(Private, "", "https://example.test")
	require.NoError(t, err)

	tab, ok := mgr.Tab(id)
	require.True(t, ok)
	assert.Empty(t, tab.History())
}

func TestCloseRemovesTab(t *testing.T) {
	base := security.New(settingsstore.Default())
	mgr := New(base, testZkvmConfig, succeedingNavigate("T"))

	id, err := mgr.Open(Normal, "", "https://example.test")
	require.NoError(t, err)

	require.NoError(t, mgr.Close(id))

	_, ok := mgr.Tab(id)
	assert.False(t, ok)
}

func TestSubscribeReceivesStateChangedEvents(t *testing.T) {
	base := security.New(settingsstore.Default())
	mgr := New(base, testZkvmConfig, succeedingNavigate("T"))

	id, err := mgr.Open(Normal, "", "")
	require.NoError(t, err)

	stream, err := mgr.Subscribe(id)
	require.NoError(t, err)

	require.NoError(t, mgr.Navigate(id, "https://example.test"))

	var sawLoading, sawReady bool
	timeout := time.After(time.Second)
	for !sawReady {
		select {
		case ev := <-stream:
			if ev.Kind == EventStateChanged {
				if ev.State == Loading {
					sawLoading = true
				}
				if ev.State == Ready {
					sawReady = true
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for Ready")
		}
	}
	assert.True(t, sawLoading)
}
