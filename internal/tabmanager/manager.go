package tabmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/zkvm"
)

// NavigateFunc performs the actual fetch/parse/layout work for a
// navigation, invoked by the Manager under the owning tab's lock. It
// reports progress and render-tree updates via publish as it runs, and
// returns the resolved title on success. The pipeline package supplies
// the concrete implementation; tabmanager stays decoupled from
// parser/network/layout to avoid an import cycle.
type NavigateFunc func(ctx context.Context, instance *zkvm.Instance, secCtx *security.Context, url string, publish func(Event)) (title string, err error)

const forceTerminateGrace = 5 * time.Second

type tabEntry struct {
	tab      *Tab
	mu       sync.Mutex // serializes this tab's state transitions (spec §4.4)
	bus      eventBus
	instance *zkvm.Instance
	cancel   context.CancelFunc
	runCtx   context.Context
}

// Manager owns all Tabs, routes navigation, and is the only component
// safe to share across threads (spec §4.4). The zero value is not usable;
// construct with New.
type Manager struct {
	mu   sync.RWMutex
	tabs map[TabID]*tabEntry

	baseSecurity *security.Context
	zkvmConfig   func(secCtx *security.Context, private bool) zkvm.Config
	navigate     NavigateFunc
}

// New builds a Manager. zkvmConfig customizes the per-tab sandbox
// configuration (timeout, capabilities, memory bound); navigate performs
// the actual page-load work.
func New(base *security.Context, zkvmConfig func(secCtx *security.Context, private bool) zkvm.Config, navigate NavigateFunc) *Manager {
	return &Manager{
		tabs:         make(map[TabID]*tabEntry),
		baseSecurity: base,
		zkvmConfig:   zkvmConfig,
		navigate:     navigate,
	}
}

// Open creates a new Tab in the Unloaded state and, if url is non-empty,
// immediately begins navigating it (Unloaded -> Loading on first
// navigate, per spec §4.4).
func (m *Manager) Open(kind Kind, containerID, url string) (TabID, error) {
	id := NewTabID()
	tab := newTab(id, kind, containerID, m.baseSecurity)
	entry := &tabEntry{tab: tab}

	m.mu.Lock()
	m.tabs[id] = entry
	m.mu.Unlock()

	if url != "" {
		if err := m.Navigate(id, url); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (m *Manager) lookup(id TabID) (*tabEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tabs[id]
	return e, ok
}

// CurrentState returns the tab's lifecycle state.
func (m *Manager) CurrentState(id TabID) (State, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Closed, fmt.Errorf("tabmanager: unknown tab %s", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tab.state, nil
}

// Subscribe returns an event stream for id's tab.
func (m *Manager) Subscribe(id TabID) (EventStream, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, fmt.Errorf("tabmanager: unknown tab %s", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bus.subscribe(), nil
}

// Tab returns a read-only snapshot accessor for id's tab, or false if
// the tab does not exist (e.g. was closed).
func (m *Manager) Tab(id TabID) (*Tab, bool) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, false
	}
	return e.tab, true
}

func (m *Manager) transition(e *tabEntry, to State, errInfo *ErrorInfo) {
	e.tab.state = to
	e.tab.lastErr = errInfo
	e.bus.publish(Event{Kind: EventStateChanged, State: to})
}

// Navigate drives id's tab through Loading and into Ready or Error. Any
// navigation already in flight for this tab is cancelled cooperatively
// first (spec §4.4 "Cancellation").
func (m *Manager) Navigate(id TabID, url string) error {
	e, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("tabmanager: unknown tab %s", id)
	}

	e.mu.Lock()
	if e.tab.state == Closed {
		e.mu.Unlock()
		return fmt.Errorf("tabmanager: tab %s is closed", id)
	}
	m.cancelInFlightLocked(e)

	if e.instance == nil {
		inst, err := zkvm.New(m.zkvmConfig(e.tab.SecurityCtx, e.tab.Kind == Private))
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("tabmanager: create zkvm instance: %w", err)
		}
		e.instance = inst
		go inst.Run(context.Background())
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.runCtx = runCtx
	m.transition(e, Loading, nil)
	instance := e.instance
	secCtx := e.tab.SecurityCtx
	e.mu.Unlock()

	// run the navigation work outside the lock so other operations on
	// this tab (Close, CurrentState, Subscribe) are never blocked by an
	// in-flight page load; the tab's own state transitions remain
	// totally ordered because only this goroutine performs them for
	// this navigation generation.
	title, err := m.runNavigateRecovered(runCtx, instance, secCtx, url, e)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != runCtx {
		// superseded by a newer navigation or a Close; don't publish a
		// stale transition.
		return nil
	}
	if err != nil {
		m.transition(e, Error, &ErrorInfo{Kind: "navigate", Summary: err.Error()})
		return err
	}
	e.tab.currentURL = url
	e.tab.title = title
	e.tab.pushHistory(url, title)
	e.bus.publish(Event{Kind: EventTitleChanged, Title: title})
	m.transition(e, Ready, nil)
	return nil
}

// runNavigateRecovered isolates any internal programming fault to this
// tab rather than panicking the process (spec §7: "the top-level
// dispatcher catches any internal programming fault, isolates it to the
// owning Tab, and transitions that Tab to Error").
func (m *Manager) runNavigateRecovered(ctx context.Context, instance *zkvm.Instance, secCtx *security.Context, url string, e *tabEntry) (title string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tabmanager: internal fault: %v", r)
		}
	}()
	publish := func(ev Event) { e.bus.publish(ev) }
	return m.navigate(ctx, instance, secCtx, url, publish)
}

// cancelInFlightLocked cooperatively cancels any navigation currently
// running for e, under e.mu.
func (m *Manager) cancelInFlightLocked(e *tabEntry) {
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.cancel = nil
}

// Close cancels any in-flight navigation, force-terminates the tab's
// ZKVM instance (always zeroing its arena), and removes the tab from the
// registry.
func (m *Manager) Close(id TabID) error {
	e, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("tabmanager: unknown tab %s", id)
	}

	e.mu.Lock()
	m.cancelInFlightLocked(e)
	inst := e.instance
	e.instance = nil
	m.transition(e, Closed, nil)
	e.mu.Unlock()

	if inst != nil {
		done := make(chan struct{})
		go func() {
			inst.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(forceTerminateGrace):
			// Close() already zeroes the arena synchronously before
			// returning; the grace window here only bounds how long
			// Close blocks the caller, not whether zeroing happened.
		}
	}

	m.mu.Lock()
	delete(m.tabs, id)
	m.mu.Unlock()
	return nil
}
