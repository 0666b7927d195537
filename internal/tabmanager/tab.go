// Package tabmanager owns tab lifecycles and marshals messages to and
// from each tab's ZKVM instance across thread boundaries (spec §3/§4.4).
package tabmanager

import (
	"time"

	"github.com/google/uuid"

	"github.com/geeknik/citadel-browser/internal/security"
)

// TabID is the opaque 128-bit tab identifier.
type TabID = uuid.UUID

// NewTabID mints a fresh random TabID.
func NewTabID() TabID { return uuid.New() }

// ParseTabID parses a canonical UUID string into a TabID.
func ParseTabID(s string) (TabID, error) { return uuid.Parse(s) }

// State is one of the five tab lifecycle states (spec §4.4).
type State int

const (
	Unloaded State = iota
	Loading
	Ready
	Error
	Closed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "Loading"
	case Ready:
		return "Ready"
	case Error:
		return "Error"
	case Closed:
		return "Closed"
	default:
		return "Unloaded"
	}
}

// Kind distinguishes Normal, Private (ephemeral), and Container tabs.
type Kind int

const (
	Normal Kind = iota
	Private
	Container
)

// HistoryEntry is one bounded navigation-history record (spec §4.4:
// "(URL, title, timestamp); no page content is retained").
type HistoryEntry struct {
	URL       string
	Title     string
	Timestamp time.Time
}

// maxHistoryEntries bounds per-tab navigation history.
const maxHistoryEntries = 200

// ErrorInfo describes why a tab transitioned to the Error state.
type ErrorInfo struct {
	Kind    string
	Summary string
}

// Tab is one browsing context: its lifecycle state, identity, and the
// security/ZKVM handles scoped to it. All mutation goes through the
// owning Manager, which serializes access via a per-tab lock.
type Tab struct {
	ID         TabID
	Kind       Kind
	ContainerID string

	state      State
	currentURL string
	title      string
	lastErr    *ErrorInfo

	history []HistoryEntry

	SecurityCtx *security.Context

	createdAt time.Time
}

func newTab(id TabID, kind Kind, containerID string, base *security.Context) *Tab {
	return &Tab{
		ID:          id,
		Kind:        kind,
		ContainerID: containerID,
		state:       Unloaded,
		SecurityCtx: base.Clone(),
		createdAt:   time.Now(),
	}
}

// State returns the tab's current lifecycle state.
func (t *Tab) State() State { return t.state }

// URL returns the tab's current URL.
func (t *Tab) URL() string { return t.currentURL }

// Title returns the tab's current title.
func (t *Tab) Title() string { return t.title }

// LastError returns the error that produced the current Error state, if any.
func (t *Tab) LastError() *ErrorInfo { return t.lastErr }

// History returns a copy of the bounded navigation history. Private tabs
// always report an empty history (spec §4.4 "Private tabs do not record
// history").
func (t *Tab) History() []HistoryEntry {
	if t.Kind == Private {
		return nil
	}
	out := make([]HistoryEntry, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Tab) pushHistory(url, title string) {
	if t.Kind == Private {
		return
	}
	t.history = append(t.history, HistoryEntry{URL: url, Title: title, Timestamp: time.Now()})
	if len(t.history) > maxHistoryEntries {
		t.history = t.history[len(t.history)-maxHistoryEntries:]
	}
}
