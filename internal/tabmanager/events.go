package tabmanager

// EventKind discriminates the outbound per-tab event types (spec §6 "UI
// collaborator (produced)").
type EventKind string

const (
	EventStateChanged       EventKind = "StateChanged"
	EventTitleChanged       EventKind = "TitleChanged"
	EventProgressChanged    EventKind = "ProgressChanged"
	EventRenderTreeUpdated  EventKind = "RenderTreeUpdated"
	EventViolationRecorded  EventKind = "ViolationRecorded"
)

// Event is one outbound notification published on a tab's EventStream.
// Exactly one payload field is populated, matching Kind.
type Event struct {
	Kind EventKind

	State      State
	Title      string
	Progress   int
	RenderTree interface{}
	Violation  interface{}
}

// EventStream is the per-tab subscription handle: events for a given tab
// are delivered to every active subscriber in the order their side
// effects occurred (spec §4.4 "Ordering guarantees").
type EventStream <-chan Event

// eventBus fans a tab's events out to any number of subscribers. Each
// subscriber gets its own buffered channel so a slow reader cannot block
// the tab's own state machine; publishing never blocks.
type eventBus struct {
	subs []chan Event
}

const subscriberBuffer = 64

func (b *eventBus) subscribe() EventStream {
	ch := make(chan Event, subscriberBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *eventBus) publish(ev Event) {
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// a full subscriber buffer means a lagging reader; the
			// event is dropped for that subscriber rather than
			// blocking the tab's state machine.
		}
	}
}
