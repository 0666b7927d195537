package zkvm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/geeknik/citadel-browser/internal/security"
)

// Command is one message delivered over the inbound channel. Commands
// are processed in FIFO order (spec §5).
type Command struct {
	Kind         string // "execute", "fetch", "timer", "storage-read", "storage-write", "cancel"
	Script       string
	URL          string
	ResourceKind security.ResourceKind
	Reply        chan Event
}

// Event is one message delivered over the outbound channel.
type Event struct {
	Kind   string // "result", "fetch-result", "error", "terminated"
	Result ExecResult
	Data   string
	Err    error
}

// timerRoundingInterval is the minimum spacing between granted Timer
// commands: a rate limiter admits at most one per interval, reducing
// timing-side-channel bandwidth (spec §4.3). Wakeup times themselves are
// not rounded.
const timerRoundingInterval = 4 * time.Millisecond

// Instance is one ZKVM: arena, runtime, capability set, and the
// inbound/outbound channel pair (spec §3, §4.3). A Tab owns exactly one
// Instance for its lifetime.
type Instance struct {
	Arena        *Arena
	Key          InstanceKey
	Capabilities CapabilitySet
	SecurityCtx  *security.Context
	IsPrivate    bool

	runtime *Runtime
	inbound chan Command
	outbound chan Event
	limiter *rate.Limiter

	done chan struct{}
}

// Config bundles Instance construction parameters.
type Config struct {
	MaxMemoryBytes int64
	Timeout        time.Duration
	Capabilities   CapabilitySet
	SecurityCtx    *security.Context
	IsPrivate      bool
	InboundDepth   int
}

// New allocates a fresh ZKVM Instance. Called when a Tab transitions to
// Loading (spec §4.3).
func New(cfg Config) (*Instance, error) {
	key, err := NewInstanceKey()
	if err != nil {
		return nil, err
	}
	depth := cfg.InboundDepth
	if depth <= 0 {
		depth = 32
	}
	return &Instance{
		Arena:        NewArena(cfg.MaxMemoryBytes),
		Key:          key,
		Capabilities: cfg.Capabilities,
		SecurityCtx:  cfg.SecurityCtx,
		IsPrivate:    cfg.IsPrivate,
		runtime:      NewRuntime(cfg.Timeout),
		inbound:      make(chan Command, depth),
		outbound:     make(chan Event, depth),
		limiter:      rate.NewLimiter(rate.Every(timerRoundingInterval), 1),
		done:         make(chan struct{}),
	}, nil
}

// Inbound exposes the SPSC-style command channel for the Tab Manager to
// send on.
func (i *Instance) Inbound() chan<- Command { return i.inbound }

// Outbound exposes the event channel for the Tab Manager's dispatcher to
// receive on.
func (i *Instance) Outbound() <-chan Event { return i.outbound }

// Run processes inbound commands until ctx is cancelled or Close is
// called; it is meant to run on the Instance's one home worker (spec
// §5). Commands are processed in FIFO order; events are emitted in
// side-effect order.
func (i *Instance) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.done:
			return
		case cmd := <-i.inbound:
			i.handle(ctx, cmd)
		}
	}
}

func (i *Instance) handle(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case "execute":
		result := i.runtime.Execute(ctx, cmd.Script)
		i.outbound <- Event{Kind: "result", Result: result}
	case "fetch":
		i.handleFetch(cmd)
	case "storage-read", "storage-write":
		i.handleStorage(cmd)
	case "timer":
		i.handleTimer(ctx, cmd)
	case "cancel":
		i.runtime.ForceInterrupt()
		i.outbound <- Event{Kind: "terminated"}
	}
}

func (i *Instance) handleFetch(cmd Command) {
	if !i.Capabilities.Has(CapabilityNetworkFetch) {
		i.outbound <- Event{Kind: "error", Err: &ErrCapabilityDenied{Capability: CapabilityNetworkFetch}}
		return
	}
	decision, directive := security.EvaluateCSP(i.SecurityCtx.CSP, security.Request{
		ResourceURL: cmd.URL,
		Kind:        cmd.ResourceKind,
	})
	if decision == security.Block {
		i.SecurityCtx.RecordViolation(security.Violation{
			Kind:        security.ViolationPolicyCspBlock,
			Directive:   directive,
			ResourceURL: cmd.URL,
			Summary:     fmt.Sprintf("csp blocked fetch of %s", cmd.URL),
		})
		i.outbound <- Event{Kind: "error", Err: fmt.Errorf("csp blocked: %s", directive)}
		return
	}
	// Actual network I/O is the external Network collaborator (spec §6);
	// the instance only mediates the capability/CSP decision here.
	i.outbound <- Event{Kind: "fetch-result", Data: cmd.URL}
}

func (i *Instance) handleStorage(cmd Command) {
	if !i.Capabilities.Has(CapabilityStorage) {
		i.outbound <- Event{Kind: "error", Err: &ErrCapabilityDenied{Capability: CapabilityStorage}}
		return
	}
	if i.IsPrivate {
		i.outbound <- Event{Kind: "error", Err: fmt.Errorf("storage denied: private tab")}
		return
	}
	i.outbound <- Event{Kind: "result"}
}

func (i *Instance) handleTimer(ctx context.Context, cmd Command) {
	if !i.Capabilities.Has(CapabilityTimer) {
		i.outbound <- Event{Kind: "error", Err: &ErrCapabilityDenied{Capability: CapabilityTimer}}
		return
	}
	if err := i.limiter.Wait(ctx); err != nil {
		i.outbound <- Event{Kind: "error", Err: err}
		return
	}
	i.outbound <- Event{Kind: "result"}
}

// Close tears down the Instance: the runtime is interrupted, the arena
// is zeroed (key material first), and Run's loop exits. This holds
// regardless of termination cause (spec §4.3).
func (i *Instance) Close() {
	select {
	case <-i.done:
		return // already closed
	default:
	}
	i.runtime.ForceInterrupt()
	i.Key.Zero()
	i.Arena.Zero()
	close(i.done)
}
