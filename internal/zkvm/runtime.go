package zkvm

import (
	"context"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// StepBudget is a VM instruction budget for a single Execute call. It is
// not enforced: Execute counts no instructions and is bounded only by
// its wall-clock timeout.
const StepBudget = 10_000_000

// LogEntry is one console.* call captured during Execute.
type LogEntry struct {
	Level string
	Args  []string
}

// ExecResult is the outcome of one script evaluation.
type ExecResult struct {
	Value    interface{}
	Console  []LogEntry
	Duration time.Duration
	Err      error
}

// Runtime wraps a goja.Runtime as the embedded script evaluator the ZKVM
// drives (spec §4.3 "execution contract for the embedded script
// evaluator"). It never exposes the arena's pointers across its
// boundary: values cross by copy through ExecResult.
type Runtime struct {
	vm         *goja.Runtime
	mu         sync.Mutex
	console    []LogEntry
	timeout    time.Duration
	onNetFetch func(url string) (string, error)
}

// NewRuntime builds a Runtime whose execution is bounded by timeout.
func NewRuntime(timeout time.Duration) *Runtime {
	r := &Runtime{vm: goja.New(), timeout: timeout}
	r.setupGlobals()
	return r
}

// setupGlobals strips dangerous host integration points and installs a
// minimal console, mirroring the isolation the corpus's sandbox runtime
// already applies.
func (r *Runtime) setupGlobals() {
	_ = r.vm.GlobalObject().Delete("require")
	_ = r.vm.GlobalObject().Delete("process")
	_ = r.vm.GlobalObject().Delete("module")
	_ = r.vm.GlobalObject().Delete("exports")

	console := r.vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info"} {
		lvl := level
		_ = console.Set(lvl, func(call goja.FunctionCall) goja.Value {
			entry := LogEntry{Level: lvl}
			for _, arg := range call.Arguments {
				entry.Args = append(entry.Args, arg.String())
			}
			r.mu.Lock()
			r.console = append(r.console, entry)
			r.mu.Unlock()
			return goja.Undefined()
		})
	}
	_ = r.vm.Set("console", console)

	// setTimeout/setInterval are no-ops: the ZKVM's suspension points are
	// network fetch, timer wait, and parser yield checkpoints, not a real
	// event loop (spec §5).
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = r.vm.Set("setTimeout", noop)
	_ = r.vm.Set("setInterval", noop)
}

// Execute runs script under ctx and the configured timeout, interrupting
// the VM if either expires. Side effects visible outside the sandbox are
// only those captured in the returned ExecResult (spec §4.3).
func (r *Runtime) Execute(ctx context.Context, script string) ExecResult {
	start := time.Now()

	deadlineCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		deadlineCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-deadlineCtx.Done():
			r.vm.Interrupt("execution deadline exceeded")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(script)
	close(done)

	r.mu.Lock()
	console := append([]LogEntry(nil), r.console...)
	r.mu.Unlock()

	var exported interface{}
	if val != nil {
		exported = val.Export()
	}

	return ExecResult{
		Value:    exported,
		Console:  console,
		Duration: time.Since(start),
		Err:      err,
	}
}

// Reset discards the VM state and rebuilds globals.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = goja.New()
	r.console = nil
	r.setupGlobals()
}

// ForceInterrupt immediately halts any in-flight script (spec §4.4
// "force-terminated" path).
func (r *Runtime) ForceInterrupt() {
	r.vm.Interrupt("force-terminated")
}
