// Package worker defines the callable contract a worker must satisfy and a
// static registry for resolving a worker definition's module path + callable
// name to a Go function, in place of the original's dynamic Python import
// (spec.md §9 "Dynamic module loading": a static registry is the preferred
// alternative).
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/nick/ringdaq/internal/ring"
)

// Sources, Sinks, and Observers are, respectively, a worker's bound source
// readers, sink writers, and observer endpoints. Each is nil (the "none"
// sentinel) when the worker definition assigns no buffer to that role — a
// value distinct from an empty, non-nil slice, matching spec.md §9's
// "No-source/no-sink normalization".
type (
	Sources   []*ring.Reader
	Sinks     []*ring.Writer
	Observers []*ring.Observer
)

// NoSources, NoSinks, and NoObservers are the explicit "none" sentinels.
// They are nil slices; the point of naming them is so call sites read as
// intent ("this worker has no sinks") rather than an easily-missed bare
// nil.
var (
	NoSources   Sources   = nil
	NoSinks     Sinks     = nil
	NoObservers Observers = nil
)

// Config is the per-worker configuration dictionary resolved from the
// setup file (common config section, or a per-worker config file), plus
// the injected directory_prefix.
type Config map[string]any

// DirectoryPrefix returns the output directory prefix the controller
// injects into every worker's configuration.
func (c Config) DirectoryPrefix() string {
	v, _ := c["directory_prefix"].(string)
	return v
}

// Assignments is the buffer_name -> role mapping from the worker's RB_assign
// setup entry, passed through unchanged so a worker can tell which buffer
// backs which of its endpoints when it has more than one of a kind.
type Assignments map[string]string

// Func is the worker callable signature: loop over Sources (blocking on
// Next), produce into Sinks, release every slot read, and return when every
// source has yielded ErrEndOfStream — or when ctx is done, for a worker
// with no sources that therefore has no natural termination signal of its
// own (spec.md §9 "Worker without sources").
//
// A non-nil return is treated the way the original treats a non-zero
// process exit code: logged, but it does not by itself abort other
// workers (see internal/daqctl's "WorkerCrash" handling). Returning nil
// when every source reports ErrEndOfStream is the voluntary-exit, "batch
// complete" signal the controller's batch-mode termination condition looks
// for.
type Func func(ctx context.Context, sources Sources, sinks Sinks, observers Observers, cfg Config, assign Assignments) error

var (
	mu       sync.Mutex
	registry = map[string]Func{}
)

// Register adds a callable to the static registry under module path +
// callable name, the same two-part key a setup file's file_name/fkt_name
// pair names. Intended to be called from an init() in the package that
// implements a concrete worker.
func Register(modulePath, callableName string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[key(modulePath, callableName)] = fn
}

// Resolve looks up a previously Registered callable. An unresolvable
// module path + callable name pair is a setup-time ImportError-equivalent,
// fatal before any worker starts.
func Resolve(modulePath, callableName string) (Func, error) {
	mu.Lock()
	defer mu.Unlock()
	fn, ok := registry[key(modulePath, callableName)]
	if !ok {
		return nil, fmt.Errorf("worker: no callable registered for module %q function %q", modulePath, callableName)
	}
	return fn, nil
}

func key(modulePath, callableName string) string {
	return modulePath + "#" + callableName
}
