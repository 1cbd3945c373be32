// Package workers provides a small set of demonstration worker callables,
// registered under module path "demo", that exercise every ring buffer
// endpoint kind end to end: Generate (sourceless writer), Consume (reader
// plus optional passthrough writer), and Sample (fixed-interval observer
// polling).
package workers

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/nick/ringdaq/internal/ring"
	"github.com/nick/ringdaq/internal/worker"
)

func init() {
	worker.Register("demo", "generate", Generate)
	worker.Register("demo", "consume", Consume)
	worker.Register("demo", "sample", Sample)
}

func floatCfg(cfg worker.Config, key string, fallback float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// Generate has no sources: it writes an incrementing sine wave into its
// sole sink at rate_hz (default 100) until ctx is cancelled or Acquire on
// the sink returns ErrClosed (the buffer is paused or shut down). A worker
// with no source must be declared with requires_external_shutdown: true,
// since it has no EndOfStream of its own to terminate on.
func Generate(ctx context.Context, sources worker.Sources, sinks worker.Sinks, observers worker.Observers, cfg worker.Config, assign worker.Assignments) error {
	if len(sinks) == 0 {
		return errors.New("demo.generate: requires at least one sink")
	}
	rateHz := floatCfg(cfg, "rate_hz", 100)
	if rateHz <= 0 {
		rateHz = 100
	}
	period := time.Duration(float64(time.Second) / rateHz)

	sink := sinks[0]
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var t float64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ref, err := sink.Acquire()
			if err != nil {
				if errors.Is(err, ring.ErrClosed) {
					return nil
				}
				return err
			}
			v := math.Sin(t)
			if err := ref.WriteScalars([]float64{v}); err != nil {
				return err
			}
			if err := ref.Commit(); err != nil {
				return err
			}
			t += 2 * math.Pi / rateHz
		}
	}
}

// Consume reads from its sole source until EndOfStream, logging an event
// count every 1000 slots, and passes every slot through to its sink
// unmodified when one is configured; a slot read while the sink's Acquire
// returns ErrClosed is released without being passed through.
func Consume(ctx context.Context, sources worker.Sources, sinks worker.Sinks, observers worker.Observers, cfg worker.Config, assign worker.Assignments) error {
	if len(sources) == 0 {
		return errors.New("demo.consume: requires at least one source")
	}
	source := sources[0]
	var sink *ring.Writer
	if len(sinks) > 0 {
		sink = sinks[0]
	}

	var count uint64
	for {
		ref, err := source.Next()
		if err != nil {
			if errors.Is(err, ring.ErrEndOfStream) {
				log.Printf("demo.consume: end of stream after %d events", count)
				return nil
			}
			return err
		}

		vs, err := ref.ReadScalars()
		if err != nil {
			ref.Release()
			return err
		}

		if sink != nil {
			wref, err := sink.Acquire()
			if err != nil && !errors.Is(err, ring.ErrClosed) {
				ref.Release()
				return err
			}
			if err == nil {
				if err := wref.WriteScalars(vs); err != nil {
					ref.Release()
					return err
				}
				if err := wref.Commit(); err != nil {
					ref.Release()
					return err
				}
			}
		}

		if err := ref.Release(); err != nil {
			return err
		}

		count++
		if count%1000 == 0 {
			log.Printf("demo.consume: processed %d events", count)
		}
	}
}

// Sample polls its sole observer every interval_ms (default 200) and logs
// the latest value, tolerating a nil snapshot when nothing has been
// committed yet rather than treating it as an error — the same
// tolerate-no-data-yet pattern the original's histogram sampler uses when
// its queue has nothing ready.
func Sample(ctx context.Context, sources worker.Sources, sinks worker.Sinks, observers worker.Observers, cfg worker.Config, assign worker.Assignments) error {
	if len(observers) == 0 {
		return errors.New("demo.sample: requires at least one observer")
	}
	observer := observers[0]
	intervalMs := floatCfg(cfg, "interval_ms", 200)
	if intervalMs <= 0 {
		intervalMs = 200
	}
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := observer.Peek()
			if snap == nil {
				continue
			}
			vs, err := snap.ReadScalars()
			if err != nil {
				return err
			}
			log.Printf("demo.sample: seq=%d values=%v", snap.Sequence(), vs)
		}
	}
}
