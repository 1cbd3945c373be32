// Package daqctl implements the buffer controller: it builds a set of ring
// buffers and worker bindings from a decoded setup file, spawns worker
// goroutines in reverse declaration order, supervises the run in either
// timed or batch mode, and drives a deterministic pause/drain/shutdown
// sequence.
package daqctl

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nick/ringdaq/internal/config"
	"github.com/nick/ringdaq/internal/ring"
	"github.com/nick/ringdaq/internal/worker"
)

const supervisionSampleInterval = 500 * time.Millisecond

type workerHandle struct {
	name      string
	spec      config.WorkerSpec
	fn        worker.Func
	cfg       worker.Config
	assign    worker.Assignments
	sources   worker.Sources
	sinks     worker.Sinks
	observers worker.Observers
}

// Controller owns every ring buffer and worker binding for one run.
type Controller struct {
	buffers      []*ring.Buffer
	bufferByName map[string]*ring.Buffer
	workers      []*workerHandle
	hooks        config.Hooks
	runtime      float64 // seconds; 0 means batch mode

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	doneCh chan struct{}

	crashMu sync.Mutex
	crashes []*WorkerCrash
}

// Setup builds every declared ring buffer, resolves every worker's
// callable and configuration, and wires its source/sink/observer
// endpoints, in setup-file declaration order. outputDir is injected into
// every worker's Config as directory_prefix, matching run_daq.py's
// `config_dict["directory_prefix"] = self.out_dir`. No worker goroutine
// is started yet; buffers remain open for NewReaderGroup until Run is
// called.
func Setup(sf *config.SetupFile, common map[string]any, hooks config.Hooks, outputDir string) (*Controller, error) {
	c := &Controller{
		bufferByName: make(map[string]*ring.Buffer),
		hooks:        hooks,
		runtime:      sf.Main.Runtime,
	}

	for _, rb := range sf.RingBuffers {
		l, err := buildLayout(rb.Spec)
		if err != nil {
			return nil, configError(fmt.Sprintf("ring buffer %s", rb.Name), err)
		}
		buf, err := ring.New(rb.Name, rb.Spec.NumSlots, l)
		if err != nil {
			return nil, configError(fmt.Sprintf("ring buffer %s", rb.Name), err)
		}
		c.buffers = append(c.buffers, buf)
		c.bufferByName[rb.Name] = buf
	}

	for _, we := range sf.Workers {
		wh, err := c.bindWorker(we, common, outputDir)
		if err != nil {
			return nil, err
		}
		c.workers = append(c.workers, wh)
	}

	return c, nil
}

func (c *Controller) bindWorker(we config.WorkerEntry, common map[string]any, outputDir string) (*workerHandle, error) {
	if !we.Spec.HasSource() && !we.Spec.RequiresExternalShutdown {
		return nil, configError(fmt.Sprintf("worker %s", we.Name), ErrSourcelessWorker)
	}

	fn, err := worker.Resolve(we.Spec.FileName, we.Spec.FktName)
	if err != nil {
		return nil, configError(fmt.Sprintf("worker %s", we.Name), err)
	}

	cfgMap, err := config.ResolveWorkerConfig(we, common)
	if err != nil {
		return nil, configError(fmt.Sprintf("worker %s", we.Name), err)
	}
	cfg := make(worker.Config, len(cfgMap)+1)
	for k, v := range cfgMap {
		cfg[k] = v
	}
	cfg["directory_prefix"] = outputDir

	assign := worker.Assignments{}
	var sources worker.Sources
	var sinks worker.Sinks
	var observers worker.Observers

	for bufName, role := range we.Spec.RBAssign {
		buf, ok := c.bufferByName[bufName]
		if !ok {
			return nil, configError(fmt.Sprintf("worker %s", we.Name),
				fmt.Errorf("references undeclared ring buffer %q", bufName))
		}
		assign[bufName] = role

		switch role {
		case "read":
			r, err := buf.NewReaderGroup()
			if err != nil {
				return nil, configError(fmt.Sprintf("worker %s", we.Name), err)
			}
			sources = append(sources, r)
		case "write":
			sinks = append(sinks, buf.NewWriter())
		case "observe":
			observers = append(observers, buf.NewObserver())
		default:
			return nil, configError(fmt.Sprintf("worker %s", we.Name),
				fmt.Errorf("unknown RB_assign role %q for %q", role, bufName))
		}
	}

	return &workerHandle{
		name:      we.Name,
		spec:      we.Spec,
		fn:        fn,
		cfg:       cfg,
		assign:    assign,
		sources:   sources,
		sinks:     sinks,
		observers: observers,
	}, nil
}

// Summary reports buffer and worker counts, matching run_daq.py's
// "N buffers created" / "N workers started" startup banner.
func (c *Controller) Summary() string {
	return fmt.Sprintf("%d buffers created, %d workers configured", len(c.buffers), len(c.workers))
}

// Run starts every buffer and worker goroutine, runs the pre-setup hook
// before anything starts and the post-start hook once goroutines are
// spawned, supervises the run to completion (timed or batch mode), drives
// shutdown (every buffer shut down, then the context passed to workers
// cancelled), waits for every worker goroutine to return, runs the
// post-stop hook, and returns the first recorded WorkerCrash, if any.
func (c *Controller) Run(ctx context.Context) error {
	runHook(ctx, "pre-setup", c.hooks.PreSetup)

	c.ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()
	c.doneCh = make(chan struct{}, len(c.workers))

	for _, b := range c.buffers {
		b.Start()
	}

	for i := len(c.workers) - 1; i >= 0; i-- {
		wh := c.workers[i]
		n := wh.spec.NumProcess
		if n < 1 {
			n = 1
		}
		for p := 0; p < n; p++ {
			c.wg.Add(1)
			go c.runWorker(wh)
		}
	}

	runHook(c.ctx, "post-start", c.hooks.PostStart)

	if c.runtime > 0 {
		c.superviseTimed()
	} else {
		c.superviseBatch()
	}

	c.Shutdown()
	c.cancel()
	c.wg.Wait()

	runHook(context.Background(), "post-stop", c.hooks.PostStop)

	return c.firstCrash()
}

func (c *Controller) runWorker(wh *workerHandle) {
	defer c.wg.Done()
	err := wh.fn(c.ctx, wh.sources, wh.sinks, wh.observers, wh.cfg, wh.assign)
	if err != nil {
		log.Printf("daqctl: worker %s exited with error: %v", wh.name, err)
		c.recordCrash(&WorkerCrash{Worker: wh.name, Err: err})
		return
	}
	log.Printf("daqctl: worker %s exited normally", wh.name)
	select {
	case c.doneCh <- struct{}{}:
	default:
	}
}

func (c *Controller) recordCrash(wc *WorkerCrash) {
	c.crashMu.Lock()
	defer c.crashMu.Unlock()
	c.crashes = append(c.crashes, wc)
}

func (c *Controller) firstCrash() error {
	c.crashMu.Lock()
	defer c.crashMu.Unlock()
	if len(c.crashes) == 0 {
		return nil
	}
	return c.crashes[0]
}

// superviseTimed samples status every 500ms, logging progress, until
// Main.Runtime has elapsed, then pauses the head buffer so downstream
// workers can drain their remaining input before Run proceeds to
// Shutdown.
func (c *Controller) superviseTimed() {
	deadline := time.Now().Add(time.Duration(c.runtime * float64(time.Second)))
	ticker := time.NewTicker(supervisionSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			log.Printf("daqctl: %s", c.statusLine())
			if !now.Before(deadline) {
				log.Printf("daqctl: runtime %.1fs elapsed, pausing ingest", c.runtime)
				c.Pause()
				time.Sleep(drainGrace)
				return
			}
		}
	}
}

// drainGrace is how long superviseTimed and superviseBatch let the pipeline
// continue draining after pausing ingest before Run proceeds to Shutdown.
const drainGrace = 500 * time.Millisecond

// superviseBatch samples status every 500ms, logging progress, until the
// first worker goroutine returns nil (batch completion is defined by a single
// worker voluntarily exiting, e.g. a file-backed source reaching EOF —
// matching the original's "keeps running until one worker process exits"
// batch mode), then pauses the head buffer and allows one grace period for
// the rest of the pipeline to drain before Run proceeds to Shutdown.
func (c *Controller) superviseBatch() {
	ticker := time.NewTicker(supervisionSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.doneCh:
			log.Printf("daqctl: a worker exited, pausing ingest")
			c.Pause()
			time.Sleep(drainGrace)
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			log.Printf("daqctl: %s", c.statusLine())
		}
	}
}

// Pause pauses ingest on the head buffer (the first ring buffer declared
// in the setup file), blocking further Writer.Acquire calls there while
// downstream buffers continue to drain.
func (c *Controller) Pause() {
	if len(c.buffers) > 0 {
		c.buffers[0].Pause()
	}
}

// Resume resumes ingest on the head buffer.
func (c *Controller) Resume() {
	if len(c.buffers) > 0 {
		c.buffers[0].Resume()
	}
}

// Shutdown shuts every buffer down in reverse declaration order
// (downstream first), so a worker already blocked writing into a
// downstream buffer is released before its own upstream source buffer
// stops delivering.
func (c *Controller) Shutdown() {
	for i := len(c.buffers) - 1; i >= 0; i-- {
		c.buffers[i].Shutdown()
	}
}

// Status returns a point-in-time snapshot of every buffer, in declaration
// order.
func (c *Controller) Status() []ring.BufferStatus {
	out := make([]ring.BufferStatus, len(c.buffers))
	for i, b := range c.buffers {
		out[i] = b.Status()
	}
	return out
}

func (c *Controller) statusLine() string {
	line := ""
	for i, st := range c.Status() {
		if i > 0 {
			line += " | "
		}
		state := "running"
		if st.ShutdownSet {
			state = "shutdown"
		} else if st.Paused {
			state = "paused"
		}
		line += fmt.Sprintf("%s: %d/%d filled, %d events, %.1f Hz, %s",
			st.Name, st.NFilled, st.NumSlots, st.EventsTotal, st.RateHz, state)
	}
	return line
}
