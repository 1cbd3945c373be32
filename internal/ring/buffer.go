// Package ring implements the multi-slot shared-memory ring buffer at the
// heart of the pipeline: a fixed pool of N fixed-layout slots, writer/
// reader/observer endpoints over it, per-reader-group fan-out with
// competing consumers within a group, intrinsic backpressure, pause/resume
// of ingest, and coordinated drain-on-shutdown.
//
// A Buffer is shared by reference across every goroutine that touches it —
// this is the in-process analogue of the shared-memory segment the original
// multi-process design relies on. Endpoints (Writer, Reader, Observer) are
// thin, stateful views over a Buffer; writers and readers work on slot
// storage in place, while Observer.Peek returns a copy of the latest commit.
package ring

import (
	"fmt"
	"sync"
	"time"

	"github.com/nick/ringdaq/internal/layout"
)

const defaultSampleInterval = 500 * time.Millisecond

// BufferStatus is a point-in-time snapshot returned by Buffer.Status,
// matching spec.md §4.1's buffer_status() contract and §6's status line.
type BufferStatus struct {
	Name        string
	NumSlots    int
	NFilled     int
	EventsTotal uint64
	RateHz      float64
	Paused      bool
	ShutdownSet bool
}

// Buffer is a fixed pool of N slots of identical Layout, with a free-slot
// queue, one ready queue per registered reader group, a rate meter, and
// pause/shutdown flags. See spec.md §3 for the full invariant set.
type Buffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	name   string
	layout *layout.Layout

	slots  []*slot
	freeQ  []int
	groups []*readerGroup

	nextSeq     uint64
	eventsTotal uint64

	paused   bool
	shutdown bool
	started  bool // true once Start has been called; gates new reader groups

	lastSnapshot []byte
	lastSeq      uint64
	hasSnapshot  bool

	rate *rateMeter
}

// New allocates a Buffer of n slots of the given layout, all initially
// FREE. Reader-group count starts at 0; call NewReaderGroup for each
// worker definition that reads from this buffer before Start.
func New(name string, n int, l *layout.Layout) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("ring: number_of_slots must be positive, got %d", n)
	}
	if l == nil {
		return nil, fmt.Errorf("ring: layout must not be nil")
	}
	b := &Buffer{
		name:   name,
		layout: l,
		slots:  make([]*slot, n),
		freeQ:  make([]int, 0, n),
		rate:   newRateMeter(defaultSampleInterval),
	}
	for i := 0; i < n; i++ {
		b.slots[i] = newSlot(l.Size(), 0)
		b.freeQ = append(b.freeQ, i)
	}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Name returns the buffer's declared name (e.g. "RB_1").
func (b *Buffer) Name() string { return b.name }

// Layout returns the buffer's fixed slot layout.
func (b *Buffer) Layout() *layout.Layout { return b.layout }

// NumSlots returns N, the fixed slot count.
func (b *Buffer) NumSlots() int { return len(b.slots) }

// NewReaderGroup allocates a new reader group, whose ready queue begins
// empty. Groups may only be created before the buffer starts (spec.md §9,
// Open Question "Late reader-group registration" — resolved as option (i):
// require all groups created before workers start).
func (b *Buffer) NewReaderGroup() (*Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil, ErrLateGroup
	}

	g := &readerGroup{id: len(b.groups)}
	b.groups = append(b.groups, g)
	for _, s := range b.slots {
		s.growGroups(len(b.groups))
	}
	return &Reader{buf: b, group: g}, nil
}

// NewWriter grants write capability. Multiple writers may be created for
// one buffer; contention between them is resolved through the shared
// free-slot queue.
func (b *Buffer) NewWriter() *Writer {
	return &Writer{buf: b}
}

// NewObserver grants non-consuming peek capability.
func (b *Buffer) NewObserver() *Observer {
	return &Observer{buf: b}
}

// Start flips the buffer out of its setup phase, rejecting any further
// NewReaderGroup calls. The controller calls this once, for every buffer,
// immediately before spawning worker goroutines.
func (b *Buffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
}

// Pause toggles paused on. It only blocks future Writer.Acquire calls;
// readers continue to drain already-committed slots.
func (b *Buffer) Pause() {
	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Resume toggles paused off, unblocking any writer waiting on Acquire.
func (b *Buffer) Resume() {
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Shutdown sets the shutdown flag, waking every blocked writer (which will
// observe ErrClosed) and every blocked reader (which drains its remaining
// ready queue, then observes ErrEndOfStream). No new acquires succeed after
// this call; already-held slots may still be released.
func (b *Buffer) Shutdown() {
	b.mu.Lock()
	b.shutdown = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// IsShutdown reports whether Shutdown has been called.
func (b *Buffer) IsShutdown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdown
}

// Status returns a point-in-time snapshot of the buffer's occupancy and
// commit rate, sampling the rate meter against wall-clock time. The
// controller's supervision loop calls this roughly every 0.5s, which is
// also the cadence the rate meter's EWMA half-life assumes.
func (b *Buffer) Status() BufferStatus {
	b.mu.Lock()
	n := len(b.slots)
	filled := n - len(b.freeQ)
	events := b.eventsTotal
	paused := b.paused
	shutdown := b.shutdown
	b.mu.Unlock()

	rate := b.rate.sample(time.Now(), events)

	return BufferStatus{
		Name:        b.name,
		NumSlots:    n,
		NFilled:     filled,
		EventsTotal: events,
		RateHz:      rate,
		Paused:      paused,
		ShutdownSet: shutdown,
	}
}

// acquire implements Writer.Acquire: pop a free slot index, blocking while
// none is available and the buffer is neither paused nor shut down.
func (b *Buffer) acquire() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.freeQ) == 0 && !b.paused && !b.shutdown {
		b.cond.Wait()
	}

	if b.paused || b.shutdown {
		return -1, ErrClosed
	}

	idx := b.freeQ[0]
	b.freeQ = b.freeQ[1:]
	b.slots[idx].state = slotInWrite
	return idx, nil
}

// commit implements Writer.Commit: assigns the next sequence number,
// fans the slot out to every registered group's ready queue, and updates
// the event count. If no groups are registered, the slot returns to
// free_q immediately (spec.md §8, boundary "G=0").
func (b *Buffer) commit(idx int) error {
	b.mu.Lock()
	s := b.slots[idx]
	if s.state != slotInWrite {
		b.mu.Unlock()
		return fmt.Errorf("%w: commit of slot not held by a writer", ErrSlotMisuse)
	}
	if b.shutdown {
		// Return the slot to free_q rather than stranding it IN_WRITE.
		s.state = slotFree
		b.freeQ = append(b.freeQ, idx)
		b.mu.Unlock()
		return fmt.Errorf("%w: commit after shutdown", ErrSlotMisuse)
	}

	b.nextSeq++
	seq := b.nextSeq
	s.seq = seq
	s.readyCount = len(b.groups)
	s.state = slotPublished
	for i := range s.pendingRelease {
		s.pendingRelease[i] = false
	}
	for _, g := range b.groups {
		g.push(idx)
	}
	b.eventsTotal++

	if b.lastSnapshot == nil {
		b.lastSnapshot = make([]byte, len(s.data))
	}
	copy(b.lastSnapshot, s.data)
	b.lastSeq = seq
	b.hasSnapshot = true

	if len(b.groups) == 0 {
		s.state = slotFree
		b.freeQ = append(b.freeQ, idx)
	}

	b.mu.Unlock()
	b.cond.Broadcast()
	return nil
}

// discard implements Writer.Discard: returns the slot to free_q without
// publishing it.
func (b *Buffer) discard(idx int) error {
	b.mu.Lock()
	s := b.slots[idx]
	if s.state != slotInWrite {
		b.mu.Unlock()
		return fmt.Errorf("%w: discard of slot not held by a writer", ErrSlotMisuse)
	}
	s.state = slotFree
	b.freeQ = append(b.freeQ, idx)
	b.mu.Unlock()
	b.cond.Broadcast()
	return nil
}

// next implements Reader.Next for group g: pop from the group's ready
// queue, blocking while empty and not shut down.
func (b *Buffer) next(g *readerGroup) (int, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(g.readyQ) == 0 && !b.shutdown {
		b.cond.Wait()
	}

	idx, ok := g.pop()
	if !ok {
		return -1, 0, ErrEndOfStream
	}

	s := b.slots[idx]
	s.pendingRelease[g.id] = true
	return idx, s.seq, nil
}

// release implements Reader.Release for group g: decrement the slot's
// ready_count; if it reaches zero, return the slot to free_q.
func (b *Buffer) release(g *readerGroup, idx int) error {
	b.mu.Lock()
	s := b.slots[idx]
	if !s.pendingRelease[g.id] {
		b.mu.Unlock()
		return fmt.Errorf("%w: release of slot %d not held by group %d", ErrSlotMisuse, idx, g.id)
	}
	s.pendingRelease[g.id] = false
	s.readyCount--
	if s.readyCount == 0 {
		s.state = slotFree
		b.freeQ = append(b.freeQ, idx)
	}
	b.mu.Unlock()
	b.cond.Broadcast()
	return nil
}

// peek implements Observer.Peek: a copy of the highest-sequence committed
// slot, or ok=false if nothing has ever been committed.
func (b *Buffer) peek() (data []byte, seq uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasSnapshot {
		return nil, 0, false
	}
	out := make([]byte, len(b.lastSnapshot))
	copy(out, b.lastSnapshot)
	return out, b.lastSeq, true
}

func (b *Buffer) slotData(idx int) []byte {
	return b.slots[idx].data
}
