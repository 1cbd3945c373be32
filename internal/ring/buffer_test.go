package ring

import (
	"sync"
	"testing"
	"time"

	"github.com/nick/ringdaq/internal/layout"
)

func mustScalarLayout(t *testing.T, channels int) *layout.Layout {
	t.Helper()
	l, err := layout.NewScalar(layout.Float64, channels)
	if err != nil {
		t.Fatalf("NewScalar: %v", err)
	}
	return l
}

// S1: single producer, single consumer.
func TestSingleProducerSingleConsumer(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, err := New("RB_1", 4, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reader, err := buf.NewReaderGroup()
	if err != nil {
		t.Fatalf("NewReaderGroup: %v", err)
	}
	writer := buf.NewWriter()
	buf.Start()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			ref, err := writer.Acquire()
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			if err := ref.WriteScalars([]float64{float64(i)}); err != nil {
				t.Errorf("WriteScalars: %v", err)
			}
			if err := ref.Commit(); err != nil {
				t.Errorf("Commit: %v", err)
			}
		}
	}()

	for i := 1; i <= n; i++ {
		ref, err := reader.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ref.Sequence() != uint64(i) {
			t.Errorf("sequence = %d, want %d", ref.Sequence(), i)
		}
		vs, err := ref.ReadScalars()
		if err != nil {
			t.Fatalf("ReadScalars: %v", err)
		}
		if vs[0] != float64(i) {
			t.Errorf("value = %v, want %v", vs[0], i)
		}
		if err := ref.Release(); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	wg.Wait()

	st := buf.Status()
	if st.EventsTotal != n {
		t.Errorf("EventsTotal = %d, want %d", st.EventsTotal, n)
	}
	if st.NFilled != 0 {
		t.Errorf("NFilled = %d, want 0 at quiescence", st.NFilled)
	}
}

// S2: fan-out — two independent reader groups each see every commit, in
// order.
func TestFanOut(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 4, l)
	g1, _ := buf.NewReaderGroup()
	g2, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	const n = 50
	go func() {
		for i := 1; i <= n; i++ {
			ref, _ := writer.Acquire()
			ref.WriteScalars([]float64{float64(i)})
			ref.Commit()
		}
	}()

	var wg sync.WaitGroup
	drain := func(r *Reader) {
		defer wg.Done()
		for want := uint64(1); want <= n; want++ {
			ref, err := r.Next()
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			if ref.Sequence() != want {
				t.Errorf("group saw sequence %d, want %d", ref.Sequence(), want)
			}
			ref.Release()
		}
	}
	wg.Add(2)
	go drain(g1)
	go drain(g2)
	wg.Wait()

	st := buf.Status()
	if st.NFilled != 0 {
		t.Errorf("NFilled = %d, want 0 once both groups drained", st.NFilled)
	}
}

// S3: competing consumers — within one group, the union of what readers
// receive is exactly the committed sequence range with no duplicates.
func TestCompetingConsumers(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 8, l)
	reader, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	const n = 300
	const readers = 3

	go func() {
		for i := 1; i <= n; i++ {
			ref, _ := writer.Acquire()
			ref.WriteScalars([]float64{float64(i)})
			ref.Commit()
		}
	}()

	seen := make([]bool, n+1)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(readers)
	for k := 0; k < readers; k++ {
		go func() {
			defer wg.Done()
			for {
				ref, err := reader.Next()
				if err != nil {
					return
				}
				mu.Lock()
				seq := ref.Sequence()
				if seen[seq] {
					t.Errorf("sequence %d delivered twice", seq)
				}
				seen[seq] = true
				mu.Unlock()
				ref.Release()
			}
		}()
	}

	// Give the producer/consumers time to finish, then shut down so the
	// readers' blocking Next calls return EndOfStream.
	time.Sleep(200 * time.Millisecond)
	buf.Shutdown()
	wg.Wait()

	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Errorf("sequence %d never delivered", i)
		}
	}
}

// S4: backpressure — a slow consumer blocks the producer's acquire, so the
// producer never runs more than N+1 events ahead of the consumer.
func TestBackpressure(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 2, l)
	reader, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	produced := 0
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			ref, err := writer.Acquire()
			if err != nil {
				return
			}
			produced++
			ref.WriteScalars([]float64{float64(produced)})
			ref.Commit()
		}
	}()

	consumed := 0
	go func() {
		for {
			ref, err := reader.Next()
			if err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
			consumed++
			ref.Release()
		}
	}()

	time.Sleep(100 * time.Millisecond)
	close(stop)
	buf.Shutdown()
	time.Sleep(20 * time.Millisecond)

	if consumed == 0 {
		t.Error("expected some events to be consumed")
	}
	if produced-consumed > buf.NumSlots()+1 {
		t.Errorf("producer ran too far ahead: produced=%d consumed=%d", produced, consumed)
	}
}

// S5: pause/resume — pausing closes the writer, draining continues, and
// sequence numbering resumes without a gap.
func TestPauseResume(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 4, l)
	reader, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	for i := 1; i <= 50; i++ {
		ref, _ := writer.Acquire()
		ref.WriteScalars([]float64{float64(i)})
		ref.Commit()
		rr, err := reader.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		rr.Release()
	}

	buf.Pause()
	if _, err := writer.Acquire(); err != ErrClosed {
		t.Errorf("Acquire after pause = %v, want ErrClosed", err)
	}

	buf.Resume()
	ref, err := writer.Acquire()
	if err != nil {
		t.Fatalf("Acquire after resume: %v", err)
	}
	ref.WriteScalars([]float64{51})
	if err := ref.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	rr, err := reader.Next()
	if err != nil {
		t.Fatalf("Next after resume: %v", err)
	}
	if rr.Sequence() != 51 {
		t.Errorf("sequence after resume = %d, want 51", rr.Sequence())
	}
}

// S6: shutdown drain — a reader receives every slot committed before
// shutdown, then EndOfStream; the writer observes Closed.
func TestShutdownDrain(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 20, l)
	reader, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	for i := 1; i <= 20; i++ {
		ref, _ := writer.Acquire()
		ref.WriteScalars([]float64{float64(i)})
		ref.Commit()
	}
	buf.Shutdown()

	for i := 1; i <= 20; i++ {
		ref, err := reader.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if ref.Sequence() != uint64(i) {
			t.Errorf("sequence = %d, want %d", ref.Sequence(), i)
		}
		ref.Release()
	}
	if _, err := reader.Next(); err != ErrEndOfStream {
		t.Errorf("final Next() = %v, want ErrEndOfStream", err)
	}
	if _, err := writer.Acquire(); err != ErrClosed {
		t.Errorf("Acquire after shutdown = %v, want ErrClosed", err)
	}
}

func TestObserverPeekEmptyThenLatest(t *testing.T) {
	l := mustScalarLayout(t, 2)
	buf, _ := New("RB_1", 4, l)
	observer := buf.NewObserver()
	writer := buf.NewWriter()
	buf.Start()

	if snap := observer.Peek(); snap != nil {
		t.Error("Peek on a fresh buffer should return nil")
	}

	ref, _ := writer.Acquire()
	ref.WriteScalars([]float64{1, 2})
	ref.Commit()

	ref2, _ := writer.Acquire()
	ref2.WriteScalars([]float64{3, 4})
	ref2.Commit()

	snap := observer.Peek()
	if snap == nil {
		t.Fatal("Peek returned nil after commits")
	}
	if snap.Sequence() != 2 {
		t.Errorf("Peek sequence = %d, want 2 (latest)", snap.Sequence())
	}
	vs, err := snap.ReadScalars()
	if err != nil {
		t.Fatalf("ReadScalars: %v", err)
	}
	if vs[0] != 3 || vs[1] != 4 {
		t.Errorf("Peek values = %v, want [3 4]", vs)
	}
}

func TestObserverNoGroupsCommitReturnsToFree(t *testing.T) {
	// Boundary: G=0 means readyCount is 0 at commit, so the slot returns to
	// free_q immediately.
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 2, l)
	writer := buf.NewWriter()
	buf.Start()

	ref, _ := writer.Acquire()
	ref.WriteScalars([]float64{1})
	if err := ref.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	st := buf.Status()
	if st.NFilled != 0 {
		t.Errorf("NFilled = %d, want 0 when there are no reader groups", st.NFilled)
	}
}

func TestSingleSlotBuffer(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, err := New("RB_1", 1, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reader, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	for i := 1; i <= 5; i++ {
		ref, err := writer.Acquire()
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		ref.WriteScalars([]float64{float64(i)})
		ref.Commit()
		rr, err := reader.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rr.Sequence() != uint64(i) {
			t.Errorf("sequence = %d, want %d", rr.Sequence(), i)
		}
		rr.Release()
	}
}

func TestDiscardReturnsSlotWithoutPublishing(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 1, l)
	writer := buf.NewWriter()
	buf.Start()

	ref, _ := writer.Acquire()
	ref.WriteScalars([]float64{99})
	if err := ref.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	st := buf.Status()
	if st.EventsTotal != 0 {
		t.Errorf("EventsTotal = %d, want 0 after discard", st.EventsTotal)
	}
	if st.NFilled != 0 {
		t.Errorf("NFilled = %d, want 0 after discard", st.NFilled)
	}
}

func TestReleaseWithoutHoldIsSlotMisuse(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 2, l)
	reader, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	ref, _ := writer.Acquire()
	ref.WriteScalars([]float64{1})
	ref.Commit()

	rr, _ := reader.Next()
	rr.Release()
	if err := rr.Release(); err == nil {
		t.Error("expected error releasing an already-released slot")
	}
}

func TestLateReaderGroupRejected(t *testing.T) {
	l := mustScalarLayout(t, 1)
	buf, _ := New("RB_1", 2, l)
	buf.Start()
	if _, err := buf.NewReaderGroup(); err != ErrLateGroup {
		t.Errorf("NewReaderGroup after Start = %v, want ErrLateGroup", err)
	}
}

func TestRecordRoundTripThroughBuffer(t *testing.T) {
	rl, err := layout.NewRecord([]layout.Field{
		{Name: "t", Kind: layout.Uint64},
		{Name: "amp", Kind: layout.Float32},
	})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	buf, _ := New("RB_1", 2, rl)
	reader, _ := buf.NewReaderGroup()
	writer := buf.NewWriter()
	buf.Start()

	ref, _ := writer.Acquire()
	in := map[string]float64{"t": 42, "amp": 0.5}
	if err := ref.WriteRecord(in); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	ref.Commit()

	rr, _ := reader.Next()
	out, err := rr.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	for k, v := range in {
		if out[k] != v {
			t.Errorf("field %q = %v, want %v", k, out[k], v)
		}
	}
}
