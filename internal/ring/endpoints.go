package ring

// Writer is a worker-visible handle granting write capability on a Buffer.
// Multiple Writer endpoints may exist on one buffer; acquisition contention
// between them is resolved through the buffer's shared free-slot queue.
type Writer struct {
	buf *Buffer
}

// WriteRef is an acquired, not-yet-committed slot. Exactly one of Commit or
// Discard must be called on it.
type WriteRef struct {
	buf *Buffer
	idx int
}

// Acquire pops a free slot, blocking until one is available or the buffer
// is paused/shut down, in which case it returns ErrClosed.
func (w *Writer) Acquire() (*WriteRef, error) {
	idx, err := w.buf.acquire()
	if err != nil {
		return nil, err
	}
	return &WriteRef{buf: w.buf, idx: idx}, nil
}

// WriteScalars encodes vs into the held slot according to the buffer's
// scalar layout.
func (r *WriteRef) WriteScalars(vs []float64) error {
	return r.buf.layout.EncodeScalars(r.buf.slotData(r.idx), vs)
}

// WriteRecord encodes named field values into the held slot according to
// the buffer's record layout.
func (r *WriteRef) WriteRecord(values map[string]float64) error {
	return r.buf.layout.EncodeRecord(r.buf.slotData(r.idx), values)
}

// Commit publishes the slot: assigns its sequence number, fans it out to
// every registered reader group, and makes it visible to Observer.Peek.
func (r *WriteRef) Commit() error {
	return r.buf.commit(r.idx)
}

// Discard returns the slot to the free queue without publishing it.
func (r *WriteRef) Discard() error {
	return r.buf.discard(r.idx)
}

// Reader is a worker-visible handle granting read capability within one
// reader group. Each call to Buffer.NewReaderGroup returns one Reader; every
// goroutine calling Next on that Reader shares the group's ready queue and
// therefore competes for slots (exactly one receives each sequence); every
// distinct group registered on a buffer independently receives every
// committed slot (fan-out).
type Reader struct {
	buf   *Buffer
	group *readerGroup
}

// ReadRef is a dequeued, not-yet-released slot. Release must be called on
// it exactly once.
type ReadRef struct {
	buf   *Buffer
	group *readerGroup
	idx   int
	seq   uint64
}

// Next dequeues the next slot for this reader's group, blocking while the
// group's ready queue is empty and the buffer is not shut down. Once shut
// down with an empty queue, it returns ErrEndOfStream.
func (r *Reader) Next() (*ReadRef, error) {
	idx, seq, err := r.buf.next(r.group)
	if err != nil {
		return nil, err
	}
	return &ReadRef{buf: r.buf, group: r.group, idx: idx, seq: seq}, nil
}

// Sequence returns the slot's commit-assigned sequence number.
func (r *ReadRef) Sequence() uint64 { return r.seq }

// ReadScalars decodes the held slot according to the buffer's scalar
// layout.
func (r *ReadRef) ReadScalars() ([]float64, error) {
	return r.buf.layout.DecodeScalars(r.buf.slotData(r.idx))
}

// ReadRecord decodes the held slot according to the buffer's record
// layout.
func (r *ReadRef) ReadRecord() (map[string]float64, error) {
	return r.buf.layout.DecodeRecord(r.buf.slotData(r.idx))
}

// Release hands the slot back: once every group holding it has released,
// it returns to the free queue.
func (r *ReadRef) Release() error {
	return r.buf.release(r.group, r.idx)
}

// Observer is a worker-visible handle granting non-consuming peek access
// to the most recently committed slot. It never blocks and never holds a
// slot.
type Observer struct {
	buf *Buffer
}

// Snapshot is an immutable copy of the highest-sequence committed slot at
// the moment of Peek.
type Snapshot struct {
	data   []byte
	seq    uint64
	layout interface {
		DecodeScalars([]byte) ([]float64, error)
		DecodeRecord([]byte) (map[string]float64, error)
	}
}

// Sequence returns the snapshot's commit sequence number.
func (s *Snapshot) Sequence() uint64 { return s.seq }

// ReadScalars decodes the snapshot according to the buffer's scalar
// layout.
func (s *Snapshot) ReadScalars() ([]float64, error) {
	return s.layout.DecodeScalars(s.data)
}

// ReadRecord decodes the snapshot according to the buffer's record layout.
func (s *Snapshot) ReadRecord() (map[string]float64, error) {
	return s.layout.DecodeRecord(s.data)
}

// Peek returns a copy of the latest committed slot, or nil if nothing has
// ever been committed. It never blocks and never consumes.
func (o *Observer) Peek() *Snapshot {
	data, seq, ok := o.buf.peek()
	if !ok {
		return nil
	}
	return &Snapshot{data: data, seq: seq, layout: o.buf.layout}
}
