package ring

import "errors"

// ErrClosed is returned by Writer.Acquire when the buffer is paused or has
// been shut down. Workers treat it as a drain/stop signal, never as a fatal
// error.
var ErrClosed = errors.New("ring: acquire closed (paused or shut down)")

// ErrEndOfStream is returned by Reader.Next once the buffer has been shut
// down and the reader's group has drained every slot committed before
// shutdown. Workers exit cleanly on this error.
var ErrEndOfStream = errors.New("ring: end of stream")

// ErrSlotMisuse reports a programmer error in the endpoint protocol: a
// release of a slot the caller does not hold, a double commit, or a commit
// attempted after shutdown. It is fatal to the offending worker; the
// controller logs it and continues the run toward shutdown.
var ErrSlotMisuse = errors.New("ring: slot misuse")

// ErrLateGroup is returned by NewReaderGroup once the buffer has left its
// setup phase (see Buffer.Start). Reader groups may only be registered
// before any worker begins reading.
var ErrLateGroup = errors.New("ring: reader groups must be registered before the buffer starts")
