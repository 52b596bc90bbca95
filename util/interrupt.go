package util

import "sync"

// Interrupt is a process-wide, one-shot cancellation signal. It is closed
// exactly once; after that, IsClosed reports true forever. It backs the
// Cancellation Flag read by the search engine and the session loop.
type Interrupt chan struct{}

var interruptMtx sync.Mutex

// NewInterrupt creates an unset Interrupt.
func NewInterrupt() Interrupt {
	return make(Interrupt)
}

// Close sets the flag. Safe to call more than once or concurrently.
func (i Interrupt) Close() {
	interruptMtx.Lock()
	defer interruptMtx.Unlock()
	if i.IsClosed() {
		return
	}
	close(i)
}

// IsClosed reports whether the flag has been set.
func (i Interrupt) IsClosed() bool {
	select {
	case <-i:
		return true
	default:
		return false
	}
}
