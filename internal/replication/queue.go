package replication

// DefaultMaxDepth bounds a queue when no depth is configured.
const DefaultMaxDepth = 64

// Stats counts admission outcomes of one queue.
type Stats struct {
	Accepted uint64
	Gap      uint64 // frame skipped ahead of tail+1
	Stale    uint64 // duplicate or already consumed
	Overflow uint64 // queue full
	Dequeued uint64
}

// Discarded returns the total of rejected records.
func (s Stats) Discarded() uint64 { return s.Gap + s.Stale + s.Overflow }

// InputQueue is the ordered input buffer of one connection. Retained records
// are always contiguous: each frame is its predecessor plus one. Admission is
// the only place ordering is enforced; out-of-order records are dropped and
// counted, never reordered.
//
// Not safe for concurrent use; the game loop owns it.
type InputQueue struct {
	buf      []Input // ring
	head     int
	n        int
	consumed uint32 // frame of the last dequeued record, 0 before the first
	stats    Stats
}

func NewInputQueue(maxDepth int) *InputQueue {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &InputQueue{buf: make([]Input, maxDepth)}
}

// Enqueue offers rec and reports whether it was retained.
//
//	empty queue: accept when rec.Frame is newer than the last dequeued frame
//	otherwise:   accept only rec.Frame == tail+1
//	             rec.Frame >  tail+1 is a gap and is dropped
//	             rec.Frame <= tail is stale and is dropped
//	full queue:  dropped as overflow
func (q *InputQueue) Enqueue(rec Input) bool {
	if q.n == 0 {
		if rec.Frame <= q.consumed {
			q.stats.Stale++
			return false
		}
	} else {
		tail := q.buf[(q.head+q.n-1)%len(q.buf)].Frame
		switch {
		case rec.Frame <= tail:
			q.stats.Stale++
			return false
		case rec.Frame != tail+1:
			q.stats.Gap++
			return false
		}
	}
	if q.n == len(q.buf) {
		q.stats.Overflow++
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = rec
	q.n++
	q.stats.Accepted++
	return true
}

// Dequeue removes and returns the head record.
func (q *InputQueue) Dequeue() (Input, bool) {
	if q.n == 0 {
		return Input{}, false
	}
	rec := q.buf[q.head]
	q.buf[q.head] = Input{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	q.consumed = rec.Frame
	q.stats.Dequeued++
	return rec, true
}

// Peek returns the head record without consuming it.
func (q *InputQueue) Peek() (Input, bool) {
	if q.n == 0 {
		return Input{}, false
	}
	return q.buf[q.head], true
}

func (q *InputQueue) Len() int { return q.n }
func (q *InputQueue) Cap() int { return len(q.buf) }

// LastConsumed returns the frame of the most recently dequeued record.
func (q *InputQueue) LastConsumed() uint32 { return q.consumed }

// Stats returns a copy of the admission counters.
func (q *InputQueue) Stats() Stats { return q.stats }

// Reset drops retained records and forgets the consumed frame, for a client
// that restarts its frame counter after a resync.
func (q *InputQueue) Reset() {
	clear(q.buf)
	q.head, q.n, q.consumed = 0, 0, 0
}
