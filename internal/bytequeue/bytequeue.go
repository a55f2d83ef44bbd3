// Package bytequeue implements an unbounded FIFO byte buffer as a
// singly-linked list of fixed-size blocks, giving O(1) amortized push
// and pop for the bursty short-read / variable-length-consume pattern
// a radio link sees.
package bytequeue

const blockSize = 4096

type block struct {
	data [blockSize]byte
	next *block
}

// Queue is a FIFO of bytes. Not safe for concurrent use; its owner
// (RadioTransport) has exclusive access to it.
type Queue struct {
	head    *block // block currently being read from
	tail    *block // block currently being written to
	readAt  int    // read cursor into head
	writeAt int    // write cursor into tail
	size    int    // total unread bytes
}

// New returns an empty Queue.
func New() *Queue {
	b := &block{}
	return &Queue{head: b, tail: b}
}

// Push appends b to the queue.
func (q *Queue) Push(b []byte) {
	for len(b) > 0 {
		if q.writeAt == blockSize {
			nb := &block{}
			q.tail.next = nb
			q.tail = nb
			q.writeAt = 0
		}
		n := copy(q.tail.data[q.writeAt:], b)
		q.writeAt += n
		b = b[n:]
		q.size += n
	}
}

// PopInto copies up to len(dst) bytes from the front of the queue into
// dst and returns how many bytes were actually popped.
func (q *Queue) PopInto(dst []byte) int {
	popped := 0
	for popped < len(dst) && q.size > 0 {
		avail := q.blockAvailable()
		if avail == 0 {
			// head block fully drained and not the tail: drop it.
			q.head = q.head.next
			q.readAt = 0
			continue
		}
		n := copy(dst[popped:], q.head.data[q.readAt:q.readAt+avail])
		q.readAt += n
		popped += n
		q.size -= n
	}
	return popped
}

// blockAvailable returns how many unread bytes remain in the head block.
func (q *Queue) blockAvailable() int {
	limit := blockSize
	if q.head == q.tail {
		limit = q.writeAt
	}
	if q.readAt >= limit {
		return 0
	}
	return limit - q.readAt
}

// Len reports how many bytes are currently buffered.
func (q *Queue) Len() int { return q.size }
