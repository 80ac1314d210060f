package rsbus

// QueueCapacity is the number of frames a connection can hold before
// they are handed to the pulse handler.
const QueueCapacity = 16

// Queue is a bounded FIFO of frames awaiting their slot.
// It's owned by a single Connection and is not safe for concurrent use.
type Queue struct {
	buf  [QueueCapacity]Frame
	head int
	size int
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return q.size
}

// Push appends a frame. It's silently dropped when the queue is full.
func (q *Queue) Push(f Frame) {
	if q.size == QueueCapacity {
		return
	}
	q.buf[(q.head+q.size)%QueueCapacity] = f
	q.size++
}

// Peek returns the oldest frame without removing it.
func (q *Queue) Peek() (Frame, bool) {
	if q.size == 0 {
		return 0, false
	}
	return q.buf[q.head], true
}

// Pop removes the oldest frame. An empty queue returns 0, false.
func (q *Queue) Pop() (Frame, bool) {
	f, ok := q.Peek()
	if ok {
		q.head = (q.head + 1) % QueueCapacity
		q.size--
	}
	return f, ok
}

// Clear drops all frames.
func (q *Queue) Clear() {
	q.head, q.size = 0, 0
}
