package midi

// QueueSize is the capacity used by the serial inputs
const QueueSize = 32

// Queue is a fixed-capacity FIFO ring of events. When full, Put drops the
// oldest unread event to make room; it never blocks and never fails.
//
// A Queue is not safe for concurrent use.
type Queue struct {
	buf  []Event
	head int // index of the oldest event
	size int
}

// NewQueue creates a queue holding at most capacity events
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{buf: make([]Event, capacity)}
}

func (q *Queue) Put(e Event) {
	if q.size == len(q.buf) {
		q.buf[q.head] = Event{}
		q.head = (q.head + 1) % len(q.buf)
		q.size--
	}
	q.buf[(q.head+q.size)%len(q.buf)] = e
	q.size++
}

// Get removes and returns the oldest event
func (q *Queue) Get() (Event, bool) {
	if q.size == 0 {
		return Event{}, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return e, true
}

func (q *Queue) Empty() bool { return q.size == 0 }
func (q *Queue) Full() bool  { return q.size == len(q.buf) }
func (q *Queue) Len() int    { return q.size }
func (q *Queue) Cap() int    { return len(q.buf) }

func (q *Queue) Clear() {
	for i := range q.buf {
		q.buf[i] = Event{}
	}
	q.head = 0
	q.size = 0
}
