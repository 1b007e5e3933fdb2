package shell

import "sync"

// Kind is one of the five event kinds spec §4.7 dispatches: INPUT,
// IDL_STDOUT, IDL_STDERR, IDL_CONFIG, TERMINATE. Only INPUT, IDLConfig, and
// Terminate are ever actually queued: response-channel traffic is rendered
// directly from the bus callback (spec §4.7), so IDLStdout/IDLStderr exist
// here purely to keep the taxonomy complete, matching the source's own
// unused EV_IDL_STDOUT/EV_IDL_STDERR constants.
type Kind int

const (
	Input Kind = iota
	IDLStdout
	IDLStderr
	IDLConfig
	Terminate
)

// event is one entry in the event queue.
type event struct {
	kind    Kind
	payload interface{}
}

// eventQueue is the FIFO queue described in spec §5: a single mutex+condition
// guarding a slice, popped by the event-loop thread and pushed by the bus
// network thread and the input thread.
type eventQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue) push(kind Kind, payload interface{}) {
	q.mu.Lock()
	q.items = append(q.items, event{kind: kind, payload: payload})
	q.cond.Broadcast()
	q.mu.Unlock()
}

// pop blocks until an event is available and returns it, preserving FIFO
// order within the queue (spec §5's ordering guarantee).
func (q *eventQueue) pop() event {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e
}
