package scheduler

// readyQueue holds the IDs of tasks whose dependencies are satisfied but
// which have not been dispatched. Ordered by descending priority, FIFO
// within a priority. Guarded by the Scheduler mutex.
type readyQueue struct {
	items []readyItem
	seq   uint64
}

type readyItem struct {
	id       string
	priority int
	seq      uint64
}

func newReadyQueue() *readyQueue {
	return &readyQueue{}
}

// push inserts a task ID behind every queued task of equal or higher
// priority.
func (q *readyQueue) push(id string, priority int) {
	q.seq++
	item := readyItem{id: id, priority: priority, seq: q.seq}

	pos := len(q.items)
	for i, existing := range q.items {
		if existing.priority < priority {
			pos = i
			break
		}
	}

	q.items = append(q.items, readyItem{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
}

// ids returns the queued task IDs in dispatch order.
func (q *readyQueue) ids() []string {
	out := make([]string, len(q.items))
	for i, item := range q.items {
		out[i] = item.id
	}
	return out
}

// remove deletes a task ID from the queue. Returns false if absent.
func (q *readyQueue) remove(id string) bool {
	for i, item := range q.items {
		if item.id == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// contains reports whether a task ID is queued.
func (q *readyQueue) contains(id string) bool {
	for _, item := range q.items {
		if item.id == id {
			return true
		}
	}
	return false
}

func (q *readyQueue) len() int {
	return len(q.items)
}
