package timer

import "container/heap"

type queued[T comparable] struct {
	timer Timer[T]
	seq   uint64
}

// timerQueue is a min-heap of distinct timers ordered by timestamp, then by
// insertion. positions tracks the heap slot of every queued timer so a
// deleted timer leaves the heap in O(log n).
type timerQueue[T comparable] struct {
	items     []queued[T]
	positions map[Timer[T]]int
	seq       uint64
}

func newTimerQueue[T comparable]() *timerQueue[T] {
	return &timerQueue[T]{positions: map[Timer[T]]int{}}
}

// heap.Interface, only for the heap package.

func (q *timerQueue[T]) Less(i, j int) bool {
	if q.items[i].timer.Timestamp != q.items[j].timer.Timestamp {
		return q.items[i].timer.Timestamp < q.items[j].timer.Timestamp
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *timerQueue[T]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.positions[q.items[i].timer] = i
	q.positions[q.items[j].timer] = j
}

func (q *timerQueue[T]) Push(x any) {
	item := x.(queued[T])
	q.positions[item.timer] = len(q.items)
	q.items = append(q.items, item)
}

func (q *timerQueue[T]) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	delete(q.positions, item.timer)
	return item
}

func (q *timerQueue[T]) Len() int {
	return len(q.items)
}

// PushTimer queues timer unless an equal one is queued already.
func (q *timerQueue[T]) PushTimer(timer Timer[T]) bool {
	if _, ok := q.positions[timer]; ok {
		return false
	}
	q.seq++
	heap.Push(q, queued[T]{timer: timer, seq: q.seq})
	return true
}

func (q *timerQueue[T]) PopTimer() (Timer[T], bool) {
	if len(q.items) == 0 {
		return Timer[T]{}, false
	}
	return heap.Pop(q).(queued[T]).timer, true
}

func (q *timerQueue[T]) PeekTimer() (Timer[T], bool) {
	if len(q.items) == 0 {
		return Timer[T]{}, false
	}
	return q.items[0].timer, true
}

// Remove deletes timer, reporting whether it was queued.
func (q *timerQueue[T]) Remove(timer Timer[T]) bool {
	index, ok := q.positions[timer]
	if !ok {
		return false
	}
	heap.Remove(q, index)
	return true
}
