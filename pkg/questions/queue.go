// Package questions loads the interview question list and hands questions
// out front to back.
package questions

import "sync"

// Sentinel marks the end of the question list.
const Sentinel = "done"

// Queue is an ordered question list consumed front to back.
type Queue struct {
	mu    sync.Mutex
	items []string
}

// NewQueue copies items. A missing sentinel is implied at the end.
func NewQueue(items []string) *Queue {
	cp := make([]string, len(items))
	copy(cp, items)
	return &Queue{items: cp}
}

// Next dequeues the next question. It returns false at the sentinel or when
// the list is exhausted; the sentinel stays consumed.
func (q *Queue) Next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items = q.items[1:]
	if IsSentinel(head) {
		q.items = nil
		return "", false
	}
	return head, true
}

// Len returns how many questions remain before the sentinel.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if IsSentinel(item) {
			return i
		}
	}
	return len(q.items)
}

// IsSentinel reports whether item terminates the list. The match is exact:
// " done " or "Done" are questions. Load trims file entries before they
// reach the queue.
func IsSentinel(item string) bool {
	return item == Sentinel
}

// WithSentinel returns items terminated by exactly one sentinel; anything
// after an existing sentinel is dropped.
func WithSentinel(items []string) []string {
	out := make([]string, 0, len(items)+1)
	for _, item := range items {
		if IsSentinel(item) {
			break
		}
		out = append(out, item)
	}
	return append(out, Sentinel)
}
