package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/pkg/audio"
)

// OverflowPolicy selects which segment is discarded when a bounded queue is
// full.
type OverflowPolicy string

const (
	// DropOldest evicts the segment at the front of the queue to make room.
	DropOldest OverflowPolicy = "drop_oldest"

	// DropNewest discards the incoming segment.
	DropNewest OverflowPolicy = "drop_newest"
)

// Queue is the FIFO hand-off between the capture goroutine and the
// transcription worker. Push never blocks the producer; Pop blocks the
// consumer up to a timeout so it can periodically re-check for shutdown
// without busy-waiting.
//
// Utterances are rare relative to audio frames, so the queue is unbounded by
// default; a capacity with an explicit overflow policy can be configured.
type Queue struct {
	mu       sync.Mutex
	items    []audio.Segment
	max      int
	policy   OverflowPolicy
	notEmpty chan struct{}
	metrics  *observe.Metrics
}

// NewQueue creates a segment queue. max ≤ 0 means unbounded; when bounded,
// policy selects the overflow behaviour (DropOldest if empty).
func NewQueue(max int, policy OverflowPolicy, metrics *observe.Metrics) *Queue {
	if policy == "" {
		policy = DropOldest
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Queue{
		max:      max,
		policy:   policy,
		notEmpty: make(chan struct{}, 1),
		metrics:  metrics,
	}
}

// Push appends a segment. It never blocks: when the queue is bounded and
// full, a segment is dropped per the configured policy and counted in the
// dropped-segment metric.
func (q *Queue) Push(seg audio.Segment) {
	q.mu.Lock()
	if q.max > 0 && len(q.items) >= q.max {
		switch q.policy {
		case DropNewest:
			q.mu.Unlock()
			slog.Warn("queue full, dropping incoming segment",
				"seq", seg.Seq, "capacity", q.max)
			q.metrics.RecordDrop(context.Background(), observe.DropQueueFull)
			return
		default: // DropOldest
			dropped := q.items[0]
			rest := make([]audio.Segment, len(q.items)-1, q.max)
			copy(rest, q.items[1:])
			q.items = rest
			slog.Warn("queue full, dropping oldest segment",
				"seq", dropped.Seq, "capacity", q.max)
			q.metrics.RecordDrop(context.Background(), observe.DropQueueFull)
			q.metrics.QueueDepth.Add(context.Background(), -1)
		}
	}
	q.items = append(q.items, seg)
	q.mu.Unlock()

	q.metrics.QueueDepth.Add(context.Background(), 1)
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest segment, blocking up to timeout when the
// queue is empty. The second return value is false on expiry.
func (q *Queue) Pop(timeout time.Duration) (audio.Segment, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if seg, ok := q.tryPop(); ok {
			return seg, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return audio.Segment{}, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-q.notEmpty:
			timer.Stop()
		case <-timer.C:
			// One final attempt in case a push raced the timer.
			return q.tryPop()
		}
	}
}

// Len reports the number of queued segments.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) tryPop() (audio.Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return audio.Segment{}, false
	}
	seg := q.items[0]
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Reset the backing array so consumed segments can be collected.
		q.items = nil
	}
	q.metrics.QueueDepth.Add(context.Background(), -1)
	return seg, true
}
