package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

func testSegment(seq uint64) audio.Segment {
	return audio.Segment{
		PCM:        make([]float32, testFrameSize),
		SampleRate: testRate,
		Seq:        seq,
	}
}

func TestQueueFIFO(t *testing.T) {
	t.Parallel()
	q := NewQueue(0, "", nil)
	for i := uint64(1); i <= 5; i++ {
		q.Push(testSegment(i))
	}
	if got := q.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
	for i := uint64(1); i <= 5; i++ {
		seg, ok := q.Pop(0)
		if !ok {
			t.Fatalf("Pop returned empty at seq %d", i)
		}
		if seg.Seq != i {
			t.Errorf("popped seq %d, want %d", seg.Seq, i)
		}
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len() = %d after draining, want 0", got)
	}
}

func TestQueuePopTimeout(t *testing.T) {
	t.Parallel()
	q := NewQueue(0, "", nil)

	start := time.Now()
	_, ok := q.Pop(30 * time.Millisecond)
	if ok {
		t.Fatal("Pop on empty queue returned a segment")
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Pop returned after %v, want it to block ~30ms", elapsed)
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	t.Parallel()
	q := NewQueue(0, "", nil)

	done := make(chan audio.Segment, 1)
	go func() {
		seg, ok := q.Pop(2 * time.Second)
		if ok {
			done <- seg
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(testSegment(7))

	select {
	case seg, ok := <-done:
		if !ok {
			t.Fatal("Pop expired instead of receiving the pushed segment")
		}
		if seg.Seq != 7 {
			t.Errorf("popped seq %d, want 7", seg.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueueDropOldest(t *testing.T) {
	t.Parallel()
	q := NewQueue(2, DropOldest, nil)
	q.Push(testSegment(1))
	q.Push(testSegment(2))
	q.Push(testSegment(3))

	if got := q.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	first, _ := q.Pop(0)
	second, _ := q.Pop(0)
	if first.Seq != 2 || second.Seq != 3 {
		t.Errorf("remaining seqs = %d, %d; want 2, 3", first.Seq, second.Seq)
	}
}

func TestQueueDropNewest(t *testing.T) {
	t.Parallel()
	q := NewQueue(2, DropNewest, nil)
	q.Push(testSegment(1))
	q.Push(testSegment(2))
	q.Push(testSegment(3))

	first, _ := q.Pop(0)
	second, _ := q.Pop(0)
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("remaining seqs = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
}

func TestQueueConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()
	q := NewQueue(0, "", nil)
	const n = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= n; i++ {
			q.Push(testSegment(i))
		}
	}()

	var prev uint64
	for received := 0; received < n; received++ {
		seg, ok := q.Pop(2 * time.Second)
		if !ok {
			t.Fatalf("Pop expired after %d segments", received)
		}
		if seg.Seq <= prev {
			t.Fatalf("out of order: seq %d after %d", seg.Seq, prev)
		}
		prev = seg.Seq
	}
	wg.Wait()
}
