package pipeline

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestQueuePushBackIsFIFO(t *testing.T) {
	q := NewQueue()
	q.PushBack(ProcessImage{ImageID: 1})
	q.PushBack(ProcessImage{ImageID: 2})
	q.PushBack(ProcessImage{ImageID: 3})

	for _, want := range []int{1, 2, 3} {
		e, ok := q.Pop()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, e.(ProcessImage).ImageID, test.ShouldEqual, want)
	}
}

func TestQueuePushFrontJumpsTheBacklog(t *testing.T) {
	q := NewQueue()
	q.PushBack(ProcessImage{ImageID: 1})
	q.PushBack(ProcessImage{ImageID: 2})
	q.PushFront(Fail{ImageID: 99})

	e, ok := q.Pop()
	test.That(t, ok, test.ShouldBeTrue)
	_, isFail := e.(Fail)
	test.That(t, isFail, test.ShouldBeTrue)

	e, ok = q.Pop()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, e.(ProcessImage).ImageID, test.ShouldEqual, 1)
}

func TestQueueLenTracksPendingItems(t *testing.T) {
	q := NewQueue()
	test.That(t, q.Len(), test.ShouldEqual, 0)
	q.PushBack(ProcessImage{ImageID: 1})
	q.PushBack(ProcessImage{ImageID: 2})
	test.That(t, q.Len(), test.ShouldEqual, 2)
	_, _ = q.Pop()
	test.That(t, q.Len(), test.ShouldEqual, 1)
}

func TestQueuePopBlocksUntilAnItemArrives(t *testing.T) {
	q := NewQueue()
	result := make(chan Event, 1)
	go func() {
		e, ok := q.Pop()
		if ok {
			result <- e
		} else {
			close(result)
		}
	}()

	select {
	case <-result:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.PushBack(ProcessImage{ImageID: 42})
	select {
	case e := <-result:
		test.That(t, e.(ProcessImage).ImageID, test.ShouldEqual, 42)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop never observed the pushed event")
	}
}

func TestQueueCloseUnblocksPendingPopWithFalse(t *testing.T) {
	q := NewQueue()
	result := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond) // give the goroutine time to block in Pop
	q.Close()

	select {
	case ok := <-result:
		test.That(t, ok, test.ShouldBeFalse)
	case <-time.After(2 * time.Second):
		t.Fatal("Close never unblocked the pending Pop")
	}
}

func TestQueueClosedQueueDrainsThenReturnsFalse(t *testing.T) {
	q := NewQueue()
	q.PushBack(ProcessImage{ImageID: 1})
	q.Close()

	// Close discards any buffered items immediately.
	_, ok := q.Pop()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestQueuePushAfterCloseIsANoOp(t *testing.T) {
	q := NewQueue()
	q.Close()
	q.PushBack(ProcessImage{ImageID: 1})
	q.PushFront(ProcessImage{ImageID: 2})

	_, ok := q.Pop()
	test.That(t, ok, test.ShouldBeFalse)
}
