package metadump

import (
	"errors"
	"testing"
	"time"
)

func TestPoolSynchronousFallback(t *testing.T) {
	var ran []uint64
	p := NewPool(0, func(item *WorkItem) error {
		ran = append(ran, item.LA)
		return nil
	})
	defer p.Close()

	p.Submit(&WorkItem{LA: 1})
	p.Submit(&WorkItem{LA: 2})

	// With n=0, Submit must have run the transform inline before returning.
	if len(ran) != 2 {
		t.Fatalf("synchronous pool should run the transform during Submit, got %d runs", len(ran))
	}

	items := p.TakeOrdered()
	if len(items) != 2 || items[0].LA != 1 || items[1].LA != 2 {
		t.Fatalf("TakeOrdered = %+v, want LA 1 then 2", items)
	}
}

func TestPoolPreservesSubmissionOrder(t *testing.T) {
	// Workers finish out of order (larger LA sleeps less), but TakeOrdered
	// must still hand back items in submission order.
	p := NewPool(4, func(item *WorkItem) error {
		time.Sleep(time.Duration(10-item.LA) * time.Millisecond)
		return nil
	})
	defer p.Close()

	for la := uint64(1); la <= 8; la++ {
		p.Submit(&WorkItem{LA: la})
	}

	items := p.TakeOrdered()
	if len(items) != 8 {
		t.Fatalf("got %d items, want 8", len(items))
	}
	for i, it := range items {
		if it.LA != uint64(i+1) {
			t.Fatalf("items[%d].LA = %d, want %d (submission order)", i, it.LA, i+1)
		}
	}
}

func TestPoolRecordsFirstError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(2, func(item *WorkItem) error {
		if item.LA == 2 {
			return boom
		}
		return nil
	})
	defer p.Close()

	p.Submit(&WorkItem{LA: 1})
	p.Submit(&WorkItem{LA: 2})
	p.Submit(&WorkItem{LA: 3})
	p.TakeOrdered()

	if err := p.Err(); !errors.Is(err, boom) {
		t.Fatalf("Err() = %v, want %v", err, boom)
	}
}

func TestPoolClosedWorkersExit(t *testing.T) {
	p := NewPool(3, func(item *WorkItem) error { return nil })
	p.Close()
	// Close must return once every worker has observed done and exited;
	// the test hangs if it does not.
}
