package metadump

import "sync"

// Transform is applied by a worker to one item's buffer: compress on dump,
// decompress on restore. It replaces item.Buffer with the (possibly
// reallocated) output buffer, whose length is the output size, and returns
// an error if the codec failed.
type Transform func(item *WorkItem) error

// WorkItem is a single unit of producer-submitted work: a contiguous LA
// range, its buffer, and (once a worker has run) whether it failed.
type WorkItem struct {
	LA     uint64
	Size   uint64
	Kind   Kind
	Buffer []byte

	// Compressed marks an individual restore item as needing inflation;
	// set by the restore driver from the owning cluster's compress flag.
	Compressed bool

	err error
}

// Pool is the single-mutex worker pool shared by dump and restore, with two
// condition variables: notEmpty wakes workers, ready wakes the drainer. Workers pull from an owning FIFO ingress queue; submission
// order is tracked separately in an owning deque so the writer can drain
// items in exactly the order they were submitted, independent of which
// worker finishes first.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	ready    *sync.Cond

	transform Transform

	queue     []*WorkItem // FIFO ingress, items move out by ownership transfer
	ordered   []*WorkItem // submission-order deque the writer drains from
	numItems  int
	numReady  int
	done      bool
	err       error

	workerCount int
	wg          sync.WaitGroup
}

// NewPool starts n workers, each applying transform to items it dequeues.
// n may be 0, in which case the pool performs no background work and
// Submit runs the transform synchronously in the caller's goroutine — the
// single-threaded fallback §5 permits when compression is disabled.
func NewPool(n int, transform Transform) *Pool {
	p := &Pool{transform: transform, workerCount: n}
	p.notEmpty = sync.NewCond(&p.mu)
	p.ready = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.done {
			p.notEmpty.Wait()
		}
		if len(p.queue) == 0 && p.done {
			p.mu.Unlock()
			return
		}
		item := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if err := p.transform(item); err != nil {
			item.err = err
		}

		p.mu.Lock()
		p.numReady++
		if item.err != nil && p.err == nil {
			p.err = item.err
		}
		p.ready.Broadcast()
		p.mu.Unlock()
	}
}

// Submit hands one item to the pool, appending it to both the ingress
// queue and the submission-order deque. With a synchronous (n=0) pool the
// transform runs immediately in the caller's goroutine.
func (p *Pool) Submit(item *WorkItem) {
	p.mu.Lock()
	p.numItems++
	p.ordered = append(p.ordered, item)
	synchronous := p.workerCount == 0
	p.mu.Unlock()

	if synchronous {
		if err := p.transform(item); err != nil {
			item.err = err
		}
		p.mu.Lock()
		p.numReady++
		if item.err != nil && p.err == nil {
			p.err = item.err
		}
		p.ready.Broadcast()
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.queue = append(p.queue, item)
	p.mu.Unlock()
	p.notEmpty.Signal()
}

// DrainReady blocks until every submitted item has been processed
// (numReady == numItems). It waits on the ready condition variable, woken
// by Broadcast each time a worker (or a synchronous Submit) finishes an
// item, rather than the original's busy-poll on a timed sleep — Go's
// sync.Cond makes the condvar-signalled form available unconditionally,
// so the fallback sleep is not needed here.
func (p *Pool) DrainReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.numReady < p.numItems {
		p.ready.Wait()
	}
}

// TakeOrdered returns and clears the items submitted so far, in submission
// order, once all of them have completed (per DrainReady's contract). It
// also resets numItems/numReady so the pool can start a fresh cluster.
func (p *Pool) TakeOrdered() []*WorkItem {
	p.DrainReady()
	p.mu.Lock()
	items := p.ordered
	p.ordered = nil
	p.numItems = 0
	p.numReady = 0
	p.mu.Unlock()
	return items
}

// Err returns the first error any worker (or a synchronous Submit)
// recorded, if any.
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close marks the pool done, wakes every worker so it can observe that and
// exit, and joins them.
func (p *Pool) Close() {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
	p.notEmpty.Broadcast()
	p.wg.Wait()
}
