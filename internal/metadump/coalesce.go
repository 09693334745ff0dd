package metadump

// MaxPendingSize is the largest byte span a single pending run (and hence a
// single work item) may cover before it is forced to flush.
const MaxPendingSize = 256 * 1024

// Kind distinguishes a metadata block run from a data extent run.
type Kind int

const (
	KindMetadata Kind = iota
	KindData
)

// BlockSource supplies the bytes backing a pending run once it is ready to
// flush. It is the seam between the coalescer and whatever can actually
// read the source filesystem (fsreader.Reader for dump, nothing for
// restore — restore never coalesces).
type BlockSource interface {
	// ReadMetadata reads and masks nodeSize-aligned metadata blocks
	// covering [start, start+size) into dst.
	ReadMetadata(start, size uint64, dst []byte) error
	// ReadData reads raw data extent bytes at logical address start
	// into dst via the logical-to-physical mapping.
	ReadData(start, size uint64, dst []byte) error
	// Readahead is an advisory hint; its absence must not change
	// correctness, only performance.
	Readahead(start, size uint64)
}

// Run is one flushed, fully-materialised pending run, ready to become a
// work item.
type Run struct {
	Start uint64
	Kind  Kind
	Data  []byte
}

// Coalescer accumulates a single contiguous, same-kind pending run and
// flushes it to a sink whenever adjacency breaks, the kind changes, or the
// run would exceed MaxPendingSize.
type Coalescer struct {
	src  BlockSource
	sink func(Run) error

	pendingStart uint64
	pendingSize  uint64
	pendingKind  Kind
	hasPending   bool
}

func NewCoalescer(src BlockSource, sink func(Run) error) *Coalescer {
	return &Coalescer{src: src, sink: sink}
}

// Add appends one (start, size, kind) tuple, flushing the current run first
// if it cannot be extended to cover it.
func (c *Coalescer) Add(start, size uint64, kind Kind) error {
	if c.hasPending {
		breaks := c.pendingKind != kind ||
			c.pendingSize+size > MaxPendingSize ||
			c.pendingStart+c.pendingSize != start
		if breaks {
			if err := c.Flush(); err != nil {
				return err
			}
		}
	}
	if !c.hasPending {
		c.pendingStart = start
		c.pendingSize = 0
		c.pendingKind = kind
		c.hasPending = true
	}
	c.pendingSize += size
	c.src.Readahead(start, size)
	return nil
}

// Flush materialises the current pending run (if any) and submits it to
// the sink, then resets coalescer state so a subsequent Add starts a fresh
// run.
func (c *Coalescer) Flush() error {
	if !c.hasPending || c.pendingSize == 0 {
		c.hasPending = false
		c.pendingSize = 0
		return nil
	}
	buf := make([]byte, c.pendingSize)
	var err error
	switch c.pendingKind {
	case KindMetadata:
		err = c.src.ReadMetadata(c.pendingStart, c.pendingSize, buf)
	case KindData:
		err = c.src.ReadData(c.pendingStart, c.pendingSize, buf)
	}
	run := Run{Start: c.pendingStart, Kind: c.pendingKind, Data: buf}
	c.hasPending = false
	c.pendingSize = 0
	if err != nil {
		return err
	}
	return c.sink(run)
}
