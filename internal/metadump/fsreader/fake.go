package fsreader

import (
	"fmt"

	"github.com/distr1/btrfs-metadump/internal/btrfs"
)

// Fake is a trivial in-memory Reader backing tests: a fixed node size, a
// super-block buffer, a flat map of logical address to raw block bytes,
// and a flat map of logical address to "physical" bytes for data extents.
// Subtrees are modelled as an ordered list of block logical addresses per
// root, good enough to exercise the dumper driver's tree-walking contract
// without a real filesystem.
type Fake struct {
	nodeSize uint64
	super    []byte
	blocks   map[uint64][]byte
	physical map[uint64][]byte
	trees    map[uint64][]uint64 // rootLA -> ordered block LAs, root first

	extentRootLA uint64
	logRootLA    uint64
	treeRootLA   uint64
}

func NewFake(nodeSize uint64, super []byte) *Fake {
	return &Fake{
		nodeSize: nodeSize,
		super:    super,
		blocks:   make(map[uint64][]byte),
		physical: make(map[uint64][]byte),
		trees:    make(map[uint64][]uint64),
	}
}

func (f *Fake) NodeSize() uint64   { return f.nodeSize }
func (f *Fake) SuperBlock() []byte { return f.super }

func (f *Fake) ExtentRootLA() uint64 { return f.extentRootLA }
func (f *Fake) LogRootLA() uint64    { return f.logRootLA }
func (f *Fake) TreeRootLA() uint64   { return f.treeRootLA }

func (f *Fake) SetExtentRootLA(la uint64) { f.extentRootLA = la }
func (f *Fake) SetLogRootLA(la uint64)    { f.logRootLA = la }
func (f *Fake) SetTreeRootLA(la uint64)   { f.treeRootLA = la }

func (f *Fake) PutBlock(la uint64, raw []byte) { f.blocks[la] = raw }

func (f *Fake) PutPhysical(la uint64, raw []byte) { f.physical[la] = raw }

// PutTree registers the ordered block addresses making up the subtree
// rooted at rootLA (conventionally the root itself first, then its
// children); blocks must already have been added with PutBlock.
func (f *Fake) PutTree(rootLA uint64, blockLAs []uint64) { f.trees[rootLA] = blockLAs }

func (f *Fake) ReadBlock(la, size uint64) ([]byte, error) {
	b, ok := f.blocks[la]
	if !ok && la == btrfs.SuperInfoOffset {
		// The super-block lives at its fixed offset like on a real device.
		b, ok = f.super, true
	}
	if !ok {
		return nil, fmt.Errorf("fake: no block at %#x", la)
	}
	if uint64(len(b)) < size {
		return nil, fmt.Errorf("fake: block at %#x shorter than requested size", la)
	}
	out := make([]byte, size)
	copy(out, b[:size])
	return out, nil
}

func (f *Fake) ReadPhysical(la, size uint64) ([]byte, error) {
	b, ok := f.physical[la]
	if !ok {
		return nil, fmt.Errorf("fake: no physical data at %#x", la)
	}
	out := make([]byte, size)
	copy(out, b)
	return out, nil
}

func (f *Fake) Cursor(rootLA uint64) Cursor {
	return &fakeCursor{f: f, blocks: f.trees[rootLA]}
}

type fakeCursor struct {
	f      *Fake
	blocks []uint64
	idx    int
}

func (c *fakeCursor) NextBlock() (uint64, []byte, bool, error) {
	if c.idx >= len(c.blocks) {
		return 0, nil, false, nil
	}
	la := c.blocks[c.idx]
	c.idx++
	raw, ok := c.f.blocks[la]
	if !ok {
		return 0, nil, false, fmt.Errorf("fake: cursor references missing block at %#x", la)
	}
	return la, raw, true, nil
}
