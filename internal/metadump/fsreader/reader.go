// Package fsreader defines the boundary between the metadump engine and an
// already-open source filesystem. Spec-wise this collaborator is out of
// scope (opening and parsing a live btrfs volume is not part of this
// module); what is in scope is the seam itself, so the dumper driver can be
// built and tested against a fake without a real block device.
package fsreader

import "github.com/distr1/btrfs-metadump/internal/btrfs"

// Reader is everything the dumper driver needs from a live filesystem: a
// way to read a block by logical address, a way to read raw device bytes
// behind a logical data extent, resolved root addresses for the trees it
// walks, and cursors over those trees.
//
// Resolving a tree's root address (and walking from the root tree to find
// it) is left to the implementation: Fake is handed the addresses, and
// Device reads them from the super-block or, for the extent tree, walks
// the tree-root for its root item.
type Reader interface {
	NodeSize() uint64

	// SuperBlock returns the raw, unmasked bytes of the primary
	// super-block (always SuperInfoSize long).
	SuperBlock() []byte

	// ExtentRootLA, LogRootLA and TreeRootLA return the logical
	// addresses of the extent tree's root, the log-root tree's root
	// (0 if the filesystem carries no log), and the tree-root's root,
	// respectively.
	ExtentRootLA() uint64
	LogRootLA() uint64
	TreeRootLA() uint64

	// ReadBlock reads exactly size raw, unmasked bytes starting at
	// logical address la.
	ReadBlock(la, size uint64) ([]byte, error)

	// ReadPhysical reads raw data extent bytes at logical address la by
	// resolving la to one or more physical device ranges and reading
	// them in turn.
	ReadPhysical(la, size uint64) ([]byte, error)

	// Cursor opens a B-tree cursor rooted at the tree block with
	// logical address rootLA, visiting every block of the subtree
	// (internal nodes and leaves alike) in traversal order.
	Cursor(rootLA uint64) Cursor
}

// Cursor iterates every tree block of one subtree.
type Cursor interface {
	// NextBlock returns the logical address and raw bytes of the next
	// tree block (internal node or leaf), or ok=false once the subtree
	// is exhausted.
	NextBlock() (la uint64, raw []byte, ok bool, err error)
}

// DecodeLeafAt is a convenience wrapper combining ReadBlock with
// btrfs.DecodeLeaf, for reading one leaf's item array without going
// through a Cursor. The dumper's own tree walks use Cursors instead.
func DecodeLeafAt(r Reader, la uint64) (btrfs.Leaf, []byte, error) {
	raw, err := r.ReadBlock(la, r.NodeSize())
	if err != nil {
		return btrfs.Leaf{}, nil, err
	}
	return btrfs.DecodeLeaf(raw), raw, nil
}
