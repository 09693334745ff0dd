package metadump

import (
	"github.com/distr1/btrfs-metadump/internal/btrfs"
)

// BlockSize is the fixed size of a cluster's header+index block and the
// alignment every cluster is padded to.
const BlockSize = 1024

const clusterMagic uint64 = 0xbd5c25e27295668b

// CompressNone and CompressZlib are the two values the cluster header's
// compress byte can carry.
const (
	CompressNone = 0
	CompressZlib = 1
)

// clusterHeaderSize is the on-disk size of (magic, bytenr, nritems,
// compress): 8 + 8 + 4 + 1.
const clusterHeaderSize = 21

// itemDescriptorSize is the on-disk size of one (bytenr, size) pair.
const itemDescriptorSize = 12

// ItemsPerCluster is the maximum number of item descriptors that fit in
// one BlockSize header block alongside the fixed header.
const ItemsPerCluster = (BlockSize - clusterHeaderSize) / itemDescriptorSize

// ItemDescriptor is one entry in a cluster's index: the logical address and
// stored byte size of one payload.
type ItemDescriptor struct {
	LA   uint64
	Size uint32
}

// ClusterHeader is the decoded form of a cluster's header block, not
// including its item descriptors.
type ClusterHeader struct {
	Magic    uint64
	ByteNr   uint64
	NRItems  uint32
	Compress uint8
}

// EncodeClusterHeader writes the header block for a cluster starting at
// byteNr with the given items and compress flag, zero-padded to BlockSize.
func EncodeClusterHeader(byteNr uint64, items []ItemDescriptor, compress uint8) []byte {
	buf := make([]byte, BlockSize)
	w := btrfs.NewWriter(buf)
	w.PutUint64(clusterMagic)
	w.PutUint64(byteNr)
	w.PutUint32(uint32(len(items)))
	w.PutUint8(compress)
	for _, it := range items {
		w.PutUint64(it.LA)
		w.PutUint32(it.Size)
	}
	return buf
}

// DecodeClusterHeader parses a BlockSize header block. expectedByteNr is
// the reader's running offset; a mismatched ByteNr or bad magic is a fatal
// framing error per §4.1/§7.
func DecodeClusterHeader(buf []byte, expectedByteNr uint64) (ClusterHeader, []ItemDescriptor, error) {
	if len(buf) < clusterHeaderSize {
		return ClusterHeader{}, nil, ErrFraming("cluster header", errShortHeader)
	}
	r := btrfs.NewReader(buf)
	var h ClusterHeader
	h.Magic = r.Uint64()
	h.ByteNr = r.Uint64()
	h.NRItems = r.Uint32()
	h.Compress = r.Uint8()
	if h.Magic != clusterMagic {
		return h, nil, ErrFraming("cluster header", errBadMagic)
	}
	if h.ByteNr != expectedByteNr {
		return h, nil, ErrFraming("cluster header", errBadByteNr)
	}
	maxItems := (len(buf) - clusterHeaderSize) / itemDescriptorSize
	n := int(h.NRItems)
	if n > maxItems {
		return h, nil, ErrFraming("cluster header", errTooManyItems)
	}
	items := make([]ItemDescriptor, n)
	for i := range items {
		items[i].LA = r.Uint64()
		items[i].Size = r.Uint32()
	}
	return h, items, nil
}

var (
	errShortHeader  = clusterErr("short cluster header")
	errBadMagic     = clusterErr("bad cluster magic")
	errBadByteNr    = clusterErr("cluster bytenr does not match stream offset")
	errTooManyItems = clusterErr("cluster claims more items than fit in the header block")
)

type clusterErr string

func (e clusterErr) Error() string { return string(e) }

// PaddedLen rounds n up to the next multiple of BlockSize.
func PaddedLen(n int) int {
	if r := n % BlockSize; r != 0 {
		n += BlockSize - r
	}
	return n
}
