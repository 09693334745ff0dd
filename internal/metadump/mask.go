package metadump

import "github.com/distr1/btrfs-metadump/internal/btrfs"

// MaskBlock produces the canonical stored image of a raw metadata block:
// a copy with slack space, checksum-item payloads and inline file-extent
// payloads zeroed, and its own CRC32C recomputed over the result. The
// super-block (identified by superOffset) is left byte-for-byte unchanged.
//
// Masking is idempotent: masking a masked block reproduces the same bytes,
// since every region it zeroes is already zero and the recomputed CRC is a
// pure function of the unchanged remainder.
func MaskBlock(raw []byte, la uint64, superOffset uint64) []byte {
	dst := make([]byte, len(raw))
	copy(dst, raw)

	if la == superOffset {
		return dst
	}

	hdr := btrfs.DecodeHeader(btrfs.NewReader(dst))
	switch {
	case hdr.NrItems == 0:
		zeroFrom(dst, btrfs.HeaderSize)
	case hdr.IsLeaf():
		maskLeaf(dst, hdr)
	default:
		maskNode(dst, hdr)
	}

	crc := btrfs.BlockChecksum(dst[btrfs.CSumSize:])
	w := btrfs.NewWriter(dst)
	w.PutUint32(crc)
	// bytes [4, CSumSize) of the checksum field stay zero: only the
	// first 4 bytes of the 32-byte field ever hold a real CRC32C.
	for i := 4; i < btrfs.CSumSize; i++ {
		dst[i] = 0
	}
	return dst
}

func zeroFrom(buf []byte, from int) {
	for i := from; i < len(buf); i++ {
		buf[i] = 0
	}
}

func zeroRange(buf []byte, from, to int) {
	if from < 0 {
		from = 0
	}
	if to > len(buf) {
		to = len(buf)
	}
	for i := from; i < to; i++ {
		buf[i] = 0
	}
}

func maskNode(dst []byte, hdr btrfs.Header) {
	end := btrfs.HeaderSize + int(hdr.NrItems)*btrfs.KeyPointerSize
	zeroFrom(dst, end)
}

func maskLeaf(dst []byte, hdr btrfs.Header) {
	leaf := btrfs.DecodeLeaf(dst)

	// Free space between the item array and the first occupied data
	// byte carries no meaning and is zeroed.
	zeroRange(dst, leaf.ItemArrayEnd(), leaf.DataAreaStart())

	for i, it := range leaf.Items {
		switch it.Key.Type {
		case btrfs.ExtentCSumKey:
			start := btrfs.HeaderSize + int(it.DataOffset)
			end := start + int(it.DataSize)
			zeroRange(dst, start, end)
		case btrfs.ExtentDataKey:
			maskInlineFileExtent(dst, leaf, i)
		}
	}
}

func maskInlineFileExtent(dst []byte, leaf btrfs.Leaf, i int) {
	data := leaf.ItemData(dst, i)
	if len(data) < btrfs.FileExtentHeaderSize {
		return
	}
	fi := btrfs.DecodeFileExtentItem(btrfs.NewReader(data))
	if fi.Type != btrfs.FileExtentInline {
		return
	}
	it := leaf.Items[i]
	start := btrfs.HeaderSize + int(it.DataOffset) + btrfs.FileExtentHeaderSize
	end := btrfs.HeaderSize + int(it.DataOffset) + int(it.DataSize)
	zeroRange(dst, start, end)
}
