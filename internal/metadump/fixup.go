package metadump

import "github.com/distr1/btrfs-metadump/internal/btrfs"

// RestoreDescriptor holds the parameters extracted from the first
// super-block seen during a restore: the node size and the identities the
// chunk-tree and super-block fixups rewrite every stripe to point at.
// Non-super items must not be processed before this is populated.
type RestoreDescriptor struct {
	NodeSize   uint64
	FSID       btrfs.UUID
	DeviceID   uint64
	DeviceUUID btrfs.UUID
}

// NewRestoreDescriptor derives a RestoreDescriptor from a decoded primary
// super-block.
func NewRestoreDescriptor(sb btrfs.Superblock) RestoreDescriptor {
	return RestoreDescriptor{
		NodeSize:   uint64(sb.NodeSize),
		FSID:       sb.FSID,
		DeviceID:   sb.DevItem.DeviceID,
		DeviceUUID: sb.DevItem.DevUUID,
	}
}

// UpdateSuperOld implements old-restore mode: the super's system-chunk
// array is replaced with a single synthetic entry covering the full
// logical address range, a stripe length of 64 KiB, type SYSTEM, and one
// stripe pointing at the super's own device at physical offset 0. Chosen
// when the caller cannot or does not want to rewrite the real chunk-tree
// leaves (the `-o` CLI flag).
func UpdateSuperOld(sb *btrfs.Superblock) {
	sb.Flags |= btrfs.SuperFlagMetadump

	key := btrfs.Key{
		ObjectID: btrfs.FirstChunkTreeObjectID,
		Type:     btrfs.ChunkItemKey,
		Offset:   0,
	}
	chunk := btrfs.ChunkItem{
		Size:           ^uint64(0),
		Root:           btrfs.ExtentTreeObjectID,
		StripeLen:      64 * 1024,
		Type:           btrfs.BlockGroupSystem,
		IOOptimalAlign: sb.SectorSize,
		IOOptimalWidth: sb.SectorSize,
		IOMinSize:      sb.SectorSize,
		NumStripes:     1,
		SubStripes:     0,
		Stripes: []btrfs.ChunkItemStripe{{
			DeviceID:   sb.DevItem.DeviceID,
			Offset:     0,
			DeviceUUID: sb.DevItem.DevUUID,
		}},
	}

	w := btrfs.NewWriter(sb.SysChunkArray[:])
	btrfs.EncodeKey(w, key)
	btrfs.EncodeChunkItem(w, chunk)
	btrfs.EncodeChunkItemStripe(w, chunk.Stripes[0])
	for i := w.Offset(); i < len(sb.SysChunkArray); i++ {
		sb.SysChunkArray[i] = 0
	}
	sb.SysChunkArraySize = uint32(btrfs.KeySize + btrfs.SingleStripeChunkSize)
}

// UpdateSuper implements normal-restore mode: every (key, chunk) pair
// already in the system-chunk array is kept by key, and its chunk record
// is rewritten to a single stripe pointing at the restore descriptor's
// device, its physical offset taken from the key's offset field (the
// logical-to-physical identity restore establishes). The array is then
// repacked to its new, smaller size.
func UpdateSuper(sb *btrfs.Superblock, desc RestoreDescriptor) error {
	sb.Flags |= btrfs.SuperFlagMetadump

	r := btrfs.NewReader(sb.SysChunkArray[:sb.SysChunkArraySize])
	var out [btrfs.SystemChunkArraySize]byte
	w := btrfs.NewWriter(out[:])

	for r.Remaining() > 0 {
		key := btrfs.DecodeKey(r)
		if key.Type != btrfs.ChunkItemKey {
			return ErrInconsistent("update_super", errBogusSysArrayKey)
		}
		chunk := btrfs.DecodeChunkItem(r)
		for i := uint16(0); i < chunk.NumStripes; i++ {
			r.Next(btrfs.ChunkItemStripeSize)
		}

		chunk.NumStripes = 1
		chunk.SubStripes = 0
		chunk.Type = btrfs.BlockGroupSystem
		chunk.Stripes = []btrfs.ChunkItemStripe{{
			DeviceID:   desc.DeviceID,
			Offset:     key.Offset,
			DeviceUUID: desc.DeviceUUID,
		}}

		btrfs.EncodeKey(w, key)
		btrfs.EncodeChunkItem(w, chunk)
		btrfs.EncodeChunkItemStripe(w, chunk.Stripes[0])
	}

	sb.SysChunkArray = out
	sb.SysChunkArraySize = uint32(w.Offset())
	return nil
}

var errBogusSysArrayKey = clusterErr("bogus key in super's system chunk array")

// RewriteChunkTreeLeaf treats buf as one or more candidate chunk-tree
// leaves of the restore descriptor's node size, rewriting every chunk
// item it finds in a structurally valid one to single-stripe geometry
// pointing at the restore target. A "candidate" whose self-reported
// bytenr or filesystem UUID does not match, whose tree level is nonzero,
// or whose owner is not the chunk tree, is left byte-for-byte unchanged:
// it is simply not a chunk-tree leaf. Returns true if any leaf in buf was
// rewritten.
func RewriteChunkTreeLeaf(buf []byte, startLA uint64, desc RestoreDescriptor) bool {
	nodeSize := desc.NodeSize
	if nodeSize == 0 || uint64(len(buf))%nodeSize != 0 {
		return false
	}

	rewrote := false
	for off := uint64(0); off < uint64(len(buf)); off += nodeSize {
		block := buf[off : off+nodeSize]
		bytenr := off + startLA
		if rewriteOneChunkLeaf(block, bytenr, desc) {
			rewrote = true
		}
	}
	return rewrote
}

func rewriteOneChunkLeaf(block []byte, bytenr uint64, desc RestoreDescriptor) bool {
	hdr := btrfs.DecodeHeader(btrfs.NewReader(block))
	if hdr.ByteNr != bytenr {
		return false
	}
	if hdr.FSID != desc.FSID {
		return false
	}
	if !hdr.IsLeaf() {
		return false
	}
	if hdr.Owner != btrfs.ChunkTreeObjectID {
		return false
	}

	leaf := btrfs.DecodeLeaf(block)
	if len(leaf.Items) == 0 {
		return false
	}

	changed := false
	newSizes := make([]int, len(leaf.Items))
	newKeys := make([]btrfs.Key, len(leaf.Items))
	rewritten := make([][]byte, len(leaf.Items))

	for i, it := range leaf.Items {
		newKeys[i] = it.Key
		data := leaf.ItemData(block, i)
		if it.Key.Type != btrfs.ChunkItemKey || len(data) < btrfs.ChunkItemSize {
			newSizes[i] = len(data)
			buf := make([]byte, len(data))
			copy(buf, data)
			rewritten[i] = buf
			continue
		}

		cr := btrfs.NewReader(data)
		chunk := btrfs.DecodeChunkItem(cr)
		chunk.Type &^= btrfs.BlockGroupProfileMask
		chunk.NumStripes = 1
		chunk.SubStripes = 0
		chunk.Stripes = []btrfs.ChunkItemStripe{{
			DeviceID:   desc.DeviceID,
			Offset:     it.Key.Offset,
			DeviceUUID: desc.DeviceUUID,
		}}

		buf := make([]byte, btrfs.SingleStripeChunkSize)
		cw := btrfs.NewWriter(buf)
		btrfs.EncodeChunkItem(cw, chunk)
		btrfs.EncodeChunkItemStripe(cw, chunk.Stripes[0])
		rewritten[i] = buf
		newSizes[i] = len(buf)
		changed = true
	}

	if !changed {
		return false
	}

	// Repack: item 0's data sits nearest the end of the block, item
	// n-1's nearest the item array, matching leaf.go's documented
	// packing convention.
	cursor := len(block) - btrfs.HeaderSize
	newItems := make([]btrfs.Item, len(leaf.Items))
	for i := range leaf.Items {
		size := newSizes[i]
		cursor -= size
		newItems[i] = btrfs.Item{
			Key:        newKeys[i],
			DataOffset: uint32(cursor),
			DataSize:   uint32(size),
		}
	}

	for i := range newItems {
		start := btrfs.HeaderSize + int(newItems[i].DataOffset)
		copy(block[start:start+int(newItems[i].DataSize)], rewritten[i])
	}

	w := btrfs.NewWriter(block)
	btrfs.EncodeHeader(w, leaf.Header)
	for _, it := range newItems {
		btrfs.EncodeItem(w, it)
	}
	leaf.Items = newItems
	zeroRange(block, leaf.ItemArrayEnd(), leaf.DataAreaStart())

	crc := btrfs.BlockChecksum(block[btrfs.CSumSize:])
	cw := btrfs.NewWriter(block)
	cw.PutUint32(crc)
	for i := 4; i < btrfs.CSumSize; i++ {
		block[i] = 0
	}
	return true
}

// BackupSuperOffsets returns the mirror offsets (primary excluded) that a
// target file of targetSize bytes is large enough to hold a full
// super-block at.
func BackupSuperOffsets(targetSize int64) []uint64 {
	var offs []uint64
	for _, off := range btrfs.SuperMirrorOffsets {
		if int64(off)+btrfs.SuperInfoSize <= targetSize {
			offs = append(offs, off)
		}
	}
	return offs
}
