package metadump

import (
	"testing"

	"github.com/distr1/btrfs-metadump/internal/btrfs"
)

func newTestSuperblock() btrfs.Superblock {
	var sb btrfs.Superblock
	sb.NodeSize = 4096
	sb.SectorSize = 4096
	sb.DevItem.DeviceID = 1
	sb.DevItem.DevUUID = btrfs.UUID{1, 2, 3}
	sb.FSID = btrfs.UUID{9, 9, 9}
	return sb
}

func TestUpdateSuperOldWritesSingleStripeSystemChunk(t *testing.T) {
	sb := newTestSuperblock()
	UpdateSuperOld(&sb)

	if sb.Flags&btrfs.SuperFlagMetadump == 0 {
		t.Error("UpdateSuperOld must set SuperFlagMetadump")
	}

	r := btrfs.NewReader(sb.SysChunkArray[:sb.SysChunkArraySize])
	key := btrfs.DecodeKey(r)
	if key.Type != btrfs.ChunkItemKey {
		t.Fatalf("key.Type = %d, want ChunkItemKey", key.Type)
	}
	chunk := btrfs.DecodeChunkItem(r)
	if chunk.NumStripes != 1 {
		t.Errorf("NumStripes = %d, want 1", chunk.NumStripes)
	}
	if chunk.Type != btrfs.BlockGroupSystem {
		t.Errorf("Type = %#x, want BlockGroupSystem", chunk.Type)
	}
	stripe := btrfs.DecodeChunkItemStripe(r)
	if stripe.DeviceID != sb.DevItem.DeviceID {
		t.Errorf("stripe.DeviceID = %d, want %d", stripe.DeviceID, sb.DevItem.DeviceID)
	}
	if got, want := sb.SysChunkArraySize, uint32(btrfs.KeySize+btrfs.SingleStripeChunkSize); got != want {
		t.Errorf("SysChunkArraySize = %d, want %d", got, want)
	}
}

func TestUpdateSuperRewritesEveryChunkToSingleStripe(t *testing.T) {
	sb := newTestSuperblock()

	// Seed the array with two multi-stripe chunk entries, as a real
	// filesystem's system chunk array would carry.
	w := btrfs.NewWriter(sb.SysChunkArray[:])
	for _, offset := range []uint64{0, 0x1000000} {
		key := btrfs.Key{ObjectID: btrfs.FirstChunkTreeObjectID, Type: btrfs.ChunkItemKey, Offset: offset}
		chunk := btrfs.ChunkItem{
			Size: 0x400000, Root: btrfs.ExtentTreeObjectID, StripeLen: 64 * 1024,
			Type: btrfs.BlockGroupSystem, NumStripes: 2,
			Stripes: []btrfs.ChunkItemStripe{
				{DeviceID: 1, Offset: 0}, {DeviceID: 2, Offset: 0x100000},
			},
		}
		btrfs.EncodeKey(w, key)
		btrfs.EncodeChunkItem(w, chunk)
		for _, s := range chunk.Stripes {
			btrfs.EncodeChunkItemStripe(w, s)
		}
	}
	sb.SysChunkArraySize = uint32(w.Offset())

	rd := RestoreDescriptor{NodeSize: 4096, DeviceID: 7, DeviceUUID: btrfs.UUID{7, 7}}
	if err := UpdateSuper(&sb, rd); err != nil {
		t.Fatalf("UpdateSuper: %v", err)
	}

	r := btrfs.NewReader(sb.SysChunkArray[:sb.SysChunkArraySize])
	count := 0
	for r.Remaining() > 0 {
		key := btrfs.DecodeKey(r)
		chunk := btrfs.DecodeChunkItem(r)
		if chunk.NumStripes != 1 {
			t.Fatalf("chunk %d: NumStripes = %d, want 1", count, chunk.NumStripes)
		}
		stripe := btrfs.DecodeChunkItemStripe(r)
		if stripe.DeviceID != rd.DeviceID {
			t.Errorf("chunk %d: stripe.DeviceID = %d, want %d", count, stripe.DeviceID, rd.DeviceID)
		}
		if stripe.Offset != key.Offset {
			t.Errorf("chunk %d: stripe.Offset = %d, want key.Offset %d", count, stripe.Offset, key.Offset)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("got %d chunks, want 2", count)
	}
}

func TestUpdateSuperRejectsBogusKey(t *testing.T) {
	sb := newTestSuperblock()
	w := btrfs.NewWriter(sb.SysChunkArray[:])
	btrfs.EncodeKey(w, btrfs.Key{ObjectID: 1, Type: btrfs.InodeItemKey, Offset: 0})
	sb.SysChunkArraySize = uint32(w.Offset())

	rd := RestoreDescriptor{NodeSize: 4096, DeviceID: 7}
	if err := UpdateSuper(&sb, rd); err == nil {
		t.Fatal("expected an error for a non-chunk-item key in the system chunk array")
	}
}

func buildChunkTreeLeaf(nodeSize int, bytenr uint64, fsid btrfs.UUID, numStripes uint16) []byte {
	buf := make([]byte, nodeSize)

	chunk := btrfs.ChunkItem{
		Size: 0x400000, Root: btrfs.ExtentTreeObjectID, StripeLen: 64 * 1024,
		Type: btrfs.BlockGroupData, NumStripes: numStripes,
	}
	for i := uint16(0); i < numStripes; i++ {
		chunk.Stripes = append(chunk.Stripes, btrfs.ChunkItemStripe{DeviceID: uint64(i + 1), Offset: uint64(i) * 0x100000})
	}
	size := btrfs.ChunkItemSize + int(numStripes)*btrfs.ChunkItemStripeSize
	dataOffset := uint32(nodeSize - btrfs.HeaderSize - size)

	hdr := btrfs.Header{ByteNr: bytenr, FSID: fsid, Owner: btrfs.ChunkTreeObjectID, NrItems: 1, Level: 0}
	it := btrfs.Item{
		Key:        btrfs.Key{ObjectID: btrfs.FirstChunkTreeObjectID, Type: btrfs.ChunkItemKey, Offset: 0x5000},
		DataOffset: dataOffset,
		DataSize:   uint32(size),
	}

	w := btrfs.NewWriter(buf)
	btrfs.EncodeHeader(w, hdr)
	btrfs.EncodeItem(w, it)

	cw := btrfs.NewWriter(buf[btrfs.HeaderSize+int(dataOffset):])
	btrfs.EncodeChunkItem(cw, chunk)
	for _, s := range chunk.Stripes {
		btrfs.EncodeChunkItemStripe(cw, s)
	}
	return buf
}

func TestRewriteChunkTreeLeafRewritesMatchingLeaf(t *testing.T) {
	const nodeSize = 512
	fsid := btrfs.UUID{1, 2, 3, 4}
	bytenr := uint64(0x20000)
	buf := buildChunkTreeLeaf(nodeSize, bytenr, fsid, 2)

	desc := RestoreDescriptor{NodeSize: nodeSize, FSID: fsid, DeviceID: 99, DeviceUUID: btrfs.UUID{9}}
	if !RewriteChunkTreeLeaf(buf, bytenr, desc) {
		t.Fatal("expected RewriteChunkTreeLeaf to report a rewrite")
	}

	leaf := btrfs.DecodeLeaf(buf)
	data := leaf.ItemData(buf, 0)
	chunk := btrfs.DecodeChunkItem(btrfs.NewReader(data))
	if chunk.NumStripes != 1 {
		t.Errorf("NumStripes = %d, want 1", chunk.NumStripes)
	}

	crc := btrfs.BlockChecksum(buf[btrfs.CSumSize:])
	got := btrfs.NewReader(buf).Uint32()
	if got != crc {
		t.Errorf("checksum = %#x, want %#x", got, crc)
	}
}

func TestRewriteChunkTreeLeafLeavesNonMatchingBlockUntouched(t *testing.T) {
	const nodeSize = 512
	fsid := btrfs.UUID{1, 2, 3, 4}
	buf := buildChunkTreeLeaf(nodeSize, 0x20000, fsid, 2)
	orig := append([]byte(nil), buf...)

	// Wrong expected bytenr: this block is not where the caller thinks it is.
	desc := RestoreDescriptor{NodeSize: nodeSize, FSID: fsid, DeviceID: 99}
	if RewriteChunkTreeLeaf(buf, 0xDEAD, desc) {
		t.Fatal("RewriteChunkTreeLeaf should not rewrite a block at an unexpected bytenr")
	}
	for i := range buf {
		if buf[i] != orig[i] {
			t.Fatalf("byte %d changed despite bytenr mismatch", i)
		}
	}
}

func TestBackupSuperOffsetsFitsTargetSize(t *testing.T) {
	offs := BackupSuperOffsets(1 << 30)
	if len(offs) == 0 {
		t.Fatal("a 1GiB target should fit at least one backup mirror")
	}
	for _, off := range offs {
		if int64(off)+btrfs.SuperInfoSize > 1<<30 {
			t.Errorf("offset %d + SuperInfoSize exceeds target size", off)
		}
	}
}

func TestBackupSuperOffsetsEmptyForTinyTarget(t *testing.T) {
	if offs := BackupSuperOffsets(1024); len(offs) != 0 {
		t.Errorf("a 1KiB target should fit no backup mirrors, got %v", offs)
	}
}
