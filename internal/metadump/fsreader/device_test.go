package fsreader

import (
	"os"
	"testing"

	"github.com/distr1/btrfs-metadump/internal/btrfs"
)

const testNodeSize = 512

func writeRootItemLeaf(t *testing.T, f *os.File, la uint64, objectID, bytenr uint64) {
	t.Helper()
	buf := make([]byte, testNodeSize)

	payload := make([]byte, btrfs.RootItemBytenrOffset+8)
	pw := btrfs.NewWriter(payload)
	pw.SetOffset(btrfs.RootItemBytenrOffset)
	pw.PutUint64(bytenr)

	dataOffset := uint32(testNodeSize - btrfs.HeaderSize - len(payload))
	hdr := btrfs.Header{ByteNr: la, NrItems: 1, Level: 0}
	it := btrfs.Item{
		Key:        btrfs.Key{ObjectID: objectID, Type: btrfs.RootItemKey},
		DataOffset: dataOffset,
		DataSize:   uint32(len(payload)),
	}

	w := btrfs.NewWriter(buf)
	btrfs.EncodeHeader(w, hdr)
	btrfs.EncodeItem(w, it)
	copy(buf[btrfs.HeaderSize+int(dataOffset):], payload)

	if _, err := f.WriteAt(buf, int64(la)); err != nil {
		t.Fatalf("WriteAt leaf: %v", err)
	}
}

func writeTestSuper(t *testing.T, f *os.File, rootTreeLA uint64) {
	t.Helper()
	var sb btrfs.Superblock
	sb.NodeSize = testNodeSize
	sb.RootTree = rootTreeLA
	sb.LogTree = 0x7000
	buf := sb.Encode()
	if _, err := f.WriteAt(buf, btrfs.SuperInfoOffset); err != nil {
		t.Fatalf("WriteAt super: %v", err)
	}
}

func TestDeviceExtentRootLAResolvesViaTreeRootLookup(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "device-test-*.img")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	const rootTreeLA = 0x20000
	const extentRootLA = 0xABCD000
	writeTestSuper(t, f, rootTreeLA)
	writeRootItemLeaf(t, f, rootTreeLA, btrfs.ExtentTreeObjectID, extentRootLA)

	dev, err := NewDevice(f)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if got := dev.ExtentRootLA(); got != extentRootLA {
		t.Errorf("ExtentRootLA() = %#x, want %#x", got, extentRootLA)
	}
	if got := dev.TreeRootLA(); got != rootTreeLA {
		t.Errorf("TreeRootLA() = %#x, want %#x", got, rootTreeLA)
	}
	if got := dev.LogRootLA(); got != 0x7000 {
		t.Errorf("LogRootLA() = %#x, want 0x7000", got)
	}
}

func TestDeviceReadBlockReadsExactBytes(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "device-test-*.img")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	writeTestSuper(t, f, 0x20000)
	dev, err := NewDevice(f)
	if err != nil {
		t.Fatal(err)
	}

	want := []byte("some metadata bytes")
	if _, err := f.WriteAt(want, 0x50000); err != nil {
		t.Fatal(err)
	}
	got, err := dev.ReadBlock(0x50000, uint64(len(want)))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("ReadBlock = %q, want %q", got, want)
	}

	phys, err := dev.ReadPhysical(0x50000, uint64(len(want)))
	if err != nil {
		t.Fatalf("ReadPhysical: %v", err)
	}
	if string(phys) != string(want) {
		t.Errorf("ReadPhysical = %q, want %q (identity LA mapping)", phys, want)
	}
}

func TestDeviceCursorWalksInternalNodeThenLeaves(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "device-test-*.img")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	const internalLA = 0x30000
	const leafALA = 0x40000
	const leafBLA = 0x41000

	writeRootItemLeaf(t, f, leafALA, 100, 0)
	writeRootItemLeaf(t, f, leafBLA, 200, 0)

	internal := make([]byte, testNodeSize)
	hdr := btrfs.Header{ByteNr: internalLA, NrItems: 2, Level: 1}
	w := btrfs.NewWriter(internal)
	btrfs.EncodeHeader(w, hdr)
	for _, kp := range []btrfs.KeyPointer{
		{Key: btrfs.Key{ObjectID: 100}, BlockNr: leafALA},
		{Key: btrfs.Key{ObjectID: 200}, BlockNr: leafBLA},
	} {
		btrfs.EncodeKey(w, kp.Key)
		w.PutUint64(kp.BlockNr)
		w.PutUint64(kp.Generation)
	}
	if _, err := f.WriteAt(internal, internalLA); err != nil {
		t.Fatal(err)
	}

	dev := &Device{f: f, nodeSize: testNodeSize}
	cur := dev.Cursor(internalLA)

	la, _, ok, err := cur.NextBlock()
	if err != nil || !ok {
		t.Fatalf("first NextBlock: la=%#x ok=%v err=%v", la, ok, err)
	}
	if la != internalLA {
		t.Errorf("first block = %#x, want internal node %#x", la, internalLA)
	}
	for _, want := range []uint64{leafALA, leafBLA} {
		la, _, ok, err := cur.NextBlock()
		if err != nil || !ok {
			t.Fatalf("NextBlock: la=%#x ok=%v err=%v", la, ok, err)
		}
		if la != want {
			t.Errorf("next block = %#x, want leaf %#x", la, want)
		}
	}
}
