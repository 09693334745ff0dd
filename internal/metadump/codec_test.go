package metadump

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("btrfs metadata block"), 200)

	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed size %d should be smaller than input %d for repetitive data", len(compressed), len(data))
	}

	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("decompressed data does not match original")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := Decompress([]byte("not zlib data at all")); err == nil {
		t.Fatal("expected an error decompressing non-zlib data")
	}
}

func TestCompressTransformDisabledIsNoop(t *testing.T) {
	orig := []byte("raw bytes")
	item := &WorkItem{Buffer: orig}
	if err := compressTransform(false)(item); err != nil {
		t.Fatal(err)
	}
	if &item.Buffer[0] != &orig[0] {
		t.Error("disabled compress transform should leave the buffer untouched")
	}
}

func TestDecompressTransformSkipsUncompressedItem(t *testing.T) {
	orig := []byte("raw bytes")
	item := &WorkItem{Buffer: orig, Compressed: false}
	if err := decompressTransform()(item); err != nil {
		t.Fatal(err)
	}
	if &item.Buffer[0] != &orig[0] {
		t.Error("an item not marked Compressed should pass through unchanged")
	}
}
