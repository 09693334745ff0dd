package metadump

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClusterHeaderRoundTrip(t *testing.T) {
	items := []ItemDescriptor{
		{LA: 0x10000, Size: 4096},
		{LA: 0x11000, Size: 16384},
	}
	header := EncodeClusterHeader(0, items, CompressZlib)

	if len(header) != BlockSize {
		t.Fatalf("header length = %d, want %d", len(header), BlockSize)
	}

	got, gotItems, err := DecodeClusterHeader(header, 0)
	if err != nil {
		t.Fatalf("DecodeClusterHeader: %v", err)
	}
	if got.Magic != clusterMagic {
		t.Errorf("Magic = %#x, want %#x", got.Magic, clusterMagic)
	}
	if got.ByteNr != 0 {
		t.Errorf("ByteNr = %d, want 0", got.ByteNr)
	}
	if got.Compress != CompressZlib {
		t.Errorf("Compress = %d, want %d", got.Compress, CompressZlib)
	}
	if diff := cmp.Diff(items, gotItems); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeClusterHeaderRejectsBadBytenr(t *testing.T) {
	header := EncodeClusterHeader(1024, nil, CompressNone)
	_, _, err := DecodeClusterHeader(header, 2048)
	if err == nil {
		t.Fatal("expected a framing error for mismatched bytenr, got nil")
	}
}

func TestDecodeClusterHeaderRejectsBadMagic(t *testing.T) {
	header := EncodeClusterHeader(0, nil, CompressNone)
	header[0] ^= 0xff
	_, _, err := DecodeClusterHeader(header, 0)
	if err == nil {
		t.Fatal("expected a framing error for bad magic, got nil")
	}
}

func TestPaddedLen(t *testing.T) {
	for _, tt := range []struct{ n, want int }{
		{0, 0},
		{1, BlockSize},
		{BlockSize, BlockSize},
		{BlockSize + 1, 2 * BlockSize},
	} {
		if got := PaddedLen(tt.n); got != tt.want {
			t.Errorf("PaddedLen(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestEncodeClusterHeaderPadsToBlockSize(t *testing.T) {
	header := EncodeClusterHeader(0, []ItemDescriptor{{LA: 1, Size: 2}}, CompressNone)
	tail := header[clusterHeaderSize+itemDescriptorSize:]
	if !bytes.Equal(tail, make([]byte, len(tail))) {
		t.Error("bytes past the last item descriptor should be zero-padded")
	}
}
