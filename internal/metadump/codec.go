package metadump

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compress zlib-compresses data, returning a freshly allocated buffer. A
// codec failure is reported as ErrCompression, never panics.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, ErrCompression("zlib write", err)
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompression("zlib close", err)
	}
	return buf.Bytes(), nil
}

// Decompress zlib-inflates data into a freshly allocated buffer. The
// cluster wire format only records a payload's stored (compressed) size,
// not its original size (spec §4.1), so the output is sized by reading to
// the zlib stream's own end, not by a size the caller supplies.
func Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrCompression("zlib new reader", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrCompression("zlib read", err)
	}
	return out, nil
}

// compressTransform builds a Transform that compresses every item's
// buffer in place, recording the compressed size. A codec failure flags
// the item's own error without aborting the pool, per spec §7.
func compressTransform(enabled bool) Transform {
	return func(item *WorkItem) error {
		if !enabled {
			return nil
		}
		out, err := Compress(item.Buffer)
		if err != nil {
			return err
		}
		item.Buffer = out
		return nil
	}
}

// decompressTransform builds a Transform that inflates every item whose
// Compressed flag is set; items stored with compress = none pass through
// unchanged.
func decompressTransform() Transform {
	return func(item *WorkItem) error {
		if !item.Compressed {
			return nil
		}
		out, err := Decompress(item.Buffer)
		if err != nil {
			return err
		}
		item.Buffer = out
		return nil
	}
}
