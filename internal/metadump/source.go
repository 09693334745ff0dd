package metadump

import "github.com/distr1/btrfs-metadump/internal/metadump/fsreader"

// fsBlockSource adapts an fsreader.Reader into the Coalescer's BlockSource,
// masking each node-sized metadata sub-block as it is read and resolving
// data extents through the reader's logical-to-physical path.
type fsBlockSource struct {
	r           fsreader.Reader
	nodeSize    uint64
	superOffset uint64
}

func newFSBlockSource(r fsreader.Reader, superOffset uint64) *fsBlockSource {
	return &fsBlockSource{r: r, nodeSize: r.NodeSize(), superOffset: superOffset}
}

func (s *fsBlockSource) ReadMetadata(start, size uint64, dst []byte) error {
	if s.nodeSize == 0 || size%s.nodeSize != 0 {
		// The super-block region is the one metadata run whose size
		// (SuperInfoSize) need not be node-size aligned.
		raw, err := s.r.ReadBlock(start, size)
		if err != nil {
			return ErrIO("ReadBlock", err)
		}
		copy(dst, MaskBlock(raw, start, s.superOffset))
		return nil
	}
	for off := uint64(0); off < size; off += s.nodeSize {
		la := start + off
		raw, err := s.r.ReadBlock(la, s.nodeSize)
		if err != nil {
			return ErrIO("ReadBlock", err)
		}
		masked := MaskBlock(raw, la, s.superOffset)
		copy(dst[off:off+s.nodeSize], masked)
	}
	return nil
}

func (s *fsBlockSource) ReadData(start, size uint64, dst []byte) error {
	raw, err := s.r.ReadPhysical(start, size)
	if err != nil {
		return ErrIO("ReadPhysical", err)
	}
	copy(dst, raw)
	return nil
}

func (s *fsBlockSource) Readahead(start, size uint64) {
	// Advisory only; the fake and real readers alike are free to ignore
	// it; correctness never depends on it running.
}
