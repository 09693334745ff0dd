package btrfs

// Leaf is a decoded view over a tree block at level 0: the header plus its
// item descriptors. Item payloads are not copied out; callers index back
// into the original buffer using Item.DataOffset/DataSize, which are
// relative to the end of the header.
type Leaf struct {
	Header Header
	Items  []Item
}

// DecodeLeaf decodes a leaf's header and item array from buf. It does not
// validate NrItems against the buffer size beyond clamping, mirroring the
// defensive clamp a hand-rolled reader needs when parsing data that may be
// corrupt or adversarial.
func DecodeLeaf(buf []byte) Leaf {
	r := NewReader(buf)
	var l Leaf
	l.Header = DecodeHeader(r)
	if l.Header.NrItems == 0 || !l.Header.IsLeaf() {
		return l
	}
	maxItems := uint32((len(buf) - HeaderSize) / ItemSize)
	n := l.Header.NrItems
	if n > maxItems {
		n = maxItems
	}
	l.Items = make([]Item, n)
	for i := range l.Items {
		l.Items[i] = DecodeItem(r)
	}
	return l
}

// ItemData returns the payload bytes of item i within buf (the same buffer
// passed to DecodeLeaf).
func (l Leaf) ItemData(buf []byte, i int) []byte {
	start := HeaderSize + int(l.Items[i].DataOffset)
	end := start + int(l.Items[i].DataSize)
	if start < 0 || end > len(buf) || start > end {
		return nil
	}
	return buf[start:end]
}

// DataAreaStart returns the absolute offset at which the packed item data
// region begins, i.e. where the free space between the item array and the
// first item's payload ends. Item data is packed from the end of the block
// backward as items are appended, so the item last in array order (highest
// index, smallest DataOffset) marks the start of occupied data.
func (l Leaf) DataAreaStart() int {
	if len(l.Items) == 0 {
		return HeaderSize
	}
	last := l.Items[len(l.Items)-1]
	return HeaderSize + int(last.DataOffset)
}

// ItemArrayEnd returns the absolute offset immediately past the item
// descriptor array.
func (l Leaf) ItemArrayEnd() int {
	return HeaderSize + len(l.Items)*ItemSize
}
