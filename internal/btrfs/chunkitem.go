package btrfs

// ChunkItem maps a logical chunk to one or more physical stripes. Stripes
// is decoded separately because its length depends on NumStripes and it is
// not part of the structure's fixed-size prefix.
type ChunkItem struct {
	Size           uint64
	Root           uint64
	StripeLen      uint64
	Type           uint64
	IOOptimalAlign uint32
	IOOptimalWidth uint32
	IOMinSize      uint32
	NumStripes     uint16
	SubStripes     uint16

	Stripes []ChunkItemStripe
}

type ChunkItemStripe struct {
	DeviceID   uint64
	Offset     uint64
	DeviceUUID UUID
}

func DecodeChunkItemStripe(r *Reader) ChunkItemStripe {
	var s ChunkItemStripe
	s.DeviceID = r.Uint64()
	s.Offset = r.Uint64()
	s.DeviceUUID = parseUUID(r)
	return s
}

func EncodeChunkItemStripe(w *Writer, s ChunkItemStripe) {
	w.PutUint64(s.DeviceID)
	w.PutUint64(s.Offset)
	writeUUID(w, s.DeviceUUID)
}

// DecodeChunkItem decodes the fixed-size header of a chunk item; it does
// not read the stripe array. Callers that need stripes call
// DecodeChunkItemStripe ChunkItem.NumStripes times starting right after
// the fixed header.
func DecodeChunkItem(r *Reader) ChunkItem {
	var c ChunkItem
	c.Size = r.Uint64()
	c.Root = r.Uint64()
	c.StripeLen = r.Uint64()
	c.Type = r.Uint64()
	c.IOOptimalAlign = r.Uint32()
	c.IOOptimalWidth = r.Uint32()
	c.IOMinSize = r.Uint32()
	c.NumStripes = r.Uint16()
	c.SubStripes = r.Uint16()
	return c
}

func EncodeChunkItem(w *Writer, c ChunkItem) {
	w.PutUint64(c.Size)
	w.PutUint64(c.Root)
	w.PutUint64(c.StripeLen)
	w.PutUint64(c.Type)
	w.PutUint32(c.IOOptimalAlign)
	w.PutUint32(c.IOOptimalWidth)
	w.PutUint32(c.IOMinSize)
	w.PutUint16(c.NumStripes)
	w.PutUint16(c.SubStripes)
}

// SingleStripeChunkSize is the encoded size of a ChunkItem with exactly one
// stripe, i.e. the shape every chunk is rewritten to on restore.
const SingleStripeChunkSize = ChunkItemSize + ChunkItemStripeSize
