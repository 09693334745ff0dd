package btrfs

// Header is the fixed layout present at the start of every tree block
// (internal node or leaf). The super-block carries the same first few
// fields in a different surrounding layout; see Superblock.
type Header struct {
	CSum          [CSumSize]byte
	FSID          UUID
	ByteNr        uint64
	Flags         uint64
	ChunkTreeUUID UUID
	Generation    uint64
	Owner         uint64
	NrItems       uint32
	Level         uint8
}

func (h *Header) IsLeaf() bool { return h.Level == 0 }

func DecodeHeader(r *Reader) Header {
	var h Header
	copy(h.CSum[:], r.Next(CSumSize))
	h.FSID = parseUUID(r)
	h.ByteNr = r.Uint64()
	h.Flags = r.Uint64()
	h.ChunkTreeUUID = parseUUID(r)
	h.Generation = r.Uint64()
	h.Owner = r.Uint64()
	h.NrItems = r.Uint32()
	h.Level = r.Uint8()
	return h
}

func EncodeHeader(w *Writer, h Header) {
	w.Put(h.CSum[:])
	writeUUID(w, h.FSID)
	w.PutUint64(h.ByteNr)
	w.PutUint64(h.Flags)
	writeUUID(w, h.ChunkTreeUUID)
	w.PutUint64(h.Generation)
	w.PutUint64(h.Owner)
	w.PutUint32(h.NrItems)
	w.PutUint8(h.Level)
}

// Key identifies a btrfs item within a tree: (object id, type, offset).
type Key struct {
	ObjectID uint64
	Type     uint8
	Offset   uint64
}

func DecodeKey(r *Reader) Key {
	var k Key
	k.ObjectID = r.Uint64()
	k.Type = r.Uint8()
	k.Offset = r.Uint64()
	return k
}

func EncodeKey(w *Writer, k Key) {
	w.PutUint64(k.ObjectID)
	w.PutUint8(k.Type)
	w.PutUint64(k.Offset)
}

// Item is a leaf's item descriptor: the key plus where its payload lives,
// relative to the end of the header, and how big it is.
type Item struct {
	Key        Key
	DataOffset uint32
	DataSize   uint32
}

func DecodeItem(r *Reader) Item {
	var it Item
	it.Key = DecodeKey(r)
	it.DataOffset = r.Uint32()
	it.DataSize = r.Uint32()
	return it
}

func EncodeItem(w *Writer, it Item) {
	EncodeKey(w, it.Key)
	w.PutUint32(it.DataOffset)
	w.PutUint32(it.DataSize)
}

// KeyPointer is an internal node's child pointer: the smallest key in the
// child subtree, plus the child's logical address and generation.
type KeyPointer struct {
	Key        Key
	BlockNr    uint64
	Generation uint64
}

func DecodeKeyPointer(r *Reader) KeyPointer {
	var kp KeyPointer
	kp.Key = DecodeKey(r)
	kp.BlockNr = r.Uint64()
	kp.Generation = r.Uint64()
	return kp
}
