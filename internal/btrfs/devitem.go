package btrfs

// DevItem describes one device in the filesystem: its id, size, I/O
// geometry and the UUIDs tying it to this filesystem. It appears both
// embedded in the super-block and as a DEV_ITEM leaf item.
type DevItem struct {
	DeviceID uint64

	NumBytes     uint64
	NumBytesUsed uint64

	IOOptimalAlign uint32
	IOOptimalWidth uint32
	IOMinSize      uint32

	Type        uint64
	Generation  uint64
	StartOffset uint64
	DevGroup    uint32
	SeekSpeed   uint8
	Bandwidth   uint8

	DevUUID UUID
	FSUUID  UUID
}

func DecodeDevItem(r *Reader) DevItem {
	var d DevItem
	d.DeviceID = r.Uint64()
	d.NumBytes = r.Uint64()
	d.NumBytesUsed = r.Uint64()
	d.IOOptimalAlign = r.Uint32()
	d.IOOptimalWidth = r.Uint32()
	d.IOMinSize = r.Uint32()
	d.Type = r.Uint64()
	d.Generation = r.Uint64()
	d.StartOffset = r.Uint64()
	d.DevGroup = r.Uint32()
	d.SeekSpeed = r.Uint8()
	d.Bandwidth = r.Uint8()
	d.DevUUID = parseUUID(r)
	d.FSUUID = parseUUID(r)
	return d
}

func EncodeDevItem(w *Writer, d DevItem) {
	w.PutUint64(d.DeviceID)
	w.PutUint64(d.NumBytes)
	w.PutUint64(d.NumBytesUsed)
	w.PutUint32(d.IOOptimalAlign)
	w.PutUint32(d.IOOptimalWidth)
	w.PutUint32(d.IOMinSize)
	w.PutUint64(d.Type)
	w.PutUint64(d.Generation)
	w.PutUint64(d.StartOffset)
	w.PutUint32(d.DevGroup)
	w.PutUint8(d.SeekSpeed)
	w.PutUint8(d.Bandwidth)
	writeUUID(w, d.DevUUID)
	writeUUID(w, d.FSUUID)
}
