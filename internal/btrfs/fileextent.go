package btrfs

// FileExtentHeaderSize is the size of the fixed portion of a file extent
// item, before either the inline data (FileExtentInline) or the four
// disk/logical fields of a regular extent follow.
const FileExtentHeaderSize = 21

// FileExtentItem is the fixed header shared by inline and regular file
// extent items. Masking only needs Type, to tell inline extents (whose
// payload is file data and must be zeroed) from regular ones (whose
// payload is an on-disk extent pointer and is left alone).
type FileExtentItem struct {
	Generation    uint64
	RamBytes      uint64
	Compression   uint8
	Encryption    uint8
	OtherEncoding uint16
	Type          uint8
}

func DecodeFileExtentItem(r *Reader) FileExtentItem {
	var f FileExtentItem
	f.Generation = r.Uint64()
	f.RamBytes = r.Uint64()
	f.Compression = r.Uint8()
	f.Encryption = r.Uint8()
	f.OtherEncoding = r.Uint16()
	f.Type = r.Uint8()
	return f
}
