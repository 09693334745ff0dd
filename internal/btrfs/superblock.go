package btrfs

// Superblock is the fixed 4096-byte structure written at SuperInfoOffset
// and at each backup mirror offset. Only the fields the dumper and
// restorer actually touch are decoded individually; everything between
// named fields that this tool never inspects or rewrites (padding,
// unused reserved ranges, the super-root backups) is kept as an opaque
// byte slice and round-tripped verbatim.
type Superblock struct {
	CSum          [CSumSize]byte
	FSID          UUID
	Self          uint64
	Flags         uint64
	Magic         [8]byte
	Generation    uint64
	RootTree      uint64
	ChunkTree     uint64
	LogTree       uint64

	LogRootTransID  uint64
	TotalBytes      uint64
	BytesUsed       uint64
	RootDirObjectID uint64
	NumDevices      uint64

	SectorSize        uint32
	NodeSize          uint32
	LeafSize          uint32
	StripeSize        uint32
	SysChunkArraySize uint32

	ChunkRootGeneration uint64
	CompatFlags         uint64
	CompatROFlags       uint64
	IncompatFlags       uint64
	ChecksumType        uint16

	RootLevel  uint8
	ChunkLevel uint8
	LogLevel   uint8

	DevItem DevItem
	Label   [256]byte

	CacheGeneration    uint64
	UUIDTreeGeneration uint64
	MetadataUUID       UUID

	NumGlobalRoots uint64

	BlockGroupRoot           uint64
	BlockGroupRootGeneration uint64
	BlockGroupRootLevel      uint8

	Reserved [199]byte

	// SysChunkArray holds (Key, ChunkItem+stripes) pairs for every
	// SYSTEM chunk, up to SysChunkArraySize valid bytes.
	SysChunkArray [SystemChunkArraySize]byte

	// SuperRoots is the four root_backup records; this tool never reads
	// or rewrites them, so they are kept opaque.
	SuperRoots [0x2a0]byte

	Padding [565]byte
}

func DecodeSuperblock(buf []byte) Superblock {
	r := NewReader(buf)
	var sb Superblock
	copy(sb.CSum[:], r.Next(CSumSize))
	sb.FSID = parseUUID(r)
	sb.Self = r.Uint64()
	sb.Flags = r.Uint64()
	copy(sb.Magic[:], r.Next(8))
	sb.Generation = r.Uint64()
	sb.RootTree = r.Uint64()
	sb.ChunkTree = r.Uint64()
	sb.LogTree = r.Uint64()
	sb.LogRootTransID = r.Uint64()
	sb.TotalBytes = r.Uint64()
	sb.BytesUsed = r.Uint64()
	sb.RootDirObjectID = r.Uint64()
	sb.NumDevices = r.Uint64()
	sb.SectorSize = r.Uint32()
	sb.NodeSize = r.Uint32()
	sb.LeafSize = r.Uint32()
	sb.StripeSize = r.Uint32()
	sb.SysChunkArraySize = r.Uint32()
	sb.ChunkRootGeneration = r.Uint64()
	sb.CompatFlags = r.Uint64()
	sb.CompatROFlags = r.Uint64()
	sb.IncompatFlags = r.Uint64()
	sb.ChecksumType = r.Uint16()
	sb.RootLevel = r.Uint8()
	sb.ChunkLevel = r.Uint8()
	sb.LogLevel = r.Uint8()
	sb.DevItem = DecodeDevItem(r)
	copy(sb.Label[:], r.Next(256))
	sb.CacheGeneration = r.Uint64()
	sb.UUIDTreeGeneration = r.Uint64()
	sb.MetadataUUID = parseUUID(r)
	sb.NumGlobalRoots = r.Uint64()
	sb.BlockGroupRoot = r.Uint64()
	sb.BlockGroupRootGeneration = r.Uint64()
	sb.BlockGroupRootLevel = r.Uint8()
	copy(sb.Reserved[:], r.Next(len(sb.Reserved)))
	copy(sb.SysChunkArray[:], r.Next(len(sb.SysChunkArray)))
	copy(sb.SuperRoots[:], r.Next(len(sb.SuperRoots)))
	copy(sb.Padding[:], r.Next(len(sb.Padding)))
	return sb
}

// Encode writes the super-block back into a SuperInfoSize buffer,
// preserving the opaque ranges byte for byte.
func (sb Superblock) Encode() []byte {
	buf := make([]byte, SuperInfoSize)
	w := NewWriter(buf)
	w.Put(sb.CSum[:])
	writeUUID(w, sb.FSID)
	w.PutUint64(sb.Self)
	w.PutUint64(sb.Flags)
	w.Put(sb.Magic[:])
	w.PutUint64(sb.Generation)
	w.PutUint64(sb.RootTree)
	w.PutUint64(sb.ChunkTree)
	w.PutUint64(sb.LogTree)
	w.PutUint64(sb.LogRootTransID)
	w.PutUint64(sb.TotalBytes)
	w.PutUint64(sb.BytesUsed)
	w.PutUint64(sb.RootDirObjectID)
	w.PutUint64(sb.NumDevices)
	w.PutUint32(sb.SectorSize)
	w.PutUint32(sb.NodeSize)
	w.PutUint32(sb.LeafSize)
	w.PutUint32(sb.StripeSize)
	w.PutUint32(sb.SysChunkArraySize)
	w.PutUint64(sb.ChunkRootGeneration)
	w.PutUint64(sb.CompatFlags)
	w.PutUint64(sb.CompatROFlags)
	w.PutUint64(sb.IncompatFlags)
	w.PutUint16(sb.ChecksumType)
	w.PutUint8(sb.RootLevel)
	w.PutUint8(sb.ChunkLevel)
	w.PutUint8(sb.LogLevel)
	EncodeDevItem(w, sb.DevItem)
	w.Put(sb.Label[:])
	w.PutUint64(sb.CacheGeneration)
	w.PutUint64(sb.UUIDTreeGeneration)
	writeUUID(w, sb.MetadataUUID)
	w.PutUint64(sb.NumGlobalRoots)
	w.PutUint64(sb.BlockGroupRoot)
	w.PutUint64(sb.BlockGroupRootGeneration)
	w.PutUint8(sb.BlockGroupRootLevel)
	w.Put(sb.Reserved[:])
	w.Put(sb.SysChunkArray[:])
	w.Put(sb.SuperRoots[:])
	w.Put(sb.Padding[:])
	return buf
}

// IsMagicValid reports whether the decoded block carries the btrfs magic.
func (sb Superblock) IsMagicValid() bool {
	var want [8]byte
	for i := 0; i < 8; i++ {
		want[i] = byte(Magic >> (8 * uint(i)))
	}
	return sb.Magic == want
}

// RecomputeChecksum writes a finalized CRC32C of bytes [32, 4096) of buf
// (which must be a SuperInfoSize-length encoding of this super-block) into
// buf's first 4 bytes.
func RecomputeChecksum(buf []byte) {
	crc := BlockChecksum(buf[CSumSize:])
	w := NewWriter(buf)
	w.PutUint32(crc)
}
