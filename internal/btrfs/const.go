// Package btrfs describes the on-disk structures of a btrfs filesystem that
// the metadump engine needs to read, mask and rewrite: the super-block, tree
// block headers, keys, leaf items, device items and chunk items. It mirrors
// the subset of struct layouts documented by btrfs-progs' ctree.h, expressed
// as plain Go structs with explicit Encode/Decode methods rather than typed
// views over raw buffers.
package btrfs

// Magic is "_BHRfS_M" read as a little-endian uint64, stored in every
// super-block and tree block header.
const Magic uint64 = 0x4d5f53665248425f

// SuperInfoOffset is the primary super-block's byte offset on the device.
const SuperInfoOffset = 0x10000

// SuperInfoSize is the fixed on-disk size of a super-block.
const SuperInfoSize = 4096

// Backup super-block mirror offsets; mirror 0 is the primary at
// SuperInfoOffset and is not repeated here.
var SuperMirrorOffsets = [...]uint64{
	0x4000000,       // 64 MiB
	0x4000000000,    // 256 GiB
	0x4000000000000, // 1 PiB
}

// SuperMirrorMax bounds the number of super-block copies ever written: the
// primary plus len(SuperMirrorOffsets) backups.
const SuperMirrorMax = 1 + len(SuperMirrorOffsets)

// CSumSize is the width of the checksum field at the start of every
// tree block and super-block; only the first 4 bytes carry a CRC32C, the
// rest is zero padding reserved for wider checksum algorithms.
const CSumSize = 32

// UUIDSize is the width of a btrfs UUID field.
const UUIDSize = 16

// FSIDSize is the width of the super-block/header filesystem UUID field.
const FSIDSize = 16

// Object IDs used by the dumper and restorer to identify well-known trees.
const (
	RootTreeObjectID  = 1
	ExtentTreeObjectID = 2
	ChunkTreeObjectID  = 3
	DevTreeObjectID    = 4
	FSTreeObjectID     = 5
	CSumTreeObjectID   = 7

	FirstChunkTreeObjectID = 256
)

// Key types relevant to masking and tree walking.
const (
	InodeItemKey    = 1
	InodeRefKey     = 12
	XAttrItemKey    = 24
	DirItemKey      = 84
	DirIndexKey     = 96
	ExtentDataKey   = 108 // file extent item
	ExtentCSumKey   = 128
	RootItemKey     = 132
	RootRefKey      = 156
	ExtentItemKey   = 168
	MetadataItemKey = 169
	DevExtentKey    = 204
	DevItemKey      = 216
	ChunkItemKey    = 228
)

// File extent types (btrfs_file_extent_item.type).
const (
	FileExtentInline  = 0
	FileExtentReg     = 1
	FileExtentPrealloc = 2
)

// Block group / chunk type flags.
const (
	BlockGroupData     = 1 << 0
	BlockGroupSystem   = 1 << 1
	BlockGroupMetadata = 1 << 2
	BlockGroupRaid0    = 1 << 3
	BlockGroupRaid1    = 1 << 4
	BlockGroupDup      = 1 << 5
	BlockGroupRaid10   = 1 << 6
	BlockGroupRaid5    = 1 << 7
	BlockGroupRaid6    = 1 << 8

	// BlockGroupProfileMask covers every RAID/replication bit; clearing
	// it from a chunk's type leaves only the data/system/metadata kind.
	BlockGroupProfileMask = BlockGroupRaid0 | BlockGroupRaid1 | BlockGroupDup |
		BlockGroupRaid10 | BlockGroupRaid5 | BlockGroupRaid6
)

// ExtentFlagTreeBlock marks an extent-item/metadata-item payload as
// describing a tree block (as opposed to a data extent); it is the third
// field of both payload layouts, after refs and generation.
const ExtentFlagTreeBlock = 1 << 0

// RootItemBytenrOffset is the byte offset of the bytenr field (the root's
// own tree-block logical address) within a root-item payload: a fixed
// 160-byte embedded inode-item, followed by generation(8) and
// root_dirid(8), then bytenr(8).
const RootItemBytenrOffset = 176

// SuperFlagMetadump marks a super-block as belonging to a metadump image
// produced by this tool, not a live filesystem.
const SuperFlagMetadump = 1 << 17

// SystemChunkArraySize is the fixed capacity, in bytes, of the super-block's
// embedded system chunk array.
const SystemChunkArraySize = 2048

// Header is the fixed-size header present at the start of every tree block
// (node or leaf); it is NOT present in the super-block, which has its own
// layout (see Superblock).
const HeaderSize = 101 // 0x65: csum(32) + fsid(16) + bytenr(8) + flags(8) + chunk_tree_uuid(16) + generation(8) + owner(8) + nritems(4) + level(1)

// KeySize is the on-disk size of a Key (objectid(8) + type(1) + offset(8)).
const KeySize = 17

// ItemSize is the on-disk size of a leaf Item descriptor
// (key(17) + data_offset(4) + data_size(4)).
const ItemSize = 25

// KeyPointerSize is the on-disk size of an internal node's KeyPointer
// (key(17) + blocknr(8) + generation(8)).
const KeyPointerSize = 33

// DevItemSize is the on-disk size of a DevItem as embedded in the
// super-block and in DEV_ITEM leaf items.
const DevItemSize = 98

// ChunkItemSize is the fixed portion of a ChunkItem, excluding the
// variable-length stripe array that follows it on disk.
const ChunkItemSize = 48

// ChunkItemStripeSize is the size of one stripe record following a
// ChunkItem.
const ChunkItemStripeSize = 32

// DiskKeySize is the on-disk size of a (Key) entry inside the super-block's
// system chunk array; identical layout to Key.
const DiskKeySize = KeySize
