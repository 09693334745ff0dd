package btrfs

import "hash/crc32"

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32CUpdate is the raw CRC32C continuation primitive: given a running
// crc (conventionally seeded with ^uint32(0) for a block checksum or
// ^uint32(1) for the CRC helper tool, per btrfs convention), it folds in
// data and returns the new running value. It does not apply the final
// complement; callers that want the conventional checksum call
// FinalizeCRC32C on the result.
func CRC32CUpdate(seed uint32, data []byte) uint32 {
	// crc32.Update complements its input and output; undo both so the
	// running value stays raw.
	return ^crc32.Update(^seed, castagnoliTable, data)
}

// FinalizeCRC32C complements a running CRC32C value to produce the value
// actually stored on disk in a block's checksum field.
func FinalizeCRC32C(running uint32) uint32 {
	return ^running
}

// BlockChecksum computes the finalized CRC32C that belongs in bytes [0,4)
// of a tree block or super-block, computed over data (which must already
// be bytes[32:] of the block).
func BlockChecksum(data []byte) uint32 {
	return FinalizeCRC32C(CRC32CUpdate(^uint32(0), data))
}
