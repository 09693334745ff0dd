// Package btrfsmeta holds the handful of package-level helpers and
// constants shared by both CLI binaries and not specific to any one
// internal package: process lifecycle (RegisterAtExit/RunAtExit,
// InterruptibleContext) and the names/defaults the CLIs print and parse
// flags against.
package btrfsmeta

// DefaultWorkers is the value of a CLI's -t flag when it is left unset.
// With compression enabled it means one worker per logical CPU, mirroring
// the original's sysconf(_SC_NPROCESSORS_ONLN) default; with compression
// off the pool stays at 0 workers and runs synchronously.
//
// cmd/btrfs-image resolves this against runtime.NumCPU() itself; the
// constant here only documents the contract, since the actual CPU count
// is a runtime property, not a constant.
const DefaultWorkers = 0

// ImageProgramName and CRCProgramName name each binary's flag set, and so
// appear in its usage text.
const (
	ImageProgramName = "btrfs-image"
	CRCProgramName   = "btrfs-crc"
)
