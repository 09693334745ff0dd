package main

import "golang.org/x/sys/unix"

// isBlockDevice reports whether path names a block special file, used only
// to decide whether to warn that a real multi-chunk block device may
// violate fsreader.Device's logical-address-equals-physical-offset
// assumption; a plain image file dumped from a single-device, single-chunk
// filesystem satisfies it by construction.
func isBlockDevice(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFBLK
}
