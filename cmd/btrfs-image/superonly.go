package main

import (
	"github.com/google/renameio"

	"github.com/distr1/btrfs-metadump/internal/btrfs"
)

// writeSuperOnly reads back the primary super-block the restorer just
// fixed up and writes it, alone, to path — useful for inspecting the
// fixup in isolation without materialising the whole restored image.
func writeSuperOnly(out *fileTarget, path string) error {
	buf := make([]byte, btrfs.SuperInfoSize)
	if _, err := out.f.ReadAt(buf, btrfs.SuperInfoOffset); err != nil {
		return err
	}
	return renameio.WriteFile(path, buf, 0644)
}
