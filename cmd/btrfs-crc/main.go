// Command btrfs-crc prints the CRC32C (seeded per btrfs convention) of a
// string, or brute-forces short printable ASCII strings whose CRC32C
// matches a target value.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/distr1/btrfs-metadump"
	"github.com/distr1/btrfs-metadump/internal/btrfs"
)

var helpText = `btrfs-crc [options] <string>
btrfs-crc -search -len N [-seed N] <target-hex>

Direct mode prints the CRC32C of <string>, seeded with ~1 per btrfs
convention. Search mode brute-forces printable ASCII strings of length N
(excluding '/'), starting at the given seed index, until one's CRC32C
matches <target-hex>.`

// alphabet is every printable ASCII byte except '/', which btrfs path
// components may not contain.
var alphabet = func() []byte {
	var a []byte
	for b := byte(0x20); b < 0x7f; b++ {
		if b == '/' {
			continue
		}
		a = append(a, b)
	}
	return a
}()

func indexToString(index uint64, length int) string {
	base := uint64(len(alphabet))
	buf := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		buf[i] = alphabet[index%base]
		index /= base
	}
	return string(buf)
}

// crcOf computes the btrfs convention's filesystem-UUID-style CRC32C: seeded
// with ~1 and left unfinalized (no trailing complement), matching the
// original CRC helper tool's behavior rather than the block-checksum
// convention FinalizeCRC32C/BlockChecksum apply elsewhere.
func crcOf(s string) uint32 {
	return btrfs.CRC32CUpdate(^uint32(1), []byte(s))
}

func funcmain() error {
	fset := flag.NewFlagSet(btrfsmeta.CRCProgramName, flag.ExitOnError)
	fset.Usage = usage(fset, helpText)

	search := fset.Bool("search", false, "brute-force search mode")
	length := fset.Int("len", 0, "candidate string length (search mode)")
	seed := fset.Uint64("seed", 0, "starting search index (search mode)")
	fset.Parse(os.Args[1:])

	args := fset.Args()
	if len(args) != 1 {
		fset.Usage()
		os.Exit(2)
	}

	if !*search {
		fmt.Printf("%08x\n", crcOf(args[0]))
		return nil
	}

	if *length <= 0 {
		return xerrors.Errorf("btrfs-crc: -len must be positive in search mode")
	}
	target, err := strconv.ParseUint(args[0], 16, 32)
	if err != nil {
		return xerrors.Errorf("btrfs-crc: parse target: %w", err)
	}

	base := uint64(len(alphabet))
	limit := uint64(1)
	for i := 0; i < *length; i++ {
		limit *= base
	}
	for i := *seed; i < limit; i++ {
		candidate := indexToString(i, *length)
		if uint64(crcOf(candidate)) == target {
			fmt.Println(candidate)
			return nil
		}
	}
	return xerrors.Errorf("btrfs-crc: no match found in search space")
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
