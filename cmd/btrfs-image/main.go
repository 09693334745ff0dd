// Command btrfs-image dumps a btrfs filesystem's metadata (and the data
// extents backing its free-space cache) to a framed cluster stream, or
// restores such a stream into a sparse image file with single-device,
// single-stripe chunk geometry.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"golang.org/x/xerrors"

	"github.com/distr1/btrfs-metadump"
	"github.com/distr1/btrfs-metadump/internal/metadump"
	"github.com/distr1/btrfs-metadump/internal/metadump/fsreader"
)

var helpText = `btrfs-image [options] <source> <target>

Dumps (default) or restores btrfs metadata in the framed cluster format.`

func funcmain() error {
	fset := flag.NewFlagSet(btrfsmeta.ImageProgramName, flag.ExitOnError)
	fset.Usage = usage(fset, helpText)

	restore := fset.Bool("r", false, "restore mode (default is dump)")
	level := fset.Int("c", 0, "compression level 0-9; non-zero enables zlib")
	workers := fset.Int("t", 0, "worker count 1-32 (default: number of online CPUs when compression is enabled)")
	oldRestore := fset.Bool("o", false, "old-restore mode: update_super_old, skip chunk-tree fixup (restore only)")
	diagPath := fset.String("diag", "", "write a human-readable block inventory alongside the dump (dump only); .gz suffix streams it through pgzip")
	superOnlyPath := fset.String("super-only", "", "write just the fixed-up primary super-block to PATH (restore only)")
	fset.Parse(os.Args[1:])

	args := fset.Args()
	if len(args) != 2 {
		fset.Usage()
		os.Exit(2)
	}
	source, target := args[0], args[1]

	if *level < 0 || *level > 9 {
		return xerrors.Errorf("btrfs-image: -c must be between 0 and 9")
	}
	if *workers < 0 || *workers > 32 {
		return xerrors.Errorf("btrfs-image: -t must be between 1 and 32")
	}
	if *oldRestore && !*restore {
		return xerrors.Errorf("btrfs-image: -o is incompatible with dump mode")
	}

	ctx, canc := btrfsmeta.InterruptibleContext()
	defer canc()
	go func() {
		<-ctx.Done()
		// The engine itself has no cooperative cancellation (spec §5);
		// on SIGINT/SIGTERM we still want registered cleanup (closing
		// the output and -diag files) to run before the process dies,
		// so partial output is left in a consistent state.
		btrfsmeta.RunAtExit()
		os.Exit(130)
	}()

	n := *workers
	if n == 0 && *level > 0 {
		n = runtime.NumCPU()
		if n < 1 {
			n = 1
		}
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	if *restore {
		return runRestore(source, target, n, *oldRestore, *superOnlyPath, logger)
	}
	return runDump(source, target, n, *level, *diagPath, logger)
}

func runDump(source, target string, workers, level int, diagPath string, logger *log.Logger) error {
	if source == "-" {
		return xerrors.Errorf("btrfs-image: dump requires a block device or image file as source, not stdin")
	}

	src, err := os.Open(source)
	if err != nil {
		return xerrors.Errorf("open source: %w", err)
	}
	defer src.Close()

	dev, err := fsreader.NewDevice(src)
	if err != nil {
		return xerrors.Errorf("read super-block: %w", err)
	}
	if isBlockDevice(source) {
		logger.Printf("warning: %s is a block device; dumping assumes a single-device, single-chunk layout", source)
	}

	var out io.Writer
	if target == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(target)
		if err != nil {
			return xerrors.Errorf("create target: %w", err)
		}
		defer f.Close()
		btrfsmeta.RegisterAtExit(f.Close)
		out = f
	}

	var diag *diagSink
	if diagPath != "" {
		d, err := newDiagSink(diagPath)
		if err != nil {
			return xerrors.Errorf("open -diag target: %w", err)
		}
		defer d.Close()
		btrfsmeta.RegisterAtExit(d.Close)
		diag = d
	}

	progress := newProgressReporter(os.Stderr)

	opts := metadump.Options{
		Compress: level > 0,
		Workers:  workers,
		Log:      logger,
		OnRun: func(run metadump.Run) {
			if diag != nil {
				diag.WriteRun(run)
			}
			progress.Tick()
		},
	}
	d := metadump.NewDumper(dev, out, opts)
	if err := d.Run(); err != nil {
		return xerrors.Errorf("dump: %w", err)
	}
	progress.Done()
	if err := btrfsmeta.RunAtExit(); err != nil {
		return xerrors.Errorf("cleanup: %w", err)
	}
	return nil
}

func runRestore(source, target string, workers int, oldRestore bool, superOnlyPath string, logger *log.Logger) error {
	var in io.Reader
	if source == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(source)
		if err != nil {
			return xerrors.Errorf("open source: %w", err)
		}
		defer f.Close()
		in = f
	}

	if target == "-" {
		return xerrors.Errorf("btrfs-image: restore requires a regular file as target, not stdout")
	}
	f, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return xerrors.Errorf("create target: %w", err)
	}
	defer f.Close()
	btrfsmeta.RegisterAtExit(f.Close)

	out := &fileTarget{f: f}

	opts := metadump.RestoreOptions{
		Workers:    workers,
		OldRestore: oldRestore,
		Log:        logger,
	}
	r := metadump.NewRestorer(in, out, opts)
	if err := r.Run(); err != nil {
		return xerrors.Errorf("restore: %w", err)
	}

	if superOnlyPath != "" {
		if err := writeSuperOnly(out, superOnlyPath); err != nil {
			return xerrors.Errorf("-super-only: %w", err)
		}
	}

	if err := btrfsmeta.RunAtExit(); err != nil {
		return xerrors.Errorf("cleanup: %w", err)
	}
	return nil
}

// fileTarget adapts *os.File to metadump.Target.
type fileTarget struct {
	f *os.File
}

func (t *fileTarget) WriteAt(p []byte, off int64) (int, error) { return t.f.WriteAt(p, off) }
func (t *fileTarget) Truncate(size int64) error                { return t.f.Truncate(size) }
func (t *fileTarget) Size() (int64, error) {
	fi, err := t.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
