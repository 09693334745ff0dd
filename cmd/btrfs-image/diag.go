package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"

	"github.com/distr1/btrfs-metadump/internal/metadump"
)

// diagSink writes the -diag human-readable block inventory: one line per
// coalesced run, as it is produced. The file is written to a temporary
// name and atomically renamed into place on Close so a reader never sees a
// partially written report; a .gz-suffixed path is streamed through pgzip
// instead of being compressed in one shot at the end.
type diagSink struct {
	pending *renameio.PendingFile
	gz      *pgzip.Writer
	out     io.Writer
}

func newDiagSink(path string) (*diagSink, error) {
	pending, err := renameio.TempFile("", path)
	if err != nil {
		return nil, err
	}
	d := &diagSink{pending: pending, out: pending}
	if strings.HasSuffix(path, ".gz") {
		d.gz = pgzip.NewWriter(pending)
		d.out = d.gz
	}
	return d, nil
}

func (d *diagSink) WriteRun(run metadump.Run) {
	kind := "metadata"
	if run.Kind == metadump.KindData {
		kind = "data"
	}
	fmt.Fprintf(d.out, "%d %d %s\n", run.Start, len(run.Data), kind)
}

func (d *diagSink) Close() error {
	if d.gz != nil {
		if err := d.gz.Close(); err != nil {
			d.pending.Cleanup()
			return err
		}
	}
	return d.pending.CloseAtomicallyReplace()
}
