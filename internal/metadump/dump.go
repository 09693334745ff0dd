package metadump

import (
	"io"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/distr1/btrfs-metadump/internal/btrfs"
	"github.com/distr1/btrfs-metadump/internal/metadump/fsreader"
)

// Options configures a Dumper.
type Options struct {
	// Compress enables zlib compression of every work item (`-c`).
	Compress bool
	// Workers is the worker pool size (`-t`); 0 runs synchronously.
	Workers int
	// LegacyExtentFormat requests the extent-tree-v0 back-reference walk
	// fallback for undersized extent-item records. Not implemented: an
	// undersized record returns ErrNotSupported whether or not it is set,
	// per spec §9's redesign flag turning the original's compile-time
	// branch into a runtime capability check.
	LegacyExtentFormat bool
	// Log receives progress and error diagnostics; defaults to
	// log.Default() when nil.
	Log *log.Logger
	// OnRun, if set, is called once per coalesced run handed to the
	// worker pool, in submission order; it exists purely for the CLI's
	// -diag sidecar report and never affects the wire stream.
	OnRun func(Run)
}

// Dumper walks a source filesystem via an fsreader.Reader, coalesces and
// masks its metadata and selected data extents, and writes the result as
// a framed cluster stream to out.
type Dumper struct {
	src  fsreader.Reader
	opts Options
	log  *log.Logger

	out         io.Writer
	streamPos   uint64
	pool        *Pool
	coalescer   *Coalescer
	itemsInCurr int

	mu  sync.Mutex
	err error
}

// NewDumper builds a Dumper reading from src and writing a cluster stream
// to out.
func NewDumper(src fsreader.Reader, out io.Writer, opts Options) *Dumper {
	l := opts.Log
	if l == nil {
		l = log.Default()
	}
	d := &Dumper{src: src, opts: opts, log: l, out: out}
	d.pool = NewPool(opts.Workers, compressTransform(opts.Compress))
	superOffset := decodeSuperOffset(src)
	source := newFSBlockSource(src, superOffset)
	d.coalescer = NewCoalescer(source, d.sink)
	return d
}

func decodeSuperOffset(src fsreader.Reader) uint64 {
	sb := btrfs.DecodeSuperblock(src.SuperBlock())
	return sb.Self
}

// Run executes the full dump: super-block, extent tree, log-root subtree,
// tree-root free-space data extents, then a final flush. It always
// attempts the final flush even after a step fails, so the stream is
// well-formed up to the point of failure (spec §4.5).
func (d *Dumper) Run() error {
	defer d.pool.Close()

	if err := d.coalescer.Add(btrfs.SuperInfoOffset, btrfs.SuperInfoSize, KindMetadata); err != nil {
		return d.fail(err)
	}

	var g errgroup.Group
	var extentBlocks, logBlocks []walkedBlock
	var dataExtents []walkedBlock

	g.Go(func() error {
		var err error
		extentBlocks, err = d.scanExtentTree()
		return err
	})
	g.Go(func() error {
		var err error
		logBlocks, err = d.walkLogRoot()
		return err
	})
	g.Go(func() error {
		var err error
		dataExtents, err = d.walkFreeSpaceCache()
		return err
	})

	walkErr := g.Wait()

	// The three walks run concurrently and report into their own
	// slices; feeding the coalescer happens back on this goroutine so
	// its single-producer contract (spec §5) holds.
	for _, b := range extentBlocks {
		if err := d.coalescer.Add(b.la, b.size, KindMetadata); err != nil {
			walkErr = firstErr(walkErr, err)
			break
		}
	}
	for _, b := range logBlocks {
		if err := d.coalescer.Add(b.la, b.size, KindMetadata); err != nil {
			walkErr = firstErr(walkErr, err)
			break
		}
	}
	for _, b := range dataExtents {
		if err := d.coalescer.Add(b.la, b.size, KindData); err != nil {
			walkErr = firstErr(walkErr, err)
			break
		}
	}

	if err := d.coalescer.Flush(); err != nil {
		walkErr = firstErr(walkErr, err)
	}
	if err := d.flushCluster(); err != nil {
		walkErr = firstErr(walkErr, err)
	}
	if err := d.pool.Err(); err != nil {
		walkErr = firstErr(walkErr, err)
	}
	if walkErr != nil {
		d.log.Printf("dump: %v", walkErr)
	}
	return walkErr
}

func firstErr(existing, fresh error) error {
	if existing != nil {
		return existing
	}
	return fresh
}

func (d *Dumper) fail(err error) error {
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.mu.Unlock()
	return err
}

type walkedBlock struct {
	la   uint64
	size uint64
}

// scanExtentTree walks every block of the extent tree, adding each as
// metadata (the extent tree's own allocation is metadata too), and
// inspects extent-item/metadata-item payloads to find tree-block flagged
// entries elsewhere in the filesystem.
func (d *Dumper) scanExtentTree() ([]walkedBlock, error) {
	rootLA := d.src.ExtentRootLA()
	if rootLA == 0 {
		return nil, nil
	}
	nodeSize := d.src.NodeSize()
	cur := d.src.Cursor(rootLA)

	var out []walkedBlock
	for {
		la, raw, ok, err := cur.NextBlock()
		if err != nil {
			return out, ErrInconsistent("extent tree walk", err)
		}
		if !ok {
			break
		}
		out = append(out, walkedBlock{la: la, size: nodeSize})

		hdr := btrfs.DecodeHeader(btrfs.NewReader(raw))
		if !hdr.IsLeaf() {
			continue
		}
		leaf := btrfs.DecodeLeaf(raw)
		for i, it := range leaf.Items {
			if it.Key.Type != btrfs.ExtentItemKey && it.Key.Type != btrfs.MetadataItemKey {
				continue
			}
			data := leaf.ItemData(raw, i)
			// refs(8) + generation(8) + flags(8) is the common prefix
			// of both extent-item and (skinny) metadata-item payloads.
			if len(data) < 24 {
				// The back-reference walk for such records is not
				// implemented, so LegacyExtentFormat cannot serve them.
				return out, ErrNotSupported
			}
			flags := btrfs.NewReader(data[16:24]).Uint64()
			if flags&btrfs.ExtentFlagTreeBlock == 0 {
				continue
			}
			size := nodeSize
			if it.Key.Type == btrfs.ExtentItemKey {
				size = it.Key.Offset
			}
			out = append(out, walkedBlock{la: it.Key.ObjectID, size: size})
		}
	}
	return out, nil
}

// walkLogRoot walks the log-root subtree (if the super-block records a
// non-zero log-root) and every root-item subtree it references.
func (d *Dumper) walkLogRoot() ([]walkedBlock, error) {
	rootLA := d.src.LogRootLA()
	if rootLA == 0 {
		return nil, nil
	}
	nodeSize := d.src.NodeSize()
	var out []walkedBlock

	var walk func(la uint64) error
	walk = func(la uint64) error {
		cur := d.src.Cursor(la)
		for {
			blockLA, raw, ok, err := cur.NextBlock()
			if err != nil {
				return ErrInconsistent("log-root walk", err)
			}
			if !ok {
				break
			}
			out = append(out, walkedBlock{la: blockLA, size: nodeSize})

			hdr := btrfs.DecodeHeader(btrfs.NewReader(raw))
			if !hdr.IsLeaf() {
				continue
			}
			leaf := btrfs.DecodeLeaf(raw)
			for i, it := range leaf.Items {
				if it.Key.Type != btrfs.RootItemKey {
					continue
				}
				data := leaf.ItemData(raw, i)
				if len(data) < btrfs.RootItemBytenrOffset+8 {
					continue
				}
				br := btrfs.NewReader(data)
				br.SetOffset(btrfs.RootItemBytenrOffset)
				subRoot := br.Uint64()
				if subRoot != 0 {
					if err := walk(subRoot); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if err := walk(rootLA); err != nil {
		return out, err
	}
	return out, nil
}

// walkFreeSpaceCache walks the tree-root's file-extent records (on-disk
// free-space cache inodes) and returns their backing data extents.
func (d *Dumper) walkFreeSpaceCache() ([]walkedBlock, error) {
	rootLA := d.src.TreeRootLA()
	if rootLA == 0 {
		return nil, nil
	}
	cur := d.src.Cursor(rootLA)

	var out []walkedBlock
	for {
		_, raw, ok, err := cur.NextBlock()
		if err != nil {
			return out, ErrInconsistent("tree-root walk", err)
		}
		if !ok {
			break
		}
		hdr := btrfs.DecodeHeader(btrfs.NewReader(raw))
		if !hdr.IsLeaf() {
			continue
		}
		leaf := btrfs.DecodeLeaf(raw)
		for i, it := range leaf.Items {
			if it.Key.Type != btrfs.ExtentDataKey {
				continue
			}
			data := leaf.ItemData(raw, i)
			if len(data) < btrfs.FileExtentHeaderSize {
				continue
			}
			r := btrfs.NewReader(data)
			fi := btrfs.DecodeFileExtentItem(r)
			if fi.Type != btrfs.FileExtentReg {
				continue
			}
			// Regular extent: disk_bytenr, disk_num_bytes follow the
			// fixed header.
			diskBytenr := r.Uint64()
			diskNumBytes := r.Uint64()
			if diskBytenr == 0 || diskNumBytes == 0 {
				continue
			}
			out = append(out, walkedBlock{la: diskBytenr, size: diskNumBytes})
		}
	}
	return out, nil
}

// sink is the coalescer's flush callback: it hands the run's materialised
// bytes to the worker pool and, once enough items have accumulated for a
// cluster, writes it.
func (d *Dumper) sink(run Run) error {
	if d.opts.OnRun != nil {
		d.opts.OnRun(run)
	}
	d.pool.Submit(&WorkItem{LA: run.Start, Size: uint64(len(run.Data)), Kind: run.Kind, Buffer: run.Data})
	d.itemsInCurr++
	if d.itemsInCurr >= ItemsPerCluster {
		return d.flushCluster()
	}
	return nil
}

// flushCluster drains the pool of everything submitted since the last
// cluster and writes a cluster header plus payloads. With zero pending
// items it writes nothing (a final empty flush is a no-op, matching the
// coalescer's own Flush no-op contract).
func (d *Dumper) flushCluster() error {
	items := d.pool.TakeOrdered()
	d.itemsInCurr = 0
	if err := d.pool.Err(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	descs := make([]ItemDescriptor, len(items))
	for i, it := range items {
		descs[i] = ItemDescriptor{LA: it.LA, Size: uint32(len(it.Buffer))}
	}

	compress := uint8(CompressNone)
	if d.opts.Compress {
		compress = CompressZlib
	}

	header := EncodeClusterHeader(d.streamPos, descs, compress)
	if _, err := d.out.Write(header); err != nil {
		return ErrIO("write cluster header", err)
	}
	written := len(header)
	for _, it := range items {
		if _, err := d.out.Write(it.Buffer); err != nil {
			return ErrIO("write cluster payload", err)
		}
		written += len(it.Buffer)
	}
	padded := PaddedLen(written)
	if pad := padded - written; pad > 0 {
		if _, err := d.out.Write(make([]byte, pad)); err != nil {
			return ErrIO("write cluster padding", err)
		}
	}
	d.streamPos += uint64(padded)
	return nil
}
