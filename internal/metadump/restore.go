package metadump

import (
	"io"
	"log"
	"sync"

	"github.com/distr1/btrfs-metadump/internal/btrfs"
)

// Target is what the restorer driver writes the reconstructed image to:
// positioned writes at arbitrary, possibly sparse, offsets.
type Target interface {
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Size() (int64, error)
}

// RestoreOptions configures a Restorer.
type RestoreOptions struct {
	// Workers is the worker pool size; 0 runs synchronously.
	Workers int
	// OldRestore selects update_super_old and skips the chunk-tree
	// leaf fixup (`-o`); incompatible with normal mode's structural
	// rewrite of every chunk-tree leaf.
	OldRestore bool
	// Log receives progress and error diagnostics; defaults to
	// log.Default() when nil.
	Log *log.Logger
}

// Restorer reads a framed cluster stream and reconstructs a sparse image
// file with single-device, single-stripe chunk geometry.
type Restorer struct {
	in   io.Reader
	out  Target
	opts RestoreOptions
	log  *log.Logger

	pool *Pool

	mu        sync.Mutex
	desc      RestoreDescriptor
	descReady bool
}

// NewRestorer builds a Restorer reading the cluster stream in and
// reconstructing it onto out.
func NewRestorer(in io.Reader, out Target, opts RestoreOptions) *Restorer {
	l := opts.Log
	if l == nil {
		l = log.Default()
	}
	r := &Restorer{in: in, out: out, opts: opts, log: l}
	r.pool = NewPool(opts.Workers, decompressTransform())
	return r
}

// Run reads clusters until EOF, dispatching every item to the worker
// pool and draining after each cluster for back-pressure (spec §4.6).
func (r *Restorer) Run() error {
	err := r.run()
	if err != nil {
		r.log.Printf("restore: %v", err)
	}
	return err
}

func (r *Restorer) run() error {
	defer r.pool.Close()

	// Matches the original's fopen(target, "w+"): the target starts
	// truncated to zero length, so no byte range a cluster item never
	// covers can retain stale data from a pre-existing file.
	if err := r.out.Truncate(0); err != nil {
		return ErrIO("truncate target", err)
	}

	streamPos := uint64(0)
	for {
		header := make([]byte, BlockSize)
		n, err := io.ReadFull(r.in, header)
		if err == io.EOF && n == 0 {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return ErrIO("read cluster header", err)
		}
		if n < BlockSize {
			break
		}

		ch, descs, err := DecodeClusterHeader(header, streamPos)
		if err != nil {
			return err
		}

		payloadLen := 0
		for _, d := range descs {
			payloadLen += int(d.Size)
		}
		payload := make([]byte, payloadLen)
		if payloadLen > 0 {
			if _, err := io.ReadFull(r.in, payload); err != nil {
				return ErrIO("read cluster payload", err)
			}
		}
		total := PaddedLen(BlockSize + payloadLen)
		if pad := total - BlockSize - payloadLen; pad > 0 {
			if _, err := io.CopyN(io.Discard, r.in, int64(pad)); err != nil {
				return ErrIO("read cluster padding", err)
			}
		}
		streamPos += uint64(total)

		off := 0
		for _, d := range descs {
			buf := payload[off : off+int(d.Size)]
			off += int(d.Size)
			r.dispatch(d, buf, ch.Compress)
		}

		items := r.pool.TakeOrdered()
		if err := r.pool.Err(); err != nil {
			return err
		}
		for _, it := range items {
			if err := r.writeItem(it); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch submits one cluster item to the worker pool for decompression.
// The super-block item is identified by its well-known LA
// (btrfs.SuperInfoOffset), matching the original's contract that the
// super-block is always dumped at that fixed address (spec §4.6).
func (r *Restorer) dispatch(d ItemDescriptor, buf []byte, compress uint8) {
	r.pool.Submit(&WorkItem{
		LA:         d.LA,
		Size:       uint64(d.Size),
		Buffer:     buf,
		Compressed: compress == CompressZlib,
	})
}

// writeItem finalises one decompressed item: if it is the super-block
// (identified by LA == btrfs.SuperInfoOffset, the fixed well-known
// offset), it synchronously populates the restore descriptor and applies
// the super-block fixup before any later item is allowed to be written;
// otherwise, once the descriptor is populated, it applies the chunk-tree
// leaf fixup (normal mode only) and writes the resulting bytes at LA.
func (r *Restorer) writeItem(item *WorkItem) error {
	if item.LA == btrfs.SuperInfoOffset {
		return r.fixupAndWriteSuper(item)
	}

	r.mu.Lock()
	desc := r.desc
	ready := r.descReady
	r.mu.Unlock()
	if !ready {
		return ErrInconsistent("restore", errSuperNotSeen)
	}

	buf := item.Buffer
	if !r.opts.OldRestore {
		RewriteChunkTreeLeaf(buf, item.LA, desc)
	}
	if _, err := r.out.WriteAt(buf, int64(item.LA)); err != nil {
		return ErrIO("write restored item", err)
	}
	return nil
}

var errSuperNotSeen = clusterErr("non-super item processed before super-block fixup")

func (r *Restorer) fixupAndWriteSuper(item *WorkItem) error {
	sb := btrfs.DecodeSuperblock(item.Buffer)
	desc := NewRestoreDescriptor(sb)

	var err error
	if r.opts.OldRestore {
		UpdateSuperOld(&sb)
	} else {
		err = UpdateSuper(&sb, desc)
	}
	if err != nil {
		return err
	}

	encoded := sb.Encode()
	btrfs.RecomputeChecksum(encoded)

	if _, err := r.out.WriteAt(encoded, btrfs.SuperInfoOffset); err != nil {
		return ErrIO("write primary super-block", err)
	}

	r.mu.Lock()
	r.desc = desc
	r.descReady = true
	r.mu.Unlock()

	return r.writeBackupSupers(encoded)
}

// writeBackupSupers writes the fixed-up super-block to every backup
// mirror offset the target file is currently large enough to hold.
func (r *Restorer) writeBackupSupers(encoded []byte) error {
	size, err := r.targetSize()
	if err != nil {
		return err
	}
	for _, off := range BackupSuperOffsets(size) {
		backup := make([]byte, len(encoded))
		copy(backup, encoded)
		// Self/bytenr field: first field after csum+fsid in the
		// super-block layout; each backup records its own offset.
		selfOff := btrfs.CSumSize + btrfs.UUIDSize
		be := btrfs.NewWriter(backup[selfOff:])
		be.PutUint64(off)
		btrfs.RecomputeChecksum(backup)
		if _, err := r.out.WriteAt(backup, int64(off)); err != nil {
			return ErrIO("write backup super-block", err)
		}
	}
	return nil
}

// targetSize reports the output target's current size, used to decide
// which backup-super mirrors currently fit.
func (r *Restorer) targetSize() (int64, error) {
	return r.out.Size()
}
