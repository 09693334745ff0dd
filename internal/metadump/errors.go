package metadump

import "golang.org/x/xerrors"

// ErrorKind categorizes a metadump error the way §7 of the design enumerates
// them, so a caller (the CLI's exit-status logic, or a test) can branch on
// what went wrong without string-matching.
type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindFraming
	KindCompression
	KindOutOfMemory
	KindInconsistent
	KindNotSupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "i/o"
	case KindFraming:
		return "framing"
	case KindCompression:
		return "compression"
	case KindOutOfMemory:
		return "out of memory"
	case KindInconsistent:
		return "source filesystem inconsistency"
	case KindNotSupported:
		return "not supported"
	default:
		return "unknown"
	}
}

// Error is a tagged error carrying the kind and, where applicable, the
// underlying OS or library error that triggered it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Op
	}
	return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ErrFraming reports a fatal framing inconsistency on restore (bad magic or
// an unexpected bytenr); no further clusters are processed after it.
func ErrFraming(op string, err error) error { return wrapErr(KindFraming, op, err) }

// ErrIO reports a short read/write or other I/O failure.
func ErrIO(op string, err error) error { return wrapErr(KindIO, op, err) }

// ErrCompression reports a codec failure compressing or decompressing one
// item; it never aborts other in-flight work.
func ErrCompression(op string, err error) error { return wrapErr(KindCompression, op, err) }

// ErrInconsistent reports that the source filesystem could not be read in
// a way dump depends on (missing tree block, missing log-root subtree).
func ErrInconsistent(op string, err error) error { return wrapErr(KindInconsistent, op, err) }

// ErrNotSupported reports a capability the running build does not carry,
// such as the legacy extent-tree-v0 back-reference walk.
var ErrNotSupported = xerrors.New("not supported")
