package gitodb

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind is the closed taxonomy of error conditions the core can return.
// Every error produced by this package carries one of these; callers should
// switch on Kind rather than string-matching messages.
type ErrKind int

const (
	// KindNotARepository means the supplied path resolves to neither a
	// directory nor a recognizable gitdir pointer.
	KindNotARepository ErrKind = iota + 1
	// KindObjectNotFound means a fingerprint is absent from loose storage
	// and every enumerated pack.
	KindObjectNotFound
	// KindNoSuchRef means a named ref could not be resolved.
	KindNoSuchRef
	// KindUnsupportedIndex means a .idx file's version is neither 1 nor 2.
	KindUnsupportedIndex
	// KindUnsupportedPack means a .pack file's magic or version is wrong.
	KindUnsupportedPack
	// KindUnsupportedLargePack means a v2 index entry needs the 64-bit
	// offset table, which this core rejects.
	KindUnsupportedLargePack
	// KindUnknownObjectType means a pack entry's type code is outside
	// {1,2,3,4,6,7}.
	KindUnknownObjectType
	// KindMalformedDelta means a delta instruction stream violates a
	// bounds or size invariant.
	KindMalformedDelta
	// KindTruncated means a read ended before the expected number of
	// bytes was produced.
	KindTruncated
	// KindIoError wraps an unclassified filesystem failure.
	KindIoError
	// KindCorruptObject means a header size disagreed with payload
	// length, or the framing-fingerprint check failed.
	KindCorruptObject
)

func (k ErrKind) String() string {
	switch k {
	case KindNotARepository:
		return "NotARepository"
	case KindObjectNotFound:
		return "ObjectNotFound"
	case KindNoSuchRef:
		return "NoSuchRef"
	case KindUnsupportedIndex:
		return "UnsupportedIndex"
	case KindUnsupportedPack:
		return "UnsupportedPack"
	case KindUnsupportedLargePack:
		return "UnsupportedLargePack"
	case KindUnknownObjectType:
		return "UnknownObjectType"
	case KindMalformedDelta:
		return "MalformedDelta"
	case KindTruncated:
		return "Truncated"
	case KindIoError:
		return "IoError"
	case KindCorruptObject:
		return "CorruptObject"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every exported function in this package
// returns. It is never swallowed and never retried internally.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, KindObjectNotFound-flavored sentinels) work by
// comparing Kind when the target is itself an *Error.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newErr(kind ErrKind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(msg, args...)}
}

func wrapErr(kind ErrKind, cause error, msg string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(msg, args...), Cause: errors.WithStack(cause)}
}

// Sentinel values for errors.Is callers that only care about the kind, e.g.
// errors.Is(err, gitodb.ErrObjectNotFound).
var (
	ErrNotARepository       = &Error{Kind: KindNotARepository}
	ErrObjectNotFound       = &Error{Kind: KindObjectNotFound}
	ErrNoSuchRef            = &Error{Kind: KindNoSuchRef}
	ErrUnsupportedIndex     = &Error{Kind: KindUnsupportedIndex}
	ErrUnsupportedPack      = &Error{Kind: KindUnsupportedPack}
	ErrUnsupportedLargePack = &Error{Kind: KindUnsupportedLargePack}
	ErrUnknownObjectType    = &Error{Kind: KindUnknownObjectType}
	ErrMalformedDelta       = &Error{Kind: KindMalformedDelta}
	ErrTruncated            = &Error{Kind: KindTruncated}
	ErrIoError              = &Error{Kind: KindIoError}
	ErrCorruptObject        = &Error{Kind: KindCorruptObject}
)
