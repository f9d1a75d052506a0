package errs

import (
	"github.com/pkg/errors"
)

// Kind classifies pipeline errors so the caller can pick a policy
// (abort, skip, fall back) without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration covers missing credentials and invalid settings.
	// Always fatal, detected before any network call.
	KindConfiguration
	// KindTransport covers connection failures and non-success HTTP statuses.
	KindTransport
	// KindParse covers malformed bodies, decompression failures and
	// row-shape mismatches.
	KindParse
	// KindEmptyResult marks a structurally successful fetch that produced
	// zero usable records.
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New creates a kind-tagged error with a stack trace.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Newf creates a kind-tagged error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap annotates err with a message and tags it with kind. Returns nil
// when err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf annotates err with a formatted message and tags it with kind.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// KindOf returns the kind of the outermost tagged error in err's chain,
// or KindUnknown when nothing in the chain is tagged.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		err = errors.Unwrap(err)
	}
	return KindUnknown
}

// IsKind reports whether err's chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
