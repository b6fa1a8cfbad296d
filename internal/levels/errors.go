package levels

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories a caller can branch on.
type ErrorKind int

const (
	// KindNoLakeSelected: a period fetch was requested before any lake was selected.
	KindNoLakeSelected ErrorKind = iota + 1
	// KindTransport: connectivity, timeout, non-2xx status or oversized body for one candidate.
	KindTransport
	// KindParse: malformed payload or no samples survived filtering for one candidate.
	KindParse
	// KindNoData: every candidate failed.
	KindNoData
	// KindCacheCorrupt: a cached artifact was unreadable, mismatched, from the future or expired.
	KindCacheCorrupt
	// KindCacheWrite: a snapshot could not be persisted.
	KindCacheWrite
	// KindInvalidPeriod: a fetch was requested for a period outside the canonical set.
	KindInvalidPeriod
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoLakeSelected:
		return "no_lake_selected"
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindNoData:
		return "no_data"
	case KindCacheCorrupt:
		return "cache_corrupt"
	case KindCacheWrite:
		return "cache_write"
	case KindInvalidPeriod:
		return "invalid_period"
	default:
		return "unknown"
	}
}

// Error is a tagged error with an optional human-readable detail.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: KindNoData}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return 0
}

const (
	msgNoLakeSelected = "no lake selected"
	msgNoData         = "no data available for this lake"
	msgInvalidPeriod  = "invalid period"
)
