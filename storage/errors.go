package storage

import (
	"errors"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrQuotaExceeded is reported when the substrate is out of space.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrSerializationFailed is reported when a value cannot be encoded.
	ErrSerializationFailed = errors.New("storage: serialization failed")
	// ErrUnavailable is reported when the substrate cannot be used at all.
	ErrUnavailable = errors.New("storage: unavailable")
	// ErrCorruptedEntry is reported when a persisted entry cannot be decoded.
	ErrCorruptedEntry = errors.New("storage: corrupted entry")
)

// Error describes a failed storage operation.
type Error struct {
	Op   string // "set", "probe", "load", ...
	Key  string
	Kind error // one of the Err* kinds above
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(" (op=")
		b.WriteString(e.Op)
		if e.Key != "" {
			b.WriteString(" key=")
			b.WriteString(e.Key)
		}
		b.WriteByte(')')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the storage kind carried by err, or nil if err is not a
// storage error.
func KindOf(err error) error {
	for _, k := range []error{ErrQuotaExceeded, ErrSerializationFailed, ErrUnavailable, ErrCorruptedEntry} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
