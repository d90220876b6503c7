package fm

import "fmt"

// ErrorKind is the stable status code surfaced across the fm boundary.
// The numeric values are part of the format contract and must not change
// between releases; consumers on the far side of a sink callback match on
// them directly.
type ErrorKind int

const (
	KindOk                 ErrorKind = 0
	KindIoError            ErrorKind = 3
	KindMalformedData      ErrorKind = 6
	KindUnsupportedFeature ErrorKind = 7
)

// String returns the canonical name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindIoError:
		return "io error"
	case KindMalformedData:
		return "malformed data"
	case KindUnsupportedFeature:
		return "unsupported feature"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// Error carries an ErrorKind alongside a human-readable message and an
// optional underlying cause (typically the sink's error for KindIoError).
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err. A nil error maps to KindOk;
// errors that did not originate here map to KindIoError, the only kind a
// foreign error can plausibly represent.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindOk
	}
	if fe, ok := err.(*Error); ok {
		return fe.Kind
	}
	return KindIoError
}

func ioErr(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindIoError, Message: fmt.Sprintf(format, args...), Err: err}
}

func malformed(format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformedData, Message: fmt.Sprintf(format, args...)}
}

func unsupported(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnsupportedFeature, Message: fmt.Sprintf(format, args...)}
}
