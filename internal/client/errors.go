package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zombor/scanbridge/internal/protocol"
)

// Error kinds. Every error returned by the client matches exactly one of
// these with errors.Is.
var (
	ErrSpawn           = errors.New("helper could not be started")
	ErrHelperExecution = errors.New("helper exited with an error")
	ErrHelperOutput    = errors.New("helper output could not be decoded")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrUnsupported     = errors.New("operation not supported by helper")
	ErrScanFailed      = errors.New("scan failed")
	ErrExportFailed    = errors.New("export failed")
	ErrImportFailed    = errors.New("import failed")
	ErrOCRFailed       = errors.New("ocr failed")
	ErrDomain          = errors.New("helper reported an error")
	ErrTimeout         = errors.New("helper call timed out or was canceled")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Error is returned by every client operation.
type Error struct {
	// Op is the helper command, e.g. "scan to-images".
	Op string
	// Kind is one of the Err* sentinels.
	Kind error
	// Message is the human-readable detail: stderr for execution errors,
	// the helper's message for domain errors.
	Message  string
	ExitCode int
	Stderr   string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Kind)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindForRemote maps a helper error kind to a sentinel.
func kindForRemote(k protocol.ErrorKind) error {
	switch k {
	case protocol.KindDeviceNotFound:
		return ErrDeviceNotFound
	case protocol.KindUnsupported:
		return ErrUnsupported
	case protocol.KindScanFailed:
		return ErrScanFailed
	case protocol.KindExportFailed:
		return ErrExportFailed
	case protocol.KindImportFailed:
		return ErrImportFailed
	case protocol.KindOcrFailed:
		return ErrOCRFailed
	default:
		return ErrDomain
	}
}

// decodeFailure wraps an error from a protocol decoder.
func decodeFailure(op string, err error) error {
	var re *protocol.RemoteError
	if errors.As(err, &re) {
		return &Error{Op: op, Kind: kindForRemote(re.Kind), Message: re.Message, Err: re}
	}
	return &Error{Op: op, Kind: ErrHelperOutput, Err: err}
}
