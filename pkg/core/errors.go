package core

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrReadOnly     = errors.New("ledger is in read-only mode")
	ErrInvalidInput = errors.New("invalid input")
	ErrTransport    = errors.New("ledger transport failure")
	ErrDecode       = errors.New("record payload could not be decoded")
	ErrPartialBatch = errors.New("operation partially applied")
)

// ClientError is the ledger service's own failure report: a non-success
// response with an error code and message.
type ClientError struct {
	Code    int
	Message string
	// Transient marks failures worth retrying (service warming up, 5xx, ...).
	Transient bool
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("ledger error %d: %s", e.Code, e.Message)
}

// Temporary reports whether retrying the call may succeed.
func (e *ClientError) Temporary() bool { return e.Transient }

// TransportError is the single failure type surfaced for any ledger call
// that did not succeed.
type TransportError struct {
	Op      string
	Stream  StreamID
	Code    int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Stream != "" {
		sb.WriteString(" ")
		sb.WriteString(string(e.Stream))
	}
	sb.WriteString(": ")
	if e.Code != 0 {
		fmt.Fprintf(&sb, "code %d: ", e.Code)
	}
	sb.WriteString(e.Message)
	return sb.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NewTransportError classifies err, keeping the ledger's code and message when present.
func NewTransportError(op string, stream StreamID, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	out := &TransportError{Op: op, Stream: stream, Message: err.Error(), Err: err}
	var ce *ClientError
	if errors.As(err, &ce) {
		out.Code = ce.Code
		out.Message = ce.Message
	}
	return out
}

// DecodeError reports a record whose payload could not be parsed.
// It never leaves the read path: the record is kept with an empty payload.
type DecodeError struct {
	Stream   StreamID
	RecordID string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s record %q: %v", e.Stream, e.RecordID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// PartialBatchError reports a multi-step write that failed after at least
// one step was already appended. Nothing is rolled back.
type PartialBatchError struct {
	Op        string
	Step      string
	Completed []string
	Err       error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%s failed at step %q after %s: %v",
		e.Op, e.Step, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

func (e *PartialBatchError) Is(target error) bool { return target == ErrPartialBatch }
