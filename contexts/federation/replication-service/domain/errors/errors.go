package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest             = errors.New("invalid request")
	ErrUnauthorized               = errors.New("federation signature rejected")
	ErrPeerUnknown                = errors.New("federation peer unknown")
	ErrOriginMismatch             = errors.New("server is mirrored from another origin")
	ErrSequenceGap                = errors.New("sequence gap")
	ErrUnknownEventType           = errors.New("unknown event type")
	ErrMalformedPayload           = errors.New("malformed payload")
	ErrUnsupportedSnapshotVersion = errors.New("unsupported snapshot version")
	ErrServerNotFound             = errors.New("server not found")
	ErrChannelNotFound            = errors.New("channel not found")
	ErrMessageNotFound            = errors.New("message not found")
	ErrNotLocalServer             = errors.New("server is a federated mirror")
	ErrCursorConflict             = errors.New("sequence cursor changed concurrently")
	ErrRepositoryInvariantBroke   = errors.New("repository invariant violated")
)

// SequenceGapError reports a delivery that skipped ahead of the stream cursor.
type SequenceGapError struct {
	OriginDomain string
	StreamID     string
	Expected     int64
	Received     int64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("sequence gap on %s/%s: expected %d, received %d",
		e.OriginDomain, e.StreamID, e.Expected, e.Received)
}

func (e *SequenceGapError) Unwrap() error {
	return ErrSequenceGap
}

// MalformedPayloadError carries the reason a payload was rejected.
type MalformedPayloadError struct {
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return "malformed payload: " + e.Reason
}

func (e *MalformedPayloadError) Unwrap() error {
	return ErrMalformedPayload
}

func Malformed(reason string) error {
	return &MalformedPayloadError{Reason: reason}
}
