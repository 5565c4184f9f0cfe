package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline fault. Everything except KindConfiguration is
// contained and surfaced as a run warning.
type Kind string

const (
	// KindDatasetUnavailable marks an ingestion download or parse failure,
	// recovered by falling back to the bundled sample.
	KindDatasetUnavailable Kind = "DATASET_UNAVAILABLE"

	// KindSourceUnavailable marks one enrichment source failing; the
	// collector degrades to a zero-count signal.
	KindSourceUnavailable Kind = "SOURCE_UNAVAILABLE"

	// KindMalformedRecord marks a parcel row that cannot be minimally
	// parsed; the row is skipped and counted.
	KindMalformedRecord Kind = "MALFORMED_RECORD"

	// KindConfiguration marks invalid threshold/weight values. Fatal at
	// startup, before any run begins.
	KindConfiguration Kind = "CONFIGURATION"
)

// Error is a classified pipeline fault.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DatasetUnavailable wraps a dataset download/parse failure.
func DatasetUnavailable(message string, err error) *Error {
	return &Error{Kind: KindDatasetUnavailable, Message: message, Err: err}
}

// SourceUnavailable wraps a single enrichment source failure.
func SourceUnavailable(source string, err error) *Error {
	return &Error{Kind: KindSourceUnavailable, Message: fmt.Sprintf("source %s unavailable", source), Err: err}
}

// MalformedRecord describes a skipped parcel row.
func MalformedRecord(message string) *Error {
	return &Error{Kind: KindMalformedRecord, Message: message}
}

// Configuration describes an invalid configuration value.
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
