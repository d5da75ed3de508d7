package report

import (
	"errors"
	"strings"
)

// MalformedPayloadError indicates the message body could not be parsed as a
// JSON object. The payload cannot become valid without being rewritten, so
// this is never retried by the pipeline itself.
type MalformedPayloadError struct {
	Cause error
}

func (e *MalformedPayloadError) Error() string {
	if e.Cause != nil {
		return "malformed payload: " + e.Cause.Error()
	}
	return "malformed payload"
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Cause
}

// MissingFieldError indicates a parseable payload that lacks one or more
// required fields. Fields lists every missing or empty field so a single
// triage pass reveals all defects.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// IsMalformedPayload checks if an error is a malformed payload error
func IsMalformedPayload(err error) bool {
	var mpErr *MalformedPayloadError
	return errors.As(err, &mpErr)
}

// IsMissingField checks if an error is a missing field error
func IsMissingField(err error) bool {
	var mfErr *MissingFieldError
	return errors.As(err, &mfErr)
}

// IsValidationError checks if an error is any validation failure
func IsValidationError(err error) bool {
	return IsMalformedPayload(err) || IsMissingField(err)
}

// FailureKind returns a stable label for a validation error, used in logs,
// metrics dimensions, and audit records
func FailureKind(err error) string {
	switch {
	case IsMalformedPayload(err):
		return "malformed_payload"
	case IsMissingField(err):
		return "missing_field"
	default:
		return "unknown"
	}
}
