// Package pipeline defines the error taxonomy shared by the per-slide
// pipeline stages and the batch orchestrator.
package pipeline

import (
	"errors"
	"fmt"
)

// TaskError represents an error raised by one stage of the slide pipeline.
type TaskError struct {
	Code    ErrorCode
	Message string
	Source  string
	Cause   error
}

// ErrorCode represents the type of pipeline error.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a fatal batch-level configuration error.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeMissingSource indicates the source image is absent on disk.
	ErrCodeMissingSource ErrorCode = "MISSING_SOURCE"
	// ErrCodeInvalidImage indicates the decoder rejected the source image.
	ErrCodeInvalidImage ErrorCode = "INVALID_IMAGE"
	// ErrCodeExtraction indicates the tiling engine terminated abnormally.
	ErrCodeExtraction ErrorCode = "EXTRACTION_ERROR"
	// ErrCodeArchive indicates a failure writing to the shared archive.
	ErrCodeArchive ErrorCode = "ARCHIVE_ERROR"
)

// Error implements the error interface.
func (e *TaskError) Error() string {
	switch {
	case e.Cause != nil && e.Source != "":
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Message, e.Source, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	case e.Source != "":
		return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, e.Source)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a fatal batch-level configuration error.
func NewConfigurationError(message string) *TaskError {
	return &TaskError{Code: ErrCodeConfiguration, Message: message}
}

// NewMissingSourceError creates an error for an absent source image.
func NewMissingSourceError(source string) *TaskError {
	return &TaskError{Code: ErrCodeMissingSource, Message: "source image does not exist", Source: source}
}

// NewInvalidImageError creates an error carrying the decoder diagnostic.
func NewInvalidImageError(source, diagnostic string, cause error) *TaskError {
	msg := "decoder rejected image"
	if diagnostic != "" {
		msg = fmt.Sprintf("decoder rejected image: %s", diagnostic)
	}
	return &TaskError{Code: ErrCodeInvalidImage, Message: msg, Source: source, Cause: cause}
}

// NewExtractionError creates an error for an abnormal engine termination.
func NewExtractionError(source, message string, cause error) *TaskError {
	return &TaskError{Code: ErrCodeExtraction, Message: message, Source: source, Cause: cause}
}

// NewArchiveError creates an error for a failed archive write.
func NewArchiveError(message string, cause error) *TaskError {
	return &TaskError{Code: ErrCodeArchive, Message: message, Cause: cause}
}

// hasCode checks whether err is a TaskError with the given code.
func hasCode(err error, code ErrorCode) bool {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Code == code
	}
	return false
}

// IsConfigurationError checks if the error is a fatal configuration error.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsMissingSourceError checks if the error is a missing source error.
func IsMissingSourceError(err error) bool {
	return hasCode(err, ErrCodeMissingSource)
}

// IsInvalidImageError checks if the error is an invalid image error.
func IsInvalidImageError(err error) bool {
	return hasCode(err, ErrCodeInvalidImage)
}

// IsExtractionError checks if the error is an extraction error.
func IsExtractionError(err error) bool {
	return hasCode(err, ErrCodeExtraction)
}

// IsArchiveError checks if the error is an archive write error.
func IsArchiveError(err error) bool {
	return hasCode(err, ErrCodeArchive)
}
