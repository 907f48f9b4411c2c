package errors

import "fmt"

// NormalizationError is raised by the normalizer for any identity-service
// response that is neither a valid 200 nor a 404: callers treat it as a
// whole-batch failure, never a per-id one.
type NormalizationError struct {
	*AppError
}

func NewNormalizationError(message string) *NormalizationError {
	return &NormalizationError{New(ErrorTypeExternal, SeverityHigh, message)}
}

func NormalizationErrorf(format string, args ...interface{}) *NormalizationError {
	return &NormalizationError{New(ErrorTypeExternal, SeverityHigh, fmt.Sprintf(format, args...))}
}

// GraphDBConnectionError surfaces connection or value-level failures from
// the graph store adapter. It aborts the current phase; whatever was
// already committed to the relational store stays durable.
type GraphDBConnectionError struct {
	*AppError
}

func NewGraphDBConnectionError(cause error) *GraphDBConnectionError {
	return &GraphDBConnectionError{Wrap(cause, ErrorTypeExternal, SeverityCritical, "graph database connection error")}
}

// AnnotationFailedError is raised when the variant annotator's external
// subprocess fails; it never affects already-written association data.
type AnnotationFailedError struct {
	*AppError
	ActualError string
}

func NewAnnotationFailedError(message, actualError string) *AnnotationFailedError {
	return &AnnotationFailedError{
		AppError:    New(ErrorTypeExternal, SeverityMedium, message),
		ActualError: actualError,
	}
}
