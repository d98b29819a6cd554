package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when the payload is null or resolves to no records.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrNoValidRecords is returned when validation leaves nothing to process.
	ErrNoValidRecords = errors.New("no valid records in dataset")
	// ErrConcurrentLoad is returned when a load is started while another is in flight.
	ErrConcurrentLoad = errors.New("a load is already in progress")
)

// MissingFieldError reports a required key absent from a raw record.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// InvalidStringError reports a field that is not a string or is blank.
type InvalidStringError struct {
	Field string
}

func (e *InvalidStringError) Error() string {
	return fmt.Sprintf("field %q must be a non-empty string", e.Field)
}

// InvalidNumberError reports a field that does not coerce to a finite number.
type InvalidNumberError struct {
	Field string
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("field %q must be a finite number", e.Field)
}

// InvalidDateError reports a field that could not be parsed as a date.
type InvalidDateError struct {
	Field string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("field %q must be an ISO-8601 date", e.Field)
}

// OutOfRangeError reports a value outside its allowed domain.
// Min and Max are rendered as text so dates and prices share one type.
type OutOfRangeError struct {
	Field string
	Value any
	Min   string
	Max   string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("field %q value %v out of range [%s, %s]", e.Field, e.Value, e.Min, e.Max)
}

// MalformedDatasetError reports a payload that is neither an array nor a
// {"data": [...]} envelope.
type MalformedDatasetError struct {
	Reason string
	Err    error
}

func (e *MalformedDatasetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed dataset: %s: %v", e.Reason, e.Err)
	}
	return "malformed dataset: " + e.Reason
}

func (e *MalformedDatasetError) Unwrap() error { return e.Err }

// DataQualityError is returned when more than the tolerated share of
// records fail validation.
type DataQualityError struct {
	Rejected int
	Total    int
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality check failed: %d of %d records invalid", e.Rejected, e.Total)
}

// ProcessingError wraps an unexpected failure while deriving fields.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed: %v", e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// RetrievalError reports a transport failure while fetching a source.
// StatusCode is zero when no response was received.
type RetrievalError struct {
	SourceID   string
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("retrieve %s: status %d: %v", e.SourceID, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("retrieve %s: status %d", e.SourceID, e.StatusCode)
	default:
		return fmt.Sprintf("retrieve %s: %v", e.SourceID, e.Err)
	}
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// UnsupportedFormatError is returned by export for unknown formats.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported export format %q", e.Format)
}
