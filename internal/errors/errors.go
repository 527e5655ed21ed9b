// Package errors provides error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeInvalidUsageType indicates a record without a usable usage type
	TypeInvalidUsageType Type = "INVALID_USAGE_TYPE"

	// TypeCatalogUnavailable indicates the pricing catalog could not be queried
	TypeCatalogUnavailable Type = "CATALOG_UNAVAILABLE"

	// TypeNoPriceFound indicates the catalog had no entry for a usage type.
	// It is a soft failure: the record passes through unenriched.
	TypeNoPriceFound Type = "NO_PRICE_FOUND"

	// TypeMalformedCatalogEntry indicates a catalog entry without the
	// terms/OnDemand/priceDimensions/pricePerUnit structure
	TypeMalformedCatalogEntry Type = "MALFORMED_CATALOG_ENTRY"

	// TypeInvalidTimeRange indicates a negative billing quantity
	TypeInvalidTimeRange Type = "INVALID_TIME_RANGE"

	// TypeMissingBillingField indicates the active billing mode's field is absent
	TypeMissingBillingField Type = "MISSING_BILLING_FIELD"

	// TypeFormat indicates a serialization or output write failure
	TypeFormat Type = "FORMAT_ERROR"

	// TypeInvalidRecord indicates an input payload that is not a single CDR
	TypeInvalidRecord Type = "INVALID_RECORD"

	// TypeStorage indicates an object read failure
	TypeStorage Type = "STORAGE_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasType checks if the error is of a specific type
func (e *Error) HasType(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsType reports whether any error in err's chain is a domain error of type t
func IsType(err error, t Type) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// TypeOf returns the type of the first domain error in err's chain, or ""
func TypeOf(err error) Type {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// InvalidUsageType creates a usage type error
func InvalidUsageType(message string) *Error {
	return New(TypeInvalidUsageType, message)
}

// CatalogUnavailable creates a catalog error
func CatalogUnavailable(message string, cause error) *Error {
	return Wrap(TypeCatalogUnavailable, message, cause)
}

// NoPriceFound creates a soft pricing error
func NoPriceFound(usageType string) *Error {
	return Newf(TypeNoPriceFound, "no price found for usage type %s", usageType)
}

// MalformedCatalogEntry creates a catalog entry structure error
func MalformedCatalogEntry(message string) *Error {
	return New(TypeMalformedCatalogEntry, message)
}

// InvalidTimeRange creates a billing quantity error
func InvalidTimeRange(message string) *Error {
	return New(TypeInvalidTimeRange, message)
}

// MissingBillingField creates a missing field error
func MissingBillingField(field string) *Error {
	return Newf(TypeMissingBillingField, "record has no %s", field).WithContext("field", field)
}

// Format creates a serialization error
func Format(message string, cause error) *Error {
	return Wrap(TypeFormat, message, cause)
}

// InvalidRecord creates an input payload error
func InvalidRecord(message string, cause error) *Error {
	return Wrap(TypeInvalidRecord, message, cause)
}

// Storage creates an object storage error
func Storage(message string, cause error) *Error {
	return Wrap(TypeStorage, message, cause)
}

// Config creates a configuration error
func Config(message string) *Error {
	return New(TypeConfig, message)
}
