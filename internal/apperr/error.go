// Package apperr defines the error kinds surfaced to callers of the
// calendar core. Callers switch on Kind; Message is for humans.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation                 Kind = "VALIDATION"
	KindCalendarNotFoundOrDisabled Kind = "CALENDAR_NOT_FOUND_OR_DISABLED"
	KindProviderUpdateFailed       Kind = "PROVIDER_UPDATE_FAILED"
	KindConfirmationFailed         Kind = "CONFIRMATION_FAILED"
	KindStorage                    Kind = "STORAGE"
	KindConfig                     Kind = "CONFIG"
	KindInternal                   Kind = "INTERNAL"
)

// Messages returned to callers.
const (
	MsgMissingFields    = "Missing required fields"
	MsgInvalidTimeRange = "Invalid event time range"
	MsgCalendarNotFound = "Calendar not found or not enabled"
	MsgUpdateFailed     = "Failed to update calendar event"
	MsgRetrieveFailed   = "Failed to retrieve updated event"
)

// Error is a classified error. Error() deliberately returns only the
// message; the wrapped cause is reachable through Unwrap for logging.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches a key/value pair of context.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Cause renders the wrapped error chain, for logs only.
func (e *Error) Cause() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func MissingField(field string) *Error {
	return New(KindValidation, MsgMissingFields).WithDetail("field", field)
}

func InvalidTimeRange() *Error {
	return New(KindValidation, MsgInvalidTimeRange)
}

func CalendarNotFound(calendarID string) *Error {
	return New(KindCalendarNotFoundOrDisabled, MsgCalendarNotFound).WithDetail("calendarId", calendarID)
}

func UpdateFailed(err error) *Error {
	return Wrap(err, KindProviderUpdateFailed, MsgUpdateFailed)
}

func ConfirmationFailed(sourceEventID string) *Error {
	return New(KindConfirmationFailed, MsgRetrieveFailed).WithDetail("sourceEventId", sourceEventID)
}

func Storage(operation string, err error) *Error {
	return Wrap(err, KindStorage, fmt.Sprintf("storage error: %s", operation))
}

func Config(message string) *Error {
	return New(KindConfig, message)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
