package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrBusy             = errors.New("resource busy")
)

// ConflictError is returned when a requested range overlaps reserved days
type ConflictError struct {
	ProductID int64
	Start     time.Time
	End       time.Time
	Reason    string
}

func (e *ConflictError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "dates already reserved"
	}
	return fmt.Sprintf("product %d not available from %s to %s: %s",
		e.ProductID, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"), reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError is returned when a referenced entity does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFoundError for a numeric id.
func NewNotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprintf("%d", id)}
}

// ValidationError is returned for input the service refuses to act on
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation builds a ValidationError.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreUnavailableError wraps a failed persistence call
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

// Is lets errors.Is match both the sentinel and the underlying driver error.
func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// BusyError is returned when another booking of the same product holds the
// booking lock. The request did not touch the calendar and may be retried.
type BusyError struct {
	ProductID int64
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("product %d: another booking is in progress, retry shortly", e.ProductID)
}

func (e *BusyError) Unwrap() error { return ErrBusy }
