// Package apperrors defines the typed errors the core raises. The store and
// cache raise them upward; the service never retries on its own, since
// retrying a busy workbook is a human decision ("close the file and retry").
package apperrors

import "fmt"

// ValidationError reports invalid input detected before the store is
// touched. No partial state change has occurred when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BusyError means the workbook could not be opened exclusively for writing,
// usually because someone has it open in Excel. Surfaced verbatim, never
// retried automatically.
type BusyError struct {
	Path string
	Err  error
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("workbook %s is locked by another writer", e.Path)
}

func (e *BusyError) Unwrap() error { return e.Err }

// NotFoundError is the normal empty-result outcome of a search, distinct
// from a fault.
type NotFoundError struct {
	OrderNo string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no rows found for order %s", e.OrderNo)
}

// CalendarError means a local-calendar date failed strict conversion. A
// record whose date failed conversion must not be persisted.
type CalendarError struct {
	Input  string
	Reason string
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("cannot convert date %q: %s", e.Input, e.Reason)
}

// CorruptCacheError is internal to the cache layer: an unreadable side file
// degrades silently to a full rebuild and is never surfaced to a caller.
type CorruptCacheError struct {
	Path string
	Err  error
}

func (e *CorruptCacheError) Error() string {
	return fmt.Sprintf("cache side file %s is corrupt", e.Path)
}

func (e *CorruptCacheError) Unwrap() error { return e.Err }
