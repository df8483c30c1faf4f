package domain

import "errors"

// Sentinel errors for the lending domain. Use errors.Is() to check these.
var (
	// ErrItemNotFound indicates the catalog item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrRecordNotFound indicates the lending record does not exist.
	ErrRecordNotFound = errors.New("lending record not found")

	// ErrNotAvailable indicates the item has no copies left to lend.
	ErrNotAvailable = errors.New("item not available")

	// ErrForbidden indicates the caller is neither the holder nor privileged.
	ErrForbidden = errors.New("not allowed to act on this record")

	// ErrAlreadyReturned indicates the record is already in the Returned state.
	ErrAlreadyReturned = errors.New("item already returned")

	// ErrRecordActive indicates a delete was attempted on a loan not yet returned.
	ErrRecordActive = errors.New("lending record is still active")

	// ErrAlreadyBorrowed indicates the holder already has an active loan of
	// this item. Only raised when single-active-loan enforcement is on.
	ErrAlreadyBorrowed = errors.New("item already borrowed by holder")

	// ErrStockInvariant indicates a stock write would exceed total copies or
	// drop below zero. Seeing this means the data is already inconsistent.
	ErrStockInvariant = errors.New("stock invariant violated")

	// ErrTransient wraps infrastructure failures (connection loss, lock
	// timeout, cancellation). The operation was rolled back and may be retried.
	ErrTransient = errors.New("transient storage failure")
)
