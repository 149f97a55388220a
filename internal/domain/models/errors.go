package models

import "errors"

var (
	// ErrInsufficientData means the series is too short for the requested indicator or period.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateSeries means a zero price range or zero volume where division is required.
	ErrDegenerateSeries = errors.New("degenerate series")
	// ErrInvalidPriceData means non-positive or equal entry/stop values.
	ErrInvalidPriceData = errors.New("invalid price data")
	// ErrDataUnavailable means upstream market data timed out or was malformed.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrPersistenceFailure means a durable write to the rejection ledger failed.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// IsLocal reports whether err only invalidates a single indicator or signal for this cycle.
func IsLocal(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDegenerateSeries) ||
		errors.Is(err, ErrInvalidPriceData)
}
