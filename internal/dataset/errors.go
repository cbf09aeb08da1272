package dataset

import (
	"errors"
	"fmt"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
)

var (
	// ErrSuperseded is returned by a refresh whose result was discarded
	// because a newer refresh started before it completed.
	ErrSuperseded = errors.New("refresh superseded by a newer request")
	// ErrRangeUnset is returned when either side of the range is missing; no
	// fetch is issued.
	ErrRangeUnset = errors.New("date range not selected")
)

// FetchError is a failed fetch. The previous master collection is retained.
type FetchError struct {
	Range daterange.Range
	// Status is the HTTP status code when the backend answered, else 0.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Range, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Range, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AsFetchError wraps err as a *FetchError for r unless it already is one.
func AsFetchError(r daterange.Range, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if !fe.Range.IsSet() {
			fe.Range = r
		}
		return fe
	}
	return &FetchError{Range: r, Err: err}
}
