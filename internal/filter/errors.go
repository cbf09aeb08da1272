package filter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperand is returned when a setFacet operand is rejected; the
	// prior state is retained.
	ErrInvalidOperand = errors.New("invalid operand")
	// ErrUnknownFacet is returned for a facet id the view does not declare.
	ErrUnknownFacet = errors.New("unknown facet")
)

// OperandError describes a rejected operand. It matches ErrInvalidOperand
// under errors.Is.
type OperandError struct {
	FacetID string
	Operand any
	Reason  string
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("invalid operand %v for facet %q: %s", e.Operand, e.FacetID, e.Reason)
}

func (e *OperandError) Unwrap() error { return ErrInvalidOperand }
