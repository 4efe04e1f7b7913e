package subintent

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

var (
	// ErrDecode classifies instruction payloads that cannot be read as the expected shape.
	ErrDecode = errors.New("decode error")
	// ErrSequence classifies well-formed instructions the current state does not accept.
	ErrSequence = errors.New("sequence error")
	// ErrConfig classifies missing venue configuration.
	ErrConfig = errors.New("configuration error")
	// ErrIncomplete is returned when the instructions end before the order completes.
	ErrIncomplete = errors.New("incomplete limit order manifest")
	// ErrInvalidOrder is returned by the builder for orders it must not emit.
	ErrInvalidOrder = errors.New("invalid limit order")
)

// RejectionKind is the error taxonomy of a rejection.
type RejectionKind int

const (
	KindDecode RejectionKind = iota
	KindSequence
	KindConfig
)

func (k RejectionKind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindSequence:
		return "sequence"
	case KindConfig:
		return "config"
	default:
		return fmt.Sprintf("RejectionKind(%d)", int(k))
	}
}

func (k RejectionKind) sentinel() error {
	switch k {
	case KindDecode:
		return ErrDecode
	case KindConfig:
		return ErrConfig
	default:
		return ErrSequence
	}
}

// RejectionError carries the offending instruction and the validator state
// at the time of rejection. Index is -1 when no single instruction is at fault.
type RejectionError struct {
	Kind        RejectionKind
	State       State
	Index       int
	Instruction ledger.Instruction
	Reason      string
	Err         error
}

func (e *RejectionError) Error() string {
	if e.Instruction == nil {
		return fmt.Sprintf("%s rejected in state %s: %s", e.Kind, e.State, e.Reason)
	}
	return fmt.Sprintf("%s rejected in state %s at instruction %d: %s (was: %s)",
		e.Kind, e.State, e.Index, e.Reason, e.Instruction)
}

// Unwrap exposes the kind sentinel and, if set, the underlying cause.
func (e *RejectionError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}
