package ledger

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// DecimalPlaces is the fixed-point precision of ledger decimals.
const DecimalPlaces = 18

// CheckAmount reports whether d is a representable, non-negative ledger amount.
func CheckAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("amount %s is negative", d)
	}
	if !d.Equal(d.Truncate(DecimalPlaces)) {
		return fmt.Errorf("amount %s exceeds %d decimal places", d, DecimalPlaces)
	}
	return nil
}

// AccessRule is an SBOR-encoded access predicate. The protocol carries it
// opaquely and never evaluates it.
type AccessRule []byte

func (r AccessRule) Equal(o AccessRule) bool { return bytes.Equal(r, o) }

func (r AccessRule) String() string { return hexutil.Encode(r) }

func (r AccessRule) MarshalText() ([]byte, error) { return []byte(hexutil.Encode(r)), nil }

func (r *AccessRule) UnmarshalText(text []byte) error {
	raw, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid access rule: %w", err)
	}
	*r = raw
	return nil
}

// ParseAccessRuleHex accepts the hex blob served by the trading API, with or
// without the 0x prefix.
func ParseAccessRuleHex(s string) (AccessRule, error) {
	if len(s) < 2 || s[:2] != "0x" {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid access rule hex: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty access rule")
	}
	return AccessRule(raw), nil
}

// NonFungibleLocalID uses the ledger's string forms: #123#, <name>, [hex], {uuid}.
type NonFungibleLocalID string

var localIDPattern = regexp.MustCompile(`^(#[0-9]+#|<[A-Za-z0-9_]{1,64}>|\[[0-9a-fA-F]{2,128}\]|\{[0-9a-fA-F]{16}(-[0-9a-fA-F]{16}){3}\})$`)

func (id NonFungibleLocalID) Validate() error {
	if !localIDPattern.MatchString(string(id)) {
		return fmt.Errorf("invalid non-fungible local id %q", string(id))
	}
	return nil
}

// ConstraintKind enumerates resource constraints.
type ConstraintKind string

const (
	ConstraintNonZeroAmount       ConstraintKind = "NonZeroAmount"
	ConstraintExactAmount         ConstraintKind = "ExactAmount"
	ConstraintAtLeastAmount       ConstraintKind = "AtLeastAmount"
	ConstraintExactNonFungibles   ConstraintKind = "ExactNonFungibles"
	ConstraintAtLeastNonFungibles ConstraintKind = "AtLeastNonFungibles"
)

// ResourceConstraint bounds what a resource balance may be.
type ResourceConstraint struct {
	Kind   ConstraintKind       `json:"kind"`
	Amount decimal.Decimal      `json:"amount,omitempty"`
	IDs    []NonFungibleLocalID `json:"ids,omitempty"`
}

func AtLeastAmount(d decimal.Decimal) ResourceConstraint {
	return ResourceConstraint{Kind: ConstraintAtLeastAmount, Amount: d}
}

func ExactAmount(d decimal.Decimal) ResourceConstraint {
	return ResourceConstraint{Kind: ConstraintExactAmount, Amount: d}
}

func NonZeroAmount() ResourceConstraint {
	return ResourceConstraint{Kind: ConstraintNonZeroAmount}
}

// ConstraintEntry pairs a resource with its constraint.
type ConstraintEntry struct {
	Resource   ResourceAddress    `json:"resource"`
	Constraint ResourceConstraint `json:"constraint"`
}

// ResourceConstraints keeps insertion order; a resource appears at most once.
type ResourceConstraints []ConstraintEntry

// With returns a copy extended by one entry. A duplicate resource replaces
// the earlier constraint in place.
func (c ResourceConstraints) With(resource ResourceAddress, constraint ResourceConstraint) ResourceConstraints {
	out := make(ResourceConstraints, 0, len(c)+1)
	replaced := false
	for _, e := range c {
		if e.Resource == resource {
			out = append(out, ConstraintEntry{Resource: resource, Constraint: constraint})
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, ConstraintEntry{Resource: resource, Constraint: constraint})
	}
	return out
}

// Validate rejects duplicate resources and constraints carrying fields
// their kind does not use.
func (c ResourceConstraints) Validate() error {
	seen := make(map[ResourceAddress]struct{}, len(c))
	for _, e := range c {
		if _, dup := seen[e.Resource]; dup {
			return fmt.Errorf("duplicate constraint for resource %s", e.Resource)
		}
		seen[e.Resource] = struct{}{}
		if err := e.Constraint.Validate(); err != nil {
			return fmt.Errorf("constraint for resource %s: %w", e.Resource, err)
		}
	}
	return nil
}

func (rc ResourceConstraint) Validate() error {
	switch rc.Kind {
	case ConstraintExactAmount, ConstraintAtLeastAmount:
		if len(rc.IDs) != 0 {
			return fmt.Errorf("%s carries non-fungible ids", rc.Kind)
		}
	case ConstraintNonZeroAmount:
		if len(rc.IDs) != 0 || !rc.Amount.IsZero() {
			return fmt.Errorf("%s carries an amount or ids", rc.Kind)
		}
	case ConstraintExactNonFungibles, ConstraintAtLeastNonFungibles:
		if !rc.Amount.IsZero() {
			return fmt.Errorf("%s carries an amount", rc.Kind)
		}
		for _, id := range rc.IDs {
			if err := id.Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown constraint kind %q", rc.Kind)
	}
	return nil
}
