package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BucketID is the positional handle of a bucket within one manifest.
type BucketID uint32

// ProofID is the positional handle of a proof within one manifest.
type ProofID uint32

// Expression is a manifest-level placeholder resolved by the engine.
type Expression uint8

const (
	ExpressionEntireWorktop Expression = iota
	ExpressionEntireAuthZone
)

func (e Expression) String() string {
	switch e {
	case ExpressionEntireWorktop:
		return "ENTIRE_WORKTOP"
	case ExpressionEntireAuthZone:
		return "ENTIRE_AUTH_ZONE"
	default:
		return fmt.Sprintf("Expression(%d)", uint8(e))
	}
}

// ValueKind discriminates manifest values.
type ValueKind string

const (
	KindTuple      ValueKind = "Tuple"
	KindArray      ValueKind = "Array"
	KindBucket     ValueKind = "Bucket"
	KindProof      ValueKind = "Proof"
	KindExpression ValueKind = "Expression"
	KindAddress    ValueKind = "Address"
	KindDecimal    ValueKind = "Decimal"
	KindString     ValueKind = "String"
	KindU64        ValueKind = "U64"
	KindLocalID    ValueKind = "NonFungibleLocalId"
)

// Value is a manifest argument value. The concrete types below are the
// only implementations.
type Value interface {
	Kind() ValueKind
	String() string
}

type Tuple struct{ Fields []Value }

type Array struct {
	ElementKind ValueKind
	Elements    []Value
}

type Bucket struct{ ID BucketID }

type Proof struct{ ID ProofID }

type ExpressionValue struct{ Expression Expression }

type AddressValue struct{ Address ManifestAddress }

type DecimalValue struct{ Amount decimal.Decimal }

type StringValue struct{ Value string }

type U64Value struct{ Value uint64 }

type LocalIDValue struct{ ID NonFungibleLocalID }

func (Tuple) Kind() ValueKind           { return KindTuple }
func (Array) Kind() ValueKind           { return KindArray }
func (Bucket) Kind() ValueKind          { return KindBucket }
func (Proof) Kind() ValueKind           { return KindProof }
func (ExpressionValue) Kind() ValueKind { return KindExpression }
func (AddressValue) Kind() ValueKind    { return KindAddress }
func (DecimalValue) Kind() ValueKind    { return KindDecimal }
func (StringValue) Kind() ValueKind     { return KindString }
func (U64Value) Kind() ValueKind        { return KindU64 }
func (LocalIDValue) Kind() ValueKind    { return KindLocalID }

func (t Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "Tuple(" + strings.Join(parts, ", ") + ")"
}

func (a Array) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return fmt.Sprintf("Array<%s>(%s)", a.ElementKind, strings.Join(parts, ", "))
}

func (b Bucket) String() string          { return fmt.Sprintf("Bucket(%d)", b.ID) }
func (p Proof) String() string           { return fmt.Sprintf("Proof(%d)", p.ID) }
func (e ExpressionValue) String() string { return fmt.Sprintf("Expression(%s)", e.Expression) }
func (a AddressValue) String() string    { return fmt.Sprintf("Address(%s)", a.Address) }
func (d DecimalValue) String() string    { return fmt.Sprintf("Decimal(%q)", d.Amount.String()) }
func (s StringValue) String() string     { return fmt.Sprintf("%q", s.Value) }
func (u U64Value) String() string        { return fmt.Sprintf("%du64", u.Value) }
func (l LocalIDValue) String() string    { return fmt.Sprintf("NonFungibleLocalId(%q)", string(l.ID)) }

// Args builds a tuple from the given values.
func Args(values ...Value) Tuple {
	return Tuple{Fields: values}
}

// ValuesEqual compares two values structurally. Decimals compare by value.
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Tuple:
		bv := b.(Tuple)
		return valueSlicesEqual(av.Fields, bv.Fields)
	case Array:
		bv := b.(Array)
		return av.ElementKind == bv.ElementKind && valueSlicesEqual(av.Elements, bv.Elements)
	case DecimalValue:
		return av.Amount.Equal(b.(DecimalValue).Amount)
	default:
		return a == b
	}
}

func valueSlicesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
