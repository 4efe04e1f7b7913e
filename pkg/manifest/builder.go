package manifest

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

// ErrMissingYield is returned when a subintent manifest does not end by
// yielding to its parent.
var ErrMissingYield = errors.New("subintent manifest must end with YieldToParent")

// Builder assembles a subintent manifest and tracks bucket and proof ids the
// way the engine assigns them: one id per allocating instruction, in order.
// Names are a builder convenience; they never reach the manifest.
//
// Methods are chainable. The first error sticks and is returned by Build.
type Builder struct {
	instructions []ledger.Instruction

	buckets map[string]ledger.BucketID
	proofs  map[string]ledger.ProofID
	moved   map[string]bool

	nextBucket ledger.BucketID
	nextProof  ledger.ProofID

	err error
}

func NewSubintentBuilder() *Builder {
	return &Builder{
		buckets: make(map[string]ledger.BucketID),
		proofs:  make(map[string]ledger.ProofID),
		moved:   make(map[string]bool),
	}
}

// Add appends a raw instruction. Allocated buckets or proofs stay anonymous
// but still advance the counters.
func (b *Builder) Add(in ledger.Instruction) *Builder {
	return b.add(in, "")
}

func (b *Builder) add(in ledger.Instruction, name string) *Builder {
	if b.err != nil {
		return b
	}
	switch {
	case ledger.CreatesBucket(in):
		if name != "" {
			if _, dup := b.buckets[name]; dup {
				b.err = fmt.Errorf("bucket name %q already used", name)
				return b
			}
			b.buckets[name] = b.nextBucket
		}
		b.nextBucket++
	case ledger.CreatesProof(in):
		if name != "" {
			if _, dup := b.proofs[name]; dup {
				b.err = fmt.Errorf("proof name %q already used", name)
				return b
			}
			b.proofs[name] = b.nextProof
		}
		b.nextProof++
	}
	b.instructions = append(b.instructions, in)
	return b
}

func (b *Builder) VerifyParent(rule ledger.AccessRule) *Builder {
	if len(rule) == 0 && b.err == nil {
		b.err = errors.New("verify parent requires an access rule")
		return b
	}
	return b.add(ledger.VerifyParent{AccessRule: rule}, "")
}

func (b *Builder) CallMethod(address ledger.ComponentAddress, method string, args ...ledger.Value) *Builder {
	return b.add(ledger.CallMethod{
		Address: ledger.StaticAddress(address.NodeID),
		Method:  method,
		Args:    ledger.Args(args...),
	}, "")
}

func (b *Builder) WithdrawFromAccount(account ledger.ComponentAddress, resource ledger.ResourceAddress, amount decimal.Decimal) *Builder {
	if !account.IsGlobalAccount() && b.err == nil {
		b.err = fmt.Errorf("withdraw target %s is not an account", account)
		return b
	}
	return b.CallMethod(account, ledger.AccountWithdrawIdent,
		ledger.AddressValue{Address: ledger.StaticAddress(resource.NodeID)},
		ledger.DecimalValue{Amount: amount},
	)
}

func (b *Builder) DepositEntireWorktop(account ledger.ComponentAddress) *Builder {
	return b.CallMethod(account, ledger.AccountDepositBatchIdent,
		ledger.ExpressionValue{Expression: ledger.ExpressionEntireWorktop},
	)
}

func (b *Builder) CreateProofFromAccountOfNonFungibles(account ledger.ComponentAddress, resource ledger.ResourceAddress, ids []ledger.NonFungibleLocalID) *Builder {
	elems := make([]ledger.Value, len(ids))
	for i, id := range ids {
		elems[i] = ledger.LocalIDValue{ID: id}
	}
	return b.CallMethod(account, ledger.AccountCreateProofOfNonFungiblesIdent,
		ledger.AddressValue{Address: ledger.StaticAddress(resource.NodeID)},
		ledger.Array{ElementKind: ledger.KindLocalID, Elements: elems},
	)
}

func (b *Builder) CreateProofFromAuthZoneOfNonFungibles(resource ledger.ResourceAddress, ids []ledger.NonFungibleLocalID, name string) *Builder {
	return b.add(ledger.CreateProofFromAuthZoneOfNonFungibles{Resource: resource, IDs: ids}, name)
}

func (b *Builder) TakeFromWorktop(resource ledger.ResourceAddress, amount decimal.Decimal, name string) *Builder {
	return b.add(ledger.TakeFromWorktop{Resource: resource, Amount: amount}, name)
}

func (b *Builder) TakeAllFromWorktop(resource ledger.ResourceAddress, name string) *Builder {
	return b.add(ledger.TakeAllFromWorktop{Resource: resource}, name)
}

func (b *Builder) AssertNextCallReturnsOnly(constraints ledger.ResourceConstraints) *Builder {
	if err := constraints.Validate(); err != nil && b.err == nil {
		b.err = err
		return b
	}
	return b.add(ledger.AssertNextCallReturnsOnly{Constraints: constraints}, "")
}

func (b *Builder) YieldToParent(args ...ledger.Value) *Builder {
	return b.add(ledger.YieldToParent{Args: ledger.Args(args...)}, "")
}

// Bucket resolves a named bucket and marks it moved. Each name can be used once.
func (b *Builder) Bucket(name string) ledger.Value {
	id, ok := b.buckets[name]
	if b.err == nil {
		switch {
		case !ok:
			b.err = fmt.Errorf("unknown bucket %q", name)
		case b.moved["bucket:"+name]:
			b.err = fmt.Errorf("bucket %q already consumed", name)
		}
	}
	b.moved["bucket:"+name] = true
	return ledger.Bucket{ID: id}
}

// Proof resolves a named proof and marks it moved.
func (b *Builder) Proof(name string) ledger.Value {
	id, ok := b.proofs[name]
	if b.err == nil {
		switch {
		case !ok:
			b.err = fmt.Errorf("unknown proof %q", name)
		case b.moved["proof:"+name]:
			b.err = fmt.Errorf("proof %q already consumed", name)
		}
	}
	b.moved["proof:"+name] = true
	return ledger.Proof{ID: id}
}

func (b *Builder) Err() error { return b.err }

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.instructions) }

// Build returns the manifest. The builder must not be reused afterwards.
func (b *Builder) Build() (ledger.SubintentManifest, error) {
	if b.err != nil {
		return ledger.SubintentManifest{}, b.err
	}
	if n := len(b.instructions); n == 0 {
		return ledger.SubintentManifest{}, ErrMissingYield
	} else if _, ok := b.instructions[n-1].(ledger.YieldToParent); !ok {
		return ledger.SubintentManifest{}, ErrMissingYield
	}
	out := make([]ledger.Instruction, len(b.instructions))
	copy(out, b.instructions)
	return ledger.SubintentManifest{Instructions: out}, nil
}
