package subintent

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

// State is the position of the limit order validator. Each concrete state
// carries only what has been recovered so far.
type State interface {
	fmt.Stringer
	state()
}

type StateInitial struct{}

type StateAccessRuleVerified struct {
	AccessRule ledger.AccessRule
}

type StateWithdrewFromAccount struct {
	Meta      LimitOrderMeta
	Withdrawn ResourceAmount
}

type StateCreatedSellBucket struct {
	Meta       LimitOrderMeta
	Sell       ResourceAmount
	SellBucket ledger.BucketID
	// Leftover is withdrawn minus sold. It is recorded, never checked.
	Leftover ResourceAmount
}

type StateAssertedNextCallReturns struct {
	Meta       LimitOrderMeta
	Trade      LimitOrder
	SellBucket ledger.BucketID
	Leftover   ResourceAmount
}

type StateYieldedSellBucketToParent struct {
	Meta     LimitOrderMeta
	Trade    LimitOrder
	Leftover ResourceAmount
}

type StateCreatedVenueFeeBucket struct {
	Meta        LimitOrderMeta
	Trade       LimitOrder
	Leftover    ResourceAmount
	VenueFee    ResourceAmount
	VenueBucket ledger.BucketID
}

type StateCreatedSettlementFeeBucket struct {
	Meta             LimitOrderMeta
	Trade            LimitOrder
	Fee              FeeDefinition
	VenueBucket      ledger.BucketID
	SettlementBucket ledger.BucketID
}

type StateYieldedFeesToParent struct {
	Definition LimitOrderDefinition
}

type StateDepositedWorktopToAccount struct {
	Definition LimitOrderDefinition
}

type StateComplete struct {
	Definition LimitOrderDefinition
}

func (StateInitial) state()                    {}
func (StateAccessRuleVerified) state()         {}
func (StateWithdrewFromAccount) state()        {}
func (StateCreatedSellBucket) state()          {}
func (StateAssertedNextCallReturns) state()    {}
func (StateYieldedSellBucketToParent) state()  {}
func (StateCreatedVenueFeeBucket) state()      {}
func (StateCreatedSettlementFeeBucket) state() {}
func (StateYieldedFeesToParent) state()        {}
func (StateDepositedWorktopToAccount) state()  {}
func (StateComplete) state()                   {}

func (StateInitial) String() string                    { return "Initial" }
func (StateAccessRuleVerified) String() string         { return "AccessRuleVerified" }
func (StateWithdrewFromAccount) String() string        { return "WithdrewFromAccount" }
func (StateCreatedSellBucket) String() string          { return "CreatedSellBucket" }
func (StateAssertedNextCallReturns) String() string    { return "AssertedNextCallReturns" }
func (StateYieldedSellBucketToParent) String() string  { return "YieldedSellBucketToParent" }
func (StateCreatedVenueFeeBucket) String() string      { return "CreatedVenueFeeBucket" }
func (StateCreatedSettlementFeeBucket) String() string { return "CreatedSettlementFeeBucket" }
func (StateYieldedFeesToParent) String() string        { return "YieldedFeesToParent" }
func (StateDepositedWorktopToAccount) String() string  { return "DepositedWorktopToAccount" }
func (StateComplete) String() string                   { return "Complete" }

// validator walks an instruction list once, left to right.
type validator struct {
	state State
	// buckets counts bucket-creating instructions seen so far, in any state.
	buckets ledger.BucketID
}

func newValidator() *validator {
	return &validator{state: StateInitial{}}
}

// ValidateInstructions recovers the limit order encoded by instructions, or
// returns a *RejectionError describing the first instruction that breaks the
// canonical sequence.
func ValidateInstructions(instructions []ledger.Instruction) (LimitOrderDefinition, error) {
	v := newValidator()
	for i, in := range instructions {
		if err := v.step(i, in); err != nil {
			return LimitOrderDefinition{}, err
		}
	}
	return v.finish()
}

// ValidateManifest validates a subintent manifest.
func ValidateManifest(m ledger.SubintentManifest) (LimitOrderDefinition, error) {
	return ValidateInstructions(m.Instructions)
}

// ValidateEncoded decodes the JSON instruction list and validates it. Codec
// failures are reported as decode rejections in the initial state.
func ValidateEncoded(data []byte) (LimitOrderDefinition, error) {
	instructions, err := ledger.DecodeInstructions(data)
	if err != nil {
		idx := -1
		var de *ledger.DecodeError
		if errors.As(err, &de) {
			idx = de.Index
		}
		return LimitOrderDefinition{}, &RejectionError{
			Kind:   KindDecode,
			State:  StateInitial{},
			Index:  idx,
			Reason: "instructions could not be decoded",
			Err:    err,
		}
	}
	return ValidateInstructions(instructions)
}

func (v *validator) finish() (LimitOrderDefinition, error) {
	done, ok := v.state.(StateComplete)
	if !ok {
		return LimitOrderDefinition{}, &RejectionError{
			Kind:   KindSequence,
			State:  v.state,
			Index:  -1,
			Reason: "incomplete sequence",
			Err:    ErrIncomplete,
		}
	}
	return done.Definition, nil
}

func (v *validator) step(idx int, in ledger.Instruction) error {
	// Bucket ids are positional in the engine, so every allocation counts
	// whether or not the current state cares about it.
	cur := v.buckets
	if ledger.CreatesBucket(in) {
		v.buckets++
	}

	next, rej := v.transition(in, cur)
	if rej != nil {
		rej.State = v.state
		rej.Index = idx
		rej.Instruction = in
		return rej
	}
	v.state = next
	return nil
}

func sequenceErr(format string, args ...any) *RejectionError {
	return &RejectionError{Kind: KindSequence, Reason: fmt.Sprintf(format, args...)}
}

func decodeErr(err error, format string, args ...any) *RejectionError {
	return &RejectionError{Kind: KindDecode, Reason: fmt.Sprintf(format, args...), Err: err}
}

// transition is the single dispatch of the state machine. bucket is the id
// the current instruction allocates, if it allocates one.
func (v *validator) transition(in ledger.Instruction, bucket ledger.BucketID) (State, *RejectionError) {
	switch s := v.state.(type) {
	case StateInitial:
		switch i := in.(type) {
		case ledger.VerifyParent:
			if len(i.AccessRule) == 0 {
				return nil, decodeErr(nil, "verify parent carries an empty access rule")
			}
			return StateAccessRuleVerified{AccessRule: i.AccessRule}, nil
		case ledger.YieldToParent:
			if len(i.Args.Fields) == 0 {
				return nil, sequenceErr("final yield before verify parent")
			}
			return nil, sequenceErr("yield before verify parent")
		default:
			return s, nil
		}

	case StateAccessRuleVerified:
		call, ok := in.(ledger.CallMethod)
		if !ok {
			return nil, sequenceErr("expected account withdraw")
		}
		account, rej := accountTarget(call)
		if rej != nil {
			return nil, rej
		}
		if call.Method != ledger.AccountWithdrawIdent {
			return nil, sequenceErr("expected method %q, got %q", ledger.AccountWithdrawIdent, call.Method)
		}
		withdrawn, rej := decodeWithdrawArgs(call.Args)
		if rej != nil {
			return nil, rej
		}
		return StateWithdrewFromAccount{
			Meta:      LimitOrderMeta{AccessRule: s.AccessRule, Account: account},
			Withdrawn: withdrawn,
		}, nil

	case StateWithdrewFromAccount:
		take, ok := in.(ledger.TakeFromWorktop)
		if !ok {
			return nil, sequenceErr("expected take of the sell amount")
		}
		if rej := checkTakeAmount(take.Amount); rej != nil {
			return nil, rej
		}
		if take.Resource != s.Withdrawn.Resource {
			return nil, sequenceErr("sell resource %s differs from withdrawn %s", take.Resource, s.Withdrawn.Resource)
		}
		if take.Amount.GreaterThan(s.Withdrawn.Amount) {
			return nil, sequenceErr("sell amount %s exceeds withdrawn %s", take.Amount, s.Withdrawn.Amount)
		}
		return StateCreatedSellBucket{
			Meta:       s.Meta,
			Sell:       ResourceAmount{Resource: take.Resource, Amount: take.Amount},
			SellBucket: bucket,
			Leftover:   ResourceAmount{Resource: take.Resource, Amount: s.Withdrawn.Amount.Sub(take.Amount)},
		}, nil

	case StateCreatedSellBucket:
		assert, ok := in.(ledger.AssertNextCallReturnsOnly)
		if !ok {
			return nil, sequenceErr("expected assert next call returns only")
		}
		if n := len(assert.Constraints); n != 1 {
			return nil, sequenceErr("expected exactly one resource constraint, got %d", n)
		}
		entry := assert.Constraints[0]
		if entry.Constraint.Kind != ledger.ConstraintAtLeastAmount {
			return nil, sequenceErr("expected %s constraint, got %s", ledger.ConstraintAtLeastAmount, entry.Constraint.Kind)
		}
		if len(entry.Constraint.IDs) != 0 {
			return nil, decodeErr(nil, "%s constraint carries non-fungible ids", ledger.ConstraintAtLeastAmount)
		}
		if err := ledger.CheckAmount(entry.Constraint.Amount); err != nil {
			return nil, decodeErr(err, "invalid buy amount")
		}
		if entry.Resource == s.Sell.Resource {
			return nil, sequenceErr("buy resource equals sell resource %s", entry.Resource)
		}
		return StateAssertedNextCallReturns{
			Meta: s.Meta,
			Trade: LimitOrder{
				Sell: s.Sell,
				Buy:  ResourceAmount{Resource: entry.Resource, Amount: entry.Constraint.Amount},
			},
			SellBucket: s.SellBucket,
			Leftover:   s.Leftover,
		}, nil

	case StateAssertedNextCallReturns:
		yield, ok := in.(ledger.YieldToParent)
		if !ok {
			return nil, sequenceErr("expected yield of the sell bucket")
		}
		ids, rej := bucketArgs(yield.Args, 1)
		if rej != nil {
			return nil, rej
		}
		if ids[0] != s.SellBucket {
			return nil, sequenceErr("yielded bucket %d is not the sell bucket %d", ids[0], s.SellBucket)
		}
		return StateYieldedSellBucketToParent{Meta: s.Meta, Trade: s.Trade, Leftover: s.Leftover}, nil

	case StateYieldedSellBucketToParent:
		take, ok := in.(ledger.TakeFromWorktop)
		if !ok {
			return nil, sequenceErr("expected take of the venue fee")
		}
		if rej := checkTakeAmount(take.Amount); rej != nil {
			return nil, rej
		}
		if take.Resource != s.Trade.Sell.Resource {
			return nil, sequenceErr("venue fee resource %s differs from sell resource %s", take.Resource, s.Trade.Sell.Resource)
		}
		return StateCreatedVenueFeeBucket{
			Meta:        s.Meta,
			Trade:       s.Trade,
			Leftover:    s.Leftover,
			VenueFee:    ResourceAmount{Resource: take.Resource, Amount: take.Amount},
			VenueBucket: bucket,
		}, nil

	case StateCreatedVenueFeeBucket:
		take, ok := in.(ledger.TakeFromWorktop)
		if !ok {
			return nil, sequenceErr("expected take of the settlement fee")
		}
		if rej := checkTakeAmount(take.Amount); rej != nil {
			return nil, rej
		}
		if take.Resource != s.VenueFee.Resource {
			return nil, sequenceErr("settlement fee resource %s differs from venue fee resource %s", take.Resource, s.VenueFee.Resource)
		}
		return StateCreatedSettlementFeeBucket{
			Meta:  s.Meta,
			Trade: s.Trade,
			Fee: FeeDefinition{
				Resource:         s.VenueFee.Resource,
				VenueAmount:      s.VenueFee.Amount,
				SettlementAmount: take.Amount,
			},
			VenueBucket:      s.VenueBucket,
			SettlementBucket: bucket,
		}, nil

	case StateCreatedSettlementFeeBucket:
		yield, ok := in.(ledger.YieldToParent)
		if !ok {
			return nil, sequenceErr("expected yield of the fee buckets")
		}
		ids, rej := bucketArgs(yield.Args, 2)
		if rej != nil {
			return nil, rej
		}
		if ids[0] != s.VenueBucket || ids[1] != s.SettlementBucket {
			return nil, sequenceErr("yielded buckets (%d, %d), expected (%d, %d)", ids[0], ids[1], s.VenueBucket, s.SettlementBucket)
		}
		return StateYieldedFeesToParent{Definition: LimitOrderDefinition{Meta: s.Meta, Trade: s.Trade, Fee: s.Fee}}, nil

	case StateYieldedFeesToParent:
		call, ok := in.(ledger.CallMethod)
		if !ok {
			return nil, sequenceErr("expected deposit of the entire worktop")
		}
		if call.Address.IsName || call.Address.Static != s.Definition.Meta.Account.NodeID {
			return nil, sequenceErr("deposit to %s, expected the withdrawing account %s", call.Address, s.Definition.Meta.Account)
		}
		if call.Method != ledger.AccountDepositBatchIdent {
			return nil, sequenceErr("expected method %q, got %q", ledger.AccountDepositBatchIdent, call.Method)
		}
		want := ledger.Args(ledger.ExpressionValue{Expression: ledger.ExpressionEntireWorktop})
		if !ledger.ValuesEqual(call.Args, want) {
			return nil, decodeErr(nil, "deposit args must be (Expression(ENTIRE_WORKTOP)), got %s", call.Args)
		}
		return StateDepositedWorktopToAccount(s), nil

	case StateDepositedWorktopToAccount:
		yield, ok := in.(ledger.YieldToParent)
		if !ok {
			return nil, sequenceErr("expected final yield")
		}
		if n := len(yield.Args.Fields); n != 0 {
			return nil, decodeErr(nil, "final yield must be empty, got %d values", n)
		}
		return StateComplete(s), nil

	case StateComplete:
		if _, ok := in.(ledger.YieldToParent); ok {
			return nil, sequenceErr("yield after completion")
		}
		return s, nil
	}
	return nil, sequenceErr("unknown state %T", v.state)
}

// accountTarget requires a static global account address.
func accountTarget(call ledger.CallMethod) (ledger.ComponentAddress, *RejectionError) {
	if call.Address.IsName {
		return ledger.ComponentAddress{}, sequenceErr("call targets a named address, expected an account")
	}
	if !call.Address.Static.IsGlobalAccount() {
		return ledger.ComponentAddress{}, sequenceErr("call target %s is not an account", call.Address.Static)
	}
	return ledger.ComponentAddress{NodeID: call.Address.Static}, nil
}

// decodeWithdrawArgs reads (Address resource, Decimal amount).
func decodeWithdrawArgs(args ledger.Tuple) (ResourceAmount, *RejectionError) {
	if len(args.Fields) != 2 {
		return ResourceAmount{}, decodeErr(nil, "withdraw expects 2 args, got %d", len(args.Fields))
	}
	addr, ok := args.Fields[0].(ledger.AddressValue)
	if !ok {
		return ResourceAmount{}, decodeErr(nil, "withdraw resource is %s, expected Address", args.Fields[0].Kind())
	}
	if addr.Address.IsName {
		return ResourceAmount{}, decodeErr(nil, "withdraw resource is a named address")
	}
	resource, err := ledger.NewResourceAddress(addr.Address.Static)
	if err != nil {
		return ResourceAmount{}, decodeErr(err, "withdraw resource is not a resource")
	}
	amt, ok := args.Fields[1].(ledger.DecimalValue)
	if !ok {
		return ResourceAmount{}, decodeErr(nil, "withdraw amount is %s, expected Decimal", args.Fields[1].Kind())
	}
	if err := ledger.CheckAmount(amt.Amount); err != nil {
		return ResourceAmount{}, decodeErr(err, "invalid withdraw amount")
	}
	return ResourceAmount{Resource: resource, Amount: amt.Amount}, nil
}

func checkTakeAmount(d decimal.Decimal) *RejectionError {
	if err := ledger.CheckAmount(d); err != nil {
		return decodeErr(err, "invalid take amount")
	}
	return nil
}

// bucketArgs requires a tuple of exactly n bucket references.
func bucketArgs(args ledger.Tuple, n int) ([]ledger.BucketID, *RejectionError) {
	if len(args.Fields) != n {
		return nil, decodeErr(nil, "expected %d bucket(s), got %d values", n, len(args.Fields))
	}
	ids := make([]ledger.BucketID, n)
	for i, f := range args.Fields {
		b, ok := f.(ledger.Bucket)
		if !ok {
			return nil, decodeErr(nil, "value %d is %s, expected Bucket", i, f.Kind())
		}
		ids[i] = b.ID
	}
	return ids, nil
}
