package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Canonical method names on native blueprints.
const (
	AccountWithdrawIdent                  = "withdraw"
	AccountDepositBatchIdent              = "deposit_batch"
	AccountCreateProofOfNonFungiblesIdent = "create_proof_of_non_fungibles"
	InstamintMintToAccountIdent           = "mint_to_account"
)

// Instruction is one step of a subintent manifest. The concrete types in this
// file are the only implementations.
type Instruction interface {
	Name() string
	String() string
}

type VerifyParent struct {
	AccessRule AccessRule
}

type CallMethod struct {
	Address ManifestAddress
	Method  string
	Args    Tuple
}

type TakeFromWorktop struct {
	Resource ResourceAddress
	Amount   decimal.Decimal
}

type TakeAllFromWorktop struct {
	Resource ResourceAddress
}

type TakeNonFungiblesFromWorktop struct {
	Resource ResourceAddress
	IDs      []NonFungibleLocalID
}

type ReturnToWorktop struct {
	Bucket BucketID
}

type AssertWorktopContains struct {
	Resource ResourceAddress
	Amount   decimal.Decimal
}

type AssertNextCallReturnsOnly struct {
	Constraints ResourceConstraints
}

type CreateProofFromAuthZoneOfNonFungibles struct {
	Resource ResourceAddress
	IDs      []NonFungibleLocalID
}

type DropAllProofs struct{}

type YieldToParent struct {
	Args Tuple
}

func (VerifyParent) Name() string                          { return "VerifyParent" }
func (CallMethod) Name() string                            { return "CallMethod" }
func (TakeFromWorktop) Name() string                       { return "TakeFromWorktop" }
func (TakeAllFromWorktop) Name() string                    { return "TakeAllFromWorktop" }
func (TakeNonFungiblesFromWorktop) Name() string           { return "TakeNonFungiblesFromWorktop" }
func (ReturnToWorktop) Name() string                       { return "ReturnToWorktop" }
func (AssertWorktopContains) Name() string                 { return "AssertWorktopContains" }
func (AssertNextCallReturnsOnly) Name() string             { return "AssertNextCallReturnsOnly" }
func (CreateProofFromAuthZoneOfNonFungibles) Name() string { return "CreateProofFromAuthZoneOfNonFungibles" }
func (DropAllProofs) Name() string                         { return "DropAllProofs" }
func (YieldToParent) Name() string                         { return "YieldToParent" }

func (i VerifyParent) String() string { return fmt.Sprintf("VERIFY_PARENT %s", i.AccessRule) }
func (i CallMethod) String() string {
	return fmt.Sprintf("CALL_METHOD %s %q %s", i.Address, i.Method, i.Args)
}
func (i TakeFromWorktop) String() string {
	return fmt.Sprintf("TAKE_FROM_WORKTOP %s %s", i.Resource, i.Amount)
}
func (i TakeAllFromWorktop) String() string {
	return fmt.Sprintf("TAKE_ALL_FROM_WORKTOP %s", i.Resource)
}
func (i TakeNonFungiblesFromWorktop) String() string {
	return fmt.Sprintf("TAKE_NON_FUNGIBLES_FROM_WORKTOP %s %v", i.Resource, i.IDs)
}
func (i ReturnToWorktop) String() string { return fmt.Sprintf("RETURN_TO_WORKTOP %s", Bucket{i.Bucket}) }
func (i AssertWorktopContains) String() string {
	return fmt.Sprintf("ASSERT_WORKTOP_CONTAINS %s %s", i.Resource, i.Amount)
}
func (i AssertNextCallReturnsOnly) String() string {
	return fmt.Sprintf("ASSERT_NEXT_CALL_RETURNS_ONLY %d constraint(s)", len(i.Constraints))
}
func (i CreateProofFromAuthZoneOfNonFungibles) String() string {
	return fmt.Sprintf("CREATE_PROOF_FROM_AUTH_ZONE_OF_NON_FUNGIBLES %s %v", i.Resource, i.IDs)
}
func (DropAllProofs) String() string   { return "DROP_ALL_PROOFS" }
func (i YieldToParent) String() string { return fmt.Sprintf("YIELD_TO_PARENT %s", i.Args) }

// CreatesBucket reports whether executing the instruction allocates a new
// bucket id. Bucket ids are positional, so every such instruction counts.
func CreatesBucket(in Instruction) bool {
	switch in.(type) {
	case TakeFromWorktop, TakeAllFromWorktop, TakeNonFungiblesFromWorktop:
		return true
	}
	return false
}

// CreatesProof reports whether executing the instruction allocates a new proof id.
func CreatesProof(in Instruction) bool {
	switch in.(type) {
	case CreateProofFromAuthZoneOfNonFungibles:
		return true
	}
	return false
}

// SubintentManifest is the instruction list of one subintent.
type SubintentManifest struct {
	Instructions []Instruction
}
