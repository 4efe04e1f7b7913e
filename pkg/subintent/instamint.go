package subintent

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/manifest"
	"github.com/uhyunpark/anthic/pkg/model"
)

// instamintPrefixLen is the number of instructions an instamint prefix takes.
const instamintPrefixLen = 3

func appendInstamint(m *manifest.Builder, cfg model.InstamintConfig, account ledger.ComponentAddress, localID ledger.NonFungibleLocalID, toMint ResourceAmount) error {
	if !account.IsGlobalAccount() {
		return fmt.Errorf("%w: %s is not an account", ErrInvalidOrder, account)
	}
	if err := localID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if err := ledger.CheckAmount(toMint.Amount); err != nil {
		return fmt.Errorf("%w: mint: %v", ErrInvalidOrder, err)
	}
	if cfg.CustomerBadgeResource.IsZero() || cfg.InstamintComponent.IsZero() {
		return fmt.Errorf("%w: instamint is not configured", ErrConfig)
	}

	ids := []ledger.NonFungibleLocalID{localID}
	m.CreateProofFromAccountOfNonFungibles(account, cfg.CustomerBadgeResource, ids).
		CreateProofFromAuthZoneOfNonFungibles(cfg.CustomerBadgeResource, ids, proofInstamint)
	m.CallMethod(cfg.InstamintComponent, ledger.InstamintMintToAccountIdent,
		ledger.AddressValue{Address: ledger.StaticAddress(toMint.Resource.NodeID)},
		ledger.DecimalValue{Amount: toMint.Amount},
		m.Proof(proofInstamint),
	)
	return m.Err()
}

// ValidateInstamintPrefix checks that instructions open with an instamint
// prefix for cfg and returns it with the remaining instructions.
// Rejections carry the initial state; the prefix is outside the order machine.
func ValidateInstamintPrefix(instructions []ledger.Instruction, cfg model.InstamintConfig) (InstamintDefinition, []ledger.Instruction, error) {
	reject := func(idx int, rej *RejectionError) error {
		rej.State = StateInitial{}
		rej.Index = idx
		if idx < len(instructions) {
			rej.Instruction = instructions[idx]
		}
		return rej
	}
	if len(instructions) < instamintPrefixLen {
		return InstamintDefinition{}, nil, &RejectionError{
			Kind:   KindSequence,
			State:  StateInitial{},
			Index:  -1,
			Reason: "too short for an instamint prefix",
			Err:    ErrIncomplete,
		}
	}

	// 0: account creates a proof of the customer badge.
	call, ok := instructions[0].(ledger.CallMethod)
	if !ok {
		return InstamintDefinition{}, nil, reject(0, sequenceErr("expected badge proof from account"))
	}
	account, rej := accountTarget(call)
	if rej != nil {
		return InstamintDefinition{}, nil, reject(0, rej)
	}
	if call.Method != ledger.AccountCreateProofOfNonFungiblesIdent {
		return InstamintDefinition{}, nil, reject(0, sequenceErr("expected method %q, got %q", ledger.AccountCreateProofOfNonFungiblesIdent, call.Method))
	}
	localID, rej := decodeBadgeProofArgs(call.Args, cfg.CustomerBadgeResource)
	if rej != nil {
		return InstamintDefinition{}, nil, reject(0, rej)
	}

	// 1: the proof is moved from the auth zone into proof 0.
	proof, ok := instructions[1].(ledger.CreateProofFromAuthZoneOfNonFungibles)
	if !ok {
		return InstamintDefinition{}, nil, reject(1, sequenceErr("expected proof from auth zone"))
	}
	if proof.Resource != cfg.CustomerBadgeResource {
		return InstamintDefinition{}, nil, reject(1, sequenceErr("proof of %s, expected badge %s", proof.Resource, cfg.CustomerBadgeResource))
	}
	if len(proof.IDs) != 1 || proof.IDs[0] != localID {
		return InstamintDefinition{}, nil, reject(1, sequenceErr("proof ids %v, expected [%s]", proof.IDs, localID))
	}

	// 2: mint on credit, presenting the proof.
	mint, ok := instructions[2].(ledger.CallMethod)
	if !ok {
		return InstamintDefinition{}, nil, reject(2, sequenceErr("expected call to the instamint component"))
	}
	if mint.Address.IsName || mint.Address.Static != cfg.InstamintComponent.NodeID {
		return InstamintDefinition{}, nil, reject(2, sequenceErr("mint call to %s, expected %s", mint.Address, cfg.InstamintComponent))
	}
	if mint.Method != ledger.InstamintMintToAccountIdent {
		return InstamintDefinition{}, nil, reject(2, sequenceErr("expected method %q, got %q", ledger.InstamintMintToAccountIdent, mint.Method))
	}
	minted, rej := decodeMintArgs(mint.Args)
	if rej != nil {
		return InstamintDefinition{}, nil, reject(2, rej)
	}

	return InstamintDefinition{
		Account:      account,
		BadgeLocalID: localID,
		Minted:       minted,
	}, instructions[instamintPrefixLen:], nil
}

// ValidateWithInstamint validates an instamint prefix followed by a limit
// order from the same account.
func ValidateWithInstamint(instructions []ledger.Instruction, cfg model.InstamintConfig) (InstamintDefinition, LimitOrderDefinition, error) {
	mint, rest, err := ValidateInstamintPrefix(instructions, cfg)
	if err != nil {
		return InstamintDefinition{}, LimitOrderDefinition{}, err
	}
	// The prefix allocates no buckets, so the order machine can start fresh.
	order, err := ValidateInstructions(rest)
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) && rej.Index >= 0 {
			rej.Index += instamintPrefixLen
		}
		return InstamintDefinition{}, LimitOrderDefinition{}, err
	}
	if order.Meta.Account != mint.Account {
		return InstamintDefinition{}, LimitOrderDefinition{}, &RejectionError{
			Kind:   KindSequence,
			State:  StateComplete{Definition: order},
			Index:  -1,
			Reason: fmt.Sprintf("order account %s differs from instamint account %s", order.Meta.Account, mint.Account),
		}
	}
	return mint, order, nil
}

// decodeBadgeProofArgs reads (Address badge, Array<NonFungibleLocalId>[id]).
func decodeBadgeProofArgs(args ledger.Tuple, badge ledger.ResourceAddress) (ledger.NonFungibleLocalID, *RejectionError) {
	if len(args.Fields) != 2 {
		return "", decodeErr(nil, "badge proof expects 2 args, got %d", len(args.Fields))
	}
	addr, ok := args.Fields[0].(ledger.AddressValue)
	if !ok || addr.Address.IsName {
		return "", decodeErr(nil, "badge proof resource must be a static address")
	}
	if addr.Address.Static != badge.NodeID {
		return "", sequenceErr("proof of %s, expected badge %s", addr.Address.Static, badge)
	}
	arr, ok := args.Fields[1].(ledger.Array)
	if !ok || arr.ElementKind != ledger.KindLocalID {
		return "", decodeErr(nil, "badge proof ids must be Array<%s>", ledger.KindLocalID)
	}
	if len(arr.Elements) != 1 {
		return "", sequenceErr("expected exactly one badge id, got %d", len(arr.Elements))
	}
	id, ok := arr.Elements[0].(ledger.LocalIDValue)
	if !ok {
		return "", decodeErr(nil, "badge id is %s", arr.Elements[0].Kind())
	}
	if err := id.ID.Validate(); err != nil {
		return "", decodeErr(err, "invalid badge id")
	}
	return id.ID, nil
}

// decodeMintArgs reads (Address resource, Decimal amount, Proof(0)).
func decodeMintArgs(args ledger.Tuple) (ResourceAmount, *RejectionError) {
	if len(args.Fields) != 3 {
		return ResourceAmount{}, decodeErr(nil, "mint expects 3 args, got %d", len(args.Fields))
	}
	withdrawLike, rej := decodeWithdrawArgs(ledger.Args(args.Fields[0], args.Fields[1]))
	if rej != nil {
		return ResourceAmount{}, rej
	}
	p, ok := args.Fields[2].(ledger.Proof)
	if !ok {
		return ResourceAmount{}, decodeErr(nil, "mint proof is %s, expected Proof", args.Fields[2].Kind())
	}
	if p.ID != 0 {
		return ResourceAmount{}, sequenceErr("mint presents proof %d, expected the badge proof 0", p.ID)
	}
	return withdrawLike, nil
}
