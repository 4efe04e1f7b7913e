package subintent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

func buildWithInstamint(t *testing.T, mintAccount ledger.ComponentAddress) []ledger.Instruction {
	t.Helper()
	m, err := NewBuilder(testConfig()).
		InstamintIntoAccount(testInstamint(), mintAccount, "#7#", TokenAmount{Symbol: "xUSDC", Amount: dec("96")}).
		AddLimitOrder(testAccount,
			TokenAmount{Symbol: "xUSDC", Amount: dec("95.85")},
			TokenAmount{Symbol: "xwBTC", Amount: dec("0.001")},
			dec("0.10"), dec("0.05")).
		Build()
	require.NoError(t, err)
	return m.Instructions
}

func TestValidateWithInstamint(t *testing.T) {
	mint, order, err := ValidateWithInstamint(buildWithInstamint(t, testAccount), testInstamint())
	require.NoError(t, err)

	assert.Equal(t, testAccount, mint.Account)
	assert.Equal(t, ledger.NonFungibleLocalID("#7#"), mint.BadgeLocalID)
	assert.True(t, mint.Minted.Equal(ResourceAmount{Resource: resA, Amount: dec("96")}))
	assert.True(t, order.Equal(scenarioDefinition()))
}

func TestValidateInstamintPrefixReturnsRest(t *testing.T) {
	ins := buildWithInstamint(t, testAccount)
	_, rest, err := ValidateInstamintPrefix(ins, testInstamint())
	require.NoError(t, err)
	assert.Equal(t, buildScenario(t), rest)
}

func TestValidateWithInstamintAccountMismatch(t *testing.T) {
	_, _, err := ValidateWithInstamint(buildWithInstamint(t, otherAcct), testInstamint())
	rej := requireRejection(t, err)
	assert.Equal(t, KindSequence, rej.Kind)
	assert.IsType(t, StateComplete{}, rej.State)
}

func TestValidateWithInstamintShiftsIndex(t *testing.T) {
	ins := buildWithInstamint(t, testAccount)
	ins[3+4] = ledger.YieldToParent{Args: ledger.Args(ledger.Bucket{ID: 2})}
	_, _, err := ValidateWithInstamint(ins, testInstamint())
	rej := requireRejection(t, err)
	assert.Equal(t, 7, rej.Index)
}

func TestValidateInstamintPrefixRejects(t *testing.T) {
	otherBadge := ledger.ResourceAddress{NodeID: ledger.NewNodeID(ledger.EntityGlobalNonFungibleResourceManager, []byte("fake"))}
	tests := []struct {
		name  string
		index int
		in    ledger.Instruction
		kind  RejectionKind
	}{
		{"proof from component", 0, ledger.CallMethod{
			Address: ledger.StaticAddress(mintComp.NodeID),
			Method:  ledger.AccountCreateProofOfNonFungiblesIdent,
		}, KindSequence},
		{"wrong badge", 0, ledger.CallMethod{
			Address: ledger.StaticAddress(testAccount.NodeID),
			Method:  ledger.AccountCreateProofOfNonFungiblesIdent,
			Args: ledger.Args(
				ledger.AddressValue{Address: ledger.StaticAddress(otherBadge.NodeID)},
				ledger.Array{ElementKind: ledger.KindLocalID, Elements: []ledger.Value{ledger.LocalIDValue{ID: "#7#"}}},
			),
		}, KindSequence},
		{"two badge ids", 0, ledger.CallMethod{
			Address: ledger.StaticAddress(testAccount.NodeID),
			Method:  ledger.AccountCreateProofOfNonFungiblesIdent,
			Args: ledger.Args(
				ledger.AddressValue{Address: ledger.StaticAddress(badgeRes.NodeID)},
				ledger.Array{ElementKind: ledger.KindLocalID, Elements: []ledger.Value{
					ledger.LocalIDValue{ID: "#7#"}, ledger.LocalIDValue{ID: "#8#"},
				}},
			),
		}, KindSequence},
		{"auth zone id mismatch", 1, ledger.CreateProofFromAuthZoneOfNonFungibles{
			Resource: badgeRes, IDs: []ledger.NonFungibleLocalID{"#8#"},
		}, KindSequence},
		{"mint at wrong component", 2, ledger.CallMethod{
			Address: ledger.StaticAddress(testAccount.NodeID),
			Method:  ledger.InstamintMintToAccountIdent,
		}, KindSequence},
		{"mint without proof", 2, ledger.CallMethod{
			Address: ledger.StaticAddress(mintComp.NodeID),
			Method:  ledger.InstamintMintToAccountIdent,
			Args: ledger.Args(
				ledger.AddressValue{Address: ledger.StaticAddress(resA.NodeID)},
				ledger.DecimalValue{Amount: dec("96")},
			),
		}, KindDecode},
		{"mint presents other proof", 2, ledger.CallMethod{
			Address: ledger.StaticAddress(mintComp.NodeID),
			Method:  ledger.InstamintMintToAccountIdent,
			Args: ledger.Args(
				ledger.AddressValue{Address: ledger.StaticAddress(resA.NodeID)},
				ledger.DecimalValue{Amount: dec("96")},
				ledger.Proof{ID: 1},
			),
		}, KindSequence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins := buildWithInstamint(t, testAccount)
			ins[tt.index] = tt.in
			_, _, err := ValidateInstamintPrefix(ins, testInstamint())
			rej := requireRejection(t, err)
			assert.Equal(t, tt.kind, rej.Kind, rej.Error())
			assert.Equal(t, tt.index, rej.Index)
			assert.IsType(t, StateInitial{}, rej.State)
		})
	}
}

func TestValidateInstamintPrefixTooShort(t *testing.T) {
	_, _, err := ValidateInstamintPrefix(buildWithInstamint(t, testAccount)[:2], testInstamint())
	assert.ErrorIs(t, err, ErrIncomplete)
}
