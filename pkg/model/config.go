package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

// AnthicConfig is the venue configuration fetched once per session.
// It is never mutated after loading.
type AnthicConfig struct {
	// VerifyParentAccessRule gates every subintent on the venue having seen it.
	VerifyParentAccessRule ledger.AccessRule
	// SymbolToResource maps venue token symbols to ledger resources.
	SymbolToResource map[string]ledger.ResourceAddress
	// SettlementFeePerSymbol is the flat settlement fee per sell token,
	// a portion of which is rebated.
	SettlementFeePerSymbol map[string]decimal.Decimal
	// VenueFeePerLevel holds the venue fee fractions indexed by account level.
	VenueFeePerLevel []LevelFee
}

// LevelFee is the venue fee fraction (0.001 = 0.1%) for one account level.
type LevelFee struct {
	TakerFee decimal.Decimal
	MakerFee decimal.Decimal
}

// Resource resolves a token symbol.
func (c AnthicConfig) Resource(symbol string) (ledger.ResourceAddress, error) {
	r, ok := c.SymbolToResource[symbol]
	if !ok {
		return ledger.ResourceAddress{}, fmt.Errorf("no resource for token %q", symbol)
	}
	return r, nil
}

// Symbol is the reverse lookup of Resource.
func (c AnthicConfig) Symbol(resource ledger.ResourceAddress) (string, bool) {
	for sym, r := range c.SymbolToResource {
		if r == resource {
			return sym, true
		}
	}
	return "", false
}

// SettlementFee returns the flat settlement fee charged when selling symbol.
func (c AnthicConfig) SettlementFee(symbol string) (decimal.Decimal, error) {
	fee, ok := c.SettlementFeePerSymbol[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no settlement fee for token %q", symbol)
	}
	return fee, nil
}

// LevelFee returns the fee fractions for an account level.
func (c AnthicConfig) LevelFee(level uint64) (LevelFee, error) {
	if level >= uint64(len(c.VenueFeePerLevel)) {
		return LevelFee{}, fmt.Errorf("no venue fee for level %d (%d levels configured)", level, len(c.VenueFeePerLevel))
	}
	return c.VenueFeePerLevel[level], nil
}

// InstamintConfig locates the credit-minting component.
type InstamintConfig struct {
	// CustomerBadgeResource is the badge resource proving instamint membership.
	CustomerBadgeResource ledger.ResourceAddress
	// InstamintComponent is called to mint resources on credit.
	InstamintComponent ledger.ComponentAddress
}

// AnthicAccount is the caller's venue account.
type AnthicAccount struct {
	Address                       ledger.ComponentAddress
	InstamintCustomerBadgeLocalID *ledger.NonFungibleLocalID
}

// AddressInfo carries the venue's per-account data.
type AddressInfo struct {
	Level uint64
}

// PaybackAddress is where an instamint loan in Symbol may be repaid on Chain.
type PaybackAddress struct {
	Chain   string
	Address string
	Symbol  string
	// TokenAddress is empty for the chain's native token.
	TokenAddress string
}

// InstamintPayback lists repayment routes for an instamint account.
type InstamintPayback struct {
	Addresses []PaybackAddress
}

// RepaymentAddress finds the route for a token on a chain.
func (p InstamintPayback) RepaymentAddress(symbol, chain string) (PaybackAddress, bool) {
	for _, a := range p.Addresses {
		if a.Symbol == symbol && a.Chain == chain {
			return a, true
		}
	}
	return PaybackAddress{}, false
}
