package subintent

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/manifest"
	"github.com/uhyunpark/anthic/pkg/model"
)

const (
	bucketSell          = "sell"
	bucketVenueFee      = "venue-fee"
	bucketSettlementFee = "settlement-fee"
	proofInstamint      = "instamint-proof"
)

// Builder composes venue subintent manifests from token symbols.
// The first error sticks and is returned by Build.
type Builder struct {
	config model.AnthicConfig
	m      *manifest.Builder
	err    error
}

func NewBuilder(config model.AnthicConfig) *Builder {
	return &Builder{config: config, m: manifest.NewSubintentBuilder()}
}

// InstamintIntoAccount prefixes instructions minting toMint into account on
// credit, authorized by the account's customer badge.
func (b *Builder) InstamintIntoAccount(instamint model.InstamintConfig, account ledger.ComponentAddress, localID ledger.NonFungibleLocalID, toMint TokenAmount) *Builder {
	if b.err != nil {
		return b
	}
	resource, err := b.config.Resource(toMint.Symbol)
	if err != nil {
		b.err = fmt.Errorf("%w: %v", ErrConfig, err)
		return b
	}
	b.err = appendInstamint(b.m, instamint, account, localID, ResourceAmount{Resource: resource, Amount: toMint.Amount})
	return b
}

// AddLimitOrder appends the canonical limit order selling sell for at least buy.
func (b *Builder) AddLimitOrder(account ledger.ComponentAddress, sell, buy TokenAmount, settlementFee, venueFee decimal.Decimal) *Builder {
	if b.err != nil {
		return b
	}
	sellRes, err := b.config.Resource(sell.Symbol)
	if err != nil {
		b.err = fmt.Errorf("%w: sell: %v", ErrConfig, err)
		return b
	}
	buyRes, err := b.config.Resource(buy.Symbol)
	if err != nil {
		b.err = fmt.Errorf("%w: buy: %v", ErrConfig, err)
		return b
	}
	b.err = appendLimitOrder(b.m, b.config.VerifyParentAccessRule, account,
		ResourceAmount{Resource: sellRes, Amount: sell.Amount},
		ResourceAmount{Resource: buyRes, Amount: buy.Amount},
		settlementFee, venueFee)
	return b
}

func (b *Builder) Build() (ledger.SubintentManifest, error) {
	if b.err != nil {
		return ledger.SubintentManifest{}, b.err
	}
	return b.m.Build()
}

// BuildLimitOrder emits the canonical instruction sequence for one order.
func BuildLimitOrder(config model.AnthicConfig, account ledger.ComponentAddress, sell, buy ResourceAmount, settlementFee, venueFee decimal.Decimal) ([]ledger.Instruction, error) {
	m := manifest.NewSubintentBuilder()
	if err := appendLimitOrder(m, config.VerifyParentAccessRule, account, sell, buy, settlementFee, venueFee); err != nil {
		return nil, err
	}
	built, err := m.Build()
	if err != nil {
		return nil, err
	}
	return built.Instructions, nil
}

func appendLimitOrder(m *manifest.Builder, rule ledger.AccessRule, account ledger.ComponentAddress, sell, buy ResourceAmount, settlementFee, venueFee decimal.Decimal) error {
	if len(rule) == 0 {
		return fmt.Errorf("%w: verify parent access rule is not configured", ErrConfig)
	}
	if !account.IsGlobalAccount() {
		return fmt.Errorf("%w: %s is not an account", ErrInvalidOrder, account)
	}
	if sell.Resource == buy.Resource {
		return fmt.Errorf("%w: sell and buy are both %s", ErrInvalidOrder, sell.Resource)
	}
	for name, amt := range map[string]decimal.Decimal{
		"sell":           sell.Amount,
		"buy":            buy.Amount,
		"settlement fee": settlementFee,
		"venue fee":      venueFee,
	} {
		if err := ledger.CheckAmount(amt); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidOrder, name, err)
		}
	}

	// Fees are paid in the sold resource.
	feeResource := sell.Resource
	withdraw := sell.Amount.Add(settlementFee).Add(venueFee)

	m.VerifyParent(rule).
		WithdrawFromAccount(account, sell.Resource, withdraw).
		TakeFromWorktop(sell.Resource, sell.Amount, bucketSell).
		AssertNextCallReturnsOnly(ledger.ResourceConstraints{}.With(buy.Resource, ledger.AtLeastAmount(buy.Amount)))
	m.YieldToParent(m.Bucket(bucketSell))

	m.TakeFromWorktop(feeResource, venueFee, bucketVenueFee).
		TakeFromWorktop(feeResource, settlementFee, bucketSettlementFee)
	m.YieldToParent(m.Bucket(bucketVenueFee), m.Bucket(bucketSettlementFee))

	m.DepositEntireWorktop(account).
		YieldToParent()
	return m.Err()
}
