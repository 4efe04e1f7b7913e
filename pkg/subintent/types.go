package subintent

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

// TokenAmount names a quantity by venue token symbol.
type TokenAmount struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// ResourceAmount is a quantity of one ledger resource.
type ResourceAmount struct {
	Resource ledger.ResourceAddress `json:"resource"`
	Amount   decimal.Decimal        `json:"amount"`
}

func (r ResourceAmount) Equal(o ResourceAmount) bool {
	return r.Resource == o.Resource && r.Amount.Equal(o.Amount)
}

func (r ResourceAmount) String() string {
	return fmt.Sprintf("%s %s", r.Amount, r.Resource)
}

// LimitOrder sells Sell for at least Buy.
type LimitOrder struct {
	Sell ResourceAmount `json:"sell"`
	Buy  ResourceAmount `json:"buy"`
}

func (o LimitOrder) Equal(x LimitOrder) bool {
	return o.Sell.Equal(x.Sell) && o.Buy.Equal(x.Buy)
}

// FeeDefinition is paid in the sell resource.
type FeeDefinition struct {
	Resource         ledger.ResourceAddress `json:"resource"`
	VenueAmount      decimal.Decimal        `json:"venue_amount"`
	SettlementAmount decimal.Decimal        `json:"settlement_amount"`
}

func (f FeeDefinition) Equal(o FeeDefinition) bool {
	return f.Resource == o.Resource &&
		f.VenueAmount.Equal(o.VenueAmount) &&
		f.SettlementAmount.Equal(o.SettlementAmount)
}

// Total is the venue fee plus the settlement fee.
func (f FeeDefinition) Total() decimal.Decimal {
	return f.VenueAmount.Add(f.SettlementAmount)
}

// LimitOrderMeta holds the gate and the owning account.
type LimitOrderMeta struct {
	AccessRule ledger.AccessRule       `json:"access_rule"`
	Account    ledger.ComponentAddress `json:"account"`
}

func (m LimitOrderMeta) Equal(o LimitOrderMeta) bool {
	return m.AccessRule.Equal(o.AccessRule) && m.Account == o.Account
}

// LimitOrderDefinition is the structured order recovered from a manifest.
// It is the only data a matcher should trust from an untrusted subintent.
type LimitOrderDefinition struct {
	Meta  LimitOrderMeta `json:"meta"`
	Trade LimitOrder     `json:"trade"`
	Fee   FeeDefinition  `json:"fee"`
}

func (d LimitOrderDefinition) Equal(o LimitOrderDefinition) bool {
	return d.Meta.Equal(o.Meta) && d.Trade.Equal(o.Trade) && d.Fee.Equal(o.Fee)
}

// WithdrawAmount is what the account must hold: sell amount plus fees.
func (d LimitOrderDefinition) WithdrawAmount() decimal.Decimal {
	return d.Trade.Sell.Amount.Add(d.Fee.Total())
}

// InstamintDefinition is the structured form of an instamint prefix.
type InstamintDefinition struct {
	Account      ledger.ComponentAddress   `json:"account"`
	BadgeLocalID ledger.NonFungibleLocalID `json:"badge_local_id"`
	Minted       ResourceAmount            `json:"minted"`
}
