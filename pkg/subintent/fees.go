package subintent

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
)

// ErrInsufficientFee is returned when an order pays less than the venue charges.
var ErrInsufficientFee = errors.New("insufficient fee")

// FeeRole selects the taker or maker fraction of a level.
type FeeRole int

const (
	Taker FeeRole = iota
	Maker
)

func (r FeeRole) String() string {
	if r == Maker {
		return "maker"
	}
	return "taker"
}

// FeeQuote is what the venue charges for selling an amount of one token.
type FeeQuote struct {
	Symbol     string          `json:"symbol"`
	Settlement decimal.Decimal `json:"settlement"`
	Venue      decimal.Decimal `json:"venue"`
}

// Total is the amount withdrawn on top of the sell amount.
func (q FeeQuote) Total() decimal.Decimal {
	return q.Settlement.Add(q.Venue)
}

// QuoteFees prices an order: the flat settlement fee of the sell token plus
// the level's fraction of the sell amount, truncated to ledger precision.
func QuoteFees(cfg model.AnthicConfig, info model.AddressInfo, sell TokenAmount, role FeeRole) (FeeQuote, error) {
	settlement, err := cfg.SettlementFee(sell.Symbol)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	level, err := cfg.LevelFee(info.Level)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	frac := level.TakerFee
	if role == Maker {
		frac = level.MakerFee
	}
	return FeeQuote{
		Symbol:     sell.Symbol,
		Settlement: settlement,
		Venue:      sell.Amount.Mul(frac).Truncate(ledger.DecimalPlaces),
	}, nil
}

// CheckFees reports whether a recovered order pays at least the quoted fees
// for its sell side.
func CheckFees(cfg model.AnthicConfig, info model.AddressInfo, def LimitOrderDefinition, role FeeRole) error {
	symbol, ok := cfg.Symbol(def.Trade.Sell.Resource)
	if !ok {
		return fmt.Errorf("%w: sell resource %s is not a venue token", ErrConfig, def.Trade.Sell.Resource)
	}
	if def.Fee.Resource != def.Trade.Sell.Resource {
		return fmt.Errorf("%w: fee paid in %s, expected %s", ErrInsufficientFee, def.Fee.Resource, def.Trade.Sell.Resource)
	}
	quote, err := QuoteFees(cfg, info, TokenAmount{Symbol: symbol, Amount: def.Trade.Sell.Amount}, role)
	if err != nil {
		return err
	}
	if def.Fee.SettlementAmount.LessThan(quote.Settlement) {
		return fmt.Errorf("%w: settlement fee %s below %s %s", ErrInsufficientFee, def.Fee.SettlementAmount, quote.Settlement, symbol)
	}
	if def.Fee.VenueAmount.LessThan(quote.Venue) {
		return fmt.Errorf("%w: %s venue fee %s below %s %s", ErrInsufficientFee, role, def.Fee.VenueAmount, quote.Venue, symbol)
	}
	return nil
}
