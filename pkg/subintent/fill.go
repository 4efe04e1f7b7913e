package subintent

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
)

// ErrNoBadge is returned when instamint is requested for an account without
// a customer badge.
var ErrNoBadge = errors.New("cannot instamint without badge")

// UserOrder is an order as the venue publishes it to solvers.
type UserOrder struct {
	Sell TokenAmount `json:"sell"`
	Buy  TokenAmount `json:"buy"`
}

// ComposeFill builds the solver side of a user order: it sells what the user
// buys and buys what the user sells, paying the maker fee of the solver's
// level. With useInstamint the sold amount plus fees is minted on credit first.
func ComposeFill(cfg model.AnthicConfig, instamint model.InstamintConfig, account model.AnthicAccount, info model.AddressInfo, order UserOrder, useInstamint bool) (ledger.SubintentManifest, error) {
	sell, buy := order.Buy, order.Sell

	quote, err := QuoteFees(cfg, info, sell, Maker)
	if err != nil {
		return ledger.SubintentManifest{}, err
	}

	b := NewBuilder(cfg)
	if useInstamint {
		if account.InstamintCustomerBadgeLocalID == nil {
			return ledger.SubintentManifest{}, fmt.Errorf("%w: account %s", ErrNoBadge, account.Address)
		}
		toMint := TokenAmount{Symbol: sell.Symbol, Amount: sell.Amount.Add(quote.Total())}
		b.InstamintIntoAccount(instamint, account.Address, *account.InstamintCustomerBadgeLocalID, toMint)
	}
	return b.AddLimitOrder(account.Address, sell, buy, quote.Settlement, quote.Venue).Build()
}
