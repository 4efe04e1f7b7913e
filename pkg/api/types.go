package api

import (
	"github.com/uhyunpark/anthic/pkg/app/matcher"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/storage"
	"github.com/uhyunpark/anthic/pkg/tradeapi"
)

// REST payloads live in pkg/tradeapi so the client and server share them.
// Only websocket messages are defined here.

const (
	// ChannelOrders carries every order event.
	ChannelOrders = "orders"
	// ChannelAccountPrefix + account address carries one account's events.
	ChannelAccountPrefix = "account:"
)

// WSSubscribeRequest is sent by clients to pick channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["orders", "account:0xd1..."]
}

// OrderUpdate is pushed when an order is accepted, expires or is cancelled.
type OrderUpdate struct {
	Type  string                 `json:"type"` // "order"
	Event string                 `json:"event"`
	Order tradeapi.OrderResponse `json:"order"`
}

func orderResponse(cfg model.AnthicConfig, rec *storage.OrderRecord) tradeapi.OrderResponse {
	trade := rec.Order.Trade
	sellSymbol, _ := cfg.Symbol(trade.Sell.Resource)
	buySymbol, _ := cfg.Symbol(trade.Buy.Resource)
	return tradeapi.OrderResponse{
		ID:          rec.ID.String(),
		Hash:        rec.Hash.String(),
		Account:     rec.Account.String(),
		Status:      string(rec.Status),
		Origin:      rec.Origin,
		SellSymbol:  sellSymbol,
		SellAmount:  trade.Sell.Amount.String(),
		BuySymbol:   buySymbol,
		BuyAmount:   trade.Buy.Amount.String(),
		VenueFee:    rec.Order.Fee.VenueAmount.String(),
		SettleFee:   rec.Order.Fee.SettlementAmount.String(),
		Instamint:   rec.Instamint != nil,
		ReceivedAt:  rec.ReceivedAt.Unix(),
		ExpiresAt:   rec.ExpiresAt.Unix(),
		Transaction: rec.Transaction,
	}
}

func ordersResponse(cfg model.AnthicConfig, recs []*storage.OrderRecord) tradeapi.OrdersResponse {
	out := tradeapi.OrdersResponse{Orders: make([]tradeapi.OrderResponse, 0, len(recs))}
	for _, rec := range recs {
		out.Orders = append(out.Orders, orderResponse(cfg, rec))
	}
	return out
}

func orderUpdate(cfg model.AnthicConfig, ev matcher.OrderEvent) OrderUpdate {
	return OrderUpdate{Type: "order", Event: string(ev.Type), Order: orderResponse(cfg, ev.Record)}
}

// Venue replies are derived from the venue file.

func infoResponse(v model.VenueFile) tradeapi.InfoResponse {
	out := tradeapi.InfoResponse{
		VerifyParentAccessRuleHex: v.VerifyParentAccessRule.String(),
		PerTokenSettlementFee:     make([]tradeapi.SettlementFeeItem, 0, len(v.Tokens)),
		PerLevelAnthicFee:         make([]tradeapi.AnthicLevelFee, 0, len(v.Levels)),
	}
	for _, t := range v.Tokens {
		out.PerTokenSettlementFee = append(out.PerTokenSettlementFee, tradeapi.SettlementFeeItem{
			Symbol:                     t.Symbol,
			SolverAmount:               t.SolverFee.String(),
			TransactionExecutionAmount: t.ExecutionFee.String(),
		})
	}
	for _, l := range v.Levels {
		out.PerLevelAnthicFee = append(out.PerLevelAnthicFee, tradeapi.AnthicLevelFee{
			TakerFee: l.TakerFee.String(),
			MakerFee: l.MakerFee.String(),
		})
	}
	return out
}

func tokensResponse(v model.VenueFile) tradeapi.TokensResponse {
	out := tradeapi.TokensResponse{Tokens: make([]tradeapi.TokenDefinition, 0, len(v.Tokens))}
	for _, t := range v.Tokens {
		out.Tokens = append(out.Tokens, tradeapi.TokenDefinition{ResourceAddress: t.Resource.String(), Symbol: t.Symbol})
	}
	return out
}

func tokenPairsResponse(v model.VenueFile) tradeapi.TokenPairsResponse {
	out := tradeapi.TokenPairsResponse{TokenPairs: make([]tradeapi.TokenPair, 0, len(v.TokenPairs))}
	for _, p := range v.TokenPairs {
		out.TokenPairs = append(out.TokenPairs, tradeapi.TokenPair{Base: p.Base, Quote: p.Quote})
	}
	return out
}

func balances(in []model.VenueBalance) []tradeapi.ResourceBalance {
	out := make([]tradeapi.ResourceBalance, 0, len(in))
	for _, b := range in {
		out = append(out, tradeapi.ResourceBalance{Symbol: b.Symbol, Balance: b.Balance.String()})
	}
	return out
}

func instamintAccount(a model.VenueAccount) tradeapi.InstamintAccount {
	out := tradeapi.InstamintAccount{
		CustomerBadgeLocalIDs: []string{},
		Address:               a.Address.String(),
		InstamintAllowance:    a.Allowance.String(),
		UnreconciledLoans:     balances(a.Loans),
		PaybackAddresses:      make([]tradeapi.InstamintPaybackAddress, 0, len(a.Payback)),
	}
	if a.BadgeLocalID != "" {
		out.CustomerBadgeLocalIDs = append(out.CustomerBadgeLocalIDs, string(a.BadgeLocalID))
	}
	for _, p := range a.Payback {
		out.PaybackAddresses = append(out.PaybackAddresses, tradeapi.InstamintPaybackAddress(p))
	}
	return out
}
