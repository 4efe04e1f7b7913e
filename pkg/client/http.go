package client

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/tradeapi"
)

// HTTPDirectory resolves the venue through the trading service.
type HTTPDirectory struct {
	api *tradeapi.Client
}

func NewHTTPDirectory(api *tradeapi.Client) *HTTPDirectory {
	return &HTTPDirectory{api: api}
}

func (d *HTTPDirectory) CurrentEpoch(ctx context.Context) (uint64, error) {
	status, err := d.api.NetworkStatus(ctx)
	if err != nil {
		return 0, fmt.Errorf("load network status: %w", err)
	}
	return status.CurEpoch, nil
}

// LoadAnthicConfig combines /trade/info and /trade/tokens.
func (d *HTTPDirectory) LoadAnthicConfig(ctx context.Context) (model.AnthicConfig, error) {
	info, err := d.api.Info(ctx)
	if err != nil {
		return model.AnthicConfig{}, fmt.Errorf("load trade info: %w", err)
	}
	tokens, err := d.api.Tokens(ctx)
	if err != nil {
		return model.AnthicConfig{}, fmt.Errorf("load tokens: %w", err)
	}
	return ConfigFromReplies(info, tokens)
}

// ConfigFromReplies converts the wire replies into a builder configuration.
func ConfigFromReplies(info *tradeapi.InfoResponse, tokens *tradeapi.TokensResponse) (model.AnthicConfig, error) {
	rule, err := ledger.ParseAccessRuleHex(info.VerifyParentAccessRuleHex)
	if err != nil {
		return model.AnthicConfig{}, fmt.Errorf("%w: access rule: %v", ErrInvalidReply, err)
	}

	cfg := model.AnthicConfig{
		VerifyParentAccessRule: rule,
		SymbolToResource:       make(map[string]ledger.ResourceAddress, len(tokens.Tokens)),
		SettlementFeePerSymbol: make(map[string]decimal.Decimal, len(info.PerTokenSettlementFee)),
		VenueFeePerLevel:       make([]model.LevelFee, 0, len(info.PerLevelAnthicFee)),
	}
	for _, t := range tokens.Tokens {
		res, err := ledger.ParseResourceAddress(t.ResourceAddress)
		if err != nil {
			return model.AnthicConfig{}, fmt.Errorf("%w: token %s: %v", ErrInvalidReply, t.Symbol, err)
		}
		cfg.SymbolToResource[t.Symbol] = res
	}
	for _, f := range info.PerTokenSettlementFee {
		solver, err := parseAmount(f.SolverAmount)
		if err != nil {
			return model.AnthicConfig{}, fmt.Errorf("%w: %s solver fee: %v", ErrInvalidReply, f.Symbol, err)
		}
		execution, err := parseAmount(f.TransactionExecutionAmount)
		if err != nil {
			return model.AnthicConfig{}, fmt.Errorf("%w: %s execution fee: %v", ErrInvalidReply, f.Symbol, err)
		}
		cfg.SettlementFeePerSymbol[f.Symbol] = solver.Add(execution)
	}
	for i, l := range info.PerLevelAnthicFee {
		taker, err := parseAmount(l.TakerFee)
		if err != nil {
			return model.AnthicConfig{}, fmt.Errorf("%w: level %d taker fee: %v", ErrInvalidReply, i, err)
		}
		maker, err := parseAmount(l.MakerFee)
		if err != nil {
			return model.AnthicConfig{}, fmt.Errorf("%w: level %d maker fee: %v", ErrInvalidReply, i, err)
		}
		cfg.VenueFeePerLevel = append(cfg.VenueFeePerLevel, model.LevelFee{TakerFee: taker, MakerFee: maker})
	}
	return cfg, nil
}

func (d *HTTPDirectory) LoadAddressInfo(ctx context.Context, account ledger.ComponentAddress) (model.AddressInfo, error) {
	info, err := d.api.AccountAddressInfo(ctx, account.String())
	if err != nil {
		return model.AddressInfo{}, fmt.Errorf("load address info %s: %w", account, err)
	}
	return model.AddressInfo{Level: info.Level}, nil
}

func (d *HTTPDirectory) LoadInstamintConfig(ctx context.Context) (model.InstamintConfig, error) {
	info, err := d.api.InstamintInfo(ctx)
	if err != nil {
		return model.InstamintConfig{}, fmt.Errorf("load instamint info: %w", err)
	}
	badge, err := ledger.ParseResourceAddress(info.CustomerBadgeResource)
	if err != nil {
		return model.InstamintConfig{}, fmt.Errorf("%w: badge resource: %v", ErrInvalidReply, err)
	}
	component, err := ledger.ParseComponentAddress(info.InstamintComponent)
	if err != nil {
		return model.InstamintConfig{}, fmt.Errorf("%w: instamint component: %v", ErrInvalidReply, err)
	}
	return model.InstamintConfig{CustomerBadgeResource: badge, InstamintComponent: component}, nil
}

func (d *HTTPDirectory) instamintAccount(ctx context.Context) (tradeapi.InstamintAccount, error) {
	resp, err := d.api.InstamintAccounts(ctx)
	if err != nil {
		return tradeapi.InstamintAccount{}, fmt.Errorf("load instamint accounts: %w", err)
	}
	if len(resp.Accounts) == 0 {
		return tradeapi.InstamintAccount{}, ErrNoAccount
	}
	return resp.Accounts[0], nil
}

// LoadAnthicAccount uses the first instamint account of the api key and its
// first customer badge, if any.
func (d *HTTPDirectory) LoadAnthicAccount(ctx context.Context) (model.AnthicAccount, error) {
	acct, err := d.instamintAccount(ctx)
	if err != nil {
		return model.AnthicAccount{}, err
	}
	address, err := ledger.ParseComponentAddress(acct.Address)
	if err != nil {
		return model.AnthicAccount{}, fmt.Errorf("%w: account address: %v", ErrInvalidReply, err)
	}
	out := model.AnthicAccount{Address: address}
	if len(acct.CustomerBadgeLocalIDs) > 0 {
		id := ledger.NonFungibleLocalID(acct.CustomerBadgeLocalIDs[0])
		if err := id.Validate(); err != nil {
			return model.AnthicAccount{}, fmt.Errorf("%w: badge id: %v", ErrInvalidReply, err)
		}
		out.InstamintCustomerBadgeLocalID = &id
	}
	return out, nil
}

func (d *HTTPDirectory) InstamintBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	acct, err := d.instamintAccount(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(acct.UnreconciledLoans))
	for _, l := range acct.UnreconciledLoans {
		amount, err := parseAmount(l.Balance)
		if err != nil {
			return nil, fmt.Errorf("%w: %s loan: %v", ErrInvalidReply, l.Symbol, err)
		}
		out[l.Symbol] = out[l.Symbol].Add(amount)
	}
	return out, nil
}

func (d *HTTPDirectory) PaybackAddresses(ctx context.Context) (model.InstamintPayback, error) {
	acct, err := d.instamintAccount(ctx)
	if err != nil {
		return model.InstamintPayback{}, err
	}
	out := model.InstamintPayback{Addresses: make([]model.PaybackAddress, 0, len(acct.PaybackAddresses))}
	for _, p := range acct.PaybackAddresses {
		out.Addresses = append(out.Addresses, model.PaybackAddress{
			Chain:        p.Chain,
			Address:      p.Address,
			Symbol:       p.Symbol,
			TokenAddress: p.TokenAddress,
		})
	}
	return out, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := ledger.CheckAmount(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

var (
	_ Directory = (*HTTPDirectory)(nil)
	_ Loans     = (*HTTPDirectory)(nil)
)
