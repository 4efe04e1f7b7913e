package client

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
)

// StaticDirectory answers from a venue file, acting as the holder of apiKey.
type StaticDirectory struct {
	venue  model.VenueFile
	apiKey string
}

func NewStaticDirectory(venue model.VenueFile, apiKey string) *StaticDirectory {
	return &StaticDirectory{venue: venue, apiKey: apiKey}
}

func (d *StaticDirectory) CurrentEpoch(context.Context) (uint64, error) {
	return d.venue.CurrentEpoch, nil
}

func (d *StaticDirectory) LoadAnthicConfig(context.Context) (model.AnthicConfig, error) {
	return d.venue.AnthicConfig(), nil
}

// LoadAddressInfo reports level 0 for accounts the venue does not list.
func (d *StaticDirectory) LoadAddressInfo(_ context.Context, account ledger.ComponentAddress) (model.AddressInfo, error) {
	acct, ok := d.venue.Account(account)
	if !ok {
		return model.AddressInfo{}, nil
	}
	return model.AddressInfo{Level: acct.Level}, nil
}

func (d *StaticDirectory) LoadInstamintConfig(context.Context) (model.InstamintConfig, error) {
	cfg, ok := d.venue.InstamintConfig()
	if !ok {
		return model.InstamintConfig{}, ErrNoInstamint
	}
	return cfg, nil
}

func (d *StaticDirectory) account() (model.VenueAccount, error) {
	acct, ok := d.venue.AccountByAPIKey(d.apiKey)
	if !ok {
		return model.VenueAccount{}, ErrNoAccount
	}
	return acct, nil
}

func (d *StaticDirectory) LoadAnthicAccount(context.Context) (model.AnthicAccount, error) {
	acct, err := d.account()
	if err != nil {
		return model.AnthicAccount{}, err
	}
	return acct.AnthicAccount(), nil
}

func (d *StaticDirectory) InstamintBalances(context.Context) (map[string]decimal.Decimal, error) {
	acct, err := d.account()
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(acct.Loans))
	for _, l := range acct.Loans {
		out[l.Symbol] = out[l.Symbol].Add(l.Balance)
	}
	return out, nil
}

func (d *StaticDirectory) PaybackAddresses(context.Context) (model.InstamintPayback, error) {
	acct, err := d.account()
	if err != nil {
		return model.InstamintPayback{}, err
	}
	out := model.InstamintPayback{Addresses: make([]model.PaybackAddress, 0, len(acct.Payback))}
	for _, p := range acct.Payback {
		out.Addresses = append(out.Addresses, model.PaybackAddress(p))
	}
	return out, nil
}

var (
	_ Directory = (*StaticDirectory)(nil)
	_ Loans     = (*StaticDirectory)(nil)
)
