package client

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
)

var (
	ErrNoAccount    = errors.New("no anthic account for this api key")
	ErrNoInstamint  = errors.New("venue has no instamint configuration")
	ErrInvalidReply = errors.New("invalid trade api reply")
)

// Directory is what builders and the matcher need from the venue.
type Directory interface {
	LoadAnthicConfig(ctx context.Context) (model.AnthicConfig, error)
	LoadAddressInfo(ctx context.Context, account ledger.ComponentAddress) (model.AddressInfo, error)
	LoadInstamintConfig(ctx context.Context) (model.InstamintConfig, error)
	// LoadAnthicAccount returns the account bound to the caller's api key.
	LoadAnthicAccount(ctx context.Context) (model.AnthicAccount, error)
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// Loans reports instamint credit owed by the caller's account.
type Loans interface {
	// InstamintBalances returns the outstanding loan per token symbol.
	InstamintBalances(ctx context.Context) (map[string]decimal.Decimal, error)
	PaybackAddresses(ctx context.Context) (model.InstamintPayback, error)
}
