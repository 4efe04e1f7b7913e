package model

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

// VenueFile is the on-disk description of a venue: everything the trade API
// serves, in one TOML document. The matching node serves it and offline
// tools read it instead of calling the API.
type VenueFile struct {
	NetworkID              uint8             `toml:"network_id"`
	CurrentEpoch           uint64            `toml:"cur_epoch"`
	VerifyParentAccessRule ledger.AccessRule `toml:"verify_parent_access_rule"`
	Tokens                 []VenueToken      `toml:"tokens"`
	TokenPairs             []VenueTokenPair  `toml:"token_pairs"`
	Levels                 []VenueLevel      `toml:"levels"`
	Instamint              *VenueInstamint   `toml:"instamint"`
	Accounts               []VenueAccount    `toml:"accounts"`
}

type VenueToken struct {
	Symbol   string                 `toml:"symbol"`
	Resource ledger.ResourceAddress `toml:"resource_address"`
	// SolverFee plus ExecutionFee make up the settlement fee.
	SolverFee    decimal.Decimal `toml:"solver_fee"`
	ExecutionFee decimal.Decimal `toml:"execution_fee"`
}

type VenueTokenPair struct {
	Base  string `toml:"base"`
	Quote string `toml:"quote"`
}

type VenueLevel struct {
	TakerFee decimal.Decimal `toml:"taker_fee"`
	MakerFee decimal.Decimal `toml:"maker_fee"`
}

type VenueInstamint struct {
	CustomerBadgeResource ledger.ResourceAddress  `toml:"customer_badge_resource"`
	Component             ledger.ComponentAddress `toml:"component"`
}

type VenueAccount struct {
	Address      ledger.ComponentAddress   `toml:"address"`
	Level        uint64                    `toml:"level"`
	APIKey       string                    `toml:"api_key"`
	BadgeLocalID ledger.NonFungibleLocalID `toml:"badge_local_id"`
	Allowance    decimal.Decimal           `toml:"instamint_allowance"`
	Loans        []VenueBalance            `toml:"unreconciled_loans"`
	Balances     []VenueBalance            `toml:"balances"`
	Payback      []PaybackAddressEntry     `toml:"payback"`
}

type VenueBalance struct {
	Symbol  string          `toml:"symbol"`
	Balance decimal.Decimal `toml:"balance"`
}

type PaybackAddressEntry struct {
	Chain        string `toml:"chain"`
	Address      string `toml:"address"`
	Symbol       string `toml:"symbol"`
	TokenAddress string `toml:"token_address"`
}

//go:embed devnet.toml
var devnetVenue string

// DevnetVenue is the built-in single-node venue used when no venue file is
// configured.
func DevnetVenue() VenueFile {
	v, err := ParseVenue(devnetVenue)
	if err != nil {
		panic(fmt.Sprintf("embedded devnet venue: %v", err))
	}
	return v
}

// LoadVenueFile reads and checks a venue TOML file.
func LoadVenueFile(path string) (VenueFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return VenueFile{}, fmt.Errorf("venue load failed (%s): %w", path, err)
	}
	return ParseVenue(string(data))
}

// ParseVenue decodes a venue document.
func ParseVenue(doc string) (VenueFile, error) {
	var v VenueFile
	if _, err := toml.Decode(doc, &v); err != nil {
		return VenueFile{}, fmt.Errorf("venue parse failed: %w", err)
	}
	if err := v.Validate(); err != nil {
		return VenueFile{}, err
	}
	return v, nil
}

func (v VenueFile) Validate() error {
	if len(v.VerifyParentAccessRule) == 0 {
		return fmt.Errorf("venue: verify_parent_access_rule is required")
	}
	seen := make(map[string]bool, len(v.Tokens))
	for _, t := range v.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("venue: token without symbol")
		}
		if seen[t.Symbol] {
			return fmt.Errorf("venue: duplicate token %q", t.Symbol)
		}
		seen[t.Symbol] = true
		if err := ledger.CheckAmount(t.SolverFee.Add(t.ExecutionFee)); err != nil {
			return fmt.Errorf("venue: token %q fee: %w", t.Symbol, err)
		}
	}
	for _, p := range v.TokenPairs {
		if !seen[p.Base] || !seen[p.Quote] {
			return fmt.Errorf("venue: pair %s/%s references unknown token", p.Base, p.Quote)
		}
	}
	if len(v.Levels) == 0 {
		return fmt.Errorf("venue: at least one fee level is required")
	}
	for _, a := range v.Accounts {
		if a.Level >= uint64(len(v.Levels)) {
			return fmt.Errorf("venue: account %s has unknown level %d", a.Address, a.Level)
		}
		if a.BadgeLocalID != "" {
			if err := a.BadgeLocalID.Validate(); err != nil {
				return fmt.Errorf("venue: account %s: %w", a.Address, err)
			}
		}
	}
	return nil
}

// AnthicConfig derives the builder configuration.
func (v VenueFile) AnthicConfig() AnthicConfig {
	cfg := AnthicConfig{
		VerifyParentAccessRule: append(ledger.AccessRule(nil), v.VerifyParentAccessRule...),
		SymbolToResource:       make(map[string]ledger.ResourceAddress, len(v.Tokens)),
		SettlementFeePerSymbol: make(map[string]decimal.Decimal, len(v.Tokens)),
		VenueFeePerLevel:       make([]LevelFee, len(v.Levels)),
	}
	for _, t := range v.Tokens {
		cfg.SymbolToResource[t.Symbol] = t.Resource
		cfg.SettlementFeePerSymbol[t.Symbol] = t.SolverFee.Add(t.ExecutionFee)
	}
	for i, l := range v.Levels {
		cfg.VenueFeePerLevel[i] = LevelFee{TakerFee: l.TakerFee, MakerFee: l.MakerFee}
	}
	return cfg
}

// InstamintConfig returns the instamint section, if present.
func (v VenueFile) InstamintConfig() (InstamintConfig, bool) {
	if v.Instamint == nil {
		return InstamintConfig{}, false
	}
	return InstamintConfig{
		CustomerBadgeResource: v.Instamint.CustomerBadgeResource,
		InstamintComponent:    v.Instamint.Component,
	}, true
}

func (v VenueFile) Account(address ledger.ComponentAddress) (VenueAccount, bool) {
	for _, a := range v.Accounts {
		if a.Address == address {
			return a, true
		}
	}
	return VenueAccount{}, false
}

func (v VenueFile) AccountByAPIKey(key string) (VenueAccount, bool) {
	if key == "" {
		return VenueAccount{}, false
	}
	for _, a := range v.Accounts {
		if a.APIKey == key {
			return a, true
		}
	}
	return VenueAccount{}, false
}

// AnthicAccount converts a venue account entry.
func (a VenueAccount) AnthicAccount() AnthicAccount {
	out := AnthicAccount{Address: a.Address}
	if a.BadgeLocalID != "" {
		id := a.BadgeLocalID
		out.InstamintCustomerBadgeLocalID = &id
	}
	return out
}
