package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/tradeapi"
)

const (
	usdcAddr  = "0x5dffdc637484494d9df321df576f96d81c613c5a4b7050da883ee2ad1126"
	btcAddr   = "0x5dc32ec1311ec699d1dc6a0e6f56ae4f024fdf45e10f509f5508274ef690"
	badgeAddr = "0x9ab833a3d95ad55b715837a2fab9969caa25286437070b61fecc0253bed3"
	compAddr  = "0xc090aece7a9cdbe5684ea7a2cf2c8794a6a73556d54d47f92e59661a7c4f"
	acctAddr  = "0xd173d7f5b949cda9a3e7de268ec328b9e9f6924878751c568d8c62e4a498"
)

func reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func fakeTradeAPI(t *testing.T) *HTTPDirectory {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/network/status", func(w http.ResponseWriter, r *http.Request) {
		reply(w, tradeapi.NetworkStatusResponse{CurEpoch: 77})
	})
	mux.HandleFunc("/trade/info", func(w http.ResponseWriter, r *http.Request) {
		reply(w, tradeapi.InfoResponse{
			VerifyParentAccessRuleHex: "0a0b",
			PerTokenSettlementFee: []tradeapi.SettlementFeeItem{
				{Symbol: "xUSDC", SolverAmount: "0.04", TransactionExecutionAmount: "0.06"},
			},
			PerLevelAnthicFee: []tradeapi.AnthicLevelFee{{TakerFee: "0.001", MakerFee: "0.0005"}},
		})
	})
	mux.HandleFunc("/trade/tokens", func(w http.ResponseWriter, r *http.Request) {
		reply(w, tradeapi.TokensResponse{Tokens: []tradeapi.TokenDefinition{
			{Symbol: "xUSDC", ResourceAddress: usdcAddr},
			{Symbol: "xwBTC", ResourceAddress: btcAddr},
		}})
	})
	mux.HandleFunc("/trade/account_addresses/"+acctAddr, func(w http.ResponseWriter, r *http.Request) {
		reply(w, tradeapi.AccountAddressInfo{Level: 1})
	})
	mux.HandleFunc("/instamint/info", func(w http.ResponseWriter, r *http.Request) {
		reply(w, tradeapi.InstamintInfo{InstamintComponent: compAddr, CustomerBadgeResource: badgeAddr})
	})
	mux.HandleFunc("/instamint/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(tradeapi.APIKeyHeader) != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, tradeapi.InstamintAccountsResponse{Accounts: []tradeapi.InstamintAccount{{
			Address:               acctAddr,
			CustomerBadgeLocalIDs: []string{"#7#"},
			InstamintAllowance:    "500",
			UnreconciledLoans: []tradeapi.ResourceBalance{
				{Symbol: "xUSDT", Balance: "12.5"},
				{Symbol: "xUSDT", Balance: "0.5"},
			},
			PaybackAddresses: []tradeapi.InstamintPaybackAddress{{Chain: "Radix", Address: acctAddr, Symbol: "xUSDT"}},
		}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHTTPDirectory(tradeapi.NewClient(srv.URL, "key", time.Second))
}

func TestHTTPDirectory(t *testing.T) {
	d := fakeTradeAPI(t)
	ctx := context.Background()

	epoch, err := d.CurrentEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), epoch)

	cfg, err := d.LoadAnthicConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.AccessRule{0x0a, 0x0b}, cfg.VerifyParentAccessRule)
	assert.Equal(t, usdcAddr, cfg.SymbolToResource["xUSDC"].String())
	assert.True(t, decimal.RequireFromString("0.1").Equal(cfg.SettlementFeePerSymbol["xUSDC"]))
	require.Len(t, cfg.VenueFeePerLevel, 1)
	assert.True(t, decimal.RequireFromString("0.0005").Equal(cfg.VenueFeePerLevel[0].MakerFee))

	account, err := ledger.ParseComponentAddress(acctAddr)
	require.NoError(t, err)
	info, err := d.LoadAddressInfo(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Level)

	im, err := d.LoadInstamintConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, compAddr, im.InstamintComponent.String())
	assert.Equal(t, badgeAddr, im.CustomerBadgeResource.String())

	acct, err := d.LoadAnthicAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, account, acct.Address)
	require.NotNil(t, acct.InstamintCustomerBadgeLocalID)
	assert.Equal(t, ledger.NonFungibleLocalID("#7#"), *acct.InstamintCustomerBadgeLocalID)

	loans, err := d.InstamintBalances(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("13").Equal(loans["xUSDT"]), "got %s", loans["xUSDT"])

	payback, err := d.PaybackAddresses(ctx)
	require.NoError(t, err)
	addr, ok := payback.RepaymentAddress("xUSDT", "Radix")
	require.True(t, ok)
	assert.Equal(t, acctAddr, addr.Address)
}

func TestConfigFromRepliesRejectsBadData(t *testing.T) {
	good := func() (*tradeapi.InfoResponse, *tradeapi.TokensResponse) {
		return &tradeapi.InfoResponse{
				VerifyParentAccessRuleHex: "0x01",
				PerTokenSettlementFee:     []tradeapi.SettlementFeeItem{{Symbol: "xUSDC", SolverAmount: "1", TransactionExecutionAmount: "0"}},
				PerLevelAnthicFee:         []tradeapi.AnthicLevelFee{{TakerFee: "0.001", MakerFee: "0"}},
			}, &tradeapi.TokensResponse{
				Tokens: []tradeapi.TokenDefinition{{Symbol: "xUSDC", ResourceAddress: usdcAddr}},
			}
	}
	_, err := ConfigFromReplies(good())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*tradeapi.InfoResponse, *tradeapi.TokensResponse)
	}{
		{"empty rule", func(i *tradeapi.InfoResponse, _ *tradeapi.TokensResponse) { i.VerifyParentAccessRuleHex = "" }},
		{"bad rule", func(i *tradeapi.InfoResponse, _ *tradeapi.TokensResponse) { i.VerifyParentAccessRuleHex = "0xzz" }},
		{"component as token", func(_ *tradeapi.InfoResponse, tk *tradeapi.TokensResponse) { tk.Tokens[0].ResourceAddress = compAddr }},
		{"bad fee", func(i *tradeapi.InfoResponse, _ *tradeapi.TokensResponse) { i.PerTokenSettlementFee[0].SolverAmount = "one" }},
		{"negative fee", func(i *tradeapi.InfoResponse, _ *tradeapi.TokensResponse) {
			i.PerTokenSettlementFee[0].TransactionExecutionAmount = "-1"
		}},
		{"bad level", func(i *tradeapi.InfoResponse, _ *tradeapi.TokensResponse) { i.PerLevelAnthicFee[0].TakerFee = "" }},
		{"too precise", func(i *tradeapi.InfoResponse, _ *tradeapi.TokensResponse) {
			i.PerLevelAnthicFee[0].MakerFee = "0.0000000000000000001"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, tokens := good()
			tt.mutate(info, tokens)
			_, err := ConfigFromReplies(info, tokens)
			assert.ErrorIs(t, err, ErrInvalidReply)
		})
	}
}

func TestHTTPDirectoryWithoutAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, tradeapi.InstamintAccountsResponse{})
	}))
	defer srv.Close()
	d := NewHTTPDirectory(tradeapi.NewClient(srv.URL, "key", time.Second))

	_, err := d.LoadAnthicAccount(context.Background())
	assert.ErrorIs(t, err, ErrNoAccount)
	_, err = d.InstamintBalances(context.Background())
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestStaticDirectory(t *testing.T) {
	venue := model.DevnetVenue()
	ctx := context.Background()

	maker := NewStaticDirectory(venue, "devnet-maker")
	epoch, err := maker.CurrentEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, venue.CurrentEpoch, epoch)

	acct, err := maker.LoadAnthicAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, acctAddr, acct.Address.String())
	require.NotNil(t, acct.InstamintCustomerBadgeLocalID)

	info, err := maker.LoadAddressInfo(ctx, acct.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Level)

	stranger := ledger.ComponentAddress{NodeID: ledger.NewNodeID(ledger.EntityGlobalAccount, []byte("nobody"))}
	info, err = maker.LoadAddressInfo(ctx, stranger)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Level)

	loans, err := maker.InstamintBalances(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2500").Equal(loans["xUSDC"]))
	assert.True(t, decimal.RequireFromString("0.01").Equal(loans["xwBTC"]))

	payback, err := maker.PaybackAddresses(ctx)
	require.NoError(t, err)
	_, ok := payback.RepaymentAddress("ETH", "Ethereum")
	assert.True(t, ok)

	anonymous := NewStaticDirectory(venue, "")
	_, err = anonymous.LoadAnthicAccount(ctx)
	assert.ErrorIs(t, err, ErrNoAccount)

	venue.Instamint = nil
	_, err = NewStaticDirectory(venue, "").LoadInstamintConfig(ctx)
	assert.ErrorIs(t, err, ErrNoInstamint)
}
