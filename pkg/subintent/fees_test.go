package subintent

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/anthic/pkg/model"
)

func TestQuoteFees(t *testing.T) {
	tests := []struct {
		name       string
		level      uint64
		role       FeeRole
		sell       string
		settlement string
		venue      string
	}{
		{"taker level 0", 0, Taker, "95.85", "0.10", "0.09585"},
		{"taker level 1", 1, Taker, "95.85", "0.10", "0.047925"},
		{"maker is free", 0, Maker, "95.85", "0.10", "0"},
		{"truncates to ledger precision", 0, Taker, "0.000000000000000123", "0.10", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := QuoteFees(testConfig(), model.AddressInfo{Level: tt.level}, TokenAmount{Symbol: "xUSDC", Amount: dec(tt.sell)}, tt.role)
			require.NoError(t, err)
			assert.True(t, q.Settlement.Equal(dec(tt.settlement)), "settlement %s", q.Settlement)
			assert.True(t, q.Venue.Equal(dec(tt.venue)), "venue %s", q.Venue)
		})
	}
}

func TestQuoteFeesConfigErrors(t *testing.T) {
	_, err := QuoteFees(testConfig(), model.AddressInfo{}, TokenAmount{Symbol: "DOGE", Amount: dec("1")}, Taker)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = QuoteFees(testConfig(), model.AddressInfo{Level: 9}, TokenAmount{Symbol: "xUSDC", Amount: dec("1")}, Taker)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestCheckFees(t *testing.T) {
	def := scenarioDefinition()

	// 0.05 venue fee is below the 0.09585 taker quote at level 0.
	assert.ErrorIs(t, CheckFees(testConfig(), model.AddressInfo{Level: 0}, def, Taker), ErrInsufficientFee)
	assert.NoError(t, CheckFees(testConfig(), model.AddressInfo{Level: 0}, def, Maker))

	def.Fee.VenueAmount = dec("0.09585")
	assert.NoError(t, CheckFees(testConfig(), model.AddressInfo{Level: 0}, def, Taker))

	def.Fee.SettlementAmount = dec("0.09")
	assert.ErrorIs(t, CheckFees(testConfig(), model.AddressInfo{Level: 0}, def, Taker), ErrInsufficientFee)

	unknown := scenarioDefinition()
	unknown.Trade.Sell.Resource = resC
	unknown.Fee.Resource = resC
	assert.ErrorIs(t, CheckFees(testConfig(), model.AddressInfo{}, unknown, Maker), ErrConfig)
}

func TestFeeQuoteTotal(t *testing.T) {
	q := FeeQuote{Settlement: dec("0.10"), Venue: dec("0.05")}
	assert.True(t, q.Total().Equal(dec("0.15")))
	assert.Equal(t, "maker", Maker.String())
	assert.True(t, FeeQuote{}.Total().Equal(decimal.Zero))
}
