package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/anthic/pkg/crypto"
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/subintent"
	"github.com/uhyunpark/anthic/pkg/util"
)

func TestInspect(t *testing.T) {
	venue := model.DevnetVenue()
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	sell := subintent.TokenAmount{Symbol: "xwBTC", Amount: decimal.RequireFromString("0.5")}
	buy := subintent.TokenAmount{Symbol: "xUSDC", Amount: decimal.RequireFromString("30000")}
	m, err := subintent.NewBuilder(venue.AnthicConfig()).
		AddLimitOrder(signer.Account(), sell, buy, decimal.RequireFromString("0.000002"), decimal.RequireFromString("0.0005")).
		Build()
	require.NoError(t, err)
	sub, err := intent.Compose(intent.ComposeOptions{NetworkID: venue.NetworkID, CurrentEpoch: 10, Expiry: time.Minute}, util.RealClock{}, m)
	require.NoError(t, err)
	tx, err := intent.Sign(sub, signer)
	require.NoError(t, err)
	hex, err := tx.EncodeHex()
	require.NoError(t, err)

	r, err := inspect(hex, venue)
	require.NoError(t, err)
	assert.Empty(t, r.Rejection)
	assert.Equal(t, []string{signer.Account().String()}, r.Signers)
	assert.Equal(t, [2]uint64{10, 12}, r.Epochs)
	assert.Len(t, r.Manifest, len(m.Instructions))
	require.NotNil(t, r.Order)
	assert.Equal(t, "xwBTC", r.SellSymbol)
	assert.Equal(t, "xUSDC", r.BuySymbol)
	assert.Nil(t, r.Instamint)
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := inspect("0x7b7d", model.DevnetVenue())
	assert.Error(t, err)
}
