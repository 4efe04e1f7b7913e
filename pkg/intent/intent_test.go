package intent

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/anthic/pkg/crypto"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/manifest"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testManifest(t *testing.T, account ledger.ComponentAddress) ledger.SubintentManifest {
	t.Helper()
	res := ledger.ResourceAddress{NodeID: ledger.NewNodeID(ledger.EntityGlobalFungibleResourceManager, []byte("xUSDC"))}
	b := manifest.NewSubintentBuilder().
		VerifyParent(ledger.AccessRule{0x01}).
		WithdrawFromAccount(account, res, decimal.RequireFromString("1.5")).
		TakeFromWorktop(res, decimal.RequireFromString("1.5"), "sell")
	b.YieldToParent(b.Bucket("sell"))
	m, err := b.DepositEntireWorktop(account).YieldToParent().Build()
	require.NoError(t, err)
	return m
}

func TestComposeHeader(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	sub, err := Compose(ComposeOptions{NetworkID: 2, CurrentEpoch: 100, Expiry: time.Minute}, fixedClock{t0}, testManifest(t, signer.Account()))
	require.NoError(t, err)

	h := sub.Header
	assert.Equal(t, uint8(2), h.NetworkID)
	assert.Equal(t, uint64(100), h.StartEpochInclusive)
	assert.Equal(t, uint64(102), h.EndEpochExclusive)
	assert.Nil(t, h.MinProposerTimestampInclusive)
	require.NotNil(t, h.MaxProposerTimestampExclusive)
	assert.Equal(t, t0.Add(time.Minute).Unix(), *h.MaxProposerTimestampExclusive)
	assert.NotZero(t, h.IntentDiscriminator)
}

func TestComposeRejectsShortExpiry(t *testing.T) {
	_, err := Compose(ComposeOptions{Expiry: 9 * time.Second}, fixedClock{t0}, ledger.SubintentManifest{})
	assert.ErrorIs(t, err, ErrExpiryTooShort)
}

func TestCheckValidity(t *testing.T) {
	sub, err := Compose(ComposeOptions{CurrentEpoch: 10, Expiry: 30 * time.Second, Discriminator: 7}, fixedClock{t0}, ledger.SubintentManifest{})
	require.NoError(t, err)
	h := sub.Header

	assert.NoError(t, h.CheckValidity(t0, 10))
	assert.NoError(t, h.CheckValidity(t0.Add(29*time.Second), 11))
	assert.ErrorIs(t, h.CheckValidity(t0, 12), ErrEpochWindow)
	assert.ErrorIs(t, h.CheckValidity(t0, 9), ErrEpochWindow)
	assert.ErrorIs(t, h.CheckValidity(t0.Add(30*time.Second), 10), ErrExpired)
	assert.Equal(t, t0.Add(30*time.Second).Unix(), h.ExpiresAt().Unix())
}

func TestHashChangesWithDiscriminator(t *testing.T) {
	m := testManifest(t, ledger.ComponentAddress{NodeID: ledger.NewNodeID(ledger.EntityGlobalAccount, []byte("a"))})
	a, err := Compose(ComposeOptions{Expiry: time.Minute, Discriminator: 1}, fixedClock{t0}, m)
	require.NoError(t, err)
	b, err := Compose(ComposeOptions{Expiry: time.Minute, Discriminator: 2}, fixedClock{t0}, m)
	require.NoError(t, err)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)

	again, err := a.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, again)
}

func TestSignEncodeDecodeVerify(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	sub, err := Compose(ComposeOptions{NetworkID: 1, CurrentEpoch: 5, Expiry: time.Minute}, fixedClock{t0}, testManifest(t, signer.Account()))
	require.NoError(t, err)

	signed, err := Sign(sub, signer)
	require.NoError(t, err)

	encoded, err := signed.EncodeHex()
	require.NoError(t, err)
	decoded, err := DecodeHex(encoded[2:])
	require.NoError(t, err)

	want, err := sub.Hash()
	require.NoError(t, err)
	h, accounts, err := decoded.Verify()
	require.NoError(t, err)
	assert.Equal(t, want, h)
	assert.Equal(t, []ledger.ComponentAddress{signer.Account()}, accounts)

	ok, err := decoded.SignedBy(signer.Account())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyDetectsTampering(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	sub, err := Compose(ComposeOptions{Expiry: time.Minute, Discriminator: 3}, fixedClock{t0}, testManifest(t, signer.Account()))
	require.NoError(t, err)
	signed, err := Sign(sub, signer)
	require.NoError(t, err)

	// A different body recovers a different key.
	signed.Subintent.Header.IntentDiscriminator = 4
	ok, err := signed.SignedBy(signer.Account())
	if err == nil {
		assert.False(t, ok)
	}

	signed.Signatures[0] = signed.Signatures[0][:10]
	_, _, err = signed.Verify()
	assert.True(t, errors.Is(err, ErrBadSignature), "got %v", err)
}

func TestSignRequiresSigner(t *testing.T) {
	_, err := Sign(Subintent{})
	assert.ErrorIs(t, err, ErrNoSignature)
	_, _, err = SignedPartialTransaction{}.Verify()
	assert.ErrorIs(t, err, ErrNoSignature)
}

func TestDecodeHexRejectsGarbage(t *testing.T) {
	_, err := DecodeHex("zz")
	assert.Error(t, err)
	_, err = DecodeHex("0x7b7d7d")
	assert.Error(t, err)
}

func TestCancelDigest(t *testing.T) {
	h := Hash{0x01, 0x02}
	d := CancelDigest(h)
	assert.NotEqual(t, h, d)
	assert.Equal(t, d, CancelDigest(h))
	assert.NotEqual(t, d, CancelDigest(Hash{0x01, 0x03}))
}
