package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/uhyunpark/anthic/pkg/crypto"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/util"
)

const (
	// EpochWindow is how many epochs a composed subintent stays valid for.
	EpochWindow = 2
	// MinExpiry is the shortest lifetime the venue accepts.
	MinExpiry = 10 * time.Second

	hashDomain   = "anthic/subintent/v1"
	cancelDomain = "anthic/cancel/v1"
)

var (
	ErrExpiryTooShort = errors.New("subintent expiry below minimum")
	ErrExpired        = errors.New("subintent expired")
	ErrEpochWindow    = errors.New("current epoch outside subintent window")
	ErrNoSignature    = errors.New("subintent is not signed")
	ErrBadSignature   = errors.New("invalid subintent signature")
)

// Header bounds where and when a subintent may commit.
type Header struct {
	NetworkID           uint8  `json:"network_id"`
	StartEpochInclusive uint64 `json:"start_epoch_inclusive"`
	EndEpochExclusive   uint64 `json:"end_epoch_exclusive"`
	// Unix seconds; nil means unbounded.
	MinProposerTimestampInclusive *int64 `json:"min_proposer_timestamp_inclusive,omitempty"`
	MaxProposerTimestampExclusive *int64 `json:"max_proposer_timestamp_exclusive,omitempty"`
	IntentDiscriminator           uint64 `json:"intent_discriminator"`
}

// ExpiresAt returns the max proposer timestamp, or the zero time if unbounded.
func (h Header) ExpiresAt() time.Time {
	if h.MaxProposerTimestampExclusive == nil {
		return time.Time{}
	}
	return time.Unix(*h.MaxProposerTimestampExclusive, 0)
}

// CheckValidity reports whether the subintent could still commit at now in epoch.
func (h Header) CheckValidity(now time.Time, epoch uint64) error {
	if epoch < h.StartEpochInclusive || epoch >= h.EndEpochExclusive {
		return fmt.Errorf("%w: epoch %d not in [%d, %d)", ErrEpochWindow, epoch, h.StartEpochInclusive, h.EndEpochExclusive)
	}
	if h.MaxProposerTimestampExclusive != nil && now.Unix() >= *h.MaxProposerTimestampExclusive {
		return fmt.Errorf("%w at %s", ErrExpired, h.ExpiresAt().UTC().Format(time.RFC3339))
	}
	if h.MinProposerTimestampInclusive != nil && now.Unix() < *h.MinProposerTimestampInclusive {
		return fmt.Errorf("subintent not valid before %d", *h.MinProposerTimestampInclusive)
	}
	return nil
}

// Subintent is a partial transaction that commits only inside a parent.
type Subintent struct {
	Header   Header                   `json:"header"`
	Message  string                   `json:"message,omitempty"`
	Manifest ledger.SubintentManifest `json:"manifest"`
}

// Hash identifies a subintent and is what its signers sign.
type Hash [32]byte

func (h Hash) String() string { return hexutil.Encode(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	raw, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid subintent hash: %w", err)
	}
	if len(raw) != len(h) {
		return fmt.Errorf("subintent hash must be %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return nil
}

// Hash is keccak256 over a domain tag and the canonical JSON encoding.
func (s Subintent) Hash() (Hash, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return Hash{}, fmt.Errorf("subintent encode failed: %w", err)
	}
	return Hash(crypto.Keccak256([]byte(hashDomain), body)), nil
}

// ComposeOptions describes the header of a new subintent.
type ComposeOptions struct {
	NetworkID    uint8
	CurrentEpoch uint64
	Expiry       time.Duration
	// Discriminator is drawn at random when zero.
	Discriminator uint64
}

// Compose wraps a manifest into a subintent valid for EpochWindow epochs from
// the current one, expiring Expiry after clock.Now().
func Compose(opts ComposeOptions, clock util.Clock, m ledger.SubintentManifest) (Subintent, error) {
	if opts.Expiry < MinExpiry {
		return Subintent{}, fmt.Errorf("%w: %s < %s", ErrExpiryTooShort, opts.Expiry, MinExpiry)
	}
	disc := opts.Discriminator
	if disc == 0 {
		n, err := crypto.GenerateNonce()
		if err != nil {
			return Subintent{}, err
		}
		disc = n
	}
	expiry := clock.Now().Add(opts.Expiry).Unix()
	return Subintent{
		Header: Header{
			NetworkID:                     opts.NetworkID,
			StartEpochInclusive:           opts.CurrentEpoch,
			EndEpochExclusive:             opts.CurrentEpoch + EpochWindow,
			MaxProposerTimestampExclusive: &expiry,
			IntentDiscriminator:           disc,
		},
		Manifest: m,
	}, nil
}

// CancelDigest is what an order's account signs to withdraw the subintent
// from a venue before it expires.
func CancelDigest(h Hash) Hash {
	return Hash(crypto.Keccak256([]byte(cancelDomain), h[:]))
}

// SignedPartialTransaction is a subintent with its signatures, the unit
// submitted to the venue.
type SignedPartialTransaction struct {
	Subintent  Subintent       `json:"subintent"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

// Sign hashes sub and signs it with each signer.
func Sign(sub Subintent, signers ...*crypto.Signer) (SignedPartialTransaction, error) {
	if len(signers) == 0 {
		return SignedPartialTransaction{}, ErrNoSignature
	}
	h, err := sub.Hash()
	if err != nil {
		return SignedPartialTransaction{}, err
	}
	sigs := make([]hexutil.Bytes, 0, len(signers))
	for _, s := range signers {
		sig, err := s.Sign(h[:])
		if err != nil {
			return SignedPartialTransaction{}, err
		}
		sigs = append(sigs, sig)
	}
	return SignedPartialTransaction{Subintent: sub, Signatures: sigs}, nil
}

// Verify recomputes the subintent hash and recovers the signing accounts,
// in signature order.
func (t SignedPartialTransaction) Verify() (Hash, []ledger.ComponentAddress, error) {
	if len(t.Signatures) == 0 {
		return Hash{}, nil, ErrNoSignature
	}
	h, err := t.Subintent.Hash()
	if err != nil {
		return Hash{}, nil, err
	}
	accounts := make([]ledger.ComponentAddress, 0, len(t.Signatures))
	for i, sig := range t.Signatures {
		pub, err := crypto.RecoverPublicKey(h[:], sig)
		if err != nil {
			return Hash{}, nil, fmt.Errorf("%w: signature %d: %v", ErrBadSignature, i, err)
		}
		if !crypto.VerifySignature(pub, h[:], sig) {
			return Hash{}, nil, fmt.Errorf("%w: signature %d", ErrBadSignature, i)
		}
		accounts = append(accounts, crypto.AccountFromPublicKey(pub))
	}
	return h, accounts, nil
}

// SignedBy reports whether account is among the recovered signers.
func (t SignedPartialTransaction) SignedBy(account ledger.ComponentAddress) (bool, error) {
	_, accounts, err := t.Verify()
	if err != nil {
		return false, err
	}
	for _, a := range accounts {
		if a == account {
			return true, nil
		}
	}
	return false, nil
}

// EncodeHex renders the transaction for submission.
func (t SignedPartialTransaction) EncodeHex() (string, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("signed partial transaction encode failed: %w", err)
	}
	return hexutil.Encode(body), nil
}

// DecodeHex parses EncodeHex output; the 0x prefix is optional.
func DecodeHex(s string) (SignedPartialTransaction, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	body, err := hexutil.Decode(s)
	if err != nil {
		return SignedPartialTransaction{}, fmt.Errorf("invalid signed partial transaction hex: %w", err)
	}
	var t SignedPartialTransaction
	if err := json.Unmarshal(body, &t); err != nil {
		return SignedPartialTransaction{}, fmt.Errorf("signed partial transaction decode failed: %w", err)
	}
	return t, nil
}
