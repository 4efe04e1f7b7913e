package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

// SignatureLength is the size of a recoverable secp256k1 signature [R || S || V].
const SignatureLength = 65

// Signer holds a secp256k1 key pair used to sign subintent hashes.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	account    ledger.ComponentAddress
}

// GenerateKey creates a new random secp256k1 key pair
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newSigner(privateKey), nil
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key
// Format: "0x1234..." or "1234..." (64 hex chars)
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newSigner(privateKey), nil
}

func newSigner(privateKey *ecdsa.PrivateKey) *Signer {
	pub := &privateKey.PublicKey
	return &Signer{
		privateKey: privateKey,
		publicKey:  pub,
		account:    AccountFromPublicKey(crypto.CompressPubkey(pub)),
	}
}

// Account returns the preallocated secp256k1 account controlled by this key
func (s *Signer) Account() ledger.ComponentAddress {
	return s.account
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix)
// WARNING: Keep this secret! Never expose to users or logs
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// PublicKey returns the 33-byte compressed public key
func (s *Signer) PublicKey() []byte {
	return crypto.CompressPubkey(s.publicKey)
}

func (s *Signer) PublicKeyHex() string {
	return hexutil.Encode(s.PublicKey())
}

// Sign signs a 32-byte hash and returns [R || S || V] with V in {0, 1}
func (s *Signer) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	signature, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	return signature, nil
}

// RecoverPublicKey recovers the compressed public key that produced signature over hash
func RecoverPublicKey(hash []byte, signature []byte) ([]byte, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("invalid hash length: %d", len(hash))
	}

	pub, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.CompressPubkey(pub), nil
}

// RecoverAccount recovers the preallocated account of the key that signed hash
func RecoverAccount(hash []byte, signature []byte) (ledger.ComponentAddress, error) {
	pub, err := RecoverPublicKey(hash, signature)
	if err != nil {
		return ledger.ComponentAddress{}, err
	}
	return AccountFromPublicKey(pub), nil
}

// VerifySignature checks signature over hash against a compressed public key.
// Malleable (high-S) signatures are rejected.
func VerifySignature(publicKey []byte, hash []byte, signature []byte) bool {
	if len(signature) != SignatureLength || len(hash) != 32 {
		return false
	}
	return crypto.VerifySignature(publicKey, hash, signature[:64])
}

// GenerateNonce generates a cryptographically secure random nonce
// Used as the intent discriminator so identical subintents hash differently
func GenerateNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
