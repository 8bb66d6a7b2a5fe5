package walletsig

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Scheme identifies how a wallet address is encoded and how its signatures are checked.
type Scheme string

const (
	SchemeUnknown  Scheme = "unknown"
	SchemeSolana   Scheme = "solana"   // base58 ed25519 public key, detached signature
	SchemeEthereum Scheme = "ethereum" // 0x-prefixed address, EIP-191 personal_sign
)

// ethSignatureSize is r || s || v.
const ethSignatureSize = 65

var (
	// ErrInvalidAddress means the address cannot be interpreted as a public key.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrInvalidSignature covers both malformed signatures and cryptographic mismatch.
	ErrInvalidSignature = errors.New("invalid signature")
)

// DetectScheme infers the wallet scheme from the shape of the address.
func DetectScheme(address string) Scheme {
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		if common.IsHexAddress(address) {
			return SchemeEthereum
		}
		return SchemeUnknown
	}
	if _, err := Base58ToPublicKey(address); err == nil {
		return SchemeSolana
	}
	return SchemeUnknown
}

// Verify checks a detached signature over message against the claimed address.
// It returns nil only when the signature is well formed and was produced by the
// key behind address.
func Verify(address string, message, signature []byte) error {
	switch DetectScheme(address) {
	case SchemeSolana:
		return verifySolana(address, message, signature)
	case SchemeEthereum:
		return verifyEthereum(address, message, signature)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidSignature, ErrInvalidAddress)
	}
}

func verifySolana(address string, message, signature []byte) error {
	pubKey, err := Base58ToPublicKey(address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidSignature, len(signature), ed25519.SignatureSize)
	}
	if !ed25519.Verify(pubKey, message, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func verifyEthereum(address string, message, signature []byte) error {
	if len(signature) != ethSignatureSize {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidSignature, len(signature), ethSignatureSize)
	}
	sig := make([]byte, ethSignatureSize)
	copy(sig, signature)
	// Wallets emit v as 27/28; recovery wants 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, signature[64])
	}
	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return ErrInvalidSignature
	}
	return nil
}

// Base58ToPublicKey decodes a base58-encoded Solana address to an Ed25519 public key.
func Base58ToPublicKey(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: base58 decode: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key length %d, want %d", ErrInvalidAddress, len(decoded), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(decoded), nil
}

// PublicKeyToBase58 encodes an Ed25519 public key as a Solana address.
func PublicKeyToBase58(pubKey ed25519.PublicKey) string {
	return base58.Encode(pubKey)
}
