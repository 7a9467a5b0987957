package cryptoutils

import (
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/waas-signing-service/interfaces"
)

// DefaultSignDelay models the wall-clock cost of a remote signing operation.
const DefaultSignDelay = time.Second

// Secp256k1Backend implements interfaces.SigningBackend on the secp256k1 curve.
//
// Signatures are recoverable 65-byte [R || S || V] signatures over the keccak256
// digest of the message, encoded with standard base64. Signing is deterministic
// (RFC 6979) for a given message and key.
type Secp256k1Backend struct {
	// Delay is slept before every signature.
	Delay time.Duration
}

// NewSecp256k1Backend creates a backend that sleeps delay before each signature.
func NewSecp256k1Backend(delay time.Duration) *Secp256k1Backend {
	return &Secp256k1Backend{Delay: delay}
}

// GenerateKey creates a fresh private key using crypto/rand.
func (b *Secp256k1Backend) GenerateKey() (interfaces.SigningKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return crypto.FromECDSA(privateKey), nil
}

// Sign signs message with key. A key that is not a valid secp256k1 scalar
// results in an error wrapping interfaces.ErrSigningFailed.
func (b *Secp256k1Backend) Sign(message []byte, key interfaces.SigningKey) (string, error) {
	privateKey, err := ParsePrivateKey(key)
	if err != nil {
		return "", err
	}

	if b.Delay > 0 {
		time.Sleep(b.Delay)
	}

	sig, err := crypto.Sign(MessageDigest(message), privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", interfaces.ErrSigningFailed, err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// MessageDigest returns the keccak256 hash that is actually signed.
func MessageDigest(message []byte) []byte {
	return crypto.Keccak256(message)
}

// ParsePrivateKey decodes raw key bytes into a secp256k1 private key.
func ParsePrivateKey(key interfaces.SigningKey) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.ToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %w", interfaces.ErrSigningFailed, err)
	}
	return privateKey, nil
}

// PublicKey returns the uncompressed 65-byte public key for a private key.
func PublicKey(key interfaces.SigningKey) ([]byte, error) {
	privateKey, err := ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}
	return crypto.FromECDSAPub(&privateKey.PublicKey), nil
}

// Address returns the Ethereum style address derived from a private key.
func Address(key interfaces.SigningKey) (common.Address, error) {
	privateKey, err := ParsePrivateKey(key)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}

// DecodeSignature decodes a base64 signature produced by Sign.
func DecodeSignature(signature string) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}
	return sig, nil
}

// VerifySignature checks a base64 signature over message against an uncompressed
// or compressed public key.
func VerifySignature(message []byte, signature string, pubkey []byte) (bool, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return false, err
	}
	return crypto.VerifySignature(pubkey, MessageDigest(message), sig[:crypto.RecoveryIDOffset]), nil
}

// RecoverAddress returns the address of the key that produced signature over message.
func RecoverAddress(message []byte, signature string) (common.Address, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	pubkey, err := crypto.SigToPub(MessageDigest(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("could not recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}
