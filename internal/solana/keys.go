package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLen is the byte length of a Solana account address.
const PubkeyLen = 32

// SignatureLen is the byte length of a transaction signature.
const SignatureLen = 64

// DecodePubkey decodes a base58 account address and verifies its length.
func DecodePubkey(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLen {
		return nil, fmt.Errorf("pubkey %q: expected %d bytes, got %d", s, PubkeyLen, len(raw))
	}
	return raw, nil
}

// DecodeSignature decodes a base58 transaction signature and verifies its length.
func DecodeSignature(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != SignatureLen {
		return nil, fmt.Errorf("signature: expected %d bytes, got %d", SignatureLen, len(raw))
	}
	return raw, nil
}

// IsOnCurve reports whether a 32-byte key is a valid edwards25519 point.
// Wallet keys are on the curve; program-derived addresses are not.
func IsOnCurve(point []byte) bool {
	if len(point) != PubkeyLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
