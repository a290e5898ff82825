// Package wallet resolves authenticated user identities to custodial wallet
// records, creating a key pair on first contact. Records are append-only:
// this subsystem never updates or deletes them.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	xerrors "ChainPilot/internal/errors"
)

// Record is one custodial wallet. PrivateKeyHex is 0x-prefixed key material
// and must never appear in any model- or user-facing payload.
type Record struct {
	ID            string
	UserIdentity  string
	Address       string
	PrivateKeyHex string
	CreatedAt     int64
}

// Key decodes the record's signing key.
func (r *Record) Key() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(r.PrivateKeyHex, "0x")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeSigning, err, "decode wallet key")
	}
	return key, nil
}

// Store persists wallet records. Create must enforce at most one record per
// user identity, returning a CONFLICT error on a duplicate so concurrent
// first contacts collapse to a single persisted wallet.
type Store interface {
	Find(ctx context.Context, userIdentity string) (*Record, error)
	Create(ctx context.Context, record *Record) error
	Close() error
}

// newKeyMaterial generates a fresh secp256k1 key pair using the runtime's
// cryptographically secure randomness.
func newKeyMaterial() (address, privateKeyHex string, err error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", "", xerrors.Wrap(xerrors.CodeSigning, err, "generate wallet key")
	}
	address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	privateKeyHex = "0x" + hex.EncodeToString(crypto.FromECDSA(key))
	return address, privateKeyHex, nil
}
