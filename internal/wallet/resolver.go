package wallet

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/pkg/logger"
)

// Resolver maps user identities to custodial wallets, creating one lazily on
// first contact. Resolution is idempotent for known identities.
type Resolver struct {
	store Store
	log   *slog.Logger
}

// NewResolver wires a resolver over a wallet store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, log: logger.Named("wallet")}
}

// Resolve returns the wallet for userIdentity. An empty identity fails with
// NO_ACTIVE_SESSION before any chain call can be attempted.
func (r *Resolver) Resolve(ctx context.Context, userIdentity string) (*Record, error) {
	identity := strings.TrimSpace(userIdentity)
	if identity == "" {
		return nil, xerrors.New(xerrors.CodeNoActiveSession, "no authenticated session found, connect a wallet first")
	}

	record, err := r.store.Find(ctx, identity)
	if err == nil {
		return record, nil
	}
	if !xerrors.HasCode(err, xerrors.CodeNotFound) {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "look up wallet")
	}

	address, keyHex, err := newKeyMaterial()
	if err != nil {
		return nil, err
	}
	record = &Record{
		ID:            uuid.NewString(),
		UserIdentity:  identity,
		Address:       address,
		PrivateKeyHex: keyHex,
		CreatedAt:     time.Now().Unix(),
	}
	if err := r.store.Create(ctx, record); err != nil {
		if xerrors.HasCode(err, xerrors.CodeConflict) {
			// Lost a first-contact race; the winner's record is the wallet.
			return r.store.Find(ctx, identity)
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "persist wallet")
	}

	r.log.Info("wallet created", slog.String("identity", identity), slog.String("address", record.Address))
	logger.Audit().Info("wallet created",
		slog.String("identity", identity),
		slog.String("address", record.Address),
	)
	return record, nil
}

// Lookup returns the wallet for an identity without creating one.
func (r *Resolver) Lookup(ctx context.Context, userIdentity string) (*Record, error) {
	identity := strings.TrimSpace(userIdentity)
	if identity == "" {
		return nil, xerrors.New(xerrors.CodeNoActiveSession, "no authenticated session found, connect a wallet first")
	}
	record, err := r.store.Find(ctx, identity)
	if err != nil {
		if xerrors.HasCode(err, xerrors.CodeNotFound) {
			return nil, xerrors.New(xerrors.CodeNoWalletFound, "no wallet found, generate one first")
		}
		return nil, err
	}
	return record, nil
}
