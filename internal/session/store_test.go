package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"

	xerrors "ChainPilot/internal/errors"
)

func TestMemoryStoreBindAndLookup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Lookup(ctx, "chat-1"); !xerrors.HasCode(err, xerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND before binding, got %v", err)
	}
	if err := store.Bind(ctx, "chat-1", "thread_abc"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := store.Lookup(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "thread_abc" {
		t.Fatalf("unexpected binding %q", got)
	}
	if err := store.Bind(ctx, "chat-1", "thread_other"); !xerrors.HasCode(err, xerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT on rebind, got %v", err)
	}
}

func TestRedisStoreBindAndLookup(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	store, err := NewRedisStore(ctx, RedisConfig{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	if _, err := store.Lookup(ctx, "chat-1"); !xerrors.HasCode(err, xerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND before binding, got %v", err)
	}
	if err := store.Bind(ctx, "chat-1", "thread_abc"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := store.Lookup(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "thread_abc" {
		t.Fatalf("unexpected binding %q", got)
	}
	if err := store.Bind(ctx, "chat-1", "thread_other"); !xerrors.HasCode(err, xerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT on rebind, got %v", err)
	}
}

func TestRegistryCreatesOnFirstUse(t *testing.T) {
	registry := NewRegistry(NewMemoryStore())
	ctx := context.Background()

	created := 0
	create := func(context.Context) (string, error) {
		created++
		return fmt.Sprintf("thread_%d", created), nil
	}

	first, err := registry.Resolve(ctx, "chat-1", create)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := registry.Resolve(ctx, "chat-1", create)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if first != second {
		t.Fatalf("thread changed between turns: %s vs %s", first, second)
	}
	if created != 1 {
		t.Fatalf("expected one provisioned thread, got %d", created)
	}
}

func TestRegistryRaceConvergesOnWinner(t *testing.T) {
	store := NewMemoryStore()
	registry := NewRegistry(store)
	ctx := context.Background()

	// Simulate losing the bind race by pre-binding during create.
	create := func(context.Context) (string, error) {
		if err := store.Bind(ctx, "chat-1", "thread_winner"); err != nil {
			return "", err
		}
		return "thread_loser", nil
	}

	got, err := registry.Resolve(ctx, "chat-1", create)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "thread_winner" {
		t.Fatalf("expected winner's thread, got %q", got)
	}
}
