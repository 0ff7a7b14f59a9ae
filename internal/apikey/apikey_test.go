package apikey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/storage"
)

// hookStore 在下一次 Get 读到数据之后执行一次 onGet，用来把并发写插到读与写之间
type hookStore struct {
	storage.DocumentStore
	onGet func()
}

func (s *hookStore) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	doc, err := s.DocumentStore.Get(ctx, collection, id)
	if hook := s.onGet; hook != nil {
		s.onGet = nil
		hook()
	}
	return doc, err
}

func newTestManager() *Manager {
	m := NewManager(storage.NewMemoryStore())
	m.now = func() time.Time { return time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC) }
	return m
}

func TestGenerateDefaults(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	k, err := m.Generate(ctx, "owner", "dashboard")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if k.Key == "" || len(k.Permissions) != 1 || k.Permissions[0] != domain.PermRead {
		t.Fatalf("unexpected key: %+v", k)
	}
	if k.Tier != "" || k.EffectiveTier() != domain.DefaultTier || k.LastUsed != nil {
		t.Fatalf("new key should have no tier and no last_used: %+v", k)
	}

	admin, _ := m.Generate(ctx, "owner", "ops", domain.PermRead, domain.PermAdmin)
	if !admin.HasPermission(domain.PermAdmin) {
		t.Fatalf("admin permission lost: %+v", admin)
	}
	if admin.Key == k.Key {
		t.Fatalf("keys must be unique")
	}
}

func TestValidateUpdatesLastUsed(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	k, _ := m.Generate(ctx, "owner", "n")

	got, err := m.Validate(ctx, k.Key)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.LastUsed == nil || !got.LastUsed.Equal(m.now()) {
		t.Fatalf("last_used not set: %+v", got)
	}
	stored, _ := m.get(ctx, k.Key)
	if stored.LastUsed == nil {
		t.Fatalf("last_used not persisted")
	}

	if _, err := m.Validate(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Validate(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty key should be not found")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	k, _ := m.Generate(ctx, "owner", "n")

	if err := m.Revoke(ctx, k.Key); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := m.Revoke(ctx, k.Key); err != nil {
		t.Fatalf("second revoke should not fail: %v", err)
	}
	if _, err := m.Validate(ctx, k.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked key still valid")
	}
}

func TestSetTierAndList(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	k, _ := m.Generate(ctx, "alice", "a")
	_, _ = m.Generate(ctx, "alice", "b")
	_, _ = m.Generate(ctx, "bob", "c")

	updated, err := m.SetTier(ctx, k.Key, "premium")
	if err != nil || updated.Tier != "premium" {
		t.Fatalf("set tier = %+v, %v", updated, err)
	}
	if v, _ := m.Validate(ctx, k.Key); v.EffectiveTier() != "premium" {
		t.Fatalf("tier not persisted: %+v", v)
	}
	if _, err := m.SetTier(ctx, "missing", "free"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	keys, err := m.ListByOwner(ctx, "alice")
	if err != nil || len(keys) != 2 {
		t.Fatalf("list = %d, %v", len(keys), err)
	}
}

func TestRevokeBetweenReadAndTouchStaysRevoked(t *testing.T) {
	store := &hookStore{DocumentStore: storage.NewMemoryStore()}
	m := NewManager(store)
	ctx := context.Background()
	k, _ := m.Generate(ctx, "owner", "n")

	store.onGet = func() {
		if err := m.Revoke(ctx, k.Key); err != nil {
			t.Errorf("revoke: %v", err)
		}
	}
	if _, err := m.Validate(ctx, k.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("validate racing revoke = %v, want ErrNotFound", err)
	}
	if _, err := m.Validate(ctx, k.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked key came back: %v", err)
	}
	if _, err := store.DocumentStore.Get(ctx, collection, k.Key); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("revoked key was written back to the store")
	}
}

func TestTierChangeBetweenReadAndTouchIsKept(t *testing.T) {
	store := &hookStore{DocumentStore: storage.NewMemoryStore()}
	m := NewManager(store)
	ctx := context.Background()
	k, _ := m.Generate(ctx, "owner", "n")

	store.onGet = func() {
		if _, err := m.SetTier(ctx, k.Key, "premium"); err != nil {
			t.Errorf("set tier: %v", err)
		}
	}
	if _, err := m.Validate(ctx, k.Key); err != nil {
		t.Fatalf("validate: %v", err)
	}
	stored, err := m.get(ctx, k.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Tier != "premium" || stored.LastUsed == nil {
		t.Fatalf("tier or last_used lost: %+v", stored)
	}
}
