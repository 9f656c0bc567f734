package store_test

import (
	"context"
	"testing"
	"time"

	"studio-management-api/internal/docstore"
	"studio-management-api/internal/store"
)

func setup(t *testing.T) *store.Store {
	t.Helper()
	return store.New(docstore.NewMemory())
}

func TestRefreshTokenLifecycle(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	id, err := st.CreateRefreshToken(ctx, "user-1", "hash-1", expiry)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rt, err := st.GetRefreshTokenByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rt.ID != id || rt.UserID != "user-1" || rt.Revoked {
		t.Errorf("unexpected token: %+v", rt)
	}

	if _, err := st.GetRefreshTokenByHash(ctx, "no-such-hash"); err != docstore.ErrNoDocuments {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestRotateRefreshToken(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	oldID, err := st.CreateRefreshToken(ctx, "user-1", "hash-old", expiry)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	newID, err := st.RotateRefreshToken(ctx, oldID, "user-1", "hash-new", expiry)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	old, err := st.GetRefreshTokenByHash(ctx, "hash-old")
	if err != nil {
		t.Fatalf("lookup old: %v", err)
	}
	if !old.Revoked {
		t.Error("rotated token not revoked")
	}
	if old.ReplacedBy == nil || *old.ReplacedBy != newID {
		t.Error("rotated token not linked to its replacement")
	}

	fresh, err := st.GetRefreshTokenByHash(ctx, "hash-new")
	if err != nil {
		t.Fatalf("lookup new: %v", err)
	}
	if fresh.Revoked {
		t.Error("fresh token already revoked")
	}
}

func TestRevokeAllRefreshTokens(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	for _, h := range []string{"h1", "h2"} {
		if _, err := st.CreateRefreshToken(ctx, "user-1", h, expiry); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := st.CreateRefreshToken(ctx, "user-2", "h3", expiry); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := st.RevokeAllRefreshTokens(ctx, "user-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	for _, h := range []string{"h1", "h2"} {
		rt, err := st.GetRefreshTokenByHash(ctx, h)
		if err != nil {
			t.Fatalf("lookup %s: %v", h, err)
		}
		if !rt.Revoked {
			t.Errorf("%s not revoked", h)
		}
	}
	other, err := st.GetRefreshTokenByHash(ctx, "h3")
	if err != nil {
		t.Fatalf("lookup h3: %v", err)
	}
	if other.Revoked {
		t.Error("another user's token was revoked")
	}
}

func TestDeleteUserTokens(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if _, err := st.CreateRefreshToken(ctx, "user-1", "h1", expiry); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.DeleteUserTokens(ctx, "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetRefreshTokenByHash(ctx, "h1"); err != docstore.ErrNoDocuments {
		t.Errorf("token survived user deletion: %v", err)
	}
}
