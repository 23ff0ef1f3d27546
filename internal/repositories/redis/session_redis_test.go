package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSessionRedis_RoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewSessionRedis(client, time.Hour)
	ctx := context.Background()

	session := &models.Session{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    1_900_000_000,
		User: &models.User{
			ID:      "u1",
			Email:   "a@x.com",
			Profile: &models.Profile{ID: "u1", Role: models.RoleAdmin},
		},
	}

	if err := store.Set(ctx, "abc", session); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !mr.Exists("session:abc") {
		t.Fatal("expected key session:abc")
	}
	if ttl := mr.TTL("session:abc"); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}

	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessToken != "at" || got.RefreshToken != "rt" || got.User.ID != "u1" {
		t.Errorf("unexpected session %+v", got)
	}
	if got.User.Profile != nil {
		t.Error("profiles must not be stored with the session")
	}
}

func TestSessionRedis_MissingKey(t *testing.T) {
	_, client := setupRedis(t)
	store := NewSessionRedis(client, time.Hour)

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing key should not be an error: %v", err)
	}
	if got != nil {
		t.Error("expected nil session")
	}
}

func TestSessionRedis_Expiry(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewSessionRedis(client, time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, "abc", &models.Session{AccessToken: "at"}); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "abc")
	if err != nil || got != nil {
		t.Errorf("expected expired session to be gone, got %v, %v", got, err)
	}
}

func TestSessionRedis_DeleteAndNilSet(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewSessionRedis(client, 0)
	ctx := context.Background()

	store.Set(ctx, "a", &models.Session{AccessToken: "1"})
	store.Set(ctx, "b", &models.Session{AccessToken: "2"})

	if ttl := mr.TTL("session:a"); ttl != 7*24*time.Hour {
		t.Errorf("zero ttl should fall back to the default, got %v", ttl)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists("session:a") {
		t.Error("session a should be deleted")
	}

	if err := store.Set(ctx, "b", nil); err != nil {
		t.Fatalf("Set(nil) failed: %v", err)
	}
	if mr.Exists("session:b") {
		t.Error("setting nil should delete the session")
	}
}

func TestSessionRedis_ServerDown(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewSessionRedis(client, time.Hour)
	mr.Close()

	if _, err := store.Get(context.Background(), "abc"); err == nil {
		t.Error("expected an error when redis is unreachable")
	}
}
