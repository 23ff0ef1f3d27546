package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

func TestSessionMemory(t *testing.T) {
	store := NewSessionMemory()
	ctx := context.Background()

	got, err := store.Get(ctx, "k")
	if err != nil || got != nil {
		t.Fatalf("expected empty store, got %v, %v", got, err)
	}

	session := &models.Session{
		AccessToken: "at",
		User:        &models.User{ID: "u1", Profile: &models.Profile{ID: "u1"}},
	}
	if err := store.Set(ctx, "k", session); err != nil {
		t.Fatal(err)
	}

	session.AccessToken = "mutated"

	got, _ = store.Get(ctx, "k")
	if got.AccessToken != "at" {
		t.Error("store must keep its own copy")
	}
	if got.User.Profile != nil {
		t.Error("profiles must not be stored")
	}

	got.AccessToken = "mutated again"
	again, _ := store.Get(ctx, "k")
	if again.AccessToken != "at" {
		t.Error("Get must return a copy")
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get(ctx, "k"); got != nil {
		t.Error("expected session to be deleted")
	}
}

func TestSessionMemory_Concurrent(t *testing.T) {
	store := NewSessionMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Set(ctx, "k", &models.Session{AccessToken: "at"})
			store.Get(ctx, "k")
			store.Delete(ctx, "k")
		}()
	}
	wg.Wait()
}
