package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestSessionCache(t *testing.T) {
	cache := newSessionCache()
	user := User{ID: 1, UUID: uuid.New(), Email: "patient@clinic.com", Role: PatientRole, Active: true}

	if _, found := cache.get(user.UUID); found {
		t.Error("an empty cache should not resolve a session")
	}

	cache.put(user)
	cached, found := cache.get(user.UUID)
	if !found {
		t.Fatal("the session should be cached after put")
	}
	if cached.Email != user.Email {
		t.Errorf("cached session is incorrect, got %s, want %s", cached.Email, user.Email)
	}

	cache.invalidate(user.UUID)
	if _, found = cache.get(user.UUID); found {
		t.Error("an invalidated session should not be resolved")
	}
}
