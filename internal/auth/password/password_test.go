package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	if _, err := Hash("short"); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	hashed, err := Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := Compare(hashed, "correct-horse"); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if err := Compare(hashed, "wrong-horse"); err == nil {
		t.Fatal("expected mismatch")
	}
}

func TestCompareDummyUsesDefaultCost(t *testing.T) {
	CompareDummy("anything")
	cost, err := bcrypt.Cost(dummyHash)
	if err != nil {
		t.Fatalf("dummy hash not initialized: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected cost %d, got %d", bcrypt.DefaultCost, cost)
	}
	if bcrypt.CompareHashAndPassword(dummyHash, []byte("anything")) == nil {
		t.Fatal("dummy hash must never match user input")
	}
}
