package password

import (
	"strings"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	h := NewHasher()

	encoded, err := h.Hash("Correct-Horse9")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected hash format: %q", encoded)
	}

	ok, err := h.Verify("Correct-Horse9", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = h.Verify("Wrong-Horse9", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher()

	a, err := h.Hash("Correct-Horse9")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("Correct-Horse9")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password were identical")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	h := NewHasher()

	for _, encoded := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=3,p=2$short",
		"$bcrypt$whatever",
	} {
		if _, err := h.Verify("anything", encoded); err == nil {
			t.Fatalf("Verify(%q) accepted a malformed hash", encoded)
		}
	}
}
