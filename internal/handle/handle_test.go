package handle

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func testIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return NewIssuer(privateKey, &privateKey.PublicKey, ttl)
}

func TestIssueAndValidate(t *testing.T) {
	issuer := testIssuer(t, 5*time.Minute)

	h, err := issuer.Issue(42, 7)
	if err != nil {
		t.Fatalf("Failed to issue handle: %v", err)
	}

	if h.DocumentID != 42 {
		t.Errorf("Expected document ID 42, got %d", h.DocumentID)
	}

	claims, err := issuer.Validate(h.Token, 42)
	if err != nil {
		t.Fatalf("Failed to validate handle: %v", err)
	}

	if claims.UserID != 7 {
		t.Errorf("Expected user ID 7, got %d", claims.UserID)
	}
}

func TestValidateRejectsWrongDocument(t *testing.T) {
	issuer := testIssuer(t, 5*time.Minute)

	h, err := issuer.Issue(42, 7)
	if err != nil {
		t.Fatalf("Failed to issue handle: %v", err)
	}

	if _, err := issuer.Validate(h.Token, 43); !errors.Is(err, ErrWrongDocument) {
		t.Errorf("Expected ErrWrongDocument, got %v", err)
	}
}

func TestValidateRejectsExpiredHandle(t *testing.T) {
	issuer := testIssuer(t, -1*time.Minute)

	h, err := issuer.Issue(42, 7)
	if err != nil {
		t.Fatalf("Failed to issue handle: %v", err)
	}

	if _, err := issuer.Validate(h.Token, 42); !errors.Is(err, ErrExpiredHandle) {
		t.Errorf("Expected ErrExpiredHandle, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	issuer := testIssuer(t, 5*time.Minute)

	if _, err := issuer.Validate("not-a-token", 42); err == nil {
		t.Error("Should reject malformed token")
	}
}

func TestHandlesAreNotReusableAcrossIssuers(t *testing.T) {
	issuerA := testIssuer(t, 5*time.Minute)
	issuerB := testIssuer(t, 5*time.Minute)

	h, err := issuerA.Issue(42, 7)
	if err != nil {
		t.Fatalf("Failed to issue handle: %v", err)
	}

	if _, err := issuerB.Validate(h.Token, 42); err == nil {
		t.Error("Handle signed by another key should not validate")
	}
}

func TestEachIssueProducesDistinctToken(t *testing.T) {
	issuer := testIssuer(t, 5*time.Minute)

	h1, err := issuer.Issue(42, 7)
	if err != nil {
		t.Fatalf("Failed to issue first handle: %v", err)
	}
	h2, err := issuer.Issue(42, 7)
	if err != nil {
		t.Fatalf("Failed to issue second handle: %v", err)
	}

	if h1.Token == h2.Token {
		t.Error("Two authorizations for the same document should yield distinct handles")
	}
}
