package auth

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestSignAndParse(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.Sign("alice", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected subject alice, got %q", claims.Subject)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	m := NewManager("test-secret")

	other, err := NewManager("other-secret").Sign("alice", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(other); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}

	expired, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	forever, err := m.Sign("alice", 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(forever); err != nil {
		t.Fatalf("token without expiry should parse: %v", err)
	}

	none, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "alice"},
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Parse(none); err == nil {
		t.Fatalf("expected alg=none token to fail")
	}

	if _, err := m.Parse(""); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := m.Parse("not.a.jwt"); err == nil {
		t.Fatalf("expected garbage to fail")
	}

	anonymous, err := m.Sign("", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(anonymous); err == nil {
		t.Fatalf("expected token without subject to fail")
	}
}

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"abc":          "abc",
		"   ":          "",
	}
	for in, want := range cases {
		if got := NormalizeToken(in); got != want {
			t.Fatalf("NormalizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}
