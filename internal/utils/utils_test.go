package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "hunter22") {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword(hash, "hunter23") {
		t.Fatalf("expected wrong password to fail")
	}
	if VerifyPassword("", "") {
		t.Fatalf("expected empty hash to never match")
	}
}

func TestHashPasswordClampsCost(t *testing.T) {
	hash, err := HashPassword("pw", 99)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d %v", cost, err)
	}
}

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("k", 7, "student", 15)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if until := time.Until(tok.Exp); until < 14*time.Minute || until > 15*time.Minute {
		t.Fatalf("unexpected expiry %s", tok.Exp)
	}
	uid, role, err := ParseAccessToken("k", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uid != 7 || role != "student" {
		t.Fatalf("unexpected identity %d %s", uid, role)
	}
	if _, _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatalf("expected wrong key to fail")
	}
}

func TestParseAccessTokenRejectsForeignClaims(t *testing.T) {
	exp := jwt.NewNumericDate(time.Now().Add(time.Minute))
	for name, claims := range map[string]Claims{
		"other issuer": {Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", Subject: "1", ExpiresAt: exp}},
		"no expiry":    {Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "1"}},
		"bad subject":  {Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "abc", ExpiresAt: exp}},
		"zero subject": {Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "0", ExpiresAt: exp}},
	} {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("%s: sign: %v", name, err)
		}
		if _, _, err := ParseAccessToken("k", raw); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "1", ExpiresAt: exp}}).SignedString([]byte("k"))
	if _, _, err := ParseAccessToken("k", hs512); err == nil {
		t.Fatalf("expected HS512 to be rejected")
	}
}

func TestRandomCode(t *testing.T) {
	code, err := RandomCode(3)
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if len(code) != 3 || strings.ToUpper(code) != code {
		t.Fatalf("unexpected code %q", code)
	}
}
