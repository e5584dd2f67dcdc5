package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestVerifier はテスト用のJWKSサーバーとVerifierを生成する。
func newTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": "test-key",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	verifier, err := NewVerifier("https://test.issuer.example", server.URL)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}
	return verifier, key
}

// signToken は指定クレームでRS256署名されたトークン文字列を返す。
func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// TestNewVerifier_EmptyIssuer はissuer未設定時のエラーを検証する。
func TestNewVerifier_EmptyIssuer(t *testing.T) {
	if _, err := NewVerifier("", ""); err == nil {
		t.Fatal("expected error for empty issuer")
	}
}

// TestVerify_ValidToken は正しく署名されたトークンからクレームが抽出されることを検証する。
func TestVerify_ValidToken(t *testing.T) {
	verifier, key := newTestVerifier(t)

	tokenString := signToken(t, key, jwt.MapClaims{
		"sub": "user_abc123",
		"iss": "https://test.issuer.example",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	claims, err := verifier.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "user_abc123" {
		t.Errorf("Subject = %q, want user_abc123", claims.Subject)
	}
	if claims.Issuer != "https://test.issuer.example" {
		t.Errorf("Issuer = %q, want https://test.issuer.example", claims.Issuer)
	}
}

// TestVerify_WrongKey は別の鍵で署名されたトークンの拒否を検証する。
func TestVerify_WrongKey(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	badKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	tokenString := signToken(t, badKey, jwt.MapClaims{
		"sub": "user_abc123",
		"iss": "https://test.issuer.example",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.Verify(tokenString); err == nil {
		t.Fatal("expected error for token signed with wrong key")
	}
}

// TestVerify_ExpiredToken は期限切れトークンの拒否を検証する。
func TestVerify_ExpiredToken(t *testing.T) {
	verifier, key := newTestVerifier(t)

	tokenString := signToken(t, key, jwt.MapClaims{
		"sub": "user_abc123",
		"iss": "https://test.issuer.example",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := verifier.Verify(tokenString); err == nil {
		t.Fatal("expected error for expired token")
	}
}

// TestVerify_WrongIssuer はissuer不一致トークンの拒否を検証する。
func TestVerify_WrongIssuer(t *testing.T) {
	verifier, key := newTestVerifier(t)

	tokenString := signToken(t, key, jwt.MapClaims{
		"sub": "user_abc123",
		"iss": "https://other.issuer.example",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.Verify(tokenString); err == nil {
		t.Fatal("expected error for wrong issuer")
	}
}

// TestVerify_MissingSubject はsub欠落トークンの拒否を検証する。
func TestVerify_MissingSubject(t *testing.T) {
	verifier, key := newTestVerifier(t)

	tokenString := signToken(t, key, jwt.MapClaims{
		"iss": "https://test.issuer.example",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.Verify(tokenString); err == nil {
		t.Fatal("expected error for token without sub")
	}
}

// TestVerify_Garbage はJWTですらない文字列の拒否を検証する。
func TestVerify_Garbage(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	if _, err := verifier.Verify("not-a-jwt"); err == nil {
		t.Fatal("expected error for garbage token")
	}
}
