package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testKeyPair はテスト用のRSA鍵ペアとPEM形式の公開鍵を生成する。
func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("RSA鍵の生成に失敗: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("公開鍵のエンコードに失敗: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})

	return key, string(pemBytes)
}

// signToken は指定クレームのRS256トークンを発行する。
func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return signed
}

func TestNewClerkVerifier_InvalidPEM(t *testing.T) {
	_, err := NewClerkVerifier("not a pem key")
	if err == nil {
		t.Fatal("不正なPEMでエラーが返されるべき")
	}
}

// 有効なトークンからsubクレームが取り出せることを検証
func TestClerkVerifier_Verify_ValidToken(t *testing.T) {
	key, pemKey := testKeyPair(t)
	v, err := NewClerkVerifier(pemKey)
	if err != nil {
		t.Fatalf("NewClerkVerifier が失敗: %v", err)
	}

	token := signToken(t, key, jwt.MapClaims{
		"sub": "user_2abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify がエラーを返した: %v", err)
	}
	if got != "user_2abc" {
		t.Errorf("clerkUserID = %q, want user_2abc", got)
	}
}

// 期限切れトークンがErrExpiredTokenで拒否されることを検証
func TestClerkVerifier_Verify_ExpiredToken(t *testing.T) {
	key, pemKey := testKeyPair(t)
	v, _ := NewClerkVerifier(pemKey)

	token := signToken(t, key, jwt.MapClaims{
		"sub": "user_2abc",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

// 別の鍵で署名されたトークンが拒否されることを検証
func TestClerkVerifier_Verify_WrongKey(t *testing.T) {
	_, pemKey := testKeyPair(t)
	otherKey, _ := testKeyPair(t)
	v, _ := NewClerkVerifier(pemKey)

	token := signToken(t, otherKey, jwt.MapClaims{
		"sub": "user_2abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(token); err == nil {
		t.Fatal("別鍵の署名は拒否されるべき")
	}
}

// HS256で署名されたトークンが拒否されることを検証（アルゴリズム混同攻撃対策）
func TestClerkVerifier_Verify_RejectsHMAC(t *testing.T) {
	_, pemKey := testKeyPair(t)
	v, _ := NewClerkVerifier(pemKey)

	hmacToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user_2abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := hmacToken.SignedString([]byte(pemKey))
	if err != nil {
		t.Fatalf("HMACトークンの署名に失敗: %v", err)
	}

	if _, err := v.Verify(signed); err == nil {
		t.Fatal("HS256署名のトークンは拒否されるべき")
	}
}

// expクレームのないトークンが拒否されることを検証
func TestClerkVerifier_Verify_MissingExpiration(t *testing.T) {
	key, pemKey := testKeyPair(t)
	v, _ := NewClerkVerifier(pemKey)

	token := signToken(t, key, jwt.MapClaims{"sub": "user_2abc"})

	if _, err := v.Verify(token); err == nil {
		t.Fatal("expクレームのないトークンは拒否されるべき")
	}
}

// subクレームのないトークンがErrMissingClaimで拒否されることを検証
func TestClerkVerifier_Verify_MissingSub(t *testing.T) {
	key, pemKey := testKeyPair(t)
	v, _ := NewClerkVerifier(pemKey)

	token := signToken(t, key, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Verify(token)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("err = %v, want ErrMissingClaim", err)
	}
}

func TestClerkVerifier_Verify_Garbage(t *testing.T) {
	_, pemKey := testKeyPair(t)
	v, _ := NewClerkVerifier(pemKey)

	if _, err := v.Verify("not.a.token"); err == nil {
		t.Fatal("不正な文字列は拒否されるべき")
	}
}
