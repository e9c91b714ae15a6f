// Package auth はClerkセッショントークンの検証機能を提供する。
// フロントエンドが送信するセッショントークン（RS256署名のJWT）を
// Clerkインスタンスの公開鍵で検証し、ユーザーIDを取り出す。
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// トークン検証エラー
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenVerifier はセッショントークン検証のインターフェース。
type TokenVerifier interface {
	// Verify はトークンを検証してClerkユーザーID（subクレーム）を返す。
	Verify(tokenString string) (clerkUserID string, err error)
}

// ClerkVerifier はTokenVerifierの実装。
// Clerkが発行するRS256署名のセッショントークンをPEM公開鍵で検証する。
type ClerkVerifier struct {
	publicKey *rsa.PublicKey
}

// NewClerkVerifier はPEM形式の公開鍵からClerkVerifierを生成する。
// 鍵のパースに失敗した場合はエラーを返す。
func NewClerkVerifier(pemPublicKey string) (*ClerkVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemPublicKey))
	if err != nil {
		return nil, fmt.Errorf("PEM公開鍵のパースに失敗しました: %w", err)
	}
	return &ClerkVerifier{publicKey: key}, nil
}

// Verify はトークンの署名と有効期限を検証し、subクレームを返す。
func (v *ClerkVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// 署名方式がRS256であることを検証
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// compile-time interface check
var _ TokenVerifier = (*ClerkVerifier)(nil)
