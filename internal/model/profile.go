// Package model はドメインモデルを定義する。
package model

import "time"

// ProviderType はプライマリメールの認証手段に由来するプロバイダー種別。
type ProviderType string

const (
	// ProviderGoogle はGoogle OAuth経由で認証されたアカウントを示す。
	ProviderGoogle ProviderType = "google"
	// ProviderEmail はメールリンク経由で認証されたアカウントを示す。
	ProviderEmail ProviderType = "email"
)

// UserProfile はIDプロバイダーのアカウントと1対1で対応するローカルプロフィール。
// ClerkUserID が外部IDプロバイダーの安定したユーザーIDであり、
// user.created / user.updated Webhookイベントで冪等にUPSERTされる。
type UserProfile struct {
	ID           string
	ClerkUserID  string
	Email        string
	FirstName    *string
	LastName     *string
	AvatarURL    *string
	ProviderType *ProviderType
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSignInAt *time.Time
}

// Space はユーザーが保存したルームデザインのプレビューを表す。
// URLは生成済みプレビュー画像の場所を指す。
type Space struct {
	ID            string
	UserProfileID string
	Name          string
	URL           string
	CreatedAt     time.Time
}
