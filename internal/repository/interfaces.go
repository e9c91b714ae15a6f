// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/roomstudio/internal/model"
)

// ProfileRepository はユーザープロフィールの永続化インターフェース。
// すべての操作は外部IDプロバイダーのユーザーID（clerk_user_id）をキーとする。
type ProfileRepository interface {
	// Upsert はプロフィールをclerk_user_idをキーに冪等にUPSERTする。
	// 既存行がある場合、created_atは変更せず、last_sign_in_atは
	// 新しい値が供給されたときのみ上書きする。updated_atは常に更新する。
	Upsert(ctx context.Context, profile *model.UserProfile) error

	// FindByClerkID は指定の外部ユーザーIDのプロフィールを取得する。
	// 見つからない場合はnilを返す。
	FindByClerkID(ctx context.Context, clerkUserID string) (*model.UserProfile, error)

	// TouchLastSignIn はlast_sign_in_atとupdated_atを現在時刻に更新する。
	// 対象プロフィールが存在しない場合はエラーではなくno-opとする。
	TouchLastSignIn(ctx context.Context, clerkUserID string) error

	// DeleteByClerkID は指定の外部ユーザーIDのプロフィールを削除する。
	// 対象が存在しない場合はエラーではなくno-opとする。
	DeleteByClerkID(ctx context.Context, clerkUserID string) error
}

// SpaceRepository はスペースデータの永続化インターフェース。
type SpaceRepository interface {
	// ListByProfileID は指定プロフィールのスペースをcreated_at降順で
	// 最大limit件取得する。
	ListByProfileID(ctx context.Context, profileID string, limit int) ([]*model.Space, error)

	// Create はスペースを作成する。
	Create(ctx context.Context, space *model.Space) error
}
