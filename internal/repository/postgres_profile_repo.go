package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/roomstudio/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Upsert はプロフィールをclerk_user_idをキーに冪等にUPSERTする。
// 衝突時はcreated_atを保持し、last_sign_in_atは新しい値があるときのみ上書きする。
// 同一外部IDへの同時UPSERTの整合性はUNIQUE制約とON CONFLICTに委ねる。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles
		     (id, clerk_user_id, email, first_name, last_name, avatar_url, provider_type,
		      created_at, updated_at, last_sign_in_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (clerk_user_id) DO UPDATE SET
		     email           = EXCLUDED.email,
		     first_name      = EXCLUDED.first_name,
		     last_name       = EXCLUDED.last_name,
		     avatar_url      = EXCLUDED.avatar_url,
		     provider_type   = EXCLUDED.provider_type,
		     updated_at      = EXCLUDED.updated_at,
		     last_sign_in_at = COALESCE(EXCLUDED.last_sign_in_at, user_profiles.last_sign_in_at)`,
		profile.ID, profile.ClerkUserID, profile.Email,
		profile.FirstName, profile.LastName, profile.AvatarURL, providerTypeValue(profile.ProviderType),
		profile.CreatedAt, profile.UpdatedAt, profile.LastSignInAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

// FindByClerkID は指定の外部ユーザーIDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByClerkID(ctx context.Context, clerkUserID string) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	var providerType sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, clerk_user_id, email, first_name, last_name, avatar_url, provider_type,
		        created_at, updated_at, last_sign_in_at
		 FROM user_profiles
		 WHERE clerk_user_id = $1`,
		clerkUserID,
	).Scan(
		&profile.ID, &profile.ClerkUserID, &profile.Email,
		&profile.FirstName, &profile.LastName, &profile.AvatarURL, &providerType,
		&profile.CreatedAt, &profile.UpdatedAt, &profile.LastSignInAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile: %w", err)
	}

	if providerType.Valid {
		pt := model.ProviderType(providerType.String)
		profile.ProviderType = &pt
	}

	return profile, nil
}

// TouchLastSignIn はlast_sign_in_atとupdated_atを現在時刻に更新する。
// 対象が存在しない場合もエラーにしない（Webhookの到着順は保証されないため）。
func (r *PostgresProfileRepo) TouchLastSignIn(ctx context.Context, clerkUserID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles
		 SET last_sign_in_at = now(), updated_at = now()
		 WHERE clerk_user_id = $1`,
		clerkUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update last sign in: %w", err)
	}
	return nil
}

// DeleteByClerkID は指定の外部ユーザーIDのプロフィールを削除する。
// 対象が存在しない場合もエラーにしない。関連するspacesはCASCADE削除される。
func (r *PostgresProfileRepo) DeleteByClerkID(ctx context.Context, clerkUserID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_profiles WHERE clerk_user_id = $1`,
		clerkUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user profile: %w", err)
	}
	return nil
}

// providerTypeValue は*model.ProviderTypeをNULL許容のDB値に変換する。
func providerTypeValue(pt *model.ProviderType) any {
	if pt == nil {
		return nil
	}
	return string(*pt)
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
