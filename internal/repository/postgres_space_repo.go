package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/roomstudio/internal/model"
)

// PostgresSpaceRepo はPostgreSQLを使用したスペースリポジトリ。
type PostgresSpaceRepo struct {
	db *sql.DB
}

// NewPostgresSpaceRepo はPostgresSpaceRepoを生成する。
func NewPostgresSpaceRepo(db *sql.DB) *PostgresSpaceRepo {
	return &PostgresSpaceRepo{db: db}
}

// ListByProfileID は指定プロフィールのスペースをcreated_at降順で最大limit件取得する。
// フィルタは外部キーのuser_profile_idに対して適用する。
func (r *PostgresSpaceRepo) ListByProfileID(ctx context.Context, profileID string, limit int) ([]*model.Space, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_profile_id, name, url, created_at
		 FROM spaces
		 WHERE user_profile_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []*model.Space
	for rows.Next() {
		space := &model.Space{}
		if err := rows.Scan(&space.ID, &space.UserProfileID, &space.Name, &space.URL, &space.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spaces: %w", err)
	}

	return spaces, nil
}

// Create はスペースを作成する。
func (r *PostgresSpaceRepo) Create(ctx context.Context, space *model.Space) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO spaces (id, user_profile_id, name, url, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		space.ID, space.UserProfileID, space.Name, space.URL, space.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SpaceRepository = (*PostgresSpaceRepo)(nil)
