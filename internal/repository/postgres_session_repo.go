package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bidman/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// 有効期限の判定はサイトごとの仮想時計に依存するため、SQL側でnow()と
// 比較せず、サービス層から渡された時刻のみを使用する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, site_id, user_id, valid_until, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.SiteID, session.UserID, session.ValidUntil, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定トークンのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return r.findOne(ctx,
		`SELECT id, site_id, user_id, valid_until, created_at
		 FROM sessions WHERE id = $1`, id)
}

// FindBySiteAndUser はサイトIDとユーザーIDでセッションを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindBySiteAndUser(ctx context.Context, siteID, userID string) (*model.Session, error) {
	return r.findOne(ctx,
		`SELECT id, site_id, user_id, valid_until, created_at
		 FROM sessions WHERE site_id = $1 AND user_id = $2`, siteID, userID)
}

func (r *PostgresSessionRepo) findOne(ctx context.Context, query string, args ...any) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&session.ID, &session.SiteID, &session.UserID, &session.ValidUntil, &session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// UpdateValidUntil はセッションの有効期限を更新する。
func (r *PostgresSessionRepo) UpdateValidUntil(ctx context.Context, id string, validUntil time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET valid_until = $2 WHERE id = $1`,
		id, validUntil,
	)
	if err != nil {
		return fmt.Errorf("failed to update session expiry: %w", err)
	}
	return nil
}

// DeleteByID は指定トークンのセッションを削除する。冪等。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// ListBySiteID はサイトの全セッションを返す。
func (r *PostgresSessionRepo) ListBySiteID(ctx context.Context, siteID string) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, site_id, user_id, valid_until, created_at
		 FROM sessions WHERE site_id = $1 ORDER BY created_at`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session := &model.Session{}
		if err := rows.Scan(
			&session.ID, &session.SiteID, &session.UserID, &session.ValidUntil, &session.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// DeleteExpiredBySite はサイト内の期限切れセッションを一括削除し、削除件数を返す。
// 他サイトのセッションには触れない。
func (r *PostgresSessionRepo) DeleteExpiredBySite(ctx context.Context, siteID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE site_id = $1 AND valid_until <= $2`,
		siteID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
