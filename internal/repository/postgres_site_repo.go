package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bidman/internal/model"
)

// PostgresSiteRepo はPostgreSQLを使用したサイトリポジトリ。
type PostgresSiteRepo struct {
	db *sql.DB
}

// NewPostgresSiteRepo はPostgresSiteRepoを生成する。
func NewPostgresSiteRepo(db *sql.DB) *PostgresSiteRepo {
	return &PostgresSiteRepo{db: db}
}

// FindByID は指定IDのサイトを取得する。見つからない場合はnilを返す。
func (r *PostgresSiteRepo) FindByID(ctx context.Context, id string) (*model.Site, error) {
	return r.findOne(ctx,
		`SELECT id, name, timezone, session_ttl_seconds, min_bid_increment, created_at
		 FROM sites WHERE id = $1`, id)
}

// FindByName は指定名のサイトを取得する。見つからない場合はnilを返す。
func (r *PostgresSiteRepo) FindByName(ctx context.Context, name string) (*model.Site, error) {
	return r.findOne(ctx,
		`SELECT id, name, timezone, session_ttl_seconds, min_bid_increment, created_at
		 FROM sites WHERE name = $1`, name)
}

func (r *PostgresSiteRepo) findOne(ctx context.Context, query string, arg any) (*model.Site, error) {
	site := &model.Site{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&site.ID, &site.Name, &site.Timezone, &site.SessionTTLSeconds,
		&site.MinBidIncrement, &site.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find site: %w", err)
	}
	return site, nil
}

// Create はサイトを作成する。名前が重複する場合はErrDuplicateを返す。
func (r *PostgresSiteRepo) Create(ctx context.Context, site *model.Site) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sites (id, name, timezone, session_ttl_seconds, min_bid_increment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		site.ID, site.Name, site.Timezone, site.SessionTTLSeconds,
		site.MinBidIncrement, site.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

// List は全サイトを名前順で返す。
func (r *PostgresSiteRepo) List(ctx context.Context) ([]*model.Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, timezone, session_ttl_seconds, min_bid_increment, created_at
		 FROM sites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []*model.Site
	for rows.Next() {
		site := &model.Site{}
		if err := rows.Scan(
			&site.ID, &site.Name, &site.Timezone, &site.SessionTTLSeconds,
			&site.MinBidIncrement, &site.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sites: %w", err)
	}
	return sites, nil
}

// DeleteByID は指定IDのサイトを削除する。配下のエンティティはCASCADE削除される。
func (r *PostgresSiteRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SiteRepository = (*PostgresSiteRepo)(nil)
