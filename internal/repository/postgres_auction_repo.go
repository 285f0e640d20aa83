package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bidman/internal/model"
)

// PostgresAuctionRepo はPostgreSQLを使用したオークションリポジトリ。
// 入札状態の適用はcompare-and-swap UPDATEで行い、同一オークションへの
// 並行入札を1行の原子的な読み取り・変更・書き込みに直列化する。
type PostgresAuctionRepo struct {
	db *sql.DB
}

// NewPostgresAuctionRepo はPostgresAuctionRepoを生成する。
func NewPostgresAuctionRepo(db *sql.DB) *PostgresAuctionRepo {
	return &PostgresAuctionRepo{db: db}
}

const auctionColumns = `id, site_id, seller_id, description, ends_on,
	current_price, maximum_offer, current_winner_id, state, created_at`

func scanAuction(scanner interface{ Scan(...any) error }) (*model.Auction, error) {
	auction := &model.Auction{}
	var winnerID sql.NullString
	if err := scanner.Scan(
		&auction.ID, &auction.SiteID, &auction.SellerID, &auction.Description,
		&auction.EndsOn, &auction.CurrentPrice, &auction.MaximumOffer,
		&winnerID, &auction.State, &auction.CreatedAt,
	); err != nil {
		return nil, err
	}
	if winnerID.Valid {
		auction.CurrentWinnerID = &winnerID.String
	}
	return auction, nil
}

// FindByID は指定IDのオークションを取得する。見つからない場合はnilを返す。
// 削除済みのレコードもそのまま返す。
func (r *PostgresAuctionRepo) FindByID(ctx context.Context, id string) (*model.Auction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	auction, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auction: %w", err)
	}
	return auction, nil
}

// Create はオークションを作成する。
func (r *PostgresAuctionRepo) Create(ctx context.Context, auction *model.Auction) error {
	var winnerID any
	if auction.CurrentWinnerID != nil {
		winnerID = *auction.CurrentWinnerID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auctions (id, site_id, seller_id, description, ends_on,
		    current_price, maximum_offer, current_winner_id, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		auction.ID, auction.SiteID, auction.SellerID, auction.Description,
		auction.EndsOn, auction.CurrentPrice, auction.MaximumOffer,
		winnerID, auction.State, auction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

// ListBySiteID はサイトの削除されていないオークション一覧を締切順で返す。
// endsAfterが非nilの場合は未終了のものに絞り込む。
func (r *PostgresAuctionRepo) ListBySiteID(ctx context.Context, siteID string, endsAfter *time.Time) ([]*model.Auction, error) {
	query := `SELECT ` + auctionColumns + `
		 FROM auctions WHERE site_id = $1 AND state = 'active'`
	args := []any{siteID}
	if endsAfter != nil {
		query += ` AND ends_on > $2`
		args = append(args, *endsAfter)
	}
	query += ` ORDER BY ends_on`

	return r.list(ctx, query, args...)
}

// ListWonByUser は指定ユーザーが勝者であり終了済みのオークション一覧を返す。
func (r *PostgresAuctionRepo) ListWonByUser(ctx context.Context, userID string, now time.Time) ([]*model.Auction, error) {
	return r.list(ctx,
		`SELECT `+auctionColumns+`
		 FROM auctions
		 WHERE current_winner_id = $1 AND ends_on <= $2 AND state = 'active'
		 ORDER BY ends_on`,
		userID, now)
}

func (r *PostgresAuctionRepo) list(ctx context.Context, query string, args ...any) ([]*model.Auction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*model.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auctions: %w", err)
	}
	return auctions, nil
}

// HasOpenBySeller は指定ユーザーが出品者の未終了オークションが存在するかを返す。
func (r *PostgresAuctionRepo) HasOpenBySeller(ctx context.Context, sellerID string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM auctions
		   WHERE seller_id = $1 AND ends_on > $2 AND state = 'active'
		 )`,
		sellerID, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open auctions: %w", err)
	}
	return exists, nil
}

// ClearWinner は指定ユーザーへの勝者参照をすべてクリアする。
func (r *PostgresAuctionRepo) ClearWinner(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET current_winner_id = NULL WHERE current_winner_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear winner references: %w", err)
	}
	return nil
}

// ApplyBid は入札状態をcompare-and-swapで原子的に適用する。
// WHERE句が旧状態全体に一致した場合のみ更新され、一致しなければ
// 並行入札が先行したことを示すfalseを返す。
func (r *PostgresAuctionRepo) ApplyBid(ctx context.Context, auctionID string, prev, next model.BidState) (bool, error) {
	var nextWinner, prevWinner any
	if next.CurrentWinnerID != nil {
		nextWinner = *next.CurrentWinnerID
	}
	if prev.CurrentWinnerID != nil {
		prevWinner = *prev.CurrentWinnerID
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE auctions
		 SET current_price = $2, maximum_offer = $3, current_winner_id = $4
		 WHERE id = $1
		   AND state = 'active'
		   AND current_price = $5
		   AND maximum_offer = $6
		   AND current_winner_id IS NOT DISTINCT FROM $7`,
		auctionID,
		next.CurrentPrice, next.MaximumOffer, nextWinner,
		prev.CurrentPrice, prev.MaximumOffer, prevWinner,
	)
	if err != nil {
		return false, fmt.Errorf("failed to apply bid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count applied rows: %w", err)
	}
	return affected == 1, nil
}

// MarkDeleted はオークションを削除済み状態に遷移させる。
// すでに削除済みの場合はfalseを返す。
func (r *PostgresAuctionRepo) MarkDeleted(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET state = 'deleted' WHERE id = $1 AND state = 'active'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark auction deleted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return affected == 1, nil
}

// compile-time interface check
var _ AuctionRepository = (*PostgresAuctionRepo)(nil)
