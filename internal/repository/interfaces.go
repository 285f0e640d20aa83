// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/bidman/internal/model"
)

// SiteRepository はサイトデータの永続化インターフェース。
type SiteRepository interface {
	// FindByID は指定IDのサイトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Site, error)

	// FindByName は指定名のサイトを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Site, error)

	// Create はサイトを作成する。名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, site *model.Site) error

	// List は全サイトを名前順で返す。
	List(ctx context.Context) ([]*model.Site, error)

	// DeleteByID は指定IDのサイトを削除する。
	// 配下のユーザー・セッション・オークションはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindBySiteAndUsername はサイトIDとユーザー名でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindBySiteAndUsername(ctx context.Context, siteID, username string) (*model.User, error)

	// Create はユーザーを作成する。サイト内でユーザー名が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// ListBySiteID はサイトの全ユーザーをユーザー名順で返す。
	ListBySiteID(ctx context.Context, siteID string) ([]*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 有効期限の判定はサイトの仮想時計に依存するためここでは行わず、
// 期限切れのセッションもそのまま返す。判定はサービス層の責務。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定トークンのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// FindBySiteAndUser はサイトIDとユーザーIDでセッションを検索する。
	// 見つからない場合はnilを返す。
	FindBySiteAndUser(ctx context.Context, siteID, userID string) (*model.Session, error)

	// UpdateValidUntil はセッションの有効期限を更新する。
	UpdateValidUntil(ctx context.Context, id string, validUntil time.Time) error

	// DeleteByID は指定トークンのセッションを削除する。
	// 存在しない場合も冪等にエラーなしで返る。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// ListBySiteID はサイトの全セッションを返す。
	ListBySiteID(ctx context.Context, siteID string) ([]*model.Session, error)

	// DeleteExpiredBySite はサイト内で valid_until <= now のセッションを
	// 一括削除し、削除件数を返す。他サイトのセッションには決して触れない。
	DeleteExpiredBySite(ctx context.Context, siteID string, now time.Time) (int64, error)
}

// AuctionRepository はオークションデータの永続化インターフェース。
type AuctionRepository interface {
	// FindByID は指定IDのオークションを取得する。見つからない場合はnilを返す。
	// 削除済み（state = deleted）のレコードもそのまま返す。状態チェックはサービス層の責務。
	FindByID(ctx context.Context, id string) (*model.Auction, error)

	// Create はオークションを作成する。
	Create(ctx context.Context, auction *model.Auction) error

	// ListBySiteID はサイトの削除されていないオークション一覧を返す。
	// endsAfterが非nilの場合は ends_on > endsAfter のもの（未終了）に絞り込む。
	ListBySiteID(ctx context.Context, siteID string, endsAfter *time.Time) ([]*model.Auction, error)

	// ListWonByUser は指定ユーザーが現在の勝者であり、すでに終了した
	// オークション一覧を返す。
	ListWonByUser(ctx context.Context, userID string, now time.Time) ([]*model.Auction, error)

	// HasOpenBySeller は指定ユーザーが出品者である未終了のオークションが
	// 存在するかどうかを返す。
	HasOpenBySeller(ctx context.Context, sellerID string, now time.Time) (bool, error)

	// ClearWinner は指定ユーザーを勝者として参照する全オークションの
	// 勝者参照をクリアする。ユーザー削除時に使用する。
	ClearWinner(ctx context.Context, userID string) error

	// ApplyBid は入札状態をcompare-and-swapで原子的に適用する。
	// 現在の状態がprevと一致する場合のみnextに更新し、適用できたかどうかを返す。
	// falseは並行する入札が先に状態を変更したことを意味し、呼び出し側は
	// 最新状態を読み直して再解決する。
	ApplyBid(ctx context.Context, auctionID string, prev, next model.BidState) (bool, error)

	// MarkDeleted はオークションを削除済み状態に遷移させる。
	// すでに削除済みの場合はfalseを返す。
	MarkDeleted(ctx context.Context, id string) (bool, error)
}
