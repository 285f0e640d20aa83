// Package events は落札状態の変化を外部へ通知するイベント発行を提供する。
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BidAccepted は受理された入札のイベントを表す。
// 公開情報のみを含み、リーダーの上限額は決して含めない。
type BidAccepted struct {
	AuctionID    string          `json:"auction_id"`
	SiteID       string          `json:"site_id"`
	BidderID     string          `json:"bidder_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	WinnerID     string          `json:"winner_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// Publisher はイベント発行のインターフェース。
type Publisher interface {
	// PublishBidAccepted は受理された入札イベントを発行する。
	PublishBidAccepted(ctx context.Context, event BidAccepted) error

	// Close は接続を閉じる。
	Close()
}

// Noop は何も発行しないPublisher実装。
// イベント基盤が構成されていない環境で使用する。
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) PublishBidAccepted(_ context.Context, _ BidAccepted) error { return nil }

func (Noop) Close() {}
