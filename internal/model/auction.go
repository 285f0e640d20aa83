// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionState はオークションのライフサイクル状態を表す。
type AuctionState string

const (
	// AuctionStateActive は操作可能なオークション状態。
	AuctionStateActive AuctionState = "active"
	// AuctionStateDeleted は削除済みのオークション状態。
	// 一方向の終端遷移であり、以後のすべての操作は失敗する。
	AuctionStateDeleted AuctionState = "deleted"
)

// Auction はプロキシ入札方式のオークションを表す。
// CurrentPrice は公開されている現在価格、MaximumOffer は現在のリーダーの
// 秘密の上限額（出品者にも非公開）。CurrentWinnerID がnilの場合は入札なし。
// EndsOn はサイトのローカル時刻フレームの絶対締切で、now < EndsOn の間のみ入札可能。
type Auction struct {
	ID              string
	SiteID          string
	SellerID        string
	Description     string
	EndsOn          time.Time
	CurrentPrice    decimal.Decimal
	MaximumOffer    decimal.Decimal
	CurrentWinnerID *string
	State           AuctionState
	CreatedAt       time.Time
}

// BidState はオークションの入札状態のスナップショットを表す。
// 入札解決はこの値に対する純粋な変換として行われ、ストレージ層が
// compare-and-swapで旧状態と引き換えに新状態を原子的に適用する。
type BidState struct {
	CurrentPrice    decimal.Decimal
	MaximumOffer    decimal.Decimal
	CurrentWinnerID *string
}

// BidState は現在の入札状態スナップショットを返す。
func (a *Auction) BidState() BidState {
	return BidState{
		CurrentPrice:    a.CurrentPrice,
		MaximumOffer:    a.MaximumOffer,
		CurrentWinnerID: a.CurrentWinnerID,
	}
}

// Equal は2つの入札状態が同一かどうかを返す。
func (s BidState) Equal(other BidState) bool {
	if !s.CurrentPrice.Equal(other.CurrentPrice) || !s.MaximumOffer.Equal(other.MaximumOffer) {
		return false
	}
	if (s.CurrentWinnerID == nil) != (other.CurrentWinnerID == nil) {
		return false
	}
	return s.CurrentWinnerID == nil || *s.CurrentWinnerID == *other.CurrentWinnerID
}

// IsDeleted は削除済みかどうかを返す。
func (a *Auction) IsDeleted() bool {
	return a.State == AuctionStateDeleted
}

// IsEnded は指定時刻の時点で締切を過ぎているかどうかを返す。
// 締切ちょうどの時刻は「終了済み」として扱う（開いているのは now < EndsOn の間のみ）。
func (a *Auction) IsEnded(now time.Time) bool {
	return !now.Before(a.EndsOn)
}
