// Package auction はプロキシ入札方式のオークションエンジンを提供する。
//
// 各入札者は秘密の最大支払い意思額を提示し、公開される現在価格は
// 2番手の入札を最小増分だけ上回るところまでしか上がらない。
// リーダーの真の上限額が公開されることはない。
package auction

import (
	"github.com/shopspring/decimal"

	"github.com/hitoshi/bidman/internal/model"
)

// Resolve は入札1件を現在の入札状態に適用し、新しい状態と受理可否を返す。
// 純粋関数であり、ストレージ層がcompare-and-swapで原子的に適用する。
//
// 拒否は以下の順で判定する（拒否は正常な結果でありエラーではない）。
//  1. 現在のリーダー自身は、自分の上限額を最小増分以上引き上げる場合のみ再入札できる。
//  2. 挑戦者は少なくとも現在価格を提示しなければならない。
//  3. 初回入札以降、挑戦者は現在価格を最小増分より大きく上回らなければならない。
//
// 受理時の状態遷移:
//   - 初回入札: 入札者が勝者になり上限額を記録する。現在価格は開始価格のまま動かない。
//   - リーダーの引き上げ: 上限額のみ更新する。競争相手がいないため現在価格は動かない。
//   - 挑戦者の逆転 (offer > 旧上限額): 現在価格は旧リーダーをちょうど上回る
//     min(旧上限額+増分, offer) まで上がり、勝者が入れ替わる。
//   - 挑戦者が上限額未満 (offer <= 上限額): 既存リーダーが自動的に競り勝ち、
//     現在価格だけが min(上限額, offer+増分) に押し上げられる。
func Resolve(st model.BidState, bidderID string, offer, minIncrement decimal.Decimal) (model.BidState, bool) {
	firstBid := st.CurrentWinnerID == nil
	isLeader := st.CurrentWinnerID != nil && *st.CurrentWinnerID == bidderID

	// 拒否条件
	if isLeader && offer.LessThan(st.MaximumOffer.Add(minIncrement)) {
		return st, false
	}
	if !isLeader && offer.LessThan(st.CurrentPrice) {
		return st, false
	}
	if !isLeader && !firstBid && offer.LessThanOrEqual(st.CurrentPrice.Add(minIncrement)) {
		return st, false
	}

	// 受理: 初回入札
	if firstBid && offer.GreaterThanOrEqual(st.CurrentPrice) {
		bidder := bidderID
		return model.BidState{
			CurrentPrice:    st.CurrentPrice,
			MaximumOffer:    offer,
			CurrentWinnerID: &bidder,
		}, true
	}

	// 受理: リーダー自身の上限額引き上げ
	if isLeader {
		return model.BidState{
			CurrentPrice:    st.CurrentPrice,
			MaximumOffer:    offer,
			CurrentWinnerID: st.CurrentWinnerID,
		}, true
	}

	// 受理: 挑戦者が旧リーダーの上限額を超えて逆転
	if !firstBid && offer.GreaterThan(st.MaximumOffer) {
		bidder := bidderID
		return model.BidState{
			CurrentPrice:    decimal.Min(st.MaximumOffer.Add(minIncrement), offer),
			MaximumOffer:    offer,
			CurrentWinnerID: &bidder,
		}, true
	}

	// 受理: 挑戦者がリーダーの上限額に届かず、価格だけが押し上げられる
	if !firstBid && offer.LessThanOrEqual(st.MaximumOffer) {
		return model.BidState{
			CurrentPrice:    decimal.Min(st.MaximumOffer, offer.Add(minIncrement)),
			MaximumOffer:    st.MaximumOffer,
			CurrentWinnerID: st.CurrentWinnerID,
		}, true
	}

	// 上記の条件は網羅的であり、ここには到達しない
	return st, false
}
