// Package model はドメインモデルを定義する。
package model

import "time"

// Session はユーザーのログインセッションを表す。
// IDはトークンそのものであり、サイト内で再利用されることはない。
// (SiteID, UserID) の組に対して有効なセッションは同時に最大1つ。
// ValidUntil はサイトのローカル時刻フレームで保持される。
type Session struct {
	ID         string
	SiteID     string
	UserID     string
	ValidUntil time.Time
	CreatedAt  time.Time
}
