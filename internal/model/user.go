// Package model はドメインモデルを定義する。
package model

import "time"

// ユーザーのドメイン制約。
const (
	// MinUsernameLength はユーザー名の最小長。
	MinUsernameLength = 3
	// MaxUsernameLength はユーザー名の最大長。
	MaxUsernameLength = 64
	// MinPasswordLength はパスワードの最小長。
	MinPasswordLength = 4
)

// User はサイトに属する利用者を表す。
// (SiteID, Username) の組はサイト内で一意。
// PasswordHash はcredentialコラボレーターが管理する不透明な値であり、
// このコアはハッシュの中身に関知しない。
type User struct {
	ID           string
	SiteID       string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
