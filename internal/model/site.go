// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// サイトのドメイン制約。
const (
	// MinSiteNameLength はサイト名の最小長。
	MinSiteNameLength = 1
	// MaxSiteNameLength はサイト名の最大長。
	MaxSiteNameLength = 128
	// MinTimezone はサイトのタイムゾーンオフセット（時間単位）の下限。
	MinTimezone = -12
	// MaxTimezone はサイトのタイムゾーンオフセット（時間単位）の上限。
	MaxTimezone = 12
)

// Site はテナント境界を表す。
// 配下のユーザー・セッション・オークションはすべてこのサイトにスコープされ、
// サイトをまたぐ操作は拒否される。
type Site struct {
	ID                string
	Name              string // グローバルに一意
	Timezone          int    // UTCからのオフセット（時間単位、-12..12）
	SessionTTLSeconds int    // セッションの有効期間（秒、0以上）
	MinBidIncrement   decimal.Decimal
	CreatedAt         time.Time
}
