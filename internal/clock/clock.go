// Package clock は注入可能な仮想時計を提供する。
// セッション有効期限やオークション締切の判定はすべてこの時計を経由し、
// 壁時計を直接参照しない。テストでは時刻を決定的に進められる。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻(UTC)を供給するインターフェース。
// 時刻に依存するすべての操作に明示的に渡される。
type Clock interface {
	// Now は現在時刻をUTCで返す。
	Now() time.Time
}

// SiteNow はサイトのタイムゾーンオフセットを適用したローカル時刻を返す。
// 保存されるタイムスタンプはすべてサイトのローカルフレームであるため、
// 比較の前に必ずこの変換を1回だけ行う。
func SiteNow(c Clock, timezone int) time.Time {
	return c.Now().Add(time.Duration(timezone) * time.Hour)
}

// System は実時刻を返すClock実装。
type System struct{}

// Now は現在のUTC時刻を返す。
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fake はテスト用の決定的なClock実装。
// Advanceで時刻を前方にのみ進める。
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻で固定されたFakeを生成する。
func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

// Now は現在の仮想時刻を返す。
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は仮想時刻をdだけ進める。
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set は仮想時刻を指定時刻に設定する。
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now.UTC()
}
