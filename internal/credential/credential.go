// Package credential は資格情報のハッシュ化と照合を提供する。
// 照合結果は合否のみを返し、ハッシュの中身を外に出さない。
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Verifier は提示された資格情報を保存済みハッシュと照合するインターフェース。
type Verifier interface {
	// Verify は照合に成功した場合にtrueを返す。
	// ハッシュ不一致はエラーではなくfalseとして扱う。
	Verify(hash, password string) bool
}

// Hasher は資格情報をハッシュ化するインターフェース。
type Hasher interface {
	Hash(password string) (string, error)
}

// Bcrypt はbcryptによるVerifier/Hasher実装。
type Bcrypt struct {
	Cost int // 0以下の場合はbcrypt.DefaultCost
}

// NewBcrypt はデフォルトコストのBcryptを生成する。
func NewBcrypt() *Bcrypt {
	return &Bcrypt{Cost: bcrypt.DefaultCost}
}

// Hash はパスワードのbcryptハッシュを生成する。
func (b *Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// Verify は保存済みハッシュと提示パスワードを照合する。
func (b *Bcrypt) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// compile-time interface checks
var _ Verifier = (*Bcrypt)(nil)
var _ Hasher = (*Bcrypt)(nil)
