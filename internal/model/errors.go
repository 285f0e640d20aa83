// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はドメインエラーの分類を表す。
// 呼び出し側は分類に基づいて「入札が負けた」と「セッション切れ」等を
// 区別して扱う必要がある。入札の拒否はエラーではなく通常の false リターンである。
type ErrorKind string

const (
	// KindInvalidArgument は不正な入力（負のオファー、非有限値、引数欠落等）。
	KindInvalidArgument ErrorKind = "invalid_argument"
	// KindInvalidSession は期限切れ・ログアウト済み・未知のセッション。
	KindInvalidSession ErrorKind = "invalid_session"
	// KindPermissionDenied は出品者の自己入札やサイトをまたぐ操作。
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindAlreadyClosed は締切を過ぎたオークションへの操作。
	KindAlreadyClosed ErrorKind = "already_closed"
	// KindAlreadyDeleted は削除済みエンティティへの操作。
	KindAlreadyDeleted ErrorKind = "already_deleted"
	// KindAlreadyExists は一意制約に反する作成（サイト名、サイト内ユーザー名）。
	KindAlreadyExists ErrorKind = "already_exists"
	// KindNotFound は参照先のサイト・ユーザー・セッション・オークションが存在しない。
	KindNotFound ErrorKind = "not_found"
)

// DomainError は分類付きのドメインエラーを表す。
// ストレージ起因の一時的な障害はこの型ではなく、素の（ラップされた）errorとして伝播する。
type DomainError struct {
	Kind    ErrorKind
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *DomainError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// KindOf はエラーチェーンからDomainErrorの分類を取り出す。
// DomainErrorでない場合は空文字列を返す。
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind はエラーが指定の分類のDomainErrorかどうかを返す。
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewInvalidArgumentError は不正な入力エラーを生成する。
func NewInvalidArgumentError(format string, args ...any) *DomainError {
	return &DomainError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidSessionError は無効セッションエラーを生成する。
func NewInvalidSessionError() *DomainError {
	return &DomainError{Kind: KindInvalidSession, Message: "セッションが無効です。再度ログインしてください。"}
}

// NewPermissionDeniedError は権限エラーを生成する。
func NewPermissionDeniedError(reason string) *DomainError {
	return &DomainError{Kind: KindPermissionDenied, Message: reason}
}

// NewAuctionClosedError は締切超過エラーを生成する。
func NewAuctionClosedError(auctionID string) *DomainError {
	return &DomainError{Kind: KindAlreadyClosed, Message: fmt.Sprintf("オークションはすでに終了しています: %s", auctionID)}
}

// NewAlreadyDeletedError は削除済みエンティティへの操作エラーを生成する。
func NewAlreadyDeletedError(entity, id string) *DomainError {
	return &DomainError{Kind: KindAlreadyDeleted, Message: fmt.Sprintf("%sはすでに削除されています: %s", entity, id)}
}

// NewAlreadyExistsError は一意制約違反エラーを生成する。
func NewAlreadyExistsError(entity, name string) *DomainError {
	return &DomainError{Kind: KindAlreadyExists, Message: fmt.Sprintf("%sはすでに存在します: %s", entity, name)}
}

// NewNotFoundError は参照先不在エラーを生成する。
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf("%sが見つかりません: %s", entity, id)}
}
