package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bidman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusForKind はドメインエラー種別をHTTPステータスコードに対応付ける。
func StatusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	case model.KindInvalidSession:
		return http.StatusUnauthorized
	case model.KindPermissionDenied:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindAlreadyClosed, model.KindAlreadyDeleted, model.KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError はドメインエラーを統一フォーマットで書き込む。
func WriteDomainError(w http.ResponseWriter, domErr *model.DomainError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForKind(domErr.Kind))
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:    string(domErr.Kind),
		Message: domErr.Message,
	})
}

// WriteError は任意のエラーをHTTPレスポンスに変換する。
// ドメインエラーは種別に応じたステータスで返し、
// それ以外は詳細をログのみに記録して500を返す。
func WriteError(w http.ResponseWriter, err error) {
	var domErr *model.DomainError
	if errors.As(err, &domErr) {
		WriteDomainError(w, domErr)
		return
	}
	slog.Error("unexpected error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:    "internal_error",
		Message: "内部エラーが発生しました。",
	})
}
