package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bidman/internal/middleware"
	"github.com/hitoshi/bidman/internal/model"
)

// SessionServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	// Login はユーザーを認証する。認証失敗は (nil, nil) を返す。
	Login(ctx context.Context, siteName, username, password string) (*model.Session, error)
	// IsValid はトークンが有効かどうかを返す。
	IsValid(ctx context.Context, token string) (bool, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, token string) error
}

// AuthHandler はセッション関連のHTTPハンドラー。
type AuthHandler struct {
	service SessionServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service SessionServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Token      string    `json:"token"`
	ValidUntil time.Time `json:"valid_until"`
}

// Login はサイト内ユーザーの認証を処理する。
// POST /api/sites/{name}/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	siteName := chi.URLParam(r, "name")

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteDomainError(w, model.NewInvalidArgumentError("リクエストボディの解析に失敗しました"))
		return
	}

	sess, err := h.service.Login(r.Context(), siteName, req.Username, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if sess == nil {
		// ユーザー名とパスワードのどちらが誤っていたかは明かさない
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(middleware.ErrorResponseBody{
			Code:    "authentication_failed",
			Message: "ユーザー名またはパスワードが正しくありません。",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token:      sess.ID,
		ValidUntil: sess.ValidUntil,
	})
}

// CheckSession は提示されたトークンの有効性を返す。
// GET /api/session
func (h *AuthHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		middleware.WriteDomainError(w, model.NewInvalidArgumentError("セッショントークンを指定してください"))
		return
	}

	valid, err := h.service.IsValid(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"valid": valid})
}

// Logout はセッションを破棄する。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		middleware.WriteDomainError(w, model.NewInvalidSessionError())
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
