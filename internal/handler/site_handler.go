package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/bidman/internal/middleware"
	"github.com/hitoshi/bidman/internal/model"
)

// SiteServiceInterface はサイトハンドラーが必要とするサービスインターフェース。
type SiteServiceInterface interface {
	CreateSite(ctx context.Context, name string, timezone, sessionTTLSeconds int, minBidIncrement decimal.Decimal) (*model.Site, error)
	DeleteSite(ctx context.Context, name string) error
	ListSites(ctx context.Context) ([]*model.Site, error)
	GetTimezone(ctx context.Context, name string) (int, error)
	CreateUser(ctx context.Context, siteName, username, password string) (*model.User, error)
	DeleteUser(ctx context.Context, siteName, username string) error
	ListUsers(ctx context.Context, siteName string) ([]*model.User, error)
	ListSessions(ctx context.Context, siteName string) ([]*model.Session, error)
}

// SessionCleaner は失効セッションの一括削除のインターフェース。
// session.Serviceの部分集合として定義する。
type SessionCleaner interface {
	CleanupSessions(ctx context.Context, siteName string) (int64, error)
}

// SiteHandler はサイト・ユーザー管理のHTTPハンドラー。
type SiteHandler struct {
	service SiteServiceInterface
	cleaner SessionCleaner
}

// NewSiteHandler はSiteHandlerを生成する。
func NewSiteHandler(service SiteServiceInterface, cleaner SessionCleaner) *SiteHandler {
	return &SiteHandler{service: service, cleaner: cleaner}
}

// createSiteRequest はサイト作成リクエストのボディ。
type createSiteRequest struct {
	Name              string          `json:"name"`
	Timezone          int             `json:"timezone"`
	SessionTTLSeconds int             `json:"session_ttl_seconds"`
	MinBidIncrement   decimal.Decimal `json:"min_bid_increment"`
}

// siteResponse はサイト情報のAPIレスポンス。
type siteResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Timezone          int             `json:"timezone"`
	SessionTTLSeconds int             `json:"session_ttl_seconds"`
	MinBidIncrement   decimal.Decimal `json:"min_bid_increment"`
}

func toSiteResponse(s *model.Site) siteResponse {
	return siteResponse{
		ID:                s.ID,
		Name:              s.Name,
		Timezone:          s.Timezone,
		SessionTTLSeconds: s.SessionTTLSeconds,
		MinBidIncrement:   s.MinBidIncrement,
	}
}

// CreateSite はサイト作成を処理する。
// POST /api/sites
func (h *SiteHandler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteDomainError(w, model.NewInvalidArgumentError("リクエストボディの解析に失敗しました"))
		return
	}

	site, err := h.service.CreateSite(r.Context(), req.Name, req.Timezone, req.SessionTTLSeconds, req.MinBidIncrement)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSiteResponse(site))
}

// ListSites はサイト一覧を返す。
// GET /api/sites
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.service.ListSites(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]siteResponse, 0, len(sites))
	for _, s := range sites {
		resp = append(resp, toSiteResponse(s))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DeleteSite はサイト削除を処理する。
// DELETE /api/sites/{name}
func (h *SiteHandler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSite(r.Context(), chi.URLParam(r, "name")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTimezone はサイトのタイムゾーンオフセットを返す。
// GET /api/sites/{name}/timezone
func (h *SiteHandler) GetTimezone(w http.ResponseWriter, r *http.Request) {
	tz, err := h.service.GetTimezone(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"timezone": tz})
}

// createUserRequest はユーザー作成リクエストのボディ。
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// CreateUser はサイト配下のユーザー作成を処理する。
// POST /api/sites/{name}/users
func (h *SiteHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteDomainError(w, model.NewInvalidArgumentError("リクエストボディの解析に失敗しました"))
		return
	}

	user, err := h.service.CreateUser(r.Context(), chi.URLParam(r, "name"), req.Username, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(userResponse{ID: user.ID, Username: user.Username})
}

// ListUsers はサイトのユーザー一覧を返す。
// GET /api/sites/{name}/users
func (h *SiteHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{ID: u.ID, Username: u.Username})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DeleteUser はサイト配下のユーザー削除を処理する。
// DELETE /api/sites/{name}/users/{username}
func (h *SiteHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "username"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionResponse はセッション情報のAPIレスポンス。トークンは含めない。
type sessionResponse struct {
	UserID     string    `json:"user_id"`
	ValidUntil time.Time `json:"valid_until"`
}

// ListSessions はサイトのセッション一覧を返す。
// GET /api/sites/{name}/sessions
func (h *SiteHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListSessions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse{UserID: s.UserID, ValidUntil: s.ValidUntil})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CleanupSessions はサイトの失効セッションを一括削除する。
// POST /api/sites/{name}/cleanup-sessions
func (h *SiteHandler) CleanupSessions(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.cleaner.CleanupSessions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}
