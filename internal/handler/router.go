// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bidman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionValidator  middleware.SessionValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// セッション
	SessionService SessionServiceInterface

	// サイト・ユーザー管理
	SiteService    SiteServiceInterface
	SessionCleaner SessionCleaner

	// オークション
	AuctionService AuctionServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// サイト管理と公開読み取りのルートはミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.SessionService)
	siteHandler := NewSiteHandler(deps.SiteService, deps.SessionCleaner)
	auctionHandler := NewAuctionHandler(deps.AuctionService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// サイト・ユーザー管理（プロビジョニング操作）
	r.Route("/api/sites", func(r chi.Router) {
		r.Post("/", siteHandler.CreateSite)
		r.Get("/", siteHandler.ListSites)

		r.Route("/{name}", func(r chi.Router) {
			r.Delete("/", siteHandler.DeleteSite)
			r.Get("/timezone", siteHandler.GetTimezone)

			r.Post("/users", siteHandler.CreateUser)
			r.Get("/users", siteHandler.ListUsers)
			r.Delete("/users/{username}", siteHandler.DeleteUser)

			r.Get("/sessions", siteHandler.ListSessions)
			r.Post("/cleanup-sessions", siteHandler.CleanupSessions)

			r.Post("/login", authHandler.Login)
		})
	})

	// セッション状態の確認とログアウトはトークンの有効性自体が問い合わせ対象のため、
	// セッションミドルウェアを通さない
	r.Get("/api/session", authHandler.CheckSession)
	r.Post("/api/logout", authHandler.Logout)

	// 公開読み取り
	r.Get("/api/auctions", auctionHandler.ListAuctions)
	r.Get("/api/auctions/{id}", auctionHandler.GetAuction)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionValidator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/auctions", auctionHandler.CreateAuction)
		r.Delete("/api/auctions/{id}", auctionHandler.DeleteAuction)
		r.Get("/api/auctions/won", auctionHandler.WonAuctions)

		// POST /api/auctions/{id}/bids - 入札（専用レート制限を追加）
		r.With(deps.RateLimiter.BidMiddleware()).Post("/api/auctions/{id}/bids", auctionHandler.PlaceBid)
	})

	return r
}
