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

// AuctionServiceInterface はオークションハンドラーが必要とするサービスインターフェース。
type AuctionServiceInterface interface {
	Create(ctx context.Context, token, description string, endsOn time.Time, startingPrice decimal.Decimal) (*model.Auction, error)
	Bid(ctx context.Context, auctionID, token string, offer decimal.Decimal) (bool, error)
	Get(ctx context.Context, auctionID string) (*model.Auction, error)
	Delete(ctx context.Context, auctionID, token string) error
	ListBySite(ctx context.Context, siteName string, onlyOpen bool) ([]*model.Auction, error)
	Won(ctx context.Context, token string) ([]*model.Auction, error)
}

// AuctionHandler はオークション操作のHTTPハンドラー。
type AuctionHandler struct {
	service AuctionServiceInterface
}

// NewAuctionHandler はAuctionHandlerを生成する。
func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// createAuctionRequest はオークション作成リクエストのボディ。
type createAuctionRequest struct {
	Description   string          `json:"description"`
	EndsOn        time.Time       `json:"ends_on"`
	StartingPrice decimal.Decimal `json:"starting_price"`
}

// placeBidRequest は入札リクエストのボディ。
type placeBidRequest struct {
	Offer decimal.Decimal `json:"offer"`
}

// auctionResponse はオークション情報のAPIレスポンス。
// リーダーの上限額は公開情報ではないため決して含めない。
type auctionResponse struct {
	ID            string          `json:"id"`
	SiteID        string          `json:"site_id"`
	SellerID      string          `json:"seller_id"`
	Description   string          `json:"description"`
	EndsOn        time.Time       `json:"ends_on"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CurrentWinner *string         `json:"current_winner"`
}

func toAuctionResponse(a *model.Auction) auctionResponse {
	return auctionResponse{
		ID:            a.ID,
		SiteID:        a.SiteID,
		SellerID:      a.SellerID,
		Description:   a.Description,
		EndsOn:        a.EndsOn,
		CurrentPrice:  a.CurrentPrice,
		CurrentWinner: a.CurrentWinnerID,
	}
}

// sessionToken はミドルウェアが検証済みのセッショントークンを取り出す。
func sessionToken(r *http.Request) (string, bool) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		return "", false
	}
	return sess.ID, true
}

// CreateAuction はオークション出品を処理する。
// POST /api/auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		middleware.WriteDomainError(w, model.NewInvalidSessionError())
		return
	}

	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteDomainError(w, model.NewInvalidArgumentError("リクエストボディの解析に失敗しました"))
		return
	}

	auction, err := h.service.Create(r.Context(), token, req.Description, req.EndsOn, req.StartingPrice)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAuctionResponse(auction))
}

// PlaceBid は入札を処理する。拒否された入札は200で accepted: false を返す。
// POST /api/auctions/{id}/bids
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		middleware.WriteDomainError(w, model.NewInvalidSessionError())
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteDomainError(w, model.NewInvalidArgumentError("リクエストボディの解析に失敗しました"))
		return
	}

	accepted, err := h.service.Bid(r.Context(), chi.URLParam(r, "id"), token, req.Offer)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"accepted": accepted})
}

// GetAuction はオークションの公開情報を返す。
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAuctionResponse(auction))
}

// DeleteAuction はオークション削除を処理する。
// DELETE /api/auctions/{id}
func (h *AuctionHandler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		middleware.WriteDomainError(w, model.NewInvalidSessionError())
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), token); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAuctions はサイトのオークション一覧を返す。
// GET /api/auctions?site={name}&open={bool}
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	siteName := r.URL.Query().Get("site")
	if siteName == "" {
		middleware.WriteDomainError(w, model.NewInvalidArgumentError("siteクエリパラメータを指定してください"))
		return
	}
	onlyOpen := r.URL.Query().Get("open") == "true"

	auctions, err := h.service.ListBySite(r.Context(), siteName, onlyOpen)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, toAuctionResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// WonAuctions はセッションのユーザーが落札したオークション一覧を返す。
// GET /api/auctions/won
func (h *AuctionHandler) WonAuctions(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		middleware.WriteDomainError(w, model.NewInvalidSessionError())
		return
	}

	auctions, err := h.service.Won(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, toAuctionResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
