package auction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/bidman/internal/clock"
	"github.com/hitoshi/bidman/internal/events"
	"github.com/hitoshi/bidman/internal/model"
	"github.com/hitoshi/bidman/internal/repository"
)

// maxBidRetries は並行入札と競合した際のcompare-and-swap再試行回数の上限。
const maxBidRetries = 5

// SessionAccessor はセッション検証と延長のインターフェース。
// session.Serviceの部分集合として定義する。
type SessionAccessor interface {
	Get(ctx context.Context, token string) (*model.Session, error)
	Touch(ctx context.Context, sess *model.Session) error
}

// EventPublisher は受理された入札イベント発行のインターフェース。
// events.Publisherの部分集合として定義する。
type EventPublisher interface {
	PublishBidAccepted(ctx context.Context, event events.BidAccepted) error
}

// MetricsRecorder は入札メトリクス記録のインターフェース。
type MetricsRecorder interface {
	RecordBidAccepted()
	RecordBidRejected()
	RecordBidConflict()
}

type noopMetrics struct{}

func (noopMetrics) RecordBidAccepted() {}

func (noopMetrics) RecordBidRejected() {}

func (noopMetrics) RecordBidConflict() {}

// Sanitizer は説明文のHTMLサニタイズのインターフェース。
// bluemonday.Policyが実装する。
type Sanitizer interface {
	Sanitize(s string) string
}

// Service はオークション操作のユースケースを提供する。
type Service struct {
	auctionRepo repository.AuctionRepository
	siteRepo    repository.SiteRepository
	sessions    SessionAccessor
	publisher   EventPublisher
	sanitizer   Sanitizer
	clock       clock.Clock
	metrics     MetricsRecorder
}

// NewService はServiceを生成する。publisherとmetricsはnilでもよい。
func NewService(
	auctionRepo repository.AuctionRepository,
	siteRepo repository.SiteRepository,
	sessions SessionAccessor,
	publisher EventPublisher,
	sanitizer Sanitizer,
	clk clock.Clock,
	metrics MetricsRecorder,
) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		auctionRepo: auctionRepo,
		siteRepo:    siteRepo,
		sessions:    sessions,
		publisher:   publisher,
		sanitizer:   sanitizer,
		clock:       clk,
		metrics:     metrics,
	}
}

// Create は新しいオークションを出品する。
// 有効なセッションが必要で、成功時はセッションの期限を延長する。
// 説明文はサニタイズされ、締切はサイトのローカル現在時刻より未来でなければならない。
func (s *Service) Create(ctx context.Context, token, description string, endsOn time.Time, startingPrice decimal.Decimal) (*model.Auction, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	site, err := s.siteRepo.FindByID(ctx, sess.SiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find site: %w", err)
	}
	if site == nil {
		return nil, model.NewNotFoundError("site", sess.SiteID)
	}

	description = strings.TrimSpace(s.sanitizer.Sanitize(description))
	if description == "" {
		return nil, model.NewInvalidArgumentError("説明文を指定してください")
	}
	if startingPrice.IsNegative() {
		return nil, model.NewInvalidArgumentError("開始価格は0以上でなければなりません: %s", startingPrice)
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	if !endsOn.After(now) {
		return nil, model.NewInvalidArgumentError("締切は未来の時刻でなければなりません: %s", endsOn.Format(time.RFC3339))
	}

	auction := &model.Auction{
		ID:           uuid.New().String(),
		SiteID:       site.ID,
		SellerID:     sess.UserID,
		Description:  description,
		EndsOn:       endsOn,
		CurrentPrice: startingPrice,
		MaximumOffer: startingPrice,
		State:        model.AuctionStateActive,
		CreatedAt:    now,
	}
	if err := s.auctionRepo.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	if err := s.sessions.Touch(ctx, sess); err != nil {
		return nil, err
	}

	slog.Info("auction created",
		slog.String("auction_id", auction.ID),
		slog.String("site_id", auction.SiteID),
		slog.String("seller_id", auction.SellerID),
		slog.Time("ends_on", auction.EndsOn),
	)
	return auction, nil
}

// Bid はオークションへ入札する。受理されたかどうかを返し、
// 拒否された入札はエラーではなく false を返す。
//
// 事前条件は以下の順で検査する。
//  1. 入札額が負、またはトークンが空 -> invalid_argument
//  2. オークションが存在しない -> not_found
//  3. 削除済み -> already_deleted
//  4. セッションが無効 -> invalid_session
//  5. 別サイトのセッション、または出品者自身の入札 -> permission_denied
//  6. 締切を過ぎている -> already_closed
//
// すべての事前条件を満たした入札は結果にかかわらずセッションを延長する。
// 状態の適用はcompare-and-swapで行い、並行する入札に負けた場合は
// 最新状態を読み直して再解決する。
func (s *Service) Bid(ctx context.Context, auctionID, token string, offer decimal.Decimal) (bool, error) {
	if offer.IsNegative() {
		return false, model.NewInvalidArgumentError("入札額は0以上でなければなりません: %s", offer)
	}
	if token == "" {
		return false, model.NewInvalidArgumentError("セッショントークンを指定してください")
	}

	auction, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		return false, fmt.Errorf("failed to find auction: %w", err)
	}
	if auction == nil {
		return false, model.NewNotFoundError("auction", auctionID)
	}
	if auction.IsDeleted() {
		return false, model.NewAlreadyDeletedError("auction", auctionID)
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return false, err
	}
	if sess.SiteID != auction.SiteID {
		return false, model.NewPermissionDeniedError("別サイトのセッションでは入札できません")
	}
	if sess.UserID == auction.SellerID {
		return false, model.NewPermissionDeniedError("出品者は自分のオークションに入札できません")
	}

	site, err := s.siteRepo.FindByID(ctx, auction.SiteID)
	if err != nil {
		return false, fmt.Errorf("failed to find site: %w", err)
	}
	if site == nil {
		return false, model.NewNotFoundError("site", auction.SiteID)
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	if auction.IsEnded(now) {
		return false, model.NewAuctionClosedError(auctionID)
	}

	if err := s.sessions.Touch(ctx, sess); err != nil {
		return false, err
	}

	for attempt := 0; attempt < maxBidRetries; attempt++ {
		prev := auction.BidState()
		next, accepted := Resolve(prev, sess.UserID, offer, site.MinBidIncrement)
		if !accepted {
			s.metrics.RecordBidRejected()
			slog.Info("bid rejected",
				slog.String("auction_id", auctionID),
				slog.String("bidder_id", sess.UserID),
				slog.String("offer", offer.String()),
			)
			return false, nil
		}

		applied, err := s.auctionRepo.ApplyBid(ctx, auctionID, prev, next)
		if err != nil {
			return false, fmt.Errorf("failed to apply bid: %w", err)
		}
		if applied {
			s.metrics.RecordBidAccepted()
			s.publishAccepted(ctx, auction, next, now)
			slog.Info("bid accepted",
				slog.String("auction_id", auctionID),
				slog.String("bidder_id", sess.UserID),
				slog.String("current_price", next.CurrentPrice.String()),
			)
			return true, nil
		}

		// 並行する入札が先に状態を変更した。読み直して再解決する。
		s.metrics.RecordBidConflict()
		auction, err = s.auctionRepo.FindByID(ctx, auctionID)
		if err != nil {
			return false, fmt.Errorf("failed to reload auction: %w", err)
		}
		if auction == nil {
			return false, model.NewNotFoundError("auction", auctionID)
		}
		if auction.IsDeleted() {
			return false, model.NewAlreadyDeletedError("auction", auctionID)
		}
		if auction.IsEnded(clock.SiteNow(s.clock, site.Timezone)) {
			return false, model.NewAuctionClosedError(auctionID)
		}
	}

	return false, fmt.Errorf("bid on auction %s did not settle after %d attempts", auctionID, maxBidRetries)
}

// publishAccepted は受理された入札イベントを発行する。
// 発行失敗は入札の成否に影響させず、警告ログに留める。
func (s *Service) publishAccepted(ctx context.Context, auction *model.Auction, st model.BidState, now time.Time) {
	winnerID := ""
	if st.CurrentWinnerID != nil {
		winnerID = *st.CurrentWinnerID
	}
	event := events.BidAccepted{
		AuctionID:    auction.ID,
		SiteID:       auction.SiteID,
		BidderID:     winnerID,
		CurrentPrice: st.CurrentPrice,
		WinnerID:     winnerID,
		OccurredAt:   now,
	}
	if err := s.publisher.PublishBidAccepted(ctx, event); err != nil {
		slog.Warn("failed to publish bid event",
			slog.String("auction_id", auction.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Get は指定IDのオークションを返す。削除済みの場合はエラーになる。
func (s *Service) Get(ctx context.Context, auctionID string) (*model.Auction, error) {
	auction, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find auction: %w", err)
	}
	if auction == nil {
		return nil, model.NewNotFoundError("auction", auctionID)
	}
	if auction.IsDeleted() {
		return nil, model.NewAlreadyDeletedError("auction", auctionID)
	}
	return auction, nil
}

// CurrentPrice は公開されている現在価格を返す。
func (s *Service) CurrentPrice(ctx context.Context, auctionID string) (decimal.Decimal, error) {
	auction, err := s.Get(ctx, auctionID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return auction.CurrentPrice, nil
}

// CurrentWinner は現在の勝者のユーザーIDを返す。入札がない場合はnilを返す。
func (s *Service) CurrentWinner(ctx context.Context, auctionID string) (*string, error) {
	auction, err := s.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return auction.CurrentWinnerID, nil
}

// Delete はオークションを削除済み状態に遷移させる。
// 出品者本人のみが削除でき、削除は一方向の終端遷移となる。
func (s *Service) Delete(ctx context.Context, auctionID, token string) error {
	auction, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to find auction: %w", err)
	}
	if auction == nil {
		return model.NewNotFoundError("auction", auctionID)
	}
	if auction.IsDeleted() {
		return model.NewAlreadyDeletedError("auction", auctionID)
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	if sess.SiteID != auction.SiteID || sess.UserID != auction.SellerID {
		return model.NewPermissionDeniedError("オークションを削除できるのは出品者のみです")
	}

	if err := s.sessions.Touch(ctx, sess); err != nil {
		return err
	}

	deleted, err := s.auctionRepo.MarkDeleted(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to mark auction deleted: %w", err)
	}
	if !deleted {
		// 並行する削除が先行した場合
		return model.NewAlreadyDeletedError("auction", auctionID)
	}

	slog.Info("auction deleted",
		slog.String("auction_id", auctionID),
		slog.String("seller_id", sess.UserID),
	)
	return nil
}

// ListBySite はサイトのオークション一覧を返す。
// onlyOpenがtrueの場合はサイトのローカル現在時刻で未終了のものに絞り込む。
func (s *Service) ListBySite(ctx context.Context, siteName string, onlyOpen bool) ([]*model.Auction, error) {
	site, err := s.siteRepo.FindByName(ctx, siteName)
	if err != nil {
		return nil, fmt.Errorf("failed to find site: %w", err)
	}
	if site == nil {
		return nil, model.NewNotFoundError("site", siteName)
	}

	var endsAfter *time.Time
	if onlyOpen {
		now := clock.SiteNow(s.clock, site.Timezone)
		endsAfter = &now
	}
	auctions, err := s.auctionRepo.ListBySiteID(ctx, site.ID, endsAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

// Won はセッションのユーザーが落札した（終了済みで勝者である）
// オークション一覧を返す。
func (s *Service) Won(ctx context.Context, token string) ([]*model.Auction, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	site, err := s.siteRepo.FindByID(ctx, sess.SiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find site: %w", err)
	}
	if site == nil {
		return nil, model.NewNotFoundError("site", sess.SiteID)
	}

	if err := s.sessions.Touch(ctx, sess); err != nil {
		return nil, err
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	auctions, err := s.auctionRepo.ListWonByUser(ctx, sess.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list won auctions: %w", err)
	}
	return auctions, nil
}
