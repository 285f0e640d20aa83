// Package site はサイトとユーザーの管理操作を提供する。
// サイトはテナント境界であり、配下のユーザー・セッション・オークションは
// 他サイトから決して見えない。
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/bidman/internal/clock"
	"github.com/hitoshi/bidman/internal/model"
	"github.com/hitoshi/bidman/internal/repository"
)

// PasswordHasher は資格情報ハッシュ化のインターフェース。
// credential.Hasherの部分集合として定義する。
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Service はサイトとユーザーの管理ユースケースを提供する。
type Service struct {
	siteRepo    repository.SiteRepository
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	auctionRepo repository.AuctionRepository
	hasher      PasswordHasher
	clock       clock.Clock
}

// NewService はServiceを生成する。
func NewService(
	siteRepo repository.SiteRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	auctionRepo repository.AuctionRepository,
	hasher PasswordHasher,
	clk clock.Clock,
) *Service {
	return &Service{
		siteRepo:    siteRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		auctionRepo: auctionRepo,
		hasher:      hasher,
		clock:       clk,
	}
}

// CreateSite は新しいサイトを作成する。
// タイムゾーンは時間単位のUTCオフセット、sessionTTLSecondsはセッションの
// 有効期間、minBidIncrementは入札の最小増分となる。
func (s *Service) CreateSite(ctx context.Context, name string, timezone, sessionTTLSeconds int, minBidIncrement decimal.Decimal) (*model.Site, error) {
	if err := validateSiteArgs(name, timezone, sessionTTLSeconds, minBidIncrement); err != nil {
		return nil, err
	}

	site := &model.Site{
		ID:                uuid.New().String(),
		Name:              name,
		Timezone:          timezone,
		SessionTTLSeconds: sessionTTLSeconds,
		MinBidIncrement:   minBidIncrement,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.siteRepo.Create(ctx, site); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyExistsError("site", name)
		}
		return nil, fmt.Errorf("failed to create site: %w", err)
	}

	slog.Info("site created",
		slog.String("site_id", site.ID),
		slog.String("name", site.Name),
		slog.Int("timezone", site.Timezone),
	)
	return site, nil
}

// DeleteSite はサイトを配下のユーザー・セッション・オークションごと削除する。
func (s *Service) DeleteSite(ctx context.Context, name string) error {
	site, err := s.findSite(ctx, name)
	if err != nil {
		return err
	}
	if err := s.siteRepo.DeleteByID(ctx, site.ID); err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	slog.Info("site deleted", slog.String("site_id", site.ID), slog.String("name", name))
	return nil
}

// ListSites は全サイトを名前順で返す。
func (s *Service) ListSites(ctx context.Context) ([]*model.Site, error) {
	sites, err := s.siteRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

// GetTimezone はサイトのタイムゾーンオフセット（時間単位）を返す。
func (s *Service) GetTimezone(ctx context.Context, name string) (int, error) {
	site, err := s.findSite(ctx, name)
	if err != nil {
		return 0, err
	}
	return site.Timezone, nil
}

// CreateUser はサイト配下に新しいユーザーを作成する。
// パスワードはハッシュ化してのみ保存する。
func (s *Service) CreateUser(ctx context.Context, siteName, username, password string) (*model.User, error) {
	if err := validateUserArgs(username, password); err != nil {
		return nil, err
	}

	site, err := s.findSite(ctx, siteName)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		SiteID:       site.ID,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    clock.SiteNow(s.clock, site.Timezone),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyExistsError("user", username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.String("site", siteName),
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)
	return user, nil
}

// DeleteUser はサイト配下のユーザーを削除する。
// 未終了のオークションの出品者である間は削除できない。
// ユーザーが勝者となっているオークションの勝者参照はクリアされ、
// ユーザーのセッションもすべて削除される。
func (s *Service) DeleteUser(ctx context.Context, siteName, username string) error {
	site, err := s.findSite(ctx, siteName)
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindBySiteAndUsername(ctx, site.ID, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("user", username)
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	hasOpen, err := s.auctionRepo.HasOpenBySeller(ctx, user.ID, now)
	if err != nil {
		return fmt.Errorf("failed to check open auctions: %w", err)
	}
	if hasOpen {
		return model.NewPermissionDeniedError("未終了のオークションを出品中のユーザーは削除できません")
	}

	if err := s.auctionRepo.ClearWinner(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to clear winner references: %w", err)
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	if err := s.userRepo.DeleteByID(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted",
		slog.String("site", siteName),
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)
	return nil
}

// ListUsers はサイトの全ユーザーをユーザー名順で返す。
func (s *Service) ListUsers(ctx context.Context, siteName string) ([]*model.User, error) {
	site, err := s.findSite(ctx, siteName)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListBySiteID(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListSessions はサイトの全セッションを返す。失効済みのものも含む。
func (s *Service) ListSessions(ctx context.Context, siteName string) ([]*model.Session, error) {
	site, err := s.findSite(ctx, siteName)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.ListBySiteID(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) findSite(ctx context.Context, name string) (*model.Site, error) {
	site, err := s.siteRepo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find site: %w", err)
	}
	if site == nil {
		return nil, model.NewNotFoundError("site", name)
	}
	return site, nil
}

func validateSiteArgs(name string, timezone, sessionTTLSeconds int, minBidIncrement decimal.Decimal) error {
	if n := utf8.RuneCountInString(name); n < model.MinSiteNameLength || n > model.MaxSiteNameLength {
		return model.NewInvalidArgumentError("サイト名は%d〜%d文字で指定してください", model.MinSiteNameLength, model.MaxSiteNameLength)
	}
	if timezone < model.MinTimezone || timezone > model.MaxTimezone {
		return model.NewInvalidArgumentError("タイムゾーンは%d〜%dの範囲で指定してください: %d", model.MinTimezone, model.MaxTimezone, timezone)
	}
	if sessionTTLSeconds < 0 {
		return model.NewInvalidArgumentError("セッション有効期間は0以上でなければなりません: %d", sessionTTLSeconds)
	}
	if !minBidIncrement.IsPositive() {
		return model.NewInvalidArgumentError("最小入札増分は正でなければなりません: %s", minBidIncrement)
	}
	return nil
}

func validateUserArgs(username, password string) error {
	if n := utf8.RuneCountInString(username); n < model.MinUsernameLength || n > model.MaxUsernameLength {
		return model.NewInvalidArgumentError("ユーザー名は%d〜%d文字で指定してください", model.MinUsernameLength, model.MaxUsernameLength)
	}
	if utf8.RuneCountInString(password) < model.MinPasswordLength {
		return model.NewInvalidArgumentError("パスワードは%d文字以上で指定してください", model.MinPasswordLength)
	}
	return nil
}
