// Package session はセッションの発行・延長・失効管理を提供する。
//
// 有効性の判定はすべてサイトごとの仮想時計で行う。失効したセッションは
// バックグラウンドの一括掃除を待たず、失効を最初に観測した検証呼び出しが
// 遅延削除する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/bidman/internal/clock"
	"github.com/hitoshi/bidman/internal/model"
	"github.com/hitoshi/bidman/internal/repository"
)

// MetricsRecorder はセッション関連メトリクスの記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordSessionExpired()
	RecordSessionsCleaned(count int)
}

// noopMetrics は何も記録しないMetricsRecorder。
type noopMetrics struct{}

func (noopMetrics) RecordSessionExpired() {}

func (noopMetrics) RecordSessionsCleaned(count int) {}

// Service はセッション管理のビジネスロジックを提供する。
type Service struct {
	siteRepo    repository.SiteRepository
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	verifier    CredentialVerifier
	clock       clock.Clock
	metrics     MetricsRecorder
}

// CredentialVerifier は資格情報照合のインターフェース。
// credential.Verifierの部分集合として定義する。
type CredentialVerifier interface {
	Verify(hash, password string) bool
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	siteRepo repository.SiteRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	verifier CredentialVerifier,
	clk clock.Clock,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		siteRepo:    siteRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		verifier:    verifier,
		clock:       clk,
		metrics:     metrics,
	}
}

// Login はサイト内のユーザーを認証し、セッションを返す。
// ユーザー名とパスワードのどちらが誤っていたかを漏らさないため、
// 認証失敗はエラーではなく (nil, nil) を返す。
// 有効なセッションが既に存在する場合は同じトークンのまま期限を延長し、
// 失効済みのセッションが残っている場合は削除して新しいトークンを発行する。
// トークンが再利用されることはない。
func (s *Service) Login(ctx context.Context, siteName, username, password string) (*model.Session, error) {
	if err := validateLoginArgs(siteName, username, password); err != nil {
		return nil, err
	}

	site, err := s.siteRepo.FindByName(ctx, siteName)
	if err != nil {
		return nil, fmt.Errorf("failed to find site: %w", err)
	}
	if site == nil {
		return nil, model.NewNotFoundError("サイト", siteName)
	}

	user, err := s.userRepo.FindBySiteAndUsername(ctx, site.ID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	// 認証失敗はユーザー不在・パスワード不一致を区別せずnilを返す
	if user == nil || !s.verifier.Verify(user.PasswordHash, password) {
		return nil, nil
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	validUntil := now.Add(time.Duration(site.SessionTTLSeconds) * time.Second)

	existing, err := s.sessionRepo.FindBySiteAndUser(ctx, site.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find existing session: %w", err)
	}

	if existing != nil {
		if existing.ValidUntil.After(now) {
			// 有効なセッションは同じトークンのまま延長する
			if err := s.sessionRepo.UpdateValidUntil(ctx, existing.ID, validUntil); err != nil {
				return nil, fmt.Errorf("failed to extend session: %w", err)
			}
			existing.ValidUntil = validUntil
			return existing, nil
		}

		// 失効済みのセッションは削除し、新しいトークンを発行する
		if err := s.sessionRepo.DeleteByID(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		s.metrics.RecordSessionExpired()
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	created := &model.Session{
		ID:         token,
		SiteID:     site.ID,
		UserID:     user.ID,
		ValidUntil: validUntil,
		CreatedAt:  now,
	}
	if err := s.sessionRepo.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("site", site.Name),
		slog.String("user_id", user.ID),
	)
	return created, nil
}

// Get は有効なセッションを取得する。
// 見つからない・失効している場合はInvalidSessionエラーを返し、
// 失効を観測した場合はセッションを遅延削除する。
func (s *Service) Get(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, model.NewInvalidArgumentError("セッショントークンが指定されていません")
	}

	sess, err := s.sessionRepo.FindByID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil {
		return nil, model.NewInvalidSessionError()
	}

	site, err := s.siteRepo.FindByID(ctx, sess.SiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session site: %w", err)
	}
	if site == nil {
		return nil, model.NewNotFoundError("サイト", sess.SiteID)
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	if !sess.ValidUntil.After(now) {
		// 失効の最初の観測者が削除する。削除は冪等なので並行して
		// 観測されても安全。
		if err := s.sessionRepo.DeleteByID(ctx, sess.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		s.metrics.RecordSessionExpired()
		return nil, model.NewInvalidSessionError()
	}

	return sess, nil
}

// IsValid はセッションが有効かどうかを返す。
// 失効を最初に観測した呼び出しはセッションを削除する。
func (s *Service) IsValid(ctx context.Context, token string) (bool, error) {
	_, err := s.Get(ctx, token)
	if err != nil {
		if model.IsKind(err, model.KindInvalidSession) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Touch はアクティビティによるセッション延長を行う。
// 入札やオークション作成の成功時に呼ばれ、呼び出し時点のサイトTTLと
// 時計で validUntil = now + ttl に更新する。
func (s *Service) Touch(ctx context.Context, sess *model.Session) error {
	site, err := s.siteRepo.FindByID(ctx, sess.SiteID)
	if err != nil {
		return fmt.Errorf("failed to find session site: %w", err)
	}
	if site == nil {
		return model.NewNotFoundError("サイト", sess.SiteID)
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	validUntil := now.Add(time.Duration(site.SessionTTLSeconds) * time.Second)
	if err := s.sessionRepo.UpdateValidUntil(ctx, sess.ID, validUntil); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	sess.ValidUntil = validUntil
	return nil
}

// Logout はセッションを破棄する。終端操作であり、以後の検証は必ず無効を報告する。
// すでに無効・不明なセッションに対してはInvalidSessionエラーを返す。
func (s *Service) Logout(ctx context.Context, token string) error {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteByID(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", sess.UserID))
	return nil
}

// CleanupSessions は指定サイトの失効セッションを一括削除する。
// 他サイトのセッションには決して触れない。削除件数を返す。
func (s *Service) CleanupSessions(ctx context.Context, siteName string) (int64, error) {
	site, err := s.siteRepo.FindByName(ctx, siteName)
	if err != nil {
		return 0, fmt.Errorf("failed to find site: %w", err)
	}
	if site == nil {
		return 0, model.NewNotFoundError("サイト", siteName)
	}

	now := clock.SiteNow(s.clock, site.Timezone)
	deleted, err := s.sessionRepo.DeleteExpiredBySite(ctx, site.ID, now)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.metrics.RecordSessionsCleaned(int(deleted))
		slog.Info("expired sessions cleaned",
			slog.String("site", site.Name),
			slog.Int64("deleted_count", deleted),
		)
	}
	return deleted, nil
}

func validateLoginArgs(siteName, username, password string) error {
	if siteName == "" {
		return model.NewInvalidArgumentError("サイト名が指定されていません")
	}
	if len(username) < model.MinUsernameLength || len(username) > model.MaxUsernameLength {
		return model.NewInvalidArgumentError("ユーザー名は%d〜%d文字で指定してください",
			model.MinUsernameLength, model.MaxUsernameLength)
	}
	if len(password) < model.MinPasswordLength {
		return model.NewInvalidArgumentError("パスワードは%d文字以上で指定してください",
			model.MinPasswordLength)
	}
	return nil
}

// generateToken は暗号的に安全なセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
