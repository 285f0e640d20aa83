// Package cleanup は失効セッションの定期削除ジョブを提供する。
// 遅延失効（アクセス時に削除）だけでは触られないまま残るセッションが
// 蓄積するため、バックグラウンドで全サイトを巡回して一括削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/bidman/internal/model"
	"github.com/hitoshi/bidman/internal/repository"
)

// SessionCleaner は失効セッションの一括削除のインターフェース。
// session.Serviceの部分集合として定義する。
type SessionCleaner interface {
	CleanupSessions(ctx context.Context, siteName string) (int64, error)
}

// SiteLister は全サイトの列挙のインターフェース。
// repository.SiteRepositoryの部分集合として定義する。
type SiteLister interface {
	List(ctx context.Context) ([]*model.Site, error)
}

var _ SiteLister = (repository.SiteRepository)(nil)

// CleanupJob は全サイトの失効セッションを削除するバッチジョブ。
// 各サイトの有効期限判定はそのサイトの仮想時計で行われる。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	sites   SiteLister
	cleaner SessionCleaner
	logger  *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sites SiteLister, cleaner SessionCleaner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sites:   sites,
		cleaner: cleaner,
		logger:  logger,
	}
}

// Run は全サイトの失効セッションを一括削除する。
// 1サイトの失敗は記録して次のサイトへ進み、最後にまとめてエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sites, err := j.sites.List(ctx)
	if err != nil {
		j.logger.Error("サイト一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("サイト一覧の取得に失敗: %w", err)
	}

	var totalDeleted int64
	var failed int
	for _, site := range sites {
		deleted, err := j.cleaner.CleanupSessions(ctx, site.Name)
		if err != nil {
			failed++
			j.logger.Error("セッションクリーンアップに失敗しました",
				slog.String("site", site.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		totalDeleted += deleted
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int("site_count", len(sites)),
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("failed_sites", failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	if failed > 0 {
		return fmt.Errorf("%d件のサイトでセッションクリーンアップに失敗", failed)
	}
	return nil
}

// RunLoop は指定間隔でRunを繰り返し実行する。
// コンテキストのキャンセルで停止する。
func (j *CleanupJob) RunLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップワーカーを開始します",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップ実行でエラーが発生しました",
					slog.String("error", err.Error()),
				)
			}
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップワーカーを停止します")
			return
		}
	}
}
