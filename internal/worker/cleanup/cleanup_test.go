package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/bidman/internal/model"
)

// --- モック定義 ---

type mockSiteLister struct {
	listFn func(ctx context.Context) ([]*model.Site, error)
}

func (m *mockSiteLister) List(ctx context.Context) ([]*model.Site, error) {
	return m.listFn(ctx)
}

type mockCleaner struct {
	cleanupFn func(ctx context.Context, siteName string) (int64, error)
	calls     []string
}

func (m *mockCleaner) CleanupSessions(ctx context.Context, siteName string) (int64, error) {
	m.calls = append(m.calls, siteName)
	if m.cleanupFn != nil {
		return m.cleanupFn(ctx, siteName)
	}
	return 0, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- テスト ---

func TestRun_SweepsEverySite(t *testing.T) {
	lister := &mockSiteLister{
		listFn: func(_ context.Context) ([]*model.Site, error) {
			return []*model.Site{{Name: "tokyo"}, {Name: "osaka"}}, nil
		},
	}
	cleaner := &mockCleaner{
		cleanupFn: func(_ context.Context, _ string) (int64, error) { return 2, nil },
	}

	job := NewCleanupJob(lister, cleaner, discardLogger())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(cleaner.calls) != 2 || cleaner.calls[0] != "tokyo" || cleaner.calls[1] != "osaka" {
		t.Errorf("cleaned sites = %v, want [tokyo osaka]", cleaner.calls)
	}
}

func TestRun_NoSitesIsNotAnError(t *testing.T) {
	lister := &mockSiteLister{
		listFn: func(_ context.Context) ([]*model.Site, error) { return nil, nil },
	}
	job := NewCleanupJob(lister, &mockCleaner{}, discardLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run with no sites returned error: %v", err)
	}
}

func TestRun_OneSiteFailingDoesNotStopTheSweep(t *testing.T) {
	lister := &mockSiteLister{
		listFn: func(_ context.Context) ([]*model.Site, error) {
			return []*model.Site{{Name: "tokyo"}, {Name: "osaka"}, {Name: "nagoya"}}, nil
		},
	}
	cleaner := &mockCleaner{
		cleanupFn: func(_ context.Context, siteName string) (int64, error) {
			if siteName == "osaka" {
				return 0, errors.New("connection reset")
			}
			return 1, nil
		},
	}

	job := NewCleanupJob(lister, cleaner, discardLogger())
	err := job.Run(context.Background())
	if err == nil {
		t.Error("Run must report the failed site")
	}

	if len(cleaner.calls) != 3 {
		t.Errorf("cleaned %d sites, want all 3 despite the failure", len(cleaner.calls))
	}
}

func TestRun_ListFailurePropagates(t *testing.T) {
	lister := &mockSiteLister{
		listFn: func(_ context.Context) ([]*model.Site, error) {
			return nil, errors.New("db down")
		},
	}
	job := NewCleanupJob(lister, &mockCleaner{}, discardLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Error("Run must propagate the listing failure")
	}
}
