package site

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/bidman/internal/clock"
	"github.com/hitoshi/bidman/internal/model"
	"github.com/hitoshi/bidman/internal/repository"
)

// --- モック定義 ---

type mockSiteRepo struct {
	findByNameFn func(ctx context.Context, name string) (*model.Site, error)
	createFn     func(ctx context.Context, site *model.Site) error
	deleteFn     func(ctx context.Context, id string) error
}

func (m *mockSiteRepo) FindByID(_ context.Context, _ string) (*model.Site, error) { return nil, nil }

func (m *mockSiteRepo) FindByName(ctx context.Context, name string) (*model.Site, error) {
	return m.findByNameFn(ctx, name)
}

func (m *mockSiteRepo) Create(ctx context.Context, site *model.Site) error {
	return m.createFn(ctx, site)
}

func (m *mockSiteRepo) List(_ context.Context) ([]*model.Site, error) { return nil, nil }

func (m *mockSiteRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

type mockUserRepo struct {
	findBySiteAndUsernameFn func(ctx context.Context, siteID, username string) (*model.User, error)
	createFn                func(ctx context.Context, user *model.User) error
	deleteFn                func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(_ context.Context, _ string) (*model.User, error) { return nil, nil }

func (m *mockUserRepo) FindBySiteAndUsername(ctx context.Context, siteID, username string) (*model.User, error) {
	return m.findBySiteAndUsernameFn(ctx, siteID, username)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.createFn(ctx, user)
}

func (m *mockUserRepo) ListBySiteID(_ context.Context, _ string) ([]*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

type mockSessionRepo struct {
	deleteByUserFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(_ context.Context, _ *model.Session) error { return nil }

func (m *mockSessionRepo) FindByID(_ context.Context, _ string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindBySiteAndUser(_ context.Context, _, _ string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) UpdateValidUntil(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (m *mockSessionRepo) DeleteByID(_ context.Context, _ string) error { return nil }

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserFn(ctx, userID)
}

func (m *mockSessionRepo) ListBySiteID(_ context.Context, _ string) ([]*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteExpiredBySite(_ context.Context, _ string, _ time.Time) (int64, error) {
	return 0, nil
}

type mockAuctionRepo struct {
	hasOpenFn     func(ctx context.Context, sellerID string, now time.Time) (bool, error)
	clearWinnerFn func(ctx context.Context, userID string) error
}

func (m *mockAuctionRepo) FindByID(_ context.Context, _ string) (*model.Auction, error) {
	return nil, nil
}

func (m *mockAuctionRepo) Create(_ context.Context, _ *model.Auction) error { return nil }

func (m *mockAuctionRepo) ListBySiteID(_ context.Context, _ string, _ *time.Time) ([]*model.Auction, error) {
	return nil, nil
}

func (m *mockAuctionRepo) ListWonByUser(_ context.Context, _ string, _ time.Time) ([]*model.Auction, error) {
	return nil, nil
}

func (m *mockAuctionRepo) HasOpenBySeller(ctx context.Context, sellerID string, now time.Time) (bool, error) {
	return m.hasOpenFn(ctx, sellerID, now)
}

func (m *mockAuctionRepo) ClearWinner(ctx context.Context, userID string) error {
	return m.clearWinnerFn(ctx, userID)
}

func (m *mockAuctionRepo) ApplyBid(_ context.Context, _ string, _, _ model.BidState) (bool, error) {
	return false, nil
}

func (m *mockAuctionRepo) MarkDeleted(_ context.Context, _ string) (bool, error) {
	return false, nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

// --- compile-time interface checks ---
var _ repository.SiteRepository = (*mockSiteRepo)(nil)
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ repository.AuctionRepository = (*mockAuctionRepo)(nil)
var _ PasswordHasher = (plainHasher{})

// --- テストフィクスチャ ---

type fixture struct {
	svc         *Service
	siteRepo    *mockSiteRepo
	userRepo    *mockUserRepo
	sessionRepo *mockSessionRepo
	auctionRepo *mockAuctionRepo
	clk         *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		siteRepo:    &mockSiteRepo{},
		userRepo:    &mockUserRepo{},
		sessionRepo: &mockSessionRepo{},
		auctionRepo: &mockAuctionRepo{},
		clk:         clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.svc = NewService(f.siteRepo, f.userRepo, f.sessionRepo, f.auctionRepo, plainHasher{}, f.clk)
	return f
}

func (f *fixture) withSite(site *model.Site) {
	f.siteRepo.findByNameFn = func(_ context.Context, name string) (*model.Site, error) {
		if site != nil && site.Name == name {
			return site, nil
		}
		return nil, nil
	}
}

func testSite() *model.Site {
	return &model.Site{
		ID:                "site-1",
		Name:              "main",
		Timezone:          9,
		SessionTTLSeconds: 300,
		MinBidIncrement:   decimal.NewFromInt(1),
	}
}

// --- サイト管理のテスト ---

func TestCreateSite_Success(t *testing.T) {
	f := newFixture(t)

	var created *model.Site
	f.siteRepo.createFn = func(_ context.Context, site *model.Site) error {
		created = site
		return nil
	}

	site, err := f.svc.CreateSite(context.Background(), "main", 9, 300, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("CreateSite returned error: %v", err)
	}
	if created == nil {
		t.Fatal("site was not persisted")
	}
	if site.Name != "main" || site.Timezone != 9 || site.SessionTTLSeconds != 300 {
		t.Errorf("site = %+v, want main/9/300", site)
	}
	if site.ID == "" {
		t.Error("site ID is empty")
	}
}

func TestCreateSite_DuplicateName(t *testing.T) {
	f := newFixture(t)
	f.siteRepo.createFn = func(_ context.Context, _ *model.Site) error {
		return repository.ErrDuplicate
	}

	_, err := f.svc.CreateSite(context.Background(), "main", 0, 300, decimal.NewFromInt(1))
	if !model.IsKind(err, model.KindAlreadyExists) {
		t.Errorf("err = %v, want already_exists", err)
	}
}

func TestCreateSite_InvalidArguments(t *testing.T) {
	f := newFixture(t)
	f.siteRepo.createFn = func(_ context.Context, _ *model.Site) error {
		t.Fatal("invalid site must not be persisted")
		return nil
	}

	tests := []struct {
		name      string
		siteName  string
		timezone  int
		ttl       int
		increment decimal.Decimal
	}{
		{"empty name", "", 0, 300, decimal.NewFromInt(1)},
		{"name too long", strings.Repeat("x", 129), 0, 300, decimal.NewFromInt(1)},
		{"timezone below range", "main", -13, 300, decimal.NewFromInt(1)},
		{"timezone above range", "main", 13, 300, decimal.NewFromInt(1)},
		{"negative ttl", "main", 0, -1, decimal.NewFromInt(1)},
		{"zero increment", "main", 0, 300, decimal.Zero},
		{"negative increment", "main", 0, 300, decimal.NewFromInt(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateSite(context.Background(), tt.siteName, tt.timezone, tt.ttl, tt.increment)
			if !model.IsKind(err, model.KindInvalidArgument) {
				t.Errorf("err = %v, want invalid_argument", err)
			}
		})
	}
}

func TestCreateSite_BoundaryTimezones(t *testing.T) {
	f := newFixture(t)
	f.siteRepo.createFn = func(_ context.Context, _ *model.Site) error { return nil }

	for _, tz := range []int{-12, 12} {
		if _, err := f.svc.CreateSite(context.Background(), "main", tz, 300, decimal.NewFromInt(1)); err != nil {
			t.Errorf("timezone %d rejected: %v", tz, err)
		}
	}
}

func TestDeleteSite_Unknown(t *testing.T) {
	f := newFixture(t)
	f.withSite(nil)

	err := f.svc.DeleteSite(context.Background(), "nowhere")
	if !model.IsKind(err, model.KindNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

func TestGetTimezone(t *testing.T) {
	f := newFixture(t)
	f.withSite(testSite())

	tz, err := f.svc.GetTimezone(context.Background(), "main")
	if err != nil {
		t.Fatalf("GetTimezone returned error: %v", err)
	}
	if tz != 9 {
		t.Errorf("timezone = %d, want 9", tz)
	}
}

// --- ユーザー管理のテスト ---

func TestCreateUser_HashesPassword(t *testing.T) {
	f := newFixture(t)
	f.withSite(testSite())

	var created *model.User
	f.userRepo.createFn = func(_ context.Context, user *model.User) error {
		created = user
		return nil
	}

	user, err := f.svc.CreateUser(context.Background(), "main", "alice", "secret")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if created == nil {
		t.Fatal("user was not persisted")
	}
	if user.PasswordHash != "hashed:secret" {
		t.Errorf("stored hash = %q, want hashed, never the plaintext", user.PasswordHash)
	}
	if user.SiteID != "site-1" {
		t.Errorf("SiteID = %s, want site-1", user.SiteID)
	}
}

func TestCreateUser_InvalidArguments(t *testing.T) {
	f := newFixture(t)
	f.withSite(testSite())
	f.userRepo.createFn = func(_ context.Context, _ *model.User) error {
		t.Fatal("invalid user must not be persisted")
		return nil
	}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "ab", "secret"},
		{"username too long", strings.Repeat("x", 65), "secret"},
		{"password too short", "alice", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateUser(context.Background(), "main", tt.username, tt.password)
			if !model.IsKind(err, model.KindInvalidArgument) {
				t.Errorf("err = %v, want invalid_argument", err)
			}
		})
	}
}

func TestCreateUser_DuplicateInSite(t *testing.T) {
	f := newFixture(t)
	f.withSite(testSite())
	f.userRepo.createFn = func(_ context.Context, _ *model.User) error {
		return repository.ErrDuplicate
	}

	_, err := f.svc.CreateUser(context.Background(), "main", "alice", "secret")
	if !model.IsKind(err, model.KindAlreadyExists) {
		t.Errorf("err = %v, want already_exists", err)
	}
}

func TestDeleteUser_RefusedWhileSellingOpenAuction(t *testing.T) {
	f := newFixture(t)
	f.withSite(testSite())
	f.userRepo.findBySiteAndUsernameFn = func(_ context.Context, _, _ string) (*model.User, error) {
		return &model.User{ID: "user-alice", SiteID: "site-1", Username: "alice"}, nil
	}
	f.auctionRepo.hasOpenFn = func(_ context.Context, sellerID string, _ time.Time) (bool, error) {
		if sellerID != "user-alice" {
			t.Errorf("sellerID = %s, want user-alice", sellerID)
		}
		return true, nil
	}
	f.userRepo.deleteFn = func(_ context.Context, _ string) error {
		t.Fatal("user selling an open auction must not be deleted")
		return nil
	}

	err := f.svc.DeleteUser(context.Background(), "main", "alice")
	if !model.IsKind(err, model.KindPermissionDenied) {
		t.Errorf("err = %v, want permission_denied", err)
	}
}

func TestDeleteUser_ClearsWinnerAndSessions(t *testing.T) {
	f := newFixture(t)
	f.withSite(testSite())
	f.userRepo.findBySiteAndUsernameFn = func(_ context.Context, _, _ string) (*model.User, error) {
		return &model.User{ID: "user-alice", SiteID: "site-1", Username: "alice"}, nil
	}
	f.auctionRepo.hasOpenFn = func(_ context.Context, _ string, _ time.Time) (bool, error) {
		return false, nil
	}

	var clearedWinner, deletedSessions, deletedUser bool
	f.auctionRepo.clearWinnerFn = func(_ context.Context, userID string) error {
		clearedWinner = userID == "user-alice"
		return nil
	}
	f.sessionRepo.deleteByUserFn = func(_ context.Context, userID string) error {
		deletedSessions = userID == "user-alice"
		return nil
	}
	f.userRepo.deleteFn = func(_ context.Context, id string) error {
		deletedUser = id == "user-alice"
		return nil
	}

	if err := f.svc.DeleteUser(context.Background(), "main", "alice"); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
	if !clearedWinner {
		t.Error("winner references were not cleared")
	}
	if !deletedSessions {
		t.Error("user sessions were not deleted")
	}
	if !deletedUser {
		t.Error("user row was not deleted")
	}
}

func TestDeleteUser_Unknown(t *testing.T) {
	f := newFixture(t)
	f.withSite(testSite())
	f.userRepo.findBySiteAndUsernameFn = func(_ context.Context, _, _ string) (*model.User, error) {
		return nil, nil
	}

	err := f.svc.DeleteUser(context.Background(), "main", "ghost")
	if !model.IsKind(err, model.KindNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}
