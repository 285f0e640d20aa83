package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/bidman/internal/model"
)

// --- モック定義 ---

type stubSiteService struct {
	createSiteFn   func(ctx context.Context, name string, timezone, sessionTTLSeconds int, minBidIncrement decimal.Decimal) (*model.Site, error)
	deleteSiteFn   func(ctx context.Context, name string) error
	listSitesFn    func(ctx context.Context) ([]*model.Site, error)
	getTimezoneFn  func(ctx context.Context, name string) (int, error)
	createUserFn   func(ctx context.Context, siteName, username, password string) (*model.User, error)
	deleteUserFn   func(ctx context.Context, siteName, username string) error
	listUsersFn    func(ctx context.Context, siteName string) ([]*model.User, error)
	listSessionsFn func(ctx context.Context, siteName string) ([]*model.Session, error)
}

var _ SiteServiceInterface = (*stubSiteService)(nil)

func (m *stubSiteService) CreateSite(ctx context.Context, name string, timezone, sessionTTLSeconds int, minBidIncrement decimal.Decimal) (*model.Site, error) {
	return m.createSiteFn(ctx, name, timezone, sessionTTLSeconds, minBidIncrement)
}

func (m *stubSiteService) DeleteSite(ctx context.Context, name string) error {
	return m.deleteSiteFn(ctx, name)
}

func (m *stubSiteService) ListSites(ctx context.Context) ([]*model.Site, error) {
	return m.listSitesFn(ctx)
}

func (m *stubSiteService) GetTimezone(ctx context.Context, name string) (int, error) {
	return m.getTimezoneFn(ctx, name)
}

func (m *stubSiteService) CreateUser(ctx context.Context, siteName, username, password string) (*model.User, error) {
	return m.createUserFn(ctx, siteName, username, password)
}

func (m *stubSiteService) DeleteUser(ctx context.Context, siteName, username string) error {
	return m.deleteUserFn(ctx, siteName, username)
}

func (m *stubSiteService) ListUsers(ctx context.Context, siteName string) ([]*model.User, error) {
	return m.listUsersFn(ctx, siteName)
}

func (m *stubSiteService) ListSessions(ctx context.Context, siteName string) ([]*model.Session, error) {
	return m.listSessionsFn(ctx, siteName)
}

type stubCleaner struct {
	cleanupFn func(ctx context.Context, siteName string) (int64, error)
}

func (m *stubCleaner) CleanupSessions(ctx context.Context, siteName string) (int64, error) {
	return m.cleanupFn(ctx, siteName)
}

// --- テスト ---

func TestSiteHandler_CreateSite_Success(t *testing.T) {
	var gotName string
	svc := &stubSiteService{
		createSiteFn: func(_ context.Context, name string, timezone, ttl int, inc decimal.Decimal) (*model.Site, error) {
			gotName = name
			return &model.Site{
				ID:                "site-1",
				Name:              name,
				Timezone:          timezone,
				SessionTTLSeconds: ttl,
				MinBidIncrement:   inc,
			}, nil
		},
	}
	h := NewSiteHandler(svc, &stubCleaner{})

	body := `{"name":"tokyo","timezone":9,"session_ttl_seconds":600,"min_bid_increment":"1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sites", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateSite(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if gotName != "tokyo" {
		t.Errorf("name = %q, want %q", gotName, "tokyo")
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["id"] != "site-1" {
		t.Errorf("id = %v, want site-1", resp["id"])
	}
	if resp["timezone"] != float64(9) {
		t.Errorf("timezone = %v, want 9", resp["timezone"])
	}
}

func TestSiteHandler_CreateSite_DuplicateIs409(t *testing.T) {
	svc := &stubSiteService{
		createSiteFn: func(_ context.Context, name string, _, _ int, _ decimal.Decimal) (*model.Site, error) {
			return nil, model.NewAlreadyExistsError("site", name)
		},
	}
	h := NewSiteHandler(svc, &stubCleaner{})

	body := `{"name":"tokyo","timezone":9,"session_ttl_seconds":600,"min_bid_increment":"1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sites", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateSite(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSiteHandler_CreateSite_MalformedBodyIs400(t *testing.T) {
	h := NewSiteHandler(&stubSiteService{}, &stubCleaner{})

	req := httptest.NewRequest(http.MethodPost, "/api/sites", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	h.CreateSite(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSiteHandler_GetTimezone(t *testing.T) {
	svc := &stubSiteService{
		getTimezoneFn: func(_ context.Context, name string) (int, error) {
			if name != "tokyo" {
				t.Errorf("site name = %q, want %q", name, "tokyo")
			}
			return 9, nil
		},
	}
	h := NewSiteHandler(svc, &stubCleaner{})

	req := httptest.NewRequest(http.MethodGet, "/api/sites/tokyo/timezone", nil)
	req = withChiURLParam(req, "name", "tokyo")
	rec := httptest.NewRecorder()

	h.GetTimezone(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["timezone"] != 9 {
		t.Errorf("timezone = %d, want 9", resp["timezone"])
	}
}

func TestSiteHandler_DeleteSite_UnknownIs404(t *testing.T) {
	svc := &stubSiteService{
		deleteSiteFn: func(_ context.Context, name string) error {
			return model.NewNotFoundError("サイト", name)
		},
	}
	h := NewSiteHandler(svc, &stubCleaner{})

	req := httptest.NewRequest(http.MethodDelete, "/api/sites/nowhere", nil)
	req = withChiURLParam(req, "name", "nowhere")
	rec := httptest.NewRecorder()

	h.DeleteSite(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSiteHandler_CreateUser_ResponseOmitsPasswordHash(t *testing.T) {
	svc := &stubSiteService{
		createUserFn: func(_ context.Context, siteName, username, password string) (*model.User, error) {
			return &model.User{
				ID:           "user-1",
				SiteID:       "site-1",
				Username:     username,
				PasswordHash: "bcrypt-hash-never-exposed",
			}, nil
		},
	}
	h := NewSiteHandler(svc, &stubCleaner{})

	body := `{"username":"bob","password":"hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sites/tokyo/users", strings.NewReader(body))
	req = withChiURLParam(req, "name", "tokyo")
	rec := httptest.NewRecorder()

	h.CreateUser(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if strings.Contains(rec.Body.String(), "bcrypt-hash-never-exposed") {
		t.Error("response must not contain the password hash")
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["username"] != "bob" {
		t.Errorf("username = %v, want bob", resp["username"])
	}
}

func TestSiteHandler_DeleteUser_SellingRefusalIs403(t *testing.T) {
	svc := &stubSiteService{
		deleteUserFn: func(_ context.Context, siteName, username string) error {
			return model.NewPermissionDeniedError("未終了の出品があるユーザーは削除できません")
		},
	}
	h := NewSiteHandler(svc, &stubCleaner{})

	req := httptest.NewRequest(http.MethodDelete, "/api/sites/tokyo/users/bob", nil)
	req = withChiURLParam(req, "name", "tokyo")
	req = withChiURLParam(req, "username", "bob")
	rec := httptest.NewRecorder()

	h.DeleteUser(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestSiteHandler_ListSessions_OmitsTokens(t *testing.T) {
	validUntil := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubSiteService{
		listSessionsFn: func(_ context.Context, siteName string) ([]*model.Session, error) {
			return []*model.Session{
				{ID: "secret-token-1", SiteID: "site-1", UserID: "user-1", ValidUntil: validUntil},
			}, nil
		},
	}
	h := NewSiteHandler(svc, &stubCleaner{})

	req := httptest.NewRequest(http.MethodGet, "/api/sites/tokyo/sessions", nil)
	req = withChiURLParam(req, "name", "tokyo")
	rec := httptest.NewRecorder()

	h.ListSessions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if strings.Contains(rec.Body.String(), "secret-token-1") {
		t.Error("response must not contain session tokens")
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(resp))
	}
	if resp[0]["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", resp[0]["user_id"])
	}
}

func TestSiteHandler_CleanupSessions_ReturnsDeletedCount(t *testing.T) {
	cleaner := &stubCleaner{
		cleanupFn: func(_ context.Context, siteName string) (int64, error) {
			if siteName != "tokyo" {
				t.Errorf("site name = %q, want %q", siteName, "tokyo")
			}
			return 4, nil
		},
	}
	h := NewSiteHandler(&stubSiteService{}, cleaner)

	req := httptest.NewRequest(http.MethodPost, "/api/sites/tokyo/cleanup-sessions", nil)
	req = withChiURLParam(req, "name", "tokyo")
	rec := httptest.NewRecorder()

	h.CleanupSessions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["deleted"] != 4 {
		t.Errorf("deleted = %d, want 4", resp["deleted"])
	}
}
