package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"notifyhub/internal/config"
	"notifyhub/internal/database"
	"notifyhub/internal/metrics"
	"notifyhub/internal/models"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLiteMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		Mode:                "test",
		CORSAllowedOrigins:  []string{"*"},
		AccessTokenTTL:      2 * time.Hour,
		RefreshTokenTTL:     24 * time.Hour,
		LoginRateLimit:      100,
		LoginRateWindow:     time.Minute,
		AdminUsername:       "admin",
		AdminPassword:       "admin",
		LineAPITimeout:      time.Second,
		WebhookDedupEnabled: true,
		DefaultMessageQuota: 100,
		ActivityLogExclude:  []string{"/health", "/metrics", "/api/activity-logs"},
	}
	require.NoError(t, services.NewUserService(db, cfg).EnsureAdmin(context.Background()))

	h := NewHandler(Dependencies{Config: cfg, DB: db, Metrics: metrics.New()})
	t.Cleanup(h.Close)

	return &testServer{router: NewRouter(h), db: db}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`

	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	Processed   int          `json:"processed"`
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, apiResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func (s *testServer) login(t *testing.T, username, password string) apiResponse {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, "/api/auth/login", "",
		`{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.NotEmpty(t, resp.AccessToken)
	return resp
}

func TestRouter_LoginAndCustomers(t *testing.T) {
	s := newTestServer(t)

	session := s.login(t, "admin", "admin")
	require.NotNil(t, session.User)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
	assert.True(t, session.Success)

	code, resp := s.do(t, http.MethodGet, "/api/auth/me", session.AccessToken, "")
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.User)
	assert.Equal(t, "admin", resp.User.Username)

	code, resp = s.do(t, http.MethodPost, "/api/customers", session.AccessToken,
		`{"line_uid":"U_TEST_NEW","custom_name":"測試員"}`)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	code, resp = s.do(t, http.MethodGet, "/api/customers", session.AccessToken, "")
	require.Equal(t, http.StatusOK, code)
	var customers []services.CustomerView
	require.NoError(t, json.Unmarshal(resp.Data, &customers))
	require.Len(t, customers, 1)
	assert.Equal(t, "U_TEST_NEW", customers[0].LineUID)
	assert.Equal(t, "測試員", customers[0].CustomName)

	code, resp = s.do(t, http.MethodPost, "/api/customers", session.AccessToken,
		`{"line_uid":"U_TEST_NEW","custom_name":"again"}`)
	assert.Equal(t, http.StatusConflict, code, resp.Message)
	assert.False(t, resp.Success)
}

func TestRouter_AccessControl(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodGet, "/api/customers", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)

	code, _ = s.do(t, http.MethodGet, "/api/customers", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	admin := s.login(t, "admin", "admin")
	code, resp = s.do(t, http.MethodPost, "/api/users", admin.AccessToken,
		`{"username":"alice","password":"password1"}`)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	alice := s.login(t, "alice", "password1")
	assert.Equal(t, models.RoleUser, alice.User.Role)

	for _, path := range []string{"/api/user-applications", "/api/activity-logs", "/api/users", "/api/settings/global"} {
		code, _ = s.do(t, http.MethodGet, path, alice.AccessToken, "")
		assert.Equal(t, http.StatusForbidden, code, path)
	}

	code, _ = s.do(t, http.MethodGet, "/api/templates", alice.AccessToken, "")
	assert.Equal(t, http.StatusOK, code)

	// Logged out tokens stop working
	code, _ = s.do(t, http.MethodPost, "/api/auth/logout", alice.AccessToken, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/templates", alice.AccessToken, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_Webhook(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin")

	body := `{"destination":"U0","events":[{"type":"message","webhookEventId":"evt-1","timestamp":1700000000000,
		"source":{"type":"user","userId":"U_WEBHOOK"},"message":{"id":"1","type":"text","text":"hello"}}]}`

	code, resp := s.do(t, http.MethodPost, "/api/webhook?key="+admin.User.WebhookKey, "", body)
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, 1, resp.Processed)

	// Redelivery is acknowledged without storing a second message
	code, resp = s.do(t, http.MethodPost, "/api/webhook?key="+admin.User.WebhookKey, "", body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, resp.Processed)

	var messages []models.Message
	require.NoError(t, s.db.Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, admin.User.ID, messages[0].UserID)

	code, _ = s.do(t, http.MethodPost, "/api/webhook?key=unknown", "", body)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/webhook?key="+admin.User.WebhookKey, "", "not json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouter_ActivityLogRedactsPasswords(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "admin", "admin")

	code, _ := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)

	var entries []models.ActivityLog
	require.NoError(t, s.db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/auth/login", entries[0].Path)
	assert.Equal(t, http.StatusOK, entries[0].StatusCode)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, "admin", entries[0].Username)
	assert.NotContains(t, entries[0].RequestBody, `"password":"admin"`)
	assert.Contains(t, entries[0].RequestBody, `"password":"***"`)
}

func TestRouter_FailedLoginHasNoActor(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, code)

	var entry models.ActivityLog
	require.NoError(t, s.db.Where("path = ?", "/api/auth/login").First(&entry).Error)
	assert.Nil(t, entry.UserID)
	assert.Empty(t, entry.Username)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/customers", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_QuotaExhausted(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin")

	code, resp := s.do(t, http.MethodPost, "/api/users", admin.AccessToken,
		`{"username":"shop","password":"password1","message_quota":5}`)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var shop models.User
	require.NoError(t, json.Unmarshal(resp.Data, &shop))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.db.Create(&models.Message{
			UserID:     shop.ID,
			CustomerID: 1,
			Sender:     models.SenderSystem,
			Status:     models.MessageStatusSent,
		}).Error)
	}

	session := s.login(t, "shop", "password1")
	code, resp = s.do(t, http.MethodGet, "/api/stats", session.AccessToken, "")
	require.Equal(t, http.StatusOK, code)

	var stats services.Stats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 5, stats.MessageQuota)
	assert.EqualValues(t, 5, stats.Used)
	assert.EqualValues(t, 0, stats.Remaining)

	// Admins can look at another tenant's numbers
	code, resp = s.do(t, http.MethodGet, "/api/stats?user_id="+strconv.Itoa(int(shop.ID)), admin.AccessToken, "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.EqualValues(t, 0, stats.Remaining)
}

func (s *testServer) upload(t *testing.T, token, filename string, data []byte) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/import-preview", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func TestRouter_ImportPreviewXLS(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin")

	code, resp := s.do(t, http.MethodPost, "/api/customers", admin.AccessToken, `{"line_uid":"U1","custom_name":"Amy"}`)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	data, err := os.ReadFile(filepath.Join("..", "services", "testdata", "customers.xls"))
	require.NoError(t, err)

	code, body := s.upload(t, admin.AccessToken, "customers.xls", data)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []interface{}{"Name", "Order", "Note"}, body["headers"])
	matched := body["matched"].([]interface{})
	require.Len(t, matched, 1)
	assert.Equal(t, "U1", matched[0].(map[string]interface{})["line_uid"])
	assert.Equal(t, []interface{}{"測試員", "Dan"}, body["unmatched"])

	code, body = s.upload(t, admin.AccessToken, "broken.xls", []byte("definitely not an xls file"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "failed to parse spreadsheet: ")
}
