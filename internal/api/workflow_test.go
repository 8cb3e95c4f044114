package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"healthtracker-doctors/internal/api"
	"healthtracker-doctors/internal/config"
	"healthtracker-doctors/internal/conversation"
	"healthtracker-doctors/internal/messaging"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/repository"
	"healthtracker-doctors/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "test-secret"
	mehmetUserID  = "b2f4d6e8-1111-4a2b-9c3d-000000000001"
	zeynepUserID  = "b2f4d6e8-2222-4a2b-9c3d-000000000002"
	unknownUserID = "b2f4d6e8-9999-4a2b-9c3d-000000000009"
)

type testServer struct {
	router *gin.Engine
	store  *repository.Memory
	token  string
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func setupTestServer(t *testing.T, edit func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Supabase: config.SupabaseConfig{JWTSecret: testSecret},
		Messaging: config.MessagingConfig{
			PageSize:     50,
			LoadLimit:    100,
			RecheckDelay: time.Hour,
		},
		RateLimit: config.RateLimitConfig{SendRPS: 100, SendBurst: 100},
		DemoMode:  true,
	}
	if edit != nil {
		edit(cfg)
	}

	store := repository.NewSeededMemory(time.Now())
	gw := messaging.NewGateway(store, cfg.Messaging.PageSize)
	sessions := session.NewRegistry(gw, nil, session.Options{
		Conversation: conversation.Options{LoadLimit: cfg.Messaging.LoadLimit, Location: time.UTC},
		RecheckDelay: cfg.Messaging.RecheckDelay,
	})

	router := gin.New()
	api.SetupRoutes(router, api.Deps{Gateway: gw, Sessions: sessions}, cfg)

	return &testServer{
		router: router,
		store:  store,
		token:  signToken(t, testSecret, repository.DemoDoctorUserID),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, s.token, method, path, body)
}

func (s *testServer) doAs(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

type unreadResponse struct {
	Conversations []models.PatientWithLastMessage `json:"conversations"`
	TotalUnread   int                             `json:"total_unread"`
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupTestServer(t, nil)

	w := s.doAs(t, "", http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = s.doAs(t, "", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthtracker_active_conversations")
}

func TestAuthRequired(t *testing.T) {
	s := setupTestServer(t, nil)

	w := s.doAs(t, "", http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.doAs(t, signToken(t, "other-secret", repository.DemoDoctorUserID), http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A patient account has no doctor record.
	w = s.doAs(t, signToken(t, testSecret, mehmetUserID), http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var d models.DoctorProfile
	decode(t, w, &d)
	assert.Equal(t, repository.DemoDoctorID, d.ID)
}

func TestDemoModeMountsMessagingOnly(t *testing.T) {
	s := setupTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/patients", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/messages/types", nil).Code)
}

func TestDashboard(t *testing.T) {
	s := setupTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/dashboard/patients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.PatientWithLastMessage
	decode(t, w, &all)
	assert.Len(t, all, 3)

	w = s.do(t, http.MethodGet, "/api/v1/dashboard/unread", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var unread unreadResponse
	decode(t, w, &unread)
	assert.Equal(t, 3, unread.TotalUnread)
	require.Len(t, unread.Conversations, 2)
	assert.Equal(t, "Mehmet", unread.Conversations[0].Name)
	assert.Equal(t, 1, unread.Conversations[0].UnreadCount)

	w = s.do(t, http.MethodGet, "/api/v1/dashboard/new-messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_new":true`)

	since := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w = s.do(t, http.MethodGet, "/api/v1/dashboard/new-messages?since="+since, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_new":false`)

	w = s.do(t, http.MethodGet, "/api/v1/dashboard/new-messages?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationPage(t *testing.T) {
	s := setupTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/messages/conversations/"+mehmetUserID+"?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.ConversationPage
	decode(t, w, &page)
	assert.Equal(t, 4, page.TotalCount)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Messages, 2)

	w = s.do(t, http.MethodGet, "/api/v1/messages/conversations/"+mehmetUserID+"?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/messages/newer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/messages/newer?other_user_id="+mehmetUserID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_newer":true`)
}

func TestChatWorkflow(t *testing.T) {
	s := setupTestServer(t, nil)

	// 1. Open the conversation with Zeynep
	w := s.do(t, http.MethodPost, "/api/v1/chat/open", gin.H{"patient_user_id": zeynepUserID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap conversation.Snapshot
	decode(t, w, &snap)
	assert.Equal(t, conversation.StatusLoaded, snap.Status)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, models.SenderSystem, snap.Messages[0].Type)
	assert.Equal(t, models.SenderPatient, snap.Messages[1].Type)
	require.NotNil(t, snap.Participant)
	assert.Equal(t, "Zeynep Kaya", snap.Participant.Name)
	assert.NotEmpty(t, snap.MessageTypes)

	// Opening marks her messages read.
	var unread unreadResponse
	decode(t, s.do(t, http.MethodGet, "/api/v1/dashboard/unread", nil), &unread)
	assert.Equal(t, 1, unread.TotalUnread)

	// 2. Send a reply
	w = s.do(t, http.MethodPost, "/api/v1/chat/active/messages", gin.H{"content": "Yes, keep the same schedule."})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent struct {
		Message      models.MessageBubble  `json:"message"`
		Conversation conversation.Snapshot `json:"conversation"`
	}
	decode(t, w, &sent)
	assert.True(t, sent.Message.IsOwn)
	assert.Equal(t, models.StatusSent, sent.Message.Status)
	require.Len(t, sent.Conversation.Messages, 3)
	assert.Equal(t, sent.Message.ID, sent.Conversation.Watermark)

	// 3. The patient answers; focusing the screen picks it up
	s.store.AddMessage(models.Message{
		SenderUserID:   zeynepUserID,
		ReceiverUserID: repository.DemoDoctorUserID,
		Content:        "Thank you!",
	})

	w = s.do(t, http.MethodPost, "/api/v1/chat/active/focus", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &snap)
	require.Len(t, snap.Messages, 4)
	last := snap.Messages[3]
	assert.Equal(t, "Thank you!", last.Content)
	assert.Equal(t, models.SenderPatient, last.Type)
	assert.False(t, last.IsOwn)

	decode(t, s.do(t, http.MethodGet, "/api/v1/dashboard/unread", nil), &unread)
	assert.Equal(t, 1, unread.TotalUnread)

	// 4. Leave the screen
	w = s.do(t, http.MethodDelete, "/api/v1/chat/active", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	decode(t, s.do(t, http.MethodGet, "/api/v1/chat/active", nil), &snap)
	assert.Equal(t, conversation.StatusIdle, snap.Status)
	assert.Empty(t, snap.Messages)
}

func TestChatErrors(t *testing.T) {
	s := setupTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/chat/active/focus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/chat/active/messages", gin.H{"content": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/chat/open", gin.H{"patient_user_id": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/chat/open", gin.H{"patient_user_id": unknownUserID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendIsRateLimited(t *testing.T) {
	s := setupTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{SendRPS: 0.01, SendBurst: 1}
	})

	w := s.do(t, http.MethodPost, "/api/v1/chat/open", gin.H{"patient_user_id": mehmetUserID})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/chat/active/messages", gin.H{"content": "first"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/chat/active/messages", gin.H{"content": "second"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
