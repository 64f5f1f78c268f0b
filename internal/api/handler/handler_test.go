package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"matchchat/backend/internal/api/handler"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/chat"
	"matchchat/backend/internal/complaint"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/match"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/storage"
	"matchchat/backend/internal/storage/storagetest"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockMatches struct {
	mock.Mock
}

func (m *MockMatches) Like(ctx context.Context, from, to string) (*match.Result, error) {
	args := m.Called(ctx, from, to)
	res, _ := args.Get(0).(*match.Result)
	return res, args.Error(1)
}

func (m *MockMatches) Unlike(ctx context.Context, from, to string) error {
	return m.Called(ctx, from, to).Error(0)
}

type MockComplaints struct {
	mock.Mock
}

func (m *MockComplaints) File(ctx context.Context, in complaint.FileInput) (*models.Complaint, error) {
	args := m.Called(ctx, in)
	c, _ := args.Get(0).(*models.Complaint)
	return c, args.Error(1)
}

type fixture struct {
	router     *gin.Engine
	auth       *handler.Auth
	chats      *chat.Store
	matches    *MockMatches
	complaints *MockComplaints
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := new(storagetest.MockUserDirectory)
	for _, u := range []string{"A", "B", "C"} {
		users.ActiveUser(u)
	}
	f := &fixture{
		auth:       handler.NewAuth(config.JWTConfig{Secret: "test-secret", TTL: time.Hour}),
		chats:      chat.NewStore(storage.NewRedisStore(rdb), users, nil, time.Hour, nil),
		matches:    new(MockMatches),
		complaints: new(MockComplaints),
	}
	h := handler.NewHandler(nil, f.chats, f.matches, f.complaints, f.auth, nil)
	f.router = gin.New()
	h.Register(f.router)
	return f
}

func (f *fixture) do(t *testing.T, user, method, path string, body any) (*httptest.ResponseRecorder, apperr.Result[json.RawMessage]) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := f.auth.Issue(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var res apperr.Result[json.RawMessage]
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w, res
}

func TestAuth_RejectsMissingAndForeignTokens(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, "", http.MethodGet, "/api/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := handler.NewAuth(config.JWTConfig{Secret: "someone-else"})
	token, err := other.Issue("A")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_IssueAndParse(t *testing.T) {
	auth := handler.NewAuth(config.JWTConfig{Secret: "s"})

	token, err := auth.Issue("42")
	require.NoError(t, err)
	id, err := auth.Parse(token)

	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestLike_MapsResultAndErrors(t *testing.T) {
	f := newFixture(t)
	f.matches.On("Like", mock.Anything, "A", "B").Return(&match.Result{IsMatch: true, ChatID: "c1"}, nil).Once()
	f.matches.On("Like", mock.Anything, "A", "B").Return(nil, apperr.Conflict("match.Like", match.ErrAlreadyLiked)).Once()

	w, res := f.do(t, "A", http.MethodPost, "/api/likes/B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Success)
	assert.JSONEq(t, `{"isMatch":true,"chatId":"c1"}`, string(*res.Data))

	w, res = f.do(t, "A", http.MethodPost, "/api/likes/B", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"conflict"}, res.Errors)
	assert.Equal(t, "already liked", res.Message)
}

func TestMessages_SendListAndAuthorize(t *testing.T) {
	f := newFixture(t)
	chatID, err := f.chats.Create(context.Background(), "A", "B")
	require.NoError(t, err)
	base := "/api/chats/" + chatID

	w, _ := f.do(t, "A", http.MethodPost, base+"/messages", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, res := f.do(t, "B", http.MethodGet, base+"/messages?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.ChatMessage
	require.NoError(t, json.Unmarshal(*res.Data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)

	w, _ = f.do(t, "C", http.MethodGet, base+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, "B", http.MethodPost, base+"/read", map[string]string{"lastReadMessageId": msgs[0].ID})
	assert.Equal(t, http.StatusOK, w.Code)

	w, res = f.do(t, "B", http.MethodPost, base+"/read", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"invalid"}, res.Errors)

	w, _ = f.do(t, "B", http.MethodGet, "/api/chats/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessages_EditAndDelete(t *testing.T) {
	f := newFixture(t)
	chatID, err := f.chats.Create(context.Background(), "A", "B")
	require.NoError(t, err)
	msg, err := f.chats.AppendMessage(context.Background(), chat.AppendInput{ChatID: chatID, FromUser: "A", Text: "typo"})
	require.NoError(t, err)
	path := "/api/chats/" + chatID + "/messages/" + msg.ID

	w, _ := f.do(t, "B", http.MethodPatch, path, map[string]string{"text": "hijack"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, "A", http.MethodPatch, path, map[string]string{"text": "fixed"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, "A", http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, res := f.do(t, "B", http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.ChatMessage
	require.NoError(t, json.Unmarshal(*res.Data, &got))
	assert.True(t, got.IsDeleted)
	assert.Equal(t, config.DeletedMessageText, got.Text)
}

func TestListChats(t *testing.T) {
	f := newFixture(t)
	_, err := f.chats.Create(context.Background(), "A", "B")
	require.NoError(t, err)

	w, res := f.do(t, "A", http.MethodGet, "/api/chats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var previews []models.ChatPreview
	require.NoError(t, json.Unmarshal(*res.Data, &previews))
	require.Len(t, previews, 1)
	assert.Equal(t, "B", previews[0].PartnerID)
}

func TestFileComplaint(t *testing.T) {
	f := newFixture(t)
	f.complaints.On("File", mock.Anything, complaint.FileInput{ReporterID: "A", ChatID: "c1", Reason: "spam", Severity: "Low"}).
		Return(&models.Complaint{ComplaintID: "k1", Status: models.ComplaintPending}, nil)

	w, _ := f.do(t, "A", http.MethodPost, "/api/complaints", map[string]string{"chatId": "c1", "reason": "spam", "severity": "Low"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = f.do(t, "A", http.MethodPost, "/api/complaints", map[string]string{"reason": "no chat"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.complaints.AssertNumberOfCalls(t, "File", 1)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLogger_LogsStatusAndRoute(t *testing.T) {
	// Arrange
	core, logs := observer.New(zap.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.RequestLogger(zap.New(core)))
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	// Act
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things/42", nil))

	// Assert
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/things/:id", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
}
