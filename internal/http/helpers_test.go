package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"blog-platform/internal/domain"
	"blog-platform/internal/repository"
	"blog-platform/internal/service"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func copyUser(u domain.User) domain.User {
	u.RefreshTokens = append([]domain.RefreshToken{}, u.RefreshTokens...)
	return u
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.usersByID {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	m.usersByID[user.ID] = copyUser(user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return copyUser(user), nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.usersByID {
		if strings.EqualFold(user.Email, email) {
			return copyUser(user), nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.usersByID[user.ID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	if stored.Version != user.Version {
		return domain.User{}, repository.ErrVersionConflict
	}
	user.Version++
	m.usersByID[user.ID] = copyUser(user)
	return copyUser(user), nil
}

func (m *mockUserRepo) setRole(id string, role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.usersByID[id]
	user.Role = role
	m.usersByID[id] = user
}

type mockEmailSender struct {
	err       error
	lastTo    string
	lastLink  string
	lastKind  string
	sentCount int
}

func (m *mockEmailSender) Enabled() bool { return true }

func (m *mockEmailSender) SendWelcome(_ context.Context, toEmail, _ string) error {
	m.record(toEmail, "", "welcome")
	return m.err
}

func (m *mockEmailSender) SendEmailVerification(_ context.Context, toEmail, _, link string, _ time.Time) error {
	m.record(toEmail, link, "verification")
	return m.err
}

func (m *mockEmailSender) SendPasswordReset(_ context.Context, toEmail, _, link string, _ time.Time) error {
	m.record(toEmail, link, "reset")
	return m.err
}

func (m *mockEmailSender) record(to, link, kind string) {
	m.lastTo = to
	m.lastLink = link
	m.lastKind = kind
	m.sentCount++
}

type mockPostRepo struct {
	mu    sync.Mutex
	posts map[string]domain.Post
}

func (m *mockPostRepo) Create(_ context.Context, post domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id string) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return domain.Post{}, pgx.ErrNoRows
	}
	return post, nil
}

func (m *mockPostRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.posts, id)
	return nil
}

type mockCommentRepo struct {
	mu       sync.Mutex
	comments []domain.Comment
}

func (m *mockCommentRepo) Create(_ context.Context, comment domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, comment)
	return nil
}

func (m *mockCommentRepo) ListByPostID(_ context.Context, postID string) ([]domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockCommentEvents struct {
	mu    sync.Mutex
	count int
}

func (m *mockCommentEvents) CommentCreated(domain.Post, domain.Comment, domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
}

type testApp struct {
	router *gin.Engine
	users  *mockUserRepo
	posts  *mockPostRepo
	sender *mockEmailSender
	events *mockCommentEvents
	auth   *service.AuthService
	tokens *service.TokenService
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	users := newMockUserRepo()
	posts := &mockPostRepo{posts: make(map[string]domain.Post)}
	sender := &mockEmailSender{}
	events := &mockCommentEvents{}
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	})
	auth := service.NewAuthService(logger, users, tokens, sender, nil, service.AuthConfig{AppBaseURL: "http://app.test"})
	postSvc := service.NewPostService(logger, posts, &mockCommentRepo{}, events)

	r := NewRouter(logger, NewAuthGate(logger, auth), NewAuthHandler(logger, auth), NewPostHandler(logger, postSvc), nil)
	return &testApp{router: r, users: users, posts: posts, sender: sender, events: events, auth: auth, tokens: tokens}
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	return performAuthRequest(r, method, path, body, "")
}

func performAuthRequest(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	User         domain.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func (a *testApp) register(t *testing.T, name, email string) authBody {
	t.Helper()
	rec := performRequest(a.router, http.MethodPost, "/api/auth/register", map[string]string{
		"name":             name,
		"email":            email,
		"password":         "Password1!",
		"confirm_password": "Password1!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[authBody](t, rec)
}
