package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/metrics"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
	"github.com/harentsoaR/diagnosia-api/internal/repository/memory"
	"github.com/harentsoaR/diagnosia-api/internal/services"
	"github.com/harentsoaR/diagnosia-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, _, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("provider down")
	}
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeAnalyzer struct {
	err        error
	lastPrompt string
	lastImage  services.ImageInput
}

func (f *fakeAnalyzer) reply(prompt string) (*services.Analysis, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &services.Analysis{Role: "assistant", Content: "Consulte a un médico. " + prompt}, nil
}

func (f *fakeAnalyzer) AnalyzeText(_ context.Context, prompt string) (*services.Analysis, error) {
	return f.reply(prompt)
}

func (f *fakeAnalyzer) AnalyzeSymptoms(_ context.Context, symptoms string) (*services.Analysis, error) {
	return f.reply(symptoms)
}

func (f *fakeAnalyzer) AnalyzeImage(_ context.Context, img services.ImageInput, prompt string) (*services.Analysis, error) {
	f.lastImage = img
	return f.reply(prompt)
}

func (f *fakeAnalyzer) AnalyzeDocument(_ context.Context, text string) (*services.Analysis, error) {
	return f.reply(text)
}

func (f *fakeAnalyzer) Chat(_ context.Context, _ []services.ChatMessage, message string) (*services.Analysis, error) {
	return f.reply(message)
}

type fakeStore struct {
	keys []string
}

func (f *fakeStore) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	f.keys = append(f.keys, key)
	return "https://files.example.com/" + key, nil
}

type testAPI struct {
	t        *testing.T
	router   *gin.Engine
	repos    repository.Repositories
	tokens   *utils.TokenService
	sender   *fakeSender
	analyzer *fakeAnalyzer
	store    *fakeStore
}

func newTestAPI(t *testing.T, devMode bool) *testAPI {
	t.Helper()
	return newTestAPIWith(t, devMode, nil)
}

// newTestAPIWith lets a test adjust the router collaborators before the engine is built.
func newTestAPIWith(t *testing.T, devMode bool, adjust func(*RouterDeps)) *testAPI {
	t.Helper()
	log := logging.Discard()
	api := &testAPI{
		t:        t,
		repos:    memory.New(),
		tokens:   utils.NewTokenService("handler-secret", time.Hour),
		sender:   &fakeSender{},
		analyzer: &fakeAnalyzer{},
		store:    &fakeStore{},
	}
	m := metrics.New(nil)
	notifier := services.NewNotificationService(api.sender, time.UTC, log, m)

	h := NewHandler(Services{
		Auth:         services.NewAuthService(api.repos.Users, api.tokens, notifier, log),
		Appointments: services.NewAppointmentService(api.repos.Users, api.repos.Appointments, notifier, nil, time.UTC, log),
		History:      services.NewMedicalHistoryService(api.repos.MedicalHistory, api.repos.Appointments, api.repos.Users, api.store, api.analyzer, log),
		Analyzer:     api.analyzer,
	}, Options{DevMode: devMode, MaxUploadBytes: 1 << 20}, log)

	deps := RouterDeps{
		Tokens:  api.tokens,
		Users:   api.repos.Users,
		Metrics: m,
	}
	if adjust != nil {
		adjust(&deps)
	}
	api.router = NewRouter(h, deps)
	return api
}

// seedUser stores a verified user and returns it with a session token.
func (a *testAPI) seedUser(role models.Role, first, phone string) (*models.User, string) {
	a.t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(a.t, err)
	u := &models.User{
		ID:         primitive.NewObjectID(),
		Role:       role,
		FirstName:  first,
		LastName:   "Test",
		Phone:      phone,
		Password:   hash,
		IsVerified: true,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if role == models.RoleDoctor {
		u.Specialty = "cardiología"
	}
	require.NoError(a.t, a.repos.Users.Create(context.Background(), u))
	token, err := a.tokens.Issue(u.ID.Hex())
	require.NoError(a.t, err)
	return u, token
}

func (a *testAPI) request(method, path, token, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) json(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	return a.request(method, path, token, "application/json", r)
}

type result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    *models.Profile `json:"user"`
	Code    string          `json:"code"`
	Detail  string          `json:"detail"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var res result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	res := decode(t, rec)
	require.True(t, res.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(res.Data, &out))
	return out
}
