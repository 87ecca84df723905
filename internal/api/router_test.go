package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/kokorotts/internal/auth"
	"github.com/nikhilbhutani/kokorotts/internal/models"
	"github.com/nikhilbhutani/kokorotts/internal/tts"
	"github.com/nikhilbhutani/kokorotts/internal/users"
)

const testOrigin = "http://localhost:5173"

var testOrigins = []string{"https://tts.example.com", testOrigin}

type stubSynth struct {
	err error
}

func (s *stubSynth) Name() string { return "stub" }

func (s *stubSynth) Synthesize(_ context.Context, req tts.Request) error {
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(req.DestPath, []byte("RIFF"), 0o644)
}

type testServer struct {
	handler http.Handler
	repo    *users.MemoryRepository
	synth   *stubSynth
}

func newTestServer(t *testing.T, opts ...func(*Deps)) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := users.NewMemoryRepository()
	synth := &stubSynth{}

	inv, err := tts.NewInvoker(synth, tts.InvokerConfig{
		OutputDir: t.TempDir(),
		Voice:     "ff_siwis",
		Speed:     1.0,
		Timeout:   5 * time.Second,
	}, logger)
	require.NoError(t, err)

	svc := auth.NewService(repo, auth.NewTokenIssuer("test-secret", time.Hour), logger)
	deps := Deps{
		Users:          repo,
		Auth:           svc,
		Invoker:        inv,
		History:        repo,
		Probe:          func() (string, error) { return "/usr/bin/python", nil },
		AllowedOrigins: testOrigins,
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	rt := NewRouter(deps)
	return &testServer{handler: rt.Setup(), repo: repo, synth: synth}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_HealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kokoro TTS API", decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "available", body["tts_tool"])

	rec = s.do(t, http.MethodHead, "/healthy", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	assertCORS(t, rec)
}

func TestRouter_SynthesizeSuccessAndServe(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/tts", map[string]string{"text": "  Bonjour le monde  "}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertCORS(t, rec)

	audio, _ := decodeBody(t, rec)["audio_file"].(string)
	assert.Regexp(t, `^/outputs/output_[0-9a-f]{32}\.wav$`, audio)

	rec = s.do(t, http.MethodGet, audio, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RIFF", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/outputs/", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "directory listing must be refused")
}

func TestRouter_SynthesizeStatuses(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		err    error
		status int
		detail string
	}{
		{name: "empty text", body: map[string]string{"text": "   "}, status: http.StatusBadRequest, detail: "Le texte ne peut pas être vide."},
		{name: "too long", body: map[string]string{"text": strings.Repeat("a", 501)}, status: http.StatusUnprocessableEntity},
		{name: "missing text", body: map[string]string{}, status: http.StatusUnprocessableEntity},
		{name: "bad json", body: "{", status: http.StatusUnprocessableEntity},
		{name: "timeout", body: map[string]string{"text": "hi"}, err: &tts.SynthesisError{Kind: tts.ErrTimeout}, status: http.StatusGatewayTimeout},
		{name: "killed", body: map[string]string{"text": "hi"}, err: &tts.SynthesisError{Kind: tts.ErrKilled, ExitCode: 137}, status: http.StatusInternalServerError},
		{name: "process failed", body: map[string]string{"text": "hi"}, err: &tts.SynthesisError{Kind: tts.ErrProcessFailed, ExitCode: 1}, status: http.StatusInternalServerError, detail: "La génération audio a échoué."},
		{name: "untyped failure", body: map[string]string{"text": "hi"}, err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.synth.err = tc.err

			rec := s.do(t, http.MethodPost, "/tts", tc.body, "")
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assertCORS(t, rec)

			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["detail"])
			if tc.detail != "" {
				assert.Equal(t, tc.detail, body["detail"])
			}
		})
	}
}

func TestRouter_AccountFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "short1!",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["detail"])

	rec = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "longenough1!", "name": "Alice",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotContains(t, rec.Body.String(), "hashed_password")

	rec = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "longenough1!",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrongpass1!",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "longenough1!",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeBody(t, rec)["access_token"].(string)
	require.NotEmpty(t, token)

	rec = s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])

	rec = s.do(t, http.MethodPut, "/api/auth/preferences", map[string]any{"default_speed": 1.5}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prefs, _ := decodeBody(t, rec)["preferences"].(map[string]any)
	assert.Equal(t, 1.5, prefs["default_speed"])

	rec = s.do(t, http.MethodPut, "/api/auth/preferences", map[string]any{"theme": "dark"}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/favorite-voice/ff_siwis", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/auth/favorite-voice/ff_siwis", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"ff_siwis"}, decodeBody(t, rec)["favorite_voices"])

	rec = s.do(t, http.MethodPost, "/api/auth/favorite-voice/bad%20voice", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ProtectedRoutesRejectBadTokens(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertCORS(t, rec)

	rec = s.do(t, http.MethodGet, "/api/auth/me", nil, "not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestRouter_InactiveUserForbidden(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "bob@example.com", "password": "longenough1!",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	token := body["access_token"].(string)
	id := int64(body["user"].(map[string]any)["id"].(float64))

	require.NoError(t, s.repo.SetActive(id, false))

	rec = s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "bob@example.com", "password": "longenough1!",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type failingHistory struct{}

func (failingHistory) RecordHistory(context.Context, int64, models.HistoryEntry) error {
	return errors.New("queue unavailable")
}

func TestRouter_SynthesizeBearerNeverChangesStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "carol@example.com", "password": "longenough1!",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	token := body["access_token"].(string)
	id := int64(body["user"].(map[string]any)["id"].(float64))

	for i := 0; i < 3; i++ {
		rec = s.do(t, http.MethodPost, "/tts", map[string]string{"text": "Salut"}, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	u, err := s.repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, u.History, 3)
	assert.Equal(t, "Salut", u.History[0].Text)
	assert.Equal(t, "ff_siwis", u.History[0].Voice)

	rec = s.do(t, http.MethodPost, "/tts", map[string]string{"text": "Anonyme"}, "garbage")
	assert.Equal(t, http.StatusOK, rec.Code, "an invalid token on /tts is ignored")

	require.NoError(t, s.repo.SetActive(id, false))
	rec = s.do(t, http.MethodPost, "/tts", map[string]string{"text": "Inactif"}, token)
	assert.Equal(t, http.StatusOK, rec.Code, "an inactive account on /tts is ignored")

	rec = s.do(t, http.MethodPost, "/tts", map[string]string{"text": " "}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_SynthesizeHistoryFailureIsIgnored(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.History = failingHistory{} })

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "dave@example.com", "password": "longenough1!",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeBody(t, rec)["access_token"].(string)

	rec = s.do(t, http.MethodPost, "/tts", map[string]string{"text": "Salut"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody(t, rec)["audio_file"])
}

func TestRouter_RegisterOverlongFields(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": strings.Repeat("a", 300) + "@example.com", "password": "longenough1!",
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "Adresse email invalide", decodeBody(t, rec)["detail"])

	rec = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "eve@example.com", "password": "longenough1!", "name": strings.Repeat("n", 400),
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assertCORS(t, rec)
}

func TestRouter_Preflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/tts", nil)
	req.Header.Set("Origin", "https://unknown.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testOrigins[0], rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeBody(t, rec)["detail"])
	assertCORS(t, rec)
}
