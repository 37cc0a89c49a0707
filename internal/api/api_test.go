package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/audioscribe/adapters"
	"github.com/satriahrh/audioscribe/adapters/codec"
	"github.com/satriahrh/audioscribe/adapters/scratch"
	"github.com/satriahrh/audioscribe/adapters/stt"
	"github.com/satriahrh/audioscribe/domain/repositories"
	"github.com/satriahrh/audioscribe/internal/auth"
	"github.com/satriahrh/audioscribe/usecase"
)

type testServer struct {
	echo       *echo.Echo
	scratchDir string
	sessions   *adapters.MemorySessionRepository
}

func newTestServer(t *testing.T, provider repositories.SpeechToText) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	dir := filepath.Join(t.TempDir(), "temp_audio")
	store := scratch.NewStore(dir, logger)
	transcriber := usecase.NewTranscriptionService(provider, logger)
	batch := usecase.NewBatchService(transcriber, codec.NewFFmpeg("", logger), store, nil, usecase.BatchConfig{Workers: 2}, logger)
	sessions := adapters.NewMemorySessionRepository(logger)

	e := echo.New()
	InitRoutes(e, Dependencies{
		Batch:          batch,
		Sessions:       sessions,
		Tokens:         auth.NewTokenManager("test-secret", time.Hour),
		MaxUploadBytes: 1 << 20,
		SessionTTL:     time.Hour,
	}, logger)

	return &testServer{echo: e, scratchDir: dir, sessions: sessions}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) newSession(t *testing.T) SessionResponse {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("create session: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, token string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.data)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func authed(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func wav(size int) []byte {
	header := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	return append(header, make([]byte, size)...)
}

func decodeResults(t *testing.T, rec *httptest.ResponseRecorder) TranscriptionsResponse {
	t.Helper()
	var resp TranscriptionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON %s: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `<form id="upload">`) {
		t.Error("expected upload form")
	}
}

func TestIndex_MissingPrerequisite(t *testing.T) {
	s := newTestServer(t, stt.NewOpenAISpeechToText(stt.OpenAIConfig{}, zaptest.NewLogger(t)))
	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "OpenAI API key not found") {
		t.Error("expected prerequisite message")
	}
	if strings.Contains(body, `<form id="upload">`) {
		t.Error("upload form should be hidden")
	}
}

func TestTranscriptions_Flow(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	sess := s.newSession(t)

	rec := s.do(multipartRequest(t, sess.Token,
		upload{"a.wav", wav(2000)},
		upload{"b.wav", wav(20000)},
		upload{"notes.txt", []byte("hello")},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResults(t, rec)
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}

	var okKey string
	for key, r := range resp.Results {
		switch r.Name {
		case "a.wav":
			okKey = key
			if r.IsError || r.Text != "Hello there!" {
				t.Errorf("unexpected a.wav result %+v", r)
			}
		case "notes.txt":
			if !r.IsError {
				t.Errorf("text upload should fail, got %+v", r)
			}
		}
	}

	entries, _ := os.ReadDir(s.scratchDir)
	if len(entries) != 0 {
		t.Errorf("expected empty scratch dir, found %d files", len(entries))
	}

	// Results are kept in the session
	rec = s.do(authed(http.MethodGet, "/api/v1/transcriptions", sess.Token))
	if got := len(decodeResults(t, rec).Results); got != 3 {
		t.Errorf("expected 3 stored results, got %d", got)
	}

	// Download evicts
	target := "/api/v1/transcriptions/" + url.PathEscape(okKey) + "/download?format=txt"
	rec = s.do(authed(http.MethodGet, target, sess.Token))
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Hello there!" {
		t.Errorf("unexpected download body %q", rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "a_transcript.txt") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	rec = s.do(authed(http.MethodGet, target, sess.Token))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second download should be 404, got %d", rec.Code)
	}

	rec = s.do(authed(http.MethodGet, "/api/v1/transcriptions", sess.Token))
	if got := len(decodeResults(t, rec).Results); got != 2 {
		t.Errorf("expected 2 results after download, got %d", got)
	}

	// A new batch replaces everything
	rec = s.do(multipartRequest(t, sess.Token, upload{"c.wav", wav(10)}))
	if got := len(decodeResults(t, rec).Results); got != 1 {
		t.Errorf("expected 1 result in new batch, got %d", got)
	}
	rec = s.do(authed(http.MethodGet, "/api/v1/transcriptions", sess.Token))
	if got := len(decodeResults(t, rec).Results); got != 1 {
		t.Errorf("expected previous batch to be cleared, got %d", got)
	}
}

func TestTranscriptions_DownloadPDF(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	sess := s.newSession(t)

	resp := decodeResults(t, s.do(multipartRequest(t, sess.Token, upload{"talk.wav", wav(6000)})))
	var key string
	for k := range resp.Results {
		key = k
	}

	base := "/api/v1/transcriptions/" + url.PathEscape(key) + "/download"

	rec := s.do(authed(http.MethodGet, base+"?format=docx", sess.Token))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: expected 400, got %d", rec.Code)
	}

	rec = s.do(authed(http.MethodGet, base+"?format=pdf", sess.Token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Errorf("unexpected content type %s", rec.Header().Get(echo.HeaderContentType))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("expected a PDF body")
	}
}

func TestTranscriptions_Dismiss(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	sess := s.newSession(t)

	resp := decodeResults(t, s.do(multipartRequest(t, sess.Token, upload{"a.wav", wav(100)})))
	var key string
	for k := range resp.Results {
		key = k
	}

	target := "/api/v1/transcriptions/" + url.PathEscape(key)
	if rec := s.do(authed(http.MethodDelete, target, sess.Token)); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := s.do(authed(http.MethodDelete, target, sess.Token)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestTranscriptions_KeysWithReservedCharacters(t *testing.T) {
	names := []string{
		"100%.wav",
		"a%41.wav",
		"my file.wav",
		"a+b.wav",
		"a?b.wav",
		"x#y.wav",
		"ümlaut.wav",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
			sess := s.newSession(t)

			resp := decodeResults(t, s.do(multipartRequest(t, sess.Token,
				upload{name, wav(2000)},
				upload{"other.wav", wav(2000)},
			)))

			var key, otherKey string
			for k, r := range resp.Results {
				if r.Name == name {
					key = k
				} else {
					otherKey = k
				}
			}
			if key == "" {
				t.Fatalf("no result for %q in %+v", name, resp.Results)
			}

			target := "/api/v1/transcriptions/" + url.PathEscape(key)
			rec := s.do(authed(http.MethodGet, target+"/download", sess.Token))
			if rec.Code != http.StatusOK {
				t.Fatalf("download %q: expected 200, got %d: %s", key, rec.Code, rec.Body.String())
			}
			if rec.Body.String() != "Hello there!" {
				t.Errorf("unexpected download body %q", rec.Body.String())
			}
			if rec := s.do(authed(http.MethodDelete, target, sess.Token)); rec.Code != http.StatusNotFound {
				t.Errorf("downloaded key should be evicted, got %d", rec.Code)
			}

			rec = s.do(authed(http.MethodGet, "/api/v1/transcriptions", sess.Token))
			remaining := decodeResults(t, rec).Results
			if len(remaining) != 1 {
				t.Fatalf("expected only the other result to remain, got %+v", remaining)
			}
			if _, ok := remaining[otherKey]; !ok {
				t.Errorf("download of %q evicted the wrong key", key)
			}
		})
	}
}

func TestTranscriptions_DismissPercentName(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	sess := s.newSession(t)

	resp := decodeResults(t, s.do(multipartRequest(t, sess.Token, upload{"50%25.wav", wav(100)})))
	var key string
	for k := range resp.Results {
		key = k
	}

	target := "/api/v1/transcriptions/" + url.PathEscape(key)
	if rec := s.do(authed(http.MethodDelete, target, sess.Token)); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestTranscriptions_OverlappingBatches(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	sess := s.newSession(t)

	requests := []*http.Request{
		multipartRequest(t, sess.Token, upload{"first.wav", wav(2000)}),
		multipartRequest(t, sess.Token, upload{"second.wav", wav(2000)}),
	}

	var wg sync.WaitGroup
	codes := make([]int, len(requests))
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = s.do(req).Code
		}()
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Fatalf("batch %d: expected 200, got %d", i, code)
		}
	}

	rec := s.do(authed(http.MethodGet, "/api/v1/transcriptions", sess.Token))
	if got := len(decodeResults(t, rec).Results); got != 1 {
		t.Errorf("expected the results of exactly one batch, got %d", got)
	}
}

func TestTranscriptions_MissingPrerequisite(t *testing.T) {
	s := newTestServer(t, stt.NewOpenAISpeechToText(stt.OpenAIConfig{}, zaptest.NewLogger(t)))
	sess := s.newSession(t)

	rec := s.do(multipartRequest(t, sess.Token, upload{"a.wav", wav(100)}))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error != "missing_prerequisite" || !strings.Contains(resp.Message, "OPENAI_API_KEY") {
		t.Errorf("unexpected error response %+v", resp)
	}

	if _, err := os.Stat(s.scratchDir); !os.IsNotExist(err) {
		t.Error("no temp files should be created")
	}
}

func TestTranscriptions_BadRequests(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))
	sess := s.newSession(t)

	rec := s.do(multipartRequest(t, sess.Token))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "no_files") {
		t.Errorf("expected no_files, got %d %s", rec.Code, rec.Body.String())
	}

	req := authed(http.MethodPost, "/api/v1/transcriptions", sess.Token)
	if rec := s.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without multipart body, got %d", rec.Code)
	}

	rec = s.do(multipartRequest(t, sess.Token, upload{"huge.wav", wav(2 << 20)}))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "missing_token"},
		{"not bearer", "Basic abc", "missing_token"},
		{"invalid", "Bearer nope", "invalid_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/transcriptions", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := s.do(req)
			if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("expected 401 %s, got %d %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	// Valid token for a session that is gone
	sess := s.newSession(t)
	_ = s.sessions.Delete(context.Background(), sess.SessionID)
	rec := s.do(authed(http.MethodGet, "/api/v1/transcriptions", sess.Token))
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "session_expired") {
		t.Errorf("expected session_expired, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebsocket_Disabled(t *testing.T) {
	s := newTestServer(t, stt.NewMockSpeechToText(zaptest.NewLogger(t)))

	// Hub is not configured in the test server
	rec := s.do(httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without hub, got %d", rec.Code)
	}
}
