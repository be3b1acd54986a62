package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zxq-mioya/jp-tutor-ai/internal/kb"
	"github.com/zxq-mioya/jp-tutor-ai/internal/service"
	"github.com/zxq-mioya/jp-tutor-ai/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service) {
	t.Helper()
	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	svc := service.New(st, kb.Parse(kb.BaseDocument))
	return NewHandler(svc), svc
}

func TestCreateSessionEmptyBodyUsesDefaults(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	h.createSession(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response error = %v", err)
	}
	sessionID, _ := resp["id"].(string)
	if strings.TrimSpace(sessionID) == "" {
		t.Fatalf("expected session id in response, got %v", resp)
	}
	config, _ := resp["config"].(map[string]any)
	if config["level"] != "N3" {
		t.Fatalf("expected default level N3, got %v", config)
	}
}

func TestCreateSessionInvalidLevelReturns400(t *testing.T) {
	h, _ := newTestHandler(t)

	payload, _ := json.Marshal(map[string]any{"level": "N9"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.createSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestExchangeUnavailableReturns503(t *testing.T) {
	h, svc := newTestHandler(t)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	payload, _ := json.Marshal(map[string]any{"text": "こんにちは"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+session.ID+"/exchange", bytes.NewReader(payload))
	req.SetPathValue("id", session.ID)
	rec := httptest.NewRecorder()
	h.exchange(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response error = %v", err)
	}
	if got := resp["error"]; got != service.ErrLLMUnavailable.Error() {
		t.Fatalf("expected error %q, got %q", service.ErrLLMUnavailable.Error(), got)
	}
}

func TestExchangeUnknownSessionReturns404(t *testing.T) {
	h, _ := newTestHandler(t)

	payload, _ := json.Marshal(map[string]any{"text": "こんにちは"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/missing/exchange", bytes.NewReader(payload))
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.exchange(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusNotFound, rec.Code, rec.Body.String())
	}
}

func TestExchangeEmptyTextReturns400(t *testing.T) {
	h, svc := newTestHandler(t)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	payload, _ := json.Marshal(map[string]any{"text": "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+session.ID+"/exchange", bytes.NewReader(payload))
	req.SetPathValue("id", session.ID)
	rec := httptest.NewRecorder()
	h.exchange(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestSessionDetailNotFoundReturns404(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.sessionDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusNotFound, rec.Code, rec.Body.String())
	}
}

func TestMistakesRejectsNonNumericLimit(t *testing.T) {
	h, svc := newTestHandler(t)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+session.ID+"/mistakes?limit=abc", nil)
	req.SetPathValue("id", session.ID)
	rec := httptest.NewRecorder()
	h.mistakes(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestUpdateConfigInvalidToneReturns400(t *testing.T) {
	h, svc := newTestHandler(t)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	payload, _ := json.Marshal(map[string]any{"tone": "rude"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/"+session.ID+"/config", bytes.NewReader(payload))
	req.SetPathValue("id", session.ID)
	rec := httptest.NewRecorder()
	h.updateConfig(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d, body=%s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}
