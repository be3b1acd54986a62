package service_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zxq-mioya/jp-tutor-ai/internal/kb"
	"github.com/zxq-mioya/jp-tutor-ai/internal/llm"
	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
	"github.com/zxq-mioya/jp-tutor-ai/internal/service"
	"github.com/zxq-mioya/jp-tutor-ai/internal/store"
)

func TestCreateSessionDefaults(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.ID == "" {
		t.Fatalf("expected session id")
	}
	want := service.DefaultConfig()
	if session.Config != want {
		t.Fatalf("expected default config %+v, got %+v", want, session.Config)
	}
}

func TestCreateSessionRejectsInvalidLevel(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	level := "N9"
	_, err := svc.CreateSession(service.ConfigUpdate{Level: &level})
	if !errors.Is(err, service.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestUpdateConfigKeepsUnsetFields(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	level := "N2"
	useKB := false
	updated, err := svc.UpdateConfig(session.ID, service.ConfigUpdate{Level: &level, UseKB: &useKB})
	if err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if updated.Config.Level != "N2" {
		t.Fatalf("expected level N2, got %q", updated.Config.Level)
	}
	if updated.Config.UseKB {
		t.Fatalf("expected use_kb off")
	}
	if updated.Config.Topic != session.Config.Topic || updated.Config.Strictness != session.Config.Strictness {
		t.Fatalf("expected untouched fields to survive, got %+v", updated.Config)
	}
}

func TestUpdateConfigUnknownSession(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	level := "N2"
	_, err := svc.UpdateConfig("missing", service.ConfigUpdate{Level: &level})
	if !errors.Is(err, service.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExchangeRequiresText(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Exchange(service.ExchangeRequest{SessionID: "any", Text: "   "})
	if !errors.Is(err, service.ErrUserTextEmpty) {
		t.Fatalf("expected ErrUserTextEmpty, got %v", err)
	}
}

func TestExchangeUnknownSession(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Exchange(service.ExchangeRequest{SessionID: "missing", Text: "こんにちは"})
	if !errors.Is(err, service.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExchangeRequiresLLM(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	_, err = svc.Exchange(service.ExchangeRequest{SessionID: session.ID, Text: "こんにちは"})
	if !errors.Is(err, service.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}
}

func TestExchangeFlow(t *testing.T) {
	t.Parallel()
	svc, st := newTestService(t)

	var lastBody []byte
	server := newChatServer(t, validTurnContent(t, 62), &lastBody)
	defer server.Close()
	attachClient(t, svc, server)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	resp, err := svc.Exchange(service.ExchangeRequest{
		SessionID: session.ID,
		Text:      "昨日、学校をに行きました",
	})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if resp.Turn.ReplyJa == "" || resp.Turn.NextQuestionJa == "" {
		t.Fatalf("expected tutor reply, got %+v", resp.Turn)
	}
	if resp.Turn.FluencyScore != 62 {
		t.Fatalf("expected fluency 62, got %d", resp.Turn.FluencyScore)
	}
	if len(resp.Citations) == 0 || resp.Citations[0] != "KB02" {
		t.Fatalf("expected KB02 cited first, got %v", resp.Citations)
	}

	if !strings.Contains(string(lastBody), "KB02") {
		t.Fatalf("expected system prompt to carry the matched note, got %s", lastBody)
	}

	turns, err := st.RecentTurns(session.ID, 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 recorded turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Fatalf("expected user then assistant, got %+v", turns)
	}
	if turns[1].Content != resp.Turn.ReplyJa {
		t.Fatalf("expected assistant turn to store reply_ja")
	}

	mistakes, err := st.RecentMistakes(session.ID, 30)
	if err != nil {
		t.Fatalf("RecentMistakes() error = %v", err)
	}
	if len(mistakes) != 1 {
		t.Fatalf("expected 1 mistake entry, got %d", len(mistakes))
	}
	if mistakes[0].ErrorType != model.ErrorTypeParticle {
		t.Fatalf("expected particle mistake, got %q", mistakes[0].ErrorType)
	}
}

func TestExchangeSkipsKBWhenDisabled(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	var lastBody []byte
	server := newChatServer(t, validTurnContent(t, 70), &lastBody)
	defer server.Close()
	attachClient(t, svc, server)

	useKB := false
	session, err := svc.CreateSession(service.ConfigUpdate{UseKB: &useKB})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	resp, err := svc.Exchange(service.ExchangeRequest{
		SessionID: session.ID,
		Text:      "昨日、学校をに行きました",
	})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("expected no citations with KB off, got %v", resp.Citations)
	}
	if strings.Contains(string(lastBody), "## [KB02]") {
		t.Fatalf("expected no note excerpts with KB off")
	}
}

func TestExchangeRejectsOutOfRangeScore(t *testing.T) {
	t.Parallel()
	svc, st := newTestService(t)

	server := newChatServer(t, validTurnContent(t, 150), nil)
	defer server.Close()
	attachClient(t, svc, server)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	_, err = svc.Exchange(service.ExchangeRequest{SessionID: session.ID, Text: "こんにちは"})
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(vErr.Error(), "fluency_score") {
		t.Fatalf("expected fluency_score violation, got %v", vErr)
	}

	turns, err := st.RecentTurns(session.ID, 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no recorded turns after rejected reply, got %d", len(turns))
	}
}

func TestExchangeRejectsNonJSONReply(t *testing.T) {
	t.Parallel()
	svc, st := newTestService(t)

	server := newChatServer(t, "すみません、JSONでは出せません。", nil)
	defer server.Close()
	attachClient(t, svc, server)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	_, err = svc.Exchange(service.ExchangeRequest{SessionID: session.ID, Text: "こんにちは"})
	if !errors.Is(err, service.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}

	turns, err := st.RecentTurns(session.ID, 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no recorded turns, got %d", len(turns))
	}
}

func TestExchangeSendsBoundedHistory(t *testing.T) {
	t.Parallel()
	svc, st := newTestService(t)

	var lastBody []byte
	server := newChatServer(t, validTurnContent(t, 80), &lastBody)
	defer server.Close()
	attachClient(t, svc, server)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	var seed []model.ConversationTurn
	for i := 0; i < 7; i++ {
		seed = append(seed,
			model.ConversationTurn{Role: "user", Content: "古い発話"},
			model.ConversationTurn{Role: "assistant", Content: "古い返事"},
		)
	}
	if err := st.AppendTurns(session.ID, seed); err != nil {
		t.Fatalf("AppendTurns() error = %v", err)
	}

	if _, err := svc.Exchange(service.ExchangeRequest{SessionID: session.ID, Text: "こんにちは"}); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	var payload struct {
		Messages []llm.Message `json:"messages"`
	}
	if err := json.Unmarshal(lastBody, &payload); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	// system + 10 history turns + current user input
	if len(payload.Messages) != 12 {
		t.Fatalf("expected 12 messages, got %d", len(payload.Messages))
	}
	if payload.Messages[0].Role != "system" {
		t.Fatalf("expected system message first, got %q", payload.Messages[0].Role)
	}
	if last := payload.Messages[len(payload.Messages)-1]; last.Role != "user" || last.Content != "こんにちは" {
		t.Fatalf("expected current input last, got %+v", last)
	}
}

func TestResetSessionClearsHistory(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	server := newChatServer(t, validTurnContent(t, 55), nil)
	defer server.Close()
	attachClient(t, svc, server)

	session, err := svc.CreateSession(service.ConfigUpdate{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := svc.Exchange(service.ExchangeRequest{SessionID: session.ID, Text: "昨日学校をに行きました"}); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if err := svc.ResetSession(session.ID); err != nil {
		t.Fatalf("ResetSession() error = %v", err)
	}

	detail, err := svc.SessionDetail(session.ID)
	if err != nil {
		t.Fatalf("SessionDetail() error = %v", err)
	}
	if len(detail.History) != 0 || len(detail.Mistakes) != 0 {
		t.Fatalf("expected empty history after reset, got %+v", detail)
	}
	if detail.Session.ID != session.ID {
		t.Fatalf("expected session to survive reset")
	}
}

func newTestService(t *testing.T) (*service.Service, *store.JSONStore) {
	t.Helper()
	dataFile := filepath.Join(t.TempDir(), "state.json")
	st, err := store.NewJSONStore(dataFile)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	return service.New(st, kb.Parse(kb.BaseDocument)), st
}

func newChatServer(t *testing.T, content string, lastBody *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read chat body failed: %v", err)
		}
		if lastBody != nil {
			*lastBody = body
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func attachClient(t *testing.T, svc *service.Service, server *httptest.Server) {
	t.Helper()
	client, err := llm.NewClient(llm.Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	svc.SetLLMClient(client)
}

func validTurnContent(t *testing.T, score int) string {
	t.Helper()
	turn := map[string]any{
		"reply_ja":              "いいですね。昨日は学校で何をしましたか。",
		"corrected_sentence_ja": "昨日、学校に行きました。",
		"more_natural_ja":       "昨日は学校へ行ってきました。",
		"corrections": []any{
			map[string]any{
				"original":   "学校をに行きました",
				"corrected":  "学校に行きました",
				"error_type": "particle",
				"reason_zh":  "移动的到达点用「に」，不需要「を」。",
				"reason_ja":  "移動の到達点には「に」を使います。",
				"tip":        "行き先 + に",
			},
		},
		"mini_lesson_ja":   "「に」は到達点を表します。「学校に行きます」が正しい形です。（参照: KB02）",
		"next_question_ja": "今日はどこに行きますか。",
		"fluency_score":    score,
	}
	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatalf("marshal turn: %v", err)
	}
	return "```json\n" + string(data) + "\n```"
}
