package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zxq-mioya/jp-tutor-ai/internal/kb"
	"github.com/zxq-mioya/jp-tutor-ai/internal/llm"
	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
	"github.com/zxq-mioya/jp-tutor-ai/internal/store"
)

var (
	ErrSessionNotFound   = errors.New("未找到对应的会话")
	ErrLLMUnavailable    = errors.New("未配置大模型能力")
	ErrUserTextEmpty     = errors.New("请输入一句日语")
	ErrInvalidConfig     = errors.New("会话配置不合法")
	ErrModelCall         = errors.New("模型调用失败")
	ErrMalformedResponse = errors.New("模型输出不是有效的 JSON")
)

const (
	historyWindow       = 10
	mistakeTailDefault  = 30
	historyDisplayLimit = 50
)

type Service struct {
	store   store.Store
	entries []model.KbEntry
	llm     *llm.Client

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(st store.Store, entries []model.KbEntry) *Service {
	return &Service{
		store:   st,
		entries: entries,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) SetLLMClient(client *llm.Client) {
	s.llm = client
}

// DefaultConfig 是新会话的初始设定。
func DefaultConfig() model.SessionConfig {
	return model.SessionConfig{
		Level:           "N3",
		Tone:            "polite",
		Topic:           "日常生活（学校・買い物・趣味）",
		Strictness:      3,
		ExplainLanguage: "bilingual",
		Model:           "gpt-4o-mini",
		UseKB:           true,
		KbTopK:          3,
	}
}

// ConfigUpdate carries only the fields the caller wants to change.
type ConfigUpdate struct {
	Level           *string `json:"level,omitempty"`
	Tone            *string `json:"tone,omitempty"`
	Topic           *string `json:"topic,omitempty"`
	Strictness      *int    `json:"strictness,omitempty"`
	ExplainLanguage *string `json:"explain_language,omitempty"`
	Model           *string `json:"model,omitempty"`
	UseKB           *bool   `json:"use_kb,omitempty"`
	KbTopK          *int    `json:"kb_top_k,omitempty"`
}

func applyUpdate(cfg model.SessionConfig, update ConfigUpdate) model.SessionConfig {
	if update.Level != nil {
		cfg.Level = strings.TrimSpace(*update.Level)
	}
	if update.Tone != nil {
		cfg.Tone = strings.TrimSpace(*update.Tone)
	}
	if update.Topic != nil {
		cfg.Topic = strings.TrimSpace(*update.Topic)
	}
	if update.Strictness != nil {
		cfg.Strictness = *update.Strictness
	}
	if update.ExplainLanguage != nil {
		cfg.ExplainLanguage = strings.TrimSpace(*update.ExplainLanguage)
	}
	if update.Model != nil {
		cfg.Model = strings.TrimSpace(*update.Model)
	}
	if update.UseKB != nil {
		cfg.UseKB = *update.UseKB
	}
	if update.KbTopK != nil {
		cfg.KbTopK = *update.KbTopK
	}
	return cfg
}

func validateConfig(cfg model.SessionConfig) error {
	switch cfg.Level {
	case "N5", "N4", "N3", "N2", "N1":
	default:
		return fmt.Errorf("%w: level 必须是 N5/N4/N3/N2/N1 之一", ErrInvalidConfig)
	}
	switch cfg.Tone {
	case "casual", "polite":
	default:
		return fmt.Errorf("%w: tone 必须是 casual 或 polite", ErrInvalidConfig)
	}
	if cfg.Strictness < 1 || cfg.Strictness > 5 {
		return fmt.Errorf("%w: strictness 必须在 1 到 5 之间", ErrInvalidConfig)
	}
	switch cfg.ExplainLanguage {
	case "bilingual", "japanese_only":
	default:
		return fmt.Errorf("%w: explain_language 必须是 bilingual 或 japanese_only", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("%w: model 不能为空", ErrInvalidConfig)
	}
	if cfg.KbTopK < 1 || cfg.KbTopK > 4 {
		return fmt.Errorf("%w: kb_top_k 必须在 1 到 4 之间", ErrInvalidConfig)
	}
	return nil
}

func (s *Service) CreateSession(update ConfigUpdate) (model.PracticeSession, error) {
	cfg := applyUpdate(DefaultConfig(), update)
	if err := validateConfig(cfg); err != nil {
		return model.PracticeSession{}, err
	}

	session := model.PracticeSession{
		ID:        uuid.NewString(),
		Config:    cfg,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveSession(session); err != nil {
		return model.PracticeSession{}, err
	}
	return session, nil
}

func (s *Service) UpdateConfig(sessionID string, update ConfigUpdate) (model.PracticeSession, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, ok, err := s.store.GetSession(sessionID)
	if err != nil {
		return model.PracticeSession{}, err
	}
	if !ok {
		return model.PracticeSession{}, ErrSessionNotFound
	}

	session.Config = applyUpdate(session.Config, update)
	if err := validateConfig(session.Config); err != nil {
		return model.PracticeSession{}, err
	}
	if err := s.store.UpdateSession(session); err != nil {
		return model.PracticeSession{}, err
	}
	return session, nil
}

type SessionDetail struct {
	Session  model.PracticeSession    `json:"session"`
	History  []model.ConversationTurn `json:"history"`
	Mistakes []model.MistakeLogEntry  `json:"mistakes"`
}

func (s *Service) SessionDetail(sessionID string) (SessionDetail, error) {
	session, ok, err := s.store.GetSession(sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	if !ok {
		return SessionDetail{}, ErrSessionNotFound
	}

	history, err := s.store.RecentTurns(sessionID, historyDisplayLimit)
	if err != nil {
		return SessionDetail{}, err
	}
	mistakes, err := s.store.RecentMistakes(sessionID, mistakeTailDefault)
	if err != nil {
		return SessionDetail{}, err
	}
	return SessionDetail{Session: session, History: history, Mistakes: mistakes}, nil
}

func (s *Service) Mistakes(sessionID string, limit int) ([]model.MistakeLogEntry, error) {
	if _, ok, err := s.store.GetSession(sessionID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrSessionNotFound
	}
	if limit <= 0 {
		limit = mistakeTailDefault
	}
	return s.store.RecentMistakes(sessionID, limit)
}

func (s *Service) ResetSession(sessionID string) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	if _, ok, err := s.store.GetSession(sessionID); err != nil {
		return err
	} else if !ok {
		return ErrSessionNotFound
	}
	return s.store.ResetSession(sessionID)
}

type ExchangeRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type ExchangeResponse struct {
	Turn      model.TutorTurn `json:"turn"`
	Citations []string        `json:"citations"`
}

// Exchange runs one full turn: compose prompt, call the model, normalize and
// validate the reply, then record history and mistakes. Session state is
// touched only after the reply validated; any failure leaves it as it was.
func (s *Service) Exchange(req ExchangeRequest) (ExchangeResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return ExchangeResponse{}, ErrUserTextEmpty
	}

	unlock := s.lockSession(req.SessionID)
	defer unlock()

	session, ok, err := s.store.GetSession(req.SessionID)
	if err != nil {
		return ExchangeResponse{}, err
	}
	if !ok {
		return ExchangeResponse{}, ErrSessionNotFound
	}
	if s.llm == nil {
		return ExchangeResponse{}, ErrLLMUnavailable
	}

	var selected []model.KbEntry
	if session.Config.UseKB {
		selected = kb.Select(s.entries, text, session.Config.KbTopK)
	}
	systemPrompt := buildSystemPrompt(session.Config, selected)

	history, err := s.store.RecentTurns(session.ID, historyWindow)
	if err != nil {
		return ExchangeResponse{}, err
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	raw, err := s.llm.Complete(context.Background(), session.Config.Model, messages)
	if err != nil {
		return ExchangeResponse{}, fmt.Errorf("%w: %v", ErrModelCall, err)
	}

	payload := llm.ExtractJSONPayload(raw)
	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return ExchangeResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	turn, err := model.ValidateTutorTurn(data)
	if err != nil {
		return ExchangeResponse{}, err
	}

	now := time.Now()
	if err := s.store.AppendTurns(session.ID, []model.ConversationTurn{
		{Role: "user", Content: text, CreatedAt: now},
		{Role: "assistant", Content: turn.ReplyJa, CreatedAt: now},
	}); err != nil {
		return ExchangeResponse{}, err
	}

	if len(turn.Corrections) > 0 {
		entries := make([]model.MistakeLogEntry, 0, len(turn.Corrections))
		for _, correction := range turn.Corrections {
			entries = append(entries, model.MistakeLogEntry{
				ErrorType: correction.ErrorType,
				Original:  correction.Original,
				Corrected: correction.Corrected,
				CreatedAt: now,
			})
		}
		if err := s.store.AddMistakes(session.ID, entries); err != nil {
			return ExchangeResponse{}, err
		}
	}

	citations := make([]string, 0, len(selected))
	for _, entry := range selected {
		citations = append(citations, entry.ID)
	}
	return ExchangeResponse{Turn: turn, Citations: citations}, nil
}

// lockSession serializes exchanges per session; the knowledge base itself is
// read-only and shared across sessions.
func (s *Service) lockSession(id string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}
