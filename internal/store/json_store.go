package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
)

type fileState struct {
	Sessions map[string]model.PracticeSession    `json:"sessions"`
	Turns    map[string][]model.ConversationTurn `json:"turns"`
	Mistakes map[string][]model.MistakeLogEntry  `json:"mistakes"`
}

type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	state    fileState
}

func NewJSONStore(filePath string) (*JSONStore, error) {
	s := &JSONStore{
		filePath: filePath,
		state: fileState{
			Sessions: make(map[string]model.PracticeSession),
			Turns:    make(map[string][]model.ConversationTurn),
			Mistakes: make(map[string][]model.MistakeLogEntry),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) SaveSession(session model.PracticeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sessions[session.ID] = session
	return s.persistLocked()
}

func (s *JSONStore) GetSession(id string) (model.PracticeSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.state.Sessions[id]
	return session, ok, nil
}

func (s *JSONStore) UpdateSession(session model.PracticeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Sessions[session.ID]; !ok {
		return errors.New("session not found")
	}
	s.state.Sessions[session.ID] = session
	return s.persistLocked()
}

func (s *JSONStore) AppendTurns(sessionID string, turns []model.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, turn := range turns {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now()
		}
		s.state.Turns[sessionID] = append(s.state.Turns[sessionID], turn)
	}
	return s.persistLocked()
}

func (s *JSONStore) RecentTurns(sessionID string, limit int) ([]model.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.state.Turns[sessionID], limit), nil
}

func (s *JSONStore) AddMistakes(sessionID string, entries []model.MistakeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		s.state.Mistakes[sessionID] = append(s.state.Mistakes[sessionID], entry)
	}
	return s.persistLocked()
}

func (s *JSONStore) RecentMistakes(sessionID string, limit int) ([]model.MistakeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.state.Mistakes[sessionID], limit), nil
}

func (s *JSONStore) ResetSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Turns, sessionID)
	delete(s.state.Mistakes, sessionID)
	return s.persistLocked()
}

func tail[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) == 0 {
		return []T{}
	}
	start := len(items) - limit
	if start < 0 {
		start = 0
	}
	result := make([]T, len(items)-start)
	copy(result, items[start:])
	return result
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]model.PracticeSession)
	}
	if state.Turns == nil {
		state.Turns = make(map[string][]model.ConversationTurn)
	}
	if state.Mistakes == nil {
		state.Mistakes = make(map[string][]model.MistakeLogEntry)
	}
	s.state = state
	return nil
}

func (s *JSONStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.filePath)
}
