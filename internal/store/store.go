package store

import (
	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
)

type Store interface {
	SaveSession(session model.PracticeSession) error
	GetSession(id string) (model.PracticeSession, bool, error)
	UpdateSession(session model.PracticeSession) error

	AppendTurns(sessionID string, turns []model.ConversationTurn) error
	RecentTurns(sessionID string, limit int) ([]model.ConversationTurn, error)

	AddMistakes(sessionID string, entries []model.MistakeLogEntry) error
	RecentMistakes(sessionID string, limit int) ([]model.MistakeLogEntry, error)

	ResetSession(sessionID string) error
}
