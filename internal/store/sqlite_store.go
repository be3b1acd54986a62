package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, err
	}
	st := &SQLiteStore{db: db}
	if err := st.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(session model.PracticeSession) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sessions
		(id, level, tone, topic, strictness, explain_language, model, use_kb, kb_top_k, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Config.Level,
		session.Config.Tone,
		session.Config.Topic,
		session.Config.Strictness,
		session.Config.ExplainLanguage,
		session.Config.Model,
		boolToInt(session.Config.UseKB),
		session.Config.KbTopK,
		toTS(session.CreatedAt),
	)
	return err
}

func (s *SQLiteStore) GetSession(id string) (model.PracticeSession, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, level, tone, topic, strictness, explain_language, model, use_kb, kb_top_k, created_at
		FROM sessions
		WHERE id = ?`,
		id,
	)
	var (
		session   model.PracticeSession
		useKB     int
		createdAt string
	)
	err := row.Scan(
		&session.ID,
		&session.Config.Level,
		&session.Config.Tone,
		&session.Config.Topic,
		&session.Config.Strictness,
		&session.Config.ExplainLanguage,
		&session.Config.Model,
		&useKB,
		&session.Config.KbTopK,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PracticeSession{}, false, nil
	}
	if err != nil {
		return model.PracticeSession{}, false, err
	}
	session.Config.UseKB = intToBool(useKB)
	session.CreatedAt = fromTS(createdAt)
	return session, true, nil
}

func (s *SQLiteStore) UpdateSession(session model.PracticeSession) error {
	result, err := s.db.Exec(`
		UPDATE sessions
		SET level = ?, tone = ?, topic = ?, strictness = ?, explain_language = ?, model = ?, use_kb = ?, kb_top_k = ?
		WHERE id = ?`,
		session.Config.Level,
		session.Config.Tone,
		session.Config.Topic,
		session.Config.Strictness,
		session.Config.ExplainLanguage,
		session.Config.Model,
		boolToInt(session.Config.UseKB),
		session.Config.KbTopK,
		session.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.New("session not found")
	}
	return nil
}

func (s *SQLiteStore) AppendTurns(sessionID string, turns []model.ConversationTurn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, turn := range turns {
		createdAt := turn.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.Exec(`
			INSERT INTO turns (session_id, role, content, created_at)
			VALUES (?, ?, ?, ?)`,
			sessionID,
			turn.Role,
			turn.Content,
			toTS(createdAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentTurns(sessionID string, limit int) ([]model.ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT role, content, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reversed []model.ConversationTurn
	for rows.Next() {
		var turn model.ConversationTurn
		var createdAt string
		if err := rows.Scan(&turn.Role, &turn.Content, &createdAt); err != nil {
			return nil, err
		}
		turn.CreatedAt = fromTS(createdAt)
		reversed = append(reversed, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]model.ConversationTurn, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		result = append(result, reversed[i])
	}
	return result, nil
}

func (s *SQLiteStore) AddMistakes(sessionID string, entries []model.MistakeLogEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.Exec(`
			INSERT INTO mistakes (session_id, error_type, original, corrected, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			sessionID,
			entry.ErrorType,
			entry.Original,
			entry.Corrected,
			toTS(createdAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentMistakes(sessionID string, limit int) ([]model.MistakeLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT error_type, original, corrected, created_at
		FROM mistakes
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reversed []model.MistakeLogEntry
	for rows.Next() {
		var entry model.MistakeLogEntry
		var createdAt string
		if err := rows.Scan(&entry.ErrorType, &entry.Original, &entry.Corrected, &createdAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = fromTS(createdAt)
		reversed = append(reversed, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]model.MistakeLogEntry, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		result = append(result, reversed[i])
	}
	return result, nil
}

func (s *SQLiteStore) ResetSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM mistakes WHERE session_id = ?`, sessionID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		PRAGMA journal_mode=WAL;
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			level TEXT NOT NULL,
			tone TEXT NOT NULL,
			topic TEXT NOT NULL,
			strictness INTEGER NOT NULL,
			explain_language TEXT NOT NULL,
			model TEXT NOT NULL,
			use_kb INTEGER NOT NULL,
			kb_top_k INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS mistakes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			error_type TEXT NOT NULL,
			original TEXT NOT NULL,
			corrected TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
		CREATE INDEX IF NOT EXISTS idx_mistakes_session ON mistakes(session_id, id);
	`)
	return err
}

func toTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fromTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func intToBool(v int) bool {
	return v != 0
}
