package model

import "time"

// ErrorType 是纠错条目的固定分类。
const (
	ErrorTypeGrammar     = "grammar"
	ErrorTypeVocabulary  = "vocabulary"
	ErrorTypePoliteness  = "politeness"
	ErrorTypeParticle    = "particle"
	ErrorTypeTense       = "tense"
	ErrorTypeKanjiKana   = "kanji_kana"
	ErrorTypeNaturalness = "naturalness"
	ErrorTypeOther       = "other"
)

var ErrorTypes = map[string]struct{}{
	ErrorTypeGrammar:     {},
	ErrorTypeVocabulary:  {},
	ErrorTypePoliteness:  {},
	ErrorTypeParticle:    {},
	ErrorTypeTense:       {},
	ErrorTypeKanjiKana:   {},
	ErrorTypeNaturalness: {},
	ErrorTypeOther:       {},
}

type KbEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Triggers []string `json:"triggers"`
	Text     string   `json:"text"`
}

type SessionConfig struct {
	Level           string `json:"level"`            // N5..N1
	Tone            string `json:"tone"`             // casual | polite
	Topic           string `json:"topic"`
	Strictness      int    `json:"strictness"`       // 1..5
	ExplainLanguage string `json:"explain_language"` // bilingual | japanese_only
	Model           string `json:"model"`
	UseKB           bool   `json:"use_kb"`
	KbTopK          int    `json:"kb_top_k"` // 1..4
}

type PracticeSession struct {
	ID        string        `json:"id"`
	Config    SessionConfig `json:"config"`
	CreatedAt time.Time     `json:"created_at"`
}

type ConversationTurn struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type CorrectionItem struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	ErrorType string `json:"error_type"`
	ReasonZh  string `json:"reason_zh"`
	ReasonJa  string `json:"reason_ja"`
	Tip       string `json:"tip"`
}

type TutorTurn struct {
	ReplyJa             string           `json:"reply_ja"`
	CorrectedSentenceJa string           `json:"corrected_sentence_ja"`
	MoreNaturalJa       string           `json:"more_natural_ja"`
	Corrections         []CorrectionItem `json:"corrections"`
	MiniLessonJa        string           `json:"mini_lesson_ja"`
	NextQuestionJa      string           `json:"next_question_ja"`
	FluencyScore        int              `json:"fluency_score"`
}

type MistakeLogEntry struct {
	ErrorType string    `json:"error_type"`
	Original  string    `json:"original"`
	Corrected string    `json:"corrected"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
