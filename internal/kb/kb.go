package kb

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
)

const (
	headerPrefix  = "## [KB"
	triggerPrefix = "- triggers:"
)

// TriggerWeight 是单个触发词命中的计分权重。
const TriggerWeight = 3

// LoadFile reads a knowledge base document from disk. A missing file is not
// an error; it yields an empty document.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Parse splits a flat-file grammar document into entries. A line of the form
// "## [KB<id>] <title>" opens an entry; everything up to the next header
// belongs to it. Malformed structure degrades to fewer entries, never to an
// error.
func Parse(document string) []model.KbEntry {
	var (
		entries []model.KbEntry
		current *model.KbEntry
		lines   []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(lines, "\n"))
		entries = append(entries, *current)
		current = nil
		lines = nil
	}

	for _, line := range strings.Split(document, "\n") {
		if strings.HasPrefix(line, headerPrefix) && strings.Contains(line, "]") {
			flush()
			id := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(line, "]", 2)[0], "## ["))
			title := strings.TrimSpace(strings.SplitN(line, "]", 2)[1])
			current = &model.KbEntry{ID: id, Title: title}
			lines = []string{line}
			continue
		}
		if current == nil {
			continue
		}
		lines = append(lines, line)
		if strings.HasPrefix(line, triggerPrefix) {
			current.Triggers = splitTriggers(strings.TrimPrefix(line, triggerPrefix))
		}
	}
	flush()

	return entries
}

func splitTriggers(raw string) []string {
	var triggers []string
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		triggers = append(triggers, token)
	}
	return triggers
}

// Select scores every entry by trigger substring hits against the query and
// returns the topK best, document order preserved among equal scores. The
// scoring is deliberately crude lexical matching: TriggerWeight per trigger
// that occurs in the query, zero-score entries dropped.
func Select(entries []model.KbEntry, query string, topK int) []model.KbEntry {
	query = strings.TrimSpace(query)
	if query == "" || len(entries) == 0 || topK <= 0 {
		return nil
	}

	type scored struct {
		score int
		entry model.KbEntry
	}
	var candidates []scored
	for _, entry := range entries {
		score := 0
		for _, trigger := range entry.Triggers {
			if trigger != "" && strings.Contains(query, trigger) {
				score += TriggerWeight
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{score: score, entry: entry})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	result := make([]model.KbEntry, 0, len(candidates))
	for _, candidate := range candidates {
		result = append(result, candidate.entry)
	}
	return result
}
