package service

import (
	"fmt"
	"strings"

	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
)

// 每条 KB 摘录的最大长度，防止系统提示词过长。
const kbExcerptLimit = 1200

func toneLabel(tone string) string {
	if tone == "casual" {
		return "カジュアル（友達）"
	}
	return "丁寧（店員・面接）"
}

func explainLabel(lang string) string {
	if lang == "japanese_only" {
		return "只用日文"
	}
	return "中文+日文"
}

func buildSystemPrompt(cfg model.SessionConfig, selected []model.KbEntry) string {
	excerpts := make([]string, 0, len(selected))
	ids := make([]string, 0, len(selected))
	for _, entry := range selected {
		excerpts = append(excerpts, truncateRunes(entry.Text, kbExcerptLimit))
		ids = append(ids, entry.ID)
	}

	kbBlock := "（本轮没有命中任何文法ノート）"
	if len(excerpts) > 0 {
		kbBlock = strings.Join(excerpts, "\n\n")
	}
	citation := "なし"
	if len(ids) > 0 {
		citation = strings.Join(ids, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, `你是一个“日语会话老师+逐句纠错器”。
目标：让学习者通过对话练习口语，对每一句进行纠错、自然改写、简短讲解，再用一个问题引导继续对话。

对话设定：
- 学习者目标水平：%s
- 对话语气：%s
- 主题：%s
- 纠错严格度：%d/5（越高越细）
- 解释语言：%s

【参考資料：文法ノート（KB）】
%s

硬性规则：
- mini_lesson_ja 与纠错理由要尽量依据上面的KB内容来讲，不要编造“教材规则”。
- 如果KB没有覆盖用户的问题，就只给非常保守的解释，不要瞎定规则。
- mini_lesson_ja 末尾必须标注（参照: %s）。
`, cfg.Level, toneLabel(cfg.Tone), cfg.Topic, cfg.Strictness, explainLabel(cfg.ExplainLanguage), kbBlock, citation)

	b.WriteString(`
输出必须是一个 JSON 对象，字段如下（只输出JSON，不要Markdown，不要多余文字）：
- reply_ja：用日语继续对话（2-5句），难度符合学习者水平
- corrected_sentence_ja：把用户整句修正（尽量保持原意）
- more_natural_ja：更自然的另一种说法（不改变核心意思）
- corrections：数组，每项包含 original / corrected / error_type / reason_zh / reason_ja / tip；error_type 只能取 grammar, vocabulary, politeness, particle, tense, kanji_kana, naturalness, other
- mini_lesson_ja：只讲一个语法点，2-4句日语
- next_question_ja：一个推动下一轮对话的问题
- fluency_score：0-100 的整数
`)

	if cfg.ExplainLanguage == "japanese_only" {
		b.WriteString("\n解释语言为“只用日文”时，reason_zh 填一句最简短的中文即可，讲解以 reason_ja 为主。\n")
	}

	b.WriteString(`
如果用户输入不是日语：
- reply_ja：提醒尽量用日语，并给出一句可以直接套用的日语模板
- corrected_sentence_ja / more_natural_ja：把用户想表达的内容改写成简短日语
`)

	return b.String()
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
