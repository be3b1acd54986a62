package model

import (
	"fmt"
	"math"
	"strings"
)

type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError 汇总整个响应的全部字段问题，而不是只报第一个。
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "tutor turn validation failed: " + strings.Join(parts, "; ")
}

// ValidateTutorTurn checks a decoded JSON object against the TutorTurn shape
// and returns either the fully populated struct or a *ValidationError listing
// every violated field.
func ValidateTutorTurn(data map[string]any) (TutorTurn, error) {
	var (
		turn       TutorTurn
		violations []FieldViolation
	)
	addViolation := func(field string, reason string) {
		violations = append(violations, FieldViolation{Field: field, Reason: reason})
	}

	requireString := func(field string, target *string) {
		value, ok := data[field]
		if !ok {
			addViolation(field, "缺少该字段")
			return
		}
		text, ok := value.(string)
		if !ok {
			addViolation(field, "必须是字符串")
			return
		}
		*target = text
	}

	requireString("reply_ja", &turn.ReplyJa)
	requireString("corrected_sentence_ja", &turn.CorrectedSentenceJa)
	requireString("more_natural_ja", &turn.MoreNaturalJa)
	requireString("mini_lesson_ja", &turn.MiniLessonJa)
	requireString("next_question_ja", &turn.NextQuestionJa)

	if score, reason := extractFluencyScore(data); reason != "" {
		addViolation("fluency_score", reason)
	} else {
		turn.FluencyScore = score
	}

	turn.Corrections = []CorrectionItem{}
	if rawList, ok := data["corrections"]; ok {
		list, ok := rawList.([]any)
		if !ok {
			addViolation("corrections", "必须是数组")
		} else {
			for i, rawItem := range list {
				item, itemViolations := validateCorrection(i, rawItem)
				if len(itemViolations) > 0 {
					violations = append(violations, itemViolations...)
					continue
				}
				turn.Corrections = append(turn.Corrections, item)
			}
		}
	}

	if len(violations) > 0 {
		return TutorTurn{}, &ValidationError{Violations: violations}
	}
	return turn, nil
}

func extractFluencyScore(data map[string]any) (int, string) {
	value, ok := data["fluency_score"]
	if !ok {
		return 0, "缺少该字段"
	}
	number, ok := value.(float64)
	if !ok {
		return 0, "必须是整数"
	}
	if number != math.Trunc(number) {
		return 0, "必须是整数"
	}
	score := int(number)
	if score < 0 || score > 100 {
		return 0, fmt.Sprintf("必须在 0 到 100 之间，当前为 %d", score)
	}
	return score, ""
}

func validateCorrection(index int, raw any) (CorrectionItem, []FieldViolation) {
	prefix := fmt.Sprintf("corrections[%d]", index)

	obj, ok := raw.(map[string]any)
	if !ok {
		return CorrectionItem{}, []FieldViolation{{Field: prefix, Reason: "必须是对象"}}
	}

	var (
		item       CorrectionItem
		violations []FieldViolation
	)
	requireString := func(field string, target *string) {
		value, ok := obj[field]
		if !ok {
			violations = append(violations, FieldViolation{Field: prefix + "." + field, Reason: "缺少该字段"})
			return
		}
		text, ok := value.(string)
		if !ok {
			violations = append(violations, FieldViolation{Field: prefix + "." + field, Reason: "必须是字符串"})
			return
		}
		*target = text
	}

	requireString("original", &item.Original)
	requireString("corrected", &item.Corrected)
	requireString("error_type", &item.ErrorType)
	requireString("reason_zh", &item.ReasonZh)
	requireString("reason_ja", &item.ReasonJa)
	requireString("tip", &item.Tip)

	if item.ErrorType != "" {
		if _, known := ErrorTypes[item.ErrorType]; !known {
			violations = append(violations, FieldViolation{
				Field:  prefix + ".error_type",
				Reason: fmt.Sprintf("未知的错误类型 %q", item.ErrorType),
			})
		}
	}

	return item, violations
}
