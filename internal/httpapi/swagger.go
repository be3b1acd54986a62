package httpapi

import (
	"net/http"
	"strings"
)

func (h *Handler) swaggerUI(w http.ResponseWriter, r *http.Request) {
	const page = `<!doctype html>
<html lang="zh-CN">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Kaiwa Tutor API Swagger</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    const docPath = window.location.pathname.startsWith('/swagger')
      ? '/swagger/openapi.json'
      : '/docs/openapi.json';
    window.ui = SwaggerUIBundle({
      url: docPath,
      dom_id: '#swagger-ui'
    });
  </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (h *Handler) swaggerSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openAPISpec(requestBaseURL(r)))
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		scheme = strings.Split(forwarded, ",")[0]
		scheme = strings.TrimSpace(scheme)
	}

	host := strings.TrimSpace(r.Host)
	if host == "" {
		host = "localhost:8080"
	}
	return scheme + "://" + host
}

func openAPISpec(serverURL string) map[string]any {
	sessionIDParam := map[string]any{
		"name":     "id",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string"},
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Kaiwa Tutor API",
			"description": "日语会话练习（AI纠错老师）后端 API 文档",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": serverURL},
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{
					"summary":     "健康检查",
					"operationId": "healthz",
					"responses": map[string]any{
						"200": map[string]any{
							"description": "OK",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/HealthResponse"},
								},
							},
						},
					},
				},
			},
			"/api/v1/sessions": map[string]any{
				"post": map[string]any{
					"summary":     "创建练习会话（字段缺省时使用默认设定）",
					"operationId": "createSession",
					"requestBody": map[string]any{
						"required": false,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/SessionConfigUpdate"},
							},
						},
					},
					"responses": map[string]any{
						"201": map[string]any{
							"description": "已创建",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/PracticeSession"},
								},
							},
						},
						"400": map[string]any{"description": "配置不合法"},
						"500": map[string]any{"description": "服务错误"},
					},
				},
			},
			"/api/v1/sessions/{id}": map[string]any{
				"get": map[string]any{
					"summary":     "查询会话、最近历史与错题本",
					"operationId": "sessionDetail",
					"parameters":  []map[string]any{sessionIDParam},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "成功",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/SessionDetail"},
								},
							},
						},
						"404": map[string]any{"description": "会话不存在"},
					},
				},
			},
			"/api/v1/sessions/{id}/config": map[string]any{
				"put": map[string]any{
					"summary":     "更新会话设定（只改传入的字段）",
					"operationId": "updateConfig",
					"parameters":  []map[string]any{sessionIDParam},
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/SessionConfigUpdate"},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "成功"},
						"400": map[string]any{"description": "配置不合法"},
						"404": map[string]any{"description": "会话不存在"},
					},
				},
			},
			"/api/v1/sessions/{id}/exchange": map[string]any{
				"post": map[string]any{
					"summary":     "提交一句日语，返回纠错与下一问",
					"operationId": "exchange",
					"parameters":  []map[string]any{sessionIDParam},
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/ExchangeRequest"},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "成功",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/ExchangeResponse"},
								},
							},
						},
						"400": map[string]any{"description": "输入为空或请求错误"},
						"404": map[string]any{"description": "会话不存在"},
						"502": map[string]any{"description": "模型输出无法解析或调用失败"},
						"503": map[string]any{"description": "未配置大模型能力"},
						"500": map[string]any{"description": "服务错误"},
					},
				},
			},
			"/api/v1/sessions/{id}/mistakes": map[string]any{
				"get": map[string]any{
					"summary":     "查询错题本（最近 N 条）",
					"operationId": "mistakes",
					"parameters": []map[string]any{
						sessionIDParam,
						{
							"name":        "limit",
							"in":          "query",
							"required":    false,
							"description": "返回条数，默认 30",
							"schema":      map[string]any{"type": "integer"},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "成功",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/MistakesResponse"},
								},
							},
						},
						"400": map[string]any{"description": "limit 不是整数"},
						"404": map[string]any{"description": "会话不存在"},
					},
				},
			},
			"/api/v1/sessions/{id}/reset": map[string]any{
				"post": map[string]any{
					"summary":     "清空会话历史与错题本（保留设定）",
					"operationId": "resetSession",
					"parameters":  []map[string]any{sessionIDParam},
					"responses": map[string]any{
						"200": map[string]any{"description": "成功"},
						"404": map[string]any{"description": "会话不存在"},
					},
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"HealthResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"status": map[string]any{"type": "string", "example": "ok"},
					},
				},
				"ErrorResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error": map[string]any{"type": "string"},
					},
				},
				"SessionConfigUpdate": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"level":            map[string]any{"type": "string", "enum": []string{"N5", "N4", "N3", "N2", "N1"}},
						"tone":             map[string]any{"type": "string", "enum": []string{"casual", "polite"}},
						"topic":            map[string]any{"type": "string"},
						"strictness":       map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
						"explain_language": map[string]any{"type": "string", "enum": []string{"bilingual", "japanese_only"}},
						"model":            map[string]any{"type": "string"},
						"use_kb":           map[string]any{"type": "boolean"},
						"kb_top_k":         map[string]any{"type": "integer", "minimum": 1, "maximum": 4},
					},
				},
				"PracticeSession": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":         map[string]any{"type": "string"},
						"config":     map[string]any{"$ref": "#/components/schemas/SessionConfigUpdate"},
						"created_at": map[string]any{"type": "string", "format": "date-time"},
					},
				},
				"ConversationTurn": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"role":       map[string]any{"type": "string", "enum": []string{"user", "assistant"}},
						"content":    map[string]any{"type": "string"},
						"created_at": map[string]any{"type": "string", "format": "date-time"},
					},
				},
				"SessionDetail": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"session": map[string]any{"$ref": "#/components/schemas/PracticeSession"},
						"history": map[string]any{
							"type":  "array",
							"items": map[string]any{"$ref": "#/components/schemas/ConversationTurn"},
						},
						"mistakes": map[string]any{
							"type":  "array",
							"items": map[string]any{"$ref": "#/components/schemas/MistakeLogEntry"},
						},
					},
				},
				"ExchangeRequest": map[string]any{
					"type":     "object",
					"required": []string{"text"},
					"properties": map[string]any{
						"text": map[string]any{"type": "string", "description": "学习者的一句日语"},
					},
				},
				"CorrectionItem": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"original":   map[string]any{"type": "string"},
						"corrected":  map[string]any{"type": "string"},
						"error_type": map[string]any{"type": "string", "enum": []string{"grammar", "vocabulary", "politeness", "particle", "tense", "kanji_kana", "naturalness", "other"}},
						"reason_zh":  map[string]any{"type": "string"},
						"reason_ja":  map[string]any{"type": "string"},
						"tip":        map[string]any{"type": "string"},
					},
				},
				"TutorTurn": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"reply_ja":              map[string]any{"type": "string"},
						"corrected_sentence_ja": map[string]any{"type": "string"},
						"more_natural_ja":       map[string]any{"type": "string"},
						"corrections": map[string]any{
							"type":  "array",
							"items": map[string]any{"$ref": "#/components/schemas/CorrectionItem"},
						},
						"mini_lesson_ja":   map[string]any{"type": "string"},
						"next_question_ja": map[string]any{"type": "string"},
						"fluency_score":    map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
					},
				},
				"ExchangeResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"turn": map[string]any{"$ref": "#/components/schemas/TutorTurn"},
						"citations": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "本轮命中的文法ノートID",
						},
					},
				},
				"MistakeLogEntry": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error_type": map[string]any{"type": "string"},
						"original":   map[string]any{"type": "string"},
						"corrected":  map[string]any{"type": "string"},
						"created_at": map[string]any{"type": "string", "format": "date-time"},
					},
				},
				"MistakesResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"session_id": map[string]any{"type": "string"},
						"mistakes": map[string]any{
							"type":  "array",
							"items": map[string]any{"$ref": "#/components/schemas/MistakeLogEntry"},
						},
					},
				},
			},
		},
	}
}
