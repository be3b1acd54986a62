package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidResponse = errors.New("invalid llm response")
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	baseURL      string
	apiKey       string
	defaultModel string
	timeout      time.Duration
	httpClient   *http.Client
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		defaultModel: model,
		timeout:      cfg.Timeout,
		httpClient:   &http.Client{},
	}, nil
}

// Complete sends one chat completion request and returns the assistant text.
// The first attempt asks for a JSON object response format; if that request
// fails for any reason (including the upstream not supporting it), the same
// messages are sent once more as a plain completion.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if strings.TrimSpace(model) == "" {
		model = c.defaultModel
	}

	body := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": 0.7,
		"response_format": map[string]any{
			"type": "json_object",
		},
	}
	raw, err := c.doJSON(ctx, "/v1/chat/completions", body)
	if err != nil {
		// 兼容：上游不支持 response_format 时退回普通文本请求。
		delete(body, "response_format")
		raw, err = c.doJSON(ctx, "/v1/chat/completions", body)
		if err != nil {
			return "", err
		}
	}
	return extractAssistantContent(raw)
}

func (c *Client) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm request failed, status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func extractAssistantContent(raw []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrInvalidResponse
	}
	content := resp.Choices[0].Message.Content
	switch v := content.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", ErrInvalidResponse
		}
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	default:
		return "", ErrInvalidResponse
	}
}

// ExtractJSONPayload 处理模型偶尔加 ```json 包裹的情况：取第一个围栏段，
// 去掉开头的 json 标记。没有围栏的文本只做首尾空白裁剪。
func ExtractJSONPayload(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	parts := strings.Split(trimmed, "```")
	if len(parts) < 2 {
		return trimmed
	}
	return strings.TrimSpace(strings.TrimPrefix(parts[1], "json"))
}
