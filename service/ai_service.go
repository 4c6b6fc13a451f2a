package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Completer 聊天补全的最小抽象，便于测试替换真实 HTTP 调用。
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []ChatTurn) (string, error)
}

// ChatTurn 一轮对话。Role 取 "user" 或 "assistant"。
type ChatTurn struct {
	Role    string
	Content string
}

const (
	defaultAIAPIURL  = "https://api.deepseek.com/chat/completions"
	defaultAIModel   = "deepseek-chat"
	defaultAITimeout = 30 * time.Second

	aiMaxTokens   = 1000
	aiTemperature = 0.7
)

// AIConfig 补全服务配置。空字段回落到环境变量与默认值。
type AIConfig struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
	// Workers 编排器并发协程数，0 表示默认值
	Workers int
	// QueueSize 任务队列缓冲，0 表示默认值
	QueueSize int
}

// AIService 调用 DeepSeek 兼容的 chat/completions 接口。
type AIService struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func NewAIService(cfg AIConfig) *AIService {
	if cfg.APIURL == "" {
		cfg.APIURL = os.Getenv("DEEPSEEK_API_URL")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAIAPIURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("DEEPSEEK_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = defaultAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAITimeout
	}
	return &AIService{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete 发起一次补全请求。system 提示在前，历史按时间正序附加。
func (s *AIService) Complete(ctx context.Context, systemPrompt string, history []ChatTurn) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("缺少 AI API Key")
	}

	msgs := make([]chatMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range history {
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:       s.model,
		Messages:    msgs,
		MaxTokens:   aiMaxTokens,
		Temperature: aiTemperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI 请求失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI 接口返回状态 %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("AI 响应解析失败: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("AI 接口错误: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("AI 响应为空")
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
