package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pocket-guard/internal/domain"
)

// HTTPClient implementa Provider usando una API compatible con OpenAI chat completions.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
// El timeout lo impone el gateway via contexto, no el http.Client.
func NewHTTPClient(baseURL, apiKey, model string, httpClient *http.Client, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		client:  httpClient,
		logger:  logger,
	}
}

func (c *HTTPClient) Name() string {
	return "openai"
}

func (c *HTTPClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *HTTPClient) Generate(ctx context.Context, systemPrompt string, req domain.ModelRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	messages := make([]chatMessage, 0, len(req.Context)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range req.Context {
		messages = append(messages, chatMessage{Role: string(t.Role), Content: t.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	bodyBytes, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: do request: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Debug("llm error response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncateForLog(string(respBody))),
		)
		return "", fmt.Errorf("%w: status=%d", ErrProvider, resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %w", ErrProvider, err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("%w: api error: %s", ErrProvider, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrProvider)
	}

	// Un texto vacio es una respuesta valida; el relay decide si usa el fallback.
	return cr.Choices[0].Message.Content, nil
}

func truncateForLog(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
