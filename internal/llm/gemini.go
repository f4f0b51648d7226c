package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"pocket-guard/internal/domain"
)

// GeminiClient implementa Provider contra la API de Google Gemini.
// El cliente genai se crea en la primera llamada.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiClient(apiKey, model, baseURL string, httpClient *http.Client, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiClient{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    strings.TrimSpace(baseURL),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *GeminiClient) Name() string {
	return "gemini"
}

func (c *GeminiClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *GeminiClient) genaiClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.client = client
	c.logger.Debug("gemini client initialized", zap.String("model", c.model))
	return client, nil
}

func (c *GeminiClient) Generate(ctx context.Context, systemPrompt string, req domain.ModelRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	client, err := c.genaiClient(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvider, err)
	}

	var config *genai.GenerateContentConfig
	if strings.TrimSpace(systemPrompt) != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	result, err := client.Models.GenerateContent(ctx, c.model, geminiContents(req), config)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return geminiText(result), nil
}

// geminiContents convierte el contexto a contenidos genai; Gemini usa "model" en lugar de "assistant".
func geminiContents(req domain.ModelRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.Context)+1)
	for _, t := range req.Context {
		var role genai.Role = genai.RoleUser
		if t.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

func geminiText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			sb.WriteString(part.Text)
		}
		// Solo el primer candidato con contenido.
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gemini status=%d: %s", ErrProvider, apiErr.Code, apiErr.Message)
	}
	if isTransportError(err) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}

func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
