// Package llm wraps the Gemini API for contract and account risk analysis.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client wraps the Gemini API client.
type Client struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// Config for the Gemini client.
type Config struct {
	APIKey     string
	ModelName  string // default "gemini-2.0-flash"
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}
	model.ResponseMIMEType = "application/json"
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.3), // lower for consistent classification
		TopP:            genai.Ptr[float32](0.9),
		TopK:            genai.Ptr[int32](40),
		MaxOutputTokens: genai.Ptr[int32](1000),
	}

	logger.Info("gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:     client,
		model:      model,
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Finding is one checked feature with its explanation.
type Finding struct {
	Value  bool   `json:"value"`
	Reason string `json:"reason"`
}

// ContractReport is the feature checklist extracted from contract source.
type ContractReport struct {
	IsHoneypot       Finding `json:"is_honeypot"`
	IsMintable       Finding `json:"is_mintable"`
	IsProxy          Finding `json:"is_proxy"`
	IsBlacklist      Finding `json:"is_blacklist"`
	TransferPausable Finding `json:"transfer_pausable"`
}

// AccountReport is the scam assessment of a project account.
type AccountReport struct {
	IsScam     bool    `json:"is_scam"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// AnalyzeContract runs the security checklist over contract source code.
func (c *Client) AnalyzeContract(ctx context.Context, sourceCode string) (*ContractReport, error) {
	var report ContractReport
	if err := c.generate(ctx, BuildContractPrompt(sourceCode), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// AssessAccount classifies a project account from its posting history.
func (c *Client) AssessAccount(ctx context.Context, tokenName string, posts []AccountPost) (*AccountReport, error) {
	var report AccountReport
	if err := c.generate(ctx, BuildAccountPrompt(tokenName, posts), &report); err != nil {
		return nil, err
	}
	if report.Confidence < 0 || report.Confidence > 1 {
		return nil, fmt.Errorf("confidence %.2f out of range", report.Confidence)
	}
	return &report, nil
}

func (c *Client) generate(ctx context.Context, prompt string, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("gemini API error: %w", err)
			continue
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("empty response from gemini")
			continue
		}
		textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			lastErr = fmt.Errorf("unexpected response type from gemini")
			continue
		}

		clean := stripCodeFence(string(textPart))
		if err := json.Unmarshal([]byte(clean), out); err != nil {
			lastErr = fmt.Errorf("failed to parse gemini response: %w", err)
			c.logger.Warn("unparseable gemini response",
				zap.String("response", clean), zap.Error(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// stripCodeFence removes a markdown code block wrapper if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
