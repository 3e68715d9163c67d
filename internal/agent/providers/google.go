package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/internal/agent/toolconv"
	"github.com/redcellhq/redcell/pkg/models"
)

// GoogleProvider implements agent.LLMProvider for Google's Gemini API using
// the Gen AI SDK. Streaming uses Go iterators; function calls arrive whole
// per response part, so no fragment accumulation is needed. Gemini does not
// assign tool call IDs, so the provider synthesizes them.
type GoogleProvider struct {
	client *genai.Client

	// retryDelay is the base backoff delay; actual delay is retryDelay * 2^attempt.
	retryDelay time.Duration

	// defaultModel is used when CompletionRequest.Model is empty.
	defaultModel string

	base BaseProvider
}

// GoogleConfig holds configuration for creating a GoogleProvider.
type GoogleConfig struct {
	// APIKey is the Google AI API key (required).
	// Obtain from: https://aistudio.google.com/apikey
	APIKey string

	// MaxRetries sets retry attempts for transient failures. Default: 3.
	MaxRetries int

	// RetryDelay sets the base delay between retries. Default: 1s.
	RetryDelay time.Duration

	// DefaultModel is used when a request doesn't specify one.
	DefaultModel string
}

// NewGoogleProvider creates a Google provider with the given configuration.
func NewGoogleProvider(config GoogleConfig) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}

	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &GoogleProvider{
		client:       client,
		retryDelay:   config.RetryDelay,
		defaultModel: config.DefaultModel,
		base:         NewBaseProvider("google", config.MaxRetries, config.RetryDelay),
	}, nil
}

// Name returns the provider identifier used for routing and logging.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (p *GoogleProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", ContextSize: 1048576},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", ContextSize: 1048576},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1048576},
	}
}

// SupportsTools indicates that Gemini models support function calling.
func (p *GoogleProvider) SupportsTools() bool {
	return true
}

// Complete sends a completion request to Gemini and returns a streaming
// response channel.
func (p *GoogleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	chunks := make(chan *agent.CompletionChunk)

	go func() {
		defer close(chunks)

		model := p.getModel(req.Model)
		contents, err := p.convertMessages(req.Messages)
		if err != nil {
			chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model)}
			return
		}

		config := p.buildConfig(req)

		var inputTokens, outputTokens int
		err = p.base.RetryWithBackoff(ctx, p.isRetryableError, func() error {
			streamIter := p.client.Models.GenerateContentStream(ctx, model, contents, config)
			in, out, streamErr := p.processStream(ctx, streamIter, chunks)
			if streamErr != nil {
				return p.wrapError(streamErr, model)
			}
			inputTokens, outputTokens = in, out
			return nil
		}, func(attempt int) time.Duration {
			return p.retryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
		})

		if err != nil {
			if ctx.Err() != nil {
				chunks <- &agent.CompletionChunk{Error: ctx.Err()}
				return
			}
			if p.isRetryableError(err) {
				chunks <- &agent.CompletionChunk{Error: fmt.Errorf("google: max retries exceeded: %w", err)}
				return
			}
			chunks <- &agent.CompletionChunk{Error: err}
			return
		}

		chunks <- &agent.CompletionChunk{
			Done:         true,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		}
	}()

	return chunks, nil
}

// processStream consumes the Gemini response iterator and converts parts
// into chunks. Returns the final usage counts.
func (p *GoogleProvider) processStream(ctx context.Context, streamIter iter.Seq2[*genai.GenerateContentResponse, error], chunks chan<- *agent.CompletionChunk) (int, int, error) {
	var inputTokens, outputTokens int

	for resp, err := range streamIter {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		default:
		}

		if err != nil {
			return 0, 0, err
		}
		if resp == nil {
			continue
		}

		if resp.UsageMetadata != nil {
			if resp.UsageMetadata.PromptTokenCount > 0 {
				inputTokens = int(resp.UsageMetadata.PromptTokenCount)
			}
			if resp.UsageMetadata.CandidatesTokenCount > 0 {
				outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}

			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}

				if part.Text != "" {
					chunks <- &agent.CompletionChunk{Text: part.Text}
				}

				if part.FunctionCall != nil {
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}

					chunks <- &agent.CompletionChunk{
						ToolCall: &models.ToolCall{
							ID:    generateToolCallID(part.FunctionCall.Name),
							Name:  part.FunctionCall.Name,
							Input: argsJSON,
						},
					}
				}
			}
		}
	}

	return inputTokens, outputTokens, nil
}

// convertMessages converts internal messages to Gemini content. Assistant
// messages map to the "model" role; tool results become function response
// parts on the user side.
func (p *GoogleProvider) convertMessages(messages []agent.CompletionMessage) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range messages {
		// System prompts are handled via SystemInstruction in the config.
		if msg.Role == "system" {
			continue
		}

		content := &genai.Content{}

		switch msg.Role {
		case "assistant":
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{
				Text: msg.Content,
			})
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(tc.Input, &args); err != nil {
				args = make(map[string]any)
			}

			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					Name: tc.Name,
					Args: args,
				},
			})
		}

		for _, tr := range msg.ToolResults {
			var response map[string]any
			if err := json.Unmarshal([]byte(tr.Content), &response); err != nil {
				response = map[string]any{
					"result": tr.Content,
					"error":  tr.IsError,
				}
			}

			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     getToolNameFromID(tr.ToolCallID, messages),
					Response: response,
				},
			})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}

	return result, nil
}

// buildConfig builds the GenerateContentConfig from a CompletionRequest.
func (p *GoogleProvider) buildConfig(req *agent.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.System},
			},
		}
	}

	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		// #nosec G115 -- bounded by min above
		config.MaxOutputTokens = int32(maxTokens)
	}

	if len(req.Tools) > 0 {
		config.Tools = toolconv.ToGeminiTools(req.Tools)
	}

	return config
}

func (p *GoogleProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

// isRetryableError keeps Gemini-specific wording: the API reports rate
// limiting as "resource exhausted", which the generic classifier would
// mistake for a billing problem.
func (p *GoogleProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason.IsRetryable()
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "resource exhausted") ||
		strings.Contains(errMsg, "quota") {
		return true
	}

	return ClassifyError(err).IsRetryable()
}

// wrapError converts SDK errors into ProviderErrors. The Gen AI SDK folds
// status codes into error strings, so classification falls back to text
// matching.
func (p *GoogleProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	providerErr := NewProviderError("google", model, err)

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "401"), strings.Contains(errMsg, "unauthenticated"):
		providerErr = providerErr.WithStatus(http.StatusUnauthorized)
	case strings.Contains(errMsg, "403"), strings.Contains(errMsg, "permission denied"):
		providerErr = providerErr.WithStatus(http.StatusForbidden)
	case strings.Contains(errMsg, "404"), strings.Contains(errMsg, "not found"):
		providerErr = providerErr.WithStatus(http.StatusNotFound)
	case strings.Contains(errMsg, "429"), strings.Contains(errMsg, "resource exhausted"):
		providerErr = providerErr.WithStatus(http.StatusTooManyRequests)
	case strings.Contains(errMsg, "500"):
		providerErr = providerErr.WithStatus(http.StatusInternalServerError)
	case strings.Contains(errMsg, "503"):
		providerErr = providerErr.WithStatus(http.StatusServiceUnavailable)
	}

	return providerErr
}

// generateToolCallID synthesizes a tool call ID; Gemini doesn't provide one.
func generateToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}

// getToolNameFromID finds the tool name for a call ID by scanning earlier
// assistant messages. Gemini's function responses are keyed by name, not ID.
func getToolNameFromID(toolCallID string, messages []agent.CompletionMessage) string {
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			if tc.ID == toolCallID {
				return tc.Name
			}
		}
	}
	// Fall back to the "call_<name>_<timestamp>" format.
	parts := strings.Split(toolCallID, "_")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
