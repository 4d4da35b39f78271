package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"contract-lens/internal/domain"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/time/rate"
)

// LLMClient is the hosted-model boundary. The reasoning behind analyses and
// chat answers lives entirely on the other side of it.
type LLMClient interface {
	// GenerateReview sends a single analysis prompt and returns the raw
	// model output (expected, but not trusted, to be JSON).
	GenerateReview(ctx context.Context, prompt string) (string, error)
	// Chat sends a prompt with prior conversation history.
	Chat(ctx context.Context, history []*domain.ChatMessage, prompt string) (string, error)
}

const (
	geminiModel = "gemini-2.0-flash-001"

	// Sustained request budget against Vertex AI, with room for short bursts.
	requestsPerSecond = 2
	burstRequests     = 6

	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 16 * time.Second
)

// GeminiClient implements LLMClient against Vertex AI.
type GeminiClient struct {
	client  *genai.Client
	limiter *rate.Limiter
}

// NewGeminiClient creates a Vertex AI backed client.
func NewGeminiClient(ctx context.Context, projectID, location string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}
	return &GeminiClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstRequests),
	}, nil
}

func (g *GeminiClient) GenerateReview(ctx context.Context, prompt string) (string, error) {
	return g.call(ctx, func(ctx context.Context) (string, error) {
		model := g.client.GenerativeModel(geminiModel)
		model.SetTemperature(0.2)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("gemini call failed: %w", err)
		}
		return flattenResponse(resp)
	})
}

func (g *GeminiClient) Chat(ctx context.Context, history []*domain.ChatMessage, prompt string) (string, error) {
	return g.call(ctx, func(ctx context.Context) (string, error) {
		model := g.client.GenerativeModel(geminiModel)
		model.SetTemperature(0.5)

		chat := model.StartChat()
		for _, m := range history {
			role := "user"
			if m.Role == "model" {
				role = "model"
			}
			chat.History = append(chat.History, &genai.Content{
				Role:  role,
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		}

		resp, err := chat.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("gemini call failed: %w", err)
		}
		return flattenResponse(resp)
	})
}

// call wraps a model invocation with rate limiting and retry with
// exponential backoff.
func (g *GeminiClient) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(attempt-1)))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("gemini call failed after %d retries: %w", maxRetries, lastErr)
}

func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "deadline exceeded")
}

func flattenResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}
