package ai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"

	"agentloop/internal/logger"
)

var ErrMissingAPIKey = errors.New("OpenAI API key not found")

// ChatClient is the part of the completion API the agent needs.
// *openai.Client satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OfflineClient stands in for a missing API client: every completion fails
// with Err. Commands that never call the model run on it.
type OfflineClient struct {
	Err error
}

func (c OfflineClient) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, c.Err
}

var modelMap = map[string]string{
	"gpt-4o":      openai.GPT4o,
	"gpt-4o-mini": openai.GPT4oMini,
	"gpt-4.5":     "gpt-4.5-preview",
}

// NewClientFromEnv builds a client from OPENAI_API_KEY and the optional
// OPENAI_BASE_URL for compatible endpoints.
func NewClientFromEnv() (*openai.Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Warnf("OPENAI_API_KEY is not set; AI features are unavailable")
		return nil, ErrMissingAPIKey
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		clientConfig.BaseURL = baseURL
		logger.Infof("Using OpenAI-compatible endpoint %s", baseURL)
	}

	logger.Successf("OpenAI client initialized with API key")
	return openai.NewClientWithConfig(clientConfig), nil
}

func MapModelName(modelName string) string {
	if mapped, exists := modelMap[modelName]; exists {
		return mapped
	}
	return modelName
}

// RetryPolicy controls exponential backoff around completion calls.
// MaxRetries counts retries after the first attempt.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
	Jitter     bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Base:       500 * time.Millisecond,
		Max:        8 * time.Second,
		Jitter:     true,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.Max > 0 {
		b = retry.WithCappedDuration(p.Max, b)
	}
	if p.Jitter {
		b = retry.WithJitter(50*time.Millisecond, b)
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

// isRetryable reports whether err is worth another attempt: rate limits,
// server errors and timeouts of a single attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// createCompletion calls the API with a per-attempt timeout and retries
// transient failures according to policy.
func createCompletion(ctx context.Context, client ChatClient, request openai.ChatCompletionRequest, timeout time.Duration, policy RetryPolicy) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	attempt := 0
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		var callErr error
		resp, callErr = client.CreateChatCompletion(callCtx, request)
		if callErr != nil {
			if ctx.Err() == nil && isRetryable(callErr) {
				logger.Warnf("Completion attempt %d failed, retrying: %v", attempt, callErr)
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		return nil
	})
	return resp, err
}
