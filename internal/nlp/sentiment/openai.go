package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/metrics"
	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/pkg/circuitbreaker"
	"github.com/sentience/backend/pkg/logger"
	"github.com/sentience/backend/pkg/retry"
)

const systemPrompt = `You are a sentiment classifier for customer reviews of restaurants and shops.
Reviews may be written in Polish or English.

For every review, choose exactly one label: "positive", "neutral" or "negative",
and a confidence score between 0 and 1.

Reply with a JSON object only:
{"results": [{"id": 0, "label": "positive", "score": 0.97}]}
Return one entry for every input id.`

var errMalformedResponse = errors.New("malformed classifier response")

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	BatchSize   int
	Timeout     time.Duration
}

// OpenAI classifies reviews with a chat completion model, one request per
// batch of texts.
type OpenAI struct {
	client      chatCompleter
	model       string
	temperature float32
	batchSize   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAI(openai.NewClientWithConfig(clientCfg), cfg)
}

func newOpenAI(client chatCompleter, cfg Config) *OpenAI {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}

	cb := circuitbreaker.New("sentiment", circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		Logger: logger.GetLogger(),
	})

	logger.Info("Sentiment classifier initialized",
		zap.String("model", cfg.Model),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return &OpenAI{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		batchSize:   cfg.BatchSize,
		timeout:     cfg.Timeout,
		cb:          cb,
		retryConfig: retry.Config{
			Name:           "sentiment.classify",
			MaxAttempts:    3,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Retryable:      isRetryable,
			Logger:         logger.GetLogger(),
		},
	}
}

func (c *OpenAI) Classify(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, 0, len(texts))

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))

		batch, err := c.classifyBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to classify reviews %d-%d: %w", start, end-1, err)
		}
		results = append(results, batch...)
	}

	logger.Debug("Reviews classified", zap.Int("count", len(results)))
	return results, nil
}

func (c *OpenAI) classifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	prompt, err := buildPrompt(texts)
	if err != nil {
		return nil, err
	}

	var results []Result
	err = c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
				Temperature: c.temperature,
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
			})
			if err != nil {
				metrics.ClassifierCalls.WithLabelValues("error").Inc()
				return fmt.Errorf("failed to create completion: %w", err)
			}

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			if len(resp.Choices) == 0 {
				metrics.ClassifierCalls.WithLabelValues("malformed").Inc()
				return fmt.Errorf("%w: no choices", errMalformedResponse)
			}

			parsed, err := parseResults(resp.Choices[0].Message.Content, len(texts))
			if err != nil {
				metrics.ClassifierCalls.WithLabelValues("malformed").Inc()
				return err
			}

			metrics.ClassifierCalls.WithLabelValues("success").Inc()
			results = parsed
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

type promptItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func buildPrompt(texts []string) (string, error) {
	items := make([]promptItem, len(texts))
	for i, t := range texts {
		items[i] = promptItem{ID: i, Text: t}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode reviews: %w", err)
	}
	return "Classify these reviews:\n" + string(data), nil
}

type responseItem struct {
	ID    *int     `json:"id"`
	Label string   `json:"label"`
	Score *float64 `json:"score"`
}

// parseResults decodes a classifier reply and orders it by id. Every id in
// [0, n) must appear exactly once.
func parseResults(content string, n int) ([]Result, error) {
	content = stripCodeFence(content)

	var body struct {
		Results []responseItem `json:"results"`
	}
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	if len(body.Results) != n {
		return nil, fmt.Errorf("%w: got %d results for %d reviews", errMalformedResponse, len(body.Results), n)
	}

	out := make([]Result, n)
	seen := make([]bool, n)
	for _, item := range body.Results {
		if item.ID == nil || *item.ID < 0 || *item.ID >= n || seen[*item.ID] {
			return nil, fmt.Errorf("%w: bad or repeated id", errMalformedResponse)
		}
		label, err := review.ParseLabel(item.Label)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedResponse, err)
		}
		if item.Score == nil || *item.Score < 0 || *item.Score > 1 {
			return nil, fmt.Errorf("%w: score out of range for id %d", errMalformedResponse, *item.ID)
		}
		seen[*item.ID] = true
		out[*item.ID] = Result{Label: label, Score: *item.Score}
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// isRetryable retries rate limits, server errors and malformed replies.
func isRetryable(err error) bool {
	if errors.Is(err, errMalformedResponse) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return !errors.Is(err, context.Canceled)
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
