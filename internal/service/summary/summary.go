// Package summary generates LLM prose summaries of conversations in batches
// and an overall usage trend analysis.
package summary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chatinsight/chat-insight/internal/ai/openai"
	"github.com/chatinsight/chat-insight/internal/cache"
	"github.com/chatinsight/chat-insight/internal/types"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

const (
	batchTemperature = 0.7
	trendTemperature = 0.8
	maxTokens        = 4000
)

// Completer sends chat completion requests.
type Completer interface {
	Complete(ctx context.Context, req *openai.Request) (*openai.Response, error)
}

// Options configures the summary service.
type Options struct {
	Model     string
	BatchSize int
	Pause     time.Duration
	// Cache is optional; when set, identical prompts are answered from it.
	Cache    cache.Cache
	CacheTTL time.Duration
}

// Service produces summary reports.
type Service struct {
	llm       Completer
	cache     cache.Cache
	cacheTTL  time.Duration
	model     string
	batchSize int
	pause     time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

// NewService creates a new summary service.
func NewService(llm Completer, logger *logrus.Logger, opts Options) *Service {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 30
	}
	return &Service{
		llm:       llm,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		model:     opts.Model,
		batchSize: batchSize,
		pause:     opts.Pause,
		logger:    logger,
		now:       time.Now,
	}
}

// Batch is the model output for one batch of conversations.
type Batch struct {
	Number        int    `json:"number"`
	Conversations int    `json:"conversations"`
	Summary       string `json:"summary"`
	Failed        bool   `json:"failed"`
}

// Report is the full summary run.
type Report struct {
	GeneratedAt   time.Time `json:"generated_at"`
	Conversations int       `json:"conversations"`
	Batches       []Batch   `json:"batches"`
	Trends        string    `json:"trends"`
	TrendsFailed  bool      `json:"trends_failed"`
}

// Summarize digests every conversation in rel, summarises them in batches and
// runs the trend analysis over the batch outputs. A failed model call is
// recorded in the report and does not stop the run; only cancellation does.
func (s *Service) Summarize(ctx context.Context, rel *types.Relations) (*Report, error) {
	ids := rel.ConversationIDs()
	groups := rel.Group()
	report := &Report{Conversations: len(ids)}

	numBatches := (len(ids) + s.batchSize - 1) / s.batchSize
	for b := 0; b < numBatches; b++ {
		start := b * s.batchSize
		end := min(start+s.batchSize, len(ids))
		log := s.logger.WithFields(logrus.Fields{
			"batch":   b + 1,
			"batches": numBatches,
			"from":    start + 1,
			"to":      end,
		})

		var digests []string
		for _, id := range ids[start:end] {
			if d := Digest(id, groups[id].Messages); d != "" {
				digests = append(digests, d)
			}
		}
		if len(digests) == 0 {
			log.Info("batch has no usable conversations, skipping")
			continue
		}

		log.WithField("conversations", len(digests)).Info("summarizing batch")
		batch := Batch{Number: b + 1, Conversations: len(digests)}
		text, err := s.complete(ctx, BatchSystemPrompt, batchPrompt(digests), batchTemperature)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).Warn("batch summary failed")
			batch.Summary = fmt.Sprintf("[batch %d failed: %v]", b+1, err)
			batch.Failed = true
		} else {
			batch.Summary = text
		}
		report.Batches = append(report.Batches, batch)

		if b < numBatches-1 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}

	summaries := make([]string, len(report.Batches))
	for i, b := range report.Batches {
		summaries[i] = b.Summary
	}

	s.logger.WithField("batches", len(summaries)).Info("analyzing overall trends")
	trends, err := s.complete(ctx, TrendSystemPrompt, trendPrompt(summaries), trendTemperature)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.WithError(err).Warn("trend analysis failed")
		trends = fmt.Sprintf("[trend analysis failed: %v]", err)
		report.TrendsFailed = true
	}
	report.Trends = trends
	report.GeneratedAt = s.now()

	return report, nil
}

func (s *Service) complete(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	key := s.cacheKey(system, prompt, temperature)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("summary cache read failed")
		} else if ok {
			return string(cached), nil
		}
	}

	resp, err := s.llm.Complete(ctx, &openai.Request{
		Model: s.model,
		Messages: []openai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: openai.Temperature(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(text), s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("summary cache write failed")
		}
	}
	return text, nil
}

func (s *Service) cacheKey(system, prompt string, temperature float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%g\x00%s\x00%s", s.model, temperature, system, prompt)
	return "summary:" + hex.EncodeToString(h.Sum(nil))
}
