package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatinsight/chat-insight/internal/ai/openai"
	"github.com/chatinsight/chat-insight/internal/cache/memory"
	"github.com/chatinsight/chat-insight/internal/types"
)

type fakeLLM struct {
	mu       sync.Mutex
	requests []*openai.Request
	reply    func(n int, req *openai.Request) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req *openai.Request) (*openai.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()

	text, err := f.reply(n, req)
	if err != nil {
		return nil, err
	}
	return &openai.Response{Choices: []openai.Choice{{Message: openai.Message{Role: "assistant", Content: text}}}}, nil
}

func msg(conv, node, role, text string, ts float64) types.MessageRecord {
	m := types.MessageRecord{
		ConversationID:    conv,
		ConversationTitle: "Title " + conv,
		NodeID:            node,
		Text:              text,
		CreateTime:        types.FloatPtr(ts),
	}
	if role != "" {
		m.Role = types.StringPtr(role)
	}
	return m
}

func relations(n int) *types.Relations {
	rel := &types.Relations{}
	for i := 0; i < n; i++ {
		conv := fmt.Sprintf("c%d", i)
		rel.Messages = append(rel.Messages,
			msg(conv, "u", "user", "please explain goroutines to me", 1),
			msg(conv, "a", "assistant", "goroutines are lightweight threads", 2),
		)
	}
	return rel
}

func TestDigest(t *testing.T) {
	long := strings.Repeat("é", 600)
	code := msg("c1", "n4", "assistant", "here is the code you asked for", 3)
	code.HasCode = true
	code.HasLink = true

	got := Digest("c1", []types.MessageRecord{
		msg("c1", "n3", "user", long, 2),
		msg("c1", "n1", "", "a node with no role at all", 0),
		code,
		msg("c1", "n2", "user", "   short   ", 1),
		msg("c1", "n0", "user", "the very first question", 0.5),
	})

	lines := strings.Split(strings.TrimSpace(got), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "Title: Title c1", lines[0])
	assert.Equal(t, "Conversation ID: c1", lines[1])
	assert.NotContains(t, got, "no role")
	assert.NotContains(t, got, "short")

	first := strings.Index(got, "USER: the very first question")
	second := strings.Index(got, "USER: "+strings.Repeat("é", 500)+"...[truncated]")
	third := strings.Index(got, "ASSISTANT: here is the code you asked for [code, link]")
	require.True(t, first > 0 && second > first && third > second, got)
}

func TestDigestUntitled(t *testing.T) {
	m := msg("c1", "n1", "user", "a sufficiently long question", 1)
	m.ConversationTitle = ""
	assert.True(t, strings.HasPrefix(Digest("c1", []types.MessageRecord{m}), "Title: Untitled\n"))
	assert.Equal(t, "", Digest("c1", nil))
}

func TestSummarizeBatches(t *testing.T) {
	llm := &fakeLLM{reply: func(n int, req *openai.Request) (string, error) {
		return fmt.Sprintf("answer %d", n), nil
	}}
	logger, _ := logtest.NewNullLogger()
	svc := NewService(llm, logger, Options{Model: "deepseek", BatchSize: 2})
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	report, err := svc.Summarize(context.Background(), relations(5))
	require.NoError(t, err)

	assert.Equal(t, 5, report.Conversations)
	require.Len(t, report.Batches, 3)
	assert.Equal(t, 2, report.Batches[0].Conversations)
	assert.Equal(t, 1, report.Batches[2].Conversations)
	assert.Equal(t, "answer 4", report.Trends)

	require.Len(t, llm.requests, 4)
	for _, req := range llm.requests[:3] {
		assert.Equal(t, "deepseek", req.Model)
		assert.Equal(t, maxTokens, req.MaxTokens)
		assert.InDelta(t, batchTemperature, *req.Temperature, 1e-9)
		assert.Equal(t, BatchSystemPrompt, req.Messages[0].Content)
	}
	trend := llm.requests[3]
	assert.InDelta(t, trendTemperature, *trend.Temperature, 1e-9)
	assert.Contains(t, trend.Messages[1].Content, "answer 1")
	assert.Contains(t, trend.Messages[1].Content, "answer 3")
}

func TestSummarizeRecordsFailedBatch(t *testing.T) {
	llm := &fakeLLM{reply: func(n int, req *openai.Request) (string, error) {
		switch n {
		case 1:
			return "", errors.New("rate limited")
		case 2:
			return "", nil
		}
		return "ok", nil
	}}
	logger, hook := logtest.NewNullLogger()
	svc := NewService(llm, logger, Options{BatchSize: 1})

	report, err := svc.Summarize(context.Background(), relations(3))
	require.NoError(t, err)

	require.Len(t, report.Batches, 3)
	assert.True(t, report.Batches[0].Failed)
	assert.Contains(t, report.Batches[0].Summary, "[batch 1 failed: call model: rate limited]")
	assert.True(t, report.Batches[1].Failed)
	assert.Contains(t, report.Batches[1].Summary, ErrEmptyResponse.Error())
	assert.False(t, report.Batches[2].Failed)
	assert.False(t, report.TrendsFailed)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "batch summary failed" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestSummarizeSkipsEmptyBatches(t *testing.T) {
	llm := &fakeLLM{reply: func(int, *openai.Request) (string, error) { return "x", nil }}
	logger, _ := logtest.NewNullLogger()
	svc := NewService(llm, logger, Options{BatchSize: 10})

	report, err := svc.Summarize(context.Background(), &types.Relations{})
	require.NoError(t, err)
	assert.Empty(t, report.Batches)
	assert.Len(t, llm.requests, 1)
}

func TestSummarizeHonoursCancellationDuringPause(t *testing.T) {
	llm := &fakeLLM{reply: func(int, *openai.Request) (string, error) { return "x", nil }}
	logger, _ := logtest.NewNullLogger()
	svc := NewService(llm, logger, Options{BatchSize: 1, Pause: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Summarize(ctx, relations(2))
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, llm.requests, 1)
}

func TestSummarizeUsesCache(t *testing.T) {
	c, err := memory.New(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	llm := &fakeLLM{reply: func(n int, _ *openai.Request) (string, error) { return fmt.Sprintf("r%d", n), nil }}
	logger, _ := logtest.NewNullLogger()
	svc := NewService(llm, logger, Options{BatchSize: 10, Cache: c, CacheTTL: time.Minute})

	first, err := svc.Summarize(context.Background(), relations(2))
	require.NoError(t, err)
	second, err := svc.Summarize(context.Background(), relations(2))
	require.NoError(t, err)

	assert.Len(t, llm.requests, 2)
	assert.Equal(t, first.Batches, second.Batches)
	assert.Equal(t, first.Trends, second.Trends)
}

func TestWriteMarkdown(t *testing.T) {
	report := &Report{
		GeneratedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Conversations: 3,
		Batches:       []Batch{{Number: 1, Summary: "first"}, {Number: 3, Summary: "second"}},
		Trends:        "trending",
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteMarkdown(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Conversation Summaries and Usage Trends\n\nGenerated: 2026-01-02 03:04:05\n"))
	assert.Contains(t, out, "Conversations analyzed: 3\nBatches: 2\n")
	assert.Contains(t, out, "## Batch 1\n\nfirst")
	assert.Contains(t, out, "## Batch 2\n\nsecond")
	assert.True(t, strings.HasSuffix(out, "# Overall Trends and User Profile\n\ntrending\n"))
}
