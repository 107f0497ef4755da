package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyValidReply(t *testing.T) {
	llm := &fakeLLM{reply: func(string) (string, error) { return " Accounts.\n", nil }}
	svc := newTestClassifier(t, llm, ClassifierOptions{})

	got := svc.Classify(context.Background(), "bank@example.com", "Your statement", "Balance attached")
	assert.Equal(t, CategoryAccounts, got)
	assert.Equal(t, 1, llm.calls())
}

func TestClassifyEmptyMessageSkipsCall(t *testing.T) {
	llm := &fakeLLM{}
	svc := newTestClassifier(t, llm, ClassifierOptions{EmptyCategory: CategoryPromotions})

	result := svc.Analyze(context.Background(), &Email{From: "x@example.com", Subject: "  ", Body: "\n\t"})
	assert.Equal(t, CategoryPromotions, result.Category)
	assert.Equal(t, SourceEmpty, result.Source)
	assert.Equal(t, 0, llm.calls())
}

func TestClassifyFallbacks(t *testing.T) {
	cases := []struct {
		name  string
		reply func(string) (string, error)
	}{
		{"invalid reply", func(string) (string, error) { return "Newsletter", nil }},
		{"call error", func(string) (string, error) { return "", errors.New("quota exceeded") }},
		{"timeout", func(string) (string, error) { return "", context.DeadlineExceeded }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &fakeLLM{reply: tc.reply}
			svc := newTestClassifier(t, llm, ClassifierOptions{FallbackCategory: CategorySpam})

			result := svc.Analyze(context.Background(), &Email{From: "a@b.c", Subject: "Hi", Body: "there"})
			assert.Equal(t, CategorySpam, result.Category)
			assert.Equal(t, SourceFallback, result.Source)
			assert.Error(t, result.Err)
			assert.Equal(t, "fake-model", result.ModelUsed)
		})
	}
}

func TestClassifyTimeoutBoundsCall(t *testing.T) {
	svc := newTestClassifier(t, blockingLLM{}, ClassifierOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	got := svc.Classify(context.Background(), "a@b.c", "Hi", "there")
	assert.Equal(t, CategoryPersonal, got)
	assert.Less(t, time.Since(start), 5*time.Second)
}

type blockingLLM struct{}

func (blockingLLM) Complete(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingLLM) Model() string { return "blocking" }

func TestClassifyWhitelistedSender(t *testing.T) {
	llm := &fakeLLM{reply: func(string) (string, error) { return "Spam", nil }}
	svc := newTestClassifier(t, llm, ClassifierOptions{}, "example.org")

	result := svc.Analyze(context.Background(), &Email{From: "Alice <alice@Example.org>", Subject: "Lunch", Body: "Noon?"})
	assert.Equal(t, CategoryPersonal, result.Category)
	assert.Equal(t, SourceWhitelist, result.Source)
	assert.Equal(t, 0, llm.calls())
}

func TestClassifyTruncatesBody(t *testing.T) {
	llm := &fakeLLM{}
	svc := newTestClassifier(t, llm, ClassifierOptions{MaxBodyChars: 10})

	svc.Classify(context.Background(), "a@b.c", "Subject line", strings.Repeat("é", 50))
	require.Equal(t, 1, llm.calls())

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Sender: a@b.c")
	assert.Contains(t, prompt, "Subject: Subject line")
	assert.Contains(t, prompt, strings.Repeat("é", 10)+"\n---")
	assert.NotContains(t, prompt, strings.Repeat("é", 11))
}

func TestFormatPromptCustomTemplate(t *testing.T) {
	got := FormatPrompt("{sender}|{subject}|{body}", "s", "t", "b")
	assert.Equal(t, "s|t|b", got)
	assert.Contains(t, FormatPrompt("", "s", "t", "b"), "Sender: s")
}
