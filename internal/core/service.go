package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-mail-sorter/internal/utils"
	"github.com/mikey/llm-mail-sorter/internal/whitelist"
	"go.uber.org/zap"
)

// ClassifierOptions configures the ClassifierService
type ClassifierOptions struct {
	// MaxBodyChars bounds the body characters submitted for classification
	MaxBodyChars int
	// EmptyCategory is returned for messages with no subject and no body
	EmptyCategory Category
	// FallbackCategory is returned when classification fails or is invalid
	FallbackCategory Category
	// WhitelistCategory is returned for whitelisted sender domains
	WhitelistCategory Category
	// Timeout bounds a single external call; zero means no extra bound
	Timeout time.Duration
	// PromptTemplate overrides DefaultPromptTemplate when set
	PromptTemplate string
}

// ClassifierService wraps the external classification call with input
// shaping and fallback handling. It holds no mutable state.
type ClassifierService struct {
	llmClient     LLMClient
	whitelist     *whitelist.Checker
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	opts          ClassifierOptions
}

// NewClassifierService creates a new classifier service
func NewClassifierService(
	llmClient LLMClient,
	checker *whitelist.Checker,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts ClassifierOptions,
) *ClassifierService {
	return &ClassifierService{
		llmClient:     llmClient,
		whitelist:     checker,
		textProcessor: textProcessor,
		logger:        logger,
		opts:          opts,
	}
}

// Classify returns the category for a message. It never fails: problems with
// the external call yield the fallback category.
func (s *ClassifierService) Classify(ctx context.Context, sender, subject, body string) Category {
	return s.Analyze(ctx, &Email{From: sender, Subject: subject, Body: body}).Category
}

// Analyze classifies an email and reports how the category was reached
func (s *ClassifierService) Analyze(ctx context.Context, email *Email) *ClassificationResult {
	start := time.Now()
	result := s.analyze(ctx, email)
	result.AnalyzedAt = time.Now()
	result.Duration = result.AnalyzedAt.Sub(start)
	return result
}

func (s *ClassifierService) analyze(ctx context.Context, email *Email) *ClassificationResult {
	subject := strings.TrimSpace(email.Subject)
	body := strings.TrimSpace(email.Body)

	if subject == "" && body == "" {
		s.logger.Info("Empty subject and body, using default category",
			zap.String("message_id", string(email.ID)),
			zap.String("category", string(s.opts.EmptyCategory)))
		return &ClassificationResult{
			Category: s.opts.EmptyCategory,
			Source:   SourceEmpty,
		}
	}

	if s.whitelist.IsWhitelisted(email.From) {
		s.logger.Info("Sender domain is whitelisted",
			zap.String("message_id", string(email.ID)),
			zap.String("sender", email.From),
			zap.String("category", string(s.opts.WhitelistCategory)))
		return &ClassificationResult{
			Category:  s.opts.WhitelistCategory,
			Source:    SourceWhitelist,
			ModelUsed: "whitelist",
		}
	}

	processedBody := s.textProcessor.ProcessText(body, s.opts.MaxBodyChars)
	prompt := FormatPrompt(s.opts.PromptTemplate, email.From, subject, processedBody)

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	reply, err := s.llmClient.Complete(callCtx, prompt)
	if err != nil {
		s.logger.Warn("Classification call failed, using fallback category",
			zap.String("message_id", string(email.ID)),
			zap.String("category", string(s.opts.FallbackCategory)),
			zap.Error(err))
		return &ClassificationResult{
			Category:  s.opts.FallbackCategory,
			Source:    SourceFallback,
			Err:       err,
			ModelUsed: s.llmClient.Model(),
		}
	}

	// Replies that differ only in case, quotes or punctuation are accepted
	category, ok := ParseCategory(reply)
	if !ok {
		s.logger.Warn("Classification reply is not a known category, using fallback category",
			zap.String("message_id", string(email.ID)),
			zap.String("reply", reply),
			zap.String("category", string(s.opts.FallbackCategory)))
		return &ClassificationResult{
			Category:  s.opts.FallbackCategory,
			Source:    SourceFallback,
			RawReply:  reply,
			Err:       fmt.Errorf("invalid category %q", reply),
			ModelUsed: s.llmClient.Model(),
		}
	}

	return &ClassificationResult{
		Category:  category,
		Source:    SourceLLM,
		RawReply:  reply,
		ModelUsed: s.llmClient.Model(),
	}
}
