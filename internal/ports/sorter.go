package ports

import (
	"context"

	"github.com/mikey/llm-mail-sorter/internal/core"
)

// Sorter runs the mailbox sorting loop
type Sorter interface {
	// Run blocks until ctx is cancelled and the session is closed
	Run(ctx context.Context) error

	// State returns the current loop state
	State() core.State
}

// EmailClassifier classifies a single decoded email
type EmailClassifier interface {
	// Analyze classifies the email and reports how the category was reached
	Analyze(ctx context.Context, email *core.Email) *core.ClassificationResult
}
