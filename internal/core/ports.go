package core

import (
	"context"
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Complete sends a prompt and returns the raw reply text
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the model identifier used for completions
	Model() string
}

// ProcessedLog is the durable backing for the processed message set
type ProcessedLog interface {
	// Load returns every identifier previously appended
	Load(ctx context.Context) ([]MessageID, error)

	// Append durably records one identifier
	Append(ctx context.Context, id MessageID) error

	// Close releases the underlying resources
	Close() error
}

// MailboxDialer opens authenticated mailbox sessions
type MailboxDialer interface {
	Connect(ctx context.Context) (MailboxSession, error)
}

// MailboxSession is one live connection to the mailbox server. A session owns
// at most one selected folder; message operations apply to that folder.
type MailboxSession interface {
	// IsAlive performs a bounded round-trip probe
	IsAlive(ctx context.Context) bool

	// SelectFolder selects a folder, read-write when writable is set
	SelectFolder(ctx context.Context, name string, writable bool) error

	// SelectedFolder returns the selected folder or "" when none
	SelectedFolder() string

	// ListUnseenIDs returns the identifiers of unseen messages in the selected folder
	ListUnseenIDs(ctx context.Context) ([]MessageID, error)

	// FetchMessage returns the raw message and leaves its seen state unchanged
	FetchMessage(ctx context.Context, id MessageID) ([]byte, error)

	// SetFlag adds or removes a flag on a message
	SetFlag(ctx context.Context, id MessageID, flag Flag, on bool) error

	// MoveMessage copies the message to dest, marks the source deleted and expunges it
	MoveMessage(ctx context.Context, id MessageID, dest string) error

	// Logout ends the session and closes the connection
	Logout(ctx context.Context) error
}

// FolderLister is implemented by sessions that can report folder statistics
type FolderLister interface {
	ListFolders(ctx context.Context) ([]FolderStat, error)
}
