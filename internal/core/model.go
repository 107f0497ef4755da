package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Category is the closed set of classifications a message can receive
type Category string

// Supported categories
const (
	CategoryPersonal   Category = "Personal"
	CategorySpam       Category = "Spam"
	CategoryAccounts   Category = "Accounts"
	CategoryPromotions Category = "Promotions"
)

// Categories lists every category in prompt order
var Categories = []Category{
	CategoryPersonal,
	CategorySpam,
	CategoryAccounts,
	CategoryPromotions,
}

// ParseCategory matches free text against the category vocabulary. Surrounding
// whitespace, quotes and trailing punctuation are ignored, as is letter case.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`*.!")
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// MessageID identifies a message within a single folder. It is the decimal
// form of the server-assigned UID.
type MessageID string

// MessageIDFromUID converts a UID into a MessageID
func MessageIDFromUID(uid uint32) MessageID {
	return MessageID(strconv.FormatUint(uint64(uid), 10))
}

// UID parses the MessageID back into a UID
func (id MessageID) UID() (uint32, error) {
	n, err := strconv.ParseUint(string(id), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid message id %q", string(id))
	}
	return uint32(n), nil
}

// Flag is a message flag the sorter manipulates
type Flag string

// Flags used by the sorter
const (
	FlagSeen    Flag = `\Seen`
	FlagFlagged Flag = `\Flagged`
	FlagDeleted Flag = `\Deleted`
)

// FolderMapping is a total, immutable mapping from category to destination folder
type FolderMapping struct {
	folders map[Category]string
}

// NewFolderMapping validates that every category has a destination and copies
// the input so later changes to it have no effect.
func NewFolderMapping(folders map[Category]string) (FolderMapping, error) {
	m := make(map[Category]string, len(Categories))
	var missing []string
	for _, c := range Categories {
		name := strings.TrimSpace(folders[c])
		if name == "" {
			missing = append(missing, string(c))
			continue
		}
		m[c] = name
	}
	if len(missing) > 0 {
		return FolderMapping{}, fmt.Errorf("folder mapping has no destination for %s", strings.Join(missing, ", "))
	}
	for c := range folders {
		if _, ok := m[c]; !ok {
			return FolderMapping{}, fmt.Errorf("folder mapping has unknown category %q", string(c))
		}
	}
	return FolderMapping{folders: m}, nil
}

// Destination returns the folder mapped to the category
func (m FolderMapping) Destination(c Category) string {
	return m.folders[c]
}

// Folders returns the distinct destination folders in sorted order
func (m FolderMapping) Folders() []string {
	seen := make(map[string]struct{}, len(m.folders))
	var out []string
	for _, f := range m.folders {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// CategoriesFor returns the categories mapped to a folder, in prompt order
func (m FolderMapping) CategoriesFor(folder string) []Category {
	var out []Category
	for _, c := range Categories {
		if m.folders[c] == folder {
			out = append(out, c)
		}
	}
	return out
}

// Email represents a decoded email message
type Email struct {
	ID      MessageID
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// Classification sources
const (
	SourceLLM       = "llm"
	SourceWhitelist = "whitelist"
	SourceEmpty     = "empty"
	SourceFallback  = "fallback"
)

// ClassificationResult represents the outcome of classifying one email
type ClassificationResult struct {
	Category   Category
	Source     string
	RawReply   string
	Err        error
	ModelUsed  string
	AnalyzedAt time.Time
	Duration   time.Duration
}

// FolderStat summarizes a mailbox folder
type FolderStat struct {
	Name     string
	Messages uint32
	Unseen   uint32
	// Selectable is false for folders flagged \Noselect
	Selectable bool
}
