// Package command classifies inbound message text.
package command

import "strings"

// Kind is the closed set of message classifications. Anything that is not a
// known command is either an explicitly-unknown command (leading slash) or
// free text to be scanned for URLs.
type Kind int

const (
	// KindText is free text, handed to the URL extractor.
	KindText Kind = iota
	// KindHelp is the /help command.
	KindHelp
	// KindStats is the /stats command.
	KindStats
	// KindList is the /list command.
	KindList
	// KindSummary is the /summary command.
	KindSummary
	// KindBackup is the /backup command.
	KindBackup
	// KindUnknown is slash-prefixed text matching no known command.
	KindUnknown
)

// String names the kind for logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindHelp:
		return "help"
	case KindStats:
		return "stats"
	case KindList:
		return "list"
	case KindSummary:
		return "summary"
	case KindBackup:
		return "backup"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Command is the classification of one message.
type Command struct {
	Kind Kind
	// Raw is the trimmed input, kept for reply wording and URL extraction.
	Raw string
}

// known is the single dispatch table. Matching is exact and case-sensitive;
// no prefix or fuzzy matching.
var known = map[string]Kind{
	"/help":    KindHelp,
	"/stats":   KindStats,
	"/list":    KindList,
	"/summary": KindSummary,
	"/backup":  KindBackup,
}

// Parse classifies text. Input is whitespace-trimmed before matching.
func Parse(text string) Command {
	trimmed := strings.TrimSpace(text)
	if kind, ok := known[trimmed]; ok {
		return Command{Kind: kind, Raw: trimmed}
	}
	if strings.HasPrefix(trimmed, "/") {
		return Command{Kind: KindUnknown, Raw: trimmed}
	}
	return Command{Kind: KindText, Raw: trimmed}
}
