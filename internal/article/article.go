// Package article defines the domain model for saved articles and the
// interfaces the rest of the service is wired against.
package article

import "time"

// Stage is a named state in an article's reading workflow.
type Stage string

// The closed set of workflow stages. An article always holds exactly one.
const (
	StageInbox   Stage = "inbox"
	StageReading Stage = "reading"
	StageDone    Stage = "done"
)

// Stages lists every valid stage in board order.
func Stages() []Stage {
	return []Stage{StageInbox, StageReading, StageDone}
}

// Valid reports whether s is a member of the closed stage set.
func (s Stage) Valid() bool {
	switch s {
	case StageInbox, StageReading, StageDone:
		return true
	default:
		return false
	}
}

// Article is a URL a user saved, tracked as it moves across the board.
// ID, OwnerID and URL are immutable after creation; Title is optional
// enrichment metadata and never affects lifecycle correctness.
type Article struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageCounts maps each stage to the number of articles currently in it.
// Stages with zero articles are present with a zero count.
type StageCounts map[Stage]int

// Total sums the per-stage counts.
func (c StageCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
