// Package backup periodically snapshots the Article Store to durable blob
// storage and restores from the latest snapshot on cold start.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/secondbrain-app/article-hub/internal/article"
)

const snapshotVersion = 1

// Snapshot is the durable, versioned representation of the Article Store at a
// point in time.
type Snapshot struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Articles  []article.Article `json:"articles"`
}

// Encode serializes a snapshot to JSON.
func Encode(snap Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}

// Decode parses and validates a serialized snapshot.
func Decode(raw []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}
