package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fractionalhub.app/concierge/common/id"
)

type memoryStore struct {
	client     *redis.Client
	maxEntries int
}

// NewMemoryStore creates a Redis-backed MemoryStore holding at most
// maxEntries transcript summaries per user, newest first.
func NewMemoryStore(client *redis.Client, maxEntries int) MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10
	}
	return &memoryStore{client: client, maxEntries: maxEntries}
}

type memoryEntry struct {
	ID         string    `json:"id"`
	SavedAt    time.Time `json:"saved_at"`
	Transcript string    `json:"transcript"`
}

func memoryKey(userID string) string {
	return "memory:" + userID
}

func (s *memoryStore) Append(ctx context.Context, userID, transcript string) error {
	entry, err := json.Marshal(memoryEntry{
		ID:         id.NewString(),
		SavedAt:    time.Now().UTC(),
		Transcript: transcript,
	})
	if err != nil {
		return fmt.Errorf("encoding memory entry: %w", err)
	}

	key := memoryKey(userID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, int64(s.maxEntries-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending memory entry: %w", err)
	}
	return nil
}

// RecentContext returns the stored summaries joined oldest-first, ready to
// travel as the previous_context session variable. Empty when the user has
// no memory yet.
func (s *memoryStore) RecentContext(ctx context.Context, userID string) (string, error) {
	raws, err := s.client.LRange(ctx, memoryKey(userID), 0, int64(s.maxEntries-1)).Result()
	if err != nil {
		return "", fmt.Errorf("reading memory entries: %w", err)
	}

	var parts []string
	for i := len(raws) - 1; i >= 0; i-- {
		var entry memoryEntry
		if err := json.Unmarshal([]byte(raws[i]), &entry); err != nil {
			continue
		}
		parts = append(parts, entry.Transcript)
	}
	return strings.Join(parts, "\n\n"), nil
}
