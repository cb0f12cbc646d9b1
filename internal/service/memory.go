package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fractionalhub.app/concierge/internal/store"
)

// MemoryService persists session transcripts and serves them back as prior
// context for the next session's connect.
type MemoryService interface {
	// Save stores a transcript. A false return with a reason means the
	// gateway declined the save, which is not an error.
	Save(ctx context.Context, userID, transcript string) (bool, string, error)
	Context(ctx context.Context, userID string) (string, error)
}

type memoryService struct {
	memories store.MemoryStore
}

func NewMemoryService(memories store.MemoryStore) MemoryService {
	return &memoryService{memories: memories}
}

func (s *memoryService) Save(ctx context.Context, userID, transcript string) (bool, string, error) {
	if userID == "" {
		return false, "no user id", nil
	}
	if strings.TrimSpace(transcript) == "" {
		return false, "empty transcript", nil
	}

	if err := s.memories.Append(ctx, userID, transcript); err != nil {
		return false, "", fmt.Errorf("appending transcript: %w", err)
	}
	slog.InfoContext(ctx, "transcript saved to memory", "transcript_len", len(transcript))
	return true, "", nil
}

func (s *memoryService) Context(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	out, err := s.memories.RecentContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetching memory context: %w", err)
	}
	return out, nil
}
