package analyzer_test

import (
	"context"
	"encoding/json"

	"fractionalhub.app/concierge/common/llm"
	"fractionalhub.app/concierge/internal/model"
	"fractionalhub.app/concierge/internal/store"
)

// mockLLM returns a canned JSON document as the structured completion.
type mockLLM struct {
	chatFn  func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	prompts []string
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.prompts = append(m.prompts, req.UserPrompt)
	if m.chatFn != nil {
		return m.chatFn(ctx, req, result)
	}
	return &llm.Response{}, nil
}

func (m *mockLLM) Model() string { return "mock" }

// respondWith builds a chatFn that unmarshals the given document into the
// caller's result struct, the way the real client does.
func respondWith(doc string) func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	return func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
		if err := json.Unmarshal([]byte(doc), result); err != nil {
			return nil, err
		}
		return &llm.Response{}, nil
	}
}

type mockJobStore struct {
	searchFn func(ctx context.Context, q store.JobQuery) ([]model.Job, error)
	queries  []store.JobQuery
}

func (m *mockJobStore) Search(ctx context.Context, q store.JobQuery) ([]model.Job, error) {
	m.queries = append(m.queries, q)
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

func (m *mockJobStore) GetBySlug(ctx context.Context, slug string) (*model.Job, error) {
	return nil, store.ErrNotFound
}
