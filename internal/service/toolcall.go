package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"fractionalhub.app/concierge/internal/model"
	"fractionalhub.app/concierge/internal/store"
)

// ToolCallService executes the tool calls the voice agent emits and renders
// their results as the content string relayed back over the transport.
type ToolCallService interface {
	Execute(ctx context.Context, toolCallID, name, parameters string) (string, error)
}

type toolCallService struct {
	jobs     store.JobStore
	profiles store.ProfileStore
}

func NewToolCallService(jobs store.JobStore, profiles store.ProfileStore) ToolCallService {
	return &toolCallService{jobs: jobs, profiles: profiles}
}

type searchJobsParams struct {
	RoleKeywords []string `json:"role_keywords"`
	Location     string   `json:"location"`
	RemoteOnly   bool     `json:"remote_only"`
	MinDayRate   int      `json:"min_day_rate"`
	MaxDayRate   int      `json:"max_day_rate"`
}

type savePreferenceParams struct {
	UserID         string   `json:"user_id"`
	PreferenceType string   `json:"preference_type"`
	Values         []string `json:"values"`
	Details        string   `json:"details"`
}

func (s *toolCallService) Execute(ctx context.Context, toolCallID, name, parameters string) (string, error) {
	slog.InfoContext(ctx, "executing tool call", "tool", name, "tool_call_id", toolCallID)

	switch name {
	case "search_jobs":
		return s.searchJobs(ctx, parameters)
	case "save_preference":
		return s.savePreference(ctx, parameters)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (s *toolCallService) searchJobs(ctx context.Context, parameters string) (string, error) {
	var params searchJobsParams
	if err := json.Unmarshal([]byte(parameters), &params); err != nil {
		return "", fmt.Errorf("decoding search_jobs parameters: %w", err)
	}

	jobs, err := s.jobs.Search(ctx, store.JobQuery{
		Keywords:   params.RoleKeywords,
		Location:   params.Location,
		RemoteOnly: params.RemoteOnly,
		MinDayRate: params.MinDayRate,
		MaxDayRate: params.MaxDayRate,
	})
	if err != nil {
		return "", fmt.Errorf("searching jobs: %w", err)
	}
	content, err := model.EncodeExtraction(&model.ExtractionResult{Type: model.ResultTypeJobs, Jobs: jobs})
	if err != nil {
		return "", fmt.Errorf("encoding job results: %w", err)
	}
	return string(content), nil
}

// savePreference persists the preference and returns a confirmation payload
// so the presentation layer can show the user exactly what was stored.
func (s *toolCallService) savePreference(ctx context.Context, parameters string) (string, error) {
	var params savePreferenceParams
	if err := json.Unmarshal([]byte(parameters), &params); err != nil {
		return "", fmt.Errorf("decoding save_preference parameters: %w", err)
	}
	if params.UserID == "" {
		return "", fmt.Errorf("save_preference requires a user_id")
	}

	if err := s.profiles.SavePreference(ctx, params.UserID, params.PreferenceType, params.Values); err != nil {
		return "", fmt.Errorf("saving preference: %w", err)
	}

	content, err := model.EncodeExtraction(&model.ExtractionResult{
		Type: model.ResultTypeConfirmation,
		Confirmation: &model.ConfirmationRequest{
			Details:        params.Details,
			PreferenceType: params.PreferenceType,
			Values:         params.Values,
			UserID:         params.UserID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding confirmation: %w", err)
	}
	return string(content), nil
}
