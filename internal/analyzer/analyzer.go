// Package analyzer implements the serving side of the transcript analyzers:
// the in-process LLM extraction (method B) and the proxy to the external
// python analyzer service (method C).
package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"fractionalhub.app/concierge/common/llm"
	"fractionalhub.app/concierge/internal/model"
	"fractionalhub.app/concierge/internal/store"
)

// TranscriptAnalyzer turns a raw user transcript into structured job-search
// intent and resolves it against the job store.
type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, transcript, userID string) (*model.ExtractionResult, error)
}

// searchIntent is the structured-output schema the LLM fills in. Strict
// schema mode means every field is always present.
type searchIntent struct {
	Intent         string   `json:"intent" jsonschema:"enum=job_search,enum=save_preference,enum=none" jsonschema_description:"What the user is asking for"`
	RoleKeywords   []string `json:"role_keywords" jsonschema_description:"Role/title keywords, e.g. cfo, cto, finance"`
	Location       string   `json:"location" jsonschema_description:"Desired location, empty if unspecified"`
	RemoteOnly     bool     `json:"remote_only"`
	MinDayRate     int      `json:"min_day_rate" jsonschema_description:"0 if unspecified"`
	MaxDayRate     int      `json:"max_day_rate" jsonschema_description:"0 if unspecified"`
	PreferenceType string   `json:"preference_type" jsonschema_description:"Preference category when intent is save_preference"`
	Values         []string `json:"values" jsonschema_description:"Preference values when intent is save_preference"`
	Details        string   `json:"details" jsonschema_description:"One-line summary of the preference to confirm with the user"`
}

var searchIntentSchema = llm.GenerateSchema[searchIntent]()

const systemPrompt = `You extract job-search intent from voice transcripts on a fractional-executive job board.
The transcript contains only the user's words. Decide whether they are searching for roles,
stating a preference to remember, or neither. Use empty values for anything unspecified.`

type transcriptAnalyzer struct {
	llm  llm.Client
	jobs store.JobStore
}

func NewTranscriptAnalyzer(client llm.Client, jobs store.JobStore) TranscriptAnalyzer {
	return &transcriptAnalyzer{llm: client, jobs: jobs}
}

func (a *transcriptAnalyzer) Analyze(ctx context.Context, transcript, userID string) (*model.ExtractionResult, error) {
	var intent searchIntent
	temperature := 0.0
	_, err := a.llm.Chat(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   transcript,
		SchemaName:   "search_intent",
		Schema:       searchIntentSchema,
		Temperature:  &temperature,
	}, &intent)
	if err != nil {
		return nil, fmt.Errorf("extracting intent: %w", err)
	}

	switch intent.Intent {
	case "job_search":
		jobs, err := a.jobs.Search(ctx, store.JobQuery{
			Keywords:   intent.RoleKeywords,
			Location:   intent.Location,
			RemoteOnly: intent.RemoteOnly,
			MinDayRate: intent.MinDayRate,
			MaxDayRate: intent.MaxDayRate,
		})
		if err != nil {
			return nil, fmt.Errorf("resolving job search: %w", err)
		}
		slog.DebugContext(ctx, "transcript analysis matched jobs",
			"keywords", intent.RoleKeywords, "matches", len(jobs))
		return &model.ExtractionResult{Type: model.ResultTypeJobs, Jobs: jobs}, nil
	case "save_preference":
		return &model.ExtractionResult{
			Type: model.ResultTypeConfirmation,
			Confirmation: &model.ConfirmationRequest{
				Details:        intent.Details,
				PreferenceType: intent.PreferenceType,
				Values:         intent.Values,
				UserID:         userID,
			},
		}, nil
	default:
		return nil, nil
	}
}
