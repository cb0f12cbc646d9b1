package model

import (
	"encoding/json"
	"fmt"
)

// Method identifies which of the three parallel intent-extraction backends
// produced a result. Results are never merged across methods; each method
// owns an independent display bucket.
type Method string

const (
	MethodToolCall   Method = "a" // structured tool-call parameters relayed by the voice agent
	MethodTranscript Method = "b" // LLM extraction over the raw transcript
	MethodPython     Method = "c" // external python analyzer service
)

// ExtractionResultType discriminates ExtractionResult payloads.
type ExtractionResultType string

const (
	ResultTypeJobs         ExtractionResultType = "job_results"
	ResultTypeConfirmation ExtractionResultType = "confirmation"
)

// ExtractionResult is the outcome of one analyzer invocation: either a set
// of job listings or a request to confirm a preference before saving it.
type ExtractionResult struct {
	Type         ExtractionResultType `json:"type"`
	Jobs         []Job                `json:"jobs,omitempty"`
	Confirmation *ConfirmationRequest `json:"confirmation,omitempty"`
}

// ParseExtraction decodes a backend payload into an ExtractionResult.
// Returns false for anything that is neither job results nor a
// confirmation request; callers treat that as "nothing to display".
func ParseExtraction(data []byte) (*ExtractionResult, bool) {
	var wire struct {
		Type           string   `json:"type"`
		Jobs           []Job    `json:"jobs"`
		Details        string   `json:"details"`
		PreferenceType string   `json:"preferenceType"`
		Values         []string `json:"values"`
		UserID         string   `json:"userId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, false
	}

	switch ExtractionResultType(wire.Type) {
	case ResultTypeJobs:
		return &ExtractionResult{Type: ResultTypeJobs, Jobs: wire.Jobs}, true
	case ResultTypeConfirmation:
		return &ExtractionResult{
			Type: ResultTypeConfirmation,
			Confirmation: &ConfirmationRequest{
				Details:        wire.Details,
				PreferenceType: wire.PreferenceType,
				Values:         wire.Values,
				UserID:         wire.UserID,
			},
		}, true
	default:
		return nil, false
	}
}

// EncodeExtraction renders a result in the flat wire shape ParseExtraction
// accepts: confirmation fields sit at the top level next to "type".
func EncodeExtraction(res *ExtractionResult) ([]byte, error) {
	switch res.Type {
	case ResultTypeJobs:
		jobs := res.Jobs
		if jobs == nil {
			jobs = []Job{}
		}
		return json.Marshal(struct {
			Type ExtractionResultType `json:"type"`
			Jobs []Job                `json:"jobs"`
		}{res.Type, jobs})
	case ResultTypeConfirmation:
		c := res.Confirmation
		if c == nil {
			c = &ConfirmationRequest{}
		}
		return json.Marshal(struct {
			Type           ExtractionResultType `json:"type"`
			Details        string               `json:"details"`
			PreferenceType string               `json:"preferenceType"`
			Values         []string             `json:"values"`
			UserID         string               `json:"userId"`
		}{res.Type, c.Details, c.PreferenceType, c.Values, c.UserID})
	default:
		return nil, fmt.Errorf("unencodable extraction result type %q", res.Type)
	}
}

// ConfirmationRequest asks the user to confirm a job-search preference the
// assistant inferred, before it is persisted against their profile.
type ConfirmationRequest struct {
	Details        string   `json:"details"`
	PreferenceType string   `json:"preferenceType"`
	Values         []string `json:"values"`
	UserID         string   `json:"userId"`
}
