package api

import (
	"context"
	"fmt"
	"sort"

	"github.com/user/sawlah/internal/model"
)

// Stage is one step of a pipeline submission.
type Stage struct {
	StageID  string         `json:"stage_id,omitempty"`
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params"`
}

// PipelineRequest submits an ordered chain of tools against one target.
type PipelineRequest struct {
	ProjectID int64   `json:"project_id"`
	Target    string  `json:"target"`
	Stages    []Stage `json:"stages"`
}

// QuickModes are the canned pipelines the backend knows.
var QuickModes = []string{"full", "recon", "enum", "web", "vuln"}

type pipelineStarted struct {
	PipelineID string `json:"pipeline_id"`
}

// RunPipeline starts a pipeline and returns its id.
func (c *Client) RunPipeline(ctx context.Context, req PipelineRequest) (string, error) {
	var res pipelineStarted
	if err := c.post(ctx, "/api/automation/run", req, &res); err != nil {
		return "", err
	}
	if res.PipelineID == "" {
		return "", &APIError{Kind: KindSubmission, Message: "backend returned no pipeline id"}
	}
	return res.PipelineID, nil
}

// QuickPipeline starts one of the canned pipelines.
func (c *Client) QuickPipeline(ctx context.Context, projectID int64, target, mode string) (string, error) {
	valid := false
	for _, m := range QuickModes {
		if m == mode {
			valid = true
			break
		}
	}
	if !valid {
		return "", &APIError{Kind: KindSubmission, Message: fmt.Sprintf("unknown quick mode %q", mode)}
	}

	body := map[string]any{"project_id": projectID, "target": target, "mode": mode}
	var res pipelineStarted
	if err := c.post(ctx, "/api/automation/quick", body, &res); err != nil {
		return "", err
	}
	if res.PipelineID == "" {
		return "", &APIError{Kind: KindSubmission, Message: "backend returned no pipeline id"}
	}
	return res.PipelineID, nil
}

// PipelineStatus polls a pipeline.
func (c *Client) PipelineStatus(ctx context.Context, id string) (*model.PipelineStatus, error) {
	var st model.PipelineStatus
	if err := c.get(ctx, "/api/automation/status/"+escape(id), &st); err != nil {
		return nil, err
	}
	st.ID = id
	return &st, nil
}

// Pipelines lists known pipelines, newest first.
func (c *Client) Pipelines(ctx context.Context) ([]model.PipelineStatus, error) {
	var byID map[string]model.PipelineStatus
	if err := c.get(ctx, "/api/automation/list", &byID); err != nil {
		return nil, err
	}
	out := make([]model.PipelineStatus, 0, len(byID))
	for id, p := range byID {
		p.ID = id
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt.Time)
	})
	return out, nil
}
