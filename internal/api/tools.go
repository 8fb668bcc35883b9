package api

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/tools"
)

type runRequest struct {
	ToolName  string         `json:"tool_name"`
	Params    map[string]any `json:"params"`
	ProjectID *int64         `json:"project_id"`
}

// Run submits a tool invocation. projectID zero runs it outside any project.
func (c *Client) Run(ctx context.Context, p tools.Params, projectID int64) (*model.RunResult, error) {
	name, params, err := tools.Encode(p)
	if err != nil {
		return nil, &APIError{Kind: KindSubmission, Message: err.Error(), Err: err}
	}
	req := runRequest{ToolName: name, Params: params}
	if projectID != 0 {
		req.ProjectID = &projectID
	}

	var res model.RunResult
	if err := c.post(ctx, "/api/tools/run", req, &res); err != nil {
		return nil, err
	}
	if res.TaskID == "" {
		return nil, &APIError{Kind: KindSubmission, Message: "backend returned no task id"}
	}
	return &res, nil
}

// RunRaw submits a free-text command.
func (c *Client) RunRaw(ctx context.Context, command, toolName string) (*model.RunResult, error) {
	if toolName == "" {
		toolName = "manual"
	}
	body := map[string]string{"command": command, "tool_name": toolName}

	var res model.RunResult
	if err := c.post(ctx, "/api/tools/run-raw", body, &res); err != nil {
		return nil, err
	}
	if res.TaskID == "" {
		return nil, &APIError{Kind: KindSubmission, Message: "backend returned no task id"}
	}
	return &res, nil
}

// Status fetches the current state of a task.
func (c *Client) Status(ctx context.Context, taskID string) (*model.Task, error) {
	var t model.Task
	if err := c.get(ctx, "/api/tools/status/"+escape(taskID), &t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = taskID
	}
	return &t, nil
}

// Kill asks the backend to terminate a task. It reports whether a live
// process was signalled.
func (c *Client) Kill(ctx context.Context, taskID string) (bool, error) {
	var res struct {
		Killed bool `json:"killed"`
	}
	if err := c.delete(ctx, "/api/tools/kill/"+escape(taskID), &res); err != nil {
		return false, err
	}
	return res.Killed, nil
}

// Tasks returns the registry of running and recent tasks, newest first.
func (c *Client) Tasks(ctx context.Context) ([]model.Task, error) {
	var byID map[string]model.Task
	if err := c.get(ctx, "/api/tools/list", &byID); err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(byID))
	for id, t := range byID {
		t.ID = id
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt.Time)
	})
	return out, nil
}

// History returns past runs, optionally restricted to one tool.
func (c *Client) History(ctx context.Context, toolName string) ([]model.Task, error) {
	path := "/api/tools/history"
	if toolName != "" {
		path += "?" + url.Values{"tool_name": {toolName}}.Encode()
	}
	var out []model.Task
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Scans lists the scans attached to a project.
func (c *Client) Scans(ctx context.Context, projectID int64) ([]model.ScanRecord, error) {
	var out []model.ScanRecord
	if err := c.get(ctx, fmt.Sprintf("/api/tools/scans/%d", projectID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AutoExploitResult holds the searches derived from a finished scan.
type AutoExploitResult struct {
	Queries []model.ExploitQuery `json:"queries"`
	TaskIDs []string             `json:"task_ids,omitempty"`
}

// AutoExploit derives exploit searches from the services found by a
// completed scan.
func (c *Client) AutoExploit(ctx context.Context, taskID string) (*AutoExploitResult, error) {
	var res AutoExploitResult
	if err := c.post(ctx, "/api/tools/auto-exploit", map[string]string{"task_id": taskID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
