package api

import (
	"context"

	"github.com/user/sawlah/internal/model"
)

// MapTargets lists every target seen in scan history with its extracted
// ports, subdomains and scans.
func (c *Client) MapTargets(ctx context.Context) ([]model.Summary, error) {
	var out []model.Summary
	if err := c.get(ctx, "/api/map/targets", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Graph fetches the topology graph of one target.
func (c *Client) Graph(ctx context.Context, target string) (*model.Graph, error) {
	var g model.Graph
	if err := c.get(ctx, "/api/map/targets/"+escape(target), &g); err != nil {
		return nil, err
	}
	if g.Target == "" {
		g.Target = target
	}
	return &g, nil
}

// AutoScan starts the composite recon scan feeding the map.
func (c *Client) AutoScan(ctx context.Context, target string, projectID int64) (*model.RunResult, error) {
	body := map[string]any{"target": target}
	if projectID != 0 {
		body["project_id"] = projectID
	}
	var res model.RunResult
	if err := c.post(ctx, "/api/map/auto-scan", body, &res); err != nil {
		return nil, err
	}
	if res.TaskID == "" {
		return nil, &APIError{Kind: KindSubmission, Message: "backend returned no task id"}
	}
	return &res, nil
}
