package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/sawlah/internal/model"
)

// ErrEmptyName is returned when a project is created without a name or target.
var ErrEmptyName = errors.New("project name and target are required")

// Projects lists all projects, newest first.
func (c *Client) Projects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	if err := c.get(ctx, "/api/projects", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Project fetches one project.
func (c *Client) Project(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	if err := c.get(ctx, fmt.Sprintf("/api/projects/%d", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject registers a new engagement.
func (c *Client) CreateProject(ctx context.Context, name, target, scope string) (*model.Project, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(target) == "" {
		return nil, ErrEmptyName
	}
	body := map[string]string{"name": name, "target": target, "scope": scope}

	var p model.Project
	if err := c.post(ctx, "/api/projects", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes a project and its scans.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/projects/%d", id), nil)
}
