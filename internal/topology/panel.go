package topology

import (
	"context"
	"sync"

	"github.com/user/sawlah/internal/model"
)

// StatusFetcher loads the full record of a task.
type StatusFetcher interface {
	Status(ctx context.Context, taskID string) (*model.Task, error)
}

// DetailPanel shows one node and lazily loads the output of its related
// scans. Loaded outputs are cached until Close.
type DetailPanel struct {
	Node  model.Node
	Rows  []Row
	Scans []model.ScanRecord

	fetch StatusFetcher
	mu    sync.Mutex
	cache map[string]*model.Task
}

// Open builds the panel for node from the scans of the current target.
func Open(node model.Node, scans []model.ScanRecord, fetch StatusFetcher) *DetailPanel {
	return &DetailPanel{
		Node:  node,
		Rows:  Details(node),
		Scans: RelatedScans(node, scans),
		fetch: fetch,
		cache: make(map[string]*model.Task),
	}
}

// Title is the panel heading.
func (p *DetailPanel) Title() string {
	return TypeLabel(p.Node.Type)
}

// Load returns the command and output of a related scan. Scans without a
// task id fall back to their preview.
func (p *DetailPanel) Load(ctx context.Context, scan model.ScanRecord) (*model.Task, error) {
	if scan.TaskID == "" {
		return &model.Task{
			ToolName: scan.Tool,
			Command:  scan.Command,
			Status:   model.TaskStatus(scan.Status),
			Output:   scan.OutputPreview,
		}, nil
	}

	p.mu.Lock()
	if t, ok := p.cache[scan.TaskID]; ok {
		p.mu.Unlock()
		return t, nil
	}
	p.mu.Unlock()

	t, err := p.fetch.Status(ctx, scan.TaskID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache != nil {
		p.cache[scan.TaskID] = t
	}
	return t, nil
}

// Cached reports whether a task's output is already loaded.
func (p *DetailPanel) Cached(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[taskID]
	return ok
}

// Close drops the cache. A closed panel still serves Load but keeps nothing.
func (p *DetailPanel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = nil
}
