package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
)

var scans = []model.ScanRecord{
	{TaskID: "t1", Tool: "nmap", Status: "completed"},
	{TaskID: "t2", Tool: "whois", Status: "completed"},
}

func TestRelatedScans(t *testing.T) {
	tests := []struct {
		nodeType model.NodeType
		want     []string
	}{
		{model.NodePort, []string{"t1"}},
		{model.NodeService, []string{"t1"}},
		{model.NodeVuln, []string{"t1"}},
		{model.NodeWhois, []string{"t2"}},
		{model.NodeWAF, nil},
		{model.NodeTarget, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.nodeType), func(t *testing.T) {
			got := RelatedScans(model.Node{Type: tt.nodeType}, scans)
			var ids []string
			for _, s := range got {
				ids = append(ids, s.TaskID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSubdomainAndDirectoryShareSubenumAll(t *testing.T) {
	all := []model.ScanRecord{{Tool: "subenum_all"}, {Tool: "ffuf"}, {Tool: "fierce"}}
	assert.Len(t, RelatedScans(model.Node{Type: model.NodeSubdomain}, all), 2)
	assert.Len(t, RelatedScans(model.Node{Type: model.NodeDirectory}, all), 2)
	assert.Empty(t, ToolsFor(model.NodeTarget))
}

func TestDetailsPort(t *testing.T) {
	n := model.Node{Type: model.NodePort, Data: map[string]any{
		"port": float64(443), "proto": "tcp", "state": "filtered", "service": "https", "version": "",
	}}
	rows := Details(n)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Label: "Port", Value: "443/tcp"}, rows[0])
	assert.Equal(t, classify.Warning, rows[1].Style)
}

func TestDetailsWhoisSkipsEmpty(t *testing.T) {
	n := model.Node{Type: model.NodeWhois, Data: map[string]any{
		"registrar": "Example Registrar", "nameservers": []any{"ns1.example.com", "ns2.example.com"},
	}}
	rows := Details(n)
	require.Len(t, rows, 2)
	assert.Equal(t, "ns1.example.com, ns2.example.com", rows[1].Value)
}

type countingFetcher struct {
	calls int
}

func (c *countingFetcher) Status(_ context.Context, id string) (*model.Task, error) {
	c.calls++
	return &model.Task{ID: id, Command: "nmap -sV 10.0.0.1", Output: "22/tcp open ssh"}, nil
}

func TestDetailPanelCachesUntilClose(t *testing.T) {
	fetch := &countingFetcher{}
	panel := Open(model.Node{Type: model.NodePort, Data: map[string]any{}}, scans, fetch)
	require.Len(t, panel.Scans, 1)
	assert.Equal(t, "Open Port", panel.Title())

	ctx := context.Background()
	task, err := panel.Load(ctx, panel.Scans[0])
	require.NoError(t, err)
	assert.Equal(t, "22/tcp open ssh", task.Output)

	_, err = panel.Load(ctx, panel.Scans[0])
	require.NoError(t, err)
	assert.Equal(t, 1, fetch.calls)
	assert.True(t, panel.Cached("t1"))

	panel.Close()
	assert.False(t, panel.Cached("t1"))

	// Scans without a task id use their preview and never fetch.
	preview, err := panel.Load(ctx, model.ScanRecord{Tool: "nmap", Command: "nmap x", OutputPreview: "partial"})
	require.NoError(t, err)
	assert.Equal(t, "partial", preview.Output)
	assert.Equal(t, 1, fetch.calls)
}
