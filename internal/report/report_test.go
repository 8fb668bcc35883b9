package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

const sampleReport = `<!DOCTYPE html>
<html><head><title>Pentest Report - ACME</title></head>
<body>
<h1>ACME</h1>
<h2>Executive   Summary</h2>
<h2>Findings</h2>
<div class="finding severity-high">SQL injection</div>
<div class="finding severity-high">Weak TLS</div>
<div class="finding" data-severity="Low">Banner disclosure</div>
<h2>Scans</h2>
<div class="scan"><table><tr><td>nmap</td></tr></table></div>
<div class="scan"><table><tr><td>nikto</td></tr></table></div>
</body></html>`

func TestSummarize(t *testing.T) {
	sum, err := Summarize([]byte(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, "Pentest Report - ACME", sum.Title)
	assert.Equal(t, []string{"Executive Summary", "Findings", "Scans"}, sum.Headings)
	assert.Equal(t, 2, sum.Tables)
	assert.Equal(t, 2, sum.Scans)
	assert.Equal(t, map[string]int{"high": 2, "low": 1}, sum.Findings)
	assert.Equal(t, 3, sum.TotalFindings())
}

type fakeSource struct {
	opts model.ReportOptions
}

func (f *fakeSource) GenerateReport(_ context.Context, _ int64, opts model.ReportOptions) ([]byte, error) {
	f.opts = opts
	return []byte(sampleReport), nil
}

func (f *fakeSource) DownloadReport(context.Context, int64) ([]byte, error) {
	return nil, &api.APIError{Kind: api.KindNotFound, Status: 404, Message: "Project not found"}
}

func (f *fakeSource) DownloadScannerReport(_ context.Context, _ api.Scanner, name string) ([]byte, error) {
	return []byte("+ Server: nginx\n"), nil
}

func TestGeneratorSaves(t *testing.T) {
	cfg := util.DefaultConfig()
	cfg.ReportOutputDir = filepath.Join(t.TempDir(), "reports")
	src := &fakeSource{}
	g := NewGenerator(src, cfg)
	g.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC) }

	saved, err := g.Generate(context.Background(), 7, model.ReportOptions{TesterName: "sam", IncludeRaw: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ReportOutputDir, "project-7-20260504-030201.html"), saved.Path)
	assert.Equal(t, "sam", src.opts.TesterName)
	assert.Equal(t, 3, saved.Summary.TotalFindings())

	data, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	assert.Equal(t, sampleReport, string(data))

	_, err = g.Download(context.Background(), 7)
	assert.True(t, api.IsNotFound(err))

	txt, err := g.DownloadScanner(context.Background(), api.Nikto, "../nikto_x.txt")
	require.NoError(t, err)
	assert.Equal(t, "nikto-nikto_x.txt", filepath.Base(txt.Path))
	assert.Zero(t, txt.Summary.Tables)
}

func TestMermaidGraph(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "target", Type: model.NodeTarget, Data: map[string]any{"label": "10.0.0.5"}},
			{ID: "port-22", Type: model.NodePort, Data: map[string]any{"port": float64(22), "proto": "tcp"}},
			{ID: "vuln-1", Type: model.NodeVuln, Data: map[string]any{"title": `CVE "x" [rce]`}},
		},
		Edges: []model.Edge{
			{Source: "target", Target: "port-22"},
			{Source: "port-22", Target: "vuln-1"},
			{Source: "port-22", Target: "missing"},
		},
	}

	out := Mermaid(g)
	assert.True(t, strings.HasPrefix(out, "```mermaid\nflowchart LR\n"))
	assert.Contains(t, out, "n0((10.0.0.5)):::target")
	assert.Contains(t, out, "n1[22/tcp]:::port")
	assert.Contains(t, out, "n2[CVE #quot;x#quot; #91;rce#93;]:::vuln")
	assert.Contains(t, out, "n0 --> n1")
	assert.Contains(t, out, "n1 --> n2")
	assert.Equal(t, 2, strings.Count(out, "-->"))
	assert.Contains(t, out, "classDef vuln")
	assert.NotContains(t, out, "classDef exploit")
}

func TestMermaidPipeline(t *testing.T) {
	out := MermaidPipeline("10.0.0.5", []model.StageStatus{
		{Tool: "nmap", Status: model.StatusCompleted},
		{Tool: "nikto"},
	})
	assert.Contains(t, out, "S1[1. nmap]:::completed")
	assert.Contains(t, out, "S2[2. nikto]:::pending")
	assert.Contains(t, out, "S1 --> S2")
}
