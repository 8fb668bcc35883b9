package devserver

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Pentest Report - {{.Project.Name}}</title>
</head>
<body>
    <h1>{{.Project.Name}}</h1>
    <p>Target: {{.Project.Target}}</p>
    {{if .Options.TesterName}}<p>Tester: {{.Options.TesterName}}</p>{{end}}
    {{if .Options.Classification}}<p class="classification">{{.Options.Classification}}</p>{{end}}
    <p>Generated: {{.Generated}}</p>

    <h2>Executive Summary</h2>
    <p>{{len .Scans}} scans, {{len .Findings}} findings.</p>

    <h2>Scope</h2>
    <p>{{.Project.Scope}}</p>
    {{if .Options.ScopeNotes}}<p>{{.Options.ScopeNotes}}</p>{{end}}

    <h2>Findings</h2>
    {{range .Findings}}<div class="finding severity-{{.Severity}}">{{.Text}}</div>
    {{end}}

    <h2>Scans</h2>
    {{range .Scans}}<div class="scan">
        <table>
            <tr><th>Tool</th><td>{{.ToolName}}</td></tr>
            <tr><th>Command</th><td>{{.Command}}</td></tr>
            <tr><th>Status</th><td>{{.Status}}</td></tr>
        </table>
        {{if $.Options.IncludeRaw}}<pre>{{.Output}}</pre>{{end}}
    </div>
    {{end}}
</body>
</html>
`))

type reportFinding struct {
	Severity string
	Text     string
}

func severityOf(s classify.Style) string {
	switch s {
	case classify.Critical:
		return "high"
	case classify.Success:
		return "info"
	default:
		return "medium"
	}
}

func (s *Server) renderReport(p model.Project, opts model.ReportOptions) ([]byte, error) {
	scans := s.snapshots(func(t *task) bool { return t.projectID == p.ID })
	var findings []reportFinding
	for _, scan := range scans {
		for _, f := range classify.Findings(scan.Output) {
			findings = append(findings, reportFinding{Severity: severityOf(f.Style), Text: f.Text})
		}
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, map[string]any{
		"Project":   p,
		"Options":   opts,
		"Scans":     scans,
		"Findings":  findings,
		"Generated": time.Now().UTC().Format("2006-01-02 15:04 UTC"),
	})
	return buf.Bytes(), err
}

func (s *Server) project(r *http.Request) (model.Project, bool) {
	id, err := projectParam(r, "project")
	if err != nil {
		return model.Project{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

func writeHTML(w http.ResponseWriter, data []byte, attachment string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	var opts model.ReportOptions
	_ = decode(r, &opts)

	html, err := s.renderReport(p, opts)
	if err != nil {
		util.Error("devserver: report render failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, "report rendering failed")
		return
	}
	s.mu.Lock()
	s.generated[p.ID] = html
	s.mu.Unlock()
	writeHTML(w, html, "")
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	s.mu.RLock()
	html, ok := s.generated[p.ID]
	s.mu.RUnlock()
	if !ok {
		var err error
		if html, err = s.renderReport(p, model.ReportOptions{}); err != nil {
			writeDetail(w, http.StatusInternalServerError, "report rendering failed")
			return
		}
	}
	writeHTML(w, html, fmt.Sprintf("report_%s_%d.html", strings.ReplaceAll(p.Name, " ", "_"), p.ID))
}

// Nikto and wafw00f

func (s *Server) handleRunScanner(scanner string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := decode(r, &body); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		target, _ := body["target"].(string)
		if target == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "target is required")
			return
		}
		save, _ := body["save_report"].(bool)
		var pid int64
		if v, ok := body["project_id"].(float64); ok {
			pid = int64(v)
		}
		delete(body, "save_report")
		delete(body, "project_id")

		res := model.RunResult{Status: "running"}
		var hooks []func(*task)
		if save {
			res.ReportFilename = fmt.Sprintf("%s_%s_%s.html", scanner,
				strings.ReplaceAll(hostOf(target), ".", "_"), time.Now().UTC().Format("20060102_150405"))
			name := res.ReportFilename
			hooks = append(hooks, func(t *task) { s.saveScannerReport(scanner, name, t) })
		}
		t := s.start(scanner, body, pid, hooks...)
		res.TaskID = t.id
		res.Command = t.command
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) saveScannerReport(scanner, name string, t *task) {
	m := t.snapshot()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<html><head><title>%s report - %s</title></head><body><pre>%s</pre></body></html>\n",
		scanner, template.HTMLEscapeString(t.target), template.HTMLEscapeString(m.Output))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[scanner][name] = &reportFile{
		ReportFile: model.ReportFile{
			Filename: name,
			Target:   t.target,
			Size:     int64(buf.Len()),
			Created:  model.NewTimestamp(time.Now().UTC()),
		},
		content: buf.Bytes(),
	}
}

func (s *Server) handleScannerReports(scanner string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		out := make([]model.ReportFile, 0, len(s.reports[scanner]))
		for _, f := range s.reports[scanner] {
			out = append(out, f.ReportFile)
		}
		s.mu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created.Time) })
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleScannerReport(scanner string, download bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := path.Base(chi.URLParam(r, "file"))
		s.mu.RLock()
		f, ok := s.reports[scanner][name]
		s.mu.RUnlock()
		if !ok {
			writeError(w, "Report not found")
			return
		}
		attachment := ""
		if download {
			attachment = name
		}
		writeHTML(w, f.content, attachment)
	}
}
