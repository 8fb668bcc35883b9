package devserver

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
)

const previewLen = 500

var (
	reTech    = regexp.MustCompile(`([A-Za-z][\w-]*)\[([^\]]*)\]`)
	reDirRow  = regexp.MustCompile(`^(/\S*)\s+\(Status: (\d+)\)`)
	reWAF     = regexp.MustCompile(`behind (.+?) WAF`)
	skipTechs = map[string]bool{"Country": true, "Title": true, "IP": true, "HTTPServer": true}
)

// targetScans returns the finished runs against host, newest first.
func (s *Server) targetScans(host string) []model.Task {
	s.mu.RLock()
	var ids []*task
	for _, t := range s.tasks {
		if hostOf(t.target) == host {
			ids = append(ids, t)
		}
	}
	s.mu.RUnlock()

	var out []model.Task
	for _, t := range ids {
		if m := t.snapshot(); m.Status.IsTerminal() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt.Time) })
	return out
}

func (s *Server) targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, t := range s.tasks {
		h := hostOf(t.target)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// buildGraph derives the topology of host from its finished scans.
func buildGraph(host string, scans []model.Task) model.Graph {
	g := model.Graph{Target: host}
	sum := &model.Summary{Target: host}
	seen := make(map[string]bool)

	add := func(id string, typ model.NodeType, data map[string]any, parent string) {
		if seen[id] {
			return
		}
		seen[id] = true
		g.Nodes = append(g.Nodes, model.Node{ID: id, Type: typ, Data: data})
		g.Edges = append(g.Edges, model.Edge{ID: parent + "->" + id, Source: parent, Target: id})
	}

	g.Nodes = append(g.Nodes, model.Node{ID: "target", Type: model.NodeTarget,
		Data: map[string]any{"label": host, "scans": float64(len(scans))}})
	seen["target"] = true

	for _, scan := range scans {
		preview := scan.Output
		if len(preview) > previewLen {
			preview = preview[:previewLen]
		}
		sum.Scans = append(sum.Scans, model.ScanRecord{TaskID: scan.ID, Tool: scan.ToolName, Status: string(scan.Status), StartedAt: scan.StartedAt})
		sum.ScanDetails = append(sum.ScanDetails, model.ScanRecord{TaskID: scan.ID, Tool: scan.ToolName,
			Command: scan.Command, Status: string(scan.Status), OutputPreview: preview, StartedAt: scan.StartedAt})

		switch scan.ToolName {
		case "nmap":
			for _, row := range classify.Ports(scan.Output) {
				port, proto, _ := strings.Cut(row.Port, "/")
				id := "port-" + port
				add(id, model.NodePort, map[string]any{
					"port": port, "proto": proto, "state": row.State,
					"service": row.Service, "version": row.Version,
				}, "target")
				sum.Ports = append(sum.Ports, map[string]any{"port": port, "proto": proto, "state": row.State, "service": row.Service})
				if row.Version != "" {
					add("svc-"+port, model.NodeService, map[string]any{"label": row.Service + " " + row.Version}, id)
					sum.Services = append(sum.Services, map[string]any{"port": port, "name": row.Service, "version": row.Version})
				}
			}
			for _, f := range classify.Findings(scan.Output) {
				if strings.Contains(f.Text, "VULNERABLE") {
					add(fmt.Sprintf("vuln-%d", len(sum.Vulns)), model.NodeVuln, map[string]any{"label": scan.Command + ": " + f.Text}, "target")
					sum.Vulns = append(sum.Vulns, f.Text)
				}
			}
		case "whatweb":
			for _, m := range reTech.FindAllStringSubmatch(scan.Output, -1) {
				if skipTechs[m[1]] {
					continue
				}
				add("tech-"+strings.ToLower(m[1]), model.NodeTechnology,
					map[string]any{"name": m[1], "version": m[2], "category": "web"}, "target")
				sum.Technologies = append(sum.Technologies, map[string]any{"name": m[1], "version": m[2]})
			}
		case "gobuster_dir", "ffuf", "dirb", "feroxbuster":
			for _, line := range strings.Split(scan.Output, "\n") {
				m := reDirRow.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				var status float64
				fmt.Sscan(m[2], &status)
				add("dir-"+m[1], model.NodeDirectory, map[string]any{"url": m[1], "status": status}, "target")
				sum.Directories = append(sum.Directories, map[string]any{"url": m[1], "status": status})
			}
		case "gobuster_dns", "dnsenum", "amass", "subenum_all":
			for _, sub := range classify.Subdomains(scan.Output) {
				add("sub-"+sub, model.NodeSubdomain, map[string]any{"label": sub}, "target")
				sum.Subdomains = append(sum.Subdomains, sub)
			}
		case "searchsploit":
			for i, hit := range classify.ExploitHits(scan.Output) {
				title, path, _ := strings.Cut(hit, "|")
				add(fmt.Sprintf("exploit-%s-%d", scan.ID, i), model.NodeExploit,
					map[string]any{"title": strings.TrimSpace(title), "path": strings.TrimSpace(path)}, "target")
				sum.Exploits = append(sum.Exploits, strings.TrimSpace(title))
			}
		case "wafw00f":
			if m := reWAF.FindStringSubmatch(scan.Output); m != nil {
				add("waf", model.NodeWAF, map[string]any{"detected": true, "name": m[1]}, "target")
			}
		}
	}

	g.Summary = sum
	return g
}

func (s *Server) handleMapTargets(w http.ResponseWriter, r *http.Request) {
	out := []model.Summary{}
	for _, host := range s.targets() {
		g := buildGraph(host, s.targetScans(host))
		out = append(out, *g.Summary)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMapGraph(w http.ResponseWriter, r *http.Request) {
	host := hostOf(chi.URLParam(r, "target"))
	writeJSON(w, http.StatusOK, buildGraph(host, s.targetScans(host)))
}

func (s *Server) handleAutoScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Target    string `json:"target"`
		ProjectID int64  `json:"project_id"`
	}
	if err := decode(r, &body); err != nil || body.Target == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "target is required")
		return
	}
	t := s.start("nmap", map[string]any{"target": body.Target, "scan_type": "service"}, body.ProjectID)
	writeJSON(w, http.StatusOK, model.RunResult{TaskID: t.id, Command: t.command, Status: "running"})
}

// Web recon

var reconSteps = []struct {
	key, tool, label string
	full             bool
}{
	{"subdomains", "subenum_all", "Subdomain enumeration", false},
	{"directories", "gobuster_dir", "Directory brute force", false},
	{"technologies", "whatweb", "Technology fingerprint", false},
	{"exploits", "searchsploit", "Exploit lookup", true},
}

func (s *Server) handleRunWebRecon(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Target    string `json:"target"`
		Mode      string `json:"mode"`
		ProjectID *int64 `json:"project_id"`
	}
	if err := decode(r, &body); err != nil || body.Target == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "target is required")
		return
	}
	if body.Mode == "" {
		body.Mode = "full"
	}
	var pid int64
	if body.ProjectID != nil {
		pid = *body.ProjectID
	}

	run := &reconRun{WebReconSession: model.WebReconSession{
		ID:        uuid.NewString()[:8],
		Target:    body.Target,
		Domain:    hostOf(body.Target),
		Mode:      body.Mode,
		Status:    model.StatusRunning,
		Tasks:     make(map[string]model.WebReconTask),
		StartedAt: model.NewTimestamp(time.Now().UTC()),
	}}
	for _, step := range reconSteps {
		if step.full && body.Mode != "full" {
			continue
		}
		params := map[string]any{"target": body.Target}
		if step.tool == "searchsploit" {
			params["query"] = run.Domain
		}
		t := s.start(step.tool, params, pid)
		run.Tasks[step.key] = model.WebReconTask{TaskID: t.id, Label: step.label, Status: model.StatusRunning}
		run.taskIDs = append(run.taskIDs, t.id)
	}

	s.mu.Lock()
	s.recon[run.ID] = run
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.reconView(run))
}

// reconView refreshes a session from its tasks.
func (s *Server) reconView(run *reconRun) model.WebReconSession {
	s.mu.RLock()
	view := run.WebReconSession
	s.mu.RUnlock()

	tasks := make(map[string]model.WebReconTask, len(view.Tasks))
	status := model.StatusCompleted
	var finished time.Time
	view.Results = map[string]any{}
	for key, rt := range view.Tasks {
		t, ok := s.task(rt.TaskID)
		if !ok {
			continue
		}
		m := t.snapshot()
		rt.Status = m.Status
		tasks[key] = rt
		if !m.Status.IsTerminal() {
			status = model.StatusRunning
		} else if m.Status == model.StatusKilled && status != model.StatusRunning {
			status = model.StatusKilled
		}
		if m.FinishedAt.After(finished) {
			finished = m.FinishedAt.Time
		}
		switch key {
		case "subdomains":
			subs := classify.Subdomains(m.Output)
			view.SubdomainCount = len(subs)
			view.Results[key] = subs
		case "directories":
			n := 0
			for _, line := range strings.Split(m.Output, "\n") {
				if reDirRow.MatchString(line) {
					n++
				}
			}
			view.DirCount = n
		case "technologies":
			n := 0
			for _, match := range reTech.FindAllStringSubmatch(m.Output, -1) {
				if !skipTechs[match[1]] {
					n++
				}
			}
			view.TechCount = n
		case "exploits":
			hits := classify.ExploitHits(m.Output)
			view.ExploitCount = len(hits)
			view.Results[key] = hits
		}
	}
	view.Tasks = tasks
	view.Status = status
	if status != model.StatusRunning && !finished.IsZero() {
		view.FinishedAt = model.NewTimestamp(finished)
	}
	return view
}

func (s *Server) reconRun(id string) (*reconRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.recon[id]
	return run, ok
}

func (s *Server) handleWebReconStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.reconRun(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.reconView(run))
}

func (s *Server) handleWebReconSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	runs := make([]*reconRun, 0, len(s.recon))
	for _, run := range s.recon {
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	out := make([]model.WebReconSession, 0, len(runs))
	for _, run := range runs {
		out = append(out, s.reconView(run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt.Time) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleKillWebRecon(w http.ResponseWriter, r *http.Request) {
	run, ok := s.reconRun(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "Session not found")
		return
	}
	killed := 0
	for _, id := range run.taskIDs {
		if t, ok := s.task(id); ok && !t.state().IsTerminal() {
			t.cancel()
			killed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"killed": killed})
}
