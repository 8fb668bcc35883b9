package devserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/pipeline"
	"github.com/user/sawlah/internal/util"
)

// Auth

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decode(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.mu.RLock()
	acct, ok := s.users[body.Username]
	s.mu.RUnlock()
	if !ok || acct.password != body.Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, model.AuthResult{
		Token:    s.newToken(body.Username),
		Username: body.Username,
		Role:     acct.role,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decode(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(body.Username) < 3 || len(body.Password) < 4 {
		writeDetail(w, http.StatusBadRequest, "Username must be 3+ chars, password 4+ chars")
		return
	}
	s.mu.Lock()
	if _, exists := s.users[body.Username]; exists {
		s.mu.Unlock()
		writeDetail(w, http.StatusConflict, "Username already exists")
		return
	}
	s.users[body.Username] = account{password: body.Password, role: "user"}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, model.AuthResult{
		Token:    s.newToken(body.Username),
		Username: body.Username,
		Role:     "user",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.RLock()
	name := s.tokens[token]
	acct := s.users[name]
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, model.User{Username: name, Role: acct.role})
}

// Projects

func projectParam(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string `json:"name"`
		Target string `json:"target"`
		Scope  string `json:"scope"`
	}
	if err := decode(r, &body); err != nil || body.Name == "" || body.Target == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name and target are required")
		return
	}
	s.mu.Lock()
	p := model.Project{
		ID:        s.nextProj,
		Name:      body.Name,
		Target:    body.Target,
		Scope:     body.Scope,
		CreatedAt: model.NewTimestamp(time.Now().UTC()),
	}
	s.projects[p.ID] = p
	s.nextProj++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectParam(r, "id")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid project id")
		return
	}
	s.mu.RLock()
	p, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectParam(r, "id")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid project id")
		return
	}
	s.mu.Lock()
	_, ok := s.projects[id]
	delete(s.projects, id)
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Tools

type runBody struct {
	ToolName  string         `json:"tool_name"`
	Params    map[string]any `json:"params"`
	ProjectID *int64         `json:"project_id"`
}

func (b runBody) project() int64 {
	if b.ProjectID == nil {
		return 0
	}
	return *b.ProjectID
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body runBody
	if err := decode(r, &body); err != nil || body.ToolName == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "tool_name is required")
		return
	}
	if _, ok := body.Params["target"]; !ok {
		if _, ok := body.Params["query"]; !ok {
			if _, ok := body.Params["hash"]; !ok {
				writeError(w, fmt.Sprintf("Missing target for %s", body.ToolName))
				return
			}
		}
	}
	t := s.start(body.ToolName, body.Params, body.project())
	writeJSON(w, http.StatusOK, model.RunResult{TaskID: t.id, Command: t.command})
}

func (s *Server) handleRunRaw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command  string `json:"command"`
		ToolName string `json:"tool_name"`
	}
	if err := decode(r, &body); err != nil || strings.TrimSpace(body.Command) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "command is required")
		return
	}
	fields := strings.Fields(body.Command)
	params := map[string]any{"custom_command": body.Command, "target": fields[len(fields)-1]}
	tool := body.ToolName
	if tool == "" {
		tool = "manual"
	}
	t := s.start(tool, params, 0)
	writeJSON(w, http.StatusOK, model.RunResult{TaskID: t.id, Command: t.command})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := s.task(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, toWire(t.snapshot(), true))
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	t, ok := s.task(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]bool{"killed": false})
		return
	}
	running := !t.state().IsTerminal()
	t.cancel()
	writeJSON(w, http.StatusOK, map[string]bool{"killed": running})
}

func (s *Server) snapshots(keep func(*task) bool) []model.Task {
	s.mu.RLock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if keep == nil || keep(t) {
			tasks = append(tasks, t)
		}
	}
	s.mu.RUnlock()

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt.Time) })
	return out
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	byID := make(map[string]wireTask)
	for _, m := range s.snapshots(nil) {
		byID[m.ID] = toWire(m, false)
	}
	writeJSON(w, http.StatusOK, byID)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tool := r.URL.Query().Get("tool_name")
	out := []wireTask{}
	for _, m := range s.snapshots(func(t *task) bool { return tool == "" || t.tool == tool }) {
		if m.Status.IsTerminal() {
			out = append(out, toWire(m, true))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type scanRow struct {
	ID         int64            `json:"id"`
	TaskID     string           `json:"task_id"`
	ToolName   string           `json:"tool_name"`
	Command    string           `json:"command"`
	Status     model.TaskStatus `json:"status"`
	Output     string           `json:"output"`
	StartedAt  model.Timestamp  `json:"started_at"`
	FinishedAt model.Timestamp  `json:"finished_at"`
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	pid, err := projectParam(r, "project")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid project id")
		return
	}
	snaps := s.snapshots(func(t *task) bool { return t.projectID == pid })
	out := make([]scanRow, 0, len(snaps))
	for i, m := range snaps {
		out = append(out, scanRow{
			ID:         int64(len(snaps) - i),
			TaskID:     m.ID,
			ToolName:   m.ToolName,
			Command:    m.Command,
			Status:     m.Status,
			Output:     m.Output,
			StartedAt:  m.StartedAt,
			FinishedAt: m.FinishedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAutoExploit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string `json:"task_id"`
	}
	if err := decode(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	t, ok := s.task(body.TaskID)
	if !ok {
		writeError(w, "Task not found")
		return
	}
	m := t.snapshot()
	if !m.Status.IsTerminal() {
		writeError(w, "Task is still running")
		return
	}

	res := struct {
		Queries []model.ExploitQuery `json:"queries"`
		TaskIDs []string             `json:"task_ids"`
	}{Queries: []model.ExploitQuery{}, TaskIDs: []string{}}

	seen := make(map[string]bool)
	for _, row := range classify.Ports(m.Output) {
		if row.State != "open" || row.Version == "" {
			continue
		}
		fields := strings.Fields(row.Version)
		q := fields[0]
		if len(fields) > 1 {
			q += " " + fields[1]
		}
		if seen[q] {
			continue
		}
		seen[q] = true
		st := s.start("searchsploit", map[string]any{"query": q}, t.projectID)
		res.Queries = append(res.Queries, model.ExploitQuery{Query: q, Service: row.Service, Port: row.Port, TaskID: st.id})
		res.TaskIDs = append(res.TaskIDs, st.id)
	}
	writeJSON(w, http.StatusOK, res)
}

const closeWait = 2 * time.Second

// handleTaskWS streams a task's output: everything so far, then each new
// fragment, then a normal close once the task is terminal.
func (s *Server) handleTaskWS(w http.ResponseWriter, r *http.Request) {
	t, ok := s.task(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "Task not found")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Warn("devserver: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	offset := 0
	for {
		delta, done, changed := t.since(offset)
		if delta != "" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(delta)); err != nil {
				return
			}
			offset += len(delta)
		}
		if done {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			select {
			case <-gone:
			case <-time.After(closeWait):
			}
			return
		}
		select {
		case <-changed:
		case <-gone:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// Automation

type pipelineStage struct {
	StageID  string         `json:"stage_id"`
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params"`
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID int64           `json:"project_id"`
		Target    string          `json:"target"`
		Stages    []pipelineStage `json:"stages"`
	}
	if err := decode(r, &body); err != nil || body.Target == "" || len(body.Stages) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "target and stages are required")
		return
	}
	id := uuid.NewString()[:8]
	s.runPipeline(id, body.Target, body.ProjectID, body.Stages)
	writeJSON(w, http.StatusOK, map[string]string{"pipeline_id": id, "status": "running"})
}

func (s *Server) handleQuickPipeline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID int64  `json:"project_id"`
		Target    string `json:"target"`
		Mode      string `json:"mode"`
	}
	if err := decode(r, &body); err != nil || body.Target == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "target is required")
		return
	}
	if body.Mode == "" {
		body.Mode = "full"
	}
	keys, err := pipeline.QuickStages(body.Mode)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	stages := make([]pipelineStage, 0, len(keys))
	for _, key := range keys {
		tpl, _ := pipeline.Lookup(key)
		params := map[string]any{"target": body.Target}
		for k, v := range tpl.Defaults {
			params[k] = v
		}
		stages = append(stages, pipelineStage{ToolName: tpl.Tool, Params: params})
	}
	id := uuid.NewString()[:8]
	s.runPipeline(id, body.Target, body.ProjectID, stages)
	writeJSON(w, http.StatusOK, map[string]string{"pipeline_id": id, "status": "running"})
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.pipelines[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, "Pipeline not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, s.pipelines)
}

// Notifications

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	items, unread := s.notes.list(limit, r.URL.Query().Get("unread_only") == "true")
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items, "unread": unread})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if !s.notes.markRead(chi.URLParam(r, "id")) {
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	s.notes.markAll()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleNotificationsWS pushes notifications created after the connection
// was opened.
func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Warn("devserver: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := s.notes.newest()
	for {
		items, changed := s.notes.after(last)
		for _, n := range items {
			if err := conn.WriteJSON(map[string]any{"type": "notification", "data": n}); err != nil {
				return
			}
			last, _ = strconv.Atoi(n.ID.String())
		}
		select {
		case <-changed:
		case <-gone:
			return
		case <-s.ctx.Done():
			return
		}
	}
}
