package devserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

// start launches a simulated run of tool and registers it.
func (s *Server) start(tool string, params map[string]any, projectID int64, onDone ...func(*task)) *task {
	if params == nil {
		params = map[string]any{}
	}
	target, _ := params["target"].(string)
	t := newTask(uuid.NewString()[:8], tool, commandFor(tool, params), target, projectID)
	t.onDone = append(t.onDone, s.notifyDone)
	t.onDone = append(t.onDone, onDone...)

	ctx, cancel := context.WithCancel(s.ctx)
	t.cancel = cancel

	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()

	lines := script(tool, target, params)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.play(ctx, t, lines)
	}()

	util.Debug("devserver: started %s task %s", tool, t.id)
	return t
}

func (s *Server) play(ctx context.Context, t *task, lines []string) {
	ticker := time.NewTicker(s.opts.Step)
	defer ticker.Stop()

	t.append(fmt.Sprintf("$ %s\n", t.command))
	for _, line := range lines {
		select {
		case <-ctx.Done():
			t.finish(model.StatusKilled, -9, "\n[Killed]\n")
			return
		case <-ticker.C:
		}
		t.append(line + "\n")
	}

	if strings.Contains(t.command, "--fail") {
		t.finish(model.StatusError, 1, "\n[Error - exit code 1]\n")
		return
	}
	t.finish(model.StatusCompleted, 0, "\n[Done - completed]\n")
}

func (s *Server) notifyDone(t *task) {
	m := t.snapshot()
	switch m.Status {
	case model.StatusCompleted:
		s.notes.push(model.SeveritySuccess, m.ToolName+" completed",
			fmt.Sprintf("%s finished against %s", m.ToolName, t.target), m.ToolName, m.ID)
	case model.StatusError:
		s.notes.push(model.SeverityError, m.ToolName+" failed",
			fmt.Sprintf("exit code %d", *m.ReturnCode), m.ToolName, m.ID)
	case model.StatusKilled:
		s.notes.push(model.SeverityWarning, m.ToolName+" killed", "task was terminated", m.ToolName, m.ID)
	}
}

func (s *Server) task(id string) (*task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// wait blocks until t is terminal or the server stops.
func (s *Server) wait(t *task) model.TaskStatus {
	for {
		_, done, changed := t.since(0)
		if done {
			return t.state()
		}
		select {
		case <-s.ctx.Done():
			return t.state()
		case <-changed:
		}
	}
}

// runPipeline executes stages one after another.
func (s *Server) runPipeline(id, target string, projectID int64, stages []pipelineStage) {
	s.mu.Lock()
	run := &pipelineRun{
		Status:      model.StatusRunning,
		Stages:      []stage{},
		TotalStages: len(stages),
		StartedAt:   model.NewTimestamp(time.Now().UTC()),
	}
	s.pipelines[id] = run
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for i, st := range stages {
			params := make(map[string]any, len(st.Params)+1)
			for k, v := range st.Params {
				params[k] = v
			}
			if _, ok := params["target"]; !ok {
				params["target"] = target
			}

			t := s.start(st.ToolName, params, projectID)
			taskID := t.id

			s.mu.Lock()
			run.CurrentStage = i + 1
			run.Stages = append(run.Stages, stage{StageID: st.StageID, Tool: st.ToolName, Status: model.StatusRunning, TaskID: &taskID})
			s.mu.Unlock()

			status := s.wait(t)

			s.mu.Lock()
			run.Stages[i].Status = status
			s.mu.Unlock()

			if s.ctx.Err() != nil {
				return
			}
		}

		s.mu.Lock()
		run.Status = model.StatusCompleted
		done := model.NewTimestamp(time.Now().UTC())
		run.FinishedAt = &done
		s.mu.Unlock()
		s.notes.push(model.SeverityInfo, "Pipeline completed",
			fmt.Sprintf("%d stages against %s", len(stages), target), "automation", id)
	}()
}
