// Package model defines core data structures for sawlah.
package model

import "time"

// TaskStatus is the lifecycle state of a backend task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusError     TaskStatus = "error"
	StatusKilled    TaskStatus = "killed"
)

// IsTerminal reports whether no further transitions are expected.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusKilled:
		return true
	}
	return false
}

// Label returns the display label used by status badges.
func (s TaskStatus) Label() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusError:
		return "Error"
	case StatusKilled:
		return "Killed"
	default:
		return "Pending"
	}
}

// Task is a single tool invocation tracked by the backend.
type Task struct {
	ID         string     `json:"id"`
	ToolName   string     `json:"tool_name"`
	Command    string     `json:"command"`
	Status     TaskStatus `json:"status"`
	StartedAt  Timestamp  `json:"started_at"`
	FinishedAt Timestamp  `json:"finished_at"`
	Output     string     `json:"output"`
	ReturnCode *int       `json:"return_code,omitempty"`
}

// Duration returns how long the task ran, or has been running so far.
func (t Task) Duration(now time.Time) time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if !t.FinishedAt.IsZero() {
		return t.FinishedAt.Sub(t.StartedAt.Time)
	}
	return now.Sub(t.StartedAt.Time)
}

// RunResult is the backend's answer to a run request.
type RunResult struct {
	TaskID         string `json:"task_id"`
	Command        string `json:"command"`
	ScanID         ID     `json:"scan_id,omitempty"`
	ReportFilename string `json:"report_filename,omitempty"`
	Status         string `json:"status,omitempty"`
}

// StageStatus is one entry of a pipeline status response.
type StageStatus struct {
	StageID string     `json:"stage_id,omitempty"`
	Tool    string     `json:"tool"`
	Status  TaskStatus `json:"status"`
	TaskID  string     `json:"task_id,omitempty"`
}

// PipelineStatus is the polled state of an automation pipeline.
type PipelineStatus struct {
	ID           string        `json:"id,omitempty"`
	Status       TaskStatus    `json:"status"`
	CurrentStage int           `json:"current_stage"`
	TotalStages  int           `json:"total_stages"`
	Stages       []StageStatus `json:"stages"`
	StartedAt    Timestamp     `json:"started_at"`
	FinishedAt   Timestamp     `json:"finished_at"`
}

// Finished reports whether the pipeline reached a terminal state.
func (p PipelineStatus) Finished() bool {
	return p.Status == StatusCompleted || p.Status == StatusError
}

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is a single entry of the notification feed.
type Notification struct {
	ID        ID        `json:"id"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ToolName  string    `json:"tool_name,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Project groups scans for one engagement.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Target    string    `json:"target"`
	Scope     string    `json:"scope"`
	CreatedAt Timestamp `json:"created_at"`
}

// User is the minimal descriptor kept for the logged-in operator.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ExploitQuery is one search derived from a finished scan's services.
type ExploitQuery struct {
	Query   string `json:"query"`
	Service string `json:"service,omitempty"`
	Port    string `json:"port,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

// WebReconSession is a composite subdomain, directory, tech and exploit run.
type WebReconSession struct {
	ID             string                  `json:"session_id"`
	Target         string                  `json:"target"`
	Domain         string                  `json:"domain,omitempty"`
	Mode           string                  `json:"mode,omitempty"`
	Status         TaskStatus              `json:"status"`
	Tasks          map[string]WebReconTask `json:"tasks,omitempty"`
	Results        map[string]any          `json:"results,omitempty"`
	StartedAt      Timestamp               `json:"started_at"`
	FinishedAt     Timestamp               `json:"finished_at"`
	SubdomainCount int                     `json:"subdomain_count,omitempty"`
	DirCount       int                     `json:"dir_count,omitempty"`
	ExploitCount   int                     `json:"exploit_count,omitempty"`
	TechCount      int                     `json:"tech_count,omitempty"`
}

// WebReconTask is one sub-scan of a web recon session.
type WebReconTask struct {
	TaskID string     `json:"task_id"`
	Label  string     `json:"label"`
	Status TaskStatus `json:"status,omitempty"`
}

// ReportFile is a stored scanner report listed by nikto or wafw00f.
type ReportFile struct {
	Filename string    `json:"filename"`
	Target   string    `json:"target,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Created  Timestamp `json:"created"`
}

// ReportOptions defines options for report generation.
type ReportOptions struct {
	TesterName     string `json:"tester_name,omitempty"`
	Classification string `json:"classification,omitempty"`
	ScopeNotes     string `json:"scope_notes,omitempty"`
	IncludeRaw     bool   `json:"include_raw"`
}
