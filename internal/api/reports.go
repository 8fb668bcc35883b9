package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/user/sawlah/internal/model"
)

// GenerateReport renders the project report and returns the HTML document.
func (c *Client) GenerateReport(ctx context.Context, projectID int64, opts model.ReportOptions) ([]byte, error) {
	return c.raw(ctx, http.MethodPost, fmt.Sprintf("/api/reports/%d", projectID), opts)
}

// DownloadReport fetches the last generated report file of a project.
func (c *Client) DownloadReport(ctx context.Context, projectID int64) ([]byte, error) {
	return c.raw(ctx, http.MethodGet, fmt.Sprintf("/api/reports/%d/download", projectID), nil)
}

// WebReconRequest starts a composite web recon session.
type WebReconRequest struct {
	Target     string `json:"target"`
	Mode       string `json:"mode,omitempty"`
	Threads    int    `json:"threads,omitempty"`
	Extensions string `json:"extensions,omitempty"`
	ProjectID  *int64 `json:"project_id,omitempty"`
}

// RunWebRecon starts a session and returns its initial state.
func (c *Client) RunWebRecon(ctx context.Context, req WebReconRequest) (*model.WebReconSession, error) {
	var s model.WebReconSession
	if err := c.post(ctx, "/api/webrecon/run", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// WebReconStatus polls a session.
func (c *Client) WebReconStatus(ctx context.Context, sessionID string) (*model.WebReconSession, error) {
	var s model.WebReconSession
	if err := c.get(ctx, "/api/webrecon/status/"+escape(sessionID), &s); err != nil {
		return nil, err
	}
	s.ID = sessionID
	return &s, nil
}

// WebReconSessions lists sessions, newest first.
func (c *Client) WebReconSessions(ctx context.Context) ([]model.WebReconSession, error) {
	var out []model.WebReconSession
	if err := c.get(ctx, "/api/webrecon/sessions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// KillWebRecon stops every task of a session.
func (c *Client) KillWebRecon(ctx context.Context, sessionID string) error {
	return c.delete(ctx, "/api/webrecon/kill/"+escape(sessionID), nil)
}

// Scanner names a backend scanner that keeps HTML reports.
type Scanner string

const (
	Nikto   Scanner = "nikto"
	Wafw00f Scanner = "wafw00f"
)

// NiktoRequest mirrors the nikto run form.
type NiktoRequest struct {
	Target          string `json:"target"`
	Port            string `json:"port,omitempty"`
	SSL             bool   `json:"ssl,omitempty"`
	Tuning          string `json:"tuning,omitempty"`
	Plugins         string `json:"plugins,omitempty"`
	Evasion         string `json:"evasion,omitempty"`
	Timeout         string `json:"timeout,omitempty"`
	MaxTime         string `json:"maxtime,omitempty"`
	UserAgent       string `json:"useragent,omitempty"`
	FollowRedirects bool   `json:"followredirects,omitempty"`
	No404           bool   `json:"no404,omitempty"`
	ExtraFlags      string `json:"extra_flags,omitempty"`
	SaveReport      bool   `json:"save_report"`
	ProjectID       *int64 `json:"project_id,omitempty"`
}

// Wafw00fRequest mirrors the WAF detection form.
type Wafw00fRequest struct {
	Target      string `json:"target"`
	AllWAF      bool   `json:"all_waf,omitempty"`
	Verbose     bool   `json:"verbose,omitempty"`
	DoubleCheck bool   `json:"double_check"`
	ExtraFlags  string `json:"extra_flags,omitempty"`
	SaveReport  bool   `json:"save_report"`
	ProjectID   *int64 `json:"project_id,omitempty"`
}

// RunNikto starts a nikto scan that may save an HTML report.
func (c *Client) RunNikto(ctx context.Context, req NiktoRequest) (*model.RunResult, error) {
	return c.runScanner(ctx, Nikto, req)
}

// RunWafw00f starts a WAF detection scan.
func (c *Client) RunWafw00f(ctx context.Context, req Wafw00fRequest) (*model.RunResult, error) {
	return c.runScanner(ctx, Wafw00f, req)
}

func (c *Client) runScanner(ctx context.Context, s Scanner, body any) (*model.RunResult, error) {
	var res model.RunResult
	if err := c.post(ctx, fmt.Sprintf("/api/%s/run", s), body, &res); err != nil {
		return nil, err
	}
	if res.TaskID == "" {
		return nil, &APIError{Kind: KindSubmission, Message: "backend returned no task id"}
	}
	return &res, nil
}

// ScannerReports lists the stored reports of a scanner.
func (c *Client) ScannerReports(ctx context.Context, s Scanner) ([]model.ReportFile, error) {
	var out []model.ReportFile
	if err := c.get(ctx, fmt.Sprintf("/api/%s/reports", s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ScannerReport fetches a stored report for preview.
func (c *Client) ScannerReport(ctx context.Context, s Scanner, filename string) ([]byte, error) {
	return c.raw(ctx, http.MethodGet, fmt.Sprintf("/api/%s/reports/%s", s, escape(filename)), nil)
}

// DownloadScannerReport fetches a stored report as an attachment.
func (c *Client) DownloadScannerReport(ctx context.Context, s Scanner, filename string) ([]byte, error) {
	return c.raw(ctx, http.MethodGet, fmt.Sprintf("/api/%s/reports/%s/download", s, escape(filename)), nil)
}
