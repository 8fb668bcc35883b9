package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/tools"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL, staticToken("tok"), WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return c, ts
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://host", nil)
	assert.Error(t, err)

	_, err = NewClient("::not a url", nil)
	assert.Error(t, err)
}

func TestWebSocketURL(t *testing.T) {
	c, err := NewClient("https://panel.example:8443/", nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://panel.example:8443/ws/notifications", c.NotificationsURL())

	c, err = NewClient("http://127.0.0.1:8000", nil)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8000/api/tools/ws/ab12", c.TaskOutputURL("ab12"))
}

func TestRunSendsTypedParams(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/tools/run", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"task_id":"ab12cd34","command":"nmap -sV 10.0.0.1","scan_id":7,"status":"running"}`)
	})

	res, err := c.Run(context.Background(), tools.Nmap{Target: "10.0.0.1", ScanType: "service"}, 3)
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34", res.TaskID)
	assert.Equal(t, model.ID("7"), res.ScanID)

	assert.Equal(t, "nmap", got["tool_name"])
	assert.Equal(t, float64(3), got["project_id"])
	params := got["params"].(map[string]any)
	assert.Equal(t, "10.0.0.1", params["target"])
}

func TestRunValidationNeverReachesBackend(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := c.Run(context.Background(), tools.Nmap{}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrMissingField))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindSubmission, apiErr.Kind)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEmbeddedErrorIsSubmission(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Unknown tool: bogus"}`)
	})

	_, err := c.RunRaw(context.Background(), "id", "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindSubmission, apiErr.Kind)
	assert.Equal(t, "Unknown tool: bogus", apiErr.Message)
	assert.False(t, IsTransport(err))
}

func TestStatusNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Task not found"}`)
	})

	_, err := c.Status(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestStatusDecodesTask(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tools/status/t1", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"completed","tool_name":"nmap","command":"nmap x",
			"output":"22/tcp open ssh\n","started_at":"2024-05-01T10:00:00.123456+00:00",
			"finished_at":"2024-05-01T10:00:05.123456+00:00","return_code":0}`)
	})

	task, err := c.Status(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.True(t, task.Status.IsTerminal())
	assert.Equal(t, "5s", task.Duration(task.FinishedAt.Time).String())
}

func TestAuthErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Invalid credentials"}`)
		case "/api/auth/register":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"Username already exists"}`)
		}
	})

	_, err := c.Login(context.Background(), "admin", "wrong")
	require.True(t, IsAuth(err))
	assert.Contains(t, err.Error(), "Invalid credentials")

	_, err = c.Register(context.Background(), "admin", "pw")
	require.True(t, IsAuth(err))
	assert.Contains(t, err.Error(), "Username already exists")

	_, err = c.Login(context.Background(), "", "")
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"jwt","username":"admin","role":"admin"}`)
	})

	res, err := c.Login(context.Background(), "admin", "sawlah")
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, "admin", res.Role)
}

func TestTransportErrorIsDistinct(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c, err := NewClient(ts.URL, nil)
	require.NoError(t, err)
	ts.Close()

	_, err = c.Projects(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestTasksSortedNewestFirst(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"old":{"status":"completed","tool_name":"nmap","command":"a","output":"","started_at":"2024-05-01T10:00:00+00:00","finished_at":null},
			"new":{"status":"running","tool_name":"ffuf","command":"b","output":"","started_at":"2024-05-01T11:00:00+00:00","finished_at":null}
		}`)
	})

	list, err := c.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
	assert.True(t, list[0].FinishedAt.IsZero())
}

func TestGraphDecodesScanDetails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/map/targets/10.0.0.1", r.URL.Path)
		_, _ = io.WriteString(w, `{"target":"10.0.0.1",
			"nodes":[{"id":"target-0","type":"target","data":{"label":"10.0.0.1","scans":1}},
			         {"id":"port-1","type":"port","data":{"port":22,"proto":"tcp","state":"open","service":"ssh","version":""}}],
			"edges":[{"id":"e-target-0-port-1","source":"target-0","target":"port-1"}],
			"summary":{"target":"10.0.0.1","ports":[],"subdomains":[],"vulns":[],
			           "scans":[{"task_id":"t1","tool":"nmap","status":"completed","started_at":"2024-05-01T10:00:00"}]}}`)
	})

	g, err := c.Graph(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)

	port, ok := g.Node("port-1")
	require.True(t, ok)
	assert.Equal(t, "22", port.Port().Port)
	assert.Equal(t, "22/tcp", port.Label())

	scans := g.ScanDetails()
	require.Len(t, scans, 1)
	assert.Equal(t, "t1", scans[0].TaskID)
	assert.Equal(t, 10, scans[0].StartedAt.Hour())
}

func TestNotificationsPage(t *testing.T) {
	var marked string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/notifications":
			assert.Equal(t, "20", r.URL.Query().Get("limit"))
			_, _ = io.WriteString(w, `{"notifications":[{"id":3,"title":"Scan done","message":"nmap","severity":"success","read":false,"timestamp":"2024-05-01T10:00:00+00:00"}],"unread":1}`)
		default:
			marked = r.URL.Path
			_, _ = io.WriteString(w, `{"ok":true}`)
		}
	})

	page, err := c.Notifications(context.Background(), 20, false)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, model.ID("3"), page.Notifications[0].ID)
	assert.Equal(t, 1, page.Unread)

	require.NoError(t, c.MarkRead(context.Background(), page.Notifications[0].ID))
	assert.Equal(t, "/api/notifications/3/read", marked)
}

func TestReportRawAndMissing(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/nikto/reports/missing.html" {
			_, _ = io.WriteString(w, `{"error":"Report not found"}`)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body><h1>Report</h1></body></html>")
	})

	html, err := c.GenerateReport(context.Background(), 1, model.ReportOptions{TesterName: "ops"})
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Report</h1>")

	_, err = c.ScannerReport(context.Background(), Nikto, "missing.html")
	assert.True(t, IsNotFound(err))
}

func TestQuickPipelineRejectsUnknownMode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	_, err := c.QuickPipeline(context.Background(), 1, "10.0.0.1", "stealth")
	assert.Error(t, err)
}

func TestPipelineStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"running","current_stage":1,"total_stages":2,
			"stages":[{"tool":"nmap","status":"running","task_id":null}],"started_at":"2024-05-01T10:00:00+00:00"}`)
	})

	st, err := c.PipelineStatus(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", st.ID)
	assert.False(t, st.Finished())
	require.Len(t, st.Stages, 1)
	assert.Empty(t, st.Stages[0].TaskID)
}
