package devserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/notify"
	"github.com/user/sawlah/internal/report"
	"github.com/user/sawlah/internal/session"
	"github.com/user/sawlah/internal/stream"
	"github.com/user/sawlah/internal/tools"
	"github.com/user/sawlah/internal/watch"
)

const poll = 10 * time.Millisecond

type harness struct {
	srv    *Server
	ts     *httptest.Server
	client *api.Client
	sess   *session.Session
}

func (h *harness) close() {
	h.ts.Close()
	h.srv.Close()
}

// start serves a fresh backend and logs a client into it.
func start(t *testing.T) *harness {
	t.Helper()
	srv := New(Options{Step: 2 * time.Millisecond})
	ts := httptest.NewServer(srv)

	sess, err := session.Load(nil, ts.URL)
	require.NoError(t, err)
	client, err := api.NewClient(ts.URL, sess, api.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	require.NoError(t, sess.Login(context.Background(), client, DefaultUser, DefaultPassword))

	return &harness{srv: srv, ts: ts, client: client, sess: sess}
}

func (h *harness) finish(t *testing.T, ids ...string) []model.Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tasks, err := watch.Wait(ctx, h.client, poll, ids...)
	require.NoError(t, err)
	return tasks
}

func TestAuthGate(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.close()

	anon, err := api.NewClient(h.ts.URL, nil, api.WithHTTPClient(h.ts.Client()))
	require.NoError(t, err)
	_, err = anon.Projects(context.Background())
	assert.True(t, api.IsAuth(err))

	_, err = anon.Login(context.Background(), DefaultUser, "wrong")
	assert.True(t, api.IsAuth(err))

	ok, err := h.sess.Verify(context.Background(), h.client)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, DefaultUser, h.sess.User().Username)
}

func TestRunStreamAndStatusAgree(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.close()
	ctx := context.Background()

	res, err := h.client.Run(ctx, tools.Nmap{Target: "10.0.0.5", ScanType: "service"}, 0)
	require.NoError(t, err)
	assert.Contains(t, res.Command, "nmap")

	acc := stream.New(h.client)
	defer acc.Close()
	require.NoError(t, acc.Connect(ctx, res.TaskID))

	final := h.finish(t, res.TaskID)[0]
	assert.Equal(t, model.StatusCompleted, final.Status)
	require.Eventually(t, acc.Done, 2*time.Second, poll)
	assert.Equal(t, final.Output, acc.Output())

	ports := classify.Ports(final.Output)
	require.NotEmpty(t, ports)
	assert.Equal(t, "22/tcp", ports[0].Port)

	_, err = h.client.Status(ctx, "missing")
	assert.True(t, api.IsNotFound(err))

	_, err = h.client.Run(ctx, tools.Nmap{}, 0)
	assert.Error(t, err)
}

func TestKill(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv := New(Options{Step: time.Hour})
	ts := httptest.NewServer(srv)
	defer func() { ts.Close(); srv.Close() }()

	sess, err := session.Load(nil, ts.URL)
	require.NoError(t, err)
	client, err := api.NewClient(ts.URL, sess, api.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	require.NoError(t, sess.Login(context.Background(), client, DefaultUser, DefaultPassword))

	res, err := client.Run(context.Background(), tools.Nmap{Target: "10.0.0.5"}, 0)
	require.NoError(t, err)
	killed, err := client.Kill(context.Background(), res.TaskID)
	require.NoError(t, err)
	assert.True(t, killed)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tasks, err := watch.Wait(ctx, client, poll, res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusKilled, tasks[0].Status)
	assert.Contains(t, tasks[0].Output, "[Killed]")
}

func TestPipelineCarriesStageIDsAndOverrides(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.close()
	ctx := context.Background()

	id, err := h.client.RunPipeline(ctx, api.PipelineRequest{
		Target: "10.0.0.5",
		Stages: []api.Stage{
			{StageID: "a", ToolName: "nmap", Params: map[string]any{"scan_type": "quick"}},
			{StageID: "b", ToolName: "whatweb", Params: map[string]any{"custom_command": "whatweb -a 3 http://10.0.0.5"}},
		},
	})
	require.NoError(t, err)

	var status *model.PipelineStatus
	require.Eventually(t, func() bool {
		status, err = h.client.PipelineStatus(ctx, id)
		return err == nil && status.Finished()
	}, 5*time.Second, poll)

	require.Len(t, status.Stages, 2)
	assert.Equal(t, "a", status.Stages[0].StageID)
	assert.Equal(t, "b", status.Stages[1].StageID)

	task, err := h.client.Status(ctx, status.Stages[1].TaskID)
	require.NoError(t, err)
	assert.Equal(t, "whatweb -a 3 http://10.0.0.5", task.Command)

	_, err = h.client.PipelineStatus(ctx, "nope")
	assert.True(t, api.IsNotFound(err))
}

func TestNotificationsArePushed(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.close()

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan model.Notification, 8)
	f := notify.NewFollower(h.client, 20*time.Millisecond)
	done := make(chan error, 1)
	go func() {
		done <- f.Run(ctx, func(n model.Notification) { got <- n })
	}()

	// give the follower time to subscribe before the task finishes
	time.Sleep(50 * time.Millisecond)
	res, err := h.client.Run(context.Background(), tools.HashID{Hash: "5f4dcc3b5aa765d61d8327deb882cf99"}, 0)
	require.NoError(t, err)

	select {
	case n := <-got:
		assert.Equal(t, res.TaskID, n.TaskID)
		assert.Equal(t, model.SeveritySuccess, n.Severity)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification pushed")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	page, err := h.client.Notifications(context.Background(), 10, false)
	require.NoError(t, err)
	require.NotEmpty(t, page.Notifications)
	require.NoError(t, h.client.MarkAllRead(context.Background()))
	page, err = h.client.Notifications(context.Background(), 10, true)
	require.NoError(t, err)
	assert.Empty(t, page.Notifications)
}

func TestReportsAndMap(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.close()
	ctx := context.Background()

	p, err := h.client.CreateProject(ctx, "Acme", "10.0.0.5", "internal range")
	require.NoError(t, err)

	res, err := h.client.Run(ctx, tools.Nmap{Target: "10.0.0.5", ScanType: "vuln"}, p.ID)
	require.NoError(t, err)
	h.finish(t, res.TaskID)

	html, err := h.client.GenerateReport(ctx, p.ID, model.ReportOptions{TesterName: "ops", IncludeRaw: true})
	require.NoError(t, err)
	sum, err := report.Summarize(html)
	require.NoError(t, err)
	assert.Contains(t, sum.Title, "Acme")
	assert.Equal(t, 1, sum.Scans)
	assert.Positive(t, sum.TotalFindings())

	g, err := h.client.Graph(ctx, "10.0.0.5")
	require.NoError(t, err)
	port, ok := g.Node("port-22")
	require.True(t, ok)
	assert.Equal(t, "ssh", port.Port().Service)
	require.Len(t, g.ScanDetails(), 1)
	assert.Equal(t, res.TaskID, g.ScanDetails()[0].TaskID)

	exp, err := h.client.AutoExploit(ctx, res.TaskID)
	require.NoError(t, err)
	assert.NotEmpty(t, exp.Queries)
	assert.Len(t, exp.TaskIDs, len(exp.Queries))
	h.finish(t, exp.TaskIDs...)
}

func TestScannerReports(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.close()
	ctx := context.Background()

	res, err := h.client.RunNikto(ctx, api.NiktoRequest{Target: "http://web.example", SaveReport: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.ReportFilename)
	h.finish(t, res.TaskID)

	require.Eventually(t, func() bool {
		files, err := h.client.ScannerReports(ctx, api.Nikto)
		return err == nil && len(files) == 1
	}, 2*time.Second, poll)

	body, err := h.client.ScannerReport(ctx, api.Nikto, res.ReportFilename)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "Directory indexing"))

	_, err = h.client.ScannerReport(ctx, api.Nikto, "missing.html")
	assert.True(t, api.IsNotFound(err))
}

func TestWebRecon(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.close()
	ctx := context.Background()

	sess, err := h.client.RunWebRecon(ctx, api.WebReconRequest{Target: "example.com", Mode: "full"})
	require.NoError(t, err)
	require.Len(t, sess.Tasks, 4)

	require.Eventually(t, func() bool {
		s, err := h.client.WebReconStatus(ctx, sess.ID)
		return err == nil && s.Status == model.StatusCompleted && s.SubdomainCount > 0
	}, 5*time.Second, poll)

	list, err := h.client.WebReconSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
