package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sawlah/internal/model"
)

func newSeqBuilder() *Builder {
	n := 0
	return &Builder{newID: func() string {
		n++
		return fmt.Sprintf("b%d", n)
	}}
}

func uids(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.UID
	}
	return out
}

func TestAddUsesCatalogDefaults(t *testing.T) {
	b := NewBuilder()
	blk, err := b.Add("nmap_vuln")
	require.NoError(t, err)
	assert.Equal(t, "nmap", blk.Tool)
	assert.Equal(t, "vuln", blk.Params["scan_type"])
	assert.Len(t, blk.UID, 36)

	other, err := b.Add("nmap_vuln")
	require.NoError(t, err)
	assert.NotEqual(t, blk.UID, other.UID)

	// Blocks do not share the catalog map.
	require.NoError(t, b.SetParam(blk.UID, "scan_type", "udp"))
	tmpl, _ := Lookup("nmap_vuln")
	assert.Equal(t, "vuln", tmpl.Defaults["scan_type"])

	_, err = b.Add("metasploit")
	assert.True(t, errors.Is(err, ErrUnknownTemplate))
}

func TestMovePreservesIdentity(t *testing.T) {
	b := newSeqBuilder()
	for _, k := range []string{"nmap", "whatweb", "nikto", "ffuf"} {
		_, err := b.Add(k)
		require.NoError(t, err)
	}

	require.NoError(t, b.Move(2, 0))
	assert.Equal(t, []string{"b3", "b1", "b2", "b4"}, uids(b.Blocks()))

	require.NoError(t, b.Move(0, 3))
	assert.Equal(t, []string{"b1", "b2", "b4", "b3"}, uids(b.Blocks()))

	assert.True(t, errors.Is(b.Move(4, 0), ErrIndexRange))
	assert.True(t, errors.Is(b.Move(-1, 0), ErrIndexRange))
	assert.Len(t, b.Blocks(), 4)
}

func TestRemoveAndSetCommand(t *testing.T) {
	b := newSeqBuilder()
	_, _ = b.Add("nmap")
	_, _ = b.Add("gobuster_dir")
	_, _ = b.Add("nikto")

	require.NoError(t, b.SetCommand("b2", "  gobuster dir -u http://t -w big.txt "))
	blocks := b.Blocks()
	assert.Equal(t, "gobuster_dir", blocks[1].Tool)
	assert.Equal(t, "b2", blocks[1].UID)
	assert.Equal(t, "gobuster dir -u http://t -w big.txt", blocks[1].Preview("ignored"))

	require.NoError(t, b.Remove("b1"))
	assert.Equal(t, []string{"b2", "b3"}, uids(b.Blocks()))
	assert.True(t, errors.Is(b.Remove("b1"), ErrUnknownBlock))
	assert.True(t, errors.Is(b.SetCommand("b9", "x"), ErrUnknownBlock))
}

func TestPreview(t *testing.T) {
	b := NewBuilder()
	blk, _ := b.Add("ffuf")
	assert.Equal(t, "ffuf -u http://t/FUZZ -w /usr/share/wordlists/dirb/common.txt", blk.Preview("http://t"))

	nxc, _ := b.Add("nxc")
	assert.Equal(t, "nxc smb 10.0.0.5 --shares --users", nxc.Preview("10.0.0.5"))
}

func TestRequestValidation(t *testing.T) {
	b := newSeqBuilder()
	_, err := b.Request(1, "10.0.0.1")
	assert.True(t, errors.Is(err, ErrNoBlocks))

	_, _ = b.Add("nmap")
	_, err = b.Request(1, "   ")
	assert.True(t, errors.Is(err, ErrEmptyTarget))

	require.NoError(t, b.SetCommand("b1", "nmap -p- 10.0.0.1"))
	req, err := b.Request(1, " 10.0.0.1 ")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", req.Target)
	require.Len(t, req.Stages, 1)
	assert.Equal(t, "b1", req.Stages[0].StageID)
	assert.Equal(t, "nmap", req.Stages[0].ToolName)
	assert.Equal(t, "nmap -p- 10.0.0.1", req.Stages[0].Params["custom_command"])
	assert.Equal(t, "quick", req.Stages[0].Params["scan_type"])
}

func TestApplyByStageID(t *testing.T) {
	b := newSeqBuilder()
	_, _ = b.Add("nmap")
	_, _ = b.Add("whatweb")
	_, _ = b.Add("nikto")

	// The backend reports out of order and skipped b2.
	b.Apply(model.PipelineStatus{Stages: []model.StageStatus{
		{StageID: "b3", Tool: "nikto", Status: model.StatusRunning, TaskID: "t3"},
		{StageID: "b1", Tool: "nmap", Status: model.StatusCompleted, TaskID: "t1"},
	}})

	blocks := b.Blocks()
	assert.Equal(t, model.StatusCompleted, blocks[0].Status)
	assert.Equal(t, "t1", blocks[0].TaskID)
	assert.Equal(t, model.StatusPending, blocks[1].Status)
	assert.Equal(t, model.StatusRunning, blocks[2].Status)
	assert.Equal(t, "t3", blocks[2].TaskID)
}

func TestApplyPositionalFallback(t *testing.T) {
	b := newSeqBuilder()
	_, _ = b.Add("nmap")
	_, _ = b.Add("whatweb")
	_, _ = b.Add("nikto")

	b.Apply(model.PipelineStatus{Stages: []model.StageStatus{
		{Tool: "nmap", Status: model.StatusCompleted, TaskID: "t1"},
		{Tool: "whatweb", Status: model.StatusRunning},
	}})
	blocks := b.Blocks()
	assert.Equal(t, model.StatusCompleted, blocks[0].Status)
	assert.Equal(t, model.StatusRunning, blocks[1].Status)
	assert.Equal(t, model.StatusPending, blocks[2].Status, "extra blocks keep their last status")

	b.ResetStatus()
	for _, blk := range b.Blocks() {
		assert.Equal(t, model.StatusPending, blk.Status)
		assert.Empty(t, blk.TaskID)
	}
}

func TestProgress(t *testing.T) {
	assert.Zero(t, Progress(model.PipelineStatus{}))

	st := model.PipelineStatus{TotalStages: 4, Stages: []model.StageStatus{
		{Status: model.StatusCompleted},
		{Status: model.StatusError},
		{Status: model.StatusRunning},
	}}
	assert.InDelta(t, 0.25, Progress(st), 1e-9)
}

func TestQuickModes(t *testing.T) {
	b, err := FromQuickMode("recon")
	require.NoError(t, err)
	blocks := b.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, "quick", blocks[0].Params["scan_type"])
	assert.Equal(t, "service", blocks[1].Params["scan_type"])

	full, err := QuickStages("full")
	require.NoError(t, err)
	assert.Len(t, full, 7)

	_, err = QuickStages("stealth")
	assert.Error(t, err)
}
