package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/pipeline"
)

// PipelineBackend submits pipelines.
type PipelineBackend interface {
	RunPipeline(ctx context.Context, req api.PipelineRequest) (string, error)
	QuickPipeline(ctx context.Context, projectID int64, target, mode string) (string, error)
}

type pipelineFocus int

const (
	focusCatalog pipelineFocus = iota
	focusBlocks
)

type editKind int

const (
	editNone editKind = iota
	editTarget
	editCommand
)

// PipelineView builds a block chain, submits it and tracks its stages.
type PipelineView struct {
	backend PipelineBackend
	builder *pipeline.Builder

	focus   pipelineFocus
	catalog int
	block   int

	input   textinput.Model
	editing editKind
	target  string
	quick   string

	running string
	status  *model.PipelineStatus
	err     error
}

// NewPipelineView creates an empty builder view.
func NewPipelineView(backend PipelineBackend) *PipelineView {
	in := textinput.New()
	in.CharLimit = 512
	return &PipelineView{
		backend: backend,
		builder: pipeline.NewBuilder(),
		input:   in,
	}
}

// Builder exposes the block list.
func (v *PipelineView) Builder() *pipeline.Builder { return v.builder }

// Editing reports whether a text field owns the keyboard.
func (v *PipelineView) Editing() bool { return v.editing != editNone }

// Running returns the id of the pipeline being tracked.
func (v *PipelineView) Running() string { return v.running }

// SetTarget sets the pipeline target.
func (v *PipelineView) SetTarget(target string) { v.target = strings.TrimSpace(target) }

// Err returns the last submission or edit error.
func (v *PipelineView) Err() error { return v.err }

func (v *PipelineView) selectedBlock() (pipeline.Block, bool) {
	blocks := v.builder.Blocks()
	if v.block >= 0 && v.block < len(blocks) {
		return blocks[v.block], true
	}
	return pipeline.Block{}, false
}

func (v *PipelineView) clampBlock() {
	if v.block >= v.builder.Len() {
		v.block = v.builder.Len() - 1
	}
	if v.block < 0 {
		v.block = 0
	}
}

// edited drops the quick mode once the chain no longer matches it.
func (v *PipelineView) edited() {
	v.quick = ""
	v.err = nil
}

// Update handles keys and pipeline messages.
func (v *PipelineView) Update(ctx context.Context, projectID int64, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case pipelineStartedMsg:
		if msg.err != nil {
			v.err = msg.err
			return nil
		}
		v.running = msg.id
		v.status = nil
		return nil

	case pipelineStatusMsg:
		if msg.status.ID != v.running {
			return nil
		}
		st := msg.status
		v.status = &st
		v.builder.Apply(st)
		return nil

	case tea.KeyMsg:
		if v.editing != editNone {
			return v.updateEditing(msg)
		}
		return v.updateKeys(ctx, projectID, msg)
	}
	return nil
}

func (v *PipelineView) updateEditing(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.editing = editNone
		v.input.Blur()
		return nil
	case "enter":
		value := v.input.Value()
		switch v.editing {
		case editTarget:
			v.SetTarget(value)
		case editCommand:
			if blk, ok := v.selectedBlock(); ok {
				if err := v.builder.SetCommand(blk.UID, value); err != nil {
					v.err = err
				} else {
					v.edited()
				}
			}
		}
		v.editing = editNone
		v.input.Blur()
		return nil
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return cmd
}

func (v *PipelineView) startEdit(kind editKind, value, placeholder string) tea.Cmd {
	v.editing = kind
	v.input.SetValue(value)
	v.input.Placeholder = placeholder
	v.input.CursorEnd()
	return v.input.Focus()
}

func (v *PipelineView) updateKeys(ctx context.Context, projectID int64, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		if v.focus == focusCatalog {
			v.focus = focusBlocks
		} else {
			v.focus = focusCatalog
		}
	case "j", "down":
		if v.focus == focusCatalog {
			v.catalog = min(v.catalog+1, len(pipeline.Catalog)-1)
		} else {
			v.block++
			v.clampBlock()
		}
	case "k", "up":
		if v.focus == focusCatalog {
			v.catalog = max(v.catalog-1, 0)
		} else {
			v.block--
			v.clampBlock()
		}
	case "t":
		return v.startEdit(editTarget, v.target, "target host, URL or range")
	case "m":
		v.cycleQuick()
	case "c":
		v.builder.Clear()
		v.block = 0
		v.edited()
	case "r":
		return v.submit(ctx, projectID)
	case "enter", "a":
		if v.focus == focusCatalog {
			if _, err := v.builder.Add(pipeline.Catalog[v.catalog].Key); err != nil {
				v.err = err
			} else {
				v.edited()
			}
			return nil
		}
		if msg.String() == "enter" {
			if blk, ok := v.selectedBlock(); ok && blk.TaskID != "" {
				return openTask(blk.TaskID)
			}
		}
	}

	if v.focus != focusBlocks {
		return nil
	}
	blk, ok := v.selectedBlock()
	if !ok {
		return nil
	}
	switch msg.String() {
	case "x", "delete":
		if err := v.builder.Remove(blk.UID); err != nil {
			v.err = err
		}
		v.clampBlock()
		v.edited()
	case "K", "shift+up":
		if v.block > 0 && v.builder.Move(v.block, v.block-1) == nil {
			v.block--
			v.edited()
		}
	case "J", "shift+down":
		if v.block < v.builder.Len()-1 && v.builder.Move(v.block, v.block+1) == nil {
			v.block++
			v.edited()
		}
	case "e":
		return v.startEdit(editCommand, blk.CustomCmd, blk.Preview(v.target))
	}
	return nil
}

func (v *PipelineView) cycleQuick() {
	next := api.QuickModes[0]
	for i, m := range api.QuickModes {
		if m == v.quick {
			next = api.QuickModes[(i+1)%len(api.QuickModes)]
			break
		}
	}
	b, err := pipeline.FromQuickMode(next)
	if err != nil {
		v.err = err
		return
	}
	v.builder = b
	v.block = 0
	v.quick = next
	v.err = nil
}

func (v *PipelineView) submit(ctx context.Context, projectID int64) tea.Cmd {
	req, err := v.builder.Request(projectID, v.target)
	if err != nil {
		v.err = err
		return nil
	}
	v.builder.ResetStatus()
	v.err = nil
	v.status = nil

	backend, quick, target := v.backend, v.quick, v.target
	return func() tea.Msg {
		var id string
		var err error
		if quick != "" {
			id, err = backend.QuickPipeline(ctx, projectID, target, quick)
		} else {
			id, err = backend.RunPipeline(ctx, req)
		}
		return pipelineStartedMsg{id: id, err: err}
	}
}

// View renders the catalog, the chain and the run state.
func (v *PipelineView) View(width int) string {
	var sb strings.Builder

	target := v.target
	if target == "" {
		target = DimStyle.Render("(none, press t)")
	}
	mode := "custom"
	if v.quick != "" {
		mode = "quick: " + v.quick
	}
	sb.WriteString(fmt.Sprintf("%s %s   %s %s\n", LabelStyle.Render("Target:"), target,
		LabelStyle.Render("Mode:"), ValueStyle.Render(mode)))
	if v.editing != editNone {
		sb.WriteString(v.input.View() + "\n")
	}
	sb.WriteString("\n")

	var cat []string
	for i, t := range pipeline.Catalog {
		line := fmt.Sprintf("%-22s", t.Label)
		if v.focus == focusCatalog && i == v.catalog {
			cat = append(cat, SelectedStyle.Render("> "+line))
		} else {
			cat = append(cat, "  "+line)
		}
	}

	var chain []string
	blocks := v.builder.Blocks()
	if len(blocks) == 0 {
		chain = append(chain, DimStyle.Render("add blocks from the catalog"))
	}
	for i, b := range blocks {
		line := fmt.Sprintf("%d. %-20s %s", i+1, b.Label, StatusBadge(b.Status))
		preview := DimStyle.Render("   " + truncate(b.Preview(v.target), width/2))
		if v.focus == focusBlocks && i == v.block {
			line = SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		chain = append(chain, line, preview)
	}

	left := SectionStyle.Render(SectionTitleStyle.Render("Catalog") + "\n" + strings.Join(cat, "\n"))
	right := SectionStyle.Render(SectionTitleStyle.Render("Pipeline") + "\n" + strings.Join(chain, "\n"))
	sb.WriteString(joinHorizontal(left, right))
	sb.WriteString("\n")

	if v.running != "" {
		progress := 0.0
		state := "submitted"
		if v.status != nil {
			progress = pipeline.Progress(*v.status)
			state = fmt.Sprintf("stage %d/%d %s", v.status.CurrentStage, v.status.TotalStages, v.status.Status.Label())
		}
		sb.WriteString(fmt.Sprintf("%s %s %s %s\n", LabelStyle.Render("Run:"), v.running,
			RenderBar(int(progress*100), 100, 30), state))
	}
	if v.err != nil {
		sb.WriteString(ErrorStyle.Render(v.err.Error()) + "\n")
	}
	sb.WriteString(HelpStyle.Render("tab switch • enter add/open • x remove • K/J reorder • e edit command • t target • m quick mode • c clear • r run • esc back"))
	return sb.String()
}
