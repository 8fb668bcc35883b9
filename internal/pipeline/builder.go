package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
)

var (
	ErrEmptyTarget     = errors.New("target is required")
	ErrNoBlocks        = errors.New("pipeline has no blocks")
	ErrUnknownBlock    = errors.New("unknown block")
	ErrUnknownTemplate = errors.New("unknown block template")
	ErrIndexRange      = errors.New("block index out of range")
)

// Block is one tool invocation in a pipeline.
type Block struct {
	UID       string
	Key       string
	Tool      string
	Label     string
	Params    map[string]any
	CustomCmd string
	Status    model.TaskStatus
	TaskID    string
}

// Preview renders the command the block will run against target.
func (b Block) Preview(target string) string {
	if b.CustomCmd != "" {
		return b.CustomCmd
	}
	tmpl, ok := Lookup(b.Key)
	if !ok {
		return b.Tool + " " + target
	}
	return render(tmpl.Preview, target, b.Params)
}

// Builder holds an ordered block list.
type Builder struct {
	blocks []Block
	newID  func() string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{newID: uuid.NewString}
}

// Add appends a block created from the catalog entry key.
func (b *Builder) Add(key string) (Block, error) {
	tmpl, ok := Lookup(key)
	if !ok {
		return Block{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	params := make(map[string]any, len(tmpl.Defaults))
	for k, v := range tmpl.Defaults {
		params[k] = v
	}
	blk := Block{
		UID:    b.newID(),
		Key:    tmpl.Key,
		Tool:   tmpl.Tool,
		Label:  tmpl.Label,
		Params: params,
		Status: model.StatusPending,
	}
	b.blocks = append(b.blocks, blk)
	return blk, nil
}

// Remove drops the block with uid.
func (b *Builder) Remove(uid string) error {
	for i, blk := range b.blocks {
		if blk.UID == uid {
			b.blocks = append(b.blocks[:i], b.blocks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownBlock, uid)
}

// Move splices the block at from into position to.
func (b *Builder) Move(from, to int) error {
	n := len(b.blocks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d of %d", ErrIndexRange, from, to, n)
	}
	if from == to {
		return nil
	}
	blk := b.blocks[from]
	b.blocks = append(b.blocks[:from], b.blocks[from+1:]...)
	b.blocks = append(b.blocks[:to], append([]Block{blk}, b.blocks[to:]...)...)
	return nil
}

// SetCommand sets the free-text command override of a block. An empty
// command restores the catalog command.
func (b *Builder) SetCommand(uid, cmd string) error {
	i := b.index(uid)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, uid)
	}
	b.blocks[i].CustomCmd = strings.TrimSpace(cmd)
	return nil
}

// SetParam overrides one parameter of a block.
func (b *Builder) SetParam(uid, key string, value any) error {
	i := b.index(uid)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, uid)
	}
	b.blocks[i].Params[key] = value
	return nil
}

func (b *Builder) index(uid string) int {
	for i, blk := range b.blocks {
		if blk.UID == uid {
			return i
		}
	}
	return -1
}

// Blocks returns a copy of the block list.
func (b *Builder) Blocks() []Block {
	return append([]Block(nil), b.blocks...)
}

// Len returns the number of blocks.
func (b *Builder) Len() int {
	return len(b.blocks)
}

// Clear drops every block.
func (b *Builder) Clear() {
	b.blocks = nil
}

// ResetStatus marks every block pending before a new run.
func (b *Builder) ResetStatus() {
	for i := range b.blocks {
		b.blocks[i].Status = model.StatusPending
		b.blocks[i].TaskID = ""
	}
}

// Request validates the pipeline and builds the run submission. Each stage
// carries its block uid so statuses can be matched back by id.
func (b *Builder) Request(projectID int64, target string) (api.PipelineRequest, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return api.PipelineRequest{}, ErrEmptyTarget
	}
	if len(b.blocks) == 0 {
		return api.PipelineRequest{}, ErrNoBlocks
	}

	req := api.PipelineRequest{ProjectID: projectID, Target: target}
	for _, blk := range b.blocks {
		params := make(map[string]any, len(blk.Params)+1)
		for k, v := range blk.Params {
			params[k] = v
		}
		if blk.CustomCmd != "" {
			params["custom_command"] = blk.CustomCmd
		}
		req.Stages = append(req.Stages, api.Stage{
			StageID:  blk.UID,
			ToolName: blk.Tool,
			Params:   params,
		})
	}
	return req, nil
}

// Apply copies stage statuses onto blocks. Stages are matched by stage id;
// only when the backend echoes no ids at all are they matched by position.
// Blocks without a matching stage keep their last known status.
func (b *Builder) Apply(st model.PipelineStatus) {
	byID := make(map[string]model.StageStatus, len(st.Stages))
	for _, s := range st.Stages {
		if s.StageID != "" {
			byID[s.StageID] = s
		}
	}

	if len(byID) > 0 {
		for i := range b.blocks {
			if s, ok := byID[b.blocks[i].UID]; ok {
				apply(&b.blocks[i], s)
			}
		}
		return
	}

	for i, s := range st.Stages {
		if i >= len(b.blocks) {
			break
		}
		apply(&b.blocks[i], s)
	}
}

func apply(blk *Block, s model.StageStatus) {
	if s.Status != "" {
		blk.Status = s.Status
	}
	if s.TaskID != "" {
		blk.TaskID = s.TaskID
	}
}

// Progress is the fraction of stages completed, in [0, 1].
func Progress(st model.PipelineStatus) float64 {
	total := st.TotalStages
	if total < len(st.Stages) {
		total = len(st.Stages)
	}
	if total == 0 {
		return 0
	}
	done := 0
	for _, s := range st.Stages {
		if s.Status == model.StatusCompleted {
			done++
		}
	}
	return float64(done) / float64(total)
}

// FromQuickMode builds the block list a quick mode runs, for display and
// positional reconciliation.
func FromQuickMode(mode string) (*Builder, error) {
	keys, err := QuickStages(mode)
	if err != nil {
		return nil, err
	}
	b := NewBuilder()
	for _, k := range keys {
		if _, err := b.Add(k); err != nil {
			return nil, err
		}
	}
	return b, nil
}
