package editor

import (
	"fmt"

	"viewport-engine/scene"
	"viewport-engine/viewport"
)

// Command is an undoable edit.
type Command interface {
	Execute()
	Undo()
	Description() string
}

// History is a bounded undo/redo stack. Past maxDepth the oldest command
// is dropped.
type History struct {
	undo     []Command
	redo     []Command
	maxDepth int
}

const DefaultHistoryDepth = 100

func NewHistory(maxDepth int) *History {
	if maxDepth <= 0 {
		maxDepth = DefaultHistoryDepth
	}
	return &History{maxDepth: maxDepth}
}

// Do executes cmd and records it.
func (h *History) Do(cmd Command) {
	cmd.Execute()
	h.Record(cmd)
}

// Record pushes a command whose effect is already applied, such as the
// end of a gizmo drag. Any redo history is discarded.
func (h *History) Record(cmd Command) {
	h.undo = append(h.undo, cmd)
	if n := len(h.undo) - h.maxDepth; n > 0 {
		h.undo = append(h.undo[:0], h.undo[n:]...)
	}
	clear(h.redo)
	h.redo = h.redo[:0]
}

// Undo reverts the newest command and returns it, or nil.
func (h *History) Undo() Command {
	n := len(h.undo)
	if n == 0 {
		return nil
	}
	cmd := h.undo[n-1]
	h.undo = h.undo[:n-1]
	cmd.Undo()
	h.redo = append(h.redo, cmd)
	return cmd
}

// Redo reapplies the newest undone command and returns it, or nil.
func (h *History) Redo() Command {
	n := len(h.redo)
	if n == 0 {
		return nil
	}
	cmd := h.redo[n-1]
	h.redo = h.redo[:n-1]
	cmd.Execute()
	h.undo = append(h.undo, cmd)
	return cmd
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
func (h *History) Len() int      { return len(h.undo) }

func (h *History) Clear() {
	clear(h.undo)
	clear(h.redo)
	h.undo, h.redo = h.undo[:0], h.redo[:0]
}

// TransformCommand sets a mesh's TRS. It is a no-op once the mesh is
// removed, since the handle goes stale.
type TransformCommand struct {
	View     *viewport.Viewport
	Mesh     scene.MeshHandle
	ObjectID uint32
	Old, New Transform
	Action   string
}

func (c *TransformCommand) Execute() { c.apply(c.New) }
func (c *TransformCommand) Undo()    { c.apply(c.Old) }

func (c *TransformCommand) Description() string {
	return fmt.Sprintf("%s object %d", c.Action, c.ObjectID)
}

func (c *TransformCommand) apply(t Transform) {
	m := c.View.Mesh(c.Mesh)
	if m == nil {
		return
	}
	m.SetPosition(t.Position)
	m.SetRotation(t.Rotation)
	m.SetScale(t.Scale)
}

func meshTransform(m *scene.Mesh) Transform {
	return Transform{Position: m.Position(), Rotation: m.Rotation(), Scale: m.Scale()}
}
