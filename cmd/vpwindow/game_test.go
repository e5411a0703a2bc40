package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/editor"
	"viewport-engine/internal/harness"
	"viewport-engine/viewport"
)

func TestKeyBindingsAreKnown(t *testing.T) {
	s := viewport.DefaultSettings()
	seen := map[string]bool{}
	for _, b := range keyBindings {
		require.False(t, seen[b.name], "duplicate binding %q", b.name)
		seen[b.name] = true

		ev, ok := harness.KeyEvent(b.name, &s, 1)
		require.True(t, ok, b.name)
		assert.Equal(t, ev.Kind == editor.CameraMove, b.held, b.name)
	}
}

func TestMouseEvents(t *testing.T) {
	kinds := func(evs []editor.InputEvent) []editor.EventKind {
		var out []editor.EventKind
		for _, e := range evs {
			out = append(out, e.Kind)
		}
		return out
	}

	tests := []struct {
		name      string
		prev, cur mouseState
		want      []editor.EventKind
	}{
		{"idle", mouseState{x: 1, y: 1}, mouseState{x: 1, y: 1}, nil},
		{"move", mouseState{}, mouseState{x: 2}, []editor.EventKind{editor.PointerMove}},
		{"press", mouseState{}, mouseState{left: true}, []editor.EventKind{editor.PointerDown}},
		{"drag release", mouseState{left: true}, mouseState{x: 5, y: 5}, []editor.EventKind{editor.PointerMove, editor.PointerUp}},
		{"pan", mouseState{}, mouseState{right: true}, []editor.EventKind{editor.SecondaryDown}},
		{"pan end", mouseState{right: true}, mouseState{}, []editor.EventKind{editor.SecondaryUp}},
		{"wheel", mouseState{}, mouseState{wheel: -1}, []editor.EventKind{editor.Scroll}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kinds(mouseEvents(tt.prev, tt.cur)))
		})
	}
}

func TestMouseEventsCarryPositionAndShift(t *testing.T) {
	evs := mouseEvents(mouseState{x: 3, y: 4}, mouseState{x: 3, y: 4, left: true, shift: true})
	require.Len(t, evs, 1)
	assert.Equal(t, editor.InputEvent{Kind: editor.PointerDown, X: 3, Y: 4, Shift: true}, evs[0])

	evs = mouseEvents(mouseState{}, mouseState{wheel: 2})
	require.Len(t, evs, 1)
	assert.Equal(t, float32(2), evs[0].DY)
}
