package editor

import (
	"slices"
)

// Selection tracks selected object IDs in selection order. The last one
// selected is active and carries the gizmo.
type Selection struct {
	ids []uint32
}

func NewSelection() *Selection {
	return &Selection{}
}

func (s *Selection) Clear() {
	s.ids = s.ids[:0]
}

// SelectSingle replaces the selection with id.
func (s *Selection) SelectSingle(id uint32) {
	s.ids = append(s.ids[:0], id)
}

// Toggle adds id, or removes it if already selected. It reports whether
// id is selected afterwards.
func (s *Selection) Toggle(id uint32) bool {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

func (s *Selection) IsSelected(id uint32) bool {
	return slices.Contains(s.ids, id)
}

// Active is the most recently selected object, 0 when empty.
func (s *Selection) Active() uint32 {
	if len(s.ids) == 0 {
		return 0
	}
	return s.ids[len(s.ids)-1]
}

func (s *Selection) IDs() []uint32 { return s.ids }

func (s *Selection) Len() int { return len(s.ids) }
