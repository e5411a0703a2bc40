package scene

import (
	"log/slog"
	stdmath "math"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
)

// Light is one light source. Colour is linear. Spot cones are stored as
// cosines of the half angles.
type Light struct {
	Type      rhi.LightType
	Position  math.Vec3
	Direction math.Vec3
	Color     core.Color
	Intensity float32
	Range     float32
	InnerCos  float32
	OuterCos  float32
}

func DirectionalLight(dir math.Vec3, color core.Color, intensity float32) Light {
	return Light{Type: rhi.LightDirectional, Direction: dir.Normalize(), Color: color, Intensity: intensity}
}

func PointLight(pos math.Vec3, color core.Color, intensity, rng float32) Light {
	return Light{Type: rhi.LightPoint, Position: pos, Color: color, Intensity: intensity, Range: rng}
}

// SpotLight takes cone half angles in radians.
func SpotLight(pos, dir math.Vec3, color core.Color, intensity, rng, inner, outer float32) Light {
	return Light{
		Type:      rhi.LightSpot,
		Position:  pos,
		Direction: dir.Normalize(),
		Color:     color,
		Intensity: intensity,
		Range:     rng,
		InnerCos:  float32(stdmath.Cos(float64(inner))),
		OuterCos:  float32(stdmath.Cos(float64(outer))),
	}
}

func (l Light) data() rhi.LightData {
	return rhi.LightData{
		Type:      l.Type,
		Position:  l.Position,
		Direction: l.Direction,
		Color:     l.Color,
		Intensity: l.Intensity,
		Range:     l.Range,
		InnerCos:  l.InnerCos,
		OuterCos:  l.OuterCos,
	}
}

type LightHandle struct {
	index      uint8
	generation uint32
}

func (h LightHandle) IsNil() bool { return h.generation == 0 }

type lightSlot struct {
	light      Light
	active     bool
	generation uint32
}

// LightSlots is a fixed arena of rhi.MaxLights slots. A light keeps its
// slot until removed; AddLight takes the first free slot.
type LightSlots struct {
	slots [rhi.MaxLights]lightSlot
	limit int
	log   *slog.Logger
}

// SetLimit lowers the usable slot count. Values outside 1..MaxLights
// restore the full arena.
func (ls *LightSlots) SetLimit(n int) {
	if n <= 0 || n > rhi.MaxLights {
		n = rhi.MaxLights
	}
	ls.limit = n
}

func (ls *LightSlots) capacity() int {
	if ls.limit == 0 {
		return rhi.MaxLights
	}
	return ls.limit
}

// AddLight returns a zero handle and logs a warning when every slot is
// taken.
func (ls *LightSlots) AddLight(l Light) LightHandle {
	for i := 0; i < ls.capacity(); i++ {
		sl := &ls.slots[i]
		if sl.active {
			continue
		}
		sl.generation++
		if sl.generation == 0 {
			sl.generation = 1
		}
		sl.light = l
		sl.active = true
		return LightHandle{index: uint8(i), generation: sl.generation}
	}
	if ls.log != nil {
		ls.log.Warn("light slots full, light ignored", "max", ls.capacity())
	}
	return LightHandle{}
}

func (ls *LightSlots) get(h LightHandle) *lightSlot {
	if h.IsNil() || int(h.index) >= len(ls.slots) {
		return nil
	}
	sl := &ls.slots[h.index]
	if !sl.active || sl.generation != h.generation {
		return nil
	}
	return sl
}

func (ls *LightSlots) Light(h LightHandle) (Light, bool) {
	sl := ls.get(h)
	if sl == nil {
		return Light{}, false
	}
	return sl.light, true
}

func (ls *LightSlots) UpdateLight(h LightHandle, l Light) bool {
	sl := ls.get(h)
	if sl == nil {
		return false
	}
	sl.light = l
	return true
}

// RemoveLight deactivates the slot so AddLight can reuse it.
func (ls *LightSlots) RemoveLight(h LightHandle) bool {
	sl := ls.get(h)
	if sl == nil {
		return false
	}
	sl.active = false
	return true
}

func (ls *LightSlots) Active() int {
	n := 0
	for i := range ls.slots {
		if ls.slots[i].active {
			n++
		}
	}
	return n
}

func (ls *LightSlots) Clear() {
	for i := range ls.slots {
		ls.slots[i].active = false
	}
}

// AppendData appends the active lights in slot order in the form the
// backends consume.
func (ls *LightSlots) AppendData(dst []rhi.LightData) []rhi.LightData {
	for i := range ls.slots {
		if ls.slots[i].active {
			dst = append(dst, ls.slots[i].light.data())
		}
	}
	return dst
}
