package viewport

// Stage names a point in the frame where hooks run. Stages always run in
// declaration order; hooks observe them and cannot skip or reorder them.
type Stage uint8

const (
	StagePreRender Stage = iota
	StagePostClear
	StagePreScene
	StagePostOpaque
	StagePostScene
	StagePostOverlay
	StagePostRender
	stageCount
)

var stageNames = [stageCount]string{
	"PRE_RENDER", "POST_CLEAR", "PRE_SCENE", "POST_OPAQUE",
	"POST_SCENE", "POST_OVERLAY", "POST_RENDER",
}

func (s Stage) String() string {
	if s >= stageCount {
		return "UNKNOWN"
	}
	return stageNames[s]
}

type Hook func(v *Viewport, stage Stage)

type HookID uint64

type hookEntry struct {
	id HookID
	fn Hook
}

// AddHook registers fn at stage. Hooks at one stage run in registration
// order. It returns 0 for an unknown stage.
func (v *Viewport) AddHook(stage Stage, fn Hook) HookID {
	if !v.alive() || stage >= stageCount || fn == nil {
		return 0
	}
	v.nextHook++
	v.hooks[stage] = append(v.hooks[stage], hookEntry{id: v.nextHook, fn: fn})
	return v.nextHook
}

func (v *Viewport) RemoveHook(id HookID) bool {
	if !v.alive() || id == 0 {
		return false
	}
	for s := range v.hooks {
		for i, h := range v.hooks[s] {
			if h.id == id {
				v.hooks[s] = append(v.hooks[s][:i], v.hooks[s][i+1:]...)
				return true
			}
		}
	}
	return false
}

// SetFrameCallback sets plain begin/end notifications around each
// Render. Either may be nil.
func (v *Viewport) SetFrameCallback(pre, post func(*Viewport)) {
	if !v.alive() {
		return
	}
	v.preFrame, v.postFrame = pre, post
}

func (v *Viewport) runHooks(s Stage) {
	for _, h := range v.hooks[s] {
		h.fn(v, s)
	}
}

// Phase selects when a subsystem runs relative to the frame.
type Phase uint8

const (
	// PhaseSimulate runs before PRE_RENDER.
	PhaseSimulate Phase = iota
	// PhasePostRender runs after the POST_RENDER hooks.
	PhasePostRender
	phaseCount
)

// Subsystem is a simulation or effect driven by the viewport, such as a
// particle emitter. Registered subsystems are destroyed with the
// viewport.
type Subsystem interface {
	Enabled() bool
	Update(v *Viewport, dt float64)
	Destroy()
}

func (v *Viewport) Register(phase Phase, s Subsystem) bool {
	if !v.alive() || phase >= phaseCount || s == nil {
		return false
	}
	v.subsystems[phase] = append(v.subsystems[phase], s)
	return true
}

// Unregister removes s from every phase without destroying it.
func (v *Viewport) Unregister(s Subsystem) bool {
	if !v.alive() {
		return false
	}
	found := false
	for p := range v.subsystems {
		list := v.subsystems[p][:0]
		for _, x := range v.subsystems[p] {
			if x == s {
				found = true
				continue
			}
			list = append(list, x)
		}
		v.subsystems[p] = list
	}
	return found
}

func (v *Viewport) runSubsystems(p Phase, dt float64) {
	for _, s := range v.subsystems[p] {
		if s.Enabled() {
			s.Update(v, dt)
		}
	}
}
