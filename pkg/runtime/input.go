package runtime

import (
	"unicode"

	"github.com/sawakita/hibana/pkg/logger"
)

// OnAdvance is the "next" input (click in the text area, enter, space). It
// completes an in-flight text reveal first; a second advance dismisses the
// line and resumes the script.
func (r *Runtime) OnAdvance() {
	if r.wait != WaitDialogue {
		return
	}
	if r.dialogue != nil && !r.dialogue.revealDone {
		r.dialogue.revealDone = true
		return
	}
	r.dialogue = nil
	r.wait = WaitNone
}

// OnChoiceSelect resolves a pending choice to option idx. Out-of-range
// selections are ignored.
func (r *Runtime) OnChoiceSelect(idx int) {
	if r.wait != WaitChoice {
		return
	}
	r.selectChoice(idx)
}

// OnChoiceHover moves the highlighted option without resolving.
func (r *Runtime) OnChoiceHover(idx int) {
	if r.wait != WaitChoice || r.choice == nil {
		return
	}
	if idx >= 0 && idx < len(r.choice.Options) {
		r.choice.Selected = idx
	}
}

// OnInputChar appends a printable rune to the pending input buffer.
func (r *Runtime) OnInputChar(ch rune) {
	if r.wait != WaitInput || r.input == nil {
		return
	}
	if !unicode.IsPrint(ch) {
		return
	}
	r.input.Buffer = append(r.input.Buffer, ch)
}

// OnInputBackspace deletes the last rune of the pending input buffer.
func (r *Runtime) OnInputBackspace() {
	if r.wait != WaitInput || r.input == nil {
		return
	}
	if n := len(r.input.Buffer); n > 0 {
		r.input.Buffer = r.input.Buffer[:n-1]
	}
}

// OnInputConfirm commits the input buffer to its variable and resumes.
func (r *Runtime) OnInputConfirm() {
	if r.wait != WaitInput || r.input == nil {
		return
	}
	r.vars[r.input.Variable] = string(r.input.Buffer)
	r.input = nil
	r.wait = WaitNone
}

// OnPointerClick routes a screen-space click: HUD buttons and map points sit
// above the world, hotspots are tested in world coordinates under the
// camera. Returns true when the click hit something.
func (r *Runtime) OnPointerClick(sx, sy float64) bool {
	if r.fatal != nil || r.prog == nil {
		return false
	}

	// HUD buttons are screen-fixed and always clickable.
	for _, b := range r.hud {
		if sx >= float64(b.X) && sx < float64(b.X+b.W) &&
			sy >= float64(b.Y) && sy < float64(b.Y+b.H) {
			logger.Get().Debug("hud button clicked", "name", b.Name)
			r.resumeAt(b.Target)
			return true
		}
	}

	// The active map overlay captures all other clicks.
	if r.mapState.Active {
		const hitRadius = 24.0
		for _, p := range r.mapState.Points {
			hit := false
			if len(p.Points) >= 3 {
				hit = pointInPolygon(sx, sy, p.Points)
			} else {
				dx, dy := sx-float64(p.X), sy-float64(p.Y)
				hit = dx*dx+dy*dy <= hitRadius*hitRadius
			}
			if hit {
				logger.Get().Debug("map point clicked", "label", p.Label)
				r.mapState = MapState{}
				r.resumeAt(p.Target)
				return true
			}
		}
		return false
	}

	// Hotspots live in world space; invert the camera before testing.
	wx, wy := r.camera.screenToWorld(sx, sy, r.cfg.UI.ScreenWidth, r.cfg.UI.ScreenHeight)
	for i := len(r.hotspots) - 1; i >= 0; i-- {
		h := r.hotspots[i]
		if h.contains(wx, wy) {
			logger.Get().Debug("hotspot clicked", "name", h.Name)
			r.resumeAt(h.Target)
			return true
		}
	}
	return false
}

// resumeAt jumps to a target and clears any passive suspension so the
// stepper runs again. Interactive jumps cancel a parked dialogue but never
// steal a pending choice or input.
func (r *Runtime) resumeAt(target string) {
	switch r.wait {
	case WaitChoice, WaitInput:
		return
	}
	r.dialogue = nil
	r.wait = WaitNone
	r.halted = false
	r.jump(target)
}

// ToggleInventory opens or closes the inventory overlay.
func (r *Runtime) ToggleInventory() {
	if !r.featureEnabled("items") {
		return
	}
	r.inventoryOpen = !r.inventoryOpen
}

// InventoryNextPage advances the inventory page, clamped to the last page.
func (r *Runtime) InventoryNextPage() {
	r.inventoryPage++
	r.clampInventoryPage()
}

// InventoryPrevPage steps the inventory page back, clamped to zero.
func (r *Runtime) InventoryPrevPage() {
	r.inventoryPage--
	r.clampInventoryPage()
}
