package runtime

import (
	"image"
	"sort"

	"github.com/sawakita/hibana/pkg/effects"
)

// The accessors below are the read surface the renderer and the host loop
// consume each frame. They return copies or immutable views; mutating the
// session goes through commands and input callbacks only.

// BackgroundState returns the active backdrop.
func (r *Runtime) BackgroundState() Background { return r.background }

// CameraState returns the active camera.
func (r *Runtime) CameraState() Camera { return r.camera }

// SpritesByZ returns the live sprites sorted by Z, ties in insertion order.
func (r *Runtime) SpritesByZ() []Sprite {
	out := make([]Sprite, 0, len(r.spriteOrder))
	for _, name := range r.spriteOrder {
		out = append(out, *r.sprites[name])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

// DialogueState returns the pending dialogue line, or nil.
func (r *Runtime) DialogueState() *Dialogue {
	if r.wait != WaitDialogue || r.dialogue == nil {
		return nil
	}
	d := *r.dialogue
	return &d
}

// ChoiceView returns the pending choice, or nil.
func (r *Runtime) ChoiceView() *ChoiceState {
	if r.wait != WaitChoice || r.choice == nil {
		return nil
	}
	c := *r.choice
	c.Options = append(c.Options[:0:0], r.choice.Options...)
	return &c
}

// InputView returns the pending text entry with its current buffer, or nil.
func (r *Runtime) InputView() (prompt, buffer string, active bool) {
	if r.wait != WaitInput || r.input == nil {
		return "", "", false
	}
	return r.input.Prompt, string(r.input.Buffer), true
}

// NoticeText returns the active toast text, empty when none.
func (r *Runtime) NoticeText() string {
	if r.notice == nil {
		return ""
	}
	return r.notice.Text
}

// LoadingView returns the loading overlay state.
func (r *Runtime) LoadingView() LoadingState { return r.loading }

// HudButtons returns the registered HUD buttons in registration order.
func (r *Runtime) HudButtons() []HudButton {
	return append([]HudButton(nil), r.hud...)
}

// Meters returns the visible meters with their current values, clamped to
// the meter range.
func (r *Runtime) Meters() []MeterValue {
	names := make([]string, 0, len(r.meters))
	for name := range r.meters {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]MeterValue, 0, len(names))
	for _, name := range names {
		m := r.meters[name]
		if !m.Visible {
			continue
		}
		v := asInt(r.vars[m.Variable])
		if v < m.Min {
			v = m.Min
		}
		if v > m.Max {
			v = m.Max
		}
		out = append(out, MeterValue{MeterState: *m, Value: v})
	}
	return out
}

// MeterValue pairs a meter with its clamped current value.
type MeterValue struct {
	MeterState
	Value int
}

// InventoryView returns the open flag, the current page of items, and the
// page index.
func (r *Runtime) InventoryView() (open bool, items []InventoryItem, page int) {
	perPage := r.cfg.UI.InventoryItemsPerPage
	if perPage <= 0 {
		perPage = 8
	}
	start := r.inventoryPage * perPage
	if start > len(r.inventory) {
		start = len(r.inventory)
	}
	end := start + perPage
	if end > len(r.inventory) {
		end = len(r.inventory)
	}
	return r.inventoryOpen, append([]InventoryItem(nil), r.inventory[start:end]...), r.inventoryPage
}

// MapView returns the overworld map overlay.
func (r *Runtime) MapView() MapState {
	m := r.mapState
	m.Points = append([]MapPoint(nil), r.mapState.Points...)
	return m
}

// PhoneView returns the phone overlay.
func (r *Runtime) PhoneView() PhoneState {
	p := r.phone
	p.Messages = append([]PhoneMessage(nil), r.phone.Messages...)
	return p
}

// Hotspots returns the live hotspots; the renderer draws them only when
// debug is on.
func (r *Runtime) Hotspots() ([]Hotspot, bool) {
	return append([]Hotspot(nil), r.hotspots...), r.hotspotDebug
}

// TransitionFx is the renderer-facing snapshot of one running transition,
// evaluated at the current frame time. Target is the sprite name, "" for the
// background.
type TransitionFx struct {
	Target string
	Style  string
	Exit   bool
	Alpha  float64
	cell   func(cx, cy int) bool
}

// CellRevealed reports whether the dissolve cell at (cx, cy) shows the new
// surface. Non-dissolve transitions reveal everything.
func (fx TransitionFx) CellRevealed(cx, cy int) bool {
	if fx.cell == nil {
		return true
	}
	return fx.cell(cx, cy)
}

// TransitionsView snapshots the running transitions, sorted by target name.
func (r *Runtime) TransitionsView() []TransitionFx {
	nowMS := r.now()
	names := make([]string, 0, len(r.transitions))
	for name := range r.transitions {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]TransitionFx, 0, len(names))
	for _, name := range names {
		tr := r.transitions[name]
		fx := TransitionFx{Target: name, Style: tr.Style, Exit: tr.Exit, Alpha: tr.Alpha(nowMS)}
		if tr.Style == effects.TransDissolve {
			tr := tr
			fx.cell = func(cx, cy int) bool { return tr.CellRevealed(cx, cy, nowMS) }
		}
		out = append(out, fx)
	}
	return out
}

// ShakeOffset sums the displacement of the running shake transitions.
func (r *Runtime) ShakeOffset() (dx, dy float64) {
	nowMS := r.now()
	for _, tr := range r.transitions {
		x, y := tr.ShakeOffset(nowMS)
		dx += x
		dy += y
	}
	return dx, dy
}

// DialogueVisibleText returns the speaker and the revealed prefix of the
// pending dialogue line at the current frame time.
func (r *Runtime) DialogueVisibleText() (speaker, visible string, active bool) {
	if r.wait != WaitDialogue || r.dialogue == nil {
		return "", "", false
	}
	n := r.dialogue.VisibleRunes(r.now(), r.cfg.UI.CharsPerSecond)
	return r.dialogue.Speaker, string([]rune(r.dialogue.Text)[:n]), true
}

// VideoFrame returns the current video frame, nil when no video is showing.
func (r *Runtime) VideoFrame() image.Image { return r.videoFrame }

// VideoActive reports whether a playback is in flight.
func (r *Runtime) VideoActive() bool { return r.playback != nil }

// Var reads a script variable. Test and debug hook.
func (r *Runtime) Var(name string) any { return r.vars[name] }

// SetVar writes a script variable from the host side.
func (r *Runtime) SetVar(name string, value any) { r.vars[name] = value }

// Position returns the current script path and command index.
func (r *Runtime) Position() (string, int) { return r.scriptPath, r.pc }
