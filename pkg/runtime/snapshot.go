package runtime

import (
	"fmt"
	"sort"

	"github.com/sawakita/hibana/pkg/logger"
	"github.com/sawakita/hibana/pkg/save"
	"github.com/sawakita/hibana/pkg/script"
)

// MakeSnapshot captures the session into a versioned save document. The
// resume index points at the command after the one that suspended; when the
// session is parked on a dialogue or choice, a waiting block re-presents it
// on restore.
func (r *Runtime) MakeSnapshot() *save.Snapshot {
	snap := save.NewSnapshot()
	snap.ScriptPath = r.scriptPath
	snap.Index = r.pc
	snap.Background = save.Background{
		Kind:       r.background.Kind,
		Value:      r.background.Value,
		FloatAmp:   r.background.FloatAmp,
		FloatSpeed: r.background.FloatSpeed,
	}
	for k, v := range r.vars {
		snap.Vars[k] = v
	}
	for _, name := range r.spriteOrder {
		sp := r.sprites[name]
		snap.Sprites[name] = save.Sprite{
			Kind:       sp.Kind,
			Value:      sp.Value,
			Size:       [2]float64{sp.W, sp.H},
			Pos:        [2]float64{sp.X, sp.Y},
			Anchor:     sp.Anchor,
			Z:          sp.Z,
			Alpha:      sp.Alpha,
			FloatAmp:   sp.FloatAmp,
			FloatSpeed: sp.FloatSpeed,
			Rect:       [4]float64{sp.X, sp.Y, sp.W, sp.H},
			Character:  sp.Character,
			Expression: sp.Expression,
		}
	}
	for _, item := range r.inventory {
		snap.Inventory[item.ID] = save.InventoryItem{
			Name:  item.Name,
			Desc:  item.Description,
			Icon:  item.Icon,
			Count: item.Count,
		}
	}
	snap.InventoryPage = r.inventoryPage
	snap.InventoryOpen = r.inventoryOpen
	for name, m := range r.meters {
		value := asInt(r.vars[m.Variable])
		if value < m.Min {
			value = m.Min
		}
		if value > m.Max {
			value = m.Max
		}
		snap.Meters[name] = save.Meter{
			Label: m.Label,
			Min:   m.Min,
			Max:   m.Max,
			Value: value,
			Color: m.Color,
		}
	}
	for _, b := range r.hud {
		snap.HudButtons = append(snap.HudButtons, save.HudButton{
			Name: b.Name, Style: b.Style, Text: b.Text, Icon: b.Icon,
			Target: b.Target, Rect: [4]int{b.X, b.Y, b.W, b.H},
		})
	}
	if r.music != nil {
		snap.Music = &save.Music{Path: r.music.Path, Loop: r.music.Loop}
	}
	snap.Waiting = r.waitingBlock()
	for id, def := range r.chars {
		c := save.Character{
			DisplayName: def.DisplayName,
			Color:       def.Color,
			VoiceTag:    def.VoiceTag,
			Sprites:     def.Sprites,
			Anchor:      def.Anchor,
			Z:           def.Z,
			FloatAmp:    def.FloatAmp,
			FloatSpeed:  def.FloatSpeed,
		}
		if def.Pos != nil {
			c.X, c.Y = def.Pos.X, def.Pos.Y
		}
		snap.Characters[id] = c
	}
	for _, h := range r.hotspots {
		hs := save.Hotspot{Name: h.Name, Target: h.Target}
		if len(h.Points) >= 3 {
			for _, p := range h.Points {
				hs.Points = append(hs.Points, [2]int{p.X, p.Y})
			}
		} else {
			// Rectangles save as their corner outline.
			hs.Points = [][2]int{
				{h.X, h.Y}, {h.X + h.W, h.Y}, {h.X + h.W, h.Y + h.H}, {h.X, h.Y + h.H},
			}
		}
		snap.Hotspots = append(snap.Hotspots, hs)
	}
	snap.HotspotDebug = r.hotspotDebug
	snap.Map = save.MapState{Active: r.mapState.Active, Image: r.mapState.Image}
	for _, p := range r.mapState.Points {
		mp := save.MapPoint{
			Label: p.Label, Target: p.Target, Pos: [2]int{p.X, p.Y},
		}
		for _, pt := range p.Points {
			mp.Points = append(mp.Points, [2]int{pt.X, pt.Y})
		}
		snap.Map.Points = append(snap.Map.Points, mp)
	}
	snap.Camera = save.Camera{PanX: r.camera.PanX, PanY: r.camera.PanY, Zoom: r.camera.Zoom}
	return snap
}

// waitingBlock serializes a dialogue or choice suspension. Other suspensions
// (timer, voice, video, input) resolve themselves after a restore and are
// not recorded.
func (r *Runtime) waitingBlock() *save.Waiting {
	switch r.wait {
	case WaitDialogue:
		if r.dialogue == nil {
			return nil
		}
		return &save.Waiting{
			Type:    "say",
			Speaker: r.dialogue.Speaker,
			Text:    r.dialogue.Text,
		}
	case WaitChoice:
		if r.choice == nil {
			return nil
		}
		w := &save.Waiting{
			Type:             "choice",
			Prompt:           r.choice.Prompt,
			Selected:         r.choice.Selected,
			TimeoutMS:        r.choice.TimeoutMS,
			TimeoutDefault:   r.choice.TimeoutDefault,
			TimeoutElapsedMS: r.choice.ElapsedMS,
		}
		for _, opt := range r.choice.Options {
			w.Options = append(w.Options, save.WaitOption{Text: opt.Text, Target: opt.Target})
		}
		return w
	}
	return nil
}

// ApplySnapshot rebuilds the session from a save document. The script is
// recompiled through the cache; everything visible and scripted is replaced.
func (r *Runtime) ApplySnapshot(snap *save.Snapshot) error {
	prog, err := r.cache.Script(snap.ScriptPath)
	if err != nil {
		return fmt.Errorf("saved script unavailable: %w", err)
	}
	if snap.Index < 0 || snap.Index > len(prog.Commands) {
		return fmt.Errorf("saved index %d out of range for %s", snap.Index, snap.ScriptPath)
	}

	r.audio.StopAll()
	r.stopVideo()
	r.clearScene()

	r.prog = prog
	r.scriptPath = snap.ScriptPath
	r.pc = snap.Index
	r.halted = false
	r.fatal = nil
	r.wait = WaitNone
	r.dialogue = nil
	r.choice = nil
	r.input = nil

	r.vars = map[string]any{}
	for k, v := range snap.Vars {
		r.vars[k] = v
	}

	r.chars = map[string]script.CharacterDef{}
	for id, c := range snap.Characters {
		def := script.CharacterDef{
			ID:          id,
			DisplayName: c.DisplayName,
			Color:       c.Color,
			VoiceTag:    c.VoiceTag,
			Sprites:     c.Sprites,
			Anchor:      c.Anchor,
			Z:           c.Z,
			FloatAmp:    c.FloatAmp,
			FloatSpeed:  c.FloatSpeed,
		}
		if c.X != 0 || c.Y != 0 {
			def.Pos = &script.Point{X: c.X, Y: c.Y}
		}
		r.chars[id] = def
	}

	r.background = Background{
		Kind:       snap.Background.Kind,
		Value:      snap.Background.Value,
		FloatAmp:   snap.Background.FloatAmp,
		FloatSpeed: snap.Background.FloatSpeed,
	}
	for name, sp := range snap.Sprites {
		r.putSprite(&Sprite{
			Name:       name,
			Kind:       sp.Kind,
			Value:      sp.Value,
			X:          sp.Pos[0],
			Y:          sp.Pos[1],
			W:          sp.Size[0],
			H:          sp.Size[1],
			Anchor:     sp.Anchor,
			Z:          sp.Z,
			Alpha:      sp.Alpha,
			FloatAmp:   sp.FloatAmp,
			FloatSpeed: sp.FloatSpeed,
			Character:  sp.Character,
			Expression: sp.Expression,
		})
	}

	r.inventory = nil
	ids := make([]string, 0, len(snap.Inventory))
	for id := range snap.Inventory {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		item := snap.Inventory[id]
		r.inventory = append(r.inventory, InventoryItem{
			ID:          id,
			Name:        item.Name,
			Description: item.Desc,
			Icon:        item.Icon,
			Count:       item.Count,
		})
	}
	r.inventoryPage = snap.InventoryPage
	r.inventoryOpen = snap.InventoryOpen
	r.clampInventoryPage()

	for name, m := range snap.Meters {
		r.meters[name] = &MeterState{
			Variable: name,
			Label:    m.Label,
			Min:      m.Min,
			Max:      m.Max,
			Color:    m.Color,
			Visible:  true,
		}
	}
	for _, b := range snap.HudButtons {
		r.hud = append(r.hud, HudButton{
			Name: b.Name, Style: b.Style, Text: b.Text, Icon: b.Icon,
			X: b.Rect[0], Y: b.Rect[1], W: b.Rect[2], H: b.Rect[3], Target: b.Target,
		})
	}
	for _, h := range snap.Hotspots {
		hs := Hotspot{Name: h.Name, Target: h.Target}
		for _, p := range h.Points {
			hs.Points = append(hs.Points, script.Point{X: p[0], Y: p[1]})
		}
		r.hotspots = append(r.hotspots, hs)
	}
	r.hotspotDebug = snap.HotspotDebug
	r.mapState = MapState{Active: snap.Map.Active, Image: snap.Map.Image}
	for _, p := range snap.Map.Points {
		mp := MapPoint{Label: p.Label, X: p.Pos[0], Y: p.Pos[1], Target: p.Target}
		for _, pt := range p.Points {
			mp.Points = append(mp.Points, script.Point{X: pt[0], Y: pt[1]})
		}
		r.mapState.Points = append(r.mapState.Points, mp)
	}
	r.camera = Camera{PanX: snap.Camera.PanX, PanY: snap.Camera.PanY, Zoom: snap.Camera.Zoom}
	if r.camera.Zoom <= 0 {
		r.camera.Zoom = 1
	}

	r.music = nil
	if snap.Music != nil {
		r.playMusic(snap.Music.Path, snap.Music.Loop)
	}

	r.restoreWaiting(snap.Waiting)
	if r.wait == WaitNone && r.mapState.Active {
		// A restored map scene waits for a point pick, not for stepping.
		r.wait = WaitDialogue
		r.dialogue = nil
	}
	r.prefetch(prog)
	logger.Get().Info("session restored", "script", snap.ScriptPath, "index", snap.Index)
	return nil
}

// restoreWaiting re-presents a saved dialogue or choice suspension. A timed
// choice resumes its countdown from the saved elapsed time.
func (r *Runtime) restoreWaiting(w *save.Waiting) {
	if w == nil {
		return
	}
	nowMS := r.now()
	switch w.Type {
	case "say":
		r.dialogue = &Dialogue{
			Speaker:       w.Speaker,
			Text:          w.Text,
			revealStartMS: nowMS,
			revealDone:    true,
		}
		r.wait = WaitDialogue
	case "choice":
		c := &ChoiceState{
			Prompt:         w.Prompt,
			Selected:       w.Selected,
			TimeoutMS:      w.TimeoutMS,
			TimeoutDefault: w.TimeoutDefault,
			ElapsedMS:      w.TimeoutElapsedMS,
		}
		if c.TimeoutMS > 0 {
			c.lastTickMS = nowMS
		}
		for _, opt := range w.Options {
			c.Options = append(c.Options, script.ChoiceOption{Text: opt.Text, Target: opt.Target})
		}
		if len(c.Options) == 0 {
			return
		}
		r.choice = c
		r.wait = WaitChoice
	}
}

// SaveSlot writes the session to a named slot under the configured save
// directory.
func (r *Runtime) SaveSlot(slot string) error {
	if err := save.WriteSlot(r.cfg.SavePath, slot, r.MakeSnapshot()); err != nil {
		return err
	}
	logger.Get().Info("session saved", "slot", slot)
	return nil
}

// LoadSlot restores the session from a named slot.
func (r *Runtime) LoadSlot(slot string) error {
	snap, err := save.ReadSlot(r.cfg.SavePath, slot)
	if err != nil {
		return err
	}
	return r.ApplySnapshot(snap)
}

// QuickSave writes to the quick slot.
func (r *Runtime) QuickSave() error { return r.SaveSlot(save.QuickSlot) }

// QuickLoad restores from the quick slot.
func (r *Runtime) QuickLoad() error { return r.LoadSlot(save.QuickSlot) }
