package runtime

import (
	"strings"

	"github.com/sawakita/hibana/pkg/assets"
	"github.com/sawakita/hibana/pkg/effects"
	"github.com/sawakita/hibana/pkg/logger"
	"github.com/sawakita/hibana/pkg/manifest"
	"github.com/sawakita/hibana/pkg/script"
)

// featureEnabled checks a feature flag; absent flags default to enabled.
func (r *Runtime) featureEnabled(name string) bool {
	v, ok := r.cfg.Features[name]
	return !ok || v
}

// exec dispatches one command. This switch is the single place command
// semantics live.
func (r *Runtime) exec(cmd script.Command, nowMS int64) {
	switch c := cmd.(type) {
	case script.Label:
		// Position marker only.

	case script.Say:
		r.autoShowSpeaker(c.Speaker, nowMS)
		r.dialogue = &Dialogue{
			Speaker:       r.speakerName(c.Speaker),
			Text:          interpolate(c.Text, r.vars),
			revealStartMS: nowMS,
		}
		r.wait = WaitDialogue

	case script.Choice:
		if len(c.Options) == 0 {
			r.fail("choice with no options")
			return
		}
		state := &ChoiceState{
			Prompt:  interpolate(c.Prompt, r.vars),
			Options: make([]script.ChoiceOption, len(c.Options)),
		}
		for i, opt := range c.Options {
			state.Options[i] = script.ChoiceOption{
				Text:   interpolate(opt.Text, r.vars),
				Target: opt.Target,
			}
		}
		if c.TimeoutSeconds > 0 {
			state.TimeoutMS = int64(c.TimeoutSeconds * 1000)
			state.TimeoutDefault = c.TimeoutDefault
			if state.TimeoutDefault < 1 || state.TimeoutDefault > len(c.Options) {
				state.TimeoutDefault = 1
			}
			state.lastTickMS = nowMS
		}
		r.choice = state
		r.wait = WaitChoice

	case script.Jump:
		r.jump(c.Target)

	case script.IfJump:
		left := r.vars[c.Name]
		right := resolveRef(c.Value, r.vars)
		if compare(left, c.Op, right) {
			r.jump(c.Target)
		}

	case script.SetVar:
		r.vars[c.Name] = resolveRef(c.Value, r.vars)

	case script.AddVar:
		r.vars[c.Name] = asInt(r.vars[c.Name]) + c.Amount

	case script.Scene:
		r.background = Background{
			Kind:       c.Kind,
			Value:      c.Value,
			FloatAmp:   c.FloatAmp,
			FloatSpeed: c.FloatSpeed,
		}
		if c.Kind == "image" {
			r.cache.Preload(assets.KindImage, c.Value)
		}
		r.startTransition("", c.Transition, false, nowMS)

	case script.Show:
		r.showSprite(c, nowMS)

	case script.ShowChar:
		r.showCharacter(c, nowMS)

	case script.Hide:
		r.hideSprite(c, nowMS)

	case script.Blend:
		r.transitions["_blend"] = effects.NewTransition(c.Style, c.Seconds, false, nowMS, r.rng)

	case script.Animate:
		r.animate(c, nowMS)

	case script.CameraSet:
		zoom := c.Zoom
		if zoom <= 0 {
			zoom = 1
		}
		r.camera = Camera{PanX: c.PanX, PanY: c.PanY, Zoom: zoom}

	case script.Wait:
		if c.Seconds > 0 {
			r.wait = WaitTimer
			r.waitDeadline = nowMS + int64(c.Seconds*1000)
		}

	case script.WaitVoice:
		if r.audio.IsVoicePlaying() {
			r.wait = WaitVoice
		}

	case script.WaitVideo:
		if r.playback != nil {
			r.wait = WaitVideo
		}

	case script.Music:
		r.playMusic(c.Path, c.Loop)

	case script.Sound:
		if data, err := r.cache.Sound(c.Path); err != nil {
			logger.Get().Warn("sound unavailable", "path", c.Path, "error", err)
		} else if err := r.audio.PlaySound(c.Path, data); err != nil {
			logger.Get().Warn("sound playback failed", "path", c.Path, "error", err)
		}

	case script.Echo:
		switch c.Action {
		case "start":
			if data, err := r.cache.Sound(c.Path); err != nil {
				logger.Get().Warn("echo unavailable", "path", c.Path, "error", err)
			} else if err := r.audio.StartEcho(c.Path, data); err != nil {
				logger.Get().Warn("echo playback failed", "path", c.Path, "error", err)
			}
		case "stop":
			r.audio.StopEcho()
		}

	case script.Voice:
		path := manifest.ResolveVoicePath(r.chars, c.Character, c.Path)
		if data, err := r.cache.Sound(path); err != nil {
			logger.Get().Warn("voice unavailable", "path", path, "error", err)
		} else if err := r.audio.PlayVoice(path, data); err != nil {
			logger.Get().Warn("voice playback failed", "path", path, "error", err)
		}

	case script.Mute:
		r.audio.Mute(c.Target)

	case script.Video:
		r.runVideo(c)

	case script.Preload:
		switch c.Kind {
		case "bg", "sprite":
			r.cache.Preload(assets.KindImage, c.Path)
		case "audio":
			r.cache.Preload(assets.KindSound, c.Path)
		case "script":
			r.cache.Preload(assets.KindScript, c.Path)
		}

	case script.CachePin:
		r.cache.Pin(cacheKind(c.Kind), c.Path)

	case script.CacheUnpin:
		r.cache.Unpin(cacheKind(c.Kind), c.Path)

	case script.CacheClear:
		r.cacheClear(c)

	case script.GarbageCollect:
		r.collectGarbage()

	case script.HotspotAdd:
		r.removeHotspot(c.Name)
		r.hotspots = append(r.hotspots, Hotspot{
			Name: c.Name, X: c.X, Y: c.Y, W: c.W, H: c.H, Target: c.Target,
		})

	case script.HotspotPoly:
		if len(c.Points) < 3 {
			logger.Get().Warn("polygon hotspot needs at least 3 points", "name", c.Name)
			return
		}
		r.removeHotspot(c.Name)
		r.hotspots = append(r.hotspots, Hotspot{
			Name: c.Name, Points: c.Points, Target: c.Target,
		})

	case script.HotspotRemove:
		if c.Name == "" {
			r.hotspots = nil
			return
		}
		r.removeHotspot(c.Name)

	case script.HotspotDebug:
		r.hotspotDebug = c.Enabled

	case script.HudAdd:
		r.removeHudButton(c.Name)
		r.hud = append(r.hud, HudButton{
			Name: c.Name, Style: c.Style, Text: c.Text, Icon: c.Icon,
			X: c.X, Y: c.Y, W: c.W, H: c.H, Target: c.Target,
		})
		if c.Icon != "" {
			r.cache.Preload(assets.KindImage, c.Icon)
		}

	case script.HudRemove:
		if c.Name == "" {
			r.hud = nil
			return
		}
		r.removeHudButton(c.Name)

	case script.Meter:
		r.runMeter(c)

	case script.Item:
		if !r.featureEnabled("items") {
			return
		}
		r.runItem(c)

	case script.Map:
		if !r.featureEnabled("map") {
			return
		}
		r.runMap(c)

	case script.Phone:
		if !r.featureEnabled("phone") {
			return
		}
		r.runPhone(c)

	case script.Input:
		r.input = &InputState{
			Variable: c.Variable,
			Prompt:   interpolate(c.Prompt, r.vars),
			Buffer:   []rune(c.Default),
		}
		r.wait = WaitInput

	case script.Notify:
		seconds := c.Seconds
		if seconds <= 0 {
			seconds = r.cfg.UI.NotifyDefaultSeconds
		}
		r.notice = &Notice{
			Text:    interpolate(c.Text, r.vars),
			UntilMS: nowMS + int64(seconds*1000),
		}

	case script.Loading:
		switch c.Action {
		case "start":
			r.loading = LoadingState{Active: true, Text: c.Text, ShownMS: nowMS}
		case "end":
			r.endLoading(nowMS)
		}

	case script.Call:
		r.callScript(c.Path, c.Label, nowMS)

	case script.Save:
		slot := c.Slot
		if slot == "" {
			slot = "quick"
		}
		if err := r.SaveSlot(slot); err != nil {
			logger.Get().Error("save failed", "slot", slot, "error", err)
		}

	case script.Load:
		slot := c.Slot
		if slot == "" {
			slot = "quick"
		}
		if err := r.LoadSlot(slot); err != nil {
			// A broken or missing save is a no-op; the script continues.
			logger.Get().Warn("load skipped", "slot", slot, "error", err)
		}

	case script.CharacterDef:
		if c.ID == "" {
			logger.Get().Warn("character definition without id ignored")
			return
		}
		r.chars[c.ID] = c

	default:
		r.fail("unknown command type")
	}
}

// autoShowSpeaker puts the speaking character on stage when it is defined
// with a default sprite and not already visible, so dialogue never plays to
// an empty stage.
func (r *Runtime) autoShowSpeaker(speaker string, nowMS int64) {
	def, ok := r.chars[speaker]
	if !ok || def.Sprites["default"] == "" {
		return
	}
	if _, visible := r.sprites[speaker]; visible {
		return
	}
	r.showCharacter(script.ShowChar{ID: speaker}, nowMS)
}

// speakerName maps a speaker id to its display name when a character with
// that id exists.
func (r *Runtime) speakerName(speaker string) string {
	if def, ok := r.chars[speaker]; ok && def.DisplayName != "" {
		return def.DisplayName
	}
	return interpolate(speaker, r.vars)
}

// / jump moves the program counter to a label. A "::" prefix resolves the
// label in the entry script, switching back to it when needed.
func (r *Runtime) jump(target string) {
	if strings.HasPrefix(target, "::") {
		name := target[2:]
		if r.scriptPath != r.entryPath {
			prog, err := r.cache.Script(r.entryPath)
			if err != nil {
				r.fail("entry script unavailable: " + err.Error())
				return
			}
			r.prog = prog
			r.scriptPath = r.entryPath
		}
		idx, ok := r.prog.Labels[name]
		if !ok {
			r.fail("global jump target not found: " + name)
			return
		}
		r.pc = idx
		return
	}
	idx, ok := r.prog.Labels[target]
	if !ok {
		r.fail("jump target not found: " + target)
		return
	}
	r.pc = idx
}

func (r *Runtime) showSprite(c script.Show, nowMS int64) {
	if c.Name == "" {
		logger.Get().Warn("show without sprite name ignored")
		return
	}
	sp := &Sprite{
		Name:       c.Name,
		Kind:       c.Kind,
		Value:      c.Value,
		Anchor:     c.Anchor,
		Z:          c.Z,
		Alpha:      1,
		FloatAmp:   c.FloatAmp,
		FloatSpeed: c.FloatSpeed,
	}
	if c.Pos != nil {
		sp.X, sp.Y = float64(c.Pos.X), float64(c.Pos.Y)
	}
	if c.Size != nil {
		sp.W, sp.H = float64(c.Size.W), float64(c.Size.H)
	}
	r.putSprite(sp)
	if c.Kind == "image" {
		r.cache.Preload(assets.KindImage, c.Value)
	}
	r.startTransition(c.Name, c.Transition, false, nowMS)
}

func (r *Runtime) showCharacter(c script.ShowChar, nowMS int64) {
	def := r.chars[c.ID]
	expression := c.Expression
	var path string
	if len(def.Sprites) > 0 {
		if expression == "" {
			expression = "default"
		}
		var ok bool
		if path, ok = def.Sprites[expression]; !ok {
			path = def.Sprites["default"]
			expression = "default"
		}
	} else if manifest.IsRawSpritePath(expression) {
		// No sprite table; the expression names the file itself.
		path = expression
	}
	if path == "" {
		logger.Get().Warn("character has no sprite for expression", "id", c.ID, "expression", c.Expression)
		return
	}

	sp := &Sprite{
		Name:       c.ID,
		Kind:       "image",
		Value:      path,
		Anchor:     def.Anchor,
		Z:          def.Z,
		Alpha:      1,
		FloatAmp:   def.FloatAmp,
		FloatSpeed: def.FloatSpeed,
		Character:  c.ID,
		Expression: expression,
	}
	if def.Pos != nil {
		sp.X, sp.Y = float64(def.Pos.X), float64(def.Pos.Y)
	}
	// Per-command fields override the character defaults.
	if c.Pos != nil {
		sp.X, sp.Y = float64(c.Pos.X), float64(c.Pos.Y)
	}
	if c.Anchor != "" {
		sp.Anchor = c.Anchor
	}
	if c.Z != 0 {
		sp.Z = c.Z
	}
	if c.FloatAmp != nil {
		sp.FloatAmp = *c.FloatAmp
	}
	if c.FloatSpeed != nil {
		sp.FloatSpeed = *c.FloatSpeed
	}

	// Swapping expressions on a visible character keeps its position.
	if prev, ok := r.sprites[c.ID]; ok && c.Pos == nil {
		sp.X, sp.Y = prev.X, prev.Y
	}

	r.putSprite(sp)
	r.cache.Preload(assets.KindImage, path)
	r.startTransition(c.ID, c.Transition, false, nowMS)
}

func (r *Runtime) putSprite(sp *Sprite) {
	if _, exists := r.sprites[sp.Name]; !exists {
		r.spriteOrder = append(r.spriteOrder, sp.Name)
	}
	r.sprites[sp.Name] = sp
}

func (r *Runtime) hideSprite(c script.Hide, nowMS int64) {
	if _, ok := r.sprites[c.Name]; !ok {
		return
	}
	if c.Transition.Style != "" && c.Transition.Seconds > 0 {
		r.startTransition(c.Name, c.Transition, true, nowMS)
		return
	}
	r.removeSprite(c.Name)
}

// startTransition installs a transition keyed by sprite name ("" is the
// background). Zero-second specs without a style mean no transition at all.
func (r *Runtime) startTransition(name string, spec script.TransitionSpec, exit bool, nowMS int64) {
	if spec.Style == "" && spec.Seconds <= 0 {
		if exit {
			r.removeSprite(name)
		}
		return
	}
	r.transitions[name] = effects.NewTransition(spec.Style, spec.Seconds, exit, nowMS, r.rng)
}

func (r *Runtime) animate(c script.Animate, nowMS int64) {
	if c.Action == "stop" {
		r.tracks.Stop(c.Name)
		return
	}
	sp, ok := r.sprites[c.Name]
	if !ok {
		logger.Get().Warn("animate for unknown sprite skipped", "sprite", c.Name)
		return
	}
	var fromA, fromB float64
	switch c.Action {
	case effects.PropMove:
		fromA, fromB = sp.X, sp.Y
	case effects.PropSize:
		fromA, fromB = sp.W, sp.H
	case effects.PropAlpha:
		fromA = sp.Alpha
	default:
		logger.Get().Warn("animate with unknown action skipped", "action", c.Action)
		return
	}
	r.tracks.Start(effects.NewTrack(c.Name, c.Action, fromA, fromB, c.V1, c.V2, c.Seconds, c.Ease, nowMS))
}

func (r *Runtime) playMusic(path string, loop bool) {
	if path == "" {
		r.audio.StopMusic()
		r.music = nil
		return
	}
	data, err := r.cache.Sound(path)
	if err != nil {
		logger.Get().Warn("music unavailable", "path", path, "error", err)
		return
	}
	if err := r.audio.PlayMusic(path, data, loop); err != nil {
		logger.Get().Warn("music playback failed", "path", path, "error", err)
		return
	}
	r.music = &musicState{Path: path, Loop: loop}
}

func (r *Runtime) runVideo(c script.Video) {
	switch c.Action {
	case "play":
		if r.playback != nil {
			r.playback.Close()
		}
		pb, err := r.video.Open(c.Path, c.Loop, true, r.cfg.Video.Framedrop)
		if err != nil {
			logger.Get().Warn("video open failed", "path", c.Path, "error", err)
			r.playback = nil
			return
		}
		r.framedrop.SetMode(r.cfg.Video.Framedrop)
		r.playback = pb
	case "stop":
		r.stopVideo()
	}
}

func cacheKind(kind string) string {
	switch kind {
	case "bg", "sprite", "image":
		return assets.KindImage
	case "audio", "sound":
		return assets.KindSound
	case "script":
		return assets.KindScript
	default:
		return kind
	}
}

func (r *Runtime) cacheClear(c script.CacheClear) {
	switch c.Kind {
	case "images":
		r.cache.ClearImages()
	case "sounds":
		r.cache.ClearSounds()
	case "scripts":
		r.cache.ClearScripts()
	case "script":
		r.cache.ClearScript(c.Path)
		if c.Path == r.scriptPath {
			// Dropping the running script also drops what it put on stage.
			r.resetTransient()
		}
	case "runtime", "scene":
		r.cache.ClearScripts()
		r.resetTransient()
	default:
		logger.Get().Warn("unknown cache clear kind", "kind", c.Kind)
	}
}

// collectGarbage prunes both caches against the current program's manifest.
func (r *Runtime) collectGarbage() {
	m := manifest.Build(r.prog.Commands)
	r.cache.PruneImages(m.ImageKeep())
	r.cache.PruneSounds(m.AudioKeep(), r.audio.IsSoundBusy)
}

func (r *Runtime) removeHotspot(name string) {
	for i, h := range r.hotspots {
		if h.Name == name {
			r.hotspots = append(r.hotspots[:i], r.hotspots[i+1:]...)
			return
		}
	}
}

func (r *Runtime) removeHudButton(name string) {
	for i, b := range r.hud {
		if b.Name == name {
			r.hud = append(r.hud[:i], r.hud[i+1:]...)
			return
		}
	}
}

func (r *Runtime) runMeter(c script.Meter) {
	switch c.Action {
	case "show":
		if c.Variable == "" {
			logger.Get().Warn("meter show without variable ignored")
			return
		}
		max := c.Max
		if max <= c.Min {
			max = c.Min + 100
		}
		r.meters[c.Variable] = &MeterState{
			Variable: c.Variable,
			Label:    c.Label,
			Min:      c.Min,
			Max:      max,
			Color:    c.Color,
			Visible:  true,
		}
	case "update":
		// Meters read their variable live; an update re-shows a hidden one.
		if m, ok := r.meters[c.Variable]; ok {
			m.Visible = true
		} else {
			logger.Get().Warn("meter update for unknown meter", "variable", c.Variable)
		}
	case "hide":
		if m, ok := r.meters[c.Variable]; ok {
			m.Visible = false
		}
	case "remove":
		delete(r.meters, c.Variable)
	case "clear":
		r.meters = map[string]*MeterState{}
	default:
		logger.Get().Warn("unknown meter action", "action", c.Action)
	}
}

func (r *Runtime) runItem(c script.Item) {
	switch c.Action {
	case "add":
		amount := c.Amount
		if amount <= 0 {
			amount = 1
		}
		for i := range r.inventory {
			if r.inventory[i].ID == c.ID {
				r.inventory[i].Count += amount
				return
			}
		}
		r.inventory = append(r.inventory, InventoryItem{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Icon:        c.Icon,
			Count:       amount,
		})
		if c.Icon != "" {
			r.cache.Preload(assets.KindImage, c.Icon)
		}
	case "remove":
		amount := c.Amount
		if amount <= 0 {
			amount = 1
		}
		for i := range r.inventory {
			if r.inventory[i].ID != c.ID {
				continue
			}
			r.inventory[i].Count -= amount
			if r.inventory[i].Count <= 0 {
				r.inventory = append(r.inventory[:i], r.inventory[i+1:]...)
			}
			break
		}
		r.clampInventoryPage()
	case "clear":
		r.inventory = nil
		r.inventoryPage = 0
	}
}

// clampInventoryPage keeps the page index valid after removals.
func (r *Runtime) clampInventoryPage() {
	perPage := r.cfg.UI.InventoryItemsPerPage
	if perPage <= 0 {
		perPage = 8
	}
	maxPage := 0
	if len(r.inventory) > 0 {
		maxPage = (len(r.inventory) - 1) / perPage
	}
	if r.inventoryPage > maxPage {
		r.inventoryPage = maxPage
	}
	if r.inventoryPage < 0 {
		r.inventoryPage = 0
	}
}

// runMap handles the map overlay. A "show" consumes the poi commands that
// immediately follow it, so one show declares the whole map.
func (r *Runtime) runMap(c script.Map) {
	switch c.Action {
	case "show":
		state := MapState{Active: true, Image: c.Value}
		for r.pc < len(r.prog.Commands) {
			poi, ok := r.prog.Commands[r.pc].(script.Map)
			if !ok || poi.Action != "poi" {
				break
			}
			state.Points = append(state.Points, MapPoint{
				Label:  interpolate(poi.Label, r.vars),
				X:      poi.Pos.X,
				Y:      poi.Pos.Y,
				Points: poi.Points,
				Target: poi.Target,
			})
			r.pc++
		}
		r.mapState = state
		if c.Value != "" {
			r.cache.Preload(assets.KindImage, c.Value)
		}
	case "poi":
		// A stray poi outside a show block attaches to the active map.
		if r.mapState.Active {
			r.mapState.Points = append(r.mapState.Points, MapPoint{
				Label:  interpolate(c.Label, r.vars),
				X:      c.Pos.X,
				Y:      c.Pos.Y,
				Points: c.Points,
				Target: c.Target,
			})
		}
	case "hide":
		r.mapState = MapState{}
	}
}

func (r *Runtime) runPhone(c script.Phone) {
	switch c.Action {
	case "open":
		r.phone = PhoneState{Open: true, Contact: c.Contact}
	case "msg":
		if !r.phone.Open {
			return
		}
		side := c.Side
		if side != "left" && side != "right" {
			side = "left"
		}
		r.phone.Messages = append(r.phone.Messages, PhoneMessage{
			Side: side,
			Text: interpolate(c.Text, r.vars),
		})
	case "close":
		r.phone = PhoneState{}
	}
}

// endLoading asks the loading overlay to go away. When the configured
// minimum display time has not yet passed, the overlay stays visible and the
// stepper parks until the hold expires, so fast loads never flash it.
func (r *Runtime) endLoading(nowMS int64) {
	if !r.loading.Active {
		return
	}
	hideAt := r.loading.ShownMS + r.cfg.UI.LoadingMinDisplayMS
	if nowMS >= hideAt {
		r.loading = LoadingState{}
		return
	}
	r.loading.HideAtMS = hideAt
	r.wait = WaitTimer
	r.waitDeadline = hideAt
}

// callScript switches execution to another compiled script, prefetching its
// manifest and pruning what the new scene cannot reference. Per-scene state
// (sprites, hotspots, animations, active voice and video) is cleared first;
// variables, inventory, characters, and music carry across. A cold load, or
// one whose previous load of the same path ran slow, shows the loading
// overlay and yields one frame so the host can draw it.
func (r *Runtime) callScript(path, label string, nowMS int64) {
	r.resetTransient()
	r.audio.StopVoice()
	r.audio.StopEcho()

	overlay := false
	if !r.loading.Active {
		cold := !r.cache.HasScript(path)
		slow := r.loadHistory[path] > r.cfg.UI.LoadingSlowThresholdMS
		if cold || slow {
			overlay = true
			r.loading = LoadingState{Active: true, ShownMS: nowMS}
		}
	}

	start := r.now()
	prog, err := r.cache.Script(path)
	if err != nil {
		r.fail("call failed: " + err.Error())
		return
	}
	idx := 0
	if label != "" {
		i, ok := prog.Labels[label]
		if !ok {
			r.fail("call label not found: " + label + " in " + path)
			return
		}
		idx = i
	}

	r.prog = prog
	r.scriptPath = path
	r.pc = idx

	m := r.prefetch(prog)
	r.cache.PruneImages(m.ImageKeep())
	r.cache.PruneSounds(m.AudioKeep(), r.audio.IsSoundBusy)

	elapsed := r.now() - start
	r.loadHistory[path] = elapsed
	if elapsed > r.cfg.UI.LoadingSlowThresholdMS {
		logger.Get().Warn("slow scene load", "script", path, "elapsed_ms", elapsed)
	}
	if overlay {
		r.loading.HideAtMS = r.loading.ShownMS + r.cfg.UI.LoadingMinDisplayMS
		r.wait = WaitTimer
		r.waitDeadline = nowMS
	}
	logger.Get().Info("scene call", "script", path, "label", label)
}

// prefetch warms the cache with a program's manifest and returns it.
func (r *Runtime) prefetch(prog *script.Program) manifest.Manifest {
	m := manifest.Build(prog.Commands)
	for _, p := range m.Backgrounds {
		r.cache.Preload(assets.KindImage, p)
	}
	for _, p := range m.Sprites {
		r.cache.Preload(assets.KindImage, p)
	}
	for _, p := range m.Audio {
		r.cache.Preload(assets.KindSound, p)
	}
	for _, p := range m.Scripts {
		r.cache.Preload(assets.KindScript, p)
	}
	return m
}

// selectChoice resolves a pending choice to option idx and jumps.
func (r *Runtime) selectChoice(idx int) {
	c := r.choice
	if c == nil || idx < 0 || idx >= len(c.Options) {
		return
	}
	target := c.Options[idx].Target
	r.choice = nil
	r.wait = WaitNone
	r.jump(target)
}
