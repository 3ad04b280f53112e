// Package runtime implements the script interpreter: a cooperative,
// single-threaded stepper that executes commands until one suspends, then
// waits for the host loop to feed it frames and input events. All timing
// comes from the clock injected at construction, so tests drive it without
// sleeping.
package runtime

import (
	"fmt"
	"image"
	"math/rand"
	"time"

	"github.com/sawakita/hibana/pkg/assets"
	"github.com/sawakita/hibana/pkg/config"
	"github.com/sawakita/hibana/pkg/effects"
	"github.com/sawakita/hibana/pkg/logger"
	"github.com/sawakita/hibana/pkg/media"
	"github.com/sawakita/hibana/pkg/script"
)

// Suspension reasons. The stepper runs freely while the reason is
// WaitNone and parks otherwise.
type WaitKind int

const (
	WaitNone WaitKind = iota
	WaitDialogue
	WaitChoice
	WaitInput
	WaitTimer
	WaitVoice
	WaitVideo
)

func (k WaitKind) String() string {
	switch k {
	case WaitNone:
		return "none"
	case WaitDialogue:
		return "dialogue"
	case WaitChoice:
		return "choice"
	case WaitInput:
		return "input"
	case WaitTimer:
		return "timer"
	case WaitVoice:
		return "voice"
	case WaitVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ProgramError is a fatal script defect: a dangling jump, a malformed
// command, or a runaway loop. It halts the session.
type ProgramError struct {
	Script string
	Index  int
	Reason string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("program error in %s at command %d: %s", e.Script, e.Index, e.Reason)
}

// maxStepsPerFrame bounds how many commands one frame may execute, so a
// wait-free jump cycle surfaces as a ProgramError instead of a hang.
const maxStepsPerFrame = 10000

// Runtime is one interpreter session.
type Runtime struct {
	cfg   config.Config
	cache *assets.Cache
	audio media.Audio
	video media.VideoBackend
	now   func() int64
	rng   *rand.Rand

	prog       *script.Program
	scriptPath string
	entryPath  string
	pc         int
	halted     bool
	fatal      error

	wait         WaitKind
	waitDeadline int64

	vars  map[string]any
	chars map[string]script.CharacterDef

	background  Background
	sprites     map[string]*Sprite
	spriteOrder []string
	camera      Camera
	tracks      *effects.TrackSet
	transitions map[string]*effects.Transition

	dialogue *Dialogue
	choice   *ChoiceState
	input    *InputState
	notice   *Notice
	loading  LoadingState

	inventory     []InventoryItem
	inventoryPage int
	inventoryOpen bool
	meters        map[string]*MeterState
	hud           []HudButton
	hotspots      []Hotspot
	hotspotDebug  bool
	mapState      MapState
	phone         PhoneState

	music      *musicState
	playback   media.VideoPlayback
	videoFrame image.Image
	framedrop  *media.FramedropController

	// loadHistory records the last load duration per script, so a repeat of
	// a slow load shows the loading overlay up front.
	loadHistory map[string]int64
}

type musicState struct {
	Path string
	Loop bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock injects the monotonic millisecond clock.
func WithClock(now func() int64) Option {
	return func(r *Runtime) { r.now = now }
}

// WithRand injects the random source used by dissolve grids.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runtime) { r.rng = rng }
}

// New builds a runtime over the given backends. audio and video may be nil;
// they default to the null implementations.
func New(cfg config.Config, cache *assets.Cache, audio media.Audio, video media.VideoBackend, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:         cfg,
		cache:       cache,
		audio:       audio,
		video:       video,
		now:         func() int64 { return time.Now().UnixMilli() },
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		vars:        map[string]any{},
		chars:       map[string]script.CharacterDef{},
		sprites:     map[string]*Sprite{},
		meters:      map[string]*MeterState{},
		tracks:      effects.NewTrackSet(),
		transitions: map[string]*effects.Transition{},
		background:  Background{Kind: "color", Value: "#000000"},
		camera:      Camera{Zoom: 1},
		loadHistory: map[string]int64{},
	}
	r.framedrop = media.NewFramedropController(cfg.Video.Framedrop, media.FramedropConfig{
		LagThresholdMS:      cfg.Video.AdaptiveLagMS,
		QueueDepthThreshold: cfg.Video.AdaptiveQueueDepth,
		CooldownFrames:      cfg.Video.AdaptiveCooldownFrames,
	})
	if r.audio == nil {
		r.audio = media.NullAudio{}
	}
	if r.video == nil {
		r.video = media.NullVideoBackend{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start loads the entry script and positions the session at its first
// command (or at label when non-empty).
func (r *Runtime) Start(path, label string) error {
	prog, err := r.cache.Script(path)
	if err != nil {
		return err
	}
	r.prog = prog
	r.scriptPath = path
	r.entryPath = path
	r.pc = 0
	if label != "" {
		idx, ok := prog.Labels[label]
		if !ok {
			return fmt.Errorf("label %q not found in %s", label, path)
		}
		r.pc = idx
	}
	r.halted = false
	r.fatal = nil
	r.prefetch(prog)
	logger.Get().Info("session started", "script", path, "label", label)
	return nil
}

// Err returns the fatal error that halted the session, if any.
func (r *Runtime) Err() error { return r.fatal }

// Halted reports whether the session has ended.
func (r *Runtime) Halted() bool { return r.halted }

// Waiting returns the current suspension reason.
func (r *Runtime) Waiting() WaitKind { return r.wait }

// Update is the per-frame entry point: it advances timed effects, resolves
// expired suspensions, and steps the program until it suspends again.
func (r *Runtime) Update() {
	if r.fatal != nil || r.prog == nil {
		return
	}
	nowMS := r.now()

	r.advanceEffects(nowMS)
	r.pumpVideo(nowMS)
	r.expireNotice(nowMS)
	r.expireLoading(nowMS)
	r.resolveWait(nowMS)

	if r.halted || r.wait != WaitNone {
		return
	}

	for steps := 0; r.wait == WaitNone && !r.halted && r.fatal == nil; steps++ {
		if steps >= maxStepsPerFrame {
			r.fail("step budget exceeded, likely a wait-free loop")
			return
		}
		r.step(nowMS)
	}
}

// step executes the command at pc. Past-the-end halts the session unless
// interactive surfaces (hotspots, HUD, map) remain clickable.
func (r *Runtime) step(nowMS int64) {
	if r.pc < 0 || r.pc >= len(r.prog.Commands) {
		if len(r.hotspots) > 0 || len(r.hud) > 0 || r.mapState.Active {
			// Script exhausted but the scene is still interactive; park
			// and let pointer input drive the next jump.
			r.wait = WaitDialogue
			r.dialogue = nil
			return
		}
		r.halted = true
		logger.Get().Info("session halted", "script", r.scriptPath)
		return
	}
	cmd := r.prog.Commands[r.pc]
	r.pc++
	r.exec(cmd, nowMS)
}

// fail records a fatal program error and halts.
func (r *Runtime) fail(reason string) {
	r.fatal = &ProgramError{Script: r.scriptPath, Index: r.pc - 1, Reason: reason}
	r.halted = true
	logger.Get().Error("program error", "error", r.fatal)
}

// advanceEffects applies track values to sprites and retires finished
// transitions. Exit transitions destroy their sprite on completion.
func (r *Runtime) advanceEffects(nowMS int64) {
	for _, v := range r.tracks.Advance(nowMS) {
		sp := r.sprites[v.Sprite]
		if sp == nil {
			continue
		}
		switch v.Property {
		case effects.PropMove:
			sp.X, sp.Y = v.A, v.B
		case effects.PropSize:
			sp.W, sp.H = v.A, v.B
		case effects.PropAlpha:
			sp.Alpha = v.A
		}
	}

	for name, tr := range r.transitions {
		if !tr.Done(nowMS) {
			continue
		}
		delete(r.transitions, name)
		if tr.Exit {
			r.removeSprite(name)
		}
	}
}

// pumpVideo advances the active playback, forwards its decoded audio to the
// mixer, and releases a video wait when it finishes. The framedrop controller
// watches playback health and flips the drop policy under sustained lag.
func (r *Runtime) pumpVideo(nowMS int64) {
	if r.playback == nil {
		return
	}
	frame, finished := r.playback.Update(nowMS)
	if frame != nil {
		r.videoFrame = frame
	}
	for _, pkt := range r.playback.DrainAudioPackets() {
		r.audio.PushPCM(pkt.PCM)
	}
	if finished {
		r.stopVideo()
		return
	}

	stats := r.playback.Stats()
	wasDropping := r.framedrop.Dropping()
	dropping := r.framedrop.ShouldDrop(stats.LagMS, stats.QueueDepth)
	if dropping != wasDropping {
		mode := media.FramedropOff
		if dropping {
			mode = media.FramedropOn
		}
		r.playback.SetFramedrop(mode)
		logger.Get().Debug("framedrop switched",
			"mode", mode, "lag_ms", stats.LagMS, "queue", stats.QueueDepth, "stalled", stats.Stalled)
	}
}

// stopVideo closes the active playback and releases a pending video wait.
func (r *Runtime) stopVideo() {
	if r.playback != nil {
		r.playback.Close()
		r.playback = nil
	}
	r.videoFrame = nil
	if r.wait == WaitVideo {
		r.wait = WaitNone
	}
}

func (r *Runtime) expireNotice(nowMS int64) {
	if r.notice != nil && nowMS >= r.notice.UntilMS {
		r.notice = nil
	}
}

// expireLoading takes the overlay down once its hold stamp passes. Overlays
// without a stamp stay until an explicit end.
func (r *Runtime) expireLoading(nowMS int64) {
	if r.loading.Active && r.loading.HideAtMS > 0 && nowMS >= r.loading.HideAtMS {
		r.loading = LoadingState{}
	}
}

// resolveWait releases suspensions whose condition has passed.
func (r *Runtime) resolveWait(nowMS int64) {
	switch r.wait {
	case WaitTimer:
		if nowMS >= r.waitDeadline {
			r.wait = WaitNone
		}
	case WaitVoice:
		if !r.audio.IsVoicePlaying() {
			r.wait = WaitNone
		}
	case WaitVideo:
		if r.playback == nil {
			r.wait = WaitNone
		}
	case WaitChoice:
		r.tickChoiceTimeout(nowMS)
	case WaitDialogue:
		if r.dialogue != nil {
			// Reveal completion is tracked so an advance that arrives
			// mid-reveal completes the text instead of dismissing it.
			if r.dialogue.VisibleRunes(nowMS, r.cfg.UI.CharsPerSecond) >= len([]rune(r.dialogue.Text)) {
				r.dialogue.revealDone = true
			}
		}
	}
}

// tickChoiceTimeout accumulates elapsed time on a timed choice and resolves
// it to the default option when the timeout lapses.
func (r *Runtime) tickChoiceTimeout(nowMS int64) {
	c := r.choice
	if c == nil || c.TimeoutMS <= 0 {
		return
	}
	if c.lastTickMS > 0 {
		c.ElapsedMS += nowMS - c.lastTickMS
	}
	c.lastTickMS = nowMS
	if c.ElapsedMS < c.TimeoutMS {
		return
	}
	idx := c.TimeoutDefault - 1
	if idx < 0 || idx >= len(c.Options) {
		idx = 0
	}
	logger.Get().Debug("choice timed out", "selected", idx)
	r.selectChoice(idx)
}

// removeSprite drops a sprite, its tracks, and its pending transition.
func (r *Runtime) removeSprite(name string) {
	if _, ok := r.sprites[name]; !ok {
		return
	}
	delete(r.sprites, name)
	delete(r.transitions, name)
	r.tracks.Stop(name)
	for i, n := range r.spriteOrder {
		if n == name {
			r.spriteOrder = append(r.spriteOrder[:i], r.spriteOrder[i+1:]...)
			break
		}
	}
}

// clearScene resets the visual and interactive session state: sprites,
// effects, overlays, hotspots, camera, and backdrop. Variables, inventory
// and characters survive.
func (r *Runtime) clearScene() {
	r.sprites = map[string]*Sprite{}
	r.spriteOrder = nil
	r.tracks.Clear()
	r.transitions = map[string]*effects.Transition{}
	r.hotspots = nil
	r.hud = nil
	r.meters = map[string]*MeterState{}
	r.mapState = MapState{}
	r.phone = PhoneState{}
	r.notice = nil
	r.hotspotDebug = false
	r.background = Background{Kind: "color", Value: "#000000"}
	r.camera = Camera{Zoom: 1}
}

// resetTransient drops everything the running scene produced: the stage, the
// active dialogue, pending timers, and video playback. Script-scoped data
// (variables, inventory, characters) survives.
func (r *Runtime) resetTransient() {
	r.clearScene()
	r.stopVideo()
	r.dialogue = nil
	if r.wait == WaitDialogue || r.wait == WaitTimer {
		r.wait = WaitNone
	}
}
