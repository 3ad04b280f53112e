package runtime

import (
	"fmt"
	"image"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/sawakita/hibana/pkg/assets"
	"github.com/sawakita/hibana/pkg/config"
	"github.com/sawakita/hibana/pkg/media"
	"github.com/sawakita/hibana/pkg/save"
	"github.com/sawakita/hibana/pkg/script"
)

// recordingAudio counts the channel operations the runtime issues.
type recordingAudio struct {
	media.NullAudio
	voiceStopped bool
	echoStopped  bool
	pcmBytes     int
}

func (a *recordingAudio) StopVoice()       { a.voiceStopped = true }
func (a *recordingAudio) StopEcho()        { a.echoStopped = true }
func (a *recordingAudio) PushPCM(p []byte) { a.pcmBytes += len(p) }

// fakePlayback is a scriptable video playback: tests set its stats and
// pending audio between frames.
type fakePlayback struct {
	stats   media.VideoStats
	packets []media.AudioPacket
	mode    string
	closed  bool
	finish  bool
}

func (p *fakePlayback) Update(nowMS int64) (image.Image, bool) { return nil, p.finish }
func (p *fakePlayback) DrainAudioPackets() []media.AudioPacket {
	pkts := p.packets
	p.packets = nil
	return pkts
}
func (p *fakePlayback) Stats() media.VideoStats  { return p.stats }
func (p *fakePlayback) SetFramedrop(mode string) { p.mode = mode }
func (p *fakePlayback) Close() error             { p.closed = true; return nil }

type fakeVideoBackend struct{ last *fakePlayback }

func (b *fakeVideoBackend) Open(path string, loop, audioEnabled bool, framedrop string) (media.VideoPlayback, error) {
	b.last = &fakePlayback{mode: framedrop}
	return b.last, nil
}

// fakeClock is a hand-cranked millisecond clock.
type fakeClock struct{ ms int64 }

func (c *fakeClock) now() int64        { return c.ms }
func (c *fakeClock) advance(dms int64) { c.ms += dms }

// testEnv bundles a runtime over in-memory scripts and a fake clock.
type testEnv struct {
	rt    *Runtime
	clock *fakeClock
	cache *assets.Cache
}

func newTestEnv(t *testing.T, programs map[string]*script.Program) *testEnv {
	t.Helper()
	clock := &fakeClock{ms: 1000}
	cache := assets.NewCache("",
		assets.WithLoader(func(path string) ([]byte, error) {
			return []byte(path), nil
		}),
		assets.WithCompiler(func(path string) (*script.Program, error) {
			prog, ok := programs[path]
			if !ok {
				return nil, fmt.Errorf("no such script: %s", path)
			}
			return prog, nil
		}),
	)
	cfg := *config.Default()
	cfg.SavePath = t.TempDir()
	cfg.UI.CharsPerSecond = 0 // reveal instantly unless a test overrides
	rt := New(cfg, cache, nil, nil,
		WithClock(clock.now),
		WithRand(rand.New(rand.NewSource(1))),
	)
	return &testEnv{rt: rt, clock: clock, cache: cache}
}

func (e *testEnv) start(t *testing.T, path string) {
	t.Helper()
	if err := e.rt.Start(path, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// frame advances the clock and runs one update.
func (e *testEnv) frame(dms int64) {
	e.clock.advance(dms)
	e.rt.Update()
}

func prog(labels map[string]int, commands ...script.Command) *script.Program {
	if labels == nil {
		labels = map[string]int{}
	}
	return &script.Program{Commands: commands, Labels: labels}
}

func TestSaySuspendsUntilAdvance(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Say{Speaker: "ayu", Text: "hello"},
			script.SetVar{Name: "after", Value: true},
		),
	})
	env.start(t, "main")

	env.frame(16)
	if env.rt.Waiting() != WaitDialogue {
		t.Fatalf("want dialogue wait, got %v", env.rt.Waiting())
	}
	if env.rt.Var("after") != nil {
		t.Error("command after say ran before advance")
	}

	// Extra frames keep the suspension.
	env.frame(16)
	env.frame(16)
	if env.rt.Waiting() != WaitDialogue {
		t.Fatal("dialogue wait dropped without input")
	}

	env.rt.OnAdvance()
	env.frame(16)
	if env.rt.Var("after") != true {
		t.Error("script did not resume after advance")
	}
	if !env.rt.Halted() {
		t.Error("exhausted script should halt")
	}
}

func TestTextRevealAdvanceCompletesFirst(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil, script.Say{Speaker: "a", Text: "0123456789"}),
	})
	env.rt.cfg.UI.CharsPerSecond = 10
	env.start(t, "main")
	env.frame(16)

	d := env.rt.DialogueState()
	if d == nil {
		t.Fatal("no dialogue state")
	}
	if n := d.VisibleRunes(env.clock.ms, 10); n >= 10 {
		t.Fatalf("reveal should be partial shortly after start, visible=%d", n)
	}

	// First advance completes the reveal, second dismisses.
	env.rt.OnAdvance()
	if env.rt.Waiting() != WaitDialogue {
		t.Fatal("first advance should not dismiss a partial reveal")
	}
	if d := env.rt.DialogueState(); d.VisibleRunes(env.clock.ms, 10) != 10 {
		t.Error("first advance should complete the reveal")
	}
	env.rt.OnAdvance()
	if env.rt.Waiting() == WaitDialogue {
		t.Error("second advance should dismiss the line")
	}
}

func TestInterpolationAndSpeakerName(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.CharacterDef{ID: "ayu", DisplayName: "Ayu"},
			script.SetVar{Name: "player", Value: "Rin"},
			script.Say{Speaker: "ayu", Text: "Hi ${player}, it's ${missing}!"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	d := env.rt.DialogueState()
	if d.Speaker != "Ayu" {
		t.Errorf("speaker = %q, want display name Ayu", d.Speaker)
	}
	if d.Text != "Hi Rin, it's !" {
		t.Errorf("text = %q", d.Text)
	}
}

func TestConditionsAndVarRefs(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"win": 5, "end": 7},
			script.SetVar{Name: "score", Value: 10},
			script.SetVar{Name: "goal", Value: "10"},
			script.IfJump{Name: "score", Op: ">=", Value: "$goal", Target: "win"},
			script.SetVar{Name: "result", Value: "lose"},
			script.Jump{Target: "end"},
			script.Label{Name: "win"},
			script.SetVar{Name: "result", Value: "win"},
			script.Label{Name: "end"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	if got := env.rt.Var("result"); got != "win" {
		t.Errorf("result = %v, want win (numeric compare of 10 >= \"10\")", got)
	}
}

func TestAddVarResetsNonNumeric(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.SetVar{Name: "x", Value: "banana"},
			script.AddVar{Name: "x", Amount: 3},
		),
	})
	env.start(t, "main")
	env.frame(16)
	if got := env.rt.Var("x"); got != 3 {
		t.Errorf("x = %v, want 3 (non-numeric resets to 0 before add)", got)
	}
}

func TestChoiceTimeoutSelectsDefault(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"a": 1, "b": 3, "end": 4},
			script.Choice{
				Options: []script.ChoiceOption{
					{Text: "A", Target: "a"},
					{Text: "B", Target: "b"},
				},
				TimeoutSeconds: 2.0,
				TimeoutDefault: 2,
			},
			script.SetVar{Name: "picked", Value: "a"},
			script.Jump{Target: "end"},
			script.SetVar{Name: "picked", Value: "b"},
			script.Label{Name: "end"},
		),
	})
	env.start(t, "main")
	env.frame(16)
	if env.rt.Waiting() != WaitChoice {
		t.Fatalf("want choice wait, got %v", env.rt.Waiting())
	}

	// 2.0s timeout: still pending just before, resolved just after 2.1s.
	env.frame(1900)
	if env.rt.Waiting() != WaitChoice {
		t.Fatal("choice resolved before its timeout")
	}
	env.frame(200)
	env.frame(16)
	if got := env.rt.Var("picked"); got != "b" {
		t.Errorf("picked = %v, want b (1-based default 2)", got)
	}
}

func TestChoiceTimeoutDefaultClamped(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"a": 2, "b": 2},
			script.Choice{
				Options: []script.ChoiceOption{
					{Text: "A", Target: "a"},
					{Text: "B", Target: "b"},
				},
				TimeoutSeconds: 1.0,
				TimeoutDefault: 99,
			},
			script.Label{Name: "a"},
			script.SetVar{Name: "done", Value: true},
		),
	})
	env.start(t, "main")
	env.frame(16)
	env.frame(1200)
	env.frame(16)
	if env.rt.Var("done") != true {
		t.Error("out-of-range default should clamp to the first option")
	}
}

func TestChoiceManualSelection(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"a": 1, "b": 3, "end": 4},
			script.Choice{Options: []script.ChoiceOption{
				{Text: "A", Target: "a"},
				{Text: "B", Target: "b"},
			}},
			script.SetVar{Name: "picked", Value: "a"},
			script.Jump{Target: "end"},
			script.SetVar{Name: "picked", Value: "b"},
			script.Label{Name: "end"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	env.rt.OnChoiceSelect(5) // ignored
	if env.rt.Waiting() != WaitChoice {
		t.Fatal("out-of-range selection should be ignored")
	}
	env.rt.OnChoiceSelect(1)
	env.frame(16)
	if got := env.rt.Var("picked"); got != "b" {
		t.Errorf("picked = %v, want b", got)
	}
}

func TestInputRoundTrip(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil, script.Input{Variable: "name", Prompt: "Name?", Default: "Ri"}),
	})
	env.start(t, "main")
	env.frame(16)
	if env.rt.Waiting() != WaitInput {
		t.Fatalf("want input wait, got %v", env.rt.Waiting())
	}
	env.rt.OnInputChar('n')
	env.rt.OnInputBackspace()
	env.rt.OnInputChar('n')
	env.rt.OnInputConfirm()
	env.frame(16)
	if got := env.rt.Var("name"); got != "Rin" {
		t.Errorf("name = %v, want Rin", got)
	}
}

func TestWaitTimer(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Wait{Seconds: 1.0},
			script.SetVar{Name: "done", Value: true},
		),
	})
	env.start(t, "main")
	env.frame(16)
	if env.rt.Waiting() != WaitTimer {
		t.Fatalf("want timer wait, got %v", env.rt.Waiting())
	}
	env.frame(500)
	if env.rt.Var("done") != nil {
		t.Error("timer released early")
	}
	env.frame(600)
	if env.rt.Var("done") != true {
		t.Error("timer did not release after its duration")
	}
}

func TestItemAddRemoveClamp(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Item{Action: "add", ID: "key", Name: "Key"},
			script.Item{Action: "add", ID: "key", Amount: 2},
			script.Item{Action: "add", ID: "coin", Name: "Coin", Amount: 5},
			script.Item{Action: "remove", ID: "key", Amount: 10},
			script.Item{Action: "remove", ID: "coin", Amount: 2},
		),
	})
	env.start(t, "main")
	env.frame(16)

	_, items, _ := env.rt.InventoryView()
	if len(items) != 1 {
		t.Fatalf("inventory = %+v, want only coin", items)
	}
	if items[0].ID != "coin" || items[0].Count != 3 {
		t.Errorf("coin = %+v, want count 3", items[0])
	}
}

func TestGlobalJumpReturnsToEntryScript(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"home": 1},
			script.Call{Path: "side"},
			script.Label{Name: "home"},
			script.SetVar{Name: "where", Value: "home"},
		),
		"side": prog(nil,
			script.SetVar{Name: "visited", Value: true},
			script.Jump{Target: "::home"},
		),
	})
	env.start(t, "main")
	env.frame(16)
	env.frame(16) // the cold call yields one frame for the loading overlay

	if env.rt.Var("visited") != true {
		t.Error("called script did not run")
	}
	if got := env.rt.Var("where"); got != "home" {
		t.Errorf("where = %v, want home via :: jump", got)
	}
	if path, _ := env.rt.Position(); path != "main" {
		t.Errorf("script = %q, want main after global jump", path)
	}
}

func TestRunawayLoopFails(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"top": 0},
			script.Label{Name: "top"},
			script.Jump{Target: "top"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	if env.rt.Err() == nil {
		t.Fatal("wait-free loop should produce a program error")
	}
	var perr *ProgramError
	if ok := asProgramError(env.rt.Err(), &perr); !ok {
		t.Fatalf("error type = %T, want *ProgramError", env.rt.Err())
	}
}

func asProgramError(err error, out **ProgramError) bool {
	pe, ok := err.(*ProgramError)
	if ok {
		*out = pe
	}
	return ok
}

func TestDanglingJumpFails(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil, script.Jump{Target: "nowhere"}),
	})
	env.start(t, "main")
	env.frame(16)
	if env.rt.Err() == nil || !env.rt.Halted() {
		t.Error("dangling jump should halt with a program error")
	}
}

func TestHotspotsKeepSessionAlive(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"door": 2},
			script.HotspotAdd{Name: "door", X: 10, Y: 10, W: 100, H: 100, Target: "door"},
			script.Jump{Target: "door"}, // skipped over by initial fallthrough
			script.Label{Name: "door"},
		),
	})
	// Script: add hotspot, then jump to end. Session should stay alive.
	env.start(t, "main")
	env.frame(16)
	if env.rt.Halted() {
		t.Fatal("session with live hotspots should not halt")
	}

	// A click outside hits nothing; inside jumps.
	if env.rt.OnPointerClick(500, 500) {
		t.Error("click outside hotspot reported a hit")
	}
	if !env.rt.OnPointerClick(50, 50) {
		t.Error("click inside hotspot missed")
	}
}

func TestHotspotHitUnderCamera(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"hit": 3},
			script.CameraSet{PanX: 100, PanY: 0, Zoom: 2},
			script.HotspotPoly{Name: "tri", Points: []script.Point{
				{X: 700, Y: 300}, {X: 800, Y: 300}, {X: 750, Y: 400},
			}, Target: "hit"},
			script.Jump{Target: "hit"},
			script.Label{Name: "hit"},
			script.SetVar{Name: "hits", Value: true},
		),
	})
	env.start(t, "main")
	env.frame(16)

	// World point inside the triangle: (750, 330). Map to screen under the
	// camera and click there.
	cam := env.rt.CameraState()
	sx, sy := cam.WorldToScreen(750, 330, env.rt.cfg.UI.ScreenWidth, env.rt.cfg.UI.ScreenHeight)
	if !env.rt.OnPointerClick(sx, sy) {
		t.Error("camera-transformed click inside polygon missed")
	}
	// A point outside the triangle misses even under zoom.
	sx, sy = cam.WorldToScreen(600, 100, env.rt.cfg.UI.ScreenWidth, env.rt.cfg.UI.ScreenHeight)
	if env.rt.OnPointerClick(sx, sy) {
		t.Error("click outside polygon reported a hit")
	}
}

func TestMapShowConsumesPOIs(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"cafe": 5, "park": 5},
			script.Map{Action: "show", Value: "maps/town.png"},
			script.Map{Action: "poi", Label: "Cafe", Pos: script.Point{X: 100, Y: 100}, Target: "cafe"},
			script.Map{Action: "poi", Label: "Park", Pos: script.Point{X: 300, Y: 200}, Target: "park"},
			script.SetVar{Name: "fell_through", Value: true},
			script.Wait{Seconds: 9999},
			script.SetVar{Name: "at", Value: "cafe"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	m := env.rt.MapView()
	if !m.Active || len(m.Points) != 2 {
		t.Fatalf("map = %+v, want active with 2 points", m)
	}
	if env.rt.Var("fell_through") != true {
		t.Error("execution should continue after the poi block")
	}

	// Clicking the cafe point closes the map and jumps.
	if !env.rt.OnPointerClick(100, 100) {
		t.Fatal("map point click missed")
	}
	env.frame(16)
	if env.rt.MapView().Active {
		t.Error("map should close after a point is chosen")
	}
	if got := env.rt.Var("at"); got != "cafe" {
		t.Errorf("at = %v, want cafe", got)
	}
}

func TestSceneClearResetsCameraAndBackground(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Scene{Kind: "image", Value: "bg/street.png"},
			script.CameraSet{PanX: 50, PanY: 20, Zoom: 1.5},
			script.Show{Kind: "image", Name: "s", Value: "sp/a.png"},
			script.CacheClear{Kind: "runtime"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	bg := env.rt.BackgroundState()
	if bg.Kind != "color" || bg.Value != "#000000" {
		t.Errorf("background = %+v, want black color", bg)
	}
	cam := env.rt.CameraState()
	if cam.PanX != 0 || cam.PanY != 0 || cam.Zoom != 1 {
		t.Errorf("camera = %+v, want identity", cam)
	}
	if len(env.rt.SpritesByZ()) != 0 {
		t.Error("sprites should be cleared")
	}
	if env.cache.HasScript("main") {
		t.Error("runtime clear should drop the script cache too")
	}
}

func TestBackgroundTransitionReplaced(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Scene{Kind: "image", Value: "bg/a.png", Transition: script.TransitionSpec{Style: "fade", Seconds: 2}},
			script.Wait{Seconds: 0.5},
			script.Scene{Kind: "image", Value: "bg/b.png", Transition: script.TransitionSpec{Style: "wipe", Seconds: 2}},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	fade := transitionFor(env.rt, "")
	if fade == nil || fade.Style != "fade" {
		t.Fatalf("want running fade, got %+v", fade)
	}

	env.frame(600) // past the wait; second scene starts its wipe

	wipe := transitionFor(env.rt, "")
	if wipe == nil || wipe.Style != "wipe" {
		t.Fatalf("want fade replaced by wipe, got %+v", wipe)
	}
	if wipe.Alpha > 0.1 {
		t.Errorf("replacement should restart progress, alpha = %v", wipe.Alpha)
	}
	if env.rt.BackgroundState().Value != "bg/b.png" {
		t.Errorf("background = %+v", env.rt.BackgroundState())
	}
}

func transitionFor(rt *Runtime, target string) *TransitionFx {
	for _, fx := range rt.TransitionsView() {
		if fx.Target == target {
			return &fx
		}
	}
	return nil
}

func TestSnapshotRoundTripIdempotent(t *testing.T) {
	program := prog(map[string]int{"a": 6, "b": 6},
		script.CharacterDef{ID: "ayu", DisplayName: "Ayu", Sprites: map[string]string{"default": "ayu.png"}},
		script.Scene{Kind: "image", Value: "bg/street.png"},
		script.ShowChar{ID: "ayu", Pos: &script.Point{X: 320, Y: 400}},
		script.SetVar{Name: "coins", Value: 7},
		script.Item{Action: "add", ID: "key", Name: "Key"},
		script.Choice{
			Options:        []script.ChoiceOption{{Text: "A", Target: "a"}, {Text: "B", Target: "b"}},
			TimeoutSeconds: 5,
			TimeoutDefault: 2,
		},
		script.Label{Name: "a"},
	)
	env := newTestEnv(t, map[string]*script.Program{"main": program})
	env.start(t, "main")
	env.frame(16)
	env.frame(1000) // accumulate some choice timeout

	first := env.rt.MakeSnapshot()
	if first.Waiting == nil || first.Waiting.Type != "choice" {
		t.Fatalf("waiting = %+v, want choice block", first.Waiting)
	}
	if first.Waiting.TimeoutElapsedMS <= 0 {
		t.Error("choice elapsed time not captured")
	}

	env2 := newTestEnv(t, map[string]*script.Program{"main": program})
	if err := env2.rt.ApplySnapshot(first); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	second := env2.rt.MakeSnapshot()

	if diff := cmp.Diff(first, second, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("snapshot not idempotent (-first +second):\n%s", diff)
	}

	// The restored choice keeps counting from its saved elapsed time:
	// 5s timeout with ~1s elapsed resolves after ~4 more seconds.
	env2.frame(3500)
	if env2.rt.Waiting() != WaitChoice {
		t.Fatal("restored choice resolved too early")
	}
	env2.frame(800)
	env2.frame(16)
	if env2.rt.Waiting() == WaitChoice {
		t.Error("restored choice did not resume its countdown")
	}
}

func TestSaveLoadThroughSlots(t *testing.T) {
	program := prog(nil,
		script.SetVar{Name: "x", Value: 1},
		script.Save{Slot: "s1"},
		script.SetVar{Name: "x", Value: 2},
		script.Say{Speaker: "", Text: "pause"},
	)
	env := newTestEnv(t, map[string]*script.Program{"main": program})
	env.start(t, "main")
	env.frame(16)
	if got := env.rt.Var("x"); got != 2 {
		t.Fatalf("x = %v, want 2 before restore", got)
	}

	// Host-initiated load rewinds to the state captured by the save.
	if err := env.rt.LoadSlot("s1"); err != nil {
		t.Fatalf("LoadSlot: %v", err)
	}
	if got := env.rt.Var("x"); got != 1 {
		t.Errorf("x = %v, want 1 right after restore", got)
	}

	// The restored session resumes after the save command.
	env.frame(16)
	if got := env.rt.Var("x"); got != 2 {
		t.Errorf("x = %v, want 2 after resuming", got)
	}
	if env.rt.Waiting() != WaitDialogue {
		t.Errorf("wait = %v, want dialogue", env.rt.Waiting())
	}
	if env.rt.Err() != nil {
		t.Fatalf("unexpected error: %v", env.rt.Err())
	}
}

func TestLoadMissingSlotIsNoOp(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Load{Slot: "ghost"},
			script.SetVar{Name: "after", Value: true},
		),
	})
	env.start(t, "main")
	env.frame(16)
	if env.rt.Err() != nil {
		t.Fatalf("missing save should not be fatal: %v", env.rt.Err())
	}
	if env.rt.Var("after") != true {
		t.Error("script should continue past a failed load")
	}
}

func TestUpdateDeterminism(t *testing.T) {
	build := func() *testEnv {
		return newTestEnv(t, map[string]*script.Program{
			"main": prog(map[string]int{"loop": 1, "end": 6},
				script.SetVar{Name: "n", Value: 0},
				script.Label{Name: "loop"},
				script.AddVar{Name: "n", Amount: 1},
				script.Wait{Seconds: 0.05},
				script.IfJump{Name: "n", Op: "<", Value: 10, Target: "loop"},
				script.Jump{Target: "end"},
				script.Label{Name: "end"},
			),
		})
	}
	runA, runB := build(), build()
	runA.start(t, "main")
	runB.start(t, "main")
	for i := 0; i < 200; i++ {
		runA.frame(16)
		runB.frame(16)
		if !cmp.Equal(runA.rt.Var("n"), runB.rt.Var("n")) {
			t.Fatalf("frame %d diverged: %v vs %v", i, runA.rt.Var("n"), runB.rt.Var("n"))
		}
	}
	if got := runA.rt.Var("n"); got != 10 {
		t.Errorf("n = %v, want 10", got)
	}
}

func TestSayAutoShowsSpeakerDefaultSprite(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.CharacterDef{ID: "ayu", DisplayName: "Ayu", Sprites: map[string]string{
				"default": "chars/ayu_normal.png",
				"smile":   "chars/ayu_smile.png",
			}},
			script.Say{Speaker: "ayu", Text: "Good morning."},
		),
	})
	env.start(t, "main")
	env.frame(16)

	sprites := env.rt.SpritesByZ()
	if len(sprites) != 1 || sprites[0].Value != "chars/ayu_normal.png" {
		t.Fatalf("sprites = %+v, want the speaker's default sprite on stage", sprites)
	}
}

func TestSayKeepsVisibleSpeakerExpression(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.CharacterDef{ID: "ayu", Sprites: map[string]string{
				"default": "chars/ayu_normal.png",
				"smile":   "chars/ayu_smile.png",
			}},
			script.ShowChar{ID: "ayu", Expression: "smile"},
			script.Say{Speaker: "ayu", Text: "Good morning."},
		),
	})
	env.start(t, "main")
	env.frame(16)

	sprites := env.rt.SpritesByZ()
	if len(sprites) != 1 || sprites[0].Value != "chars/ayu_smile.png" {
		t.Fatalf("sprites = %+v, want the smile expression left alone", sprites)
	}
}

func TestShowCharRawPathWithoutSpriteTable(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.ShowChar{ID: "ghost", Expression: "chars/ghost.png", Pos: &script.Point{X: 100, Y: 200}},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	sprites := env.rt.SpritesByZ()
	if len(sprites) != 1 || sprites[0].Value != "chars/ghost.png" {
		t.Fatalf("sprites = %+v, want the raw path shown directly", sprites)
	}
	if sprites[0].X != 100 || sprites[0].Y != 200 {
		t.Errorf("sprite at (%v,%v), want (100,200)", sprites[0].X, sprites[0].Y)
	}
}

func TestCallStopsSceneMediaAndClearsStage(t *testing.T) {
	backend := &fakeVideoBackend{}
	aud := &recordingAudio{}
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Show{Kind: "image", Name: "s", Value: "sp/a.png"},
			script.HotspotAdd{Name: "door", X: 0, Y: 0, W: 10, H: 10, Target: "x"},
			script.Video{Action: "play", Path: "mov/bg.mp4", Loop: true},
			script.Call{Path: "side"},
		),
		"side": prog(nil, script.Say{Text: "next"}),
	})
	env.rt.audio = aud
	env.rt.video = backend
	env.start(t, "main")
	env.frame(16)
	env.frame(16)

	if n := len(env.rt.SpritesByZ()); n != 0 {
		t.Errorf("%d sprites survived the scene call", n)
	}
	if hs, _ := env.rt.Hotspots(); len(hs) != 0 {
		t.Error("hotspots survived the scene call")
	}
	if !aud.voiceStopped || !aud.echoStopped {
		t.Errorf("voiceStopped=%v echoStopped=%v, want both channels stopped", aud.voiceStopped, aud.echoStopped)
	}
	if backend.last == nil || !backend.last.closed {
		t.Error("scene call should close the running video")
	}
	if env.rt.VideoActive() {
		t.Error("video playback still active after the scene call")
	}
	if env.rt.Waiting() != WaitDialogue {
		t.Errorf("waiting = %v, want the next scene's dialogue", env.rt.Waiting())
	}
}

func TestColdCallShowsLoadingOverlay(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil, script.Call{Path: "side"}),
		"side": prog(nil,
			script.SetVar{Name: "done", Value: true},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	if !env.rt.LoadingView().Active {
		t.Fatal("a cold scene call should raise the loading overlay")
	}
	if env.rt.Var("done") != nil {
		t.Error("the call should yield a frame before the next scene runs")
	}

	env.frame(16)
	if env.rt.Var("done") != true {
		t.Error("the scene should resume on the next frame")
	}
	if !env.rt.LoadingView().Active {
		t.Error("the overlay should hold for its minimum display time")
	}

	env.frame(env.rt.cfg.UI.LoadingMinDisplayMS + 16)
	if env.rt.LoadingView().Active {
		t.Error("the overlay should clear once the minimum display time passed")
	}
}

func TestWarmFastCallSkipsLoadingOverlay(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil, script.Say{Text: "hold"}),
		"side": prog(nil, script.Say{Text: "hold"}),
	})
	env.start(t, "main")
	env.frame(16)

	env.rt.callScript("side", "", env.clock.ms)
	if !env.rt.LoadingView().Active {
		t.Fatal("the first load of a script is cold and should show the overlay")
	}
	env.frame(env.rt.cfg.UI.LoadingMinDisplayMS + 32)
	if env.rt.LoadingView().Active {
		t.Fatal("overlay should have expired")
	}

	env.rt.callScript("side", "", env.clock.ms)
	if env.rt.LoadingView().Active {
		t.Error("a warm, fast call should not raise the overlay")
	}

	env.rt.loadHistory["side"] = env.rt.cfg.UI.LoadingSlowThresholdMS + 1
	env.rt.callScript("side", "", env.clock.ms)
	if !env.rt.LoadingView().Active {
		t.Error("a previously slow load should raise the overlay up front")
	}
}

func TestLoadingEndHoldsMinimumDisplay(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Loading{Action: "start", Text: "Loading..."},
			script.Loading{Action: "end"},
			script.SetVar{Name: "after", Value: true},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	if !env.rt.LoadingView().Active {
		t.Fatal("overlay should stay visible through the minimum display hold")
	}
	if env.rt.Var("after") != nil {
		t.Error("the stepper should park during the hold")
	}

	env.frame(env.rt.cfg.UI.LoadingMinDisplayMS + 16)
	if env.rt.LoadingView().Active {
		t.Error("overlay should clear after the hold")
	}
	if env.rt.Var("after") != true {
		t.Error("script should resume after the hold")
	}
}

func TestCacheClearScriptsKeepsStage(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Show{Kind: "image", Name: "s", Value: "sp/a.png"},
			script.CacheClear{Kind: "scripts"},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	if len(env.rt.SpritesByZ()) != 1 {
		t.Error("clearing the script cache should leave the stage alone")
	}
	if env.cache.HasScript("main") {
		t.Error("script cache should be empty")
	}
}

func TestCacheClearCurrentScriptResetsStage(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Show{Kind: "image", Name: "s", Value: "sp/a.png"},
			script.HotspotAdd{Name: "door", X: 0, Y: 0, W: 10, H: 10, Target: "x"},
			script.CacheClear{Kind: "script", Path: "main"},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	if len(env.rt.SpritesByZ()) != 0 {
		t.Error("clearing the running script should reset the stage")
	}
	if hs, _ := env.rt.Hotspots(); len(hs) != 0 {
		t.Error("hotspots should be gone")
	}
	if env.cache.HasScript("main") {
		t.Error("the cache entry should be dropped")
	}
}

func TestCacheClearOtherScriptKeepsStage(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Show{Kind: "image", Name: "s", Value: "sp/a.png"},
			script.CacheClear{Kind: "script", Path: "bonus"},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	if len(env.rt.SpritesByZ()) != 1 {
		t.Error("clearing another script's cache entry should not touch the stage")
	}
}

func TestAdaptiveFramedropFollowsPlaybackHealth(t *testing.T) {
	backend := &fakeVideoBackend{}
	aud := &recordingAudio{}
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.Video{Action: "play", Path: "mov/intro.mp4", Loop: true},
			script.WaitVideo{},
		),
	})
	env.rt.audio = aud
	env.rt.video = backend
	env.start(t, "main")
	env.frame(16)

	pb := backend.last
	if pb == nil {
		t.Fatal("video was not opened")
	}

	pb.stats = media.VideoStats{
		FramesDecoded:  30,
		PacketsDecoded: 60,
		LagMS:          500,
		QueueDepth:     12,
		Stalled:        true,
	}
	pb.packets = []media.AudioPacket{{PTSMillis: 0, PCM: make([]byte, 4096)}}
	env.frame(16)

	if pb.mode != media.FramedropOn {
		t.Errorf("framedrop mode = %q, want %q while playback lags", pb.mode, media.FramedropOn)
	}
	if aud.pcmBytes != 4096 {
		t.Errorf("forwarded %d bytes of video audio, want 4096", aud.pcmBytes)
	}

	pb.stats = media.VideoStats{FramesDecoded: 120, PacketsDecoded: 240}
	for i := 0; i < env.rt.cfg.Video.AdaptiveCooldownFrames+1; i++ {
		env.frame(16)
	}
	if pb.mode != media.FramedropOff {
		t.Errorf("framedrop mode = %q, want %q after playback recovered", pb.mode, media.FramedropOff)
	}
}

func TestRestoreWithActiveMapParksForPointPick(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(map[string]int{"town": 2},
			script.Map{Action: "show", Value: "maps/world.png"},
			script.Map{Action: "poi", Label: "Town", Pos: script.Point{X: 100, Y: 120}, Target: "town"},
			script.SetVar{Name: "arrived", Value: true},
		),
	})
	snap := save.NewSnapshot()
	snap.ScriptPath = "main"
	snap.Index = 2
	snap.Map = save.MapState{Active: true, Image: "maps/world.png", Points: []save.MapPoint{
		{Label: "Town", Target: "town", Pos: [2]int{100, 120}},
	}}
	if err := env.rt.ApplySnapshot(snap); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	env.frame(16)
	if env.rt.Var("arrived") != nil {
		t.Error("a restored map scene should wait for a point pick, not step")
	}
	if !env.rt.MapView().Active {
		t.Fatal("map overlay should be active after restore")
	}

	if !env.rt.OnPointerClick(100, 120) {
		t.Fatal("map point click missed")
	}
	env.frame(16)
	if env.rt.Var("arrived") != true {
		t.Error("picking a point should resume the script at its target")
	}
}

func TestMeterUpdateReShows(t *testing.T) {
	env := newTestEnv(t, map[string]*script.Program{
		"main": prog(nil,
			script.SetVar{Name: "trust", Value: 40},
			script.Meter{Action: "show", Variable: "trust", Label: "Trust", Min: 0, Max: 100},
			script.Meter{Action: "hide", Variable: "trust"},
			script.Meter{Action: "update", Variable: "trust"},
			script.Say{Text: "hold"},
		),
	})
	env.start(t, "main")
	env.frame(16)

	meters := env.rt.Meters()
	if len(meters) != 1 {
		t.Fatalf("got %d meters, want the updated meter visible again", len(meters))
	}
	if meters[0].Value != 40 {
		t.Errorf("meter value = %d, want 40", meters[0].Value)
	}
}
