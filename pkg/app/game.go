// Package app hosts the runtime inside an Ebitengine game loop: it pumps
// keyboard and pointer input into the interpreter every frame and hands the
// session state to the renderer. A headless driver runs the same loop
// without a window for tests and CI.
package app

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/sawakita/hibana/pkg/config"
	"github.com/sawakita/hibana/pkg/runtime"
)

// Game adapts a runtime session to ebiten.Game.
type Game struct {
	rt       *runtime.Runtime
	cfg      config.Config
	renderer *Renderer
}

// NewGame wires the session to the window loop.
func NewGame(cfg config.Config, rt *runtime.Runtime, renderer *Renderer) *Game {
	return &Game{rt: rt, cfg: cfg, renderer: renderer}
}

// Update pumps one frame of input and advances the interpreter.
func (g *Game) Update() error {
	g.pumpInput()
	g.rt.Update()
	if err := g.rt.Err(); err != nil {
		return err
	}
	if g.rt.Halted() {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) pumpInput() {
	switch g.rt.Waiting() {
	case runtime.WaitDialogue:
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeySpace) {
			g.rt.OnAdvance()
		}
	case runtime.WaitChoice:
		// Number keys select directly; arrows move the highlight.
		for i, key := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5, ebiten.Key6, ebiten.Key7, ebiten.Key8, ebiten.Key9} {
			if inpututil.IsKeyJustPressed(key) {
				g.rt.OnChoiceSelect(i)
				return
			}
		}
		if c := g.rt.ChoiceView(); c != nil {
			if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
				g.rt.OnChoiceHover(c.Selected + 1)
			}
			if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
				g.rt.OnChoiceHover(c.Selected - 1)
			}
			if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
				g.rt.OnChoiceSelect(c.Selected)
			}
		}
	case runtime.WaitInput:
		for _, ch := range ebiten.AppendInputChars(nil) {
			g.rt.OnInputChar(ch)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			g.rt.OnInputBackspace()
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			g.rt.OnInputConfirm()
		}
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		mx, my := ebiten.CursorPosition()
		if !g.rt.OnPointerClick(float64(mx), float64(my)) && g.rt.Waiting() == runtime.WaitDialogue {
			// Clicks that hit nothing advance dialogue, matching the
			// usual novel-reading flow.
			g.rt.OnAdvance()
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		g.rt.QuickSave()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		g.rt.QuickLoad()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyI) {
		g.rt.ToggleInventory()
	}
}

// Draw renders the session.
func (g *Game) Draw(screen *ebiten.Image) {
	g.renderer.Draw(screen, g.rt)
}

// Layout fixes the logical screen size from configuration.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.cfg.UI.ScreenWidth, g.cfg.UI.ScreenHeight
}

// Run opens the window and blocks until the session halts or the window
// closes.
func Run(title string, cfg config.Config, rt *runtime.Runtime, renderer *Renderer) error {
	ebiten.SetWindowSize(cfg.UI.ScreenWidth, cfg.UI.ScreenHeight)
	ebiten.SetWindowTitle(title)
	err := ebiten.RunGame(NewGame(cfg, rt, renderer))
	if err == ebiten.Termination {
		return nil
	}
	return err
}
