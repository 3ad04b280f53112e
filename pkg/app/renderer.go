package app

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/sawakita/hibana/pkg/assets"
	"github.com/sawakita/hibana/pkg/effects"
	"github.com/sawakita/hibana/pkg/runtime"
)

// Renderer draws a session frame. Textures come from the asset cache as
// image.Image and are converted to GPU images lazily, keyed by path; a
// conversion is redone when the cache hands back a different source image
// for the same path.
type Renderer struct {
	cache *assets.Cache
	face  font.Face

	textures map[string]texture
}

type texture struct {
	src image.Image
	gpu *ebiten.Image
}

// NewRenderer builds a renderer over the given asset cache.
func NewRenderer(cache *assets.Cache) *Renderer {
	return &Renderer{
		cache:    cache,
		face:     basicfont.Face7x13,
		textures: make(map[string]texture),
	}
}

func (rd *Renderer) texture(path string) *ebiten.Image {
	src := rd.cache.Image(path)
	if t, ok := rd.textures[path]; ok && t.src == src {
		return t.gpu
	}
	gpu := ebiten.NewImageFromImage(src)
	rd.textures[path] = texture{src: src, gpu: gpu}
	return gpu
}

// Draw renders one complete frame in back-to-front order: background,
// sprites under the camera, video, transition masks, then the UI overlays
// which ignore the camera.
func (rd *Renderer) Draw(screen *ebiten.Image, rt *runtime.Runtime) {
	shakeX, shakeY := rt.ShakeOffset()
	fx := map[string]runtime.TransitionFx{}
	for _, f := range rt.TransitionsView() {
		fx[f.Target] = f
	}

	rd.drawBackground(screen, rt, fx, shakeX, shakeY)
	rd.drawSprites(screen, rt, fx, shakeX, shakeY)
	rd.drawVideo(screen, rt)

	rd.drawHotspotDebug(screen, rt)
	rd.drawMap(screen, rt)
	rd.drawMeters(screen, rt)
	rd.drawHud(screen, rt)
	rd.drawInventory(screen, rt)
	rd.drawPhone(screen, rt)
	rd.drawDialogue(screen, rt)
	rd.drawChoice(screen, rt)
	rd.drawInput(screen, rt)
	rd.drawNotice(screen, rt)
	rd.drawLoading(screen, rt)
}

func (rd *Renderer) drawBackground(screen *ebiten.Image, rt *runtime.Runtime, fx map[string]runtime.TransitionFx, shakeX, shakeY float64) {
	bg := rt.BackgroundState()
	alpha := 1.0
	f, running := fx[""]
	if running {
		alpha = f.Alpha
	}

	if bg.Kind == "image" && bg.Value != "" {
		screen.Fill(color.Black)
		img := rd.texture(bg.Value)
		op := &ebiten.DrawImageOptions{}
		w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
		iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
		if iw > 0 && ih > 0 {
			op.GeoM.Scale(float64(w)/float64(iw), float64(h)/float64(ih))
		}
		op.GeoM.Translate(shakeX, shakeY)
		op.ColorScale.ScaleAlpha(float32(alpha))
		screen.DrawImage(img, op)
	} else {
		screen.Fill(parseColor(bg.Value, color.Black))
	}

	if running && f.Style == effects.TransDissolve {
		rd.drawDissolveMask(screen, f)
	}
}

// drawDissolveMask blacks out the grid cells the dissolve has not revealed
// yet.
func (rd *Renderer) drawDissolveMask(screen *ebiten.Image, f runtime.TransitionFx) {
	w := float32(screen.Bounds().Dx())
	h := float32(screen.Bounds().Dy())
	cw := w / float32(effects.DissolveGridW)
	ch := h / float32(effects.DissolveGridH)
	for gy := 0; gy < effects.DissolveGridH; gy++ {
		for gx := 0; gx < effects.DissolveGridW; gx++ {
			if !f.CellRevealed(gx, gy) {
				vector.DrawFilledRect(screen, float32(gx)*cw, float32(gy)*ch, cw, ch, color.Black, false)
			}
		}
	}
}

func (rd *Renderer) drawSprites(screen *ebiten.Image, rt *runtime.Runtime, fx map[string]runtime.TransitionFx, shakeX, shakeY float64) {
	cam := rt.CameraState()
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	zoom := cam.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	for _, s := range rt.SpritesByZ() {
		alpha := s.Alpha
		if f, ok := fx[s.Name]; ok {
			alpha *= f.Alpha
		}
		if alpha <= 0 {
			continue
		}
		sx, sy := cam.WorldToScreen(s.X, s.Y, sw, sh)
		sx += shakeX
		sy += shakeY

		if s.Kind != "image" {
			w, h := float32(s.W*zoom), float32(s.H*zoom)
			fill := parseColor(s.Value, color.White)
			vector.DrawFilledRect(screen, float32(sx), float32(sy), w, h, scaleAlpha(fill, alpha), false)
			continue
		}

		img := rd.texture(s.Value)
		op := &ebiten.DrawImageOptions{}
		iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
		if s.W > 0 && s.H > 0 && iw > 0 && ih > 0 {
			op.GeoM.Scale(s.W/float64(iw), s.H/float64(ih))
		}
		op.GeoM.Scale(zoom, zoom)
		op.GeoM.Translate(sx, sy)
		op.ColorScale.ScaleAlpha(float32(alpha))
		screen.DrawImage(img, op)
	}
}

func (rd *Renderer) drawVideo(screen *ebiten.Image, rt *runtime.Runtime) {
	frame := rt.VideoFrame()
	if frame == nil {
		return
	}
	img := ebiten.NewImageFromImage(frame)
	op := &ebiten.DrawImageOptions{}
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
	if iw > 0 && ih > 0 {
		op.GeoM.Scale(float64(w)/float64(iw), float64(h)/float64(ih))
	}
	screen.DrawImage(img, op)
}

func (rd *Renderer) drawHotspotDebug(screen *ebiten.Image, rt *runtime.Runtime) {
	hotspots, debug := rt.Hotspots()
	if !debug {
		return
	}
	cam := rt.CameraState()
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	zoom := cam.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	outline := color.RGBA{0xff, 0x00, 0xff, 0xff}
	for _, hs := range hotspots {
		if len(hs.Points) >= 3 {
			for i := range hs.Points {
				p0 := hs.Points[i]
				p1 := hs.Points[(i+1)%len(hs.Points)]
				x0, y0 := cam.WorldToScreen(float64(p0.X), float64(p0.Y), sw, sh)
				x1, y1 := cam.WorldToScreen(float64(p1.X), float64(p1.Y), sw, sh)
				vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), 1, outline, false)
			}
			continue
		}
		x, y := cam.WorldToScreen(float64(hs.X), float64(hs.Y), sw, sh)
		vector.StrokeRect(screen, float32(x), float32(y), float32(float64(hs.W)*zoom), float32(float64(hs.H)*zoom), 1, outline, false)
	}
}

func (rd *Renderer) drawDialogue(screen *ebiten.Image, rt *runtime.Runtime) {
	speaker, visible, active := rt.DialogueVisibleText()
	if !active {
		return
	}
	w := float32(screen.Bounds().Dx())
	h := float32(screen.Bounds().Dy())
	boxH := h / 4
	boxY := h - boxH
	vector.DrawFilledRect(screen, 0, boxY, w, boxH, color.RGBA{0, 0, 0, 0xc0}, false)

	y := int(boxY) + 20
	if speaker != "" {
		text.Draw(screen, speaker, rd.face, 16, y, color.RGBA{0xff, 0xe0, 0x80, 0xff})
		y += 18
	}
	text.Draw(screen, visible, rd.face, 16, y, color.White)
}

func (rd *Renderer) drawChoice(screen *ebiten.Image, rt *runtime.Runtime) {
	c := rt.ChoiceView()
	if c == nil {
		return
	}
	w := float32(screen.Bounds().Dx())
	x := w/2 - 200
	y := float32(120)
	if c.Prompt != "" {
		text.Draw(screen, c.Prompt, rd.face, int(x), int(y), color.White)
		y += 28
	}
	for i, opt := range c.Options {
		fill := color.RGBA{0x20, 0x20, 0x30, 0xe0}
		if i == c.Selected {
			fill = color.RGBA{0x40, 0x40, 0x70, 0xe0}
		}
		vector.DrawFilledRect(screen, x, y, 400, 24, fill, false)
		text.Draw(screen, opt.Text, rd.face, int(x)+8, int(y)+16, color.White)
		y += 30
	}
	if c.TimeoutMS > 0 {
		remain := float64(c.TimeoutMS-c.ElapsedMS) / 1000
		if remain < 0 {
			remain = 0
		}
		text.Draw(screen, fmt.Sprintf("%.0f", remain), rd.face, int(x)+410, 136, color.White)
	}
}

func (rd *Renderer) drawInput(screen *ebiten.Image, rt *runtime.Runtime) {
	prompt, buffer, active := rt.InputView()
	if !active {
		return
	}
	w := float32(screen.Bounds().Dx())
	x := w/2 - 200
	text.Draw(screen, prompt, rd.face, int(x), 150, color.White)
	vector.DrawFilledRect(screen, x, 160, 400, 24, color.RGBA{0x10, 0x10, 0x10, 0xe0}, false)
	text.Draw(screen, buffer+"_", rd.face, int(x)+6, 176, color.White)
}

func (rd *Renderer) drawNotice(screen *ebiten.Image, rt *runtime.Runtime) {
	msg := rt.NoticeText()
	if msg == "" {
		return
	}
	w := float32(screen.Bounds().Dx())
	vector.DrawFilledRect(screen, w/2-150, 20, 300, 24, color.RGBA{0, 0, 0, 0xb0}, false)
	text.Draw(screen, msg, rd.face, int(w/2)-140, 36, color.White)
}

func (rd *Renderer) drawLoading(screen *ebiten.Image, rt *runtime.Runtime) {
	loading := rt.LoadingView()
	if !loading.Active {
		return
	}
	w := screen.Bounds().Dx()
	h := screen.Bounds().Dy()
	vector.DrawFilledRect(screen, 0, 0, float32(w), float32(h), color.RGBA{0, 0, 0, 0xa0}, false)
	msg := loading.Text
	if msg == "" {
		msg = "Loading..."
	}
	text.Draw(screen, msg, rd.face, w/2-40, h/2, color.White)
}

func (rd *Renderer) drawHud(screen *ebiten.Image, rt *runtime.Runtime) {
	for _, b := range rt.HudButtons() {
		vector.DrawFilledRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), color.RGBA{0x30, 0x30, 0x30, 0xd0}, false)
		label := b.Text
		if label == "" {
			label = b.Name
		}
		text.Draw(screen, label, rd.face, b.X+6, b.Y+b.H/2+5, color.White)
	}
}

func (rd *Renderer) drawMeters(screen *ebiten.Image, rt *runtime.Runtime) {
	y := float32(10)
	for _, m := range rt.Meters() {
		frac := float32(0)
		if m.Max > m.Min {
			frac = float32(m.Value-m.Min) / float32(m.Max-m.Min)
		}
		vector.DrawFilledRect(screen, 10, y, 120, 12, color.RGBA{0x20, 0x20, 0x20, 0xd0}, false)
		vector.DrawFilledRect(screen, 10, y, 120*frac, 12, parseColor(m.Color, color.RGBA{0x40, 0xc0, 0x40, 0xff}), false)
		label := m.Label
		if label == "" {
			label = m.Variable
		}
		text.Draw(screen, label, rd.face, 136, int(y)+11, color.White)
		y += 18
	}
}

func (rd *Renderer) drawInventory(screen *ebiten.Image, rt *runtime.Runtime) {
	open, items, page := rt.InventoryView()
	if !open {
		return
	}
	w := float32(screen.Bounds().Dx())
	h := float32(screen.Bounds().Dy())
	vector.DrawFilledRect(screen, w/4, h/4, w/2, h/2, color.RGBA{0x18, 0x18, 0x20, 0xf0}, false)
	x, y := int(w/4)+16, int(h/4)+24
	text.Draw(screen, fmt.Sprintf("Items — page %d", page+1), rd.face, x, y, color.White)
	y += 24
	for _, it := range items {
		line := it.Name
		if it.Count > 1 {
			line = fmt.Sprintf("%s x%d", it.Name, it.Count)
		}
		text.Draw(screen, line, rd.face, x, y, color.White)
		y += 18
	}
}

func (rd *Renderer) drawMap(screen *ebiten.Image, rt *runtime.Runtime) {
	m := rt.MapView()
	if !m.Active {
		return
	}
	if m.Image != "" {
		img := rd.texture(m.Image)
		op := &ebiten.DrawImageOptions{}
		w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
		iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
		if iw > 0 && ih > 0 {
			op.GeoM.Scale(float64(w)/float64(iw), float64(h)/float64(ih))
		}
		screen.DrawImage(img, op)
	}
	for _, p := range m.Points {
		vector.DrawFilledCircle(screen, float32(p.X), float32(p.Y), 8, color.RGBA{0xe0, 0x40, 0x40, 0xff}, true)
		text.Draw(screen, p.Label, rd.face, p.X+12, p.Y+5, color.White)
	}
}

func (rd *Renderer) drawPhone(screen *ebiten.Image, rt *runtime.Runtime) {
	p := rt.PhoneView()
	if !p.Open {
		return
	}
	w := float32(screen.Bounds().Dx())
	h := float32(screen.Bounds().Dy())
	px, py := w-240, float32(40)
	vector.DrawFilledRect(screen, px, py, 220, h-80, color.RGBA{0x10, 0x10, 0x14, 0xf0}, false)
	y := int(py) + 24
	if p.Contact != "" {
		text.Draw(screen, p.Contact, rd.face, int(px)+10, y, color.RGBA{0x80, 0xc0, 0xff, 0xff})
		y += 22
	}
	for _, msg := range p.Messages {
		x := int(px) + 10
		if msg.Side == "right" {
			x = int(px) + 60
		}
		text.Draw(screen, msg.Text, rd.face, x, y, color.White)
		y += 18
	}
}

// parseColor reads a #RRGGBB or #RRGGBBAA hex string, returning fallback on
// anything else.
func parseColor(s string, fallback color.Color) color.Color {
	if len(s) != 7 && len(s) != 9 {
		return fallback
	}
	if s[0] != '#' {
		return fallback
	}
	var r, g, b, a uint8
	a = 0xff
	var err error
	if len(s) == 9 {
		_, err = fmt.Sscanf(s[1:], "%02x%02x%02x%02x", &r, &g, &b, &a)
	} else {
		_, err = fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b)
	}
	if err != nil {
		return fallback
	}
	return color.RGBA{r, g, b, a}
}

func scaleAlpha(c color.Color, alpha float64) color.Color {
	r, g, b, a := c.RGBA()
	return color.RGBA64{
		R: uint16(float64(r) * alpha),
		G: uint16(float64(g) * alpha),
		B: uint16(float64(b) * alpha),
		A: uint16(float64(a) * alpha),
	}
}
