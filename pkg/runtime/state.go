package runtime

import "github.com/sawakita/hibana/pkg/script"

// Background is the active backdrop: an image path or a flat color.
type Background struct {
	Kind       string
	Value      string
	FloatAmp   float64
	FloatSpeed float64
}

// Sprite is one live display object. Character sprites additionally record
// the character and expression that produced them, so saves can rebuild them.
type Sprite struct {
	Name       string
	Kind       string
	Value      string
	X, Y       float64
	W, H       float64
	Anchor     string
	Z          int
	Alpha      float64
	FloatAmp   float64
	FloatSpeed float64
	Character  string
	Expression string
}

// InventoryItem is one inventory row. Count never drops below 1; a removal
// that would take it to zero removes the row.
type InventoryItem struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Count       int
}

// MeterState is one variable-bound HUD meter.
type MeterState struct {
	Variable string
	Label    string
	Min, Max int
	Color    string
	Visible  bool
}

// HudButton is one persistent on-screen button.
type HudButton struct {
	Name   string
	Style  string
	Text   string
	Icon   string
	X, Y   int
	W, H   int
	Target string
}

// Hotspot is one clickable region in world coordinates. Rectangles have W
// and H; polygons have Points.
type Hotspot struct {
	Name   string
	X, Y   int
	W, H   int
	Points []script.Point
	Target string
}

// contains tests a world-space point against the hotspot.
func (h Hotspot) contains(wx, wy float64) bool {
	if len(h.Points) >= 3 {
		return pointInPolygon(wx, wy, h.Points)
	}
	return wx >= float64(h.X) && wx < float64(h.X+h.W) &&
		wy >= float64(h.Y) && wy < float64(h.Y+h.H)
}

// pointInPolygon is a standard even-odd ray cast.
func pointInPolygon(x, y float64, pts []script.Point) bool {
	inside := false
	j := len(pts) - 1
	for i := 0; i < len(pts); i++ {
		xi, yi := float64(pts[i].X), float64(pts[i].Y)
		xj, yj := float64(pts[j].X), float64(pts[j].Y)
		if (yi > y) != (yj > y) &&
			x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// MapPoint is one point of interest on the overworld map. Points, when
// present, outline a clickable polygon; otherwise clicks hit-test against a
// radius around X,Y.
type MapPoint struct {
	Label  string
	X, Y   int
	Points []script.Point
	Target string
}

// MapState is the overworld map overlay.
type MapState struct {
	Active bool
	Image  string
	Points []MapPoint
}

// PhoneMessage is one bubble in the phone overlay.
type PhoneMessage struct {
	Side string
	Text string
}

// PhoneState is the phone conversation overlay.
type PhoneState struct {
	Open     bool
	Contact  string
	Messages []PhoneMessage
}

// Camera pans and zooms the world. Zoom 1 with zero pan is identity.
type Camera struct {
	PanX, PanY float64
	Zoom       float64
}

// screenToWorld inverts the camera transform around the screen center.
func (c Camera) screenToWorld(sx, sy float64, screenW, screenH int) (float64, float64) {
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	cx, cy := float64(screenW)/2, float64(screenH)/2
	wx := (sx-cx)/zoom + cx + c.PanX
	wy := (sy-cy)/zoom + cy + c.PanY
	return wx, wy
}

// WorldToScreen maps a world point to screen space under the camera. The
// renderer uses the same transform, so hit testing and drawing agree.
func (c Camera) WorldToScreen(wx, wy float64, screenW, screenH int) (float64, float64) {
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	cx, cy := float64(screenW)/2, float64(screenH)/2
	sx := (wx-c.PanX-cx)*zoom + cx
	sy := (wy-c.PanY-cy)*zoom + cy
	return sx, sy
}

// Dialogue is the active dialogue line during a dialogue suspension.
type Dialogue struct {
	Speaker string
	Text    string
	// revealStartMS stamps when the reveal began; the visible prefix grows
	// at the configured characters-per-second rate.
	revealStartMS int64
	revealDone    bool
}

// VisibleRunes returns how many runes of Text are revealed at nowMS.
func (d *Dialogue) VisibleRunes(nowMS int64, charsPerSecond float64) int {
	runes := []rune(d.Text)
	if d.revealDone || charsPerSecond <= 0 {
		return len(runes)
	}
	n := int(float64(nowMS-d.revealStartMS) / 1000.0 * charsPerSecond)
	if n >= len(runes) {
		return len(runes)
	}
	if n < 0 {
		return 0
	}
	return n
}

// ChoiceState is the pending choice during a choice suspension.
type ChoiceState struct {
	Prompt   string
	Options  []script.ChoiceOption
	Selected int

	// Timeout bookkeeping, zero when the choice has no timeout. ElapsedMS
	// accumulates across save/restore so a restored choice keeps counting
	// from where it stopped.
	TimeoutMS      int64
	TimeoutDefault int
	ElapsedMS      int64
	lastTickMS     int64
}

// InputState is the pending free-text entry during an input suspension.
type InputState struct {
	Variable string
	Prompt   string
	Buffer   []rune
}

// Notice is a transient toast.
type Notice struct {
	Text    string
	UntilMS int64
}

// LoadingState drives the loading overlay: it stays visible at least the
// configured minimum once shown, so fast loads don't flash. HideAtMS is set
// when the overlay has been asked to end before the minimum passed; the
// update loop takes it down at that stamp.
type LoadingState struct {
	Active   bool
	Text     string
	ShownMS  int64
	HideAtMS int64
}
