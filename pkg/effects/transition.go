package effects

import "math/rand"

// Transition styles. Unknown styles normalize to fade at construction.
const (
	TransFade     = "fade"
	TransWipe     = "wipe"
	TransSlide    = "slide"
	TransDissolve = "dissolve"
	TransZoom     = "zoom"
	TransBlur     = "blur"
	TransFlash    = "flash"
	TransShake    = "shake"
	TransNone     = "none"
)

// DissolveGridW and DissolveGridH set the cell grid used by the dissolve
// style. Each cell gets a random threshold at start; the cell reveals once
// progress passes its threshold.
const (
	DissolveGridW = 40
	DissolveGridH = 24
)

// Transition is one in-flight surface transition. Exit transitions remove
// their owner when they complete instead of revealing it.
type Transition struct {
	Style string
	Exit  bool

	startMS    int64
	durationMS int64

	// dissolve holds per-cell reveal thresholds in [0,1), row-major,
	// populated only for the dissolve style.
	dissolve []float64
}

// NewTransition starts a transition at nowMS. An empty or unknown style
// becomes fade; "none" and non-positive durations complete immediately. The
// rng seeds the dissolve grid and may be nil when the style is not dissolve.
func NewTransition(style string, seconds float64, exit bool, nowMS int64, rng *rand.Rand) *Transition {
	switch style {
	case TransFade, TransWipe, TransSlide, TransDissolve, TransZoom, TransBlur, TransFlash, TransShake, TransNone:
	default:
		style = TransFade
	}
	t := &Transition{
		Style:      style,
		Exit:       exit,
		startMS:    nowMS,
		durationMS: int64(seconds * 1000),
	}
	if style == TransNone {
		t.durationMS = 0
	}
	if style == TransDissolve && t.durationMS > 0 {
		if rng == nil {
			rng = rand.New(rand.NewSource(nowMS))
		}
		t.dissolve = make([]float64, DissolveGridW*DissolveGridH)
		for i := range t.dissolve {
			t.dissolve[i] = rng.Float64()
		}
	}
	return t
}

// Progress returns the transition's progress in [0,1] at nowMS. Zero-duration
// transitions are always complete.
func (t *Transition) Progress(nowMS int64) float64 {
	if t.durationMS <= 0 {
		return 1
	}
	p := float64(nowMS-t.startMS) / float64(t.durationMS)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Done reports whether the transition has completed at nowMS.
func (t *Transition) Done(nowMS int64) bool {
	return t.Progress(nowMS) >= 1
}

// Alpha returns the owner's opacity at nowMS: rising for entries, falling for
// exits. Styles other than fade and flash still use this as their base
// blend.
func (t *Transition) Alpha(nowMS int64) float64 {
	p := t.Progress(nowMS)
	if t.Exit {
		return 1 - p
	}
	return p
}

// CellRevealed reports whether the dissolve cell at (cx, cy) shows the new
// surface at nowMS. Non-dissolve transitions reveal everything once complete.
func (t *Transition) CellRevealed(cx, cy int, nowMS int64) bool {
	if t.dissolve == nil {
		return t.Done(nowMS)
	}
	if cx < 0 || cy < 0 || cx >= DissolveGridW || cy >= DissolveGridH {
		return false
	}
	p := t.Progress(nowMS)
	if t.Exit {
		p = 1 - p
		return t.dissolve[cy*DissolveGridW+cx] >= p
	}
	return t.dissolve[cy*DissolveGridW+cx] < p
}

// ShakeOffset returns the pixel displacement for the shake style at nowMS.
// The amplitude decays to zero as the transition completes.
func (t *Transition) ShakeOffset(nowMS int64) (dx, dy float64) {
	if t.Style != TransShake {
		return 0, 0
	}
	p := t.Progress(nowMS)
	if p >= 1 {
		return 0, 0
	}
	const amplitude = 12.0
	decay := amplitude * (1 - p)
	phase := float64(nowMS-t.startMS) / 30.0
	if int(phase)%2 == 0 {
		return decay, -decay / 2
	}
	return -decay, decay / 2
}
