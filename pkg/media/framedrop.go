package media

// FramedropConfig tunes the adaptive policy.
type FramedropConfig struct {
	// LagThresholdMS turns dropping on when presentation falls this far
	// behind the clock.
	LagThresholdMS int64
	// QueueDepthThreshold turns dropping on when this many decoded frames
	// are waiting.
	QueueDepthThreshold int
	// CooldownFrames is how many consecutive healthy frames must pass
	// before dropping turns back off.
	CooldownFrames int
}

// DefaultFramedropConfig matches the engine defaults.
func DefaultFramedropConfig() FramedropConfig {
	return FramedropConfig{
		LagThresholdMS:      80,
		QueueDepthThreshold: 6,
		CooldownFrames:      30,
	}
}

// FramedropController decides, frame by frame, whether a late video frame
// should be skipped instead of presented. "on" always drops late frames,
// "off" never does, and "adaptive" switches dropping on under sustained lag
// and off again after a cooldown of healthy frames.
type FramedropController struct {
	mode     string
	cfg      FramedropConfig
	dropping bool
	healthy  int
}

// NewFramedropController builds a controller. Unknown modes behave as "off".
func NewFramedropController(mode string, cfg FramedropConfig) *FramedropController {
	switch mode {
	case FramedropOn, FramedropOff, FramedropAdaptive:
	default:
		mode = FramedropOff
	}
	return &FramedropController{mode: mode, cfg: cfg}
}

// SetMode switches the policy. Adaptive state resets.
func (f *FramedropController) SetMode(mode string) {
	switch mode {
	case FramedropOn, FramedropOff, FramedropAdaptive:
		f.mode = mode
	default:
		f.mode = FramedropOff
	}
	f.dropping = false
	f.healthy = 0
}

// Mode returns the current policy.
func (f *FramedropController) Mode() string { return f.mode }

// Dropping reports whether the controller is currently in the dropping state.
// Only meaningful for the adaptive mode; the fixed modes report their
// constant behavior.
func (f *FramedropController) Dropping() bool {
	switch f.mode {
	case FramedropOn:
		return true
	case FramedropOff:
		return false
	}
	return f.dropping
}

// ShouldDrop is called once per decoded frame with the current lag and queue
// depth, and reports whether a late frame should be skipped this frame.
func (f *FramedropController) ShouldDrop(lagMS int64, queueDepth int) bool {
	switch f.mode {
	case FramedropOn:
		return true
	case FramedropOff:
		return false
	}

	stressed := lagMS > f.cfg.LagThresholdMS || queueDepth > f.cfg.QueueDepthThreshold
	if stressed {
		f.dropping = true
		f.healthy = 0
		return true
	}
	if f.dropping {
		f.healthy++
		if f.healthy >= f.cfg.CooldownFrames {
			f.dropping = false
			f.healthy = 0
		}
	}
	return f.dropping
}
