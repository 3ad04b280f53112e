package effects

// EaseFunc maps a normalized time t in [0,1] to an eased progress in [0,1].
type EaseFunc func(t float64) float64

// EaseLinear is the identity curve.
func EaseLinear(t float64) float64 { return t }

// EaseIn accelerates from rest.
func EaseIn(t float64) float64 { return t * t }

// EaseOut decelerates to rest.
func EaseOut(t float64) float64 { return 1 - (1-t)*(1-t) }

// EaseInOut accelerates through the first half and decelerates through the
// second.
func EaseInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - 2*(1-t)*(1-t)
}

// EaseByName resolves an easing name, defaulting to linear for anything
// unrecognized.
func EaseByName(name string) EaseFunc {
	switch name {
	case "in":
		return EaseIn
	case "out":
		return EaseOut
	case "inout":
		return EaseInOut
	default:
		return EaseLinear
	}
}
