// Package effects implements the runtime's timed visual effects: property
// animation tracks on sprites and full-surface transitions. Both advance on
// wall-clock milliseconds supplied by the caller, so they stay deterministic
// under test.
package effects

// Properties a track can animate. A sprite carries at most one live track per
// property; starting a new one replaces the old.
const (
	PropMove  = "move"
	PropSize  = "size"
	PropAlpha = "alpha"
)

// Track animates one property of one sprite from a starting pair of values to
// a target pair over a fixed duration. Move uses both components (x, y), size
// uses both (w, h), alpha uses only the first.
type Track struct {
	Sprite   string
	Property string

	FromA, FromB float64
	ToA, ToB     float64

	startMS    int64
	durationMS int64
	ease       EaseFunc
}

// NewTrack builds a track starting at nowMS. A non-positive duration produces
// a track that completes on its first evaluation.
func NewTrack(sprite, property string, fromA, fromB, toA, toB, seconds float64, ease string, nowMS int64) Track {
	return Track{
		Sprite:     sprite,
		Property:   property,
		FromA:      fromA,
		FromB:      fromB,
		ToA:        toA,
		ToB:        toB,
		startMS:    nowMS,
		durationMS: int64(seconds * 1000),
		ease:       EaseByName(ease),
	}
}

// Progress returns the raw (un-eased) progress in [0,1] at nowMS.
func (t Track) Progress(nowMS int64) float64 {
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

// Values returns the eased property values at nowMS and whether the track has
// run to completion. Completed tracks always report their exact target.
func (t Track) Values(nowMS int64) (a, b float64, done bool) {
	p := t.Progress(nowMS)
	if p >= 1 {
		return t.ToA, t.ToB, true
	}
	e := t.ease(p)
	return t.FromA + (t.ToA-t.FromA)*e, t.FromB + (t.ToB-t.FromB)*e, false
}

// TrackValue is one evaluated track: the target sprite, the property, and its
// current values.
type TrackValue struct {
	Sprite   string
	Property string
	A, B     float64
	Done     bool
}

// TrackSet holds the live animation tracks, keyed by sprite and property.
type TrackSet struct {
	tracks map[trackKey]Track
	order  []trackKey
}

type trackKey struct {
	sprite, property string
}

// NewTrackSet returns an empty track set.
func NewTrackSet() *TrackSet {
	return &TrackSet{tracks: map[trackKey]Track{}}
}

// Start installs a track, replacing any live track on the same sprite and
// property.
func (s *TrackSet) Start(t Track) {
	key := trackKey{t.Sprite, t.Property}
	if _, exists := s.tracks[key]; !exists {
		s.order = append(s.order, key)
	}
	s.tracks[key] = t
}

// Stop removes every track attached to the sprite.
func (s *TrackSet) Stop(sprite string) {
	kept := s.order[:0]
	for _, key := range s.order {
		if key.sprite == sprite {
			delete(s.tracks, key)
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
}

// Clear removes all tracks.
func (s *TrackSet) Clear() {
	s.tracks = map[trackKey]Track{}
	s.order = nil
}

// Len reports the number of live tracks.
func (s *TrackSet) Len() int { return len(s.tracks) }

// Has reports whether a track is live for the sprite and property.
func (s *TrackSet) Has(sprite, property string) bool {
	_, ok := s.tracks[trackKey{sprite, property}]
	return ok
}

// Advance evaluates every track at nowMS in insertion order and removes the
// ones that completed. Each completed track still yields one final value at
// its exact target, so callers never miss the end state.
func (s *TrackSet) Advance(nowMS int64) []TrackValue {
	if len(s.order) == 0 {
		return nil
	}
	values := make([]TrackValue, 0, len(s.order))
	kept := s.order[:0]
	for _, key := range s.order {
		t := s.tracks[key]
		a, b, done := t.Values(nowMS)
		values = append(values, TrackValue{
			Sprite:   t.Sprite,
			Property: t.Property,
			A:        a,
			B:        b,
			Done:     done,
		})
		if done {
			delete(s.tracks, key)
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return values
}
