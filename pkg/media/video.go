package media

import "image"

// Framedrop modes for video playback.
const (
	FramedropOff      = "off"
	FramedropOn       = "on"
	FramedropAdaptive = "adaptive"
)

// AudioPacket is one block of decoded video audio, interleaved 16-bit stereo
// at the mixer sample rate, stamped with its presentation time.
type AudioPacket struct {
	PTSMillis int64
	PCM       []byte
}

// VideoStats is a playback health snapshot.
type VideoStats struct {
	FramesDecoded  int64
	FramesDropped  int64
	PacketsDecoded int64
	PacketsDropped int64
	// LagMS is how far the last presented frame trailed the clock.
	LagMS int64
	// QueueDepth is the number of decoded frames waiting for presentation.
	QueueDepth int
	// Stalled is set while the decoder cannot keep up with the clock at all.
	Stalled bool
}

// VideoPlayback is one in-flight video. The runtime pumps Update every frame
// with its monotonic clock and presents whatever frame comes back.
type VideoPlayback interface {
	// Update advances playback to nowMS. It returns the frame to present
	// (nil when the current frame is unchanged) and whether playback has
	// finished. Looping playbacks never finish.
	Update(nowMS int64) (frame image.Image, finished bool)
	// DrainAudioPackets hands decoded audio to the caller for mixing.
	DrainAudioPackets() []AudioPacket
	// Stats reports playback health counters.
	Stats() VideoStats
	// SetFramedrop switches the drop policy mid-playback.
	SetFramedrop(mode string)
	// Close releases decoder resources. Safe to call more than once.
	Close() error
}

// VideoBackend opens video files. The decoder itself is pluggable; headless
// runs use NullVideoBackend.
type VideoBackend interface {
	Open(path string, loop, audioEnabled bool, framedrop string) (VideoPlayback, error)
}

// NullVideoBackend produces playbacks that finish on their first update, so
// scripts that play video still run to completion without a decoder.
type NullVideoBackend struct{}

func (NullVideoBackend) Open(path string, loop, audioEnabled bool, framedrop string) (VideoPlayback, error) {
	return &nullPlayback{loop: loop}, nil
}

type nullPlayback struct{ loop bool }

func (p *nullPlayback) Update(nowMS int64) (image.Image, bool) { return nil, !p.loop }
func (p *nullPlayback) DrainAudioPackets() []AudioPacket       { return nil }
func (p *nullPlayback) Stats() VideoStats                      { return VideoStats{} }
func (p *nullPlayback) SetFramedrop(string)                    {}
func (p *nullPlayback) Close() error                           { return nil }
