package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// MIDISynth renders MIDI files to PCM through a SoundFont. One synth is
// shared by the mixer; each playback gets its own sequencer stream.
type MIDISynth struct {
	soundFont *meltysynth.SoundFont
}

// NewMIDISynth parses a SoundFont from raw .sf2 data.
func NewMIDISynth(soundFontData []byte) (*MIDISynth, error) {
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(soundFontData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse soundfont: %w", err)
	}
	return &MIDISynth{soundFont: sf}, nil
}

// Stream builds a PCM stream for one MIDI file. The stream emits 16-bit
// little-endian stereo at the mixer's sample rate and reports EOF once a
// non-looping file has fully sounded.
func (s *MIDISynth) Stream(midiData []byte, loop bool) (io.Reader, error) {
	midiFile, err := meltysynth.NewMidiFile(bytes.NewReader(midiData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI file: %w", err)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synthesizer, err := meltysynth.NewSynthesizer(s.soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	sequencer := meltysynth.NewMidiFileSequencer(synthesizer)
	sequencer.Play(midiFile, loop)

	// Trailing second lets releases ring out past the last event.
	total := int64(midiFile.GetLength().Seconds()*SampleRate) + SampleRate
	return &midiStream{
		sequencer:    sequencer,
		loop:         loop,
		totalSamples: total,
	}, nil
}

type midiStream struct {
	mu           sync.Mutex
	sequencer    *meltysynth.MidiFileSequencer
	loop         bool
	rendered     int64
	totalSamples int64
}

// Read renders the next block of samples. 4 bytes per frame: interleaved
// 16-bit stereo.
func (ms *midiStream) Read(p []byte) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.loop && ms.rendered >= ms.totalSamples {
		return 0, io.EOF
	}

	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	left := make([]float32, frames)
	right := make([]float32, frames)
	ms.sequencer.Render(left, right)

	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(p[i*4:], uint16(int16(clampSample(left[i])*32767)))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(int16(clampSample(right[i])*32767)))
	}
	ms.rendered += int64(frames)
	return frames * 4, nil
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
