package media

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/sawakita/hibana/pkg/logger"
)

// SampleRate is the shared output rate for every channel. Ebitengine allows
// one audio context per process, so the mixer owns it.
const SampleRate = 44100

var (
	globalAudioContext *audio.Context
	audioContextOnce   sync.Once
)

func sharedAudioContext() *audio.Context {
	audioContextOnce.Do(func() {
		globalAudioContext = audio.NewContext(SampleRate)
	})
	return globalAudioContext
}

// Mixer is the Ebitengine-backed Audio implementation: one music channel,
// one ambient echo loop, one voice channel, and freely mixing one-shot
// effects. MIDI music is synthesized through the configured SoundFont.
type Mixer struct {
	mu sync.Mutex

	ctx   *audio.Context
	synth *MIDISynth

	music *audio.Player
	echo  *audio.Player
	voice *audio.Player
	shots map[string][]*audio.Player

	pcm       *pcmStream
	pcmPlayer *audio.Player

	muted map[string]bool
}

// pcmStream is an endless stream the video audio channel reads from. Reads
// past the buffered data return silence, so the player never starves while
// the decoder catches up.
type pcmStream struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *pcmStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	n, _ := s.buf.Read(p)
	s.mu.Unlock()
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (s *pcmStream) push(pcm []byte) {
	s.mu.Lock()
	s.buf.Write(pcm)
	s.mu.Unlock()
}

func (s *pcmStream) reset() {
	s.mu.Lock()
	s.buf.Reset()
	s.mu.Unlock()
}

// NewMixer builds a mixer on the process audio context. synth may be nil when
// no SoundFont is configured; MIDI music then fails with a logged error.
func NewMixer(synth *MIDISynth) *Mixer {
	return &Mixer{
		ctx:   sharedAudioContext(),
		synth: synth,
		shots: map[string][]*audio.Player{},
		pcm:   &pcmStream{},
		muted: map[string]bool{},
	}
}

// decode picks the stream decoder by file extension. Every decoder resamples
// to the shared rate so channels mix without conversion.
func (m *Mixer) decode(path string, data []byte) (io.ReadSeeker, int64, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		s, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode wav %s: %w", path, err)
		}
		return s, s.Length(), nil
	case ".ogg":
		s, err := vorbis.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode ogg %s: %w", path, err)
		}
		return s, s.Length(), nil
	case ".mp3":
		s, err := mp3.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode mp3 %s: %w", path, err)
		}
		return s, s.Length(), nil
	default:
		return nil, 0, fmt.Errorf("unsupported audio format: %s", path)
	}
}

func isMIDI(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".mid" || ext == ".midi"
}

// PlayMusic replaces the music channel. MIDI files go through the
// synthesizer; everything else streams from the decoded data.
func (m *Mixer) PlayMusic(path string, data []byte, loop bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.music != nil {
		m.music.Close()
		m.music = nil
	}

	var src io.Reader
	if isMIDI(path) {
		if m.synth == nil {
			return fmt.Errorf("cannot play %s: no soundfont configured", path)
		}
		stream, err := m.synth.Stream(data, loop)
		if err != nil {
			return err
		}
		src = stream
	} else {
		stream, length, err := m.decode(path, data)
		if err != nil {
			return err
		}
		if loop {
			src = audio.NewInfiniteLoop(stream, length)
		} else {
			src = stream
		}
	}

	player, err := m.ctx.NewPlayer(src)
	if err != nil {
		return fmt.Errorf("failed to create music player for %s: %w", path, err)
	}
	if m.muted[MuteMusic] {
		player.SetVolume(0)
	}
	player.Play()
	m.music = player
	logger.Get().Debug("music started", "path", path, "loop", loop)
	return nil
}

// StopMusic silences the music channel.
func (m *Mixer) StopMusic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.music != nil {
		m.music.Close()
		m.music = nil
	}
}

// PlaySound fires a one-shot effect.
func (m *Mixer) PlaySound(path string, data []byte) error {
	stream, _, err := m.decode(path, data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	player, err := m.ctx.NewPlayer(stream)
	if err != nil {
		return fmt.Errorf("failed to create sfx player for %s: %w", path, err)
	}
	if m.muted[MuteSFX] {
		player.SetVolume(0)
	}
	player.Play()
	m.reapShotsLocked(path)
	m.shots[path] = append(m.shots[path], player)
	return nil
}

// reapShotsLocked drops finished one-shot players for one path.
func (m *Mixer) reapShotsLocked(path string) {
	live := m.shots[path][:0]
	for _, p := range m.shots[path] {
		if p.IsPlaying() {
			live = append(live, p)
			continue
		}
		p.Close()
	}
	if len(live) == 0 {
		delete(m.shots, path)
		return
	}
	m.shots[path] = live
}

// IsSoundBusy reports whether any one-shot from path is still playing.
func (m *Mixer) IsSoundBusy(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reapShotsLocked(path)
	return len(m.shots[path]) > 0
}

// StartEcho replaces the looping ambient channel.
func (m *Mixer) StartEcho(path string, data []byte) error {
	stream, length, err := m.decode(path, data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.echo != nil {
		m.echo.Close()
	}
	player, err := m.ctx.NewPlayer(audio.NewInfiniteLoop(stream, length))
	if err != nil {
		return fmt.Errorf("failed to create echo player for %s: %w", path, err)
	}
	if m.muted[MuteEcho] {
		player.SetVolume(0)
	}
	player.Play()
	m.echo = player
	return nil
}

// StopEcho silences the ambient channel.
func (m *Mixer) StopEcho() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.echo != nil {
		m.echo.Close()
		m.echo = nil
	}
}

// PlayVoice replaces the voice channel.
func (m *Mixer) PlayVoice(path string, data []byte) error {
	stream, _, err := m.decode(path, data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.voice != nil {
		m.voice.Close()
	}
	player, err := m.ctx.NewPlayer(stream)
	if err != nil {
		return fmt.Errorf("failed to create voice player for %s: %w", path, err)
	}
	if m.muted[MuteVoice] {
		player.SetVolume(0)
	}
	player.Play()
	m.voice = player
	return nil
}

// StopVoice silences the voice channel.
func (m *Mixer) StopVoice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voice != nil {
		m.voice.Close()
		m.voice = nil
	}
}

// IsVoicePlaying reports whether the voice channel is audible.
func (m *Mixer) IsVoicePlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voice != nil && m.voice.IsPlaying()
}

// PushPCM queues raw video audio on its own channel, creating the player on
// first use. The channel mutes with the effects target.
func (m *Mixer) PushPCM(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pcmPlayer == nil {
		player, err := m.ctx.NewPlayer(m.pcm)
		if err != nil {
			logger.Get().Warn("video audio player failed", "error", err)
			return
		}
		if m.muted[MuteSFX] {
			player.SetVolume(0)
		}
		player.Play()
		m.pcmPlayer = player
	}
	m.pcm.push(pcm)
}

// Mute silences a channel. Live players drop to zero volume; the flag also
// applies to players created afterwards.
func (m *Mixer) Mute(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	targets := []string{target}
	if target == MuteAll {
		targets = []string{MuteMusic, MuteSFX, MuteEcho, MuteVoice}
	}
	for _, t := range targets {
		m.muted[t] = true
		switch t {
		case MuteMusic:
			if m.music != nil {
				m.music.SetVolume(0)
			}
		case MuteEcho:
			if m.echo != nil {
				m.echo.SetVolume(0)
			}
		case MuteVoice:
			if m.voice != nil {
				m.voice.SetVolume(0)
			}
		case MuteSFX:
			for _, players := range m.shots {
				for _, p := range players {
					p.SetVolume(0)
				}
			}
			if m.pcmPlayer != nil {
				m.pcmPlayer.SetVolume(0)
			}
		}
	}
}

// StopAll silences every channel and clears mute flags.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.music != nil {
		m.music.Close()
		m.music = nil
	}
	if m.echo != nil {
		m.echo.Close()
		m.echo = nil
	}
	if m.voice != nil {
		m.voice.Close()
		m.voice = nil
	}
	for path, players := range m.shots {
		for _, p := range players {
			p.Close()
		}
		delete(m.shots, path)
	}
	if m.pcmPlayer != nil {
		m.pcmPlayer.Close()
		m.pcmPlayer = nil
	}
	m.pcm.reset()
	m.muted = map[string]bool{}
}
