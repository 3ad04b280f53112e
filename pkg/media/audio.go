// Package media wraps the playback backends: the mixed audio channels
// (music, sound effects, ambient echo, voice) and full-screen video. The
// runtime talks to the interfaces here; the Ebitengine-backed implementations
// live alongside so headless runs and tests can swap in fakes.
package media

// Audio mute targets.
const (
	MuteAll   = "all"
	MuteMusic = "music"
	MuteSFX   = "sfx"
	MuteEcho  = "echo"
	MuteVoice = "voice"
)

// Audio is the playback surface the runtime drives. Data is the raw file
// content, already fetched through the asset cache; path is used for format
// detection and busy tracking.
type Audio interface {
	// PlayMusic replaces the background music channel.
	PlayMusic(path string, data []byte, loop bool) error
	// StopMusic silences the music channel.
	StopMusic()

	// PlaySound fires a one-shot effect. Multiple effects mix freely.
	PlaySound(path string, data []byte) error
	// IsSoundBusy reports whether a one-shot started from path is still
	// audible. The cache consults this before evicting sound data.
	IsSoundBusy(path string) bool

	// StartEcho replaces the looping ambient channel.
	StartEcho(path string, data []byte) error
	// StopEcho silences the ambient channel.
	StopEcho()

	// PlayVoice replaces the voice channel.
	PlayVoice(path string, data []byte) error
	// IsVoicePlaying reports whether the voice channel is audible; the
	// wait-voice suspension polls this.
	IsVoicePlaying() bool
	// StopVoice silences the voice channel. Scene calls use it so a line
	// from the previous scene does not bleed into the next one.
	StopVoice()

	// PushPCM queues raw interleaved 16-bit stereo PCM at the mixer sample
	// rate. Video playback drains its decoded audio through here.
	PushPCM(pcm []byte)

	// Mute silences a target channel ("all" hits every channel). Muting is
	// sticky until the channel is restarted.
	Mute(target string)

	// StopAll silences every channel. Used on session clear and restore.
	StopAll()
}

// NullAudio discards all playback. It backs headless runs and keeps wait
// conditions resolvable: nothing is ever busy or playing.
type NullAudio struct{}

func (NullAudio) PlayMusic(string, []byte, bool) error { return nil }
func (NullAudio) StopMusic()                           {}
func (NullAudio) PlaySound(string, []byte) error       { return nil }
func (NullAudio) IsSoundBusy(string) bool              { return false }
func (NullAudio) StartEcho(string, []byte) error       { return nil }
func (NullAudio) StopEcho()                            {}
func (NullAudio) PlayVoice(string, []byte) error       { return nil }
func (NullAudio) IsVoicePlaying() bool                 { return false }
func (NullAudio) StopVoice()                           {}
func (NullAudio) PushPCM([]byte)                       {}
func (NullAudio) Mute(string)                          {}
func (NullAudio) StopAll()                             {}
