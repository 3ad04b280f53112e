package app

import (
	"os"

	"github.com/sawakita/hibana/pkg/fileutil"
)

// DefaultSoundFontName is the SoundFont filename searched for when the
// configuration does not name one.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// FindSoundFont locates the SF2 file used for MIDI playback. Search order:
//
//  1. the configured path, relative to the project directory
//  2. the project directory, case-insensitive
//  3. the current directory, case-insensitive
//
// Returns "" when nothing is found; MIDI music then degrades to silence.
func FindSoundFont(projectDir, configured string) string {
	if configured != "" {
		p := fileutil.Resolve(projectDir, configured)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
		return ""
	}

	if p, err := fileutil.FindFileCaseInsensitive(projectDir, DefaultSoundFontName); err == nil {
		return p
	}
	if cwd, err := os.Getwd(); err == nil {
		if p, err := fileutil.FindFileCaseInsensitive(cwd, DefaultSoundFontName); err == nil {
			return p
		}
	}
	return ""
}
