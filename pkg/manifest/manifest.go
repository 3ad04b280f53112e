// Package manifest derives the asset needs of a compiled script: every
// background, sprite, audio file, video file, and called script it can
// reference. The build is a pure function of the command list and is used to
// prefetch assets before a scene starts and to decide what the cache may
// evict afterwards.
package manifest

import (
	"sort"
	"strings"

	"github.com/sawakita/hibana/pkg/script"
)

// Manifest lists the asset paths a program can reference, split by domain.
// Each slice is sorted and free of duplicates.
type Manifest struct {
	Backgrounds []string
	Sprites     []string
	Audio       []string
	Video       []string
	Scripts     []string
}

// Build walks a command list and collects its asset references. Character
// definitions are gathered in a first pass so a ShowChar earlier in the list
// still resolves against a later definition. Commands with missing or
// unresolvable paths are skipped; a manifest build never fails.
func Build(commands []script.Command) Manifest {
	chars := map[string]script.CharacterDef{}
	for _, cmd := range commands {
		if def, ok := cmd.(script.CharacterDef); ok && def.ID != "" {
			chars[def.ID] = def
		}
	}

	backgrounds := map[string]struct{}{}
	sprites := map[string]struct{}{}
	audio := map[string]struct{}{}
	video := map[string]struct{}{}
	scripts := map[string]struct{}{}

	add := func(set map[string]struct{}, path string) {
		if path != "" {
			set[path] = struct{}{}
		}
	}

	for _, cmd := range commands {
		switch c := cmd.(type) {
		case script.Scene:
			if c.Kind == "image" {
				add(backgrounds, c.Value)
			}
		case script.Show:
			if c.Kind == "image" {
				add(sprites, c.Value)
			}
		case script.ShowChar:
			add(sprites, resolveCharSprite(chars, c.ID, c.Expression))
		case script.CharacterDef:
			// Only the expressions a ShowChar actually names are needed,
			// and those are collected at the ShowChar itself.
		case script.Music:
			add(audio, c.Path)
		case script.Sound:
			add(audio, c.Path)
		case script.Echo:
			if c.Action == "start" {
				add(audio, c.Path)
			}
		case script.Voice:
			add(audio, ResolveVoicePath(chars, c.Character, c.Path))
		case script.Video:
			if c.Action == "play" {
				add(video, c.Path)
			}
		case script.Preload:
			switch c.Kind {
			case "bg":
				add(backgrounds, c.Path)
			case "sprite":
				add(sprites, c.Path)
			case "audio":
				add(audio, c.Path)
			case "video":
				add(video, c.Path)
			case "script":
				add(scripts, c.Path)
			}
		case script.HudAdd:
			add(sprites, c.Icon)
		case script.Item:
			if c.Action == "add" {
				add(sprites, c.Icon)
			}
		case script.Map:
			if c.Action == "show" {
				add(backgrounds, c.Value)
			}
		case script.Call:
			add(scripts, c.Path)
		}
	}

	return Manifest{
		Backgrounds: sortedKeys(backgrounds),
		Sprites:     sortedKeys(sprites),
		Audio:       sortedKeys(audio),
		Video:       sortedKeys(video),
		Scripts:     sortedKeys(scripts),
	}
}

// resolveCharSprite maps a character and expression to a sprite path via the
// character's sprite table, falling back to the "default" expression. Without
// a sprite table, an expression that names a file directly is the path.
func resolveCharSprite(chars map[string]script.CharacterDef, id, expression string) string {
	def, ok := chars[id]
	if !ok || len(def.Sprites) == 0 {
		if IsRawSpritePath(expression) {
			return expression
		}
		return ""
	}
	if expression == "" {
		expression = "default"
	}
	if path, ok := def.Sprites[expression]; ok {
		return path
	}
	return def.Sprites["default"]
}

// IsRawSpritePath reports whether an expression names a sprite file directly
// (a path or filename) rather than a sprite-table key.
func IsRawSpritePath(expression string) bool {
	return strings.ContainsAny(expression, "/\\.")
}

// ResolveVoicePath applies a character's voice tag as a directory prefix when
// the path carries no directory component of its own.
func ResolveVoicePath(chars map[string]script.CharacterDef, characterID, path string) string {
	if path == "" {
		return ""
	}
	if strings.ContainsAny(path, "/\\") {
		return path
	}
	if def, ok := chars[characterID]; ok && def.VoiceTag != "" {
		return def.VoiceTag + "/" + path
	}
	return path
}

// ImageKeep returns the background and sprite paths as one lookup set, the
// shape the image cache pruner consumes.
func (m Manifest) ImageKeep() map[string]struct{} {
	keep := make(map[string]struct{}, len(m.Backgrounds)+len(m.Sprites))
	for _, p := range m.Backgrounds {
		keep[p] = struct{}{}
	}
	for _, p := range m.Sprites {
		keep[p] = struct{}{}
	}
	return keep
}

// AudioKeep returns the audio paths as a lookup set for the sound cache
// pruner.
func (m Manifest) AudioKeep() map[string]struct{} {
	keep := make(map[string]struct{}, len(m.Audio))
	for _, p := range m.Audio {
		keep[p] = struct{}{}
	}
	return keep
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
