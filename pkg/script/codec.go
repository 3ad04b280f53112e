package script

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sawakita/hibana/pkg/fileutil"
)

// FormatVersion is the compiled-program document version this package reads
// and writes.
const FormatVersion = 1

// envelope is the on-disk shape of one command: a discriminator tag plus the
// command's own fields.
type envelope struct {
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

type programDoc struct {
	FormatVersion int            `json:"format_version"`
	Commands      []envelope     `json:"commands"`
	Labels        map[string]int `json:"labels"`
}

// decoders maps command tags to fresh instances for unmarshalling.
// The zoo here is the closed union: adding a command means adding a tag.
var decoders = map[string]func() Command{
	"label":          func() Command { return &Label{} },
	"say":            func() Command { return &Say{} },
	"choice":         func() Command { return &Choice{} },
	"jump":           func() Command { return &Jump{} },
	"if_jump":        func() Command { return &IfJump{} },
	"set":            func() Command { return &SetVar{} },
	"add":            func() Command { return &AddVar{} },
	"scene":          func() Command { return &Scene{} },
	"show":           func() Command { return &Show{} },
	"show_char":      func() Command { return &ShowChar{} },
	"hide":           func() Command { return &Hide{} },
	"blend":          func() Command { return &Blend{} },
	"animate":        func() Command { return &Animate{} },
	"camera":         func() Command { return &CameraSet{} },
	"wait":           func() Command { return &Wait{} },
	"wait_voice":     func() Command { return &WaitVoice{} },
	"wait_video":     func() Command { return &WaitVideo{} },
	"music":          func() Command { return &Music{} },
	"sound":          func() Command { return &Sound{} },
	"echo":           func() Command { return &Echo{} },
	"voice":          func() Command { return &Voice{} },
	"mute":           func() Command { return &Mute{} },
	"video":          func() Command { return &Video{} },
	"preload":        func() Command { return &Preload{} },
	"cache_pin":      func() Command { return &CachePin{} },
	"cache_unpin":    func() Command { return &CacheUnpin{} },
	"cache_clear":    func() Command { return &CacheClear{} },
	"gc":             func() Command { return &GarbageCollect{} },
	"hotspot_add":    func() Command { return &HotspotAdd{} },
	"hotspot_poly":   func() Command { return &HotspotPoly{} },
	"hotspot_remove": func() Command { return &HotspotRemove{} },
	"hotspot_debug":  func() Command { return &HotspotDebug{} },
	"hud_add":        func() Command { return &HudAdd{} },
	"hud_remove":     func() Command { return &HudRemove{} },
	"meter":          func() Command { return &Meter{} },
	"item":           func() Command { return &Item{} },
	"map":            func() Command { return &Map{} },
	"phone":          func() Command { return &Phone{} },
	"input":          func() Command { return &Input{} },
	"notify":         func() Command { return &Notify{} },
	"loading":        func() Command { return &Loading{} },
	"call":           func() Command { return &Call{} },
	"save":           func() Command { return &Save{} },
	"load":           func() Command { return &Load{} },
	"character":      func() Command { return &CharacterDef{} },
}

// Tag returns the wire discriminator for a command.
func Tag(cmd Command) string {
	switch cmd.(type) {
	case Label, *Label:
		return "label"
	case Say, *Say:
		return "say"
	case Choice, *Choice:
		return "choice"
	case Jump, *Jump:
		return "jump"
	case IfJump, *IfJump:
		return "if_jump"
	case SetVar, *SetVar:
		return "set"
	case AddVar, *AddVar:
		return "add"
	case Scene, *Scene:
		return "scene"
	case Show, *Show:
		return "show"
	case ShowChar, *ShowChar:
		return "show_char"
	case Hide, *Hide:
		return "hide"
	case Blend, *Blend:
		return "blend"
	case Animate, *Animate:
		return "animate"
	case CameraSet, *CameraSet:
		return "camera"
	case Wait, *Wait:
		return "wait"
	case WaitVoice, *WaitVoice:
		return "wait_voice"
	case WaitVideo, *WaitVideo:
		return "wait_video"
	case Music, *Music:
		return "music"
	case Sound, *Sound:
		return "sound"
	case Echo, *Echo:
		return "echo"
	case Voice, *Voice:
		return "voice"
	case Mute, *Mute:
		return "mute"
	case Video, *Video:
		return "video"
	case Preload, *Preload:
		return "preload"
	case CachePin, *CachePin:
		return "cache_pin"
	case CacheUnpin, *CacheUnpin:
		return "cache_unpin"
	case CacheClear, *CacheClear:
		return "cache_clear"
	case GarbageCollect, *GarbageCollect:
		return "gc"
	case HotspotAdd, *HotspotAdd:
		return "hotspot_add"
	case HotspotPoly, *HotspotPoly:
		return "hotspot_poly"
	case HotspotRemove, *HotspotRemove:
		return "hotspot_remove"
	case HotspotDebug, *HotspotDebug:
		return "hotspot_debug"
	case HudAdd, *HudAdd:
		return "hud_add"
	case HudRemove, *HudRemove:
		return "hud_remove"
	case Meter, *Meter:
		return "meter"
	case Item, *Item:
		return "item"
	case Map, *Map:
		return "map"
	case Phone, *Phone:
		return "phone"
	case Input, *Input:
		return "input"
	case Notify, *Notify:
		return "notify"
	case Loading, *Loading:
		return "loading"
	case Call, *Call:
		return "call"
	case Save, *Save:
		return "save"
	case Load, *Load:
		return "load"
	case CharacterDef, *CharacterDef:
		return "character"
	default:
		return ""
	}
}

// Marshal serializes a Program into the compiled-program JSON document.
func Marshal(prog *Program) ([]byte, error) {
	doc := programDoc{
		FormatVersion: FormatVersion,
		Commands:      make([]envelope, 0, len(prog.Commands)),
		Labels:        prog.Labels,
	}
	for i, cmd := range prog.Commands {
		tag := Tag(cmd)
		if tag == "" {
			return nil, fmt.Errorf("command %d has unknown type %T", i, cmd)
		}
		args, err := json.Marshal(cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal command %d (%s): %w", i, tag, err)
		}
		doc.Commands = append(doc.Commands, envelope{Cmd: tag, Args: args})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal parses a compiled-program JSON document and validates its label
// table. Unknown command tags are an error: the document was produced by an
// incompatible compiler.
func Unmarshal(data []byte) (*Program, error) {
	var doc programDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse program document: %w", err)
	}
	if doc.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("unsupported program format version %d (max %d)", doc.FormatVersion, FormatVersion)
	}

	prog := &Program{
		Commands: make([]Command, 0, len(doc.Commands)),
		Labels:   doc.Labels,
	}
	if prog.Labels == nil {
		prog.Labels = map[string]int{}
	}

	for i, env := range doc.Commands {
		factory, ok := decoders[env.Cmd]
		if !ok {
			return nil, fmt.Errorf("command %d: unknown command tag %q", i, env.Cmd)
		}
		cmd := factory()
		if len(env.Args) > 0 {
			if err := json.Unmarshal(env.Args, cmd); err != nil {
				return nil, fmt.Errorf("command %d (%s): %w", i, env.Cmd, err)
			}
		}
		prog.Commands = append(prog.Commands, deref(cmd))
	}

	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

// LoadFile reads and parses a compiled program from disk. Script sources are
// decoded to UTF-8 first, so documents written by legacy tooling still load.
func LoadFile(path string) (*Program, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program %s: %w", path, err)
	}
	text, err := fileutil.DecodeScriptSource(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode program %s: %w", path, err)
	}
	prog, err := Unmarshal([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Validate checks the compiler contract: every jump-like target must resolve
// to an entry in the label table.
func (p *Program) Validate() error {
	check := func(i int, target string) error {
		if target == "" {
			return nil
		}
		// Targets with a "::" prefix resolve in the entry script at jump
		// time, not here.
		if len(target) > 2 && target[:2] == "::" {
			return nil
		}
		if _, ok := p.Labels[target]; !ok {
			return fmt.Errorf("command %d: jump target %q not in label table", i, target)
		}
		return nil
	}

	for i, cmd := range p.Commands {
		var err error
		switch c := cmd.(type) {
		case Jump:
			err = check(i, c.Target)
		case IfJump:
			err = check(i, c.Target)
		case Choice:
			for _, opt := range c.Options {
				if err = check(i, opt.Target); err != nil {
					break
				}
			}
		case HotspotAdd:
			err = check(i, c.Target)
		case HotspotPoly:
			err = check(i, c.Target)
		case Map:
			if c.Action == "poi" {
				err = check(i, c.Target)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *Label:
		return *c
	case *Say:
		return *c
	case *Choice:
		return *c
	case *Jump:
		return *c
	case *IfJump:
		return *c
	case *SetVar:
		return *c
	case *AddVar:
		return *c
	case *Scene:
		return *c
	case *Show:
		return *c
	case *ShowChar:
		return *c
	case *Hide:
		return *c
	case *Blend:
		return *c
	case *Animate:
		return *c
	case *CameraSet:
		return *c
	case *Wait:
		return *c
	case *WaitVoice:
		return *c
	case *WaitVideo:
		return *c
	case *Music:
		return *c
	case *Sound:
		return *c
	case *Echo:
		return *c
	case *Voice:
		return *c
	case *Mute:
		return *c
	case *Video:
		return *c
	case *Preload:
		return *c
	case *CachePin:
		return *c
	case *CacheUnpin:
		return *c
	case *CacheClear:
		return *c
	case *GarbageCollect:
		return *c
	case *HotspotAdd:
		return *c
	case *HotspotPoly:
		return *c
	case *HotspotRemove:
		return *c
	case *HotspotDebug:
		return *c
	case *HudAdd:
		return *c
	case *HudRemove:
		return *c
	case *Meter:
		return *c
	case *Item:
		return *c
	case *Map:
		return *c
	case *Phone:
		return *c
	case *Input:
		return *c
	case *Notify:
		return *c
	case *Loading:
		return *c
	case *Call:
		return *c
	case *Save:
		return *c
	case *Load:
		return *c
	case *CharacterDef:
		return *c
	default:
		return cmd
	}
}
