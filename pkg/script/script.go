// Package script defines the compiled program model consumed by the runtime:
// an ordered command list plus a label table, produced by the script
// compiler. Commands form a closed tagged union; the runtime dispatches on
// the concrete type in a single switch.
package script

// Point is an integer coordinate pair in world space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// TransitionSpec names the visual transition requested by a scene, show or
// hide command. An empty style with zero seconds means "instant".
type TransitionSpec struct {
	Style   string  `json:"style,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
}

// Command is one instruction in a Program. The set of implementations is
// closed; scripts never extend it at runtime.
type Command interface {
	isCommand()
}

// Program is a compiled script: the command list and the label table mapping
// label names to command indices. Programs are immutable once compiled.
type Program struct {
	Commands []Command
	Labels   map[string]int
}

// Label marks a jump target.
type Label struct {
	Name string `json:"name"`
}

// Say presents one dialogue line and suspends until advanced.
type Say struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ChoiceOption is one selectable branch of a Choice.
type ChoiceOption struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// Choice presents options and suspends until one is selected. When
// TimeoutSeconds is positive the choice auto-resolves to the 1-based
// TimeoutDefault option after the timeout elapses.
type Choice struct {
	Prompt         string         `json:"prompt,omitempty"`
	Options        []ChoiceOption `json:"options"`
	TimeoutSeconds float64        `json:"timeout,omitempty"`
	TimeoutDefault int            `json:"timeout_default,omitempty"`
}

// Jump moves the program counter to a label.
type Jump struct {
	Target string `json:"target"`
}

// IfJump jumps when the named variable compares true against Value.
// Value may be a literal or a "$name" reference to another variable.
type IfJump struct {
	Name   string `json:"name"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
	Target string `json:"target"`
}

// SetVar assigns a variable. Value may be an int, bool, string, or a "$name"
// reference resolved at execution time.
type SetVar struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// AddVar increments a numeric variable. A non-numeric current value is reset
// to zero before the increment.
type AddVar struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// Scene replaces the background. Kind is "image" or "color".
type Scene struct {
	Kind       string         `json:"kind"`
	Value      string         `json:"value"`
	Transition TransitionSpec `json:"transition,omitempty"`
	FloatAmp   float64        `json:"float_amp,omitempty"`
	FloatSpeed float64        `json:"float_speed,omitempty"`
}

// Show places a named sprite. Kind is "image" or "rect" (Value is a path or
// a color, respectively).
type Show struct {
	Kind       string         `json:"kind"`
	Name       string         `json:"sprite"`
	Value      string         `json:"value"`
	Size       *Size          `json:"size,omitempty"`
	Pos        *Point         `json:"pos,omitempty"`
	Anchor     string         `json:"anchor,omitempty"`
	Z          int            `json:"z,omitempty"`
	Transition TransitionSpec `json:"transition,omitempty"`
	FloatAmp   float64        `json:"float_amp,omitempty"`
	FloatSpeed float64        `json:"float_speed,omitempty"`
}

// ShowChar places a character sprite, resolving Expression through the
// character's sprite table.
type ShowChar struct {
	ID         string         `json:"id"`
	Expression string         `json:"expression"`
	Pos        *Point         `json:"pos,omitempty"`
	Anchor     string         `json:"anchor,omitempty"`
	Z          int            `json:"z,omitempty"`
	Transition TransitionSpec `json:"transition,omitempty"`
	FloatAmp   *float64       `json:"float_amp,omitempty"`
	FloatSpeed *float64       `json:"float_speed,omitempty"`
}

// Hide removes a sprite, optionally through an exit transition.
type Hide struct {
	Name       string         `json:"sprite"`
	Transition TransitionSpec `json:"transition,omitempty"`
}

// Blend starts a full-screen blend overlay transition.
type Blend struct {
	Style   string  `json:"style"`
	Seconds float64 `json:"seconds"`
}

// Animate starts (or with Action "stop", clears) a property animation track
// on a sprite. Action is one of "move", "size", "alpha", "stop".
type Animate struct {
	Name    string  `json:"sprite"`
	Action  string  `json:"action"`
	V1      float64 `json:"v1,omitempty"`
	V2      float64 `json:"v2,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
	Ease    string  `json:"ease,omitempty"`
}

// CameraSet pans and zooms the background camera.
type CameraSet struct {
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
	Zoom float64 `json:"zoom"`
}

// Wait suspends for a fixed duration.
type Wait struct {
	Seconds float64 `json:"seconds"`
}

// WaitVoice suspends until the voice channel reports idle.
type WaitVoice struct{}

// WaitVideo suspends until video playback finishes.
type WaitVideo struct{}

// Music starts background music playback.
type Music struct {
	Path string `json:"path"`
	Loop bool   `json:"loop"`
}

// Sound plays a one-shot sound effect.
type Sound struct {
	Path string `json:"path"`
}

// Echo starts or stops the ambient loop channel. Action is "start" or "stop".
type Echo struct {
	Action string `json:"action"`
	Path   string `json:"path,omitempty"`
}

// Voice plays a voice line. When Character names a defined character with a
// voice tag and Path contains no directory separator, the tag is prefixed.
type Voice struct {
	Character string `json:"character,omitempty"`
	Path      string `json:"path"`
}

// Mute silences an audio target: all, music, sfx, echo, or voice.
type Mute struct {
	Target string `json:"target"`
}

// Video plays or stops full-screen video. Action is "play" or "stop";
// Fit is "contain" or "cover".
type Video struct {
	Action string `json:"action"`
	Path   string `json:"path,omitempty"`
	Loop   bool   `json:"loop,omitempty"`
	Fit    string `json:"fit,omitempty"`
}

// Preload primes the asset cache. Kind is "bg", "sprite", "audio" or "video".
type Preload struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// CachePin pins an asset so pruning never evicts it.
type CachePin struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// CacheUnpin releases a pin.
type CacheUnpin struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// CacheClear clears a cache domain. Kind is one of "images", "sounds",
// "scripts", "script" (with Path), "runtime", or "scene" (alias of runtime).
type CacheClear struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
}

// GarbageCollect hints the engine to release unused resources now.
type GarbageCollect struct{}

// HotspotAdd registers a rectangular clickable region jumping to Target.
type HotspotAdd struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	W      int    `json:"w"`
	H      int    `json:"h"`
	Target string `json:"target"`
}

// HotspotPoly registers a polygonal clickable region jumping to Target.
type HotspotPoly struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
	Target string  `json:"target"`
}

// HotspotRemove removes one hotspot, or all when Name is empty.
type HotspotRemove struct {
	Name string `json:"name,omitempty"`
}

// HotspotDebug toggles the hotspot debug overlay.
type HotspotDebug struct {
	Enabled bool `json:"enabled"`
}

// HudAdd registers a HUD button. Style is "text", "icon" or "both".
type HudAdd struct {
	Name   string `json:"name"`
	Style  string `json:"style"`
	Text   string `json:"text,omitempty"`
	Icon   string `json:"icon,omitempty"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	W      int    `json:"w"`
	H      int    `json:"h"`
	Target string `json:"target"`
}

// HudRemove removes one HUD button, or all when Name is empty.
type HudRemove struct {
	Name string `json:"name,omitempty"`
}

// Meter shows, hides, updates or clears variable-bound HUD meters.
type Meter struct {
	Action   string `json:"action"`
	Variable string `json:"variable,omitempty"`
	Label    string `json:"label,omitempty"`
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Item mutates the inventory. Action is "add", "remove" or "clear".
type Item struct {
	Action      string `json:"action"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Amount      int    `json:"amount,omitempty"`
}

// Map controls the overworld map overlay. Action "show" activates the map
// image and consumes the immediately-following "poi" commands; "poi" defines
// a clickable point of interest; "hide" deactivates the map.
type Map struct {
	Action string  `json:"action"`
	Value  string  `json:"value,omitempty"`
	Label  string  `json:"label,omitempty"`
	Pos    Point   `json:"pos,omitempty"`
	Points []Point `json:"points,omitempty"`
	Target string  `json:"target,omitempty"`
}

// Phone controls the phone conversation overlay. Action is "open", "msg" or
// "close"; Side is "left" or "right" for msg.
type Phone struct {
	Action  string `json:"action"`
	Contact string `json:"contact,omitempty"`
	Side    string `json:"side,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Input suspends for free-text entry written into Variable on confirm.
type Input struct {
	Variable string `json:"variable"`
	Prompt   string `json:"prompt"`
	Default  string `json:"default,omitempty"`
}

// Notify shows a transient toast message.
type Notify struct {
	Text    string  `json:"text"`
	Seconds float64 `json:"seconds,omitempty"`
}

// Loading marks the boundaries of an author-declared loading block.
// Action is "start" or "end".
type Loading struct {
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
}

// Call switches execution to another script file at the given label
// (or its first command when Label is empty).
type Call struct {
	Path  string `json:"path"`
	Label string `json:"label,omitempty"`
}

// Save writes the session snapshot to a named slot.
type Save struct {
	Slot string `json:"slot"`
}

// Load restores the session snapshot from a named slot.
type Load struct {
	Slot string `json:"slot"`
}

// CharacterDef registers a character: display name, text color, voice path
// prefix, expression sprite table and sprite defaults.
type CharacterDef struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Color       string            `json:"color,omitempty"`
	VoiceTag    string            `json:"voice_tag,omitempty"`
	Sprites     map[string]string `json:"sprites,omitempty"`
	Pos         *Point            `json:"pos,omitempty"`
	Anchor      string            `json:"anchor,omitempty"`
	Z           int               `json:"z,omitempty"`
	FloatAmp    float64           `json:"float_amp,omitempty"`
	FloatSpeed  float64           `json:"float_speed,omitempty"`
}

func (Label) isCommand()          {}
func (Say) isCommand()            {}
func (Choice) isCommand()         {}
func (Jump) isCommand()           {}
func (IfJump) isCommand()         {}
func (SetVar) isCommand()         {}
func (AddVar) isCommand()         {}
func (Scene) isCommand()          {}
func (Show) isCommand()           {}
func (ShowChar) isCommand()       {}
func (Hide) isCommand()           {}
func (Blend) isCommand()          {}
func (Animate) isCommand()        {}
func (CameraSet) isCommand()      {}
func (Wait) isCommand()           {}
func (WaitVoice) isCommand()      {}
func (WaitVideo) isCommand()      {}
func (Music) isCommand()          {}
func (Sound) isCommand()          {}
func (Echo) isCommand()           {}
func (Voice) isCommand()          {}
func (Mute) isCommand()           {}
func (Video) isCommand()          {}
func (Preload) isCommand()        {}
func (CachePin) isCommand()       {}
func (CacheUnpin) isCommand()     {}
func (CacheClear) isCommand()     {}
func (GarbageCollect) isCommand() {}
func (HotspotAdd) isCommand()     {}
func (HotspotPoly) isCommand()    {}
func (HotspotRemove) isCommand()  {}
func (HotspotDebug) isCommand()   {}
func (HudAdd) isCommand()         {}
func (HudRemove) isCommand()      {}
func (Meter) isCommand()          {}
func (Item) isCommand()           {}
func (Map) isCommand()            {}
func (Phone) isCommand()          {}
func (Input) isCommand()          {}
func (Notify) isCommand()         {}
func (Loading) isCommand()        {}
func (Call) isCommand()           {}
func (Save) isCommand()           {}
func (Load) isCommand()           {}
func (CharacterDef) isCommand()   {}
