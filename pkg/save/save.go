// Package save defines the session snapshot document and its storage. The
// on-disk format is versioned JSON; decoding is tolerant per field, so a save
// written by an older build (or hand-edited) restores what it can and
// defaults the rest instead of failing outright.
package save

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Version is the schema version this build writes.
const Version = 2

// QuickSlot is the slot name used by the quick-save binding.
const QuickSlot = "quick"

// Background is the saved backdrop: an image path or a flat color.
type Background struct {
	Kind       string  `json:"kind"`
	Value      string  `json:"value"`
	FloatAmp   float64 `json:"float_amp,omitempty"`
	FloatSpeed float64 `json:"float_speed,omitempty"`
}

// Sprite is one saved display object. Pos and Size are [x,y] and [w,h]
// pairs; Rect is the derived [x,y,w,h] box.
type Sprite struct {
	Kind       string     `json:"kind"`
	Value      string     `json:"value"`
	Size       [2]float64 `json:"size"`
	Pos        [2]float64 `json:"pos"`
	Anchor     string     `json:"anchor,omitempty"`
	Z          int        `json:"z"`
	Alpha      float64    `json:"alpha"`
	FloatAmp   float64    `json:"float_amp,omitempty"`
	FloatSpeed float64    `json:"float_speed,omitempty"`
	Rect       [4]float64 `json:"rect"`
	Character  string     `json:"character,omitempty"`
	Expression string     `json:"expression,omitempty"`
}

// InventoryItem is one saved inventory row, keyed by item id in the document.
type InventoryItem struct {
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Icon  string `json:"icon,omitempty"`
	Count int    `json:"count"`
}

// Meter is one saved HUD meter, keyed by its bound variable. Value is the
// variable's value at save time, clamped to the meter range.
type Meter struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Value int    `json:"value"`
	Color string `json:"color,omitempty"`
}

// HudButton is one saved HUD button. Rect is [x,y,w,h].
type HudButton struct {
	Name   string `json:"name"`
	Style  string `json:"style"`
	Text   string `json:"text,omitempty"`
	Icon   string `json:"icon,omitempty"`
	Target string `json:"target"`
	Rect   [4]int `json:"rect"`
}

// Music is the saved music channel, nil when silent.
type Music struct {
	Path string `json:"path"`
	Loop bool   `json:"loop"`
}

// WaitOption mirrors one choice option inside a Waiting block.
type WaitOption struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// Waiting captures an interrupted suspension so a restore re-presents it.
// Type is "say" or "choice".
type Waiting struct {
	Type string `json:"type"`

	// Say fields.
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`

	// Choice fields.
	Prompt           string       `json:"prompt,omitempty"`
	Options          []WaitOption `json:"options,omitempty"`
	Selected         int          `json:"selected,omitempty"`
	TimeoutMS        int64        `json:"timeout_ms,omitempty"`
	TimeoutDefault   int          `json:"timeout_default,omitempty"`
	TimeoutElapsedMS int64        `json:"timeout_elapsed_ms,omitempty"`
}

// Character is one saved character definition.
type Character struct {
	DisplayName string            `json:"display_name"`
	Color       string            `json:"color,omitempty"`
	VoiceTag    string            `json:"voice_tag,omitempty"`
	Sprites     map[string]string `json:"sprites,omitempty"`
	Anchor      string            `json:"anchor,omitempty"`
	Z           int               `json:"z,omitempty"`
	X           int               `json:"x,omitempty"`
	Y           int               `json:"y,omitempty"`
	FloatAmp    float64           `json:"float_amp,omitempty"`
	FloatSpeed  float64           `json:"float_speed,omitempty"`
}

// Hotspot is one saved clickable region, always as a polygon outline;
// rectangular hotspots save their four corners.
type Hotspot struct {
	Name   string   `json:"name"`
	Points [][2]int `json:"points"`
	Target string   `json:"target"`
}

// MapPoint is one saved point of interest. Points, when present, outline the
// clickable polygon.
type MapPoint struct {
	Label  string   `json:"label"`
	Target string   `json:"target"`
	Pos    [2]int   `json:"pos"`
	Points [][2]int `json:"points,omitempty"`
}

// MapState is the saved overworld map overlay.
type MapState struct {
	Active bool       `json:"active"`
	Image  string     `json:"image,omitempty"`
	Points []MapPoint `json:"points,omitempty"`
}

// Camera is the saved background camera.
type Camera struct {
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
	Zoom float64 `json:"zoom"`
}

// / Snapshot is the complete saved session: the resume position plus every
// piece of visible and scripted state.
type Snapshot struct {
	SaveVersion   int                      `json:"save_version"`
	ScriptPath    string                   `json:"script_path"`
	Index         int                      `json:"index"`
	Background    Background               `json:"background"`
	Vars          map[string]any           `json:"vars"`
	Sprites       map[string]Sprite        `json:"sprites"`
	Inventory     map[string]InventoryItem `json:"inventory"`
	InventoryPage int                      `json:"inventory_page"`
	InventoryOpen bool                     `json:"inventory_open"`
	Meters        map[string]Meter         `json:"meters"`
	HudButtons    []HudButton              `json:"hud_buttons"`
	Music         *Music                   `json:"music"`
	Waiting       *Waiting                 `json:"waiting"`
	Characters    map[string]Character     `json:"characters"`
	Hotspots      []Hotspot                `json:"hotspots"`
	HotspotDebug  bool                     `json:"hotspot_debug"`
	Map           MapState                 `json:"map"`
	Camera        Camera                   `json:"camera"`
}

// NewSnapshot returns a snapshot with current-version defaults.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		SaveVersion: Version,
		Background:  Background{Kind: "color", Value: "#000000"},
		Vars:        map[string]any{},
		Sprites:     map[string]Sprite{},
		Inventory:   map[string]InventoryItem{},
		Meters:      map[string]Meter{},
		Characters:  map[string]Character{},
		Camera:      Camera{Zoom: 1.0},
	}
}

// UnmarshalJSON decodes a snapshot field by field. A field that is missing or
// fails to decode keeps its default; only a document that is not a JSON
// object at all is an error. Version 1 saves, which lack several fields,
// decode this way for free.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("save document is not an object: %w", err)
	}

	*s = *NewSnapshot()
	s.SaveVersion = 1

	tryField := func(key string, dst any) {
		raw, ok := fields[key]
		if !ok {
			return
		}
		// Decode into a scratch copy so a partial failure cannot leave the
		// destination half-written.
		_ = json.Unmarshal(raw, dst)
	}

	tryField("save_version", &s.SaveVersion)
	tryField("script_path", &s.ScriptPath)
	tryField("index", &s.Index)
	tryField("background", &s.Background)
	tryField("vars", &s.Vars)
	tryField("sprites", &s.Sprites)
	tryField("inventory", &s.Inventory)
	tryField("inventory_page", &s.InventoryPage)
	tryField("inventory_open", &s.InventoryOpen)
	tryField("meters", &s.Meters)
	tryField("hud_buttons", &s.HudButtons)
	tryField("music", &s.Music)
	tryField("waiting", &s.Waiting)
	tryField("characters", &s.Characters)
	tryField("hotspots", &s.Hotspots)
	tryField("hotspot_debug", &s.HotspotDebug)
	tryField("map", &s.Map)
	tryField("camera", &s.Camera)

	if s.Vars == nil {
		s.Vars = map[string]any{}
	}
	// JSON numbers decode as float64; fold integral values back to int so a
	// round trip preserves variable identity for script comparisons.
	for k, v := range s.Vars {
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			s.Vars[k] = int(f)
		}
	}
	if s.Sprites == nil {
		s.Sprites = map[string]Sprite{}
	}
	if s.Inventory == nil {
		s.Inventory = map[string]InventoryItem{}
	}
	if s.Meters == nil {
		s.Meters = map[string]Meter{}
	}
	if s.Characters == nil {
		s.Characters = map[string]Character{}
	}
	if s.Camera.Zoom == 0 {
		s.Camera.Zoom = 1.0
	}
	return nil
}

// SlotPath returns the file path for a named slot under the save directory.
func SlotPath(dir, slot string) string {
	return filepath.Join(dir, slot+".json")
}

// WriteSlot writes a snapshot to a named slot. The document lands under a
// .tmp name first and is renamed into place, so a crash mid-write never
// corrupts an existing save.
func WriteSlot(dir, slot string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create save directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode save: %w", err)
	}
	path := SlotPath(dir, slot)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write save %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit save %s: %w", path, err)
	}
	return nil
}

// ReadSlot loads a snapshot from a named slot.
func ReadSlot(dir, slot string) (*Snapshot, error) {
	data, err := os.ReadFile(SlotPath(dir, slot))
	if err != nil {
		return nil, fmt.Errorf("failed to read save slot %s: %w", slot, err)
	}
	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("save slot %s: %w", slot, err)
	}
	return snap, nil
}

// ListSlots returns the slot names present in the save directory, in
// directory order. A missing directory is an empty list.
func ListSlots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list save directory %s: %w", dir, err)
	}
	var slots []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		slots = append(slots, name[:len(name)-len(".json")])
	}
	return slots, nil
}
