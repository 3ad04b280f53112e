package save

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleSnapshot() *Snapshot {
	snap := NewSnapshot()
	snap.ScriptPath = "scenes/chapter1.json"
	snap.Index = 42
	snap.Background = Background{Kind: "image", Value: "bg/street.png"}
	snap.Vars = map[string]any{"mood": "happy", "coins": 3}
	snap.Sprites = map[string]Sprite{
		"ayu": {
			Kind: "image", Value: "ayu_smile.png",
			Pos: [2]float64{320, 400}, Size: [2]float64{200, 480},
			Rect: [4]float64{320, 400, 200, 480},
			Z:    1, Alpha: 1, Character: "ayu", Expression: "smile",
		},
	}
	snap.Inventory = map[string]InventoryItem{"key": {Name: "Rusty Key", Count: 1}}
	snap.Meters = map[string]Meter{"trust": {Label: "Trust", Min: 0, Max: 100, Value: 42, Color: "#44ff99"}}
	snap.HudButtons = []HudButton{{Name: "menu", Style: "text", Text: "Menu", Target: "::menu", Rect: [4]int{10, 12, 90, 30}}}
	snap.Music = &Music{Path: "bgm/theme.ogg", Loop: true}
	snap.Waiting = &Waiting{
		Type:   "choice",
		Prompt: "Go?",
		Options: []WaitOption{
			{Text: "Yes", Target: "yes"},
			{Text: "No", Target: "no"},
		},
		TimeoutMS:        2000,
		TimeoutDefault:   2,
		TimeoutElapsedMS: 500,
	}
	snap.Hotspots = []Hotspot{{Name: "door", Points: [][2]int{{10, 10}, {60, 10}, {60, 110}, {10, 110}}, Target: "hall"}}
	snap.Map = MapState{Active: true, Image: "maps/world.png", Points: []MapPoint{
		{Label: "Town", Target: "town", Pos: [2]int{100, 120}, Points: [][2]int{{80, 110}, {120, 110}, {120, 140}}},
	}}
	snap.Camera = Camera{PanX: 5, PanY: -3, Zoom: 1.5}
	return snap
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := sampleSnapshot()
	if err := WriteSlot(dir, "slot1", want); err != nil {
		t.Fatalf("WriteSlot: %v", err)
	}
	got, err := ReadSlot(dir, "slot1")
	if err != nil {
		t.Fatalf("ReadSlot: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFoldsIntegralVarsToInt(t *testing.T) {
	doc := `{"save_version": 2, "vars": {"coins": 7, "ratio": 0.5, "name": "Rin", "flag": true}}`
	snap := NewSnapshot()
	if err := json.Unmarshal([]byte(doc), snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, ok := snap.Vars["coins"].(int); !ok || v != 7 {
		t.Errorf("coins = %v (%T), want int 7", snap.Vars["coins"], snap.Vars["coins"])
	}
	if v, ok := snap.Vars["ratio"].(float64); !ok || v != 0.5 {
		t.Errorf("ratio = %v (%T), want float64 0.5", snap.Vars["ratio"], snap.Vars["ratio"])
	}
	if snap.Vars["name"] != "Rin" || snap.Vars["flag"] != true {
		t.Errorf("non-numeric vars mangled: %+v", snap.Vars)
	}
}

func TestDocumentFieldShapes(t *testing.T) {
	data, err := json.Marshal(sampleSnapshot())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}

	var inventory map[string]map[string]any
	if err := json.Unmarshal(doc["inventory"], &inventory); err != nil {
		t.Fatalf("inventory should be an object keyed by item id: %v", err)
	}
	if _, ok := inventory["key"]["name"]; !ok {
		t.Errorf("inventory item shape = %v, want name/desc/count fields", inventory["key"])
	}

	var sprites map[string]map[string]json.RawMessage
	if err := json.Unmarshal(doc["sprites"], &sprites); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"pos", "size", "rect"} {
		var arr []float64
		if err := json.Unmarshal(sprites["ayu"][field], &arr); err != nil {
			t.Errorf("sprite %s should be a number array: %v", field, err)
		}
	}

	var meters map[string]map[string]any
	if err := json.Unmarshal(doc["meters"], &meters); err != nil {
		t.Fatal(err)
	}
	if _, ok := meters["trust"]["value"]; !ok {
		t.Errorf("meter shape = %v, want a value field", meters["trust"])
	}

	var hud []map[string]json.RawMessage
	if err := json.Unmarshal(doc["hud_buttons"], &hud); err != nil {
		t.Fatal(err)
	}
	var rect []int
	if err := json.Unmarshal(hud[0]["rect"], &rect); err != nil || len(rect) != 4 {
		t.Errorf("hud button rect = %s, want [x,y,w,h]", hud[0]["rect"])
	}

	var hotspots []map[string]json.RawMessage
	if err := json.Unmarshal(doc["hotspots"], &hotspots); err != nil {
		t.Fatal(err)
	}
	var points [][2]int
	if err := json.Unmarshal(hotspots[0]["points"], &points); err != nil || len(points) != 4 {
		t.Errorf("hotspot points = %s, want a corner outline", hotspots[0]["points"])
	}

	var mp MapState
	if err := json.Unmarshal(doc["map"], &mp); err != nil {
		t.Fatal(err)
	}
	if len(mp.Points) != 1 || len(mp.Points[0].Points) != 3 {
		t.Errorf("map points = %+v, want one POI with its polygon", mp.Points)
	}
}

func TestWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSlot(dir, "slot1", sampleSnapshot()); err != nil {
		t.Fatalf("WriteSlot: %v", err)
	}
	if _, err := os.Stat(SlotPath(dir, "slot1") + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after commit")
	}
	if _, err := os.Stat(SlotPath(dir, "slot1")); err != nil {
		t.Errorf("committed save missing: %v", err)
	}
}

func TestDecodeToleratesMissingFields(t *testing.T) {
	// A minimal version-1 document: most fields absent.
	doc := `{"script_path": "scenes/old.json", "index": 7, "vars": {"x": 1}}`
	snap := NewSnapshot()
	if err := json.Unmarshal([]byte(doc), snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if snap.SaveVersion != 1 {
		t.Errorf("version defaulted to %d, want 1", snap.SaveVersion)
	}
	if snap.ScriptPath != "scenes/old.json" || snap.Index != 7 {
		t.Errorf("present fields not decoded: %+v", snap)
	}
	if snap.Camera.Zoom != 1.0 {
		t.Errorf("camera zoom defaulted to %v, want 1.0", snap.Camera.Zoom)
	}
	if snap.Sprites == nil || snap.Meters == nil || snap.Characters == nil {
		t.Error("map fields should default to empty maps")
	}
	if snap.Background.Kind != "color" || snap.Background.Value != "#000000" {
		t.Errorf("background should default to black, got %+v", snap.Background)
	}
}

func TestDecodeToleratesWrongTypes(t *testing.T) {
	doc := `{"save_version": 2, "index": "not a number", "script_path": "scenes/a.json", "camera": [1,2,3]}`
	snap := NewSnapshot()
	if err := json.Unmarshal([]byte(doc), snap); err != nil {
		t.Fatalf("Unmarshal should tolerate bad fields: %v", err)
	}
	if snap.Index != 0 {
		t.Errorf("bad index should keep default, got %d", snap.Index)
	}
	if snap.ScriptPath != "scenes/a.json" {
		t.Error("good fields should still decode")
	}
	if snap.Camera.Zoom != 1.0 {
		t.Errorf("bad camera should keep default zoom, got %v", snap.Camera.Zoom)
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	snap := NewSnapshot()
	if err := json.Unmarshal([]byte(`[1,2,3]`), snap); err == nil {
		t.Error("non-object document should fail")
	}
	if err := json.Unmarshal([]byte(`{broken`), snap); err == nil {
		t.Error("malformed JSON should fail")
	}
}

func TestReadSlotMissing(t *testing.T) {
	if _, err := ReadSlot(t.TempDir(), "nope"); err == nil {
		t.Error("missing slot should error")
	}
}

func TestListSlots(t *testing.T) {
	dir := t.TempDir()
	for _, slot := range []string{"quick", "slot1"} {
		if err := WriteSlot(dir, slot, NewSnapshot()); err != nil {
			t.Fatalf("WriteSlot(%s): %v", slot, err)
		}
	}
	// Stray files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	slots, err := ListSlots(dir)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	joined := strings.Join(slots, ",")
	if len(slots) != 2 || !strings.Contains(joined, "quick") || !strings.Contains(joined, "slot1") {
		t.Errorf("ListSlots = %v, want quick and slot1", slots)
	}

	if slots, err := ListSlots(filepath.Join(dir, "missing")); err != nil || slots != nil {
		t.Errorf("missing dir should yield empty list, got %v, %v", slots, err)
	}
}

func TestOverwriteKeepsLatest(t *testing.T) {
	dir := t.TempDir()
	first := sampleSnapshot()
	if err := WriteSlot(dir, QuickSlot, first); err != nil {
		t.Fatal(err)
	}
	second := sampleSnapshot()
	second.Index = 99
	if err := WriteSlot(dir, QuickSlot, second); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSlot(dir, QuickSlot)
	if err != nil {
		t.Fatal(err)
	}
	if got.Index != 99 {
		t.Errorf("slot should hold latest write, index = %d", got.Index)
	}
}
