package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{TickMs: 20, FirewallMs: 50, Broker: "tcp://localhost:1883", HTTPAddr: ":8080", Scenario: "mars.yaml"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.TickMs != 20 {
		t.Errorf("Config.TickMs: got %d, want 20", snap.Config.TickMs)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if snap.Game.State != "" {
		t.Errorf("expected empty game state initially, got %q", snap.Game.State)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(Game{Scenario: "mars", State: "running", Step: "s2", Index: 1, Steps: 4, MainPower: 72.5},
		Counts{Games: 2, StepsWon: 3, Ghosts: 1})

	snap := tr.Snapshot()
	if snap.Game.State != "running" {
		t.Errorf("State: got %q, want running", snap.Game.State)
	}
	if snap.Game.Step != "s2" || snap.Game.Index != 1 {
		t.Errorf("Step: got %q/%d, want s2/1", snap.Game.Step, snap.Game.Index)
	}
	if snap.Counts.Games != 2 {
		t.Errorf("Counts.Games: got %d, want 2", snap.Counts.Games)
	}
	if snap.Counts.Ghosts != 1 {
		t.Errorf("Counts.Ghosts: got %d, want 1", snap.Counts.Ghosts)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	if tr.Snapshot().Network != nil {
		t.Error("expected nil network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.20", SSID: "Hangar"})
	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "192.168.1.20" {
		t.Errorf("Network: got %+v", snap.Network)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if got := snap.Uptime(); got != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", got)
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	before := time.Now()
	snap := tr.Snapshot()
	if snap.Now.Before(before) {
		t.Errorf("Now %v is before call time %v", snap.Now, before)
	}
}

func TestSnapshotCellsAreCopied(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetCells(map[string]any{"moteur1": true})

	snap := tr.Snapshot()
	snap.Cells["moteur1"] = false

	if tr.Snapshot().Cells["moteur1"] != true {
		t.Error("mutating a snapshot changed the tracker")
	}
}

func testSnapshot() Snapshot {
	start := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	return Snapshot{
		Game: Game{
			Scenario:      "mars",
			State:         "running",
			Step:          "dock",
			Index:         2,
			Steps:         5,
			Elapsed:       1500 * time.Millisecond,
			MainPower:     80.5,
			SolarPower:    68.28,
			PendingTimers: 3,
		},
		Counts:        Counts{Games: 1, StepsWon: 2, Vetoes: 4, RawInputs: 10, Emitted: 6, Ghosts: 1, Suppressed: 3},
		Cells:         map[string]any{"alert0": true},
		StartTime:     start,
		Now:           start.Add(5*time.Minute + 300*time.Millisecond),
		MQTTConnected: true,
		Config:        Config{TickMs: 20, FirewallMs: 50, HeartbeatMs: 900000, Broker: "tcp://b:1883", HTTPAddr: ":8080", Scenario: "mars.yaml"},
	}
}

func TestFormatJSON(t *testing.T) {
	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(testSnapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Game.State != "running" || s.Game.Step != "dock" || s.Game.Index != 2 || s.Game.Steps != 5 {
		t.Errorf("Game: got %+v", s.Game)
	}
	if s.Game.ElapsedSeconds != 1.5 {
		t.Errorf("ElapsedSeconds: got %v, want 1.5", s.Game.ElapsedSeconds)
	}
	if s.UptimeSeconds != 300 {
		t.Errorf("UptimeSeconds: got %d, want 300", s.UptimeSeconds)
	}
	if s.StartTime != "2026-02-10T08:00:00Z" {
		t.Errorf("StartTime: got %q", s.StartTime)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://b:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Counts.Vetoes != 4 || s.Counts.Emitted != 6 || s.Counts.Suppressed != 3 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Cells["alert0"] != true {
		t.Errorf("Cells: got %v", s.Cells)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON should not carry an event")
	}
	if s.Network != nil {
		t.Error("network should be omitted when unknown")
	}
	if s.Config.Scenario != "mars.yaml" || s.Config.HeartbeatMs != 900000 {
		t.Errorf("Config: got %+v", s.Config)
	}
}

func TestFormatJSONIdleState(t *testing.T) {
	snap := testSnapshot()
	snap.Game = Game{}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Game.State != "idle" {
		t.Errorf("State: got %q, want idle", parsed.Status.Game.State)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Cells != nil {
		t.Error("status events should not carry cells")
	}
	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("reason should be omitted when empty: %s", data)
	}
	if strings.Contains(string(data), "\n") {
		t.Error("status events should be compact")
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(testSnapshot(), "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("got event=%q reason=%q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := testSnapshot()
	snap.Network = &NetworkInfo{Type: "wifi", IP: "10.0.0.4", Status: "up", Gateway: "10.0.0.1", WifiStatus: "connected", SSID: "Hangar"}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	n := parsed.Status.Network
	if n == nil {
		t.Fatal("expected network")
	}
	if n.IP != "10.0.0.4" || n.SSID != "Hangar" || n.Gateway != "10.0.0.1" {
		t.Errorf("Network: got %+v", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(Game{Index: i}, Counts{Games: i})
			tr.SetCells(map[string]any{"i": i})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
