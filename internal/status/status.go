// Package status provides a thread-safe status tracker for the spacebus daemon.
// It is written by the simulation loop and read by HTTP handlers and
// heartbeat events.
package status

import (
	"sync"
	"time"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	FirewallMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	Prefix      string // MQTT topic root
	Scenario    string
}

// Game is the scenario part of a snapshot.
type Game struct {
	Scenario      string
	State         string
	Step          string
	Index         int
	Steps         int
	Paused        bool
	Elapsed       time.Duration
	SimTime       time.Duration
	MainPower     float64
	SolarPower    float64
	PendingTimers int
}

// Counts are totals since startup.
type Counts struct {
	Games      int
	StepsWon   int
	StepsLost  int
	Vetoes     int
	RawInputs  int
	Emitted    int
	Ghosts     int
	Suppressed int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Game          Game
	Counts        Counts
	Cells         map[string]any
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the game view and counters.
// The simulation loop calls it after every tick and command.
func (t *Tracker) Update(g Game, c Counts) {
	t.mu.Lock()
	t.snap.Game = g
	t.snap.Counts = c
	t.mu.Unlock()
}

// SetCells replaces the cell values shown on the status page.
// The map is owned by the tracker afterwards.
func (t *Tracker) SetCells(cells map[string]any) {
	t.mu.Lock()
	t.snap.Cells = cells
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Cells != nil {
		cells := make(map[string]any, len(s.Cells))
		for k, v := range s.Cells {
			cells[k] = v
		}
		s.Cells = cells
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
