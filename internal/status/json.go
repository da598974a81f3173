package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Game          GameJSON       `json:"game"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"counts"`
	Cells         map[string]any `json:"cells,omitempty"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// GameJSON is the JSON representation of the scenario state.
type GameJSON struct {
	Scenario       string  `json:"scenario"`
	State          string  `json:"state"`
	Step           string  `json:"step,omitempty"`
	Index          int     `json:"index"`
	Steps          int     `json:"steps"`
	Paused         bool    `json:"paused"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	MainPower      float64 `json:"main_power"`
	SolarPower     float64 `json:"solar_power"`
	PendingTimers  int     `json:"pending_timers"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of counters.
type CountsJSON struct {
	Games      int `json:"games"`
	StepsWon   int `json:"steps_won"`
	StepsLost  int `json:"steps_lost"`
	Vetoes     int `json:"vetoes"`
	RawInputs  int `json:"raw_inputs"`
	Emitted    int `json:"inputs_emitted"`
	Ghosts     int `json:"ghosts"`
	Suppressed int `json:"suppressed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	FirewallMs  int64  `json:"firewall_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
	Prefix      string `json:"mqtt_prefix,omitempty"`
	Scenario    string `json:"scenario"`
}

func buildInner(snap Snapshot) StatusInner {
	state := snap.Game.State
	if state == "" {
		state = "idle"
	}

	inner := StatusInner{
		Game: GameJSON{
			Scenario:       snap.Game.Scenario,
			State:          state,
			Step:           snap.Game.Step,
			Index:          snap.Game.Index,
			Steps:          snap.Game.Steps,
			Paused:         snap.Game.Paused,
			ElapsedSeconds: snap.Game.Elapsed.Seconds(),
			MainPower:      snap.Game.MainPower,
			SolarPower:     snap.Game.SolarPower,
			PendingTimers:  snap.Game.PendingTimers,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Games:      snap.Counts.Games,
			StepsWon:   snap.Counts.StepsWon,
			StepsLost:  snap.Counts.StepsLost,
			Vetoes:     snap.Counts.Vetoes,
			RawInputs:  snap.Counts.RawInputs,
			Emitted:    snap.Counts.Emitted,
			Ghosts:     snap.Counts.Ghosts,
			Suppressed: snap.Counts.Suppressed,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			FirewallMs:  snap.Config.FirewallMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
			Prefix:      snap.Config.Prefix,
			Scenario:    snap.Config.Scenario,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint, cells included.
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Cells = snap.Cells

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Cells are left out; they are mirrored on their own topics.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
