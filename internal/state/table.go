package state

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type tableFile struct {
	Cells []tableRow `yaml:"cells"`
}

type tableRow struct {
	Name      string  `yaml:"name"`
	Kind      string  `yaml:"kind"`
	Default   any     `yaml:"default"`
	Indicator *int    `yaml:"indicator"`
	Power     float64 `yaml:"power"`
	Key       string  `yaml:"key"`
}

// LoadTable reads a YAML cell table.
func LoadTable(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cell table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML cell table.
func ParseTable(data []byte) ([]Spec, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cell table: %w", err)
	}
	specs := make([]Spec, 0, len(f.Cells))
	for i, row := range f.Cells {
		if row.Name == "" {
			return nil, fmt.Errorf("cell table row %d: missing name", i)
		}
		kind := Software
		if row.Kind != "" {
			k, err := ParseKind(row.Kind)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", row.Name, err)
			}
			kind = k
		}
		def, err := FromAny(row.Default)
		if err != nil {
			return nil, fmt.Errorf("cell %s: default: %w", row.Name, err)
		}
		sp := Spec{Name: row.Name, Default: def, Kind: kind, Indicator: -1, Power: row.Power, HardwareKey: row.Key}
		if row.Indicator != nil {
			sp.Indicator = *row.Indicator
		}
		specs = append(specs, sp)
	}
	return specs, nil
}

func soft(name string, def Value) Spec {
	return Spec{Name: name, Default: def, Kind: Software, Indicator: -1}
}

func led(name string, id int, on bool) Spec {
	return Spec{Name: name, Default: Bool(on), Kind: Indicator, Indicator: id}
}

func hw(name string, kind Kind, key string, led int, power float64) Spec {
	def := Bool(true)
	if kind != Switch {
		def = Bool(false)
	}
	if kind == Axis {
		def = Int(0)
	}
	return Spec{Name: name, Default: def, Kind: kind, Indicator: led, Power: power, HardwareKey: key}
}

// DefaultTable is the cell table of the stock console.
func DefaultTable() []Spec {
	return []Spec{
		soft("crew_screen_unlocked", Bool(false)),
		soft("alert_screen_unlocked", Bool(false)),
		soft("target_screen_unlocked", Bool(false)),
		soft("collision_occurred", Bool(false)),
		soft("pilote_automatique_failed", Bool(false)),
		soft("listen_to_hardware", Bool(false)),
		soft("is_moving", Bool(false)),
		soft("freq_comm", Int(270)),
		soft("offset_ps_x", Int(0)),
		soft("offset_ps_y", Int(0)),
		soft("main_power", Float(100)),
		soft("main_O2", Int(100)),
		soft("main_CO2", Int(50)),
		soft("sp_power", Float(10)),
		soft("sp_max_power", Float(68.28)),
		soft("target_name", String("NT")),
		{Name: "pilote_automatique", Default: Bool(true), Kind: Software, Indicator: 21, Power: -78.28},
		soft("full_pilote_automatique", Bool(true)),

		hw("admin", Button, "joystick1-button6", -1, 0),
		hw("freq_moins", Button, "joystick1-button4", -1, 0),
		hw("freq_plus", Button, "joystick1-button3", -1, 0),

		hw("copilote_h", Axis, "", -1, 0),
		hw("copilote_v", Axis, "", -1, 0),
		hw("pilote_h", Axis, "", -1, 0),
		hw("sp_orientation_h", Axis, "joystick2-axis0", -1, 0),
		hw("sp_orientation_v", Axis, "joystick2-axis1", -1, 0),

		led("problem0", 0, false),
		led("problem1", 1, false),
		led("problem2", 2, false),
		led("ps_nominal", 31, true),
		led("defficience_moteur1", 14, false),
		led("defficience_moteur2", 13, false),
		led("defficience_moteur3", 10, false),
		led("main_O2_up", 23, false),
		led("main_O2_down", 26, false),
		led("main_O2_low", 29, false),
		led("main_power_up", 24, false),
		led("main_power_down", 27, false),
		led("main_power_low", 30, false),
		led("main_CO2_up", 22, false),
		led("main_CO2_down", 25, false),
		led("main_CO2_high", 28, false),
		led("antenne_com", 32, false),
		led("fuite_O2", 6, false),
		led("fuite_CO2", 3, false),
		led("alert0", 54, false),
		led("alert1", 55, false),

		hw("batterie1", Switch, "joystick0-button0", 33, 20),
		hw("batterie2", Switch, "joystick0-button1", 34, 20),
		hw("batterie3", Switch, "joystick0-button2", 35, 20),
		hw("batterie4", Switch, "joystick0-button9", 36, 20),
		hw("batteries", Switch, "joystick0-button3", -1, 5),

		hw("correction_direction", Switch, "joystick1-button1", 19, 0),
		hw("correction_roulis", Switch, "joystick1-button2", 18, 0),
		hw("correction_stabilisation", Switch, "joystick1-button0", 20, 0),

		hw("moteur1", Switch, "joystick0-button6", 17, 100),
		hw("moteur2", Switch, "joystick0-button7", 15, 100),
		hw("moteur3", Switch, "joystick0-button4", 16, 100),

		hw("oxygen_secteur1", Switch, "joystick1-button8", 37, -20),
		hw("oxygen_secteur2", Switch, "joystick2-button0", 38, -20),
		hw("oxygen_secteur3", Switch, "joystick1-button9", 39, -20),

		hw("pilote_automatique1", Switch, "joystick0-button5", -1, 0),
		hw("pilote_automatique2", Switch, "joystick1-button7", -1, 0),

		hw("recyclage_CO2", Switch, "joystick2-button7", 48, -20),
		hw("recyclage_H2O", Switch, "joystick2-button8", 47, -20),
		hw("recyclage_O2", Switch, "joystick2-button9", 46, -20),

		hw("tension_secteur1", Switch, "joystick2-button1", 40, -20),
		hw("tension_secteur2", Switch, "joystick2-button2", 41, -20),
		hw("tension_secteur3", Switch, "joystick2-button3", 42, -20),

		hw("thermique_secteur1", Switch, "joystick2-button4", 43, -20),
		hw("thermique_secteur2", Switch, "joystick2-button5", 44, -20),
		hw("thermique_secteur3", Switch, "joystick2-button6", 45, -20),
	}
}
