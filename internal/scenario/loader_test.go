package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/state"
)

func testCells(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.New(state.DefaultTable())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

const sample = `
scenario: tutorial
steps:
  - id: intro
    action: play_sound
    args: {name: intro, length: 3}
  - id: power_up
    action: wait
    end_conditions:
      - {key: batterie1, value: true}
      - {key: main_power, value: [40, 160]}
    win_sound: bravo
    hint_sound: psst
    hint_time: 20
  - kind: event
    action: play_sound
    delay: 5
    args: {name: ambiance}
  - kind: group
    id: branch
  - id: crash
    action: collision
  - id: on
    action: led_on
    args: {led: alert0}
  - action: goto_step
    args: {id: branch}
`

func TestParseSample(t *testing.T) {
	sc, err := Parse([]byte(sample), testCells(t), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sc.Name != "tutorial" || len(sc.Steps) != 7 {
		t.Fatalf("got %q with %d steps", sc.Name, len(sc.Steps))
	}

	intro := sc.Steps[0]
	if !intro.Timed || intro.Duration != 4*time.Second || intro.NonBlocking() {
		t.Errorf("intro = %+v, want blocking 4s", intro)
	}

	power := sc.Steps[1]
	if len(power.Conditions) != 2 || !power.Conditions[1].IsRange || power.Conditions[1].Max != 160 {
		t.Errorf("power_up conditions = %+v", power.Conditions)
	}
	if !power.HintTimed || power.HintTime != 20*time.Second || power.WinSound != "bravo" {
		t.Errorf("power_up = %+v", power)
	}

	ev := sc.Steps[2]
	if ev.ID != "event_0" || ev.Entry != EntryEvent || !ev.NonBlocking() || ev.Delay != 5*time.Second {
		t.Errorf("event = %+v", ev)
	}

	group := sc.Steps[3]
	if group.Action != dispatch.Group || !group.NonBlocking() {
		t.Errorf("group = %+v", group)
	}

	crash := sc.Steps[4]
	if len(crash.Conditions) != 1 || crash.Conditions[0].Key != "alert_screen_unlocked" {
		t.Errorf("collision default conditions = %+v", crash.Conditions)
	}

	on := sc.Steps[5]
	if !on.NonBlocking() {
		t.Error("led_on should default to non-blocking")
	}

	if sc.Steps[6].ID != "step_6" {
		t.Errorf("generated id = %q", sc.Steps[6].ID)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown action", `steps: [{id: a, action: explode}]`, "unknown action"},
		{"unknown cell", `steps: [{id: a, action: wait, end_conditions: [{key: nope, value: 1}]}]`, "unknown cell"},
		{"type mismatch", `steps: [{id: a, action: wait, end_conditions: [{key: batterie1, value: "on"}]}]`, "expects bool"},
		{"range on bool", `steps: [{id: a, action: wait, end_conditions: [{key: batterie1, value: [0, 1]}]}]`, "non-numeric"},
		{"bad range", `steps: [{id: a, action: wait, end_conditions: [{key: main_power, value: [1, 2, 3]}]}]`, "two bounds"},
		{"duration and conditions", `steps: [{id: a, action: wait, duration: 3, end_conditions: [{key: batterie1, value: true}]}]`, "both"},
		{"non-blocking with duration", `steps: [{id: a, action: wait, duration: 3, blocking: false}]`, "non-blocking"},
		{"duplicate id", `steps: [{id: a, action: wait, duration: 1}, {id: a, action: wait, duration: 1}]`, "duplicate"},
		{"missing goto target", `steps: [{id: a, action: goto_step, args: {id: zzz}}]`, "goto target"},
		{"unknown kind", `steps: [{kind: loop, action: wait}]`, "unknown entry kind"},
		{"negative delay", `steps: [{id: a, action: wait, duration: 1, delay: -1}]`, "negative delay"},
		{"negative hint time", `steps: [{id: a, action: wait, duration: 1, hint_sound: psst, hint_time: -2}]`, "negative hint_time"},
		{"duration overflow", `steps: [{id: a, action: wait, duration: 1e12}]`, "duration 1e+12 exceeds"},
		{"delay overflow", `steps: [{id: a, action: wait, duration: 1, delay: 1e10}]`, "delay 1e+10 exceeds"},
		{"hint time overflow", `steps: [{id: a, action: wait, duration: 1, hint_time: 1e300}]`, "hint_time 1e+300 exceeds"},
		{"infinite duration", `steps: [{id: a, action: wait, duration: .inf}]`, "duration is not a finite number"},
		{"nan delay", `steps: [{id: a, action: wait, duration: 1, delay: .nan}]`, "delay is not a finite number"},
	}
	cells := testCells(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), cells, nil)
			if !errors.Is(err, ErrInvalidScenario) {
				t.Fatalf("err = %v, want ErrInvalidScenario", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestParseSyntaxErrorIsNotValidation(t *testing.T) {
	_, err := Parse([]byte("steps: [unterminated"), nil, nil)
	if err == nil || errors.Is(err, ErrInvalidScenario) {
		t.Errorf("err = %v, want a plain parse error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestPlaySoundUsesSoundTable(t *testing.T) {
	lengths := func(name string) (time.Duration, bool) {
		if name == "alarm" {
			return 2500 * time.Millisecond, true
		}
		return 0, false
	}
	sc, err := Parse([]byte(`steps: [{id: a, action: play_sound, args: {name: alarm}}]`), nil, lengths)
	if err != nil {
		t.Fatal(err)
	}
	if got := sc.Steps[0].Duration; got != 3500*time.Millisecond {
		t.Errorf("duration = %v, want 3.5s", got)
	}
}

func TestParseLongestDuration(t *testing.T) {
	sc, err := Parse([]byte(`steps: [{id: a, action: wait, duration: 9223372036}]`), testCells(t), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d := sc.Steps[0].Duration; d < 9223372035*time.Second {
		t.Errorf("duration = %v, want about 9223372036s", d)
	}
}

func TestParseHintSoundWithoutTime(t *testing.T) {
	sc, err := Parse([]byte(`steps: [{id: a, action: wait, duration: 1, hint_sound: psst}]`), testCells(t), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if sc.Steps[0].HintTimed {
		t.Error("hint timed without hint_time")
	}
}
