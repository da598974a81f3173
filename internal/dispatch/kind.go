// Package dispatch delivers named console events to registered consumers.
package dispatch

// Kind names an event. Scenario actions use their descriptor name.
type Kind string

// Scenario actions with console-side handlers.
const (
	LEDOn           Kind = "led_on"
	LEDOff          Kind = "led_off"
	ResetLEDs       Kind = "reset_leds"
	PlaySound       Kind = "play_sound"
	StopSound       Kind = "stop_sound"
	SoundVolume     Kind = "sound_volume"
	PlayMusic       Kind = "play_music"
	StopMusic       Kind = "stop_music"
	Group           Kind = "group"
	Noop            Kind = "noop"
	Wait            Kind = "wait"
	GotoStep        Kind = "goto_step"
	StartGame       Kind = "start_game"
	Restart         Kind = "restart"
	EndGame         Kind = "end_game"
	EnableHardware  Kind = "enable_hardware"
	DisableHardware Kind = "disable_hardware"
	Collision       Kind = "collision"
	SetState        Kind = "set_state"
)

// Scenario actions rendered outside the console; they are only mirrored.
const (
	ShuttleGoto     Kind = "shuttle_goto"
	ShuttleGotoStat Kind = "shuttle_goto_station"
	ShuttleLookAt   Kind = "shuttle_look_at"
	ShuttleStop     Kind = "shuttle_stop"
	InfoText        Kind = "info_text"
	SetScreen       Kind = "set_screen"
	ShowScore       Kind = "show_score"
	TargetScreen    Kind = "target_screen"
	AlertScreen     Kind = "alert_screen"
)

// Console-internal events.
const (
	// Input carries a filtered hardware event.
	Input Kind = "input"
	// StepStarted and StepEnded report scenario progress.
	StepStarted Kind = "step_started"
	StepEnded   Kind = "step_ended"
	// Hint fires when a step's hint timer expires. Args: name, step.
	Hint Kind = "hint"
)

var actions = map[Kind]bool{
	LEDOn: true, LEDOff: true, ResetLEDs: true,
	PlaySound: true, StopSound: true, SoundVolume: true, PlayMusic: true, StopMusic: true,
	Group: true, Noop: true, Wait: true, GotoStep: true,
	StartGame: true, Restart: true, EndGame: true,
	EnableHardware: true, DisableHardware: true,
	Collision: true, SetState: true,
	ShuttleGoto: true, ShuttleGotoStat: true, ShuttleLookAt: true, ShuttleStop: true,
	InfoText: true, SetScreen: true, ShowScore: true, TargetScreen: true, AlertScreen: true,
}

// IsAction reports whether k may appear as a scenario step action.
func IsAction(k Kind) bool { return actions[k] }
