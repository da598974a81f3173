package dispatch

import (
	"testing"
	"time"
)

func TestPublishDeliversToHandlersAndTaps(t *testing.T) {
	b := NewBus(nil)
	var got []string
	b.Handle(LEDOn, func(e Event) { got = append(got, "h1:"+string(e.Kind)) })
	b.Handle(LEDOn, func(e Event) { got = append(got, "h2:"+string(e.Kind)) })
	b.Tap(func(e Event) { got = append(got, "tap:"+string(e.Kind)) })

	b.Publish(Event{Kind: LEDOn})
	b.Publish(Event{Kind: LEDOff})

	want := []string{"h1:led_on", "h2:led_on", "tap:led_on", "tap:led_off"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPublishFromHandlerIsNotNested(t *testing.T) {
	b := NewBus(nil)
	var trace []string
	b.Handle(GotoStep, func(e Event) {
		trace = append(trace, "goto:start")
		b.Publish(Event{Kind: LEDOn})
		trace = append(trace, "goto:end")
	})
	b.Handle(LEDOn, func(e Event) { trace = append(trace, "led_on") })

	b.Publish(Event{Kind: GotoStep})

	want := []string{"goto:start", "goto:end", "led_on"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestArgs(t *testing.T) {
	a := Args{"id": 7, "name": "alarm", "length": 2.5, "loop": true}

	if got := a.Int("id", 0); got != 7 {
		t.Errorf("Int = %d", got)
	}
	if got := a.String("name", ""); got != "alarm" {
		t.Errorf("String = %q", got)
	}
	if got := a.Float("missing", 1.5); got != 1.5 {
		t.Errorf("Float default = %v", got)
	}
	if got := a.Seconds("length", 0); got != 2500*time.Millisecond {
		t.Errorf("Seconds = %v", got)
	}
	if !a.Bool("loop", false) {
		t.Error("Bool = false")
	}
}

func TestIsAction(t *testing.T) {
	if !IsAction(LEDOn) || !IsAction(ShuttleGoto) {
		t.Error("known actions not recognised")
	}
	if IsAction(Input) || IsAction(Kind("explode")) {
		t.Error("non-actions recognised")
	}
}
