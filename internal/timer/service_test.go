package timer

import (
	"testing"
	"time"
)

func TestScheduleFiresAtTarget(t *testing.T) {
	s := New("test", nil)
	var firedAt []time.Duration
	s.Schedule(2*time.Second, func() { firedAt = append(firedAt, s.Now()) })

	s.Advance(1999 * time.Millisecond)
	if len(firedAt) != 0 {
		t.Fatalf("fired early at %v", firedAt)
	}
	s.Advance(time.Millisecond)
	if len(firedAt) != 1 || firedAt[0] != 2*time.Second {
		t.Fatalf("firedAt = %v, want [2s]", firedAt)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestTiesFireInScheduleOrder(t *testing.T) {
	s := New("test", nil)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.Schedule(time.Second, func() { order = append(order, i) })
	}
	s.Schedule(500*time.Millisecond, func() { order = append(order, -1) })

	s.Advance(time.Second)
	want := []int{-1, 0, 1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCancel(t *testing.T) {
	s := New("test", nil)
	fired := false
	h := s.Schedule(time.Second, func() { fired = true })
	if !s.IsAlive(h) {
		t.Fatal("handle not alive after Schedule")
	}
	s.Cancel(h)
	s.Cancel(h)
	s.Cancel(Handle(9999))
	if s.IsAlive(h) {
		t.Error("handle alive after Cancel")
	}
	s.Advance(2 * time.Second)
	if fired {
		t.Error("cancelled callback fired")
	}
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	s := New("test", nil)
	n := 0
	h := s.Schedule(0, func() { n++ })
	s.Advance(0)
	s.Cancel(h)
	if n != 1 || s.IsAlive(h) {
		t.Errorf("n=%d alive=%v", n, s.IsAlive(h))
	}
}

func TestPauseResume(t *testing.T) {
	s := New("test", nil)
	var firedAt time.Duration = -1
	h := s.Schedule(10*time.Second, func() { firedAt = s.Now() })

	s.Advance(3 * time.Second)
	s.Pause()
	if !s.IsAlive(h) {
		t.Fatal("paused handle should stay alive")
	}
	if rem, ok := s.Remaining(h); !ok || rem != 7*time.Second {
		t.Fatalf("Remaining = %v, %v, want 7s", rem, ok)
	}

	s.Advance(100 * time.Second)
	if firedAt != -1 {
		t.Fatalf("fired while paused at %v", firedAt)
	}

	resumedAt := s.Now()
	s.Resume()
	s.Advance(7*time.Second - time.Millisecond)
	if firedAt != -1 {
		t.Fatalf("fired before remaining delay elapsed at %v", firedAt)
	}
	s.Advance(time.Millisecond)
	if firedAt != resumedAt+7*time.Second {
		t.Errorf("firedAt = %v, want %v", firedAt, resumedAt+7*time.Second)
	}
}

func TestScheduleWhilePausedRunsNormally(t *testing.T) {
	s := New("test", nil)
	s.Pause()
	fired := false
	s.Schedule(time.Second, func() { fired = true })
	s.Advance(time.Second)
	if !fired {
		t.Error("timer scheduled after Pause did not fire")
	}
}

func TestCancelWhilePaused(t *testing.T) {
	s := New("test", nil)
	fired := false
	h := s.Schedule(time.Second, func() { fired = true })
	s.Pause()
	s.Cancel(h)
	s.Resume()
	s.Advance(5 * time.Second)
	if fired {
		t.Error("cancelled paused timer fired after Resume")
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d", s.Pending())
	}
}

func TestResumeWithoutPause(t *testing.T) {
	s := New("test", nil)
	n := 0
	s.Schedule(time.Second, func() { n++ })
	s.Resume()
	s.Advance(time.Second)
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestCallbackSchedulesWithinSamePass(t *testing.T) {
	s := New("test", nil)
	var times []time.Duration
	s.Schedule(time.Second, func() {
		times = append(times, s.Now())
		s.Schedule(500*time.Millisecond, func() { times = append(times, s.Now()) })
		s.Schedule(5*time.Second, func() { times = append(times, s.Now()) })
	})

	s.Advance(2 * time.Second)
	if len(times) != 2 || times[0] != time.Second || times[1] != 1500*time.Millisecond {
		t.Fatalf("times = %v, want [1s 1.5s]", times)
	}
	if s.Now() != 2*time.Second {
		t.Errorf("Now = %v, want 2s", s.Now())
	}
	if s.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", s.Pending())
	}
}
