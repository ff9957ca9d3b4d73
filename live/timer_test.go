package live

import (
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/tournament-live/models"
)

func TestTimerRunsOnlyWhileRunning(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(models.TimerStopped, 0, clock.Now())

	if changed, err := timer.Start(clock.Now()); err != nil || !changed {
		t.Fatalf("Start = %v, %v", changed, err)
	}

	ticks := 0
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		if _, advanced := timer.Tick(clock.Now()); advanced {
			ticks++
		}
	}
	if ticks != 5 {
		t.Fatalf("ticks = %d, want 5", ticks)
	}

	if _, err := timer.Pause(clock.Now()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		if _, advanced := timer.Tick(clock.Now()); advanced {
			t.Fatal("paused timer ticked")
		}
	}
	if got := timer.ClockSeconds(clock.Now()); got != 5 {
		t.Errorf("clock = %d, want 5", got)
	}

	if _, err := timer.Resume(clock.Now()); err != nil {
		t.Fatal(err)
	}
	clock.Advance(1500 * time.Millisecond)
	if secs, advanced := timer.Tick(clock.Now()); !advanced || secs != 6 {
		t.Errorf("Tick = %d, %v; want 6, true", secs, advanced)
	}
}

func TestTimerTransitions(t *testing.T) {
	tests := []struct {
		name        string
		from        models.TimerState
		action      models.TimerAction
		wantChanged bool
		wantErr     error
		wantState   models.TimerState
	}{
		{"start stopped", models.TimerStopped, models.TimerActionStart, true, nil, models.TimerRunning},
		{"start running", models.TimerRunning, models.TimerActionStart, false, nil, models.TimerRunning},
		{"pause paused", models.TimerPaused, models.TimerActionPause, false, nil, models.TimerPaused},
		{"resume running", models.TimerRunning, models.TimerActionResume, false, nil, models.TimerRunning},
		{"pause stopped", models.TimerStopped, models.TimerActionPause, false, ErrTimerTransition, models.TimerStopped},
		{"resume finished", models.TimerFinished, models.TimerActionResume, false, ErrTimerTransition, models.TimerFinished},
		{"start finished", models.TimerFinished, models.TimerActionStart, false, ErrTimerTransition, models.TimerFinished},
		{"stop paused", models.TimerPaused, models.TimerActionStop, true, nil, models.TimerFinished},
		{"stop finished", models.TimerFinished, models.TimerActionStop, false, nil, models.TimerFinished},
		{"unknown action", models.TimerRunning, "rewind", false, ErrUnknownTimerAction, models.TimerRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			timer := NewTimer(tt.from, 30, clock.Now())

			changed, err := timer.Do(tt.action, clock.Now())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if timer.State() != tt.wantState {
				t.Errorf("state = %s, want %s", timer.State(), tt.wantState)
			}
		})
	}
}

func TestTimerRestoresPersistedClock(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(models.TimerRunning, 2700, clock.Now())

	clock.Advance(10 * time.Second)
	if got := timer.ClockSeconds(clock.Now()); got != 2710 {
		t.Errorf("clock = %d, want 2710", got)
	}
	finished := NewTimer(models.TimerFinished, 5400, clock.Now())
	clock.Advance(time.Minute)
	if got := finished.ClockSeconds(clock.Now()); got != 5400 {
		t.Errorf("finished clock moved to %d", got)
	}
}
