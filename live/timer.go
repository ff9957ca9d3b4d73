package live

import (
	"fmt"
	"time"

	"github.com/Dosada05/tournament-live/models"
)

// Timer - таймер матча по реальному времени, единственный писатель clockSeconds.
//
//	stopped -> running <-> paused -> finished
type Timer struct {
	state        models.TimerState
	accumulated  time.Duration
	runningSince time.Time
	lastTick     int
}

// NewTimer восстанавливает таймер из сохранённого состояния. Таймер,
// сохранённый как running, продолжает отсчёт с текущего момента.
func NewTimer(state models.TimerState, clockSeconds int, now time.Time) *Timer {
	t := &Timer{
		state:       state,
		accumulated: time.Duration(clockSeconds) * time.Second,
		lastTick:    clockSeconds,
	}
	switch state {
	case models.TimerRunning:
		t.runningSince = now
	case models.TimerPaused, models.TimerFinished:
	default:
		t.state = models.TimerStopped
	}
	return t
}

func (t *Timer) State() models.TimerState { return t.state }

func (t *Timer) Running() bool { return t.state == models.TimerRunning }

func (t *Timer) Elapsed(now time.Time) time.Duration {
	if t.state != models.TimerRunning {
		return t.accumulated
	}
	d := t.accumulated + now.Sub(t.runningSince)
	if d < t.accumulated {
		return t.accumulated
	}
	return d
}

func (t *Timer) ClockSeconds(now time.Time) int {
	return int(t.Elapsed(now) / time.Second)
}

// Do выполняет действие и сообщает, изменилось ли состояние таймера.
// Повторные pause и resume ничего не делают.
func (t *Timer) Do(action models.TimerAction, now time.Time) (bool, error) {
	switch action {
	case models.TimerActionStart:
		return t.Start(now)
	case models.TimerActionPause:
		return t.Pause(now)
	case models.TimerActionResume:
		return t.Resume(now)
	case models.TimerActionStop:
		return t.Stop(now)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownTimerAction, action)
	}
}

func (t *Timer) Start(now time.Time) (bool, error) {
	switch t.state {
	case models.TimerStopped:
		t.state = models.TimerRunning
		t.runningSince = now
		return true, nil
	case models.TimerRunning:
		return false, nil
	default:
		return false, fmt.Errorf("%w: cannot start a %s timer", ErrTimerTransition, t.state)
	}
}

func (t *Timer) Pause(now time.Time) (bool, error) {
	switch t.state {
	case models.TimerRunning:
		t.accumulated = t.Elapsed(now)
		t.state = models.TimerPaused
		return true, nil
	case models.TimerPaused:
		return false, nil
	default:
		return false, fmt.Errorf("%w: cannot pause a %s timer", ErrTimerTransition, t.state)
	}
}

func (t *Timer) Resume(now time.Time) (bool, error) {
	switch t.state {
	case models.TimerPaused:
		t.state = models.TimerRunning
		t.runningSince = now
		return true, nil
	case models.TimerRunning:
		return false, nil
	default:
		return false, fmt.Errorf("%w: cannot resume a %s timer", ErrTimerTransition, t.state)
	}
}

// Stop окончательный: остановленный таймер больше не запускается.
func (t *Timer) Stop(now time.Time) (bool, error) {
	switch t.state {
	case models.TimerFinished:
		return false, nil
	case models.TimerStopped:
		return false, fmt.Errorf("%w: timer was never started", ErrTimerTransition)
	default:
		t.accumulated = t.Elapsed(now)
		t.state = models.TimerFinished
		return true, nil
	}
}

// Tick возвращает время и признак того, что с прошлого тика прошла новая секунда.
func (t *Timer) Tick(now time.Time) (int, bool) {
	secs := t.ClockSeconds(now)
	if t.state != models.TimerRunning || secs <= t.lastTick {
		return secs, false
	}
	t.lastTick = secs
	return secs, true
}
