package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-live/models"
	"github.com/Dosada05/tournament-live/repositories"
	"github.com/Dosada05/tournament-live/rooms"
)

type testEngine struct {
	*Engine
	clock    *fakeClock
	store    *repositories.MemoryMatchSnapshotRepository
	fixtures *repositories.MemoryFixtureRepository
	hub      *rooms.Hub
}

func newTestEngine(t *testing.T, tune func(*Options)) *testEngine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := newFakeClock()
	te := &testEngine{
		clock:    clock,
		store:    repositories.NewMemoryMatchSnapshotRepository(),
		fixtures: repositories.NewMemoryFixtureRepository(testFixture()),
		hub:      rooms.NewHub(logger),
	}
	opts := DefaultOptions()
	opts.Now = clock.Now
	opts.NewID = sequentialIDs("id")
	opts.TickInterval = time.Hour
	opts.HousekeepingInterval = time.Hour
	if tune != nil {
		tune(&opts)
	}
	te.Engine = NewEngine(Dependencies{
		Store:    te.store,
		Fixtures: te.fixtures,
		Rooms:    te.hub,
		Results:  te.fixtures,
		Logger:   logger,
	}, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = te.Shutdown(ctx)
	})
	return te
}

// kickOff opens a referee session and puts the match in progress.
func (te *testEngine) kickOff(t *testing.T) models.EventEntrySession {
	t.Helper()
	ctx := context.Background()
	s, err := te.StartEventEntry(ctx, testMatchID, referee)
	if err != nil {
		t.Fatalf("StartEventEntry: %v", err)
	}
	if _, err := te.ChangeStatus(ctx, testMatchID, referee, models.MatchStatusInProgress); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	return s
}

func (te *testEngine) submit(t *testing.T, p models.Principal, in models.MatchEventInput) SubmitResult {
	t.Helper()
	in.MatchID = testMatchID
	res, err := te.SubmitEvent(context.Background(), Candidate{Input: in, Principal: p})
	if err != nil {
		t.Fatalf("SubmitEvent(%s): %v (result %+v)", in.Type, err, res.Result)
	}
	return res
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func drain(sink chan []byte) []received {
	var out []received
	for {
		select {
		case raw := <-sink:
			var m received
			if err := json.Unmarshal(raw, &m); err == nil {
				out = append(out, m)
			}
		default:
			return out
		}
	}
}

func types(msgs []received) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGoalAfterKickOff(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	sink := make(chan []byte, 64)
	unsubscribe, err := te.JoinMatch(ctx, models.MatchRoomSubscription{ConnectionID: "fan", MatchID: testMatchID, Role: models.RoleSpectator}, sink)
	if err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	defer unsubscribe()
	joined := drain(sink)
	if len(joined) != 3 || joined[0].Type != models.MsgMatchState {
		t.Fatalf("join delivered %v, want match-state and two statistics", types(joined))
	}

	te.kickOff(t)
	if _, err := te.ControlTimer(ctx, testMatchID, referee, models.TimerActionStart); err != nil {
		t.Fatalf("ControlTimer: %v", err)
	}
	drain(sink)

	res := te.submit(t, referee, models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 12, PlayerID: intPtr(9)})
	if res.Event == nil || res.Event.Sequence != 1 {
		t.Fatalf("event %+v, want sequence 1", res.Event)
	}

	state, err := te.State(ctx, testMatchID)
	if err != nil {
		t.Fatal(err)
	}
	if state.HomeScore != 1 || state.AwayScore != 0 || state.Version != 2 {
		t.Errorf("state %d-%d v%d, want 1-0 v2", state.HomeScore, state.AwayScore, state.Version)
	}
	if len(state.AppliedEvents) != 2 || state.AppliedEvents[0].Type != models.EventStatusChange {
		t.Errorf("applied events %d, want status change + goal", len(state.AppliedEvents))
	}
	if state.Status != models.MatchStatusInProgress || state.Timer != models.TimerRunning {
		t.Errorf("status %s timer %s", state.Status, state.Timer)
	}

	got := types(drain(sink))
	want := []string{models.MsgMatchEvent, models.MsgMatchState, models.MsgTeamStatisticsUpdated}
	if len(got) != len(want) {
		t.Fatalf("broadcasts %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broadcasts %v, want %v", got, want)
		}
	}
}

func TestSubmitRequiresSession(t *testing.T) {
	te := newTestEngine(t, nil)
	te.kickOff(t)

	in := models.MatchEventInput{MatchID: testMatchID, Type: models.EventCorner, TeamID: awayTeam, Minute: 3}
	_, err := te.SubmitEvent(context.Background(), Candidate{Input: in, Principal: referee2})
	if !errors.Is(err, ErrSessionRequired) {
		t.Fatalf("err = %v, want ErrSessionRequired", err)
	}
}

func TestRejectedEventLeavesStateUntouched(t *testing.T) {
	te := newTestEngine(t, nil)
	te.kickOff(t)
	te.submit(t, referee, models.MatchEventInput{Type: models.EventRedCard, TeamID: homeTeam, Minute: 30, PlayerID: intPtr(7)})

	in := models.MatchEventInput{MatchID: testMatchID, Type: models.EventRedCard, TeamID: homeTeam, Minute: 35, PlayerID: intPtr(7)}
	res, err := te.SubmitEvent(context.Background(), Candidate{Input: in, Principal: referee})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if !hasIssue(res.Result.Errors, CodeDuplicateDismissal) {
		t.Errorf("errors %+v", res.Result.Errors)
	}

	state, _ := te.State(context.Background(), testMatchID)
	if state.Version != 2 || state.HomeCards.Red != 1 {
		t.Errorf("version %d red %d, want 2 and 1", state.Version, state.HomeCards.Red)
	}
}

func TestCoOfficiatingSessions(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := te.StartEventEntry(ctx, testMatchID, referee)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := te.StartEventEntry(ctx, testMatchID, referee2); err != nil {
		t.Fatalf("second referee: %v", err)
	}

	_, err = te.StartEventEntry(ctx, testMatchID, referee)
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.SessionID != first.SessionID {
		t.Fatalf("err = %v, want conflict carrying %s", err, first.SessionID)
	}

	if _, err := te.StartEventEntry(ctx, testMatchID, spectator); !errors.Is(err, ErrForbidden) {
		t.Errorf("spectator: err = %v, want ErrForbidden", err)
	}
}

func TestConcurrentSubmissionsAreSerialized(t *testing.T) {
	te := newTestEngine(t, nil)
	te.kickOff(t)
	if _, err := te.StartEventEntry(context.Background(), testMatchID, referee2); err != nil {
		t.Fatal(err)
	}

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		p, team := referee, homeTeam
		if i%2 == 1 {
			p, team = referee2, awayTeam
		}
		wg.Add(1)
		go func(p models.Principal, team, minute int) {
			defer wg.Done()
			in := models.MatchEventInput{MatchID: testMatchID, Type: models.EventCorner, TeamID: team, Minute: minute}
			if _, err := te.SubmitEvent(context.Background(), Candidate{Input: in, Principal: p}); err != nil {
				errs <- err
			}
		}(p, team, i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	state, err := te.State(context.Background(), testMatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.AppliedEvents) != n+1 {
		t.Fatalf("applied %d events, want %d", len(state.AppliedEvents), n+1)
	}
	seen := make(map[string]bool)
	for i, ev := range state.AppliedEvents {
		if ev.Sequence != i {
			t.Fatalf("event %d has sequence %d", i, ev.Sequence)
		}
		if seen[ev.ID] {
			t.Fatalf("duplicate event id %s", ev.ID)
		}
		seen[ev.ID] = true
	}
	if state.Version != int64(n+1) {
		t.Errorf("version %d, want %d", state.Version, n+1)
	}
}

func TestEndEventEntry(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	session := te.kickOff(t)
	te.submit(t, referee, models.MatchEventInput{Type: models.EventGoal, TeamID: awayTeam, Minute: 20, PlayerID: intPtr(11)})

	if err := te.EndEventEntry(ctx, session.SessionID, coachOf(homeTeam)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("coach ending a referee session: err = %v, want ErrForbidden", err)
	}
	for i := 0; i < 2; i++ {
		if err := te.EndEventEntry(ctx, session.SessionID, referee); err != nil {
			t.Fatalf("EndEventEntry #%d: %v", i+1, err)
		}
	}

	state, _ := te.State(ctx, testMatchID)
	if len(state.AppliedEvents) != 2 || state.AwayScore != 1 {
		t.Errorf("ending a session changed events: %d events, away %d", len(state.AppliedEvents), state.AwayScore)
	}
	in := models.MatchEventInput{MatchID: testMatchID, Type: models.EventCorner, TeamID: awayTeam, Minute: 21}
	if _, err := te.SubmitEvent(ctx, Candidate{Input: in, Principal: referee}); !errors.Is(err, ErrSessionRequired) {
		t.Errorf("submit after end: err = %v, want ErrSessionRequired", err)
	}
}

func TestSessionPresenceIsBroadcast(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	sink := make(chan []byte, 64)
	unsubscribe, err := te.JoinMatch(ctx, models.MatchRoomSubscription{ConnectionID: "fan", MatchID: testMatchID, Role: models.RoleSpectator}, sink)
	if err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	defer unsubscribe()
	drain(sink)

	session, err := te.StartEventEntry(ctx, testMatchID, referee)
	if err != nil {
		t.Fatalf("StartEventEntry: %v", err)
	}
	if got := types(drain(sink)); len(got) != 1 || got[0] != models.MsgSessionStarted {
		t.Fatalf("start broadcast %v, want [%s]", got, models.MsgSessionStarted)
	}

	if err := te.EndEventEntry(ctx, session.SessionID, referee); err != nil {
		t.Fatalf("EndEventEntry: %v", err)
	}
	if got := types(drain(sink)); len(got) != 1 || got[0] != models.MsgSessionEnded {
		t.Fatalf("end broadcast %v, want [%s]", got, models.MsgSessionEnded)
	}

	// повторный end ничего не рассылает
	if err := te.EndEventEntry(ctx, session.SessionID, referee); err != nil {
		t.Fatal(err)
	}
	if got := drain(sink); len(got) != 0 {
		t.Errorf("second end broadcast %v", types(got))
	}
}

func TestCoachSubstitutionRequest(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.kickOff(t)
	coach := coachOf(homeTeam)
	if _, err := te.StartEventEntry(ctx, testMatchID, coach); err != nil {
		t.Fatalf("coach session: %v", err)
	}

	req := te.submit(t, coach, models.MatchEventInput{Type: models.EventSubstitution, TeamID: homeTeam, Minute: 60, PlayerOutID: intPtr(3), PlayerInID: intPtr(14)})
	if req.Event != nil || req.RequestID == "" || !req.Result.Pending {
		t.Fatalf("request result %+v", req)
	}
	state, _ := te.State(ctx, testMatchID)
	if len(state.PendingSubstitutions) != 1 || state.Version != 1 {
		t.Fatalf("pending %d version %d, want 1 and 1", len(state.PendingSubstitutions), state.Version)
	}

	confirmed := te.submit(t, referee, models.MatchEventInput{Type: models.EventSubstitution, TeamID: homeTeam, Minute: 61, ConfirmsRequestID: req.RequestID})
	if confirmed.Event == nil {
		t.Fatal("confirmation applied no event")
	}
	p, ok := confirmed.Event.Payload.(models.SubstitutionPayload)
	if !ok || p.RequestID != req.RequestID || p.PlayerOutID != 3 || p.PlayerInID != 14 {
		t.Errorf("payload %+v", confirmed.Event.Payload)
	}
	state, _ = te.State(ctx, testMatchID)
	if len(state.PendingSubstitutions) != 0 {
		t.Errorf("request still pending after confirmation")
	}
}

func TestCompletedMatchRecordsResult(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.kickOff(t)
	te.submit(t, referee, models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 80, PlayerID: intPtr(9)})
	if _, err := te.ChangeStatus(ctx, testMatchID, referee, models.MatchStatusCompleted); err != nil {
		t.Fatal(err)
	}

	if _, err := te.StartEventEntry(ctx, testMatchID, referee2); !errors.Is(err, ErrMatchFinished) {
		t.Errorf("session on finished match: err = %v, want ErrMatchFinished", err)
	}
	if err := te.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	result, ok := te.fixtures.Result(testMatchID)
	if !ok {
		t.Fatal("result was not written back")
	}
	if result.HomeScore != 1 || result.Status != models.MatchStatusCompleted {
		t.Errorf("result %d-%d %s", result.HomeScore, result.AwayScore, result.Status)
	}
	if _, err := te.State(ctx, testMatchID); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("after shutdown: err = %v, want ErrEngineClosed", err)
	}
}

func TestEvictionAndRehydration(t *testing.T) {
	te := newTestEngine(t, func(o *Options) {
		o.HousekeepingInterval = 5 * time.Millisecond
		o.MatchIdleTimeout = time.Minute
	})
	ctx := context.Background()
	session := te.kickOff(t)
	te.submit(t, referee, models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 10, PlayerID: intPtr(9)})
	te.submit(t, referee, models.MatchEventInput{Type: models.EventYellowCard, TeamID: awayTeam, Minute: 15, PlayerID: intPtr(4)})
	if err := te.EndEventEntry(ctx, session.SessionID, referee); err != nil {
		t.Fatal(err)
	}

	te.clock.Advance(2 * time.Minute)
	waitFor(t, "eviction", func() bool { return !te.isResident(testMatchID) })

	state, err := te.State(ctx, testMatchID)
	if err != nil {
		t.Fatalf("State after eviction: %v", err)
	}
	if state.HomeScore != 1 || state.AwayCards.Yellow != 1 || state.Version != 3 || len(state.AppliedEvents) != 3 {
		t.Errorf("rehydrated %d-%d yellow %d v%d", state.HomeScore, state.AwayScore, state.AwayCards.Yellow, state.Version)
	}
	stats, err := te.Statistics(ctx, testMatchID)
	if err != nil {
		t.Fatal(err)
	}
	if stats[0].Goals != 1 || stats[1].YellowCards != 1 {
		t.Errorf("rebuilt statistics %+v", stats)
	}
}

func TestIntegrityFaultQuarantinesMatch(t *testing.T) {
	tests := []struct {
		name  string
		fault func(w *matchWorker) error
	}{
		{"fault", func(w *matchWorker) error { return integrityFault(w.matchID, "score drifted") }},
		{"panic", func(w *matchWorker) error { panic("nil roster") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, nil)
			ctx := context.Background()
			sink := make(chan []byte, 64)
			unsubscribe, err := te.JoinMatch(ctx, models.MatchRoomSubscription{ConnectionID: "fan", MatchID: testMatchID}, sink)
			if err != nil {
				t.Fatal(err)
			}
			defer unsubscribe()
			session := te.kickOff(t)
			te.submit(t, referee, models.MatchEventInput{Type: models.EventGoal, TeamID: awayTeam, Minute: 5, PlayerID: intPtr(11)})

			if err := te.do(ctx, testMatchID, tt.fault); !errors.Is(err, ErrStateIntegrity) {
				t.Fatalf("err = %v, want integrity fault", err)
			}
			waitFor(t, "quarantine", func() bool { return !te.isResident(testMatchID) })

			var sawError bool
			var ended []string
			for _, m := range drain(sink) {
				switch m.Type {
				case models.MsgMatchStateError:
					sawError = true
				case models.MsgSessionEnded:
					var p models.SessionPayload
					if err := json.Unmarshal(m.Payload, &p); err != nil {
						t.Fatal(err)
					}
					ended = append(ended, p.SessionID)
				}
			}
			if !sawError {
				t.Error("subscribers were not told about the fault")
			}
			if len(ended) != 1 || ended[0] != session.SessionID {
				t.Errorf("session-ended for %v, want [%s]", ended, session.SessionID)
			}

			state, err := te.State(ctx, testMatchID)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if state.AwayScore != 1 || state.Version != 2 {
				t.Errorf("reloaded %d-%d v%d, want 0-1 v2", state.HomeScore, state.AwayScore, state.Version)
			}
			if _, err := te.StartEventEntry(ctx, testMatchID, referee); err != nil {
				t.Errorf("sessions were not cleared by quarantine: %v", err)
			}
		})
	}
}

func TestSyncReturnsMissedEvents(t *testing.T) {
	te := newTestEngine(t, nil)
	te.kickOff(t)
	te.submit(t, referee, models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 10, PlayerID: intPtr(9)})
	te.submit(t, referee, models.MatchEventInput{Type: models.EventCorner, TeamID: awayTeam, Minute: 11})

	out, err := te.Sync(context.Background(), testMatchID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Events) != 2 || out.Events[0].Sequence != 1 || out.Events[1].Sequence != 2 {
		t.Fatalf("sync events %+v", out.Events)
	}
	if out.State.Version != 3 {
		t.Errorf("sync version %d, want 3", out.State.Version)
	}
}

func TestReportTrackingUpdatesBothTeams(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	sink := make(chan []byte, 64)
	unsubscribe, err := te.JoinMatch(ctx, models.MatchRoomSubscription{ConnectionID: "fan", MatchID: testMatchID}, sink)
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()
	drain(sink)

	snap, err := te.ReportTracking(ctx, testMatchID, models.TrackingSample{TeamID: homeTeam, Possession: 64, Passes: 210, PassAccuracy: 86.5})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Possession != 64 || snap.Passes != 210 {
		t.Errorf("snapshot %+v", snap)
	}
	if got := types(drain(sink)); len(got) != 2 {
		t.Errorf("broadcasts %v, want statistics for both teams", got)
	}
	stats, _ := te.Statistics(ctx, testMatchID)
	if stats[1].Possession != 36 {
		t.Errorf("away possession %v, want 36", stats[1].Possession)
	}
}

func TestTrackingSurvivesEviction(t *testing.T) {
	te := newTestEngine(t, func(o *Options) {
		o.HousekeepingInterval = 5 * time.Millisecond
	})
	ctx := context.Background()
	session := te.kickOff(t)
	if _, err := te.ReportTracking(ctx, testMatchID, models.TrackingSample{TeamID: homeTeam, Possession: 64, Passes: 210, PassAccuracy: 86.5}); err != nil {
		t.Fatal(err)
	}
	if _, err := te.ChangeStatus(ctx, testMatchID, referee, models.MatchStatusCompleted); err != nil {
		t.Fatal(err)
	}
	before, err := te.Statistics(ctx, testMatchID)
	if err != nil {
		t.Fatal(err)
	}
	if err := te.EndEventEntry(ctx, session.SessionID, referee); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "eviction", func() bool { return !te.isResident(testMatchID) })

	after, err := te.Statistics(ctx, testMatchID)
	if err != nil {
		t.Fatalf("Statistics after eviction: %v", err)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("team %d statistics changed across eviction:\n before %+v\n after  %+v", before[i].TeamID, before[i], after[i])
		}
	}
	if after[0].Possession != 64 || after[0].Passes != 210 || after[1].Possession != 36 {
		t.Errorf("rehydrated tracking %+v / %+v", after[0], after[1])
	}
}

func TestTimerTicksUntilPaused(t *testing.T) {
	te := newTestEngine(t, func(o *Options) {
		o.TickInterval = 2 * time.Millisecond
	})
	ctx := context.Background()
	sink := make(chan []byte, 256)
	unsubscribe, err := te.JoinMatch(ctx, models.MatchRoomSubscription{ConnectionID: "fan", MatchID: testMatchID}, sink)
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()

	te.kickOff(t)
	// начало матча таймер не запускает
	if state, _ := te.State(ctx, testMatchID); state.Timer != models.TimerStopped {
		t.Fatalf("timer after kick-off is %s, want stopped", state.Timer)
	}
	if _, err := te.ControlTimer(ctx, testMatchID, referee, models.TimerActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	drain(sink)

	var clocks []int
	collect := func() {
		for _, m := range drain(sink) {
			if m.Type != models.MsgMatchTick {
				continue
			}
			var p models.MatchTickPayload
			if err := json.Unmarshal(m.Payload, &p); err != nil {
				t.Fatal(err)
			}
			clocks = append(clocks, p.ClockSeconds)
		}
	}
	for i := 1; i <= 5; i++ {
		te.clock.Advance(time.Second)
		waitFor(t, "tick", func() bool {
			collect()
			return len(clocks) >= i
		})
	}
	if len(clocks) != 5 || clocks[4] != 5 {
		t.Fatalf("ticks %v, want 1..5", clocks)
	}

	view, err := te.ControlTimer(ctx, testMatchID, referee, models.TimerActionPause)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if view.State != models.TimerPaused || view.ClockSeconds < 4 || view.ClockSeconds > 6 {
		t.Errorf("paused view %+v, want clock 5±1", view)
	}
	drain(sink)

	clocks = nil
	te.clock.Advance(3 * time.Second)
	time.Sleep(50 * time.Millisecond)
	collect()
	if len(clocks) != 0 {
		t.Errorf("paused timer broadcast ticks %v", clocks)
	}
	state, err := te.State(ctx, testMatchID)
	if err != nil {
		t.Fatal(err)
	}
	if state.ClockSeconds != view.ClockSeconds {
		t.Errorf("clock moved while paused: %d -> %d", view.ClockSeconds, state.ClockSeconds)
	}
}
