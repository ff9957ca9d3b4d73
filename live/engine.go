package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Dosada05/tournament-live/models"
)

const backgroundIOTimeout = 30 * time.Second

type Options struct {
	Validator            ValidatorOptions
	SessionIdleTimeout   time.Duration
	MatchIdleTimeout     time.Duration
	TickInterval         time.Duration
	HousekeepingInterval time.Duration
	Now                  func() time.Time
	NewID                func() string
}

func DefaultOptions() Options {
	return Options{
		Validator:            DefaultValidatorOptions(),
		SessionIdleTimeout:   10 * time.Minute,
		MatchIdleTimeout:     15 * time.Minute,
		TickInterval:         time.Second,
		HousekeepingInterval: 5 * time.Second,
		Now:                  time.Now,
		NewID:                uuid.NewString,
	}
}

// Dependencies - внешние зависимости движка. Store, Fixtures и Rooms обязательны,
// остальные можно не задавать.
type Dependencies struct {
	Store    MatchSnapshotStore
	Fixtures FixtureLookup
	Rooms    Broadcaster
	Results  ResultRecorder
	Archiver Archiver
	Events   AppliedEventSink
	Logger   *slog.Logger
}

type SubmitResult struct {
	Result    ValidationResult   `json:"result"`
	Event     *models.MatchEvent `json:"event,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// Engine владеет реестром живых матчей. Каждый загруженный матч обслуживает
// ровно одна горутина-воркер, общих изменяемых данных у матчей нет.
type Engine struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu      sync.RWMutex
	workers map[int]*matchWorker
	closed  bool
	loads   singleflight.Group

	sessionsMu   sync.Mutex
	sessionIndex map[string]int
}

func NewEngine(deps Dependencies, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Validator.MaxMinute <= 0 {
		opts.Validator.MaxMinute = def.Validator.MaxMinute
	}
	if opts.Validator.MinuteTolerance < 0 {
		opts.Validator.MinuteTolerance = def.Validator.MinuteTolerance
	}
	if opts.SessionIdleTimeout <= 0 {
		opts.SessionIdleTimeout = def.SessionIdleTimeout
	}
	if opts.MatchIdleTimeout <= 0 {
		opts.MatchIdleTimeout = def.MatchIdleTimeout
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.HousekeepingInterval <= 0 {
		opts.HousekeepingInterval = def.HousekeepingInterval
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if opts.NewID == nil {
		opts.NewID = def.NewID
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		deps:         deps,
		opts:         opts,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		workers:      make(map[int]*matchWorker),
		sessionIndex: make(map[string]int),
	}
}

func (e *Engine) now() time.Time { return e.opts.Now() }

func (e *Engine) Options() Options { return e.opts }

// acquire возвращает воркер матча, при необходимости поднимая его из хранилища.
// Одновременные первые обращения разделяют одну загрузку.
func (e *Engine) acquire(ctx context.Context, matchID int) (*matchWorker, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("%w: match_id is required", ErrMalformedRequest)
	}
	e.mu.RLock()
	w, closed := e.workers[matchID], e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrEngineClosed
	}
	if w != nil {
		return w, nil
	}

	v, err, _ := e.loads.Do(strconv.Itoa(matchID), func() (interface{}, error) {
		e.mu.RLock()
		existing := e.workers[matchID]
		e.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		state, err := e.hydrate(ctx, matchID)
		if err != nil {
			return nil, err
		}
		w := newMatchWorker(e, state)

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return nil, ErrEngineClosed
		}
		e.workers[matchID] = w
		e.mu.Unlock()

		go w.run(e.ctx)
		e.logger.Info("Live match loaded", slog.Int("match_id", matchID), slog.String("status", string(state.Status)), slog.Int64("version", state.Version))
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*matchWorker), nil
}

// hydrate загружает снапшот, доигрывает события, записанные после него, и
// сверяет счёт, карточки и статус со свёрткой событий.
func (e *Engine) hydrate(ctx context.Context, matchID int) (*models.MatchState, error) {
	state, err := e.deps.Store.Load(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot of match %d: %w", matchID, err)
	}
	if state == nil {
		fixture, err := e.deps.Fixtures.GetFixture(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("lookup fixture of match %d: %w", matchID, err)
		}
		if fixture == nil {
			return nil, fmt.Errorf("%w: %d", ErrMatchNotFound, matchID)
		}
		return models.NewMatchState(*fixture), nil
	}

	if reader, ok := e.deps.Store.(EventLogReader); ok {
		tail, err := reader.EventsAfter(ctx, matchID, state.LastSequence())
		if err != nil {
			return nil, fmt.Errorf("load events of match %d: %w", matchID, err)
		}
		m := NewMachine(state, e.now)
		for _, ev := range tail {
			if err := m.Replay(ev); err != nil {
				return nil, err
			}
		}
		if len(tail) > 0 {
			e.logger.Info("Replayed events recorded after snapshot", slog.Int("match_id", matchID), slog.Int("events", len(tail)))
		}
	}

	folded, err := Fold(state.Header(), state.AppliedEvents)
	if err != nil {
		return nil, err
	}
	if folded.Status != state.Status || folded.HomeScore != state.HomeScore || folded.AwayScore != state.AwayScore ||
		folded.HomeCards != state.HomeCards || folded.AwayCards != state.AwayCards || folded.Version != state.Version {
		e.logger.Warn("Snapshot disagrees with its events, using the event fold",
			slog.Int("match_id", matchID), slog.Int64("snapshot_version", state.Version), slog.Int64("fold_version", folded.Version))
		state.Status = folded.Status
		state.HomeScore, state.AwayScore = folded.HomeScore, folded.AwayScore
		state.HomeCards, state.AwayCards = folded.HomeCards, folded.AwayCards
		state.Version = folded.Version
	}
	return state, nil
}

// do выполняет fn на воркере матча и ждёт результат. Если воркер завершился,
// пока команда стояла в очереди, он пересоздаётся и команда повторяется.
func (e *Engine) do(ctx context.Context, matchID int, fn func(w *matchWorker) error) error {
	for {
		w, err := e.acquire(ctx, matchID)
		if err != nil {
			return err
		}
		res := make(chan error, 1)
		select {
		case w.cmds <- func(w *matchWorker) { res <- w.exec(fn) }:
			return <-res
		case <-w.done:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// doResident - do без загрузки: возвращает false, если матч не в памяти.
func (e *Engine) doResident(ctx context.Context, matchID int, fn func(w *matchWorker) error) (bool, error) {
	e.mu.RLock()
	w := e.workers[matchID]
	e.mu.RUnlock()
	if w == nil {
		return false, nil
	}
	res := make(chan error, 1)
	select {
	case w.cmds <- func(w *matchWorker) { res <- w.exec(fn) }:
		return true, <-res
	case <-w.done:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (e *Engine) forget(w *matchWorker) {
	e.mu.Lock()
	if e.workers[w.matchID] == w {
		delete(e.workers, w.matchID)
	}
	e.mu.Unlock()
}

func (e *Engine) isResident(matchID int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.workers[matchID]
	return ok
}

func (e *Engine) indexSession(sessionID string, matchID int) {
	e.sessionsMu.Lock()
	e.sessionIndex[sessionID] = matchID
	e.sessionsMu.Unlock()
}

func (e *Engine) unindexSession(sessionID string) {
	e.sessionsMu.Lock()
	delete(e.sessionIndex, sessionID)
	e.sessionsMu.Unlock()
}

func (e *Engine) sessionMatch(sessionID string) (int, bool) {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	id, ok := e.sessionIndex[sessionID]
	return id, ok
}

func (e *Engine) goBackground(name string, matchID int, fn func(ctx context.Context) error) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundIOTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.logger.Error("Background "+name+" failed", slog.Int("match_id", matchID), slog.Any("error", err))
		}
	}()
}

func (e *Engine) recordResult(state *models.MatchState) {
	if e.deps.Results == nil {
		return
	}
	e.goBackground("result write-back", state.MatchID, func(ctx context.Context) error {
		return e.deps.Results.RecordResult(ctx, state)
	})
}

func (e *Engine) archive(state *models.MatchState) {
	if e.deps.Archiver == nil {
		return
	}
	e.goBackground("archive", state.MatchID, func(ctx context.Context) error {
		return e.deps.Archiver.ArchiveMatch(ctx, state)
	})
}

// Shutdown останавливает все воркеры с сохранением снапшотов и ждёт фоновые записи.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	workers := make([]*matchWorker, 0, len(e.workers))
	for _, w := range e.workers {
		workers = append(workers, w)
	}
	e.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		close(w.quit)
		g.Go(func() error {
			select {
			case <-w.done:
				return nil
			case <-gctx.Done():
				return fmt.Errorf("match %d did not stop: %w", w.matchID, gctx.Err())
			}
		})
	}
	err := g.Wait()

	bgDone := make(chan struct{})
	go func() {
		e.bg.Wait()
		close(bgDone)
	}()
	select {
	case <-bgDone:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	e.cancel()
	return err
}

// ResidentMatches возвращает число матчей в памяти.
func (e *Engine) ResidentMatches() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.workers)
}
