package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-live/models"
)

const saveTimeout = 10 * time.Second

// snapshotWriter сохраняет снапшоты вне горутины воркера. Очередь схлопывается:
// записывается только самый новый снапшот.
type snapshotWriter struct {
	matchID int
	store   MatchSnapshotStore
	logger  *slog.Logger

	mu      sync.Mutex
	pending *models.MatchState

	saveMu sync.Mutex
	signal chan struct{}
}

func newSnapshotWriter(matchID int, store MatchSnapshotStore, logger *slog.Logger) *snapshotWriter {
	return &snapshotWriter{
		matchID: matchID,
		store:   store,
		logger:  logger,
		signal:  make(chan struct{}, 1),
	}
}

func (w *snapshotWriter) enqueue(state *models.MatchState) {
	w.mu.Lock()
	w.pending = state
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *snapshotWriter) run(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-w.signal:
			if err := w.flush(ctx); err != nil {
				w.logger.Error("Failed to save match snapshot", slog.Int("match_id", w.matchID), slog.Any("error", err))
			}
		case <-stop:
			return
		}
	}
}

// flush записывает ожидающий снапшот. При ошибке он остаётся в ожидании,
// если за это время не пришёл более новый.
func (w *snapshotWriter) flush(ctx context.Context) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	state := w.pending
	w.pending = nil
	w.mu.Unlock()
	if state == nil {
		return nil
	}

	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := w.store.Save(saveCtx, state); err != nil {
		w.mu.Lock()
		if w.pending == nil {
			w.pending = state
		}
		w.mu.Unlock()
		return err
	}
	return nil
}
