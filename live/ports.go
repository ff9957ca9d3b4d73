package live

import (
	"context"

	"github.com/Dosada05/tournament-live/models"
)

// MatchSnapshotStore - долговременное хранилище состояния матча. Load возвращает
// (nil, nil), если матч ещё ни разу не сохранялся.
type MatchSnapshotStore interface {
	Load(ctx context.Context, matchID int) (*models.MatchState, error)
	Save(ctx context.Context, state *models.MatchState) error
}

// EventLogReader реализуют хранилища с отдельным журналом событий. События,
// записанные после снапшота, доигрываются при загрузке.
type EventLogReader interface {
	EventsAfter(ctx context.Context, matchID int, afterSequence int) ([]models.MatchEvent, error)
}

// FixtureLookup находит команды матча, у которого ещё нет живого состояния.
type FixtureLookup interface {
	GetFixture(ctx context.Context, matchID int) (*models.MatchFixture, error)
}

type RosterLookup interface {
	IsValidPlayer(ctx context.Context, teamID, playerID int) (bool, error)
}

// ResultRecorder получает итоговое состояние завершённого матча.
type ResultRecorder interface {
	RecordResult(ctx context.Context, state *models.MatchState) error
}

type Archiver interface {
	ArchiveMatch(ctx context.Context, state *models.MatchState) error
}

// AppliedEventSink получает каждое применённое событие. Реализация не должна блокировать.
type AppliedEventSink interface {
	PublishApplied(ev models.MatchEvent, view models.MatchStateView)
}

type Broadcaster interface {
	Subscribe(room string, sub models.MatchRoomSubscription, sink chan<- []byte) (unsubscribe func())
	Publish(room string, msg models.LiveMessage)
	Deliver(sink chan<- []byte, msg models.LiveMessage) bool
	RoomSize(room string) int
}
