package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-live/models"
)

func ArchiveKey(matchID int) string {
	return fmt.Sprintf("live-matches/%d/final.json", matchID)
}

// MatchArchiver загружает итоговое состояние завершённых матчей.
type MatchArchiver struct {
	uploader FileUploader
	logger   *slog.Logger
}

func NewMatchArchiver(uploader FileUploader, logger *slog.Logger) *MatchArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchArchiver{uploader: uploader, logger: logger}
}

func (a *MatchArchiver) ArchiveMatch(ctx context.Context, state *models.MatchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode final state of match %d: %w", state.MatchID, err)
	}
	res, err := a.uploader.Upload(ctx, ArchiveKey(state.MatchID), "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	a.logger.Info("Final match state archived",
		slog.Int("match_id", state.MatchID),
		slog.String("key", res.Key),
		slog.String("location", res.Location),
		slog.Int("events", len(state.AppliedEvents)))
	return nil
}
