package services

import "errors"

// Ошибки сервисного слоя, которые не покрывает пакет live.
var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrTournamentInvalid = errors.New("tournament id must be positive")
)
