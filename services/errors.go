package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrSessionNotFound    = errors.New("session not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed    = errors.New("validation failed")
	ErrInvalidRadius       = errors.New("radius must be one of 100, 200, 300, 400, 500")
	ErrKeywordRequired     = errors.New("search keyword is required")
	ErrNotEnoughCandidates = errors.New("at least two surviving candidates are required")
	ErrTooManyCandidates   = errors.New("too many surviving candidates for a tournament")
	ErrInvalidWinner       = errors.New("winner is not part of the current match")
	ErrAttachmentTooLarge  = errors.New("attachment exceeds the size limit")

	// Конфликты состояния
	ErrTournamentNotStarted   = errors.New("no tournament in progress")
	ErrTournamentInProgress   = errors.New("a tournament is in progress")
	ErrTournamentAlreadyEnded = errors.New("tournament already has a champion")

	// Внешний API
	ErrUpstreamUnavailable = errors.New("restaurant service is unavailable")
)
