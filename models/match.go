package models

// Match is a transient pairing of two candidates inside a round.
type Match struct {
	Round  int       `json:"round"`
	Number int       `json:"number"` // 1-based within the round
	Total  int       `json:"total"`  // matches in the round, byes excluded
	Left   Candidate `json:"left"`
	Right  Candidate `json:"right"`
}

// MatchResult records one decided match.
type MatchResult struct {
	Round    int `json:"round"`
	Number   int `json:"number"`
	WinnerID int `json:"winner_id"`
	LoserID  int `json:"loser_id"`
}

// RoundInfo describes the size label of a round.
type RoundInfo struct {
	Participants int    `json:"participants"`
	Size         int    `json:"size"` // smallest power of two >= Participants
	Label        string `json:"label"`
	IsFinal      bool   `json:"is_final"`
	Matches      int    `json:"matches"`
	HasBye       bool   `json:"has_bye"`
}
