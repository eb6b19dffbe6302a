package brackets

import (
	"errors"
	"fmt"

	"github.com/Dosada05/lunch-roulette/models"
)

var (
	ErrWinnerNotInMatch   = errors.New("winner is not part of the current match")
	ErrTournamentFinished = errors.New("tournament already has a champion")
)

// Outcome is what a single ReportWinner call produced. Loser must be
// eliminated by the caller; the engine never touches the caller's list.
type Outcome struct {
	Winner        models.Candidate
	Loser         models.Candidate
	RoundComplete bool
	// Bye is set when the completed round had an unpaired trailing participant.
	Bye *models.Candidate
	// Champion is set on the terminal result.
	Champion *models.Candidate
}

// State is a read-only snapshot of the engine.
type State struct {
	Round         int                  `json:"round"`
	RoundInfo     models.RoundInfo     `json:"round_info"`
	Participants  []models.Candidate   `json:"participants"`
	CurrentMatch  *models.Match        `json:"current_match,omitempty"`
	Advanced      []models.Candidate   `json:"advanced"`
	MatchesPlayed int                  `json:"matches_played"`
	Byes          int                  `json:"byes"`
	Finished      bool                 `json:"finished"`
	Champion      *models.Candidate    `json:"champion,omitempty"`
	History       []models.MatchResult `json:"history"`
	Upcoming      []models.RoundInfo   `json:"upcoming"`
}

// Engine reduces a field of candidates to one champion by single elimination.
// It is not safe for concurrent use.
type Engine struct {
	rng Shuffler

	round        int
	participants []models.Candidate
	matchIndex   int
	winners      []models.Candidate

	matchesPlayed int
	byes          int
	champion      *models.Candidate
	history       []models.MatchResult
}

func NewEngine(rng Shuffler) *Engine {
	return &Engine{rng: rng}
}

// Start seeds round 1 with a shuffled copy of candidates. Callers must pass
// at least two candidates.
func (e *Engine) Start(candidates []models.Candidate) State {
	field := make([]models.Candidate, len(candidates))
	copy(field, candidates)
	Shuffle(e.rng, field)

	e.round = 1
	e.participants = field
	e.matchIndex = 0
	e.winners = nil
	e.matchesPlayed = 0
	e.byes = 0
	e.champion = nil
	e.history = nil

	return e.State()
}

// CurrentMatch returns the pair awaiting a decision.
func (e *Engine) CurrentMatch() (models.Match, bool) {
	if e.champion != nil {
		return models.Match{}, false
	}
	i := e.matchIndex * 2
	if i+1 >= len(e.participants) {
		return models.Match{}, false
	}
	return models.Match{
		Round:  e.round,
		Number: e.matchIndex + 1,
		Total:  len(e.participants) / 2,
		Left:   e.participants[i],
		Right:  e.participants[i+1],
	}, true
}

// ReportWinner decides the current match in favour of winnerID.
func (e *Engine) ReportWinner(winnerID int) (Outcome, error) {
	if e.champion != nil {
		return Outcome{}, ErrTournamentFinished
	}
	match, ok := e.CurrentMatch()
	if !ok {
		return Outcome{}, fmt.Errorf("%w: no match in progress", ErrWinnerNotInMatch)
	}

	var out Outcome
	switch winnerID {
	case match.Left.ID:
		out.Winner, out.Loser = match.Left, match.Right
	case match.Right.ID:
		out.Winner, out.Loser = match.Right, match.Left
	default:
		return Outcome{}, fmt.Errorf("%w: candidate %d (match is %d vs %d)",
			ErrWinnerNotInMatch, winnerID, match.Left.ID, match.Right.ID)
	}

	e.winners = append(e.winners, out.Winner)
	e.matchesPlayed++
	e.history = append(e.history, models.MatchResult{
		Round:    e.round,
		Number:   match.Number,
		WinnerID: out.Winner.ID,
		LoserID:  out.Loser.ID,
	})

	if e.matchIndex+1 < len(e.participants)/2 {
		e.matchIndex++
		return out, nil
	}

	// Раунд завершён: нечётный участник проходит дальше без игры.
	out.RoundComplete = true
	next := e.winners
	if len(e.participants)%2 == 1 {
		bye := e.participants[len(e.participants)-1]
		next = append(next, bye)
		out.Bye = &bye
		e.byes++
	}

	if len(next) == 1 {
		champion := next[0]
		e.champion = &champion
		e.participants = next
		e.winners = nil
		out.Champion = &champion
		return out, nil
	}

	e.round++
	e.participants = next
	e.matchIndex = 0
	e.winners = nil
	return out, nil
}

// Finished reports whether a champion has been decided.
func (e *Engine) Finished() bool {
	return e.champion != nil
}

func (e *Engine) State() State {
	st := State{
		Round:         e.round,
		RoundInfo:     DescribeRound(len(e.participants)),
		Participants:  append([]models.Candidate(nil), e.participants...),
		Advanced:      append([]models.Candidate{}, e.winners...),
		MatchesPlayed: e.matchesPlayed,
		Byes:          e.byes,
		Finished:      e.champion != nil,
		History:       append([]models.MatchResult{}, e.history...),
	}
	if e.champion != nil {
		champion := *e.champion
		st.Champion = &champion
		st.Upcoming = []models.RoundInfo{}
		return st
	}
	if m, ok := e.CurrentMatch(); ok {
		st.CurrentMatch = &m
	}
	plan := PlanRounds(len(e.participants))
	if len(plan) > 1 {
		st.Upcoming = plan[1:]
	} else {
		st.Upcoming = []models.RoundInfo{}
	}
	return st
}
