package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Dosada05/lunch-roulette/brackets"
	"github.com/Dosada05/lunch-roulette/config"
	"github.com/Dosada05/lunch-roulette/markers"
	"github.com/Dosada05/lunch-roulette/metrics"
	"github.com/Dosada05/lunch-roulette/models"
	"github.com/Dosada05/lunch-roulette/repositories"
	"github.com/Dosada05/lunch-roulette/share"
	"github.com/Dosada05/lunch-roulette/utils"
	"github.com/google/uuid"
)

// Notices returned by Create.
const (
	NoticeShareTokenInvalid = "share_token_invalid"
	NoticeFetchFailed       = "fetch_failed"
)

// Publisher delivers live updates to the sockets of a session room.
type Publisher interface {
	Publish(roomID, messageType string, payload interface{})
}

type SessionService interface {
	Create(ctx context.Context, input CreateSessionInput) (*SessionView, error)
	Get(ctx context.Context, id string) (*SessionView, error)
	ChangeRadius(ctx context.Context, id string, radius int) (*SessionView, error)
	Search(ctx context.Context, id string, keyword string) (*SessionView, error)
	ResetSearch(ctx context.Context, id string) (*SessionView, error)
	ToggleCategory(ctx context.Context, id string, name string) (*SessionView, error)
	RemoveCandidate(ctx context.Context, id string, candidateID int) (*SessionView, error)
	Refresh(ctx context.Context, id string) (*SessionView, error)
	Markers(ctx context.Context, id string) ([]markers.Marker, error)
	Share(ctx context.Context, id string) (*ShareResult, error)

	StartTournament(ctx context.Context, id string) (*TournamentView, error)
	GetTournament(ctx context.Context, id string) (*TournamentView, error)
	ReportWinner(ctx context.Context, id string, candidateID int) (*TournamentView, error)
	CloseTournament(ctx context.Context, id string) error

	// Sweep drops sessions idle for longer than the configured TTL.
	Sweep(now time.Time) int
}

type CreateSessionInput struct {
	ShareToken string
	OriginX    *float64
	OriginY    *float64
	Radius     *int
	Layout     models.LayoutMode
}

type Origin struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SessionView is the snapshot returned by every session operation.
type SessionView struct {
	ID               string             `json:"id"`
	Layout           models.LayoutMode  `json:"layout"`
	Origin           Origin             `json:"origin"`
	Radius           int                `json:"radius"`
	Keyword          string             `json:"keyword,omitempty"`
	Candidates       []models.Candidate `json:"candidates"`
	Categories       []models.Category  `json:"categories"`
	Excluded         []string           `json:"excluded"`
	Survivors        int                `json:"survivors"`
	TournamentActive bool               `json:"tournament_active"`

	// Set only by Create.
	Notice              string `json:"notice,omitempty"`
	TournamentSuggested bool   `json:"tournament_suggested,omitempty"`
}

type ShareResult struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// TournamentView is the engine snapshot plus the outcome of the last report.
type TournamentView struct {
	brackets.State
	LastWinner *models.Candidate `json:"last_winner,omitempty"`
	LastLoser  *models.Candidate `json:"last_loser,omitempty"`
	LastBye    *models.Candidate `json:"last_bye,omitempty"`
}

type SessionServiceConfig struct {
	PublicBaseURL  string
	DefaultOriginX float64
	DefaultOriginY float64
	DefaultRadius  int
	TTL            time.Duration
	// NewShuffler seeds each tournament. Defaults to brackets.NewRandomShuffler.
	NewShuffler func() brackets.Shuffler
	// Now drives idle tracking. Defaults to time.Now.
	Now func() time.Time
}

type session struct {
	mu sync.Mutex

	id       string
	layout   models.LayoutMode
	originX  float64
	originY  float64
	radius   int
	keyword  string
	restored []string

	candidates []models.Candidate
	categories []models.Category

	engine *brackets.Engine
}

type sessionService struct {
	repo      repositories.RestaurantRepository
	store     repositories.SessionStore[*session]
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       SessionServiceConfig
}

func NewSessionService(
	repo repositories.RestaurantRepository,
	publisher Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg SessionServiceConfig,
) SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NewShuffler == nil {
		cfg.NewShuffler = func() brackets.Shuffler { return brackets.NewRandomShuffler() }
	}
	return &sessionService{
		repo:      repo,
		store:     repositories.NewMemorySessionStore[*session](cfg.Now),
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}
}

// MaxTournamentSize caps the field of a tournament (a bracket of 128).
const MaxTournamentSize = 128

// RoomID is the hub room of a session.
func RoomID(sessionID string) string {
	return "session_" + sessionID
}

func (s *sessionService) Create(ctx context.Context, input CreateSessionInput) (*SessionView, error) {
	layout := input.Layout
	if !layout.Valid() {
		layout = models.LayoutPC
	}
	sess := &session{
		id:      uuid.NewString(),
		layout:  layout,
		originX: s.cfg.DefaultOriginX,
		originY: s.cfg.DefaultOriginY,
		radius:  s.cfg.DefaultRadius,
	}

	var notice string
	if input.ShareToken != "" {
		st, err := share.Decode(input.ShareToken)
		s.metrics.ShareToken("decode", err)
		if err != nil {
			s.logger.WarnContext(ctx, "Ignoring invalid share token", slog.Any("error", err))
			notice = NoticeShareTokenInvalid
		} else {
			sess.originX, sess.originY = st.OriginX, st.OriginY
			if config.IsValidRadius(st.RadiusMeters) {
				sess.radius = st.RadiusMeters
			}
			sess.keyword = utils.NormalizeSpace(st.Keyword)
			sess.restored = st.ExcludedIDs
		}
	} else {
		if input.OriginX != nil && input.OriginY != nil {
			sess.originX, sess.originY = *input.OriginX, *input.OriginY
		}
		if input.Radius != nil {
			if !config.IsValidRadius(*input.Radius) {
				return nil, ErrInvalidRadius
			}
			sess.radius = *input.Radius
		}
	}

	candidates, err := s.fetch(ctx, sess, sess.keyword, sess.restored)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch candidates for new session", slog.String("session_id", sess.id), slog.Any("error", err))
		candidates = []models.Candidate{}
		if notice == "" {
			notice = NoticeFetchFailed
		}
	}
	sess.setCandidates(candidates)

	s.store.Put(sess.id, sess)
	s.metrics.SetSessionsActive(s.store.Len())
	s.logger.InfoContext(ctx, "Session created",
		slog.String("session_id", sess.id),
		slog.Int("candidates", len(sess.candidates)),
		slog.Int("restored_exclusions", len(sess.restored)))

	view := sess.view()
	view.Notice = notice
	view.TournamentSuggested = len(sess.restored) > 0
	return &view, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	view := sess.view()
	return &view, nil
}

func (s *sessionService) ChangeRadius(ctx context.Context, id string, radius int) (*SessionView, error) {
	if !config.IsValidRadius(radius) {
		return nil, ErrInvalidRadius
	}
	return s.mutate(ctx, id, func(sess *session) error {
		excluded := sess.excluded()
		prev := sess.radius
		sess.radius = radius
		candidates, err := s.fetch(ctx, sess, "", excluded)
		if err != nil {
			sess.radius = prev
			return err
		}
		sess.keyword = ""
		sess.restored = excluded
		sess.setCandidates(candidates)
		return nil
	})
}

func (s *sessionService) Search(ctx context.Context, id string, keyword string) (*SessionView, error) {
	keyword = utils.NormalizeSpace(keyword)
	if keyword == "" {
		return nil, ErrKeywordRequired
	}
	return s.mutate(ctx, id, func(sess *session) error {
		excluded := sess.excluded()
		candidates, err := s.fetch(ctx, sess, keyword, excluded)
		if err != nil {
			return err
		}
		sess.keyword = keyword
		sess.restored = excluded
		sess.setCandidates(candidates)
		return nil
	})
}

func (s *sessionService) ResetSearch(ctx context.Context, id string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *session) error {
		excluded := sess.excluded()
		candidates, err := s.fetch(ctx, sess, "", excluded)
		if err != nil {
			return err
		}
		sess.keyword = ""
		sess.restored = excluded
		sess.setCandidates(candidates)
		return nil
	})
}

func (s *sessionService) ToggleCategory(ctx context.Context, id string, name string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *session) error {
		i := slices.IndexFunc(sess.categories, func(c models.Category) bool { return c.Name == name })
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrCategoryNotFound, name)
		}
		next := !sess.categories[i].Survived
		for j := range sess.candidates {
			if sess.candidates[j].Category == name {
				sess.candidates[j].Survived = next
			}
		}
		sess.categories = models.CategoriesOf(sess.candidates)
		return nil
	})
}

func (s *sessionService) RemoveCandidate(ctx context.Context, id string, candidateID int) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *session) error {
		i := sess.indexOf(candidateID)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrCandidateNotFound, candidateID)
		}
		sess.candidates[i].Survived = false
		sess.categories = models.CategoriesOf(sess.candidates)
		return nil
	})
}

func (s *sessionService) Refresh(ctx context.Context, id string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *session) error {
		for i := range sess.candidates {
			sess.candidates[i].Survived = true
		}
		sess.restored = nil
		sess.categories = models.CategoriesOf(sess.candidates)
		return nil
	})
}

func (s *sessionService) Markers(ctx context.Context, id string) ([]markers.Marker, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return markers.FromCandidates(sess.candidates), nil
}

func (s *sessionService) Share(ctx context.Context, id string) (*ShareResult, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	token, err := share.Encode(share.State{
		ExcludedIDs:  sess.excluded(),
		OriginX:      sess.originX,
		OriginY:      sess.originY,
		RadiusMeters: sess.radius,
		Keyword:      sess.keyword,
	})
	s.metrics.ShareToken("encode", err)
	if err != nil {
		return nil, fmt.Errorf("failed to encode share token: %w", err)
	}
	link, err := share.BuildURL(s.cfg.PublicBaseURL, token)
	if err != nil {
		return nil, err
	}
	return &ShareResult{Token: token, URL: link}, nil
}

func (s *sessionService) StartTournament(ctx context.Context, id string) (*TournamentView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.tournamentActive() {
		return nil, ErrTournamentInProgress
	}
	survivors := sess.survivors()
	if len(survivors) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrNotEnoughCandidates, len(survivors))
	}
	if len(survivors) > MaxTournamentSize {
		return nil, fmt.Errorf("%w: have %d, at most %d", ErrTooManyCandidates, len(survivors), MaxTournamentSize)
	}

	sess.engine = brackets.NewEngine(s.cfg.NewShuffler())
	view := &TournamentView{State: sess.engine.Start(survivors)}

	s.metrics.TournamentStarted()
	s.logger.InfoContext(ctx, "Tournament started", slog.String("session_id", id), slog.Int("participants", len(survivors)))
	s.publish(id, brackets.MessageTournamentUpdated, view)
	return view, nil
}

func (s *sessionService) GetTournament(ctx context.Context, id string) (*TournamentView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	if sess.engine == nil {
		return nil, ErrTournamentNotStarted
	}
	return &TournamentView{State: sess.engine.State()}, nil
}

func (s *sessionService) ReportWinner(ctx context.Context, id string, candidateID int) (*TournamentView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.engine == nil {
		return nil, ErrTournamentNotStarted
	}
	out, err := sess.engine.ReportWinner(candidateID)
	if err != nil {
		switch {
		case errors.Is(err, brackets.ErrTournamentFinished):
			return nil, ErrTournamentAlreadyEnded
		case errors.Is(err, brackets.ErrWinnerNotInMatch):
			return nil, fmt.Errorf("%w: %v", ErrInvalidWinner, err)
		default:
			return nil, err
		}
	}

	if i := sess.indexOf(out.Loser.ID); i >= 0 {
		sess.candidates[i].Survived = false
		sess.categories = models.CategoriesOf(sess.candidates)
	}

	view := &TournamentView{
		State:      sess.engine.State(),
		LastWinner: &out.Winner,
		LastLoser:  &out.Loser,
		LastBye:    out.Bye,
	}
	s.metrics.MatchDecided(out.Champion != nil)

	sessionView := sess.view()
	s.publish(id, brackets.MessageSessionUpdated, sessionView)
	if out.Champion != nil {
		s.logger.InfoContext(ctx, "Tournament finished",
			slog.String("session_id", id),
			slog.Int("champion_id", out.Champion.ID),
			slog.String("champion", out.Champion.Name))
		s.publish(id, brackets.MessageTournamentFinished, view)
	} else {
		s.publish(id, brackets.MessageTournamentUpdated, view)
	}
	return view, nil
}

func (s *sessionService) CloseTournament(ctx context.Context, id string) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	if sess.engine == nil {
		return nil
	}
	sess.engine = nil
	s.publish(id, brackets.MessageTournamentClosed, nil)
	return nil
}

func (s *sessionService) Sweep(now time.Time) int {
	removed := s.store.DeleteIdle(now.Add(-s.cfg.TTL))
	s.metrics.SetSessionsActive(s.store.Len())
	if len(removed) > 0 {
		s.logger.Info("Idle sessions removed", slog.Int("count", len(removed)))
	}
	return len(removed)
}

// lock returns the session with its mutex held.
func (s *sessionService) lock(id string) (*session, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.mu.Lock()
	return sess, nil
}

// mutate applies fn to a session that has no tournament running and
// broadcasts the result.
func (s *sessionService) mutate(ctx context.Context, id string, fn func(sess *session) error) (*SessionView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.tournamentActive() {
		return nil, ErrTournamentInProgress
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	// Закрытый турнир больше не нужен после изменения списка.
	sess.engine = nil

	view := sess.view()
	s.publish(id, brackets.MessageSessionUpdated, view)
	return &view, nil
}

// fetch loads candidates around the session origin, or by keyword when one is
// given. Excluded refs are passed to the API for nearby lookups and filtered
// locally for keyword search.
func (s *sessionService) fetch(ctx context.Context, sess *session, keyword string, excluded []string) ([]models.Candidate, error) {
	var (
		candidates []models.Candidate
		err        error
	)
	if keyword != "" {
		candidates, err = s.repo.Search(ctx, keyword)
		if err == nil && len(excluded) > 0 {
			candidates = slices.DeleteFunc(candidates, func(c models.Candidate) bool {
				return slices.Contains(excluded, c.Ref)
			})
		}
	} else {
		candidates, err = s.repo.Nearby(ctx, repositories.NearbyQuery{
			X:        sess.originX,
			Y:        sess.originY,
			Distance: sess.radius,
			Excluded: excluded,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return candidates, nil
}

func (s *sessionService) publish(id, messageType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(RoomID(id), messageType, payload)
}

func (sess *session) setCandidates(candidates []models.Candidate) {
	for i := range candidates {
		candidates[i].Survived = true
	}
	sess.candidates = candidates
	sess.categories = models.CategoriesOf(candidates)
}

func (sess *session) indexOf(candidateID int) int {
	return slices.IndexFunc(sess.candidates, func(c models.Candidate) bool { return c.ID == candidateID })
}

func (sess *session) survivors() []models.Candidate {
	out := make([]models.Candidate, 0, len(sess.candidates))
	for _, c := range sess.candidates {
		if c.Survived {
			out = append(out, c)
		}
	}
	return out
}

func (sess *session) tournamentActive() bool {
	return sess.engine != nil && !sess.engine.Finished()
}

// excluded is the restored exclusion set plus every eliminated candidate.
func (sess *session) excluded() []string {
	set := make(map[string]struct{}, len(sess.restored))
	out := make([]string, 0, len(sess.restored))
	add := func(ref string) {
		if ref == "" {
			return
		}
		if _, ok := set[ref]; ok {
			return
		}
		set[ref] = struct{}{}
		out = append(out, ref)
	}
	for _, ref := range sess.restored {
		add(ref)
	}
	for _, c := range sess.candidates {
		if !c.Survived {
			add(c.Ref)
		}
	}
	return out
}

func (sess *session) view() SessionView {
	candidates := append([]models.Candidate{}, sess.candidates...)
	categories := append([]models.Category{}, sess.categories...)
	return SessionView{
		ID:               sess.id,
		Layout:           sess.layout,
		Origin:           Origin{X: sess.originX, Y: sess.originY},
		Radius:           sess.radius,
		Keyword:          sess.keyword,
		Candidates:       candidates,
		Categories:       categories,
		Excluded:         sess.excluded(),
		Survivors:        len(sess.survivors()),
		TournamentActive: sess.tournamentActive(),
	}
}
