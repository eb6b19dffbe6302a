package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/lunch-roulette/brackets"
	"github.com/Dosada05/lunch-roulette/models"
	"github.com/Dosada05/lunch-roulette/repositories"
	"github.com/Dosada05/lunch-roulette/share"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOriginX = 127.13229313772779
	testOriginY = 37.41460591790208
)

// identityShuffler keeps the input order so brackets are predictable.
type identityShuffler struct{}

func (identityShuffler) Shuffle(int, func(i, j int)) {}

type published struct {
	Room string
	Type string
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(roomID, messageType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{Room: roomID, Type: messageType})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.Type)
	}
	return out
}

func restaurant(id int, category string) models.Candidate {
	return models.Candidate{
		ID:       id,
		Ref:      fmt.Sprintf("r%d", id),
		Name:     fmt.Sprintf("place %d", id),
		Category: category,
		Lon:      127.1 + float64(id)/1000,
		Lat:      37.4,
		Images:   []string{},
		Survived: true,
	}
}

// fixture returns restaurants 1..5: 1,2 한식; 3 중식; 4,5 일식.
func fixture() []models.Candidate {
	return []models.Candidate{
		restaurant(1, "한식"), restaurant(2, "한식"), restaurant(3, "중식"),
		restaurant(4, "일식"), restaurant(5, "일식"),
	}
}

type testEnv struct {
	repo    *repositories.FakeRestaurantRepository
	pub     *recordingPublisher
	service SessionService
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo: &repositories.FakeRestaurantRepository{
			NearbyFn: func(ctx context.Context, q repositories.NearbyQuery) ([]models.Candidate, error) {
				var out []models.Candidate
				for _, c := range fixture() {
					skip := false
					for _, ex := range q.Excluded {
						if ex == c.Ref {
							skip = true
						}
					}
					if !skip {
						out = append(out, c)
					}
				}
				return out, nil
			},
		},
		pub: &recordingPublisher{},
		now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	env.service = NewSessionService(env.repo, env.pub, nil, nil, SessionServiceConfig{
		PublicBaseURL:  "https://lunch.example.com",
		DefaultOriginX: testOriginX,
		DefaultOriginY: testOriginY,
		DefaultRadius:  100,
		TTL:            time.Hour,
		NewShuffler:    func() brackets.Shuffler { return identityShuffler{} },
		Now:            func() time.Time { return env.now },
	})
	return env
}

func (e *testEnv) create(t *testing.T) *SessionView {
	t.Helper()
	view, err := e.service.Create(context.Background(), CreateSessionInput{Layout: models.LayoutMobile})
	require.NoError(t, err)
	return view
}

func assertCategoryInvariant(t *testing.T, v *SessionView) {
	t.Helper()
	alive := map[string]bool{}
	for _, c := range v.Candidates {
		alive[c.Category] = alive[c.Category] || c.Survived
	}
	for _, cat := range v.Categories {
		assert.Equal(t, alive[cat.Name], cat.Survived, "category %s", cat.Name)
	}
}

func TestCreate_Defaults(t *testing.T) {
	env := newTestEnv(t)
	view := env.create(t)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, models.LayoutMobile, view.Layout)
	assert.Equal(t, Origin{X: testOriginX, Y: testOriginY}, view.Origin)
	assert.Equal(t, 100, view.Radius)
	assert.Len(t, view.Candidates, 5)
	assert.Equal(t, 5, view.Survivors)
	assert.Empty(t, view.Notice)
	assert.False(t, view.TournamentSuggested)

	want := []models.Category{{Name: "한식", Survived: true}, {Name: "중식", Survived: true}, {Name: "일식", Survived: true}}
	if diff := cmp.Diff(want, view.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}

	calls := env.repo.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, repositories.NearbyQuery{X: testOriginX, Y: testOriginY, Distance: 100, Excluded: nil}, calls[0])
}

func TestCreate_InvalidRadius(t *testing.T) {
	env := newTestEnv(t)
	d := 250
	_, err := env.service.Create(context.Background(), CreateSessionInput{Radius: &d})
	assert.ErrorIs(t, err, ErrInvalidRadius)
}

func TestCreate_InvalidShareTokenFallsBack(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.service.Create(context.Background(), CreateSessionInput{ShareToken: "1!!!garbage"})
	require.NoError(t, err)

	assert.Equal(t, NoticeShareTokenInvalid, view.Notice)
	assert.Equal(t, Origin{X: testOriginX, Y: testOriginY}, view.Origin)
	assert.Equal(t, 100, view.Radius)
	assert.Len(t, view.Candidates, 5)
}

func TestCreate_FetchFailureKeepsEmptySession(t *testing.T) {
	env := newTestEnv(t)
	env.repo.NearbyFn = func(context.Context, repositories.NearbyQuery) ([]models.Candidate, error) {
		return nil, errors.New("connection refused")
	}
	view, err := env.service.Create(context.Background(), CreateSessionInput{})
	require.NoError(t, err)
	assert.Equal(t, NoticeFetchFailed, view.Notice)
	assert.Empty(t, view.Candidates)
	assert.NotNil(t, view.Candidates)

	_, err = env.service.Get(context.Background(), view.ID)
	assert.NoError(t, err)
}

func TestShare_RoundTripThroughCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := env.create(t)

	_, err := env.service.ChangeRadius(ctx, view.ID, 300)
	require.NoError(t, err)
	_, err = env.service.RemoveCandidate(ctx, view.ID, 2)
	require.NoError(t, err)
	_, err = env.service.ToggleCategory(ctx, view.ID, "일식")
	require.NoError(t, err)

	res, err := env.service.Share(ctx, view.ID)
	require.NoError(t, err)

	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	assert.Equal(t, "/map", u.Path)
	assert.Equal(t, res.Token, u.Query().Get(share.QueryParam))

	restored, err := env.service.Create(ctx, CreateSessionInput{ShareToken: res.Token})
	require.NoError(t, err)
	assert.Empty(t, restored.Notice)
	assert.True(t, restored.TournamentSuggested)
	assert.Equal(t, 300, restored.Radius)
	assert.ElementsMatch(t, []string{"r2", "r4", "r5"}, restored.Excluded)

	calls := env.repo.Calls()
	last := calls[len(calls)-1]
	assert.ElementsMatch(t, []string{"r2", "r4", "r5"}, last.Excluded)
	assert.Equal(t, 300, last.Distance)

	var refs []string
	for _, c := range restored.Candidates {
		refs = append(refs, c.Ref)
	}
	assert.Equal(t, []string{"r1", "r3"}, refs)
}

func TestToggleCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := env.create(t)

	got, err := env.service.ToggleCategory(ctx, view.ID, "한식")
	require.NoError(t, err)
	assertCategoryInvariant(t, got)
	assert.Equal(t, 3, got.Survivors)
	for _, c := range got.Candidates {
		if c.Category == "한식" {
			assert.False(t, c.Survived)
		}
	}

	got, err = env.service.ToggleCategory(ctx, view.ID, "한식")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Survivors)
	assertCategoryInvariant(t, got)

	_, err = env.service.ToggleCategory(ctx, view.ID, "양식")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestRemoveCandidate_LastOfCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := env.create(t)

	got, err := env.service.RemoveCandidate(ctx, view.ID, 3)
	require.NoError(t, err)
	assertCategoryInvariant(t, got)
	assert.Equal(t, models.Category{Name: "중식", Survived: false}, got.Categories[1])
	assert.Equal(t, []string{"r3"}, got.Excluded)

	_, err = env.service.RemoveCandidate(ctx, view.ID, 99)
	assert.ErrorIs(t, err, ErrCandidateNotFound)
}

func TestRefresh_RestoresEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := env.create(t)

	_, err := env.service.RemoveCandidate(ctx, view.ID, 1)
	require.NoError(t, err)
	_, err = env.service.ToggleCategory(ctx, view.ID, "일식")
	require.NoError(t, err)

	got, err := env.service.Refresh(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Survivors)
	assert.Empty(t, got.Excluded)
	for _, c := range got.Categories {
		assert.True(t, c.Survived)
	}
	assert.Len(t, env.repo.Calls(), 1, "refresh must not refetch")
}

func TestChangeRadius(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := env.create(t)

	_, err := env.service.ChangeRadius(ctx, view.ID, 150)
	assert.ErrorIs(t, err, ErrInvalidRadius)

	_, err = env.service.RemoveCandidate(ctx, view.ID, 4)
	require.NoError(t, err)

	got, err := env.service.ChangeRadius(ctx, view.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, 500, got.Radius)
	assert.Len(t, got.Candidates, 4)
	assert.Equal(t, 4, got.Survivors)
	assert.Equal(t, []string{"r4"}, got.Excluded)

	env.repo.NearbyFn = func(context.Context, repositories.NearbyQuery) ([]models.Candidate, error) {
		return nil, errors.New("timeout")
	}
	_, err = env.service.ChangeRadius(ctx, view.ID, 200)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	kept, err := env.service.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, kept.Radius)
	assert.Len(t, kept.Candidates, 4)
}

func TestSearchAndReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.repo.SearchFn = func(_ context.Context, keyword string) ([]models.Candidate, error) {
		return []models.Candidate{restaurant(10, "한식"), restaurant(1, "한식")}, nil
	}
	view := env.create(t)

	_, err := env.service.Search(ctx, view.ID, "   ")
	assert.ErrorIs(t, err, ErrKeywordRequired)

	_, err = env.service.RemoveCandidate(ctx, view.ID, 1)
	require.NoError(t, err)

	got, err := env.service.Search(ctx, view.ID, "  국밥   집 ")
	require.NoError(t, err)
	assert.Equal(t, "국밥 집", got.Keyword)
	require.Len(t, got.Candidates, 1, "excluded restaurants stay hidden in search results")
	assert.Equal(t, 10, got.Candidates[0].ID)

	got, err = env.service.ResetSearch(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Keyword)
	assert.Len(t, got.Candidates, 4)
}

func TestTournament_FullRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := env.create(t)

	_, err := env.service.GetTournament(ctx, view.ID)
	assert.ErrorIs(t, err, ErrTournamentNotStarted)

	tv, err := env.service.StartTournament(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "round of 8", tv.RoundInfo.Label)
	require.NotNil(t, tv.CurrentMatch)

	_, err = env.service.RemoveCandidate(ctx, view.ID, 1)
	assert.ErrorIs(t, err, ErrTournamentInProgress)
	_, err = env.service.StartTournament(ctx, view.ID)
	assert.ErrorIs(t, err, ErrTournamentInProgress)

	_, err = env.service.ReportWinner(ctx, view.ID, 99)
	assert.ErrorIs(t, err, ErrInvalidWinner)

	reports := 0
	for !tv.Finished {
		// Левый участник всегда побеждает.
		tv, err = env.service.ReportWinner(ctx, view.ID, tv.CurrentMatch.Left.ID)
		require.NoError(t, err)
		reports++
	}
	assert.Equal(t, 4, reports)
	require.NotNil(t, tv.Champion)

	_, err = env.service.ReportWinner(ctx, view.ID, tv.Champion.ID)
	assert.ErrorIs(t, err, ErrTournamentAlreadyEnded)

	got, err := env.service.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Survivors)
	assertCategoryInvariant(t, got)
	assert.False(t, got.TournamentActive)

	require.NoError(t, env.service.CloseTournament(ctx, view.ID))
	_, err = env.service.GetTournament(ctx, view.ID)
	assert.ErrorIs(t, err, ErrTournamentNotStarted)

	types := env.pub.types()
	assert.Contains(t, types, brackets.MessageTournamentFinished)
	assert.Equal(t, brackets.MessageTournamentClosed, types[len(types)-1])
	for _, m := range env.pub.messages {
		assert.Equal(t, RoomID(view.ID), m.Room)
	}
}

func TestStartTournament_NotEnoughCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := env.create(t)

	for _, cat := range []string{"한식", "중식"} {
		_, err := env.service.ToggleCategory(ctx, view.ID, cat)
		require.NoError(t, err)
	}
	_, err := env.service.RemoveCandidate(ctx, view.ID, 4)
	require.NoError(t, err)

	_, err = env.service.StartTournament(ctx, view.ID)
	assert.ErrorIs(t, err, ErrNotEnoughCandidates)
}

func TestStartTournament_TooManyCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.repo.NearbyFn = func(context.Context, repositories.NearbyQuery) ([]models.Candidate, error) {
		out := make([]models.Candidate, 0, 200)
		for i := 1; i <= 200; i++ {
			out = append(out, restaurant(i, "한식"))
		}
		return out, nil
	}
	view := env.create(t)
	require.Len(t, view.Candidates, 200)

	_, err := env.service.StartTournament(ctx, view.ID)
	require.ErrorIs(t, err, ErrTooManyCandidates)

	// Ровно MaxTournamentSize участников допустимо.
	for id := MaxTournamentSize + 1; id <= 200; id++ {
		_, err := env.service.RemoveCandidate(ctx, view.ID, id)
		require.NoError(t, err)
	}
	tv, err := env.service.StartTournament(ctx, view.ID)
	require.NoError(t, err)
	assert.Len(t, tv.Participants, MaxTournamentSize)
	assert.Equal(t, "round of 128", tv.RoundInfo.Label)
}

func TestMarkers_DeoverlapSharedCoordinates(t *testing.T) {
	env := newTestEnv(t)
	env.repo.NearbyFn = func(context.Context, repositories.NearbyQuery) ([]models.Candidate, error) {
		a, b := restaurant(1, "한식"), restaurant(2, "한식")
		b.Lon, b.Lat = a.Lon, a.Lat
		return []models.Candidate{a, b}, nil
	}
	view := env.create(t)

	ms, err := env.service.Markers(context.Background(), view.ID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.NotEqual(t, [2]float64{ms[0].Lon, ms[0].Lat}, [2]float64{ms[1].Lon, ms[1].Lat})
}

func TestSweep_RemovesIdleSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	old := env.create(t)

	env.now = env.now.Add(50 * time.Minute)
	fresh := env.create(t)

	env.now = env.now.Add(20 * time.Minute)
	assert.Equal(t, 1, env.service.Sweep(env.now))

	_, err := env.service.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.service.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Share(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, strings.HasPrefix(RoomID("abc"), "session_"))
}
