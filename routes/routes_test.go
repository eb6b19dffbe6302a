package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/lunch-roulette/brackets"
	"github.com/Dosada05/lunch-roulette/content"
	"github.com/Dosada05/lunch-roulette/handlers"
	"github.com/Dosada05/lunch-roulette/metrics"
	"github.com/Dosada05/lunch-roulette/middleware"
	"github.com/Dosada05/lunch-roulette/models"
	"github.com/Dosada05/lunch-roulette/repositories"
	"github.com/Dosada05/lunch-roulette/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}

func nearby() []models.Candidate {
	return []models.Candidate{
		{ID: 1, Ref: "r1", Name: "국밥집", Category: "한식", Lon: 127.1, Lat: 37.4, Images: []string{}},
		{ID: 2, Ref: "r2", Name: "짜장면", Category: "중식", Lon: 127.2, Lat: 37.4, Images: []string{}},
		{ID: 3, Ref: "r3", Name: "초밥", Category: "일식", Lon: 127.1, Lat: 37.4, Images: []string{}},
	}
}

type testServer struct {
	*httptest.Server
	repo *repositories.FakeRestaurantRepository
	hub  *brackets.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := &repositories.FakeRestaurantRepository{
		NearbyFn: func(context.Context, repositories.NearbyQuery) ([]models.Candidate, error) {
			return nearby(), nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	hub := brackets.NewHub(nil)
	go hub.Run(ctx)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	catalog, err := content.Load()
	require.NoError(t, err)

	sessionService := services.NewSessionService(repo, hub, m, nil, services.SessionServiceConfig{
		PublicBaseURL:  "https://lunch.example.com",
		DefaultOriginX: 127.13229313772779,
		DefaultOriginY: 37.41460591790208,
		DefaultRadius:  100,
		TTL:            time.Hour,
		NewShuffler:    func() brackets.Shuffler { return keepOrder{} },
	})
	sessions := middleware.NewSessions("test-secret", time.Hour, false, nil)

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Session:    handlers.NewSessionHandler(sessionService, sessions),
		Tournament: handlers.NewTournamentHandler(sessionService),
		Restaurant: handlers.NewRestaurantHandler(services.NewRestaurantService(repo, nil)),
		Contact:    handlers.NewContactHandler(services.NewContactService(repo, nil, m, nil)),
		Info:       handlers.NewInfoHandler(services.NewInfoService(catalog)),
		WebSocket:  handlers.NewWebSocketHandler(hub, sessionService, nil, nil),
	}, Options{
		Metrics:            m,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Sessions:           sessions,
		ContactLimiter:     middleware.NewRateLimiter(60, 2, nil),
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	})

	srv := httptest.NewServer(router)
	ts := &testServer{Server: srv, repo: repo, hub: hub}
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return ts
}

// call performs a request and decodes the JSON response into out (if set).
func (ts *testServer) call(t *testing.T, method, path, token string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type sessionEnvelope struct {
	Session services.SessionView `json:"session"`
	Token   string               `json:"token"`
}

type tournamentEnvelope struct {
	Tournament services.TournamentView `json:"tournament"`
}

func (ts *testServer) createSession(t *testing.T, query string) sessionEnvelope {
	t.Helper()
	var env sessionEnvelope
	resp := ts.call(t, http.MethodPost, "/api/session"+query, "", nil, &env)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, env.Token)
	return env
}

func TestHealthAndInfo(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	ts.call(t, http.MethodGet, "/health", "", nil, &health)
	assert.Equal(t, "ok", health["status"])

	var notes struct {
		PatchNotes []models.PatchNote `json:"patch_notes"`
	}
	ts.call(t, http.MethodGet, "/api/info/patchnotes", "", nil, &notes)
	require.NotEmpty(t, notes.PatchNotes)
	assert.Equal(t, "1.0.2", notes.PatchNotes[0].Version)

	var types struct {
		Types []string `json:"types"`
	}
	ts.call(t, http.MethodGet, "/api/info/contact-types", "", nil, &types)
	assert.Equal(t, []string{"버그 신고", "신기능 건의", "음식점 신규 등록", "기타"}, types.Types)
}

func TestSession_RequiresToken(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.call(t, http.MethodGet, "/api/session", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSession_LayoutFromUserAgent(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/session", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env sessionEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, models.LayoutMobile, env.Session.Layout)
	assert.Equal(t, "mobile", resp.Header.Get(middleware.LayoutHeader))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, env.Token, cookie.Value)
}

// streamBody hides its length so the client sends it chunked.
type streamBody struct{ r io.Reader }

func (b streamBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (ts *testServer) createChunked(t *testing.T, body string) (*http.Response, sessionEnvelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/session", streamBody{strings.NewReader(body)})
	require.NoError(t, err)
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env sessionEnvelope
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func TestCreateSession_ChunkedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, env := ts.createChunked(t, `{"x":127.2,"y":37.5,"radius":300}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 300, env.Session.Radius)
	assert.Equal(t, services.Origin{X: 127.2, Y: 37.5}, env.Session.Origin)

	resp, env = ts.createChunked(t, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 100, env.Session.Radius)

	resp, _ = ts.createChunked(t, `{"radius":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSession_BrowseAndShare(t *testing.T) {
	ts := newTestServer(t)
	env := ts.createSession(t, "")
	assert.Len(t, env.Session.Candidates, 3)

	var got sessionEnvelope
	resp := ts.call(t, http.MethodPut, "/api/session/radius", env.Token, map[string]int{"radius": 250}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.call(t, http.MethodPut, "/api/session/radius", env.Token, map[string]int{"radius": 300}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 300, got.Session.Radius)

	resp = ts.call(t, http.MethodPost, "/api/session/categories/"+url.PathEscape("중식")+"/toggle", env.Token, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, got.Session.Survivors)

	resp = ts.call(t, http.MethodDelete, "/api/session/candidates/abc", env.Token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.call(t, http.MethodDelete, "/api/session/candidates/42", env.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var markers struct {
		Markers []struct {
			ID int     `json:"id"`
			X  float64 `json:"x"`
			Y  float64 `json:"y"`
		} `json:"markers"`
	}
	ts.call(t, http.MethodGet, "/api/session/markers", env.Token, nil, &markers)
	require.Len(t, markers.Markers, 3)
	assert.NotEqual(t, markers.Markers[0].X, markers.Markers[2].X, "shared coordinates are nudged apart")

	var shared services.ShareResult
	resp = ts.call(t, http.MethodPost, "/api/session/share", env.Token, nil, &shared)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(shared.URL, "https://lunch.example.com/map?s="))

	restored := ts.createSession(t, "?s="+url.QueryEscape(shared.Token))
	assert.Empty(t, restored.Session.Notice)
	assert.True(t, restored.Session.TournamentSuggested)
	assert.Equal(t, 300, restored.Session.Radius)
	assert.Equal(t, []string{"r2"}, restored.Session.Excluded)

	broken := ts.createSession(t, "?s=1%21%21")
	assert.Equal(t, services.NoticeShareTokenInvalid, broken.Session.Notice)
}

func TestTournament_Flow(t *testing.T) {
	ts := newTestServer(t)
	env := ts.createSession(t, "")

	resp := ts.call(t, http.MethodGet, "/api/session/tournament", env.Token, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var tv tournamentEnvelope
	resp = ts.call(t, http.MethodPost, "/api/session/tournament", env.Token, nil, &tv)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "round of 4", tv.Tournament.RoundInfo.Label)

	resp = ts.call(t, http.MethodPost, "/api/session/tournament/winner", env.Token, map[string]int{"winner_id": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "3 has a bye and is not in the first match")

	resp = ts.call(t, http.MethodPost, "/api/session/refresh", env.Token, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	for !tv.Tournament.Finished {
		winner := tv.Tournament.CurrentMatch.Right.ID
		resp = ts.call(t, http.MethodPost, "/api/session/tournament/winner", env.Token, map[string]int{"winner_id": winner}, &tv)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	require.NotNil(t, tv.Tournament.Champion)
	assert.Equal(t, 3, tv.Tournament.Champion.ID)

	resp = ts.call(t, http.MethodDelete, "/api/session/tournament", env.Token, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.call(t, http.MethodGet, "/api/session/tournament", env.Token, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStartTournament_NeedsTwo(t *testing.T) {
	ts := newTestServer(t)
	ts.repo.NearbyFn = func(context.Context, repositories.NearbyQuery) ([]models.Candidate, error) {
		return nearby()[:1], nil
	}
	env := ts.createSession(t, "")
	resp := ts.call(t, http.MethodPost, "/api/session/tournament", env.Token, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLegacyMobileRedirect(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.call(t, http.MethodGet, "/m/map?s=abc", "", nil, nil)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/map?s=abc", resp.Header.Get("Location"))

	// Редирект никогда не уводит на чужой хост.
	resp = ts.call(t, http.MethodGet, "/m//evil.example/path", "", nil, nil)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/evil.example/path", resp.Header.Get("Location"))
}

func TestRestaurantDetail_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.repo.GetDetailFn = func(context.Context, string) (*models.Detail, error) {
		return nil, repositories.ErrRestaurantNotFound
	}
	resp := ts.call(t, http.MethodGet, "/api/restaurants/missing", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ts.repo.GetDetailFn = func(context.Context, string) (*models.Detail, error) {
		return nil, fmt.Errorf("%w: 503", repositories.ErrUpstreamStatus)
	}
	resp = ts.call(t, http.MethodGet, "/api/restaurants/r1", "", nil, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func postQuestion(t *testing.T, ts *testServer, data map[string]interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("data", string(raw)))
	fw, err := mw.CreateFormFile("file", "shot.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/questions", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestQuestions_ValidationAndRateLimit(t *testing.T) {
	ts := newTestServer(t)

	resp := postQuestion(t, ts, map[string]interface{}{"name": "kim"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	valid := map[string]interface{}{
		"name": "kim", "email": "kim@example.com", "type": "기타",
		"title": "hello", "content": "hi", "agreement": true,
	}
	resp = postQuestion(t, ts, valid)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, ts.repo.QuestionSent, 1)

	resp = postQuestion(t, ts, valid)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.call(t, http.MethodGet, "/health", "", nil, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "lunch_roulette_http_requests_total")
}

func TestWebSocket_ReceivesSessionUpdates(t *testing.T) {
	ts := newTestServer(t)
	env := ts.createSession(t, "")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/session"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+env.Token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// Регистрация в хабе асинхронна.
	require.Eventually(t, func() bool {
		return ts.hub.RoomSize(services.RoomID(env.Session.ID)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	resp = ts.call(t, http.MethodPost, "/api/session/refresh", env.Token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg brackets.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, brackets.MessageSessionUpdated, msg.Type)
	assert.Equal(t, services.RoomID(env.Session.ID), msg.RoomID)
}
