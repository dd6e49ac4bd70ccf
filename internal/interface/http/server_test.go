package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/soulspace/soulspace-hub/internal/application/apptest"
	"github.com/soulspace/soulspace-hub/internal/application/command"
	"github.com/soulspace/soulspace-hub/internal/application/query"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/internal/interface/http/handlers"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

const (
	alice      = "7f1c9d4e-0a51-4c1b-9d6b-2f3f6a1e8b01"
	secret     = "test-signing-secret"
	serviceKey = "svc-key-123"
)

type envelope struct {
	Success   bool               `json:"success"`
	Data      json.RawMessage    `json:"data"`
	Error     *handlers.APIError `json:"error"`
	RequestID string             `json:"request_id"`
}

type observed struct {
	mu     sync.Mutex
	routes []string
}

func (o *observed) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, route)
}

type limiter struct {
	allow bool
	err   error
}

func (l limiter) Allow(context.Context, string) (bool, error) { return l.allow, l.err }

type matchingOff struct{}

func (matchingOff) CompanionMatchingEnabled(string) bool { return false }

type testServer struct {
	*Server
	observer *observed
	token    string
}

func newTestServer(t *testing.T, mutate func(*Config, *Dependencies)) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(serviceKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.JWTSecret = secret
	cfg.ServiceKeyHash = string(hash)

	events := &apptest.Publisher{}
	progress := apptest.NewProgressRepo()
	cache := apptest.NewCache()
	goals := apptest.NewGoalRepo()
	results := &apptest.AssessmentRepo{}
	completions := apptest.NewChallengeRepo()
	profiles := apptest.NewCompanionRepo()

	grant := command.NewGrantXPHandler(progress, cache, events, nil, nil)
	obs := &observed{}
	deps := Dependencies{
		GrantXP:           grant,
		CreateGoal:        command.NewCreateGoalHandler(goals, events, nil),
		GoalProgress:      command.NewGoalProgressHandler(goals, grant, events),
		SubmitAssessment:  command.NewSubmitAssessmentHandler(results, grant, events, nil),
		CompleteChallenge: command.NewCompleteChallengeHandler(completions, grant, events, time.UTC),
		UpsertCompanion:   command.NewUpsertCompanionHandler(profiles),

		GetProgress:     query.NewGetProgressHandler(progress, cache, time.Minute),
		GetXPHistory:    query.NewGetXPHistoryHandler(progress),
		GetGoalBoard:    query.NewGetGoalBoardHandler(goals),
		CategorizeText:  query.NewCategorizeTextHandler(nil),
		FindCompanions:  query.NewFindCompanionsHandler(profiles, nil),
		ListChallenges:  query.NewListChallengesHandler(completions, time.UTC),
		ListAssessments: query.NewListAssessmentsHandler(results),

		Logger:   logger.Discard(),
		Observer: obs,
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	srv := NewServer(cfg, deps)
	token, err := handlers.NewBearerAuth(secret, "").Issue(alice, time.Hour)
	require.NoError(t, err)
	return &testServer{Server: srv, observer: obs, token: token}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (ts *testServer) asUser() map[string]string {
	return map[string]string{"Authorization": "Bearer " + ts.token}
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// ─────────────────────────────────────────────────────────────────────────────
// Public endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_Probes(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/health", "/ready", "/live"} {
		rec, env := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.True(t, env.Success, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestServer_ReadyReflectsChecks(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return errors.New("connection refused") })
	ts := newTestServer(t, func(_ *Config, d *Dependencies) { d.HealthChecker = checker })

	rec, env := ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "postgres")
}

func TestServer_DescribeLevel(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/levels/2200", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lvl query.LevelDTO
	decodeData(t, env, &lvl)
	assert.Equal(t, 3, lvl.Level)
	assert.Equal(t, int64(0), lvl.XPInLevel)
	assert.Equal(t, int64(1440), lvl.XPToNext)
	assert.Equal(t, int64(2200), lvl.LevelStartXP)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/levels/-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", env.Error.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/levels/lots", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Categorize(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/goals/categorize",
		`{"title":"Morning meditation","description":"ten minutes"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dto query.CategorizeTextDTO
	decodeData(t, env, &dto)
	assert.Equal(t, "mindfulness", string(dto.Category.Category))

	rec, env = ts.do(t, http.MethodPost, "/api/v1/goals/categorize", `{"title":"","description":""}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &dto)
	assert.Equal(t, "general", string(dto.Category.Category))

	rec, env = ts.do(t, http.MethodPost, "/api/v1/goals/categorize", `{"title":"x","mood":"happy"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", env.Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Authentication
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_UserRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/me/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_token", env.Error.Code)

	other, err := handlers.NewBearerAuth("another-secret", "").Issue(alice, time.Hour)
	require.NoError(t, err)
	rec, env = ts.do(t, http.MethodGet, "/api/v1/me/progress", "", map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", env.Error.Code)

	expired, err := handlers.NewBearerAuth(secret, "").Issue(alice, -time.Hour)
	require.NoError(t, err)
	rec, _ = ts.do(t, http.MethodGet, "/api/v1/me/progress", "", map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth_RejectsNonUUIDSubject(t *testing.T) {
	auth := handlers.NewBearerAuth(secret, "")
	token, err := auth.Issue("not-a-uuid", time.Hour)
	require.NoError(t, err)

	_, err = auth.Verify(token)
	assert.ErrorIs(t, err, handlers.ErrInvalidToken)
}

func TestServer_GrantRequiresServiceKey(t *testing.T) {
	ts := newTestServer(t, nil)
	path := "/api/v1/users/" + alice + "/xp"

	rec, _ := ts.do(t, http.MethodPost, path, `{"amount":50,"source":"manual"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, path, `{"amount":50,"source":"manual"}`,
		map[string]string{"X-Service-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a user token is not a service key
	rec, _ = ts.do(t, http.MethodPost, path, `{"amount":50,"source":"manual"}`, ts.asUser())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Progression
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_GrantThenReadProgress(t *testing.T) {
	ts := newTestServer(t, nil)
	svc := map[string]string{"X-Service-Key": serviceKey}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/users/"+alice+"/xp", `{"amount":1000,"source":"manual"}`, svc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res command.GrantXPResult
	decodeData(t, env, &res)
	assert.True(t, res.Grant.LeveledUp)
	require.NotNil(t, res.Bonus)
	assert.Equal(t, int64(1100), res.Progress.TotalXP)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/me/progress", "", ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var snap struct {
		TotalXP int64 `json:"total_xp"`
		Level   int   `json:"level"`
	}
	decodeData(t, env, &snap)
	assert.Equal(t, int64(1100), snap.TotalXP)
	assert.Equal(t, 2, snap.Level)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/me/xp/history?limit=10", "", ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]any
	decodeData(t, env, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "level_up_bonus", history[0]["source"])

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/me/xp/history?limit=ten", "", ts.asUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GrantValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	svc := map[string]string{"X-Service-Key": serviceKey}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/users/"+alice+"/xp", `{"amount":50,"source":"lottery"}`, svc)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", env.Error.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/users/"+alice+"/xp", `{"amount":-5,"source":"manual"}`, svc)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/users/nobody/xp", `{"amount":5,"source":"manual"}`, svc)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Goals, assessments, challenges, companions
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_GoalLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/me/goals", `{"title":"Go for a run"}`, ts.asUser())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	}
	decodeData(t, env, &created)
	assert.Equal(t, "physical", created.Category)

	rec, _ = ts.do(t, http.MethodPatch, "/api/v1/me/goals/"+created.ID+"/progress", `{"progress":40}`, ts.asUser())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/me/goals/"+created.ID+"/complete", "", ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var done command.GoalProgressResult
	decodeData(t, env, &done)
	assert.True(t, done.Completed)
	require.NotNil(t, done.XP)
	assert.Equal(t, int64(50), done.XP.Progress.TotalXP)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/me/goals/"+created.ID+"/complete", "", ts.asUser())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", env.Error.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/me/goals/missing/complete", "", ts.asUser())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/me/goals/board", "", ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	var board query.GoalBoardDTO
	decodeData(t, env, &board)
	assert.Equal(t, 1, board.Total)
	assert.Equal(t, 1, board.Completed)
}

func TestServer_Assessments(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/me/assessments",
		`{"kind":"gad7","responses":[1,1,1,1,1,0,0]}`, ts.asUser())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res command.SubmitAssessmentResult
	decodeData(t, env, &res)
	require.NotNil(t, res.Result)
	assert.Equal(t, 5, res.Result.Score)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/me/assessments", `{"kind":"gad7","responses":[9]}`, ts.asUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/me/assessments", "", ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	decodeData(t, env, &list)
	assert.Len(t, list, 1)
	assert.NotContains(t, list[0], "responses")
}

func TestServer_Challenges(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/challenges", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalogue query.ChallengesDTO
	decodeData(t, env, &catalogue)
	require.NotEmpty(t, catalogue.Challenges)
	id := catalogue.Challenges[0].ID

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/me/challenges/"+id+"/complete", "", ts.asUser())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = ts.do(t, http.MethodPost, "/api/v1/me/challenges/"+id+"/complete", "", ts.asUser())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", env.Error.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/challenges", "", ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &catalogue)
	assert.True(t, catalogue.Challenges[0].CompletedToday)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/me/challenges/no-such-thing/complete", "", ts.asUser())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Companions(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.do(t, http.MethodGet, "/api/v1/me/companions", "", ts.asUser())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodPut, "/api/v1/me/companion",
		`{"display_name":"Alice","interests":["yoga","reading"],"communication":"text","available":true}`, ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := ts.do(t, http.MethodGet, "/api/v1/me/companions?limit=3", "", ts.asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	var matches []map[string]any
	decodeData(t, env, &matches)
	assert.Empty(t, matches)
}

func TestServer_CompanionMatchingDisabled(t *testing.T) {
	ts := newTestServer(t, func(_ *Config, d *Dependencies) {
		d.FindCompanions = query.NewFindCompanionsHandler(apptest.NewCompanionRepo(), matchingOff{})
	})

	rec, env := ts.do(t, http.MethodGet, "/api/v1/me/companions", "", ts.asUser())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_MetricsUseRoutePattern(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.do(t, http.MethodGet, "/api/v1/levels/10", "", nil)
	ts.do(t, http.MethodGet, "/api/v1/levels/99999", "", nil)
	ts.do(t, http.MethodGet, "/nowhere", "", nil)

	assert.Equal(t, []string{
		"GET /api/v1/levels/{totalXp}",
		"GET /api/v1/levels/{totalXp}",
		"unmatched",
	}, ts.observer.routes)
}

func TestServer_RateLimit(t *testing.T) {
	ts := newTestServer(t, func(_ *Config, d *Dependencies) { d.RateLimiter = limiter{allow: false} })
	rec, env := ts.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// limiter outage fails open
	ts = newTestServer(t, func(_ *Config, d *Dependencies) {
		d.RateLimiter = limiter{err: errors.New("redis: connection refused")}
	})
	rec, _ = ts.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequestIDPropagates(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, env := ts.do(t, http.MethodGet, "/live", "", map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", env.RequestID)
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t, func(c *Config, _ *Dependencies) { c.AllowedOrigins = []string{"https://app.soulspace.example"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/me/progress", nil)
	req.Header.Set("Origin", "https://app.soulspace.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.soulspace.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{shared.InvalidArgument("progression", "Apply", "bad"), http.StatusBadRequest},
		{shared.ErrGoalNotOwned, http.StatusForbidden},
		{shared.ErrGoalNotFound, http.StatusNotFound},
		{shared.ErrChallengeAlreadyCompleted, http.StatusConflict},
		{shared.ErrVersionConflict, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
