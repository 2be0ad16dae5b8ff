package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftguard/internal/account"
	"github.com/roach88/shiftguard/internal/attendance"
	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/remote"
	"github.com/roach88/shiftguard/internal/replication"
	"github.com/roach88/shiftguard/internal/testutil"
)

const (
	testEpoch = int64(1_700_000_000_000)
	testKey   = "test-signing-key-0123456789"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	srv    *Server
	engine *replication.Engine
	mem    *remote.Memory
	clock  *testutil.ManualClock
}

func seededDocument() model.Document {
	doc := model.DefaultDocument(testEpoch)
	doc.RegisteredUsers = []model.User{
		{ID: "u-1", Username: "boss", Email: "boss@example.com", Password: "pw-boss", Role: model.RoleOwner},
		{ID: "u-2", Username: "lead", Email: "lead@example.com", Password: "pw-lead", Role: model.RoleAdmin},
		{ID: "u-3", Username: "Mona Ali", Email: "mona@example.com", Password: "pw-mona", Role: model.RoleUser, Team: model.TeamA},
	}
	return doc
}

func newAPIFixture(t *testing.T, rateLimit int) apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := remote.NewMemory()
	require.NoError(t, mem.Seed(seededDocument()))
	clock := testutil.NewManualClockMillis(testEpoch)
	reg := prometheus.NewRegistry()
	engine := replication.New(mem,
		replication.WithClock(clock),
		replication.WithLogger(logger),
		replication.WithMetrics(replication.NewMetrics(reg)),
	)
	require.NoError(t, engine.Pull(context.Background(), true))

	gw := attendance.NewGateway(engine,
		attendance.WithIDGenerator(testutil.NewSequenceGenerator("")),
		attendance.WithLogger(logger),
	)
	accounts := account.New(gw, account.AccessCodes{Owner: "owner-code", Admin: "admin-code"}, logger)
	srv := New(gw, accounts, Options{
		Issuer:          "shiftguard-test",
		SigningKey:      testKey,
		SessionTTL:      time.Hour,
		RateLimitPerMin: rateLimit,
		Gatherer:        reg,
		Now:             clock.Now,
	}, logger)
	return apiFixture{srv: srv, engine: engine, mem: mem, clock: clock}
}

func (f apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f apiFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/session", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["initialized"])
}

func TestHealthz_NotInitialized(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := replication.New(remote.NewMemory(), replication.WithLogger(logger))
	gw := attendance.NewGateway(engine, attendance.WithLogger(logger))
	srv := New(gw, account.New(gw, account.AccessCodes{}, logger), Options{SigningKey: testKey}, logger)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t, 0)

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/session", "", map[string]string{"username": "boss", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/session", "", map[string]string{"username": "boss"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("records the login", func(t *testing.T) {
		token := f.login(t, "BOSS", "pw-boss")
		assert.NotEmpty(t, token)
		assert.Equal(t, "boss", f.engine.Identity().Username)
		logs := f.engine.Snapshot().LoginLogs
		require.NotEmpty(t, logs)
		assert.Equal(t, "boss", logs[0].Username)
	})
}

func TestSession_Required(t *testing.T) {
	f := newAPIFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/v1/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/state", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_EndsOnLogout(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")

	rec := f.do(t, http.MethodDelete, "/v1/session", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/status", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "session ended", decode(t, rec)["error"])
}

func TestSession_Expired(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")

	f.clock.Advance(2 * time.Hour)
	rec := f.do(t, http.MethodGet, "/v1/status", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestState_RedactsPasswords(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")

	rec := f.do(t, http.MethodGet, "/v1/state", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pw-boss")

	var doc model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.RegisteredUsers, 3)
	assert.Equal(t, "pw-boss", f.engine.Snapshot().RegisteredUsers[0].Password, "engine copy untouched")
}

func TestRoleGating(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		method string
		path   string
		body   any
		want   int
	}{
		{"user cannot add worker", "Mona Ali", http.MethodPost, "/v1/workers", attendance.NewWorker{PCNumber: "99", Name: "New", Team: model.TeamA}, http.StatusForbidden},
		{"user cannot view dashboard", "Mona Ali", http.MethodGet, "/v1/dashboard", nil, http.StatusForbidden},
		{"admin can view dashboard", "lead", http.MethodGet, "/v1/dashboard", nil, http.StatusOK},
		{"admin cannot flush logs", "lead", http.MethodDelete, "/v1/logs", nil, http.StatusForbidden},
		{"admin cannot toggle bridge", "lead", http.MethodPost, "/v1/bridge/toggle", nil, http.StatusForbidden},
		{"admin can add worker", "lead", http.MethodPost, "/v1/workers", attendance.NewWorker{PCNumber: "99", Name: "New", Team: model.TeamA}, http.StatusCreated},
		{"owner can flush logs", "boss", http.MethodDelete, "/v1/logs", nil, http.StatusNoContent},
		{"owner can rename team", "boss", http.MethodPut, "/v1/teams/B", map[string]string{"name": "Night Shift"}, http.StatusOK},
	}
	passwords := map[string]string{"boss": "pw-boss", "lead": "pw-lead", "Mona Ali": "pw-mona"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, 0)
			token := f.login(t, tt.user, passwords[tt.user])

			rec := f.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusForbidden {
				body := decode(t, rec)
				assert.Equal(t, "ROLE_DENIED", body["code"])
				assert.Equal(t, noticeTitle, body["notice"])
			}
		})
	}
}

func TestToggleWorker_UserOwnsOnlyTheirWorker(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "Mona Ali", "pw-mona")

	rec := f.do(t, http.MethodPost, "/v1/workers/w-01/toggle", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/workers/w-02/toggle", token, map[string]string{"reason": "Lunch"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var w model.Worker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, model.StatusAway, w.Status)
	assert.Equal(t, model.ReasonLunch, w.CurrentReason)
	assert.True(t, f.engine.Status().Dirty)
}

func TestToggleWorker_BridgeSuspended(t *testing.T) {
	f := newAPIFixture(t, 0)
	owner := f.login(t, "boss", "pw-boss")

	rec := f.do(t, http.MethodPost, "/v1/bridge/toggle", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["bridgeActive"])

	// The owner is not blocked.
	rec = f.do(t, http.MethodPost, "/v1/workers/w-01/toggle", owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.do(t, http.MethodDelete, "/v1/session", owner, nil)
	user := f.login(t, "Mona Ali", "pw-mona")

	rec = f.do(t, http.MethodPost, "/v1/workers/w-02/toggle", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, string(attendance.ErrCodeBridgeSuspended), body["code"])
	assert.Equal(t, noticeTitle, body["notice"])
}

func TestToggleWorker_NotFound(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")

	rec := f.do(t, http.MethodPost, "/v1/workers/ghost/toggle", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddWorker_Validation(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")

	rec := f.do(t, http.MethodPost, "/v1/workers", token, attendance.NewWorker{PCNumber: "01", Name: "Dup", Team: model.TeamA})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, string(attendance.ErrCodeDuplicate), body["code"])
	assert.Equal(t, "pcNumber", body["field"])
}

func TestWorkerLifecycle(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")

	rec := f.do(t, http.MethodPost, "/v1/workers", token, attendance.NewWorker{PCNumber: "77", Name: "Nour", Team: model.TeamC})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Worker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "PC-77", created.PCNumber)

	rec = f.do(t, http.MethodPatch, "/v1/workers/"+created.ID, token, map[string]string{"name": "Nour Adel"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Nour Adel", decode(t, rec)["name"])

	rec = f.do(t, http.MethodDelete, "/v1/workers/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/workers/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkAndReports(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")

	rec := f.do(t, http.MethodPost, "/v1/bulk", token, map[string]string{"team": "A", "status": "Away", "reason": "Meeting"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f.clock.Advance(90 * time.Second)
	rec = f.do(t, http.MethodPost, "/v1/bulk", token, map[string]string{"team": "A", "status": "Active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/reports?team=A&reason=Meeting", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), `"entries":[]`)
	assert.Contains(t, rec.Body.String(), `"duration":90`)
}

func TestRegister(t *testing.T) {
	f := newAPIFixture(t, 0)

	body := map[string]string{"username": "newbie", "email": "n@example.com", "password": "secret", "role": "Admin", "accessCode": "wrong"}
	rec := f.do(t, http.MethodPost, "/v1/users", "", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "accessCode", decode(t, rec)["field"])

	body["accessCode"] = "admin-code"
	rec = f.do(t, http.MethodPost, "/v1/users", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestPasswordRecovery_Refused(t *testing.T) {
	f := newAPIFixture(t, 0)

	rec := f.do(t, http.MethodPost, "/v1/password-recovery", "", map[string]string{"username": "boss"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSync(t *testing.T) {
	f := newAPIFixture(t, 0)
	token := f.login(t, "boss", "pw-boss")
	f.mem.ResetCalls()

	rec := f.do(t, http.MethodPost, "/v1/sync", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["dirty"])
	assert.Equal(t, 1, f.mem.Calls(remote.OpUpdate))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "shiftguard_pull_total"))
}

func TestRateLimit(t *testing.T) {
	f := newAPIFixture(t, 3)

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	f.clock.Advance(time.Minute)
	rec = f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPLimiter_PerKey(t *testing.T) {
	clock := testutil.NewManualClockMillis(1_000_000)
	l := newIPLimiter(1, 60, clock.Now)

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	clock.Advance(2 * time.Second)
	assert.True(t, l.allow("a"))
}
