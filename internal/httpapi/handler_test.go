package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
	"github.com/aether-games/echoes-engine/internal/gateway/gatewaytest"
	"github.com/aether-games/echoes-engine/internal/grant"
	"github.com/aether-games/echoes-engine/internal/guard"
	"github.com/aether-games/echoes-engine/internal/registry"
	"github.com/aether-games/echoes-engine/internal/schedule"
	"github.com/aether-games/echoes-engine/internal/workflow"
)

const owner = "owner-1"

type memGroups struct {
	mu  sync.Mutex
	set map[string]bool
}

func (m *memGroups) GroupAuthorized(_ context.Context, groupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set[groupID], nil
}

func (m *memGroups) AuthorizeGroup(_ context.Context, groupID, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.set[groupID] {
		return false, nil
	}
	m.set[groupID] = true
	return true, nil
}

func (m *memGroups) DeauthorizeGroup(_ context.Context, groupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set[groupID] {
		return false, nil
	}
	delete(m.set, groupID)
	return true, nil
}

type fixture struct {
	e      *echo.Echo
	coord  *workflow.Coordinator
	clock  *schedule.Manual
	gw     *gatewaytest.Recorder
	groups *memGroups
	signer *grant.Signer
}

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()
	clock := schedule.NewManual()
	gw := gatewaytest.New()
	cfg := workflow.DefaultConfig()
	cfg.FrameDelay = 0
	coord := workflow.NewCoordinator(registry.NewMemory(), gw, clock, cfg, workflow.WithSeed(3))

	groups := &memGroups{set: map[string]bool{"g1": true}}
	g, err := guard.NewGuard(context.Background(), guard.GuardConfig{OwnerID: owner, RateLimitPerMinute: rateLimit}, groups, nil)
	require.NoError(t, err)
	signer, err := grant.NewSigner("0123456789abcdef0123", time.Hour, nil)
	require.NoError(t, err)

	h := NewHandler(coord, g, groups, signer)
	return &fixture{e: NewServer(h, nil), coord: coord, clock: clock, gw: gw, groups: groups, signer: signer}
}

func (f *fixture) do(t *testing.T, method, path, player string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if player != "" {
		req.Header.Set(HeaderPlayerID, player)
		req.Header.Set(HeaderPlayerName, "name-"+player)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 30)
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartGame_RequiresAuthorizedGroup(t *testing.T) {
	f := newFixture(t, 30)

	rec := f.do(t, http.MethodPost, "/v1/groups/g2/game", "p1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.ErrGroupUnauthorized.Code, decode[APIError](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/v1/groups/g1/game", "p1", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/groups/g1/game", "p1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrAlreadyExists.Message, decode[APIError](t, rec).Message)
}

func TestMissingIdentity(t *testing.T) {
	f := newFixture(t, 30)
	rec := f.do(t, http.MethodPost, "/v1/groups/g1/game", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJoin_ReturnsVerifiableGrant(t *testing.T) {
	f := newFixture(t, 30)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/groups/g1/game", "p1", nil).Code)

	rec := f.do(t, http.MethodPost, "/v1/groups/g1/game/join", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[OutcomeResponse](t, rec)
	assert.Equal(t, "You have joined the game.", resp.Text)

	claims, err := f.signer.Verify(resp.Grant)
	require.NoError(t, err)
	assert.Equal(t, grant.KindPlayer, claims.Kind)
	assert.Equal(t, "p1", claims.SubjectID)
	assert.Equal(t, "name-p1", claims.DisplayName)
	assert.Equal(t, "g1", claims.GroupID)

	rec = f.do(t, http.MethodPost, "/v1/groups/g1/game/join", "p1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrAlreadyJoined.Message, decode[APIError](t, rec).Message)
}

func TestJoin_NoGame(t *testing.T) {
	f := newFixture(t, 30)
	rec := f.do(t, http.MethodPost, "/v1/groups/g1/game/join", "p1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLobbyFlow_ForceStartThenDescribe(t *testing.T) {
	f := newFixture(t, 30)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/groups/g1/game", "p1", nil).Code)

	rec := f.do(t, http.MethodPost, "/v1/groups/g1/game/forcestart", "p1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrNotEnoughPlayers.Message, decode[APIError](t, rec).Message)

	for _, p := range []string{"p1", "p2", "p3", "p4"} {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/groups/g1/game/join", p, nil).Code)
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/groups/g1/game/flee", "p4", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/groups/g1/game/extend", "p1", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/groups/g1/game/forcestart", "p1", nil).Code)

	rec = f.do(t, http.MethodGet, "/v1/groups/g1/game", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[workflow.View](t, rec)
	assert.Equal(t, domain.StatusStarted, view.Status)
	assert.Equal(t, domain.PhaseNight, view.Phase)
	require.Len(t, view.Players, 3)
	for _, p := range view.Players {
		assert.Empty(t, p.Role)
	}

	rec = f.do(t, http.MethodPost, "/v1/groups/g1/game/advance", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[workflow.View](t, f.do(t, http.MethodGet, "/v1/groups/g1/game", "", nil))
	assert.Equal(t, domain.PhaseDay, view.Phase)
}

func TestActions_ValidationAndRateLimit(t *testing.T) {
	f := newFixture(t, 2)

	rec := f.do(t, http.MethodPost, "/v1/actions", "p1", ActionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/actions", "p1", ActionRequest{Token: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrUnknownAction.Code, decode[APIError](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/v1/actions", "p1", ActionRequest{Token: gateway.VoteToken("p2")})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrNotJoined.Code, decode[APIError](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/v1/actions", "p1", ActionRequest{Token: gateway.VoteToken("p2")})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestActions_JoinThroughButton(t *testing.T) {
	f := newFixture(t, 30)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/groups/g1/game", "p1", nil).Code)

	rec := f.do(t, http.MethodPost, "/v1/actions", "p2", ActionRequest{Token: gateway.TokenJoin, GroupID: "g1"})
	require.Equal(t, http.StatusOK, rec.Code)
	id, ok := f.coord.SessionOf("p2")
	assert.True(t, ok)
	assert.Equal(t, "g1", id)
}

func TestTasks_NotJoined(t *testing.T) {
	f := newFixture(t, 30)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodGet, "/v1/tasks", "p1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/tasks/submit", "p1", SubmitRequest{}).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/v1/tasks/submit", "p1", SubmitRequest{Code: "say_stars"}).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/v1/tasks/abandon", "p1", nil).Code)
}

func TestTasks_ListAfterDayStarts(t *testing.T) {
	f := newFixture(t, 30)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/groups/g1/game", "p1", nil).Code)
	for _, p := range []string{"p1", "p2", "p3"} {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/groups/g1/game/join", p, nil).Code)
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/groups/g1/game/forcestart", "p1", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/groups/g1/game/advance", "p1", nil).Code)

	rec := f.do(t, http.MethodGet, "/v1/tasks", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[OutcomeResponse](t, rec).Text, "🧾 Your tasks:")

	rec = f.do(t, http.MethodPost, "/v1/tasks/abandon", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "⚠️ Task abandoned.", decode[OutcomeResponse](t, rec).Text)
}

func TestPostMessage(t *testing.T) {
	f := newFixture(t, 30)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/groups/g1/messages", "p1", MessageRequest{}).Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/v1/groups/g1/messages", "p1", MessageRequest{Text: "hello"}).Code)
}

func TestCancelGame(t *testing.T) {
	f := newFixture(t, 30)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/groups/g1/game", "p1", nil).Code)

	rec := f.do(t, http.MethodDelete, "/v1/groups/g1/game", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/groups/g1/game", "", nil).Code)
}

func TestAuthorization_OwnerOnly(t *testing.T) {
	f := newFixture(t, 30)

	rec := f.do(t, http.MethodPut, "/v1/groups/g2/authorization", "p1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.ErrUnauthorized.Code, decode[APIError](t, rec).Code)

	rec = f.do(t, http.MethodPut, "/v1/groups/g2/authorization", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "✅ Group authorized.", decode[OutcomeResponse](t, rec).Text)

	rec = f.do(t, http.MethodPut, "/v1/groups/g2/authorization", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ℹ️ This group is already authorized.", decode[OutcomeResponse](t, rec).Text)

	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/groups/g2/game", "p9", nil).Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/v1/groups/g2/authorization", owner, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/v1/groups/g2/authorization", owner, nil).Code)
}

func TestGroupGrant(t *testing.T) {
	f := newFixture(t, 30)
	rec := f.do(t, http.MethodPost, "/v1/groups/g1/grant", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	claims, err := f.signer.Verify(decode[OutcomeResponse](t, rec).Grant)
	require.NoError(t, err)
	assert.Equal(t, grant.KindGroup, claims.Kind)
	assert.Equal(t, "g1", claims.SubjectID)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/v1/groups/g3/grant", "p1", nil).Code)
}
