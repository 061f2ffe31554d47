package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/quantumai/api"
	"github.com/rustyeddy/quantumai/session"
	"github.com/rustyeddy/quantumai/sim"
	"github.com/rustyeddy/quantumai/trading"
)

var start = time.Date(2026, 2, 7, 8, 0, 0, 0, time.FixedZone("WAT", 3600))

type fixture struct {
	backend  *http.ServeMux
	server   *Server
	url      string
	http     *http.Client
	sessions *session.Manager
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		backend: http.NewServeMux(),
		now:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	backend := httptest.NewServer(f.backend)
	t.Cleanup(backend.Close)

	clock := func() time.Time { return f.now }
	client := api.NewClient(backend.URL, 5*time.Second)
	f.sessions = session.NewManager(client, session.NewMemoryStore(), session.WithClock(clock))
	svc := trading.NewService(client, f.sessions, sim.NewSeeded(7), start, nil).WithClock(clock)

	f.server = NewServer(Options{
		Sessions:       f.sessions,
		Trading:        svc,
		Tick:           time.Second,
		Currency:       "XAF",
		WhatsAppNumber: "237600000000",
	})
	ts := httptest.NewServer(f.server.Handler())
	t.Cleanup(ts.Close)
	f.url = ts.URL

	f.http = &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return f
}

func (f *fixture) reply(path string, status int, body string) {
	f.backend.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.http.Get(f.url + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := f.http.Post(f.url+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	f.reply(api.PathLogin, http.StatusOK, `{"success":true,"token":"abc","user":{"total_balance":5000,"referral_code":"QA1"}}`)
	resp := f.post(t, "/login", `{"phone":"671234567","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestPublicViews(t *testing.T) {
	f := newFixture(t)

	for path, view := range map[string]string{"/": "index", "/login": "login", "/register": "register"} {
		resp := f.get(t, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, view, decode(t, resp)["view"], path)
	}
}

func TestDashboardRedirectsAnonymous(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Empty(t, resp.Header.Get(NoticeHeader))
}

func TestDashboardRedirectsExpired(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.now = f.now.AddDate(0, 0, session.TTLDays).Add(time.Second)

	resp := f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, session.ExpiredNotice, resp.Header.Get(NoticeHeader))
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.reply(api.PathUserData, http.StatusOK, `{"total_balance":1250000,"available_balance":1000000,"total_profit":25000,"today_profit":0}`)

	resp := f.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "dashboard", body["view"])
	assert.Equal(t, "671234567", body["phone"])
	assert.Equal(t, trading.LiveText, body["countdown"])
	assert.Len(t, body["trades"], trading.SeedTrades)
	assert.Len(t, body["chart"], trading.SeedChart)

	display := body["display"].(map[string]any)
	assert.Equal(t, "1,250,000 XAF", display["total_balance"])
	assert.Equal(t, "+25,000 XAF", display["total_profit"])
}

func TestDashboardUnauthorizedBackend(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.reply(api.PathUserData, http.StatusUnauthorized, `{}`)

	resp := f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.False(t, f.sessions.IsAuthenticated(context.Background()))
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.reply(api.PathUserData, http.StatusServiceUnavailable, ``)

	resp := f.get(t, "/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "671 234 567", body["phone"])
	assert.Equal(t, "QA1", body["referral_code"])
}

func TestLoginEndpoint(t *testing.T) {
	f := newFixture(t)

	f.reply(api.PathLogin, http.StatusOK, `{"success":false,"message":"Invalid credentials"}`)
	resp := f.post(t, "/login", `{"phone":"671234567","password":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", decode(t, resp)["message"])

	resp = f.post(t, "/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginDoesNotLeakToken(t *testing.T) {
	f := newFixture(t)
	f.reply(api.PathLogin, http.StatusOK, `{"success":true,"token":"abc"}`)

	resp := f.post(t, "/login", `{"phone":"671234567","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, ok := decode(t, resp)["token"]
	assert.False(t, ok)
	assert.True(t, f.sessions.IsAuthenticated(context.Background()))
}

func TestForgotPasswordEndpoint(t *testing.T) {
	f := newFixture(t)
	f.reply(api.PathForgotPassword, http.StatusOK, `{"success":true,"message":"sent"}`)

	resp := f.post(t, "/forgot-password", `{"phone":"671234567"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode(t, resp)["support"], "https://wa.me/237600000000?text=")
}

func TestChangePasswordEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/change-password", `{"old_password":"a","new_password":"b"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	f.login(t)
	f.reply(api.PathChangePassword, http.StatusOK, `{"success":true}`)
	resp = f.post(t, "/change-password", `{"old_password":"a","new_password":"b"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogoutEndpoint(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.reply(api.PathLogout, http.StatusOK, `{}`)

	resp := f.post(t, "/logout", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, f.sessions.IsAuthenticated(context.Background()))
}

func TestStartTradeEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/trade/start", ``)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	f.login(t)
	f.reply(api.PathStartTrade, http.StatusOK, `{"success":true,"trade":{"pair":"EUR/USD","estimated_profit":1200}}`)
	resp = f.post(t, "/trade/start", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "1,200 XAF", body["estimate"])
}

func TestStartTradeEndpointBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.now = start.Add(-time.Hour)
	f.login(t)

	resp := f.post(t, "/trade/start", ``)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStartTradeEndpointServerError(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.reply(api.PathStartTrade, http.StatusInternalServerError, `boom`)

	resp := f.post(t, "/trade/start", ``)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, trading.ServerErrorMessage, decode(t, resp)["message"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/health")

	resp := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `quantumai_http_requests_total{method="GET",path="/health",status="200"}`)
}

func TestWebSocketFeed(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.server.Hub().Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(f.url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.server.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.server.Feed().WithClock(func() time.Time { return f.now }).Publish()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "trade", msg.Type)
	require.NotNil(t, msg.Trade)
	assert.True(t, msg.Trade.Win())
	assert.Equal(t, trading.LiveText, msg.Countdown)
}
