package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/pillpal/internal/config"
	"github.com/gmsas95/pillpal/internal/doses"
	"github.com/gmsas95/pillpal/internal/metrics"
	"github.com/gmsas95/pillpal/internal/notify"
	"github.com/gmsas95/pillpal/internal/store"
	"github.com/gmsas95/pillpal/internal/tracker"
	"github.com/gmsas95/pillpal/internal/visit"
)

var testNow = time.Date(2024, 3, 10, 10, 0, 0, 0, time.Local)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) SimpleChat(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

type fakeHistory struct {
	list []store.Notification
}

func (f *fakeHistory) RecentNotifications(_ context.Context, limit int) ([]store.Notification, error) {
	if limit < len(f.list) {
		return f.list[:limit], nil
	}
	return f.list, nil
}

type testServer struct {
	*Server
	tracker *tracker.Tracker
	cfg     *config.Config
}

func newTestServer(t *testing.T, mutate func(*config.Config, *Deps)) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.AllowOrigins = []string{"*"}
	cfg.Notifications.WebSocket.Enabled = true

	m := metrics.New()
	tr := tracker.New(store.NewRepository(store.NewMemoryBlobs()), nil,
		tracker.WithClock(func() time.Time { return testNow }),
		tracker.WithSeed(store.DefaultSeed()),
		tracker.WithMetrics(m),
	)
	tr.Load(context.Background())

	deps := Deps{
		Tracker:    tr,
		Dispatcher: notify.NewDispatcher(nil, m, 0, notify.NewLogNotifier(nil)),
		Hub:        notify.NewHub(nil, m),
		Visits:     visit.NewGenerator(&fakeCompleter{reply: "1. How do you feel?\n2. Any dizziness?"}, nil, m),
		Metrics:    m,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	return &testServer{Server: New(cfg, deps, nil), tracker: tr, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := ts.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "healthy", got["status"])
	assert.Contains(t, got, "metrics")
	assert.EqualValues(t, 0, got["websocket_clients"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pillpal_adherence_rate")
}

func TestMedications(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/medications", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var meds []doses.Medication
	require.NoError(t, json.Unmarshal(body, &meds))
	assert.Len(t, meds, 3)

	resp, body = ts.do(t, http.MethodPost, "/api/medications",
		`{"name":"Vitamin D","dosage":"1000IU","frequency":24,"startTime":"12:30"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created doses.Medication
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, doses.MustClockTime("12:30"), created.StartTime)

	resp, _ = ts.do(t, http.MethodGet, "/api/medications/"+created.ID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/medications/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Len(t, ts.tracker.Medications(), 3)
}

func TestMedications_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/medications",
		`{"name":"","dosage":"1mg","frequency":24,"startTime":"08:00"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "MED_002")

	resp, _ = ts.do(t, http.MethodPost, "/api/medications",
		`{"name":"X","dosage":"1mg","frequency":24,"startTime":"25:00"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.do(t, http.MethodDelete, "/api/medications/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "MED_001")

	resp, _ = ts.do(t, http.MethodGet, "/api/medications/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDoses(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/doses/today", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var today []doseView
	require.NoError(t, json.Unmarshal(body, &today))
	require.Len(t, today, 6)
	assert.Equal(t, "Amoxicilina", today[0].MedicationName)
	assert.Equal(t, "250mg", today[0].Dosage)
	assert.Equal(t, doses.StatusPending, today[0].Status)

	id := today[0].ID
	resp, body = ts.do(t, http.MethodPost, "/api/doses/"+id+"/status", `{"status":"taken"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated doseView
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, doses.StatusTaken, updated.Status)

	resp, body = ts.do(t, http.MethodGet, "/api/adherence", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var a adherenceView
	require.NoError(t, json.Unmarshal(body, &a))
	assert.Equal(t, 1, a.Taken)
	assert.Equal(t, 5, a.Pending)
	assert.Equal(t, 100, a.Rate)
	assert.Equal(t, "Adherence rate: 100%. Taken: 1 doses, Skipped: 0 doses.", a.Summary)
}

func TestDoses_Errors(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.tracker.TodayDoses()[0].ID

	resp, body := ts.do(t, http.MethodPost, "/api/doses/"+id+"/status", `{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "DOSE_002")

	resp, body = ts.do(t, http.MethodPost, "/api/doses/missing/status", `{"status":"taken"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "DOSE_001")
}

func TestAdherenceByMedication(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/adherence/medications", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []doses.MedicationAdherence
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 3)
}

func TestDoctorVisit(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/doctor-visit", `{"healthDetails":"Mild headaches"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got struct {
		Input     visit.Input `json:"input"`
		Prompt    string      `json:"prompt"`
		Questions []string    `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Mild headaches", got.Input.HealthDetails)
	assert.Equal(t, []string{"How do you feel?", "Any dizziness?"}, got.Questions)
}

func TestDoctorVisit_Errors(t *testing.T) {
	ts := newTestServer(t, func(_ *config.Config, d *Deps) { d.Visits = nil })
	resp, body := ts.do(t, http.MethodPost, "/api/doctor-visit", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "LLM_001")

	ts = newTestServer(t, func(_ *config.Config, d *Deps) {
		d.Visits = visit.NewGenerator(&fakeCompleter{err: errors.New("down")}, nil, d.Metrics)
	})
	resp, body = ts.do(t, http.MethodPost, "/api/doctor-visit", `{"healthDetails":""}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "LLM_002")
}

func TestPermission(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/notifications/permission", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Permission notify.Permission            `json:"permission"`
		Channels   map[string]notify.Permission `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, notify.PermissionGranted, got.Permission)
	assert.Equal(t, notify.PermissionGranted, got.Channels["log"])

	ts = newTestServer(t, func(_ *config.Config, d *Deps) { d.Dispatcher = nil })
	resp, _ = ts.do(t, http.MethodGet, "/api/notifications/permission", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNotificationsAndJobs(t *testing.T) {
	history := &fakeHistory{list: []store.Notification{{DoseID: "a"}, {DoseID: "b"}}}
	ts := newTestServer(t, func(_ *config.Config, d *Deps) { d.History = history })

	resp, body := ts.do(t, http.MethodGet, "/api/notifications?limit=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []store.Notification
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	resp, body = ts.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	resp, body = ts.do(t, http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config, _ *Deps) { cfg.Security.AdminPassword = "hunter2" })

	resp, _ := ts.do(t, http.MethodGet, "/api/medications", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/auth/login", `{"password":"hunter2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &login))
	require.NotEmpty(t, login.Token)

	resp, _ = ts.do(t, http.MethodGet, "/api/medications", "", "Authorization", "Bearer "+login.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/medications?token="+login.Token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/medications", "", "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays public")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := ts.do(t, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	ts = newTestServer(t, func(cfg *config.Config, _ *Deps) { cfg.Notifications.WebSocket.Enabled = false })
	resp, _ = ts.do(t, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
