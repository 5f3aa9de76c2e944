package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"farm_telemetry/internal/models"
	"farm_telemetry/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	subject  string
	parseErr error

	lastParseToken string
}

func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.subject, m.parseErr
}

type mockLive struct {
	mu   sync.Mutex
	view models.LiveView
}

func (m *mockLive) View() models.LiveView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

func (m *mockLive) set(v models.LiveView) {
	m.mu.Lock()
	m.view = v
	m.mu.Unlock()
}

type mockReadings struct {
	page models.ReadingPage
	err  error

	lastFrom, lastTo   time.Time
	lastPage, lastSize int
}

func (m *mockReadings) ListRange(_ context.Context, from, to time.Time, page, pageSize int) (models.ReadingPage, error) {
	m.lastFrom, m.lastTo, m.lastPage, m.lastSize = from, to, page, pageSize
	return m.page, m.err
}

type mockSchedules struct {
	rules     []models.ScheduleRule
	listErr   error
	createErr error
	deleteErr error
	enableErr error

	lastCreate  models.ScheduleRule
	lastDelete  string
	lastEnable  string
	lastEnabled bool
}

func (m *mockSchedules) List(context.Context) ([]models.ScheduleRule, error) {
	return m.rules, m.listErr
}
func (m *mockSchedules) Create(_ context.Context, r models.ScheduleRule) (models.ScheduleRule, error) {
	m.lastCreate = r
	if m.createErr != nil {
		return models.ScheduleRule{}, m.createErr
	}
	r.ID = "new-id"
	return r, nil
}
func (m *mockSchedules) Delete(_ context.Context, id string) error {
	m.lastDelete = id
	return m.deleteErr
}
func (m *mockSchedules) SetEnabled(_ context.Context, id string, enabled bool) error {
	m.lastEnable, m.lastEnabled = id, enabled
	return m.enableErr
}

type mockRelays struct {
	status    models.RelayStatus
	hasStatus bool
	setErr    error
	fertErr   error
	timer     models.ArmedTimer

	lastRelay   int
	lastOn      bool
	lastMinutes float64
	stopCalls   int
}

func (m *mockRelays) Set(_ context.Context, relayID int, on bool) error {
	m.lastRelay, m.lastOn = relayID, on
	return m.setErr
}
func (m *mockRelays) StartFertigation(_ context.Context, minutes float64) (models.ArmedTimer, error) {
	m.lastMinutes = minutes
	return m.timer, m.fertErr
}
func (m *mockRelays) StopFertigation(context.Context) error {
	m.stopCalls++
	return m.fertErr
}
func (m *mockRelays) Status() (models.RelayStatus, bool) { return m.status, m.hasStatus }

type mockThresholds struct {
	current   models.Thresholds
	updateErr error
	updates   int
}

func (m *mockThresholds) Current() models.Thresholds { return m.current }
func (m *mockThresholds) Update(_ context.Context, t models.Thresholds) (models.Thresholds, error) {
	if m.updateErr != nil {
		return models.Thresholds{}, m.updateErr
	}
	m.updates++
	m.current = t
	return t, nil
}

type mockEventLog struct {
	resp     []models.AutomationEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	last     service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.AutomationEvent, error) {
	m.last = f
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// do sends one request through r. body is sent as JSON when non-empty.
func do(r http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vv := range authHeader(token) {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
