package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/seasonal_trader/internal/metrics"
	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/storage"
)

type staticPasses []PassReport

func (p staticPasses) LastPasses() []PassReport { return p }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func seededStore(t *testing.T) *storage.MemoryStorage {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	rule := &models.SeasonalRule{
		MagicNumber:  7,
		Symbol:       "MES",
		Direction:    models.DirectionLong,
		EntryMonth:   3,
		EntryDay:     1,
		ExitMonth:    4,
		ExitDay:      1,
		OpenTime:     models.MustClockTime("10:00"),
		CloseTime:    models.MustClockTime("15:00"),
		StopLoss:     decimal.NewFromInt(5),
		StopLossType: models.StopLossPoints,
		RiskPercent:  decimal.NewFromInt(1),
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	open := models.NewTradingWindow("w-open", rule.ID, now, now.Add(time.Hour), now)
	open.Status = models.StatusOpen
	require.NoError(t, store.CreateWindow(ctx, open))
	require.NoError(t, store.CreateWindow(ctx, models.NewTradingWindow("w-wait", rule.ID, now.Add(time.Hour), now.Add(2*time.Hour), now)))
	return store
}

func get(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Windows(t *testing.T) {
	s := NewServer(Config{}, seededStore(t), nil, nil, quietLogger())
	h := s.Handler()

	rec := get(t, h, "/api/windows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var windows []models.TradingWindow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &windows))
	assert.Len(t, windows, 2)

	rec = get(t, h, "/api/windows?status=open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &windows))
	require.Len(t, windows, 1)
	assert.Equal(t, "w-open", windows[0].ID)

	rec = get(t, h, "/api/windows?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, "/api/windows/w-wait", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var one map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "AWAITING", one["status"])
	assert.Equal(t, models.DescribeStatus(models.StatusAwaiting), one["status_description"])

	rec = get(t, h, "/api/windows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"magic_number":7`)
}

func TestServer_StoreError(t *testing.T) {
	store := seededStore(t)
	store.SetListError(assert.AnError)
	s := NewServer(Config{}, store, nil, nil, quietLogger())

	rec := get(t, s.Handler(), "/api/windows", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Auth(t *testing.T) {
	s := NewServer(Config{AuthToken: "tok"}, seededStore(t), nil, nil, quietLogger())
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health", nil).Code, "health is public")
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/windows", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/windows", map[string]string{"X-Auth-Token": "nope"}).Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/windows", map[string]string{"X-Auth-Token": "tok"}).Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/windows?token=tok", nil).Code)
}

func TestServer_MetricsAndPasses(t *testing.T) {
	rec := metrics.New()
	rec.WindowsCreated(3)
	passes := staticPasses{{Pass: "execute", Error: "gateway down"}}
	s := NewServer(Config{}, seededStore(t), rec.Registry(), passes, quietLogger())
	h := s.Handler()

	res := get(t, h, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, strings.Contains(res.Body.String(), "seasonal_windows_created_total 3"))

	res = get(t, h, "/api/passes", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "gateway down")
}

func TestServer_NoMetricsRouteWithoutRegistry(t *testing.T) {
	s := NewServer(Config{}, seededStore(t), nil, nil, quietLogger())
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/metrics", nil).Code)
	assert.Equal(t, "[]\n", get(t, s.Handler(), "/api/passes", nil).Body.String())
}
