package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/liveprice"
	"github.com/rickgao/liveprice/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSource is a fixed hub view.
type fakeSource struct {
	table model.PriceTable
	state connection.State
}

func (f *fakeSource) Table() model.PriceTable { return f.table.Clone() }

func (f *fakeSource) Price(symbol string) (model.PriceQuote, bool) {
	q, ok := f.table[model.NormalizeSymbol(symbol)]
	return q, ok
}

func (f *fakeSource) State() connection.State { return f.state }

func (f *fakeSource) Stats() liveprice.Stats {
	return liveprice.Stats{Consumers: 2, Connected: f.state == connection.StateConnected}
}

func newFakeSource() *fakeSource {
	at := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	return &fakeSource{
		state: connection.StateConnected,
		table: model.PriceTable{
			"AAPL": {Symbol: "AAPL", Price: 151, Change: 0.7, High: 152, Low: 149, ObservedAt: at},
			"MSFT": {Symbol: "MSFT", Price: 410, ObservedAt: at},
			"TSLA": {Symbol: "TSLA", Price: 200, ObservedAt: at},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		state      connection.State
		wantCode   int
		wantStatus string
	}{
		{connection.StateConnected, http.StatusOK, "up"},
		{connection.StateConnecting, http.StatusOK, "degraded"},
		{connection.StateDisconnected, http.StatusServiceUnavailable, "down"},
		{connection.StateFailed, http.StatusServiceUnavailable, "down"},
		{connection.State(99), http.StatusServiceUnavailable, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			src := newFakeSource()
			src.state = tt.state
			s := NewServer(Config{}, src, nil)

			rec := get(t, s.Handler(), "/health")
			require.Equal(t, tt.wantCode, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.state.String(), body["state"])
			assert.Equal(t, tt.state == connection.StateConnected, body["connected"])
		})
	}
}

func TestPrices(t *testing.T) {
	s := NewServer(Config{}, newFakeSource(), nil)

	rec := get(t, s.Handler(), "/prices")
	require.Equal(t, http.StatusOK, rec.Code)

	var all map[string]quoteJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)
	assert.Equal(t, 151.0, all["AAPL"].Price)
	assert.Equal(t, 152.0, all["AAPL"].High)

	rec = get(t, s.Handler(), "/prices?symbols=aapl,%20tsla,NFLX")
	require.Equal(t, http.StatusOK, rec.Code)

	var some map[string]quoteJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &some))
	assert.Len(t, some, 2)
	assert.Contains(t, some, "AAPL")
	assert.Contains(t, some, "TSLA")
}

func TestPriceBySymbol(t *testing.T) {
	s := NewServer(Config{}, newFakeSource(), nil)

	rec := get(t, s.Handler(), "/prices/msft")
	require.Equal(t, http.StatusOK, rec.Code)

	var q quoteJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "MSFT", q.Symbol)
	assert.Equal(t, 410.0, q.Price)

	rec = get(t, s.Handler(), "/prices/NFLX")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown symbol NFLX")
}

func TestStatsIncludesExtras(t *testing.T) {
	s := NewServer(Config{}, newFakeSource(), nil,
		WithStats("redis_mirror", func() any { return map[string]int{"written": 7} }),
	)

	rec := get(t, s.Handler(), "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Hub struct {
			Consumers int
			Connected bool
		} `json:"hub"`
		Mirror map[string]int `json:"redis_mirror"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Hub.Consumers)
	assert.True(t, body.Hub.Connected)
	assert.Equal(t, 7, body.Mirror["written"])
}

func TestVersion(t *testing.T) {
	s := NewServer(Config{}, newFakeSource(), nil)

	rec := get(t, s.Handler(), "/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"dev"`)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"}, newFakeSource(), nil)
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"up"`)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()), "second Stop is a no-op")

	_, err = http.Get("http://" + s.Addr() + "/health")
	assert.Error(t, err)
}
