package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderDoesNotPanic(t *testing.T) {
	t.Parallel()
	var r Recorder = NoopRecorder{}
	r.RecordState("a", "RUNNING")
	r.RecordPlayers("a", 3)
	r.RecordStart("a")
	r.RecordCrash("a")
	r.RecordDownload("paper", false)
	r.Forget("a")
}

func TestPrometheusRecorderState(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewPedanticRegistry()
	r := NewPrometheusRecorder(reg)

	r.RecordState("alpha", "STARTING")
	r.RecordState("alpha", "RUNNING")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.state.WithLabelValues("alpha", "RUNNING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.state.WithLabelValues("alpha", "STARTING")))
	assert.Equal(t, len(States), testutil.CollectAndCount(r.state, "lodestone_server_state"))
}

func TestPrometheusRecorderCounters(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewPedanticRegistry()
	r := NewPrometheusRecorder(reg)

	r.RecordStart("alpha")
	r.RecordStart("alpha")
	r.RecordCrash("alpha")
	r.RecordPlayers("alpha", 4)
	r.RecordDownload("paper", true)
	r.RecordDownload("paper", false)
	r.RecordDownload("paper", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.starts.WithLabelValues("alpha")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.crashes.WithLabelValues("alpha")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.players.WithLabelValues("alpha")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.downloads.WithLabelValues("paper", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.downloads.WithLabelValues("paper", "failure")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"lodestone_server_players",
		"lodestone_server_starts_total",
		"lodestone_server_crashes_total",
		"lodestone_jar_downloads_total",
	} {
		assert.True(t, names[want], want)
	}
}

func TestPrometheusRecorderForget(t *testing.T) {
	t.Parallel()
	r := NewPrometheusRecorder(prometheus.NewPedanticRegistry())
	r.RecordState("alpha", "RUNNING")
	r.RecordState("beta", "RUNNING")
	r.RecordStart("alpha")

	r.Forget("alpha")
	assert.Equal(t, len(States), testutil.CollectAndCount(r.state))
	assert.Zero(t, testutil.CollectAndCount(r.starts))
}

func TestHandler(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewPedanticRegistry()
	NewPrometheusRecorder(reg).RecordStart("alpha")
	h := Handler(reg)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"get", http.MethodGet, Path, http.StatusOK},
		{"head", http.MethodHead, Path, http.StatusOK},
		{"post", http.MethodPost, Path, http.StatusMethodNotAllowed},
		{"other path", http.MethodGet, "/", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			if tt.method == http.MethodGet && tt.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `lodestone_server_starts_total{server="alpha"} 1`)
			}
		})
	}
}

func TestServeAndShutdown(t *testing.T) {
	t.Parallel()
	e, err := Serve("127.0.0.1:0", NewRegistry(), logging.Nop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + e.Addr() + Path)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")

	require.NoError(t, e.Shutdown(context.Background()))
}

func TestServeBadAddress(t *testing.T) {
	t.Parallel()
	_, err := Serve("not-an-address", NewRegistry(), logging.Nop())
	require.Error(t, err)
}
