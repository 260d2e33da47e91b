package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lodestone"

// States lists every state label written by RecordState.
var States = []string{"STOPPED", "STARTING", "RUNNING", "STOPPING", "CRASHED"}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	state     *prometheus.GaugeVec
	players   *prometheus.GaugeVec
	starts    *prometheus.CounterVec
	crashes   *prometheus.CounterVec
	downloads *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates the collectors and registers them with reg.
// It panics if registration fails, like prometheus.MustRegister.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_state",
			Help:      "1 for the current lifecycle state of each server, 0 for the others.",
		}, []string{"server", "state"}),
		players: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_players",
			Help:      "Players currently online.",
		}, []string{"server"}),
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_starts_total",
			Help:      "Server processes spawned.",
		}, []string{"server"}),
		crashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_crashes_total",
			Help:      "Server processes that exited without being asked to stop.",
		}, []string{"server"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jar_downloads_total",
			Help:      "Server jar downloads by software and result.",
		}, []string{"software", "result"}),
	}
	reg.MustRegister(r.state, r.players, r.starts, r.crashes, r.downloads)
	return r
}

// RecordState implements Recorder.
func (r *PrometheusRecorder) RecordState(server, state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		r.state.WithLabelValues(server, s).Set(v)
	}
}

// RecordPlayers implements Recorder.
func (r *PrometheusRecorder) RecordPlayers(server string, online int) {
	r.players.WithLabelValues(server).Set(float64(online))
}

// RecordStart implements Recorder.
func (r *PrometheusRecorder) RecordStart(server string) {
	r.starts.WithLabelValues(server).Inc()
}

// RecordCrash implements Recorder.
func (r *PrometheusRecorder) RecordCrash(server string) {
	r.crashes.WithLabelValues(server).Inc()
}

// RecordDownload implements Recorder.
func (r *PrometheusRecorder) RecordDownload(software string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.downloads.WithLabelValues(software, result).Inc()
}

// Forget implements Recorder.
func (r *PrometheusRecorder) Forget(server string) {
	labels := prometheus.Labels{"server": server}
	r.state.DeletePartialMatch(labels)
	r.players.DeletePartialMatch(labels)
	r.starts.DeletePartialMatch(labels)
	r.crashes.DeletePartialMatch(labels)
}
