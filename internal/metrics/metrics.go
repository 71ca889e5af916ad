// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors shared by the monitor and the engine
type Metrics struct {
	Frames            *prometheus.CounterVec
	MalformedFrames   prometheus.Counter
	TransportFailures prometheus.Counter
	SongChanges       *prometheus.CounterVec
	StationOnline     *prometheus.GaugeVec
	Listeners         *prometheus.GaugeVec
	ServerTime        prometheus.Gauge
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "onair_frames_total", Help: "Decoded stream rows by kind"},
			[]string{"kind"},
		),
		MalformedFrames: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "onair_malformed_frames_total", Help: "Frames skipped because they could not be decoded"},
		),
		TransportFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "onair_transport_failures_total", Help: "Stream connection failures"},
		),
		SongChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "onair_song_changes_total", Help: "Song identity changes"},
			[]string{"station"},
		),
		StationOnline: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "onair_station_online", Help: "1 if the station is online"},
			[]string{"station"},
		),
		Listeners: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "onair_station_listeners", Help: "Listener counts"},
			[]string{"station", "kind"},
		),
		ServerTime: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "onair_server_time_seconds", Help: "Last server timestamp received"},
		),
	}

	reg.MustRegister(
		m.Frames,
		m.MalformedFrames,
		m.TransportFailures,
		m.SongChanges,
		m.StationOnline,
		m.Listeners,
		m.ServerTime,
	)
	return m
}

// NewRegistry returns a fresh registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg
}
