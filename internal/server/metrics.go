package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"message-board/internal/board"
)

// metrics holds the board's Prometheus collectors on a private registry,
// so several servers can live in one process (tests).
type metrics struct {
	registry *prometheus.Registry

	messagesPosted *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	uploadFailures *prometheus.CounterVec
	fileFetches    *prometheus.CounterVec
	requests       *prometheus.CounterVec
}

func newMetrics(b *board.Board) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		messagesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_messages_posted_total",
			Help: "Messages appended to the board, by kind.",
		}, []string{"kind"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_upload_bytes_total",
			Help: "Bytes written to the upload store.",
		}),
		uploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_upload_failures_total",
			Help: "Uploads rejected or failed, by reason.",
		}, []string{"reason"}),
		fileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_file_fetches_total",
			Help: "Requests for uploaded files, by outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_http_requests_total",
			Help: "HTTP requests served, by status class.",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		m.messagesPosted,
		m.uploadBytes,
		m.uploadFailures,
		m.fileFetches,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if b != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "board_messages",
			Help: "Messages currently held in memory.",
		}, func() float64 { return float64(b.Len()) }))
	}

	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) messagePosted(kind board.Kind) {
	m.messagesPosted.WithLabelValues(string(kind)).Inc()
}

func (m *metrics) uploadStored(bytes int64) {
	m.uploadBytes.Add(float64(bytes))
}

func (m *metrics) uploadFailed(reason string) {
	m.uploadFailures.WithLabelValues(reason).Inc()
}

func (m *metrics) fileFetched(outcome string) {
	m.fileFetches.WithLabelValues(outcome).Inc()
}

func (m *metrics) requestServed(status int) {
	m.requests.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
}
