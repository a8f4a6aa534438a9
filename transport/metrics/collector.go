package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "realtime"

// Collector は、コネクションに関する Prometheus メトリクスです。
//
// nil の Collector は何も記録しません。
type Collector struct {
	opened   *prometheus.CounterVec
	finished *prometheus.CounterVec
	active   *prometheus.GaugeVec
	rtt      *prometheus.HistogramVec
	tcpRTT   *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	messages *prometheus.CounterVec
	limited  *prometheus.CounterVec
}

// NewCollector は、 Collector を生成して reg に登録します。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Number of connections accepted or dialed.",
		}, []string{"transport"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_finished_total",
			Help:      "Number of connections by terminal state.",
		}, []string{"transport", "state"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections not yet in a terminal state.",
		}, []string{"transport"}),
		rtt: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_seconds",
			Help:      "Round trip time samples.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .15, .2, .3, .5, 1, 2.5},
		}, []string{"transport"}),
		tcpRTT: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tcp_rtt_seconds",
			Help:      "Smoothed round trip time reported by the kernel for stream connections.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .15, .2, .3, .5, 1, 2.5},
		}, []string{"transport"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Application payload bytes before compression.",
		}, []string{"transport", "direction"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Number of messages by kind.",
		}, []string{"transport", "direction", "kind"}),
		limited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_limited_total",
			Help:      "Number of admission gate refusals.",
		}, []string{"label"}),
	}
	reg.MustRegister(c.opened, c.finished, c.active, c.rtt, c.tcpRTT, c.bytes, c.messages, c.limited)
	return c
}

// Opened は、コネクションの開始を記録します。
func (c *Collector) Opened(transport string) {
	if c == nil {
		return
	}
	c.opened.WithLabelValues(transport).Inc()
	c.active.WithLabelValues(transport).Inc()
}

// Finished は、コネクションの終端状態を記録します。
func (c *Collector) Finished(transport, state string) {
	if c == nil {
		return
	}
	c.finished.WithLabelValues(transport, state).Inc()
	c.active.WithLabelValues(transport).Dec()
}

// ObserveRTT は、RTT のサンプルを記録します。
func (c *Collector) ObserveRTT(transport string, rtt time.Duration) {
	if c == nil {
		return
	}
	c.rtt.WithLabelValues(transport).Observe(rtt.Seconds())
}

// ObserveKernelRTT は、カーネルが計測したTCPのRTTを記録します。
func (c *Collector) ObserveKernelRTT(transport string, rtt time.Duration) {
	if c == nil {
		return
	}
	c.tcpRTT.WithLabelValues(transport).Observe(rtt.Seconds())
}

// Received は、受信したメッセージを記録します。
func (c *Collector) Received(transport, kind string, size int) {
	c.message(transport, "rx", kind, size)
}

// Sent は、送信したメッセージを記録します。
func (c *Collector) Sent(transport, kind string, size int) {
	c.message(transport, "tx", kind, size)
}

func (c *Collector) message(transport, direction, kind string, size int) {
	if c == nil {
		return
	}
	c.messages.WithLabelValues(transport, direction, kind).Inc()
	c.bytes.WithLabelValues(transport, direction).Add(float64(size))
}

// Limited は、アドミッションゲートによる拒否を記録します。
func (c *Collector) Limited(label string) {
	if c == nil {
		return
	}
	c.limited.WithLabelValues(label).Inc()
}
