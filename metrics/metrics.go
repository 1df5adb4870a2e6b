package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 汇总机器人各环节的指标，每个实例使用独立的 registry。
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	// 注册局查询结果：success / failed / malformed / cancelled
	Lookups        *prometheus.CounterVec
	LookupDuration prometheus.Histogram

	// 聊天命令，按命令名和结果计数
	Commands *prometheus.CounterVec

	// 推送结果：sent / skipped / failed
	Notifications *prometheus.CounterVec

	// 最近一次定时任务统计的即将到期域名数
	ExpiringDomains prometheus.Gauge
	LastRun         prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_lookups_total",
			Help: "Registry lookups by outcome.",
		}, []string{"outcome"}),
		LookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "domainwatch_lookup_duration_seconds",
			Help:    "Duration of a single registry lookup.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_commands_total",
			Help: "Chat commands handled by command and result.",
		}, []string{"command", "result"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_notifications_total",
			Help: "Expiry digests by outcome.",
		}, []string{"outcome"}),
		ExpiringDomains: f.NewGauge(prometheus.GaugeOpts{
			Name: "domainwatch_expiring_domains",
			Help: "Domains inside the alert window at the last scheduled run.",
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "domainwatch_last_run_timestamp_seconds",
			Help: "Unix time of the last scheduled refresh.",
		}),
	}
}

// Handler 暴露 /metrics。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveLookup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(outcome).Inc()
	m.LookupDuration.Observe(d.Seconds())
}

func (m *Metrics) IncCommand(command, result string) {
	if m != nil {
		m.Commands.WithLabelValues(command, result).Inc()
	}
}

func (m *Metrics) IncNotification(outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RecordRun(expiring int, at time.Time) {
	if m == nil {
		return
	}
	m.ExpiringDomains.Set(float64(expiring))
	m.LastRun.Set(float64(at.Unix()))
}
