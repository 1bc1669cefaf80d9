package xmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omeyang/ordkit/pkg/channel/xpush"
	"github.com/omeyang/ordkit/pkg/resilience/xexec"
	"github.com/omeyang/ordkit/pkg/storage/xregion"
)

// CacheRecorder 把缓存区域事件导出为 Prometheus 指标，按区域打标签。
// 并发安全：Prometheus 的指标类型本身即是协程安全的。
type CacheRecorder struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	evicts *prometheus.CounterVec
	size   *prometheus.GaugeVec
}

var _ xregion.Recorder = (*CacheRecorder)(nil)

// NewCacheRecorder 创建并注册缓存指标。reg 为 nil 时使用缺省注册器。
func NewCacheRecorder(reg prometheus.Registerer, namespace string) *CacheRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &CacheRecorder{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits by region",
		}, []string{"region"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses by region",
		}, []string{"region"}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Capacity evictions by region",
		}, []string{"region"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "size_entries",
			Help:      "Resident entries by region",
		}, []string{"region"}),
	}
	reg.MustRegister(r.hits, r.misses, r.evicts, r.size)
	return r
}

func (r *CacheRecorder) Hit(region string)  { r.hits.WithLabelValues(region).Inc() }
func (r *CacheRecorder) Miss(region string) { r.misses.WithLabelValues(region).Inc() }

func (r *CacheRecorder) Evict(region string) { r.evicts.WithLabelValues(region).Inc() }

func (r *CacheRecorder) Size(region string, n int) {
	r.size.WithLabelValues(region).Set(float64(n))
}

// ChannelRecorder 把推送通道事件导出为 Prometheus 指标。
type ChannelRecorder struct {
	connected  prometheus.Gauge
	reconnects prometheus.Counter
	received   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

var _ xpush.Recorder = (*ChannelRecorder)(nil)

// NewChannelRecorder 创建并注册通道指标。reg 为 nil 时使用缺省注册器。
func NewChannelRecorder(reg prometheus.Registerer, namespace string) *ChannelRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &ChannelRecorder{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "connected",
			Help:      "Whether the push channel is connected (0 or 1)",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "reconnects_total",
			Help:      "Scheduled reconnect attempts",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "messages_received_total",
			Help:      "Push messages received by kind",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "messages_dropped_total",
			Help:      "Push messages dropped by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(r.connected, r.reconnects, r.received, r.dropped)
	return r
}

func (r *ChannelRecorder) Connected()    { r.connected.Set(1) }
func (r *ChannelRecorder) Disconnected() { r.connected.Set(0) }

func (r *ChannelRecorder) ReconnectScheduled() { r.reconnects.Inc() }

func (r *ChannelRecorder) MessageReceived(kind string) {
	r.received.WithLabelValues(kind).Inc()
}

func (r *ChannelRecorder) MessageDropped(reason string) {
	r.dropped.WithLabelValues(reason).Inc()
}

// ExecutorCollector 在抓取时读取执行器统计快照的自定义采集器。
// 执行器没有事件回调，统计以拉取方式导出。
type ExecutorCollector struct {
	executor *xexec.Executor

	inWindow   *prometheus.Desc
	queueLen   *prometheus.Desc
	dispatched *prometheus.Desc
	queued     *prometheus.Desc
}

var _ prometheus.Collector = (*ExecutorCollector)(nil)

// NewExecutorCollector 创建并注册执行器采集器。reg 为 nil 时使用缺省注册器。
func NewExecutorCollector(reg prometheus.Registerer, namespace string, e *xexec.Executor) *ExecutorCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	fqName := func(name string) string {
		return prometheus.BuildFQName(namespace, "executor", name)
	}
	c := &ExecutorCollector{
		executor:   e,
		inWindow:   prometheus.NewDesc(fqName("window_in_flight"), "Calls dispatched in the current rate window", nil, nil),
		queueLen:   prometheus.NewDesc(fqName("queue_length"), "Calls waiting for a rate window slot", nil, nil),
		dispatched: prometheus.NewDesc(fqName("dispatched_total"), "Total dispatched calls", nil, nil),
		queued:     prometheus.NewDesc(fqName("queued_total"), "Total calls that entered the wait queue", nil, nil),
	}
	reg.MustRegister(c)
	return c
}

func (c *ExecutorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inWindow
	ch <- c.queueLen
	ch <- c.dispatched
	ch <- c.queued
}

func (c *ExecutorCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.executor.Stats()
	ch <- prometheus.MustNewConstMetric(c.inWindow, prometheus.GaugeValue, float64(stats.InWindow))
	ch <- prometheus.MustNewConstMetric(c.queueLen, prometheus.GaugeValue, float64(stats.QueueLen))
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(stats.Dispatched))
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.CounterValue, float64(stats.Queued))
}
