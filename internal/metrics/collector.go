// internal/metrics/collector.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/events"
)

const namespace = "launchguard"

// MetricType представляет тип метрики
type MetricType string

const (
	LaunchCounterType       MetricType = "launch_counter"
	TradeCounterType        MetricType = "trade_counter"
	BotPurchaseCounterType  MetricType = "bot_purchase_counter"
	RejectionCounterType    MetricType = "rejection_counter"
	CapturedValueType       MetricType = "captured_value"
	CounterTradedTokensType MetricType = "counter_traded_tokens"
	CounterTradeSizeType    MetricType = "counter_trade_size"
	AMMCallDurationType     MetricType = "amm_call_duration"
)

// Collector держит метрики движка в собственном реестре.
type Collector struct {
	metrics  sync.Map
	registry *prometheus.Registry
}

// NewCollector создает коллектор и регистрирует метрики.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		// Vec без меток, чтобы Reset обнулял и его.
		LaunchCounterType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Launches initialized",
		}, nil),
		TradeCounterType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Regular trades executed",
		}, []string{"side"}),
		BotPurchaseCounterType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_purchases_total",
			Help:      "Purchases neutralized during the monitoring window",
		}, []string{"mint"}),
		RejectionCounterType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_rejected_total",
			Help:      "Rejected trade requests",
		}, []string{"side", "reason"}),
		CapturedValueType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "captured_value",
			Help:      "Total value captured from flagged purchases",
		}, []string{"mint"}),
		CounterTradedTokensType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_traded_tokens_total",
			Help:      "Tokens sold back from the reserve",
		}, []string{"mint"}),
		CounterTradeSizeType: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "counter_trade_tokens",
			Help:      "Size of individual counter-trades in tokens",
			Buckets:   prometheus.ExponentialBuckets(1e6, 10, 8),
		}, []string{"mint"}),
		AMMCallDurationType: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "amm_call_duration_seconds",
			Help:      "External AMM call latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"op", "status"}),
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Reset сбрасывает все метрики. Все метрики коллектора - Vec.
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

func (c *Collector) counterVec(t MetricType) *prometheus.CounterVec {
	if m, ok := c.metrics.Load(t); ok {
		if v, ok := m.(*prometheus.CounterVec); ok {
			return v
		}
	}
	return nil
}

// Handle implements events.Handler.
func (c *Collector) Handle(_ context.Context, event events.Event) error {
	switch ev := event.(type) {
	case events.ProgramInitializedEvent:
		if v := c.counterVec(LaunchCounterType); v != nil {
			v.WithLabelValues().Inc()
		}
	case events.TradeExecutedEvent:
		side := "sell"
		if ev.IsBuy {
			side = "buy"
		}
		if v := c.counterVec(TradeCounterType); v != nil {
			v.WithLabelValues(side).Inc()
		}
	case events.BotPurchaseHandledEvent:
		mint := ev.Mint.String()
		if v := c.counterVec(BotPurchaseCounterType); v != nil {
			v.WithLabelValues(mint).Inc()
		}
		if v := c.counterVec(CounterTradedTokensType); v != nil {
			v.WithLabelValues(mint).Add(float64(ev.TokensSold))
		}
		if m, ok := c.metrics.Load(CapturedValueType); ok {
			m.(*prometheus.GaugeVec).WithLabelValues(mint).Set(float64(ev.CapturedTotal))
		}
		if m, ok := c.metrics.Load(CounterTradeSizeType); ok {
			m.(*prometheus.HistogramVec).WithLabelValues(mint).Observe(float64(ev.TokensSold))
		}
	case events.TradeRejectedEvent:
		if v := c.counterVec(RejectionCounterType); v != nil {
			v.WithLabelValues(ev.Side, ev.Reason).Inc()
		}
	}
	return nil
}

// Attach subscribes the collector to every launch event on bus.
func (c *Collector) Attach(bus *events.Bus) []events.Subscription {
	return bus.SubscribeAll(c)
}

// RecordAMMCall записывает длительность внешнего вызова.
func (c *Collector) RecordAMMCall(op string, duration time.Duration, err error) {
	m, ok := c.metrics.Load(AMMCallDurationType)
	if !ok {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.(*prometheus.HistogramVec).WithLabelValues(op, status).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
