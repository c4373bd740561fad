package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// ============ Латентность ============

// TickProcessingLatency - время обработки ценового тика воркером
var TickProcessingLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "tick_processing_latency_ms",
		Help:      "Time to process a price tick in milliseconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"symbol"},
)

// OrderSubmitLatency - время отправки ордера на биржу
var OrderSubmitLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "order_submit_latency_ms",
		Help:      "Time to submit an order to the exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"side", "type"},
)

// ============ Счётчики событий ============

// TicksProcessed - обработанные ценовые тики
var TicksProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "ticks_processed_total",
		Help:      "Total number of processed price ticks",
	},
	[]string{"symbol"},
)

// TicksDropped - тики, отброшенные при переполнении буфера воркера
var TicksDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "ticks_dropped_total",
		Help:      "Total number of price ticks dropped due to full worker buffers",
	},
	[]string{"symbol"},
)

// ExecutionReports - обработанные отчёты исполнения
var ExecutionReports = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "execution_reports_total",
		Help:      "Total number of processed execution reports",
	},
	[]string{"status"},
)

// OrdersSubmitted - отправленные ордера
var OrdersSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "orders_submitted_total",
		Help:      "Total number of submitted orders",
	},
	[]string{"symbol", "side", "is_entry"},
)

// OrdersRejected - отклонённые биржей ордера
var OrdersRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "orders_rejected_total",
		Help:      "Total number of rejected orders",
	},
	[]string{"symbol"},
)

// StaleOrdersCancelled - отменённые по таймауту зависшие ордера
var StaleOrdersCancelled = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "stale_orders_cancelled_total",
		Help:      "Total number of orders cancelled by the stale-order policy",
	},
)

// RiskRejections - отказы риск-гейта по типам проверок
var RiskRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "rejections_total",
		Help:      "Total number of entries rejected by the risk gate",
	},
	[]string{"check"},
)

// ReconciliationRuns - прогоны сверки с биржей
var ReconciliationRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "reconciliation_runs_total",
		Help:      "Total number of reconciliation passes",
	},
	[]string{"result"},
)

// ============ Gauges состояния ============

// OpenPositionsGauge - текущее число открытых позиций
var OpenPositionsGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// ActiveOrdersGauge - текущее число активных ордеров
var ActiveOrdersGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "active_orders",
		Help:      "Current number of in-flight orders",
	},
)

// CircuitStateGauge - состояние circuit breaker'а
// (0 = closed, 1 = open, 2 = half-open)
var CircuitStateGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
	},
)

// TotalExposureGauge - суммарный номинал открытых позиций
var TotalExposureGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "total_exposure_usdt",
		Help:      "Current total notional exposure in USDT",
	},
)

// DailyPnlGauge - реализованный PnL за текущие сутки
var DailyPnlGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "engine",
		Name:      "daily_realized_pnl_usdt",
		Help:      "Realized PnL for the current UTC day in USDT",
	},
)
