package patch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics инкапсулирует Prometheus-метрики стриминга патчей.
// Все методы nil-безопасны: менеджер без метрик работает так же.
type Metrics struct {
	loads        prometheus.Counter
	unloads      prometheus.Counter
	failures     prometheus.Counter
	queueLen     prometheus.Gauge
	busy         prometheus.Gauge
	resident     prometheus.Gauge
	loadDuration prometheus.Histogram
}

// NewMetrics создаёт и регистрирует метрики в глобальном регистре Prometheus
func NewMetrics() *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patch_stream",
			Name:      "loads_total",
			Help:      "Общее число завершённых загрузок патчей.",
		}),
		unloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patch_stream",
			Name:      "unloads_total",
			Help:      "Общее число завершённых выгрузок патчей.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patch_stream",
			Name:      "failures_total",
			Help:      "Операций, завершившихся ошибкой хранилища.",
		}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patch_stream",
			Name:      "queue_length",
			Help:      "Количество операций в очереди.",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patch_stream",
			Name:      "busy",
			Help:      "1 — операция в полёте, 0 — планировщик свободен.",
		}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patch_stream",
			Name:      "resident_patches",
			Help:      "Количество загруженных патчей.",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "patch_stream",
			Name:      "load_duration_seconds",
			Help:      "Длительность загрузки патча.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
	}

	prometheus.MustRegister(m.loads, m.unloads, m.failures, m.queueLen, m.busy, m.resident, m.loadDuration)
	return m
}

// observe учитывает завершённую операцию
func (m *Metrics) observe(result Result, took time.Duration) {
	if m == nil {
		return
	}
	if result.Err != nil {
		m.failures.Inc()
		return
	}
	switch result.Kind {
	case ActionLoad:
		m.loads.Inc()
		m.loadDuration.Observe(took.Seconds())
	case ActionUnload:
		m.unloads.Inc()
	}
}

// setGauges обновляет мгновенные показатели
func (m *Metrics) setGauges(queueLen int, busy bool, resident int) {
	if m == nil {
		return
	}
	m.queueLen.Set(float64(queueLen))
	if busy {
		m.busy.Set(1)
	} else {
		m.busy.Set(0)
	}
	m.resident.Set(float64(resident))
}
