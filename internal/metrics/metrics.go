package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/customobjects/internal/logging"
)

// Источники загрузки структуры
const (
	SourceCache = "cache"
	SourceText  = "text"
)

// Результаты выбора ветки
const (
	ResultSelected = "selected"
	ResultNone     = "none"
	ResultMissing  = "missing"
)

// Collector инкапсулирует Prometheus-метрики библиотеки структур и генератора.
// Каждый Collector регистрирует метрики в собственном регистре.
type Collector struct {
	registry *prometheus.Registry

	structuresLoaded *prometheus.CounterVec
	decodeFailures   prometheus.Counter
	parseErrors      prometheus.Counter
	branchEvaluated  *prometheus.CounterVec
	blocksPlaced     prometheus.Counter
	expansions       prometheus.Counter
}

// NewCollector создаёт экспортер, но не запускает HTTP-сервер.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		structuresLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "customobjects",
			Name:      "structures_loaded_total",
			Help:      "Загруженные структуры по источнику (cache, text).",
		}, []string{"source"}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "customobjects",
			Name:      "cache_decode_failures_total",
			Help:      "Записи бинарного кеша, отброшенные из-за ошибки декодирования.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "customobjects",
			Name:      "parse_errors_total",
			Help:      "Пропущенные строки текстовых определений.",
		}),
		branchEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "customobjects",
			Name:      "branch_evaluations_total",
			Help:      "Вычисления точек ветвления по результату.",
		}, []string{"result"}),
		blocksPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "customobjects",
			Name:      "blocks_placed_total",
			Help:      "Блоки, записанные в мир.",
		}),
		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "customobjects",
			Name:      "expansions_total",
			Help:      "Завершённые раскрытия дерева структур.",
		}),
	}

	c.registry.MustRegister(
		c.structuresLoaded,
		c.decodeFailures,
		c.parseErrors,
		c.branchEvaluated,
		c.blocksPlaced,
		c.expansions,
	)
	return c
}

// Все методы допускают nil-получатель: метрики тогда не пишутся.

func (c *Collector) StructureLoaded(source string) {
	if c == nil {
		return
	}
	c.structuresLoaded.WithLabelValues(source).Inc()
}

func (c *Collector) DecodeFailure() {
	if c == nil {
		return
	}
	c.decodeFailures.Inc()
}

func (c *Collector) ParseErrors(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.parseErrors.Add(float64(n))
}

func (c *Collector) BranchEvaluated(result string) {
	if c == nil {
		return
	}
	c.branchEvaluated.WithLabelValues(result).Inc()
}

func (c *Collector) BlocksPlaced(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.blocksPlaced.Add(float64(n))
}

func (c *Collector) ExpansionDone() {
	if c == nil {
		return
	}
	c.expansions.Inc()
}

// Registry возвращает регистр метрик
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler возвращает HTTP-обработчик /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: HTTP-сервер стартует в отдельной горутине.
func (c *Collector) StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
