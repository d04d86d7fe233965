package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (o Outcome) String() string {
	return string(o)
}

var defaultHistogramBucketsSeconds = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5}

var (
	once sync.Once

	residentParticipantsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crash_resident_participants",
		Help: "Participants with a round held in memory",
	})
	stakesPlacedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crash_stakes_placed_total",
		Help: "Accepted stakes by kind",
	}, []string{"kind"})
	stakesRejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crash_stakes_rejected_total",
		Help: "Rejected stake and cash-out requests by error kind",
	}, []string{"operation", "reason"})
	settlementsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crash_settlements_total",
		Help: "Stakes closed in memory by outcome",
	}, []string{"outcome"})
	settleDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crash_settle_duration_seconds",
		Help:    "Durable settlement duration including retries",
		Buckets: defaultHistogramBucketsSeconds,
	}, []string{"status"})
	snapshotErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crash_snapshot_error_count",
		Help: "Round snapshots dropped after retries",
	})
	queueSendErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queue_send_error_count",
		Help: "The total number of errors when sending messages to the queue",
	})
	pollerDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poller_duration_seconds",
		Help:    "Histogram of poller durations in seconds.",
		Buckets: defaultHistogramBucketsSeconds,
	}, []string{"type", "status"})
	houseRTPGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crash_house_rtp_percent",
		Help: "Observed return to player, total and over the recent window",
	}, []string{"scope"})
)

// Init Регистрирует метрики и поднимает сервер /metrics
func Init(metricsPort int) {
	once.Do(func() {
		registerMetrics()
		initMetricsRouter(metricsPort)
	})
}

func initMetricsRouter(metricsPort int) {
	router := chi.NewRouter()
	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      router,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	go func() {
		log.Info().Msgf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

func registerMetrics() {
	prometheus.MustRegister(
		residentParticipantsGauge,
		stakesPlacedCounter,
		stakesRejectedCounter,
		settlementsCounter,
		settleDurationHistogram,
		snapshotErrorCounter,
		queueSendErrorCounter,
		pollerDurationHistogram,
		houseRTPGauge,
	)
}

func RecordResidents(n int) {
	residentParticipantsGauge.Set(float64(n))
}

func IncStakePlaced(kind string) {
	stakesPlacedCounter.WithLabelValues(kind).Inc()
}

func IncRejected(operation, reason string) {
	stakesRejectedCounter.WithLabelValues(operation, reason).Inc()
}

func IncSettlement(outcome string) {
	settlementsCounter.WithLabelValues(outcome).Inc()
}

func RecordSettleDuration(d time.Duration, failure bool) {
	status := Success
	if failure {
		status = Error
	}
	settleDurationHistogram.WithLabelValues(status.String()).Observe(d.Seconds())
}

func IncSnapshotErrors() {
	snapshotErrorCounter.Inc()
}

func RecordQueueSendError() {
	queueSendErrorCounter.Inc()
}

func RecordHouseRTP(total, window float64) {
	houseRTPGauge.WithLabelValues("total").Set(total)
	houseRTPGauge.WithLabelValues("window").Set(window)
}

// pollerFunction alias is private and should be used only here
type pollerFunction = func(ctx context.Context) error

func RecordPollerDuration(typ string, f pollerFunction) pollerFunction {
	return func(ctx context.Context) error {
		startTime := time.Now()
		err := f(ctx)
		duration := time.Since(startTime).Seconds()

		status := Success
		if err != nil {
			status = Error
		}
		pollerDurationHistogram.WithLabelValues(typ, status.String()).Observe(duration)

		return err
	}
}
