package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported by the service.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	jobsSubmitted = factory.NewCounter(prometheus.CounterOpts{
		Name: "foodsafe_jobs_submitted_total",
		Help: "Total analysis jobs accepted by the queue",
	})

	jobsRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "foodsafe_jobs_rejected_total",
		Help: "Total submissions rejected before a job was created",
	}, []string{"reason"})

	jobTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "foodsafe_job_transitions_total",
		Help: "Job status transitions by target status",
	}, []string{"status"})

	jobDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "foodsafe_job_duration_seconds",
		Help:    "Time from processing start to terminal status",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	jobsEvicted = factory.NewCounter(prometheus.CounterOpts{
		Name: "foodsafe_jobs_evicted_total",
		Help: "Terminal jobs evicted by the retention sweep",
	})

	queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Name: "foodsafe_queue_depth",
		Help: "Jobs waiting in the intake buffer",
	})

	routerDecisions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "foodsafe_router_decisions_total",
		Help: "Hybrid router decisions by branch",
	}, []string{"branch"})

	scorerDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodsafe_scorer_duration_seconds",
		Help:    "Scorer call latency by scorer and outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"scorer", "outcome"})

	remoteCache = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "foodsafe_remote_cache_total",
		Help: "Remote verdict cache lookups by result",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncJobSubmitted counts an accepted submission.
func IncJobSubmitted() {
	jobsSubmitted.Inc()
}

// IncJobRejected counts a submission refused before a job existed.
func IncJobRejected(reason string) {
	jobsRejected.WithLabelValues(reason).Inc()
}

// IncJobTransition counts a transition into status.
func IncJobTransition(status string) {
	jobTransitions.WithLabelValues(status).Inc()
}

// ObserveJobDuration records processing time of a finished job.
func ObserveJobDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	jobDuration.Observe(d.Seconds())
}

// AddJobsEvicted counts jobs removed by the retention sweep.
func AddJobsEvicted(n int) {
	if n > 0 {
		jobsEvicted.Add(float64(n))
	}
}

// SetQueueDepth reports the current intake buffer length.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncRouterDecision counts one routing decision.
func IncRouterDecision(branch string) {
	routerDecisions.WithLabelValues(branch).Inc()
}

// ObserveScorer records one scorer call.
func ObserveScorer(scorer, outcome string, d time.Duration) {
	scorerDuration.WithLabelValues(scorer, outcome).Observe(d.Seconds())
}

// IncRemoteCache counts a cache hit or miss.
func IncRemoteCache(result string) {
	remoteCache.WithLabelValues(result).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
