package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus instruments for the task engine, turn
// driver, tool dispatcher, and retrieval pipeline, grounded on the
// teacher's internal/observability/metrics.go (one struct of registered
// collectors, one method per event kind) but re-scoped from chat-channel
// metrics to task/turn/tool/retrieval metrics.
type Metrics struct {
	registry *prometheus.Registry

	tasksCreated      *prometheus.CounterVec
	taskTransitions   *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	triggerFires      *prometheus.CounterVec
	toolExecutions    *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec
	llmRequests       *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
	retrievalLatency  *prometheus.HistogramVec
	retrievalResults  *prometheus.HistogramVec
	executorQueueSize prometheus.Gauge
	executorActive    prometheus.Gauge
}

// NewMetrics registers and returns a fresh Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		tasksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscore_tasks_created_total", Help: "Tasks created, by kind.",
		}, []string{"kind"}),
		taskTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscore_task_transitions_total", Help: "Task status transitions.",
		}, []string{"from", "to"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "nexuscore_task_duration_seconds", Help: "Task execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "status"}),
		triggerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscore_trigger_fires_total", Help: "Trigger fires, by trigger kind and outcome.",
		}, []string{"trigger_kind", "outcome"}),
		toolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscore_tool_executions_total", Help: "Tool invocations, by tool and status.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "nexuscore_tool_duration_seconds", Help: "Tool execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscore_llm_requests_total", Help: "LLM requests, by provider/model/status.",
		}, []string{"provider", "model", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscore_llm_tokens_total", Help: "LLM tokens consumed, by provider/model/kind.",
		}, []string{"provider", "model", "kind"}),
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "nexuscore_retrieval_latency_seconds", Help: "Retrieval pipeline stage latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		retrievalResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "nexuscore_retrieval_results", Help: "Number of items returned per retrieval stage.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"stage"}),
		executorQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexuscore_executor_ready_queue_size", Help: "Tasks currently in the ready queue.",
		}),
		executorActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexuscore_executor_active_workers", Help: "Workers currently executing a task.",
		}),
	}
	reg.MustRegister(
		m.tasksCreated, m.taskTransitions, m.taskDuration, m.triggerFires,
		m.toolExecutions, m.toolDuration, m.llmRequests, m.llmTokens,
		m.retrievalLatency, m.retrievalResults, m.executorQueueSize, m.executorActive,
	)
	return m
}

// Registry exposes the underlying Prometheus registry for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) TaskCreated(kind string) { m.tasksCreated.WithLabelValues(kind).Inc() }

func (m *Metrics) TaskTransition(from, to string) {
	m.taskTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordTaskDuration(kind, status string, seconds float64) {
	m.taskDuration.WithLabelValues(kind, status).Observe(seconds)
}

func (m *Metrics) TriggerFired(kind, outcome string) {
	m.triggerFires.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordToolExecution(tool, status string, seconds float64) {
	m.toolExecutions.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(seconds)
}

func (m *Metrics) RecordLLMRequest(provider, model, status string, promptTokens, completionTokens int) {
	m.llmRequests.WithLabelValues(provider, model, status).Inc()
	m.llmTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	m.llmTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

func (m *Metrics) RecordRetrievalStage(stage string, seconds float64, results int) {
	m.retrievalLatency.WithLabelValues(stage).Observe(seconds)
	m.retrievalResults.WithLabelValues(stage).Observe(float64(results))
}

func (m *Metrics) SetExecutorQueueSize(n int)  { m.executorQueueSize.Set(float64(n)) }
func (m *Metrics) SetExecutorActiveWorkers(n int) { m.executorActive.Set(float64(n)) }
