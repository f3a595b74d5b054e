// Package metrics Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bi_reasoning"

var (
	// StepsTotal 已执行步骤数，labels: tool, status(ok, error)
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "steps_total",
		Help:      "Executed analysis steps",
	}, []string{"tool", "status"})

	// StepLatency 单步耗时
	StepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "step_latency_seconds",
		Help:      "Analysis step latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"tool"})

	// InjectedSteps 注入的下钻步骤数
	InjectedSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "injected_steps_total",
		Help:      "Drill-down steps appended by the planner",
	}, []string{"step_id"})

	// Decisions 异常决策，labels: flag
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Anomaly decisions by flag",
	}, []string{"flag"})

	// Runs 运行结果，labels: status(done, step_limit, canceled, error)
	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Finished analysis runs by outcome",
	}, []string{"status"})

	// AgentExtractions 问句解析，labels: source(llm, heuristic), reason
	AgentExtractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "extractions_total",
		Help:      "Question extractions by source and fallback reason",
	}, []string{"source", "reason"})

	// Jobs 队列任务处理结果，labels: queue, result(success, release, bury)
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_total",
		Help:      "Queue jobs by processing result",
	}, []string{"queue", "result"})

	// Callbacks 回调消费结果，labels: status(SUCCESS, FAILED), result(ok, invalid, error)
	Callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "callbacks_total",
		Help:      "Consumed run callbacks",
	}, []string{"status", "result"})

	// HTTPRequests HTTP 请求，labels: method, route, code
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})
)
