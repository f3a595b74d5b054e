package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/metrics"
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
	"github.com/zhangzihaoDT/BI-reasoning/internal/tools"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// ErrStepLimit 执行步数超过上限
var ErrStepLimit = errors.New("step limit exceeded")

// Config 引擎参数
type Config struct {
	MaxSteps            int
	AnomalyStepIDs      []string
	Thresholds          signals.Thresholds
	DrilldownDimensions []string
	CoreMetrics         []string
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		MaxSteps:            64,
		AnomalyStepIDs:      []string{"anomaly_check"},
		Thresholds:          signals.DefaultThresholds(),
		DrilldownDimensions: []string{dataaccess.ColSeriesGroup, dataaccess.ColParentRegion, dataaccess.ColStoreCity, dataaccess.ColChannel},
		CoreMetrics:         []string{"lock_rate", "delivery_rate"},
	}
}

// ConfigFromAnalysis 由配置文件的 analysis 段构造引擎参数
func ConfigFromAnalysis(a config.AnalysisConfig) Config {
	c := DefaultConfig()
	if a.MaxSteps > 0 {
		c.MaxSteps = a.MaxSteps
	}
	if len(a.AnomalyStepIDs) > 0 {
		c.AnomalyStepIDs = a.AnomalyStepIDs
	}
	if a.CVThreshold > 0 {
		c.Thresholds.CV = a.CVThreshold
	}
	if a.RatioThreshold > 0 {
		c.Thresholds.Ratio = a.RatioThreshold
	}
	if a.ScaleThreshold > 0 {
		c.Thresholds.Scale = a.ScaleThreshold
	}
	c.Thresholds.ZMid = a.ZMid
	c.Thresholds.MinDenominator = a.MinDenominator
	if len(a.DrilldownDimensions) > 0 {
		c.DrilldownDimensions = a.DrilldownDimensions
	}
	if len(a.CoreMetrics) > 0 {
		c.CoreMetrics = a.CoreMetrics
	}
	return c
}

// ToolOptions 与引擎参数一致的工具参数
func ToolOptions(a config.AnalysisConfig) tools.Options {
	return tools.Options{
		AnomalyStepIDs:        a.AnomalyStepIDs,
		HistogramBins:         a.HistogramBins,
		DistributionThreshold: a.DistributionThreshold,
		HistogramThreshold:    a.HistogramThreshold,
		TopLimit:              a.TopLimit,
	}
}

// Engine 执行引擎
type Engine struct {
	router *tools.Router
	cfg    Config
	log    logger.Logger
}

// New 创建引擎
func New(router *tools.Router, cfg Config, log logger.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if len(cfg.AnomalyStepIDs) == 0 {
		cfg.AnomalyStepIDs = def.AnomalyStepIDs
	}
	if cfg.Thresholds.CV <= 0 {
		cfg.Thresholds.CV = def.Thresholds.CV
	}
	if cfg.Thresholds.Ratio <= 0 {
		cfg.Thresholds.Ratio = def.Thresholds.Ratio
	}
	if cfg.Thresholds.Scale <= 0 {
		cfg.Thresholds.Scale = def.Thresholds.Scale
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{router: router, cfg: cfg, log: log}
}

// Step 执行一个步骤；队列为空时返回 false
func (e *Engine) Step(ctx context.Context, state *State) (bool, error) {
	step, ok := state.next()
	if !ok {
		return false, nil
	}
	ctx = logger.WithStepID(ctx, step.ID)

	start := time.Now()
	res, err := e.router.Dispatch(ctx, step)
	metrics.StepLatency.WithLabelValues(step.Tool).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StepsTotal.WithLabelValues(step.Tool, "error").Inc()
		sig := signals.Failed(step.Parameters.String("metric"), "%v", err)
		sig.StepID = step.ID
		state.emit(sig)
		return true, fmt.Errorf("step %s (%s): %w", step.ID, step.Tool, err)
	}
	metrics.StepsTotal.WithLabelValues(step.Tool, "ok").Inc()
	state.record(step.ID, res)
	e.log.Infof(ctx, "[Engine] step %s (%s) done, signals=%d, cost=%v",
		step.ID, step.Tool, len(res.Meta().Signals), time.Since(start))

	if e.isAnomalyStep(step.ID) {
		e.decide(ctx, state, step, res)
	}
	return true, nil
}

// Run 执行至队列清空；超过 MaxSteps 返回 ErrStepLimit
func (e *Engine) Run(ctx context.Context, state *State) (*Report, error) {
	executed := 0
	for !state.Done() {
		if err := ctx.Err(); err != nil {
			metrics.Runs.WithLabelValues("canceled").Inc()
			return NewReport(state), err
		}
		if executed >= e.cfg.MaxSteps {
			metrics.Runs.WithLabelValues("step_limit").Inc()
			e.log.Warnf(ctx, "[Engine] step limit %d reached, pending=%d", e.cfg.MaxSteps, state.Pending())
			return NewReport(state), fmt.Errorf("%w: %d", ErrStepLimit, e.cfg.MaxSteps)
		}
		if _, err := e.Step(ctx, state); err != nil {
			metrics.Runs.WithLabelValues("error").Inc()
			e.log.Errorf(ctx, "[Engine] run aborted: %v", err)
			return NewReport(state), err
		}
		executed++
	}
	metrics.Runs.WithLabelValues("done").Inc()
	return NewReport(state), nil
}

func (e *Engine) isAnomalyStep(id string) bool {
	for _, s := range e.cfg.AnomalyStepIDs {
		if s == id {
			return true
		}
	}
	return false
}

// decide 对异常检测结果分类，记录决策信号并按需注入下钻步骤
func (e *Engine) decide(ctx context.Context, state *State, step dsl.Step, res tools.Result) {
	d := signals.Normal()
	if st, ok := res.(*tools.AnomalyStatsResult); ok {
		d = signals.Evaluate(st.Stats, e.cfg.Thresholds)
	} else {
		e.log.Warnf(ctx, "[Engine] step %s returned %s, expected anomaly_stats", step.ID, res.Meta().Kind)
	}
	metrics.Decisions.WithLabelValues(d.Flag).Inc()

	in := e.planInput(step)
	sig := signals.FromDecision(d, in)
	sig.StepID = step.ID
	state.emit(sig)
	state.decision = &d
	e.log.Infof(ctx, "[Engine] decision for %s: flag=%s z=%.2f cv=%.3f", in.Metric, d.Flag, d.Z, d.CV)

	if !d.NeedsFollowUp() {
		return
	}
	added := state.Inject(signals.Plan(d, in)...)
	for _, id := range added {
		metrics.InjectedSteps.WithLabelValues(id).Inc()
	}
	if len(added) > 0 {
		e.log.Infof(ctx, "[Engine] injected steps %v", added)
	}
}

func (e *Engine) planInput(step dsl.Step) signals.PlanInput {
	p := step.Parameters
	in := signals.PlanInput{
		Metric:      p.String("metric"),
		DateRange:   p.String("date_range"),
		Dimensions:  p.StringSlice("dimensions"),
		CoreMetrics: p.StringSlice("core_metrics"),
	}
	if in.Metric == "" {
		in.Metric = p.String("total_metric")
	}
	if len(in.Dimensions) == 0 {
		in.Dimensions = append([]string(nil), e.cfg.DrilldownDimensions...)
	}
	if len(in.CoreMetrics) == 0 {
		in.CoreMetrics = append([]string(nil), e.cfg.CoreMetrics...)
	}
	if filters, err := p.Filters(); err == nil {
		in.Filters = filters
	}
	return in
}
