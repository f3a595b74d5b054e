package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess/datatest"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
	"github.com/zhangzihaoDT/BI-reasoning/internal/tools"
)

func newEngine(dc *dataaccess.DataContext, cfg engine.Config) *engine.Engine {
	return engine.New(tools.NewDefaultRouter(dc, tools.Options{AnomalyStepIDs: cfg.AnomalyStepIDs}, nil), cfg, nil)
}

func anomalyStep(id, metric, series string) dsl.Step {
	p := dsl.Params{"metric": metric, "date_range": "last_30_days"}
	if series != "" {
		p["filters"] = []interface{}{map[string]interface{}{"field": "series", "op": "=", "value": series}}
	}
	return dsl.Step{ID: id, Tool: "trend", Parameters: p}
}

func TestNewStateValidation(t *testing.T) {
	_, err := engine.NewState([]dsl.Step{{ID: "a", Tool: "query"}, {ID: "a", Tool: "trend"}})
	assert.Error(t, err)

	_, err = engine.NewState([]dsl.Step{{ID: "", Tool: "query"}})
	assert.Error(t, err)

	s, err := engine.NewState([]dsl.Step{{ID: "a", Tool: "query"}})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, 0, s.Cursor())
	assert.False(t, s.Done())
}

func TestStateInjectIdempotent(t *testing.T) {
	s, err := engine.NewState([]dsl.Step{{ID: "anomaly_check", Tool: "trend"}})
	require.NoError(t, err)

	plan := signals.Plan(signals.Decision{Flag: signals.FlagStructural, AnomalyDetected: true}, signals.PlanInput{
		Metric: "锁单量", DateRange: "yesterday", Dimensions: []string{"series_group"},
	})
	added := s.Inject(plan...)
	assert.Equal(t, []string{signals.StepAdditiveDecomposition, signals.StepRatioAnalysis, signals.StepDrilldownLocate}, added)
	assert.Empty(t, s.Inject(plan...))
	assert.Empty(t, s.Inject(dsl.Step{ID: "anomaly_check", Tool: "query"}))
	assert.Len(t, s.Sequence(), 4)
	assert.Equal(t, added, s.Injected())
}

func TestRunPlainSequence(t *testing.T) {
	e := newEngine(datatest.StandardContext(), engine.DefaultConfig())
	state, err := engine.NewState([]dsl.Step{
		{ID: "baseline", Tool: "query", Parameters: dsl.Params{"metric": "锁单量", "date_range": "yesterday"}},
		{ID: "by_region", Tool: "rollup", Parameters: dsl.Params{"metric": "锁单量", "date_range": "yesterday", "dimension": "parent_region_name"}},
	})
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, report.Steps, 2)
	assert.Nil(t, report.Decision)
	assert.Empty(t, report.Injected)
	assert.True(t, state.Done())
	assert.Equal(t, 2, state.Cursor())

	res, ok := state.Result("baseline")
	require.True(t, ok)
	assert.Equal(t, 45.0, res.(*tools.QueryResult).Value)
}

func TestRunAnomalyInjectsDrilldown(t *testing.T) {
	e := newEngine(datatest.StandardContext(), engine.DefaultConfig())
	state, err := engine.NewState([]dsl.Step{anomalyStep("anomaly_check", "锁单量", "LS9")})
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, report.Decision)
	assert.Equal(t, signals.FlagVolatile, report.Decision.Flag)
	assert.True(t, report.Anomalous())
	assert.Equal(t, []string{signals.StepAdditiveDecomposition, signals.StepRatioAnalysis, signals.StepDrilldownLocate}, report.Injected)
	require.Len(t, report.Steps, 4)
	assert.Equal(t, "additive", report.Steps[1].Tool)
	assert.True(t, report.Steps[1].Injected)
	assert.NotEmpty(t, report.Steps[1].Reasoning)

	var decision *signals.Signal
	for i := range report.Signals {
		if report.Signals[i].Type == signals.TypeAnomalyDecision {
			decision = &report.Signals[i]
		}
	}
	require.NotNil(t, decision)
	assert.Equal(t, "anomaly_check", decision.StepID)
	assert.Equal(t, signals.StatusAbnormal, decision.Status)
	assert.Equal(t, engine.DefaultConfig().CoreMetrics, decision.CoreMetrics)

	drill, ok := state.Result(signals.StepDrilldownLocate)
	require.True(t, ok)
	rows := drill.(*tools.RollupResult).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "LS9", rows[0].Dimension)
}

func TestRunRepeatedAnomalyInjectsOnce(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.AnomalyStepIDs = []string{"anomaly_check", "anomaly_recheck"}
	e := newEngine(datatest.StandardContext(), cfg)

	state, err := engine.NewState([]dsl.Step{
		anomalyStep("anomaly_check", "锁单量", "LS9"),
		anomalyStep("anomaly_recheck", "锁单量", "LS9"),
	})
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, report.Steps, 5)
	assert.Len(t, report.Injected, 3)

	ids := make(map[string]int)
	for _, s := range state.Sequence() {
		ids[s.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, id)
	}
}

func TestRunNormalDecisionNoInjection(t *testing.T) {
	e := newEngine(datatest.StandardContext(), engine.DefaultConfig())
	state, err := engine.NewState([]dsl.Step{anomalyStep("anomaly_check", "锁单量", "CM2")})
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, report.Decision)
	assert.Equal(t, signals.FlagNormal, report.Decision.Flag)
	assert.Empty(t, report.Injected)
	assert.Len(t, report.Steps, 1)
}

func TestRunRatioPseudoAnomaly(t *testing.T) {
	var assign []datatest.AssignRow
	for back := 30; back >= 1; back-- {
		leads := 100.0
		if back == 1 {
			leads = 200
		}
		assign = append(assign, datatest.AssignRow{Date: datatest.Day(back), Region: "华东", Leads: leads, Lock7d: 10, TestDrive: 20})
	}
	dc := datatest.NewContext(&dataaccess.Dataset{
		Orders:     datatest.Orders(datatest.StandardOrders()...),
		Assign:     datatest.Assign(assign...),
		Definition: datatest.Definition(),
	})
	e := newEngine(dc, engine.DefaultConfig())
	state, err := engine.NewState([]dsl.Step{anomalyStep("anomaly_check", "assign_rate_7d_lock", "")})
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, report.Decision)
	assert.Equal(t, signals.FlagRatioPseudo, report.Decision.Flag)
	assert.Equal(t, []string{signals.StepTotalVolumeCheck}, report.Injected)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, "trend", report.Steps[1].Tool)
}

func TestRunStepLimit(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.MaxSteps = 2
	e := newEngine(datatest.StandardContext(), cfg)

	steps := make([]dsl.Step, 3)
	for i := range steps {
		steps[i] = dsl.Step{ID: string(rune('a' + i)), Tool: "query", Parameters: dsl.Params{"metric": "锁单量", "date_range": "yesterday"}}
	}
	state, err := engine.NewState(steps)
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	assert.ErrorIs(t, err, engine.ErrStepLimit)
	assert.Len(t, report.Steps, 2)
	assert.Equal(t, 1, report.Pending)
}

func TestRunUnknownToolIsFatal(t *testing.T) {
	e := newEngine(datatest.StandardContext(), engine.DefaultConfig())
	state, err := engine.NewState([]dsl.Step{
		{ID: "x", Tool: "forecast"},
		{ID: "y", Tool: "query", Parameters: dsl.Params{"metric": "锁单量"}},
	})
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	assert.True(t, errors.Is(err, tools.ErrNoTool))
	assert.Equal(t, 1, state.Cursor())
	assert.Equal(t, 1, state.Pending())
	require.Len(t, report.Signals, 1)
	assert.Equal(t, signals.TypeError, report.Signals[0].Type)
	assert.Equal(t, "x", report.Signals[0].StepID)
}

func TestRunCanceled(t *testing.T) {
	e := newEngine(datatest.StandardContext(), engine.DefaultConfig())
	state, err := engine.NewState([]dsl.Step{{ID: "a", Tool: "query"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, state)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, state.Pending())
}

func TestStepOnEmptyQueue(t *testing.T) {
	e := newEngine(datatest.StandardContext(), engine.DefaultConfig())
	state, err := engine.NewState(nil)
	require.NoError(t, err)

	ran, err := e.Step(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, ran)
}
