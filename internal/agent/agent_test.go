package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangzihaoDT/BI-reasoning/internal/agent"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess/datatest"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
	"github.com/zhangzihaoDT/BI-reasoning/internal/tools"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func definition() *dataaccess.BusinessDefinition {
	def := datatest.Definition()
	def.SeriesGroupLogic = map[string]json.RawMessage{
		"CM2": json.RawMessage(`"新一代 LS6"`),
		"LS9": json.RawMessage(`"LS9"`),
	}
	return def
}

func f(field, op string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"field": field, "op": op, "value": value}
}

func TestHeuristicExtract(t *testing.T) {
	h := agent.NewHeuristic(definition())

	tests := []struct {
		question string
		tool     string
		params   dsl.Params
	}{
		{
			question: "昨日锁单数",
			tool:     "query",
			params:   dsl.Params{"metric": "锁单量", "date_range": "yesterday"},
		},
		{
			question: "LS9 2025年12月交付数 按城市",
			tool:     "rollup",
			params: dsl.Params{
				"metric": "交付数", "date_range": "2025-12", "dimension": "store_city",
				"filters": []interface{}{f("series", "in", []interface{}{"LS9"})},
			},
		},
		{
			question: "LS6,LS9 2025年12月分别锁单多少",
			tool:     "query",
			params: dsl.Params{
				"metric": "锁单量", "date_range": "2025-12",
				"filters": []interface{}{f("series", "in", []interface{}{"LS6", "LS9"})},
			},
		},
		{
			question: "2025年12月1日 女性 增程 开票金额",
			tool:     "query",
			params: dsl.Params{
				"metric": "开票金额", "date_range": "2025-12-01",
				"filters": []interface{}{f("gender", "=", "女"), f("product_type", "=", "增程")},
			},
		},
		{
			question: "近7天男女小订数 按性别",
			tool:     "rollup",
			params:   dsl.Params{"metric": "小订数", "date_range": "last_7_days", "dimension": "gender"},
		},
		{
			question: "CM2 车型分组 纯电 开票量",
			tool:     "query",
			params: dsl.Params{
				"metric": "开票量", "date_range": "yesterday",
				"filters": []interface{}{f("series_group", "=", "CM2"), f("product_type", "=", "纯电")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			ext := h.Extract(tt.question)
			assert.Equal(t, tt.tool, ext.Tool)
			assert.Equal(t, tt.params, ext.Parameters)
		})
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, agent.StripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, agent.StripFence("here:\n```\n{\"a\":1}\n```\nbye"))
	assert.Equal(t, `{"a":1}`, agent.StripFence(`  {"a":1} `))
}

func TestQueryAgentLLMAndFallback(t *testing.T) {
	today := func() time.Time { return time.Date(2025, 12, 15, 0, 0, 0, 0, datatest.Location) }
	question := "LS9 昨日锁单量"

	t.Run("llm ok", func(t *testing.T) {
		fc := &fakeCompleter{reply: "```json\n{\"tool\":\"rollup\",\"parameters\":{\"metric\":\"锁单量\",\"date_range\":\"yesterday\",\"dimension\":\"store_city\"}}\n```"}
		a := agent.NewQueryAgent(fc, definition(), today, nil)
		step, source := a.Step(context.Background(), question)
		assert.Equal(t, agent.SourceLLM, source)
		assert.Equal(t, agent.QueryStepID, step.ID)
		assert.Equal(t, "rollup", step.Tool)
		assert.Equal(t, "store_city", step.Parameters.String("dimension"))
		assert.Equal(t, 1, fc.calls)
	})

	fallbacks := map[string]*fakeCompleter{
		"transport error":  {err: errors.New("connection refused")},
		"invalid json":     {reply: "抱歉，我无法回答"},
		"unsupported tool": {reply: `{"tool":"drop_table","parameters":{}}`},
	}
	for name, fc := range fallbacks {
		t.Run(name, func(t *testing.T) {
			a := agent.NewQueryAgent(fc, definition(), today, nil)
			ext, source := a.Extract(context.Background(), question)
			assert.Equal(t, agent.SourceHeuristic, source)
			assert.Equal(t, "query", ext.Tool)
			assert.Equal(t, "锁单量", ext.Parameters.String("metric"))
		})
	}

	t.Run("no completer", func(t *testing.T) {
		a := agent.NewQueryAgent(nil, definition(), today, nil)
		_, source := a.Extract(context.Background(), question)
		assert.Equal(t, agent.SourceHeuristic, source)
	})
}

func TestPresets(t *testing.T) {
	_, err := agent.Preset("deep_dive", agent.PresetInput{})
	assert.Error(t, err)

	steps, err := agent.Preset(agent.PresetBreadthScan, agent.PresetInput{})
	require.NoError(t, err)
	require.Len(t, steps, 7)
	assert.Equal(t, "anomaly_check", steps[3].ID)
	assert.Equal(t, "series_group", steps[6].Parameters.String("dimension"))

	steps = agent.RateScan(agent.PresetInput{Filters: []interface{}{f("parent_region_name", "=", "华东")}})
	require.Len(t, steps, 4)
	for _, s := range steps {
		assert.True(t, s.Parameters.Has("filters"), s.ID)
	}
}

func TestBreadthScanRunsThroughEngine(t *testing.T) {
	dc := datatest.StandardContext()
	e := engine.New(tools.NewDefaultRouter(dc, tools.DefaultOptions(), nil), engine.DefaultConfig(), nil)

	steps := agent.BreadthScan(agent.PresetInput{Filters: []interface{}{f("series", "=", "LS9")}})
	state, err := engine.NewState(steps)
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, report.Anomalous())
	assert.Len(t, report.Steps, 10)
	assert.Len(t, report.Injected, 3)

	baseline, ok := state.Result("baseline_query")
	require.True(t, ok)
	assert.Equal(t, 40.0, baseline.(*tools.QueryResult).Value)
}

func TestRateScanRunsThroughEngine(t *testing.T) {
	dc := datatest.StandardContext()
	e := engine.New(tools.NewDefaultRouter(dc, tools.DefaultOptions(), nil), engine.DefaultConfig(), nil)

	state, err := engine.NewState(agent.RateScan(agent.PresetInput{}))
	require.NoError(t, err)

	report, err := e.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, report.Decision)

	dual, ok := state.Result("volume_vs_rate")
	require.True(t, ok)
	series := dual.(*tools.DualAxisResult).Series
	require.Len(t, series, 30)
	assert.Equal(t, 100.0, series[0].LeftValue)
	assert.InDelta(t, 0.3, series[29].RightValue, 1e-9)
}
