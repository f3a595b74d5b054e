package domains_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bitleak/lmstfy/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/agent"
	"github.com/zhangzihaoDT/BI-reasoning/internal/bootstrap"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess/datatest"
	"github.com/zhangzihaoDT/BI-reasoning/internal/domains"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfyx"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	callbacks []model.AnalysisCallback
}

func (f *fakePublisher) Publish(queue string, data []byte, ttl, delay uint32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	var cb model.AnalysisCallback
	if err := json.Unmarshal(data, &cb); err != nil {
		return "", err
	}
	f.callbacks = append(f.callbacks, cb)
	return "job-" + cb.RunID, nil
}

func newProc(pub *fakePublisher) lmstfyx.Proc {
	rt := bootstrap.NewRuntime(datatest.StandardContext(), config.AnalysisConfig{}, nil, nil)
	deps := &analysis.Deps{
		Runtime:  rt,
		Callback: business.NewCallbackService(pub, "bi_analysis_callback", nil),
	}
	return domains.GetProcess(logger.NewNop(), deps)
}

func job(t *testing.T, action, runID string, data interface{}) *client.Job {
	j, err := model.NewJob("req-"+runID, action, runID, data)
	require.NoError(t, err)
	raw, err := json.Marshal(j)
	require.NoError(t, err)
	return &client.Job{ID: "lmstfy-" + runID, Queue: action, Data: raw}
}

func ls9AnomalyStep() dsl.Step {
	return dsl.Step{ID: "anomaly_check", Tool: "trend", Parameters: dsl.Params{
		"metric":     "锁单量",
		"date_range": "last_30_days",
		"filters":    []interface{}{map[string]interface{}{"field": "series", "op": "=", "value": "LS9"}},
	}}
}

func TestGetProcessAnalysisSuccess(t *testing.T) {
	pub := &fakePublisher{}
	proc := newProc(pub)

	resp := proc(context.Background(), job(t, model.ActionAnalysisRun, "run-1", model.AnalysisRunData{
		Steps: []dsl.Step{ls9AnomalyStep()},
	}))
	require.NotNil(t, resp)
	assert.Equal(t, lmstfyx.JobRespStatusSuccess, resp.Action)

	require.Len(t, pub.callbacks, 1)
	cb := pub.callbacks[0]
	assert.Equal(t, "run-1", cb.RunID)
	assert.Equal(t, "req-run-1", cb.RequestID)
	assert.Equal(t, model.CallbackStatusSuccess, cb.Status)
	assert.True(t, cb.Anomalous)
	assert.NotZero(t, cb.ProcessedAt)

	var report struct {
		Steps    []json.RawMessage `json:"steps"`
		Injected []string          `json:"injected"`
	}
	require.NoError(t, json.Unmarshal(cb.Report, &report))
	assert.Len(t, report.Steps, 4)
	assert.Len(t, report.Injected, 3)
}

func TestGetProcessPreset(t *testing.T) {
	pub := &fakePublisher{}
	resp := newProc(pub)(context.Background(), job(t, model.ActionAnalysisRun, "run-preset", model.AnalysisRunData{
		Preset:      agent.PresetBreadthScan,
		PresetInput: &model.PresetParams{Dimension: "parent_region_name"},
	}))
	assert.Equal(t, lmstfyx.JobRespStatusSuccess, resp.Action)
	require.Len(t, pub.callbacks, 1)
	assert.Equal(t, model.CallbackStatusSuccess, pub.callbacks[0].Status)
}

func TestGetProcessAsk(t *testing.T) {
	pub := &fakePublisher{}
	resp := newProc(pub)(context.Background(), job(t, model.ActionAsk, "ask-1", model.AskData{Question: "昨天的锁单量是多少"}))
	assert.Equal(t, lmstfyx.JobRespStatusSuccess, resp.Action)

	require.Len(t, pub.callbacks, 1)
	assert.Equal(t, model.ActionAsk, pub.callbacks[0].ActionType)
	assert.Equal(t, agent.SourceHeuristic, pub.callbacks[0].Source)
	assert.Equal(t, model.CallbackStatusSuccess, pub.callbacks[0].Status)
}

func TestGetProcessInvalidPayloadBuries(t *testing.T) {
	cases := map[string]interface{}{
		"empty":     model.AnalysisRunData{},
		"exclusive": model.AnalysisRunData{Steps: []dsl.Step{ls9AnomalyStep()}, Preset: agent.PresetBreadthScan},
		"preset":    model.AnalysisRunData{Preset: "unknown"},
		"duplicate": model.AnalysisRunData{Steps: []dsl.Step{ls9AnomalyStep(), ls9AnomalyStep()}},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			pub := &fakePublisher{}
			resp := newProc(pub)(context.Background(), job(t, model.ActionAnalysisRun, name, data))
			assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)

			require.Len(t, pub.callbacks, 1)
			assert.Equal(t, model.CallbackStatusFailed, pub.callbacks[0].Status)
			assert.Equal(t, name, pub.callbacks[0].RunID)
			assert.NotEmpty(t, pub.callbacks[0].Error)
		})
	}
}

func TestGetProcessToolFailureIsReported(t *testing.T) {
	pub := &fakePublisher{}
	resp := newProc(pub)(context.Background(), job(t, model.ActionAnalysisRun, "run-tool", model.AnalysisRunData{
		Steps: []dsl.Step{{ID: "x", Tool: "forecast"}},
	}))
	assert.Equal(t, lmstfyx.JobRespStatusSuccess, resp.Action)

	require.Len(t, pub.callbacks, 1)
	assert.Equal(t, model.CallbackStatusFailed, pub.callbacks[0].Status)
	assert.NotEmpty(t, pub.callbacks[0].Report)
}

func TestGetProcessUnroutable(t *testing.T) {
	pub := &fakePublisher{}
	proc := newProc(pub)

	resp := proc(context.Background(), job(t, "bi_forecast", "x", map[string]string{}))
	assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)

	resp = proc(context.Background(), &client.Job{ID: "bad", Data: []byte("not json")})
	assert.Equal(t, lmstfyx.JobRespStatusBury, resp.Action)

	assert.Empty(t, pub.callbacks)
}

func TestGetProcessCallbackFailureReleases(t *testing.T) {
	pub := &fakePublisher{err: errors.New("lmstfy unavailable")}
	resp := newProc(pub)(context.Background(), job(t, model.ActionAnalysisRun, "run-2", model.AnalysisRunData{
		Steps: []dsl.Step{ls9AnomalyStep()},
	}))
	assert.Equal(t, lmstfyx.JobRespStatusRelease, resp.Action)

	resp = newProc(pub)(context.Background(), job(t, model.ActionAnalysisRun, "run-3", model.AnalysisRunData{}))
	assert.Equal(t, lmstfyx.JobRespStatusRelease, resp.Action)
}

func TestGetProcessCanceledReleases(t *testing.T) {
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := newProc(pub)(ctx, job(t, model.ActionAnalysisRun, "run-4", model.AnalysisRunData{
		Steps: []dsl.Step{ls9AnomalyStep()},
	}))
	assert.Equal(t, lmstfyx.JobRespStatusRelease, resp.Action)
	assert.Empty(t, pub.callbacks)
}
