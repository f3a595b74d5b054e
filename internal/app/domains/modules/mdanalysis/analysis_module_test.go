package mdanalysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/redis"
)

type fakePublisher struct {
	queue string
	job   *model.Job
}

func (f *fakePublisher) PublishJSON(queue string, v interface{}) (string, error) {
	f.queue = queue
	f.job = v.(*model.Job)
	return "job-1", nil
}

type fakeWaiter struct {
	n   *redis.RunNotification
	err error
}

func (f *fakeWaiter) WaitRunComplete(ctx context.Context, runID string, timeout time.Duration) (*redis.RunNotification, error) {
	return f.n, f.err
}

func TestPublishRunJobRoutesByAction(t *testing.T) {
	pub := &fakePublisher{}
	m := NewAnalysisModule(pub, &fakeWaiter{}, "bi_analysis", "bi_ask")

	run, err := etrun.NewRun("run_1", "req-1", model.ActionAsk, json.RawMessage(`{"question":"昨天锁单量"}`))
	require.NoError(t, err)
	jobID, err := m.PublishRunJob(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "bi_ask", pub.queue)

	data := pub.job.Payload.Data
	assert.Equal(t, "run_1", data.ID)
	assert.Equal(t, "req-1", data.RequestID)
	assert.JSONEq(t, `{"question":"昨天锁单量"}`, string(data.Data))

	run.ActionType = "bi_forecast"
	_, err = m.PublishRunJob(context.Background(), run)
	assert.Error(t, err)

	shared := NewAnalysisModule(pub, &fakeWaiter{}, "bi_analysis", "")
	run.ActionType = model.ActionAsk
	_, err = shared.PublishRunJob(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "bi_analysis", pub.queue)
}

func TestWaitForRunResult(t *testing.T) {
	w := &fakeWaiter{n: &redis.RunNotification{RunID: "run_1", Status: model.CallbackStatusSuccess, Anomalous: true}}
	m := NewAnalysisModule(&fakePublisher{}, w, "q", "")

	res, err := m.WaitForRunResult(context.Background(), "run_1", time.Second)
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.True(t, res.Anomalous)

	w.n, w.err = nil, context.DeadlineExceeded
	_, err = m.WaitForRunResult(context.Background(), "run_1", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
