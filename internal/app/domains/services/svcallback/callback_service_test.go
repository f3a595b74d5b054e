package svcallback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/modules/mdrun"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/redis"
)

type stubRepo struct {
	updated bool
	err     error
	status  etrun.RunStatus
	result  *etrun.Result
}

func (s *stubRepo) Create(ctx context.Context, run *etrun.Run) error { return nil }

func (s *stubRepo) GetByID(ctx context.Context, runID string) (*etrun.Run, error) { return nil, nil }

func (s *stubRepo) UpdateResult(ctx context.Context, runID string, status etrun.RunStatus, result *etrun.Result) (bool, error) {
	s.status, s.result = status, result
	return s.updated, s.err
}

type stubNotifier struct {
	err  error
	sent []*redis.RunNotification
}

func (s *stubNotifier) PublishRunComplete(ctx context.Context, n *redis.RunNotification) error {
	s.sent = append(s.sent, n)
	return s.err
}

func TestHandleCallback(t *testing.T) {
	repo := &stubRepo{updated: true}
	notifier := &stubNotifier{}
	svc := NewCallbackService(mdrun.NewRunModule(repo), notifier, nil)

	err := svc.HandleCallback(context.Background(), &model.AnalysisCallback{
		RunID:     "run_1",
		Status:    model.CallbackStatusSuccess,
		Anomalous: true,
		Source:    "heuristic",
		Report:    json.RawMessage(`{"steps":[]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, etrun.RunStatusDone, repo.status)
	assert.Equal(t, "heuristic", repo.result.Source)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "run_1", notifier.sent[0].RunID)
	assert.True(t, notifier.sent[0].Anomalous)
	assert.NotZero(t, notifier.sent[0].Timestamp)
}

func TestHandleCallbackFailedStatus(t *testing.T) {
	repo := &stubRepo{}
	notifier := &stubNotifier{err: errors.New("redis down")}
	svc := NewCallbackService(mdrun.NewRunModule(repo), notifier, nil)

	err := svc.HandleCallback(context.Background(), &model.AnalysisCallback{
		RunID:  "run_2",
		Status: model.CallbackStatusFailed,
		Error:  "step limit exceeded",
	})
	require.NoError(t, err)
	assert.Equal(t, etrun.RunStatusFailed, repo.status)
	assert.Equal(t, "step limit exceeded", repo.result.Error)
	assert.Len(t, notifier.sent, 1)
}

func TestHandleCallbackDBFailureRetries(t *testing.T) {
	notifier := &stubNotifier{}
	svc := NewCallbackService(mdrun.NewRunModule(&stubRepo{err: errors.New("deadlock")}), notifier, nil)

	err := svc.HandleCallback(context.Background(), &model.AnalysisCallback{RunID: "run_3", Status: model.CallbackStatusSuccess})
	assert.Error(t, err)
	assert.Empty(t, notifier.sent)
}
