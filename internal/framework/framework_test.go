package framework

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/errorutil"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfyx"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

type fakeSource struct {
	mu    sync.Mutex
	queue []*Message
	errs  int
	acked []string
}

func (f *fakeSource) Consume(queue string, timeout, ttr time.Duration) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs > 0 {
		f.errs--
		return nil, errors.New("connection reset")
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeSource) Ack(queue, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, jobID)
	return nil
}

func (f *fakeSource) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func TestProcessorSettle(t *testing.T) {
	src := &fakeSource{}
	actions := map[string]lmstfyx.JobRespStatus{
		"ok":      lmstfyx.JobRespStatusSuccess,
		"retry":   lmstfyx.JobRespStatusRelease,
		"invalid": lmstfyx.JobRespStatusBury,
	}
	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		if job.ID == "nil" {
			return nil
		}
		return &lmstfyx.JobResp{Action: actions[job.ID]}
	}
	p := NewProcessor(ProcessorConfig{QueueName: "bi_analysis", Concurrency: 1}, proc, src, logger.NewNop())

	in := make(chan *Message, 4)
	for _, id := range []string{"ok", "retry", "invalid", "nil"} {
		in <- &Message{ID: id}
	}
	p.Start(context.Background(), in)
	p.SignalShutdown()
	p.Wait()

	assert.ElementsMatch(t, []string{"ok", "invalid", "nil"}, src.ackedIDs())
}

func TestProcessorDrainsOnShutdown(t *testing.T) {
	src := &fakeSource{}
	var mu sync.Mutex
	var seen []string
	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusSuccess}
	}
	p := NewProcessor(ProcessorConfig{QueueName: "q", Concurrency: 2}, proc, src, logger.NewNop())

	in := make(chan *Message, 10)
	for i := 0; i < 10; i++ {
		in <- &Message{ID: string(rune('a' + i))}
	}
	p.SignalShutdown()
	p.SignalShutdown()
	p.Start(context.Background(), in)
	p.Wait()

	assert.Len(t, seen, 10)
	assert.Len(t, src.ackedIDs(), 10)
}

func TestProcessorAppliesTimeout(t *testing.T) {
	src := &fakeSource{}
	var deadline bool
	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		_, deadline = ctx.Deadline()
		return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusSuccess}
	}
	p := NewProcessor(ProcessorConfig{Timeout: time.Second}, proc, src, logger.NewNop())
	in := make(chan *Message, 1)
	in <- &Message{ID: "x"}
	p.SignalShutdown()
	p.Start(context.Background(), in)
	p.Wait()

	assert.True(t, deadline)
}

func TestSubscriberForwardsAndStops(t *testing.T) {
	src := &fakeSource{errs: 1, queue: []*Message{{ID: "1"}, {ID: "2"}}}
	s := NewSubscriber(SubscriberConfig{QueueName: "q", Rate: time.Millisecond, ErrorBackoff: time.Millisecond}, src, logger.NewNop())

	out := make(chan *Message, 2)
	s.Start(context.Background(), out)

	var got []string
	for len(got) < 2 {
		select {
		case msg := <-out:
			got = append(got, msg.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not forward messages")
		}
	}
	s.Stop()
	s.Wait()

	assert.Equal(t, []string{"1", "2"}, got)
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, sleepCtx(ctx, 0))
	assert.True(t, sleepCtx(ctx, time.Millisecond))
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.False(t, sleepCtx(ctx, 0))
}

func TestChainStopsOnError(t *testing.T) {
	var calls []string
	step := func(name string, err error) ProcessorFunc {
		return func(ctx context.Context) error {
			calls = append(calls, name)
			return err
		}
	}
	err := NewChain().
		Then("pre", step("pre", nil)).
		Then("skipped", nil).
		Then("process", step("process", errorutil.Retriable("busy"))).
		Then("post", step("post", nil)).
		Run(context.Background())

	require.Error(t, err)
	assert.True(t, errorutil.IsRetryable(err))
	assert.Contains(t, err.Error(), "stage process failed")
	assert.Equal(t, []string{"pre", "process"}, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = nil
	err = NewChain(Stage{Name: "pre", Fn: step("pre", nil)}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestParseJob(t *testing.T) {
	job, err := model.NewJob("req-1", model.ActionAsk, "", model.AskData{Question: "昨天锁单量"})
	require.NoError(t, err)
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	var b BaseHandler
	require.NoError(t, b.ParseJob(context.Background(), raw))
	assert.Equal(t, "req-1", b.GetMeta().RequestID)
	assert.Equal(t, "req-1", b.GetMeta().RunID)
	assert.Equal(t, model.ActionAsk, b.GetMeta().ActionType)
	assert.Equal(t, raw, b.GetRawData())

	var ask model.AskData
	require.NoError(t, b.BindPayload(&ask))
	assert.Equal(t, "昨天锁单量", ask.Question)

	var noID BaseHandler
	raw = []byte(`{"payload":{"data":{"action_type":"bi_ask","data":{}}}}`)
	require.NoError(t, noID.ParseJob(context.Background(), raw))
	assert.NotEmpty(t, noID.GetMeta().RequestID)
	assert.Equal(t, noID.GetMeta().RequestID, noID.GetMeta().RunID)

	for _, bad := range []string{`not json`, `{}`, `{"payload":{}}`} {
		err := (&BaseHandler{}).ParseJob(context.Background(), []byte(bad))
		require.Error(t, err, bad)
		assert.False(t, errorutil.IsRetryable(err), bad)
	}
}

func TestWrapErrorResponse(t *testing.T) {
	var b BaseHandler
	raw := []byte(`{"payload":{"data":{"request_id":"r","id":"run","action_type":"bi_analysis","data":{}}}}`)
	require.NoError(t, b.ParseJob(context.Background(), raw))
	b.SetOutput(map[string]string{"status": "FAILED"})

	data, err := b.WrapErrorResponse(context.Background(), errorutil.NonRetriable("bad plan"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.False(t, resp.Processed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "run", resp.Meta.RunID)
}
