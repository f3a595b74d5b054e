package etrun

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun(t *testing.T) {
	req := json.RawMessage(`{"preset":"breadth_scan"}`)

	_, err := NewRun("", "r", "bi_analysis", req)
	assert.ErrorIs(t, err, ErrInvalidRunID)
	_, err = NewRun("id", "r", "", req)
	assert.ErrorIs(t, err, ErrInvalidActionType)
	_, err = NewRun("id", "r", "bi_analysis", nil)
	assert.ErrorIs(t, err, ErrEmptyRequest)

	run, err := NewRun("id", "r", "bi_analysis", req)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.False(t, run.Finished())
}

func TestComplete(t *testing.T) {
	run, err := NewRun("id", "r", "bi_analysis", json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.ErrorIs(t, run.Complete(nil), ErrNilResult)
	require.NoError(t, run.Complete(&Result{Succeeded: false, Error: "step limit exceeded"}))
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.True(t, run.Finished())
	assert.ErrorIs(t, run.Complete(&Result{Succeeded: true}), ErrRunFinished)

	ok, _ := NewRun("id2", "r", "bi_ask", json.RawMessage(`{}`))
	require.NoError(t, ok.Complete(&Result{Succeeded: true, Anomalous: true}))
	assert.Equal(t, RunStatusDone, ok.Status)
	assert.True(t, ok.Result.Anomalous)
}
