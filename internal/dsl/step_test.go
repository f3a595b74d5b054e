package dsl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFromJSON(t *testing.T) {
	raw := `{
		"id": "q1",
		"tool": "rollup",
		"parameters": {
			"metric": "锁单量",
			"date_range": "2025-12",
			"dimensions": ["series_group", "store_city"],
			"limit": 5,
			"filters": [{"field": "series", "op": "in", "value": ["LS6", "LS9"]}]
		}
	}`

	var step Step
	require.NoError(t, json.Unmarshal([]byte(raw), &step))
	require.NoError(t, step.Validate())

	p := step.Parameters
	assert.Equal(t, "锁单量", p.String("metric"))
	assert.Equal(t, []string{"series_group", "store_city"}, p.Dimensions())
	assert.Equal(t, 5, p.Int("limit", 10))
	assert.Equal(t, 10, p.Int("missing", 10))

	filters, err := p.Filters()
	require.NoError(t, err)
	require.Len(t, filters, 1)
	assert.Equal(t, "series", filters[0].Field)
	assert.Equal(t, "in", filters[0].Op)
	assert.Equal(t, []interface{}{"LS6", "LS9"}, filters[0].Value)
}

func TestDimensionsFallsBackToSingle(t *testing.T) {
	p := Params{"dimension": "gender"}
	assert.Equal(t, []string{"gender"}, p.Dimensions())
	assert.Nil(t, Params{}.Dimensions())
}

func TestCloneIsIndependent(t *testing.T) {
	orig := Params{"dimensions": []interface{}{"a"}}
	cp := orig.Clone()
	cp["dimensions"] = []interface{}{"b"}
	assert.Equal(t, []string{"a"}, orig.StringSlice("dimensions"))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Step{Tool: "query"}.Validate())
	assert.Error(t, Step{ID: "x"}.Validate())
}
