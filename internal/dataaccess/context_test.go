package dataaccess_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess/datatest"
)

func selectOK(t *testing.T, dc *dataaccess.DataContext, q dataaccess.Query) *dataaccess.Selection {
	t.Helper()
	sel, err := dc.Select(context.Background(), q)
	require.NoError(t, err)
	return sel
}

func TestSelectMetricTimeColumn(t *testing.T) {
	dc := datatest.StandardContext()

	tests := []struct {
		name   string
		query  dataaccess.Query
		expect float64
	}{
		{"lock yesterday", dataaccess.Query{Metric: "锁单量", DateRange: "yesterday"}, 45},
		{"lock alias", dataaccess.Query{Metric: "销量", DateRange: "yesterday"}, 45},
		{"lock last 7 days", dataaccess.Query{Metric: "锁单量", DateRange: "last_7_days"}, 135},
		{"small orders keep unlocked rows", dataaccess.Query{Metric: "小订数", DateRange: datatest.Day(2)}, 48},
		{"delivery anchored on delivery_date", dataaccess.Query{Metric: "交付数", DateRange: "last_7_days"}, 70},
		{"invoice amount", dataaccess.Query{Metric: "开票金额", DateRange: "last_7_days"}, 70 * 200000},
		{"average age", dataaccess.Query{Metric: "平均年龄", DateRange: datatest.Day(2)}, (20*28 + 20*36 + 5*45 + 3*30) / 48.0},
		{"assign ratio", dataaccess.Query{Metric: "assign_rate_7d_lock", DateRange: "yesterday"}, 0.3},
		{"assign sum", dataaccess.Query{Metric: "下发线索数", DateRange: "last_7_days"}, 700},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := selectOK(t, dc, tt.query)
			assert.InDelta(t, tt.expect, sel.Metric.Aggregate(sel.View), 1e-9)
		})
	}
}

func TestSelectFiltersWithModelExpansion(t *testing.T) {
	dc := datatest.StandardContext()

	sel := selectOK(t, dc, dataaccess.Query{
		Metric:    "锁单量",
		DateRange: "yesterday",
		Filters:   []dataaccess.Filter{{Field: "series", Op: "=", Value: "LS6"}},
	})
	assert.Equal(t, 5, sel.View.Len())
	require.Len(t, sel.Filters, 1)
	assert.Equal(t, dataaccess.ColSeriesGroup, sel.Filters[0].Filter.Field)
	assert.Equal(t, dataaccess.OpIn, sel.Filters[0].Filter.Op)
	assert.Equal(t, []interface{}{"CM0", "CM1", "CM2"}, sel.Filters[0].Filter.Value)

	sel = selectOK(t, dc, dataaccess.Query{
		Metric:    "锁单量",
		DateRange: "yesterday",
		Filters:   []dataaccess.Filter{{Field: "series_group", Op: "=", Value: "LS9"}},
	})
	assert.Equal(t, 40, sel.View.Len())
}

func TestSelectFilterOrderIndependent(t *testing.T) {
	dc := datatest.StandardContext()
	a := dataaccess.Filter{Field: "gender", Op: "=", Value: "男"}
	b := dataaccess.Filter{Field: "age", Op: ">=", Value: 30}

	first := selectOK(t, dc, dataaccess.Query{Metric: "锁单量", DateRange: "yesterday", Filters: []dataaccess.Filter{a, b}})
	second := selectOK(t, dc, dataaccess.Query{Metric: "锁单量", DateRange: "yesterday", Filters: []dataaccess.Filter{b, a}})
	assert.Equal(t, first.View.Len(), second.View.Len())
	// 男性 LS9 年龄 28 被排除，只剩 CM2 的 5 单
	assert.Equal(t, 5, first.View.Len())
}

func TestSelectBestEffortFilters(t *testing.T) {
	dc := datatest.StandardContext()
	sel := selectOK(t, dc, dataaccess.Query{
		Metric:    "锁单量",
		DateRange: "yesterday",
		Filters: []dataaccess.Filter{
			{Field: "no_such_column", Op: "=", Value: "x"},
			{Field: "age", Op: ">", Value: "abc"},
			{Field: "age", Op: ">=", Value: "30"},
		},
	})
	assert.Equal(t, 25, sel.View.Len())
	require.Len(t, sel.Filters, 3)
	assert.False(t, sel.Filters[0].Applied)
	assert.False(t, sel.Filters[1].Applied)
	assert.True(t, sel.Filters[2].Applied)
	assert.Len(t, sel.Diagnostics, 2)
}

func TestSelectEqWithListBecomesIn(t *testing.T) {
	dc := datatest.StandardContext()
	sel := selectOK(t, dc, dataaccess.Query{
		Metric:    "锁单量",
		DateRange: "yesterday",
		Filters:   []dataaccess.Filter{{Field: "store_city", Op: "=", Value: []interface{}{"上海", "北京"}}},
	})
	assert.Equal(t, 25, sel.View.Len())
	assert.Equal(t, dataaccess.OpIn, sel.Filters[0].Filter.Op)
}

func TestSelectOtherOps(t *testing.T) {
	dc := datatest.StandardContext()
	count := func(f dataaccess.Filter) int {
		return selectOK(t, dc, dataaccess.Query{Metric: "锁单量", DateRange: "yesterday", Filters: []dataaccess.Filter{f}}).View.Len()
	}
	assert.Equal(t, 25, count(dataaccess.Filter{Field: "store_city", Op: "!=", Value: "上海"}))
	assert.Equal(t, 25, count(dataaccess.Filter{Field: "store_city", Op: "not_in", Value: []string{"广州"}}))
	assert.Equal(t, 40, count(dataaccess.Filter{Field: "product_name", Op: "contains", Value: "LS9"}))
	assert.Equal(t, 40, count(dataaccess.Filter{Field: "product_type", Op: "=", Value: "增程"}))
	assert.Equal(t, 45, count(dataaccess.Filter{Field: "age", Op: "not_null"}))
	assert.Equal(t, 0, count(dataaccess.Filter{Field: "delivery_date", Op: "not_null"}))
	assert.Equal(t, 40, count(dataaccess.Filter{Field: "age", Op: "<", Value: 40.0}))
}

func TestSelectMissingDateRange(t *testing.T) {
	dc := datatest.StandardContext()
	for _, expr := range []string{"", "not a date"} {
		sel := selectOK(t, dc, dataaccess.Query{Metric: "锁单量", DateRange: expr})
		assert.True(t, sel.Empty(), expr)
		assert.NotEmpty(t, sel.Diagnostics, expr)
	}
}

func TestSelectLaunchWindow(t *testing.T) {
	dc := datatest.StandardContext()

	sel := selectOK(t, dc, dataaccess.Query{
		Metric:    "锁单量",
		DateRange: "launch_plus_10d",
		Filters:   []dataaccess.Filter{{Field: "series_group", Op: "=", Value: "LS9"}},
	})
	assert.False(t, sel.LaunchUnresolved)
	assert.Equal(t, "LS9", sel.Window.Series)
	assert.Equal(t, "2025-11-15", sel.Window.Start.Format(dataaccess.DateLayout))
	assert.Equal(t, 100, sel.View.Len())

	// 两个车型在范围内：宽松模式不加时间过滤
	sel = selectOK(t, dc, dataaccess.Query{Metric: "锁单量", DateRange: "launch_plus_10d"})
	assert.True(t, sel.LaunchUnresolved)
	assert.Equal(t, 30*10+30+30*5, sel.View.Len())
	assert.NotEmpty(t, sel.Diagnostics)
}

func TestSelectLaunchWindowStrict(t *testing.T) {
	today, _ := time.ParseInLocation(dataaccess.DateLayout, datatest.Today, datatest.Location)
	dc := dataaccess.NewDataContext(dataaccess.StaticLoader{Dataset: datatest.Standard()}, dataaccess.Options{
		Location:           datatest.Location,
		Today:              today,
		StrictLaunchWindow: true,
	}, nil)

	_, err := dc.Select(context.Background(), dataaccess.Query{Metric: "锁单量", DateRange: "launch_plus_10d"})
	assert.ErrorIs(t, err, dataaccess.ErrLaunchWindowUnresolved)
}

func TestSelectSkipValidity(t *testing.T) {
	dc := datatest.StandardContext()
	sel := selectOK(t, dc, dataaccess.Query{Metric: "开票量", DateRange: "last_7_days", SkipValidity: true})
	assert.Equal(t, 70, sel.View.Len())
}

type countingLoader struct {
	calls *atomic.Int32
}

func (l countingLoader) Load(_ context.Context) (*dataaccess.Dataset, error) {
	l.calls.Inc()
	return datatest.Standard(), nil
}

func TestEnsureLoadedOnce(t *testing.T) {
	loader := countingLoader{calls: atomic.NewInt32(0)}
	dc := dataaccess.NewDataContext(loader, dataaccess.Options{Location: datatest.Location}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, dc.EnsureLoaded(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.True(t, dc.Loaded())
}

func TestTableBeforeLoad(t *testing.T) {
	dc := dataaccess.NewDataContext(nil, dataaccess.Options{}, nil)
	_, err := dc.Table(dataaccess.SourceOrders)
	assert.ErrorIs(t, err, dataaccess.ErrNotLoaded)
	assert.ErrorIs(t, dc.EnsureLoaded(context.Background()), dataaccess.ErrNotLoaded)
}
