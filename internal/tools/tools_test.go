package tools_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess/datatest"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
	"github.com/zhangzihaoDT/BI-reasoning/internal/tools"
)

func newRouter(dc *dataaccess.DataContext) *tools.Router {
	return tools.NewDefaultRouter(dc, tools.DefaultOptions(), nil)
}

func run(t *testing.T, r *tools.Router, id, tool string, params dsl.Params) tools.Result {
	t.Helper()
	res, err := r.Dispatch(context.Background(), dsl.Step{ID: id, Tool: tool, Parameters: params})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func seriesFilter(series string) []interface{} {
	return []interface{}{map[string]interface{}{"field": "series", "op": "=", "value": series}}
}

func TestRouterResolve(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	assert.Equal(t, []string{"query", "rollup", "trend", "distribution", "additive", "ratio", "composition", "pareto", "dual_axis"}, r.Tools())

	tool, err := r.Resolve(dsl.Step{ID: "s", Tool: "top_n"})
	require.NoError(t, err)
	assert.Equal(t, "rollup", tool.Name())

	tool, err = r.Resolve(dsl.Step{ID: "s", Tool: "histogram"})
	require.NoError(t, err)
	assert.Equal(t, "distribution", tool.Name())

	_, err = r.Dispatch(context.Background(), dsl.Step{ID: "s", Tool: "forecast"})
	assert.ErrorIs(t, err, tools.ErrNoTool)
}

func TestQueryScalarAndInterval(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "q", "query", dsl.Params{"metric": "锁单量", "date_range": "yesterday"}).(*tools.QueryResult)
	assert.Equal(t, 45.0, res.Value)
	assert.Equal(t, 45, res.SampleSize)
	assert.Equal(t, datatest.Day(1), res.Window)

	res = run(t, r, "q", "query", dsl.Params{"metric": "锁单量", "date_range": "last_7_days", "interval": "day"}).(*tools.QueryResult)
	assert.Equal(t, 135.0, res.Value)
	assert.Equal(t, "day", res.Interval)
	assert.Len(t, res.Series, 7)
	assert.Equal(t, 45.0, res.Series[datatest.Day(1)])
	assert.Equal(t, 15.0, res.Series[datatest.Day(3)])
}

func TestRollupOrderingAndTopN(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "r", "rollup", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimensions": []interface{}{"parent_region_name", "unknown_dim"},
	}).(*tools.RollupResult)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "华东", res.Rows[0].Dimension)
	assert.Equal(t, 20.0, res.Rows[0].Value)
	assert.Equal(t, "华北", res.Rows[2].Dimension)
	assert.Equal(t, 5.0, res.Rows[2].Value)
	assert.Contains(t, res.Diagnostics, "dimension unknown_dim not found")

	res = run(t, r, "r", "rollup", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimension": "parent_region_name", "order": "asc",
	}).(*tools.RollupResult)
	assert.Equal(t, "华北", res.Rows[0].Dimension)

	res = run(t, r, "t", "top_n", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimension": "store_city", "limit": 1,
	}).(*tools.RollupResult)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 20.0, res.Rows[0].Value)

	res = run(t, r, "r", "rollup", dsl.Params{
		"metric": "锁单量", "date_range": "last_7_days", "dimension": "date",
	}).(*tools.RollupResult)
	require.Len(t, res.Rows, 7)
	assert.Equal(t, datatest.Day(7), res.Rows[0].Keys["date"])
	assert.Equal(t, datatest.Day(1), res.Rows[6].Keys["date"])
	assert.Equal(t, 45.0, res.Rows[6].Value)
}

func TestRollupLaunchZeroFill(t *testing.T) {
	ds := &dataaccess.Dataset{
		Orders: datatest.Orders(
			datatest.OrderRow{Create: "2025-11-15", Lock: "2025-11-15", Product: datatest.ProductLS9},
			datatest.OrderRow{Create: "2025-11-15", Lock: "2025-11-18", Product: datatest.ProductLS9},
			datatest.OrderRow{Create: "2025-11-15", Lock: "2025-11-18", Product: datatest.ProductLS9},
		),
		Definition: datatest.Definition(),
	}
	r := newRouter(datatest.NewContext(ds))

	res := run(t, r, "r", "rollup", dsl.Params{
		"metric":     "锁单量",
		"date_range": "launch_plus_10d",
		"dimension":  "date",
		"filters":    seriesFilter("LS9"),
	}).(*tools.RollupResult)

	require.Len(t, res.Rows, 10)
	assert.Equal(t, "2025-11-15", res.Rows[0].Keys["date"])
	assert.Equal(t, 1.0, res.Rows[0].Value)
	assert.Equal(t, 0.0, res.Rows[1].Value)
	assert.Equal(t, 2.0, res.Rows[3].Value)
	assert.Equal(t, "2025-11-24", res.Rows[9].Keys["date"])
	assert.Equal(t, "2025-11-15/2025-11-24", res.Window)
}

func TestTrendSingleDayComparison(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "t", "trend", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "compare_type": "wow",
	}).(*tools.TrendResult)
	require.NotNil(t, res.Compare)
	assert.Equal(t, datatest.Day(8), res.Compare.Date)
	assert.Equal(t, 15.0, res.Compare.Value)
	assert.Equal(t, 30.0, res.Change)
	assert.InDelta(t, 2.0, res.ChangePct, 1e-9)

	res = run(t, r, "t", "trend", dsl.Params{
		"metric": "锁单量", "date_range": "last_7_days", "time_grain": "day",
	}).(*tools.TrendResult)
	require.Len(t, res.Series, 7)
	assert.Nil(t, res.Compare)
	assert.Equal(t, 30.0, res.Change)
}

func TestTrendAnomalyStats(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "anomaly_check", "trend", dsl.Params{
		"metric":     "锁单量",
		"date_range": "last_30_days",
		"filters":    seriesFilter("LS9"),
	})
	stats, ok := res.(*tools.AnomalyStatsResult)
	require.True(t, ok)
	assert.Equal(t, 40.0, stats.Value)
	assert.InDelta(t, 11.0, stats.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(30), stats.Std, 1e-9)
	assert.Equal(t, 30, stats.Points)
	assert.Equal(t, datatest.Day(1), stats.LastDate)
	assert.Equal(t, 1.0, stats.Percentile)

	d := signals.Evaluate(stats.Stats, signals.DefaultThresholds())
	assert.Equal(t, signals.FlagVolatile, d.Flag)
	assert.True(t, d.AnomalyDetected)
}

func TestTrendAnomalyStatsRatioMetric(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "anomaly_check", "trend", dsl.Params{
		"metric": "assign_rate_7d_lock", "date_range": "last_30_days",
	}).(*tools.AnomalyStatsResult)
	assert.Equal(t, signals.MetricTypeRatio, res.MetricType)
	assert.InDelta(t, 0.3, res.Value, 1e-9)
	assert.Equal(t, 100.0, res.Denominator)
	assert.InDelta(t, 0, res.DeltaTotal, 1e-9)
	assert.Greater(t, res.DeltaRatio, 0.2)
}

func TestTrendAnomalyStatsEmpty(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "anomaly_check", "trend", dsl.Params{
		"metric": "锁单量", "date_range": "2024-01-01",
	}).(*tools.AnomalyStatsResult)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, signals.TypeDataQuality, res.Signals[0].Type)
}

func TestDistributionCategorical(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "d", "distribution", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "compare_date_range": datatest.Day(2), "dimension": "parent_region_name",
	}).(*tools.DistributionResult)
	require.Len(t, res.Distribution, 3)
	assert.Equal(t, "华东", res.Distribution[0].Category)
	assert.InDelta(t, 20.0/45, res.Distribution[0].PrimaryPct, 1e-9)
	assert.InDelta(t, 1.0/3, res.Distribution[0].ComparePct, 1e-9)

	require.NotNil(t, res.Comparison)
	assert.InDelta(t, 4.0/9, res.Comparison.Distance, 1e-9)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, signals.TypeDistribution, res.Signals[0].Type)
	assert.Equal(t, signals.StatusAbnormal, res.Signals[0].Status)

	res = run(t, r, "d", "distribution", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "compare_date_range": "yesterday", "dimension": "first_middle_channel_name",
	}).(*tools.DistributionResult)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, signals.StatusNormal, res.Signals[0].Status)
}

func TestDistributionMissingDimension(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "d", "distribution", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimension": "no_such_column",
	}).(*tools.DistributionResult)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, signals.StatusFailed, res.Signals[0].Status)
	assert.Empty(t, res.Distribution)
}

func TestHistogram(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "h", "histogram", dsl.Params{
		"metric": "平均年龄", "date_range": "yesterday", "compare_date_range": datatest.Day(2),
	}).(*tools.DistributionResult)
	require.Len(t, res.Bins, 30)
	sum := 0.0
	for _, b := range res.Bins {
		sum += b.PrimaryPct
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	require.NotNil(t, res.Comparison)
	assert.Equal(t, 0.3, res.Comparison.Threshold)
}

func TestAdditive(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "a", "additive", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimensions": []interface{}{"missing", "parent_region_name"},
	}).(*tools.ContributionResult)
	assert.Equal(t, "parent_region_name", res.Dimension)
	assert.Equal(t, 45.0, res.Total)
	require.Len(t, res.Items, 3)
	assert.InDelta(t, 20.0/45, res.Items[0].Percent, 1e-9)

	res = run(t, r, "a", "additive", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimensions": []interface{}{"missing"},
	}).(*tools.ContributionResult)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "All", res.Items[0].Dimension)
	assert.Equal(t, 1.0, res.Items[0].Percent)
}

func TestRatio(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "ra", "ratio", dsl.Params{"date_range": "last_7_days"}).(*tools.RatioResult)
	require.Len(t, res.Ratios, 2)
	assert.Equal(t, "lock_rate", res.Ratios[0].Name)
	assert.Equal(t, 118.0, res.Ratios[0].Denominator)
	assert.Equal(t, 115.0, res.Ratios[0].Numerator)
	assert.Equal(t, "delivery_rate", res.Ratios[1].Name)
	assert.Equal(t, 0.0, res.Ratios[1].Value)

	res = run(t, r, "ra", "ratio", dsl.Params{
		"date_range": "yesterday",
		"metrics":    []interface{}{"assign_rate_7d_lock", "bogus_rate"},
		"numerator":  "锁单量", "denominator": "小订数",
	}).(*tools.RatioResult)
	require.Len(t, res.Ratios, 2)
	assert.InDelta(t, 0.3, res.Ratios[0].Value, 1e-9)
	assert.Equal(t, "锁单量/小订数", res.Ratios[1].Name)
	assert.InDelta(t, 9.0, res.Ratios[1].Value, 1e-9)
	assert.Contains(t, res.Diagnostics, "unknown ratio metric bogus_rate")

	res = run(t, r, "ra", "ratio", dsl.Params{"date_range": "2024-01-01", "metrics": []interface{}{"lock_rate"}}).(*tools.RatioResult)
	require.Len(t, res.Ratios, 1)
	assert.Equal(t, 0.0, res.Ratios[0].Value)
}

func TestComposition(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "c", "composition", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimension": "parent_region_name",
	}).(*tools.ContributionResult)
	sum := 0.0
	for _, it := range res.Items {
		sum += it.Percent
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	res = run(t, r, "c", "composition", dsl.Params{
		"metric": "锁单量", "date_range": "last_7_days", "dimension": "parent_region_name", "interval": "day",
	}).(*tools.ContributionResult)
	assert.Equal(t, "day", res.Interval)
	perBucket := make(map[string]float64)
	for _, it := range res.Items {
		perBucket[it.Bucket] += it.Percent
	}
	assert.Len(t, perBucket, 7)
	for bucket, total := range perBucket {
		assert.InDelta(t, 1.0, total, 1e-9, bucket)
	}
	last := res.Items[len(res.Items)-3]
	assert.Equal(t, datatest.Day(1), last.Bucket)
	assert.InDelta(t, 20.0/45, last.Percent, 1e-9)
}

func TestPareto(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "p", "pareto", dsl.Params{
		"metric": "锁单量", "date_range": "yesterday", "dimension": "parent_region_name",
	}).(*tools.ContributionResult)
	require.Len(t, res.Items, 3)
	assert.InDelta(t, 20.0/45, res.Items[0].CumulativePercent, 1e-9)
	assert.InDelta(t, 40.0/45, res.Items[1].CumulativePercent, 1e-9)
	assert.InDelta(t, 1.0, res.Items[2].CumulativePercent, 1e-9)
}

func TestDualAxisUsesLeftTimeAxis(t *testing.T) {
	r := newRouter(datatest.StandardContext())

	res := run(t, r, "x", "dual_axis", dsl.Params{
		"left_metric": "锁单量", "right_metric": "交付数", "date_range": "last_30_days", "time_grain": "day",
	}).(*tools.DualAxisResult)
	require.Len(t, res.Series, 30)
	assert.Equal(t, datatest.Day(30), res.Series[0].Time)
	assert.Equal(t, 15.0, res.Series[0].LeftValue)
	assert.Equal(t, 10.0, res.Series[5].RightValue)
	assert.Equal(t, 45.0, res.Series[29].LeftValue)
	assert.Equal(t, 0.0, res.Series[29].RightValue)

	res = run(t, r, "x", "dual_axis", dsl.Params{
		"left_metric": "锁单量", "right_metric": "交付数", "date_range": "last_30_days",
	}).(*tools.DualAxisResult)
	assert.Equal(t, "week", res.TimeGrain)
}
