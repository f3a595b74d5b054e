package dataaccess

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesGroup(t *testing.T) {
	tests := [][2]string{
		{"新一代LS6 Max", "CM2"},
		{"全新LS6 Pro", "CM1"},
		{"LS6 Ultra", "CM0"},
		{"全新L6 Max", "DM1"},
		{"L6 Pro", "DM0"},
		{"LS9 增程 Ultra", "LS9"},
		{"LS7 Max", "LS7"},
		{"L7 Pro", "L7"},
		{"", SeriesOther},
		{"某款概念车", SeriesOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt[1], SeriesGroup(tt[0]), tt[0])
	}
	assert.Equal(t, ProductTypeEREV, ProductType("LS9 增程 Max"))
	assert.Equal(t, ProductTypeBEV, ProductType("LS6 Max"))
}

func TestReadCSVAndDerive(t *testing.T) {
	data := "\ufefforder_number,lock_time,product_name,age,extra\n" +
		"A1,2025-12-14 10:00:00,新一代LS6 Max,31,x\n" +
		"A2,,LS9 增程,not-a-number,y\n" +
		"broken,row\n" +
		"A3,2025/12/13,L7 Pro,40,z\n"

	tbl, err := ReadCSV(context.Background(), "orders", strings.NewReader(data), OrderSchema(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, KindString, tbl.Kind("extra"))
	assert.Equal(t, KindTime, tbl.Kind(ColLockTime))

	deriveColumns(tbl)
	v := tbl.All()
	assert.Equal(t, []string{"CM2", "L7", "LS9"}, v.Distinct(ColSeriesGroup))
	assert.Equal(t, 2, v.CountValid(ColLockTime))
	assert.Equal(t, 2, v.CountValid(ColAge))

	lock, ok := v.Time(2, ColLockTime)
	require.True(t, ok)
	assert.Equal(t, "2025-12-13", lock.Format(DateLayout))
	assert.Equal(t, "增程", v.Value(1, ColProductType))
}

func TestViewWhereKeepsOrder(t *testing.T) {
	tbl := NewTable("t", map[string]ColumnKind{"n": KindNumber}, testLoc)
	for i := 0; i < 5; i++ {
		tbl.Append(map[string]interface{}{"n": i})
	}
	v := tbl.All().Where(func(i int) bool { return i%2 == 0 })
	require.Equal(t, 3, v.Len())
	assert.Equal(t, "4", v.Value(2, "n"))
	assert.Equal(t, 0, v.Empty().Len())
	assert.False(t, v.Has("missing"))
}

func TestResolveMetric(t *testing.T) {
	m := ResolveMetric("锁单数")
	assert.Equal(t, MetricLockVolume, m.Name)
	assert.Equal(t, ColLockTime, m.TimeColumn)

	m = ResolveMetric("开票量")
	assert.Equal(t, []string{ColInvoiceUploadTime, ColLockTime}, m.Required)

	m = ResolveMetric("something else")
	assert.Equal(t, ColOrderCreateDate, m.TimeColumn)
	assert.Equal(t, AggCount, m.Agg)

	m = ResolveMetric("datediff('day', order_create_date, lock_time)")
	require.NotNil(t, m.Expr)
	assert.Equal(t, ColOrderCreateDate, m.TimeColumn)
	assert.Equal(t, []string{ColOrderCreateDate, ColLockTime}, m.Required)
	assert.True(t, ResolveMetric(MetricAssignLock7d).IsRatio())
}
