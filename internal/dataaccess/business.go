package dataaccess

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// BusinessDefinition 业务定义（加载后只读）
type BusinessDefinition struct {
	ModelSeriesMapping map[string][]string        `json:"model_series_mapping"`
	SeriesGroupLogic   map[string]json.RawMessage `json:"series_group_logic,omitempty"`
	AgeLimit           []float64                  `json:"age_limit,omitempty"`
	TimePeriods        map[string]TimePeriod      `json:"time_periods,omitempty"`
}

// TimePeriod 车型上市周期，End 为上市日
type TimePeriod struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end"`
}

// LoadBusinessDefinition 读取 business_definition.json
func LoadBusinessDefinition(path string) (*BusinessDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read business definition failed: %w", err)
	}
	var def BusinessDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse business definition failed: %w", err)
	}
	return &def, nil
}

// SeriesKeys series_group_logic 中的分组键（排序后）
func (d *BusinessDefinition) SeriesKeys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.SeriesGroupLogic))
	for k := range d.SeriesGroupLogic {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ModelKeys 口语车型名（按长度降序，便于最长匹配）
func (d *BusinessDefinition) ModelKeys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.ModelSeriesMapping))
	for k := range d.ModelSeriesMapping {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// ExpandModel 口语车型名映射到 series_group 列表
func (d *BusinessDefinition) ExpandModel(name string) ([]string, bool) {
	if d == nil || len(d.ModelSeriesMapping) == 0 {
		return nil, false
	}
	groups, ok := d.ModelSeriesMapping[strings.TrimSpace(name)]
	if !ok || len(groups) == 0 {
		return nil, false
	}
	return append([]string(nil), groups...), true
}

// AgeBounds 年龄合法范围，未配置时返回 ok=false
func (d *BusinessDefinition) AgeBounds() (float64, float64, bool) {
	if d == nil || len(d.AgeLimit) != 2 {
		return 0, 0, false
	}
	return d.AgeLimit[0], d.AgeLimit[1], true
}

// LaunchDate 查询车型上市日；先按键直接查找，再通过 model_series_mapping 反查
func (d *BusinessDefinition) LaunchDate(series string, loc *time.Location) (time.Time, bool) {
	if d == nil || len(d.TimePeriods) == 0 {
		return time.Time{}, false
	}
	if tp, ok := d.TimePeriods[series]; ok {
		if t, ok := ParseTime(tp.End, loc); ok {
			return DayStart(t), true
		}
	}
	for _, model := range d.ModelKeys() {
		groups := d.ModelSeriesMapping[model]
		if len(groups) != 1 || groups[0] != series {
			continue
		}
		if tp, ok := d.TimePeriods[model]; ok {
			if t, ok := ParseTime(tp.End, loc); ok {
				return DayStart(t), true
			}
		}
	}
	return time.Time{}, false
}
