package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// PlanFile 分析计划文件（YAML，JSON 为其子集）
// 与 bi_analysis 任务数据一致：steps 与 preset 二选一
type PlanFile struct {
	Steps       []dsl.Step   `yaml:"steps"`
	Preset      string       `yaml:"preset"`
	PresetInput *PresetInput `yaml:"preset_input"`
}

// PresetInput 预置策略参数
type PresetInput struct {
	Metric    string        `yaml:"metric"`
	Dimension string        `yaml:"dimension"`
	DateRange string        `yaml:"date_range"`
	Filters   []interface{} `yaml:"filters"`
}

// ParsePlan 解析计划内容
func ParsePlan(data []byte) (*PlanFile, error) {
	var plan PlanFile
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan failed: %w", err)
	}
	if len(plan.Steps) == 0 && plan.Preset == "" {
		return nil, fmt.Errorf("plan must define steps or preset")
	}
	for i := range plan.Steps {
		plan.Steps[i].Parameters = normalizeParams(plan.Steps[i].Parameters)
	}
	return &plan, nil
}

// LoadPlan 读取计划文件
func LoadPlan(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s failed: %w", path, err)
	}
	return ParsePlan(data)
}

// RunData 转为任务数据
func (p *PlanFile) RunData() model.AnalysisRunData {
	data := model.AnalysisRunData{
		Steps:  p.Steps,
		Preset: p.Preset,
	}
	if in := p.PresetInput; in != nil {
		data.PresetInput = &model.PresetParams{
			Metric:    in.Metric,
			Dimension: in.Dimension,
			DateRange: in.DateRange,
			Filters:   normalizeSlice(in.Filters),
		}
	}
	return data
}

// normalizeParams yaml 的嵌套 map 统一为 map[string]interface{}
func normalizeParams(p dsl.Params) dsl.Params {
	if p == nil {
		return nil
	}
	out := make(dsl.Params, len(p))
	for k, v := range p {
		out[k] = normalize(v)
	}
	return out
}

func normalizeSlice(in []interface{}) []interface{} {
	if in == nil {
		return nil
	}
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = normalize(v)
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []interface{}:
		return normalizeSlice(x)
	}
	return v
}
