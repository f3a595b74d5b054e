// Package dsl 定义分析步骤（DSL step）及其参数读取方法
package dsl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
)

// Step 一个声明式分析步骤
type Step struct {
	ID         string `json:"id" yaml:"id"`
	Tool       string `json:"tool" yaml:"tool"`
	Parameters Params `json:"parameters" yaml:"parameters"`
	Reasoning  string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// Params 步骤参数（各工具共享词表：metric / date_range / dimension(s) / filters ...）
type Params map[string]interface{}

// Validate 基础校验
func (s Step) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("step id is required")
	}
	if strings.TrimSpace(s.Tool) == "" {
		return fmt.Errorf("step %s: tool is required", s.ID)
	}
	return nil
}

// Clone 深拷贝参数，避免注入步骤与原始计划共享 map
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		out := make(Params, len(p))
		for k, v := range p {
			out[k] = v
		}
		return out
	}
	var out Params
	if err := json.Unmarshal(data, &out); err != nil {
		return Params{}
	}
	return out
}

// Has 是否存在非空参数
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String 读取字符串参数（数字会被格式化）
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// StringSlice 读取字符串列表；单个字符串视为只有一个元素
func (p Params) StringSlice(key string) []string {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if item == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return []string{strings.TrimSpace(x)}
	default:
		return []string{fmt.Sprintf("%v", x)}
	}
}

// Int 读取整数参数
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}
	return def
}

// Bool 读取布尔参数
func (p Params) Bool(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}

// Dimensions 优先读取 dimensions，其次 dimension
func (p Params) Dimensions() []string {
	if dims := p.StringSlice("dimensions"); len(dims) > 0 {
		return dims
	}
	if dim := p.String("dimension"); dim != "" {
		return []string{dim}
	}
	return nil
}

// Filters 解析 filters 列表
func (p Params) Filters() ([]dataaccess.Filter, error) {
	v, ok := p["filters"]
	if !ok || v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal filters failed: %w", err)
	}
	var filters []dataaccess.Filter
	if err := json.Unmarshal(data, &filters); err != nil {
		return nil, fmt.Errorf("invalid filters: %w", err)
	}
	return filters, nil
}
