package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/metrics"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// 抽取来源
const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
)

// QueryStepID 问句生成的步骤 id
const QueryStepID = "query_action"

// QueryAgent 问句 -> 单个 query / rollup 步骤
type QueryAgent struct {
	completer Completer
	heuristic *Heuristic
	def       *dataaccess.BusinessDefinition
	today     func() time.Time
	log       logger.Logger
}

// NewQueryAgent completer 为 nil 时只使用规则抽取
func NewQueryAgent(completer Completer, def *dataaccess.BusinessDefinition, today func() time.Time, log logger.Logger) *QueryAgent {
	if today == nil {
		today = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &QueryAgent{
		completer: completer,
		heuristic: NewHeuristic(def),
		def:       def,
		today:     today,
		log:       log,
	}
}

// Extract 优先大模型抽取，任何失败降级为规则抽取；返回抽取来源
func (a *QueryAgent) Extract(ctx context.Context, question string) (Extraction, string) {
	if a.completer == nil {
		metrics.AgentExtractions.WithLabelValues(SourceHeuristic, "no_llm").Inc()
		return a.heuristic.Extract(question), SourceHeuristic
	}

	raw, err := a.completer.Complete(ctx, a.systemPrompt(), question)
	if err != nil {
		a.log.Warnf(ctx, "[QueryAgent] llm failed, fallback to heuristic: %v", err)
		metrics.AgentExtractions.WithLabelValues(SourceHeuristic, "llm_error").Inc()
		return a.heuristic.Extract(question), SourceHeuristic
	}

	ext, err := parseExtraction(raw)
	if err != nil {
		a.log.Warnf(ctx, "[QueryAgent] invalid llm output, fallback to heuristic: %v", err)
		metrics.AgentExtractions.WithLabelValues(SourceHeuristic, "parse_error").Inc()
		return a.heuristic.Extract(question), SourceHeuristic
	}
	metrics.AgentExtractions.WithLabelValues(SourceLLM, "ok").Inc()
	return ext, SourceLLM
}

// Step 问句对应的 DSL 步骤
func (a *QueryAgent) Step(ctx context.Context, question string) (dsl.Step, string) {
	ext, source := a.Extract(ctx, question)
	return dsl.Step{ID: QueryStepID, Tool: ext.Tool, Parameters: ext.Parameters}, source
}

// parseExtraction 去掉 markdown 代码块后解析 JSON；tool 只允许 query / rollup
func parseExtraction(raw string) (Extraction, error) {
	body := StripFence(raw)
	var ext Extraction
	if err := json.Unmarshal([]byte(body), &ext); err != nil {
		return Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}
	switch ext.Tool {
	case "":
		ext.Tool = "query"
	case "query", "rollup":
	default:
		return Extraction{}, fmt.Errorf("unsupported tool %q", ext.Tool)
	}
	if ext.Parameters == nil {
		ext.Parameters = dsl.Params{}
	}
	return ext, nil
}

// StripFence 提取 ```json ... ``` 或 ``` ... ``` 中的内容
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
	} else {
		return s
	}
	if j := strings.Index(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

func (a *QueryAgent) systemPrompt() string {
	def, _ := json.Marshal(a.def)
	var b strings.Builder
	b.WriteString("You are a Data Query Assistant. Convert the question into ONE tool call JSON, no markdown.\n")
	fmt.Fprintf(&b, "Today's date: %s\n", a.today().Format(dataaccess.DateLayout))
	fmt.Fprintf(&b, "Business definitions: %s\n", def)
	b.WriteString(`Output: {"tool":"query|rollup","parameters":{"metric":"...","date_range":"...","filters":[{"field":"...","op":"=","value":"..."}],"dimension":"..."}}
Rules:
- "query" for a single number, "rollup" for breakdowns (按/分/各/分别, or several models listed).
- metric: 锁单量/交付数/开票量/开票金额/小订数.
- date_range: 昨日/昨天 -> yesterday; 近7天 -> last_7_days; 2025年12月 -> 2025-12; 2025年12月1日 -> 2025-12-01; default yesterday.
- model names (LS6/LS9/L6...) -> {"field":"series","op":"in","value":[...]}; series_group keys with 车型分组 -> field series_group.
- 增程/纯电 -> {"field":"product_type","op":"=","value":"增程|纯电"}.
- rollup dimension: series, product_name, series_group, product_type, parent_region_name, store_city, store_name, first_middle_channel_name, gender, age_band.
`)
	return b.String()
}
