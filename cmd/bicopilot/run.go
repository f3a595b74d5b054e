package main

import (
	"github.com/spf13/cobra"

	"github.com/zhangzihaoDT/BI-reasoning/internal/agent"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute an analysis plan file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := LoadPlan(args[0])
		if err != nil {
			return err
		}
		steps, err := analysis.ResolveSteps(plan.RunData())
		if err != nil {
			return err
		}
		return execute(cmd, steps)
	},
}

var (
	scanMetric    string
	scanDimension string
	scanDateRange string
)

var scanCmd = &cobra.Command{
	Use:       "scan <breadth_scan|rate_scan>",
	Short:     "Execute a preset scan",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{agent.PresetBreadthScan, agent.PresetRateScan},
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := agent.Preset(args[0], agent.PresetInput{
			Metric:    scanMetric,
			Dimension: scanDimension,
			DateRange: scanDateRange,
		})
		if err != nil {
			return err
		}
		return execute(cmd, steps)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanMetric, "metric", "", "指标，为空使用预置默认值")
	scanCmd.Flags().StringVar(&scanDimension, "dimension", "", "拆分维度")
	scanCmd.Flags().StringVar(&scanDateRange, "date-range", "", "时间范围，如 last_30_days")
}

// execute 在进程内执行步骤并输出报告
func execute(cmd *cobra.Command, steps []dsl.Step) error {
	ctx := cmd.Context()
	rt, _, cleanup, err := newRuntime(ctx)
	defer cleanup()
	if err != nil {
		return err
	}

	report, runErr := rt.Run(ctx, steps)
	if report == nil {
		return runErr
	}
	if err := printReport(cmd.OutOrStdout(), report, runErr); err != nil {
		return err
	}
	return runErr
}
