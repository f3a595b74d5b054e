package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/idgen"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfy"
)

var publishQueue string

// publishCmd 直接向分析队列投递任务（不落库，回调仍由 callback consumer 处理）
var publishCmd = &cobra.Command{
	Use:   "publish <plan.yaml>",
	Short: "Publish an analysis plan to the worker queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		plan, err := LoadPlan(args[0])
		if err != nil {
			return err
		}
		data := plan.RunData()
		steps, err := analysis.ResolveSteps(data)
		if err != nil {
			return err
		}
		if _, err := engine.NewState(steps); err != nil {
			return err
		}

		client, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
		if err != nil {
			return err
		}

		queue := publishQueue
		if queue == "" {
			queue = cfg.Server.Queue
		}
		runID := idgen.NewRunID()
		job, err := model.NewJob(idgen.NewRequestID(), model.ActionAnalysisRun, runID, data)
		if err != nil {
			return err
		}
		jobID, err := client.PublishJSON(queue, job)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published: run_id=%s, queue=%s, job_id=%s\n", runID, queue, jobID)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishQueue, "queue", "", "目标队列，为空使用 server.queue")
}
