package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a natural-language question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question is required")
		}

		ctx := cmd.Context()
		rt, _, cleanup, err := newRuntime(ctx)
		defer cleanup()
		if err != nil {
			return err
		}

		qa, err := rt.QueryAgent(ctx)
		if err != nil {
			return err
		}
		step, source := qa.Step(ctx, question)
		fmt.Fprintf(cmd.OutOrStdout(), "source: %s, tool: %s\n\n", source, step.Tool)

		report, runErr := rt.Run(ctx, []dsl.Step{step})
		if report == nil {
			return runErr
		}
		if err := printReport(cmd.OutOrStdout(), report, runErr); err != nil {
			return err
		}
		return runErr
	},
}
