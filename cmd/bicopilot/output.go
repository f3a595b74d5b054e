package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
)

// printReport 按 --format 输出报告；runErr 非空时附带失败原因
func printReport(w io.Writer, report *engine.Report, runErr error) error {
	if outputFormat == "json" {
		out := map[string]interface{}{
			"anomalous": report.Anomalous(),
			"report":    report,
		}
		if runErr != nil {
			out["error"] = runErr.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tTOOL\tINJECTED\tREASONING")
	for _, s := range report.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", s.ID, s.Tool, s.Injected, s.Reasoning)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Signals) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SIGNAL\tSTEP\tSTATUS\tMESSAGE")
		for _, sig := range report.Signals {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sig.Type, sig.StepID, sig.Status, sig.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	if d := report.Decision; d != nil {
		fmt.Fprintf(w, "decision: %s (z=%.2f, cv=%.3f, anomaly=%v)\n", d.Flag, d.Z, d.CV, d.AnomalyDetected)
	}
	if report.Pending > 0 {
		fmt.Fprintf(w, "pending: %d\n", report.Pending)
	}
	if runErr != nil {
		fmt.Fprintf(w, "error: %v\n", runErr)
	}
	return nil
}
