package main

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-ref/engine/host"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Conform runs the conformance frames and prints a result table.
func Conform(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	h, err := newHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	results := host.Conform(h, host.ConformanceChecks)

	failed := 0
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Check", "Result", "Violations", "Error"})
	for _, res := range results {
		status := "pass"
		if !res.Passed {
			status = "FAIL"
			failed++
		}
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		table.Append([]string{res.Name, status, fmt.Sprintf("%d", res.Violations), errText})
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d failed", failed), fmt.Sprintf("%d", h.Ref().Diagnostics().ViolationCount()), ""})
	table.Render()

	if shot := ctx.String("shot"); shot != "" {
		if !h.Ref().ScreenShot(shot, refapi.ShotScreenshot) {
			return fmt.Errorf("screenshot %s failed", shot)
		}
		logger.Noticef("wrote %s", shot)
	}

	if failed > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d checks failed", failed, len(results)), 1)
	}
	return nil
}
