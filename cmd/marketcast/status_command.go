package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"marketcast/internal/orchestrator"
	"marketcast/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon schedule and last run state",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			report, err := daemonClient.Status(cmd.Context())
			if err != nil {
				return err
			}
			renderStatus(cmd, report)
			return nil
		},
	}
}

func renderStatus(cmd *cobra.Command, report orchestrator.StatusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
	fmt.Fprintln(out, renderStatusLine("Now", statusInfo, report.Now.Format(time.RFC3339), colorize))
	fmt.Fprintln(out, renderStatusLine("Time zone", statusInfo, report.TimeZone, colorize))
	fmt.Fprintln(out, renderStatusLine("Force allowed", statusInfo, strconv.FormatBool(report.AllowForce), colorize))
	fmt.Fprintln(out)

	fmt.Fprintln(out, renderSectionHeader("Schedule", colorize))
	fmt.Fprintln(out, renderStatusLine("Hour", statusInfo, fmt.Sprintf("%02d:00", report.Schedule.Hour), colorize))
	fmt.Fprintln(out, renderStatusLine("Window", statusInfo, fmt.Sprintf("%d min", report.Schedule.WindowMinutes), colorize))
	fmt.Fprintln(out, renderStatusLine("Weekdays", statusInfo, strings.Join(report.Schedule.Weekdays, ", "), colorize))

	slotRows := make([][]string, 0, len(report.Schedule.Slots))
	for _, slot := range report.Schedule.Slots {
		slotRows = append(slotRows, []string{
			fmt.Sprintf("%02d:%02d", report.Schedule.Hour, slot.Minute),
			slot.Profile,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Slot", "Profile"}, slotRows))
	fmt.Fprintln(out)

	fmt.Fprintln(out, renderSectionHeader("Last run", colorize))
	fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(report.State.Status), string(report.State.Status), colorize))
	if report.State.RunID != "" {
		fmt.Fprintln(out, renderStatusLine("Run ID", statusInfo, report.State.RunID, colorize))
	}
	if report.State.Profile != "" {
		fmt.Fprintln(out, renderStatusLine("Profile", statusInfo, report.State.Profile, colorize))
	}
	if report.State.StartedAt != nil {
		fmt.Fprintln(out, renderStatusLine("Started", statusInfo, report.State.StartedAt.Format(time.RFC3339), colorize))
	}
	if report.State.FinishedAt != nil {
		fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, report.State.FinishedAt.Format(time.RFC3339), colorize))
	}
	if report.State.ErrorStep != "" {
		fmt.Fprintln(out, renderStatusLine("Failed step", statusError, report.State.ErrorStep, colorize))
	}
	if report.State.LastSuccessRunKey != "" {
		fmt.Fprintln(out, renderStatusLine("Last success", statusOK, report.State.LastSuccessRunKey, colorize))
	}

	if len(report.State.Uploads) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSectionHeader("Recent uploads", colorize))
		rows := make([][]string, 0, len(report.State.Uploads))
		for _, upload := range report.State.Uploads {
			detail := upload.URLWatch
			if upload.Skipped {
				detail = "skipped: " + upload.Reason
			}
			rows = append(rows, []string{
				upload.Timestamp.Format("2006-01-02 15:04"),
				upload.Kind,
				detail,
			})
		}
		fmt.Fprintln(out, renderTable([]string{"When", "Kind", "Result"}, rows))
	}
}

func runStatusKind(status state.Status) statusKind {
	switch status {
	case state.StatusSuccess:
		return statusOK
	case state.StatusFailed:
		return statusError
	case state.StatusRunning:
		return statusInfo
	case state.StatusSkippedAlreadyRunning:
		return statusWarn
	default:
		return statusInfo
	}
}
