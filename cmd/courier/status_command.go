package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/preflight"
)

type statusReport struct {
	Daemon    *api.DaemonStatus  `json:"daemon"`
	Preflight []preflight.Result `json:"preflight"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := statusReport{Preflight: preflight.RunAll(cmd.Context(), cfg)}
			var daemonErr error
			err = ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				report.Daemon = &status
				return nil
			})
			if err != nil {
				daemonErr = err
			}

			if jsonOut {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Courier", colorize)
			if report.Daemon == nil {
				lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
				if daemonErr != nil {
					lines = append(lines, renderStatusLine("Detail", statusInfo, daemonErr.Error(), colorize))
				}
			} else {
				lines = append(lines, daemonLines(report.Daemon, colorize)...)
			}
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Preflight", colorize)...)
			lines = append(lines, preflightLines(report.Preflight, colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if report.Daemon != nil && len(report.Daemon.Endpoints) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Identity", "State", "Channels", "Connected", "Last ack"},
					endpointRows(report.Daemon.Endpoints),
					nil,
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func daemonLines(status *api.DaemonStatus, colorize bool) []string {
	forward := statusWarn
	if status.ForwardEnabled {
		forward = statusOK
	}
	storeKind, storeDetail := statusOK, "healthy (schema "+status.Store.SchemaVersion+")"
	if !status.Store.Healthy {
		storeKind, storeDetail = statusError, status.Store.Problem
	}
	return []string{
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize),
		renderStatusLine("Mode", statusInfo, status.Mode, colorize),
		renderStatusLine("Started", statusInfo, status.StartedAt, colorize),
		renderStatusLine("Live endpoints", statusInfo, strconv.Itoa(status.LiveEndpoints), colorize),
		renderStatusLine("Channels", statusInfo, strconv.Itoa(status.Channels), colorize),
		renderStatusLine("Store", storeKind, storeDetail, colorize),
		renderStatusLine("Stored messages", statusInfo, strconv.Itoa(status.Store.Messages), colorize),
		renderStatusLine("Push forwarding", forward, yesNo(status.ForwardEnabled), colorize),
		renderStatusLine("Liveness interval", statusInfo, status.LivenessInterval, colorize),
	}
}
