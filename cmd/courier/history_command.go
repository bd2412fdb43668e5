package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var since string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history <channel>",
		Short: "Show stored messages for a channel",
		Long:  "Show stored messages for a channel. --since accepts all, a unix timestamp, or a duration such as 30m, 12h or 2d.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				history, err := client.History(cmd.Context(), args[0], since)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, history)
				}
				out := cmd.OutOrStdout()
				if len(history.Messages) == 0 {
					fmt.Fprintf(out, "No messages on %s since %s\n", history.Channel, history.Since)
					return nil
				}
				fmt.Fprintln(out, renderMessageTable(history.Messages))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "all", "Lower bound for message time")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <channel>",
		Short: "Delete every stored message for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Purge(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d message(s) from %s\n", resp.Deleted, resp.Channel)
				return nil
			})
		},
	}
}
