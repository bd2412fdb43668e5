package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/api"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var title string
	var priority int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "publish <channel> [message...]",
		Short: "Publish a message to a channel",
		Long: "Publish a message to a channel. Use - as the message to read it from stdin.\n" +
			"An empty message is published as \"triggered\".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := args[0]
			body := strings.Join(args[1:], " ")
			if body == "-" {
				data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 64*1024))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				body = string(data)
			}

			return ctx.withClient(func(client *api.Client) error {
				receipt, err := client.Publish(cmd.Context(), channel, api.PublishRequest{
					Message:  body,
					Title:    title,
					Priority: priority,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, receipt)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s (delivered %d, forwarded %s)\n",
					receipt.ID, receipt.Channel, receipt.Delivered, yesNo(receipt.Forwarded))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Message title")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Priority 1-5 (default 3)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the receipt as JSON")
	return cmd
}
