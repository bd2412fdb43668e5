package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"courier/internal/api"
)

type listenOptions struct {
	identity string
	channels []string
	claims   []string
	count    int
	jsonOut  bool
}

func newListenCommand(ctx *commandContext) *cobra.Command {
	var opts listenOptions

	cmd := &cobra.Command{
		Use:   "listen <identity>",
		Short: "Connect as a live endpoint and print delivered messages",
		Long: "Connect to the daemon's websocket as a live endpoint. In topic mode pass --channel\n" +
			"to subscribe; in slug mode pass --claim to take ownership of slugs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.identity = args[0]
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return ctx.withClient(func(client *api.Client) error {
				return listen(runCtx, cmd, client, opts)
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.channels, "channel", nil, "Channel to subscribe to (repeatable)")
	cmd.Flags().StringSliceVar(&opts.claims, "claim", nil, "Slug to claim (repeatable, slug mode)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Exit after this many messages (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print messages as JSON lines even on a terminal")
	return cmd
}

func listen(ctx context.Context, cmd *cobra.Command, client *api.Client, opts listenOptions) error {
	query := url.Values{}
	if len(opts.channels) > 0 {
		query.Set("channels", strings.Join(opts.channels, ","))
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, client.WebsocketURL(opts.identity, query), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	})
	defer stop()

	for _, slug := range opts.claims {
		if err := conn.WriteJSON(api.Frame{Type: api.FrameClaim, Channel: slug}); err != nil {
			return fmt.Errorf("claim %s: %w", slug, err)
		}
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	pretty := !opts.jsonOut && shouldColorize(out)
	received := 0
	for {
		var frame api.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		switch frame.Type {
		case api.FrameMessage:
			if frame.Message == nil {
				continue
			}
			if err := printMessage(out, *frame.Message, pretty); err != nil {
				return err
			}
			received++
			if opts.count > 0 && received >= opts.count {
				return nil
			}
		case api.FrameError:
			fmt.Fprintf(errOut, "%s %s: %s\n", frame.Op, frame.Channel, frame.Reason)
		case api.FrameOK:
			if frame.Op == api.FrameClaim {
				fmt.Fprintf(errOut, "claimed %s\n", frame.Channel)
			}
		}
	}
}

func printMessage(w io.Writer, msg api.Message, pretty bool) error {
	if !pretty {
		return writeJSONLine(w, msg)
	}
	stamp := time.Unix(msg.Time, 0).Local().Format("15:04:05")
	line := fmt.Sprintf("%s [%s] p%d ", stamp, msg.Channel, msg.Priority)
	if msg.Title != "" {
		line += msg.Title + ": "
	}
	_, err := fmt.Fprintln(w, line+msg.Message)
	return err
}
