package cmds

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eurobot/webchat/internal/service/connectivity"
)

func newProbeCommand(opts *rootOptions) *cobra.Command {
	var (
		message    string
		initialize bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the backend: health, optional index rebuild and a single chat exchange",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			client, monitor, err := opts.backendClient()
			if err != nil {
				return err
			}

			status := monitor.CheckHealth(ctx)
			last, _ := monitor.Last()
			fmt.Fprintf(out, "health     %s (%s) %s\n", status, client.BaseURL(), last.Latency.Round(time.Millisecond))
			if status != connectivity.Healthy {
				return errors.Errorf("backend at %s is unhealthy", client.BaseURL())
			}

			if initialize {
				result, err := client.Initialize(ctx)
				if err != nil {
					return errors.Wrap(err, "initialize backend")
				}
				fmt.Fprintf(out, "initialize %s: %s\n", result.Status, result.Message)
			}

			if message != "" {
				started := time.Now()
				reply, err := client.Chat(ctx, message)
				if err != nil {
					return errors.Wrap(err, "chat")
				}
				fmt.Fprintf(out, "chat       %s (context used: %t)\n%s\n", time.Since(started).Round(time.Millisecond), reply.ContextUsed, reply.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "send one chat message and print the answer")
	cmd.Flags().BoolVar(&initialize, "initialize", false, "ask the backend to rebuild its document index first")
	return cmd
}
