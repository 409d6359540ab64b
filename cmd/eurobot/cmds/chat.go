package cmds

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eurobot/webchat/internal/logging"
	"github.com/eurobot/webchat/internal/service/session"
	"github.com/eurobot/webchat/internal/tui"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var (
		logFile string
		style   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with EURO-Bot in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The alternate screen owns the terminal; logs go to a file or nowhere.
			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return errors.Wrapf(err, "open log file %s", logFile)
				}
				defer f.Close()
				out = f
			}
			if err := logging.Setup(opts.cfg.Log.Level, "json", out); err != nil {
				return err
			}

			client, monitor, err := opts.backendClient()
			if err != nil {
				return err
			}

			p := opts.profile()
			ctrl := session.New(client, monitor, session.Options{Greeting: p.Greeting})
			defer ctrl.Close()

			return tui.Run(cmd.Context(), ctrl, p, tui.Options{GlamourStyle: style})
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the UI runs")
	cmd.Flags().StringVar(&style, "style", "dark", "markdown style for bot answers (dark, light, notty)")
	return cmd
}
