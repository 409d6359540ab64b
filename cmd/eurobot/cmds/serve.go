package cmds

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eurobot/webchat/internal/handler"
	"github.com/eurobot/webchat/internal/model/profile"
	chatService "github.com/eurobot/webchat/internal/service/chat"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat session API for the browser page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			client, monitor, err := opts.backendClient()
			if err != nil {
				return err
			}

			profiles := profile.NewMemoryStore([]profile.Profile{opts.profile()})
			chatSvc := chatService.NewService(client, monitor, profiles)
			defer chatSvc.CloseAll()

			router := handler.NewRouter(profiles, chatSvc, handler.Options{AllowedOrigins: cfg.Server.AllowedOrigins})
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			ctx := cmd.Context()
			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				log.Info().Str("addr", srv.Addr).Str("backend", client.BaseURL()).Msg("EURO-Bot chat client listening")
				return runServer(ctx, srv)
			})
			eg.Go(func() error {
				return chatSvc.RunJanitor(ctx, cfg.Session.IdleTTL, 0)
			})
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides PORT)")
	return cmd
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
